package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/financials-mapper/internal/async"
	"github.com/joseph-ayodele/financials-mapper/internal/core"
)

// Inbox turns watcher events into queued extraction jobs for one tenant.
type Inbox struct {
	queue    async.Queue
	cfg      WatchConfig
	tenantID string
	logger   *slog.Logger
}

func NewInbox(q async.Queue, cfg WatchConfig, tenantID string, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{queue: q, cfg: cfg, tenantID: tenantID, logger: logger}
}

// Run blocks until ctx is done or the watcher fails to start.
func (in *Inbox) Run(ctx context.Context) error {
	events, errs, err := StartWatcher(ctx, in.cfg, in.logger)
	if err != nil {
		return err
	}
	for {
		select {
		case path, ok := <-events:
			if !ok {
				return nil
			}
			if err := in.queue.Enqueue(ctx, core.Job{TenantID: in.tenantID, Path: path}); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				in.logger.Warn("inbox enqueue failed", "path", path, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			in.logger.Warn("inbox watcher error", "error", err)
		}
	}
}

// ResultWriter stores every successful outcome as <document>.json under dir.
func ResultWriter(dir string, logger *slog.Logger) async.ResultFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(job core.Job, out *core.Outcome, err error) {
		if err != nil || out == nil || dir == "" {
			return
		}
		if err := WriteResult(dir, out); err != nil {
			logger.Error("write result failed", "path", job.Path, "error", err)
		}
	}
}

// WriteResult writes the extraction result and proposals next to each other
// in one JSON document.
func WriteResult(dir string, out *core.Outcome) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	name := "result"
	if out.Job != nil && out.Job.DocumentName != "" {
		name = strings.TrimSuffix(out.Job.DocumentName, filepath.Ext(out.Job.DocumentName))
	}
	body, err := json.MarshalIndent(struct {
		Job       any `json:"job,omitempty"`
		Result    any `json:"result"`
		Proposals any `json:"proposals"`
	}{out.Job, out.Result, out.Proposals}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, name+".json"), body, 0o644)
}
