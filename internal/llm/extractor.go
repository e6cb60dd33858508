package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/financials-mapper/internal/common"
)

// Config for the Extractor.
type Config struct {
	Models      []string      // priority order; empty means the provider's defaults
	Temperature float32       // 0 keeps answers repeatable
	Timeout     time.Duration // per model call
}

// Extractor sends a document to a Provider, walking the model fallback list.
type Extractor struct {
	provider Provider
	cfg      Config
	logger   *slog.Logger
}

func NewExtractor(p Provider, cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Models) == 0 {
		cfg.Models = p.DefaultModels()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Extractor{provider: p, cfg: cfg, logger: logger}
}

// Provider returns the configured vendor name.
func (e *Extractor) Provider() string { return e.provider.Name() }

// Extract tries each model in order. A rejection, quota or transport failure
// moves on to the next model; any other failure ends the attempt. An empty or malformed answer is
// common.ErrNoResult.
func (e *Extractor) Extract(ctx context.Context, req Request) (*Extraction, error) {
	if len(req.Document) == 0 {
		return nil, fmt.Errorf("no document attached: %w", common.ErrNoResult)
	}
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
	}
	prompt := BuildPrompt(PromptInput{YearHint: req.YearHint})

	var rejected []string
	var lastErr error
	for _, model := range e.cfg.Models {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		e.logger.Info("ai.extract.start",
			"req_id", rid,
			"provider", e.provider.Name(),
			"model", model,
			"doc_bytes", len(req.Document),
			"mime", req.MIMEType,
			"year_hint", req.YearHint,
		)

		resp, err := e.call(ctx, GenerateRequest{
			Model:       model,
			Prompt:      prompt,
			Document:    req.Document,
			MIMEType:    req.MIMEType,
			Filename:    req.Filename,
			Temperature: e.cfg.Temperature,
			APIKey:      req.APIKey,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if IsModelRejected(err) {
				e.logger.Warn("ai.extract.model_rejected",
					"req_id", rid, "model", model, "status", StatusCode(err), "error", err,
					"elapsed_ms", time.Since(start).Milliseconds())
				rejected = append(rejected, model)
				lastErr = err
				continue
			}
			e.logger.Error("ai.extract.failed",
				"req_id", rid, "model", model, "error", err,
				"elapsed_ms", time.Since(start).Milliseconds())
			return nil, fmt.Errorf("%s model %s: %w", e.provider.Name(), model, err)
		}

		ex, err := ParseResponse(resp.Text, e.logger)
		if err != nil {
			e.logger.Warn("ai.extract.unusable_response",
				"req_id", rid, "model", model, "error", err, "bytes", len(resp.Text),
				"elapsed_ms", time.Since(start).Milliseconds())
			return nil, err
		}
		ex.Model = model
		if resp.Model != "" {
			ex.Model = resp.Model
		}
		e.logger.Info("ai.extract.ok",
			"req_id", rid, "model", ex.Model,
			"mapped", len(ex.Mapped), "unmapped", len(ex.Unmapped),
			"elapsed_ms", time.Since(start).Milliseconds())
		return ex, nil
	}
	if lastErr == nil {
		return nil, fmt.Errorf("%w: %s", ErrModelsExhausted, strings.Join(rejected, ", "))
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrModelsExhausted, strings.Join(rejected, ", "), lastErr)
}

func (e *Extractor) call(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()
	return e.provider.Generate(callCtx, req)
}
