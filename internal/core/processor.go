package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/financials-mapper/internal/common"
	"github.com/joseph-ayodele/financials-mapper/internal/entity"
	"github.com/joseph-ayodele/financials-mapper/internal/mapping"
	"github.com/joseph-ayodele/financials-mapper/internal/pipeline"
	"github.com/joseph-ayodele/financials-mapper/internal/repository"
)

// Extractor is the part of the pipeline the processor depends on.
type Extractor interface {
	Extract(ctx context.Context, in pipeline.Input) (*entity.FinancialExtractionResult, error)
}

// Job is one document to process for a tenant.
type Job struct {
	TenantID string
	Path     string
	// Name and Data bypass the file read when Data is set.
	Name     string
	Data     []byte
	YearHint string
	APIKey   string
}

// Outcome is what a processed document produced.
type Outcome struct {
	Job       *entity.ExtractJob
	Result    *entity.FinancialExtractionResult
	Proposals []mapping.Candidate
}

// Processor runs the extraction pipeline, proposes memory mappings and
// records the finished job.
type Processor struct {
	logger   *slog.Logger
	pipeline Extractor
	memory   *mapping.Service
	jobsRepo repository.ExtractJobRepository
}

// NewProcessor wires a processor; memory and jobsRepo may be nil.
func NewProcessor(logger *slog.Logger, p Extractor, memory *mapping.Service, jobsRepo repository.ExtractJobRepository) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{logger: logger, pipeline: p, memory: memory, jobsRepo: jobsRepo}
}

// ProcessFile reads the document, extracts it, proposes mappings from the
// tenant's memory and persists the job. Nothing is persisted unless every
// step succeeded.
func (p *Processor) ProcessFile(ctx context.Context, job Job) (*Outcome, error) {
	v := common.NewValidator().Field("tenant_id", job.TenantID, common.Required)
	if len(job.Data) == 0 {
		v.Field("path", job.Path, common.Required)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	ctx = common.WithTenantID(ctx, job.TenantID)

	data, name := job.Data, job.Name
	if len(data) == 0 {
		b, err := os.ReadFile(job.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", job.Path, err)
		}
		data = b
	}
	if name == "" {
		name = filepath.Base(job.Path)
	}

	start := time.Now()
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	log := p.logger.With("tenant_id", job.TenantID, "document", name, "sha256", hash[:12])

	res, err := p.pipeline.Extract(ctx, pipeline.Input{
		Name:     name,
		Data:     data,
		YearHint: job.YearHint,
		APIKey:   job.APIKey,
	})
	if err != nil {
		log.Error("processor.extract.failed", "err", err)
		return nil, err
	}

	var proposals []mapping.Candidate
	if p.memory != nil && len(res.ExtractedFields) > 0 {
		proposals, err = p.memory.AutoApply(ctx, job.TenantID, res.ExtractedFields)
		if err != nil {
			log.Error("processor.auto_apply.failed", "err", err)
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	rec := &entity.ExtractJob{
		TenantID:     job.TenantID,
		DocumentName: name,
		ContentHash:  hash,
		Strategy:     res.Strategy,
		Grade:        string(res.Confidence),
		FieldCount:   len(res.Fields),
		ResultJSON:   raw,
	}
	if p.jobsRepo != nil {
		if err := p.jobsRepo.Create(ctx, rec); err != nil {
			log.Error("processor.persist.failed", "err", err)
			return nil, err
		}
	}

	log.Info("processor.ok",
		"strategy", res.Strategy,
		"grade", res.Confidence,
		"fields", len(res.Fields),
		"proposals", len(proposals),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &Outcome{Job: rec, Result: res, Proposals: proposals}, nil
}
