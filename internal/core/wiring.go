package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/joseph-ayodele/financials-mapper/internal/common"
	"github.com/joseph-ayodele/financials-mapper/internal/llm"
	"github.com/joseph-ayodele/financials-mapper/internal/llm/gemini"
	"github.com/joseph-ayodele/financials-mapper/internal/llm/openai"
	"github.com/joseph-ayodele/financials-mapper/internal/ocr"
	"github.com/joseph-ayodele/financials-mapper/internal/pipeline"
	"github.com/joseph-ayodele/financials-mapper/internal/synonym"
	"github.com/joseph-ayodele/financials-mapper/internal/textlayer"
)

// NewProvider builds the configured AI provider, or nil for "none".
func NewProvider(ctx context.Context, cfg common.AIConfig, logger *slog.Logger) (llm.Provider, error) {
	switch cfg.Provider {
	case "none":
		return nil, nil
	case "", "gemini":
		return gemini.New(ctx, gemini.Config{APIKey: cfg.APIKey}, logger)
	case "openai":
		return openai.New(openai.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout}, logger), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}

// Engines holds the external collaborators of a pipeline so callers can
// release them on shutdown.
type Engines struct {
	Provider llm.Provider
	OCR      ocr.Engine
}

// Close releases provider and OCR clients that hold connections.
func (e *Engines) Close() error {
	var errs []error
	if c, ok := e.Provider.(io.Closer); ok && c != nil {
		errs = append(errs, c.Close())
	}
	if c, ok := e.OCR.(io.Closer); ok && c != nil {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// BuildPipeline wires the strategy chain from configuration:
// ai, ocr+parser, synonym, raw-lines.
func BuildPipeline(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*pipeline.Pipeline, *Engines, error) {
	if logger == nil {
		logger = slog.Default()
	}
	prov, err := NewProvider(ctx, cfg.AI, logger)
	if err != nil {
		return nil, nil, err
	}
	engine, err := ocr.NewEngine(ctx, cfg.OCR, logger)
	if err != nil {
		// OCR is optional; a broken cloud credential only disables the strategy.
		logger.Warn("ocr engine unavailable", "engine", cfg.OCR.Engine, "error", err)
		engine = nil
	}
	engines := &Engines{Provider: prov, OCR: engine}

	var ext *llm.Extractor
	if prov != nil {
		ext = llm.NewExtractor(prov, llm.Config{
			Models:      cfg.AI.Models,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		}, logger)
	}
	matcher := synonym.NewMatcher()
	p := pipeline.New(
		textlayer.NewExtractor(textlayer.Config{}, logger),
		[]pipeline.Strategy{
			pipeline.NewAIStrategy(ext, cfg.AI.APIKey != ""),
			pipeline.NewOCRStrategy(engine, matcher, logger),
			pipeline.NewSynonymStrategy(matcher),
			pipeline.RawLinesStrategy{},
		},
		pipeline.Options{Timeout: cfg.Pipeline.Timeout, MaxBytes: cfg.Pipeline.MaxBytes},
		logger,
	)
	logger.Info("pipeline ready",
		"strategies", p.Strategies(),
		"ai_provider", cfg.AI.Provider,
		"ai_key", cfg.AI.APIKey != "",
		"ocr_engine", cfg.OCR.Engine,
	)
	return p, engines, nil
}
