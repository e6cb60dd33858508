package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/financials-mapper/constants"
	"github.com/joseph-ayodele/financials-mapper/internal/common"
	"github.com/joseph-ayodele/financials-mapper/internal/entity"
	"github.com/joseph-ayodele/financials-mapper/internal/parser"
	"github.com/joseph-ayodele/financials-mapper/internal/quality"
	"github.com/joseph-ayodele/financials-mapper/internal/textlayer"
)

// TextLayer reads the native text of a PDF.
type TextLayer interface {
	Extract(data []byte) (textlayer.Result, error)
}

// Options bound a single run.
type Options struct {
	// Timeout caps one Extract call; zero means no cap beyond ctx.
	Timeout time.Duration
	// MaxBytes rejects larger documents; zero means no limit.
	MaxBytes int64
}

// Pipeline drives the strategies in order and stops at the first success.
type Pipeline struct {
	text       TextLayer
	inspect    func([]byte) (textlayer.Info, error)
	strategies []Strategy
	opts       Options
	logger     *slog.Logger
}

// New builds a pipeline. The last strategy should never decline a document;
// RawLinesStrategy is appended when it is missing.
func New(text TextLayer, strategies []Strategy, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if text == nil {
		text = textlayer.NewExtractor(textlayer.Config{}, logger)
	}
	if n := len(strategies); n == 0 || strategies[n-1].Name() != StrategyRawLines {
		strategies = append(strategies, RawLinesStrategy{})
	}
	return &Pipeline{
		text:       text,
		inspect:    textlayer.Inspect,
		strategies: strategies,
		opts:       opts,
		logger:     logger,
	}
}

// Strategies lists strategy names in execution order.
func (p *Pipeline) Strategies() []string {
	out := make([]string, len(p.strategies))
	for i, s := range p.strategies {
		out[i] = s.Name()
	}
	return out
}

// Extract runs one document. Only terminal input errors and context errors
// are returned; every other failure degrades into the result.
func (p *Pipeline) Extract(ctx context.Context, in Input) (*entity.FinancialExtractionResult, error) {
	doc, err := p.prepare(in)
	if err != nil {
		p.logger.Warn("pipeline.input.rejected", "document", in.Name, "bytes", len(in.Data), "error", err)
		return nil, err
	}
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
	}
	start := time.Now()
	log := p.logger.With("req_id", rid, "document", doc.Name, "mime", doc.MIMEType)
	if tenant := common.TenantIDFromContext(ctx); tenant != "" {
		log = log.With("tenant_id", tenant)
	}
	log.Info("pipeline.start", "bytes", len(doc.Data), "year_hint", doc.YearHint)

	p.readTextLayer(doc, log)

	var reasons []string
	for _, s := range p.strategies {
		if err := ctx.Err(); err != nil {
			log.Warn("pipeline.cancelled", "strategy", s.Name(), "error", err)
			return nil, err
		}
		stepStart := time.Now()
		out, err := s.Attempt(ctx, doc)
		if err != nil || out == nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				log.Warn("pipeline.cancelled", "strategy", s.Name(), "error", ctxErr)
				return nil, ctxErr
			}
			if common.IsTerminal(err) {
				return nil, err
			}
			reason := reasonOf(s.Name(), err)
			log.Info("pipeline.strategy.fallthrough",
				"strategy", s.Name(), "reason", reason, "error", err,
				"elapsed_ms", time.Since(stepStart).Milliseconds())
			reasons = append(reasons, reason)
			continue
		}

		res := p.finish(doc, s.Name(), out, reasons)
		log.Info("pipeline.strategy.ok",
			"strategy", s.Name(),
			"fields", len(res.Fields),
			"unmapped", len(res.UnmappedFields),
			"grade", res.Confidence,
			"elapsed_ms", time.Since(start).Milliseconds())
		return res, nil
	}
	// Unreachable with RawLinesStrategy last; kept for custom chains.
	res := &entity.FinancialExtractionResult{
		Fields:         map[constants.CanonicalKey]float64{},
		UnmappedFields: []entity.UnmappedField{},
		Note:           buildNote(reasons, "every strategy declined the document"),
	}
	res.Regrade()
	return res, nil
}

func (p *Pipeline) prepare(in Input) (*Document, error) {
	if len(in.Data) == 0 {
		return nil, common.EmptyDocumentError()
	}
	if p.opts.MaxBytes > 0 && int64(len(in.Data)) > p.opts.MaxBytes {
		return nil, common.NewAppError("DOCUMENT_TOO_LARGE",
			fmt.Sprintf("document is %d bytes, limit is %d", len(in.Data), p.opts.MaxBytes),
			common.ErrInvalidInput)
	}
	mt, ok := constants.DetectMIME(in.Data)
	if !ok {
		return nil, common.UnsupportedTypeError(mt)
	}
	return &Document{
		Name:     in.Name,
		Data:     in.Data,
		MIMEType: mt,
		YearHint: in.YearHint,
		APIKey:   in.APIKey,
	}, nil
}

// readTextLayer fills Text, Pages and Verdict. Failures leave the text empty,
// which classifies as scanned.
func (p *Pipeline) readTextLayer(doc *Document, log *slog.Logger) {
	if doc.MIMEType == constants.MIMEPDF {
		if info, err := p.inspect(doc.Data); err != nil {
			log.Debug("pipeline.inspect.failed", "error", err)
		} else {
			doc.Pages = info.PageCount
		}
		tl, err := p.text.Extract(doc.Data)
		if err != nil {
			log.Warn("pipeline.textlayer.failed", "error", err)
		} else {
			doc.Text = tl.Text
			if doc.Pages == 0 {
				doc.Pages = len(tl.Pages) + len(tl.ImagePages)
			}
		}
	} else {
		doc.Pages = 1
	}
	doc.Verdict = quality.Classify(doc.Text, quality.Strict)
	log.Info("pipeline.textlayer.classified",
		"pages", doc.Pages,
		"chars", doc.Verdict.Chars,
		"scanned", doc.Verdict.Scanned,
		"reason", doc.Verdict.Reason,
		"real_word_ratio", doc.Verdict.RealWordRatio)
}

func (p *Pipeline) finish(doc *Document, strategy string, out *Outcome, reasons []string) *entity.FinancialExtractionResult {
	fields := out.Fields
	if fields == nil {
		fields = map[constants.CanonicalKey]float64{}
	}
	unmapped := out.Unmapped
	if unmapped == nil {
		unmapped = []entity.UnmappedField{}
	}
	extracted := out.ExtractedFields
	if len(extracted) == 0 {
		if text := doc.BestText(); text != "" {
			extracted = parser.Parse(text)
		}
	}
	res := &entity.FinancialExtractionResult{
		Fields:          fields,
		UnmappedFields:  unmapped,
		Note:            buildNote(reasons, out.Summary),
		Strategy:        strategy,
		ExtractedFields: extracted,
	}
	res.Regrade()
	return res
}
