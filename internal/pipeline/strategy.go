package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/financials-mapper/constants"
	"github.com/joseph-ayodele/financials-mapper/internal/common"
	"github.com/joseph-ayodele/financials-mapper/internal/entity"
	"github.com/joseph-ayodele/financials-mapper/internal/llm"
	"github.com/joseph-ayodele/financials-mapper/internal/ocr"
	"github.com/joseph-ayodele/financials-mapper/internal/parser"
	"github.com/joseph-ayodele/financials-mapper/internal/quality"
	"github.com/joseph-ayodele/financials-mapper/internal/synonym"
)

// Strategy is one way of reading a document. A nil Outcome with an error
// hands the document to the next strategy, unless the error is a context
// error or a terminal input error.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, doc *Document) (*Outcome, error)
}

const (
	StrategyAI       = "ai"
	StrategyOCR      = "ocr+parser"
	StrategySynonym  = "synonym"
	StrategyRawLines = "raw-lines"
)

var totalKeys = len(constants.CanonicalKeys())

func countNote(prefix string, n int) string {
	return fmt.Sprintf("%s found %d/%d fields", prefix, n, totalKeys)
}

// AIStrategy sends the document to a multimodal model.
type AIStrategy struct {
	extractor *llm.Extractor
	hasKey    bool
}

// NewAIStrategy wraps ext; a nil ext or no credential (configured or per
// document) makes the strategy decline every document.
func NewAIStrategy(ext *llm.Extractor, hasConfiguredKey bool) *AIStrategy {
	return &AIStrategy{extractor: ext, hasKey: hasConfiguredKey}
}

func (s *AIStrategy) Name() string { return StrategyAI }

func (s *AIStrategy) Attempt(ctx context.Context, doc *Document) (*Outcome, error) {
	if s.extractor == nil || (!s.hasKey && doc.APIKey == "") {
		return nil, fallThrough("AI not configured", common.ErrStrategyUnavailable)
	}
	ex, err := s.extractor.Extract(ctx, llm.Request{
		Document: doc.Data,
		MIMEType: doc.MIMEType,
		Filename: doc.Name,
		YearHint: doc.YearHint,
		APIKey:   doc.APIKey,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		switch {
		case errors.Is(err, common.ErrNoResult):
			return nil, fallThrough("AI returned no usable result", err)
		case errors.Is(err, llm.ErrModelsExhausted):
			return nil, fallThrough("AI models exhausted", err)
		default:
			return nil, fallThrough("AI unavailable", err)
		}
	}
	if len(ex.Mapped) == 0 {
		return nil, fallThrough("AI found no canonical fields", common.ErrNoResult)
	}

	fields := make([]entity.ExtractedField, 0, len(ex.Unmapped))
	for i, u := range ex.Unmapped {
		fields = append(fields, entity.ExtractedField{
			ID:         fmt.Sprintf("ai%03d", i+1),
			Label:      u.RawLabel,
			Value:      u.RawValue,
			Confidence: parser.ConfColon,
		})
	}
	return &Outcome{
		Fields:          ex.Mapped,
		Unmapped:        ex.Unmapped,
		ExtractedFields: fields,
		Summary:         countNote(fmt.Sprintf("AI extraction (%s)", ex.Model), len(ex.Mapped)),
	}, nil
}

// OCRStrategy recognizes documents whose text layer is missing or
// untrustworthy and pins parsed labels to canonical keys.
type OCRStrategy struct {
	engine  ocr.Engine
	matcher *synonym.Matcher
	logger  *slog.Logger
}

func NewOCRStrategy(engine ocr.Engine, matcher *synonym.Matcher, logger *slog.Logger) *OCRStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	if matcher == nil {
		matcher = synonym.NewMatcher()
	}
	return &OCRStrategy{engine: engine, matcher: matcher, logger: logger}
}

func (s *OCRStrategy) Name() string { return StrategyOCR }

func (s *OCRStrategy) Attempt(ctx context.Context, doc *Document) (*Outcome, error) {
	if doc.Verdict.Trustworthy() {
		return nil, fallThrough("text layer readable, OCR skipped", common.ErrStrategyUnavailable)
	}
	if s.engine == nil {
		return nil, fallThrough("OCR not configured", common.ErrStrategyUnavailable)
	}
	res, err := s.engine.Recognize(ctx, ocr.Input{Data: doc.Data, MIMEType: doc.MIMEType, Name: doc.Name, PageCount: doc.Pages})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, ocr.ErrToolMissing) {
			return nil, fallThrough("OCR tools missing", err)
		}
		return nil, fallThrough("OCR failed", err)
	}
	for _, w := range res.Warnings {
		s.logger.Warn("pipeline.ocr.warning", "document", doc.Name, "warning", w)
	}
	doc.OCRText = res.Text
	doc.OCREngine = res.Method

	if v := quality.Classify(res.Text, quality.Relaxed); v.Scanned {
		return nil, fallThrough("OCR text unreadable ("+v.Reason+")", common.ErrNoResult)
	}

	extracted := parser.Parse(res.Text)
	mapped := make(map[constants.CanonicalKey]float64)
	var unmapped []entity.UnmappedField
	for _, f := range extracted {
		if f.Value == "" {
			continue
		}
		val, isNum := parser.ParseAmount(f.Value)
		if key, ok := s.matcher.MapLabel(f.Label); ok && isNum {
			if _, seen := mapped[key]; !seen {
				mapped[key] = val
				continue
			}
		}
		if isNum {
			unmapped = append(unmapped, entity.UnmappedField{RawLabel: f.Label, RawValue: f.Value})
		}
	}
	if len(mapped) == 0 {
		return nil, fallThrough(fmt.Sprintf("OCR (%s) parser found 0/%d fields", res.Method, totalKeys), common.ErrNoResult)
	}
	return &Outcome{
		Fields:          mapped,
		Unmapped:        unmapped,
		ExtractedFields: extracted,
		Summary:         countNote(fmt.Sprintf("OCR (%s) + parser", res.Method), len(mapped)),
	}, nil
}

// SynonymStrategy scans the best available text against the synonym table.
type SynonymStrategy struct {
	matcher *synonym.Matcher
}

func NewSynonymStrategy(matcher *synonym.Matcher) *SynonymStrategy {
	if matcher == nil {
		matcher = synonym.NewMatcher()
	}
	return &SynonymStrategy{matcher: matcher}
}

func (s *SynonymStrategy) Name() string { return StrategySynonym }

func (s *SynonymStrategy) Attempt(_ context.Context, doc *Document) (*Outcome, error) {
	text := doc.BestText()
	if strings.TrimSpace(text) == "" {
		return nil, fallThrough("no text for synonym matching", common.ErrNoResult)
	}
	m := s.matcher.Match(text)
	if len(m.Fields) == 0 {
		return nil, fallThrough(countNote("synonym matching", 0), common.ErrNoResult)
	}
	unmapped := make([]entity.UnmappedField, 0, len(m.Lines))
	for _, line := range m.Lines {
		unmapped = append(unmapped, splitAmountLine(line))
	}
	return &Outcome{
		Fields:   m.Fields,
		Unmapped: unmapped,
		Summary:  countNote("synonym matching", len(m.Fields)),
	}, nil
}

// splitAmountLine separates the last amount on a line from the text before it.
func splitAmountLine(line string) entity.UnmappedField {
	amounts := parser.FindAmounts(line)
	if len(amounts) == 0 {
		return entity.UnmappedField{RawLabel: strings.TrimSpace(line)}
	}
	last := amounts[len(amounts)-1]
	label := strings.TrimRight(strings.TrimSpace(line[:last.Start]), " :=|-")
	if label == "" {
		label = strings.TrimSpace(line)
	}
	return entity.UnmappedField{RawLabel: label, RawValue: last.Text}
}

// RawLinesStrategy always succeeds: every parsed candidate becomes an
// unmapped field for manual review.
type RawLinesStrategy struct{}

func (RawLinesStrategy) Name() string { return StrategyRawLines }

func (RawLinesStrategy) Attempt(_ context.Context, doc *Document) (*Outcome, error) {
	text := doc.BestText()
	if strings.TrimSpace(text) == "" {
		return &Outcome{
			Fields:   map[constants.CanonicalKey]float64{},
			Unmapped: []entity.UnmappedField{},
			Summary:  "no readable text; 0/" + strconv.Itoa(totalKeys) + " fields",
		}, nil
	}
	extracted := parser.Parse(text)
	unmapped := make([]entity.UnmappedField, 0, len(extracted))
	for _, f := range extracted {
		unmapped = append(unmapped, entity.UnmappedField{RawLabel: f.Label, RawValue: f.Value})
	}
	return &Outcome{
		Fields:          map[constants.CanonicalKey]float64{},
		Unmapped:        unmapped,
		ExtractedFields: extracted,
		Summary:         fmt.Sprintf("no canonical fields found; %d lines returned for review", len(unmapped)),
	}, nil
}
