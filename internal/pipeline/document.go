// Package pipeline turns document bytes into a FinancialExtractionResult by
// walking an ordered chain of extraction strategies until one succeeds.
package pipeline

import (
	"errors"
	"strings"

	"github.com/joseph-ayodele/financials-mapper/constants"
	"github.com/joseph-ayodele/financials-mapper/internal/entity"
	"github.com/joseph-ayodele/financials-mapper/internal/quality"
)

// Input is one document handed to the pipeline.
type Input struct {
	Name     string
	Data     []byte
	YearHint string
	// APIKey overrides the configured AI credential for this document.
	APIKey string
}

// Document is the state shared by the strategies of a single run.
type Document struct {
	Name     string
	Data     []byte
	MIMEType string
	YearHint string
	APIKey   string

	// Text is the native text layer; empty for images.
	Text    string
	Pages   int
	Verdict quality.Verdict

	// OCRText is filled by the OCR strategy and reused by later ones.
	OCRText   string
	OCREngine string
}

// BestText is the most trustworthy text available so far.
func (d *Document) BestText() string {
	if d.OCRText != "" {
		return d.OCRText
	}
	return d.Text
}

// Outcome is a successful strategy result.
type Outcome struct {
	Fields   map[constants.CanonicalKey]float64
	Unmapped []entity.UnmappedField
	// ExtractedFields are the review candidates; the pipeline parses the best
	// text when a strategy leaves them empty.
	ExtractedFields []entity.ExtractedField
	// Summary is the closing clause of the note.
	Summary string
}

// FallThrough is returned by a strategy that declines a document. Reason ends
// up in the result note.
type FallThrough struct {
	Reason string
	Err    error
}

func (f *FallThrough) Error() string {
	if f.Err != nil {
		return f.Reason + ": " + f.Err.Error()
	}
	return f.Reason
}

func (f *FallThrough) Unwrap() error { return f.Err }

func fallThrough(reason string, err error) error {
	return &FallThrough{Reason: reason, Err: err}
}

// reasonOf renders a strategy error as a note clause.
func reasonOf(name string, err error) string {
	var ft *FallThrough
	if errors.As(err, &ft) && ft.Reason != "" {
		return ft.Reason
	}
	return name + " failed"
}

func buildNote(reasons []string, summary string) string {
	parts := make([]string, 0, len(reasons)+1)
	parts = append(parts, reasons...)
	if summary != "" {
		parts = append(parts, summary)
	}
	return strings.Join(parts, "; ")
}
