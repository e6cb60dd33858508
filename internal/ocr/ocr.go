package ocr

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/financials-mapper/constants"
)

// Config holds OCR toolchain settings.
type Config struct {
	PdftoppmPath  string
	TesseractPath string
	Language      string
	TessdataDir   string
	DPI           int
	MaxPages      int
	PSM           int
	OEM           int
	Timeout       time.Duration

	EnableTSVConfidence bool
}

// Input is one document handed to an Engine.
type Input struct {
	Data     []byte
	MIMEType string
	Name     string
	// PageCount is the PDF page count when the caller already knows it; zero
	// makes the engine read it from the document.
	PageCount int
}

// Result is the text recovered from a document.
type Result struct {
	Text       string
	Pages      int
	Method     string
	Language   string
	Confidence float64
	Duration   time.Duration
	Warnings   []string
}

// Engine turns a scanned document into text.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (*Result, error)
}

func (c Config) withDefaults() Config {
	if c.PdftoppmPath == "" {
		c.PdftoppmPath = "pdftoppm"
	}
	if c.TesseractPath == "" {
		c.TesseractPath = "tesseract"
	}
	if c.Language == "" {
		c.Language = "eng"
	}
	if c.DPI <= 0 {
		c.DPI = 300
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 20
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Minute
	}
	return c
}

func validInput(in Input) error {
	if len(in.Data) == 0 {
		return NewError("recognize", ErrUnsupportedInput, "empty document")
	}
	switch in.MIMEType {
	case constants.MIMEPDF, constants.MIMEPNG, constants.MIMEJPEG:
		return nil
	default:
		return NewError("recognize", ErrUnsupportedInput, in.MIMEType)
	}
}

func nopLogger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
