package ocr

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/financials-mapper/internal/common"
)

// FromConfig maps the application OCR settings onto the engine Config.
func FromConfig(c common.OCRConfig) Config {
	return Config{
		PdftoppmPath:        c.Pdftoppm,
		TesseractPath:       c.Tesseract,
		Language:            c.Language,
		TessdataDir:         c.TessdataDir,
		DPI:                 c.DPI,
		MaxPages:            c.MaxPages,
		Timeout:             c.Timeout,
		EnableTSVConfidence: true,
	}
}

// NewEngine builds the configured engine. It returns nil for engine "none".
func NewEngine(ctx context.Context, c common.OCRConfig, logger *slog.Logger) (Engine, error) {
	switch c.Engine {
	case "", "tesseract":
		return NewTesseractEngine(FromConfig(c), logger), nil
	case "vision":
		return NewVisionEngine(ctx, FromConfig(c), c.VisionCredentials, logger)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown ocr engine %q", c.Engine)
	}
}
