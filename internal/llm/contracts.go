package llm

import (
	"context"

	"github.com/joseph-ayodele/financials-mapper/constants"
	"github.com/joseph-ayodele/financials-mapper/internal/entity"
)

// GenerateRequest is one multimodal call against a single model.
type GenerateRequest struct {
	Model       string
	Prompt      string
	Document    []byte
	MIMEType    string
	Filename    string
	Temperature float32
	// APIKey overrides the provider's configured key for this call.
	APIKey string
}

// GenerateResponse is the raw text the model returned.
type GenerateResponse struct {
	Text  string
	Model string
}

// Provider is one AI vendor able to read a document attachment.
type Provider interface {
	Name() string
	DefaultModels() []string
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
}

// Request is one document handed to the Extractor.
type Request struct {
	Document []byte
	MIMEType string
	Filename string
	YearHint string
	APIKey   string
}

// Extraction is the validated model answer.
type Extraction struct {
	Mapped   map[constants.CanonicalKey]float64
	Unmapped []entity.UnmappedField
	Model    string
	Dropped  []string
	Raw      []byte
}
