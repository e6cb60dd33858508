// Package gemini reads documents with Google's Gemini models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/financials-mapper/internal/llm"
)

var defaultModels = []string{"gemini-2.5-flash", "gemini-2.0-flash", "gemini-1.5-flash"}

// Config for the Gemini provider.
type Config struct {
	APIKey string
}

// Provider implements llm.Provider over the genai client.
type Provider struct {
	client *genai.Client
	logger *slog.Logger
}

// New dials the Gemini API. An empty APIKey defers the key to each request.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{logger: logger}
	if cfg.APIKey != "" {
		c, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		p.client = c
	}
	return p, nil
}

func (p *Provider) Name() string { return "gemini" }

func (p *Provider) DefaultModels() []string {
	out := make([]string, len(defaultModels))
	copy(out, defaultModels)
	return out
}

// Generate sends the prompt and the document as an inline blob.
func (p *Provider) Generate(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	client := p.client
	if req.APIKey != "" {
		c, err := genai.NewClient(ctx, option.WithAPIKey(req.APIKey))
		if err != nil {
			return llm.GenerateResponse{}, fmt.Errorf("create gemini client: %w", err)
		}
		defer func() {
			if err := c.Close(); err != nil {
				p.logger.Warn("gemini.client.close_error", "error", err)
			}
		}()
		client = c
	}
	if client == nil {
		return llm.GenerateResponse{}, errors.New("gemini: no API key configured")
	}

	model := client.GenerativeModel(req.Model)
	model.SetTemperature(req.Temperature)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx,
		genai.Text(req.Prompt),
		genai.Blob{MIMEType: req.MIMEType, Data: req.Document},
	)
	if err != nil {
		return llm.GenerateResponse{}, err
	}
	return llm.GenerateResponse{Text: responseText(resp), Model: req.Model}, nil
}

func (p *Provider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}
