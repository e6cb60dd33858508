// Package openai reads documents through an OpenAI-compatible chat completions API.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/financials-mapper/constants"
	"github.com/joseph-ayodele/financials-mapper/internal/llm"
)

var defaultModels = []string{"gpt-4o-mini", "gpt-4o"}

// Config for the OpenAI provider.
type Config struct {
	APIKey  string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL string        // default https://api.openai.com/v1
	Timeout time.Duration // http client timeout
}

type Provider struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Provider {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) DefaultModels() []string {
	out := make([]string, len(defaultModels))
	copy(out, defaultModels)
	return out
}

func (p *Provider) Generate(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	key := req.APIKey
	if key == "" {
		key = p.cfg.APIKey
	}
	if key == "" {
		return llm.GenerateResponse{}, errors.New("openai: no API key configured")
	}

	body := map[string]any{
		"model":           req.Model,
		"temperature":     req.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": req.Prompt},
					attachment(req),
				},
			},
		},
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := llm.SendJSON(ctx, p.http, endpoint, body, map[string]string{"Authorization": "Bearer " + key}, p.logger)
	if err != nil {
		var se *llm.StatusError
		if errors.As(err, &se) {
			se.Provider, se.Model = p.Name(), req.Model
		}
		return llm.GenerateResponse{}, err
	}

	var cc struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return llm.GenerateResponse{}, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return llm.GenerateResponse{Model: cc.Model}, nil
	}
	return llm.GenerateResponse{Text: strings.TrimSpace(cc.Choices[0].Message.Content), Model: cc.Model}, nil
}

// attachment encodes the document as a content part: PDFs as a file part,
// images as an image_url part.
func attachment(req llm.GenerateRequest) map[string]any {
	dataURL := "data:" + req.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(req.Document)
	if req.MIMEType != constants.MIMEPDF {
		return map[string]any{"type": "image_url", "image_url": map[string]any{"url": dataURL}}
	}
	name := req.Filename
	if name == "" {
		name = "document.pdf"
	}
	return map[string]any{
		"type": "file",
		"file": map[string]any{"filename": name, "file_data": dataURL},
	}
}
