package common

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(NewViper())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.GRPCAddr)
	assert.Equal(t, "tesseract", cfg.OCR.Engine)
	assert.Equal(t, 300, cfg.OCR.DPI)
	assert.Equal(t, 2*time.Minute, cfg.OCR.Timeout)
	assert.InDelta(t, 0.60, cfg.Matching.OverlapThreshold, 1e-9)
	assert.InDelta(t, 0.5, cfg.Matching.OverlapBase, 1e-9)
	assert.InDelta(t, 0.3, cfg.Matching.OverlapScale, 1e-9)
	assert.InDelta(t, 0.85, cfg.Matching.ContainsScore, 1e-9)
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.Timeout)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("AI_MODELS", "gemini-2.0-flash, gemini-1.5-flash ,")
	t.Setenv("MATCH_OVERLAP_THRESHOLD", "0.7")
	t.Setenv("OCR_TIMEOUT", "45s")
	t.Setenv("GEMINI_API_KEY", "k-123")

	cfg, err := LoadConfig(NewViper())
	require.NoError(t, err)

	assert.Equal(t, []string{"gemini-2.0-flash", "gemini-1.5-flash"}, cfg.AI.Models)
	assert.InDelta(t, 0.7, cfg.Matching.OverlapThreshold, 1e-9)
	assert.Equal(t, 45*time.Second, cfg.OCR.Timeout)
	assert.Equal(t, "k-123", cfg.AI.APIKey)
	assert.True(t, cfg.AIEnabled())
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown ocr engine", "OCR_ENGINE", "abbyy"},
		{"unknown provider", "AI_PROVIDER", "llama"},
		{"threshold above one", "MATCH_OVERLAP_THRESHOLD", "1.5"},
		{"base plus scale above one", "MATCH_OVERLAP_SCALE", "0.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := LoadConfig(NewViper())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("FM_TEST_ONLY_KEY=from-file\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("FM_TEST_ONLY_KEY") })

	require.NoError(t, LoadEnvFiles(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("FM_TEST_ONLY_KEY"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(EmptyDocumentError()))
	assert.True(t, IsTerminal(UnsupportedTypeError("text/plain")))
	assert.ErrorIs(t, UnsupportedTypeError("text/plain"), ErrUnsupportedType)
	assert.False(t, IsTerminal(ErrNoResult))
}
