package common

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	AI       AIConfig
	Matching MatchingConfig
	Pipeline PipelineConfig
	Ingest   IngestConfig
	Log      LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
	Workers  int
	Queue    int
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine            string // "tesseract" | "vision" | "none"
	Pdftoppm          string
	Tesseract         string
	Language          string
	TessdataDir       string
	DPI               int
	MaxPages          int
	Timeout           time.Duration
	VisionCredentials string
}

// AIConfig holds AI-provider configuration
type AIConfig struct {
	Provider    string // "gemini" | "openai" | "none"
	APIKey      string
	BaseURL     string
	Models      []string
	Temperature float32
	Timeout     time.Duration
}

// MatchingConfig holds the mapping-memory matcher thresholds.
type MatchingConfig struct {
	ContainsScore    float64
	OverlapThreshold float64
	OverlapBase      float64
	OverlapScale     float64
	MinConfidence    float64
}

// PipelineConfig holds per-document limits.
type PipelineConfig struct {
	Timeout  time.Duration
	MaxBytes int64
}

// IngestConfig holds watch-folder settings.
type IngestConfig struct {
	Roots       []string
	TenantID    string
	InitialScan bool
	Debounce    time.Duration
	OutputDir   string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

var defaults = map[string]any{
	"DB_URL":                         "file:financials-mapper.db?_pragma=busy_timeout(5000)",
	"DB_MAX_CONNS":                   20,
	"DB_MIN_CONNS":                   2,
	"DB_MAX_CONN_LIFETIME":           30 * time.Minute,
	"DB_MAX_CONN_IDLE_TIME":          5 * time.Minute,
	"DB_DIAL_TIMEOUT":                3 * time.Second,
	"DB_STATEMENT_TIMEOUT":           time.Duration(0),
	"GRPC_ADDR":                      ":8080",
	"WORKERS":                        4,
	"QUEUE_SIZE":                     256,
	"OCR_ENGINE":                     "tesseract",
	"PDFTOPPM":                       "pdftoppm",
	"TESSERACT":                      "tesseract",
	"OCR_LANG":                       "eng",
	"TESSDATA_PREFIX":                "",
	"OCR_DPI":                        300,
	"OCR_MAX_PAGES":                  20,
	"OCR_TIMEOUT":                    2 * time.Minute,
	"GOOGLE_APPLICATION_CREDENTIALS": "",
	"AI_PROVIDER":                    "gemini",
	"AI_API_KEY":                     "",
	"AI_BASE_URL":                    "",
	"AI_MODELS":                      "",
	"AI_TEMPERATURE":                 0.0,
	"AI_TIMEOUT":                     60 * time.Second,
	"MATCH_CONTAINS_SCORE":           0.85,
	"MATCH_OVERLAP_THRESHOLD":        0.60,
	"MATCH_OVERLAP_BASE":             0.5,
	"MATCH_OVERLAP_SCALE":            0.3,
	"MATCH_MIN_CONFIDENCE":           0.5,
	"PIPELINE_TIMEOUT":               5 * time.Minute,
	"MAX_DOCUMENT_BYTES":             int64(50 << 20),
	"INBOX_DIRS":                     "",
	"INBOX_TENANT":                   "default",
	"INBOX_INITIAL_SCAN":             true,
	"INBOX_DEBOUNCE":                 750 * time.Millisecond,
	"OUTPUT_DIR":                     "",
	"LOG_LEVEL":                      "info",
	"LOG_FORMAT":                     "text",
}

// NewViper returns a viper instance reading the environment with every default registered.
func NewViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()
	return v
}

// LoadEnvFiles loads .env style files into the process environment; missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// LoadConfig builds a Config from v (see NewViper) and validates it.
func LoadConfig(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = NewViper()
	}
	cfg := &Config{
		Database: DatabaseConfig{
			DSN:              v.GetString("DB_URL"),
			MaxConns:         v.GetInt32("DB_MAX_CONNS"),
			MinConns:         v.GetInt32("DB_MIN_CONNS"),
			MaxConnLifetime:  v.GetDuration("DB_MAX_CONN_LIFETIME"),
			MaxConnIdleTime:  v.GetDuration("DB_MAX_CONN_IDLE_TIME"),
			DialTimeout:      v.GetDuration("DB_DIAL_TIMEOUT"),
			StatementTimeout: v.GetDuration("DB_STATEMENT_TIMEOUT"),
		},
		Server: ServerConfig{
			GRPCAddr: v.GetString("GRPC_ADDR"),
			Workers:  v.GetInt("WORKERS"),
			Queue:    v.GetInt("QUEUE_SIZE"),
		},
		OCR: OCRConfig{
			Engine:            strings.ToLower(v.GetString("OCR_ENGINE")),
			Pdftoppm:          v.GetString("PDFTOPPM"),
			Tesseract:         v.GetString("TESSERACT"),
			Language:          v.GetString("OCR_LANG"),
			TessdataDir:       v.GetString("TESSDATA_PREFIX"),
			DPI:               v.GetInt("OCR_DPI"),
			MaxPages:          v.GetInt("OCR_MAX_PAGES"),
			Timeout:           v.GetDuration("OCR_TIMEOUT"),
			VisionCredentials: v.GetString("GOOGLE_APPLICATION_CREDENTIALS"),
		},
		AI: AIConfig{
			Provider:    strings.ToLower(v.GetString("AI_PROVIDER")),
			APIKey:      firstNonEmpty(v.GetString("AI_API_KEY"), v.GetString("GEMINI_API_KEY"), v.GetString("OPENAI_API_KEY")),
			BaseURL:     v.GetString("AI_BASE_URL"),
			Models:      splitList(v.GetString("AI_MODELS")),
			Temperature: float32(v.GetFloat64("AI_TEMPERATURE")),
			Timeout:     v.GetDuration("AI_TIMEOUT"),
		},
		Matching: MatchingConfig{
			ContainsScore:    v.GetFloat64("MATCH_CONTAINS_SCORE"),
			OverlapThreshold: v.GetFloat64("MATCH_OVERLAP_THRESHOLD"),
			OverlapBase:      v.GetFloat64("MATCH_OVERLAP_BASE"),
			OverlapScale:     v.GetFloat64("MATCH_OVERLAP_SCALE"),
			MinConfidence:    v.GetFloat64("MATCH_MIN_CONFIDENCE"),
		},
		Pipeline: PipelineConfig{
			Timeout:  v.GetDuration("PIPELINE_TIMEOUT"),
			MaxBytes: v.GetInt64("MAX_DOCUMENT_BYTES"),
		},
		Ingest: IngestConfig{
			Roots:       splitList(v.GetString("INBOX_DIRS")),
			TenantID:    v.GetString("INBOX_TENANT"),
			InitialScan: v.GetBool("INBOX_INITIAL_SCAN"),
			Debounce:    v.GetDuration("INBOX_DEBOUNCE"),
			OutputDir:   v.GetString("OUTPUT_DIR"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	switch c.OCR.Engine {
	case "tesseract", "vision", "none":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("OCR_ENGINE %q is not one of tesseract, vision, none", c.OCR.Engine), ErrInvalidInput)
	}
	switch c.AI.Provider {
	case "gemini", "openai", "none":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("AI_PROVIDER %q is not one of gemini, openai, none", c.AI.Provider), ErrInvalidInput)
	}
	m := c.Matching
	for name, val := range map[string]float64{
		"MATCH_CONTAINS_SCORE":    m.ContainsScore,
		"MATCH_OVERLAP_THRESHOLD": m.OverlapThreshold,
		"MATCH_OVERLAP_BASE":      m.OverlapBase,
		"MATCH_OVERLAP_SCALE":     m.OverlapScale,
		"MATCH_MIN_CONFIDENCE":    m.MinConfidence,
	} {
		if val < 0 || val > 1 {
			return NewAppError("CONFIG_ERROR", fmt.Sprintf("%s must be within [0,1], got %v", name, val), ErrInvalidInput)
		}
	}
	if m.OverlapBase+m.OverlapScale > 1 {
		return NewAppError("CONFIG_ERROR", "MATCH_OVERLAP_BASE + MATCH_OVERLAP_SCALE must not exceed 1", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	return nil
}

// AIEnabled reports whether an AI provider can be constructed.
func (c *Config) AIEnabled() bool {
	return c.AI.Provider != "none" && c.AI.APIKey != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
