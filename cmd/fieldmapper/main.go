package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/joseph-ayodele/financials-mapper/internal/common"
	"github.com/joseph-ayodele/financials-mapper/internal/core"
	"github.com/joseph-ayodele/financials-mapper/internal/export"
	"github.com/joseph-ayodele/financials-mapper/internal/mapping"
	repo "github.com/joseph-ayodele/financials-mapper/internal/repository"
	"github.com/joseph-ayodele/financials-mapper/internal/server"
)

var version = "0.1.0"

// v holds environment, .env and flag values; flags win when set.
var v = common.NewViper()

var rootCmd = &cobra.Command{
	Use:   "fieldmapper",
	Short: "Extract canonical financial figures from PDFs and manage mapping memory",
	Long: `fieldmapper reads audited financial statements (text PDFs, scans and
images), extracts ten canonical figures through a degrading strategy chain
(AI, OCR + parser, synonym matching, raw lines) and manages the per-tenant
mapping memory that proposes label assignments for new documents.

Configuration comes from the environment (see .env), overridden by flags.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		files, _ := cmd.Flags().GetStringSlice("env-file")
		return common.LoadEnvFiles(files...)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringSlice("env-file", nil, "env files to load (default .env)")
	pf.String("db-url", "", "database DSN (postgres://... or file:...)")
	pf.String("ai-provider", "", "gemini, openai or none")
	pf.String("ocr-engine", "", "tesseract, vision or none")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.String("log-format", "", "text or json")
	pf.StringP("tenant", "t", "default", "tenant id")

	bind(pf, map[string]string{
		"DB_URL":      "db-url",
		"AI_PROVIDER": "ai-provider",
		"OCR_ENGINE":  "ocr-engine",
		"LOG_LEVEL":   "log-level",
		"LOG_FORMAT":  "log-format",
	})
}

func bind(fs *pflag.FlagSet, keys map[string]string) {
	for key, flag := range keys {
		_ = v.BindPFlag(key, fs.Lookup(flag))
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is the per-invocation wiring shared by subcommands.
type app struct {
	cfg    *common.Config
	logger *slog.Logger
	db     *repo.DB
}

func newApp() (*app, error) {
	cfg, err := common.LoadConfig(v)
	if err != nil {
		return nil, err
	}
	// stdout carries command output
	logger := common.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) openDB(ctx context.Context) (*repo.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := server.ConnectDB(ctx, a.cfg.Database, a.logger)
	if err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

func (a *app) memory(ctx context.Context) (*mapping.Service, error) {
	db, err := a.openDB(ctx)
	if err != nil {
		return nil, err
	}
	return mapping.NewService(repo.NewMappingMemoryRepository(db, a.logger), mapping.MatchConfigFrom(a.cfg.Matching), a.logger), nil
}

func (a *app) exports(ctx context.Context) (*export.Service, error) {
	mem, err := a.memory(ctx)
	if err != nil {
		return nil, err
	}
	return export.NewService(repo.NewExtractJobRepository(a.db, a.logger), mem, a.logger), nil
}

// processor builds the pipeline; persist adds mapping proposals and job records.
func (a *app) processor(ctx context.Context, persist bool) (*core.Processor, *core.Engines, error) {
	pipe, engines, err := core.BuildPipeline(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, nil, err
	}
	if !persist {
		return core.NewProcessor(a.logger, pipe, nil, nil), engines, nil
	}
	mem, err := a.memory(ctx)
	if err != nil {
		_ = engines.Close()
		return nil, nil, err
	}
	return core.NewProcessor(a.logger, pipe, mem, repo.NewExtractJobRepository(a.db, a.logger)), engines, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close(a.logger)
	}
}

func tenantOf(cmd *cobra.Command) string {
	t, _ := cmd.Flags().GetString("tenant")
	return t
}

func printJSON(cmd *cobra.Command, val any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(val)
}
