package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/joseph-ayodele/financials-mapper/internal/async"
	"github.com/joseph-ayodele/financials-mapper/internal/common"
	"github.com/joseph-ayodele/financials-mapper/internal/core"
	"github.com/joseph-ayodele/financials-mapper/internal/export"
	"github.com/joseph-ayodele/financials-mapper/internal/ingest"
	"github.com/joseph-ayodele/financials-mapper/internal/mapping"
	repo "github.com/joseph-ayodele/financials-mapper/internal/repository"
	"github.com/joseph-ayodele/financials-mapper/internal/server"
)

const drainTimeout = 30 * time.Second

func main() {
	if err := common.LoadEnvFiles(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(2)
	}
	cfg, err := common.LoadConfig(common.NewViper())
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(2)
	}
	logger := common.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fieldmapperd exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close(logger)

	pipe, engines, err := core.BuildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := engines.Close(); err != nil {
			logger.Warn("engine close failed", "error", err)
		}
	}()

	jobsRepo := repo.NewExtractJobRepository(db, logger)
	memory := mapping.NewService(repo.NewMappingMemoryRepository(db, logger), mapping.MatchConfigFrom(cfg.Matching), logger)
	processor := core.NewProcessor(logger, pipe, memory, jobsRepo)
	svc := server.NewFieldMapperService(processor, memory, export.NewService(jobsRepo, memory, logger), logger)
	grpcServer, healthServer := server.NewGRPCServer(svc, cfg.Pipeline.MaxBytes, logger)

	addr := cfg.Server.GRPCAddr
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("fieldmapperd listening", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})

	var queue *async.ProcessorQueue
	if len(cfg.Ingest.Roots) > 0 {
		queue = async.NewProcessorQueue(processor, logger,
			async.WithWorkers(cfg.Server.Workers),
			async.WithQueueSize(cfg.Server.Queue),
			async.WithProcessTimeout(cfg.Pipeline.Timeout),
			async.WithResultFunc(ingest.ResultWriter(cfg.Ingest.OutputDir, logger)),
		)
		inbox := ingest.NewInbox(queue, ingest.WatchConfig{
			Roots:       cfg.Ingest.Roots,
			InitialScan: cfg.Ingest.InitialScan,
			Debounce:    cfg.Ingest.Debounce,
			SkipHidden:  true,
		}, cfg.Ingest.TenantID, logger)
		g.Go(func() error { return inbox.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		if queue != nil {
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
			queue.Shutdown(drainCtx)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("stopped")
	return err
}
