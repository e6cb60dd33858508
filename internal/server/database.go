package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/financials-mapper/internal/common"
	repo "github.com/joseph-ayodele/financials-mapper/internal/repository"
)

const pingTimeout = 5 * time.Second

// ConnectDB opens the database, pings it and applies the schema.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repo.DB, error) {
	db, err := repo.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := db.HealthCheck(ctx, pingTimeout, logger); err != nil {
		db.Close(logger)
		return nil, err
	}
	if err := db.Migrate(ctx, logger); err != nil {
		db.Close(logger)
		return nil, err
	}
	logger.Info("database ready", "dialect", db.Dialect())
	return db, nil
}
