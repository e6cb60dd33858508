package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/financials-mapper/internal/common"
)

const (
	tableMappingMemory = "mapping_memory"
	tableExtractJob    = "extract_job"
)

// The DDL stays within the subset Postgres and SQLite agree on.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS mapping_memory (
		tenant_id  TEXT PRIMARY KEY,
		store      TEXT NOT NULL,
		version    BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS extract_job (
		id            TEXT PRIMARY KEY,
		tenant_id     TEXT NOT NULL,
		document_name TEXT NOT NULL,
		content_hash  TEXT NOT NULL,
		strategy      TEXT NOT NULL,
		grade         TEXT NOT NULL,
		field_count   INTEGER NOT NULL,
		result        TEXT NOT NULL,
		created_at    BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS extract_job_tenant_created ON extract_job (tenant_id, created_at)`,
}

// Migrate creates the tables this service needs. It is idempotent.
func (d *DB) Migrate(ctx context.Context, logger *slog.Logger) error {
	for i, stmt := range migrations {
		if _, err := d.exec(ctx, stmt, nil); err != nil {
			logger.Error("migration failed", "step", i, "error", err)
			return common.NewAppError("DATABASE_ERROR", fmt.Sprintf("migration step %d", i), fmt.Errorf("%w: %v", common.ErrDatabase, err))
		}
	}
	logger.Info("database schema ready", "dialect", d.dialect)
	return nil
}
