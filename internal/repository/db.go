package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/financials-mapper/internal/common"
)

// DB bundles the Ent SQL driver with whichever pool backs it.
type DB struct {
	drv     *entsql.Driver
	pool    *pgxpool.Pool
	dialect string
}

// Dialect returns the Ent dialect name (postgres or sqlite3).
func (d *DB) Dialect() string { return d.dialect }

func (d *DB) builder() *entsql.DialectBuilder { return entsql.Dialect(d.dialect) }

// IsPostgresDSN reports whether dsn selects the pgx driver.
func IsPostgresDSN(dsn string) bool {
	lower := strings.ToLower(dsn)
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}

// Open connects to Postgres (postgres:// DSNs) or SQLite (anything else) and
// returns a DB ready for Migrate.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	if IsPostgresDSN(cfg.DSN) {
		return openPostgres(ctx, cfg, logger)
	}
	return openSQLite(ctx, cfg, logger)
}

func openPostgres(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", "pgx")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "financials-mapper"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	db := stdlib.OpenDBFromPool(pool)
	logger.Info("successfully connected to database", "driver", "pgx")
	return &DB{drv: entsql.OpenDB(dialect.Postgres, db), pool: pool, dialect: dialect.Postgres}, nil
}

func openSQLite(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", "sqlite", "dsn", cfg.DSN)
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	// One writer; SQLite serializes anyway and this avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	logger.Info("successfully connected to database", "driver", "sqlite")
	return &DB{drv: entsql.OpenDB(dialect.SQLite, db), dialect: dialect.SQLite}, nil
}

// Close closes the database connections gracefully
func (d *DB) Close(logger *slog.Logger) {
	if d == nil {
		return
	}
	logger.Info("closing database connections")
	if d.drv != nil {
		if err := d.drv.Close(); err != nil {
			logger.Error("failed to close sql driver", "error", err)
		}
	}
	if d.pool != nil {
		d.pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration, logger *slog.Logger) error {
	logger.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	var err error
	if d.pool != nil {
		err = d.pool.Ping(ctx)
	} else {
		err = d.drv.DB().PingContext(ctx)
	}
	if err != nil {
		logger.Error("database ping failed", "error", err)
		return common.NewAppError("DATABASE_ERROR", "ping failed", fmt.Errorf("%w: %v", common.ErrDatabase, err))
	}
	logger.Debug("database ping successful")
	return nil
}

func (d *DB) exec(ctx context.Context, query string, args []any) (sql.Result, error) {
	var res sql.Result
	if args == nil {
		args = []any{}
	}
	if err := d.drv.Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (d *DB) query(ctx context.Context, query string, args []any) (*entsql.Rows, error) {
	rows := &entsql.Rows{}
	if args == nil {
		args = []any{}
	}
	if err := d.drv.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	return rows, nil
}
