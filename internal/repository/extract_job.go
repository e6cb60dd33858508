package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/financials-mapper/internal/common"
	"github.com/joseph-ayodele/financials-mapper/internal/entity"
)

type ExtractJobRepository interface {
	Create(ctx context.Context, job *entity.ExtractJob) error
	Get(ctx context.Context, id uuid.UUID) (*entity.ExtractJob, error)
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]*entity.ExtractJob, error)
}

type extractJobRepo struct {
	db  *DB
	log *slog.Logger
}

func NewExtractJobRepository(db *DB, log *slog.Logger) ExtractJobRepository {
	return &extractJobRepo{db: db, log: log}
}

var extractJobColumns = []string{
	"id", "tenant_id", "document_name", "content_hash", "strategy", "grade", "field_count", "result", "created_at",
}

// Create assigns ID and CreatedAt when unset.
func (r *extractJobRepo) Create(ctx context.Context, job *entity.ExtractJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	result := string(job.ResultJSON)
	if result == "" {
		result = "{}"
	}
	q, args := r.db.builder().Insert(tableExtractJob).
		Columns(extractJobColumns...).
		Values(job.ID.String(), job.TenantID, job.DocumentName, job.ContentHash, job.Strategy,
			job.Grade, job.FieldCount, result, job.CreatedAt.UnixMilli()).
		Query()
	if _, err := r.db.exec(ctx, q, args); err != nil {
		r.log.Error("extract_job create failed", "tenant_id", job.TenantID, "document", job.DocumentName, "err", err)
		return dbError("create extract job", err)
	}
	r.log.Info("extract_job recorded", "job_id", job.ID, "tenant_id", job.TenantID, "strategy", job.Strategy, "grade", job.Grade)
	return nil
}

func (r *extractJobRepo) Get(ctx context.Context, id uuid.UUID) (*entity.ExtractJob, error) {
	q, args := r.db.builder().Select(extractJobColumns...).
		From(entsql.Table(tableExtractJob)).
		Where(entsql.EQ("id", id.String())).
		Query()
	jobs, err := r.scan(ctx, q, args)
	if err != nil {
		r.log.Error("extract_job get failed", "job_id", id, "err", err)
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, common.NewAppError("NOT_FOUND", "extract job "+id.String(), common.ErrNotFound)
	}
	return jobs[0], nil
}

// ListByTenant returns the newest jobs first; limit <= 0 means no limit.
func (r *extractJobRepo) ListByTenant(ctx context.Context, tenantID string, limit int) ([]*entity.ExtractJob, error) {
	sel := r.db.builder().Select(extractJobColumns...).
		From(entsql.Table(tableExtractJob)).
		Where(entsql.EQ("tenant_id", tenantID)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id"))
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	q, args := sel.Query()
	jobs, err := r.scan(ctx, q, args)
	if err != nil {
		r.log.Error("extract_job list failed", "tenant_id", tenantID, "err", err)
		return nil, err
	}
	return jobs, nil
}

func (r *extractJobRepo) scan(ctx context.Context, q string, args []any) ([]*entity.ExtractJob, error) {
	rows, err := r.db.query(ctx, q, args)
	if err != nil {
		return nil, dbError("query extract jobs", err)
	}
	defer rows.Close()

	var out []*entity.ExtractJob
	for rows.Next() {
		var (
			id, result string
			createdAt  int64
			job        entity.ExtractJob
		)
		if err := rows.Scan(&id, &job.TenantID, &job.DocumentName, &job.ContentHash, &job.Strategy,
			&job.Grade, &job.FieldCount, &result, &createdAt); err != nil {
			return nil, dbError("scan extract job", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, dbError("scan extract job", err)
		}
		job.ID = parsed
		job.ResultJSON = json.RawMessage(result)
		job.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("scan extract job", err)
	}
	return out, nil
}
