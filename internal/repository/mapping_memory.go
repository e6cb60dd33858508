package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/financials-mapper/internal/common"
	"github.com/joseph-ayodele/financials-mapper/internal/mapping"
)

// MappingMemoryRepository stores one JSON document per tenant with a version
// column for optimistic concurrency.
type MappingMemoryRepository struct {
	db  *DB
	log *slog.Logger
}

var _ mapping.Repository = (*MappingMemoryRepository)(nil)

func NewMappingMemoryRepository(db *DB, log *slog.Logger) *MappingMemoryRepository {
	return &MappingMemoryRepository{db: db, log: log}
}

func (r *MappingMemoryRepository) Load(ctx context.Context, tenantID string) (*mapping.Store, error) {
	doc, version, found, err := r.selectRow(ctx, tenantID)
	if err != nil {
		r.log.Error("mapping_memory load failed", "tenant_id", tenantID, "err", err)
		return nil, dbError("load mapping memory", err)
	}
	st := mapping.NewStore(tenantID)
	if !found {
		return st, nil
	}
	if err := json.Unmarshal([]byte(doc), st); err != nil {
		return nil, dbError("decode mapping memory", err)
	}
	if st.Entries == nil {
		st.Entries = []mapping.Entry{}
	}
	st.TenantID = tenantID
	st.Version = version
	return st, nil
}

func (r *MappingMemoryRepository) Save(ctx context.Context, s *mapping.Store) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return dbError("encode mapping memory", err)
	}
	updatedAt := s.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	if s.Version == 0 {
		q, args := r.db.builder().Insert(tableMappingMemory).
			Columns("tenant_id", "store", "version", "updated_at").
			Values(s.TenantID, string(doc), int64(1), updatedAt.UnixMilli()).
			Query()
		if _, err := r.db.exec(ctx, q, args); err != nil {
			// A concurrent first write wins the primary key.
			if _, _, found, selErr := r.selectRow(ctx, s.TenantID); selErr == nil && found {
				r.log.Warn("mapping_memory insert lost race", "tenant_id", s.TenantID)
				return common.ErrVersionConflict
			}
			r.log.Error("mapping_memory insert failed", "tenant_id", s.TenantID, "err", err)
			return dbError("insert mapping memory", err)
		}
		s.Version = 1
		r.log.Debug("mapping_memory created", "tenant_id", s.TenantID)
		return nil
	}

	q, args := r.db.builder().Update(tableMappingMemory).
		Set("store", string(doc)).
		Set("version", s.Version+1).
		Set("updated_at", updatedAt.UnixMilli()).
		Where(entsql.And(
			entsql.EQ("tenant_id", s.TenantID),
			entsql.EQ("version", s.Version),
		)).
		Query()
	res, err := r.db.exec(ctx, q, args)
	if err != nil {
		r.log.Error("mapping_memory update failed", "tenant_id", s.TenantID, "err", err)
		return dbError("update mapping memory", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbError("update mapping memory", err)
	}
	if n == 0 {
		r.log.Warn("mapping_memory version conflict", "tenant_id", s.TenantID, "version", s.Version)
		return common.ErrVersionConflict
	}
	s.Version++
	r.log.Debug("mapping_memory saved", "tenant_id", s.TenantID, "version", s.Version)
	return nil
}

func (r *MappingMemoryRepository) selectRow(ctx context.Context, tenantID string) (doc string, version int64, found bool, err error) {
	q, args := r.db.builder().Select("store", "version").
		From(entsql.Table(tableMappingMemory)).
		Where(entsql.EQ("tenant_id", tenantID)).
		Query()
	rows, err := r.db.query(ctx, q, args)
	if err != nil {
		return "", 0, false, err
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&doc, &version); err != nil {
			return "", 0, false, err
		}
		found = true
	}
	return doc, version, found, rows.Err()
}

func dbError(op string, err error) error {
	return common.NewAppError("DATABASE_ERROR", op, fmt.Errorf("%w: %v", common.ErrDatabase, err))
}
