package mapping

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/joseph-ayodele/financials-mapper/internal/common"
)

// MemoryRepository keeps stores in process, serialized to JSON like the SQL
// repository so callers never share slices with it.
type MemoryRepository struct {
	mu   sync.Mutex
	rows map[string]memoryRow
}

type memoryRow struct {
	doc     []byte
	version int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]memoryRow)}
}

func (r *MemoryRepository) Load(_ context.Context, tenantID string) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[tenantID]
	if !ok {
		return NewStore(tenantID), nil
	}
	st := NewStore(tenantID)
	if err := json.Unmarshal(row.doc, st); err != nil {
		return nil, err
	}
	if st.Entries == nil {
		st.Entries = []Entry{}
	}
	st.Version = row.version
	return st, nil
}

func (r *MemoryRepository) Save(_ context.Context, s *Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rows[s.TenantID].version != s.Version {
		return common.ErrVersionConflict
	}
	doc, err := json.Marshal(s)
	if err != nil {
		return err
	}
	s.Version++
	r.rows[s.TenantID] = memoryRow{doc: doc, version: s.Version}
	return nil
}
