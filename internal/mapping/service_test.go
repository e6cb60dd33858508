package mapping

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/financials-mapper/internal/common"
	"github.com/joseph-ayodele/financials-mapper/internal/entity"
)

// conflictingRepo fails the first n saves as if another process had written.
type conflictingRepo struct {
	*MemoryRepository
	mu        sync.Mutex
	conflicts int
	saves     int
}

func (r *conflictingRepo) Save(ctx context.Context, s *Store) error {
	r.mu.Lock()
	r.saves++
	if r.conflicts > 0 {
		r.conflicts--
		r.mu.Unlock()
		return fmt.Errorf("row moved: %w", common.ErrVersionConflict)
	}
	r.mu.Unlock()
	return r.MemoryRepository.Save(ctx, s)
}

func newService(repo Repository) *Service {
	return NewService(repo, DefaultMatchConfig(), nil, WithClock(func() time.Time { return t0 }))
}

func TestService_LearnThenAutoApply(t *testing.T) {
	ctx := context.Background()
	svc := newService(NewMemoryRepository())

	fields := []entity.ExtractedField{{ID: "f001", Label: "Sundry Creditors", Value: "1,23,456.00"}}
	res, err := svc.Learn(ctx, "acme", []Assignment{{SourceKey: "f001", TargetKey: "accounts_payable"}}, fields)
	require.NoError(t, err)
	assert.Equal(t, 1, res.EntryCount)
	assert.Equal(t, 1, res.LabelCount)

	got, err := svc.AutoApply(ctx, "acme", []entity.ExtractedField{{ID: "x1", Label: "sundry creditors"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "accounts_payable", got[0].TargetKey)

	other, err := svc.AutoApply(ctx, "globex", []entity.ExtractedField{{ID: "x1", Label: "sundry creditors"}})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestService_ConcurrentLearnsAreSerialized(t *testing.T) {
	ctx := context.Background()
	svc := newService(NewMemoryRepository())

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Learn(ctx, "acme", []Assignment{{SourceKey: fmt.Sprintf("label %d", i), TargetKey: "turnover"}}, nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	st, err := svc.Get(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, st.Entries, 1)
	assert.Equal(t, n, st.Entries[0].UsageCount)
	assert.Len(t, st.Entries[0].SourceLabels, n)
	assert.Equal(t, int64(n), st.Version)
}

func TestService_RetriesVersionConflicts(t *testing.T) {
	ctx := context.Background()
	repo := &conflictingRepo{MemoryRepository: NewMemoryRepository(), conflicts: 2}
	svc := newService(repo)

	_, err := svc.AddLabel(ctx, "acme", TargetField, "interest", "Finance costs")
	require.NoError(t, err)
	assert.Equal(t, 3, repo.saves)

	repo.conflicts = 5
	_, err = svc.AddLabel(ctx, "acme", TargetField, "interest", "Bank interest")
	assert.ErrorIs(t, err, common.ErrVersionConflict)
}

func TestService_RemoveLastLabelDeletesEntry(t *testing.T) {
	ctx := context.Background()
	svc := newService(NewMemoryRepository())

	_, err := svc.AddLabel(ctx, "acme", TargetField, "purchases", "Purchase Accounts")
	require.NoError(t, err)

	res, err := svc.RemoveLabel(ctx, "acme", TargetField, "purchases", "purchase accounts")
	require.NoError(t, err)
	assert.True(t, res.EntryDeleted)

	st, err := svc.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, -1, st.Find(TargetField, "purchases"))
	assert.NotNil(t, st.Entries)
	assert.Empty(t, st.Entries)
}

func TestService_NoOpDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	repo := &conflictingRepo{MemoryRepository: NewMemoryRepository()}
	svc := newService(repo)

	_, err := svc.AddLabel(ctx, "acme", TargetField, "pbit", "PBIT")
	require.NoError(t, err)
	added, err := svc.AddLabel(ctx, "acme", TargetField, "pbit", "pbit")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, repo.saves)
}

func TestService_Validation(t *testing.T) {
	ctx := context.Background()
	svc := newService(NewMemoryRepository())

	_, err := svc.Learn(ctx, " ", nil, nil)
	assert.True(t, common.IsTerminal(err))

	err = svc.DeleteEntry(ctx, "acme", TargetField, "turnover")
	assert.ErrorIs(t, err, common.ErrNotFound)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = svc.AddLabel(cctx, "acme", TargetField, "pbit", "PBIT")
	assert.ErrorIs(t, err, context.Canceled)
}
