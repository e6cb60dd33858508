package mapping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/financials-mapper/internal/common"
	"github.com/joseph-ayodele/financials-mapper/internal/entity"
)

// Repository persists whole stores.
type Repository interface {
	// Load returns the tenant's store, or an empty store with Version 0.
	Load(ctx context.Context, tenantID string) (*Store, error)
	// Save writes the store if its Version still matches the persisted row,
	// then advances Version. A mismatch is common.ErrVersionConflict.
	Save(ctx context.Context, s *Store) error
}

const defaultMaxAttempts = 3

// Service serializes every read-modify-write of a tenant's store.
type Service struct {
	repo        Repository
	cfg         MatchConfig
	logger      *slog.Logger
	now         func() time.Time
	maxAttempts int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func WithMaxAttempts(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func NewService(repo Repository, cfg MatchConfig, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:        repo,
		cfg:         cfg,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		maxAttempts: defaultMaxAttempts,
		locks:       make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns the tenant's store.
func (s *Service) Get(ctx context.Context, tenantID string) (*Store, error) {
	if err := checkTenant(tenantID); err != nil {
		return nil, err
	}
	return s.repo.Load(ctx, tenantID)
}

// Learn records confirmed assignments.
func (s *Service) Learn(ctx context.Context, tenantID string, assignments []Assignment, fields []entity.ExtractedField) (LearnResult, error) {
	var res LearnResult
	err := s.mutate(ctx, tenantID, "learn", func(st *Store, now time.Time) (bool, error) {
		var err error
		res, err = st.Learn(assignments, fields, now)
		return res.EntriesTouched > 0, err
	})
	return res, err
}

// AddLabel adds a variant to a target.
func (s *Service) AddLabel(ctx context.Context, tenantID string, targetType TargetType, targetKey, label string) (bool, error) {
	var added bool
	err := s.mutate(ctx, tenantID, "add_label", func(st *Store, now time.Time) (bool, error) {
		var err error
		added, err = st.AddLabel(targetType, targetKey, label, now)
		return added, err
	})
	return added, err
}

// RemoveLabel drops a variant, deleting the entry with its last label.
func (s *Service) RemoveLabel(ctx context.Context, tenantID string, targetType TargetType, targetKey, label string) (RemoveResult, error) {
	var res RemoveResult
	err := s.mutate(ctx, tenantID, "remove_label", func(st *Store, now time.Time) (bool, error) {
		var err error
		res, err = st.RemoveLabel(targetType, targetKey, label, now)
		return err == nil, err
	})
	return res, err
}

// DeleteEntry removes a target and its variants.
func (s *Service) DeleteEntry(ctx context.Context, tenantID string, targetType TargetType, targetKey string) error {
	return s.mutate(ctx, tenantID, "delete_entry", func(st *Store, now time.Time) (bool, error) {
		return true, st.DeleteEntry(targetType, targetKey, now)
	})
}

// AutoApply proposes mappings for fields from the tenant's store.
func (s *Service) AutoApply(ctx context.Context, tenantID string, fields []entity.ExtractedField) ([]Candidate, error) {
	st, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := AutoApply(st, fields, s.cfg)
	s.logger.Debug("mapping.auto_apply", "tenant_id", tenantID, "fields", len(fields), "entries", len(st.Entries), "proposals", len(out))
	return out, nil
}

// mutate loads, changes and saves a store under the tenant lock, retrying on
// version conflicts from writers in other processes.
func (s *Service) mutate(ctx context.Context, tenantID, op string, fn func(*Store, time.Time) (bool, error)) error {
	if err := checkTenant(tenantID); err != nil {
		return err
	}
	lock := s.lockFor(tenantID)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		st, err := s.repo.Load(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("load mapping memory: %w", err)
		}
		changed, err := fn(st, s.now())
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		err = s.repo.Save(ctx, st)
		if err == nil {
			s.logger.Info("mapping.saved", "op", op, "tenant_id", tenantID, "version", st.Version, "entries", len(st.Entries))
			return nil
		}
		if !errors.Is(err, common.ErrVersionConflict) {
			return fmt.Errorf("save mapping memory: %w", err)
		}
		s.logger.Warn("mapping.version_conflict", "op", op, "tenant_id", tenantID, "attempt", attempt)
		lastErr = err
	}
	return lastErr
}

func (s *Service) lockFor(tenantID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[tenantID] = l
	}
	return l
}

func checkTenant(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return common.NewAppError("INVALID_TENANT", "tenant id is required", common.ErrInvalidInput)
	}
	return nil
}
