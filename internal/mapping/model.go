// Package mapping is the per-tenant mapping memory: learned associations
// between raw document labels and canonical targets, and the fuzzy matcher
// that proposes them for new documents.
package mapping

import (
	"time"
)

// TargetType is the kind of slot a mapping points at.
type TargetType string

const (
	TargetField TargetType = "field"
	TargetTable TargetType = "table"
)

func (t TargetType) Valid() bool {
	return t == TargetField || t == TargetTable
}

// Entry is everything learned about one target. SourceLabels holds normalized,
// deduplicated label variants; an entry never exists with none.
type Entry struct {
	TargetKey    string     `json:"targetKey"`
	TargetType   TargetType `json:"targetType"`
	SourceLabels []string   `json:"sourceLabels"`
	UsageCount   int        `json:"usageCount"`
	LastUsed     time.Time  `json:"lastUsed"`
}

// Store is a tenant's mapping memory, persisted verbatim as JSON.
type Store struct {
	TenantID  string    `json:"tenantId"`
	Entries   []Entry   `json:"entries"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Version is the optimistic-concurrency token of the persisted row.
	Version int64 `json:"-"`
}

// NewStore returns an empty store for tenantID.
func NewStore(tenantID string) *Store {
	return &Store{TenantID: tenantID, Entries: []Entry{}}
}

// Find returns the index of the entry for (targetType, targetKey), or -1.
func (s *Store) Find(targetType TargetType, targetKey string) int {
	for i := range s.Entries {
		if s.Entries[i].TargetType == targetType && s.Entries[i].TargetKey == targetKey {
			return i
		}
	}
	return -1
}

// LabelCount is the total number of variants across entries.
func (s *Store) LabelCount() int {
	n := 0
	for _, e := range s.Entries {
		n += len(e.SourceLabels)
	}
	return n
}

// Clone returns a deep copy.
func (s *Store) Clone() *Store {
	out := *s
	out.Entries = make([]Entry, len(s.Entries))
	for i, e := range s.Entries {
		e.SourceLabels = append([]string(nil), e.SourceLabels...)
		out.Entries[i] = e
	}
	return &out
}

func (e *Entry) hasLabel(norm string) bool {
	for _, l := range e.SourceLabels {
		if l == norm {
			return true
		}
	}
	return false
}
