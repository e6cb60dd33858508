package mapping

import (
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/financials-mapper/constants"
	"github.com/joseph-ayodele/financials-mapper/internal/common"
	"github.com/joseph-ayodele/financials-mapper/internal/entity"
)

// Assignment is one confirmed source to target decision.
type Assignment struct {
	SourceType string     `json:"sourceType"`
	SourceKey  string     `json:"sourceKey"`
	TargetType TargetType `json:"targetType"`
	TargetKey  string     `json:"targetKey"`
}

// LearnResult reports what a learn call changed.
type LearnResult struct {
	EntriesTouched int       `json:"entriesTouched"`
	EntriesCreated int       `json:"entriesCreated"`
	LabelsAdded    int       `json:"labelsAdded"`
	Skipped        int       `json:"skipped"`
	EntryCount     int       `json:"entryCount"`
	LabelCount     int       `json:"labelCount"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// RemoveResult reports what a remove-label call changed.
type RemoveResult struct {
	EntryDeleted bool      `json:"entryDeleted"`
	EntryCount   int       `json:"entryCount"`
	LabelCount   int       `json:"labelCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NormalizeTarget validates a target and returns its canonical spelling. Field
// targets accept a canonical key or its display label.
func NormalizeTarget(targetType TargetType, targetKey string) (TargetType, string, error) {
	if targetType == "" {
		targetType = TargetField
	}
	if !targetType.Valid() {
		return "", "", common.NewAppError("INVALID_TARGET", fmt.Sprintf("targetType %q must be field or table", targetType), common.ErrInvalidInput)
	}
	key := strings.TrimSpace(targetKey)
	if key == "" {
		return "", "", common.NewAppError("INVALID_TARGET", "targetKey is required", common.ErrInvalidInput)
	}
	if targetType == TargetField {
		k, ok := constants.ParseCanonicalKey(key)
		if !ok {
			return "", "", common.NewAppError("INVALID_TARGET", fmt.Sprintf("%q is not a canonical field", key), common.ErrInvalidInput)
		}
		key = string(k)
	}
	return targetType, key, nil
}

// Learn folds confirmed assignments into the store. Each sourceKey resolves to
// the label of the extracted field with that id (or is used verbatim when no
// field matches). Every entry touched by the call gains one usage, however many
// assignments hit it.
func (s *Store) Learn(assignments []Assignment, fields []entity.ExtractedField, now time.Time) (LearnResult, error) {
	type resolved struct {
		targetType TargetType
		targetKey  string
		label      string
	}
	labels := make(map[string]string, len(fields))
	for _, f := range fields {
		labels[f.ID] = f.Label
	}

	var res LearnResult
	plan := make([]resolved, 0, len(assignments))
	for _, a := range assignments {
		tt, tk, err := NormalizeTarget(a.TargetType, a.TargetKey)
		if err != nil {
			return LearnResult{}, err
		}
		label, ok := labels[a.SourceKey]
		if !ok {
			label = a.SourceKey
		}
		norm := NormalizeLabel(label)
		if norm == "" {
			res.Skipped++
			continue
		}
		plan = append(plan, resolved{targetType: tt, targetKey: tk, label: norm})
	}

	touched := make(map[int]bool)
	for _, p := range plan {
		i := s.Find(p.targetType, p.targetKey)
		if i < 0 {
			s.Entries = append(s.Entries, Entry{
				TargetKey:    p.targetKey,
				TargetType:   p.targetType,
				SourceLabels: []string{},
			})
			i = len(s.Entries) - 1
			res.EntriesCreated++
		}
		e := &s.Entries[i]
		if !e.hasLabel(p.label) {
			e.SourceLabels = append(e.SourceLabels, p.label)
			res.LabelsAdded++
		}
		if !touched[i] {
			touched[i] = true
			e.UsageCount++
			e.LastUsed = now
		}
	}

	res.EntriesTouched = len(touched)
	if res.EntriesTouched > 0 {
		s.UpdatedAt = now
	}
	res.EntryCount = len(s.Entries)
	res.LabelCount = s.LabelCount()
	res.UpdatedAt = s.UpdatedAt
	return res, nil
}

// AddLabel adds one variant to a target, creating the entry if needed. It
// reports whether the label was new.
func (s *Store) AddLabel(targetType TargetType, targetKey, label string, now time.Time) (bool, error) {
	tt, tk, err := NormalizeTarget(targetType, targetKey)
	if err != nil {
		return false, err
	}
	norm := NormalizeLabel(label)
	if norm == "" {
		return false, common.NewAppError("INVALID_LABEL", "label is empty after normalization", common.ErrInvalidInput)
	}
	i := s.Find(tt, tk)
	if i < 0 {
		s.Entries = append(s.Entries, Entry{TargetKey: tk, TargetType: tt, SourceLabels: []string{norm}, LastUsed: now})
		s.UpdatedAt = now
		return true, nil
	}
	e := &s.Entries[i]
	if e.hasLabel(norm) {
		return false, nil
	}
	e.SourceLabels = append(e.SourceLabels, norm)
	s.UpdatedAt = now
	return true, nil
}

// RemoveLabel drops one variant. When it was the entry's last, the entry is
// deleted from the store.
func (s *Store) RemoveLabel(targetType TargetType, targetKey, label string, now time.Time) (RemoveResult, error) {
	tt, tk, err := NormalizeTarget(targetType, targetKey)
	if err != nil {
		return RemoveResult{}, err
	}
	i := s.Find(tt, tk)
	if i < 0 {
		return RemoveResult{}, common.NewAppError("NOT_FOUND", fmt.Sprintf("no mapping for %s %s", tt, tk), common.ErrNotFound)
	}
	norm := NormalizeLabel(label)
	e := &s.Entries[i]
	kept := e.SourceLabels[:0]
	found := false
	for _, l := range e.SourceLabels {
		if l == norm {
			found = true
			continue
		}
		kept = append(kept, l)
	}
	if !found {
		return RemoveResult{}, common.NewAppError("NOT_FOUND", fmt.Sprintf("label %q is not mapped to %s", norm, tk), common.ErrNotFound)
	}
	e.SourceLabels = kept

	var res RemoveResult
	if len(e.SourceLabels) == 0 {
		s.Entries = append(s.Entries[:i], s.Entries[i+1:]...)
		res.EntryDeleted = true
	}
	s.UpdatedAt = now
	res.EntryCount = len(s.Entries)
	res.LabelCount = s.LabelCount()
	res.UpdatedAt = now
	return res, nil
}

// DeleteEntry removes a target's entry with all its variants.
func (s *Store) DeleteEntry(targetType TargetType, targetKey string, now time.Time) error {
	tt, tk, err := NormalizeTarget(targetType, targetKey)
	if err != nil {
		return err
	}
	i := s.Find(tt, tk)
	if i < 0 {
		return common.NewAppError("NOT_FOUND", fmt.Sprintf("no mapping for %s %s", tt, tk), common.ErrNotFound)
	}
	s.Entries = append(s.Entries[:i], s.Entries[i+1:]...)
	s.UpdatedAt = now
	return nil
}
