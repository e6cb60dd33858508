package mapping

import (
	"sort"
	"strings"

	"github.com/joseph-ayodele/financials-mapper/internal/common"
	"github.com/joseph-ayodele/financials-mapper/internal/entity"
)

// MatchConfig holds the fuzzy-match tunables.
type MatchConfig struct {
	ContainsScore    float64
	OverlapThreshold float64
	OverlapBase      float64
	OverlapScale     float64
	MinConfidence    float64
}

// DefaultMatchConfig returns the stock thresholds.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		ContainsScore:    0.85,
		OverlapThreshold: 0.60,
		OverlapBase:      0.5,
		OverlapScale:     0.3,
		MinConfidence:    0.5,
	}
}

// MatchConfigFrom maps the application settings onto a MatchConfig.
func MatchConfigFrom(c common.MatchingConfig) MatchConfig {
	return MatchConfig{
		ContainsScore:    c.ContainsScore,
		OverlapThreshold: c.OverlapThreshold,
		OverlapBase:      c.OverlapBase,
		OverlapScale:     c.OverlapScale,
		MinConfidence:    c.MinConfidence,
	}
}

// Candidate is one proposed mapping. Never persisted.
type Candidate struct {
	SourceKey   string     `json:"sourceKey"`
	SourceLabel string     `json:"sourceLabel"`
	TargetKey   string     `json:"targetKey"`
	TargetType  TargetType `json:"targetType"`
	Confidence  float64    `json:"confidence"`
	UsageCount  int        `json:"-"`
}

const exactScore = 1.0

// AutoApply proposes at most one target per extracted field and at most one
// field per target, sorted by descending confidence. The result depends only
// on the store and the field list.
func AutoApply(s *Store, fields []entity.ExtractedField, cfg MatchConfig) []Candidate {
	if s == nil || len(s.Entries) == 0 {
		return []Candidate{}
	}

	perField := make([]Candidate, 0, len(fields))
	for _, f := range fields {
		label := NormalizeLabel(f.Label)
		if label == "" {
			continue
		}
		if c, ok := bestEntry(s, f, label, cfg); ok {
			perField = append(perField, c)
		}
	}

	// one proposal per target: higher confidence, then higher usage, then first seen
	winner := make(map[string]int)
	order := make([]string, 0, len(perField))
	for i, c := range perField {
		key := string(c.TargetType) + "\x00" + c.TargetKey
		j, seen := winner[key]
		if !seen {
			winner[key] = i
			order = append(order, key)
			continue
		}
		if beats(c, perField[j]) {
			winner[key] = i
		}
	}

	out := make([]Candidate, 0, len(order))
	for _, key := range order {
		out = append(out, perField[winner[key]])
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Confidence > out[b].Confidence
	})
	return out
}

// bestEntry scores one field against every entry. An exact match ends the search.
func bestEntry(s *Store, f entity.ExtractedField, label string, cfg MatchConfig) (Candidate, bool) {
	labelTokens := tokens(label)
	var best Candidate
	found := false
	for _, e := range s.Entries {
		score := entryScore(label, labelTokens, e, cfg)
		if score < cfg.MinConfidence || score == 0 {
			continue
		}
		c := Candidate{
			SourceKey:   f.ID,
			SourceLabel: f.Label,
			TargetKey:   e.TargetKey,
			TargetType:  e.TargetType,
			Confidence:  score,
			UsageCount:  e.UsageCount,
		}
		if !found || beats(c, best) {
			best, found = c, true
		}
		if score == exactScore {
			break
		}
	}
	return best, found
}

func beats(a, b Candidate) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.UsageCount > b.UsageCount
}

// entryScore is the best score of label against any of the entry's variants.
func entryScore(label string, labelTokens map[string]struct{}, e Entry, cfg MatchConfig) float64 {
	best := 0.0
	for _, v := range e.SourceLabels {
		if v == label {
			return exactScore
		}
		var score float64
		switch {
		case strings.Contains(label, v) || strings.Contains(v, label):
			score = cfg.ContainsScore
		default:
			sim := overlap(labelTokens, tokens(v))
			if sim >= cfg.OverlapThreshold {
				score = cfg.OverlapBase + sim*cfg.OverlapScale
			}
		}
		if score > best {
			best = score
		}
	}
	return best
}
