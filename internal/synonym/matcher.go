// Package synonym is the deterministic fallback that pins lines to canonical
// keys through the curated synonym table.
package synonym

import (
	"strings"

	"github.com/joseph-ayodele/financials-mapper/constants"
	"github.com/joseph-ayodele/financials-mapper/internal/parser"
)

// Hit records which line populated a canonical key.
type Hit struct {
	Key    constants.CanonicalKey
	Alias  string
	Line   string
	Amount string
	Value  float64
}

// Match is the outcome of scanning a text.
type Match struct {
	Fields map[constants.CanonicalKey]float64
	Hits   []Hit
	// Lines is every non-empty line carrying an amount that did not fill a key.
	Lines []string
}

// Matcher scans lines against a synonym table.
type Matcher struct {
	keys     []constants.CanonicalKey
	synonyms map[constants.CanonicalKey][]string
}

// NewMatcher uses the built-in table.
func NewMatcher() *Matcher {
	keys := constants.CanonicalKeys()
	syn := make(map[constants.CanonicalKey][]string, len(keys))
	for _, k := range keys {
		syn[k] = k.Synonyms()
	}
	return &Matcher{keys: keys, synonyms: syn}
}

// Match scans text line by line. For every line that carries an amount, the
// first canonical key (in canonical order) with an alias contained in the line
// claims it; a key keeps the first value it was given. A line whose key is
// already filled, or whose amount cannot be picked, lands in Lines.
func (m *Matcher) Match(text string) Match {
	out := Match{Fields: make(map[constants.CanonicalKey]float64)}
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		amounts := parser.FindAmounts(lower)
		if len(amounts) == 0 {
			continue
		}

		key, alias, pos, ok := m.claim(lower)
		if !ok {
			out.Lines = append(out.Lines, line)
			continue
		}
		if _, taken := out.Fields[key]; taken {
			out.Lines = append(out.Lines, line)
			continue
		}
		amt, ok := pickAmount(amounts, pos+len(alias))
		if !ok {
			out.Lines = append(out.Lines, line)
			continue
		}
		out.Fields[key] = amt.Value
		out.Hits = append(out.Hits, Hit{Key: key, Alias: alias, Line: line, Amount: amt.Text, Value: amt.Value})
	}
	return out
}

// MapLabel maps a free-text label onto a canonical key.
func (m *Matcher) MapLabel(label string) (constants.CanonicalKey, bool) {
	key, _, _, ok := m.claim(strings.ToLower(label))
	return key, ok
}

func (m *Matcher) claim(lower string) (constants.CanonicalKey, string, int, bool) {
	for _, k := range m.keys {
		for _, alias := range m.synonyms[k] {
			if i := strings.Index(lower, alias); i >= 0 {
				return k, alias, i, true
			}
		}
	}
	return "", "", 0, false
}

// pickAmount prefers the first amount right of the alias, skipping bare years
// when a real figure follows; otherwise it falls back to the line's last amount.
func pickAmount(amounts []parser.Amount, after int) (parser.Amount, bool) {
	var right []parser.Amount
	for _, a := range amounts {
		if a.Start >= after {
			right = append(right, a)
		}
	}
	if a, ok := firstNonYear(right); ok {
		return a, true
	}
	if len(right) > 0 {
		return right[0], true
	}
	if len(amounts) == 0 {
		return parser.Amount{}, false
	}
	return amounts[len(amounts)-1], true
}

func firstNonYear(amounts []parser.Amount) (parser.Amount, bool) {
	for _, a := range amounts {
		if !a.YearLike() {
			return a, true
		}
	}
	return parser.Amount{}, false
}
