// Package parser turns an arbitrary text stream into label/value candidates
// using layout heuristics.
package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/financials-mapper/internal/entity"
)

// Confidence of each rule.
const (
	ConfColon       = 0.90
	ConfTrailingNum = 0.82
	ConfWideGap     = 0.78
	ConfAltSep      = 0.78
	ConfLinePair    = 0.72
	ConfRawLine     = 0.35
)

const (
	maxLabelLen     = 150
	minRawLineLen   = 4
	maxRawLines     = 60
	maxPairValueLen = 40
)

var (
	reColon       = regexp.MustCompile(`^([^:]{1,150}?)\s*:\s*(.+)$`)
	reTrailingNum = regexp.MustCompile(`^(.+?)\s+(` + amountPattern + `)$`)
	reWideGap     = regexp.MustCompile(`^(\S.*?)(?: {2,}|\t+)(\S.*)$`)
	reAltSep      = regexp.MustCompile(`^([^=|]+?)\s*[=|]\s*(.+)$`)
	reSpaces      = regexp.MustCompile(`\s+`)
)

type rule struct {
	re   *regexp.Regexp
	conf float64
}

// rules are tried in order; the first hit wins for a line.
var rules = []rule{
	{reColon, ConfColon},
	{reTrailingNum, ConfTrailingNum},
	{reWideGap, ConfWideGap},
	{reAltSep, ConfAltSep},
}

type candidate struct {
	line  int
	label string
	value string
	conf  float64
}

// Parse extracts label/value candidates from text. It never returns an empty
// slice for text that has at least one line of four or more characters.
func Parse(text string) []entity.ExtractedField {
	lines := splitLines(text)

	matched := make([]bool, len(lines))
	var cands []candidate
	for i, line := range lines {
		if line == "" {
			continue
		}
		if label, value, conf, ok := matchLine(line); ok {
			cands = append(cands, candidate{line: i, label: label, value: value, conf: conf})
			matched[i] = true
		}
	}

	for i := 0; i+1 < len(lines); i++ {
		if matched[i] || matched[i+1] {
			continue
		}
		if looksLikeLabel(lines[i]) && looksLikeValue(lines[i+1]) {
			cands = append(cands, candidate{line: i, label: lines[i], value: lines[i+1], conf: ConfLinePair})
			matched[i], matched[i+1] = true, true
			i++
		}
	}

	sort.SliceStable(cands, func(a, b int) bool { return cands[a].line < cands[b].line })

	fields := dedupe(cands)
	if len(fields) > 0 {
		return fields
	}
	return rawLines(lines)
}

func matchLine(line string) (label, value string, conf float64, ok bool) {
	for _, r := range rules {
		m := r.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		label = cleanLabel(m[1])
		value = strings.TrimSpace(m[2])
		if label == "" || value == "" || !hasLetter(label) || len(label) > maxLabelLen {
			continue
		}
		return label, value, r.conf, true
	}
	return "", "", 0, false
}

// looksLikeLabel: starts with a letter, 2-150 chars, not purely numeric or symbolic.
func looksLikeLabel(s string) bool {
	if len(s) < 2 || len(s) > maxLabelLen {
		return false
	}
	first := []rune(s)[0]
	return unicode.IsLetter(first)
}

func looksLikeValue(s string) bool {
	if s == "" || strings.Contains(s, ":") {
		return false
	}
	if IsAmount(s) {
		return true
	}
	return len(s) <= maxPairValueLen && strings.IndexFunc(s, unicode.IsDigit) >= 0
}

func dedupe(cands []candidate) []entity.ExtractedField {
	seen := make(map[string]struct{}, len(cands))
	out := make([]entity.ExtractedField, 0, len(cands))
	for _, c := range cands {
		key := DedupKey(c.label, c.value)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, entity.ExtractedField{
			ID:         fieldID(len(out)),
			Label:      c.label,
			Value:      c.value,
			Confidence: c.conf,
		})
	}
	return out
}

// rawLines is the placeholder fallback when no structured pair was found.
func rawLines(lines []string) []entity.ExtractedField {
	seen := make(map[string]struct{})
	out := make([]entity.ExtractedField, 0)
	for _, line := range lines {
		if len([]rune(line)) < minRawLineLen {
			continue
		}
		key := DedupKey(line, "")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, entity.ExtractedField{
			ID:         fieldID(len(out)),
			Label:      line,
			Confidence: ConfRawLine,
		})
		if len(out) == maxRawLines {
			break
		}
	}
	return out
}

// DedupKey is the normalized label::value identity of a field.
func DedupKey(label, value string) string {
	return collapse(label) + "::" + collapse(value)
}

func collapse(s string) string {
	return strings.ToLower(strings.TrimSpace(reSpaces.ReplaceAllString(s, " ")))
}

func cleanLabel(s string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), ":=|-–"))
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, len(raw))
	for i, l := range raw {
		out[i] = strings.TrimSpace(l)
	}
	return out
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}

func fieldID(n int) string {
	return fmt.Sprintf("f%03d", n+1)
}
