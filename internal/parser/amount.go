package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// amountCore accepts western (1,234,567) and Indian (12,34,567) grouping.
const amountCore = `(?:\d{1,3}(?:,\d{3})+|\d{1,2}(?:,\d{2})+,\d{3}|\d+)(?:\.\d+)?`

const currency = `(?:₹|\$|€|£|¥|\b(?i:rs\.?|inr))`

// A minus must touch the number or currency, so "Assets - 5,000" stays positive.
const amountPattern = `\(?\s*[-−]?(?:` + currency + `\s*)?[-−]?` + amountCore + `\s*%?\s*\)?`

var (
	reAmount      = regexp.MustCompile(amountPattern)
	reAmountWhole = regexp.MustCompile(`^` + amountPattern + `$`)
	reCurrency    = regexp.MustCompile(currency)
	reYearLike    = regexp.MustCompile(`^(?:19|20)\d{2}$`)
)

// Amount is one amount-shaped token found on a line.
type Amount struct {
	Text  string
	Value float64
	Start int
	End   int
}

// YearLike reports whether the token is a bare four digit year such as 2024.
func (a Amount) YearLike() bool {
	return reYearLike.MatchString(strings.TrimSpace(a.Text))
}

// IsAmount reports whether s, as a whole, is amount-shaped.
func IsAmount(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && reAmountWhole.MatchString(s)
}

// ParseAmount converts an amount-shaped string to a number. Thousands separators
// and currency symbols are stripped; parentheses or a leading minus negate.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !IsAmount(s) {
		return 0, false
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	s = reCurrency.ReplaceAllString(s, "")
	s = strings.NewReplacer(",", "", " ", "", "%", "", "(", "", ")", "", "−", "-").Replace(s)
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimLeft(s, "-")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	if negative {
		d = d.Neg()
	}
	return d.InexactFloat64(), true
}

// FindAmounts returns every amount-shaped token on line, left to right.
func FindAmounts(line string) []Amount {
	idx := reAmount.FindAllStringIndex(line, -1)
	out := make([]Amount, 0, len(idx))
	for _, loc := range idx {
		start, end := loc[0], loc[1]
		for start < end && isSpaceByte(line[start]) {
			start++
		}
		for end > start && isSpaceByte(line[end-1]) {
			end--
		}
		// digits glued to letters (FY2024, A1) are identifiers, not amounts
		if start > 0 && isLetterByte(line[start-1]) {
			continue
		}
		if end < len(line) && isLetterByte(line[end]) {
			continue
		}
		// the "-24" of a 2023-24 year range
		if start > 0 && line[start] == '-' && line[start-1] >= '0' && line[start-1] <= '9' {
			continue
		}
		text := strings.TrimSpace(line[start:end])
		v, ok := ParseAmount(text)
		if !ok {
			continue
		}
		out = append(out, Amount{Text: text, Value: v, Start: start, End: end})
	}
	return out
}

func isLetterByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t'
}
