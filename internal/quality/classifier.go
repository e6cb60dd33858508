package quality

import (
	"strings"
	"unicode"
)

// Mode selects how forgiving the meaningfulness check is.
type Mode int

const (
	// Strict is used for native text-layer output.
	Strict Mode = iota
	// Relaxed is used for OCR output, which is noisier but still useful.
	Relaxed
)

func (m Mode) String() string {
	if m == Relaxed {
		return "relaxed"
	}
	return "strict"
}

const (
	minTextChars = 20

	watermarkMaxUniqueLines  = 3
	watermarkMinTotalLines   = 3
	watermarkMaxAvgLineChars = 40

	stampMaxUniqueTokens = 3
	stampMinTokens       = 10

	minRealWordChars = 3
)

type thresholds struct {
	ratio  float64
	avgLen float64
}

var modeThresholds = map[Mode]thresholds{
	Strict:  {ratio: 0.30, avgLen: 3},
	Relaxed: {ratio: 0.10, avgLen: 2},
}

// Verdict is the classifier's decision plus the measurements behind it.
type Verdict struct {
	Scanned        bool
	Watermark      bool
	Reason         string
	Chars          int
	Tokens         int
	RealWords      int
	RealWordRatio  float64
	AvgRealWordLen float64
}

// Trustworthy is the inverse of Scanned.
func (v Verdict) Trustworthy() bool { return !v.Scanned }

// Classify decides whether text is usable prose or noise that needs OCR/AI.
func Classify(text string, mode Mode) Verdict {
	trimmed := strings.TrimSpace(text)
	v := Verdict{Chars: len([]rune(trimmed))}

	if v.Chars < minTextChars {
		v.Scanned = true
		v.Reason = "too little text"
		return v
	}
	if IsWatermark(trimmed) {
		v.Scanned = true
		v.Watermark = true
		v.Reason = "repeated watermark"
		return v
	}

	tokens := strings.Fields(trimmed)
	v.Tokens = len(tokens)
	totalLen := 0
	for _, tok := range tokens {
		if isRealWord(tok) {
			v.RealWords++
			totalLen += len([]rune(tok))
		}
	}
	if v.Tokens > 0 {
		v.RealWordRatio = float64(v.RealWords) / float64(v.Tokens)
	}
	if v.RealWords > 0 {
		v.AvgRealWordLen = float64(totalLen) / float64(v.RealWords)
	}

	th := modeThresholds[mode]
	if v.RealWordRatio < th.ratio || v.AvgRealWordLen < th.avgLen {
		v.Scanned = true
		v.Reason = "low real-word ratio (" + mode.String() + ")"
		return v
	}
	v.Reason = "meaningful text"
	return v
}

// IsWatermark detects a handful of short lines (or tokens) repeated across the document.
func IsWatermark(text string) bool {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	unique := map[string]struct{}{}
	uniqueChars := 0
	for _, l := range lines {
		if _, seen := unique[l]; !seen {
			unique[l] = struct{}{}
			uniqueChars += len([]rune(l))
		}
	}
	if len(lines) >= watermarkMinTotalLines && len(lines) > len(unique) && len(unique) <= watermarkMaxUniqueLines {
		if float64(uniqueChars)/float64(len(unique)) < watermarkMaxAvgLineChars {
			return true
		}
	}

	tokens := strings.Fields(text)
	if len(tokens) < stampMinTokens {
		return false
	}
	distinct := map[string]struct{}{}
	for _, tok := range tokens {
		distinct[strings.ToLower(tok)] = struct{}{}
		if len(distinct) > stampMaxUniqueTokens {
			return false
		}
	}
	return true
}

// isRealWord: at least three alphanumerics, at least one of them a letter.
func isRealWord(tok string) bool {
	alnum, letters := 0, 0
	for _, r := range tok {
		if unicode.IsLetter(r) {
			letters++
			alnum++
		} else if unicode.IsDigit(r) {
			alnum++
		}
	}
	return alnum >= minRealWordChars && letters > 0
}
