package quality

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_RepeatedWatermarkLines(t *testing.T) {
	text := strings.Repeat("CompanyScan\n", 20)
	v := Classify(text, Strict)
	assert.True(t, v.Scanned)
	assert.True(t, v.Watermark)
}

func TestClassify_RepeatedWatermarkOnOneLine(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("CompanyScan ", 20))
	v := Classify(text, Strict)
	assert.True(t, v.Scanned)
	assert.True(t, v.Watermark)
}

func TestIsWatermark_DistinctShortLines(t *testing.T) {
	text := "Sundry Creditors: 1,23,456.00\nSundry Debtors: 45,000.00\nTurnover: 9,87,654.00"
	assert.False(t, IsWatermark(text))
	for _, mode := range []Mode{Strict, Relaxed} {
		v := Classify(text, mode)
		assert.False(t, v.Watermark, mode.String())
		assert.False(t, v.Scanned, "%s: %s", mode, v.Reason)
	}
}

func TestIsWatermark_FewLinesRepeated(t *testing.T) {
	assert.True(t, IsWatermark("DRAFT\nCONFIDENTIAL\nDRAFT\nCONFIDENTIAL"))
}

func TestClassify_ShortTextAlwaysScanned(t *testing.T) {
	for _, mode := range []Mode{Strict, Relaxed} {
		v := Classify("Balance Sheet 2024", mode)
		assert.True(t, v.Scanned, mode.String())
		assert.Equal(t, "too little text", v.Reason)
	}
}

func TestClassify_MeaningfulStatement(t *testing.T) {
	text := `Balance Sheet as at 31st March 2024
Sundry Creditors: 1,23,456.00
Sundry Debtors    2,34,567.00
Total Current Assets    5,00,000.00`
	v := Classify(text, Strict)
	assert.False(t, v.Scanned, v.Reason)
	assert.True(t, v.Trustworthy())
	assert.Greater(t, v.RealWordRatio, 0.30)
}

func TestClassify_ModeThresholds(t *testing.T) {
	// 2 real words out of 12 tokens: ratio ~0.17, between relaxed and strict floors.
	text := "Cash ~~ -- 12 | ## .. ,, 4 5 ** Bank"
	strict := Classify(text, Strict)
	relaxed := Classify(text, Relaxed)

	assert.True(t, strict.Scanned)
	assert.False(t, relaxed.Scanned, relaxed.Reason)
}

func TestClassify_NumericNoise(t *testing.T) {
	text := "12 34 56 78 90 11 22 33 44 55 66 77 88 99"
	v := Classify(text, Relaxed)
	assert.True(t, v.Scanned)
	assert.Equal(t, 0, v.RealWords)
}

func TestIsRealWord(t *testing.T) {
	tests := map[string]bool{
		"Sundry":      true,
		"FY24":        true,
		"ab":          false,
		"1,23,456.00": false,
		"a1":          false,
		"—":           false,
	}
	for tok, want := range tests {
		assert.Equal(t, want, isRealWord(tok), tok)
	}
}
