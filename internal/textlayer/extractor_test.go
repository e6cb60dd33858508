package textlayer

import (
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func glyphs(y, x float64, size float64, s string) []pdf.Text {
	out := make([]pdf.Text, 0, len(s))
	w := size * 0.5
	for i, r := range s {
		out = append(out, pdf.Text{X: x + float64(i)*w, Y: y, W: w, FontSize: size, S: string(r)})
	}
	return out
}

func TestAssemble_GroupsByVerticalTolerance(t *testing.T) {
	e := NewExtractor(Config{}, nil)

	var texts []pdf.Text
	// second line is emitted first, and its value sits 1.5 units lower than its label
	texts = append(texts, glyphs(680, 50, 10, "Turnover")...)
	texts = append(texts, glyphs(678.5, 300, 10, "9,87,654.00")...)
	texts = append(texts, glyphs(700, 50, 10, "Sundry")...)
	texts = append(texts, glyphs(700, 90, 10, "Creditors")...)

	lines := e.assemble(texts)
	require.Len(t, lines, 2)
	assert.Equal(t, "Sundry Creditors", lines[0])
	assert.Equal(t, "Turnover    9,87,654.00", lines[1])
}

func TestAssemble_OrdersRunsLeftToRight(t *testing.T) {
	e := NewExtractor(Config{}, nil)

	texts := []pdf.Text{
		{X: 200, Y: 500, W: 20, FontSize: 10, S: "100"},
		{X: 10, Y: 500, W: 30, FontSize: 10, S: "Cash"},
		{X: 10, Y: 520, W: 30, FontSize: 10, S: "\n"},
	}
	lines := e.assemble(texts)
	require.Len(t, lines, 1)
	assert.Equal(t, "Cash    100", lines[0])
}

func TestAssemble_SeparateLinesBeyondTolerance(t *testing.T) {
	e := NewExtractor(Config{LineTolerance: 2}, nil)

	texts := []pdf.Text{
		{X: 10, Y: 500, W: 10, FontSize: 10, S: "A"},
		{X: 10, Y: 497, W: 10, FontSize: 10, S: "B"},
	}
	assert.Equal(t, []string{"A", "B"}, e.assemble(texts))
}

func TestAssemble_Empty(t *testing.T) {
	e := NewExtractor(Config{}, nil)
	assert.Empty(t, e.assemble(nil))
	assert.Empty(t, e.assemble([]pdf.Text{{S: "\n"}}))
}

func TestExtract_RejectsGarbage(t *testing.T) {
	e := NewExtractor(Config{}, nil)
	_, err := e.Extract([]byte("%PDF-1.4 not really a pdf"))
	assert.Error(t, err)
}

func TestInspect_RejectsGarbage(t *testing.T) {
	_, err := Inspect([]byte("%PDF-1.4 not really a pdf"))
	assert.Error(t, err)
}
