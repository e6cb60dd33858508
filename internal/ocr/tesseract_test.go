package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/financials-mapper/constants"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	pages int
	text  map[string]string
	tsv   string
	fail  map[string]error
	calls []call
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	if err := f.fail[name]; err != nil {
		return nil, []byte("boom"), err
	}
	switch name {
	case "pdftoppm":
		prefix := args[len(args)-1]
		last := f.pages
		for i, a := range args {
			if a == "-l" && i+1 < len(args) {
				if n, err := strconv.Atoi(args[i+1]); err == nil && n < last {
					last = n
				}
			}
		}
		for i := 1; i <= last; i++ {
			p := fmt.Sprintf("%s-%02d.png", prefix, i)
			if err := os.WriteFile(p, []byte("png"), 0o600); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	case "tesseract":
		if args[len(args)-1] == "tsv" {
			return []byte(f.tsv), nil, nil
		}
		return []byte(f.text[filepath.Base(args[0])]), nil, nil
	}
	return nil, nil, errors.New("unexpected command " + name)
}

func TestTesseractEngine_PDFPagesInOrder(t *testing.T) {
	run := &fakeRunner{
		pages: 2,
		text: map[string]string{
			"page-01.png": "Balance Sheet as at 31 March 2024\nSundry Creditors   1,23,456.00\n",
			"page-02.png": "Revenue from operations\t9,87,654.00\n",
		},
	}
	eng := NewTesseractEngineWithRunner(Config{}, run, nil)

	res, err := eng.Recognize(context.Background(), Input{Data: []byte("%PDF-1.7"), MIMEType: constants.MIMEPDF, Name: "bs.pdf"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, "tesseract", res.Method)
	assert.True(t, strings.Index(res.Text, "Sundry Creditors") < strings.Index(res.Text, "Revenue"))
	assert.Contains(t, res.Text, "Sundry Creditors   1,23,456.00")
	assert.Contains(t, res.Text, "Revenue from operations    9,87,654.00")
	assert.Greater(t, res.Confidence, 0.0)
	assert.Equal(t, "pdftoppm", run.calls[0].name)
}

func TestTesseractEngine_ImageSkipsRasterize(t *testing.T) {
	run := &fakeRunner{text: map[string]string{"input.png": "Cash and bank 5,000"}}
	eng := NewTesseractEngineWithRunner(Config{}, run, nil)

	res, err := eng.Recognize(context.Background(), Input{Data: []byte{0x89, 'P', 'N', 'G'}, MIMEType: constants.MIMEPNG})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, "Cash and bank 5,000", res.Text)
	for _, c := range run.calls {
		assert.NotEqual(t, "pdftoppm", c.name)
	}
}

func TestTesseractEngine_MaxPagesWarns(t *testing.T) {
	run := &fakeRunner{pages: 3, text: map[string]string{"page-01.png": "one", "page-02.png": "two", "page-03.png": "three"}}
	eng := NewTesseractEngineWithRunner(Config{MaxPages: 2}, run, nil)

	res, err := eng.Recognize(context.Background(), Input{Data: []byte("%PDF-1.4"), MIMEType: constants.MIMEPDF, PageCount: 3})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	assert.NotContains(t, res.Text, "three")
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "only the first 2 of 3 pages were recognized", res.Warnings[0])
	assert.Contains(t, run.calls[0].args, "-l")
}

func TestTesseractEngine_NoWarningWithinPageLimit(t *testing.T) {
	run := &fakeRunner{pages: 2, text: map[string]string{"page-01.png": "one", "page-02.png": "two"}}
	eng := NewTesseractEngineWithRunner(Config{MaxPages: 2}, run, nil)

	res, err := eng.Recognize(context.Background(), Input{Data: []byte("%PDF-1.4"), MIMEType: constants.MIMEPDF, PageCount: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	assert.Empty(t, res.Warnings)
}

func TestTesseractEngine_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing binary", func(t *testing.T) {
		run := &fakeRunner{fail: map[string]error{"pdftoppm": NewError("exec", ErrToolMissing, "pdftoppm")}}
		_, err := NewTesseractEngineWithRunner(Config{}, run, nil).Recognize(ctx, Input{Data: []byte("%PDF"), MIMEType: constants.MIMEPDF})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrToolMissing)
	})

	t.Run("no pages", func(t *testing.T) {
		run := &fakeRunner{pages: 0}
		_, err := NewTesseractEngineWithRunner(Config{}, run, nil).Recognize(ctx, Input{Data: []byte("%PDF"), MIMEType: constants.MIMEPDF})
		assert.ErrorIs(t, err, ErrNoPages)
	})

	t.Run("blank text", func(t *testing.T) {
		run := &fakeRunner{text: map[string]string{"input.jpg": "  \n "}}
		_, err := NewTesseractEngineWithRunner(Config{}, run, nil).Recognize(ctx, Input{Data: []byte{0xff, 0xd8}, MIMEType: constants.MIMEJPEG})
		assert.ErrorIs(t, err, ErrEmptyText)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := NewTesseractEngineWithRunner(Config{}, &fakeRunner{}, nil).Recognize(ctx, Input{Data: []byte("x"), MIMEType: "text/plain"})
		assert.ErrorIs(t, err, ErrUnsupportedInput)
		var ocrErr *Error
		assert.True(t, errors.As(err, &ocrErr))
	})
}

func TestTSVConfidence(t *testing.T) {
	tsv := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
		"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t90\tCash\n" +
		"5\t1\t1\t1\t1\t2\t0\t0\t10\t10\t70\t5,000\n" +
		"4\t1\t1\t1\t1\t0\t0\t0\t10\t10\t-1\t\n"
	assert.InDelta(t, 0.80, tsvConfidence(tsv), 1e-9)
	assert.Zero(t, tsvConfidence("header only"))
}

func TestNormalize_KeepsWideGaps(t *testing.T) {
	in := "Turnover\t1,000\r\nOther income   250  \r\n\r\n\r\n\r\nTotal 1,250"
	assert.Equal(t, "Turnover    1,000\nOther income   250\n\nTotal 1,250", Normalize(in))
}

func TestPageIndex(t *testing.T) {
	assert.Equal(t, 10, pageIndex("/tmp/x/page-10.png"))
	assert.Equal(t, 2, pageIndex("/tmp/x/page-002.png"))
	assert.Equal(t, 0, pageIndex("/tmp/x/cover.png"))
}

func TestCollectVisionPages(t *testing.T) {
	pages := []*visionpb.AnnotateImageResponse{
		{FullTextAnnotation: &visionpb.TextAnnotation{
			Text:  "Balance Sheet 2024\nTrade payables 1,200.00",
			Pages: []*visionpb.Page{{Confidence: 0.9}},
		}},
		{FullTextAnnotation: &visionpb.TextAnnotation{
			Text:  "Revenue 5,400.00",
			Pages: []*visionpb.Page{{Confidence: 0.7}},
		}},
	}
	res, err := collectVisionPages(pages)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	assert.Contains(t, res.Text, "Trade payables 1,200.00")
	assert.Contains(t, res.Text, "Revenue 5,400.00")
	assert.Greater(t, res.Confidence, 0.5)

	_, err = collectVisionPages(make([]*visionpb.AnnotateImageResponse, MaxVisionPages+1))
	assert.ErrorIs(t, err, ErrTooManyPages)

	_, err = collectVisionPages(nil)
	assert.ErrorIs(t, err, ErrNoPages)
}
