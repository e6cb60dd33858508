package textlayer

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// Config tunes how glyph runs are assembled into lines.
type Config struct {
	// LineTolerance is the maximum vertical distance (PDF units) between runs on one line.
	LineTolerance float64
	// WordGapRatio is the fraction of the font size a horizontal gap must exceed to insert a space.
	WordGapRatio float64
	// ColumnGapRatio is the multiple of the font size above which a gap is rendered as a column break.
	ColumnGapRatio float64
}

// Page summarises one page of the native text layer.
type Page struct {
	Number int
	Lines  int
	Chars  int
}

// Result is the position-aware rendering of a document's text layer.
type Result struct {
	Text  string
	Pages []Page
	// ImagePages lists pages without any text runs; candidates for OCR.
	ImagePages []int
	Duration   time.Duration
}

type Extractor struct {
	cfg    Config
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LineTolerance <= 0 {
		cfg.LineTolerance = 2
	}
	if cfg.WordGapRatio <= 0 {
		cfg.WordGapRatio = 0.25
	}
	if cfg.ColumnGapRatio <= 0 {
		cfg.ColumnGapRatio = 2.5
	}
	return &Extractor{cfg: cfg, logger: logger}
}

// Extract walks every page's positioned runs. An empty or image-only document
// yields an empty Text and no error.
func (e *Extractor) Extract(data []byte) (res Result, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("textlayer.extract.panic", "panic", r)
			err = fmt.Errorf("read text layer: %v", r)
		}
		res.Duration = time.Since(start)
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("open pdf: %w", err)
	}

	var pagesText []string
	for i := 1; i <= reader.NumPage(); i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			res.ImagePages = append(res.ImagePages, i)
			continue
		}
		lines := e.assemble(p.Content().Text)
		chars := 0
		for _, l := range lines {
			chars += len(l)
		}
		res.Pages = append(res.Pages, Page{Number: i, Lines: len(lines), Chars: chars})
		if len(lines) == 0 {
			res.ImagePages = append(res.ImagePages, i)
			continue
		}
		pagesText = append(pagesText, strings.Join(lines, "\n"))
	}
	res.Text = strings.Join(pagesText, "\n")

	e.logger.Debug("textlayer.extract.ok",
		"pages", reader.NumPage(),
		"image_pages", len(res.ImagePages),
		"chars", len(res.Text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

type run struct {
	x, y, w, size float64
	s             string
}

type line struct {
	y    float64
	runs []run
}

// assemble groups runs by vertical position (top to bottom) and orders each line left to right.
func (e *Extractor) assemble(texts []pdf.Text) []string {
	runs := make([]run, 0, len(texts))
	for _, t := range texts {
		if t.S == "" || t.S == "\n" {
			continue
		}
		runs = append(runs, run{x: t.X, y: t.Y, w: t.W, size: t.FontSize, s: t.S})
	}
	if len(runs) == 0 {
		return nil
	}

	// PDF y grows upwards: top of page first.
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].y > runs[j].y })

	var lines []*line
	for _, r := range runs {
		if n := len(lines); n > 0 && math.Abs(lines[n-1].y-r.y) <= e.cfg.LineTolerance {
			lines[n-1].runs = append(lines[n-1].runs, r)
			continue
		}
		lines = append(lines, &line{y: r.y, runs: []run{r}})
	}

	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if s := strings.TrimRight(e.join(l.runs), " "); strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func (e *Extractor) join(runs []run) string {
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].x < runs[j].x })

	var b strings.Builder
	prevEnd := math.NaN()
	for _, r := range runs {
		if !math.IsNaN(prevEnd) {
			size := r.size
			if size <= 0 {
				size = 10
			}
			gap := r.x - prevEnd
			switch {
			case gap > e.cfg.ColumnGapRatio*size:
				b.WriteString("    ")
			case gap > e.cfg.WordGapRatio*size && !strings.HasSuffix(b.String(), " ") && !strings.HasPrefix(r.s, " "):
				b.WriteByte(' ')
			}
		}
		b.WriteString(r.s)
		prevEnd = r.x + r.w
	}
	return b.String()
}
