package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/financials-mapper/constants"
	"github.com/joseph-ayodele/financials-mapper/internal/textlayer"
)

const pageSeparator = "\n\f\n"

// TesseractEngine rasterizes PDFs with pdftoppm and recognizes each page with tesseract.
type TesseractEngine struct {
	cfg    Config
	run    Runner
	logger *slog.Logger
}

// NewTesseractEngine builds an engine backed by the local poppler and tesseract binaries.
func NewTesseractEngine(cfg Config, logger *slog.Logger) *TesseractEngine {
	logger = nopLogger(logger)
	return NewTesseractEngineWithRunner(cfg, execRunner{logger: logger}, logger)
}

func NewTesseractEngineWithRunner(cfg Config, run Runner, logger *slog.Logger) *TesseractEngine {
	return &TesseractEngine{cfg: cfg.withDefaults(), run: run, logger: nopLogger(logger)}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

func (e *TesseractEngine) Recognize(ctx context.Context, in Input) (*Result, error) {
	if err := validInput(in); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	start := time.Now()
	work, err := os.MkdirTemp("", "fieldmapper-ocr-*")
	if err != nil {
		return nil, WrapError("mkdtemp", err, "")
	}
	defer os.RemoveAll(work)

	ext := ".pdf"
	switch in.MIMEType {
	case constants.MIMEPNG:
		ext = ".png"
	case constants.MIMEJPEG:
		ext = ".jpg"
	}
	src := filepath.Join(work, "input"+ext)
	if err := os.WriteFile(src, in.Data, 0o600); err != nil {
		return nil, WrapError("write", err, src)
	}

	var images []string
	var warnings []string
	if in.MIMEType == constants.MIMEPDF {
		images, err = e.rasterize(ctx, src, work)
		if err != nil {
			return nil, err
		}
		if len(images) > e.cfg.MaxPages {
			images = images[:e.cfg.MaxPages]
		}
		if total := pdfPageCount(in); total > len(images) {
			warnings = append(warnings, fmt.Sprintf("only the first %d of %d pages were recognized", len(images), total))
			e.logger.Warn("ocr pages truncated", "document", in.Name, "recognized", len(images), "pages", total)
		}
	} else {
		images = []string{src}
	}

	texts := make([]string, 0, len(images))
	var confSum float64
	var confN int
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, WrapError("recognize", err, fmt.Sprintf("page %d", i+1))
		}
		txt, conf, err := e.recognizeImage(ctx, img)
		if err != nil {
			return nil, WrapError("tesseract", err, fmt.Sprintf("page %d", i+1))
		}
		texts = append(texts, txt)
		if conf > 0 {
			confSum += conf
			confN++
		}
	}

	text := Normalize(strings.Join(texts, pageSeparator))
	if text == "" {
		return nil, NewError("recognize", ErrEmptyText, in.Name)
	}

	engineConf := 0.0
	if confN > 0 {
		engineConf = confSum / float64(confN)
	}
	res := &Result{
		Text:       text,
		Pages:      len(images),
		Method:     e.Name(),
		Language:   e.cfg.Language,
		Confidence: blend(engineConf, heuristicConfidence(text)),
		Duration:   time.Since(start),
		Warnings:   warnings,
	}
	e.logger.Info("ocr complete",
		"engine", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"confidence", res.Confidence,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// pdfPageCount is zero when the count is unknown and the PDF cannot be read.
func pdfPageCount(in Input) int {
	if in.PageCount > 0 {
		return in.PageCount
	}
	info, err := textlayer.Inspect(in.Data)
	if err != nil {
		return 0
	}
	return info.PageCount
}

// rasterize renders up to MaxPages PDF pages to PNGs and returns the files in page order.
func (e *TesseractEngine) rasterize(ctx context.Context, pdfPath, dir string) ([]string, error) {
	prefix := filepath.Join(dir, "page")
	args := []string{"-r", strconv.Itoa(e.cfg.DPI), "-png", "-l", strconv.Itoa(e.cfg.MaxPages), pdfPath, prefix}
	if _, _, err := e.run.Run(ctx, e.cfg.PdftoppmPath, args...); err != nil {
		return nil, WrapError("pdftoppm", err, pdfPath)
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, WrapError("glob", err, prefix)
	}
	if len(matches) == 0 {
		return nil, NewError("pdftoppm", ErrNoPages, pdfPath)
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageIndex(matches[i]) < pageIndex(matches[j])
	})
	return matches, nil
}

// pdftoppm zero-pads page numbers by page count, so a plain sort is not enough.
func pageIndex(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	i := strings.LastIndex(base, "-")
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(base[i+1:])
	if err != nil {
		return 0
	}
	return n
}

func (e *TesseractEngine) recognizeImage(ctx context.Context, img string) (string, float64, error) {
	args := e.baseArgs(img)
	stdout, _, err := e.run.Run(ctx, e.cfg.TesseractPath, args...)
	if err != nil {
		return "", 0, err
	}
	text := string(stdout)

	if !e.cfg.EnableTSVConfidence {
		return text, 0, nil
	}
	tsv, _, err := e.run.Run(ctx, e.cfg.TesseractPath, append(e.baseArgs(img), "tsv")...)
	if err != nil {
		e.logger.Warn("tesseract tsv failed, confidence unavailable", "image", filepath.Base(img), "error", err)
		return text, 0, nil
	}
	return text, tsvConfidence(string(tsv)), nil
}

func (e *TesseractEngine) baseArgs(img string) []string {
	args := []string{img, "stdout", "-l", e.cfg.Language}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	return args
}

// tsvConfidence averages word confidences from tesseract's TSV output, scaled to [0,1].
func tsvConfidence(tsv string) float64 {
	var sum float64
	var n int
	for i, line := range strings.Split(tsv, "\n") {
		if i == 0 {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 12 {
			continue
		}
		c, err := strconv.ParseFloat(strings.TrimSpace(cols[10]), 64)
		if err != nil || c < 0 {
			continue
		}
		sum += c
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n) / 100
}
