package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/financials-mapper/constants"
	"github.com/joseph-ayodele/financials-mapper/internal/entity"
	"github.com/joseph-ayodele/financials-mapper/internal/mapping"
	"github.com/joseph-ayodele/financials-mapper/internal/repository"
)

const (
	SheetExtractions = "Extractions"
	SheetMemory      = "Mapping Memory"

	maxNoteLen = 240
)

// Service is a tiny façade over repositories that produces XLSX bytes for exports.
type Service struct {
	jobsRepo repository.ExtractJobRepository
	memory   *mapping.Service
	logger   *slog.Logger
}

func NewService(jobs repository.ExtractJobRepository, memory *mapping.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobsRepo: jobs, memory: memory, logger: logger}
}

// ExportTenantXLSX returns a workbook with the tenant's latest extractions
// (limit <= 0 means all) and its mapping memory.
func (s *Service) ExportTenantXLSX(ctx context.Context, tenantID string, limit int) ([]byte, error) {
	start := time.Now()
	jobs, err := s.jobsRepo.ListByTenant(ctx, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("query extract jobs: %w", err)
	}
	var store *mapping.Store
	if s.memory != nil {
		if store, err = s.memory.Get(ctx, tenantID); err != nil {
			return nil, fmt.Errorf("load mapping memory: %w", err)
		}
	}
	buf, err := BuildWorkbook(jobs, store)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.xlsx.ok",
		"tenant_id", tenantID,
		"rows", len(jobs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf, nil
}

// ExtractionHeaders is the header row of the Extractions sheet.
func ExtractionHeaders() []string {
	headers := []string{"Document", "Processed At", "Strategy", "Confidence"}
	for _, k := range constants.CanonicalKeys() {
		headers = append(headers, k.Label())
	}
	return append(headers, "Unmapped", "Note")
}

// BuildWorkbook renders jobs (newest first, as listed) and an optional store.
func BuildWorkbook(jobs []*entity.ExtractJob, store *mapping.Store) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetExtractions); err != nil {
		return nil, err
	}
	if err := writeExtractions(f, jobs); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetMemory); err != nil {
		return nil, err
	}
	if err := writeMemory(f, store); err != nil {
		return nil, err
	}
	idx, _ := f.GetSheetIndex(SheetExtractions)
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeExtractions(f *excelize.File, jobs []*entity.ExtractJob) error {
	const sheet = SheetExtractions
	keys := constants.CanonicalKeys()
	headers := ExtractionHeaders()
	hdr := make([]any, len(headers))
	for i, h := range headers {
		hdr[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &hdr); err != nil {
		return err
	}

	for i, j := range jobs {
		res, err := j.Result()
		if err != nil {
			return fmt.Errorf("decode job %s: %w", j.ID, err)
		}
		row := make([]any, 0, len(headers))
		row = append(row, j.DocumentName, j.CreatedAt.UTC().Format(time.RFC3339), j.Strategy, j.Grade)
		for _, k := range keys {
			if v, ok := res.Fields[k]; ok {
				row = append(row, v)
			} else {
				row = append(row, nil)
			}
		}
		row = append(row, len(res.UnmappedFields), truncate(res.Note, maxNoteLen))

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 32)
	_ = f.SetColWidth(sheet, "B", "D", 20)
	last, _ := excelize.ColumnNumberToName(len(headers))
	first, _ := excelize.ColumnNumberToName(5)
	_ = f.SetColWidth(sheet, first, last, 18)
	_ = f.SetColWidth(sheet, last, last, 60)
	return nil
}

func writeMemory(f *excelize.File, store *mapping.Store) error {
	const sheet = SheetMemory
	hdr := []any{"Target Type", "Target Key", "Target Label", "Source Labels", "Usage Count", "Last Used"}
	if err := f.SetSheetRow(sheet, "A1", &hdr); err != nil {
		return err
	}
	if store == nil {
		return nil
	}
	for i, e := range store.Entries {
		label := e.TargetKey
		if e.TargetType == mapping.TargetField {
			label = constants.CanonicalKey(e.TargetKey).Label()
		}
		lastUsed := ""
		if !e.LastUsed.IsZero() {
			lastUsed = e.LastUsed.UTC().Format(time.RFC3339)
		}
		row := []any{string(e.TargetType), e.TargetKey, label, strings.Join(e.SourceLabels, "; "), e.UsageCount, lastUsed}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(sheet, "A", "B", 20)
	_ = f.SetColWidth(sheet, "C", "C", 36)
	_ = f.SetColWidth(sheet, "D", "D", 60)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
