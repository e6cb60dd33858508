package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/financials-mapper/constants"
	"github.com/joseph-ayodele/financials-mapper/internal/common"
	"github.com/joseph-ayodele/financials-mapper/internal/entity"
	"github.com/joseph-ayodele/financials-mapper/internal/mapping"
	"github.com/joseph-ayodele/financials-mapper/internal/pipeline"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type stubExtractor struct {
	res *entity.FinancialExtractionResult
	err error
	in  pipeline.Input
}

func (s *stubExtractor) Extract(_ context.Context, in pipeline.Input) (*entity.FinancialExtractionResult, error) {
	s.in = in
	return s.res, s.err
}

type memJobs struct {
	created []*entity.ExtractJob
	err     error
}

func (m *memJobs) Create(_ context.Context, job *entity.ExtractJob) error {
	if m.err != nil {
		return m.err
	}
	job.ID = uuid.New()
	m.created = append(m.created, job)
	return nil
}

func (m *memJobs) Get(context.Context, uuid.UUID) (*entity.ExtractJob, error) {
	return nil, common.ErrNotFound
}

func (m *memJobs) ListByTenant(context.Context, string, int) ([]*entity.ExtractJob, error) {
	return m.created, nil
}

func sampleResult() *entity.FinancialExtractionResult {
	res := &entity.FinancialExtractionResult{
		Fields:         map[constants.CanonicalKey]float64{constants.AccountsPayable: 123456},
		UnmappedFields: []entity.UnmappedField{},
		Note:           "synonym matching found 1/10 fields",
		Strategy:       pipeline.StrategySynonym,
		ExtractedFields: []entity.ExtractedField{
			{ID: "f001", Label: "Sundry Creditors", Value: "1,23,456.00", Confidence: 0.9},
		},
	}
	res.Regrade()
	return res
}

func TestProcessFile_PersistsAfterSuccess(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bs.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 body"), 0o600))

	svc := mapping.NewService(mapping.NewMemoryRepository(), mapping.DefaultMatchConfig(), discard())
	_, err := svc.AddLabel(ctx, "acme", mapping.TargetField, "accounts_payable", "Sundry Creditors")
	require.NoError(t, err)

	ext := &stubExtractor{res: sampleResult()}
	jobs := &memJobs{}
	proc := NewProcessor(discard(), ext, svc, jobs)

	out, err := proc.ProcessFile(ctx, Job{TenantID: "acme", Path: path, YearHint: "2023-24"})
	require.NoError(t, err)

	assert.Equal(t, "bs.pdf", ext.in.Name)
	assert.Equal(t, "2023-24", ext.in.YearHint)
	require.Len(t, jobs.created, 1)
	assert.Equal(t, "synonym", jobs.created[0].Strategy)
	assert.Equal(t, "low", jobs.created[0].Grade)
	assert.Equal(t, 1, jobs.created[0].FieldCount)
	assert.Len(t, jobs.created[0].ContentHash, 64)

	require.Len(t, out.Proposals, 1)
	assert.Equal(t, "f001", out.Proposals[0].SourceKey)
	assert.Equal(t, "accounts_payable", out.Proposals[0].TargetKey)
	assert.Equal(t, 1.0, out.Proposals[0].Confidence)
}

func TestProcessFile_NothingPersistedOnFailure(t *testing.T) {
	jobs := &memJobs{}
	proc := NewProcessor(discard(), &stubExtractor{err: common.EmptyDocumentError()}, nil, jobs)

	_, err := proc.ProcessFile(context.Background(), Job{TenantID: "acme", Name: "x.pdf", Data: []byte{0}})
	require.Error(t, err)
	assert.True(t, common.IsTerminal(err))
	assert.Empty(t, jobs.created)
}

func TestProcessFile_CancelledAfterExtract(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	jobs := &memJobs{}
	ext := &stubExtractor{res: sampleResult()}
	proc := NewProcessor(discard(), cancelling{ext, cancel}, nil, jobs)

	_, err := proc.ProcessFile(ctx, Job{TenantID: "acme", Name: "x.pdf", Data: []byte("%PDF-")})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, jobs.created)
}

type cancelling struct {
	inner  *stubExtractor
	cancel context.CancelFunc
}

func (c cancelling) Extract(ctx context.Context, in pipeline.Input) (*entity.FinancialExtractionResult, error) {
	defer c.cancel()
	return c.inner.Extract(ctx, in)
}

func TestProcessFile_Validation(t *testing.T) {
	proc := NewProcessor(discard(), &stubExtractor{res: sampleResult()}, nil, nil)

	_, err := proc.ProcessFile(context.Background(), Job{Path: "x.pdf"})
	require.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = proc.ProcessFile(context.Background(), Job{TenantID: "acme"})
	require.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = proc.ProcessFile(context.Background(), Job{TenantID: "acme", Path: filepath.Join(t.TempDir(), "missing.pdf")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestProcessFile_PersistErrorSurfaces(t *testing.T) {
	jobs := &memJobs{err: common.ErrDatabase}
	proc := NewProcessor(discard(), &stubExtractor{res: sampleResult()}, nil, jobs)

	_, err := proc.ProcessFile(context.Background(), Job{TenantID: "acme", Name: "a.pdf", Data: []byte("%PDF-")})
	require.ErrorIs(t, err, common.ErrDatabase)
}

func TestBuildPipeline_NoProviderNoOCR(t *testing.T) {
	cfg := &common.Config{
		AI:  common.AIConfig{Provider: "none"},
		OCR: common.OCRConfig{Engine: "none"},
	}
	p, engines, err := BuildPipeline(context.Background(), cfg, discard())
	require.NoError(t, err)
	defer engines.Close()
	assert.Equal(t, []string{"ai", "ocr+parser", "synonym", "raw-lines"}, p.Strategies())

	res, err := p.Extract(context.Background(), pipeline.Input{Name: "scan.png", Data: append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)})
	require.NoError(t, err)
	assert.Equal(t, "raw-lines", res.Strategy)
	assert.Equal(t, "AI not configured; OCR not configured; no text for synonym matching; no readable text; 0/10 fields", res.Note)
}
