package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/financials-mapper/constants"
	"github.com/joseph-ayodele/financials-mapper/internal/common"
	"github.com/joseph-ayodele/financials-mapper/internal/core"
	"github.com/joseph-ayodele/financials-mapper/internal/entity"
	"github.com/joseph-ayodele/financials-mapper/internal/export"
	"github.com/joseph-ayodele/financials-mapper/internal/mapping"
	"github.com/joseph-ayodele/financials-mapper/internal/repository"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type stubProcessor struct {
	jobs repository.ExtractJobRepository
	err  error
	got  core.Job
}

func (p *stubProcessor) ProcessFile(ctx context.Context, job core.Job) (*core.Outcome, error) {
	p.got = job
	if p.err != nil {
		return nil, p.err
	}
	res := &entity.FinancialExtractionResult{
		Fields:         map[constants.CanonicalKey]float64{constants.AccountsPayable: 123456},
		UnmappedFields: []entity.UnmappedField{},
		Note:           "AI not configured; text layer readable, OCR skipped; synonym matching found 1/10 fields",
		Strategy:       "synonym",
		ExtractedFields: []entity.ExtractedField{
			{ID: "f1", Label: "Sundry Creditors", Value: "1,23,456.00", Confidence: 0.9},
		},
	}
	res.Regrade()
	ej := &entity.ExtractJob{
		ID:           uuid.New(),
		TenantID:     job.TenantID,
		DocumentName: job.Name,
		Strategy:     res.Strategy,
		Grade:        string(res.Confidence),
		FieldCount:   1,
		ResultJSON:   []byte(`{"fields":{"accounts_payable":123456},"confidence":"low","note":"synonym"}`),
	}
	if p.jobs != nil {
		if err := p.jobs.Create(ctx, ej); err != nil {
			return nil, err
		}
	}
	return &core.Outcome{Job: ej, Result: res, Proposals: []mapping.Candidate{}}, nil
}

type harness struct {
	client *Client
	conn   *grpc.ClientConn
	proc   *stubProcessor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	logger := discard()

	dsn := "file:" + filepath.Join(t.TempDir(), "server.db")
	db, err := ConnectDB(ctx, common.DatabaseConfig{DSN: dsn}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(logger) })

	jobs := repository.NewExtractJobRepository(db, logger)
	memory := mapping.NewService(repository.NewMappingMemoryRepository(db, logger), mapping.DefaultMatchConfig(), logger)
	proc := &stubProcessor{jobs: jobs}
	svc := NewFieldMapperService(proc, memory, export.NewService(jobs, memory, logger), logger)

	gs, _ := NewGRPCServer(svc, 1<<20, logger)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &harness{client: NewClient(conn), conn: conn, proc: proc}
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	resp, err := healthpb.NewHealthClient(h.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestExtract(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var header metadata.MD
	resp, err := h.client.Extract(ctx, ExtractRequest{
		TenantID: "acme",
		Name:     "fy24.pdf",
		Data:     []byte("%PDF-1.7 fake"),
		YearHint: "2023-24",
	}, grpc.Header(&header))
	require.NoError(t, err)

	assert.Equal(t, 123456.0, resp.Result.Fields[constants.AccountsPayable])
	assert.Equal(t, constants.GradeLow, resp.Result.Confidence)
	assert.Contains(t, resp.Result.Note, "synonym matching found 1/10 fields")
	assert.NotEmpty(t, resp.JobID)
	assert.NotEmpty(t, header.Get(RequestIDHeader))

	assert.Equal(t, "acme", h.proc.got.TenantID)
	assert.Equal(t, []byte("%PDF-1.7 fake"), h.proc.got.Data)
	assert.Equal(t, "2023-24", h.proc.got.YearHint)
}

func TestExtract_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.client.Extract(ctx, ExtractRequest{TenantID: "acme"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = h.client.Extract(ctx, ExtractRequest{Data: []byte("x")})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	h.proc.err = common.UnsupportedTypeError("text/plain")
	_, err = h.client.Extract(ctx, ExtractRequest{TenantID: "acme", Data: []byte("hello")})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "unsupported document type")

	h.proc.err = errors.New("disk on fire")
	_, err = h.client.Extract(ctx, ExtractRequest{TenantID: "acme", Data: []byte("hello")})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestUnknownFieldRejected(t *testing.T) {
	h := newHarness(t)
	in, err := structpb.NewStruct(map[string]any{"tenantId": "acme", "bogus": true})
	require.NoError(t, err)
	err = h.conn.Invoke(context.Background(), fullMethod("GetMemory"), in, new(structpb.Struct))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestMemoryRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fields := []entity.ExtractedField{{ID: "f1", Label: "Sundry Creditors", Value: "123456"}}

	learned, err := h.client.Learn(ctx, LearnRequest{
		TenantID: "acme",
		Assignments: []mapping.Assignment{{
			SourceType: "field", SourceKey: "f1",
			TargetType: mapping.TargetField, TargetKey: "accounts_payable",
		}},
		ExtractedFields: fields,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, learned.EntriesCreated)
	assert.Equal(t, 1, learned.LabelCount)

	added, err := h.client.AddLabel(ctx, LabelRequest{TenantID: "acme", TargetKey: "accounts_payable", Label: "Trade  Creditors"})
	require.NoError(t, err)
	assert.True(t, added)

	st, err := h.client.GetMemory(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, st.Entries, 1)
	assert.Equal(t, []string{"sundry creditors", "trade creditors"}, st.Entries[0].SourceLabels)
	assert.Equal(t, 1, st.Entries[0].UsageCount)

	cands, err := h.client.AutoApply(ctx, AutoApplyRequest{
		TenantID: "acme",
		Fields:   []entity.ExtractedField{{ID: "x9", Label: "SUNDRY CREDITORS", Value: "10"}},
	})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "x9", cands[0].SourceKey)
	assert.Equal(t, "accounts_payable", cands[0].TargetKey)
	assert.Equal(t, 1.0, cands[0].Confidence)

	for _, label := range []string{"sundry creditors", "trade creditors"} {
		_, err = h.client.RemoveLabel(ctx, LabelRequest{TenantID: "acme", TargetKey: "accounts_payable", Label: label})
		require.NoError(t, err)
	}
	st, err = h.client.GetMemory(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, st.Entries)

	_, err = h.client.RemoveLabel(ctx, LabelRequest{TenantID: "acme", TargetKey: "accounts_payable", Label: "gone"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = h.client.AddLabel(ctx, LabelRequest{TenantID: "acme", TargetKey: "net_profit", Label: "x"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestLabelRequestValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := map[string]LabelRequest{
		"missing tenant":      {TargetKey: "accounts_payable", Label: "creditors"},
		"unknown target type": {TenantID: "acme", TargetType: "sheet", TargetKey: "accounts_payable", Label: "creditors"},
		"non-canonical field": {TenantID: "acme", TargetKey: "net_profit", Label: "creditors"},
		"empty label":         {TenantID: "acme", TargetKey: "accounts_payable", Label: "  "},
		"overlong label":      {TenantID: "acme", TargetKey: "accounts_payable", Label: strings.Repeat("a", maxLabelRunes+1)},
		"empty table key":     {TenantID: "acme", TargetType: mapping.TargetTable, Label: "creditors"},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := h.client.AddLabel(ctx, req)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
			_, err = h.client.RemoveLabel(ctx, req)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}

	added, err := h.client.AddLabel(ctx, LabelRequest{TenantID: "acme", TargetKey: "Accounts Payable", Label: "Creditors"})
	require.NoError(t, err)
	assert.True(t, added)
}

func TestExportResults(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.client.Extract(ctx, ExtractRequest{TenantID: "acme", Name: "a.pdf", Data: []byte("%PDF")})
	require.NoError(t, err)

	resp, err := h.client.ExportResults(ctx, ExportRequest{TenantID: "acme"})
	require.NoError(t, err)
	assert.Contains(t, resp.Filename, "acme-")
	require.Greater(t, len(resp.XLSX), 4)
	assert.Equal(t, []byte("PK"), resp.XLSX[:2])

	_, err = h.client.ExportResults(ctx, ExportRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
