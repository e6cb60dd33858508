package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/financials-mapper/internal/common"
	"github.com/joseph-ayodele/financials-mapper/internal/core"
	"github.com/joseph-ayodele/financials-mapper/internal/export"
	"github.com/joseph-ayodele/financials-mapper/internal/mapping"
)

// Processor runs one document end to end; *core.Processor satisfies it.
type Processor interface {
	ProcessFile(ctx context.Context, job core.Job) (*core.Outcome, error)
}

// FieldMapperService implements FieldMapperServer over the processor, the
// mapping memory and the export service.
type FieldMapperService struct {
	processor Processor
	memory    *mapping.Service
	exports   *export.Service
	logger    *slog.Logger
}

func NewFieldMapperService(p Processor, memory *mapping.Service, exports *export.Service, logger *slog.Logger) *FieldMapperService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FieldMapperService{processor: p, memory: memory, exports: exports, logger: logger}
}

var _ FieldMapperServer = (*FieldMapperService)(nil)

const maxLabelRunes = 200

// validateLabelRequest defaults an empty target type to field.
func validateLabelRequest(req *LabelRequest) error {
	if req.TargetType == "" {
		req.TargetType = mapping.TargetField
	}
	v := common.NewValidator().
		Field("tenantId", req.TenantID, common.Required).
		Field("targetType", string(req.TargetType), common.OneOf(string(mapping.TargetField), string(mapping.TargetTable))).
		Field("label", req.Label, common.Required, common.MaxLength(maxLabelRunes))
	if req.TargetType == mapping.TargetField {
		v.Field("targetKey", req.TargetKey, common.CanonicalKey)
	} else {
		v.Field("targetKey", req.TargetKey, common.Required, common.MaxLength(maxLabelRunes))
	}
	return v.Err()
}

func (s *FieldMapperService) Extract(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ExtractRequest
	if err := decodeStruct(in, &req, true); err != nil {
		return nil, err
	}
	if err := common.NewValidator().Field("tenantId", req.TenantID, common.Required).Err(); err != nil {
		return nil, err
	}
	if len(req.Data) == 0 {
		return nil, common.EmptyDocumentError()
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "upload"
	}

	out, err := s.processor.ProcessFile(ctx, core.Job{
		TenantID: req.TenantID,
		Name:     name,
		Data:     req.Data,
		YearHint: req.YearHint,
		APIKey:   req.APIKey,
	})
	if err != nil {
		s.logger.Warn("extract failed", "tenant_id", req.TenantID, "document", name, "error", err)
		return nil, err
	}
	resp := ExtractResponse{Result: out.Result, Proposals: out.Proposals}
	if out.Job != nil {
		resp.JobID = out.Job.ID.String()
	}
	return encodeStruct(resp)
}

func (s *FieldMapperService) Learn(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req LearnRequest
	if err := decodeStruct(in, &req, true); err != nil {
		return nil, err
	}
	res, err := s.memory.Learn(ctx, req.TenantID, req.Assignments, req.ExtractedFields)
	if err != nil {
		return nil, err
	}
	return encodeStruct(res)
}

func (s *FieldMapperService) AutoApply(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req AutoApplyRequest
	if err := decodeStruct(in, &req, true); err != nil {
		return nil, err
	}
	cands, err := s.memory.AutoApply(ctx, req.TenantID, req.Fields)
	if err != nil {
		return nil, err
	}
	return encodeStruct(AutoApplyResponse{Candidates: cands})
}

func (s *FieldMapperService) AddLabel(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req LabelRequest
	if err := decodeStruct(in, &req, true); err != nil {
		return nil, err
	}
	if err := validateLabelRequest(&req); err != nil {
		return nil, err
	}
	added, err := s.memory.AddLabel(ctx, req.TenantID, req.TargetType, req.TargetKey, req.Label)
	if err != nil {
		return nil, err
	}
	return encodeStruct(AddLabelResponse{Added: added})
}

func (s *FieldMapperService) RemoveLabel(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req LabelRequest
	if err := decodeStruct(in, &req, true); err != nil {
		return nil, err
	}
	if err := validateLabelRequest(&req); err != nil {
		return nil, err
	}
	res, err := s.memory.RemoveLabel(ctx, req.TenantID, req.TargetType, req.TargetKey, req.Label)
	if err != nil {
		return nil, err
	}
	return encodeStruct(res)
}

func (s *FieldMapperService) GetMemory(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req TenantRequest
	if err := decodeStruct(in, &req, true); err != nil {
		return nil, err
	}
	st, err := s.memory.Get(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	return encodeStruct(st)
}

func (s *FieldMapperService) ExportResults(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ExportRequest
	if err := decodeStruct(in, &req, true); err != nil {
		return nil, err
	}
	if err := common.NewValidator().Field("tenantId", req.TenantID, common.Required).Err(); err != nil {
		return nil, err
	}
	if s.exports == nil {
		return nil, common.NewAppError("UNAVAILABLE", "export is not configured", common.ErrStrategyUnavailable)
	}
	xlsx, err := s.exports.ExportTenantXLSX(ctx, req.TenantID, req.Limit)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "tenant_id", req.TenantID, "err", err)
		return nil, err
	}
	return encodeStruct(ExportResponse{
		Filename: fmt.Sprintf("%s-%s.xlsx", req.TenantID, time.Now().UTC().Format("20060102")),
		XLSX:     xlsx,
	})
}
