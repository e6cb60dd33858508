package server

import (
	"bytes"
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/financials-mapper/internal/common"
	"github.com/joseph-ayodele/financials-mapper/internal/entity"
	"github.com/joseph-ayodele/financials-mapper/internal/mapping"
)

// ExtractRequest carries one document; Data travels as base64.
type ExtractRequest struct {
	TenantID string `json:"tenantId"`
	Name     string `json:"name,omitempty"`
	Data     []byte `json:"data"`
	YearHint string `json:"yearHint,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
}

type ExtractResponse struct {
	JobID     string                            `json:"jobId,omitempty"`
	Result    *entity.FinancialExtractionResult `json:"result"`
	Proposals []mapping.Candidate               `json:"proposals"`
}

type LearnRequest struct {
	TenantID        string                  `json:"tenantId"`
	Assignments     []mapping.Assignment    `json:"assignments"`
	ExtractedFields []entity.ExtractedField `json:"extractedFields"`
}

type AutoApplyRequest struct {
	TenantID string                  `json:"tenantId"`
	Fields   []entity.ExtractedField `json:"fields"`
}

type AutoApplyResponse struct {
	Candidates []mapping.Candidate `json:"candidates"`
}

// LabelRequest addresses one variant of one target.
type LabelRequest struct {
	TenantID   string             `json:"tenantId"`
	TargetType mapping.TargetType `json:"targetType,omitempty"`
	TargetKey  string             `json:"targetKey"`
	Label      string             `json:"label"`
}

type AddLabelResponse struct {
	Added bool `json:"added"`
}

type TenantRequest struct {
	TenantID string `json:"tenantId"`
}

type ExportRequest struct {
	TenantID string `json:"tenantId"`
	Limit    int    `json:"limit,omitempty"`
}

type ExportResponse struct {
	Filename string `json:"filename"`
	XLSX     []byte `json:"xlsx"`
}

// decodeStruct fills dst from a Struct body. Unknown keys are rejected when
// strict is set.
func decodeStruct(in *structpb.Struct, dst any, strict bool) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	raw, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal struct: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		return common.NewAppError("BAD_REQUEST", fmt.Sprintf("malformed body: %v", err), common.ErrInvalidInput)
	}
	return nil
}

// encodeStruct turns a JSON-serializable object into a Struct body.
func encodeStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return out, nil
}
