package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExtractJob represents a finished extraction for data transfer between layers.
type ExtractJob struct {
	ID           uuid.UUID       `json:"id"`
	TenantID     string          `json:"tenant_id"`
	DocumentName string          `json:"document_name"`
	ContentHash  string          `json:"content_hash"`
	Strategy     string          `json:"strategy"`
	Grade        string          `json:"grade"`
	FieldCount   int             `json:"field_count"`
	ResultJSON   json.RawMessage `json:"result_json,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Result decodes the stored extraction result.
func (j *ExtractJob) Result() (*FinancialExtractionResult, error) {
	var out FinancialExtractionResult
	if len(j.ResultJSON) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(j.ResultJSON, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
