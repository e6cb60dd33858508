package entity

import (
	"github.com/joseph-ayodele/financials-mapper/constants"
)

// ExtractedField is one label/value candidate produced by an extraction strategy.
// ID is unique within a single document's extraction result.
type ExtractedField struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// UnmappedField is a raw value the extraction could not pin to a canonical key.
type UnmappedField struct {
	RawLabel string `json:"rawLabel"`
	RawValue string `json:"rawValue"`
}

// FinancialExtractionResult is the externally visible contract of the extraction pipeline.
type FinancialExtractionResult struct {
	Fields         map[constants.CanonicalKey]float64 `json:"fields"`
	UnmappedFields []UnmappedField                    `json:"unmappedFields"`
	Confidence     constants.Grade                    `json:"confidence"`
	Note           string                             `json:"note"`

	Strategy        string           `json:"strategy,omitempty"`
	ExtractedFields []ExtractedField `json:"extractedFields,omitempty"`
}

// PopulatedKeys returns the populated canonical keys in canonical order.
func (r *FinancialExtractionResult) PopulatedKeys() []constants.CanonicalKey {
	out := make([]constants.CanonicalKey, 0, len(r.Fields))
	for _, k := range constants.CanonicalKeys() {
		if _, ok := r.Fields[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Regrade recomputes Confidence from the populated key count.
func (r *FinancialExtractionResult) Regrade() {
	r.Confidence = constants.GradeFor(len(r.PopulatedKeys()))
}
