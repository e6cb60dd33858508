package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/financials-mapper/internal/entity"
)

func storeWith(entries ...Entry) *Store {
	st := NewStore("t1")
	st.Entries = entries
	return st
}

func field(id, label string) entity.ExtractedField {
	return entity.ExtractedField{ID: id, Label: label, Value: "1"}
}

func TestAutoApply_Scores(t *testing.T) {
	st := storeWith(
		Entry{TargetKey: "accounts_payable", TargetType: TargetField, SourceLabels: []string{"sundry creditors"}, UsageCount: 3},
		Entry{TargetKey: "interest", TargetType: TargetField, SourceLabels: []string{"interest on term loan"}, UsageCount: 1},
		Entry{TargetKey: "turnover", TargetType: TargetField, SourceLabels: []string{"net sales"}, UsageCount: 1},
	)
	fields := []entity.ExtractedField{
		field("f001", "SUNDRY  Creditors"),             // exact
		field("f002", "Interest on loan"),              // overlap 3/4
		field("f003", "Net sales (domestic)"),          // containment
		field("f004", "Depreciation and amortisation"), // nothing
	}

	got := AutoApply(st, fields, DefaultMatchConfig())
	require.Len(t, got, 3)

	assert.Equal(t, "f001", got[0].SourceKey)
	assert.Equal(t, "accounts_payable", got[0].TargetKey)
	assert.Equal(t, 1.0, got[0].Confidence)

	assert.Equal(t, "f003", got[1].SourceKey)
	assert.InDelta(t, 0.85, got[1].Confidence, 1e-9)

	assert.Equal(t, "f002", got[2].SourceKey)
	assert.Equal(t, "interest", got[2].TargetKey)
	assert.InDelta(t, 0.5+0.75*0.3, got[2].Confidence, 1e-9)
	assert.Equal(t, "Interest on loan", got[2].SourceLabel)
}

func TestAutoApply_OverlapBelowThreshold(t *testing.T) {
	st := storeWith(Entry{TargetKey: "current_assets", TargetType: TargetField, SourceLabels: []string{"total current assets and loans"}})
	// 2 shared of 5 tokens = 0.4
	got := AutoApply(st, []entity.ExtractedField{field("f001", "current assets gross")}, DefaultMatchConfig())
	assert.Empty(t, got)
}

func TestAutoApply_ThresholdsAreTunable(t *testing.T) {
	st := storeWith(Entry{TargetKey: "current_assets", TargetType: TargetField, SourceLabels: []string{"total current assets and loans"}})
	cfg := DefaultMatchConfig()
	cfg.OverlapThreshold = 0.4
	got := AutoApply(st, []entity.ExtractedField{field("f001", "current assets gross")}, cfg)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.5+0.4*0.3, got[0].Confidence, 1e-9)
}

func TestAutoApply_FieldPrefersHigherUsageOnTie(t *testing.T) {
	st := storeWith(
		Entry{TargetKey: "current_liabilities", TargetType: TargetField, SourceLabels: []string{"provisions"}, UsageCount: 1},
		Entry{TargetKey: "total_liabilities", TargetType: TargetField, SourceLabels: []string{"provisions"}, UsageCount: 5},
	)
	got := AutoApply(st, []entity.ExtractedField{field("f001", "Short term provisions")}, DefaultMatchConfig())
	require.Len(t, got, 1)
	assert.Equal(t, "total_liabilities", got[0].TargetKey)
}

func TestAutoApply_ExactMatchEndsSearch(t *testing.T) {
	st := storeWith(
		Entry{TargetKey: "pbit", TargetType: TargetField, SourceLabels: []string{"operating profit"}, UsageCount: 1},
		Entry{TargetKey: "owners_capital", TargetType: TargetField, SourceLabels: []string{"operating profit"}, UsageCount: 9},
	)
	got := AutoApply(st, []entity.ExtractedField{field("f001", "Operating Profit")}, DefaultMatchConfig())
	require.Len(t, got, 1)
	assert.Equal(t, "pbit", got[0].TargetKey)
}

func TestAutoApply_OneProposalPerTarget(t *testing.T) {
	st := storeWith(Entry{TargetKey: "accounts_payable", TargetType: TargetField, SourceLabels: []string{"sundry creditors"}, UsageCount: 2})
	fields := []entity.ExtractedField{
		field("f001", "Sundry creditors for expenses"), // containment 0.85
		field("f002", "Sundry Creditors"),              // exact 1.0
	}
	got := AutoApply(st, fields, DefaultMatchConfig())
	require.Len(t, got, 1)
	assert.Equal(t, "f002", got[0].SourceKey)
	assert.Equal(t, 1.0, got[0].Confidence)
}

func TestAutoApply_TargetTypesDoNotCollide(t *testing.T) {
	st := storeWith(
		Entry{TargetKey: "turnover", TargetType: TargetField, SourceLabels: []string{"sales"}, UsageCount: 1},
		Entry{TargetKey: "turnover", TargetType: TargetTable, SourceLabels: []string{"revenue"}, UsageCount: 1},
	)
	got := AutoApply(st, []entity.ExtractedField{field("f001", "sales"), field("f002", "revenue")}, DefaultMatchConfig())
	assert.Len(t, got, 2)
}

func TestAutoApply_Deterministic(t *testing.T) {
	st := storeWith(
		Entry{TargetKey: "accounts_payable", TargetType: TargetField, SourceLabels: []string{"sundry creditors", "trade payables"}, UsageCount: 4},
		Entry{TargetKey: "accounts_receivable", TargetType: TargetField, SourceLabels: []string{"sundry debtors", "trade receivables"}, UsageCount: 4},
		Entry{TargetKey: "turnover", TargetType: TargetField, SourceLabels: []string{"revenue from operations"}, UsageCount: 2},
	)
	fields := []entity.ExtractedField{
		field("f001", "Trade payables - MSME"),
		field("f002", "Trade payables - others"),
		field("f003", "Trade receivables"),
		field("f004", "Revenue from operations (net)"),
		field("f005", "Sundry debtors outstanding"),
	}
	first := AutoApply(st, fields, DefaultMatchConfig())
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, AutoApply(st, fields, DefaultMatchConfig()))
	}

	seen := map[string]bool{}
	for i, c := range first {
		assert.False(t, seen[c.TargetKey], "target %s proposed twice", c.TargetKey)
		seen[c.TargetKey] = true
		if i > 0 {
			assert.GreaterOrEqual(t, first[i-1].Confidence, c.Confidence)
		}
	}
	var order []string
	for _, c := range first {
		order = append(order, c.SourceKey)
	}
	assert.Equal(t, []string{"f003", "f001", "f004"}, order)
}

func TestAutoApply_EmptyInputs(t *testing.T) {
	assert.Empty(t, AutoApply(nil, []entity.ExtractedField{field("f001", "x")}, DefaultMatchConfig()))
	assert.Empty(t, AutoApply(NewStore("t"), []entity.ExtractedField{field("f001", "x")}, DefaultMatchConfig()))
	st := storeWith(Entry{TargetKey: "pbit", TargetType: TargetField, SourceLabels: []string{"pbit"}})
	assert.Empty(t, AutoApply(st, []entity.ExtractedField{field("f001", "  ")}, DefaultMatchConfig()))
}
