package mapping

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/financials-mapper/internal/common"
	"github.com/joseph-ayodele/financials-mapper/internal/entity"
)

var t0 = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "sundry creditors", NormalizeLabel("  Ｓｕｎｄｒｙ \t CREDITORS "))
	assert.Equal(t, "trade payables", NormalizeLabel("Trade Payables"))
	assert.Equal(t, "", NormalizeLabel(" \n "))
}

func TestLearn_IsMonotonic(t *testing.T) {
	st := NewStore("t1")
	fields := []entity.ExtractedField{{ID: "f001", Label: "Sundry Creditors", Value: "1,23,456.00"}}
	a := []Assignment{{SourceType: "field", SourceKey: "f001", TargetType: TargetField, TargetKey: "accounts_payable"}}

	res, err := st.Learn(a, fields, t0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.EntriesCreated)
	assert.Equal(t, 1, res.LabelsAdded)
	require.Len(t, st.Entries, 1)
	before := st.Entries[0].UsageCount

	_, err = st.Learn(a, fields, t0.Add(time.Hour))
	require.NoError(t, err)
	_, err = st.Learn(a, fields, t0.Add(2*time.Hour))
	require.NoError(t, err)

	e := st.Entries[0]
	assert.Equal(t, before+2, e.UsageCount)
	assert.Equal(t, []string{"sundry creditors"}, e.SourceLabels)
	assert.Equal(t, t0.Add(2*time.Hour), e.LastUsed)
	assert.Equal(t, t0.Add(2*time.Hour), st.UpdatedAt)
}

func TestLearn_OneUsagePerCallPerEntry(t *testing.T) {
	st := NewStore("t1")
	fields := []entity.ExtractedField{
		{ID: "f001", Label: "Sundry Creditors"},
		{ID: "f002", Label: "Trade Payables"},
	}
	res, err := st.Learn([]Assignment{
		{SourceKey: "f001", TargetKey: "accounts_payable"},
		{SourceKey: "f002", TargetKey: "Accounts Payable"},
	}, fields, t0)
	require.NoError(t, err)

	assert.Equal(t, 1, res.EntriesTouched)
	assert.Equal(t, 2, res.LabelsAdded)
	require.Len(t, st.Entries, 1)
	assert.Equal(t, 1, st.Entries[0].UsageCount)
	assert.Equal(t, []string{"sundry creditors", "trade payables"}, st.Entries[0].SourceLabels)
}

func TestLearn_SourceKeyFallsBackToItself(t *testing.T) {
	st := NewStore("t1")
	_, err := st.Learn([]Assignment{{SourceKey: "Bills  Payable", TargetKey: "accounts_payable"}}, nil, t0)
	require.NoError(t, err)
	assert.Equal(t, []string{"bills payable"}, st.Entries[0].SourceLabels)
}

func TestLearn_RejectsBadTargetWithoutMutation(t *testing.T) {
	st := NewStore("t1")
	_, err := st.Learn([]Assignment{
		{SourceKey: "Cash", TargetKey: "turnover"},
		{SourceKey: "Cash", TargetKey: "not_a_field"},
	}, nil, t0)
	require.Error(t, err)
	assert.True(t, common.IsTerminal(err))
	assert.Empty(t, st.Entries)

	_, err = st.Learn([]Assignment{{SourceKey: "Cash", TargetType: "column", TargetKey: "x"}}, nil, t0)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestLearn_TableTargetsAreFreeForm(t *testing.T) {
	st := NewStore("t1")
	_, err := st.Learn([]Assignment{{SourceKey: "Fixed Assets Schedule", TargetType: TargetTable, TargetKey: "fixed_assets"}}, nil, t0)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Find(TargetTable, "fixed_assets"))
}

func TestAddLabel(t *testing.T) {
	st := NewStore("t1")
	added, err := st.AddLabel(TargetField, "interest", "Finance Costs", t0)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = st.AddLabel(TargetField, "interest", "  FINANCE   costs", t0)
	require.NoError(t, err)
	assert.False(t, added)

	require.Len(t, st.Entries, 1)
	assert.Equal(t, []string{"finance costs"}, st.Entries[0].SourceLabels)
	assert.Equal(t, 0, st.Entries[0].UsageCount)

	_, err = st.AddLabel(TargetField, "interest", "   ", t0)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestRemoveLabel_LastLabelDeletesEntry(t *testing.T) {
	st := NewStore("t1")
	_, err := st.AddLabel(TargetField, "turnover", "Net Sales", t0)
	require.NoError(t, err)
	_, err = st.AddLabel(TargetField, "turnover", "Gross Receipts", t0)
	require.NoError(t, err)
	_, err = st.AddLabel(TargetField, "purchases", "Purchase Accounts", t0)
	require.NoError(t, err)

	res, err := st.RemoveLabel(TargetField, "turnover", "net sales", t0)
	require.NoError(t, err)
	assert.False(t, res.EntryDeleted)
	assert.Equal(t, []string{"gross receipts"}, st.Entries[st.Find(TargetField, "turnover")].SourceLabels)

	res, err = st.RemoveLabel(TargetField, "turnover", "Gross Receipts", t0)
	require.NoError(t, err)
	assert.True(t, res.EntryDeleted)
	assert.Equal(t, -1, st.Find(TargetField, "turnover"))
	assert.Len(t, st.Entries, 1)
	for _, e := range st.Entries {
		assert.NotEmpty(t, e.SourceLabels)
	}

	_, err = st.RemoveLabel(TargetField, "turnover", "Gross Receipts", t0)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = st.RemoveLabel(TargetField, "purchases", "unknown", t0)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteEntry(t *testing.T) {
	st := NewStore("t1")
	_, _ = st.AddLabel(TargetField, "pbit", "Operating Profit", t0)
	require.NoError(t, st.DeleteEntry(TargetField, "pbit", t0))
	assert.Empty(t, st.Entries)
	assert.ErrorIs(t, st.DeleteEntry(TargetField, "pbit", t0), common.ErrNotFound)
}

func TestClone_IsDeep(t *testing.T) {
	st := NewStore("t1")
	_, _ = st.AddLabel(TargetField, "pbit", "Operating Profit", t0)
	c := st.Clone()
	c.Entries[0].SourceLabels[0] = "changed"
	assert.Equal(t, "operating profit", st.Entries[0].SourceLabels[0])
}
