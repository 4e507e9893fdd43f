package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridline/crosscheck-cli/internal/model"
	"github.com/gridline/crosscheck-cli/internal/similarity"
)

func testRecords() []model.ReferenceRecord {
	return []model.ReferenceRecord{
		{RowIndex: 0, ID: "532100012345", Name: "BUDI SANTOSO", Address: "Jalan Merdeka Nomor 10 Jakarta Timur", MeterNumber: "MTR-8891"},
		{RowIndex: 1, ID: "532100099999", Name: "SITI AMINAH", Address: "Gang Melati Nomor 3 Bandung", MeterNumber: "MTR-1204"},
		{RowIndex: 2, ID: "532100054321", Name: "AGUS WIJAYA", Address: "Jalan Sudirman Nomor 88 Surabaya", MeterNumber: "MTR-7777"},
	}
}

func TestMatchExactIDWins(t *testing.T) {
	m := New(DefaultConfig(), similarity.NewScorer(0, 0))

	// Dotted PDF rendering of the ID still matches after numeric
	// normalization.
	fields := model.NewExtractedFields()
	fields[model.FieldID] = "532.100.012.345"

	idx, score := m.Match(fields, testRecords())
	require.NotNil(t, idx)
	assert.Equal(t, 0, *idx)
	assert.InDelta(t, 10.0, score, 1e-9)
}

func TestMatchCombinesSignals(t *testing.T) {
	m := New(DefaultConfig(), similarity.NewScorer(0, 0))

	fields := model.NewExtractedFields()
	fields[model.FieldID] = "532100054321"
	fields[model.FieldMeterNumber] = "mtr-7777"
	fields[model.FieldName] = "Agus Wijaya"

	idx, score := m.Match(fields, testRecords())
	require.NotNil(t, idx)
	assert.Equal(t, 2, *idx)
	// ID (10) + meter (5) + name similarity near 1.0 scaled by 4.
	assert.Greater(t, score, 18.0)
}

func TestMatchBelowThreshold(t *testing.T) {
	m := New(DefaultConfig(), similarity.NewScorer(0, 0))

	fields := model.NewExtractedFields()
	fields[model.FieldID] = "000000000000"
	fields[model.FieldName] = "ZZZZ QQQQ"

	idx, score := m.Match(fields, testRecords())
	assert.Nil(t, idx)
	assert.Less(t, score, DefaultConfig().Threshold)
}

func TestMatchNoFieldsNoCandidates(t *testing.T) {
	m := New(DefaultConfig(), similarity.NewScorer(0, 0))

	idx, score := m.Match(model.NewExtractedFields(), testRecords())
	assert.Nil(t, idx)
	assert.Zero(t, score)

	idx, score = m.Match(model.NewExtractedFields(), nil)
	assert.Nil(t, idx)
	assert.Zero(t, score)
}

func TestMatchContainsFallback(t *testing.T) {
	// Without a scorer only exact signals and name containment count.
	m := New(DefaultConfig(), nil)

	fields := model.NewExtractedFields()
	fields[model.FieldName] = "SITI AMINAH"
	fields[model.FieldAddress] = "Gang Melati Nomor 3 Bandung"

	idx, score := m.Match(fields, testRecords())
	require.NotNil(t, idx)
	assert.Equal(t, 1, *idx)
	// Flat contains bonus, no address contribution.
	assert.InDelta(t, 3.0, score, 1e-9)
}

func TestMatchTieBreakFirstWins(t *testing.T) {
	m := New(DefaultConfig(), nil)

	records := []model.ReferenceRecord{
		{RowIndex: 0, ID: "111", Name: "DUPLICATE NAME"},
		{RowIndex: 1, ID: "222", Name: "DUPLICATE NAME"},
	}
	fields := model.NewExtractedFields()
	fields[model.FieldName] = "DUPLICATE NAME"

	idx, _ := m.Match(fields, records)
	require.NotNil(t, idx)
	assert.Equal(t, 0, *idx)
}

func TestMatchIdempotent(t *testing.T) {
	m := New(DefaultConfig(), similarity.NewScorer(0, 0))

	fields := model.NewExtractedFields()
	fields[model.FieldID] = "532100012345"
	fields[model.FieldName] = "Budi Santoso"
	fields[model.FieldAddress] = "Jl Merdeka No 10 Jkt Tmr"

	idx1, score1 := m.Match(fields, testRecords())
	idx2, score2 := m.Match(fields, testRecords())
	require.NotNil(t, idx1)
	require.NotNil(t, idx2)
	assert.Equal(t, *idx1, *idx2)
	assert.Equal(t, score1, score2)
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, ValidateConfig(DefaultConfig()))

	bad := DefaultConfig()
	bad.IDWeight = -1
	assert.Error(t, ValidateConfig(bad))

	bad = DefaultConfig()
	bad.Threshold = 0
	assert.Error(t, ValidateConfig(bad))

	bad = DefaultConfig()
	bad.Threshold = 100
	assert.Error(t, ValidateConfig(bad))
}
