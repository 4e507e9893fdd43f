package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridline/crosscheck-cli/internal/extract"
	"github.com/gridline/crosscheck-cli/internal/model"
)

func sampleResult() *model.CrosscheckResult {
	row := 0
	return &model.CrosscheckResult{
		MatchedRow: &row,
		Results: []model.FieldComparison{
			{FieldName: "ID Pelanggan", FieldKey: model.FieldID, DocValue: "532100012345", RefValue: "532100012345", Status: model.StatusMatch, Notes: "Exact match"},
			{FieldName: "Nama Pelanggan", FieldKey: model.FieldName, DocValue: "BUDI", RefValue: "SITI", Status: model.StatusMismatch, Notes: "Values differ"},
			{FieldName: "Periode", FieldKey: model.FieldPeriod, Status: model.StatusMissing, Notes: "Value not found in PDF"},
		},
		Summary: model.CrosscheckSummary{
			MatchedRow:         &row,
			TotalFieldsChecked: 3,
			TotalMatch:         1,
			TotalMismatch:      1,
			TotalMissing:       1,
			MatchPercentage:    33.3,
		},
		Confidence: &model.ConfidenceResult{Score: 72.5, Prediction: "VALID", Risk: model.RiskMedium},
		Anomalies: []model.AnomalyFlag{
			{Field: model.FieldEndReading, Severity: model.SeverityCritical, Message: "meter went backwards"},
		},
	}
}

func sampleExtraction() *extract.Result {
	return &extract.Result{
		Fields:   map[model.FieldKey]extract.Match{model.FieldID: {Value: "532100012345"}},
		Metadata: extract.Metadata{DocumentName: "doc.txt", PageCount: 2, FieldsFound: 1, FieldsMissing: 10},
	}
}

func TestRenderResultTable(t *testing.T) {
	var buf bytes.Buffer
	err := renderResult(&buf, "table", "doc.txt", sampleExtraction(), sampleResult())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Matched reference row: 0")
	assert.Contains(t, out, "ID Pelanggan")
	assert.Contains(t, out, "MISMATCH")
	assert.Contains(t, out, "Checked 3 fields: 1 match, 1 mismatch, 1 missing (33.3% match)")
	assert.Contains(t, out, "[CRITICAL]")
	assert.Contains(t, out, "Confidence: 72.5 (VALID, risk MEDIUM)")
}

func TestRenderResultJSON(t *testing.T) {
	var buf bytes.Buffer
	err := renderResult(&buf, "json", "doc.txt", sampleExtraction(), sampleResult())
	require.NoError(t, err)

	var decoded model.CrosscheckResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 3, decoded.Summary.TotalFieldsChecked)
	require.NotNil(t, decoded.MatchedRow)
	assert.Equal(t, 0, *decoded.MatchedRow)
}

func TestRenderResultCSV(t *testing.T) {
	var buf bytes.Buffer
	err := renderResult(&buf, "csv", "doc.txt", sampleExtraction(), sampleResult())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "field,doc_value,ref_value,status,notes", lines[0])
	assert.Contains(t, lines[1], "MATCH")
}

func TestRenderResultUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := renderResult(&buf, "xml", "doc.txt", sampleExtraction(), sampleResult())
	assert.Error(t, err)
}

func TestRenderAllRowsTable(t *testing.T) {
	rows := []model.RowComparison{
		{RowIndex: 0, MatchCount: 3, MatchPercentage: 100.0, Results: make([]model.FieldComparison, 3)},
		{RowIndex: 1, MatchCount: 1, MatchPercentage: 33.3, Results: make([]model.FieldComparison, 3)},
	}

	var buf bytes.Buffer
	require.NoError(t, renderAllRows(&buf, "table", "doc.txt", rows))
	assert.Contains(t, buf.String(), "Row 0: 3/3 fields match (100.0%)")
	assert.Contains(t, buf.String(), "Row 1: 1/3 fields match (33.3%)")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 30))
	long := strings.Repeat("a", 40)
	got := truncate(long, 30)
	assert.Len(t, got, 30)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestTruncateMultibyte(t *testing.T) {
	long := strings.Repeat("É", 40)
	got := truncate(long, 30)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 30, utf8.RuneCountInString(got))
	assert.Equal(t, strings.Repeat("É", 27)+"...", got)
	assert.Equal(t, strings.Repeat("É", 30), truncate(strings.Repeat("É", 30), 30))
}
