package model

import "time"

// MatchStatus classifies one field comparison.
type MatchStatus string

const (
	StatusMatch    MatchStatus = "MATCH"
	StatusMismatch MatchStatus = "MISMATCH"
	StatusMissing  MatchStatus = "MISSING"
)

// Severity tags an anomaly flag.
type Severity string

const (
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// RiskLevel buckets a confidence score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// FieldComparison is the verdict for a single field of a matched pair.
type FieldComparison struct {
	FieldName      string      `json:"field_name"`
	FieldKey       FieldKey    `json:"field_key"`
	DocValue       string      `json:"doc_value,omitempty"`
	RefValue       string      `json:"ref_value,omitempty"`
	Status         MatchStatus `json:"match_status"`
	Notes          string      `json:"notes"`
	SimilarityUsed bool        `json:"similarity_used,omitempty"`
	Similarity     float64     `json:"similarity_score,omitempty"`
	SimilarityTier string      `json:"similarity_class,omitempty"`
}

// CrosscheckSummary aggregates the field comparisons of one crosscheck run.
// TotalMatch + TotalMismatch + TotalMissing always equals TotalFieldsChecked.
type CrosscheckSummary struct {
	MatchedRow         *int      `json:"matched_row_index"`
	TotalFieldsChecked int       `json:"total_fields_checked"`
	TotalMatch         int       `json:"total_match"`
	TotalMismatch      int       `json:"total_mismatch"`
	TotalMissing       int       `json:"total_missing"`
	MatchPercentage    float64   `json:"match_percentage"`
	CheckedAt          time.Time `json:"checked_at"`
}

// AnomalyFlag is one rule violation raised for a record. Derived only,
// never persisted.
type AnomalyFlag struct {
	Field    FieldKey `json:"field"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Expected string   `json:"expected"`
	Actual   string   `json:"actual"`
}

// ConfidenceResult is the classifier output for a matched pair.
type ConfidenceResult struct {
	Score         float64            `json:"confidence_score"`
	Prediction    string             `json:"prediction"` // VALID or SUSPICIOUS
	Risk          RiskLevel          `json:"risk_level"`
	Contributions map[string]float64 `json:"feature_contributions"`
}

// SimilarityDetail reports the similarity scoring for one free-text field.
type SimilarityDetail struct {
	Score          float64 `json:"score"`
	Classification string  `json:"classification"`
}

// CrosscheckResult is the composite output of one crosscheck run. The ML
// fields are nil when similarity-enhanced mode is disabled.
type CrosscheckResult struct {
	MatchedRow *int                          `json:"matched_row"`
	Results    []FieldComparison             `json:"results"`
	Summary    CrosscheckSummary             `json:"summary"`
	Similarity map[FieldKey]SimilarityDetail `json:"ml_similarity,omitempty"`
	Anomalies  []AnomalyFlag                 `json:"ml_anomalies,omitempty"`
	Confidence *ConfidenceResult             `json:"ml_confidence,omitempty"`
}

// RowComparison is one entry of the compare-against-all-rows mode.
type RowComparison struct {
	RowIndex        int               `json:"row_index"`
	Results         []FieldComparison `json:"results"`
	MatchCount      int               `json:"match_count"`
	MatchPercentage float64           `json:"match_percentage"`
}
