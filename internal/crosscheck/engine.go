// Package crosscheck orchestrates a full document-versus-reference run:
// record matching, field-by-field comparison, and in similarity-enhanced
// mode the anomaly scan and confidence scoring.
package crosscheck

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/gridline/crosscheck-cli/internal/anomaly"
	"github.com/gridline/crosscheck-cli/internal/confidence"
	"github.com/gridline/crosscheck-cli/internal/matcher"
	"github.com/gridline/crosscheck-cli/internal/model"
	"github.com/gridline/crosscheck-cli/internal/normalize"
	"github.com/gridline/crosscheck-cli/internal/similarity"
)

// similarityMatchThreshold is the minimum score at which a free-text field
// comparison is ruled MATCH instead of MISMATCH.
const similarityMatchThreshold = 0.75

// Engine runs crosschecks. All collaborators are injected; Scorer, Detector
// and Classifier may be nil, in which case the engine runs in plain mode
// (exact and contains comparisons only).
type Engine struct {
	matcher    *matcher.Matcher
	scorer     *similarity.Scorer
	detector   *anomaly.Detector
	classifier *confidence.Classifier
	now        func() time.Time
}

// Options wires an Engine. Matcher is required.
type Options struct {
	Matcher    *matcher.Matcher
	Scorer     *similarity.Scorer
	Detector   *anomaly.Detector
	Classifier *confidence.Classifier
	Now        func() time.Time
}

func NewEngine(opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		matcher:    opts.Matcher,
		scorer:     opts.Scorer,
		detector:   opts.Detector,
		classifier: opts.Classifier,
		now:        opts.Now,
	}
}

func (e *Engine) mlEnabled() bool { return e.scorer != nil }

// Run matches the extracted fields against the reference records and
// compares every field of the winning record. When no record clears the
// matching threshold the result is an all-MISSING composite with a nil
// matched row.
func (e *Engine) Run(fields model.ExtractedFields, records []model.ReferenceRecord) *model.CrosscheckResult {
	idx, score := e.matcher.Match(fields, records)
	if idx == nil {
		zap.S().Debugw("no reference record matched", "best_score", score)
		return e.noMatchResult(fields)
	}
	rec := records[*idx]
	zap.S().Debugw("matched reference record", "row", rec.RowIndex, "score", score)

	result := &model.CrosscheckResult{MatchedRow: intPtr(rec.RowIndex)}
	for _, key := range model.Fields() {
		result.Results = append(result.Results, e.compareField(key, fields.Get(key), rec.Get(key)))
	}
	result.Summary = buildSummary(result.Results, result.MatchedRow, e.now())

	if e.mlEnabled() {
		e.attachMLExtras(result, fields, &rec)
	}
	return result
}

// RunAllRows compares the extracted fields against every reference record
// unconditionally, skipping the matching step. Useful for exploratory
// review of near-misses.
func (e *Engine) RunAllRows(fields model.ExtractedFields, records []model.ReferenceRecord) []model.RowComparison {
	out := make([]model.RowComparison, 0, len(records))
	for i := range records {
		rc := model.RowComparison{RowIndex: records[i].RowIndex}
		for _, key := range model.Fields() {
			cmp := e.compareField(key, fields.Get(key), records[i].Get(key))
			rc.Results = append(rc.Results, cmp)
			if cmp.Status == model.StatusMatch {
				rc.MatchCount++
			}
		}
		rc.MatchPercentage = roundPct(rc.MatchCount, len(rc.Results))
		out = append(out, rc)
	}
	return out
}

// compareField applies the comparison policy for one field. Branch order
// matters: emptiness, numeric equality, exact text, containment, then
// similarity for free-text fields.
func (e *Engine) compareField(key model.FieldKey, docVal, refVal string) model.FieldComparison {
	cmp := model.FieldComparison{
		FieldName: key.DisplayName(),
		FieldKey:  key,
		DocValue:  docVal,
		RefValue:  refVal,
	}

	switch {
	case docVal == "" && refVal == "":
		cmp.Status = model.StatusMissing
		cmp.Notes = "Both PDF and reference values are empty"
		return cmp
	case docVal == "":
		cmp.Status = model.StatusMissing
		cmp.Notes = "Value not found in PDF"
		return cmp
	case refVal == "":
		cmp.Status = model.StatusMissing
		cmp.Notes = "Value not found in reference data"
		return cmp
	}

	if normalize.IsNumericField(key) {
		docNorm := normalize.Numeric(docVal)
		refNorm := normalize.Numeric(refVal)
		if docNorm == refNorm {
			cmp.Status = model.StatusMatch
			cmp.Notes = "Exact numeric match"
		} else {
			cmp.Status = model.StatusMismatch
			cmp.Notes = fmt.Sprintf("Normalized values differ: %q vs %q", docNorm, refNorm)
		}
		return cmp
	}

	if normalize.Normalize(docVal) == normalize.Normalize(refVal) {
		cmp.Status = model.StatusMatch
		cmp.Notes = "Exact match"
		return cmp
	}
	if normalize.FuzzyContains(docVal, refVal) {
		cmp.Status = model.StatusMatch
		cmp.Notes = "Partial match (one value contains the other)"
		return cmp
	}

	if e.mlEnabled() && isFreeText(key) {
		sim := e.scorer.Score(docVal, refVal)
		class := similarity.Classify(sim)
		cmp.SimilarityUsed = true
		cmp.Similarity = sim
		cmp.SimilarityTier = string(class)
		if sim >= similarityMatchThreshold {
			cmp.Status = model.StatusMatch
			cmp.Notes = fmt.Sprintf("Similar text (%s, score %.4f)", class, sim)
		} else {
			cmp.Status = model.StatusMismatch
			cmp.Notes = fmt.Sprintf("Text differs (%s, score %.4f)", class, sim)
		}
		return cmp
	}

	cmp.Status = model.StatusMismatch
	cmp.Notes = fmt.Sprintf("Values differ: %q vs %q", docVal, refVal)
	return cmp
}

// noMatchResult reports every field MISSING. In similarity-enhanced mode the
// anomaly scan and confidence scorer still run on the extracted fields so the
// caller sees why nothing matched.
func (e *Engine) noMatchResult(fields model.ExtractedFields) *model.CrosscheckResult {
	result := &model.CrosscheckResult{}
	for _, key := range model.Fields() {
		cmp := model.FieldComparison{
			FieldName: key.DisplayName(),
			FieldKey:  key,
			DocValue:  fields.Get(key),
			Status:    model.StatusMissing,
		}
		if cmp.DocValue == "" {
			cmp.Notes = "Value not found in PDF"
		} else {
			cmp.Notes = "No matching reference record"
		}
		result.Results = append(result.Results, cmp)
	}
	result.Summary = buildSummary(result.Results, nil, e.now())

	if e.mlEnabled() {
		if e.detector != nil {
			result.Anomalies = e.detector.CheckRecord(fields)
		}
		if e.classifier != nil {
			e.attachConfidence(result, 0.5, 0.5)
		}
	}
	return result
}

// attachMLExtras decorates a matched result with the similarity map, anomaly
// flags and the confidence score.
func (e *Engine) attachMLExtras(result *model.CrosscheckResult, fields model.ExtractedFields, rec *model.ReferenceRecord) {
	result.Similarity = make(map[model.FieldKey]model.SimilarityDetail)
	for key := range model.FreeTextFields() {
		docVal, refVal := fields.Get(key), rec.Get(key)
		if docVal == "" || refVal == "" {
			continue
		}
		sim := e.scorer.Score(docVal, refVal)
		result.Similarity[key] = model.SimilarityDetail{
			Score:          sim,
			Classification: string(similarity.Classify(sim)),
		}
	}

	// Every free-text comparison carries its similarity metadata, including
	// rows that already matched exactly and never hit the similarity branch.
	for i := range result.Results {
		if d, ok := result.Similarity[result.Results[i].FieldKey]; ok {
			result.Results[i].SimilarityUsed = true
			result.Results[i].Similarity = d.Score
			result.Results[i].SimilarityTier = d.Classification
		}
	}

	if e.detector != nil {
		result.Anomalies = e.detector.CheckRecord(fields)
	}

	if e.classifier != nil {
		meterDev := deviationRatio(fields.Get(model.FieldEndReading), rec.EndReading)
		billingDev := deviationRatio(fields.Get(model.FieldBilledAmount), rec.BilledAmount)
		e.attachConfidence(result, meterDev, billingDev)
	}
}

func (e *Engine) attachConfidence(result *model.CrosscheckResult, meterDev, billingDev float64) {
	features := map[string]float64{
		"match_ratio":       ratio(result.Summary.TotalMatch, result.Summary.TotalFieldsChecked),
		"meter_deviation":   meterDev,
		"billing_deviation": billingDev,
		"anomaly_count":     float64(len(result.Anomalies)),
		"missing_fields":    float64(result.Summary.TotalMissing),
	}
	if d, ok := result.Similarity[model.FieldName]; ok {
		features["name_similarity"] = d.Score
	}
	if d, ok := result.Similarity[model.FieldAddress]; ok {
		features["address_similarity"] = d.Score
	}

	conf, err := e.classifier.Score(features)
	if err != nil {
		zap.S().Warnw("confidence scoring failed", "error", err)
		return
	}
	result.Confidence = &conf
}

// deviationRatio is |doc-ref|/ref capped at 1.0. Zero reference reads as no
// deviation; a parse failure on either side reads as the 0.5 unknown
// sentinel.
func deviationRatio(docVal, refVal string) float64 {
	d, okD := normalize.ToFloat(docVal)
	r, okR := normalize.ToFloat(refVal)
	if !okD || !okR {
		return 0.5
	}
	if r == 0 {
		return 0.0
	}
	return math.Min(math.Abs(d-r)/r, 1.0)
}

func buildSummary(results []model.FieldComparison, matchedRow *int, at time.Time) model.CrosscheckSummary {
	s := model.CrosscheckSummary{
		MatchedRow:         matchedRow,
		TotalFieldsChecked: len(results),
		CheckedAt:          at,
	}
	for _, r := range results {
		switch r.Status {
		case model.StatusMatch:
			s.TotalMatch++
		case model.StatusMismatch:
			s.TotalMismatch++
		case model.StatusMissing:
			s.TotalMissing++
		}
	}
	s.MatchPercentage = roundPct(s.TotalMatch, s.TotalFieldsChecked)
	return s
}

func isFreeText(key model.FieldKey) bool {
	return model.FreeTextFields()[key]
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func roundPct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}

func intPtr(v int) *int { return &v }
