// Package matcher selects the reference record that best matches a set of
// extracted document fields, or declares that none does.
package matcher

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/gridline/crosscheck-cli/internal/model"
	"github.com/gridline/crosscheck-cli/internal/normalize"
	"github.com/gridline/crosscheck-cli/internal/similarity"
)

// Config holds the matching weights and acceptance threshold. These are
// empirical constants; deployments may recalibrate them, so they are
// configuration rather than hard invariants.
type Config struct {
	IDWeight           float64 `mapstructure:"id_weight"`
	MeterWeight        float64 `mapstructure:"meter_weight"`
	NameWeight         float64 `mapstructure:"name_weight"`
	AddressWeight      float64 `mapstructure:"address_weight"`
	NameContainsWeight float64 `mapstructure:"name_contains_weight"`
	Threshold          float64 `mapstructure:"threshold"`
}

// DefaultConfig returns the standard weights: exact ID 10, exact meter 5,
// name similarity up to 4 (flat 3 on a contains match without similarity
// scoring), address similarity up to 2, acceptance threshold 3.
func DefaultConfig() Config {
	return Config{
		IDWeight:           10,
		MeterWeight:        5,
		NameWeight:         4,
		AddressWeight:      2,
		NameContainsWeight: 3,
		Threshold:          3,
	}
}

// ValidateConfig checks that a matcher Config is internally consistent.
func ValidateConfig(c Config) error {
	var errs []string
	weights := map[string]float64{
		"id_weight":            c.IDWeight,
		"meter_weight":         c.MeterWeight,
		"name_weight":          c.NameWeight,
		"address_weight":       c.AddressWeight,
		"name_contains_weight": c.NameContainsWeight,
	}
	for name, w := range weights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}
	if c.Threshold <= 0 {
		errs = append(errs, "threshold must be > 0")
	}
	if c.Threshold > c.IDWeight+c.MeterWeight+c.NameWeight+c.AddressWeight {
		errs = append(errs, "threshold exceeds the maximum attainable score")
	}
	if len(errs) > 0 {
		return eris.Errorf("matcher: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Matcher scores candidate reference records against extracted fields.
// A nil similarity scorer disables similarity signals and falls back to
// substring containment for names.
type Matcher struct {
	cfg    Config
	scorer *similarity.Scorer
}

// New creates a Matcher. Pass a nil scorer to disable similarity scoring.
func New(cfg Config, scorer *similarity.Scorer) *Matcher {
	return &Matcher{cfg: cfg, scorer: scorer}
}

// Match returns the index of the best-scoring candidate along with its
// score, or a nil index when no candidate reaches the threshold. Ties go to
// the earliest candidate (strictly-greater comparison), so matching is
// stable and idempotent.
func (m *Matcher) Match(fields model.ExtractedFields, records []model.ReferenceRecord) (*int, float64) {
	docID := normalize.Numeric(fields.Get(model.FieldID))
	docMeter := normalize.Normalize(fields.Get(model.FieldMeterNumber))
	docName := fields.Get(model.FieldName)
	docAddr := fields.Get(model.FieldAddress)

	var bestIdx *int
	var bestScore float64

	for i := range records {
		score := m.scoreCandidate(&records[i], docID, docMeter, docName, docAddr)
		if score > bestScore {
			bestScore = score
			idx := i
			bestIdx = &idx
		}
	}

	if bestScore < m.cfg.Threshold {
		return nil, bestScore
	}
	return bestIdx, bestScore
}

func (m *Matcher) scoreCandidate(rec *model.ReferenceRecord, docID, docMeter, docName, docAddr string) float64 {
	var score float64

	if refID := normalize.Numeric(rec.ID); docID != "" && refID != "" && docID == refID {
		score += m.cfg.IDWeight
	}

	if refMeter := normalize.Normalize(rec.MeterNumber); docMeter != "" && refMeter != "" && docMeter == refMeter {
		score += m.cfg.MeterWeight
	}

	if docName != "" && rec.Name != "" {
		if m.scorer != nil {
			score += m.scorer.Score(docName, rec.Name) * m.cfg.NameWeight
		} else if normalize.FuzzyContains(docName, rec.Name) {
			score += m.cfg.NameContainsWeight
		}
	}

	if docAddr != "" && rec.Address != "" && m.scorer != nil {
		score += m.scorer.Score(docAddr, rec.Address) * m.cfg.AddressWeight
	}

	return score
}
