// Package confidence scores how trustworthy a crosschecked document is,
// blending match ratio, similarity, deviation, and anomaly signals through
// a bagged decision-tree classifier trained on synthetic distributions.
package confidence

import "math/rand"

// FeatureNames enumerates the classifier features, in input order.
var FeatureNames = []string{
	"match_ratio",
	"name_similarity",
	"address_similarity",
	"meter_deviation",
	"billing_deviation",
	"anomaly_count",
	"missing_fields",
}

// Range is a uniform sampling interval.
type Range struct {
	Lo float64 `mapstructure:"lo"`
	Hi float64 `mapstructure:"hi"`
}

func (r Range) sample(rng *rand.Rand) float64 {
	return r.Lo + rng.Float64()*(r.Hi-r.Lo)
}

// Choice is a weighted discrete outcome for count features.
type Choice struct {
	Value  float64 `mapstructure:"value"`
	Weight float64 `mapstructure:"weight"`
}

func sampleChoice(rng *rand.Rand, choices []Choice) float64 {
	var total float64
	for _, c := range choices {
		total += c.Weight
	}
	u := rng.Float64() * total
	for _, c := range choices {
		u -= c.Weight
		if u < 0 {
			return c.Value
		}
	}
	return choices[len(choices)-1].Value
}

// ClassProfile describes the sampling distribution of one training class.
type ClassProfile struct {
	MatchRatio       Range    `mapstructure:"match_ratio"`
	NameSimilarity   Range    `mapstructure:"name_similarity"`
	AddrSimilarity   Range    `mapstructure:"address_similarity"`
	MeterDeviation   Range    `mapstructure:"meter_deviation"`
	BillingDeviation Range    `mapstructure:"billing_deviation"`
	AnomalyCounts    []Choice `mapstructure:"anomaly_counts"`
	MissingCounts    []Choice `mapstructure:"missing_counts"`
}

// TrainingConfig controls the synthetic training set and the ensemble
// shape. All parameters are explicit so tests can substitute fixed small
// datasets and assert exact behavior.
type TrainingConfig struct {
	Seed          int64        `mapstructure:"seed"`
	Samples       int          `mapstructure:"samples"`
	ValidFraction float64      `mapstructure:"valid_fraction"`
	Trees         int          `mapstructure:"trees"`
	MaxDepth      int          `mapstructure:"max_depth"`
	Valid         ClassProfile `mapstructure:"valid"`
	Invalid       ClassProfile `mapstructure:"invalid"`
}

// DefaultTrainingConfig mirrors the distributions observed in historical
// crosscheck outcomes: valid documents cluster at high match/similarity and
// low deviation, suspicious ones at the complementary ranges.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Seed:          42,
		Samples:       500,
		ValidFraction: 0.6,
		Trees:         100,
		MaxDepth:      8,
		Valid: ClassProfile{
			MatchRatio:       Range{0.85, 1.0},
			NameSimilarity:   Range{0.85, 1.0},
			AddrSimilarity:   Range{0.75, 1.0},
			MeterDeviation:   Range{0.0, 0.05},
			BillingDeviation: Range{0.0, 0.1},
			AnomalyCounts:    []Choice{{0, 0.9}, {1, 0.1}},
			MissingCounts:    []Choice{{0, 0.9}, {1, 0.1}},
		},
		Invalid: ClassProfile{
			MatchRatio:       Range{0.3, 0.85},
			NameSimilarity:   Range{0.2, 0.85},
			AddrSimilarity:   Range{0.2, 0.80},
			MeterDeviation:   Range{0.05, 0.5},
			BillingDeviation: Range{0.1, 0.6},
			AnomalyCounts:    []Choice{{1, 0.3}, {2, 0.3}, {3, 0.25}, {4, 0.15}},
			MissingCounts:    []Choice{{1, 0.3}, {2, 0.3}, {3, 0.25}, {4, 0.15}},
		},
	}
}

func (p ClassProfile) sample(rng *rand.Rand) []float64 {
	return []float64{
		p.MatchRatio.sample(rng),
		p.NameSimilarity.sample(rng),
		p.AddrSimilarity.sample(rng),
		p.MeterDeviation.sample(rng),
		p.BillingDeviation.sample(rng),
		sampleChoice(rng, p.AnomalyCounts),
		sampleChoice(rng, p.MissingCounts),
	}
}

// generateTrainingData builds the deterministic synthetic training set:
// ValidFraction of Samples labeled 1 from the valid profile, the remainder
// labeled 0 from the invalid profile.
func generateTrainingData(cfg TrainingConfig) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(cfg.Seed))

	nValid := int(float64(cfg.Samples) * cfg.ValidFraction)
	X := make([][]float64, 0, cfg.Samples)
	y := make([]int, 0, cfg.Samples)

	for i := 0; i < nValid; i++ {
		X = append(X, cfg.Valid.sample(rng))
		y = append(y, 1)
	}
	for i := nValid; i < cfg.Samples; i++ {
		X = append(X, cfg.Invalid.sample(rng))
		y = append(y, 0)
	}
	return X, y
}
