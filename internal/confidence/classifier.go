package confidence

import (
	"math"
	"math/rand"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/gridline/crosscheck-cli/internal/model"
)

// PredictionValid and PredictionSuspicious are the binary verdict labels.
const (
	PredictionValid      = "VALID"
	PredictionSuspicious = "SUSPICIOUS"
)

// Metrics summarizes a training run.
type Metrics struct {
	Samples       int                `json:"samples"`
	ValidCount    int                `json:"valid_count"`
	InvalidCount  int                `json:"invalid_count"`
	TrainAccuracy float64            `json:"train_accuracy"`
	Importances   map[string]float64 `json:"feature_importances"`
}

// FeatureImportance pairs a feature with its global importance.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// scaler is a fitted standardization transform.
type scaler struct {
	mean []float64
	std  []float64
}

func fitScaler(X [][]float64) scaler {
	cols := len(X[0])
	s := scaler{mean: make([]float64, cols), std: make([]float64, cols)}
	n := float64(len(X))
	for j := 0; j < cols; j++ {
		var sum float64
		for i := range X {
			sum += X[i][j]
		}
		s.mean[j] = sum / n
		var varSum float64
		for i := range X {
			d := X[i][j] - s.mean[j]
			varSum += d * d
		}
		s.std[j] = math.Sqrt(varSum / n)
		if s.std[j] == 0 {
			s.std[j] = 1
		}
	}
	return s
}

func (s scaler) transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j := range x {
		out[j] = (x[j] - s.mean[j]) / s.std[j]
	}
	return out
}

// Classifier is an explicitly owned confidence model. Construct one with
// NewClassifier, Train it once at startup, then share it read-only; Score
// falls back to lazy training when the owner skipped Train. The zero value
// is not usable.
type Classifier struct {
	cfg     TrainingConfig
	forest  *forest
	scaler  scaler
	trained bool
}

// NewClassifier builds an untrained classifier from the given config.
// Non-positive sizes fall back to defaults.
func NewClassifier(cfg TrainingConfig) *Classifier {
	def := DefaultTrainingConfig()
	if cfg.Samples <= 0 {
		cfg.Samples = def.Samples
	}
	if cfg.ValidFraction <= 0 || cfg.ValidFraction >= 1 {
		cfg.ValidFraction = def.ValidFraction
	}
	if cfg.Trees <= 0 {
		cfg.Trees = def.Trees
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if len(cfg.Valid.AnomalyCounts) == 0 {
		cfg.Valid = def.Valid
	}
	if len(cfg.Invalid.AnomalyCounts) == 0 {
		cfg.Invalid = def.Invalid
	}
	return &Classifier{cfg: cfg}
}

// Train fits the ensemble on the configured synthetic training set.
func (c *Classifier) Train() (*Metrics, error) {
	X, y := generateTrainingData(c.cfg)
	return c.TrainOn(X, y)
}

// TrainOn fits the ensemble on a caller-supplied dataset. Labels are 1 for
// valid documents and 0 for suspicious ones; class weights are balanced so
// the minority class is not drowned out.
func (c *Classifier) TrainOn(X [][]float64, y []int) (*Metrics, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, eris.Errorf("confidence: invalid training set (%d samples, %d labels)", len(X), len(y))
	}
	for i := range X {
		if len(X[i]) != len(FeatureNames) {
			return nil, eris.Errorf("confidence: sample %d has %d features, want %d", i, len(X[i]), len(FeatureNames))
		}
	}

	nOne := 0
	for _, label := range y {
		if label == 1 {
			nOne++
		}
	}
	nZero := len(y) - nOne
	if nOne == 0 || nZero == 0 {
		return nil, eris.New("confidence: training set needs both classes")
	}

	c.scaler = fitScaler(X)
	scaled := make([][]float64, len(X))
	for i := range X {
		scaled[i] = c.scaler.transform(X[i])
	}

	// Balanced class weights: n / (2 * class count).
	weights := make([]float64, len(y))
	wOne := float64(len(y)) / (2 * float64(nOne))
	wZero := float64(len(y)) / (2 * float64(nZero))
	for i, label := range y {
		if label == 1 {
			weights[i] = wOne
		} else {
			weights[i] = wZero
		}
	}

	rng := rand.New(rand.NewSource(c.cfg.Seed))
	c.forest = growForest(scaled, y, weights, c.cfg.Trees, c.cfg.MaxDepth, rng)
	c.trained = true

	correct := 0
	for i := range scaled {
		pred := 0
		if c.forest.predictProba(scaled[i]) >= 0.5 {
			pred = 1
		}
		if pred == y[i] {
			correct++
		}
	}

	importances := make(map[string]float64, len(FeatureNames))
	for i, name := range FeatureNames {
		importances[name] = round4(c.forest.importances[i])
	}

	return &Metrics{
		Samples:       len(y),
		ValidCount:    nOne,
		InvalidCount:  nZero,
		TrainAccuracy: round4(float64(correct) / float64(len(y))),
		Importances:   importances,
	}, nil
}

// featureVector orders the input map into the model's feature layout.
// Missing deviations default to the "unknown" midpoint 0.5; other missing
// features default to 0.
func featureVector(features map[string]float64) []float64 {
	get := func(name string, def float64) float64 {
		if v, ok := features[name]; ok {
			return v
		}
		return def
	}
	return []float64{
		get("match_ratio", 0),
		get("name_similarity", 0),
		get("address_similarity", 0),
		get("meter_deviation", 0.5),
		get("billing_deviation", 0.5),
		get("anomaly_count", 0),
		get("missing_fields", 0),
	}
}

// Score produces the confidence result for one document's feature map,
// training lazily if the model has not been trained yet.
func (c *Classifier) Score(features map[string]float64) (model.ConfidenceResult, error) {
	if !c.trained {
		if _, err := c.Train(); err != nil {
			return model.ConfidenceResult{}, err
		}
	}

	raw := featureVector(features)
	proba := c.forest.predictProba(c.scaler.transform(raw))
	confidence := math.Round(proba*1000) / 10

	prediction := PredictionSuspicious
	if confidence >= 60 {
		prediction = PredictionValid
	}

	risk := model.RiskHigh
	switch {
	case confidence >= 85:
		risk = model.RiskLow
	case confidence >= 60:
		risk = model.RiskMedium
	}

	// Additive, not causal: global importance scaled by the raw input.
	contributions := make(map[string]float64, len(FeatureNames))
	for i, name := range FeatureNames {
		contributions[name] = round4(c.forest.importances[i] * raw[i])
	}

	return model.ConfidenceResult{
		Score:         confidence,
		Prediction:    prediction,
		Risk:          risk,
		Contributions: contributions,
	}, nil
}

// Explain returns the feature importances ranked high to low, training
// lazily if needed.
func (c *Classifier) Explain() ([]FeatureImportance, error) {
	if !c.trained {
		if _, err := c.Train(); err != nil {
			return nil, err
		}
	}
	out := make([]FeatureImportance, len(FeatureNames))
	for i, name := range FeatureNames {
		out[i] = FeatureImportance{Feature: name, Importance: round4(c.forest.importances[i])}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	return out, nil
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
