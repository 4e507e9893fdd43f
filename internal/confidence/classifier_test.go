package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridline/crosscheck-cli/internal/model"
)

func cleanFeatures() map[string]float64 {
	return map[string]float64{
		"match_ratio":        1.0,
		"name_similarity":    1.0,
		"address_similarity": 0.98,
		"meter_deviation":    0.0,
		"billing_deviation":  0.0,
		"anomaly_count":      0,
		"missing_fields":     0,
	}
}

func dirtyFeatures() map[string]float64 {
	return map[string]float64{
		"match_ratio":        0.35,
		"name_similarity":    0.3,
		"address_similarity": 0.25,
		"meter_deviation":    0.45,
		"billing_deviation":  0.55,
		"anomaly_count":      4,
		"missing_fields":     4,
	}
}

func TestTrainMetrics(t *testing.T) {
	c := NewClassifier(DefaultTrainingConfig())
	metrics, err := c.Train()
	require.NoError(t, err)

	assert.Equal(t, 500, metrics.Samples)
	assert.Equal(t, 300, metrics.ValidCount)
	assert.Equal(t, 200, metrics.InvalidCount)
	assert.Greater(t, metrics.TrainAccuracy, 0.95, "classes are well separated, training accuracy should be high")

	var sum float64
	for _, imp := range metrics.Importances {
		assert.GreaterOrEqual(t, imp, 0.0)
		sum += imp
	}
	assert.InDelta(t, 1.0, sum, 0.01, "importances should sum to 1")
}

func TestScoreSeparatesClasses(t *testing.T) {
	c := NewClassifier(DefaultTrainingConfig())
	_, err := c.Train()
	require.NoError(t, err)

	clean, err := c.Score(cleanFeatures())
	require.NoError(t, err)
	dirty, err := c.Score(dirtyFeatures())
	require.NoError(t, err)

	assert.Greater(t, clean.Score, 85.0)
	assert.Equal(t, PredictionValid, clean.Prediction)
	assert.Equal(t, model.RiskLow, clean.Risk)

	assert.Less(t, dirty.Score, 60.0)
	assert.Equal(t, PredictionSuspicious, dirty.Prediction)
	assert.Equal(t, model.RiskHigh, dirty.Risk)
}

func TestScoreBounds(t *testing.T) {
	c := NewClassifier(DefaultTrainingConfig())
	res, err := c.Score(cleanFeatures())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Score, 0.0)
	assert.LessOrEqual(t, res.Score, 100.0)
	assert.Len(t, res.Contributions, len(FeatureNames))
}

func TestScoreLazyTrains(t *testing.T) {
	c := NewClassifier(DefaultTrainingConfig())
	// No explicit Train call.
	res, err := c.Score(cleanFeatures())
	require.NoError(t, err)
	assert.Equal(t, PredictionValid, res.Prediction)
}

func TestScoreMissingFeatureDefaults(t *testing.T) {
	c := NewClassifier(DefaultTrainingConfig())
	_, err := c.Train()
	require.NoError(t, err)

	// Only match ratio supplied: deviations default to the 0.5 "unknown"
	// midpoint, which should drag the score down versus a clean document.
	partial, err := c.Score(map[string]float64{"match_ratio": 1.0})
	require.NoError(t, err)
	clean, err := c.Score(cleanFeatures())
	require.NoError(t, err)
	assert.Less(t, partial.Score, clean.Score)
}

func TestScoreDeterministic(t *testing.T) {
	a := NewClassifier(DefaultTrainingConfig())
	b := NewClassifier(DefaultTrainingConfig())
	_, err := a.Train()
	require.NoError(t, err)
	_, err = b.Train()
	require.NoError(t, err)

	ra, err := a.Score(dirtyFeatures())
	require.NoError(t, err)
	rb, err := b.Score(dirtyFeatures())
	require.NoError(t, err)
	assert.Equal(t, ra, rb, "same seed must produce identical models")
}

func TestTrainOnValidation(t *testing.T) {
	c := NewClassifier(DefaultTrainingConfig())

	t.Run("empty set", func(t *testing.T) {
		_, err := c.TrainOn(nil, nil)
		assert.Error(t, err)
	})

	t.Run("single class", func(t *testing.T) {
		X := [][]float64{make([]float64, len(FeatureNames)), make([]float64, len(FeatureNames))}
		_, err := c.TrainOn(X, []int{1, 1})
		assert.Error(t, err)
	})

	t.Run("feature width mismatch", func(t *testing.T) {
		_, err := c.TrainOn([][]float64{{1, 2}}, []int{1})
		assert.Error(t, err)
	})
}

func TestExplainRanksImportances(t *testing.T) {
	c := NewClassifier(DefaultTrainingConfig())
	ranked, err := c.Explain()
	require.NoError(t, err)
	require.Len(t, ranked, len(FeatureNames))
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Importance, ranked[i].Importance)
	}
}

func TestGenerateTrainingDataDeterministic(t *testing.T) {
	cfg := DefaultTrainingConfig()
	x1, y1 := generateTrainingData(cfg)
	x2, y2 := generateTrainingData(cfg)
	assert.Equal(t, x1, x2)
	assert.Equal(t, y1, y2)

	cfg.Seed = 7
	x3, _ := generateTrainingData(cfg)
	assert.NotEqual(t, x1, x3, "different seeds must produce different data")
}
