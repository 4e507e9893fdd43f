package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gridline/crosscheck-cli/internal/anomaly"
	"github.com/gridline/crosscheck-cli/internal/confidence"
	"github.com/gridline/crosscheck-cli/internal/crosscheck"
	"github.com/gridline/crosscheck-cli/internal/matcher"
	"github.com/gridline/crosscheck-cli/internal/model"
	"github.com/gridline/crosscheck-cli/internal/reference"
	"github.com/gridline/crosscheck-cli/internal/similarity"
	"github.com/gridline/crosscheck-cli/internal/store"
)

// buildEngine assembles the crosscheck engine from config. With noML the
// engine runs exact and contains comparisons only; otherwise the similarity
// scorer, anomaly detector and a trained confidence classifier are wired in.
func buildEngine(noML bool) (*crosscheck.Engine, error) {
	mcfg := matcher.Config{
		IDWeight:           cfg.Matcher.IDWeight,
		MeterWeight:        cfg.Matcher.MeterWeight,
		NameWeight:         cfg.Matcher.NameWeight,
		AddressWeight:      cfg.Matcher.AddressWeight,
		NameContainsWeight: cfg.Matcher.NameContainsWeight,
		Threshold:          cfg.Matcher.Threshold,
	}
	if err := matcher.ValidateConfig(mcfg); err != nil {
		return nil, err
	}

	if noML {
		return crosscheck.NewEngine(crosscheck.Options{
			Matcher: matcher.New(mcfg, nil),
		}), nil
	}

	scorer := similarity.NewScorer(cfg.Similarity.NgramMin, cfg.Similarity.NgramMax)

	classifier := confidence.NewClassifier(confidence.TrainingConfig{
		Seed:          cfg.Confidence.Seed,
		Samples:       cfg.Confidence.Samples,
		ValidFraction: cfg.Confidence.ValidFraction,
		Trees:         cfg.Confidence.Trees,
		MaxDepth:      cfg.Confidence.MaxDepth,
	})
	metrics, err := classifier.Train()
	if err != nil {
		return nil, eris.Wrap(err, "train confidence classifier")
	}
	zap.L().Debug("confidence classifier trained",
		zap.Int("samples", metrics.Samples),
		zap.Float64("train_accuracy", metrics.TrainAccuracy),
	)

	detector := anomaly.NewDetector(anomaly.Config{
		Contamination: cfg.Anomaly.Contamination,
		Trees:         cfg.Anomaly.Trees,
		Seed:          cfg.Anomaly.Seed,
	})

	return crosscheck.NewEngine(crosscheck.Options{
		Matcher:    matcher.New(mcfg, scorer),
		Scorer:     scorer,
		Detector:   detector,
		Classifier: classifier,
	}), nil
}

// loadReference reads the reference workbook, letting flags override config.
func loadReference(path, sheet string) ([]model.ReferenceRecord, error) {
	if path == "" {
		path = cfg.Reference.Path
	}
	if path == "" {
		return nil, eris.New("reference workbook path is required (--reference or reference.path)")
	}
	if sheet == "" {
		sheet = cfg.Reference.SheetName
	}
	records, err := reference.Load(path, reference.Options{
		SheetName: sheet,
		HeaderRow: cfg.Reference.HeaderRow,
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("reference loaded", zap.String("path", path), zap.Int("records", len(records)))
	return records, nil
}

func initStore(ctx context.Context) (*store.SQLiteStore, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// verdict condenses a result for run history and batch summaries.
func verdict(result *model.CrosscheckResult) string {
	switch {
	case result.MatchedRow == nil:
		return "NO_MATCH"
	case result.Confidence != nil:
		return result.Confidence.Prediction
	case result.Summary.TotalMismatch == 0:
		return "VALID"
	default:
		return "SUSPICIOUS"
	}
}
