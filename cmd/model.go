package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gridline/crosscheck-cli/internal/confidence"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Inspect the confidence classifier",
}

var modelExplainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Train the classifier and print feature importances",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("model"); err != nil {
			return err
		}

		classifier := confidence.NewClassifier(confidence.TrainingConfig{
			Seed:          cfg.Confidence.Seed,
			Samples:       cfg.Confidence.Samples,
			ValidFraction: cfg.Confidence.ValidFraction,
			Trees:         cfg.Confidence.Trees,
			MaxDepth:      cfg.Confidence.MaxDepth,
		})

		metrics, err := classifier.Train()
		if err != nil {
			return err
		}

		fmt.Printf("Trained on %d synthetic samples (%d valid, %d invalid)\n",
			metrics.Samples, metrics.ValidCount, metrics.InvalidCount)
		fmt.Printf("Training accuracy: %.3f\n\n", metrics.TrainAccuracy)

		importances, err := classifier.Explain()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FEATURE\tIMPORTANCE")
		for _, fi := range importances {
			fmt.Fprintf(w, "%s\t%.4f\n", fi.Feature, fi.Importance)
		}
		return w.Flush()
	},
}

func init() {
	modelCmd.AddCommand(modelExplainCmd)
	rootCmd.AddCommand(modelCmd)
}
