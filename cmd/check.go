package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gridline/crosscheck-cli/internal/extract"
	"github.com/gridline/crosscheck-cli/internal/ocr"
	"github.com/gridline/crosscheck-cli/internal/store"
)

var (
	checkDoc       string
	checkReference string
	checkSheet     string
	checkAllRows   bool
	checkNoML      bool
	checkFormat    string
	checkOutput    string
	checkSave      bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Crosscheck one document against the reference workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if checkReference != "" {
			cfg.Reference.Path = checkReference
		}
		if err := cfg.Validate("crosscheck"); err != nil {
			return err
		}

		reader := ocr.NewPdfToText(cfg.OCR.PdfToTextPath)
		doc, err := reader.ReadDocument(ctx, checkDoc)
		if err != nil {
			return err
		}
		extraction := extract.Extract(doc)
		zap.L().Info("document extracted",
			zap.String("document", doc.Name),
			zap.Int("fields_found", extraction.Metadata.FieldsFound),
			zap.Int("fields_missing", extraction.Metadata.FieldsMissing),
		)

		records, err := loadReference(checkReference, checkSheet)
		if err != nil {
			return err
		}

		engine, err := buildEngine(checkNoML)
		if err != nil {
			return err
		}

		out := os.Stdout
		if checkOutput != "" {
			f, err := os.Create(checkOutput)
			if err != nil {
				return eris.Wrapf(err, "create output file %s", checkOutput)
			}
			defer f.Close()
			out = f
		}

		if checkAllRows {
			rows := engine.RunAllRows(extraction.Flat(), records)
			return renderAllRows(out, checkFormat, doc.Name, rows)
		}

		result := engine.Run(extraction.Flat(), records)

		if checkSave {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			run := &store.Run{
				Document:        doc.Name,
				MatchedRow:      result.MatchedRow,
				MatchPercentage: result.Summary.MatchPercentage,
				Verdict:         verdict(result),
				Result:          result,
			}
			if err := st.Save(ctx, run); err != nil {
				return err
			}
			zap.L().Info("run saved", zap.String("run_id", run.ID))
		}

		return renderResult(out, checkFormat, doc.Name, extraction, result)
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkDoc, "doc", "", "document text file (required)")
	checkCmd.Flags().StringVar(&checkReference, "reference", "", "reference workbook path (default from config)")
	checkCmd.Flags().StringVar(&checkSheet, "sheet", "", "reference sheet name (default from config)")
	checkCmd.Flags().BoolVar(&checkAllRows, "all-rows", false, "compare against every reference row instead of matching")
	checkCmd.Flags().BoolVar(&checkNoML, "no-ml", false, "disable similarity scoring, anomaly detection and confidence scoring")
	checkCmd.Flags().StringVar(&checkFormat, "format", "table", "output format: table, csv or json")
	checkCmd.Flags().StringVar(&checkOutput, "output", "", "write the report to a file instead of stdout")
	checkCmd.Flags().BoolVar(&checkSave, "save", false, "persist the run to the history store")
	_ = checkCmd.MarkFlagRequired("doc")
	rootCmd.AddCommand(checkCmd)
}
