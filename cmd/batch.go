package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gridline/crosscheck-cli/internal/crosscheck"
	"github.com/gridline/crosscheck-cli/internal/extract"
	"github.com/gridline/crosscheck-cli/internal/model"
	"github.com/gridline/crosscheck-cli/internal/ocr"
	"github.com/gridline/crosscheck-cli/internal/store"
)

var (
	batchDir       string
	batchReference string
	batchSheet     string
	batchNoML      bool
	batchSave      bool
)

type batchOutcome struct {
	Document string
	Verdict  string
	MatchPct float64
	Err      error
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Crosscheck every document text file in a directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if batchReference != "" {
			cfg.Reference.Path = batchReference
		}
		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		records, err := loadReference(batchReference, batchSheet)
		if err != nil {
			return err
		}

		// The classifier trains once here and is read-only afterwards, so
		// sharing the engine across workers is safe.
		engine, err := buildEngine(batchNoML)
		if err != nil {
			return err
		}

		var st *store.SQLiteStore
		if batchSave {
			st, err = initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
		}

		paths, err := listDocuments(batchDir)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			zap.L().Info("no documents found", zap.String("dir", batchDir))
			return nil
		}

		zap.L().Info("processing batch",
			zap.Int("documents", len(paths)),
			zap.Int("concurrency", cfg.Batch.MaxConcurrentDocs),
		)

		reader := ocr.NewPdfToText(cfg.OCR.PdfToTextPath)
		outcomes := make([]batchOutcome, len(paths))
		var mu sync.Mutex

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Batch.MaxConcurrentDocs)
		for i, path := range paths {
			g.Go(func() error {
				outcome := checkOne(gctx, engine, reader, st, records, path)
				mu.Lock()
				outcomes[i] = outcome
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		printBatchSummary(outcomes)
		return nil
	},
}

func checkOne(ctx context.Context, engine *crosscheck.Engine, reader *ocr.PdfToText, st *store.SQLiteStore, records []model.ReferenceRecord, path string) batchOutcome {
	doc, err := reader.ReadDocument(ctx, path)
	if err != nil {
		return batchOutcome{Document: filepath.Base(path), Err: err}
	}

	result := engine.Run(extract.Extract(doc).Flat(), records)
	outcome := batchOutcome{
		Document: doc.Name,
		Verdict:  verdict(result),
		MatchPct: result.Summary.MatchPercentage,
	}

	if st != nil {
		run := &store.Run{
			Document:        doc.Name,
			MatchedRow:      result.MatchedRow,
			MatchPercentage: result.Summary.MatchPercentage,
			Verdict:         outcome.Verdict,
			Result:          result,
		}
		if err := st.Save(ctx, run); err != nil {
			zap.L().Error("save run failed", zap.String("document", doc.Name), zap.Error(err))
		}
	}
	return outcome
}

func listDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "read directory %s", dir)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".txt", ".pdf":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func printBatchSummary(outcomes []batchOutcome) {
	counts := map[string]int{}
	for _, o := range outcomes {
		if o.Err != nil {
			counts["ERROR"]++
			fmt.Printf("%-40s ERROR: %v\n", o.Document, o.Err)
			continue
		}
		counts[o.Verdict]++
		fmt.Printf("%-40s %-10s %.1f%%\n", o.Document, o.Verdict, o.MatchPct)
	}

	fmt.Printf("\n%d documents:", len(outcomes))
	for _, v := range []string{"VALID", "SUSPICIOUS", "NO_MATCH", "ERROR"} {
		if counts[v] > 0 {
			fmt.Printf(" %d %s", counts[v], strings.ToLower(v))
		}
	}
	fmt.Println()
}

func init() {
	batchCmd.Flags().StringVar(&batchDir, "dir", "", "directory of document text files (required)")
	batchCmd.Flags().StringVar(&batchReference, "reference", "", "reference workbook path (default from config)")
	batchCmd.Flags().StringVar(&batchSheet, "sheet", "", "reference sheet name (default from config)")
	batchCmd.Flags().BoolVar(&batchNoML, "no-ml", false, "disable similarity scoring, anomaly detection and confidence scoring")
	batchCmd.Flags().BoolVar(&batchSave, "save", false, "persist each run to the history store")
	_ = batchCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(batchCmd)
}
