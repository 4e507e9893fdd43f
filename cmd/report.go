package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/gridline/crosscheck-cli/internal/extract"
	"github.com/gridline/crosscheck-cli/internal/model"
)

func renderResult(out io.Writer, format, docName string, extraction *extract.Result, result *model.CrosscheckResult) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "csv":
		return writeComparisonsCSV(out, result.Results)
	case "table":
		printReport(out, docName, extraction, result)
		return nil
	default:
		return eris.Errorf("unknown format %q (want table, csv or json)", format)
	}
}

func renderAllRows(out io.Writer, format, docName string, rows []model.RowComparison) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "csv":
		w := csv.NewWriter(out)
		if err := w.Write([]string{"row", "field", "doc_value", "ref_value", "status", "notes"}); err != nil {
			return eris.Wrap(err, "write csv header")
		}
		for _, rc := range rows {
			for _, c := range rc.Results {
				rec := []string{strconv.Itoa(rc.RowIndex), c.FieldName, c.DocValue, c.RefValue, string(c.Status), c.Notes}
				if err := w.Write(rec); err != nil {
					return eris.Wrap(err, "write csv row")
				}
			}
		}
		w.Flush()
		return eris.Wrap(w.Error(), "flush csv")
	case "table":
		fmt.Fprintf(out, "Document: %s\n\n", docName)
		for _, rc := range rows {
			fmt.Fprintf(out, "Row %d: %d/%d fields match (%.1f%%)\n",
				rc.RowIndex, rc.MatchCount, len(rc.Results), rc.MatchPercentage)
		}
		return nil
	default:
		return eris.Errorf("unknown format %q (want table, csv or json)", format)
	}
}

func writeComparisonsCSV(out io.Writer, comparisons []model.FieldComparison) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"field", "doc_value", "ref_value", "status", "notes"}); err != nil {
		return eris.Wrap(err, "write csv header")
	}
	for _, c := range comparisons {
		if err := w.Write([]string{c.FieldName, c.DocValue, c.RefValue, string(c.Status), c.Notes}); err != nil {
			return eris.Wrap(err, "write csv row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "flush csv")
}

// printReport renders the human-readable report: extraction stats, per-field
// verdicts, the summary block, and the ML sections when present.
func printReport(out io.Writer, docName string, extraction *extract.Result, result *model.CrosscheckResult) {
	fmt.Fprintf(out, "Document: %s (%d pages, %d/%d fields extracted)\n",
		docName, extraction.Metadata.PageCount,
		extraction.Metadata.FieldsFound, len(model.Fields()))

	if result.MatchedRow != nil {
		fmt.Fprintf(out, "Matched reference row: %d\n\n", *result.MatchedRow)
	} else {
		fmt.Fprint(out, "No matching reference record found\n\n")
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tSTATUS\tDOC VALUE\tREF VALUE\tNOTES")
	for _, c := range result.Results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			c.FieldName, c.Status, truncate(c.DocValue, 30), truncate(c.RefValue, 30), c.Notes)
	}
	w.Flush()

	s := result.Summary
	fmt.Fprintf(out, "\nChecked %d fields: %d match, %d mismatch, %d missing (%.1f%% match)\n",
		s.TotalFieldsChecked, s.TotalMatch, s.TotalMismatch, s.TotalMissing, s.MatchPercentage)

	if len(result.Anomalies) > 0 {
		fmt.Fprintln(out, "\nAnomaly flags:")
		for _, flag := range result.Anomalies {
			fmt.Fprintf(out, "  [%s] %s: %s\n", flag.Severity, flag.Field.DisplayName(), flag.Message)
		}
	}

	if result.Confidence != nil {
		fmt.Fprintf(out, "\nConfidence: %.1f (%s, risk %s)\n",
			result.Confidence.Score, result.Confidence.Prediction, result.Confidence.Risk)
	}
}

// truncate shortens s to at most n runes. Counting runes keeps multibyte
// names and addresses from being cut mid-character.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
