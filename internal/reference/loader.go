// Package reference loads customer reference records from the crosscheck
// workbook template.
package reference

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/gridline/crosscheck-cli/internal/model"
)

const (
	// DefaultSheetName is the data sheet of the HO template workbook.
	DefaultSheetName = "Data Pelanggan"
	// DefaultHeaderRow is the 1-based row holding the column headers. The
	// template puts a title banner in the rows above it.
	DefaultHeaderRow = 4

	statusHeader = "Status"
)

// Options configures a workbook load. Zero values select the template
// defaults.
type Options struct {
	SheetName string
	HeaderRow int // 1-based
}

// Load reads the reference sheet into ordered records. Column positions are
// resolved from the header row by display name, so reordered or extra
// columns are harmless. Rows with no content are skipped; RowIndex is the
// ordinal position among kept rows.
func Load(path string, opts Options) ([]model.ReferenceRecord, error) {
	if opts.SheetName == "" {
		opts.SheetName = DefaultSheetName
	}
	if opts.HeaderRow <= 0 {
		opts.HeaderRow = DefaultHeaderRow
	}

	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reference: open workbook %s", path)
	}
	sheet, ok := f.Sheet[opts.SheetName]
	if !ok {
		return nil, eris.Errorf("reference: sheet %q not found in %s", opts.SheetName, path)
	}
	if len(sheet.Rows) < opts.HeaderRow {
		return nil, eris.Errorf("reference: sheet %q has no header row %d", opts.SheetName, opts.HeaderRow)
	}

	fieldCols, statusCol, err := mapHeader(rowToStrings(sheet.Rows[opts.HeaderRow-1]))
	if err != nil {
		return nil, err
	}

	var records []model.ReferenceRecord
	for _, row := range sheet.Rows[opts.HeaderRow:] {
		cells := rowToStrings(row)
		rec := model.ReferenceRecord{RowIndex: len(records)}
		empty := true
		for key, col := range fieldCols {
			v := cellAt(cells, col)
			if v != "" {
				empty = false
			}
			rec.Set(key, v)
		}
		if statusCol >= 0 {
			rec.Status = cellAt(cells, statusCol)
		}
		if empty {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// mapHeader resolves column positions by display name. Every crosscheck
// field must be present; Status is optional (-1 when absent).
func mapHeader(header []string) (map[model.FieldKey]int, int, error) {
	fieldCols := make(map[model.FieldKey]int)
	statusCol := -1
	for i, h := range header {
		h = strings.TrimSpace(h)
		if key, ok := model.FieldByDisplayName(h); ok {
			fieldCols[key] = i
		} else if strings.EqualFold(h, statusHeader) {
			statusCol = i
		}
	}

	var missing []string
	for _, key := range model.Fields() {
		if _, ok := fieldCols[key]; !ok {
			missing = append(missing, key.DisplayName())
		}
	}
	if len(missing) > 0 {
		return nil, 0, eris.Errorf("reference: header is missing columns: %s", strings.Join(missing, ", "))
	}
	return fieldCols, statusCol, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func cellAt(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}
