// Package extract pulls structured billing fields out of electricity
// document text. It works on already-extracted page text; PDF-to-text
// conversion happens upstream.
package extract

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/gridline/crosscheck-cli/internal/model"
)

// Confidence grades how a field value was located. Page-scoped matches by a
// field's only pattern rank high, page-scoped matches by one of several
// patterns rank medium, whole-document fallback matches rank low.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// fieldPatterns lists the recognizers per field, in priority order. The
// label vocabulary covers SPJBTL contracts, monthly bills and customer data
// sheets.
var fieldPatterns = map[model.FieldKey][]*regexp.Regexp{
	model.FieldID: {
		regexp.MustCompile(`(?im)(?:ID\s*Pelanggan|IDPEL|No\.?\s*Pelanggan|Nomor\s*Pelanggan)\s*[:\-]?\s*(\d[\d\s\.\-]{6,})`),
		regexp.MustCompile(`(?im)(\d{12})`), // customer IDs are typically 12 digits
	},
	model.FieldName: {
		regexp.MustCompile(`(?im)(?:Nama\s*Pelanggan|Nama\s*Pemilik|Nama|Pelanggan|Atas\s*Nama)\s*[:\-]?\s*([A-Z][A-Za-z \t\.\,\']{2,50})`),
	},
	model.FieldAddress: {
		regexp.MustCompile(`(?im)(?:Alamat|Alamat\s*Pelanggan|Alamat\s*Rumah)\s*[:\-]?\s*(.{10,100})`),
	},
	model.FieldTariff: {
		regexp.MustCompile(`(?im)(?:Tarif\s*/?\s*Daya|Tarif|Daya\s*Tersambung|Gol\.?\s*Tarif)\s*[:\-]?\s*([\w\d]+\s*/?\s*[\d\.]+\s*(?:VA|W|KVA|kVA)?)`),
		regexp.MustCompile(`(?im)(R[- ]?\d[A-Z]?\s*/?\s*[\d\.]+\s*(?:VA|W|KVA)?)`),
	},
	model.FieldMeterNumber: {
		regexp.MustCompile(`(?im)(?:No\.?\s*Meter|Nomor\s*Meter|No\.?\s*APP|Meter\s*No)\s*[:\-]?\s*(\w[\w\d\-\.]{3,20})`),
	},
	model.FieldKWHMeterNumber: {
		regexp.MustCompile(`(?im)(?:No\.?\s*KWH|kWh\s*Meter|Nomor\s*kWh)\s*[:\-]?\s*(\w[\w\d\-\.]{3,20})`),
	},
	model.FieldStartReading: {
		regexp.MustCompile(`(?im)(?:Stand\s*(?:Meter\s*)?Awal|Meter\s*Awal|LWBP\s*Awal|Stand\s*Awal)\s*[:\-]?\s*([\d\.\,]+)`),
	},
	model.FieldEndReading: {
		regexp.MustCompile(`(?im)(?:Stand\s*(?:Meter\s*)?Akhir|Meter\s*Akhir|LWBP\s*Akhir|Stand\s*Akhir)\s*[:\-]?\s*([\d\.\,]+)`),
	},
	model.FieldConsumption: {
		regexp.MustCompile(`(?im)(?:Pemakaian|Jumlah\s*(?:Pemakaian|kWh)|Total\s*(?:Pemakaian|kWh)|kWh\s*Pakai)\s*[:\-]?\s*([\d\.\,]+)\s*(?:kWh|kwh)?`),
	},
	model.FieldBilledAmount: {
		regexp.MustCompile(`(?im)(?:Total\s*(?:Tagihan|Bayar|Rekening)|Jumlah\s*(?:Tagihan|Bayar)|Biaya\s*(?:Listrik|Total)|RP\s*Tag)\s*[:\-]?\s*(?:Rp\.?\s*)?([\d\.\,]+)`),
	},
	model.FieldPeriod: {
		regexp.MustCompile(`(?im)(?:Periode|Bulan|Bln|Periode\s*Rekening)\s*[:\-]?\s*(\w+\s*\d{4}|\d{2}\s*/?\-?\s*\d{4})`),
	},
}

// refPatterns recognize the document reference/agenda number, which is
// reported in metadata but is not a crosscheck field.
var refPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)(?:No\.?\s*(?:Ref|Referensi|Agenda)|Ref\.?\s*No)\s*[:\-]?\s*([\w\d\-\/\.]+)`),
	regexp.MustCompile(`(?im)JTX\d+`),
}

// Document is the plain-text form of one source document.
type Document struct {
	Name  string
	Pages []string
}

// Match is one located field value with its provenance. Page is 1-based and
// zero when the value was only found in the cross-page fallback scan.
type Match struct {
	Value      string     `json:"value"`
	Confidence Confidence `json:"confidence"`
	Page       int        `json:"page,omitempty"`
	Pattern    string     `json:"pattern_used"`
}

// Metadata describes one extraction run.
type Metadata struct {
	DocumentName  string    `json:"document_name"`
	PageCount     int       `json:"page_count"`
	FieldsFound   int       `json:"fields_found"`
	FieldsMissing int       `json:"fields_missing"`
	ExtractedAt   time.Time `json:"extracted_at"`
}

// Result is the full extraction output, provenance included.
type Result struct {
	Fields       map[model.FieldKey]Match `json:"fields"`
	ReferenceNum *Match                   `json:"reference_number,omitempty"`
	Metadata     Metadata                 `json:"metadata"`
}

// Flat reduces the result to the bare field values the crosscheck engine
// consumes.
func (r *Result) Flat() model.ExtractedFields {
	fields := model.NewExtractedFields()
	for key, m := range r.Fields {
		fields[key] = m.Value
	}
	return fields
}

// Extract runs every field's patterns over the document. Per pattern it
// scans page by page first so provenance carries a page number, then falls
// back to the joined cross-page text.
func Extract(doc Document) *Result {
	result := &Result{
		Fields: make(map[model.FieldKey]Match),
		Metadata: Metadata{
			DocumentName: doc.Name,
			PageCount:    len(doc.Pages),
			ExtractedAt:  time.Now(),
		},
	}
	joined := strings.Join(doc.Pages, "\n")

	for _, key := range model.Fields() {
		patterns := fieldPatterns[key]
		if m, ok := findField(doc.Pages, joined, patterns); ok {
			result.Fields[key] = m
		}
	}
	if m, ok := findField(doc.Pages, joined, refPatterns); ok {
		result.ReferenceNum = &m
	}

	result.Metadata.FieldsFound = len(result.Fields)
	result.Metadata.FieldsMissing = len(fieldPatterns) - len(result.Fields)
	return result
}

func findField(pages []string, joined string, patterns []*regexp.Regexp) (Match, bool) {
	for _, re := range patterns {
		for i, page := range pages {
			if value, ok := firstGroup(re, page); ok {
				conf := ConfidenceMedium
				if len(patterns) == 1 {
					conf = ConfidenceHigh
				}
				return Match{Value: value, Confidence: conf, Page: i + 1, Pattern: re.String()}, true
			}
		}
		if value, ok := firstGroup(re, joined); ok {
			return Match{Value: value, Confidence: ConfidenceLow, Pattern: re.String()}, true
		}
	}
	return Match{}, false
}

// firstGroup returns the first capture group when the pattern has one, the
// whole match otherwise.
func firstGroup(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	value := m[0]
	if len(m) > 1 {
		value = m[1]
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// ReadDocument loads a plain-text document, splitting pages on form feeds
// (the page separator emitted by pdftotext and friends).
func ReadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, eris.Wrapf(err, "extract: reading document %s", path)
	}
	return Document{
		Name:  filepath.Base(path),
		Pages: strings.Split(string(data), "\f"),
	}, nil
}
