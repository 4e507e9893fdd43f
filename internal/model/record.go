package model

// ExtractedFields holds the field values pulled out of one source document.
// A missing key means the extractor found nothing for that field. Treat as
// immutable after construction.
type ExtractedFields map[FieldKey]string

// NewExtractedFields returns an empty field map ready to fill.
func NewExtractedFields() ExtractedFields {
	return make(ExtractedFields)
}

// Get returns the raw extracted value for key, or "" when absent.
func (f ExtractedFields) Get(key FieldKey) string {
	return f[key]
}

// ReferenceRecord is one row of the authoritative reference collection.
// Empty string means the cell was blank. Records are read-only inputs
// identified by their ordinal RowIndex in the source sheet.
type ReferenceRecord struct {
	RowIndex       int
	ID             string
	Name           string
	Address        string
	Tariff         string
	MeterNumber    string
	KWHMeterNumber string
	Period         string
	StartReading   string
	EndReading     string
	Consumption    string
	BilledAmount   string

	// Status is a metadata annotation from the sheet; the core ignores it.
	Status string
}

// Get returns the record value for the given field key, or "" for an
// unknown key.
func (r *ReferenceRecord) Get(key FieldKey) string {
	switch key {
	case FieldID:
		return r.ID
	case FieldName:
		return r.Name
	case FieldAddress:
		return r.Address
	case FieldTariff:
		return r.Tariff
	case FieldMeterNumber:
		return r.MeterNumber
	case FieldKWHMeterNumber:
		return r.KWHMeterNumber
	case FieldPeriod:
		return r.Period
	case FieldStartReading:
		return r.StartReading
	case FieldEndReading:
		return r.EndReading
	case FieldConsumption:
		return r.Consumption
	case FieldBilledAmount:
		return r.BilledAmount
	default:
		return ""
	}
}

// Set assigns the record value for the given field key. Unknown keys are
// ignored. Used by the reference loader while building records.
func (r *ReferenceRecord) Set(key FieldKey, value string) {
	switch key {
	case FieldID:
		r.ID = value
	case FieldName:
		r.Name = value
	case FieldAddress:
		r.Address = value
	case FieldTariff:
		r.Tariff = value
	case FieldMeterNumber:
		r.MeterNumber = value
	case FieldKWHMeterNumber:
		r.KWHMeterNumber = value
	case FieldPeriod:
		r.Period = value
	case FieldStartReading:
		r.StartReading = value
	case FieldEndReading:
		r.EndReading = value
	case FieldConsumption:
		r.Consumption = value
	case FieldBilledAmount:
		r.BilledAmount = value
	}
}
