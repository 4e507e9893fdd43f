// Package model defines the typed data model shared by the crosscheck core:
// field keys, extracted fields, reference records, and result shapes.
package model

// FieldKey identifies one of the fixed set of fields extracted from a
// utility-bill document and present on every reference record.
type FieldKey string

const (
	FieldID             FieldKey = "id"
	FieldName           FieldKey = "name"
	FieldAddress        FieldKey = "address"
	FieldTariff         FieldKey = "tariff"
	FieldMeterNumber    FieldKey = "meter-number"
	FieldKWHMeterNumber FieldKey = "kwh-meter-number"
	FieldPeriod         FieldKey = "period"
	FieldStartReading   FieldKey = "start-reading"
	FieldEndReading     FieldKey = "end-reading"
	FieldConsumption    FieldKey = "consumption"
	FieldBilledAmount   FieldKey = "billed-amount"
)

// fieldOrder is the canonical comparison order. Reports iterate fields in
// this order, so it must stay stable.
var fieldOrder = []FieldKey{
	FieldID,
	FieldName,
	FieldAddress,
	FieldTariff,
	FieldMeterNumber,
	FieldKWHMeterNumber,
	FieldPeriod,
	FieldStartReading,
	FieldEndReading,
	FieldConsumption,
	FieldBilledAmount,
}

// displayNames maps field keys to the column headers used by the reference
// spreadsheet (HO template layout).
var displayNames = map[FieldKey]string{
	FieldID:             "ID Pelanggan",
	FieldName:           "Nama Pelanggan",
	FieldAddress:        "Alamat",
	FieldTariff:         "Tarif/Daya",
	FieldMeterNumber:    "Nomor Meter",
	FieldKWHMeterNumber: "Nomor kWh",
	FieldPeriod:         "Periode",
	FieldStartReading:   "Stand Meter Awal",
	FieldEndReading:     "Stand Meter Akhir",
	FieldConsumption:    "Pemakaian (kWh)",
	FieldBilledAmount:   "Biaya Listrik (Rp)",
}

// Fields returns the fixed, ordered set of crosscheck field keys.
func Fields() []FieldKey {
	out := make([]FieldKey, len(fieldOrder))
	copy(out, fieldOrder)
	return out
}

// DisplayName returns the reference-spreadsheet column header for a key.
func (k FieldKey) DisplayName() string {
	return displayNames[k]
}

// FieldByDisplayName returns the key whose spreadsheet header matches name.
func FieldByDisplayName(name string) (FieldKey, bool) {
	for k, dn := range displayNames {
		if dn == name {
			return k, true
		}
	}
	return "", false
}

// FreeTextFields are the fields that benefit from similarity scoring when
// exact and contains comparison fail.
func FreeTextFields() map[FieldKey]bool {
	return map[FieldKey]bool{
		FieldName:    true,
		FieldAddress: true,
	}
}
