// Package normalize canonicalizes raw field values for comparison.
package normalize

import (
	"regexp"
	"strings"

	"github.com/spf13/cast"

	"github.com/gridline/crosscheck-cli/internal/model"
)

var (
	multiSpace     = regexp.MustCompile(`\s+`)
	currencyPrefix = regexp.MustCompile(`(?i)^rp\.?\s*`)
	separators     = regexp.MustCompile(`[.,\s]`)
	unitSuffixes   = strings.NewReplacer("RP", "", "KWH", "")
)

// numericFields are compared digit-for-digit after numeric normalization.
var numericFields = map[model.FieldKey]bool{
	model.FieldStartReading: true,
	model.FieldEndReading:   true,
	model.FieldConsumption:  true,
	model.FieldBilledAmount: true,
}

// Normalize trims, upper-cases, and collapses internal whitespace runs to
// single spaces. Empty input stays empty.
func Normalize(value string) string {
	s := strings.ToUpper(strings.TrimSpace(value))
	return multiSpace.ReplaceAllString(s, " ")
}

// Numeric normalizes a value for numeric-string comparison: Normalize, then
// strip a leading currency marker and remove all periods, commas, and
// spaces. The result is a digit-only string that compares without
// floating-point rounding error. Idempotent.
func Numeric(value string) string {
	s := Normalize(value)
	s = currencyPrefix.ReplaceAllString(s, "")
	return separators.ReplaceAllString(s, "")
}

// IsNumericField reports whether a field is compared numerically.
func IsNumericField(key model.FieldKey) bool {
	return numericFields[key]
}

// FuzzyContains reports whether either normalized string is a non-empty
// substring of the other. A cheap fallback for partial text matches before
// similarity scoring.
func FuzzyContains(a, b string) bool {
	na := Normalize(a)
	nb := Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

// ToFloat coerces a formatted value ("Rp 352.500", "250 kWh") to a float.
// Thousands separators, currency markers, and unit suffixes are stripped
// first. Returns false when the remainder does not parse; callers skip the
// dependent rule in that case.
func ToFloat(value string) (float64, bool) {
	s := strings.ToUpper(strings.TrimSpace(value))
	if s == "" {
		return 0, false
	}
	s = unitSuffixes.Replace(s)
	s = separators.ReplaceAllString(s, "")
	f, err := cast.ToFloat64E(s)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Tariff canonicalizes a tariff code for table lookups: upper-case, strip
// spaces, "-" becomes "/", VA/W unit suffixes and a trailing "/" removed.
// "r1 - 1300 VA" becomes "R1/1300".
func Tariff(tariff string) string {
	t := strings.ToUpper(strings.TrimSpace(tariff))
	t = strings.ReplaceAll(t, " ", "")
	t = strings.ReplaceAll(t, "-", "/")
	t = strings.ReplaceAll(t, "VA", "")
	t = strings.ReplaceAll(t, "W", "")
	return strings.TrimRight(strings.TrimSpace(t), "/")
}
