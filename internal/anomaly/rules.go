// Package anomaly applies deterministic domain rules and an unsupervised
// outlier ensemble to billing records, producing severity-tagged flags.
package anomaly

import (
	"fmt"
	"math"

	"github.com/gridline/crosscheck-cli/internal/model"
	"github.com/gridline/crosscheck-cli/internal/normalize"
)

// consumptionRanges holds the expected monthly kWh range per tariff class.
var consumptionRanges = map[string][2]float64{
	"R1/450":  {20, 150},
	"R1/900":  {50, 300},
	"R1M/900": {50, 300},
	"R1/1300": {80, 500},
	"R1/2200": {100, 800},
	"R2/3500": {150, 1500},
	"R2/5500": {200, 2500},
	"R3/6600": {300, 5000},
	"B1/1300": {100, 1000},
	"B1/2200": {150, 1500},
	"B2/6600": {300, 5000},
}

// approxRates is the approximate billing rate per kWh (Rupiah) per tariff.
var approxRates = map[string]float64{
	"R1/450":  415,
	"R1/900":  605,
	"R1M/900": 1352,
	"R1/1300": 1444,
	"R1/2200": 1444,
	"R2/3500": 1699,
	"R2/5500": 1699,
	"R3/6600": 1699,
	"B1/1300": 1444,
	"B1/2200": 1444,
	"B2/6600": 1444,
}

// Config tunes the detector. Zero values fall back to defaults.
type Config struct {
	// Contamination is the expected proportion of outliers in a batch.
	Contamination float64 `mapstructure:"contamination"`
	// Trees is the ensemble size for batch outlier detection.
	Trees int `mapstructure:"trees"`
	// Seed drives the ensemble's random splits.
	Seed int64 `mapstructure:"seed"`
}

// DefaultConfig returns the detector defaults.
func DefaultConfig() Config {
	return Config{Contamination: 0.1, Trees: 100, Seed: 42}
}

// Detector evaluates anomaly rules against single records and batches.
type Detector struct {
	cfg Config
}

// NewDetector creates a Detector. Out-of-range config values are replaced
// with defaults.
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.Contamination <= 0 || cfg.Contamination >= 0.5 {
		cfg.Contamination = def.Contamination
	}
	if cfg.Trees <= 0 {
		cfg.Trees = def.Trees
	}
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	return &Detector{cfg: cfg}
}

// CheckRecord applies all rules to one record's fields. Every rule is
// evaluated independently, so several flags can fire for the same record.
// Values that fail numeric coercion silently skip the dependent rule.
func (d *Detector) CheckRecord(fields model.ExtractedFields) []model.AnomalyFlag {
	var flags []model.AnomalyFlag

	start, hasStart := normalize.ToFloat(fields.Get(model.FieldStartReading))
	end, hasEnd := normalize.ToFloat(fields.Get(model.FieldEndReading))
	consumption, hasConsumption := normalize.ToFloat(fields.Get(model.FieldConsumption))
	billed, hasBilled := normalize.ToFloat(fields.Get(model.FieldBilledAmount))
	tariff := normalize.Tariff(fields.Get(model.FieldTariff))

	// Meter monotonicity and consumption consistency.
	if hasStart && hasEnd {
		if end < start {
			flags = append(flags, model.AnomalyFlag{
				Field:    model.FieldEndReading,
				Severity: model.SeverityCritical,
				Message:  "end reading is less than start reading (meter went backwards)",
				Expected: fmt.Sprintf("> %s", formatNum(start)),
				Actual:   formatNum(end),
			})
		}

		expectedUsage := end - start
		if hasConsumption && math.Abs(expectedUsage-consumption) > 1 {
			flags = append(flags, model.AnomalyFlag{
				Field:    model.FieldConsumption,
				Severity: model.SeverityCritical,
				Message: fmt.Sprintf("reported consumption (%s) does not match meter difference (%s)",
					formatNum(consumption), formatNum(expectedUsage)),
				Expected: formatNum(expectedUsage),
				Actual:   formatNum(consumption),
			})
		}
	}

	// Consumption vs tariff range.
	if hasConsumption && tariff != "" {
		if bounds, ok := consumptionRanges[tariff]; ok {
			low, high := bounds[0], bounds[1]
			switch {
			case consumption < low*0.5:
				flags = append(flags, model.AnomalyFlag{
					Field:    model.FieldConsumption,
					Severity: model.SeverityWarning,
					Message:  fmt.Sprintf("unusually low consumption for tariff %s", tariff),
					Expected: fmt.Sprintf("%s - %s kWh", formatNum(low), formatNum(high)),
					Actual:   fmt.Sprintf("%s kWh", formatNum(consumption)),
				})
			case consumption > high*1.5:
				flags = append(flags, model.AnomalyFlag{
					Field:    model.FieldConsumption,
					Severity: model.SeverityWarning,
					Message:  fmt.Sprintf("unusually high consumption for tariff %s", tariff),
					Expected: fmt.Sprintf("%s - %s kWh", formatNum(low), formatNum(high)),
					Actual:   fmt.Sprintf("%s kWh", formatNum(consumption)),
				})
			}
		}
	}

	// Billing rate vs tariff.
	if hasConsumption && hasBilled && consumption > 0 {
		if expectedRate, ok := approxRates[tariff]; ok {
			rate := billed / consumption
			deviation := math.Abs(rate-expectedRate) / expectedRate
			if deviation > 0.3 {
				flags = append(flags, model.AnomalyFlag{
					Field:    model.FieldBilledAmount,
					Severity: model.SeverityWarning,
					Message: fmt.Sprintf("billing rate Rp %s/kWh deviates %.0f%% from expected Rp %s/kWh",
						formatNum(rate), deviation*100, formatNum(expectedRate)),
					Expected: fmt.Sprintf("~Rp %s/kWh", formatNum(expectedRate)),
					Actual:   fmt.Sprintf("Rp %s/kWh (total Rp %s)", formatNum(rate), formatNum(billed)),
				})
			}
		}
	}

	// Non-positive checks.
	if hasConsumption && consumption <= 0 {
		flags = append(flags, model.AnomalyFlag{
			Field:    model.FieldConsumption,
			Severity: model.SeverityWarning,
			Message:  "zero or negative consumption",
			Expected: "> 0",
			Actual:   formatNum(consumption),
		})
	}
	if hasBilled && billed <= 0 {
		flags = append(flags, model.AnomalyFlag{
			Field:    model.FieldBilledAmount,
			Severity: model.SeverityWarning,
			Message:  "zero or negative billing amount",
			Expected: "> 0",
			Actual:   formatNum(billed),
		})
	}

	return flags
}

func formatNum(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}
