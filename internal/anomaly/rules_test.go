package anomaly

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridline/crosscheck-cli/internal/model"
)

func fieldsFor(tariff, start, end, consumption, billed string) model.ExtractedFields {
	f := make(model.ExtractedFields)
	if tariff != "" {
		f[model.FieldTariff] = tariff
	}
	if start != "" {
		f[model.FieldStartReading] = start
	}
	if end != "" {
		f[model.FieldEndReading] = end
	}
	if consumption != "" {
		f[model.FieldConsumption] = consumption
	}
	if billed != "" {
		f[model.FieldBilledAmount] = billed
	}
	return f
}

func flagsForField(flags []model.AnomalyFlag, key model.FieldKey) []model.AnomalyFlag {
	var out []model.AnomalyFlag
	for _, fl := range flags {
		if fl.Field == key {
			out = append(out, fl)
		}
	}
	return out
}

func TestConsistentRecordRaisesNoFlags(t *testing.T) {
	d := NewDetector(DefaultConfig())
	// 15480 - 15230 = 250, rate 352500/250 = 1410 which is within 30% of 1444.
	flags := d.CheckRecord(fieldsFor("R1/1300 VA", "15230", "15480", "250", "352500"))
	assert.Empty(t, flags)
}

func TestMeterMonotonicity(t *testing.T) {
	d := NewDetector(DefaultConfig())
	flags := d.CheckRecord(fieldsFor("R1/1300", "15480", "15230", "", ""))

	backwards := flagsForField(flags, model.FieldEndReading)
	require.Len(t, backwards, 1)
	assert.Equal(t, model.SeverityCritical, backwards[0].Severity)
	assert.Contains(t, backwards[0].Message, "meter went backwards")
}

func TestConsumptionConsistency(t *testing.T) {
	d := NewDetector(DefaultConfig())

	t.Run("tolerates off-by-one", func(t *testing.T) {
		flags := d.CheckRecord(fieldsFor("", "15230", "15480", "251", ""))
		assert.Empty(t, flagsForField(flags, model.FieldConsumption))
	})

	t.Run("fires beyond tolerance", func(t *testing.T) {
		flags := d.CheckRecord(fieldsFor("", "15230", "15480", "280", ""))
		got := flagsForField(flags, model.FieldConsumption)
		require.Len(t, got, 1)
		assert.Equal(t, model.SeverityCritical, got[0].Severity)
		assert.Equal(t, "250", got[0].Expected)
		assert.Equal(t, "280", got[0].Actual)
	})
}

func TestTariffRangeCheck(t *testing.T) {
	d := NewDetector(DefaultConfig())

	t.Run("low consumption warns", func(t *testing.T) {
		// R1/1300 expects 80-500 kWh; 40 < 0.5*80.
		flags := d.CheckRecord(fieldsFor("R1/1300", "", "", "40", ""))
		got := flagsForField(flags, model.FieldConsumption)
		require.Len(t, got, 1)
		assert.Equal(t, model.SeverityWarning, got[0].Severity)
		assert.Contains(t, got[0].Message, "unusually low")
	})

	t.Run("high consumption warns", func(t *testing.T) {
		flags := d.CheckRecord(fieldsFor("R1/1300", "", "", "900", ""))
		got := flagsForField(flags, model.FieldConsumption)
		require.Len(t, got, 1)
		assert.Contains(t, got[0].Message, "unusually high")
	})

	t.Run("unknown tariff skips the rule", func(t *testing.T) {
		flags := d.CheckRecord(fieldsFor("Z9/9999", "", "", "40", ""))
		assert.Empty(t, flags)
	})

	t.Run("tariff normalized before lookup", func(t *testing.T) {
		flags := d.CheckRecord(fieldsFor("r1 - 1300 VA", "", "", "40", ""))
		assert.Len(t, flagsForField(flags, model.FieldConsumption), 1)
	})
}

func TestBillingRateCheck(t *testing.T) {
	d := NewDetector(DefaultConfig())

	t.Run("rate within tolerance passes", func(t *testing.T) {
		flags := d.CheckRecord(fieldsFor("R1/1300", "", "", "250", "352500"))
		assert.Empty(t, flagsForField(flags, model.FieldBilledAmount))
	})

	t.Run("rate deviation over 30 percent warns", func(t *testing.T) {
		// 700000 / 250 = 2800/kWh, ~94% over the expected 1444.
		flags := d.CheckRecord(fieldsFor("R1/1300", "", "", "250", "700000"))
		got := flagsForField(flags, model.FieldBilledAmount)
		require.Len(t, got, 1)
		assert.Equal(t, model.SeverityWarning, got[0].Severity)
	})

	t.Run("zero consumption skips rate but warns non-positive", func(t *testing.T) {
		flags := d.CheckRecord(fieldsFor("R1/1300", "", "", "0", "352500"))
		got := flagsForField(flags, model.FieldConsumption)
		require.Len(t, got, 1)
		assert.Contains(t, got[0].Message, "zero or negative consumption")
	})
}

func TestNonPositiveBilledAmount(t *testing.T) {
	d := NewDetector(DefaultConfig())
	flags := d.CheckRecord(fieldsFor("", "", "", "", "0"))
	got := flagsForField(flags, model.FieldBilledAmount)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Message, "zero or negative billing amount")
}

func TestUnparsableValuesSkipRules(t *testing.T) {
	d := NewDetector(DefaultConfig())
	flags := d.CheckRecord(fieldsFor("R1/1300", "abc", "def", "xyz", "???"))
	assert.Empty(t, flags)
}

func TestMultipleFlagsCanFire(t *testing.T) {
	d := NewDetector(DefaultConfig())
	// Backwards meter, consumption mismatch, and low consumption at once.
	flags := d.CheckRecord(fieldsFor("R1/1300", "15480", "15230", "30", "10000"))
	assert.GreaterOrEqual(t, len(flags), 3)
}

func TestCheckBatchSmallPopulation(t *testing.T) {
	d := NewDetector(DefaultConfig())
	records := []model.ReferenceRecord{
		{RowIndex: 0, StartReading: "100", EndReading: "200", Consumption: "100", BilledAmount: "144400"},
		{RowIndex: 1, StartReading: "300", EndReading: "450", Consumption: "150", BilledAmount: "216600"},
	}
	results := d.CheckBatch(records)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.IsAnomaly, "small batches default to non-anomalous")
		assert.Zero(t, r.OutlierScore)
	}
}

func TestCheckBatchFlagsOutlier(t *testing.T) {
	d := NewDetector(DefaultConfig())

	var records []model.ReferenceRecord
	for i := 0; i < 9; i++ {
		records = append(records, model.ReferenceRecord{
			RowIndex:     i,
			StartReading: fmt.Sprintf("%d", 15000+10*i),
			EndReading:   fmt.Sprintf("%d", 15250+10*i),
			Consumption:  "250",
			BilledAmount: "352500",
		})
	}
	// One row far outside the population.
	records = append(records, model.ReferenceRecord{
		RowIndex:     9,
		StartReading: "900000",
		EndReading:   "990000",
		Consumption:  "90000",
		BilledAmount: "999999999",
	})

	results := d.CheckBatch(records)
	require.Len(t, results, 10)

	var maxScore float64
	var maxIdx int
	for _, r := range results {
		if r.OutlierScore > maxScore {
			maxScore = r.OutlierScore
			maxIdx = r.RowIndex
		}
	}
	assert.Equal(t, 9, maxIdx, "the injected outlier should have the highest score")
	assert.True(t, results[9].IsAnomaly)
}

func TestCheckBatchDeterministic(t *testing.T) {
	d := NewDetector(DefaultConfig())
	var records []model.ReferenceRecord
	for i := 0; i < 8; i++ {
		records = append(records, model.ReferenceRecord{
			RowIndex:     i,
			StartReading: fmt.Sprintf("%d", 1000*i),
			EndReading:   fmt.Sprintf("%d", 1000*i+250),
			Consumption:  "250",
			BilledAmount: fmt.Sprintf("%d", 300000+1000*i),
		})
	}
	a := d.CheckBatch(records)
	b := d.CheckBatch(records)
	assert.Equal(t, a, b, "seeded ensemble must be reproducible")
}
