package application

import "chiller-forecast/internal/analytics/domain/statistic"

// Validate joins history and estimates on (year, month) and computes the forecast errors.
// Only months present in both inputs are returned, sorted by (year, month).
func Validate(history []statistic.HistoricalRow, estimates []statistic.EstimateRow) []statistic.AccuracyRow {
	actual := statistic.IndexHistory(history)
	seen := make(map[statistic.Key]bool, len(estimates))
	out := make([]statistic.AccuracyRow, 0, len(estimates))
	for _, est := range estimates {
		key := est.Key()
		h, ok := actual[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, statistic.AccuracyRow{
			Year:                 key.Year,
			Month:                key.Month,
			Type:                 est.Type,
			ConsumptionReal:      h.ConsumptionKWh,
			ConsumptionEstimated: est.ConsumptionExpected,
			ErrConsumptionPct:    PercentError(est.ConsumptionExpected, h.ConsumptionKWh),
			HoursReal:            h.OperatingHours,
			HoursEstimated:       est.HoursEstimate,
			ErrHoursPct:          PercentError(est.HoursEstimate, h.OperatingHours),
			TempReal:             h.TempAvgC,
			TempEstimated:        est.TempEstimate,
			ErrTempPct:           PercentError(est.TempEstimate, h.TempAvgC),
			AvgPowerKW:           h.AvgPowerKW,
			UtilizationFactor:    UtilizationFactor(h.ConsumptionKWh, h.AvgPowerKW, h.OperatingHours),
			AvgCOP:               h.AvgCOP,
			CO2EmittedKg:         h.CO2EmittedKg,
		})
	}
	statistic.SortAccuracy(out)
	return out
}

// PercentError returns (estimated-actual)/actual*100. It is nil when either value is nil or
// actual is zero.
func PercentError(estimated, actual *float64) *float64 {
	if estimated == nil || actual == nil || *actual == 0 {
		return nil
	}
	return statistic.Float((*estimated - *actual) / *actual * 100)
}

// UtilizationFactor returns consumption/(avgPower*hours), nil on a nil or zero denominator.
func UtilizationFactor(consumption, avgPower, hours *float64) *float64 {
	if consumption == nil || avgPower == nil || hours == nil {
		return nil
	}
	den := *avgPower * *hours
	if den == 0 {
		return nil
	}
	return statistic.Float(*consumption / den)
}

// MergeLedger combines the persisted ledger with this run's rows, deduplicated by
// (year, month). Rows of current replace rows of previous.
func MergeLedger(previous, current []statistic.AccuracyRow) []statistic.AccuracyRow {
	byKey := make(map[statistic.Key]statistic.AccuracyRow, len(previous)+len(current))
	for _, row := range previous {
		byKey[row.Key()] = row
	}
	for _, row := range current {
		byKey[row.Key()] = row
	}
	out := make([]statistic.AccuracyRow, 0, len(byKey))
	for _, row := range byKey {
		out = append(out, row)
	}
	statistic.SortAccuracy(out)
	return out
}
