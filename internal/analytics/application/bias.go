package application

import "chiller-forecast/internal/analytics/domain/statistic"

const (
	// MinGlobalBiasRows is the number of validated rows needed for a global bias.
	MinGlobalBiasRows = 6
	// MinMonthBiasRows is the number of validated rows of one month needed for its own bias.
	MinMonthBiasRows = 3
)

// Bias is the signed mean forecast error in percent learned from the accuracy ledger.
type Bias struct {
	Global   *float64
	PerMonth map[statistic.Month]float64
	// Rows is the number of ledger rows that qualified.
	Rows int
}

// For returns the bias that applies to month: its own bias when known, else the global one.
func (b Bias) For(month statistic.Month) *float64 {
	if v, ok := b.PerMonth[month]; ok {
		return statistic.Float(v)
	}
	return b.Global
}

// LoadBias derives the bias from ledger rows of type Real that carry a consumption error.
func LoadBias(ledger []statistic.AccuracyRow) Bias {
	var all []float64
	byMonth := make(map[statistic.Month][]float64)
	for _, row := range ledger {
		if row.Type != statistic.EstimateReal || row.ErrConsumptionPct == nil {
			continue
		}
		v := *row.ErrConsumptionPct
		if !statistic.IsFinite(v) {
			continue
		}
		all = append(all, v)
		byMonth[row.Month] = append(byMonth[row.Month], v)
	}

	bias := Bias{PerMonth: make(map[statistic.Month]float64), Rows: len(all)}
	if len(all) >= MinGlobalBiasRows {
		bias.Global = statistic.Float(mean(all))
	}
	for month, values := range byMonth {
		if len(values) >= MinMonthBiasRows {
			bias.PerMonth[month] = mean(values)
		}
	}
	return bias
}

// ApplyBias sets the corrected consumption of Projected rows to the expected value scaled by
// (1 + bias/100), rounded to two decimals. Other rows and rows without an applicable bias
// keep corrected equal to expected. rows is not modified.
func ApplyBias(rows []statistic.EstimateRow, bias Bias) []statistic.EstimateRow {
	out := make([]statistic.EstimateRow, len(rows))
	for i, row := range rows {
		row.ConsumptionCorrected = row.ConsumptionExpected
		if row.Type == statistic.EstimateProjected && row.ConsumptionExpected != nil {
			if b := bias.For(row.Month); b != nil {
				row.ConsumptionCorrected = statistic.Float(statistic.Round2(*row.ConsumptionExpected * (1 + *b/100)))
			}
		}
		out[i] = row
	}
	return out
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
