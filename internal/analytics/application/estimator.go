package application

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"chiller-forecast/internal/analytics/domain/statistic"
)

// iqrFence is the multiplier of the interquartile range used to trim outliers.
const iqrFence = 1.5

// Partial is a month that is still being measured.
type Partial struct {
	ConsumedSoFar float64
	DaysMeasured  int
	DaysInMonth   int
}

// RobustHistoricalMean returns the recency-weighted mean of column for month over the
// years strictly before beforeYear, after dropping values outside the IQR fence.
// Each retained value weighs max(1, year-minYear+1) where minYear is the earliest
// retained year. Nil means there is not enough history.
func RobustHistoricalMean(history []statistic.HistoricalRow, column statistic.Column, month statistic.Month, beforeYear int) *float64 {
	values := make([]float64, 0)
	years := make([]int, 0)
	for _, row := range history {
		if row.Month != month || row.Year >= beforeYear {
			continue
		}
		v := column.Value(row)
		if v == nil || !statistic.IsFinite(*v) {
			continue
		}
		values = append(values, *v)
		years = append(years, row.Year)
	}
	if len(values) == 0 {
		return nil
	}

	q1, q3 := statistic.Quartiles(values)
	iqr := q3 - q1
	lower, upper := q1-iqrFence*iqr, q3+iqrFence*iqr

	kept := make([]float64, 0, len(values))
	keptYears := make([]int, 0, len(values))
	minYear := math.MaxInt
	for i, v := range values {
		if v < lower || v > upper {
			continue
		}
		kept = append(kept, v)
		keptYears = append(keptYears, years[i])
		if years[i] < minYear {
			minYear = years[i]
		}
	}
	if len(kept) == 0 {
		return nil
	}
	weights := make([]float64, len(kept))
	for i, year := range keptYears {
		weights[i] = math.Max(1, float64(year-minYear+1))
	}
	return statistic.Float(stat.Mean(kept, weights))
}

// MonthlyBand returns the consumption band of month from the years strictly before year.
// With partial data the expected value is the measured consumption extrapolated to the
// whole month; otherwise it is the historical mean. The spread is the population
// standard deviation. Without history every field is nil.
func MonthlyBand(history []statistic.HistoricalRow, month statistic.Month, year int, partial *Partial) statistic.Band {
	values := make([]float64, 0)
	for _, row := range history {
		if row.Month != month || row.Year >= year || row.ConsumptionKWh == nil {
			continue
		}
		if v := *row.ConsumptionKWh; statistic.IsFinite(v) {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return statistic.Band{}
	}
	mean, std := stat.PopMeanStdDev(values, nil)

	expected := mean
	if partial != nil && partial.DaysMeasured > 0 && partial.DaysInMonth > 0 {
		expected = partial.ConsumedSoFar / float64(partial.DaysMeasured) * float64(partial.DaysInMonth)
	}
	return statistic.Band{
		Min:      statistic.Float(statistic.Round2(math.Max(0, expected-std))),
		Expected: statistic.Float(statistic.Round2(expected)),
		Max:      statistic.Float(statistic.Round2(expected + std)),
	}
}

// Difference returns estimate-reference and that delta as a percentage of reference,
// both rounded to two decimals. Both are nil when either side is nil or reference is zero.
func Difference(estimate, reference *float64) (delta, pct *float64) {
	if estimate == nil || reference == nil || *reference == 0 {
		return nil, nil
	}
	d := *estimate - *reference
	return statistic.Float(statistic.Round2(d)), statistic.Float(statistic.Round2(d / *reference * 100))
}

// Estimator produces monthly consumption forecasts relative to the clock's current month.
type Estimator struct {
	clock statistic.Clock
}

// NewEstimator constructs an Estimator. A nil clock uses the system clock.
func NewEstimator(clock statistic.Clock) *Estimator {
	if clock == nil {
		clock = statistic.SystemClock{}
	}
	return &Estimator{clock: clock}
}

// Estimate returns the current-year rows followed by the next-year rows.
func (e *Estimator) Estimate(history []statistic.HistoricalRow) []statistic.EstimateRow {
	rows := e.CurrentYear(history)
	return append(rows, e.NextYear(history)...)
}

// CurrentYear classifies the twelve months of the current year. Months before the current
// one are Real, the current month is Corrected and later months are Projected. The
// corrected column starts equal to the expected value; see ApplyBias.
func (e *Estimator) CurrentYear(history []statistic.HistoricalRow) []statistic.EstimateRow {
	now := e.clock.Now()
	year := now.Year()
	current := statistic.MonthOf(now)
	index := statistic.IndexHistory(history)

	rows := make([]statistic.EstimateRow, 0, 12)
	for _, month := range statistic.Months() {
		actual, hasActual := index[statistic.Key{Year: year, Month: month}]
		tempRef := RobustHistoricalMean(history, statistic.ColumnTemperature, month, year)
		hoursRef := RobustHistoricalMean(history, statistic.ColumnHours, month, year)

		row := statistic.EstimateRow{Year: year, Month: month}
		var band statistic.Band
		var tempEst, hoursEst *float64

		switch {
		case month < current:
			row.Type = statistic.EstimateReal
			if hasActual && actual.ConsumptionKWh != nil {
				band = statistic.PointBand(*actual.ConsumptionKWh)
			} else {
				band = MonthlyBand(history, month, year, nil)
			}
			if hasActual {
				tempEst, hoursEst = actual.TempAvgC, actual.OperatingHours
			}
		case month == current:
			row.Type = statistic.EstimateCorrected
			var partial *Partial
			if hasActual && actual.ConsumptionKWh != nil {
				partial = &Partial{
					ConsumedSoFar: *actual.ConsumptionKWh,
					DaysMeasured:  now.Day(),
					DaysInMonth:   month.DaysIn(year),
				}
			}
			band = MonthlyBand(history, month, year, partial)
			tempEst, hoursEst = tempRef, hoursRef
		default:
			row.Type = statistic.EstimateProjected
			band = MonthlyBand(history, month, year, nil)
			tempEst, hoursEst = tempRef, hoursRef
		}

		fillEstimate(&row, band, tempEst, tempRef, hoursEst, hoursRef)
		rows = append(rows, row)
	}
	return rows
}

// NextYear projects the twelve months of the following year. The consumption band uses
// every year before the forecast year; temperature and hours references use the years
// before the current year.
func (e *Estimator) NextYear(history []statistic.HistoricalRow) []statistic.EstimateRow {
	year := e.clock.Now().Year()
	target := year + 1

	rows := make([]statistic.EstimateRow, 0, 12)
	for _, month := range statistic.Months() {
		tempRef := RobustHistoricalMean(history, statistic.ColumnTemperature, month, year)
		hoursRef := RobustHistoricalMean(history, statistic.ColumnHours, month, year)
		row := statistic.EstimateRow{Year: target, Month: month, Type: statistic.EstimateProjected}
		fillEstimate(&row, MonthlyBand(history, month, target, nil), tempRef, tempRef, hoursRef, hoursRef)
		rows = append(rows, row)
	}
	return rows
}

func fillEstimate(row *statistic.EstimateRow, band statistic.Band, tempEst, tempRef, hoursEst, hoursRef *float64) {
	row.ConsumptionMin = statistic.Round2Ptr(band.Min)
	row.ConsumptionExpected = statistic.Round2Ptr(band.Expected)
	row.ConsumptionCorrected = statistic.Round2Ptr(band.Expected)
	row.ConsumptionMax = statistic.Round2Ptr(band.Max)
	row.TempEstimate = statistic.Round2Ptr(tempEst)
	row.TempHistCorrected = statistic.Round2Ptr(tempRef)
	row.DeltaTemp, row.TrendTempPct = Difference(tempEst, tempRef)
	row.HoursEstimate = statistic.Round2Ptr(hoursEst)
	row.HoursHistCorrected = statistic.Round2Ptr(hoursRef)
	row.DeltaHours, row.TrendHoursPct = Difference(hoursEst, hoursRef)
}
