package application

import (
	"testing"
	"time"

	"chiller-forecast/internal/analytics/domain/statistic"
)

func histRow(year int, month statistic.Month, consumption float64) statistic.HistoricalRow {
	return statistic.HistoricalRow{Year: year, Month: month, ConsumptionKWh: statistic.Float(consumption)}
}

func TestRobustHistoricalMeanRecencyWeights(t *testing.T) {
	history := []statistic.HistoricalRow{
		histRow(2020, 1, 100),
		histRow(2021, 1, 110),
		histRow(2022, 1, 120),
		histRow(2023, 1, 999),
		histRow(2022, 2, 5000),
	}
	got := RobustHistoricalMean(history, statistic.ColumnConsumption, 1, 2023)
	if got == nil {
		t.Fatalf("expected a mean")
	}
	want := (100*1 + 110*2 + 120*3) / 6.0
	if *got != want {
		t.Fatalf("expected %v, got %v", want, *got)
	}
	if RobustHistoricalMean(history, statistic.ColumnConsumption, 1, 2020) != nil {
		t.Fatalf("expected nil without earlier years")
	}
	if RobustHistoricalMean(history, statistic.ColumnTemperature, 1, 2024) != nil {
		t.Fatalf("expected nil for empty column")
	}
}

func TestRobustHistoricalMeanIgnoresFarOutlier(t *testing.T) {
	base := []statistic.HistoricalRow{
		histRow(2018, 6, 100),
		histRow(2019, 6, 104),
		histRow(2020, 6, 98),
		histRow(2021, 6, 102),
		histRow(2022, 6, 101),
	}
	withOutlier := append(append([]statistic.HistoricalRow(nil), base...), histRow(2023, 6, 10000))
	a := RobustHistoricalMean(base, statistic.ColumnConsumption, 6, 2025)
	b := RobustHistoricalMean(withOutlier, statistic.ColumnConsumption, 6, 2025)
	if a == nil || b == nil || *a != *b {
		t.Fatalf("outlier changed the mean: %v vs %v", a, b)
	}
}

func TestMonthlyBandPartialMonth(t *testing.T) {
	history := []statistic.HistoricalRow{
		histRow(2022, 1, 140),
		histRow(2023, 1, 160),
	}
	band := MonthlyBand(history, 1, 2024, &Partial{ConsumedSoFar: 50, DaysMeasured: 10, DaysInMonth: 31})
	if band.Expected == nil || *band.Expected != 155 {
		t.Fatalf("expected 155, got %v", band.Expected)
	}
	if *band.Min != 145 || *band.Max != 165 {
		t.Fatalf("expected band 145..165, got %v..%v", *band.Min, *band.Max)
	}

	plain := MonthlyBand(history, 1, 2024, nil)
	if *plain.Expected != 150 {
		t.Fatalf("expected mean 150, got %v", *plain.Expected)
	}

	empty := MonthlyBand(history, 2, 2024, nil)
	if empty.Min != nil || empty.Expected != nil || empty.Max != nil {
		t.Fatalf("expected nil band, got %+v", empty)
	}
}

func TestMonthlyBandClampsMinimumAtZero(t *testing.T) {
	history := []statistic.HistoricalRow{histRow(2021, 4, 0), histRow(2022, 4, 100)}
	band := MonthlyBand(history, 4, 2023, &Partial{ConsumedSoFar: 1, DaysMeasured: 30, DaysInMonth: 30})
	if *band.Min != 0 || *band.Expected != 1 || *band.Max != 51 {
		t.Fatalf("unexpected band: %v %v %v", *band.Min, *band.Expected, *band.Max)
	}
}

func TestDifference(t *testing.T) {
	delta, pct := Difference(statistic.Float(22), statistic.Float(20))
	if *delta != 2 || *pct != 10 {
		t.Fatalf("unexpected difference: %v %v", *delta, *pct)
	}
	if d, p := Difference(statistic.Float(1), statistic.Float(0)); d != nil || p != nil {
		t.Fatalf("expected nil on zero reference")
	}
	if d, p := Difference(nil, statistic.Float(3)); d != nil || p != nil {
		t.Fatalf("expected nil on missing estimate")
	}
}

func TestEstimatorCurrentYearClassification(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	history := []statistic.HistoricalRow{
		histRow(2022, 1, 90), histRow(2023, 1, 110),
		histRow(2022, 2, 200), histRow(2023, 2, 220),
		histRow(2022, 3, 140), histRow(2023, 3, 160),
		histRow(2022, 4, 300), histRow(2023, 4, 300),
		{Year: 2024, Month: 1, ConsumptionKWh: statistic.Float(95), OperatingHours: statistic.Float(400), TempAvgC: statistic.Float(24)},
		histRow(2024, 3, 50),
	}
	rows := NewEstimator(statistic.FixedClock{At: now}).CurrentYear(history)
	if len(rows) != 12 {
		t.Fatalf("expected 12 rows, got %d", len(rows))
	}

	jan := rows[0]
	if jan.Type != statistic.EstimateReal || *jan.ConsumptionExpected != 95 || *jan.ConsumptionMin != 95 || *jan.ConsumptionMax != 95 {
		t.Fatalf("unexpected january: %+v", jan)
	}
	if *jan.TempEstimate != 24 || *jan.HoursEstimate != 400 {
		t.Fatalf("january estimates must be the measured values")
	}

	feb := rows[1]
	if feb.Type != statistic.EstimateReal || *feb.ConsumptionExpected != 210 {
		t.Fatalf("february without data must fall back to the band, got %+v", feb)
	}

	mar := rows[2]
	if mar.Type != statistic.EstimateCorrected || *mar.ConsumptionExpected != 155 {
		t.Fatalf("expected corrected march at 155, got %v %v", mar.Type, mar.ConsumptionExpected)
	}

	apr := rows[3]
	if apr.Type != statistic.EstimateProjected || *apr.ConsumptionExpected != 300 || *apr.ConsumptionCorrected != 300 {
		t.Fatalf("unexpected april: %+v", apr)
	}
	if rows[11].Type != statistic.EstimateProjected || rows[11].ConsumptionExpected != nil {
		t.Fatalf("december without history must be projected with nil band")
	}
}

func TestEstimatorNextYearAllProjected(t *testing.T) {
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	history := []statistic.HistoricalRow{
		{Year: 2023, Month: 5, ConsumptionKWh: statistic.Float(100), TempAvgC: statistic.Float(20)},
		{Year: 2024, Month: 5, ConsumptionKWh: statistic.Float(200), TempAvgC: statistic.Float(30)},
	}
	rows := NewEstimator(statistic.FixedClock{At: now}).NextYear(history)
	if len(rows) != 12 {
		t.Fatalf("expected 12 rows, got %d", len(rows))
	}
	for _, row := range rows {
		if row.Type != statistic.EstimateProjected || row.Year != 2025 {
			t.Fatalf("unexpected row: %+v", row)
		}
	}
	may := rows[4]
	if *may.ConsumptionExpected != 150 {
		t.Fatalf("expected band over years before 2025, got %v", *may.ConsumptionExpected)
	}
	if *may.TempEstimate != 20 || *may.DeltaTemp != 0 || *may.TrendTempPct != 0 {
		t.Fatalf("expected temperature reference from years before 2024, got %+v", may)
	}
}

func TestEstimateIsDeterministic(t *testing.T) {
	now := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)
	history := []statistic.HistoricalRow{histRow(2022, 8, 10), histRow(2023, 8, 12), histRow(2024, 7, 6)}
	e := NewEstimator(statistic.FixedClock{At: now})
	a, b := e.Estimate(history), e.Estimate(history)
	if len(a) != 24 || len(a) != len(b) {
		t.Fatalf("expected 24 rows")
	}
	for i := range a {
		if a[i].Key() != b[i].Key() || a[i].Type != b[i].Type || statistic.Deref(a[i].ConsumptionExpected) != statistic.Deref(b[i].ConsumptionExpected) {
			t.Fatalf("row %d differs", i)
		}
	}
}
