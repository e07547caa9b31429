package application

import (
	"math"

	"chiller-forecast/internal/analytics/domain/statistic"
)

// Enrichment is the external monthly context joined into the history.
type Enrichment struct {
	// Temperatures holds monthly mean air temperature in degrees Celsius.
	Temperatures map[statistic.Key]float64
	// Prices holds the energy price per kWh by year.
	Prices map[int]float64
	// EmissionFactors holds kg CO2 per kWh by year.
	EmissionFactors map[int]float64
}

// BuildHistory joins monthly facts, weighted averages and enrichment into history rows.
// The row set is the union of months with chiller data and months with a temperature.
func BuildHistory(facts []statistic.MonthlyFact, averages []statistic.MonthlyAverage, enrich Enrichment) []statistic.HistoricalRow {
	rows := make(map[statistic.Key]*statistic.HistoricalRow)
	row := func(key statistic.Key) *statistic.HistoricalRow {
		r, ok := rows[key]
		if !ok {
			r = &statistic.HistoricalRow{Year: key.Year, Month: key.Month}
			rows[key] = r
		}
		return r
	}
	for _, f := range facts {
		r := row(f.Key())
		r.ConsumptionKWh = statistic.Float(f.ConsumptionKWh)
		r.OperatingHours = statistic.Float(f.OperatingHours)
	}
	for _, a := range averages {
		r := row(a.Key())
		r.AvgPowerKW = a.AvgPowerKW
		r.AvgCOP = a.AvgCOP
	}
	for key, temp := range enrich.Temperatures {
		if key.Month.IsValid() {
			row(key).TempAvgC = statistic.Float(temp)
		}
	}

	out := make([]statistic.HistoricalRow, 0, len(rows))
	for _, r := range rows {
		if price, ok := enrich.Prices[r.Year]; ok {
			r.PricePerKWh = statistic.Float(price)
		}
		if factor, ok := enrich.EmissionFactors[r.Year]; ok {
			r.CO2FactorKgPerKWh = statistic.Float(factor)
		}
		deriveCosts(r)
		out = append(out, *r)
	}
	statistic.SortHistory(out)
	return out
}

// Conflict records an enrichment value that disagrees with the value already kept.
type Conflict struct {
	Key      statistic.Key
	Column   string
	Kept     float64
	Incoming float64
}

const conflictTolerance = 1e-9

// MergeHistory combines the persisted history with a freshly built one. Measured columns
// (consumption, hours, averages) are refreshed from current when present. Enrichment
// columns keep the previous non-null value and are filled from current otherwise; a
// disagreement between two non-null values is returned as a Conflict. Months only in
// previous are kept.
func MergeHistory(previous, current []statistic.HistoricalRow) ([]statistic.HistoricalRow, []Conflict) {
	merged := statistic.IndexHistory(previous)
	var conflicts []Conflict
	for _, cur := range current {
		key := cur.Key()
		prev, ok := merged[key]
		if !ok {
			merged[key] = cur
			continue
		}
		out := prev
		out.ConsumptionKWh = preferNew(prev.ConsumptionKWh, cur.ConsumptionKWh)
		out.OperatingHours = preferNew(prev.OperatingHours, cur.OperatingHours)
		out.AvgPowerKW = preferNew(prev.AvgPowerKW, cur.AvgPowerKW)
		out.AvgCOP = preferNew(prev.AvgCOP, cur.AvgCOP)

		var c []Conflict
		out.TempAvgC, c = preferFirst(key, "tempAvgC", prev.TempAvgC, cur.TempAvgC, c)
		out.PricePerKWh, c = preferFirst(key, "pricePerKWh", prev.PricePerKWh, cur.PricePerKWh, c)
		out.CO2FactorKgPerKWh, c = preferFirst(key, "co2FactorKgPerKWh", prev.CO2FactorKgPerKWh, cur.CO2FactorKgPerKWh, c)
		conflicts = append(conflicts, c...)

		deriveCosts(&out)
		merged[key] = out
	}

	out := make([]statistic.HistoricalRow, 0, len(merged))
	for _, r := range merged {
		out = append(out, r)
	}
	statistic.SortHistory(out)
	return out, conflicts
}

func preferNew(prev, cur *float64) *float64 {
	if cur != nil {
		return cur
	}
	return prev
}

func preferFirst(key statistic.Key, column string, prev, cur *float64, conflicts []Conflict) (*float64, []Conflict) {
	if prev == nil {
		return cur, conflicts
	}
	if cur != nil && math.Abs(*prev-*cur) > conflictTolerance {
		conflicts = append(conflicts, Conflict{Key: key, Column: column, Kept: *prev, Incoming: *cur})
	}
	return prev, conflicts
}

func deriveCosts(r *statistic.HistoricalRow) {
	r.OperationCost = nil
	r.CO2EmittedKg = nil
	if r.ConsumptionKWh == nil {
		return
	}
	if r.PricePerKWh != nil {
		r.OperationCost = statistic.Float(*r.ConsumptionKWh * *r.PricePerKWh)
	}
	if r.CO2FactorKgPerKWh != nil {
		r.CO2EmittedKg = statistic.Float(*r.ConsumptionKWh * *r.CO2FactorKgPerKWh)
	}
}
