package statistic

import "sort"

// MonthlyFact is the energy and operating time measured in one month.
// It only exists for months that have at least one sample.
type MonthlyFact struct {
	Year           int
	Month          Month
	ConsumptionKWh float64
	OperatingHours float64
}

// Key returns the fact's (year, month).
func (f MonthlyFact) Key() Key { return Key{Year: f.Year, Month: f.Month} }

// MonthlyAverage holds on-time weighted averages of a month's samples.
type MonthlyAverage struct {
	Year       int
	Month      Month
	AvgPowerKW *float64
	AvgCOP     *float64
}

// Key returns the average's (year, month).
func (a MonthlyAverage) Key() Key { return Key{Year: a.Year, Month: a.Month} }

// HistoricalRow is the canonical monthly history: measured facts plus external context.
// Every value is optional; a nil consumption means "no chiller data", which is different
// from a zero-consumption month.
type HistoricalRow struct {
	Year              int
	Month             Month
	ConsumptionKWh    *float64
	OperatingHours    *float64
	AvgPowerKW        *float64
	AvgCOP            *float64
	TempAvgC          *float64
	PricePerKWh       *float64
	OperationCost     *float64
	CO2FactorKgPerKWh *float64
	CO2EmittedKg      *float64
}

// Key returns the row's (year, month).
func (r HistoricalRow) Key() Key { return Key{Year: r.Year, Month: r.Month} }

// Column selects a numeric column of the history.
type Column string

const (
	ColumnConsumption Column = "consumptionKWh"
	ColumnHours       Column = "operatingHours"
	ColumnAvgPower    Column = "avgPowerKW"
	ColumnAvgCOP      Column = "avgCOP"
	ColumnTemperature Column = "tempAvgC"
)

// Value returns the column value of r, or nil when absent or the column is unknown.
func (c Column) Value(r HistoricalRow) *float64 {
	switch c {
	case ColumnConsumption:
		return r.ConsumptionKWh
	case ColumnHours:
		return r.OperatingHours
	case ColumnAvgPower:
		return r.AvgPowerKW
	case ColumnAvgCOP:
		return r.AvgCOP
	case ColumnTemperature:
		return r.TempAvgC
	default:
		return nil
	}
}

// SortHistory orders rows by (year, canonical month).
func SortHistory(rows []HistoricalRow) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Key().Less(rows[j].Key()) })
}

// IndexHistory maps rows by key; later rows win.
func IndexHistory(rows []HistoricalRow) map[Key]HistoricalRow {
	out := make(map[Key]HistoricalRow, len(rows))
	for _, row := range rows {
		out[row.Key()] = row
	}
	return out
}
