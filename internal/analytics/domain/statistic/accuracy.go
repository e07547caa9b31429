package statistic

import "sort"

// AccuracyRow compares a realized month with the estimate produced for it.
// Errors are signed percentages: positive means the estimate was above the realized value.
type AccuracyRow struct {
	Year                 int
	Month                Month
	Type                 EstimateType
	ConsumptionReal      *float64
	ConsumptionEstimated *float64
	ErrConsumptionPct    *float64
	HoursReal            *float64
	HoursEstimated       *float64
	ErrHoursPct          *float64
	TempReal             *float64
	TempEstimated        *float64
	ErrTempPct           *float64
	AvgPowerKW           *float64
	UtilizationFactor    *float64
	AvgCOP               *float64
	CO2EmittedKg         *float64
}

// Key returns the row's (year, month).
func (r AccuracyRow) Key() Key { return Key{Year: r.Year, Month: r.Month} }

// SortAccuracy orders rows by (year, canonical month).
func SortAccuracy(rows []AccuracyRow) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Key().Less(rows[j].Key()) })
}
