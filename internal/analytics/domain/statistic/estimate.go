package statistic

import "sort"

// EstimateType classifies an estimate row by its month's position relative to "now".
type EstimateType string

const (
	// EstimateReal is a past month: the measured value when present.
	EstimateReal EstimateType = "Real"
	// EstimateCorrected is the current month: partial measurement projected to month end.
	EstimateCorrected EstimateType = "Corrected"
	// EstimateProjected is a future month: pure historical projection.
	EstimateProjected EstimateType = "Projected"
)

// IsValid reports whether t is a known classification.
func (t EstimateType) IsValid() bool {
	switch t {
	case EstimateReal, EstimateCorrected, EstimateProjected:
		return true
	default:
		return false
	}
}

// ParseEstimateType accepts the canonical names and the legacy Portuguese ones.
func ParseEstimateType(value string) (EstimateType, error) {
	switch value {
	case "Real":
		return EstimateReal, nil
	case "Corrected", "Corrigido":
		return EstimateCorrected, nil
	case "Projected", "Projetado":
		return EstimateProjected, nil
	default:
		return "", ErrInvalidEstimateType
	}
}

// Band is a consumption range around an expected value.
type Band struct {
	Min      *float64
	Expected *float64
	Max      *float64
}

// PointBand is a degenerate band for a measured value.
func PointBand(value float64) Band {
	return Band{Min: Float(value), Expected: Float(value), Max: Float(value)}
}

// EstimateRow is one month of a consumption forecast.
type EstimateRow struct {
	Year                 int
	Month                Month
	Type                 EstimateType
	ConsumptionMin       *float64
	ConsumptionExpected  *float64
	ConsumptionCorrected *float64
	ConsumptionMax       *float64
	TempEstimate         *float64
	TempHistCorrected    *float64
	DeltaTemp            *float64
	TrendTempPct         *float64
	HoursEstimate        *float64
	HoursHistCorrected   *float64
	DeltaHours           *float64
	TrendHoursPct        *float64
}

// Key returns the row's (year, month).
func (r EstimateRow) Key() Key { return Key{Year: r.Year, Month: r.Month} }

// SortEstimates orders rows by (year, canonical month).
func SortEstimates(rows []EstimateRow) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Key().Less(rows[j].Key()) })
}
