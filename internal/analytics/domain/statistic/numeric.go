package statistic

import (
	"math"
	"sort"
)

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round2Ptr rounds a nullable value.
func Round2Ptr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return Float(Round2(*v))
}

// Deref returns *v or 0 when v is nil.
func Deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Quantile computes the q-quantile with linear interpolation between closest ranks:
// position (n-1)*q on the sorted values. values is not modified.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return quantileSorted(sorted, q)
}

// Quartiles returns the first and third quartiles of values.
func Quartiles(values []float64) (q1, q3 float64) {
	if len(values) == 0 {
		return math.NaN(), math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return quantileSorted(sorted, 0.25), quantileSorted(sorted, 0.75)
}

// Median returns the 0.5 quantile.
func Median(values []float64) float64 {
	return Quantile(values, 0.5)
}

func quantileSorted(sorted []float64, q float64) float64 {
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := float64(len(sorted)-1) * q
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
