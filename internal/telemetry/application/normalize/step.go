package normalize

import (
	"math"
	"time"

	"chiller-forecast/internal/analytics/domain/statistic"
)

// Sampling steps a dataset can snap to, in minutes.
var stepCandidates = []float64{1, 5, 10, 15, 30, 60}

const (
	defaultStepMinutes = 1
	maxDeltaMinutes    = 60
)

// StepEstimate is the inferred sampling interval of a dataset.
type StepEstimate struct {
	Minutes       float64
	MedianMinutes float64
	IQRMinutes    float64
	Deltas        int
	// Irregular is set when the delta spread exceeds half the snapped step.
	Irregular bool
}

// Hours returns the step in hours.
func (s StepEstimate) Hours() float64 { return s.Minutes / 60 }

// EstimateStep infers the sampling interval from consecutive timestamps. Deltas that are
// not positive or exceed an hour are gaps and ignored; with no usable delta the step is one minute.
func EstimateStep(timestamps []time.Time) StepEstimate {
	deltas := make([]float64, 0, len(timestamps))
	for i := 1; i < len(timestamps); i++ {
		d := timestamps[i].Sub(timestamps[i-1]).Minutes()
		if d > 0 && d <= maxDeltaMinutes {
			deltas = append(deltas, d)
		}
	}
	if len(deltas) == 0 {
		return StepEstimate{Minutes: defaultStepMinutes}
	}
	median := statistic.Median(deltas)
	step := snapStep(median)
	q1, q3 := statistic.Quartiles(deltas)
	iqr := q3 - q1
	return StepEstimate{
		Minutes:       step,
		MedianMinutes: median,
		IQRMinutes:    iqr,
		Deltas:        len(deltas),
		Irregular:     iqr > 0.5*step,
	}
}

// EstimateStepMinutes returns only the snapped step in minutes.
func EstimateStepMinutes(timestamps []time.Time) float64 {
	return EstimateStep(timestamps).Minutes
}

// snapStep returns the candidate closest to minutes; ties go to the smaller candidate.
func snapStep(minutes float64) float64 {
	best := stepCandidates[0]
	bestDist := math.Abs(best - minutes)
	for _, c := range stepCandidates[1:] {
		if d := math.Abs(c - minutes); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
