package telemetry

import (
	"sort"
	"time"
)

// Sample is one normalized chiller reading.
type Sample struct {
	Timestamp       time.Time
	ElectricPowerKW float64
	CoolingPowerKW  *float64
	COP             *float64
	StepHours       float64
}

// SortSamples orders samples by timestamp and removes duplicate timestamps, keeping the
// first occurrence in input order.
func SortSamples(samples []Sample) []Sample {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
	out := samples[:0]
	for i, s := range samples {
		if i > 0 && s.Timestamp.Equal(out[len(out)-1].Timestamp) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Timestamps returns the sample timestamps in order.
func Timestamps(samples []Sample) []time.Time {
	out := make([]time.Time, len(samples))
	for i, s := range samples {
		out[i] = s.Timestamp
	}
	return out
}
