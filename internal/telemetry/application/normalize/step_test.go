package normalize

import (
	"testing"
	"time"
)

func series(start time.Time, deltasMin ...float64) []time.Time {
	out := []time.Time{start}
	cur := start
	for _, d := range deltasMin {
		cur = cur.Add(time.Duration(d * float64(time.Minute)))
		out = append(out, cur)
	}
	return out
}

func TestEstimateStepMinutesSnapsMedian(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		deltas []float64
		want   float64
	}{
		{"exact five", []float64{5, 5, 5}, 5},
		{"seven snaps to five", []float64{7, 7, 7}, 5},
		{"eight snaps to ten", []float64{8, 8, 8}, 10},
		{"tie goes to smaller", []float64{12.5, 12.5}, 10},
		{"forty snaps to thirty", []float64{40}, 30},
		{"gaps ignored", []float64{15, 15, 240, 15}, 15},
		{"no usable delta", []float64{0, 120}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EstimateStepMinutes(series(start, tc.deltas...)); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
	if got := EstimateStepMinutes(nil); got != 1 {
		t.Fatalf("expected default for empty series, got %v", got)
	}
}

func TestEstimateStepFlagsIrregularSampling(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	regular := EstimateStep(series(start, 5, 5, 5, 5))
	if regular.Irregular {
		t.Fatalf("regular series flagged: %+v", regular)
	}
	irregular := EstimateStep(series(start, 5, 5, 5, 20))
	if !irregular.Irregular || irregular.Minutes != 5 {
		t.Fatalf("expected irregular 5 minute step, got %+v", irregular)
	}
	if irregular.IQRMinutes != 3.75 {
		t.Fatalf("expected IQR 3.75, got %v", irregular.IQRMinutes)
	}
}

func TestEstimateStepTwoSamples(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	step := EstimateStep(series(start, 5))
	if step.Minutes != 5 || step.Hours() != 5.0/60 {
		t.Fatalf("unexpected step: %+v", step)
	}
}
