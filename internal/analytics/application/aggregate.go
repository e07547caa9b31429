package application

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"chiller-forecast/internal/analytics/domain/statistic"
	telemetry "chiller-forecast/internal/telemetry/domain"
)

// DefaultOnThresholdKW is the electric power above which a chiller counts as running.
const DefaultOnThresholdKW = 0.0

type monthAccumulator struct {
	energy float64
	hours  float64

	power, powerWeights []float64
	cop, copWeights     []float64
}

// Aggregate sums energy and running hours per (year, month). A sample is running when its
// electric power exceeds onThresholdKW. Months without samples are absent from the result.
func Aggregate(samples []telemetry.Sample, onThresholdKW float64) []statistic.MonthlyFact {
	acc, keys := accumulate(samples, onThresholdKW)
	out := make([]statistic.MonthlyFact, 0, len(keys))
	for _, key := range keys {
		a := acc[key]
		out = append(out, statistic.MonthlyFact{
			Year:           key.Year,
			Month:          key.Month,
			ConsumptionKWh: a.energy,
			OperatingHours: a.hours,
		})
	}
	return out
}

// MonthlyAverages returns electric power and COP averages per month, weighted by running
// step hours. Samples below the threshold and missing COP values carry no weight.
func MonthlyAverages(samples []telemetry.Sample, onThresholdKW float64) []statistic.MonthlyAverage {
	acc, keys := accumulate(samples, onThresholdKW)
	out := make([]statistic.MonthlyAverage, 0, len(keys))
	for _, key := range keys {
		a := acc[key]
		out = append(out, statistic.MonthlyAverage{
			Year:       key.Year,
			Month:      key.Month,
			AvgPowerKW: weightedMean(a.power, a.powerWeights),
			AvgCOP:     weightedMean(a.cop, a.copWeights),
		})
	}
	return out
}

func accumulate(samples []telemetry.Sample, onThresholdKW float64) (map[statistic.Key]*monthAccumulator, []statistic.Key) {
	acc := make(map[statistic.Key]*monthAccumulator)
	keys := make([]statistic.Key, 0)
	for _, s := range samples {
		key := statistic.KeyOf(s.Timestamp)
		a, ok := acc[key]
		if !ok {
			a = &monthAccumulator{}
			acc[key] = a
			keys = append(keys, key)
		}
		if s.ElectricPowerKW <= onThresholdKW {
			continue
		}
		a.energy += s.ElectricPowerKW * s.StepHours
		a.hours += s.StepHours
		if s.StepHours > 0 {
			a.power = append(a.power, s.ElectricPowerKW)
			a.powerWeights = append(a.powerWeights, s.StepHours)
			if s.COP != nil {
				a.cop = append(a.cop, *s.COP)
				a.copWeights = append(a.copWeights, s.StepHours)
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return acc, keys
}

func weightedMean(values, weights []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	return statistic.Float(stat.Mean(values, weights))
}
