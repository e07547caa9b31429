package enrichment

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"chiller-forecast/internal/analytics/domain/statistic"
	"chiller-forecast/internal/telemetry/application/normalize"
	telemetry "chiller-forecast/internal/telemetry/domain"
)

// MonthlyTemperatures averages the dry-bulb air temperature of a weather station export:
// hourly readings are averaged per day and daily means per month, rounded to two decimals.
// A leading "KEY:;value" station block is skipped: the header is the first row, within
// headerScanRows, that names a temperature column. The date column is the first one named
// "data..." or the first column; the temperature column prefers "temperatura do ar ...
// bulbo seco" and falls back to any non dew-point temperature.
func MonthlyTemperatures(raw telemetry.RawExport, loc *time.Location) (map[statistic.Key]float64, error) {
	raw = locateHeader(raw, func(header []string) bool { return temperatureColumn(header) >= 0 })
	dateCol := findColumn(raw.Header, func(folded string) bool { return strings.HasPrefix(folded, "data") })
	if dateCol < 0 {
		dateCol = 0
	}
	tempCol := temperatureColumn(raw.Header)
	if tempCol < 0 {
		return nil, fmt.Errorf("%w: temperature in %s", ErrMissingColumn, raw.Name)
	}

	type dayAcc struct {
		sum   float64
		count int
	}
	days := make(map[time.Time]*dayAcc)
	for row := range raw.Rows {
		ts, ok := normalize.ParseTimestamp(raw.Cell(row, dateCol), loc)
		if !ok {
			continue
		}
		temp, ok := normalize.ParseNumber(raw.Cell(row, tempCol))
		if !ok {
			continue
		}
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		acc, ok := days[day]
		if !ok {
			acc = &dayAcc{}
			days[day] = acc
		}
		acc.sum += temp
		acc.count++
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, raw.Name)
	}

	ordered := make([]time.Time, 0, len(days))
	for day := range days {
		ordered = append(ordered, day)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

	sums := make(map[statistic.Key]float64)
	counts := make(map[statistic.Key]int)
	for _, day := range ordered {
		acc := days[day]
		key := statistic.KeyOf(day)
		sums[key] += acc.sum / float64(acc.count)
		counts[key]++
	}
	out := make(map[statistic.Key]float64, len(sums))
	for key, sum := range sums {
		out[key] = statistic.Round2(sum / float64(counts[key]))
	}
	return out, nil
}

func temperatureColumn(header []string) int {
	if col := findColumn(header, containsAll("temperatura do ar", "bulbo seco")); col >= 0 {
		return col
	}
	return findColumn(header, func(folded string) bool {
		return strings.Contains(folded, "temperatura") && !strings.Contains(folded, "orvalho")
	})
}
