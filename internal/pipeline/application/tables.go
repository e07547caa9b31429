package application

import (
	"fmt"
	"time"

	"chiller-forecast/internal/analytics/domain/statistic"
	artifact "chiller-forecast/internal/artifact/domain"
	telemetry "chiller-forecast/internal/telemetry/domain"
)

// Column names of the persisted tables.
const (
	colYear  = "year"
	colMonth = "month"
	colType  = "type"

	colTimestamp = "timestamp"

	timestampLayout = "2006-01-02 15:04:05"
)

type field[T any] struct {
	name string
	ref  func(*T) **float64
}

var historyFields = []field[statistic.HistoricalRow]{
	{"consumptionKWh", func(r *statistic.HistoricalRow) **float64 { return &r.ConsumptionKWh }},
	{"operatingHours", func(r *statistic.HistoricalRow) **float64 { return &r.OperatingHours }},
	{"avgPowerKW", func(r *statistic.HistoricalRow) **float64 { return &r.AvgPowerKW }},
	{"avgCOP", func(r *statistic.HistoricalRow) **float64 { return &r.AvgCOP }},
	{"tempAvgC", func(r *statistic.HistoricalRow) **float64 { return &r.TempAvgC }},
	{"pricePerKWh", func(r *statistic.HistoricalRow) **float64 { return &r.PricePerKWh }},
	{"operationCostCurrency", func(r *statistic.HistoricalRow) **float64 { return &r.OperationCost }},
	{"co2FactorKgPerKWh", func(r *statistic.HistoricalRow) **float64 { return &r.CO2FactorKgPerKWh }},
	{"co2EmittedKg", func(r *statistic.HistoricalRow) **float64 { return &r.CO2EmittedKg }},
}

var estimateFields = []field[statistic.EstimateRow]{
	{"consumptionMin", func(r *statistic.EstimateRow) **float64 { return &r.ConsumptionMin }},
	{"consumptionExpected", func(r *statistic.EstimateRow) **float64 { return &r.ConsumptionExpected }},
	{"consumptionCorrected", func(r *statistic.EstimateRow) **float64 { return &r.ConsumptionCorrected }},
	{"consumptionMax", func(r *statistic.EstimateRow) **float64 { return &r.ConsumptionMax }},
	{"tempEstimate", func(r *statistic.EstimateRow) **float64 { return &r.TempEstimate }},
	{"tempHistCorrected", func(r *statistic.EstimateRow) **float64 { return &r.TempHistCorrected }},
	{"deltaTemp", func(r *statistic.EstimateRow) **float64 { return &r.DeltaTemp }},
	{"trendTempPct", func(r *statistic.EstimateRow) **float64 { return &r.TrendTempPct }},
	{"hoursEstimate", func(r *statistic.EstimateRow) **float64 { return &r.HoursEstimate }},
	{"hoursHistCorrected", func(r *statistic.EstimateRow) **float64 { return &r.HoursHistCorrected }},
	{"deltaHours", func(r *statistic.EstimateRow) **float64 { return &r.DeltaHours }},
	{"trendHoursPct", func(r *statistic.EstimateRow) **float64 { return &r.TrendHoursPct }},
}

var accuracyFields = []field[statistic.AccuracyRow]{
	{"consumptionReal", func(r *statistic.AccuracyRow) **float64 { return &r.ConsumptionReal }},
	{"consumptionEstimated", func(r *statistic.AccuracyRow) **float64 { return &r.ConsumptionEstimated }},
	{"errConsumptionPct", func(r *statistic.AccuracyRow) **float64 { return &r.ErrConsumptionPct }},
	{"hoursReal", func(r *statistic.AccuracyRow) **float64 { return &r.HoursReal }},
	{"hoursEstimated", func(r *statistic.AccuracyRow) **float64 { return &r.HoursEstimated }},
	{"errHoursPct", func(r *statistic.AccuracyRow) **float64 { return &r.ErrHoursPct }},
	{"tempReal", func(r *statistic.AccuracyRow) **float64 { return &r.TempReal }},
	{"tempEstimated", func(r *statistic.AccuracyRow) **float64 { return &r.TempEstimated }},
	{"errTempPct", func(r *statistic.AccuracyRow) **float64 { return &r.ErrTempPct }},
	{"avgPowerKW", func(r *statistic.AccuracyRow) **float64 { return &r.AvgPowerKW }},
	{"utilizationFactor", func(r *statistic.AccuracyRow) **float64 { return &r.UtilizationFactor }},
	{"avgCOP", func(r *statistic.AccuracyRow) **float64 { return &r.AvgCOP }},
	{"co2EmittedKg", func(r *statistic.AccuracyRow) **float64 { return &r.CO2EmittedKg }},
}

func fieldNames[T any](lead []string, fields []field[T]) []string {
	out := append([]string(nil), lead...)
	for _, f := range fields {
		out = append(out, f.name)
	}
	return out
}

func appendFields[T any](cells []any, row *T, fields []field[T]) []any {
	for _, f := range fields {
		cells = append(cells, artifact.Optional(*f.ref(row)))
	}
	return cells
}

func readFields[T any](table artifact.Table, i int, row *T, fields []field[T]) error {
	for _, f := range fields {
		col := table.Index(f.name)
		if col < 0 {
			continue
		}
		v, err := table.Float(i, col)
		if err != nil {
			return err
		}
		*f.ref(row) = v
	}
	return nil
}

func readKey(table artifact.Table, i int) (statistic.Key, error) {
	idx, err := table.Require(colYear, colMonth)
	if err != nil {
		return statistic.Key{}, err
	}
	year, err := table.Int(i, idx[colYear])
	if err != nil {
		return statistic.Key{}, fmt.Errorf("%w: %v", statistic.ErrInvalidYear, err)
	}
	month, ok := statistic.ParseMonth(table.String(i, idx[colMonth]))
	if !ok {
		return statistic.Key{}, fmt.Errorf("%w: row %d: %q", statistic.ErrInvalidMonth, i, table.String(i, idx[colMonth]))
	}
	return statistic.Key{Year: year, Month: month}, nil
}

func readType(table artifact.Table, i int) (statistic.EstimateType, error) {
	col := table.Index(colType)
	if col < 0 {
		return "", fmt.Errorf("%w: %s", artifact.ErrMissingColumn, colType)
	}
	return statistic.ParseEstimateType(table.String(i, col))
}

// SamplesTable renders normalized samples.
func SamplesTable(samples []telemetry.Sample) artifact.Table {
	table := artifact.NewTable(colTimestamp, "electricPowerKW", "coolingPowerKW", "COP")
	for _, s := range samples {
		table.Append(s.Timestamp.Format(timestampLayout), s.ElectricPowerKW, artifact.Optional(s.CoolingPowerKW), artifact.Optional(s.COP))
	}
	return table
}

// SamplesFromTable parses a samples table in loc.
func SamplesFromTable(table artifact.Table, loc *time.Location) ([]telemetry.Sample, error) {
	idx, err := table.Require(colTimestamp, "electricPowerKW")
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	cooling, cop := table.Index("coolingPowerKW"), table.Index("COP")
	out := make([]telemetry.Sample, 0, table.Len())
	for i := range table.Rows {
		ts, err := time.ParseInLocation(timestampLayout, table.String(i, idx[colTimestamp]), loc)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d timestamp: %v", artifact.ErrInvalidCell, i, err)
		}
		power, err := table.Float(i, idx["electricPowerKW"])
		if err != nil {
			return nil, err
		}
		if power == nil {
			return nil, fmt.Errorf("%w: row %d: empty electric power", artifact.ErrInvalidCell, i)
		}
		s := telemetry.Sample{Timestamp: ts, ElectricPowerKW: *power}
		if s.CoolingPowerKW, err = table.Float(i, cooling); err != nil {
			return nil, err
		}
		if s.COP, err = table.Float(i, cop); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// RawTable renders a raw export as a table of text cells.
func RawTable(raw telemetry.RawExport) artifact.Table {
	table := artifact.NewTable(raw.Header...)
	for r := range raw.Rows {
		cells := make([]any, len(raw.Header))
		for i := range cells {
			if v := raw.Cell(r, i); v != "" {
				cells[i] = v
			}
		}
		table.Rows = append(table.Rows, cells)
	}
	return table
}

// HistoryTable renders the monthly history.
func HistoryTable(rows []statistic.HistoricalRow) artifact.Table {
	table := artifact.NewTable(fieldNames([]string{colYear, colMonth}, historyFields)...)
	for i := range rows {
		cells := []any{rows[i].Year, rows[i].Month.Label()}
		table.Rows = append(table.Rows, appendFields(cells, &rows[i], historyFields))
	}
	return table
}

// HistoryFromTable parses a monthly history table. Unknown columns are ignored and missing
// value columns read as nil.
func HistoryFromTable(table artifact.Table) ([]statistic.HistoricalRow, error) {
	out := make([]statistic.HistoricalRow, 0, table.Len())
	for i := range table.Rows {
		key, err := readKey(table, i)
		if err != nil {
			return nil, err
		}
		row := statistic.HistoricalRow{Year: key.Year, Month: key.Month}
		if err := readFields(table, i, &row, historyFields); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	statistic.SortHistory(out)
	return out, nil
}

// EstimatesTable renders forecast rows.
func EstimatesTable(rows []statistic.EstimateRow) artifact.Table {
	table := artifact.NewTable(fieldNames([]string{colYear, colMonth, colType}, estimateFields)...)
	for i := range rows {
		cells := []any{rows[i].Year, rows[i].Month.Label(), string(rows[i].Type)}
		table.Rows = append(table.Rows, appendFields(cells, &rows[i], estimateFields))
	}
	return table
}

// EstimatesFromTable parses a forecast table.
func EstimatesFromTable(table artifact.Table) ([]statistic.EstimateRow, error) {
	out := make([]statistic.EstimateRow, 0, table.Len())
	for i := range table.Rows {
		key, err := readKey(table, i)
		if err != nil {
			return nil, err
		}
		typ, err := readType(table, i)
		if err != nil {
			return nil, err
		}
		row := statistic.EstimateRow{Year: key.Year, Month: key.Month, Type: typ}
		if err := readFields(table, i, &row, estimateFields); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	statistic.SortEstimates(out)
	return out, nil
}

// AccuracyTable renders the accuracy ledger.
func AccuracyTable(rows []statistic.AccuracyRow) artifact.Table {
	table := artifact.NewTable(fieldNames([]string{colYear, colMonth, colType}, accuracyFields)...)
	for i := range rows {
		cells := []any{rows[i].Year, rows[i].Month.Label(), string(rows[i].Type)}
		table.Rows = append(table.Rows, appendFields(cells, &rows[i], accuracyFields))
	}
	return table
}

// AccuracyFromTable parses an accuracy ledger table.
func AccuracyFromTable(table artifact.Table) ([]statistic.AccuracyRow, error) {
	out := make([]statistic.AccuracyRow, 0, table.Len())
	for i := range table.Rows {
		key, err := readKey(table, i)
		if err != nil {
			return nil, err
		}
		typ, err := readType(table, i)
		if err != nil {
			return nil, err
		}
		row := statistic.AccuracyRow{Year: key.Year, Month: key.Month, Type: typ}
		if err := readFields(table, i, &row, accuracyFields); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	statistic.SortAccuracy(out)
	return out, nil
}

// CanonicalTable decodes a stored artifact and renders it again, so legacy labels, decimal
// commas and row order come out in the current vocabulary. Other names pass through.
func CanonicalTable(name string, table artifact.Table) (artifact.Table, error) {
	switch name {
	case artifact.NameSamples:
		samples, err := SamplesFromTable(table, time.UTC)
		if err != nil {
			return artifact.Table{}, err
		}
		return SamplesTable(samples), nil
	case artifact.NameHistory:
		rows, err := HistoryFromTable(table)
		if err != nil {
			return artifact.Table{}, err
		}
		return HistoryTable(rows), nil
	case artifact.NameEstimates:
		rows, err := EstimatesFromTable(table)
		if err != nil {
			return artifact.Table{}, err
		}
		return EstimatesTable(rows), nil
	case artifact.NameAccuracy:
		rows, err := AccuracyFromTable(table)
		if err != nil {
			return artifact.Table{}, err
		}
		return AccuracyTable(rows), nil
	default:
		return table, nil
	}
}
