package normalize

import (
	"time"

	telemetry "chiller-forecast/internal/telemetry/domain"
)

const (
	timestampScanColumns = 5
	timestampScanRatio   = 0.5
)

// TimestampSource names how timestamps were derived for a tabular export.
type TimestampSource string

const (
	TimestampDateAndTime TimestampSource = "date+time"
	TimestampCombined    TimestampSource = "datetime"
	TimestampDateOnly    TimestampSource = "date"
	TimestampScanned     TimestampSource = "scanned"
	TimestampFirstColumn TimestampSource = "first-column"
)

// Columns is the resolved column mapping of a tabular export. Unresolved indexes are -1.
type Columns struct {
	Date            int
	Time            int
	DateTime        int
	ElectricPower   int
	ElectricMatch   Match
	CoolingPower    int
	COP             int
	TimestampSource TimestampSource
	// TimestampColumn is the single column used for Combined, DateOnly, Scanned and FirstColumn sources.
	TimestampColumn int
}

func unresolvedColumns() Columns {
	return Columns{Date: -1, Time: -1, DateTime: -1, ElectricPower: -1, CoolingPower: -1, COP: -1, TimestampColumn: -1}
}

// ResolveColumns maps the headers of raw to canonical fields.
func (t *SynonymTable) ResolveColumns(raw telemetry.RawExport, loc *time.Location) Columns {
	keys := CompactKeys(raw.Header)
	cols := unresolvedColumns()
	if idx, ok := t.Resolve(FieldDate, keys); ok {
		cols.Date = idx
	}
	if idx, ok := t.Resolve(FieldTime, keys); ok {
		cols.Time = idx
	}
	if idx, ok := t.Resolve(FieldDateTime, keys); ok {
		cols.DateTime = idx
	}
	if idx, match := t.ResolveMatch(FieldElectricPower, keys); match != MatchNone {
		cols.ElectricPower = idx
		cols.ElectricMatch = match
	}
	if idx, ok := t.Resolve(FieldCoolingPower, keys); ok {
		cols.CoolingPower = idx
	}
	if idx, ok := t.Resolve(FieldCOP, keys); ok {
		cols.COP = idx
	}

	switch {
	case cols.Date >= 0 && cols.Time >= 0 && cols.Date != cols.Time:
		cols.TimestampSource = TimestampDateAndTime
	case cols.DateTime >= 0:
		cols.TimestampSource = TimestampCombined
		cols.TimestampColumn = cols.DateTime
	case cols.Date >= 0:
		cols.TimestampSource = TimestampDateOnly
		cols.TimestampColumn = cols.Date
	default:
		cols.TimestampSource = TimestampFirstColumn
		cols.TimestampColumn = 0
		width := raw.Width()
		if width > timestampScanColumns {
			width = timestampScanColumns
		}
		for col := 0; col < width; col++ {
			if parseRatio(raw.Column(col), loc) >= timestampScanRatio {
				cols.TimestampSource = TimestampScanned
				cols.TimestampColumn = col
				break
			}
		}
	}
	return cols
}

// anyPowerOrCOP reports whether at least one of the power and COP fields resolved.
func (c Columns) anyPowerOrCOP() bool {
	return c.ElectricPower >= 0 || c.CoolingPower >= 0 || c.COP >= 0
}

func (c Columns) timestamp(raw telemetry.RawExport, row int, loc *time.Location) (time.Time, bool) {
	if c.TimestampSource == TimestampDateAndTime {
		return ParseDateTime(raw.Cell(row, c.Date), raw.Cell(row, c.Time), loc)
	}
	return ParseTimestamp(raw.Cell(row, c.TimestampColumn), loc)
}

func parseRatio(values []string, loc *time.Location) float64 {
	if len(values) == 0 {
		return 0
	}
	parsed := 0
	for _, v := range values {
		if _, ok := ParseTimestamp(v, loc); ok {
			parsed++
		}
	}
	return float64(parsed) / float64(len(values))
}

// parseTabular decodes rows using cols. It returns the samples and the number of dropped rows.
func parseTabular(raw telemetry.RawExport, cols Columns, loc *time.Location) ([]telemetry.Sample, int) {
	samples := make([]telemetry.Sample, 0, len(raw.Rows))
	dropped := 0
	for row := range raw.Rows {
		ts, ok := cols.timestamp(raw, row, loc)
		if !ok {
			dropped++
			continue
		}
		power, ok := ParseNumber(raw.Cell(row, cols.ElectricPower))
		if !ok {
			dropped++
			continue
		}
		samples = append(samples, telemetry.Sample{
			Timestamp:       ts,
			ElectricPowerKW: power,
			CoolingPowerKW:  optionalNumber(raw.Cell(row, cols.CoolingPower)),
			COP:             optionalNumber(raw.Cell(row, cols.COP)),
		})
	}
	return samples, dropped
}

func optionalNumber(value string) *float64 {
	f, ok := ParseNumber(value)
	if !ok {
		return nil
	}
	return &f
}
