package normalize

import (
	"strings"
	"time"

	telemetry "chiller-forecast/internal/telemetry/domain"
)

// flattenedLines joins every row into one line and removes repeated header lines.
func (t *SynonymTable) flattenedLines(raw telemetry.RawExport) []string {
	joined := raw.JoinedRows()
	out := make([]string, 0, len(joined))
	for _, line := range joined {
		if line == "" || t.isHeaderLine(line) {
			continue
		}
		out = append(out, line)
	}
	return out
}

// parseFlattened decodes whitespace-separated rows. When at least one row carries every
// positional field the full decode is used and the wide table is returned; otherwise
// the last three tokens of each row are read as cooling power, electric power and COP.
func (t *SynonymTable) parseFlattened(raw telemetry.RawExport, loc *time.Location) ([]telemetry.Sample, *telemetry.RawExport, int) {
	lines := t.flattenedLines(raw)
	tokens := make([][]string, len(lines))
	full := false
	for i, line := range lines {
		tokens[i] = strings.Fields(line)
		if len(tokens[i]) >= len(t.Flattened.PositionalFields) {
			full = true
		}
	}
	if full {
		return t.parsePositional(tokens, loc)
	}
	samples, dropped := t.parseShort(tokens, loc)
	return samples, nil, dropped
}

func (t *SynonymTable) parsePositional(tokens [][]string, loc *time.Location) ([]telemetry.Sample, *telemetry.RawExport, int) {
	fields := t.Flattened.PositionalFields
	n := len(fields)
	wide := &telemetry.RawExport{Name: "raw_separated", Header: append([]string(nil), fields...)}
	samples := make([]telemetry.Sample, 0, len(tokens))
	dropped := 0
	for _, row := range tokens {
		if len(row) < n {
			dropped++
			continue
		}
		cells := append([]string(nil), row[:n]...)
		wide.Rows = append(wide.Rows, cells)
		ts, ok := ParseDateTime(cells[0], cells[1], loc)
		if !ok {
			dropped++
			continue
		}
		power, ok := ParseNumber(cells[n-2])
		if !ok {
			dropped++
			continue
		}
		samples = append(samples, telemetry.Sample{
			Timestamp:       ts,
			ElectricPowerKW: power,
			CoolingPowerKW:  optionalNumber(cells[n-3]),
			COP:             optionalNumber(cells[n-1]),
		})
	}
	return samples, wide, dropped
}

func (t *SynonymTable) parseShort(tokens [][]string, loc *time.Location) ([]telemetry.Sample, int) {
	samples := make([]telemetry.Sample, 0, len(tokens))
	dropped := 0
	for _, row := range tokens {
		n := len(row)
		if n < t.Flattened.MinShortTokens {
			dropped++
			continue
		}
		ts, ok := ParseDateTime(row[0], row[1], loc)
		if !ok {
			dropped++
			continue
		}
		power, ok := ParseNumber(row[n-2])
		if !ok {
			dropped++
			continue
		}
		samples = append(samples, telemetry.Sample{
			Timestamp:       ts,
			ElectricPowerKW: power,
			CoolingPowerKW:  optionalNumber(row[n-3]),
			COP:             optionalNumber(row[n-1]),
		})
	}
	return samples, dropped
}
