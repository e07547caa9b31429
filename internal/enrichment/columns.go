package enrichment

import (
	"strings"

	"chiller-forecast/internal/telemetry/application/normalize"
	telemetry "chiller-forecast/internal/telemetry/domain"
)

// headerScanRows bounds the preamble searched for the real header row.
const headerScanRows = 20

// locateHeader returns raw re-based on the first row, header included, that satisfies
// isHeader. raw is returned unchanged when the header already matches or no row does.
func locateHeader(raw telemetry.RawExport, isHeader func(header []string) bool) telemetry.RawExport {
	if isHeader(raw.Header) {
		return raw
	}
	limit := len(raw.Rows)
	if limit > headerScanRows {
		limit = headerScanRows
	}
	for i := 0; i < limit; i++ {
		if isHeader(raw.Rows[i]) {
			return telemetry.RawExport{Name: raw.Name, Header: raw.Rows[i], Rows: raw.Rows[i+1:]}
		}
	}
	return raw
}

// findColumn returns the first header whose folded text satisfies match.
func findColumn(header []string, match func(folded string) bool) int {
	for i, h := range header {
		if match(normalize.FoldText(h)) {
			return i
		}
	}
	return -1
}

func exactly(want string) func(string) bool {
	return func(folded string) bool { return folded == want }
}

func containsAll(tokens ...string) func(string) bool {
	return func(folded string) bool {
		for _, token := range tokens {
			if !strings.Contains(folded, token) {
				return false
			}
		}
		return true
	}
}

func parseYear(value string) (int, bool) {
	f, ok := normalize.ParseNumber(value)
	if !ok || f != float64(int(f)) || f < 1900 || f > 2200 {
		return 0, false
	}
	return int(f), true
}
