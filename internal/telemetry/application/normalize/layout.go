package normalize

import (
	"strings"

	telemetry "chiller-forecast/internal/telemetry/domain"
)

// Layout is the raw shape of an export, decided once per dataset.
type Layout int

const (
	// LayoutTabular has one header per field.
	LayoutTabular Layout = iota
	// LayoutFlattened has its fields collapsed into one text column or an oversized header.
	LayoutFlattened
)

func (l Layout) String() string {
	switch l {
	case LayoutTabular:
		return "tabular"
	case LayoutFlattened:
		return "flattened"
	default:
		return "unknown"
	}
}

// DetectLayout classifies raw. An export with a single column, or with at most
// MaxColumns columns whose first header carries the date/time/power signature or is
// longer than MaxHeaderKey, is flattened.
func (t *SynonymTable) DetectLayout(raw telemetry.RawExport) Layout {
	width := raw.Width()
	if width <= 1 {
		return LayoutFlattened
	}
	rules := t.Flattened
	if width > rules.MaxColumns || len(raw.Header) == 0 {
		return LayoutTabular
	}
	first := CompactKey(raw.Header[0])
	if containsAll(first, rules.Signature) || len(first) > rules.MaxHeaderKey {
		return LayoutFlattened
	}
	return LayoutTabular
}

// looksFlattened reports a tabular header that still carries a flattened export:
// some header mentions both date and time while no canonical power or COP header exists
// and electric power was only guessed by the substring heuristics.
func (t *SynonymTable) looksFlattened(keys []string, cols Columns) bool {
	if cols.ElectricMatch.Declared() {
		return false
	}
	rules := t.Flattened
	combined := false
	for _, key := range keys {
		if containsAll(key, rules.AmbiguousHeader) {
			combined = true
			break
		}
	}
	if !combined {
		return false
	}
	for _, key := range keys {
		if containsAny(key, rules.CanonicalPowerHeaders) || (rules.CanonicalCOPHeader != "" && key == rules.CanonicalCOPHeader) {
			return false
		}
	}
	return true
}

// isHeaderLine reports a joined row that repeats the flattened header.
func (t *SynonymTable) isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	for _, token := range t.Flattened.Signature {
		if !strings.Contains(lower, token) {
			return false
		}
	}
	return len(t.Flattened.Signature) > 0
}
