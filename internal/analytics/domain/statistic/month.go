package statistic

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Month is a calendar month in canonical order (1 = Janeiro ... 12 = Dezembro).
type Month int

// monthLabels is the canonical month vocabulary. All tables sort by this order.
var monthLabels = [12]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

var monthAliases = map[string]Month{
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
}

// Months returns the twelve months in canonical order.
func Months() []Month {
	out := make([]Month, 12)
	for i := range out {
		out[i] = Month(i + 1)
	}
	return out
}

// MonthOf returns the canonical month of t.
func MonthOf(t time.Time) Month { return Month(t.Month()) }

// IsValid reports whether m is within 1..12.
func (m Month) IsValid() bool { return m >= 1 && m <= 12 }

// Label returns the canonical label, or "" for an invalid month.
func (m Month) Label() string {
	if !m.IsValid() {
		return ""
	}
	return monthLabels[m-1]
}

// String implements fmt.Stringer.
func (m Month) String() string { return m.Label() }

// Index returns the zero-based canonical position.
func (m Month) Index() int { return int(m) - 1 }

// DaysIn returns the number of days of m in year.
func (m Month) DaysIn(year int) int {
	return time.Date(year, time.Month(m)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ParseMonth resolves a month label. Accepted forms are the canonical labels in any case,
// with or without accents, English month names and the numbers 1..12.
func ParseMonth(value string) (Month, bool) {
	key := foldLabel(value)
	if key == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(key); err == nil {
		m := Month(n)
		return m, m.IsValid()
	}
	for i, label := range monthLabels {
		if foldLabel(label) == key {
			return Month(i + 1), true
		}
	}
	if m, ok := monthAliases[key]; ok {
		return m, true
	}
	return 0, false
}

func foldLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripper, value)
	if err != nil {
		stripped = value
	}
	if f, err := strconv.ParseFloat(stripped, 64); err == nil && f == float64(int(f)) {
		return strconv.Itoa(int(f))
	}
	return strings.ToLower(stripped)
}

// Key identifies a (year, month) cell of a monthly table.
type Key struct {
	Year  int
	Month Month
}

// KeyOf returns the key of t.
func KeyOf(t time.Time) Key { return Key{Year: t.Year(), Month: MonthOf(t)} }

// Less orders keys by year then canonical month.
func (k Key) Less(other Key) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

// String renders the key as "2024-Março".
func (k Key) String() string { return strconv.Itoa(k.Year) + "-" + k.Month.Label() }
