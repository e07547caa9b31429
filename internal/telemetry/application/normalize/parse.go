package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Excel serial day numbers accepted as timestamps (1954-10-03 .. 2119-01-10).
const (
	minExcelSerial = 20000
	maxExcelSerial = 80000
)

// Day-first layouts, most specific first. Single-digit day, month and hour are accepted.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
	"2-1-2006",
	"2.1.2006 15:04:05",
	"2.1.2006 15:04",
	"2.1.2006",
	"2/1/06 15:04:05",
	"2/1/06 15:04",
	"2/1/06",
	time.RFC3339,
}

var clockLayouts = []string{"15:04:05", "15:04"}

// ParseNumber parses a decimal accepting comma or point separators.
func ParseNumber(value string) (float64, bool) {
	s := strings.TrimSpace(value)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, " ", "")
	comma := strings.LastIndex(s, ",")
	point := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && point >= 0 && comma > point:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0 && point >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseTimestamp parses a day-first date/time string or an Excel serial date in loc.
func ParseTimestamp(value string, loc *time.Location) (time.Time, bool) {
	s := strings.Join(strings.Fields(value), " ")
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	if serial, ok := parseSerial(s); ok {
		return serialToTime(serial, loc)
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ParseDateTime combines separate date and time cells.
func ParseDateTime(date, clock string, loc *time.Location) (time.Time, bool) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if clock == "" {
		return ParseTimestamp(date, loc)
	}
	if loc == nil {
		loc = time.UTC
	}
	day, ok := ParseTimestamp(date, loc)
	if !ok {
		return ParseTimestamp(date+" "+clock, loc)
	}
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	if fraction, err := strconv.ParseFloat(clock, 64); err == nil && fraction >= 0 && fraction < 1 {
		return day.Add(time.Duration(math.Round(fraction*86400)) * time.Second), true
	}
	for _, layout := range clockLayouts {
		if c, err := time.Parse(layout, clock); err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), c.Second(), 0, loc), true
		}
	}
	if ts, ok := ParseTimestamp(clock, loc); ok {
		return time.Date(day.Year(), day.Month(), day.Day(), ts.Hour(), ts.Minute(), ts.Second(), 0, loc), true
	}
	return time.Time{}, false
}

func parseSerial(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < minExcelSerial || f > maxExcelSerial {
		return 0, false
	}
	return f, true
}

func serialToTime(serial float64, loc *time.Location) (time.Time, bool) {
	ts, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	ts = ts.Round(time.Second)
	return time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), 0, loc), true
}
