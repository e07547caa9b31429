package normalize

import (
	"testing"
	"time"
)

func TestCompactKey(t *testing.T) {
	cases := map[string]string{
		"Potência Elétrica (kW)": "potenciaeletricakw",
		"  Data/Hora ":           "datahora",
		"Pot_Frig_KW":            "potfrigkw",
		"COP":                    "cop",
	}
	for in, want := range cases {
		if got := CompactKey(in); got != want {
			t.Fatalf("CompactKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12,5", 12.5, true},
		{"12.5", 12.5, true},
		{"1.234,5", 1234.5, true},
		{"1,234.5", 1234.5, true},
		{" 7 ", 7, true},
		{"", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseNumber(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Fatalf("ParseNumber(%q) = %v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseTimestampDayFirst(t *testing.T) {
	want := time.Date(2024, 1, 15, 8, 5, 0, 0, time.UTC)
	for _, in := range []string{"15/01/2024 08:05:00", "15/1/2024 8:05", "2024-01-15 08:05:00", "15-01-2024 08:05", "15.01.2024 08:05:00"} {
		got, ok := ParseTimestamp(in, time.UTC)
		if !ok || !got.Equal(want) {
			t.Fatalf("ParseTimestamp(%q) = %v,%v", in, got, ok)
		}
	}
	if _, ok := ParseTimestamp("hello", time.UTC); ok {
		t.Fatalf("expected parse failure")
	}
}

func TestParseTimestampExcelSerial(t *testing.T) {
	got, ok := ParseTimestamp("45306.5", time.UTC)
	if !ok {
		t.Fatalf("expected serial to parse")
	}
	if want := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if _, ok := ParseTimestamp("120", time.UTC); ok {
		t.Fatalf("small numbers must not be read as dates")
	}
}

func TestParseDateTimeCombinesCells(t *testing.T) {
	want := time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC)
	cases := [][2]string{
		{"15/01/2024", "06:00:00"},
		{"45306", "0.25"},
		{"2024-01-15 00:00:00", "06:00"},
	}
	for _, tc := range cases {
		got, ok := ParseDateTime(tc[0], tc[1], time.UTC)
		if !ok || !got.Equal(want) {
			t.Fatalf("ParseDateTime(%q,%q) = %v,%v", tc[0], tc[1], got, ok)
		}
	}
}
