package telemetry

import "strings"

// RawExport is an untyped table as read from a source file. Empty cells are "".
type RawExport struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Width returns the number of columns, taking ragged rows into account.
func (r RawExport) Width() int {
	width := len(r.Header)
	for _, row := range r.Rows {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

// Cell returns the trimmed cell at (row, col), or "" when out of range.
func (r RawExport) Cell(row, col int) string {
	if row < 0 || row >= len(r.Rows) || col < 0 || col >= len(r.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(r.Rows[row][col])
}

// Column returns the trimmed values of column col.
func (r RawExport) Column(col int) []string {
	out := make([]string, len(r.Rows))
	for i := range r.Rows {
		out[i] = r.Cell(i, col)
	}
	return out
}

// JoinedRows returns each row's non-empty cells joined with a single space.
func (r RawExport) JoinedRows() []string {
	out := make([]string, 0, len(r.Rows))
	for i, row := range r.Rows {
		parts := make([]string, 0, len(row))
		for col := range row {
			if v := r.Cell(i, col); v != "" {
				parts = append(parts, v)
			}
		}
		out = append(out, strings.Join(parts, " "))
	}
	return out
}

// JoinedHeader returns the non-empty header cells joined with a single space.
func (r RawExport) JoinedHeader() string {
	parts := make([]string, 0, len(r.Header))
	for _, h := range r.Header {
		if h = strings.TrimSpace(h); h != "" {
			parts = append(parts, h)
		}
	}
	return strings.Join(parts, " ")
}
