package artifact

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Table is a named dataset as persisted by a Store. Cells are nil, float64, int or string.
type Table struct {
	Columns []string
	Rows    [][]any
}

// NewTable returns an empty table with the given columns.
func NewTable(columns ...string) Table {
	return Table{Columns: append([]string(nil), columns...)}
}

// Append adds a row; it must have one cell per column.
func (t *Table) Append(cells ...any) {
	t.Rows = append(t.Rows, cells)
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Clone returns a deep copy of the row slices.
func (t Table) Clone() Table {
	out := Table{Columns: append([]string(nil), t.Columns...), Rows: make([][]any, len(t.Rows))}
	for i, row := range t.Rows {
		out.Rows[i] = append([]any(nil), row...)
	}
	return out
}

// Index returns the position of column, or -1.
func (t Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Require returns the positions of columns or an error naming the first missing one.
func (t Table) Require(columns ...string) (map[string]int, error) {
	out := make(map[string]int, len(columns))
	for _, c := range columns {
		idx := t.Index(c)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
		out[c] = idx
	}
	return out, nil
}

func (t Table) cell(row, col int) any {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return nil
	}
	return t.Rows[row][col]
}

// String returns the cell as text; nil becomes "".
func (t Table) String(row, col int) string {
	switch v := t.cell(row, col).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Float returns the cell as a number. Empty cells are nil; text accepts a decimal comma.
func (t Table) Float(row, col int) (*float64, error) {
	switch v := t.cell(row, col).(type) {
	case nil:
		return nil, nil
	case float64:
		if math.IsNaN(v) {
			return nil, nil
		}
		return &v, nil
	case int:
		f := float64(v)
		return &f, nil
	}
	s := t.String(row, col)
	if s == "" || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: row %d column %s: %q", ErrInvalidCell, row, t.Columns[col], s)
	}
	return &f, nil
}

// Int returns the cell as an integer.
func (t Table) Int(row, col int) (int, error) {
	f, err := t.Float(row, col)
	if err != nil {
		return 0, err
	}
	if f == nil || *f != math.Trunc(*f) {
		return 0, fmt.Errorf("%w: row %d column %s: not an integer", ErrInvalidCell, row, t.Columns[col])
	}
	return int(*f), nil
}

// Optional returns v as a cell: nil for a nil pointer.
func Optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
