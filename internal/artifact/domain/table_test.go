package artifact

import (
	"errors"
	"testing"
)

func TestTableAccessors(t *testing.T) {
	table := NewTable("year", "month", "value")
	table.Append(2024, "Março", 12.5)
	table.Append("2023", " Abril ", "1,25")
	table.Append(2022.0, nil, nil)

	if year, err := table.Int(1, 0); err != nil || year != 2023 {
		t.Fatalf("unexpected year: %v %v", year, err)
	}
	if table.String(1, 1) != "Abril" {
		t.Fatalf("expected trimmed text")
	}
	v, err := table.Float(1, 2)
	if err != nil || v == nil || *v != 1.25 {
		t.Fatalf("expected decimal comma parse, got %v %v", v, err)
	}
	if v, err := table.Float(2, 2); err != nil || v != nil {
		t.Fatalf("expected nil for empty cell")
	}
	if year, err := table.Int(2, 0); err != nil || year != 2022 {
		t.Fatalf("expected float year to convert, got %v %v", year, err)
	}
	table.Append("x", "y", "abc")
	if _, err := table.Float(3, 2); !errors.Is(err, ErrInvalidCell) {
		t.Fatalf("expected invalid cell, got %v", err)
	}
}

func TestTableRequireAndClone(t *testing.T) {
	table := NewTable("a", "b")
	table.Append(1.0, 2.0)
	if _, err := table.Require("a", "c"); !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected missing column, got %v", err)
	}
	clone := table.Clone()
	clone.Rows[0][0] = 9.0
	if table.Rows[0][0] != 1.0 {
		t.Fatalf("clone must not share rows")
	}
}
