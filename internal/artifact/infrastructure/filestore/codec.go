package filestore

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	artifact "chiller-forecast/internal/artifact/domain"
)

// Kind is the on-disk encoding of a table.
type Kind int

const (
	KindCSV Kind = iota
	KindXLSX
)

// Format describes how one artifact is encoded.
type Format struct {
	Kind Kind
	// Decimal is the decimal separator of CSV numbers, '.' or ','.
	Decimal rune
	// Sheet is the worksheet name of XLSX artifacts.
	Sheet string
}

// DefaultFormat is a semicolon separated CSV with decimal points.
var DefaultFormat = Format{Kind: KindCSV, Decimal: '.'}

// Ext returns the file extension of the format.
func (f Format) Ext() string {
	if f.Kind == KindXLSX {
		return ".xlsx"
	}
	return ".csv"
}

func (f Format) encode(table artifact.Table) ([]byte, error) {
	if f.Kind == KindXLSX {
		return encodeXLSX(table, f.sheet())
	}
	return encodeCSV(table, f.Decimal)
}

func (f Format) decode(data []byte) (artifact.Table, error) {
	if f.Kind == KindXLSX {
		return decodeXLSX(data, f.sheet())
	}
	return decodeCSV(data, f.Decimal)
}

func (f Format) sheet() string {
	if f.Sheet == "" {
		return "Sheet1"
	}
	return f.Sheet
}

func formatCell(v any, decimal rune) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		if decimal == ',' {
			s = strings.Replace(s, ".", ",", 1)
		}
		return s
	case int:
		return strconv.Itoa(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func encodeCSV(table artifact.Table, decimal rune) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	if err := w.Write(table.Columns); err != nil {
		return nil, err
	}
	for _, row := range table.Rows {
		record := make([]string, len(row))
		for i, cell := range row {
			record[i] = formatCell(cell, decimal)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCSV(data []byte, decimal rune) (artifact.Table, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})))
	r.Comma = ';'
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return artifact.Table{}, err
	}
	if len(records) == 0 {
		return artifact.Table{}, nil
	}
	table := artifact.NewTable(records[0]...)
	for _, rec := range records[1:] {
		row := make([]any, len(table.Columns))
		for i := range row {
			if i < len(rec) {
				row[i] = parseCell(rec[i], decimal)
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// parseCell turns numeric text into float64 and empty text into nil.
func parseCell(s string, decimal rune) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	candidate := s
	if decimal == ',' {
		if strings.Contains(s, ".") {
			return s
		}
		candidate = strings.Replace(s, ",", ".", 1)
	}
	if f, err := strconv.ParseFloat(candidate, 64); err == nil {
		return f
	}
	return s
}

func encodeXLSX(table artifact.Table, sheet string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	for col, name := range table.Columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return nil, err
		}
	}
	for r, row := range table.Rows {
		for col, v := range row {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeXLSX(data []byte, sheet string) (artifact.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return artifact.Table{}, err
	}
	defer f.Close()
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return artifact.Table{}, nil
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return artifact.Table{}, err
	}
	if len(rows) == 0 {
		return artifact.Table{}, nil
	}
	table := artifact.NewTable(rows[0]...)
	for _, rec := range rows[1:] {
		row := make([]any, len(table.Columns))
		for i := range row {
			if i < len(rec) {
				row[i] = parseCell(rec[i], '.')
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
