package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	telemetry "chiller-forecast/internal/telemetry/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// separators are tried in this order; ties go to the earlier one.
var separators = []rune{';', ',', '\t'}

// ReadFile reads the first sheet of an .xlsx file or a delimited .csv/.txt file.
func ReadFile(path string) (telemetry.RawExport, error) {
	f, err := os.Open(path)
	if err != nil {
		return telemetry.RawExport{}, err
	}
	defer f.Close()

	name := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(f, name)
	case ".csv", ".txt":
		return ReadCSV(f, name)
	default:
		return telemetry.RawExport{}, fmt.Errorf("%w: %s", telemetry.ErrUnsupportedFormat, name)
	}
}

// ReadXLSX reads the first sheet of a workbook. Cells are returned raw, so dates are Excel
// serial numbers. The first non-empty row is the header.
func ReadXLSX(r io.Reader, name string) (telemetry.RawExport, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return telemetry.RawExport{}, fmt.Errorf("spreadsheet: open %s: %w", name, err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return telemetry.RawExport{}, fmt.Errorf("spreadsheet: %s: %w", name, telemetry.ErrEmptyExport)
	}
	rows, err := book.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return telemetry.RawExport{}, fmt.Errorf("spreadsheet: read %s: %w", name, err)
	}
	return fromRecords(name, rows), nil
}

// ReadCSV reads a delimited file. The separator is sniffed from the first line and
// non UTF-8 input is decoded as ISO-8859-1.
func ReadCSV(r io.Reader, name string) (telemetry.RawExport, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return telemetry.RawExport{}, fmt.Errorf("spreadsheet: read %s: %w", name, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return telemetry.RawExport{}, fmt.Errorf("spreadsheet: decode %s: %w", name, err)
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = SniffSeparator(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil {
		var parseErr *csv.ParseError
		if !errors.As(err, &parseErr) {
			return telemetry.RawExport{}, fmt.Errorf("spreadsheet: parse %s: %w", name, err)
		}
		return telemetry.RawExport{}, fmt.Errorf("spreadsheet: parse %s line %d: %w", name, parseErr.Line, parseErr.Err)
	}
	return fromRecords(name, records), nil
}

// SniffSeparator picks the most frequent separator on the first non-empty line.
func SniffSeparator(data []byte) rune {
	line := ""
	for _, l := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(l) != "" {
			line = l
			break
		}
	}
	best, bestCount := separators[0], 0
	for _, sep := range separators {
		if n := strings.Count(line, string(sep)); n > bestCount {
			best, bestCount = sep, n
		}
	}
	return best
}

func fromRecords(name string, records [][]string) telemetry.RawExport {
	out := telemetry.RawExport{Name: name}
	start := 0
	for start < len(records) && blank(records[start]) {
		start++
	}
	if start == len(records) {
		return out
	}
	out.Header = trimAll(records[start])
	for _, rec := range records[start+1:] {
		if blank(rec) {
			continue
		}
		out.Rows = append(out.Rows, trimAll(rec))
	}
	return out
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func trimAll(record []string) []string {
	out := make([]string, len(record))
	for i, cell := range record {
		out[i] = strings.TrimSpace(cell)
	}
	return out
}
