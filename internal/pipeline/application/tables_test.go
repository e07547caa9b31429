package application

import (
	"errors"
	"testing"
	"time"

	"chiller-forecast/internal/analytics/domain/statistic"
	artifact "chiller-forecast/internal/artifact/domain"
	telemetry "chiller-forecast/internal/telemetry/domain"
)

func TestHistoryFromTableAcceptsLegacyCells(t *testing.T) {
	table := artifact.NewTable("year", "month", "consumptionKWh", "tempAvgC", "legacyColumn")
	table.Append("2024", "marco", "1234,5", nil, "x")
	table.Append(2023.0, "3", 10.0, "21.5", nil)

	rows, err := HistoryFromTable(table)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 2 || rows[0].Year != 2023 || rows[1].Year != 2024 {
		t.Fatalf("expected rows sorted by year, got %+v", rows)
	}
	if rows[1].Month != 3 || *rows[1].ConsumptionKWh != 1234.5 || rows[1].TempAvgC != nil {
		t.Fatalf("unexpected row %+v", rows[1])
	}
	if rows[0].OperatingHours != nil {
		t.Fatalf("absent column must decode as nil")
	}
}

func TestHistoryFromTableRejectsUnknownMonth(t *testing.T) {
	table := artifact.NewTable("year", "month")
	table.Append(2024, "Smarch")
	if _, err := HistoryFromTable(table); !errors.Is(err, statistic.ErrInvalidMonth) {
		t.Fatalf("expected invalid month, got %v", err)
	}
	missing := artifact.NewTable("month")
	missing.Append("Janeiro")
	if _, err := HistoryFromTable(missing); !errors.Is(err, artifact.ErrMissingColumn) {
		t.Fatalf("expected missing column, got %v", err)
	}
}

func TestEstimatesTableUsesCanonicalLabels(t *testing.T) {
	table := EstimatesTable([]statistic.EstimateRow{
		{Year: 2024, Month: 3, Type: statistic.EstimateCorrected, ConsumptionExpected: statistic.Float(155)},
	})
	if table.Columns[3] != "consumptionMin" || len(table.Columns) != 15 {
		t.Fatalf("unexpected columns %v", table.Columns)
	}
	if table.Rows[0][1] != "Março" || table.Rows[0][2] != "Corrected" || table.Rows[0][3] != nil {
		t.Fatalf("unexpected row %v", table.Rows[0])
	}
	legacy := artifact.NewTable("year", "month", "type", "consumptionExpected")
	legacy.Append(2024, "Abril", "Projetado", 10.0)
	rows, err := EstimatesFromTable(legacy)
	if err != nil || rows[0].Type != statistic.EstimateProjected {
		t.Fatalf("expected legacy type to parse: %+v %v", rows, err)
	}
}

func TestAccuracyTableColumns(t *testing.T) {
	table := AccuracyTable(nil)
	if len(table.Columns) != 16 || table.Columns[15] != "co2EmittedKg" {
		t.Fatalf("unexpected columns %v", table.Columns)
	}
}

func TestSamplesTable(t *testing.T) {
	ts := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	samples := []telemetry.Sample{
		{Timestamp: ts, ElectricPowerKW: 30.5, COP: statistic.Float(3.1)},
		{Timestamp: ts.Add(5 * time.Minute), ElectricPowerKW: 0},
	}
	table := SamplesTable(samples)
	if table.Rows[0][0] != "2024-01-15 08:00:00" || table.Rows[0][2] != nil {
		t.Fatalf("unexpected row %v", table.Rows[0])
	}
	decoded, err := SamplesFromTable(table, time.UTC)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded[1].Timestamp.Equal(ts.Add(5*time.Minute)) || *decoded[0].COP != 3.1 || decoded[1].COP != nil {
		t.Fatalf("unexpected samples %+v", decoded)
	}
}

func TestRawTableKeepsText(t *testing.T) {
	raw := telemetry.RawExport{Header: []string{"Data", "Hora"}, Rows: [][]string{{"15/01/2024", ""}, {"16/01/2024"}}}
	table := RawTable(raw)
	if table.Rows[0][0] != "15/01/2024" || table.Rows[0][1] != nil || table.Rows[1][1] != nil {
		t.Fatalf("unexpected table %v", table.Rows)
	}
}

func TestCanonicalTableRewritesLegacyEstimates(t *testing.T) {
	legacy := artifact.NewTable("year", "month", "type", "consumptionExpected")
	legacy.Append(2024, "Abril", "Projetado", "10,5")
	legacy.Append("2023", "12", "Real", 8.0)

	table, err := CanonicalTable(artifact.NameEstimates, legacy)
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	if len(table.Columns) != 15 || table.Len() != 2 {
		t.Fatalf("unexpected shape %v rows=%d", table.Columns, table.Len())
	}
	if table.Rows[0][0] != 2023 || table.Rows[1][1] != "Abril" || table.Rows[1][2] != "Projected" {
		t.Fatalf("unexpected rows %v", table.Rows)
	}

	raw := artifact.NewTable("whatever")
	raw.Append("x")
	same, err := CanonicalTable(artifact.NameRawSeparated, raw)
	if err != nil || same.Rows[0][0] != "x" {
		t.Fatalf("expected passthrough, got %v %v", same, err)
	}

	bad := artifact.NewTable("year", "month", "type")
	bad.Append(2024, "Smarch", "Real")
	if _, err := CanonicalTable(artifact.NameEstimates, bad); !errors.Is(err, statistic.ErrInvalidMonth) {
		t.Fatalf("expected invalid month, got %v", err)
	}
}
