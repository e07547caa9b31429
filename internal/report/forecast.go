package report

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jung-kurt/gofpdf"

	"chiller-forecast/internal/analytics/domain/statistic"
)

// Forecast is the content of the forecast report.
type Forecast struct {
	Dataset       string
	GeneratedAt   time.Time
	StepMinutes   float64
	Irregular     bool
	GlobalBiasPct *float64
	Estimates     []statistic.EstimateRow
	Accuracy      []statistic.AccuracyRow
}

// AccuracySummary condenses the realized rows of a ledger.
type AccuracySummary struct {
	Rows            int
	MeanAbsErrorPct *float64
	MeanErrorPct    *float64
}

// SummarizeAccuracy averages the consumption errors of realized rows.
func SummarizeAccuracy(rows []statistic.AccuracyRow) AccuracySummary {
	var (
		n           int
		sum, sumAbs float64
	)
	for _, row := range rows {
		if row.Type != statistic.EstimateReal || row.ErrConsumptionPct == nil || !statistic.IsFinite(*row.ErrConsumptionPct) {
			continue
		}
		n++
		sum += *row.ErrConsumptionPct
		sumAbs += math.Abs(*row.ErrConsumptionPct)
	}
	if n == 0 {
		return AccuracySummary{}
	}
	return AccuracySummary{
		Rows:            n,
		MeanAbsErrorPct: statistic.Float(statistic.Round2(sumAbs / float64(n))),
		MeanErrorPct:    statistic.Float(statistic.Round2(sum / float64(n))),
	}
}

type pdfColumn struct {
	title string
	width float64
	align string
	value func(statistic.EstimateRow) string
}

var estimateColumns = []pdfColumn{
	{"Ano", 16, "C", func(r statistic.EstimateRow) string { return fmt.Sprintf("%d", r.Year) }},
	{"Mês", 26, "L", func(r statistic.EstimateRow) string { return r.Month.Label() }},
	{"Tipo", 24, "L", func(r statistic.EstimateRow) string { return string(r.Type) }},
	{"Mínimo (kWh)", 30, "R", func(r statistic.EstimateRow) string { return formatValue(r.ConsumptionMin) }},
	{"Esperado (kWh)", 30, "R", func(r statistic.EstimateRow) string { return formatValue(r.ConsumptionExpected) }},
	{"Corrigido (kWh)", 30, "R", func(r statistic.EstimateRow) string { return formatValue(r.ConsumptionCorrected) }},
	{"Máximo (kWh)", 30, "R", func(r statistic.EstimateRow) string { return formatValue(r.ConsumptionMax) }},
	{"Temp. (°C)", 22, "R", func(r statistic.EstimateRow) string { return formatValue(r.TempEstimate) }},
	{"Horas", 22, "R", func(r statistic.EstimateRow) string { return formatValue(r.HoursEstimate) }},
	{"Tend. horas (%)", 28, "R", func(r statistic.EstimateRow) string { return formatValue(r.TrendHoursPct) }},
}

// BuildForecastPDF renders the forecast table and the accuracy summary.
func BuildForecastPDF(f Forecast) ([]byte, error) {
	if len(f.Estimates) == 0 {
		return nil, errors.New("report: no estimates")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 8, tr("Previsão de Consumo do Chiller"))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	if f.Dataset != "" {
		pdf.Cell(0, 6, tr(fmt.Sprintf("Conjunto: %s", f.Dataset)))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, tr(fmt.Sprintf("Gerado em: %s", f.GeneratedAt.Format(time.RFC3339))))
	pdf.Ln(5)
	sampling := fmt.Sprintf("Amostragem: %.0f min", f.StepMinutes)
	if f.Irregular {
		sampling += " (irregular)"
	}
	pdf.Cell(0, 6, tr(sampling))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Viés global aplicado: %s", formatPct(f.GlobalBiasPct))))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	for _, col := range estimateColumns {
		pdf.CellFormat(col.width, 6, tr(col.title), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, row := range f.Estimates {
		for _, col := range estimateColumns {
			pdf.CellFormat(col.width, 6, tr(col.value(row)), "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	summary := SummarizeAccuracy(f.Accuracy)
	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 6, tr("Acurácia"))
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Meses realizados avaliados: %d", summary.Rows)))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Erro médio absoluto: %s", formatPct(summary.MeanAbsErrorPct))))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Erro médio: %s", formatPct(summary.MeanErrorPct))))
	pdf.Ln(5)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func formatPct(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", *v)
}
