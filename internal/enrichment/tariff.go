package enrichment

import (
	"fmt"

	"chiller-forecast/internal/telemetry/application/normalize"
	telemetry "chiller-forecast/internal/telemetry/domain"
)

// YearlyPrices reads the energy price per kWh from a table with "Ano" and "Valor" columns.
func YearlyPrices(raw telemetry.RawExport) (map[int]float64, error) {
	return yearlyValues(raw, exactly("ano"), exactly("valor"), "price")
}

// EmissionFactors reads kg CO2 per kWh from a table with "ANO" and
// "Fator Médio Anual (kgCO2/kWh)" columns.
func EmissionFactors(raw telemetry.RawExport) (map[int]float64, error) {
	return yearlyValues(raw, exactly("ano"), containsAll("fator", "kgco2"), "emission factor")
}

func yearlyValues(raw telemetry.RawExport, yearMatch, valueMatch func(string) bool, what string) (map[int]float64, error) {
	yearCol := findColumn(raw.Header, yearMatch)
	valueCol := findColumn(raw.Header, valueMatch)
	if yearCol < 0 || valueCol < 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrMissingColumn, what, raw.Name)
	}
	out := make(map[int]float64)
	for row := range raw.Rows {
		year, ok := parseYear(raw.Cell(row, yearCol))
		if !ok {
			continue
		}
		value, ok := normalize.ParseNumber(raw.Cell(row, valueCol))
		if !ok {
			continue
		}
		if _, seen := out[year]; !seen {
			out[year] = value
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, raw.Name)
	}
	return out, nil
}
