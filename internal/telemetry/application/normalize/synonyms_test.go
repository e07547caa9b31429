package normalize

import (
	"errors"
	"testing"
)

func TestDefaultSynonymsResolvePriority(t *testing.T) {
	table := DefaultSynonyms()
	if table.Version <= 0 {
		t.Fatalf("expected versioned table")
	}
	keys := []string{"potenciaeletricakw", "poteletkw", "potfrigkw"}
	if idx, ok := table.Resolve(FieldElectricPower, keys); !ok || idx != 1 {
		t.Fatalf("expected exact synonym priority to pick index 1, got %d,%v", idx, ok)
	}
	if idx, ok := table.Resolve(FieldCoolingPower, keys); !ok || idx != 2 {
		t.Fatalf("expected cooling at 2, got %d,%v", idx, ok)
	}
	if _, ok := table.Resolve(FieldCOP, keys); ok {
		t.Fatalf("expected no COP column")
	}
}

func TestResolveHeuristicsSkipEnergyAndCold(t *testing.T) {
	table := DefaultSynonyms()
	keys := []string{"consumokwh", "potfrigorificakwt", "demandakw"}
	if idx, ok := table.Resolve(FieldElectricPower, keys); !ok || idx != 2 {
		t.Fatalf("expected demand column, got %d,%v", idx, ok)
	}
	if idx, ok := table.Resolve(FieldCoolingPower, keys); !ok || idx != 1 {
		t.Fatalf("expected cold column, got %d,%v", idx, ok)
	}
	if idx, ok := table.Resolve(FieldElectricPower, []string{"medidorkw"}); !ok || idx != 0 {
		t.Fatalf("expected non-cold kW fallback, got %d,%v", idx, ok)
	}
}

func TestParseSynonymsOverride(t *testing.T) {
	data := []byte(`
version: 4
fields:
  date: {exact: [dia]}
  time: {exact: [horario]}
  datetime: {exact: []}
  electric_power: {exact: [potativakw]}
  cooling_power: {exact: []}
  cop: {exact: []}
heuristics:
  power_unit: kw
flattened:
  max_columns: 2
  max_header_key: 60
  signature: [data, hora, pot]
  positional_fields: [Data, Hora, Pot_Frig_KW, Pot_Elet_KW, COP]
  min_short_tokens: 6
`)
	table, err := ParseSynonyms(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if idx, ok := table.Resolve(FieldElectricPower, []string{"dia", "potativakw"}); !ok || idx != 1 {
		t.Fatalf("expected override synonym, got %d,%v", idx, ok)
	}
}

func TestParseSynonymsRejectsIncompleteTable(t *testing.T) {
	_, err := ParseSynonyms([]byte("version: 1\nfields: {}\n"))
	if !errors.Is(err, ErrInvalidSynonyms) {
		t.Fatalf("expected invalid synonyms error, got %v", err)
	}
}
