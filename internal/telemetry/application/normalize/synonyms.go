package normalize

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed synonyms.yaml
var defaultSynonymsYAML []byte

// ErrInvalidSynonyms is returned when a synonym table is incomplete.
var ErrInvalidSynonyms = errors.New("normalize: invalid synonym table")

// Field is a canonical sample field that can be resolved from a header.
type Field string

const (
	FieldDate          Field = "date"
	FieldTime          Field = "time"
	FieldDateTime      Field = "datetime"
	FieldElectricPower Field = "electric_power"
	FieldCoolingPower  Field = "cooling_power"
	FieldCOP           Field = "cop"
)

// FieldRule lists compact header keys accepted for a field, in priority order.
type FieldRule struct {
	Exact  []string `yaml:"exact"`
	Prefix []string `yaml:"prefix"`
}

// Heuristics drive substring matching when no synonym matches.
type Heuristics struct {
	PowerUnit         string   `yaml:"power_unit"`
	EnergyUnit        string   `yaml:"energy_unit"`
	ColdTokens        []string `yaml:"cold_tokens"`
	ElectricTokens    []string `yaml:"electric_tokens"`
	COPTokens         []string `yaml:"cop_tokens"`
	CoefficientTokens []string `yaml:"coefficient_tokens"`
	PerformanceTokens []string `yaml:"performance_tokens"`
}

// FlattenedRules describe how a flattened export is recognised and decoded.
type FlattenedRules struct {
	MaxColumns            int      `yaml:"max_columns"`
	MaxHeaderKey          int      `yaml:"max_header_key"`
	Signature             []string `yaml:"signature"`
	AmbiguousHeader       []string `yaml:"ambiguous_header"`
	CanonicalPowerHeaders []string `yaml:"canonical_power_headers"`
	CanonicalCOPHeader    string   `yaml:"canonical_cop_header"`
	PositionalFields      []string `yaml:"positional_fields"`
	MinShortTokens        int      `yaml:"min_short_tokens"`
}

// SynonymTable is the declarative header vocabulary used by the tabular and flattened parsers.
type SynonymTable struct {
	Version    int                 `yaml:"version"`
	Fields     map[Field]FieldRule `yaml:"fields"`
	Heuristics Heuristics          `yaml:"heuristics"`
	Flattened  FlattenedRules      `yaml:"flattened"`
}

// DefaultSynonyms returns the embedded synonym table.
func DefaultSynonyms() *SynonymTable {
	table, err := ParseSynonyms(defaultSynonymsYAML)
	if err != nil {
		panic(fmt.Sprintf("normalize: embedded synonyms: %v", err))
	}
	return table
}

// LoadSynonyms reads a synonym table from a YAML file.
func LoadSynonyms(path string) (*SynonymTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSynonyms(data)
}

// ParseSynonyms decodes and validates a YAML synonym table.
func ParseSynonyms(data []byte) (*SynonymTable, error) {
	var table SynonymTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("normalize: decode synonyms: %w", err)
	}
	if err := table.validate(); err != nil {
		return nil, err
	}
	return &table, nil
}

func (t *SynonymTable) validate() error {
	if t.Version <= 0 {
		return fmt.Errorf("%w: version must be positive", ErrInvalidSynonyms)
	}
	for _, field := range []Field{FieldDate, FieldTime, FieldDateTime, FieldElectricPower, FieldCoolingPower, FieldCOP} {
		if _, ok := t.Fields[field]; !ok {
			return fmt.Errorf("%w: field %s not defined", ErrInvalidSynonyms, field)
		}
	}
	if t.Heuristics.PowerUnit == "" {
		return fmt.Errorf("%w: power_unit is required", ErrInvalidSynonyms)
	}
	if len(t.Flattened.PositionalFields) < 5 {
		return fmt.Errorf("%w: positional_fields too short", ErrInvalidSynonyms)
	}
	if t.Flattened.MinShortTokens < 5 {
		return fmt.Errorf("%w: min_short_tokens must be at least 5", ErrInvalidSynonyms)
	}
	return nil
}

// Match is the rule that resolved a field.
type Match int

const (
	MatchNone Match = iota
	MatchExact
	MatchPrefix
	MatchHeuristic
)

// Declared reports a match on a listed synonym rather than a substring heuristic.
func (m Match) Declared() bool { return m == MatchExact || m == MatchPrefix }

// Resolve ranks the compact header keys for field and returns the best column index.
// Exact synonyms win over prefix rules, which win over substring heuristics. Within one
// rule the earliest column wins. The function is pure.
func (t *SynonymTable) Resolve(field Field, keys []string) (int, bool) {
	idx, match := t.ResolveMatch(field, keys)
	return idx, match != MatchNone
}

// ResolveMatch is Resolve that also reports which rule matched.
func (t *SynonymTable) ResolveMatch(field Field, keys []string) (int, Match) {
	rule := t.Fields[field]
	for _, alt := range rule.Exact {
		if idx := indexOf(keys, alt); idx >= 0 {
			return idx, MatchExact
		}
	}
	for _, prefix := range rule.Prefix {
		for i, key := range keys {
			if strings.HasPrefix(key, prefix) {
				return i, MatchPrefix
			}
		}
	}
	var (
		idx int
		ok  bool
	)
	switch field {
	case FieldElectricPower:
		idx, ok = t.electricHeuristic(keys)
	case FieldCoolingPower:
		idx, ok = firstMatch(keys, func(key string) bool { return t.isPowerUnit(key) && t.isCold(key) })
	case FieldCOP:
		idx, ok = firstMatch(keys, t.isCOP)
	}
	if !ok {
		return -1, MatchNone
	}
	return idx, MatchHeuristic
}

func (t *SynonymTable) electricHeuristic(keys []string) (int, bool) {
	h := t.Heuristics
	if idx, ok := firstMatch(keys, func(key string) bool {
		return t.isPowerUnit(key) && !t.isCold(key) && containsAny(key, h.ElectricTokens)
	}); ok {
		return idx, true
	}
	return firstMatch(keys, func(key string) bool { return t.isPowerUnit(key) && !t.isCold(key) })
}

func (t *SynonymTable) isPowerUnit(key string) bool {
	h := t.Heuristics
	if !strings.Contains(key, h.PowerUnit) {
		return false
	}
	return h.EnergyUnit == "" || !strings.Contains(key, h.EnergyUnit)
}

func (t *SynonymTable) isCold(key string) bool {
	return containsAny(key, t.Heuristics.ColdTokens)
}

func (t *SynonymTable) isCOP(key string) bool {
	h := t.Heuristics
	if containsAny(key, h.COPTokens) {
		return true
	}
	return containsAny(key, h.CoefficientTokens) && containsAny(key, h.PerformanceTokens)
}

func indexOf(keys []string, want string) int {
	for i, key := range keys {
		if key == want {
			return i
		}
	}
	return -1
}

func firstMatch(keys []string, match func(string) bool) (int, bool) {
	for i, key := range keys {
		if match(key) {
			return i, true
		}
	}
	return -1, false
}

func containsAny(key string, tokens []string) bool {
	for _, token := range tokens {
		if token != "" && strings.Contains(key, token) {
			return true
		}
	}
	return false
}

func containsAll(key string, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	for _, token := range tokens {
		if !strings.Contains(key, token) {
			return false
		}
	}
	return true
}
