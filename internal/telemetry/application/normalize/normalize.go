package normalize

import (
	"log"
	"time"

	telemetry "chiller-forecast/internal/telemetry/domain"
)

// Result is the outcome of normalizing one export.
type Result struct {
	Layout  Layout
	Samples []telemetry.Sample
	Step    StepEstimate
	// Columns is set for tabular exports that were not re-read as flattened.
	Columns *Columns
	// Wide holds every positional field when a flattened export decoded fully.
	Wide *telemetry.RawExport
	// Dropped counts rows whose timestamp or electric power could not be parsed.
	Dropped int
	// Fallback is set when a tabular export was re-read as flattened.
	Fallback bool
}

// Normalizer turns raw exports into ordered samples.
type Normalizer struct {
	table  *SynonymTable
	loc    *time.Location
	logger *log.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithSynonyms overrides the embedded synonym table.
func WithSynonyms(table *SynonymTable) Option {
	return func(n *Normalizer) {
		if table != nil {
			n.table = table
		}
	}
}

// WithLocation sets the time zone of naive timestamps.
func WithLocation(loc *time.Location) Option {
	return func(n *Normalizer) {
		if loc != nil {
			n.loc = loc
		}
	}
}

// WithLogger enables event logging.
func WithLogger(logger *log.Logger) Option {
	return func(n *Normalizer) {
		n.logger = logger
	}
}

// New constructs a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{loc: time.UTC}
	for _, opt := range opts {
		opt(n)
	}
	if n.table == nil {
		n.table = DefaultSynonyms()
	}
	return n
}

// Synonyms returns the table in use.
func (n *Normalizer) Synonyms() *SynonymTable { return n.table }

// DetectLayout classifies raw.
func (n *Normalizer) DetectLayout(raw telemetry.RawExport) Layout {
	return n.table.DetectLayout(raw)
}

// Normalize decodes raw into samples sorted by timestamp without duplicates and stamps the
// inferred step on each sample. A *telemetry.MissingColumnError is returned when no electric
// power column exists.
func (n *Normalizer) Normalize(raw telemetry.RawExport) (Result, error) {
	if len(raw.Rows) == 0 {
		return Result{}, telemetry.ErrEmptyExport
	}
	result := Result{Layout: n.table.DetectLayout(raw)}

	switch result.Layout {
	case LayoutFlattened:
		result.Samples, result.Wide, result.Dropped = n.table.parseFlattened(raw, n.loc)
	default:
		keys := CompactKeys(raw.Header)
		cols := n.table.ResolveColumns(raw, n.loc)
		if !cols.anyPowerOrCOP() || n.table.looksFlattened(keys, cols) {
			n.logf("event=normalize_fallback export=%q headers=%q", raw.Name, raw.JoinedHeader())
			result.Layout = LayoutFlattened
			result.Fallback = true
			result.Samples, result.Wide, result.Dropped = n.table.parseFlattened(raw, n.loc)
			break
		}
		if cols.ElectricPower < 0 {
			n.logf("event=normalize_missing_column export=%q field=%s", raw.Name, FieldElectricPower)
			return Result{Layout: LayoutTabular}, &telemetry.MissingColumnError{Field: string(FieldElectricPower), Headers: raw.Header}
		}
		n.logf("event=normalize_columns export=%q timestamp=%s electric=%d cooling=%d cop=%d",
			raw.Name, cols.TimestampSource, cols.ElectricPower, cols.CoolingPower, cols.COP)
		result.Columns = &cols
		result.Samples, result.Dropped = parseTabular(raw, cols, n.loc)
	}

	before := len(result.Samples)
	result.Samples = telemetry.SortSamples(result.Samples)
	duplicates := before - len(result.Samples)

	result.Step = EstimateStep(telemetry.Timestamps(result.Samples))
	stepHours := result.Step.Hours()
	for i := range result.Samples {
		result.Samples[i].StepHours = stepHours
	}
	if result.Step.Irregular {
		n.logf("event=irregular_sampling export=%q step_min=%.0f iqr_min=%.2f", raw.Name, result.Step.Minutes, result.Step.IQRMinutes)
	}
	n.logf("event=normalize_done export=%q layout=%s samples=%d dropped=%d duplicates=%d step_min=%.0f",
		raw.Name, result.Layout, len(result.Samples), result.Dropped, duplicates, result.Step.Minutes)
	return result, nil
}

func (n *Normalizer) logf(format string, args ...any) {
	if n.logger == nil {
		return
	}
	n.logger.Printf(format, args...)
}
