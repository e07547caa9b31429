package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	analytics "chiller-forecast/internal/analytics/application"
	"chiller-forecast/internal/analytics/domain/statistic"
	artifact "chiller-forecast/internal/artifact/domain"
	"chiller-forecast/internal/enrichment"
	"chiller-forecast/internal/fetch"
	"chiller-forecast/internal/observability/metrics"
	"chiller-forecast/internal/pipeline/notify"
	"chiller-forecast/internal/report"
	"chiller-forecast/internal/telemetry/application/normalize"
	telemetry "chiller-forecast/internal/telemetry/domain"
	"chiller-forecast/internal/telemetry/infrastructure/spreadsheet"
)

// ErrRunInProgress is returned when a run is requested while another one is executing.
var ErrRunInProgress = errors.New("pipeline: run already in progress")

// Sources lists the input locations of a run. Only Chiller is required.
type Sources struct {
	Chiller     []string
	Temperature []string
	Prices      string
	Emission    string
}

// RunResult summarizes a finished run.
type RunResult struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Samples    int
	Dropped    int
	Step       normalize.StepEstimate
	Skipped    []string
	History    []statistic.HistoricalRow
	Estimates  []statistic.EstimateRow
	Ledger     []statistic.AccuracyRow
	Bias       analytics.Bias
	Conflicts  []analytics.Conflict
}

// Runner executes the forecast pipeline: normalize, aggregate, merge history, estimate,
// validate, reload bias, estimate again and persist every artifact.
type Runner struct {
	fetcher      fetch.Fetcher
	store        artifact.Repository
	sources      Sources
	normalizer   *normalize.Normalizer
	estimator    *analytics.Estimator
	clock        statistic.Clock
	loc          *time.Location
	threshold    float64
	dataset      string
	biasAlertPct float64
	reportURL    string
	notifier     notify.Notifier
	metrics      *metrics.Metrics
	logger       *log.Logger

	running sync.Mutex
	mu      sync.RWMutex
	last    *RunResult
}

// Option configures a Runner.
type Option func(*Runner)

// WithNormalizer overrides the default normalizer.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(r *Runner) {
		if n != nil {
			r.normalizer = n
		}
	}
}

// WithClock sets the clock that defines "now" for estimates.
func WithClock(clock statistic.Clock) Option {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithLocation sets the time zone of enrichment timestamps.
func WithLocation(loc *time.Location) Option {
	return func(r *Runner) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithOnThreshold sets the power above which the chiller counts as running.
func WithOnThreshold(kw float64) Option {
	return func(r *Runner) {
		r.threshold = kw
	}
}

// WithDataset names the dataset in logs and alerts.
func WithDataset(name string) Option {
	return func(r *Runner) {
		r.dataset = name
	}
}

// WithBiasAlert notifies when |global bias| reaches pct; 0 disables bias alerts.
func WithBiasAlert(notifier notify.Notifier, pct float64, reportURL string) Option {
	return func(r *Runner) {
		r.notifier = notifier
		r.biasAlertPct = pct
		r.reportURL = reportURL
	}
}

// WithMetrics records run metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithLogger enables event logging.
func WithLogger(logger *log.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner constructs a Runner.
func NewRunner(fetcher fetch.Fetcher, store artifact.Repository, sources Sources, opts ...Option) (*Runner, error) {
	if fetcher == nil || store == nil {
		return nil, errors.New("pipeline runner: fetcher and store required")
	}
	if len(sources.Chiller) == 0 {
		return nil, errors.New("pipeline runner: no chiller source")
	}
	r := &Runner{
		fetcher:   fetcher,
		store:     store,
		sources:   sources,
		clock:     statistic.SystemClock{},
		loc:       time.UTC,
		threshold: analytics.DefaultOnThresholdKW,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.normalizer == nil {
		r.normalizer = normalize.New(normalize.WithLocation(r.loc), normalize.WithLogger(r.logger))
	}
	r.estimator = analytics.NewEstimator(r.clock)
	return r, nil
}

// LastRun returns the last successful run, or nil.
func (r *Runner) LastRun() *RunResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Run executes the pipeline once. Overlapping calls fail with ErrRunInProgress.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	if r == nil {
		return nil, fmt.Errorf("pipeline runner: nil")
	}
	if !r.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.running.Unlock()

	wallStart := time.Now()
	started := r.clock.Now()
	result := &RunResult{
		RunID:     "run-" + started.Format("20060102T150405"),
		StartedAt: started,
	}
	r.logf("event=pipeline_run_start run_id=%s dataset=%s", result.RunID, r.dataset)

	err := r.run(ctx, result)
	result.FinishedAt = r.clock.Now()
	duration := time.Since(wallStart)
	if err != nil {
		r.metrics.ObserveRun(metrics.ResultError, duration)
		r.logf("event=pipeline_run_failed run_id=%s err=%v", result.RunID, err)
		r.alert(ctx, notify.AlertMessage{
			Kind:    notify.KindRunFailed,
			Dataset: r.dataset,
			RunID:   result.RunID,
			Error:   err.Error(),
		})
		return nil, err
	}
	r.metrics.ObserveRun(metrics.ResultSuccess, duration)
	r.logf("event=pipeline_run_success run_id=%s samples=%d dropped=%d history=%d estimates=%d ledger=%d",
		result.RunID, result.Samples, result.Dropped, len(result.History), len(result.Estimates), len(result.Ledger))

	r.mu.Lock()
	r.last = result
	r.mu.Unlock()

	r.checkBias(ctx, result)
	return result, nil
}

func (r *Runner) run(ctx context.Context, result *RunResult) error {
	var (
		samples []telemetry.Sample
		wide    *telemetry.RawExport
	)
	if err := r.stage("normalize", func() error {
		var err error
		samples, wide, err = r.loadSamples(ctx, result)
		return err
	}); err != nil {
		return err
	}

	var enrich analytics.Enrichment
	if err := r.stage("enrich", func() error {
		var err error
		enrich, err = r.loadEnrichment(ctx, result)
		return err
	}); err != nil {
		return err
	}

	var history []statistic.HistoricalRow
	if err := r.stage("history", func() error {
		facts := analytics.Aggregate(samples, r.threshold)
		averages := analytics.MonthlyAverages(samples, r.threshold)
		current := analytics.BuildHistory(facts, averages, enrich)
		previous, err := r.readHistory(ctx)
		if err != nil {
			return err
		}
		history, result.Conflicts = analytics.MergeHistory(previous, current)
		for _, c := range result.Conflicts {
			r.logf("event=history_conflict key=%s column=%s kept=%v incoming=%v", c.Key, c.Column, c.Kept, c.Incoming)
		}
		r.metrics.AddConflicts(len(result.Conflicts))
		return nil
	}); err != nil {
		return err
	}
	result.History = history

	if err := r.stage("forecast", func() error {
		previous, err := r.readLedger(ctx)
		if err != nil {
			return err
		}
		draft := analytics.ApplyBias(r.estimator.Estimate(history), analytics.LoadBias(previous))
		result.Ledger = analytics.MergeLedger(previous, analytics.Validate(history, draft))
		result.Bias = analytics.LoadBias(result.Ledger)
		result.Estimates = analytics.ApplyBias(r.estimator.Estimate(history), result.Bias)
		r.metrics.SetBias(result.Bias.Global)
		r.metrics.SetLedgerRows(len(result.Ledger))
		if result.Bias.Global != nil {
			r.logf("event=bias_loaded global_pct=%.2f months=%d rows=%d", *result.Bias.Global, len(result.Bias.PerMonth), result.Bias.Rows)
		}
		return nil
	}); err != nil {
		return err
	}

	return r.stage("persist", func() error {
		return r.persist(ctx, result, samples, wide)
	})
}

func (r *Runner) loadSamples(ctx context.Context, result *RunResult) ([]telemetry.Sample, *telemetry.RawExport, error) {
	var (
		all   []telemetry.Sample
		wide  *telemetry.RawExport
		steps []normalize.StepEstimate
	)
	for _, location := range r.sources.Chiller {
		raw, err := r.read(ctx, location)
		if err != nil {
			return nil, nil, err
		}
		res, err := r.normalizer.Normalize(raw)
		if errors.Is(err, telemetry.ErrMissingRequiredColumn) || errors.Is(err, telemetry.ErrEmptyExport) {
			r.logf("event=dataset_skipped source=%s err=%v", location, err)
			r.metrics.AddDropped("dataset", 1)
			result.Skipped = append(result.Skipped, location)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("normalize %s: %w", location, err)
		}
		r.metrics.AddSamples(res.Layout.String(), len(res.Samples))
		r.metrics.AddDropped("row_parse", res.Dropped)
		result.Dropped += res.Dropped
		if wide == nil && res.Wide != nil {
			wide = res.Wide
		}
		all = append(all, res.Samples...)
		steps = append(steps, res.Step)
	}
	all = telemetry.SortSamples(all)
	result.Samples = len(all)
	if len(steps) > 0 {
		result.Step = steps[0]
		r.metrics.SetSampling(result.Step.Minutes, result.Step.Irregular)
	}
	return all, wide, nil
}

func (r *Runner) loadEnrichment(ctx context.Context, result *RunResult) (analytics.Enrichment, error) {
	enrich := analytics.Enrichment{
		Temperatures:    make(map[statistic.Key]float64),
		Prices:          make(map[int]float64),
		EmissionFactors: make(map[int]float64),
	}
	for _, location := range r.sources.Temperature {
		raw, err := r.read(ctx, location)
		if err != nil {
			return enrich, err
		}
		temps, err := enrichment.MonthlyTemperatures(raw, r.loc)
		if r.softEnrichmentError(location, err, result) {
			continue
		}
		if err != nil {
			return enrich, err
		}
		for k, v := range temps {
			if _, ok := enrich.Temperatures[k]; !ok {
				enrich.Temperatures[k] = v
			}
		}
	}
	if r.sources.Prices != "" {
		raw, err := r.read(ctx, r.sources.Prices)
		if err != nil {
			return enrich, err
		}
		prices, err := enrichment.YearlyPrices(raw)
		if !r.softEnrichmentError(r.sources.Prices, err, result) {
			if err != nil {
				return enrich, err
			}
			enrich.Prices = prices
		}
	}
	if r.sources.Emission != "" {
		raw, err := r.read(ctx, r.sources.Emission)
		if err != nil {
			return enrich, err
		}
		factors, err := enrichment.EmissionFactors(raw)
		if !r.softEnrichmentError(r.sources.Emission, err, result) {
			if err != nil {
				return enrich, err
			}
			enrich.EmissionFactors = factors
		}
	}
	return enrich, nil
}

func (r *Runner) softEnrichmentError(location string, err error, result *RunResult) bool {
	if errors.Is(err, enrichment.ErrMissingColumn) || errors.Is(err, enrichment.ErrNoData) {
		r.logf("event=enrichment_skipped source=%s err=%v", location, err)
		result.Skipped = append(result.Skipped, location)
		return true
	}
	return false
}

func (r *Runner) read(ctx context.Context, location string) (telemetry.RawExport, error) {
	path, err := r.fetcher.Fetch(ctx, location)
	if err != nil {
		return telemetry.RawExport{}, fmt.Errorf("fetch %s: %w", location, err)
	}
	raw, err := spreadsheet.ReadFile(path)
	if err != nil {
		return telemetry.RawExport{}, fmt.Errorf("read %s: %w", location, err)
	}
	return raw, nil
}

func (r *Runner) readHistory(ctx context.Context) ([]statistic.HistoricalRow, error) {
	table, err := r.store.Read(ctx, artifact.NameHistory)
	if errors.Is(err, artifact.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return HistoryFromTable(table)
}

func (r *Runner) readLedger(ctx context.Context) ([]statistic.AccuracyRow, error) {
	table, err := r.store.Read(ctx, artifact.NameAccuracy)
	if errors.Is(err, artifact.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read accuracy ledger: %w", err)
	}
	return AccuracyFromTable(table)
}

// persist writes every artifact. A failed write does not stop the others; the run fails
// with all write errors joined.
func (r *Runner) persist(ctx context.Context, result *RunResult, samples []telemetry.Sample, wide *telemetry.RawExport) error {
	var errs []error
	write := func(name string, table artifact.Table) {
		err := r.store.Write(ctx, name, table)
		r.metrics.IncArtifactWrite(name, err)
		if err != nil {
			errs = append(errs, err)
		}
	}
	writeBlob := func(name string, build func() ([]byte, error)) {
		data, err := build()
		if err == nil {
			err = r.store.WriteBlob(ctx, name, data)
		} else {
			err = &artifact.WriteError{Name: name, Err: err}
		}
		r.metrics.IncArtifactWrite(name, err)
		if err != nil {
			errs = append(errs, err)
		}
	}

	if len(samples) > 0 {
		write(artifact.NameSamples, SamplesTable(samples))
	}
	if wide != nil {
		write(artifact.NameRawSeparated, RawTable(*wide))
	}
	historyTable := HistoryTable(result.History)
	estimatesTable := EstimatesTable(result.Estimates)
	ledgerTable := AccuracyTable(result.Ledger)
	write(artifact.NameHistory, historyTable)
	write(artifact.NameEstimates, estimatesTable)
	write(artifact.NameAccuracy, ledgerTable)

	writeBlob(artifact.BlobForecastPDF, func() ([]byte, error) {
		return report.BuildForecastPDF(report.Forecast{
			Dataset:       r.dataset,
			GeneratedAt:   result.StartedAt,
			StepMinutes:   result.Step.Minutes,
			Irregular:     result.Step.Irregular,
			GlobalBiasPct: result.Bias.Global,
			Estimates:     result.Estimates,
			Accuracy:      result.Ledger,
		})
	})
	writeBlob(artifact.BlobForecastExcel, func() ([]byte, error) {
		return report.BuildWorkbook(
			report.Sheet{Name: "Historico", Table: historyTable},
			report.Sheet{Name: "Estimativas", Table: estimatesTable},
			report.Sheet{Name: "Acuracia", Table: ledgerTable},
		)
	})
	return errors.Join(errs...)
}

func (r *Runner) checkBias(ctx context.Context, result *RunResult) {
	global := result.Bias.Global
	if r.biasAlertPct <= 0 || global == nil || math.Abs(*global) < r.biasAlertPct {
		return
	}
	r.logf("event=bias_alert run_id=%s global_pct=%.2f threshold_pct=%.2f", result.RunID, *global, r.biasAlertPct)
	action := "forecasts run low; review recent consumption drivers"
	if *global < 0 {
		action = "forecasts run high; review recent consumption drivers"
	}
	r.alert(ctx, notify.AlertMessage{
		Kind:              notify.KindBias,
		Dataset:           r.dataset,
		RunID:             result.RunID,
		GlobalBiasPct:     global,
		ThresholdPct:      r.biasAlertPct,
		ReportURL:         r.reportURL,
		RecommendedAction: action,
		Summary: map[string]any{
			"ledger_rows":     len(result.Ledger),
			"bias_rows":       result.Bias.Rows,
			"per_month_count": len(result.Bias.PerMonth),
		},
	})
}

func (r *Runner) alert(ctx context.Context, msg notify.AlertMessage) {
	if r.notifier == nil {
		return
	}
	err := r.notifier.Notify(ctx, msg)
	r.metrics.IncAlert(msg.Kind, err)
	if err != nil {
		r.logf("event=alert_failed kind=%s run_id=%s err=%v", msg.Kind, msg.RunID, err)
	}
}

func (r *Runner) stage(name string, fn func() error) error {
	started := time.Now()
	err := fn()
	r.metrics.ObserveStage(name, time.Since(started))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (r *Runner) logf(format string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}
