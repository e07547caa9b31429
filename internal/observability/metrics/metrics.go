package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "chiller_"

	resultSuccess = "success"
	resultError   = "error"
	resultSkipped = "skipped"
)

// Metrics bundles pipeline metrics. All methods are safe on a nil receiver.
type Metrics struct {
	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	stageDuration    *prometheus.HistogramVec
	samplesTotal     *prometheus.CounterVec
	droppedRows      *prometheus.CounterVec
	stepMinutes      prometheus.Gauge
	irregularSamples prometheus.Gauge
	globalBiasPct    prometheus.Gauge
	ledgerRows       prometheus.Gauge
	historyConflicts prometheus.Counter
	artifactWrites   *prometheus.CounterVec
	alertsTotal      *prometheus.CounterVec
}

// New constructs metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pipeline_runs_total",
				Help: "Total pipeline runs by result",
			},
			[]string{"result"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "pipeline_run_duration_seconds",
				Help:    "Pipeline run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "pipeline_stage_duration_seconds",
				Help:    "Pipeline stage duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		samplesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "samples_ingested_total",
				Help: "Total normalized samples by source layout",
			},
			[]string{"layout"},
		),
		droppedRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "dropped_rows_total",
				Help: "Total input rows dropped by reason",
			},
			[]string{"reason"},
		),
		stepMinutes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "sampling_step_minutes",
			Help: "Detected sampling step of the last run in minutes",
		}),
		irregularSamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "sampling_irregular",
			Help: "1 when the last run's sampling was irregular",
		}),
		globalBiasPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "global_bias_percent",
			Help: "Global forecast bias applied by the last run",
		}),
		ledgerRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "accuracy_ledger_rows",
			Help: "Rows in the accuracy ledger after the last run",
		}),
		historyConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "history_conflicts_total",
			Help: "Total enrichment values that disagreed with persisted history",
		}),
		artifactWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "artifact_writes_total",
				Help: "Total artifact writes by name and result",
			},
			[]string{"name", "result"},
		),
		alertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_total",
				Help: "Total alerts sent by kind and result",
			},
			[]string{"kind", "result"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.runsTotal,
			m.runDuration,
			m.stageDuration,
			m.samplesTotal,
			m.droppedRows,
			m.stepMinutes,
			m.irregularSamples,
			m.globalBiasPct,
			m.ledgerRows,
			m.historyConflicts,
			m.artifactWrites,
			m.alertsTotal,
		)
	}
	return m
}

// ObserveRun records a run's duration and result.
func (m *Metrics) ObserveRun(result string, duration time.Duration) {
	if m == nil {
		return
	}
	if result == "" {
		result = resultSuccess
	}
	m.runsTotal.WithLabelValues(result).Inc()
	m.runDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveStage records the duration of one pipeline stage.
func (m *Metrics) ObserveStage(stage string, duration time.Duration) {
	if m == nil {
		return
	}
	if stage == "" {
		stage = "unknown"
	}
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// AddSamples counts normalized samples.
func (m *Metrics) AddSamples(layout string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.samplesTotal.WithLabelValues(layout).Add(float64(count))
}

// AddDropped counts dropped input rows.
func (m *Metrics) AddDropped(reason string, count int) {
	if m == nil || count <= 0 {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.droppedRows.WithLabelValues(reason).Add(float64(count))
}

// SetSampling records the detected step.
func (m *Metrics) SetSampling(stepMinutes float64, irregular bool) {
	if m == nil {
		return
	}
	m.stepMinutes.Set(stepMinutes)
	if irregular {
		m.irregularSamples.Set(1)
	} else {
		m.irregularSamples.Set(0)
	}
}

// SetBias records the applied global bias; nil means none and is exported as 0.
func (m *Metrics) SetBias(global *float64) {
	if m == nil {
		return
	}
	if global == nil {
		m.globalBiasPct.Set(0)
		return
	}
	m.globalBiasPct.Set(*global)
}

// SetLedgerRows records the ledger size.
func (m *Metrics) SetLedgerRows(n int) {
	if m == nil {
		return
	}
	m.ledgerRows.Set(float64(n))
}

// AddConflicts counts history merge conflicts.
func (m *Metrics) AddConflicts(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.historyConflicts.Add(float64(n))
}

// IncArtifactWrite counts one artifact write.
func (m *Metrics) IncArtifactWrite(name string, err error) {
	if m == nil {
		return
	}
	m.artifactWrites.WithLabelValues(name, resultOf(err)).Inc()
}

// IncAlert counts one alert delivery.
func (m *Metrics) IncAlert(kind string, err error) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(kind, resultOf(err)).Inc()
}

func resultOf(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultSkipped = resultSkipped
)
