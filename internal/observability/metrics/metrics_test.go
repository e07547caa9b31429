package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRun(ResultSuccess, 2*time.Second)
	m.ObserveStage("normalize", time.Second)
	m.AddSamples("tabular", 12)
	m.AddDropped("timestamp", 3)
	m.SetSampling(15, true)
	bias := 12.5
	m.SetBias(&bias)
	m.SetLedgerRows(7)
	m.IncArtifactWrite("monthly_history", nil)
	m.IncArtifactWrite("monthly_history", errors.New("disk"))

	path := filepath.Join(t.TempDir(), "out", "chiller.prom")
	if err := WriteTextfile(reg, path); err != nil {
		t.Fatalf("write textfile: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	text := string(raw)
	for _, want := range []string{
		`chiller_pipeline_runs_total{result="success"} 1`,
		`chiller_samples_ingested_total{layout="tabular"} 12`,
		`chiller_dropped_rows_total{reason="timestamp"} 3`,
		`chiller_sampling_step_minutes 15`,
		`chiller_sampling_irregular 1`,
		`chiller_global_bias_percent 12.5`,
		`chiller_accuracy_ledger_rows 7`,
		`chiller_artifact_writes_total{name="monthly_history",result="error"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in textfile:\n%s", want, text)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRun(ResultError, time.Second)
	m.SetBias(nil)
	m.IncAlert("bias", nil)
	if err := WriteTextfile(nil, ""); err != nil {
		t.Fatalf("empty path must be a no-op: %v", err)
	}
}
