package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	artifact "chiller-forecast/internal/artifact/domain"
	"chiller-forecast/internal/artifact/infrastructure/memory"
	pipeline "chiller-forecast/internal/pipeline/application"
)

func seededStore(t *testing.T) *memory.ArtifactRepository {
	t.Helper()
	store := memory.NewArtifactRepository()
	table := artifact.NewTable("year", "month", "type", "consumptionExpected")
	table.Append(2023, "Dezembro", "Real", 120.5)
	table.Append(2024, "Janeiro", "Corrected", 98.25)
	table.Append(2024, "Fevereiro", "Projected", nil)
	if err := store.Write(context.Background(), artifact.NameEstimates, table); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.WriteBlob(context.Background(), artifact.BlobForecastPDF, []byte("%PDF-1.3 test")); err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	return store
}

func TestTableHandlerFilters(t *testing.T) {
	handler := NewTableHandler(seededStore(t), artifact.NameEstimates)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/estimates?year=2024&type=projected", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var rows []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 || rows[0]["month"] != "Fevereiro" || rows[0]["consumptionExpected"] != nil {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestTableHandlerErrors(t *testing.T) {
	store := seededStore(t)
	cases := []struct {
		name    string
		handler http.Handler
		method  string
		target  string
		want    int
	}{
		{"missing artifact", NewTableHandler(store, artifact.NameHistory), http.MethodGet, "/api/v1/history", http.StatusNotFound},
		{"bad year", NewTableHandler(store, artifact.NameEstimates), http.MethodGet, "/api/v1/estimates?year=abc", http.StatusBadRequest},
		{"method", NewTableHandler(store, artifact.NameEstimates), http.MethodPost, "/api/v1/estimates", http.StatusMethodNotAllowed},
		{"nil store", NewTableHandler(nil, artifact.NameEstimates), http.MethodGet, "/api/v1/estimates", http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		resp := httptest.NewRecorder()
		tc.handler.ServeHTTP(resp, httptest.NewRequest(tc.method, tc.target, nil))
		if resp.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, resp.Code)
		}
	}
}

func TestExportCSVHandler(t *testing.T) {
	handler := NewExportCSVHandler(seededStore(t), artifact.NameEstimates, "estimates.csv")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/exports/estimates.csv", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	lines := strings.Split(strings.TrimSpace(resp.Body.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(lines))
	}
	if lines[0] != "year,month,type,consumptionExpected" || lines[1] != "2023,Dezembro,Real,120.5" || lines[3] != "2024,Fevereiro,Projected," {
		t.Fatalf("unexpected csv: %q", lines)
	}
	if !strings.Contains(resp.Header().Get("Content-Disposition"), "estimates.csv") {
		t.Fatalf("missing content disposition")
	}
}

func TestBlobHandler(t *testing.T) {
	store := seededStore(t)
	resp := httptest.NewRecorder()
	NewBlobHandler(store, artifact.BlobForecastPDF, "application/pdf").ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/reports/forecast.pdf", nil))
	if resp.Code != http.StatusOK || !strings.HasPrefix(resp.Body.String(), "%PDF-") {
		t.Fatalf("unexpected pdf response %d %q", resp.Code, resp.Body.String())
	}
	if resp.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("unexpected content type %q", resp.Header().Get("Content-Type"))
	}

	resp = httptest.NewRecorder()
	NewBlobHandler(store, artifact.BlobForecastExcel, "application/octet-stream").ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/reports/forecast.xlsx", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

type stubRunner struct {
	result *pipeline.RunResult
	err    error
	last   *pipeline.RunResult
}

func (s *stubRunner) Run(ctx context.Context) (*pipeline.RunResult, error) {
	return s.result, s.err
}

func (s *stubRunner) LastRun() *pipeline.RunResult { return s.last }

func TestRunsHandler(t *testing.T) {
	bias := 12.5
	started := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	result := &pipeline.RunResult{RunID: "run-20240310T120000", StartedAt: started, FinishedAt: started, Samples: 12}
	result.Bias.Global = &bias

	handler, err := NewRunsHandler(&stubRunner{result: result})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var summary runSummary
	if err := json.Unmarshal(resp.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.RunID != result.RunID || summary.Samples != 12 || summary.GlobalBiasPct == nil || *summary.GlobalBiasPct != 12.5 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.StartedAt != "2024-03-10T12:00:00Z" {
		t.Fatalf("unexpected started_at %q", summary.StartedAt)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any run, got %d", resp.Code)
	}
}

func TestRunsHandlerConflictAndFailure(t *testing.T) {
	busy, _ := NewRunsHandler(&stubRunner{err: pipeline.ErrRunInProgress})
	resp := httptest.NewRecorder()
	busy.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}

	failing, _ := NewRunsHandler(&stubRunner{err: errors.New("persist: disk full")})
	resp = httptest.NewRecorder()
	failing.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil))
	if resp.Code != http.StatusInternalServerError || !strings.Contains(resp.Body.String(), "disk full") {
		t.Fatalf("unexpected failure response %d %q", resp.Code, resp.Body.String())
	}

	if _, err := NewRunsHandler(nil); err == nil {
		t.Fatalf("expected error for nil runner")
	}
}

func TestTableHandlersCanonicalizeLegacyRows(t *testing.T) {
	store := memory.NewArtifactRepository()
	legacy := artifact.NewTable("year", "month", "type", "consumptionExpected")
	legacy.Append("2024", "4", "Projetado", "10,5")
	if err := store.Write(context.Background(), artifact.NameEstimates, legacy); err != nil {
		t.Fatalf("seed: %v", err)
	}
	canonical := WithCanonicalizer(pipeline.CanonicalTable)

	resp := httptest.NewRecorder()
	NewTableHandler(store, artifact.NameEstimates, canonical).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/estimates?type=projected", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var rows []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 || rows[0]["type"] != "Projected" || rows[0]["month"] != "Abril" || rows[0]["consumptionExpected"] != 10.5 {
		t.Fatalf("unexpected rows: %v", rows)
	}

	resp = httptest.NewRecorder()
	NewExportCSVHandler(store, artifact.NameEstimates, "estimates.csv", canonical).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/exports/estimates.csv", nil))
	lines := strings.Split(strings.TrimSpace(resp.Body.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "year,month,type,consumptionMin,") || !strings.HasPrefix(lines[1], "2024,Abril,Projected,") {
		t.Fatalf("unexpected csv: %q", lines)
	}
}

func TestTableHandlerDecodeFailure(t *testing.T) {
	failing := WithCanonicalizer(func(string, artifact.Table) (artifact.Table, error) {
		return artifact.Table{}, errors.New("bad cell")
	})
	resp := httptest.NewRecorder()
	NewTableHandler(seededStore(t), artifact.NameEstimates, failing).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/estimates", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
}
