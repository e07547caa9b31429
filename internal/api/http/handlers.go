package apihttp

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	artifact "chiller-forecast/internal/artifact/domain"
	pipeline "chiller-forecast/internal/pipeline/application"
)

const timeLayout = time.RFC3339

// Canonicalizer rewrites a stored table into its canonical form before it is served.
type Canonicalizer func(name string, table artifact.Table) (artifact.Table, error)

// TableOption configures the table handlers.
type TableOption func(*tableSource)

// WithCanonicalizer decodes stored tables through c before filtering.
func WithCanonicalizer(c Canonicalizer) TableOption {
	return func(s *tableSource) {
		s.canonical = c
	}
}

type tableSource struct {
	store     artifact.Store
	name      string
	canonical Canonicalizer
}

func newTableSource(store artifact.Store, name string, opts []TableOption) tableSource {
	src := tableSource{store: store, name: name}
	for _, opt := range opts {
		opt(&src)
	}
	return src
}

// TableHandler serves a stored table as JSON objects keyed by column.
type TableHandler struct {
	src tableSource
}

// NewTableHandler constructs a TableHandler for the named artifact.
func NewTableHandler(store artifact.Store, name string, opts ...TableOption) *TableHandler {
	return &TableHandler{src: newTableSource(store, name, opts)}
}

// ServeHTTP handles GET /api/v1/{history,estimates,accuracy}. Optional filters: year, type.
func (h *TableHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.src.store == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	table, ok := h.src.readFiltered(w, r)
	if !ok {
		return
	}

	rows := make([]map[string]any, 0, table.Len())
	for _, row := range table.Rows {
		obj := make(map[string]any, len(table.Columns))
		for i, column := range table.Columns {
			var cell any
			if i < len(row) {
				cell = jsonCell(row[i])
			}
			obj[column] = cell
		}
		rows = append(rows, obj)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

// ExportCSVHandler serves a stored table as a comma separated download.
type ExportCSVHandler struct {
	src      tableSource
	filename string
}

// NewExportCSVHandler constructs an ExportCSVHandler.
func NewExportCSVHandler(store artifact.Store, name, filename string, opts ...TableOption) *ExportCSVHandler {
	return &ExportCSVHandler{src: newTableSource(store, name, opts), filename: filename}
}

// ServeHTTP handles GET /api/v1/exports/estimates.csv.
func (h *ExportCSVHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.src.store == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	table, ok := h.src.readFiltered(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	if h.filename != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+h.filename+`"`)
	}
	writer := csv.NewWriter(w)
	_ = writer.Write(table.Columns)
	for _, row := range table.Rows {
		record := make([]string, len(table.Columns))
		for i := range record {
			if i < len(row) {
				record[i] = formatCell(row[i])
			}
		}
		_ = writer.Write(record)
	}
	writer.Flush()
}

// BlobHandler serves a stored binary document.
type BlobHandler struct {
	store       artifact.BlobStore
	name        string
	contentType string
}

// NewBlobHandler constructs a BlobHandler.
func NewBlobHandler(store artifact.BlobStore, name, contentType string) *BlobHandler {
	return &BlobHandler{store: store, name: name, contentType: contentType}
}

// ServeHTTP handles GET /api/v1/reports/forecast.{pdf,xlsx}.
func (h *BlobHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.store == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	data, err := h.store.ReadBlob(r.Context(), h.name)
	if errors.Is(err, artifact.ErrNotFound) {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "read report error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", h.contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+h.name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// PipelineRunner runs the forecast pipeline on demand.
type PipelineRunner interface {
	Run(ctx context.Context) (*pipeline.RunResult, error)
	LastRun() *pipeline.RunResult
}

// RunsHandler triggers pipeline runs and reports the last one.
type RunsHandler struct {
	runner PipelineRunner
}

// NewRunsHandler constructs a RunsHandler.
func NewRunsHandler(runner PipelineRunner) (*RunsHandler, error) {
	if runner == nil {
		return nil, errors.New("runs handler: nil runner")
	}
	return &RunsHandler{runner: runner}, nil
}

// ServeHTTP handles POST /api/v1/runs and GET /api/v1/runs.
func (h *RunsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		result, err := h.runner.Run(r.Context())
		if errors.Is(err, pipeline.ErrRunInProgress) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, summarize(result))
	case http.MethodGet:
		last := h.runner.LastRun()
		if last == nil {
			http.Error(w, "no run yet", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, summarize(last))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type runSummary struct {
	RunID         string   `json:"run_id"`
	StartedAt     string   `json:"started_at"`
	FinishedAt    string   `json:"finished_at"`
	Samples       int      `json:"samples"`
	Dropped       int      `json:"dropped"`
	StepMinutes   float64  `json:"step_minutes"`
	Irregular     bool     `json:"irregular"`
	Skipped       []string `json:"skipped,omitempty"`
	HistoryRows   int      `json:"history_rows"`
	EstimateRows  int      `json:"estimate_rows"`
	LedgerRows    int      `json:"ledger_rows"`
	GlobalBiasPct *float64 `json:"global_bias_pct"`
	Conflicts     int      `json:"conflicts"`
}

func summarize(result *pipeline.RunResult) runSummary {
	return runSummary{
		RunID:         result.RunID,
		StartedAt:     formatTime(result.StartedAt),
		FinishedAt:    formatTime(result.FinishedAt),
		Samples:       result.Samples,
		Dropped:       result.Dropped,
		StepMinutes:   result.Step.Minutes,
		Irregular:     result.Step.Irregular,
		Skipped:       result.Skipped,
		HistoryRows:   len(result.History),
		EstimateRows:  len(result.Estimates),
		LedgerRows:    len(result.Ledger),
		GlobalBiasPct: result.Bias.Global,
		Conflicts:     len(result.Conflicts),
	}
}

func (s tableSource) readFiltered(w http.ResponseWriter, r *http.Request) (artifact.Table, bool) {
	f, err := parseFilters(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return artifact.Table{}, false
	}
	table, err := s.store.Read(r.Context(), s.name)
	if errors.Is(err, artifact.ErrNotFound) {
		http.Error(w, s.name+" not found", http.StatusNotFound)
		return artifact.Table{}, false
	}
	if err != nil {
		http.Error(w, "read "+s.name+" error", http.StatusInternalServerError)
		return artifact.Table{}, false
	}
	if s.canonical != nil {
		table, err = s.canonical(s.name, table)
		if err != nil {
			http.Error(w, "decode "+s.name+" error", http.StatusInternalServerError)
			return artifact.Table{}, false
		}
	}
	return f.apply(table), true
}

type filters struct {
	year *int
	typ  string
}

func parseFilters(r *http.Request) (filters, error) {
	var f filters
	if value := r.URL.Query().Get("year"); value != "" {
		year, err := strconv.Atoi(value)
		if err != nil {
			return f, errors.New("year must be an integer")
		}
		f.year = &year
	}
	f.typ = r.URL.Query().Get("type")
	return f, nil
}

func (f filters) apply(table artifact.Table) artifact.Table {
	yearCol, typeCol := table.Index("year"), table.Index("type")
	if (f.year == nil || yearCol < 0) && (f.typ == "" || typeCol < 0) {
		return table
	}
	out := artifact.Table{Columns: table.Columns}
	for i, row := range table.Rows {
		if f.year != nil && yearCol >= 0 {
			year, err := table.Int(i, yearCol)
			if err != nil || year != *f.year {
				continue
			}
		}
		if f.typ != "" && typeCol >= 0 && !strings.EqualFold(table.String(i, typeCol), f.typ) {
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func jsonCell(v any) any {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return formatFloat(x)
	case int:
		return formatInt(x)
	case string:
		return x
	default:
		return ""
	}
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(timeLayout)
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func formatInt(value int) string {
	return strconv.Itoa(value)
}
