package main

import (
	"DDoSpectra/internal/alerter"
	"DDoSpectra/internal/config"
	"DDoSpectra/internal/engine/manager"
	"DDoSpectra/internal/engine/tableio"
	"DDoSpectra/internal/metrics"
	"DDoSpectra/internal/model"
	"DDoSpectra/internal/query"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// AnalyzeRequest selects a stored table, or a run stored in ClickHouse, and the
// columns to analyze.
type AnalyzeRequest struct {
	Table   string   `json:"table"`
	RunID   string   `json:"run_id"`
	Columns []string `json:"columns"`
	FS      float64  `json:"fs"`
}

// ColumnResult is the summary of one analyzed column.
type ColumnResult struct {
	Column             string            `json:"column"`
	DominantFrequency  float64           `json:"dominant_frequency_hz"`
	DominantPower      float64           `json:"dominant_power"`
	TotalPower         float64           `json:"total_power"`
	ACFPeakLag         int               `json:"acf_peak_lag"`
	ACFPeakValue       float64           `json:"acf_peak"`
	MaxAbsZScore       float64           `json:"max_abs_zscore"`
	AnomalousIntervals []int             `json:"anomalous_intervals"`
	P95                float64           `json:"p95"`
	Errors             map[string]string `json:"errors,omitempty"`
}

// AnalyzeResponse is the body of a successful analysis.
type AnalyzeResponse struct {
	RunID       string         `json:"run_id"`
	Table       string         `json:"table,omitempty"`
	SourceRunID string         `json:"source_run_id,omitempty"`
	SampleRate  float64        `json:"fs"`
	Rows        int            `json:"rows"`
	Columns     []ColumnResult `json:"columns"`
	Alerts      []string       `json:"alerts"`
}

// ColumnsResponse describes a stored table.
type ColumnsResponse struct {
	Table   string   `json:"table"`
	Rows    int      `json:"rows"`
	Delta   float64  `json:"delta"`
	Sources []string `json:"sources"`
	Columns []string `json:"columns"`
}

// APIHandler holds the dependencies for API handlers.
type APIHandler struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	notifier model.Notifier
	// querier is nil when no ClickHouse writer is configured.
	querier query.Querier
}

// NewRouter registers the API routes.
func NewRouter(h *APIHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/analyze", h.analyzeHandler).Methods("POST")
	r.HandleFunc("/api/v1/tables/{table}/columns", h.columnsHandler).Methods("GET")
	r.HandleFunc("/api/v1/runs", h.runsHandler).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(h.metrics.Registry, promhttp.HandlerOpts{}))
	return r
}

// tablePath resolves a table name inside the data directory. Names cannot leave it.
func (h *APIHandler) tablePath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", &model.ConfigurationError{Param: "table", Reason: fmt.Sprintf("invalid table name %q", name)}
	}
	if filepath.Ext(name) == "" {
		name += ".csv"
	}
	return filepath.Join(h.cfg.API.DataDir, name), nil
}

func (h *APIHandler) loadTable(name string) (*model.MultivariateTable, string, error) {
	path, err := h.tablePath(name)
	if err != nil {
		return nil, "", err
	}
	table, err := tableio.LoadTable(path)
	if err != nil {
		return nil, "", err
	}
	return table, path, nil
}

// analyzeHandler runs the signal analysis over a stored table.
func (h *APIHandler) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("failed to decode request: %v", err), http.StatusBadRequest)
		return
	}

	var (
		table *model.MultivariateTable
		path  string
		err   error
	)
	if req.RunID != "" {
		if h.querier == nil {
			http.Error(w, "no ClickHouse store configured", http.StatusServiceUnavailable)
			return
		}
		path = "clickhouse:" + req.RunID
		table, err = query.LoadTable(r.Context(), h.querier, req.RunID, h.cfg.Aggregator.ExtendedColumns)
	} else {
		table, path, err = h.loadTable(req.Table)
	}
	if err != nil {
		h.fail(w, err)
		return
	}

	cfg := *h.cfg
	if len(req.Columns) > 0 {
		cfg.Analyzer.Columns = req.Columns
	}
	if req.FS > 0 {
		cfg.Analyzer.FS = req.FS
	}
	if err := cfg.ValidateAnalyzer(); err != nil {
		h.fail(w, err)
		return
	}

	mgr := manager.NewManager(&cfg, h.logger, h.metrics)
	mgr.SetNotifier(h.notifier)
	report, err := mgr.AnalyzeTable(table, path)
	if err != nil {
		h.fail(w, err)
		return
	}
	resp := newAnalyzeResponse(report)
	resp.Table, resp.SourceRunID = req.Table, req.RunID
	h.respond(w, resp)
}

func newAnalyzeResponse(report *model.AnalysisReport) AnalyzeResponse {
	resp := AnalyzeResponse{
		RunID:      report.RunID,
		SampleRate: report.SampleRate,
		Rows:       report.Rows,
		Alerts:     []string{},
	}
	for i := range report.Features {
		f := &report.Features[i]
		s := f.Summary
		col := ColumnResult{
			Column:             f.Column,
			DominantFrequency:  s.DominantFrequency,
			DominantPower:      s.DominantPower,
			TotalPower:         s.TotalPower,
			ACFPeakLag:         s.ACFPeakLag,
			ACFPeakValue:       s.ACFPeakValue,
			MaxAbsZScore:       s.MaxAbsZScore,
			AnomalousIntervals: s.AnomalousIntervals,
			P95:                s.P95,
		}
		if col.AnomalousIntervals == nil {
			col.AnomalousIntervals = []int{}
		}
		if len(f.Errors) > 0 {
			col.Errors = make(map[string]string, len(f.Errors))
			for name, err := range f.Errors {
				col.Errors[name] = err.Error()
			}
		}
		resp.Columns = append(resp.Columns, col)
	}
	for _, al := range report.Alerts {
		resp.Alerts = append(resp.Alerts, alerter.Message(al))
	}
	return resp
}

// columnsHandler lists the columns of a stored table.
func (h *APIHandler) columnsHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["table"]
	table, _, err := h.loadTable(name)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, ColumnsResponse{
		Table:   name,
		Rows:    table.Rows(),
		Delta:   table.Delta,
		Sources: table.Sources,
		Columns: table.Columns,
	})
}

// runsHandler lists the runs stored in ClickHouse.
func (h *APIHandler) runsHandler(w http.ResponseWriter, r *http.Request) {
	if h.querier == nil {
		http.Error(w, "no ClickHouse store configured", http.StatusServiceUnavailable)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid limit %q", v), http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := h.querier.Runs(r.Context(), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	if runs == nil {
		runs = []query.RunInfo{}
	}
	h.respond(w, runs)
}

func (h *APIHandler) respond(w http.ResponseWriter, body interface{}) {
	jsonBytes, err := json.Marshal(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(jsonBytes)
}

// fail maps the error taxonomy to HTTP status codes.
func (h *APIHandler) fail(w http.ResponseWriter, err error) {
	var (
		cfgErr    *model.ConfigurationError
		schemaErr *model.SchemaError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &cfgErr) && cfgErr.Param == "csv_path":
		status = http.StatusNotFound
	case errors.As(err, &cfgErr), errors.As(err, &schemaErr):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.Error(err))
	}
	http.Error(w, err.Error(), status)
}
