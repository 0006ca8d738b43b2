// Package api serves the interval engine over HTTP: ad-hoc runs on inline
// or stored observations, the run archive, and charts of archived runs.
package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/amount.report/internal/binning"
	"github.com/banshee-data/amount.report/internal/config"
	"github.com/banshee-data/amount.report/internal/db"
	"github.com/banshee-data/amount.report/internal/httputil"
	"github.com/banshee-data/amount.report/internal/monitoring"
	"github.com/banshee-data/amount.report/internal/report"
	"github.com/banshee-data/amount.report/internal/timeutil"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// MaxRequestBytes caps the body of POST /api/intervals.
const MaxRequestBytes = 32 << 20

// InlineSource labels archived runs whose observations came in the request.
const InlineSource = "inline"

type Server struct {
	db         *db.DB
	cfg        *config.BinningConfig
	clock      timeutil.Clock
	assetsHost string
}

// NewServer serves runs against database with cfg as the base engine
// settings. A nil cfg means the built-in defaults.
func NewServer(database *db.DB, cfg *config.BinningConfig) *Server {
	if cfg == nil {
		cfg = config.DefaultBinningConfig()
	}
	return &Server{
		db:    database,
		cfg:   cfg,
		clock: timeutil.RealClock{},
	}
}

// SetClock replaces the clock that times runs and stamps archived ones.
func (s *Server) SetClock(c timeutil.Clock) {
	s.clock = c
}

// SetAssetsHost points chart pages at a different echarts asset host.
func (s *Server) SetAssetsHost(host string) {
	s.assetsHost = host
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/intervals", s.handleIntervals)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/", s.handleRunByID)
	mux.HandleFunc("/api/sources", s.listSources)
	mux.HandleFunc("/api/sources/", s.handleSourceByName)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/charts/runs/", s.showRunChart)
	return mux
}

// IntervalsRequest is the body of POST /api/intervals. Exactly one of
// Source and Observations must be given. Config overrides the server
// settings field by field.
type IntervalsRequest struct {
	Source       string                `json:"source,omitempty"`
	Observations []binning.Observation `json:"observations,omitempty"`
	Config       *config.BinningConfig `json:"config,omitempty"`
	Archive      bool                  `json:"archive,omitempty"`
}

// IntervalsResponse carries the full engine result. RunID is set when the
// run was archived.
type IntervalsResponse struct {
	RunID      string  `json:"run_id,omitempty"`
	Source     string  `json:"source"`
	DurationMS float64 `json:"duration_ms"`
	*binning.Result
}

func (s *Server) handleIntervals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req IntervalsRequest
	if err := httputil.DecodeJSON(w, r, MaxRequestBytes, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if (req.Source == "") == (len(req.Observations) == 0) {
		httputil.BadRequest(w, "exactly one of 'source' and 'observations' is required")
		return
	}

	merged := s.cfg.Merge(req.Config)
	if err := merged.Validate(); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid config: %v", err))
		return
	}
	cfg, err := merged.EngineConfig()
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid config: %v", err))
		return
	}
	engine, err := binning.NewEngine(cfg)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid config: %v", err))
		return
	}

	obs, source := req.Observations, InlineSource
	if req.Source != "" {
		source = req.Source
		obs, err = s.db.Observations(r.Context(), req.Source)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to load source: %v", err))
			return
		}
		if len(obs) == 0 {
			httputil.NotFound(w, fmt.Sprintf("source %q has no observations", req.Source))
			return
		}
	}

	start := s.clock.Now()
	res, err := engine.Run(r.Context(), obs)
	took := s.clock.Since(start)
	if err != nil {
		if errors.Is(err, binning.ErrEmptyDataset) {
			httputil.UnprocessableEntity(w, err.Error())
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("engine run failed: %v", err))
		return
	}

	resp := IntervalsResponse{
		Source:     source,
		DurationMS: float64(took.Nanoseconds()) / 1e6,
		Result:     res,
	}
	if req.Archive {
		run, err := db.NewIntervalRun(source, cfg, res, took)
		if err == nil {
			run.CreatedAt = s.clock.Now()
			err = s.db.SaveRun(r.Context(), run)
		}
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to archive run: %v", err))
			return
		}
		resp.RunID = run.RunID
		monitoring.Logf("archived run %s for %s (%d observations, %v)", run.RunID, source, res.Population.Count, took)
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runs, err := s.db.ListRuns(r.Context(), r.URL.Query().Get("source"), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []db.IntervalRun{}
	}
	httputil.WriteJSONOK(w, runs)
}

// handleRunByID handles get and delete for one archived run.
func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/runs/"))
	if runID == "" {
		httputil.BadRequest(w, "run_id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		run, err := s.db.GetRun(r.Context(), runID)
		if errors.Is(err, db.ErrRunNotFound) {
			httputil.NotFound(w, "run not found")
			return
		}
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to load run: %v", err))
			return
		}
		httputil.WriteJSONOK(w, run)
	case http.MethodDelete:
		err := s.db.DeleteRun(r.Context(), runID)
		if errors.Is(err, db.ErrRunNotFound) {
			httputil.NotFound(w, "run not found")
			return
		}
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to delete run: %v", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	sources, err := s.db.Sources(r.Context())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list sources: %v", err))
		return
	}
	if sources == nil {
		sources = []db.Source{}
	}
	httputil.WriteJSONOK(w, sources)
}

func (s *Server) handleSourceByName(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/sources/"))
	if name == "" {
		httputil.BadRequest(w, "source name is required")
		return
	}
	if r.Method != http.MethodDelete {
		httputil.MethodNotAllowed(w)
		return
	}
	n, err := s.db.DeleteSource(r.Context(), name)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to delete source: %v", err))
		return
	}
	if n == 0 {
		httputil.NotFound(w, "source not found")
		return
	}
	httputil.WriteJSONOK(w, map[string]int64{"deleted": n})
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	cfg, err := s.cfg.EngineConfig()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to resolve config: %v", err))
		return
	}
	httputil.WriteJSONOK(w, cfg)
}

func (s *Server) showRunChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	runID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/charts/runs/"))
	if runID == "" {
		httputil.BadRequest(w, "run_id is required")
		return
	}

	run, err := s.db.GetRun(r.Context(), runID)
	if errors.Is(err, db.ErrRunNotFound) {
		httputil.NotFound(w, "run not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load run: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	o := report.HTMLOptions{
		Title:      fmt.Sprintf("%s: run %s", run.Source, run.RunID),
		AssetsHost: s.assetsHost,
	}
	if err := report.RenderFine(w, run.FineBins, run.Intervals, o); err != nil {
		log.Printf("failed to render chart for run %s: %v", runID, err)
	}
}
