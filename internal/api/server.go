package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fieldwork-data/vignette.report/internal/config"
	"github.com/fieldwork-data/vignette.report/internal/db"
	"github.com/fieldwork-data/vignette.report/internal/model"
	"github.com/fieldwork-data/vignette.report/internal/units"
	"github.com/fieldwork-data/vignette.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	db     *db.DB
	config *config.AnalysisConfig
	scale  string
}

// NewServer builds a server over the database. The scale argument overrides
// the configured rating scale for served effect sizes; pass "" to serve on
// the configured scale.
func NewServer(database *db.DB, cfg *config.AnalysisConfig, scale string) *Server {
	if scale == "" {
		scale = cfg.GetRatingScale()
	}
	return &Server{
		db:     database,
		config: cfg,
		scale:  scale,
	}
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
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/", s.showRun)
	mux.HandleFunc("/api/effects", s.showEffects)
	mux.HandleFunc("/api/mwtp", s.showMWTP)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/charts/effects", s.chartEffects)
	mux.HandleFunc("/charts/mwtp", s.chartMWTP)
	mux.HandleFunc("/charts/ratings", s.chartRatings)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	// Chart handlers only set text/html on success, so the error body's
	// content type must be set here, before the status is written.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := 20 // default value
	if l := r.URL.Query().Get("limit"); l != "" {
		parsedLimit, err := strconv.Atoi(l)
		if err != nil || parsedLimit < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsedLimit
	}

	runs, err := s.db.RecentAnalysisRuns(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve runs: %v", err))
		return
	}
	if runs == nil {
		runs = []*db.AnalysisRun{}
	}

	if err := json.NewEncoder(w).Encode(runs); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write runs")
		return
	}
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if runID == "" || strings.Contains(runID, "/") {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid run ID")
		return
	}

	run, err := s.db.GetAnalysisRun(runID)
	if err != nil {
		s.writeJSONError(w, http.StatusNotFound,
			fmt.Sprintf("Failed to retrieve run: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(run); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write run")
		return
	}
}

// latestRun fetches the newest run, writing the error response itself and
// returning nil when no run is available.
func (s *Server) latestRun(w http.ResponseWriter) *db.AnalysisRun {
	run, err := s.db.LatestAnalysisRun()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve latest run: %v", err))
		return nil
	}
	if run == nil {
		s.writeJSONError(w, http.StatusNotFound, "No analysis runs recorded yet")
		return nil
	}
	return run
}

func (s *Server) showEffects(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	scale := s.scale
	if q := r.URL.Query().Get("scale"); q != "" {
		if !units.IsValid(q) {
			s.writeJSONError(w, http.StatusBadRequest,
				fmt.Sprintf("Invalid 'scale' parameter; valid scales: %s", units.GetValidScalesString()))
			return
		}
		scale = q
	}

	run := s.latestRun(w)
	if run == nil {
		return
	}

	// Stored effects are on the unit interval; recompute the native value
	// for the requested serving scale.
	effects := make([]model.Effect, len(run.Effects))
	for i, e := range run.Effects {
		e.Native = units.ConvertEffect(e.AME, scale)
		effects[i] = e
	}

	resp := map[string]interface{}{
		"run_id":  run.RunID,
		"scale":   scale,
		"num_obs": run.NumObs,
		"effects": effects,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write effects")
		return
	}
}

func (s *Server) showMWTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	run := s.latestRun(w)
	if run == nil {
		return
	}
	if len(run.MWTP) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "Latest run has no willingness-to-pay results")
		return
	}

	resp := map[string]interface{}{
		"run_id":          run.RunID,
		"price_attribute": run.Spec.PriceAttribute,
		"currency":        run.Spec.Currency,
		"mwtp":            run.MWTP,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write mwtp")
		return
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	resp := map[string]interface{}{
		"version":         version.Version,
		"scale":           s.scale,
		"currency":        s.config.GetCurrency(),
		"price_attribute": s.config.GetPriceAttribute(),
		"attributes":      s.config.Attributes,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
		return
	}
}
