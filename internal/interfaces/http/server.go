// Package http serves the read-only ops surface: health, Prometheus
// metrics, and on-demand analysis snapshots.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/MKY508/momentum-lens-sub000/internal/application"
	"github.com/MKY508/momentum-lens-sub000/internal/data"
	"github.com/MKY508/momentum-lens-sub000/internal/report"
)

// Server is the read-only ops HTTP server. Analysis endpoints run the
// pipeline on demand against the configured bar source; nothing here
// mutates state.
type Server struct {
	router    *mux.Router
	server    *http.Server
	metrics   *MetricsRegistry
	analysis  application.AnalysisConfig
	source    data.BarSource
	startTime time.Time
	version   string

	mu         sync.Mutex
	lastSwitch time.Time
}

// NewServer wires the ops endpoints onto a gorilla router.
func NewServer(addr string, analysis application.AnalysisConfig, source data.BarSource, metrics *MetricsRegistry, version string) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		metrics:   metrics,
		analysis:  analysis,
		source:    source,
		startTime: time.Now(),
		version:   version,
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(metrics.Gatherer(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.HandleFunc("/rank", s.handleRank).Methods(http.MethodGet)
	s.router.HandleFunc("/regime", s.handleRegime).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("Ops server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	Uptime     string    `json:"uptime"`
	Version    string    `json:"version"`
	Goroutines int       `json:"goroutines"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now(),
		Uptime:     time.Since(s.startTime).Round(time.Second).String(),
		Version:    s.version,
		Goroutines: runtime.NumGoroutine(),
	})
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	rep, err := s.runAnalysis(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleRegime(w http.ResponseWriter, r *http.Request) {
	rep, err := s.runAnalysis(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rep.Regime)
}

func (s *Server) runAnalysis(ctx context.Context) (*report.AnalysisReport, error) {
	start := time.Now()
	rep, err := application.NewAnalyzer(s.analysis, s.source).Run(ctx)
	if err != nil {
		s.metrics.RecordAnalysis(time.Since(start).Seconds(), "error")
		log.Error().Err(err).Msg("On-demand analysis failed")
		return nil, err
	}
	s.metrics.RecordAnalysis(time.Since(start).Seconds(), "ok")
	s.metrics.ActiveRegime.Set(float64(rep.Regime.State))
	s.recordSwitches(rep)
	return rep, nil
}

// recordSwitches counts each regime transition once per process, even though
// every analysis run replays the full history.
func (s *Server) recordSwitches(rep *report.AnalysisReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, change := range rep.Regime.History {
		if !change.Timestamp.After(s.lastSwitch) {
			continue
		}
		s.metrics.RecordRegimeSwitch(change)
		s.lastSwitch = change.Timestamp
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
