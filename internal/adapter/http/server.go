package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/compost-sensor-etl/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxHistoryDays = 365

// SnapshotReader returns the latest stored snapshot for a sensor.
type SnapshotReader interface {
	LatestSnapshot(ctx context.Context, sensorID string) (domain.Snapshot, error)
}

// SensorView is the sensor the API serves and its default history window.
type SensorView struct {
	SensorID        string
	WindowReference domain.WindowReference
	WindowDays      int
}

// Server exposes the sensor API alongside health, readiness, and metrics.
type Server struct {
	httpServer *http.Server
	snapshots  SnapshotReader
	view       SensorView
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api/v1/sensor routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, snapshots SnapshotReader, view SensorView, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		snapshots: snapshots,
		view:      view,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/v1/sensor", s.handleLatest)
	mux.HandleFunc("GET /api/v1/sensor/history", s.handleHistory)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type latestResponse struct {
	SensorID    string          `json:"sensor_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Reading     *domain.Reading `json:"reading"`
	Display     *domain.Display `json:"display,omitempty"`
}

type historyResponse struct {
	SensorID  string                 `json:"sensor_id"`
	Reference domain.WindowReference `json:"reference"`
	Days      int                    `json:"days"`
	Readings  domain.Series          `json:"readings"`
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.loadSnapshot(w, r)
	if !ok {
		return
	}

	resp := latestResponse{SensorID: snap.SensorID, GeneratedAt: snap.GeneratedAt}
	if reading, ok := snap.Latest(); ok {
		display := domain.NewDisplay(reading)
		resp.Reading = &reading
		resp.Display = &display
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r.URL.Query().Get("days"), s.view.WindowDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ref := s.view.WindowReference
	if raw := r.URL.Query().Get("reference"); raw != "" {
		if ref, err = domain.ParseWindowReference(raw); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	snap, ok := s.loadSnapshot(w, r)
	if !ok {
		return
	}

	sharedobs.WriteJSON(w, http.StatusOK, historyResponse{
		SensorID:  snap.SensorID,
		Reference: ref,
		Days:      days,
		Readings:  snap.Window(ref, days),
	})
}

// loadSnapshot writes the error response itself and reports false when no
// snapshot can be served.
func (s *Server) loadSnapshot(w http.ResponseWriter, r *http.Request) (domain.Snapshot, bool) {
	snap, err := s.snapshots.LatestSnapshot(r.Context(), s.view.SensorID)
	switch {
	case errors.Is(err, domain.ErrNoSnapshot):
		writeError(w, http.StatusServiceUnavailable, "no sensor data yet")
		return domain.Snapshot{}, false
	case err != nil:
		s.logger.Error("load snapshot", "sensor_id", s.view.SensorID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load sensor data")
		return domain.Snapshot{}, false
	}
	return snap, true
}

func parseDays(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > maxHistoryDays {
		return 0, fmt.Errorf("days must be an integer between 1 and %d", maxHistoryDays)
	}
	return days, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
