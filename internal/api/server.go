// Package api serves the sensing results over HTTP: the latest
// range-Doppler result, recent velocity observations, size estimates,
// the effective configuration, and a debug heat map.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/hccps/sondar/internal/config"
	"github.com/hccps/sondar/internal/db"
	"github.com/hccps/sondar/internal/sonar"
	"github.com/hccps/sondar/internal/sonar/imaging"
	"github.com/hccps/sondar/internal/units"
	"github.com/hccps/sondar/internal/version"
)

// ANSI escape codes for request logging
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// ResultSource is the read-only view of the running pipeline the API
// needs. *pipeline.Processor satisfies this.
type ResultSource interface {
	LastResult() (*sonar.Result, bool)
	CurrentSize() (imaging.Size, imaging.ShapeLabel, bool)
	Running() bool
	SessionID() string
	FramesProcessed() int64
	FramesDropped() int64
}

// Server exposes the API handlers.
type Server struct {
	source ResultSource
	db     *db.DB
	cfg    *config.SonarConfig
	units  string
}

// NewServer creates an API server. The units string selects the speed
// unit reported by the velocity endpoints.
func NewServer(source ResultSource, database *db.DB, cfg *config.SonarConfig, unitsName string) *Server {
	if !units.IsValid(unitsName) {
		unitsName = units.MPS
	}
	return &Server{source: source, db: database, cfg: cfg, units: unitsName}
}

// ServeMux returns the mux with all API routes mounted.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /result", s.handleResult)
	mux.HandleFunc("GET /velocities", s.handleVelocities)
	mux.HandleFunc("GET /size", s.handleSize)
	mux.HandleFunc("GET /config", s.handleConfig)
	mux.HandleFunc("GET /status", s.handleStatus)
	return mux
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf("[%s] %s %s %vms",
			statusCodeColor(lrw.statusCode), r.Method, r.URL.Path,
			time.Since(start).Milliseconds())
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// resolveUnits picks the unit from the query, falling back to the
// server default. Invalid values are a client error.
func (s *Server) resolveUnits(r *http.Request) (string, bool) {
	u := r.URL.Query().Get("units")
	if u == "" {
		return s.units, true
	}
	if !units.IsValid(u) {
		return "", false
	}
	return u, true
}

// handleResult returns the latest processed frame. The image itself is
// included only with ?full=1 since it can run to hundreds of KB.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	result, ok := s.source.LastResult()
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "no result available yet")
		return
	}

	unit, ok := s.resolveUnits(r)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, "invalid units, expected one of: "+units.GetValidUnitsString())
		return
	}

	rows := len(result.Image)
	cols := 0
	if rows > 0 {
		cols = len(result.Image[0])
	}
	_, _, peak := result.Image.Peak()

	resp := map[string]interface{}{
		"frame_index": result.FrameIndex,
		"velocity":    units.ConvertSpeed(result.VelocityMps, unit),
		"units":       unit,
		"correlation": result.Correlation,
		"rows":        rows,
		"cols":        cols,
		"peak":        peak,
	}
	if r.URL.Query().Get("full") == "1" {
		resp["image"] = result.Image
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleVelocities returns recent observations with speeds converted
// to the requested units.
func (s *Server) handleVelocities(w http.ResponseWriter, r *http.Request) {
	unit, ok := s.resolveUnits(r)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, "invalid units, expected one of: "+units.GetValidUnitsString())
		return
	}

	limit := 100
	if lim := r.URL.Query().Get("limit"); lim != "" {
		v, err := strconv.Atoi(lim)
		if err != nil || v <= 0 || v > 10000 {
			s.writeJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = v
	}

	observations, err := s.db.RecentObservations(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	for i := range observations {
		observations[i].VelocityMps = units.ConvertSpeed(observations[i].VelocityMps, unit)
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"units":        unit,
		"observations": observations,
	})
}

// handleSize returns the latest live size estimate if the pipeline is
// running, falling back to the most recent stored estimate.
func (s *Server) handleSize(w http.ResponseWriter, r *http.Request) {
	if size, label, ok := s.source.CurrentSize(); ok {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"length_mm": size.LengthMM,
			"width_mm":  size.WidthMM,
			"shape":     label.String(),
			"live":      true,
		})
		return
	}

	stored, err := s.db.LatestSizeEstimate()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if stored == nil {
		s.writeJSONError(w, http.StatusNotFound, "no size estimate available")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"length_mm": stored.LengthMM,
		"width_mm":  stored.WidthMM,
		"shape":     stored.Shape,
		"live":      false,
	})
}

// handleConfig returns the effective numeric configuration.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"sample_rate_hz":        s.cfg.GetSampleRateHz(),
		"chirp_min_freq_hz":     s.cfg.GetChirpMinFreqHz(),
		"chirp_max_freq_hz":     s.cfg.GetChirpMaxFreqHz(),
		"chirp_duration_ms":     s.cfg.GetChirpDurationMs(),
		"inter_chirp_gap_ms":    s.cfg.GetInterChirpGapMs(),
		"emit_period_ms":        s.cfg.GetEmitPeriodMs(),
		"device_latency_ms":     s.cfg.GetDeviceLatencyMs(),
		"window_size":           s.cfg.GetWindowSize(),
		"window_step":           s.cfg.GetWindowStep(),
		"fir_kernel_size":       s.cfg.GetFIRKernelSize(),
		"background_alpha":      s.cfg.GetBackgroundAlpha(),
		"velocity_search_max":   s.cfg.GetVelocitySearchMax(),
		"velocity_steps":        s.cfg.GetVelocitySteps(),
		"velocity_clamp_max":    s.cfg.GetVelocityClampMax(),
		"smoothing_weight":      s.cfg.GetSmoothingWeight(),
		"reliability_threshold": s.cfg.GetReliabilityThreshold(),
		"weakness_threshold":    s.cfg.GetWeaknessThreshold(),
		"double_filter":         s.cfg.GetDoubleFilter(),
	})
}

// handleStatus reports session liveness and frame counters.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"running":          s.source.Running(),
		"session_id":       s.source.SessionID(),
		"frames_processed": s.source.FramesProcessed(),
		"frames_dropped":   s.source.FramesDropped(),
		"version":          version.String(),
	})
}
