package dispatch

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/heptiolabs/healthcheck"

	"github.com/stacklok/toolhive-autosave/internal/coordinator"
	"github.com/stacklok/toolhive-autosave/internal/status"
	"github.com/stacklok/toolhive-autosave/pkg/versions"
)

const (
	// maxGoroutines is the liveness threshold for runaway goroutine growth
	maxGoroutines = 1000
)

// ServerOption configures the control API server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	metricsHandler http.Handler
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithMetricsHandler mounts h at /metrics. A nil handler leaves the route unmounted.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = h
	}
}

// RequestResponse is returned when a request is accepted
type RequestResponse struct {
	Request Request `json:"request"`
	Status  string  `json:"status"`
}

// StatusResponse reports the coordinator state and the latest save status
type StatusResponse struct {
	State  coordinator.State  `json:"state"`
	Status *status.SaveStatus `json:"status"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer creates the control API router on top of d
func NewServer(d *Dispatcher, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	health := newHealthHandler(d.coordinator)
	r.Get("/live", health.LiveEndpoint)
	r.Get("/ready", health.ReadyEndpoint)
	r.Get("/version", versionHandler)
	r.Get("/status", statusHandler(d.coordinator))
	r.Post("/requests/{request}", requestHandler(d))

	if cfg.metricsHandler != nil {
		r.Handle("/metrics", cfg.metricsHandler)
	}

	return r
}

// newHealthHandler reports ready until termination was requested
func newHealthHandler(c coordinator.Coordinator) healthcheck.Handler {
	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))
	health.AddReadinessCheck("coordinator", func() error {
		if c.State() == coordinator.StateTerminating {
			return errors.New("process is terminating")
		}
		return nil
	})
	return health
}

// requestHandler accepts a request and dispatches it after the response is flushed,
// since terminal requests may end the process before the handler returns.
func requestHandler(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := ParseRequest(chi.URLParam(r, "request"))
		if err != nil {
			writeJSONResponse(w, ErrorResponse{Error: err.Error()}, http.StatusBadRequest)
			return
		}

		if req.Terminal() {
			w.Header().Set("Connection", "close")
		}
		writeJSONResponse(w, RequestResponse{Request: req, Status: "accepted"}, http.StatusAccepted)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		if err := d.Dispatch(r.Context(), "http", req); err != nil {
			slog.Error("Failed to dispatch control request", "request", req, "error", err)
		}
	}
}

func statusHandler(c coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSONResponse(w, StatusResponse{
			State:  c.State(),
			Status: c.GetStatus(),
		}, http.StatusOK)
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}

// writeJSONResponse writes data with an explicit Content-Length, so a client can
// finish reading an accepted kill while the handler is still blocked on it.
func writeJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	body = append(body, '\n')

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		slog.Debug("Failed to write JSON response", "error", err)
	}
}

// LoggingMiddleware logs control requests at debug level
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
