// Package api provides the HTTP API server for the lawn care quote service.
// The wizard front end calls it on every selection change and on submit.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"lawnquote/decision/lead"
	"lawnquote/decision/quote"
	qerrors "lawnquote/pkg/errors"
	"lawnquote/pkg/platform"
)

// Version is reported by /health.
var Version = "dev"

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP API server
type Server struct {
	httpServer *http.Server
	quotes     *quote.Engine
	leads      *lead.Service
	events     quote.EventSink
	metrics    *platform.Metrics
	limiter    *RateLimiter
	checks     map[string]Pinger
	logger     *slog.Logger
	now        func() time.Time
	config     *Config
}

// Config holds server configuration
type Config struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxRequestSize  int64
	CORSOrigins     []string

	// AdminAPIKey guards lead lookup. Empty disables the route.
	AdminAPIKey string

	// LeadRateLimit submissions per client per LeadRateWindow.
	LeadRateLimit  int
	LeadRateWindow time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Port:            8080,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		MaxRequestSize:  64 * 1024, // 64KB
		CORSOrigins:     []string{"*"},
		LeadRateLimit:   5,
		LeadRateWindow:  time.Minute,
	}
}

// NewServer creates a new API server. leads may be nil, in which case lead
// submission is disabled.
func NewServer(quotes *quote.Engine, leads *lead.Service, config *Config, logger *slog.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		quotes:  quotes,
		leads:   leads,
		limiter: NewRateLimiter(config.LeadRateLimit, config.LeadRateWindow),
		checks:  make(map[string]Pinger),
		logger:  logger,
		now:     time.Now,
		config:  config,
	}
}

// WithEvents records a quoted event for every priced quote.
func (s *Server) WithEvents(sink quote.EventSink) *Server {
	s.events = sink
	return s
}

// WithMetrics enables request metrics and /metrics.
func (s *Server) WithMetrics(m *platform.Metrics) *Server {
	s.metrics = m
	return s
}

// WithReadinessCheck adds a dependency to /ready.
func (s *Server) WithReadinessCheck(name string, p Pinger) *Server {
	if p != nil {
		s.checks[name] = p
	}
	return s
}

// WithClock overrides the clock used to default as_of.
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	return s
}

// Handler builds the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, "GET /health", s.handleHealth)
	s.route(mux, "GET /ready", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.route(mux, "GET /api/v1/catalog", s.handleCatalog)
	s.route(mux, "POST /api/v1/quote", s.handleQuote)
	s.route(mux, "GET /api/v1/swap-options", s.handleSwapOptions)
	s.route(mux, "GET /api/v1/promo-codes/{code}", s.handlePromoCode)
	if s.leads != nil {
		s.route(mux, "POST /api/v1/leads", RateLimitMiddleware(s.limiter, s.handleSubmitLead))
		if s.config.AdminAPIKey != "" {
			s.route(mux, "GET /api/v1/leads/{id}", platform.APIKeyMiddleware(s.config.AdminAPIKey, s.handleGetLead))
		}
	}

	return s.corsMiddleware(s.loggingMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("API server starting", "port", s.config.Port, "version", Version)
	return s.httpServer.ListenAndServe()
}

// StartWithGracefulShutdown starts server with graceful shutdown handling
func (s *Server) StartWithGracefulShutdown() error {
	defer s.limiter.Stop()

	errChan := make(chan error, 1)
	go func() {
		if err := s.Start(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-quit:
		s.logger.Info("shutting down server", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
}

// Close releases background resources without starting the server.
func (s *Server) Close() {
	s.limiter.Stop()
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// route registers h and records its latency under the route pattern.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		s.metrics.ObserveRequest(pattern, r.Method, rec.status, time.Since(start))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"remote", r.RemoteAddr,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		allowed := false
		for _, o := range s.config.CORSOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}

		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// HEALTH ENDPOINTS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := make(map[string]string, len(s.checks))
	ready := true
	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", "check", name, "error", err)
			status[name] = "unavailable"
			ready = false
			continue
		}
		status[name] = "ok"
	}

	if !ready {
		s.jsonResponse(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not ready",
			"checks": status,
		})
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status": "ready",
		"checks": status,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, ErrorResponse{Error: message})
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

// writeError maps err to a status. Unknown catalog ids in a request body are
// the client's mistake, so NOT_FOUND becomes notFoundStatus (400 for bodies,
// 404 for path lookups).
func (s *Server) writeError(w http.ResponseWriter, err error, notFoundStatus int) {
	var qe *qerrors.QuoteError
	if !errors.As(err, &qe) {
		s.logger.Error("request failed", "error", err)
		s.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch qe.Code {
	case qerrors.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case qerrors.ErrCodeNotFound:
		status = notFoundStatus
	case qerrors.ErrCodeStorageFailed:
		status = http.StatusServiceUnavailable
	}
	if status >= 500 {
		s.logger.Error("request failed", "code", qe.Code, "error", err)
	}
	s.jsonResponse(w, status, ErrorResponse{Error: qe.Message, Code: qe.Code, Field: qe.Field})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("invalid request: %v", err),
			Code:  qerrors.ErrCodeInvalidInput,
		})
		return false
	}
	return true
}

func (s *Server) asOf(t time.Time) time.Time {
	if t.IsZero() {
		return s.now().UTC()
	}
	return t
}

func parseBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

func parseUUID(v string) (uuid.UUID, error) {
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, qerrors.NewInvalidInputError("id", "id must be a UUID")
	}
	return id, nil
}
