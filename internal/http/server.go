package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/andygrunwald/bin-collection/internal/models"
)

// DefaultCORSOrigin is the dashboard development server.
const DefaultCORSOrigin = "http://localhost:4200"

// ServerConfig holds the request surface settings.
type ServerConfig struct {
	Addr        string
	UPRN        string
	TestMode    bool
	TestVariant models.TestScenario
	CORSOrigin  string
	Location    *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

// Server represents the HTTP server for the API, metrics and health endpoints.
type Server struct {
	server  *http.Server
	logger  zerolog.Logger
	metrics *Metrics
}

// NewServer creates a new HTTP server. archive may be nil when no fetch
// archive is configured.
func NewServer(cfg ServerConfig, schedule Schedule, archive ArchiveReporter, metrics *Metrics, gatherer prometheus.Gatherer, logger zerolog.Logger) *Server {
	cfg = cfg.withDefaults()
	logger = logger.With().Str("component", "http").Logger()

	mux := http.NewServeMux()

	// Register handlers
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("GET /api/bin-collection", NewCollectionsHandler(cfg, schedule, metrics, logger))
	mux.Handle("GET /api/health", NewHealthHandler(cfg, schedule, archive, logger))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Debug().Err(err).Msg("failed to write liveness response")
		}
	})

	return &Server{
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      withCORS(cfg.CORSOrigin, mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Metrics returns the Prometheus metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// withCORS allows the dashboard origin to call /api/ routes and answers
// preflight requests itself.
func withCORS(origin string, next http.Handler) http.Handler {
	if origin == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
