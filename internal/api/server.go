// Package api serves event searches, the catalog and the HTML report over
// HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bmorris3/transitephem/internal/auth"
	"github.com/bmorris3/transitephem/internal/cache"
	"github.com/bmorris3/transitephem/internal/catalog"
	"github.com/bmorris3/transitephem/internal/health"
	"github.com/bmorris3/transitephem/internal/metrics"
	"github.com/bmorris3/transitephem/internal/report"
	"github.com/bmorris3/transitephem/internal/storage"
)

// Config holds HTTP server settings.
type Config struct {
	Addr          string
	Auth          auth.Config
	TrustProxy    bool
	MaxDays       int // longest window a client may request
	MaxConcurrent int // concurrent searches per client IP
}

// RunLister returns recent search runs.
type RunLister interface {
	RecentRuns(ctx context.Context, k int) ([]storage.Run, error)
}

// Deps are the services behind the handlers.
type Deps struct {
	Catalog   *catalog.Store
	Selection catalog.Selection
	Results   *cache.ResultCache
	Runs      RunLister
	Report    report.Options // site and presentation; RunID and Generated are set per request
	Ready     []health.Check
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	h := &handlers{
		deps:    deps,
		maxDays: cfg.MaxDays,
		limiter: newSearchLimiter(cfg.MaxConcurrent, 4*cfg.MaxConcurrent+8),
		proxy:   cfg.TrustProxy,
		logger:  logger.With("component", "api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(deps.Ready...))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /{$}", h.index)
	mux.HandleFunc("GET /assets/{file}", h.asset)
	mux.HandleFunc("GET /api/v1/events", h.events)
	mux.HandleFunc("GET /api/v1/catalog", h.catalog)
	mux.HandleFunc("GET /api/v1/planets", h.planets)
	mux.HandleFunc("GET /api/v1/planets/{name}", h.planet)
	mux.HandleFunc("GET /api/v1/runs", h.runs)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      120 * time.Second, // cold searches over long windows
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", clientIP(r, trustProxy),
			)
		})
	}
}
