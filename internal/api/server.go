// Package api wires the HTTP surface of the planner: health checks, metrics, the
// mosaic REST endpoints, the SSE stream and the embedded viewer.
package api

import (
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/mosaicplanner/internal/auth"
	"github.com/star/mosaicplanner/internal/health"
	"github.com/star/mosaicplanner/internal/httputil"
	"github.com/star/mosaicplanner/internal/metrics"
	"github.com/star/mosaicplanner/internal/planner"
	"github.com/star/mosaicplanner/internal/stream"
	"github.com/star/mosaicplanner/internal/transform"
)

// Config holds HTTP server configuration loaded from environment variables.
type Config struct {
	Addr       string
	TrustProxy bool
	// Site is the default observer for alt-az layouts; requests may
	// override it with lat and lon.
	Site transform.Site
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server. webContent may be nil, in which
// case no viewer is served.
func NewServer(cfg Config, logger *slog.Logger, authCfg auth.Config, p *planner.Planner,
	streamHandler *stream.Handler, ready *health.Readiness, webContent fs.FS) *Server {
	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", ready.Handler)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/equipment", equipmentHandler(p))
	mux.HandleFunc("PUT /api/v1/equipment/selection", selectionHandler(logger, p))
	mux.HandleFunc("GET /api/v1/mosaic/config", configGetHandler(p))
	mux.HandleFunc("PUT /api/v1/mosaic/config", configPutHandler(logger, p))
	obs := observerDefaults{site: cfg.Site, now: time.Now}
	mux.HandleFunc("GET /api/v1/mosaic/panels", panelsHandler(p, obs))
	mux.HandleFunc("GET /api/v1/mosaic/outlines", outlinesHandler(logger, p, obs))
	if streamHandler != nil {
		mux.HandleFunc("GET /api/v1/stream/mosaic", streamHandler.HandleMosaic)
	}
	if webContent != nil {
		mux.Handle("GET /", http.FileServerFS(webContent))
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// healthPath reports whether path is a liveness or readiness check, which logs at Debug.
func healthPath(path string) bool {
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

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if healthPath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
