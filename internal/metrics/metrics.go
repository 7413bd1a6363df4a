package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mosaic_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mosaic_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	layoutDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mosaic_layout_duration_seconds",
			Help:    "Time spent laying out a panel grid.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		},
	)

	layoutPanels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mosaic_layout_panels",
			Help: "Number of panels in the most recent layout.",
		},
	)

	outlineDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mosaic_outline_duration_seconds",
			Help:    "Time spent generating the outlines of one layout.",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		},
	)

	outlinesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mosaic_outlines_total",
			Help: "Total number of panel outlines generated.",
		},
	)

	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mosaic_cache_hits_total",
			Help: "Layout cache hits.",
		},
	)

	cacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mosaic_cache_misses_total",
			Help: "Layout cache misses.",
		},
	)

	cacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mosaic_cache_evictions_total",
			Help: "Layouts evicted from the cache, including invalidations.",
		},
	)

	cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mosaic_cache_entries",
			Help: "Number of layouts currently cached.",
		},
	)

	configChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mosaic_config_changes_total",
			Help: "Accepted planner setting changes by field.",
		},
		[]string{"field"},
	)

	outlineWorkersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mosaic_outline_workers",
			Help: "Configured outline worker count.",
		},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mosaic_stream_connections_total",
			Help: "SSE connection events.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mosaic_streams_active",
			Help: "Currently open SSE streams.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mosaic_stream_messages_total",
			Help: "SSE data messages sent.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mosaic_stream_bytes_total",
			Help: "Bytes written to SSE streams.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mosaic_stream_errors_total",
			Help: "SSE stream errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(layoutDurationSeconds)
	prometheus.MustRegister(layoutPanels)
	prometheus.MustRegister(outlineDurationSeconds)
	prometheus.MustRegister(outlinesTotal)
	prometheus.MustRegister(cacheHitsTotal)
	prometheus.MustRegister(cacheMissesTotal)
	prometheus.MustRegister(cacheEvictionsTotal)
	prometheus.MustRegister(cacheEntries)
	prometheus.MustRegister(configChangesTotal)
	prometheus.MustRegister(outlineWorkersActive)
	prometheus.MustRegister(streamConnectionsTotal)
	prometheus.MustRegister(streamsActive)
	prometheus.MustRegister(streamMessagesTotal)
	prometheus.MustRegister(streamBytesTotal)
	prometheus.MustRegister(streamErrorsTotal)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLayout records one panel layout.
func ObserveLayout(d time.Duration, panels int) {
	layoutDurationSeconds.Observe(d.Seconds())
	layoutPanels.Set(float64(panels))
}

// ObserveOutlines records the outline generation of one layout.
func ObserveOutlines(d time.Duration, count int) {
	outlineDurationSeconds.Observe(d.Seconds())
	outlinesTotal.Add(float64(count))
}

func IncCacheHits() { cacheHitsTotal.Inc() }
func IncCacheMisses() { cacheMissesTotal.Inc() }

func AddCacheEvictions(n int) { cacheEvictionsTotal.Add(float64(n)) }

func SetCacheEntries(n int) { cacheEntries.Set(float64(n)) }

// IncConfigChange counts an accepted change to a planner setting.
func IncConfigChange(field string) {
	configChangesTotal.WithLabelValues(field).Inc()
}

func SetOutlineWorkers(n int) { outlineWorkersActive.Set(float64(n)) }

// IncStreamConnections counts a "connect" or "disconnect" event.
func IncStreamConnections(event string) {
	streamConnectionsTotal.WithLabelValues(event).Inc()
}

func IncStreamsActive() { streamsActive.Inc() }
func DecStreamsActive() { streamsActive.Dec() }

func IncStreamMessages() { streamMessagesTotal.Inc() }
func AddStreamBytes(n int64) { streamBytesTotal.Add(float64(n)) }

// IncStreamErrors counts a stream error by reason.
func IncStreamErrors(reason string) {
	streamErrorsTotal.WithLabelValues(reason).Inc()
}

// knownRoutes are the exact paths served by the API.
var knownRoutes = map[string]bool{
	"/":                           true,
	"/healthz":                    true,
	"/readyz":                     true,
	"/metrics":                    true,
	"/api/v1/equipment":           true,
	"/api/v1/equipment/selection": true,
	"/api/v1/mosaic/config":       true,
	"/api/v1/mosaic/panels":       true,
	"/api/v1/mosaic/outlines":     true,
	"/api/v1/stream/mosaic":       true,
}

// normalizeRoute maps a request path onto a bounded set of label values.
// Anything not served by the API collapses to "other".
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets SSE handlers flush through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
