// Package stream implements Server-Sent Events (SSE) streaming of the mosaic
// as seen by an observer. Clients connect via GET /api/v1/stream/mosaic and
// receive the panel grid around an equatorial target, converted to azimuth and
// altitude at the current time, once per interval.
//
// SSE message format:
//
//	data: {"type":"mosaic_frame","t":"2026-02-06T04:00:00Z","lst_deg":91.2,"center":{...},"panels":[...]}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","enabled":true,"config":{...},"site":{...},"target":{...}}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval to prevent timeout.
// Reconnecting clients receive a fresh metadata message on each connection.
package stream

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/star/mosaicplanner/internal/httputil"
	"github.com/star/mosaicplanner/internal/metrics"
	"github.com/star/mosaicplanner/internal/mosaic"
	"github.com/star/mosaicplanner/internal/transform"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxTotal           int           // Max concurrent streams overall (default: 1000).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	DefaultInterval    time.Duration // Frame interval when the client gives none (default: 5s).
	Site               transform.Site
	TrustProxy         bool
}

// Source supplies the live mosaic layout. Frame is the frame the grid is laid
// out in: equatorial mounts follow RA/Dec, alt-az mounts azimuth/altitude.
type Source interface {
	Enabled() bool
	Config() mosaic.Config
	Frame() transform.Frame
	Panels(center transform.Direction) []mosaic.Panel
}

// Handler manages SSE streaming connections.
type Handler struct {
	source  Source
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
	now     func() time.Time
}

// NewHandler creates a new streaming handler.
func NewHandler(source Source, config Config, logger *slog.Logger) *Handler {
	if config.DefaultInterval <= 0 {
		config.DefaultInterval = 5 * time.Second
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		source:  source,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:  logger,
		now:     time.Now,
	}
}

// floatParam parses an optional float query parameter within [min, max].
func floatParam(r *http.Request, name string, def, min, max float64) (float64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < min || f > max {
		return 0, false
	}
	return f, true
}

// streamRequest holds the parsed query of one stream.
type streamRequest struct {
	target   transform.Direction
	raDeg    float64
	decDeg   float64
	site     transform.Site
	interval time.Duration
}

func (h *Handler) parseRequest(w http.ResponseWriter, r *http.Request) (streamRequest, bool) {
	q := r.URL.Query()
	if q.Get("ra") == "" || q.Get("dec") == "" {
		httputil.WriteError(w, http.StatusBadRequest, "ra and dec are required")
		return streamRequest{}, false
	}
	ra, ok := floatParam(r, "ra", 0, 0, 360)
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "invalid ra parameter, must be 0-360")
		return streamRequest{}, false
	}
	dec, ok := floatParam(r, "dec", 0, -90, 90)
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "invalid dec parameter, must be -90-90")
		return streamRequest{}, false
	}
	lat, ok := floatParam(r, "lat", transform.RadToDeg(h.config.Site.LatRad), -90, 90)
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "invalid lat parameter, must be -90-90")
		return streamRequest{}, false
	}
	lon, ok := floatParam(r, "lon", transform.RadToDeg(h.config.Site.LonRad), -180, 360)
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "invalid lon parameter, must be -180-360")
		return streamRequest{}, false
	}

	interval := h.config.DefaultInterval
	if v := q.Get("interval"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 60 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid interval parameter, must be 1-60")
			return streamRequest{}, false
		}
		interval = time.Duration(n) * time.Second
	}

	return streamRequest{
		target: transform.DirectionFromSpherical(transform.FrameEquatorial,
			transform.DegToRad(ra), transform.DegToRad(dec)),
		raDeg:    ra,
		decDeg:   dec,
		site:     transform.NewSite(lat, lon),
		interval: interval,
	}, true
}

// HandleMosaic serves the SSE mosaic stream.
// GET /api/v1/stream/mosaic?ra=83.8&dec=-5.4&lat=48.1&lon=11.6&interval=5
func (h *Handler) HandleMosaic(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	// Rate limiting: enforce concurrent stream limit per IP.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if err := h.limiter.acquire(ip); err != nil {
		metrics.IncStreamErrors(limitReason(err))
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
			"error", err,
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, err.Error())
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"ra_deg", req.raDeg,
		"dec_deg", req.decDeg,
		"interval_seconds", req.interval.Seconds(),
	)

	defer func() {
		h.limiter.release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's default WriteTimeout for this connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		logger:  h.logger,
	}

	// Jittered retry interval (3-7s) spreads reconnects after a restart.
	retryMs := 3000 + rand.Intn(4000)
	fmt.Fprintf(w, "retry: %d\n\n", retryMs)
	flusher.Flush()

	meta := metadataMessage{
		Type:    "metadata",
		Enabled: h.source.Enabled(),
		Frame:   h.source.Frame().String(),
		Config:  h.source.Config(),
		Site: sitePayload{
			LatDeg: transform.RadToDeg(req.site.LatRad),
			LonDeg: transform.RadToDeg(req.site.LonRad),
		},
		Target:   targetPayload{RADeg: req.raDeg, DecDeg: req.decDeg},
		Interval: int(req.interval.Seconds()),
	}
	if err := c.sendMetadata(meta); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	send := func(t time.Time) bool {
		if err := c.sendFrame(h.frameAt(t, req)); err != nil {
			metrics.IncStreamErrors("send_error")
			h.logger.Warn("stream send error", "remote_ip", ip, "frames_sent", c.framesSent, "error", err)
			return false
		}
		return true
	}

	// The first frame goes out immediately.
	if !send(h.now()) {
		return
	}

	ticker := time.NewTicker(req.interval)
	defer ticker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if !send(h.now()) {
				return
			}
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// frameAt lays the grid out around the target in the source's frame at t.
// For an alt-az mount the layout moves against the sky from frame to frame.
func (h *Handler) frameAt(t time.Time, req streamRequest) frameMessage {
	center := transform.Convert(req.target, h.source.Frame(), req.site, t)
	return buildFrameMessage(t, center, req.site, h.source.Panels(center))
}

// buildFrameMessage reports every panel in both frames at t. center and the
// panels may be in either frame.
func buildFrameMessage(t time.Time, center transform.Direction, site transform.Site, panels []mosaic.Panel) frameMessage {
	look := func(d transform.Direction) lookPayload {
		h := transform.Convert(d, transform.FrameHorizontal, site, t).Vec
		return lookPayload{
			AzDeg:  transform.RadToDeg(transform.CompassAzimuth(h)),
			AltDeg: transform.RadToDeg(transform.Altitude(h)),
		}
	}

	out := make([]panelPayload, len(panels))
	for k, p := range panels {
		ra, dec := transform.Convert(p.Center, transform.FrameEquatorial, site, t).Spherical()
		l := look(p.Center)
		out[k] = panelPayload{
			I:      p.IndexX,
			J:      p.IndexY,
			RADeg:  transform.RadToDeg(ra),
			DecDeg: transform.RadToDeg(dec),
			AzDeg:  l.AzDeg,
			AltDeg: l.AltDeg,
		}
	}

	return frameMessage{
		Type:   "mosaic_frame",
		T:      t.UTC().Format(time.RFC3339),
		Frame:  center.Frame.String(),
		LSTDeg: transform.RadToDeg(transform.LocalSiderealTime(t, site.LonRad)),
		Center: look(center),
		Panels: out,
	}
}

// SSE message payload types.

type metadataMessage struct {
	Type     string        `json:"type"`
	Enabled  bool          `json:"enabled"`
	Frame    string        `json:"frame"`
	Config   mosaic.Config `json:"config"`
	Site     sitePayload   `json:"site"`
	Target   targetPayload `json:"target"`
	Interval int           `json:"interval_seconds"`
}

type sitePayload struct {
	LatDeg float64 `json:"lat_deg"`
	LonDeg float64 `json:"lon_deg"`
}

type targetPayload struct {
	RADeg  float64 `json:"ra_deg"`
	DecDeg float64 `json:"dec_deg"`
}

type lookPayload struct {
	AzDeg  float64 `json:"az_deg"`
	AltDeg float64 `json:"alt_deg"`
}

type frameMessage struct {
	Type   string         `json:"type"`
	T      string         `json:"t"`
	Frame  string         `json:"frame"`
	LSTDeg float64        `json:"lst_deg"`
	Center lookPayload    `json:"center"`
	Panels []panelPayload `json:"panels"`
}

type panelPayload struct {
	I      int     `json:"i"`
	J      int     `json:"j"`
	RADeg  float64 `json:"ra_deg"`
	DecDeg float64 `json:"dec_deg"`
	AzDeg  float64 `json:"az_deg"`
	AltDeg float64 `json:"alt_deg"`
}
