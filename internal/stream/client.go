package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/star/mosaicplanner/internal/metrics"
)

// writeTimeout bounds each individual write on a long-lived stream.
const writeTimeout = 30 * time.Second

// client writes the metadata and frame messages of one mosaic stream.
type client struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	ip      string
	logger  *slog.Logger

	framesSent int
	bytesSent  int64
	lastFrame  time.Time
}

// sendMetadata opens the stream with the planner state and observing site.
func (c *client) sendMetadata(meta metadataMessage) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return c.writeEvent(data)
}

// sendFrame writes one mosaic frame. A frame that cannot be encoded is
// dropped and counted; only write failures end the stream.
func (c *client) sendFrame(frame frameMessage) error {
	data, err := json.Marshal(frame)
	if err != nil {
		metrics.IncStreamErrors("marshal_error")
		c.logger.Warn("dropping mosaic frame", "remote_ip", c.ip, "t", frame.T, "error", err)
		return nil
	}
	if err := c.writeEvent(data); err != nil {
		return fmt.Errorf("frame %d: %w", c.framesSent+1, err)
	}
	c.framesSent++
	c.lastFrame = time.Now()
	return nil
}

// writeEvent writes data as a single "data: ...\n\n" event.
func (c *client) writeEvent(data []byte) error {
	c.extendDeadline()

	n, err := fmt.Fprintf(c.w, "data: %s\n\n", data)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.flusher.Flush()
	c.bytesSent += int64(n)
	metrics.IncStreamMessages()
	metrics.AddStreamBytes(int64(n))
	return nil
}

// sendKeepalive writes an SSE comment so idle proxies keep the connection.
func (c *client) sendKeepalive() error {
	c.extendDeadline()

	n, err := fmt.Fprint(c.w, ":\n\n")
	if err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}
	c.flusher.Flush()
	c.bytesSent += int64(n)
	metrics.AddStreamBytes(int64(n))
	return nil
}

func (c *client) extendDeadline() {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.logger.Debug("could not set write deadline", "remote_ip", c.ip, "error", err)
	}
}
