// Package health serves the liveness and readiness checks.
package health

import (
	"net/http"
	"sync/atomic"
)

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Readiness tracks whether the service can answer planning requests. It
// becomes ready once settings and equipment have been loaded.
type Readiness struct {
	ready  atomic.Bool
	reason atomic.Value // string
}

// NewReadiness returns a tracker that is not ready yet.
func NewReadiness() *Readiness {
	r := &Readiness{}
	r.reason.Store("starting")
	return r
}

// SetReady marks the service ready.
func (rd *Readiness) SetReady() {
	rd.ready.Store(true)
	rd.reason.Store("")
}

// SetNotReady marks the service not ready for the given reason.
func (rd *Readiness) SetNotReady(reason string) {
	rd.reason.Store(reason)
	rd.ready.Store(false)
}

// Ready reports readiness and, when not ready, why.
func (rd *Readiness) Ready() (bool, string) {
	reason, _ := rd.reason.Load().(string)
	return rd.ready.Load(), reason
}

// Handler returns 200 "ready\n" when ready and 503 with the reason otherwise.
func (rd *Readiness) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if ok, reason := rd.Ready(); !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready: " + reason + "\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready\n"))
}
