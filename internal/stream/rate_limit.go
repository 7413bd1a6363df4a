package stream

import (
	"errors"
	"sync"
)

// Stream caps applied when the configuration leaves them unset.
const (
	defaultMaxPerIP = 10
	defaultMaxTotal = 1000
)

var (
	errPerIPLimit = errors.New("too many concurrent streams from this address")
	errTotalLimit = errors.New("too many concurrent streams")
)

// streamLimiter counts open mosaic streams per client address and overall.
type streamLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

func newStreamLimiter(maxPerIP, maxTotal int) *streamLimiter {
	if maxPerIP <= 0 {
		maxPerIP = defaultMaxPerIP
	}
	if maxTotal <= 0 {
		maxTotal = defaultMaxTotal
	}
	return &streamLimiter{
		perIP:    make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: maxTotal,
	}
}

// acquire reserves a stream slot for ip. It returns errTotalLimit or
// errPerIPLimit when the corresponding cap is reached.
func (l *streamLimiter) acquire(ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.total >= l.maxTotal:
		return errTotalLimit
	case l.perIP[ip] >= l.maxPerIP:
		return errPerIPLimit
	}
	l.perIP[ip]++
	l.total++
	return nil
}

// release returns a slot taken by acquire. Unknown addresses are ignored.
func (l *streamLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.perIP[ip]
	if n <= 0 {
		return
	}
	if n == 1 {
		delete(l.perIP, ip)
	} else {
		l.perIP[ip] = n - 1
	}
	l.total--
}

func (l *streamLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[ip]
}

func (l *streamLimiter) active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// limitReason is the stream error metric label for a limiter error.
func limitReason(err error) string {
	if errors.Is(err, errTotalLimit) {
		return "limit_total"
	}
	return "limit_per_ip"
}
