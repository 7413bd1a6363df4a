// Package httputil holds the small HTTP helpers shared by the API and the
// stream handlers.
package httputil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the client IP address from the request.
// When trustProxy is true, the first X-Forwarded-For entry and then X-Real-IP
// are consulted before RemoteAddr; header values that do not parse as an IP
// are skipped. Only enable trustProxy behind a trusted reverse proxy.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := parseIP(first); ip != "" {
				return ip
			}
		}
		if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	return hostOnly(r.RemoteAddr)
}

// parseIP returns the canonical form of s, which may carry a port, or "" if
// s is not an IP address.
func parseIP(s string) string {
	s = hostOnly(strings.TrimSpace(s))
	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}
	return ip.String()
}

func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
