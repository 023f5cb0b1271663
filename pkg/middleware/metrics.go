// Package middleware provides reusable HTTP middleware for request IDs, CORS,
// rate limiting, Prometheus metrics, and request timeouts.
package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lets-connect/channel-search/pkg/metrics"
)

// Chain wraps h with mws so that mws[0] is the outermost handler.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Metrics returns middleware that records HTTP request count, latency, and
// in-flight gauge.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			duration := time.Since(start).Seconds()
			path := normalizePath(r.URL.Path)

			m.HTTPRequestsTotal.WithLabelValues(
				r.Method,
				path,
				strconv.Itoa(sw.status),
			).Inc()

			m.HTTPRequestDuration.WithLabelValues(
				r.Method,
				path,
			).Observe(duration)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.wroteHeader {
		sw.wroteHeader = true
	}
	return sw.ResponseWriter.Write(b)
}

const channelsPrefix = "/api/v1/channels/"

// channelRoutes are the fixed segments under /api/v1/channels/; anything
// else in that position is a channel ID.
var channelRoutes = map[string]bool{
	"search":      true,
	"suggestions": true,
	"categories":  true,
	"countries":   true,
	"languages":   true,
	"stats":       true,
	"trending":    true,
}

// normalizePath collapses channel IDs so label cardinality stays bounded.
func normalizePath(path string) string {
	rest, ok := strings.CutPrefix(path, channelsPrefix)
	if !ok || rest == "" {
		return path
	}
	id, tail, _ := strings.Cut(rest, "/")
	if channelRoutes[id] && tail == "" {
		return path
	}
	if tail == "" {
		return channelsPrefix + "{id}"
	}
	return channelsPrefix + "{id}/" + tail
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
