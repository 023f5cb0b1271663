package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/lets-connect/channel-search/pkg/errors"
	"github.com/lets-connect/channel-search/pkg/logger"
	"github.com/lets-connect/channel-search/pkg/ratelimit"
)

// RateLimit returns middleware that enforces a per-client-IP token bucket.
// Health endpoints are exempt.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(max(1, int(limiter.Window().Seconds())))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			if !limiter.Allow(ip) {
				logger.FromContext(r.Context()).Debug("rate limited", "client_ip", ip, "path", r.URL.Path)
				w.Header().Set("Retry-After", retryAfter)
				writeError(w, apperrors.HTTPStatusCode(apperrors.ErrRateLimited), apperrors.ErrRateLimited.Error())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, then the connection's
// remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
