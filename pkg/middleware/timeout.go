package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/lets-connect/channel-search/pkg/logger"
)

// Timeout cancels the request context after timeout and answers 504 if the
// handler has not started writing by then. Writes after the deadline are
// discarded with http.ErrHandlerTimeout.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			done := make(chan struct{})
			tw := &timeoutWriter{ResponseWriter: w, header: make(http.Header)}
			go func() {
				defer close(done)
				next.ServeHTTP(tw, r.WithContext(ctx))
			}()
			select {
			case <-done:
			case <-ctx.Done():
				tw.mu.Lock()
				defer tw.mu.Unlock()
				tw.timedOut = true
				if !tw.written {
					logger.FromContext(ctx).Warn("request timed out", "method", r.Method, "path", r.URL.Path, "timeout", timeout)
					writeError(w, http.StatusGatewayTimeout, "request timeout")
				}
			}
		})
	}
}

type timeoutWriter struct {
	http.ResponseWriter
	header   http.Header
	mu       sync.Mutex
	written  bool
	timedOut bool
}

// Header returns a private header map; it is copied to the real writer on
// the first write so the timeout path never races with the handler.
func (tw *timeoutWriter) Header() http.Header {
	return tw.header
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.written {
		return
	}
	tw.flushHeader()
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !tw.written {
		tw.flushHeader()
	}
	return tw.ResponseWriter.Write(b)
}

func (tw *timeoutWriter) flushHeader() {
	tw.written = true
	dst := tw.ResponseWriter.Header()
	for k, v := range tw.header {
		dst[k] = v
	}
}
