package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// RequestDuration returns a middleware observing every request's duration
// into the given histogram, labelled by method, route pattern, and status.
// The chi route pattern (e.g. "/api/v1/notifications/{id}") is used instead
// of the raw path to keep label cardinality bounded.
func RequestDuration(hist *prometheus.HistogramVec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					path = pattern
				}
			}

			hist.WithLabelValues(
				r.Method,
				path,
				strconv.Itoa(wrapped.status),
			).Observe(time.Since(start).Seconds())
		})
	}
}
