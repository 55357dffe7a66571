package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/notifyhub/notification-dispatcher/internal/api/handler"
	apimw "github.com/notifyhub/notification-dispatcher/internal/api/middleware"
	"github.com/notifyhub/notification-dispatcher/internal/dispatch"
	"github.com/notifyhub/notification-dispatcher/internal/metrics"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
// The Prometheus scrape endpoint is not here — it binds its own port.
func NewRouter(svc *dispatch.Service, m *metrics.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))
	r.Use(apimw.RequestDuration(m.HTTPRequestDuration))

	nh := handler.NewNotificationHandler(svc, logger)
	hh := handler.NewHealthHandler()

	r.Get("/health", hh.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/notifications", nh.Create)
		r.Get("/notifications", nh.List)
		r.Delete("/notifications/{id}", nh.Cancel)
	})

	return r
}
