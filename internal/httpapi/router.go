// Package httpapi exposes the access layer as a JSON REST API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"secretsManagement/internal/access"
	"secretsManagement/internal/metrics"
)

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the REST endpoints.
type Handler struct {
	svc    *access.Service
	store  Pinger
	logger *zap.Logger
}

// NewRouter builds the chi router. m and logger may be nil.
func NewRouter(svc *access.Service, store Pinger, m *metrics.Metrics, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{svc: svc, store: store, logger: logger}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(instrument(m))
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	r.Get("/health", h.health)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api", func(api chi.Router) {
		api.With(optionalBasicAuth).Post("/users", h.createUser)
		api.Post("/auth/login", h.login)

		api.Group(func(authed chi.Router) {
			authed.Use(requireBasicAuth)
			authed.Get("/users", h.listUsers)
			authed.Get("/audit_logs", h.listAuditLogs)
			authed.Get("/statistics", h.statistics)

			authed.Route("/secrets", func(sr chi.Router) {
				sr.Post("/", h.createSecret)
				sr.Get("/", h.listSecrets)
				sr.Get("/search", h.searchSecrets)
				sr.Get("/{id}", h.getSecret)
				sr.Put("/{id}", h.updateSecret)
				sr.Delete("/{id}", h.deleteSecret)
			})
		})
	})

	return r
}
