package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Sand004/enterprise-rag-system/internal/api/handlers"
	"github.com/Sand004/enterprise-rag-system/internal/api/middleware"
)

type RouterConfig struct {
	SearchHandler *handlers.SearchHandler
	EventsHandler *handlers.EventsHandler
	HealthHandler *handlers.HealthHandler
	APIKey        string
	Logger        *logrus.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	health := cfg.HealthHandler
	if health == nil {
		health = handlers.NewHealthHandler(nil)
	}
	r.Get("/health", health.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKey))

		r.Post("/search", cfg.SearchHandler.Search)
		r.Post("/events", cfg.EventsHandler.Create)
	})

	return r
}
