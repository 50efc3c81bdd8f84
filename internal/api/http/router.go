package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/lead-dispatch/internal/api/http/handlers"
	"github.com/spec-kit/lead-dispatch/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Dispatch       *handlers.DispatchHandler
	AuthMiddleware *auth.AuthMiddleware
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.MetricsHandler != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.MetricsHandler))
	}

	v1 := app.Group("/v1", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())

	prospects := v1.Group("/prospects")
	prospects.Post("/:id/dispatch", auth.RequireOperator(), cfg.Dispatch.Dispatch)
	prospects.Post("/:id/accept", auth.RequireBroker(), cfg.Dispatch.Accept)
	prospects.Get("/:id/assignments", cfg.Dispatch.History)

	v1.Post("/assignments/:id/expire", auth.RequireOperator(), cfg.Dispatch.ForceExpire)
	v1.Get("/brokers/:id/stats", cfg.Dispatch.BrokerStats)
}
