package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/astro-gateway/internal/api/http/handlers"
	"github.com/spec-kit/astro-gateway/internal/auth"
	"github.com/spec-kit/astro-gateway/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Session *handlers.SessionHandler
	Pages   *handlers.PageHandler
	Guard   *auth.GuardMiddleware
	Metrics *observability.Metrics
}

// RegisterRoutes wires HTTP routes. Only page routes pass through the guard.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	sessionGroup := app.Group("/api/session")
	sessionGroup.Get("", cfg.Session.Get)
	sessionGroup.Post("/sync", cfg.Session.Sync)
	sessionGroup.Put("/subscriptions", cfg.Session.UpdateSubscriptions)
	sessionGroup.Post("/logout", cfg.Session.Logout)

	app.Get("/*", cfg.Guard.Handle, cfg.Pages.Serve)
}
