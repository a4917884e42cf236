package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/brainboost-api/internal/config"
	"github.com/noah-isme/brainboost-api/internal/handler"
	"github.com/noah-isme/brainboost-api/internal/middleware"
	"github.com/noah-isme/brainboost-api/internal/observability"
)

// InstructorRoles may use the authoring endpoints.
var InstructorRoles = []string{"instructor", "admin", "teacher"}

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	CatalogHandler     *handler.CatalogHandler
	EnrollmentHandler  *handler.EnrollmentHandler
	ProgressHandler    *handler.ProgressHandler
	QuizHandler        *handler.QuizHandler
	RewardHandler      *handler.RewardHandler
	StreakHandler      *handler.StreakHandler
	CertificateHandler *handler.CertificateHandler
	DashboardHandler   *handler.DashboardHandler
	ActivityHandler    *handler.ActivityHandler
	HealthChecks       map[string]handler.HealthCheckFunc
	JWTMiddleware      fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	// Health is registered ahead of the authenticated group so it stays public.
	app.Get("/api/v1/health", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	}, handler.HealthCheck(cfg, deps.HealthChecks))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	}, jwtMiddleware)
	admin := api.Group("/admin", middleware.RequireRole(InstructorRoles...))

	if deps.CatalogHandler != nil {
		deps.CatalogHandler.Register(api)
		deps.CatalogHandler.RegisterAdmin(admin)
	}
	if deps.EnrollmentHandler != nil {
		deps.EnrollmentHandler.Register(api)
	}
	if deps.ProgressHandler != nil {
		deps.ProgressHandler.Register(api)
	}
	if deps.CertificateHandler != nil {
		deps.CertificateHandler.Register(api)
	}
	if deps.QuizHandler != nil {
		deps.QuizHandler.Register(api, middleware.RateLimit("quiz_submit", cfg.QuizSubmitRateLimit, time.Second))
		deps.QuizHandler.RegisterAdmin(admin)
	}
	if deps.RewardHandler != nil {
		deps.RewardHandler.Register(api)
		deps.RewardHandler.RegisterAdmin(admin)
	}
	if deps.StreakHandler != nil {
		deps.StreakHandler.Register(api)
	}
	if deps.DashboardHandler != nil {
		deps.DashboardHandler.Register(api)
	}
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.RegisterAdmin(admin)
	}
}
