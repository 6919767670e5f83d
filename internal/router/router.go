package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/designhub-api/internal/config"
	"github.com/noah-isme/designhub-api/internal/handler"
	"github.com/noah-isme/designhub-api/internal/middleware"
	"github.com/noah-isme/designhub-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	TaskHandler          *handler.TaskHandler
	SolutionHandler      *handler.SolutionHandler
	AdminSolutionHandler *handler.AdminSolutionHandler
	ProfileHandler       *handler.ProfileHandler
	NotificationHandler  *handler.NotificationHandler
	BattleHandler        *handler.BattleHandler
	MentorHandler        *handler.MentorHandler
	HealthProbes         []handler.HealthProbe
	// JWTMiddleware rejects anonymous callers; OptionalJWTMiddleware only decodes a token when present.
	JWTMiddleware         fiber.Handler
	OptionalJWTMiddleware fiber.Handler
	SubmitRateLimit       fiber.Handler
	ExposeMetrics         bool
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))
	if deps.ExposeMetrics {
		app.Get("/metrics", observability.MetricsHandler())
	}

	noop := func(c *fiber.Ctx) error { return c.Next() }
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = noop
	}
	optionalJWT := deps.OptionalJWTMiddleware
	if optionalJWT == nil {
		optionalJWT = noop
	}

	admin := api.Group("/admin", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleMentor, middleware.AuthRoleAdmin))
	adminOnly := middleware.RequireRole(middleware.AuthRoleAdmin)

	// Tasks and their solutions. Solution routes accept a userId fallback for unauthenticated clients.
	if deps.TaskHandler != nil {
		deps.TaskHandler.Register(api.Group("/tasks", optionalJWT))
		deps.TaskHandler.RegisterAdmin(admin.Group("/tasks", adminOnly))
	}
	if deps.SolutionHandler != nil {
		solutions := api.Group("/tasks/:taskId/solutions", optionalJWT)
		if deps.SubmitRateLimit != nil {
			deps.SolutionHandler.Register(solutions, deps.SubmitRateLimit)
		} else {
			deps.SolutionHandler.Register(solutions)
		}
	}
	if deps.AdminSolutionHandler != nil {
		deps.AdminSolutionHandler.Register(admin.Group("/solutions"), adminOnly)
	}

	if deps.ProfileHandler != nil {
		deps.ProfileHandler.Register(api.Group("/profile", jwtMiddleware))
		deps.ProfileHandler.RegisterAdmin(admin.Group("/profiles", adminOnly))
	}

	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(api.Group("/notifications", jwtMiddleware))
	}

	// Battles: reads are public, writes need a caller, moderation needs a mentor or admin.
	if deps.BattleHandler != nil {
		deps.BattleHandler.RegisterPublic(api.Group("/battles"))
		deps.BattleHandler.Register(api.Group("/battles", jwtMiddleware))
		deps.BattleHandler.RegisterAdmin(admin.Group("/battles"))
	}

	if deps.MentorHandler != nil {
		deps.MentorHandler.Register(api.Group("/mentors", jwtMiddleware))
		deps.MentorHandler.RegisterBookings(api.Group("/bookings", jwtMiddleware))
	}
}
