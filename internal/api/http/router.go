package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/jobcard-service/internal/api/http/handlers"
	"github.com/spec-kit/jobcard-service/internal/auth"
	"github.com/spec-kit/jobcard-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	ErrorPage      *handlers.ErrorPageHandler
	Wireframes     *handlers.WireframesHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	Roles          *handlers.RolesHandler
	Templates      *handlers.TemplatesHandler
	JobCards       *handlers.JobCardsHandler
	AuthMiddleware *auth.AuthMiddleware
	Policy         *auth.Policy
	RateLimiter    *RateLimiter
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	limit := cfg.RateLimiter.Handler()

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	app.Get("/", func(c *fiber.Ctx) error { return c.Redirect("/wireframes/") })
	app.Get("/error", cfg.ErrorPage.Show)

	wf := app.Group("/wireframes")
	wf.Get("/", cfg.Wireframes.Index)
	wf.Get("/register", cfg.Wireframes.RegisterForm)
	wf.Post("/register", limit, cfg.Wireframes.Register)
	wf.Get("/verify-email", cfg.Wireframes.VerifyForm)
	wf.Post("/verify-email", limit, cfg.Wireframes.VerifyEmail)
	wf.Post("/resend-verification", limit, cfg.Wireframes.ResendVerification)

	api := app.Group("/api/v1")
	api.Post("/auth/login", limit, cfg.Auth.Login)
	api.Post("/auth/logout", cfg.Auth.Logout)

	protected := api.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/auth/me", auth.RequireAuthenticated(), cfg.Auth.Me)

	can := func(resource, action string) fiber.Handler {
		return auth.RequirePermission(cfg.Policy, resource, action)
	}

	users := protected.Group("/users", auth.RequireRole(domain.RoleAdmin, domain.RoleSupervisor))
	users.Get("/", can(auth.ResourceUserManagement, auth.ActionRead), cfg.Users.List)
	users.Get("/:id", can(auth.ResourceUserManagement, auth.ActionRead), cfg.Users.Get)
	users.Post("/:id/approve", can(auth.ResourceUserManagement, auth.ActionUpdate), cfg.Users.Approve)
	users.Post("/:id/reject", can(auth.ResourceUserManagement, auth.ActionUpdate), cfg.Users.Reject)
	users.Post("/:id/suspend", can(auth.ResourceUserManagement, auth.ActionUpdate), cfg.Users.Suspend)
	users.Post("/:id/reactivate", can(auth.ResourceUserManagement, auth.ActionUpdate), cfg.Users.Reactivate)
	users.Delete("/:id", can(auth.ResourceUserManagement, auth.ActionDelete), cfg.Users.Delete)
	users.Put("/:id/roles/:roleId", can(auth.ResourceUserManagement, auth.ActionUpdate), cfg.Users.AssignRole)
	users.Delete("/:id/roles/:roleId", can(auth.ResourceUserManagement, auth.ActionUpdate), cfg.Users.RevokeRole)

	roles := protected.Group("/roles", auth.RequireRole(domain.RoleAdmin, domain.RoleSupervisor))
	roles.Get("/", can(auth.ResourceUserManagement, auth.ActionRead), cfg.Roles.List)
	roles.Post("/", auth.RequireRole(domain.RoleAdmin), cfg.Roles.Create)

	templates := protected.Group("/templates")
	templates.Get("/", can(auth.ResourceJobTemplate, auth.ActionRead), cfg.Templates.List)
	templates.Get("/:id", can(auth.ResourceJobTemplate, auth.ActionRead), cfg.Templates.Get)
	templates.Post("/", can(auth.ResourceJobTemplate, auth.ActionCreate), cfg.Templates.Create)

	cards := protected.Group("/job-cards")
	read := can(auth.ResourceJobCard, auth.ActionRead)
	update := can(auth.ResourceJobCard, auth.ActionUpdate)
	cards.Get("/", read, cfg.JobCards.List)
	cards.Get("/search", read, cfg.JobCards.Search)
	cards.Get("/overdue", read, cfg.JobCards.Overdue)
	cards.Get("/stats", read, cfg.JobCards.Stats)
	cards.Get("/my/active", read, cfg.JobCards.MyActive)
	cards.Get("/number/:jobNumber", read, cfg.JobCards.GetByNumber)
	cards.Post("/", can(auth.ResourceJobCard, auth.ActionCreate), cfg.JobCards.Create)
	cards.Get("/:id", read, cfg.JobCards.Get)
	cards.Put("/:id", update, cfg.JobCards.Update)
	cards.Delete("/:id", can(auth.ResourceJobCard, auth.ActionDelete), cfg.JobCards.Delete)
	cards.Post("/:id/start", update, cfg.JobCards.Start)
	cards.Post("/:id/complete", update, cfg.JobCards.Complete)
	cards.Post("/:id/cancel", update, cfg.JobCards.Cancel)
	cards.Post("/:id/status", update, cfg.JobCards.ChangeStatus)
	cards.Post("/:id/assign", auth.RequireRole(domain.RoleAdmin, domain.RoleSupervisor), cfg.JobCards.Assign)
	cards.Post("/:id/unassign", auth.RequireRole(domain.RoleAdmin, domain.RoleSupervisor), cfg.JobCards.Unassign)
	cards.Get("/:id/history", read, cfg.JobCards.History)
	cards.Get("/:id/assignments", read, cfg.JobCards.Assignments)
}
