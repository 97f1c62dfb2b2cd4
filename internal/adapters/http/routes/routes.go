package routes

import (
	"sacco-console/internal/adapters/http/handlers"
	"sacco-console/internal/adapters/http/middleware"
	"sacco-console/internal/adapters/http/visitor"
	"sacco-console/internal/config"
	"sacco-console/internal/core/domain"
	"sacco-console/internal/core/services"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/swagger"
)

// Dependencies are what the routes need from main
type Dependencies struct {
	Config       *config.Config
	Registry     *visitor.Registry
	Sessions     *fibersession.Store
	Policy       *services.AccessPolicy
	StorageCheck func() error
}

// Setup configures all routes for the application
func Setup(app *fiber.App, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler(deps.StorageCheck)
	authHandler := handlers.NewAuthHandler(deps.Config)
	systemHandler := handlers.NewSystemHandler()
	sessionHandler := handlers.NewSessionHandler()
	dashboardHandler := handlers.NewDashboardHandler()
	notificationHandler := handlers.NewNotificationHandler()
	unlockHandler := handlers.NewUnlockHandler()

	// ============================================================
	// Routes without a visitor
	// ============================================================
	app.Get("/health", healthHandler.HealthCheck)
	if deps.Config.IsDev() {
		app.Get("/swagger/*", swagger.HandlerDefault)
	}

	// ============================================================
	// Every route below runs for an identified visitor, behind the
	// status gate and the auth guard
	// ============================================================
	app.Use(
		middleware.NoStore(),
		middleware.Visitor(deps.Sessions, deps.Registry),
		middleware.StatusGate(deps.Policy),
		middleware.AuthGuard(deps.Policy),
	)

	app.Get("/", systemHandler.Root)
	app.Get("/unauthorized", systemHandler.Unauthorized)
	app.Get("/api/session", sessionHandler.Session)

	// Onboarding
	app.Get("/onboarding", systemHandler.Onboarding)
	app.Post("/onboarding", middleware.StrictRateLimiter(), systemHandler.Initialize)
	app.Post("/system/status/retry", systemHandler.RetryStatus)

	// Login flow
	app.Get("/login", authHandler.LoginPage)
	app.Post("/login", middleware.AuthRateLimiter(), authHandler.Login)
	app.Get("/login/otp", authHandler.OTPPage)
	app.Post("/login/otp/request", middleware.AuthRateLimiter(), authHandler.RequestOTP)
	app.Post("/login/otp/verify", middleware.AuthRateLimiter(), authHandler.VerifyOTP)
	app.Post("/login/abandon", authHandler.Abandon)
	app.Get("/change-password", authHandler.ChangePasswordPage)
	app.Post("/change-password", middleware.StrictRateLimiter(), authHandler.ChangePassword)
	app.Post("/logout", authHandler.Logout)

	// ============================================================
	// Dashboard (protected by the auth guard)
	// ============================================================
	dashboard := app.Group(services.DashboardPath)
	dashboard.Get("/", dashboardHandler.Dashboard)
	dashboard.Put("/profile", authHandler.UpdateProfile)

	notifications := dashboard.Group("/notifications")
	notifications.Get("/", notificationHandler.List)
	notifications.Get("/unread-count", notificationHandler.UnreadCount)
	notifications.Patch("/read-all", notificationHandler.MarkAllRead)
	notifications.Patch("/:id/read", notificationHandler.MarkRead)

	security := dashboard.Group("/security", middleware.RoleGuard(domain.Administrators...))
	security.Get("/locked-accounts", unlockHandler.LockedAccounts)
	security.Post("/locked-accounts/:userId/unlock", middleware.StrictRateLimiter(), unlockHandler.Unlock)

	for _, spec := range services.Catalogue {
		registerResource(dashboard, spec)
	}
}

// registerResource mounts the CRUD routes of one catalogue entry. Readers
// may list and view; writes and workflow actions need their own roles.
func registerResource(dashboard fiber.Router, spec services.ResourceSpec) {
	h := handlers.NewResourceHandler(spec)
	group := dashboard.Group("/"+spec.Name, middleware.RoleGuard(spec.Read...))
	write := middleware.RoleGuard(spec.Write...)

	group.Get("/", h.List)
	group.Post("/", write, h.Create)
	group.Get("/:id", h.Get)
	group.Put("/:id", write, h.Update)
	group.Delete("/:id", write, h.Delete)

	for action, roles := range spec.Actions {
		group.Patch("/:id/"+action, middleware.RoleGuard(roles...), h.Action(action))
	}
}
