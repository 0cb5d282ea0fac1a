package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/conecta-ies/solicitation-service/internal/api/http/handlers"
	"github.com/conecta-ies/solicitation-service/internal/auth"
	"github.com/conecta-ies/solicitation-service/internal/realtime"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Solicitations  *handlers.SolicitationsHandler
	AuthMiddleware *auth.AuthMiddleware
	Hub            *realtime.Hub
	Logger         *zap.Logger
	UploadsDir     string
}

// RegisterRoutes wires HTTP routes under the /api prefix, the websocket
// endpoint and the static uploads directory.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.UploadsDir != "" {
		app.Static("/uploads", cfg.UploadsDir)
	}

	app.Use("/ws", realtime.UpgradeRequired)
	app.Get("/ws", realtime.Handler(cfg.Hub, cfg.Logger))

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	solicitations := api.Group("/solicitations", cfg.AuthMiddleware.Handle)
	solicitations.Post("/", cfg.Solicitations.Create)
	solicitations.Get("/mine", cfg.Solicitations.ListMine)
	solicitations.Get("/admin/new", auth.RequireAdmin(), cfg.Solicitations.ListNew)
	solicitations.Get("/admin/resolved", auth.RequireAdmin(), cfg.Solicitations.ListResolved)
	solicitations.Get("/:id", cfg.Solicitations.Get)
	solicitations.Get("/:id/history", cfg.Solicitations.History)
	solicitations.Post("/:id/comments", cfg.Solicitations.AddComment)
	solicitations.Patch("/:id/resolve", cfg.Solicitations.Resolve)
	solicitations.Patch("/:id/assign", auth.RequireAdmin(), cfg.Solicitations.Assign)
	solicitations.Post("/:id/first-response", auth.RequireAdmin(), cfg.Solicitations.FirstResponse)
}
