package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
)

// NewApp builds the Fiber app with the shared middleware stack.
func NewApp(log zerolog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "workblix",
		DisableStartupMessage: true,
		BodyLimit:             8 * 1024 * 1024,
	})
	app.Use(requestid.New())
	app.Use(recover.New())
	app.Use(RequestLogger(log))
	return app
}

// Register wires all HTTP routes onto app.
func Register(app *fiber.App, h *Handler, health *HealthHandler, authMW fiber.Handler) {
	app.Get("/health", health.Health)
	app.Get("/ready", health.Ready)

	app.Post("/webhooks/stripe", h.StripeWebhook)

	v1 := app.Group("/api/v1")
	v1.Get("/templates", h.Templates)
	v1.Post("/cv/generate", h.Generate)

	v1.Post("/cv/export", authMW, h.Export)
	v1.Get("/profile", authMW, h.GetProfile)
	v1.Put("/profile", authMW, h.PutProfile)
	v1.Get("/usage", authMW, h.Usage)
	v1.Post("/billing/create-checkout-session", authMW, h.CreateCheckoutSession)
	v1.Post("/billing/create-portal-session", authMW, h.CreatePortalSession)
}
