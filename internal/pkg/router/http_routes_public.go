package router

import (
	"github.com/cloudvps-cz/CloudVPS/app/controllers"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Account activation from the emailed link
	app.Get("/activate/:token", loggedInMiddleware, controllers.HandleUserActivate)

	// Browser return from the payment gateway
	app.Get("/payment/return", loggedInMiddleware, controllers.HandlePaymentReturn)

	// Auth
	app.Post("/logout", middleware.RequireAuth, controllers.HandleAuthLogout)

	// Social OAuth
	app.Get("/auth/:provider", gothfiber.BeginAuthHandler)
	app.Get("/auth/:provider/callback", controllers.HandleOAuthCallback)

	// Gateway server-to-server notifications (no CSRF, verified per gateway
	// in the adapter)
	app.Post("/callback/:gateway", controllers.HandleGatewayCallback)
	app.Get("/callback/:gateway", controllers.HandleGatewayCallback)
}
