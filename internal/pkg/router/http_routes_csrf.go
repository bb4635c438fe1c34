package router

import (
	"strings"
	"time"

	"github.com/cloudvps-cz/CloudVPS/app/controllers"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/constants"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/env"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"
)

func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	csrfConf := csrf.Config{
		KeyLookup:      "form:_csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/") || strings.HasPrefix(c.Path(), "/callback/")
		},
	}

	group := app.Group("", cors.New(), csrf.New(csrfConf))
	group.Get(constants.PublicRoute, loggedInMiddleware, controllers.HandleStart)
	group.Get(constants.LoginRoute, loggedInMiddleware, controllers.HandleAuthLogin)
	group.Post(constants.LoginRoute, loggedInMiddleware, controllers.HandleAuthLogin)
	group.Get(constants.RegisterRoute, loggedInMiddleware, controllers.HandleAuthRegister)
	group.Post(constants.RegisterRoute, loggedInMiddleware, controllers.HandleAuthRegister)
	group.Get(constants.CheckoutRoute, loggedInMiddleware, controllers.HandleCheckout)
	group.Get("/dashboard", middleware.RequireAuth, controllers.HandleDashboard)
	group.Get(constants.InvoicesRoute, middleware.RequireAuth, controllers.HandleDashboard)
}
