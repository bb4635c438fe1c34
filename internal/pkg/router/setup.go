package router

import (
	"github.com/gofiber/fiber/v2"
)

// Router is one installable route set.
type Router interface {
	InstallRouter(app *fiber.App)
}

func InstallRouter(app *fiber.App) {
	// Install HttpRouter first to initialize session store, oauth providers,
	// and the global UserContext middleware. Then register API routes which
	// depend on that middleware.
	setup(app, NewHttpRouter(), NewApiRouter())
}

// InstallProxyRouter wires the payment middleware surface only: the key
// protected proxy API plus the public gateway callback endpoints.
func InstallProxyRouter(app *fiber.App) {
	setup(app, NewProxyRouter())
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
