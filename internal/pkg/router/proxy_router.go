package router

import (
	"github.com/cloudvps-cz/CloudVPS/app/controllers"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// ProxyRouter is the standalone payment middleware surface. Billing systems
// call the key protected /proxy/v1 endpoints; payment gateways push their
// notifications to /callback without a key.
type ProxyRouter struct {
}

func (h ProxyRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Gateway server-to-server notifications
	app.Post("/callback/:gateway", controllers.HandleGatewayCallback)
	app.Get("/callback/:gateway", controllers.HandleGatewayCallback)

	proxy := app.Group("/proxy/v1", limiter.New(), middleware.ProxyKeyAuthMiddleware())
	proxy.Post("/orders", controllers.HandleAPICreateOrder)
	proxy.Post("/payments", controllers.HandleAPIInitializePayment)
	proxy.Get("/payments/:referenceId", controllers.HandleAPIPaymentStatus)
	proxy.Post("/invoices/mark-paid", controllers.HandleProxyMarkInvoicePaid)
	proxy.Get("/invoices/:id/status", controllers.HandleAPIInvoiceStatus)
	proxy.Get("/company/:ico", controllers.HandleAPICompanyLookup)
	proxy.Post("/clients/auth", controllers.HandleProxyAuthClient)
	proxy.Post("/clients/payment-method", controllers.HandleProxyUpdatePaymentMethod)
}

func NewProxyRouter() *ProxyRouter {
	return &ProxyRouter{}
}
