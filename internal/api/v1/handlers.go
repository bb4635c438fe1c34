package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/cloudvps-cz/CloudVPS/app/controllers"
)

// Pong is the ping response payload.
type Pong struct {
	Ping string `json:"ping"`
}

// APIServer implements the public v1 API surface
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// PostOrder creates a billing order from a storefront cart.
func (s *APIServer) PostOrder(c *fiber.Ctx) error {
	return controllers.HandleAPICreateOrder(c)
}

// PostPayment opens a gateway payment session for an existing order.
func (s *APIServer) PostPayment(c *fiber.Ctx) error {
	return controllers.HandleAPIInitializePayment(c)
}

// GetPaymentStatus resolves a payment by reference id.
func (s *APIServer) GetPaymentStatus(c *fiber.Ctx) error {
	return controllers.HandleAPIPaymentStatus(c)
}

// GetInvoiceStatus proxies the billing invoice status.
func (s *APIServer) GetInvoiceStatus(c *fiber.Ctx) error {
	return controllers.HandleAPIInvoiceStatus(c)
}

// GetCompany resolves a company record from the business registry.
func (s *APIServer) GetCompany(c *fiber.Ctx) error {
	return controllers.HandleAPICompanyLookup(c)
}

// RegisterHandlers attaches the v1 routes to the given router group.
func RegisterHandlers(router fiber.Router, s *APIServer) {
	router.Get("/ping", s.GetPing)
	router.Post("/orders", s.PostOrder)
	router.Post("/payments", s.PostPayment)
	router.Get("/payments/:referenceId", s.GetPaymentStatus)
	router.Get("/invoices/:id/status", s.GetInvoiceStatus)
	router.Get("/company/:ico", s.GetCompany)
}
