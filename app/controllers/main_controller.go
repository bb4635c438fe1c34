package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sujit-baniya/flash"

	"github.com/cloudvps-cz/CloudVPS/app/models"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/database"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/env"
	metrics "github.com/cloudvps-cz/CloudVPS/internal/pkg/metrics/counter"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/session"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/statistics"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/usercontext"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/utils"
)

// HandleStart renders the storefront home page with the active product list.
func HandleStart(c *fiber.Ctx) error {
	var products []models.ProductMapping
	if err := database.GetDB().Where("is_active = ?", true).Order("store_product_id").Find(&products).Error; err != nil {
		log.Errorf("[Main] loading products failed: %v", err)
	}

	for _, p := range products {
		if err := metrics.AddProductView(p.ID); err != nil {
			log.Debugf("[Main] product view counter failed: %v", err)
		}
	}

	return c.Render("home", fiber.Map{
		"Title":         "CloudVPS Hosting",
		"FromProtected": isLoggedIn(c),
		"Flash":         flash.Get(c),
		"Products":      products,
		"Stats":         statistics.GetStatisticsData(),
		"IsDev":         env.IsDev(),
	}, "layouts/main")
}

// HandleCheckout renders the checkout form for one product.
func HandleCheckout(c *fiber.Ctx) error {
	storeProductID := c.Query("product")

	var product models.ProductMapping
	if storeProductID != "" {
		if err := database.GetDB().
			Where("store_product_id = ? AND is_active = ?", storeProductID, true).
			First(&product).Error; err != nil {
			fm := fiber.Map{"type": "error", "message": "Unknown product"}
			return flash.WithError(c, fm).Redirect("/")
		}
	}

	return c.Render("checkout", fiber.Map{
		"Title":         "Checkout",
		"FromProtected": isLoggedIn(c),
		"Flash":         flash.Get(c),
		"Product":       product,
		"Email":         session.GetSessionValue(c, USER_EMAIL),
	}, "layouts/main")
}

// HandleDashboard renders the customer dashboard.
func HandleDashboard(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var lifecycles []models.InvoiceLifecycle
	if userCtx.UserID > 0 {
		if err := database.GetDB().
			Where("user_id = ?", userCtx.UserID).
			Order("id DESC").Limit(20).
			Find(&lifecycles).Error; err != nil {
			log.Errorf("[Main] loading invoice lifecycles failed: %v", err)
		}
	}

	return c.Render("dashboard", fiber.Map{
		"Title":         "Dashboard",
		"FromProtected": true,
		"Flash":         flash.Get(c),
		"Username":      userCtx.Username,
		"AvatarURL":     utils.GetGravatarURL(session.GetSessionValue(c, USER_EMAIL), 80),
		"Invoices":      lifecycles,
	}, "layouts/main")
}

// HandlePaymentReturn is the browser return URL after a gateway redirect. It
// resolves the payment by reference id from cache/DB and renders the result.
func HandlePaymentReturn(c *fiber.Ctx) error {
	referenceID := c.Query("refId")
	if referenceID == "" {
		fm := fiber.Map{"type": "error", "message": "Missing payment reference"}
		return flash.WithError(c, fm).Redirect("/")
	}

	status, err := paymentService.PaymentStatus(c.Context(), referenceID)
	if err != nil {
		return c.Render("payment_result", fiber.Map{
			"Title":         "Payment",
			"FromProtected": isLoggedIn(c),
			"Found":         false,
			"ReferenceID":   referenceID,
		}, "layouts/main")
	}

	return c.Render("payment_result", fiber.Map{
		"Title":         "Payment",
		"FromProtected": isLoggedIn(c),
		"Found":         true,
		"Status":        status,
	}, "layouts/main")
}
