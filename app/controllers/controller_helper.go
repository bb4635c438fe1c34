package controllers

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/cloudvps-cz/CloudVPS/internal/pkg/ares"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/hostbill"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/payment"
)

// Shared session/Locals keys
const (
	AUTH_KEY            string = "authenticated"
	USER_ID             string = "user_id"
	USER_NAME           string = "username"
	USER_IS_ADMIN       string = "isAdmin"
	USER_EMAIL          string = "user_email"
	USER_BILLING_CLIENT string = "billing_client_id"
	FROM_PROTECTED      string = "from_protected"
)

var (
	paymentService *payment.Service
	aresClient     *ares.Client
	billingClient  *hostbill.Client
	validate       = validator.New()
)

// SetPaymentService injects the payment service used by the order, payment
// and callback handlers. Called once at startup.
func SetPaymentService(svc *payment.Service) {
	paymentService = svc
}

// SetAresClient injects the business-registry client. Called once at startup.
func SetAresClient(c *ares.Client) {
	aresClient = c
}

// SetBillingClient injects the raw billing client used by the proxy-only
// endpoints that bypass the payment service. Called once at startup.
func SetBillingClient(c *hostbill.Client) {
	billingClient = c
}

func isLoggedIn(c *fiber.Ctx) bool {
	var fromProtected bool
	if protectedValue := c.Locals(FROM_PROTECTED); protectedValue != nil {
		fromProtected = protectedValue.(bool)
	}

	return fromProtected
}

// ExtractUsername gets the username from Locals (set by middleware)
func ExtractUsername(c *fiber.Ctx) string {
	if userNameValue := c.Locals(USER_NAME); userNameValue != nil {
		if userName, ok := userNameValue.(string); ok {
			return userName
		}
	}

	return ""
}

// jsonSuccess wraps response data in the uniform success envelope.
func jsonSuccess(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// jsonError answers with the uniform error envelope. The response is never a
// hybrid of success and error fields.
func jsonError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// validationMessage flattens validator errors into one client-readable line.
func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return "invalid request body"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+" failed on "+fe.Tag())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
