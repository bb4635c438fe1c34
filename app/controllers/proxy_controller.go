package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/cloudvps-cz/CloudVPS/app/models"
	"github.com/cloudvps-cz/CloudVPS/app/repository"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/database"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/mail"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/payment"
)

// HandleProxyMarkInvoicePaid is the middleware entry point for marking a
// billing invoice paid. The call is forwarded to the billing system and the
// answered invoice status reflects the payment. Repeating the call records a
// second payment on the billing side; both calls answer with success.
//
// @Summary     Mark an invoice paid
// @Tags        proxy
// @Accept      json
// @Produce     json
// @Param       payment body payment.MarkPaidRequest true "Payment details"
// @Success     200 {object} map[string]interface{}
// @Security    ApiKeyAuth
// @Router      /proxy/v1/invoices/mark-paid [post]
func HandleProxyMarkInvoicePaid(c *fiber.Ctx) error {
	var in payment.MarkPaidRequest
	if err := c.BodyParser(&in); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(in); err != nil {
		return jsonError(c, fiber.StatusBadRequest, validationMessage(err))
	}

	status, err := paymentService.MarkInvoicePaid(c.Context(), in)
	if err != nil {
		return upstreamError(c, "mark-paid call failed", err)
	}

	notifyPaymentReceipt(in)

	return jsonSuccess(c, status)
}

// UpdatePaymentMethodRequest switches the payment module on a billing client.
type UpdatePaymentMethodRequest struct {
	ClientID      string `json:"clientId" validate:"required"`
	PaymentModule string `json:"paymentModule" validate:"required"`
}

// HandleProxyUpdatePaymentMethod stores a new default payment module on the
// billing client, so future invoices are issued against the right gateway.
//
// @Summary     Update a client's payment method
// @Tags        proxy
// @Accept      json
// @Produce     json
// @Param       update body UpdatePaymentMethodRequest true "Client and module"
// @Success     200 {object} map[string]interface{}
// @Security    ApiKeyAuth
// @Router      /proxy/v1/clients/payment-method [post]
func HandleProxyUpdatePaymentMethod(c *fiber.Ctx) error {
	var in UpdatePaymentMethodRequest
	if err := c.BodyParser(&in); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(in); err != nil {
		return jsonError(c, fiber.StatusBadRequest, validationMessage(err))
	}

	if err := billingClient.UpdatePaymentMethod(c.Context(), in.ClientID, in.PaymentModule); err != nil {
		return upstreamError(c, "payment method update failed", err)
	}

	return jsonSuccess(c, fiber.Map{
		"clientId":      in.ClientID,
		"paymentModule": in.PaymentModule,
	})
}

// AuthClientRequest carries billing credentials to verify.
type AuthClientRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleProxyAuthClient verifies a credential pair against the billing
// system. The billing API answers rejected credentials with an error, so any
// upstream failure here reads as unauthorized.
//
// @Summary     Verify billing client credentials
// @Tags        proxy
// @Accept      json
// @Produce     json
// @Param       credentials body AuthClientRequest true "Billing credentials"
// @Success     200 {object} map[string]interface{}
// @Security    ApiKeyAuth
// @Router      /proxy/v1/clients/auth [post]
func HandleProxyAuthClient(c *fiber.Ctx) error {
	var in AuthClientRequest
	if err := c.BodyParser(&in); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(in); err != nil {
		return jsonError(c, fiber.StatusBadRequest, validationMessage(err))
	}

	account, err := billingClient.AuthClient(c.Context(), in.Email, in.Password)
	if err != nil {
		log.Warnf("[Proxy] billing auth for %s failed: %v", in.Email, err)
		return jsonError(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	return jsonSuccess(c, account)
}

// notifyPaymentReceipt mails the customer linked to the invoice, when one
// exists. Failures only log; the mark-paid result stands on its own.
func notifyPaymentReceipt(in payment.MarkPaidRequest) {
	db := database.GetDB()
	if db == nil {
		return
	}
	var lifecycle models.InvoiceLifecycle
	if err := db.Where("invoice_id = ?", in.InvoiceID).First(&lifecycle).Error; err != nil {
		return
	}
	if lifecycle.UserID == 0 {
		return
	}

	user, err := repository.GetGlobalRepositories().User.GetByID(lifecycle.UserID)
	if err != nil {
		return
	}

	if merr := mail.SendPaymentReceipt(user.Email, in.InvoiceID, in.Amount, in.Currency); merr != nil {
		log.Warnf("[Proxy] payment receipt mail for invoice %s failed: %v", in.InvoiceID, merr)
	}
}
