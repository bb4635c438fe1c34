package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/cloudvps-cz/CloudVPS/internal/pkg/payment"
)

// HandleAPIInitializePayment opens a gateway payment session for an existing
// order and returns the redirect URL for the customer's browser.
//
// @Summary     Initialize a payment
// @Tags        payments
// @Accept      json
// @Produce     json
// @Param       payment body payment.InitializePaymentInput true "Payment payload"
// @Success     200 {object} map[string]interface{}
// @Router      /api/v1/payments [post]
func HandleAPIInitializePayment(c *fiber.Ctx) error {
	var in payment.InitializePaymentInput
	if err := c.BodyParser(&in); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(in); err != nil {
		return jsonError(c, fiber.StatusBadRequest, validationMessage(err))
	}

	session, err := paymentService.InitializePayment(c.Context(), in)
	if err != nil {
		if strings.HasPrefix(err.Error(), "unknown payment gateway") {
			return jsonError(c, fiber.StatusBadRequest, err.Error())
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "unknown correlation id")
		}
		return upstreamError(c, "payment initialization failed", err)
	}

	return jsonSuccess(c, session)
}

// HandleAPIPaymentStatus resolves a payment by its reference id, cache first
// with a database fallback.
//
// @Summary     Payment status
// @Tags        payments
// @Produce     json
// @Param       referenceId path string true "Gateway reference id"
// @Success     200 {object} map[string]interface{}
// @Router      /api/v1/payments/{referenceId} [get]
func HandleAPIPaymentStatus(c *fiber.Ctx) error {
	referenceID := strings.TrimSpace(c.Params("referenceId"))
	if referenceID == "" {
		return jsonError(c, fiber.StatusBadRequest, "referenceId is required")
	}

	out, err := paymentService.PaymentStatus(c.Context(), referenceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "unknown payment reference")
		}
		return upstreamError(c, "payment status lookup failed", err)
	}

	return jsonSuccess(c, out)
}

// HandleAPIInvoiceStatus proxies the invoice status query to the billing
// system.
//
// @Summary     Invoice status
// @Tags        invoices
// @Produce     json
// @Param       id path string true "Billing invoice id"
// @Success     200 {object} map[string]interface{}
// @Router      /api/v1/invoices/{id}/status [get]
func HandleAPIInvoiceStatus(c *fiber.Ctx) error {
	invoiceID := strings.TrimSpace(c.Params("id"))
	if invoiceID == "" {
		return jsonError(c, fiber.StatusBadRequest, "invoice id is required")
	}

	status, err := paymentService.InvoiceStatus(c.Context(), invoiceID)
	if err != nil {
		return upstreamError(c, "invoice status lookup failed", err)
	}

	return jsonSuccess(c, status)
}
