package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/cloudvps-cz/CloudVPS/app/models"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/database"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/env"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/mail"
	metrics "github.com/cloudvps-cz/CloudVPS/internal/pkg/metrics/counter"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/payment"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/usercontext"
)

// HandleAPICreateOrder accepts a storefront order, provisions the billing
// client and order and answers with the new correlation id.
//
// @Summary     Create an order
// @Description Maps store products to billing products, finds or creates the billing client and places the order.
// @Tags        orders
// @Accept      json
// @Produce     json
// @Param       order body payment.StartOrderInput true "Order payload"
// @Success     200 {object} map[string]interface{}
// @Router      /api/v1/orders [post]
func HandleAPICreateOrder(c *fiber.Ctx) error {
	var in payment.StartOrderInput
	if err := c.BodyParser(&in); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(in); err != nil {
		return jsonError(c, fiber.StatusBadRequest, validationMessage(err))
	}
	in.UserID = usercontext.GetUserID(c)

	out, err := paymentService.StartOrder(c.Context(), in)
	if err != nil {
		if strings.HasPrefix(err.Error(), "unknown product") {
			return jsonError(c, fiber.StatusNotFound, err.Error())
		}
		return upstreamError(c, "order creation failed", err)
	}

	for _, line := range in.Items {
		var mapping models.ProductMapping
		if derr := database.GetDB().
			Where("store_product_id = ?", line.StoreProductID).
			First(&mapping).Error; derr == nil {
			if cerr := metrics.AddProductOrder(mapping.ID); cerr != nil {
				log.Debugf("[API] product order counter failed: %v", cerr)
			}
		}
	}

	if merr := mail.SendOrderConfirmation(in.Email, out.OrderID, out.InvoiceID, out.Total, out.Currency); merr != nil {
		log.Warnf("[API] order confirmation mail for %s failed: %v", out.OrderID, merr)
	}

	return jsonSuccess(c, out)
}

// upstreamError maps a billing/gateway failure to the generic 500 envelope.
// The raw upstream error only leaks in dev mode.
func upstreamError(c *fiber.Ctx, message string, err error) error {
	log.Errorf("[API] %s: %v", message, err)
	if env.IsDev() {
		return jsonError(c, fiber.StatusInternalServerError, message+": "+err.Error())
	}
	return jsonError(c, fiber.StatusInternalServerError, message)
}
