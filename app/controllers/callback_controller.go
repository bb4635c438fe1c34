package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/cloudvps-cz/CloudVPS/internal/pkg/gateway"
)

// HandleGatewayCallback receives asynchronous payment notifications. ComGate
// pushes a form-encoded body (or query parameters on redirect pings), PayU a
// JSON notify. Redeliveries are absorbed by the webhook event table, so the
// gateway always gets its expected acknowledgement back.
func HandleGatewayCallback(c *fiber.Ctx) error {
	gatewayName := strings.ToLower(c.Params("gateway"))

	raw := c.Body()
	if len(raw) == 0 {
		raw = c.Request().URI().QueryString()
	}

	tx, err := paymentService.HandleCallback(c.Context(), gatewayName, raw)
	if err != nil {
		if strings.HasPrefix(err.Error(), "unknown payment gateway") {
			return jsonError(c, fiber.StatusNotFound, err.Error())
		}
		if errors.Is(err, gateway.ErrMissingTransactionID) {
			return jsonError(c, fiber.StatusBadRequest, "callback is missing the transaction id")
		}
		log.Errorf("[Callback] %s processing failed: %v", gatewayName, err)
		return jsonError(c, fiber.StatusInternalServerError, "callback processing failed")
	}

	log.Infof("[Callback] %s transaction %s -> %s", tx.Gateway, tx.TransactionID, tx.Status)

	return gatewayAck(c, gatewayName)
}

// gatewayAck answers in the format each gateway polls for.
func gatewayAck(c *fiber.Ctx, gatewayName string) error {
	switch gatewayName {
	case "comgate":
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString("code=0&message=OK")
	default:
		return c.JSON(fiber.Map{"status": "OK"})
	}
}
