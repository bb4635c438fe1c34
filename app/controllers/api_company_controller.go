package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/cloudvps-cz/CloudVPS/internal/pkg/ares"
)

// HandleAPICompanyLookup resolves a Czech company by its 8-digit ICO against
// the ARES registry. A malformed ICO fails before any network call.
//
// @Summary     Company lookup
// @Tags        company
// @Produce     json
// @Param       ico path string true "8-digit company registration number"
// @Success     200 {object} map[string]interface{}
// @Router      /api/v1/company/{ico} [get]
func HandleAPICompanyLookup(c *fiber.Ctx) error {
	ico := strings.TrimSpace(c.Params("ico"))

	company, err := aresClient.Lookup(c.Context(), ico)
	if err != nil {
		if errors.Is(err, ares.ErrInvalidICO) {
			return jsonError(c, fiber.StatusBadRequest, err.Error())
		}
		if errors.Is(err, ares.ErrNotFound) {
			return jsonError(c, fiber.StatusNotFound, "company not found")
		}
		return upstreamError(c, "company lookup failed", err)
	}

	return jsonSuccess(c, company)
}
