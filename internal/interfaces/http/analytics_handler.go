package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/dto"
)

// AnalyticsHandler pronósticos y anomalías de consumo.
type AnalyticsHandler struct {
	ops Operations
}

func NewAnalyticsHandler(ops Operations) *AnalyticsHandler {
	return &AnalyticsHandler{ops: ops}
}

// Forecast GET /api/items/:id/forecast?horizon=30&confidence=0.95
func (h *AnalyticsHandler) Forecast(c *fiber.Ctx) error {
	horizon := c.QueryInt("horizon", 30)
	confidence := 0.95
	if s := c.Query("confidence"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 || v >= 1 {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_INPUT", Message: "confidence debe estar en (0, 1)"})
		}
		confidence = v
	}
	f, err := h.ops.Forecast(c.Context(), GetTenantID(c), c.Params("id"), horizon, confidence)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(f)
}

// Anomalies GET /api/anomalies?limit=&offset=
func (h *AnalyticsHandler) Anomalies(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return badBody(c)
	}
	list, err := h.ops.DetectAnomalies(c.Context(), GetTenantID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.Page(list, page))
}
