package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/dto"
)

// DashboardHandler tablero del operador.
type DashboardHandler struct {
	ops Operations
}

// NewDashboardHandler construye el handler.
func NewDashboardHandler(ops Operations) *DashboardHandler {
	return &DashboardHandler{ops: ops}
}

// GetSummary devuelve alertas abiertas, última foto y riesgos de quiebre del hotel.
// GET /api/dashboard/summary
func (h *DashboardHandler) GetSummary(c *fiber.Ctx) error {
	summary, err := h.ops.Summary(c.Context(), GetTenantID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(summary)
}

// FailedNotifications GET /api/notifications/failed?limit=&offset=
func (h *DashboardHandler) FailedNotifications(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return badBody(c)
	}
	page.DefaultPage()
	// el registro de fallos se lee sólo hasta el final de la página pedida
	list, err := h.ops.FailedNotifications(c.Context(), GetTenantID(c), page.Offset+page.Limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.Page(list, page))
}
