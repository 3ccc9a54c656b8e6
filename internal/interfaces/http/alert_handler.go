package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/dto"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/repository"
)

// AlertHandler alertas de reposición y sus transiciones.
type AlertHandler struct {
	ops Operations
}

func NewAlertHandler(ops Operations) *AlertHandler {
	return &AlertHandler{ops: ops}
}

// List GET /api/alerts?item_id=&priority=&state=&open_only=&limit=&offset=
func (h *AlertHandler) List(c *fiber.Ctx) error {
	var in dto.AlertListRequest
	if err := c.QueryParser(&in); err != nil {
		return badBody(c)
	}
	alerts, err := h.ops.ListAlerts(c.Context(), GetTenantID(c), repository.AlertFilter{
		ItemID:   in.ItemID,
		Priority: entity.AlertPriority(in.Priority),
		State:    entity.AlertState(in.State),
		OpenOnly: in.OpenOnly,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.Page(alerts, in.PageRequest))
}

// Evaluate POST /api/alerts/evaluate corre el evaluador del hotel ahora.
func (h *AlertHandler) Evaluate(c *fiber.Ctx) error {
	if err := h.ops.Evaluate(c.Context(), GetTenantID(c)); err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message": "evaluación ejecutada"})
}

// Ack POST /api/alerts/:id/ack
func (h *AlertHandler) Ack(c *fiber.Ctx) error {
	a, err := h.ops.AckAlert(c.Context(), GetTenantID(c), c.Params("id"), GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(a)
}

// Resolve POST /api/alerts/:id/resolve
func (h *AlertHandler) Resolve(c *fiber.Ctx) error {
	a, err := h.ops.ResolveAlert(c.Context(), GetTenantID(c), c.Params("id"), GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(a)
}

// Dismiss POST /api/alerts/:id/dismiss
func (h *AlertHandler) Dismiss(c *fiber.Ctx) error {
	var in dto.DismissAlertRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	a, err := h.ops.DismissAlert(c.Context(), GetTenantID(c), c.Params("id"), GetUserID(c), in.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(a)
}
