package http

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/dto"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
)

// SnapshotHandler fotos de inventario.
type SnapshotHandler struct {
	ops Operations
}

func NewSnapshotHandler(ops Operations) *SnapshotHandler {
	return &SnapshotHandler{ops: ops}
}

// Take POST /api/snapshots
func (h *SnapshotHandler) Take(c *fiber.Ctx) error {
	var in dto.SnapshotRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badBody(c)
		}
	}
	s, err := h.ops.Snapshot(c.Context(), GetTenantID(c), entity.SnapshotTrigger(in.Trigger))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(s)
}

// Latest GET /api/snapshots/latest
func (h *SnapshotHandler) Latest(c *fiber.Ctx) error {
	s, err := h.ops.LatestSnapshot(c.Context(), GetTenantID(c))
	if err != nil {
		return writeError(c, err)
	}
	if s == nil {
		return writeError(c, fmt.Errorf("%w: el hotel no tiene fotos", domain.ErrNotFound))
	}
	return c.JSON(s)
}

// List GET /api/snapshots?from=&to=&limit=&offset= (por defecto últimos 7 días)
func (h *SnapshotHandler) List(c *fiber.Ctx) error {
	from, to, err := timeRange(c, 7*24*time.Hour)
	if err != nil {
		return writeError(c, err)
	}
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return badBody(c)
	}
	list, err := h.ops.ListSnapshots(c.Context(), GetTenantID(c), from, to)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.Page(list, page))
}
