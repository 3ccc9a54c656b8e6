package http

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/dto"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
)

// InventoryHandler catálogo y libro de movimientos.
type InventoryHandler struct {
	ops Operations
}

func NewInventoryHandler(ops Operations) *InventoryHandler {
	return &InventoryHandler{ops: ops}
}

func policyFromDTO(p dto.PolicyDTO) entity.ReorderPolicy {
	return entity.ReorderPolicy{
		ReorderPoint:       p.ReorderPoint,
		ReorderQuantity:    p.ReorderQuantity,
		MaxStock:           p.MaxStock,
		LeadTimeDays:       p.LeadTimeDays,
		AutoReorderEnabled: p.AutoReorderEnabled,
	}
}

// SaveItem PUT /api/items/:id
func (h *InventoryHandler) SaveItem(c *fiber.Ctx) error {
	var in dto.UpsertItemRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	item := &entity.Item{
		TenantID:          GetTenantID(c),
		ItemID:            c.Params("id"),
		Name:              in.Name,
		Category:          in.Category,
		UnitMeasure:       in.UnitMeasure,
		Cost:              in.Cost,
		PreferredSupplier: in.PreferredSupplier,
		Policy:            policyFromDTO(in.Policy),
		Active:            in.Active == nil || *in.Active,
	}
	if err := h.ops.SaveItem(c.Context(), item); err != nil {
		return writeError(c, err)
	}
	return c.JSON(item)
}

// UpdatePolicy PUT /api/items/:id/policy
func (h *InventoryHandler) UpdatePolicy(c *fiber.Ctx) error {
	var in dto.PolicyDTO
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	item, err := h.ops.UpdatePolicy(c.Context(), GetTenantID(c), c.Params("id"), policyFromDTO(in), GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(item)
}

// Append POST /api/items/:id/entries
//
// 201 con el saldo resultante; 200 con duplicate=true si la clave de idempotencia ya existía.
func (h *InventoryHandler) Append(c *fiber.Ctx) error {
	var in dto.AppendEntryRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	entry, err := entryFromRequest(GetTenantID(c), c.Params("id"), GetUserID(c), in)
	if err != nil {
		return writeError(c, err)
	}
	res, err := h.ops.Append(c.Context(), entry)
	if err != nil {
		return writeError(c, err)
	}
	out := dto.AppendEntryResponse{
		Seq:                 res.Seq,
		OnHand:              res.OnHand,
		WeightedAverageCost: res.Projection.WeightedAverageCost,
		Duplicate:           res.Duplicate,
	}
	if res.Duplicate {
		return c.Status(fiber.StatusOK).JSON(out)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

func entryFromRequest(tenantID, itemID, actorID string, in dto.AppendEntryRequest) (*entity.LedgerEntry, error) {
	e := &entity.LedgerEntry{
		TenantID:  tenantID,
		ItemID:    itemID,
		Type:      entity.EntryType(in.Type),
		Quantity:  in.Quantity,
		UnitCost:  decimal.Zero,
		ActorID:   actorID,
		Reference: entity.Reference{Kind: in.ReferenceType, ID: in.ReferenceID},
		Location:  entity.Location{From: in.LocationFrom, To: in.LocationTo},
		Metadata:  map[string]string{},
	}
	if in.UnitCost != nil {
		e.UnitCost = *in.UnitCost
	}
	if in.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, in.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: timestamp debe ser RFC3339", domain.ErrInvalidInput)
		}
		e.Timestamp = ts.UTC()
	}
	for k, v := range in.Metadata {
		e.Metadata[k] = v
	}
	if in.IdempotencyKey != "" {
		e.Metadata[entity.MetaIdempotencyKey] = in.IdempotencyKey
	}
	if in.AllowNegative {
		e.Metadata[entity.MetaAllowNegative] = "true"
	}
	return e, nil
}

// History GET /api/items/:id/entries?from=&to=&limit=&offset= (RFC3339; por defecto últimos 30 días)
func (h *InventoryHandler) History(c *fiber.Ctx) error {
	from, to, err := timeRange(c, 30*24*time.Hour)
	if err != nil {
		return writeError(c, err)
	}
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return badBody(c)
	}
	entries, err := h.ops.History(c.Context(), GetTenantID(c), c.Params("id"), from, to)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.Page(entries, page))
}

// GetProjection GET /api/items/:id/projection
func (h *InventoryHandler) GetProjection(c *fiber.Ctx) error {
	p, err := h.ops.GetProjection(c.Context(), GetTenantID(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(p)
}

// Refold POST /api/items/:id/refold
func (h *InventoryHandler) Refold(c *fiber.Ctx) error {
	p, err := h.ops.Refold(c.Context(), GetTenantID(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(p)
}

// timeRange lee from/to de la query; sin valores usa (ahora-def, ahora].
func timeRange(c *fiber.Ctx, def time.Duration) (time.Time, time.Time, error) {
	to := time.Now().UTC()
	if s := c.Query("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: to debe ser RFC3339", domain.ErrInvalidInput)
		}
		to = t.UTC()
	}
	from := to.Add(-def)
	if s := c.Query("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: from debe ser RFC3339", domain.ErrInvalidInput)
		}
		from = t.UTC()
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from posterior a to", domain.ErrInvalidInput)
	}
	return from, to, nil
}
