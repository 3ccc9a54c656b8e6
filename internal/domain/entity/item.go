package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
)

// ReorderPolicy parámetros de reposición de un artículo.
type ReorderPolicy struct {
	ReorderPoint       decimal.Decimal `json:"reorderPoint"`
	ReorderQuantity    decimal.Decimal `json:"reorderQuantity"`
	MaxStock           decimal.Decimal `json:"maxStock"`
	LeadTimeDays       int             `json:"leadTimeDays"`
	AutoReorderEnabled bool            `json:"autoReorderEnabled"`
}

// Validate aplica las reglas: reorderPoint <= maxStock y reorderQuantity >= 1 si hay auto-reposición.
func (p ReorderPolicy) Validate() error {
	if p.ReorderPoint.IsNegative() || p.MaxStock.IsNegative() || p.ReorderQuantity.IsNegative() {
		return fmt.Errorf("%w: la política no admite valores negativos", domain.ErrInvalidInput)
	}
	if p.ReorderPoint.GreaterThan(p.MaxStock) {
		return fmt.Errorf("%w: reorderPoint mayor que maxStock", domain.ErrInvalidInput)
	}
	if p.AutoReorderEnabled && p.ReorderQuantity.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: reorderQuantity debe ser al menos 1", domain.ErrInvalidInput)
	}
	if p.LeadTimeDays < 0 {
		return fmt.Errorf("%w: leadTimeDays negativo", domain.ErrInvalidInput)
	}
	return nil
}

// Item artículo de inventario de un hotel (amenidades, lencería, minibar...).
// Cost es el costo de referencia; el costo promedio vive en la proyección.
type Item struct {
	TenantID          string          `json:"tenantId"`
	ItemID            string          `json:"itemId"`
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	UnitMeasure       string          `json:"unitMeasure,omitempty"`
	Cost              decimal.Decimal `json:"cost"`
	PreferredSupplier string          `json:"preferredSupplier,omitempty"` // handle del proveedor en el directorio
	Policy            ReorderPolicy   `json:"policy"`
	Active            bool            `json:"active"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// PolicyChange registro de un cambio de política; permite atribuir pronósticos a la política vigente.
type PolicyChange struct {
	TenantID  string        `json:"tenantId"`
	ItemID    string        `json:"itemId"`
	Before    ReorderPolicy `json:"before"`
	After     ReorderPolicy `json:"after"`
	ChangedBy string        `json:"changedBy"`
	ChangedAt time.Time     `json:"changedAt"`
}
