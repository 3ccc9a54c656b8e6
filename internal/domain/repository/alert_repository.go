package repository

import (
	"context"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
)

// AlertFilter filtros de consulta de alertas.
type AlertFilter struct {
	ItemID   string
	Priority entity.AlertPriority
	State    entity.AlertState
	OpenOnly bool
	Limit    int
}

// AlertRepository puerto de persistencia de alertas. Garantiza a lo sumo una alerta abierta por artículo.
type AlertRepository interface {
	// Create domain.ErrConflict si ya hay una alerta abierta para el artículo.
	Create(ctx context.Context, a *entity.Alert) error
	// Get nil, nil si no existe.
	Get(ctx context.Context, tenantID, alertID string) (*entity.Alert, error)
	// GetOpenByItem nil, nil si no hay alerta abierta.
	GetOpenByItem(ctx context.Context, tenantID, itemID string) (*entity.Alert, error)
	// Update escritura condicional sobre (estado, versión); incrementa a.Version.
	// domain.ErrConflict si otro escritor ganó.
	Update(ctx context.Context, a *entity.Alert, expectedState entity.AlertState, expectedVersion int64) error
	// AppendNotification registra una entrega confirmada; no cambia estado ni versión.
	AppendNotification(ctx context.Context, tenantID, alertID string, e entity.NotificationLogEntry) error
	List(ctx context.Context, tenantID string, f AlertFilter) ([]*entity.Alert, error)
}
