package repository

import (
	"context"
	"time"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
)

// ItemRepository puerto de persistencia del catálogo de artículos.
type ItemRepository interface {
	// Get devuelve nil, nil si el artículo no existe.
	Get(ctx context.Context, tenantID, itemID string) (*entity.Item, error)
	ListActive(ctx context.Context, tenantID string) ([]*entity.Item, error)
	Save(ctx context.Context, item *entity.Item) error
}

// PolicyHistoryRepository historial de cambios de política de reposición.
type PolicyHistoryRepository interface {
	Record(ctx context.Context, change *entity.PolicyChange) error
	// ListBetween cambios con changedAt en [from, to], ordenados.
	ListBetween(ctx context.Context, tenantID, itemID string, from, to time.Time) ([]*entity.PolicyChange, error)
	// LastBefore último cambio con changedAt <= t; nil si no hay.
	LastBefore(ctx context.Context, tenantID, itemID string, t time.Time) (*entity.PolicyChange, error)
}
