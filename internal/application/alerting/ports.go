package alerting

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/forecasting"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
)

// ProjectionReader saldo al día de un artículo.
type ProjectionReader interface {
	GetProjection(ctx context.Context, tenantID, itemID string) (*entity.StockProjection, error)
}

// DemandSource consumo promedio y cobertura (forecasting.Forecaster).
type DemandSource interface {
	DemandStats(ctx context.Context, tenantID, itemID string, onHand decimal.Decimal) (forecasting.DemandStats, error)
}

// NotificationSink recibe las notificaciones ya durables (notification.Dispatcher).
type NotificationSink interface {
	Submit(ctx context.Context, req entity.NotificationRequest) error
}
