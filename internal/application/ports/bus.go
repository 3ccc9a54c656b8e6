package ports

import (
	"context"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
)

// TriggerBus publica cruces de umbral para que otras instancias del motor reaccionen.
type TriggerBus interface {
	PublishThreshold(ctx context.Context, evt entity.ThresholdEvent) error
}

// NopBus bus vacío para despliegues de un solo proceso.
type NopBus struct{}

func (NopBus) PublishThreshold(context.Context, entity.ThresholdEvent) error { return nil }
