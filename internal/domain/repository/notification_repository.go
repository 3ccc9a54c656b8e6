package repository

import (
	"context"
	"time"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
)

// NotificationTaskRepository cola persistente de entregas.
type NotificationTaskRepository interface {
	// Reserve inserta la tarea si su clave no existe. created=false si ya estaba.
	Reserve(ctx context.Context, t *entity.NotificationTask) (created bool, err error)
	// Get nil, nil si no existe.
	Get(ctx context.Context, key string) (*entity.NotificationTask, error)
	// Update escritura condicional sobre la versión; incrementa t.Version. domain.ErrConflict si perdió.
	Update(ctx context.Context, t *entity.NotificationTask, expectedVersion int64) error
	// ListDue PENDING/RETRYING con nextAttemptAt <= now, ordenadas por creación.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*entity.NotificationTask, error)
	ListByAlert(ctx context.Context, tenantID, alertID string) ([]*entity.NotificationTask, error)
	// ListStale SENDING con updatedAt < before (envíos abandonados).
	ListStale(ctx context.Context, before time.Time) ([]*entity.NotificationTask, error)
	ListFailed(ctx context.Context, tenantID string, limit int) ([]*entity.NotificationTask, error)
}

// RecipientDirectory resuelve destinatarios por rol (operadores, supplier:{handle}).
type RecipientDirectory interface {
	Resolve(ctx context.Context, tenantID, role string) ([]entity.Recipient, error)
}
