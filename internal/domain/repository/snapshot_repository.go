package repository

import (
	"context"
	"time"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
)

// SnapshotRepository las fotos se escriben como un único objeto inmutable.
type SnapshotRepository interface {
	Save(ctx context.Context, s *entity.Snapshot) error
	// Latest nil, nil si el tenant no tiene fotos.
	Latest(ctx context.Context, tenantID string) (*entity.Snapshot, error)
	List(ctx context.Context, tenantID string, from, to time.Time) ([]*entity.Snapshot, error)
}
