package repository

import (
	"context"
	"time"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
)

// LedgerRepository puerto del libro append-only. Dentro de una transacción LockHead serializa
// la asignación de seq por (tenant, item).
type LedgerRepository interface {
	// LockHead bloquea la cabeza del artículo y devuelve el último seq (0 si no hay entradas).
	LockHead(ctx context.Context, tenantID, itemID string) (int64, error)
	// Insert persiste la entrada con su seq. domain.ErrConflict si el seq ya existe,
	// domain.ErrDuplicateIdempotencyKey si la clave ya fue usada.
	Insert(ctx context.Context, entry *entity.LedgerEntry) error
	// FindByIdempotencyKey nil, nil si no existe.
	FindByIdempotencyKey(ctx context.Context, tenantID, itemID, key string) (*entity.LedgerEntry, error)
	// ListByItem entradas con afterSeq < seq <= uptoSeq (uptoSeq 0 = sin tope), ordenadas por seq.
	ListByItem(ctx context.Context, tenantID, itemID string, afterSeq, uptoSeq int64) ([]*entity.LedgerEntry, error)
	// ListByTime entradas con from < timestamp <= to, ordenadas por seq.
	ListByTime(ctx context.Context, tenantID, itemID string, from, to time.Time) ([]*entity.LedgerEntry, error)
}

// ProjectionRepository caché de proyecciones con escritura condicional.
type ProjectionRepository interface {
	// Get nil, nil si no hay proyección cacheada.
	Get(ctx context.Context, tenantID, itemID string) (*entity.StockProjection, error)
	// CompareAndSet guarda p sólo si la versión almacenada tiene lastSeq == prevLastSeq
	// (o no existe). domain.ErrConflict en caso contrario.
	CompareAndSet(ctx context.Context, p *entity.StockProjection, prevLastSeq int64) error
	Invalidate(ctx context.Context, tenantID, itemID string) error
}
