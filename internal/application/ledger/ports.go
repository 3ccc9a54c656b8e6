package ledger

import (
	"context"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando el libro atado a esa tx.
// Garantiza que la asignación de seq, el control de idempotencia y la inserción sean atómicos.
type TxRunner interface {
	Run(ctx context.Context, fn func(ledger repository.LedgerRepository) error) error
}
