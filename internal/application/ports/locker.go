package ports

import "context"

// Locker locks con clave. La implementación puede ser en proceso (memory) o distribuida (Redis).
// El unlock devuelto es idempotente.
type Locker interface {
	// Lock espera hasta obtener la clave o hasta que ctx termine.
	Lock(ctx context.Context, key string) (unlock func(), err error)
	// TryLock no espera: domain.ErrLockNotObtained si otro la tiene.
	TryLock(ctx context.Context, key string) (unlock func(), err error)
}
