package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/ports"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/pkg/logger"
)

var _ ports.Locker = (*Locker)(nil)

// Locker locks distribuidos con redislock. Mientras el lock está tomado se renueva cada ttl/2,
// así un trabajo largo no lo pierde por expiración.
type Locker struct {
	client *redislock.Client
	ttl    time.Duration
	prefix string
	log    *logger.Logger
}

func NewLocker(client *goredis.Client, ttl time.Duration, log *logger.Logger) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: redislock.New(client), ttl: ttl, prefix: "lock:", log: log.Component("redis-locker")}
}

// Lock reintenta hasta obtener la clave o hasta que ctx termine.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	opts := &redislock.Options{RetryStrategy: redislock.LinearBackoff(50 * time.Millisecond)}
	for {
		lock, err := l.client.Obtain(ctx, l.prefix+key, l.ttl, opts)
		if err == nil {
			return l.hold(lock), nil
		}
		if !errors.Is(err, redislock.ErrNotObtained) {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
}

// TryLock un solo intento; domain.ErrLockNotObtained si otra instancia la tiene.
func (l *Locker) TryLock(ctx context.Context, key string) (func(), error) {
	lock, err := l.client.Obtain(ctx, l.prefix+key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, domain.ErrLockNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("trylock %s: %w", key, err)
	}
	return l.hold(lock), nil
}

func (l *Locker) hold(lock *redislock.Lock) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(l.ttl / 2)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				if err := lock.Refresh(context.Background(), l.ttl, nil); err != nil {
					l.log.Warn().Err(err).Str("key", lock.Key()).Msg("no se pudo renovar el lock")
					return
				}
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				l.log.Warn().Err(err).Str("key", lock.Key()).Msg("error liberando lock")
			}
		})
	}
}
