package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
)

// KeyedLocker locks por clave en proceso. Cada clave es un semáforo de capacidad 1 para poder
// esperar respetando el contexto.
type KeyedLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{slots: make(map[string]*slot)}
}

func (l *KeyedLocker) acquireSlot(k string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[k]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[k] = s
	}
	s.refs++
	return s
}

func (l *KeyedLocker) releaseSlot(k string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, k)
	}
}

// Lock bloquea hasta obtener la clave o hasta que el contexto termine.
func (l *KeyedLocker) Lock(ctx context.Context, k string) (func(), error) {
	s := l.acquireSlot(k)
	select {
	case s.ch <- struct{}{}:
		return l.unlocker(k, s), nil
	case <-ctx.Done():
		l.releaseSlot(k, s)
		return nil, ctx.Err()
	}
}

// TryLock intenta sin esperar; domain.ErrLockNotObtained si está ocupada.
func (l *KeyedLocker) TryLock(_ context.Context, k string) (func(), error) {
	s := l.acquireSlot(k)
	select {
	case s.ch <- struct{}{}:
		return l.unlocker(k, s), nil
	default:
		l.releaseSlot(k, s)
		return nil, domain.ErrLockNotObtained
	}
}

func (l *KeyedLocker) unlocker(k string, s *slot) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.releaseSlot(k, s)
		})
	}
}
