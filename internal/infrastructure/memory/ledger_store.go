package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/repository"
)

var (
	_ repository.LedgerRepository     = (*LedgerStore)(nil)
	_ repository.ProjectionRepository = (*ProjectionStore)(nil)
)

// LedgerStore libro en memoria: slice ordenado por seq por artículo.
type LedgerStore struct {
	mu      sync.RWMutex
	entries map[string][]*entity.LedgerEntry
	idem    map[string]int64
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{entries: make(map[string][]*entity.LedgerEntry), idem: make(map[string]int64)}
}

func (s *LedgerStore) LockHead(_ context.Context, tenantID, itemID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.entries[key(tenantID, itemID)]
	if len(list) == 0 {
		return 0, nil
	}
	return list[len(list)-1].Seq, nil
}

func (s *LedgerStore) Insert(_ context.Context, e *entity.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(e.TenantID, e.ItemID)
	list := s.entries[k]
	var last int64
	if len(list) > 0 {
		last = list[len(list)-1].Seq
	}
	if e.Seq != last+1 {
		return fmt.Errorf("insert seq %d (último %d): %w", e.Seq, last, domain.ErrConflict)
	}
	if ik := e.IdempotencyKey(); ik != "" {
		if _, dup := s.idem[k+"/"+ik]; dup {
			return domain.ErrDuplicateIdempotencyKey
		}
		s.idem[k+"/"+ik] = e.Seq
	}
	s.entries[k] = append(list, cloneEntry(e))
	return nil
}

func (s *LedgerStore) FindByIdempotencyKey(_ context.Context, tenantID, itemID, ik string) (*entity.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k := key(tenantID, itemID)
	seq, ok := s.idem[k+"/"+ik]
	if !ok {
		return nil, nil
	}
	return cloneEntry(s.entries[k][seq-1]), nil
}

func (s *LedgerStore) ListByItem(_ context.Context, tenantID, itemID string, afterSeq, uptoSeq int64) ([]*entity.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.LedgerEntry
	for _, e := range s.entries[key(tenantID, itemID)] {
		if e.Seq <= afterSeq || (uptoSeq > 0 && e.Seq > uptoSeq) {
			continue
		}
		out = append(out, cloneEntry(e))
	}
	return out, nil
}

func (s *LedgerStore) ListByTime(_ context.Context, tenantID, itemID string, from, to time.Time) ([]*entity.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.LedgerEntry
	for _, e := range s.entries[key(tenantID, itemID)] {
		if e.Timestamp.After(from) && !e.Timestamp.After(to) {
			out = append(out, cloneEntry(e))
		}
	}
	return out, nil
}

// ProjectionStore caché de proyecciones en memoria.
type ProjectionStore struct {
	mu    sync.Mutex
	projs map[string]*entity.StockProjection
}

func NewProjectionStore() *ProjectionStore {
	return &ProjectionStore{projs: make(map[string]*entity.StockProjection)}
}

func (s *ProjectionStore) Get(_ context.Context, tenantID, itemID string) (*entity.StockProjection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projs[key(tenantID, itemID)]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

func (s *ProjectionStore) CompareAndSet(_ context.Context, p *entity.StockProjection, prevLastSeq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(p.TenantID, p.ItemID)
	if cur, ok := s.projs[k]; ok && cur.LastSeq != prevLastSeq {
		return fmt.Errorf("proyección %s en seq %d, esperado %d: %w", k, cur.LastSeq, prevLastSeq, domain.ErrConflict)
	}
	s.projs[k] = p.Clone()
	return nil
}

func (s *ProjectionStore) Invalidate(_ context.Context, tenantID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projs, key(tenantID, itemID))
	return nil
}

// TxRunner serializa las transacciones del libro en proceso (equivalente al SELECT ... FOR UPDATE).
type TxRunner struct {
	mu     sync.Mutex
	ledger *LedgerStore
}

func NewTxRunner(ledger *LedgerStore) *TxRunner {
	return &TxRunner{ledger: ledger}
}

func (r *TxRunner) Run(ctx context.Context, fn func(ledger repository.LedgerRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(r.ledger)
}
