package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/repository"
)

var (
	_ repository.ItemRepository          = (*ItemStore)(nil)
	_ repository.PolicyHistoryRepository = (*PolicyHistoryStore)(nil)
)

// ItemStore catálogo en memoria.
type ItemStore struct {
	mu    sync.RWMutex
	items map[string]*entity.Item
}

func NewItemStore() *ItemStore {
	return &ItemStore{items: make(map[string]*entity.Item)}
}

func (s *ItemStore) Get(_ context.Context, tenantID, itemID string) (*entity.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[key(tenantID, itemID)]
	if !ok {
		return nil, nil
	}
	c := *it
	return &c, nil
}

func (s *ItemStore) ListActive(_ context.Context, tenantID string) ([]*entity.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.Item
	for _, it := range s.items {
		if it.TenantID == tenantID && it.Active {
			c := *it
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}

func (s *ItemStore) Save(_ context.Context, item *entity.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *item
	s.items[key(item.TenantID, item.ItemID)] = &c
	return nil
}

// PolicyHistoryStore historial de políticas en memoria.
type PolicyHistoryStore struct {
	mu      sync.RWMutex
	changes map[string][]*entity.PolicyChange
}

func NewPolicyHistoryStore() *PolicyHistoryStore {
	return &PolicyHistoryStore{changes: make(map[string][]*entity.PolicyChange)}
}

func (s *PolicyHistoryStore) Record(_ context.Context, change *entity.PolicyChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(change.TenantID, change.ItemID)
	c := *change
	s.changes[k] = append(s.changes[k], &c)
	sort.SliceStable(s.changes[k], func(i, j int) bool { return s.changes[k][i].ChangedAt.Before(s.changes[k][j].ChangedAt) })
	return nil
}

func (s *PolicyHistoryStore) ListBetween(_ context.Context, tenantID, itemID string, from, to time.Time) ([]*entity.PolicyChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.PolicyChange
	for _, c := range s.changes[key(tenantID, itemID)] {
		if !c.ChangedAt.Before(from) && !c.ChangedAt.After(to) {
			cc := *c
			out = append(out, &cc)
		}
	}
	return out, nil
}

func (s *PolicyHistoryStore) LastBefore(_ context.Context, tenantID, itemID string, t time.Time) (*entity.PolicyChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last *entity.PolicyChange
	for _, c := range s.changes[key(tenantID, itemID)] {
		if !c.ChangedAt.After(t) {
			last = c
		}
	}
	if last == nil {
		return nil, nil
	}
	cc := *last
	return &cc, nil
}
