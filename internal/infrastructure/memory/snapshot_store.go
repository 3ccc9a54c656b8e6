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

var _ repository.SnapshotRepository = (*SnapshotStore)(nil)

// SnapshotStore fotos por tenant en orden de creación.
type SnapshotStore struct {
	mu    sync.RWMutex
	byTen map[string][]*entity.Snapshot
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{byTen: make(map[string][]*entity.Snapshot)}
}

func (s *SnapshotStore) Save(_ context.Context, snap *entity.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byTen[snap.TenantID] {
		if existing.SnapshotID == snap.SnapshotID {
			return fmt.Errorf("snapshot %s: %w", snap.SnapshotID, domain.ErrConflict)
		}
	}
	c := *snap
	c.Lines = append([]entity.SnapshotLine(nil), snap.Lines...)
	s.byTen[snap.TenantID] = append(s.byTen[snap.TenantID], &c)
	return nil
}

func (s *SnapshotStore) Latest(_ context.Context, tenantID string) (*entity.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.byTen[tenantID]
	if len(list) == 0 {
		return nil, nil
	}
	c := *list[len(list)-1]
	return &c, nil
}

func (s *SnapshotStore) List(_ context.Context, tenantID string, from, to time.Time) ([]*entity.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.Snapshot
	for _, snap := range s.byTen[tenantID] {
		if !snap.TakenAt.Before(from) && !snap.TakenAt.After(to) {
			c := *snap
			out = append(out, &c)
		}
	}
	return out, nil
}
