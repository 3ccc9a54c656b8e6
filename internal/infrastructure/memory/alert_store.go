package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/repository"
)

var _ repository.AlertRepository = (*AlertStore)(nil)

// AlertStore alertas en memoria con índice de alerta abierta por artículo.
type AlertStore struct {
	mu     sync.RWMutex
	alerts map[string]*entity.Alert
	open   map[string]string // tenant/item -> alertID
}

func NewAlertStore() *AlertStore {
	return &AlertStore{alerts: make(map[string]*entity.Alert), open: make(map[string]string)}
}

func (s *AlertStore) Create(_ context.Context, a *entity.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := key(a.TenantID, a.ItemID)
	if id, exists := s.open[ok]; exists {
		return fmt.Errorf("alerta abierta %s para %s: %w", id, a.ItemID, domain.ErrConflict)
	}
	s.alerts[key(a.TenantID, a.AlertID)] = a.Clone()
	if a.State.IsOpen() {
		s.open[ok] = a.AlertID
	}
	return nil
}

func (s *AlertStore) Get(_ context.Context, tenantID, alertID string) (*entity.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[key(tenantID, alertID)]
	if !ok {
		return nil, nil
	}
	return a.Clone(), nil
}

func (s *AlertStore) GetOpenByItem(_ context.Context, tenantID, itemID string) (*entity.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.open[key(tenantID, itemID)]
	if !ok {
		return nil, nil
	}
	return s.alerts[key(tenantID, id)].Clone(), nil
}

func (s *AlertStore) Update(_ context.Context, a *entity.Alert, expectedState entity.AlertState, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(a.TenantID, a.AlertID)
	cur, ok := s.alerts[k]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.State != expectedState || cur.Version != expectedVersion {
		return fmt.Errorf("alerta %s en %s/v%d: %w", a.AlertID, cur.State, cur.Version, domain.ErrConflict)
	}
	a.Version = expectedVersion + 1
	// el log de entregas lo escribe sólo AppendNotification
	a.NotificationLog = append([]entity.NotificationLogEntry(nil), cur.NotificationLog...)
	s.alerts[k] = a.Clone()
	if !a.State.IsOpen() {
		delete(s.open, key(a.TenantID, a.ItemID))
	}
	return nil
}

func (s *AlertStore) AppendNotification(_ context.Context, tenantID, alertID string, e entity.NotificationLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[key(tenantID, alertID)]
	if !ok {
		return domain.ErrNotFound
	}
	a.NotificationLog = append(a.NotificationLog, e)
	return nil
}

func (s *AlertStore) List(_ context.Context, tenantID string, f repository.AlertFilter) ([]*entity.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.Alert
	for _, a := range s.alerts {
		if a.TenantID != tenantID {
			continue
		}
		if f.ItemID != "" && a.ItemID != f.ItemID {
			continue
		}
		if f.Priority != "" && a.Priority != f.Priority {
			continue
		}
		if f.State != "" && a.State != f.State {
			continue
		}
		if f.OpenOnly && !a.State.IsOpen() {
			continue
		}
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UrgencyScore != out[j].UrgencyScore {
			return out[i].UrgencyScore > out[j].UrgencyScore
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
