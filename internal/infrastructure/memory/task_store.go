package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/repository"
)

var (
	_ repository.NotificationTaskRepository = (*TaskStore)(nil)
	_ repository.RecipientDirectory         = (*Directory)(nil)
)

// TaskStore cola de notificaciones en memoria.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*entity.NotificationTask
}

func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]*entity.NotificationTask)}
}

func (s *TaskStore) Reserve(_ context.Context, t *entity.NotificationTask) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.Key]; ok {
		return false, nil
	}
	s.tasks[t.Key] = t.Clone()
	return true, nil
}

func (s *TaskStore) Get(_ context.Context, k string) (*entity.NotificationTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[k]
	if !ok {
		return nil, nil
	}
	return t.Clone(), nil
}

func (s *TaskStore) Update(_ context.Context, t *entity.NotificationTask, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.tasks[t.Key]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return fmt.Errorf("tarea %s v%d: %w", t.Key, cur.Version, domain.ErrConflict)
	}
	t.Version = expectedVersion + 1
	s.tasks[t.Key] = t.Clone()
	return nil
}

func (s *TaskStore) filter(keep func(*entity.NotificationTask) bool) []*entity.NotificationTask {
	var out []*entity.NotificationTask
	for _, t := range s.tasks {
		if keep(t) {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func (s *TaskStore) ListDue(_ context.Context, now time.Time, limit int) ([]*entity.NotificationTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.filter(func(t *entity.NotificationTask) bool {
		return (t.State == entity.TaskPending || t.State == entity.TaskRetrying) && !t.NextAttemptAt.After(now)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *TaskStore) ListByAlert(_ context.Context, tenantID, alertID string) ([]*entity.NotificationTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(t *entity.NotificationTask) bool {
		return t.TenantID == tenantID && t.AlertID == alertID
	}), nil
}

func (s *TaskStore) ListStale(_ context.Context, before time.Time) ([]*entity.NotificationTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(t *entity.NotificationTask) bool {
		return t.State == entity.TaskSending && t.UpdatedAt.Before(before)
	}), nil
}

func (s *TaskStore) ListFailed(_ context.Context, tenantID string, limit int) ([]*entity.NotificationTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.filter(func(t *entity.NotificationTask) bool {
		return t.TenantID == tenantID && t.State == entity.TaskFailed
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Directory directorio de destinatarios por (tenant, rol).
type Directory struct {
	mu    sync.RWMutex
	roles map[string][]entity.Recipient
}

func NewDirectory() *Directory {
	return &Directory{roles: make(map[string][]entity.Recipient)}
}

// Add registra destinatarios para un rol.
func (d *Directory) Add(tenantID, role string, recipients ...entity.Recipient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := key(tenantID, role)
	d.roles[k] = append(d.roles[k], recipients...)
}

func (d *Directory) Resolve(_ context.Context, tenantID, role string) ([]entity.Recipient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]entity.Recipient(nil), d.roles[key(tenantID, role)]...), nil
}
