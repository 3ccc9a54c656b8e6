package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/repository"
)

var (
	_ repository.NotificationTaskRepository = (*TaskRepo)(nil)
	_ repository.RecipientDirectory         = (*DirectoryRepo)(nil)
)

// TaskRepo cola de notificaciones. La clave de la tarea es la PK: Reserve es un INSERT ... ON CONFLICT DO NOTHING.
type TaskRepo struct {
	q Querier
}

func NewTaskRepository(q Querier) *TaskRepo {
	return &TaskRepo{q: q}
}

const taskColumns = `key, tenant_id, alert_id, item_id, stage, day, recipient_id, recipient_address, template,
	subject, body, state, attempts, next_attempt_at, last_error, transport_message_id, created_at, updated_at,
	delivered_at, version`

func (r *TaskRepo) Reserve(ctx context.Context, t *entity.NotificationTask) (bool, error) {
	tag, err := r.q.Exec(ctx, `INSERT INTO notification_tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (key) DO NOTHING`,
		t.Key, t.TenantID, t.AlertID, t.ItemID, t.Stage, t.Day, t.Recipient.ID, t.Recipient.Address, t.Template,
		t.Subject, t.Body, t.State, t.Attempts, t.NextAttemptAt, t.LastError, t.TransportMessageID, t.CreatedAt,
		t.UpdatedAt, t.DeliveredAt, t.Version)
	if err != nil {
		return false, wrap("reserve task", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TaskRepo) list(ctx context.Context, query string, args ...any) ([]*entity.NotificationTask, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap("list tasks", err)
	}
	defer rows.Close()
	var out []*entity.NotificationTask
	for rows.Next() {
		var t entity.NotificationTask
		if err := rows.Scan(&t.Key, &t.TenantID, &t.AlertID, &t.ItemID, &t.Stage, &t.Day, &t.Recipient.ID,
			&t.Recipient.Address, &t.Template, &t.Subject, &t.Body, &t.State, &t.Attempts, &t.NextAttemptAt,
			&t.LastError, &t.TransportMessageID, &t.CreatedAt, &t.UpdatedAt, &t.DeliveredAt, &t.Version); err != nil {
			return nil, wrap("scan task", err)
		}
		out = append(out, &t)
	}
	return out, wrap("list tasks", rows.Err())
}

func (r *TaskRepo) Get(ctx context.Context, key string) (*entity.NotificationTask, error) {
	out, err := r.list(ctx, `SELECT `+taskColumns+` FROM notification_tasks WHERE key = $1`, key)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return out[0], nil
}

func (r *TaskRepo) Update(ctx context.Context, t *entity.NotificationTask, expectedVersion int64) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE notification_tasks SET state = $2, attempts = $3, next_attempt_at = $4, last_error = $5,
			transport_message_id = $6, updated_at = $7, delivered_at = $8, version = version + 1
		WHERE key = $1 AND version = $9`,
		t.Key, t.State, t.Attempts, t.NextAttemptAt, t.LastError, t.TransportMessageID, t.UpdatedAt,
		t.DeliveredAt, expectedVersion)
	if err != nil {
		return wrap("update task", err)
	}
	if tag.RowsAffected() == 0 {
		cur, gerr := r.Get(ctx, t.Key)
		if gerr != nil {
			return gerr
		}
		if cur == nil {
			return domain.ErrNotFound
		}
		return fmt.Errorf("tarea %s v%d: %w", t.Key, cur.Version, domain.ErrConflict)
	}
	t.Version = expectedVersion + 1
	return nil
}

func (r *TaskRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*entity.NotificationTask, error) {
	query := `SELECT ` + taskColumns + ` FROM notification_tasks
		WHERE state IN ('PENDING', 'RETRYING') AND next_attempt_at <= $1 ORDER BY created_at, key`
	args := []any{now}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return r.list(ctx, query, args...)
}

func (r *TaskRepo) ListByAlert(ctx context.Context, tenantID, alertID string) ([]*entity.NotificationTask, error) {
	return r.list(ctx, `SELECT `+taskColumns+` FROM notification_tasks
		WHERE tenant_id = $1 AND alert_id = $2 ORDER BY created_at, key`, tenantID, alertID)
}

func (r *TaskRepo) ListStale(ctx context.Context, before time.Time) ([]*entity.NotificationTask, error) {
	return r.list(ctx, `SELECT `+taskColumns+` FROM notification_tasks
		WHERE state = 'SENDING' AND updated_at < $1 ORDER BY created_at, key`, before)
}

func (r *TaskRepo) ListFailed(ctx context.Context, tenantID string, limit int) ([]*entity.NotificationTask, error) {
	query := `SELECT ` + taskColumns + ` FROM notification_tasks
		WHERE tenant_id = $1 AND state = 'FAILED' ORDER BY created_at, key`
	args := []any{tenantID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return r.list(ctx, query, args...)
}

// DirectoryRepo destinatarios por (tenant, rol).
type DirectoryRepo struct {
	q Querier
}

func NewDirectoryRepository(q Querier) *DirectoryRepo {
	return &DirectoryRepo{q: q}
}

// Add registra o actualiza destinatarios de un rol. Lo usa cmd/seed.
func (r *DirectoryRepo) Add(ctx context.Context, tenantID, role string, recipients ...entity.Recipient) error {
	for _, rc := range recipients {
		_, err := r.q.Exec(ctx, `
			INSERT INTO recipients (tenant_id, role, recipient_id, address) VALUES ($1, $2, $3, $4)
			ON CONFLICT (tenant_id, role, recipient_id) DO UPDATE SET address = EXCLUDED.address`,
			tenantID, role, rc.ID, rc.Address)
		if err != nil {
			return wrap("add recipient", err)
		}
	}
	return nil
}

func (r *DirectoryRepo) Resolve(ctx context.Context, tenantID, role string) ([]entity.Recipient, error) {
	rows, err := r.q.Query(ctx, `SELECT recipient_id, address FROM recipients
		WHERE tenant_id = $1 AND role = $2 ORDER BY recipient_id`, tenantID, role)
	if err != nil {
		return nil, wrap("resolve recipients", err)
	}
	defer rows.Close()
	var out []entity.Recipient
	for rows.Next() {
		var rc entity.Recipient
		if err := rows.Scan(&rc.ID, &rc.Address); err != nil {
			return nil, wrap("scan recipient", err)
		}
		out = append(out, rc)
	}
	return out, wrap("resolve recipients", rows.Err())
}
