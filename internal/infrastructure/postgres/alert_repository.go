package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/repository"
)

var _ repository.AlertRepository = (*AlertRepo)(nil)

// AlertRepo alertas sobre PostgreSQL. El índice único parcial alerts_one_open_per_item
// garantiza una sola alerta abierta por artículo.
type AlertRepo struct {
	q Querier
}

func NewAlertRepository(q Querier) *AlertRepo {
	return &AlertRepo{q: q}
}

const alertColumns = `tenant_id, alert_id, item_id, type, priority, state, observed_on_hand, reorder_point,
	suggested_quantity, estimated_cost, urgency_score, expected_delivery_date, notification_log, escalation_days,
	supplier_notified, ack_by, ack_at, resolved_by, resolved_at, dismissed_by, dismissed_at, dismiss_reason,
	created_at, updated_at, version`

func scanAlert(row interface{ Scan(...any) error }) (*entity.Alert, error) {
	var a entity.Alert
	var log, days []byte
	err := row.Scan(&a.TenantID, &a.AlertID, &a.ItemID, &a.Type, &a.Priority, &a.State, &a.ObservedOnHand,
		&a.ReorderPoint, &a.SuggestedQuantity, &a.EstimatedCost, &a.UrgencyScore, &a.ExpectedDeliveryDate,
		&log, &days, &a.SupplierNotified, &a.AckBy, &a.AckAt, &a.ResolvedBy, &a.ResolvedAt, &a.DismissedBy,
		&a.DismissedAt, &a.DismissReason, &a.CreatedAt, &a.UpdatedAt, &a.Version)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(log, &a.NotificationLog); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(days, &a.EscalationDays); err != nil {
		return nil, err
	}
	return &a, nil
}

func jsonList[T any](v []T) ([]byte, error) {
	if v == nil {
		v = []T{}
	}
	return json.Marshal(v)
}

func (r *AlertRepo) Create(ctx context.Context, a *entity.Alert) error {
	log, err := jsonList(a.NotificationLog)
	if err != nil {
		return err
	}
	days, err := jsonList(a.EscalationDays)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, `INSERT INTO alerts (`+alertColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`,
		a.TenantID, a.AlertID, a.ItemID, a.Type, a.Priority, a.State, a.ObservedOnHand, a.ReorderPoint,
		a.SuggestedQuantity, a.EstimatedCost, a.UrgencyScore, a.ExpectedDeliveryDate, log, days,
		a.SupplierNotified, a.AckBy, a.AckAt, a.ResolvedBy, a.ResolvedAt, a.DismissedBy, a.DismissedAt,
		a.DismissReason, a.CreatedAt, a.UpdatedAt, a.Version)
	if err != nil && isUniqueViolation(err) && constraintName(err) == constraintAlertOpen {
		return fmt.Errorf("alerta abierta para %s: %w", a.ItemID, domain.ErrConflict)
	}
	return wrap("create alert", err)
}

func (r *AlertRepo) Get(ctx context.Context, tenantID, alertID string) (*entity.Alert, error) {
	a, err := scanAlert(r.q.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts
		WHERE tenant_id = $1 AND alert_id = $2`, tenantID, alertID))
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, wrap("get alert", err)
	}
	return a, nil
}

func (r *AlertRepo) GetOpenByItem(ctx context.Context, tenantID, itemID string) (*entity.Alert, error) {
	a, err := scanAlert(r.q.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts
		WHERE tenant_id = $1 AND item_id = $2 AND state IN ('ACTIVE', 'ACKNOWLEDGED')`, tenantID, itemID))
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, wrap("get open alert", err)
	}
	return a, nil
}

// Update escribe todo salvo notification_log, que sólo crece con AppendNotification.
func (r *AlertRepo) Update(ctx context.Context, a *entity.Alert, expectedState entity.AlertState, expectedVersion int64) error {
	days, err := jsonList(a.EscalationDays)
	if err != nil {
		return err
	}
	var log []byte
	err = r.q.QueryRow(ctx, `
		UPDATE alerts SET type = $3, priority = $4, state = $5, observed_on_hand = $6, reorder_point = $7,
			suggested_quantity = $8, estimated_cost = $9, urgency_score = $10, expected_delivery_date = $11,
			escalation_days = $12, supplier_notified = $13, ack_by = $14, ack_at = $15, resolved_by = $16,
			resolved_at = $17, dismissed_by = $18, dismissed_at = $19, dismiss_reason = $20, updated_at = $21,
			version = version + 1
		WHERE tenant_id = $1 AND alert_id = $2 AND state = $22 AND version = $23
		RETURNING notification_log`,
		a.TenantID, a.AlertID, a.Type, a.Priority, a.State, a.ObservedOnHand, a.ReorderPoint,
		a.SuggestedQuantity, a.EstimatedCost, a.UrgencyScore, a.ExpectedDeliveryDate, days,
		a.SupplierNotified, a.AckBy, a.AckAt, a.ResolvedBy, a.ResolvedAt, a.DismissedBy, a.DismissedAt,
		a.DismissReason, a.UpdatedAt, expectedState, expectedVersion).Scan(&log)
	if err != nil {
		if noRows(err) {
			cur, gerr := r.Get(ctx, a.TenantID, a.AlertID)
			if gerr != nil {
				return gerr
			}
			if cur == nil {
				return domain.ErrNotFound
			}
			return fmt.Errorf("alerta %s en %s/v%d: %w", a.AlertID, cur.State, cur.Version, domain.ErrConflict)
		}
		return wrap("update alert", err)
	}
	a.Version = expectedVersion + 1
	return json.Unmarshal(log, &a.NotificationLog)
}

func (r *AlertRepo) AppendNotification(ctx context.Context, tenantID, alertID string, e entity.NotificationLogEntry) error {
	entry, err := json.Marshal([]entity.NotificationLogEntry{e})
	if err != nil {
		return err
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE alerts SET notification_log = notification_log || $3::jsonb
		WHERE tenant_id = $1 AND alert_id = $2`, tenantID, alertID, entry)
	if err != nil {
		return wrap("append notification", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List ordena por urgencia descendente y luego por antigüedad.
func (r *AlertRepo) List(ctx context.Context, tenantID string, f repository.AlertFilter) ([]*entity.Alert, error) {
	where := []string{"tenant_id = $1"}
	args := []any{tenantID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.ItemID != "" {
		add("item_id = $%d", f.ItemID)
	}
	if f.Priority != "" {
		add("priority = $%d", f.Priority)
	}
	if f.State != "" {
		add("state = $%d", f.State)
	}
	if f.OpenOnly {
		where = append(where, "state IN ('ACTIVE', 'ACKNOWLEDGED')")
	}
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY urgency_score DESC, created_at`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap("list alerts", err)
	}
	defer rows.Close()
	var out []*entity.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, wrap("scan alert", err)
		}
		out = append(out, a)
	}
	return out, wrap("list alerts", rows.Err())
}
