package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/repository"
)

var (
	_ repository.ItemRepository          = (*ItemRepo)(nil)
	_ repository.PolicyHistoryRepository = (*PolicyHistoryRepo)(nil)
)

// ItemRepo catálogo de artículos sobre PostgreSQL.
type ItemRepo struct {
	q Querier
}

func NewItemRepository(q Querier) *ItemRepo {
	return &ItemRepo{q: q}
}

const itemColumns = `tenant_id, item_id, name, category, unit_measure, cost, preferred_supplier,
	reorder_point, reorder_quantity, max_stock, lead_time_days, auto_reorder, active, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (*entity.Item, error) {
	var it entity.Item
	err := row.Scan(&it.TenantID, &it.ItemID, &it.Name, &it.Category, &it.UnitMeasure, &it.Cost, &it.PreferredSupplier,
		&it.Policy.ReorderPoint, &it.Policy.ReorderQuantity, &it.Policy.MaxStock, &it.Policy.LeadTimeDays,
		&it.Policy.AutoReorderEnabled, &it.Active, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *ItemRepo) Get(ctx context.Context, tenantID, itemID string) (*entity.Item, error) {
	row := r.q.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE tenant_id = $1 AND item_id = $2`, tenantID, itemID)
	it, err := scanItem(row)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, wrap("get item", err)
	}
	return it, nil
}

func (r *ItemRepo) ListActive(ctx context.Context, tenantID string) ([]*entity.Item, error) {
	rows, err := r.q.Query(ctx, `SELECT `+itemColumns+` FROM items WHERE tenant_id = $1 AND active ORDER BY item_id`, tenantID)
	if err != nil {
		return nil, wrap("list items", err)
	}
	defer rows.Close()
	var out []*entity.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, wrap("scan item", err)
		}
		out = append(out, it)
	}
	return out, wrap("list items", rows.Err())
}

// Save inserta o reemplaza el artículo (upsert por tenant e itemId).
func (r *ItemRepo) Save(ctx context.Context, it *entity.Item) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (tenant_id, item_id) DO UPDATE SET
			name = EXCLUDED.name, category = EXCLUDED.category, unit_measure = EXCLUDED.unit_measure,
			cost = EXCLUDED.cost, preferred_supplier = EXCLUDED.preferred_supplier,
			reorder_point = EXCLUDED.reorder_point, reorder_quantity = EXCLUDED.reorder_quantity,
			max_stock = EXCLUDED.max_stock, lead_time_days = EXCLUDED.lead_time_days,
			auto_reorder = EXCLUDED.auto_reorder, active = EXCLUDED.active, updated_at = EXCLUDED.updated_at`,
		it.TenantID, it.ItemID, it.Name, it.Category, it.UnitMeasure, it.Cost, it.PreferredSupplier,
		it.Policy.ReorderPoint, it.Policy.ReorderQuantity, it.Policy.MaxStock, it.Policy.LeadTimeDays,
		it.Policy.AutoReorderEnabled, it.Active, it.CreatedAt, it.UpdatedAt)
	return wrap("save item", err)
}

// PolicyHistoryRepo historial de políticas; before/after se guardan como JSONB.
type PolicyHistoryRepo struct {
	q Querier
}

func NewPolicyHistoryRepository(q Querier) *PolicyHistoryRepo {
	return &PolicyHistoryRepo{q: q}
}

func (r *PolicyHistoryRepo) Record(ctx context.Context, c *entity.PolicyChange) error {
	before, err := json.Marshal(c.Before)
	if err != nil {
		return err
	}
	after, err := json.Marshal(c.After)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO policy_changes (tenant_id, item_id, before, after, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.TenantID, c.ItemID, before, after, c.ChangedBy, c.ChangedAt)
	return wrap("record policy change", err)
}

func (r *PolicyHistoryRepo) scan(ctx context.Context, query string, args ...any) ([]*entity.PolicyChange, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap("list policy changes", err)
	}
	defer rows.Close()
	var out []*entity.PolicyChange
	for rows.Next() {
		var c entity.PolicyChange
		var before, after []byte
		if err := rows.Scan(&c.TenantID, &c.ItemID, &before, &after, &c.ChangedBy, &c.ChangedAt); err != nil {
			return nil, wrap("scan policy change", err)
		}
		if err := json.Unmarshal(before, &c.Before); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(after, &c.After); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, wrap("list policy changes", rows.Err())
}

func (r *PolicyHistoryRepo) ListBetween(ctx context.Context, tenantID, itemID string, from, to time.Time) ([]*entity.PolicyChange, error) {
	return r.scan(ctx, `
		SELECT tenant_id, item_id, before, after, changed_by, changed_at FROM policy_changes
		WHERE tenant_id = $1 AND item_id = $2 AND changed_at >= $3 AND changed_at <= $4
		ORDER BY changed_at, id`, tenantID, itemID, from, to)
}

func (r *PolicyHistoryRepo) LastBefore(ctx context.Context, tenantID, itemID string, t time.Time) (*entity.PolicyChange, error) {
	out, err := r.scan(ctx, `
		SELECT tenant_id, item_id, before, after, changed_by, changed_at FROM policy_changes
		WHERE tenant_id = $1 AND item_id = $2 AND changed_at <= $3
		ORDER BY changed_at DESC, id DESC LIMIT 1`, tenantID, itemID, t)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return out[0], nil
}
