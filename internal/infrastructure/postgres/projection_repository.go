package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/repository"
)

var _ repository.ProjectionRepository = (*ProjectionRepo)(nil)

// ProjectionRepo proyecciones persistidas; el CAS es un UPDATE condicionado a last_seq.
type ProjectionRepo struct {
	q Querier
}

func NewProjectionRepository(q Querier) *ProjectionRepo {
	return &ProjectionRepo{q: q}
}

func (r *ProjectionRepo) Get(ctx context.Context, tenantID, itemID string) (*entity.StockProjection, error) {
	var p entity.StockProjection
	err := r.q.QueryRow(ctx, `
		SELECT tenant_id, item_id, on_hand, last_seq, wac, last_updated
		FROM projections WHERE tenant_id = $1 AND item_id = $2`, tenantID, itemID).Scan(
		&p.TenantID, &p.ItemID, &p.OnHand, &p.LastSeq, &p.WeightedAverageCost, &p.LastUpdated)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, wrap("get projection", err)
	}
	return &p, nil
}

func (r *ProjectionRepo) CompareAndSet(ctx context.Context, p *entity.StockProjection, prevLastSeq int64) error {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO projections (tenant_id, item_id, on_hand, last_seq, wac, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, item_id) DO UPDATE SET
			on_hand = EXCLUDED.on_hand, last_seq = EXCLUDED.last_seq,
			wac = EXCLUDED.wac, last_updated = EXCLUDED.last_updated
		WHERE projections.last_seq = $7`,
		p.TenantID, p.ItemID, p.OnHand, p.LastSeq, p.WeightedAverageCost, p.LastUpdated, prevLastSeq)
	if err != nil {
		return wrap("cas projection", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("proyección %s/%s cambió desde seq %d: %w", p.TenantID, p.ItemID, prevLastSeq, domain.ErrConflict)
	}
	return nil
}

func (r *ProjectionRepo) Invalidate(ctx context.Context, tenantID, itemID string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM projections WHERE tenant_id = $1 AND item_id = $2`, tenantID, itemID)
	return wrap("invalidate projection", err)
}
