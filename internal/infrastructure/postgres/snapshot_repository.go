package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/repository"
)

var _ repository.SnapshotRepository = (*SnapshotRepo)(nil)

// SnapshotRepo cada foto es una fila con el documento completo en JSONB; nunca se actualiza.
type SnapshotRepo struct {
	q Querier
}

func NewSnapshotRepository(q Querier) *SnapshotRepo {
	return &SnapshotRepo{q: q}
}

func (r *SnapshotRepo) Save(ctx context.Context, s *entity.Snapshot) error {
	body, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO snapshots (tenant_id, snapshot_id, taken_at, trigger, body)
		VALUES ($1, $2, $3, $4, $5)`, s.TenantID, s.SnapshotID, s.TakenAt, s.Trigger, body)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("snapshot %s: %w", s.SnapshotID, domain.ErrConflict)
	}
	return wrap("save snapshot", err)
}

func (r *SnapshotRepo) list(ctx context.Context, query string, args ...any) ([]*entity.Snapshot, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap("list snapshots", err)
	}
	defer rows.Close()
	var out []*entity.Snapshot
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, wrap("scan snapshot", err)
		}
		var s entity.Snapshot
		if err := json.Unmarshal(body, &s); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		out = append(out, &s)
	}
	return out, wrap("list snapshots", rows.Err())
}

func (r *SnapshotRepo) Latest(ctx context.Context, tenantID string) (*entity.Snapshot, error) {
	out, err := r.list(ctx, `SELECT body FROM snapshots WHERE tenant_id = $1
		ORDER BY taken_at DESC LIMIT 1`, tenantID)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return out[0], nil
}

func (r *SnapshotRepo) List(ctx context.Context, tenantID string, from, to time.Time) ([]*entity.Snapshot, error) {
	return r.list(ctx, `SELECT body FROM snapshots WHERE tenant_id = $1 AND taken_at >= $2 AND taken_at <= $3
		ORDER BY taken_at`, tenantID, from, to)
}
