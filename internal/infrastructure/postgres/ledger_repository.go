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

var _ repository.LedgerRepository = (*LedgerRepo)(nil)

// LedgerRepo libro append-only. La fila de ledger_heads serializa la asignación de seq
// por artículo cuando se usa dentro de una transacción.
type LedgerRepo struct {
	q Querier
}

// NewLedgerRepository pasar pool o tx (Querier). LockHead sólo bloquea dentro de una tx.
func NewLedgerRepository(q Querier) *LedgerRepo {
	return &LedgerRepo{q: q}
}

func (r *LedgerRepo) LockHead(ctx context.Context, tenantID, itemID string) (int64, error) {
	if _, err := r.q.Exec(ctx, `
		INSERT INTO ledger_heads (tenant_id, item_id, last_seq) VALUES ($1, $2, 0)
		ON CONFLICT (tenant_id, item_id) DO NOTHING`, tenantID, itemID); err != nil {
		return 0, wrap("init ledger head", err)
	}
	var seq int64
	err := r.q.QueryRow(ctx, `
		SELECT last_seq FROM ledger_heads WHERE tenant_id = $1 AND item_id = $2
		FOR UPDATE`, tenantID, itemID).Scan(&seq)
	if err != nil {
		return 0, wrap("lock ledger head", err)
	}
	return seq, nil
}

func (r *LedgerRepo) Insert(ctx context.Context, e *entity.LedgerEntry) error {
	ref, err := json.Marshal(e.Reference)
	if err != nil {
		return err
	}
	loc, err := json.Marshal(e.Location)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	var idem *string
	if k := e.IdempotencyKey(); k != "" {
		idem = &k
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO ledger_entries (tenant_id, item_id, seq, ts, type, quantity, unit_cost, actor_id,
			reference, location, metadata, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.TenantID, e.ItemID, e.Seq, e.Timestamp, e.Type, e.Quantity, e.UnitCost, e.ActorID,
		ref, loc, meta, idem)
	if err != nil {
		if isUniqueViolation(err) && constraintName(err) == constraintLedgerIdem {
			return domain.ErrDuplicateIdempotencyKey
		}
		return wrap("insert ledger entry", err)
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE ledger_heads SET last_seq = $3
		WHERE tenant_id = $1 AND item_id = $2 AND last_seq = $3 - 1`, e.TenantID, e.ItemID, e.Seq)
	if err != nil {
		return wrap("advance ledger head", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("cabeza de %s/%s no está en %d: %w", e.TenantID, e.ItemID, e.Seq-1, domain.ErrConflict)
	}
	return nil
}

const entryColumns = `tenant_id, item_id, seq, ts, type, quantity, unit_cost, actor_id, reference, location, metadata`

func (r *LedgerRepo) list(ctx context.Context, query string, args ...any) ([]*entity.LedgerEntry, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap("list ledger", err)
	}
	defer rows.Close()
	var out []*entity.LedgerEntry
	for rows.Next() {
		var e entity.LedgerEntry
		var ref, loc, meta []byte
		if err := rows.Scan(&e.TenantID, &e.ItemID, &e.Seq, &e.Timestamp, &e.Type, &e.Quantity, &e.UnitCost,
			&e.ActorID, &ref, &loc, &meta); err != nil {
			return nil, wrap("scan ledger entry", err)
		}
		if err := json.Unmarshal(ref, &e.Reference); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(loc, &e.Location); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(meta, &e.Metadata); err != nil {
			return nil, err
		}
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, &e)
	}
	return out, wrap("list ledger", rows.Err())
}

func (r *LedgerRepo) FindByIdempotencyKey(ctx context.Context, tenantID, itemID, key string) (*entity.LedgerEntry, error) {
	out, err := r.list(ctx, `SELECT `+entryColumns+` FROM ledger_entries
		WHERE tenant_id = $1 AND item_id = $2 AND idempotency_key = $3`, tenantID, itemID, key)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return out[0], nil
}

func (r *LedgerRepo) ListByItem(ctx context.Context, tenantID, itemID string, afterSeq, uptoSeq int64) ([]*entity.LedgerEntry, error) {
	return r.list(ctx, `SELECT `+entryColumns+` FROM ledger_entries
		WHERE tenant_id = $1 AND item_id = $2 AND seq > $3 AND ($4 = 0 OR seq <= $4)
		ORDER BY seq`, tenantID, itemID, afterSeq, uptoSeq)
}

func (r *LedgerRepo) ListByTime(ctx context.Context, tenantID, itemID string, from, to time.Time) ([]*entity.LedgerEntry, error) {
	return r.list(ctx, `SELECT `+entryColumns+` FROM ledger_entries
		WHERE tenant_id = $1 AND item_id = $2 AND ts > $3 AND ts <= $4
		ORDER BY seq`, tenantID, itemID, from, to)
}
