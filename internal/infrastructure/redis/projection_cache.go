package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/repository"
)

var _ repository.ProjectionRepository = (*ProjectionCache)(nil)

// ProjectionCache proyecciones en Redis. El CAS sobre lastSeq usa WATCH/MULTI: si otra
// instancia escribe la clave entre la lectura y el EXEC la transacción falla.
type ProjectionCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewProjectionCache ttl 0 = sin expiración. Una clave expirada se reconstruye desde el libro.
func NewProjectionCache(client *goredis.Client, ttl time.Duration) *ProjectionCache {
	return &ProjectionCache{client: client, ttl: ttl}
}

func projectionKey(tenantID, itemID string) string {
	return fmt.Sprintf("proj:%s:%s", tenantID, itemID)
}

func decode(data []byte) (*entity.StockProjection, error) {
	var p entity.StockProjection
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode projection: %w", err)
	}
	return &p, nil
}

func (c *ProjectionCache) Get(ctx context.Context, tenantID, itemID string) (*entity.StockProjection, error) {
	data, err := c.client.Get(ctx, projectionKey(tenantID, itemID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get projection: %w", err)
	}
	return decode(data)
}

func (c *ProjectionCache) CompareAndSet(ctx context.Context, p *entity.StockProjection, prevLastSeq int64) error {
	k := projectionKey(p.TenantID, p.ItemID)
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	err = c.client.Watch(ctx, func(tx *goredis.Tx) error {
		data, err := tx.Get(ctx, k).Bytes()
		switch {
		case errors.Is(err, goredis.Nil):
		case err != nil:
			return err
		default:
			cur, err := decode(data)
			if err != nil {
				return err
			}
			if cur.LastSeq != prevLastSeq {
				return fmt.Errorf("proyección %s en seq %d, esperado %d: %w", k, cur.LastSeq, prevLastSeq, domain.ErrConflict)
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, k, payload, c.ttl)
			return nil
		})
		return err
	}, k)
	if errors.Is(err, goredis.TxFailedErr) {
		return fmt.Errorf("proyección %s modificada durante el CAS: %w", k, domain.ErrConflict)
	}
	return err
}

func (c *ProjectionCache) Invalidate(ctx context.Context, tenantID, itemID string) error {
	if err := c.client.Del(ctx, projectionKey(tenantID, itemID)).Err(); err != nil {
		return fmt.Errorf("invalidate projection: %w", err)
	}
	return nil
}
