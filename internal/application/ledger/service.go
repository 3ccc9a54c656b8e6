package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/ports"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/inventory"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/repository"
	"github.com/jhoicas/hotel-inventory-engine/pkg/clock"
	"github.com/jhoicas/hotel-inventory-engine/pkg/logger"
)

// Config parámetros del libro.
type Config struct {
	MaxRetries    int
	RefoldTimeout time.Duration
}

// Deps dependencias del servicio.
type Deps struct {
	Items       repository.ItemRepository
	Policies    repository.PolicyHistoryRepository
	Tx          TxRunner
	Ledger      repository.LedgerRepository // lecturas fuera de transacción
	Projections repository.ProjectionRepository
	Locker      ports.Locker
	Clock       clock.Clock
}

// AppendResult respuesta de Append. Duplicate indica que la clave de idempotencia ya existía.
type AppendResult struct {
	Seq        int64
	OnHand     decimal.Decimal
	Projection *entity.StockProjection
	Duplicate  bool
}

// AppendEvent se publica a los hooks tras una escritura durable.
type AppendEvent struct {
	Item   *entity.Item
	Entry  *entity.LedgerEntry
	Before *entity.StockProjection
	After  *entity.StockProjection
}

// AppendHook reacciona a escrituras del libro (evaluación de alertas, bus de disparadores).
type AppendHook func(ctx context.Context, evt AppendEvent)

// PolicyHook reacciona a cambios de política.
type PolicyHook func(ctx context.Context, item *entity.Item)

// Service registra movimientos en el libro append-only y mantiene la proyección de stock.
type Service struct {
	deps            Deps
	cfg             Config
	log             *logger.Logger
	appendHooks     []AppendHook
	policyHooks     []PolicyHook
	onRefoldTimeout func(tenantID, itemID string)
}

// NewService construye el servicio.
func NewService(deps Deps, cfg Config, log *logger.Logger) *Service {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RefoldTimeout <= 0 {
		cfg.RefoldTimeout = 30 * time.Second
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	return &Service{deps: deps, cfg: cfg, log: log.Component("ledger")}
}

// OnAppend registra un hook post-escritura.
func (s *Service) OnAppend(h AppendHook) { s.appendHooks = append(s.appendHooks, h) }

// OnPolicyChange registra un hook de cambio de política.
func (s *Service) OnPolicyChange(h PolicyHook) { s.policyHooks = append(s.policyHooks, h) }

// OnRefoldTimeout callback cuando una reconstrucción excede el tiempo máximo.
func (s *Service) OnRefoldTimeout(fn func(tenantID, itemID string)) { s.onRefoldTimeout = fn }

func lockKey(tenantID, itemID string) string {
	return "ledger:" + tenantID + ":" + itemID
}

// Append valida la entrada, asigna el siguiente seq y la persiste junto con la proyección.
// Con clave de idempotencia repetida devuelve la entrada existente sin crear un seq nuevo.
func (s *Service) Append(ctx context.Context, entry *entity.LedgerEntry) (*AppendResult, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	item, err := s.deps.Items.Get(ctx, entry.TenantID, entry.ItemID)
	if err != nil {
		return nil, fmt.Errorf("append: %w", err)
	}
	if item == nil || !item.Active {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownItem, entry.ItemID)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.deps.Clock.Now().UTC()
	}

	unlock, err := s.deps.Locker.Lock(ctx, lockKey(entry.TenantID, entry.ItemID))
	if err != nil {
		return nil, fmt.Errorf("append lock: %w", err)
	}
	defer unlock()

	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		res, evt, err := s.tryAppend(ctx, entry)
		if errors.Is(err, domain.ErrConflict) {
			s.log.Debug().Str("tenant_id", entry.TenantID).Str("item_id", entry.ItemID).Int("attempt", attempt).
				Msg("conflicto de seq, reintentando")
			continue
		}
		if err != nil {
			return nil, err
		}
		if evt != nil {
			evt.Item = item
			for _, h := range s.appendHooks {
				h(ctx, *evt)
			}
		}
		return res, nil
	}
	s.log.Warn().Str("tenant_id", entry.TenantID).Str("item_id", entry.ItemID).Msg("reintentos agotados en append")
	return nil, domain.ErrConcurrentAppend
}

func (s *Service) tryAppend(ctx context.Context, entry *entity.LedgerEntry) (*AppendResult, *AppendEvent, error) {
	var (
		before    *entity.StockProjection
		after     *entity.StockProjection
		cachedSeq int64
		dup       *entity.LedgerEntry
	)
	err := s.deps.Tx.Run(ctx, func(l repository.LedgerRepository) error {
		head, err := l.LockHead(ctx, entry.TenantID, entry.ItemID)
		if err != nil {
			return fmt.Errorf("lock head: %w", err)
		}
		if k := entry.IdempotencyKey(); k != "" {
			existing, err := l.FindByIdempotencyKey(ctx, entry.TenantID, entry.ItemID, k)
			if err != nil {
				return err
			}
			if existing != nil {
				dup = existing
				return nil
			}
		}
		cur, seq, err := s.current(ctx, l, entry.TenantID, entry.ItemID, head)
		if err != nil {
			return err
		}
		if inventory.WouldGoNegative(cur, entry) {
			return fmt.Errorf("%w: saldo %s, movimiento %s", domain.ErrInsufficientStock, cur.OnHand, entry.Quantity)
		}
		entry.Seq = head + 1
		if err := l.Insert(ctx, entry); err != nil {
			entry.Seq = 0
			return err
		}
		before, after, cachedSeq = cur, inventory.Apply(cur, entry), seq
		return nil
	})
	if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
		// otro escritor ganó con la misma clave; la tx quedó abortada, se consulta fuera de ella
		existing, ferr := s.deps.Ledger.FindByIdempotencyKey(ctx, entry.TenantID, entry.ItemID, entry.IdempotencyKey())
		if ferr != nil || existing == nil {
			return nil, nil, domain.ErrConflict
		}
		dup = existing
		err = nil
	}
	if err != nil {
		return nil, nil, err
	}
	if dup != nil {
		res, err := s.duplicateResult(ctx, dup)
		return res, nil, err
	}

	if err := s.deps.Projections.CompareAndSet(ctx, after, cachedSeq); err != nil {
		s.log.Warn().Err(err).Str("tenant_id", entry.TenantID).Str("item_id", entry.ItemID).
			Msg("proyección desfasada, reconstruyendo desde el libro")
		if p, rerr := s.Refold(ctx, entry.TenantID, entry.ItemID); rerr == nil && p.LastSeq >= after.LastSeq {
			after = p
		}
	}
	return &AppendResult{Seq: entry.Seq, OnHand: after.OnHand, Projection: after},
		&AppendEvent{Entry: entry, Before: before, After: after}, nil
}

// current devuelve la proyección al seq head y el lastSeq que tenía la caché (para el CAS).
func (s *Service) current(ctx context.Context, l repository.LedgerRepository, tenantID, itemID string, head int64) (*entity.StockProjection, int64, error) {
	cached, err := s.deps.Projections.Get(ctx, tenantID, itemID)
	if err != nil {
		s.log.Warn().Err(err).Str("item_id", itemID).Msg("caché de proyección no disponible")
		cached = nil
	}
	var cachedSeq int64
	p := entity.EmptyProjection(tenantID, itemID)
	if cached != nil {
		cachedSeq = cached.LastSeq
		if cached.LastSeq <= head {
			p = cached
		}
	}
	if p.LastSeq == head {
		return p, cachedSeq, nil
	}
	fctx, cancel := context.WithTimeout(ctx, s.cfg.RefoldTimeout)
	defer cancel()
	tail, err := l.ListByItem(fctx, tenantID, itemID, p.LastSeq, head)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && s.onRefoldTimeout != nil {
			s.onRefoldTimeout(tenantID, itemID)
		}
		return nil, 0, fmt.Errorf("fold %s: %w", itemID, err)
	}
	return inventory.FoldFrom(p, tail), cachedSeq, nil
}

func (s *Service) duplicateResult(ctx context.Context, dup *entity.LedgerEntry) (*AppendResult, error) {
	prefix, err := s.deps.Ledger.ListByItem(ctx, dup.TenantID, dup.ItemID, 0, dup.Seq)
	if err != nil {
		return nil, fmt.Errorf("append duplicado: %w", err)
	}
	p := inventory.Fold(dup.TenantID, dup.ItemID, prefix)
	s.log.Info().Str("tenant_id", dup.TenantID).Str("item_id", dup.ItemID).Int64("seq", dup.Seq).
		Msg("clave de idempotencia repetida, se devuelve la entrada existente")
	return &AppendResult{Seq: dup.Seq, OnHand: p.OnHand, Projection: p, Duplicate: true}, nil
}

// GetProjection devuelve la proyección al día, completando la caché con las entradas que le falten.
func (s *Service) GetProjection(ctx context.Context, tenantID, itemID string) (*entity.StockProjection, error) {
	item, err := s.deps.Items.Get(ctx, tenantID, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownItem, itemID)
	}
	cached, err := s.deps.Projections.Get(ctx, tenantID, itemID)
	if err != nil {
		s.log.Warn().Err(err).Str("item_id", itemID).Msg("caché de proyección no disponible")
	}
	p := entity.EmptyProjection(tenantID, itemID)
	var prev int64
	if cached != nil {
		p, prev = cached, cached.LastSeq
	}

	fctx, cancel := context.WithTimeout(ctx, s.cfg.RefoldTimeout)
	defer cancel()
	tail, err := s.deps.Ledger.ListByItem(fctx, tenantID, itemID, p.LastSeq, 0)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && s.onRefoldTimeout != nil {
			s.onRefoldTimeout(tenantID, itemID)
		}
		return nil, fmt.Errorf("projection %s: %w", itemID, err)
	}
	if len(tail) == 0 {
		return p, nil
	}
	p = inventory.FoldFrom(p, tail)
	if err := s.deps.Projections.CompareAndSet(ctx, p, prev); err != nil && !errors.Is(err, domain.ErrConflict) {
		s.log.Warn().Err(err).Str("item_id", itemID).Msg("no se pudo actualizar la caché")
	}
	return p, nil
}

// Refold descarta la caché y reconstruye la proyección con todas las entradas del libro.
func (s *Service) Refold(ctx context.Context, tenantID, itemID string) (*entity.StockProjection, error) {
	if err := s.deps.Projections.Invalidate(ctx, tenantID, itemID); err != nil {
		s.log.Warn().Err(err).Str("item_id", itemID).Msg("no se pudo invalidar la caché")
	}
	fctx, cancel := context.WithTimeout(ctx, s.cfg.RefoldTimeout)
	defer cancel()
	entries, err := s.deps.Ledger.ListByItem(fctx, tenantID, itemID, 0, 0)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && s.onRefoldTimeout != nil {
			s.onRefoldTimeout(tenantID, itemID)
		}
		return nil, fmt.Errorf("refold %s: %w", itemID, err)
	}
	p := inventory.Fold(tenantID, itemID, entries)
	if err := s.deps.Projections.CompareAndSet(ctx, p, 0); err != nil && !errors.Is(err, domain.ErrConflict) {
		return nil, err
	}
	return p, nil
}

// History entradas del artículo con timestamp en (from, to].
func (s *Service) History(ctx context.Context, tenantID, itemID string, from, to time.Time) ([]*entity.LedgerEntry, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: rango de fechas invertido", domain.ErrInvalidInput)
	}
	item, err := s.deps.Items.Get(ctx, tenantID, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownItem, itemID)
	}
	return s.deps.Ledger.ListByTime(ctx, tenantID, itemID, from, to)
}
