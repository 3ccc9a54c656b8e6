// Package snapshot arma las fotos inmutables del inventario de un tenant.
package snapshot

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/forecast"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/inventory"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/repository"
	"github.com/jhoicas/hotel-inventory-engine/pkg/clock"
	"github.com/jhoicas/hotel-inventory-engine/pkg/logger"
)

// ProjectionReader saldo al día (ledger.Service).
type ProjectionReader interface {
	GetProjection(ctx context.Context, tenantID, itemID string) (*entity.StockProjection, error)
}

// Config ventana de consumo y umbrales del disparo por cambio brusco.
type Config struct {
	WindowDays       int
	LowStockDelta    int     // K: variación de artículos bajos que dispara una foto
	RateJumpFraction float64 // salto relativo del consumo promedio que dispara una foto
}

// Deps dependencias del armador.
type Deps struct {
	Items       repository.ItemRepository
	Projections ProjectionReader
	Ledger      repository.LedgerRepository
	Snapshots   repository.SnapshotRepository
	Clock       clock.Clock
}

// Builder arma y guarda fotos.
type Builder struct {
	deps Deps
	cfg  Config
	log  *logger.Logger
}

// NewBuilder construye el armador.
func NewBuilder(deps Deps, cfg Config, log *logger.Logger) *Builder {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 30
	}
	if cfg.LowStockDelta <= 0 {
		cfg.LowStockDelta = 5
	}
	if cfg.RateJumpFraction <= 0 {
		cfg.RateJumpFraction = 0.5
	}
	return &Builder{deps: deps, cfg: cfg, log: log.Component("snapshot")}
}

// Snapshot arma la foto en el instante actual y la guarda como un único objeto.
func (b *Builder) Snapshot(ctx context.Context, tenantID string, trigger entity.SnapshotTrigger) (*entity.Snapshot, error) {
	if !trigger.Valid() {
		return nil, fmt.Errorf("%w: disparador %q", domain.ErrInvalidInput, trigger)
	}
	snap, err := b.build(ctx, tenantID, trigger)
	if err != nil {
		return nil, err
	}
	if err := b.deps.Snapshots.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("guardar foto: %w", err)
	}
	b.log.Info().Str("tenant_id", tenantID).Str("snapshot_id", snap.SnapshotID).Str("trigger", string(trigger)).
		Int("items", snap.Aggregates.TotalItems).Int("low_stock", snap.Aggregates.LowStockCount).Msg("foto de inventario guardada")
	return snap, nil
}

// CheckThresholds compara el estado actual con la última foto y guarda una foto THRESHOLD si
// la cantidad de artículos bajos varió más de K o el consumo promedio saltó más de la fracción.
// Sin foto previa no hay referencia y no dispara.
func (b *Builder) CheckThresholds(ctx context.Context, tenantID string) (*entity.Snapshot, bool, error) {
	prev, err := b.deps.Snapshots.Latest(ctx, tenantID)
	if err != nil {
		return nil, false, err
	}
	if prev == nil {
		return nil, false, nil
	}
	cur, err := b.build(ctx, tenantID, entity.TriggerThreshold)
	if err != nil {
		return nil, false, err
	}
	if !b.crossed(prev.Aggregates, cur.Aggregates) {
		return nil, false, nil
	}
	if err := b.deps.Snapshots.Save(ctx, cur); err != nil {
		return nil, false, fmt.Errorf("guardar foto: %w", err)
	}
	b.log.Info().Str("tenant_id", tenantID).Int("low_stock_prev", prev.Aggregates.LowStockCount).
		Int("low_stock", cur.Aggregates.LowStockCount).Float64("rate_prev", prev.Aggregates.AvgConsumptionRate).
		Float64("rate", cur.Aggregates.AvgConsumptionRate).Msg("foto por umbral")
	return cur, true, nil
}

func (b *Builder) crossed(prev, cur entity.SnapshotAggregates) bool {
	delta := cur.LowStockCount - prev.LowStockCount
	if delta < 0 {
		delta = -delta
	}
	if delta > b.cfg.LowStockDelta {
		return true
	}
	if prev.AvgConsumptionRate > 0 {
		jump := (cur.AvgConsumptionRate - prev.AvgConsumptionRate) / prev.AvgConsumptionRate
		return jump > b.cfg.RateJumpFraction
	}
	return false
}

// Latest última foto del tenant.
func (b *Builder) Latest(ctx context.Context, tenantID string) (*entity.Snapshot, error) {
	return b.deps.Snapshots.Latest(ctx, tenantID)
}

// List fotos entre from y to.
func (b *Builder) List(ctx context.Context, tenantID string, from, to time.Time) ([]*entity.Snapshot, error) {
	return b.deps.Snapshots.List(ctx, tenantID, from, to)
}

func (b *Builder) build(ctx context.Context, tenantID string, trigger entity.SnapshotTrigger) (*entity.Snapshot, error) {
	takenAt := b.deps.Clock.Now().UTC()
	windowStart := takenAt.AddDate(0, 0, -b.cfg.WindowDays)
	items, err := b.deps.Items.ListActive(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("artículos de %s: %w", tenantID, err)
	}

	snap := &entity.Snapshot{
		TenantID:   tenantID,
		SnapshotID: uuid.New().String(),
		TakenAt:    takenAt,
		Trigger:    trigger,
		Lines:      make([]entity.SnapshotLine, 0, len(items)),
	}
	agg := entity.SnapshotAggregates{TotalValue: decimal.Zero}
	rateSum := 0.0
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, err := b.line(ctx, it, windowStart, takenAt)
		if err != nil {
			return nil, err
		}
		snap.Lines = append(snap.Lines, line)

		agg.TotalItems++
		agg.TotalValue = agg.TotalValue.Add(line.TotalValue)
		switch {
		case !line.OnHand.IsPositive():
			agg.OutOfStockCount++
		case line.OnHand.LessThanOrEqual(it.Policy.ReorderPoint):
			agg.LowStockCount++
		}
		rateSum += line.ConsumptionRate30d
	}
	if agg.TotalItems > 0 {
		agg.AvgConsumptionRate = rateSum / float64(agg.TotalItems)
	}
	snap.Aggregates = agg
	return snap, nil
}

// line fija el saldo al instante to y suma sólo consumos con seq hasta ese punto dentro de (T−ventana, T].
// asOf saldo del artículo en to. Si la proyección ya tiene movimientos posteriores (escritos
// mientras se armaba la foto), se rehace el fold con el prefijo del libro hasta to.
func (b *Builder) asOf(ctx context.Context, it *entity.Item, to time.Time) (*entity.StockProjection, error) {
	proj, err := b.deps.Projections.GetProjection(ctx, it.TenantID, it.ItemID)
	if err != nil {
		return nil, fmt.Errorf("proyección de %s: %w", it.ItemID, err)
	}
	if !proj.LastUpdated.After(to) {
		return proj, nil
	}
	entries, err := b.deps.Ledger.ListByItem(ctx, it.TenantID, it.ItemID, 0, proj.LastSeq)
	if err != nil {
		return nil, fmt.Errorf("libro de %s: %w", it.ItemID, err)
	}
	cut := 0
	for cut < len(entries) && !entries[cut].Timestamp.After(to) {
		cut++
	}
	return inventory.Fold(it.TenantID, it.ItemID, entries[:cut]), nil
}

func (b *Builder) line(ctx context.Context, it *entity.Item, from, to time.Time) (entity.SnapshotLine, error) {
	proj, err := b.asOf(ctx, it, to)
	if err != nil {
		return entity.SnapshotLine{}, err
	}
	entries, err := b.deps.Ledger.ListByTime(ctx, it.TenantID, it.ItemID, from, to)
	if err != nil {
		return entity.SnapshotLine{}, fmt.Errorf("consumo de %s: %w", it.ItemID, err)
	}
	consumed := decimal.Zero
	for _, e := range entries {
		if e.Type == entity.EntryConsumption && e.Seq <= proj.LastSeq {
			consumed = consumed.Sub(e.Quantity)
		}
	}
	days := to.Sub(from).Hours() / 24
	rate := consumed.InexactFloat64() / math.Max(days, 1)

	unit := proj.WeightedAverageCost
	if !unit.IsPositive() {
		unit = it.Cost
	}
	valued := proj.OnHand
	if valued.IsNegative() {
		valued = decimal.Zero
	}
	return entity.SnapshotLine{
		ItemID:             it.ItemID,
		Category:           it.Category,
		OnHand:             proj.OnHand,
		LastSeq:            proj.LastSeq,
		ReorderPoint:       it.Policy.ReorderPoint,
		ConsumptionRate30d: rate,
		UnitValue:          unit,
		TotalValue:         valued.Mul(unit),
		DaysOfStock:        forecast.DaysOfStock(proj.OnHand.InexactFloat64(), rate),
	}, nil
}
