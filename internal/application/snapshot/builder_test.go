package snapshot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/ledger"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/infrastructure/memory"
	"github.com/jhoicas/hotel-inventory-engine/pkg/clock"
	"github.com/jhoicas/hotel-inventory-engine/pkg/logger"
)

var now = time.Date(2026, 10, 15, 3, 0, 0, 0, time.UTC)

type env struct {
	b      *Builder
	ledger *ledger.Service
	store  *memory.Store
	clk    *clock.Fake
}

func newEnv(t *testing.T, cfg Config, items ...string) *env {
	t.Helper()
	store := memory.NewStore()
	clk := clock.NewFake(now)
	led := ledger.NewService(ledger.Deps{
		Items: store.Items, Policies: store.Policies, Tx: memory.NewTxRunner(store.Ledger), Ledger: store.Ledger,
		Projections: store.Projections, Locker: memory.NewKeyedLocker(), Clock: clk,
	}, ledger.Config{}, logger.Nop())
	for _, id := range items {
		require.NoError(t, led.SaveItem(context.Background(), &entity.Item{
			TenantID: "h1", ItemID: id, Name: id, Category: "linen", Active: true, Cost: decimal.NewFromInt(2),
			Policy: entity.ReorderPolicy{ReorderPoint: decimal.NewFromInt(10), ReorderQuantity: decimal.NewFromInt(20), MaxStock: decimal.NewFromInt(100)},
		}))
	}
	b := NewBuilder(Deps{Items: store.Items, Projections: led, Ledger: store.Ledger, Snapshots: store.Snapshots, Clock: clk}, cfg, logger.Nop())
	return &env{b: b, ledger: led, store: store, clk: clk}
}

func (e *env) post(t *testing.T, at time.Time, itemID string, typ entity.EntryType, qty, cost int64) {
	t.Helper()
	e.clk.Set(at)
	_, err := e.ledger.Append(context.Background(), &entity.LedgerEntry{TenantID: "h1", ItemID: itemID, Type: typ,
		Quantity: decimal.NewFromInt(qty), UnitCost: decimal.NewFromInt(cost), ActorID: "u1"})
	require.NoError(t, err)
}

func TestSnapshot_ConsumptionWindow(t *testing.T) {
	e := newEnv(t, Config{}, "towel")
	e.post(t, now.AddDate(0, 0, -40), "towel", entity.EntryRestock, 21, 5)
	// fuera de la ventana: exactamente T−30d no cuenta
	e.post(t, now.AddDate(0, 0, -30), "towel", entity.EntryConsumption, -1, 0)
	for i, q := range []int64{-1, -1, -1, -1, -2} {
		e.post(t, now.AddDate(0, 0, -25+i*5), "towel", entity.EntryConsumption, q, 0)
	}
	e.clk.Set(now)

	snap, err := e.b.Snapshot(context.Background(), "h1", entity.TriggerManual)
	require.NoError(t, err)

	line, ok := snap.Line("towel")
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(14).Equal(line.OnHand))
	assert.InDelta(t, 0.2, line.ConsumptionRate30d, 1e-9)
	require.NotNil(t, line.DaysOfStock)
	assert.InDelta(t, 70.0, *line.DaysOfStock, 1e-9)
	assert.True(t, decimal.NewFromInt(5).Equal(line.UnitValue))
	assert.True(t, decimal.NewFromInt(70).Equal(line.TotalValue))
	assert.Equal(t, entity.TriggerManual, snap.Trigger)
	assert.Equal(t, now, snap.TakenAt)
}

// racingReader escribe en el libro justo antes de la primera lectura de proyección.
type racingReader struct {
	ProjectionReader
	once sync.Once
	race func()
}

func (r *racingReader) GetProjection(ctx context.Context, tenantID, itemID string) (*entity.StockProjection, error) {
	r.once.Do(r.race)
	return r.ProjectionReader.GetProjection(ctx, tenantID, itemID)
}

func TestSnapshot_IgnoresEntriesAfterTakenAt(t *testing.T) {
	e := newEnv(t, Config{}, "towel")
	e.post(t, now.AddDate(0, 0, -1), "towel", entity.EntryRestock, 20, 5)
	e.post(t, now.Add(-time.Hour), "towel", entity.EntryConsumption, -3, 0)
	e.clk.Set(now)

	reader := &racingReader{ProjectionReader: e.ledger, race: func() {
		e.post(t, now.Add(time.Second), "towel", entity.EntryRestock, 10, 8)
	}}
	b := NewBuilder(Deps{Items: e.store.Items, Projections: reader, Ledger: e.store.Ledger, Snapshots: e.store.Snapshots, Clock: e.clk}, Config{}, logger.Nop())

	snap, err := b.Snapshot(context.Background(), "h1", entity.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, now, snap.TakenAt)

	line, ok := snap.Line("towel")
	require.True(t, ok)
	assert.Equal(t, int64(2), line.LastSeq)
	assert.True(t, decimal.NewFromInt(17).Equal(line.OnHand), line.OnHand.String())
	assert.True(t, decimal.NewFromInt(5).Equal(line.UnitValue))
	assert.True(t, decimal.NewFromInt(85).Equal(line.TotalValue))
	assert.InDelta(t, 0.1, line.ConsumptionRate30d, 1e-9)

	// la escritura concurrente sí quedó en el libro
	p, err := e.ledger.GetProjection(context.Background(), "h1", "towel")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(27).Equal(p.OnHand))
}

func TestSnapshot_IsImmutable(t *testing.T) {
	e := newEnv(t, Config{}, "towel")
	ctx := context.Background()
	e.post(t, now.AddDate(0, 0, -1), "towel", entity.EntryRestock, 20, 5)
	e.clk.Set(now)
	snap, err := e.b.Snapshot(ctx, "h1", entity.TriggerScheduled)
	require.NoError(t, err)

	e.post(t, now.Add(time.Minute), "towel", entity.EntryConsumption, -3, 0)
	latest, err := e.b.Latest(ctx, "h1")
	require.NoError(t, err)
	line, _ := latest.Line("towel")
	assert.Equal(t, snap.SnapshotID, latest.SnapshotID)
	assert.True(t, decimal.NewFromInt(20).Equal(line.OnHand))

	later, err := e.b.Snapshot(ctx, "h1", entity.TriggerManual)
	require.NoError(t, err)
	laterLine, _ := later.Line("towel")
	assert.GreaterOrEqual(t, laterLine.LastSeq, line.LastSeq)
	assert.True(t, decimal.NewFromInt(17).Equal(laterLine.OnHand))
}

func TestSnapshot_Aggregates(t *testing.T) {
	e := newEnv(t, Config{}, "towel", "soap", "slippers")
	e.post(t, now.AddDate(0, 0, -2), "towel", entity.EntryRestock, 30, 4)
	e.post(t, now.AddDate(0, 0, -2), "soap", entity.EntryRestock, 8, 1)
	e.clk.Set(now)

	snap, err := e.b.Snapshot(context.Background(), "h1", entity.TriggerManual)
	require.NoError(t, err)
	agg := snap.Aggregates
	assert.Equal(t, 3, agg.TotalItems)
	assert.Equal(t, 1, agg.LowStockCount)
	assert.Equal(t, 1, agg.OutOfStockCount)
	assert.True(t, decimal.NewFromInt(128).Equal(agg.TotalValue))

	slippers, _ := snap.Line("slippers")
	assert.Nil(t, slippers.DaysOfStock)
	assert.True(t, decimal.NewFromInt(2).Equal(slippers.UnitValue))
}

func TestSnapshot_InvalidTrigger(t *testing.T) {
	e := newEnv(t, Config{}, "towel")
	_, err := e.b.Snapshot(context.Background(), "h1", entity.SnapshotTrigger("WEEKLY"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCheckThresholds(t *testing.T) {
	e := newEnv(t, Config{LowStockDelta: 1}, "towel", "soap", "slippers")
	ctx := context.Background()
	for _, id := range []string{"towel", "soap", "slippers"} {
		e.post(t, now.AddDate(0, 0, -10), id, entity.EntryRestock, 30, 1)
	}
	e.clk.Set(now)

	_, fired, err := e.b.CheckThresholds(ctx, "h1")
	require.NoError(t, err)
	assert.False(t, fired, "sin foto previa no hay referencia")

	_, err = e.b.Snapshot(ctx, "h1", entity.TriggerScheduled)
	require.NoError(t, err)

	e.post(t, now.Add(time.Hour), "towel", entity.EntryConsumption, -25, 0)
	_, fired, err = e.b.CheckThresholds(ctx, "h1")
	require.NoError(t, err)
	assert.False(t, fired, "un artículo bajo no supera K=1")

	e.post(t, now.Add(2*time.Hour), "soap", entity.EntryConsumption, -25, 0)
	snap, fired, err := e.b.CheckThresholds(ctx, "h1")
	require.NoError(t, err)
	require.True(t, fired)
	assert.Equal(t, entity.TriggerThreshold, snap.Trigger)
	assert.Equal(t, 2, snap.Aggregates.LowStockCount)
}

func TestCheckThresholds_RateJump(t *testing.T) {
	e := newEnv(t, Config{LowStockDelta: 100}, "towel")
	ctx := context.Background()
	e.post(t, now.AddDate(0, 0, -20), "towel", entity.EntryRestock, 500, 1)
	e.post(t, now.AddDate(0, 0, -10), "towel", entity.EntryConsumption, -30, 0)
	e.clk.Set(now)
	_, err := e.b.Snapshot(ctx, "h1", entity.TriggerScheduled)
	require.NoError(t, err)

	e.post(t, now.Add(time.Hour), "towel", entity.EntryConsumption, -15, 0)
	_, fired, err := e.b.CheckThresholds(ctx, "h1")
	require.NoError(t, err)
	assert.False(t, fired, "+50% exacto no dispara")

	e.post(t, now.Add(2*time.Hour), "towel", entity.EntryConsumption, -1, 0)
	_, fired, err = e.b.CheckThresholds(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, fired)
}
