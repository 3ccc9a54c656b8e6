package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/ports"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/repository"
	"github.com/jhoicas/hotel-inventory-engine/internal/infrastructure/memory"
	"github.com/jhoicas/hotel-inventory-engine/pkg/clock"
	"github.com/jhoicas/hotel-inventory-engine/pkg/config"
	"github.com/jhoicas/hotel-inventory-engine/pkg/logger"
)

const tenant = "hotel-centro"

var t0 = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

type recordingTransport struct {
	mu   sync.Mutex
	sent []ports.Message
}

func (r *recordingTransport) Send(_ context.Context, msg ports.Message) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return "smtp-1", nil
}

func (r *recordingTransport) MultiRecipient() bool { return true }

type recordingBus struct {
	mu     sync.Mutex
	events []entity.ThresholdEvent
}

func (b *recordingBus) PublishThreshold(_ context.Context, evt entity.ThresholdEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, evt)
	return nil
}

type harness struct {
	eng   *Engine
	store *memory.Store
	clk   *clock.Fake
	tr    *recordingTransport
	bus   *recordingBus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	clk := clock.NewFake(t0)
	tr := &recordingTransport{}
	bus := &recordingBus{}
	store.Directory.Add(tenant, "inventory_manager", entity.Recipient{ID: "ama-de-llaves", Address: "ama@hotel.test"})

	eng := New(Deps{
		Items:       store.Items,
		Policies:    store.Policies,
		Tx:          memory.NewTxRunner(store.Ledger),
		Ledger:      store.Ledger,
		Projections: store.Projections,
		Alerts:      store.Alerts,
		Snapshots:   store.Snapshots,
		Tasks:       store.Tasks,
		Directory:   store.Directory,
		Locker:      memory.NewKeyedLocker(),
		Transport:   tr,
		Bus:         bus,
		Clock:       clk,
	}, config.EngineConfig{
		Tenants:             []string{tenant},
		SafetyDays:          3,
		SafetyStockDays:     3,
		OperatorRole:        "inventory_manager",
		AlertCoalesceWindow: 5 * time.Second,
	}, 0, logger.Nop())
	return &harness{eng: eng, store: store, clk: clk, tr: tr, bus: bus}
}

func (h *harness) item(t *testing.T, id string, leadTime int) {
	t.Helper()
	require.NoError(t, h.eng.SaveItem(context.Background(), &entity.Item{
		TenantID: tenant, ItemID: id, Name: "Toalla de baño", Category: "linen", Cost: decimal.NewFromInt(3), Active: true,
		Policy: entity.ReorderPolicy{ReorderPoint: decimal.NewFromInt(10), ReorderQuantity: decimal.NewFromInt(20),
			MaxStock: decimal.NewFromInt(80), LeadTimeDays: leadTime, AutoReorderEnabled: true},
	}))
}

func (h *harness) post(t *testing.T, id string, typ entity.EntryType, qty int64, meta map[string]string) *entity.StockProjection {
	t.Helper()
	res, err := h.eng.Append(context.Background(), &entity.LedgerEntry{TenantID: tenant, ItemID: id, Type: typ,
		Quantity: decimal.NewFromInt(qty), UnitCost: decimal.NewFromInt(3), ActorID: "recepcion", Metadata: meta})
	require.NoError(t, err)
	return res.Projection
}

func (h *harness) tasks(t *testing.T, alertID string, stage entity.NotificationStage) []*entity.NotificationTask {
	t.Helper()
	all, err := h.store.Tasks.ListByAlert(context.Background(), tenant, alertID)
	require.NoError(t, err)
	var out []*entity.NotificationTask
	for _, task := range all {
		if task.Stage == stage {
			out = append(out, task)
		}
	}
	return out
}

func (h *harness) openAlert(t *testing.T, itemID string) *entity.Alert {
	t.Helper()
	a, err := h.store.Alerts.GetOpenByItem(context.Background(), tenant, itemID)
	require.NoError(t, err)
	return a
}

func TestScenario_AlertLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.item(t, "towel", 2)
	h.post(t, "towel", entity.EntryRestock, 11, nil)

	// 1. primer consumo por debajo del punto de reorden
	p := h.post(t, "towel", entity.EntryConsumption, -2, nil)
	assert.True(t, decimal.NewFromInt(9).Equal(p.OnHand))
	first := h.openAlert(t, "towel")
	require.NotNil(t, first)
	assert.Equal(t, entity.AlertReorderNeeded, first.Type)
	assert.Equal(t, entity.PriorityMedium, first.Priority)
	assert.True(t, decimal.NewFromInt(20).Equal(first.SuggestedQuantity))
	assert.Len(t, h.tasks(t, first.AlertID, entity.StageInitial), 1)
	require.Len(t, h.bus.events, 1)
	assert.Equal(t, entity.CrossedDown, h.bus.events[0].Direction)
	assert.Equal(t, h.eng.InstanceID, h.bus.events[0].Origin)

	h.clk.Advance(30 * time.Second)
	rep, err := h.eng.Dispatcher.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Delivered)

	// 2. escalamiento con una sola ESCALATION por día
	h.post(t, "towel", entity.EntryConsumption, -7, nil)
	second := h.openAlert(t, "towel")
	assert.Equal(t, first.AlertID, second.AlertID)
	assert.True(t, decimal.NewFromInt(2).Equal(second.ObservedOnHand))
	assert.Equal(t, entity.PriorityCritical, second.Priority)
	esc := h.tasks(t, first.AlertID, entity.StageEscalation)
	require.Len(t, esc, 1)
	assert.Equal(t, "2026-10-15", esc[0].Day)

	h.post(t, "towel", entity.EntryConsumption, -1, nil)
	assert.Len(t, h.tasks(t, first.AlertID, entity.StageEscalation), 1)

	// 3. la reposición resuelve la alerta sin notificar
	p = h.post(t, "towel", entity.EntryRestock, 30, nil)
	assert.True(t, decimal.NewFromInt(31).Equal(p.OnHand))
	resolved, err := h.store.Alerts.Get(ctx, tenant, first.AlertID)
	require.NoError(t, err)
	assert.Equal(t, entity.AlertResolved, resolved.State)
	all, err := h.store.Tasks.ListByAlert(ctx, tenant, first.AlertID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Nil(t, h.openAlert(t, "towel"))

	logged, err := h.store.Alerts.Get(ctx, tenant, first.AlertID)
	require.NoError(t, err)
	require.Len(t, logged.NotificationLog, 1)
	assert.Equal(t, entity.StageInitial, logged.NotificationLog[0].Stage)
}

func TestScenario_IdempotentAppend(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.item(t, "soap", 2)
	h.post(t, "soap", entity.EntryRestock, 50, nil)

	entry := func() *entity.LedgerEntry {
		return &entity.LedgerEntry{TenantID: tenant, ItemID: "soap", Type: entity.EntryConsumption,
			Quantity: decimal.NewFromInt(-1), ActorID: "recepcion", Metadata: map[string]string{entity.MetaIdempotencyKey: "k1"}}
	}
	a, err := h.eng.Append(ctx, entry())
	require.NoError(t, err)
	b, err := h.eng.Append(ctx, entry())
	require.NoError(t, err)

	assert.Equal(t, a.Seq, b.Seq)
	assert.True(t, a.OnHand.Equal(b.OnHand))
	assert.True(t, b.Duplicate)

	history, err := h.eng.History(ctx, tenant, "soap", t0.Add(-time.Hour), t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestScenario_SnapshotConsistency(t *testing.T) {
	h := newHarness(t)
	h.item(t, "soap", 2)
	h.clk.Set(t0.AddDate(0, 0, -40))
	h.post(t, "soap", entity.EntryRestock, 20, nil)
	for i, q := range []int64{-1, -1, -1, -1, -2} {
		h.clk.Set(t0.AddDate(0, 0, -20+i))
		h.post(t, "soap", entity.EntryConsumption, q, nil)
	}
	h.clk.Set(t0)

	snap, err := h.eng.Snapshot(context.Background(), tenant, "")
	require.NoError(t, err)
	assert.Equal(t, entity.TriggerManual, snap.Trigger)
	line, ok := snap.Line("soap")
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(14).Equal(line.OnHand))
	assert.InDelta(t, 0.2, line.ConsumptionRate30d, 1e-9)
}

func TestScenario_ForecastStockout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.item(t, "towel", 5)
	h.clk.Set(t0.AddDate(0, 0, -30))
	h.post(t, "towel", entity.EntryRestock, 132, nil)
	for d := 29; d >= 0; d-- {
		h.clk.Set(t0.AddDate(0, 0, -d))
		h.post(t, "towel", entity.EntryConsumption, -4, nil)
	}
	h.clk.Set(t0)

	fc, err := h.eng.Forecast(ctx, tenant, "towel", 7, 0.95)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, fc.ProjectedDailyDemand, 1e-9)
	assert.InDelta(t, 0.0, fc.Points[2].ProjectedOnHand, 1e-9)

	require.NoError(t, h.eng.Evaluate(ctx, tenant))
	a := h.openAlert(t, "towel")
	require.NotNil(t, a)
	assert.Equal(t, entity.PriorityCritical, a.Priority)

	_, err = h.eng.Forecast(ctx, tenant, "towel", 0, 0.95)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPolicyChangeTriggersEvaluation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.item(t, "towel", 2)
	h.post(t, "towel", entity.EntryRestock, 18, nil)
	assert.Nil(t, h.openAlert(t, "towel"))

	item, err := h.eng.UpdatePolicy(ctx, tenant, "towel", entity.ReorderPolicy{ReorderPoint: decimal.NewFromInt(20),
		ReorderQuantity: decimal.NewFromInt(30), MaxStock: decimal.NewFromInt(80), LeadTimeDays: 2, AutoReorderEnabled: true}, "gerente")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(20).Equal(item.Policy.ReorderPoint))

	a := h.openAlert(t, "towel")
	require.NotNil(t, a)
	assert.Equal(t, entity.AlertReorderNeeded, a.Type)
}

func TestManualItem_OnlyScheduledPassAlerts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.eng.SaveItem(ctx, &entity.Item{
		TenantID: tenant, ItemID: "sabana", Name: "Sábana doble", Category: "linen", Cost: decimal.NewFromInt(40), Active: true,
		Policy: entity.ReorderPolicy{ReorderPoint: decimal.NewFromInt(10), MaxStock: decimal.NewFromInt(50), LeadTimeDays: 4},
	}))
	h.post(t, "sabana", entity.EntryRestock, 12, nil)
	h.post(t, "sabana", entity.EntryConsumption, -11, nil)

	// el libro no dispara la evaluación de un artículo sin reposición automática
	assert.Nil(t, h.openAlert(t, "sabana"))
	assert.Empty(t, h.bus.events)

	require.NoError(t, h.eng.Evaluate(ctx, tenant))
	a := h.openAlert(t, "sabana")
	require.NotNil(t, a)
	assert.Equal(t, entity.AlertCriticalStock, a.Type)
	assert.Len(t, h.tasks(t, a.AlertID, entity.StageInitial), 1)
}

func TestHandleThreshold_IgnoresOwnEvents(t *testing.T) {
	h := newHarness(t)
	h.item(t, "towel", 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.eng.Scheduler.Start(ctx) }()

	h.eng.HandleThreshold(ctx, entity.ThresholdEvent{TenantID: tenant, ItemID: "towel",
		Direction: entity.CrossedDown, Origin: h.eng.InstanceID})
	h.eng.HandleThreshold(ctx, entity.ThresholdEvent{TenantID: tenant, ItemID: "towel",
		Direction: entity.CrossedDown, Origin: "otra-instancia"})

	assert.Eventually(t, func() bool {
		return h.eng.Scheduler.Stats(JobEvaluateItem).Runs == 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, h.eng.Scheduler.Stats(JobEvaluateItem).Runs)
}

func TestSummary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.item(t, "towel", 2)
	h.post(t, "towel", entity.EntryRestock, 4, nil)
	require.NoError(t, h.eng.Evaluate(ctx, tenant))

	sum, err := h.eng.Summary(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.OpenAlerts)
	assert.Equal(t, 1, sum.AlertsByPriority[string(entity.PriorityHigh)])

	alerts, err := h.eng.ListAlerts(ctx, tenant, repository.AlertFilter{OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	acked, err := h.eng.AckAlert(ctx, tenant, alerts[0].AlertID, "gerente")
	require.NoError(t, err)
	assert.Equal(t, entity.AlertAcknowledged, acked.State)
}
