// Package engine arma los componentes del motor de reposición y expone sus operaciones.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/alerting"
	"github.com/jhoicas/hotel-inventory-engine/internal/application/analytics"
	"github.com/jhoicas/hotel-inventory-engine/internal/application/forecasting"
	"github.com/jhoicas/hotel-inventory-engine/internal/application/ledger"
	"github.com/jhoicas/hotel-inventory-engine/internal/application/notification"
	"github.com/jhoicas/hotel-inventory-engine/internal/application/ports"
	"github.com/jhoicas/hotel-inventory-engine/internal/application/scheduler"
	"github.com/jhoicas/hotel-inventory-engine/internal/application/snapshot"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/inventory"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/repository"
	"github.com/jhoicas/hotel-inventory-engine/pkg/clock"
	"github.com/jhoicas/hotel-inventory-engine/pkg/config"
	"github.com/jhoicas/hotel-inventory-engine/pkg/logger"
)

// Nombres de los trabajos del planificador.
const (
	JobEvaluate          = "evaluate"
	JobEvaluateItem      = "evaluate-item"
	JobSnapshot          = "snapshot"
	JobSnapshotThreshold = "snapshot-threshold"
	JobRefold            = "refold"
)

// Deps almacenes y adaptadores que el motor no crea.
type Deps struct {
	Items       repository.ItemRepository
	Policies    repository.PolicyHistoryRepository
	Tx          ledger.TxRunner
	Ledger      repository.LedgerRepository
	Projections repository.ProjectionRepository
	Alerts      repository.AlertRepository
	Snapshots   repository.SnapshotRepository
	Tasks       repository.NotificationTaskRepository
	Directory   repository.RecipientDirectory
	Locker      ports.Locker // locks por artículo
	JobLocker   ports.Locker // instancia única de trabajos; nil = Locker
	Transport   ports.Transport
	Bus         ports.TriggerBus
	Clock       clock.Clock
}

// Engine componentes cableados.
type Engine struct {
	InstanceID string

	Ledger     *ledger.Service
	Evaluator  *alerting.Evaluator
	Forecaster *forecasting.Forecaster
	Snapshots  *snapshot.Builder
	Dispatcher *notification.Dispatcher
	Scheduler  *scheduler.Scheduler
	Dashboard  *analytics.DashboardUseCase

	tenants map[string]bool
	bus     ports.TriggerBus
	log     *logger.Logger
}

// New cablea el motor. rate es el límite de envíos por segundo del transporte (0 = sin límite).
func New(deps Deps, cfg config.EngineConfig, rate float64, log *logger.Logger) *Engine {
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Bus == nil {
		deps.Bus = ports.NopBus{}
	}
	if deps.JobLocker == nil {
		deps.JobLocker = deps.Locker
	}
	e := &Engine{InstanceID: uuid.New().String(), bus: deps.Bus, log: log.Component("engine")}

	e.Ledger = ledger.NewService(ledger.Deps{
		Items:       deps.Items,
		Policies:    deps.Policies,
		Tx:          deps.Tx,
		Ledger:      deps.Ledger,
		Projections: deps.Projections,
		Locker:      deps.Locker,
		Clock:       deps.Clock,
	}, ledger.Config{RefoldTimeout: cfg.RefoldTimeout}, log)

	e.Forecaster = forecasting.NewForecaster(deps.Items, deps.Ledger, e.Ledger, e.Ledger, deps.Clock, forecasting.Config{
		AnalysisWindowDays:    cfg.AnalysisWindowDays,
		ConsumptionWindowDays: cfg.ConsumptionWindowDays,
		SafetyDays:            cfg.SafetyDays,
		SafetyStockDays:       cfg.SafetyStockDays,
	}, log)

	e.Dispatcher = notification.NewDispatcher(notification.Deps{
		Tasks:     deps.Tasks,
		Alerts:    deps.Alerts,
		Transport: deps.Transport,
		Clock:     deps.Clock,
	}, notification.Config{
		MaxAttempts:    cfg.NotificationMaxAttempts,
		BackoffBase:    cfg.NotificationBackoffBase,
		BackoffCap:     cfg.NotificationBackoffCap,
		CoalesceWindow: cfg.AlertCoalesceWindow,
		FanInWindow:    cfg.RecipientFanInWindow,
		PollInterval:   cfg.DispatcherPollInterval,
		RatePerSecond:  rate,
	}, log)

	e.Evaluator = alerting.NewEvaluator(alerting.Deps{
		Items:       deps.Items,
		Projections: e.Ledger,
		Demand:      e.Forecaster,
		Alerts:      deps.Alerts,
		Directory:   deps.Directory,
		Sink:        e.Dispatcher,
		Locker:      deps.Locker,
		Clock:       deps.Clock,
	}, alerting.Config{
		Thresholds:         thresholds(cfg),
		CriticalCategories: cfg.CriticalCategories,
		SafetyDays:         cfg.SafetyDays,
		SafetyStockDays:    cfg.SafetyStockDays,
		OperatorRole:       cfg.OperatorRole,
		SupplierNotifyOn:   entity.AlertPriority(cfg.SupplierNotifyOn),
	}, log)

	e.Snapshots = snapshot.NewBuilder(snapshot.Deps{
		Items:       deps.Items,
		Projections: e.Ledger,
		Ledger:      deps.Ledger,
		Snapshots:   deps.Snapshots,
		Clock:       deps.Clock,
	}, snapshot.Config{
		WindowDays:       cfg.ConsumptionWindowDays,
		LowStockDelta:    cfg.SnapshotLowStockDelta,
		RateJumpFraction: cfg.SnapshotRateJumpFraction,
	}, log)

	e.Dashboard = analytics.NewDashboardUseCase(e.Evaluator, e.Snapshots, e.Forecaster, e.Dispatcher, deps.Clock)

	e.Scheduler = scheduler.New(deps.JobLocker, deps.Clock, scheduler.Config{
		Tenants:    cfg.Tenants,
		Workers:    cfg.Workers,
		JobTimeout: cfg.JobTimeout,
	}, log)
	e.registerJobs(cfg)

	e.tenants = make(map[string]bool, len(cfg.Tenants))
	for _, t := range cfg.Tenants {
		e.tenants[t] = true
	}

	e.Ledger.OnAppend(e.onAppend)
	e.Ledger.OnPolicyChange(func(ctx context.Context, item *entity.Item) {
		if err := e.Scheduler.RunNow(ctx, item.TenantID, JobEvaluateItem, item.ItemID); err != nil {
			e.log.Warn().Err(err).Str("item_id", item.ItemID).Msg("no se pudo reevaluar tras cambio de política")
		}
	})
	e.Ledger.OnRefoldTimeout(func(tenantID, itemID string) {
		e.Scheduler.Trigger(tenantID, JobRefold, itemID)
	})
	return e
}

func thresholds(cfg config.EngineConfig) inventory.Thresholds {
	th := inventory.DefaultThresholds()
	if cfg.CriticalOnHandFactor > 0 {
		th.CriticalFactor = decimal.NewFromFloat(cfg.CriticalOnHandFactor)
	}
	if cfg.LowOnHandFactor > 0 {
		th.LowFactor = decimal.NewFromFloat(cfg.LowOnHandFactor)
	}
	return th
}

func (e *Engine) registerJobs(cfg config.EngineConfig) {
	e.Scheduler.Register(JobEvaluate, func(ctx context.Context, tenantID, _ string) error {
		_, err := e.Evaluator.Evaluate(ctx, tenantID)
		return err
	}, scheduler.NoDaily(cfg.EvaluatorCadence))

	e.Scheduler.Register(JobEvaluateItem, func(ctx context.Context, tenantID, itemID string) error {
		_, err := e.Evaluator.EvaluateItem(ctx, tenantID, itemID)
		return err
	}, scheduler.NoDaily(0))

	e.Scheduler.Register(JobSnapshot, func(ctx context.Context, tenantID, _ string) error {
		_, err := e.Snapshots.Snapshot(ctx, tenantID, entity.TriggerScheduled)
		return err
	}, scheduler.Options{DailyAtHourUTC: cfg.SnapshotHourUTC})

	e.Scheduler.Register(JobSnapshotThreshold, func(ctx context.Context, tenantID, _ string) error {
		_, _, err := e.Snapshots.CheckThresholds(ctx, tenantID)
		return err
	}, scheduler.NoDaily(0))

	e.Scheduler.Register(JobRefold, func(ctx context.Context, tenantID, itemID string) error {
		_, err := e.Ledger.Refold(ctx, tenantID, itemID)
		return err
	}, scheduler.Options{DailyAtHourUTC: -1, Timeout: cfg.RefoldTimeout})
}

// onAppend reacciona a cada escritura durable del libro.
func (e *Engine) onAppend(ctx context.Context, evt ledger.AppendEvent) {
	item, entry := evt.Item, evt.Entry
	rp := item.Policy.ReorderPoint
	switch {
	case entry.Type == entity.EntryRestock && evt.After.OnHand.GreaterThan(rp):
		resolved, err := e.Evaluator.AutoResolve(ctx, item.TenantID, item.ItemID)
		if err != nil {
			e.log.Error().Err(err).Str("item_id", item.ItemID).Msg("no se pudo resolver la alerta tras la reposición")
		}
		if resolved != nil && evt.Before.OnHand.LessThanOrEqual(rp) {
			e.publish(ctx, item, entry, entity.CrossedUp)
		}
	case item.Policy.AutoReorderEnabled && evt.After.OnHand.LessThanOrEqual(rp) && evt.After.OnHand.LessThan(evt.Before.OnHand):
		if err := e.Scheduler.RunNow(ctx, item.TenantID, JobEvaluateItem, item.ItemID); err != nil {
			e.log.Error().Err(err).Str("item_id", item.ItemID).Msg("fallo la evaluación disparada por el libro")
		}
		if evt.Before.OnHand.GreaterThan(rp) {
			e.publish(ctx, item, entry, entity.CrossedDown)
		}
	}
	e.Scheduler.Trigger(item.TenantID, JobSnapshotThreshold, "")
}

func (e *Engine) publish(ctx context.Context, item *entity.Item, entry *entity.LedgerEntry, direction string) {
	evt := entity.ThresholdEvent{
		TenantID:  item.TenantID,
		ItemID:    item.ItemID,
		Seq:       entry.Seq,
		Direction: direction,
		Origin:    e.InstanceID,
		At:        entry.Timestamp,
	}
	if err := e.bus.PublishThreshold(ctx, evt); err != nil {
		e.log.Warn().Err(err).Str("item_id", item.ItemID).Msg("no se pudo publicar el cruce de umbral")
	}
}

// HandleThreshold procesa un cruce publicado por otra instancia.
func (e *Engine) HandleThreshold(_ context.Context, evt entity.ThresholdEvent) {
	if evt.Origin == e.InstanceID {
		return
	}
	if evt.Direction == entity.CrossedDown {
		e.Scheduler.Trigger(evt.TenantID, JobEvaluateItem, evt.ItemID)
	}
}

// Run arranca planificador y despachador hasta que ctx termine.
func (e *Engine) Run(ctx context.Context) error {
	started := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.Scheduler.Start(gctx) })
	g.Go(func() error {
		e.Dispatcher.Run(gctx)
		return nil
	})
	e.log.Info().Str("instance_id", e.InstanceID).Msg("motor de reposición en marcha")
	err := g.Wait()
	e.log.Info().Dur("uptime", time.Since(started)).Msg("motor detenido")
	return err
}
