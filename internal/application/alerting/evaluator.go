package alerting

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/ports"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/inventory"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/repository"
	"github.com/jhoicas/hotel-inventory-engine/pkg/clock"
	"github.com/jhoicas/hotel-inventory-engine/pkg/logger"
)

// minStockoutSampleDays días de historial mínimos para subir la prioridad por quiebre inminente.
const minStockoutSampleDays = 7

// Config parámetros del evaluador.
type Config struct {
	Thresholds         inventory.Thresholds
	CriticalCategories []string
	SafetyDays         int
	SafetyStockDays    int
	OperatorRole       string
	SupplierNotifyOn   entity.AlertPriority // vacío = nunca notificar al proveedor
	MaxRetries         int
}

// Deps dependencias del evaluador.
type Deps struct {
	Items       repository.ItemRepository
	Projections ProjectionReader
	Demand      DemandSource
	Alerts      repository.AlertRepository
	Directory   repository.RecipientDirectory
	Sink        NotificationSink
	Locker      ports.Locker
	Clock       clock.Clock
}

// Report resumen de una pasada del evaluador.
type Report struct {
	TenantID  string
	Evaluated int
	Created   int
	Updated   int
	Escalated int
	Failed    int
}

// Evaluator clasifica artículos, mantiene el ciclo de vida de las alertas y emite notificaciones.
type Evaluator struct {
	deps         Deps
	cfg          Config
	criticalCats map[string]bool
	log          *logger.Logger
}

// NewEvaluator construye el evaluador.
func NewEvaluator(deps Deps, cfg Config, log *logger.Logger) *Evaluator {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.Thresholds.CriticalFactor.IsZero() && cfg.Thresholds.LowFactor.IsZero() {
		cfg.Thresholds = inventory.DefaultThresholds()
	}
	if cfg.OperatorRole == "" {
		cfg.OperatorRole = "inventory_manager"
	}
	cats := make(map[string]bool, len(cfg.CriticalCategories))
	for _, c := range cfg.CriticalCategories {
		cats[c] = true
	}
	return &Evaluator{deps: deps, cfg: cfg, criticalCats: cats, log: log.Component("evaluator")}
}

func lockKey(tenantID, itemID string) string {
	return "alert:" + tenantID + ":" + itemID
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomeCreated
	outcomeUpdated
	outcomeEscalated
)

// Evaluate recorre los artículos activos del tenant. Un fallo en un artículo no detiene la pasada.
func (e *Evaluator) Evaluate(ctx context.Context, tenantID string) (Report, error) {
	rep := Report{TenantID: tenantID}
	items, err := e.deps.Items.ListActive(ctx, tenantID)
	if err != nil {
		return rep, fmt.Errorf("evaluate %s: %w", tenantID, err)
	}
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		_, out, err := e.evaluateItem(ctx, tenantID, it.ItemID)
		rep.Evaluated++
		if err != nil {
			rep.Failed++
			e.log.Error().Err(err).Str("tenant_id", tenantID).Str("item_id", it.ItemID).Msg("fallo al evaluar artículo")
			continue
		}
		switch out {
		case outcomeCreated:
			rep.Created++
		case outcomeUpdated:
			rep.Updated++
		case outcomeEscalated:
			rep.Updated++
			rep.Escalated++
		}
		// ceder entre artículos para no acaparar los workers
		runtime.Gosched()
	}
	e.log.Debug().Str("tenant_id", tenantID).Int("evaluated", rep.Evaluated).Int("created", rep.Created).
		Int("updated", rep.Updated).Msg("pasada del evaluador terminada")
	return rep, nil
}

// EvaluateItem evalúa un artículo y devuelve su alerta abierta (nil si no corresponde alerta).
func (e *Evaluator) EvaluateItem(ctx context.Context, tenantID, itemID string) (*entity.Alert, error) {
	a, _, err := e.evaluateItem(ctx, tenantID, itemID)
	return a, err
}

func (e *Evaluator) evaluateItem(ctx context.Context, tenantID, itemID string) (*entity.Alert, outcome, error) {
	unlock, err := e.deps.Locker.Lock(ctx, lockKey(tenantID, itemID))
	if err != nil {
		return nil, outcomeNone, fmt.Errorf("lock %s: %w", itemID, err)
	}
	defer unlock()

	item, err := e.deps.Items.Get(ctx, tenantID, itemID)
	if err != nil {
		return nil, outcomeNone, err
	}
	if item == nil {
		return nil, outcomeNone, fmt.Errorf("%w: %s", domain.ErrUnknownItem, itemID)
	}
	if !item.Active {
		return nil, outcomeNone, nil
	}
	proj, err := e.deps.Projections.GetProjection(ctx, tenantID, itemID)
	if err != nil {
		return nil, outcomeNone, err
	}

	cls := inventory.Classify(proj.OnHand, item.Policy.ReorderPoint, e.cfg.Thresholds)
	if !cls.Alert {
		return nil, outcomeNone, nil
	}
	demand, err := e.deps.Demand.DemandStats(ctx, tenantID, itemID, proj.OnHand)
	if err != nil {
		e.log.Warn().Err(err).Str("item_id", itemID).Msg("sin estadísticos de demanda, se usa consumo cero")
	}
	priority := cls.Priority
	if demand.SampleDays >= minStockoutSampleDays && demand.DaysOfStock != nil &&
		*demand.DaysOfStock < float64(item.Policy.LeadTimeDays) {
		priority = entity.PriorityCritical
	}

	now := e.deps.Clock.Now().UTC()
	suggested := inventory.SuggestedQuantity(proj.OnHand, demand.AvgDaily, item.Policy, e.cfg.SafetyDays, e.cfg.SafetyStockDays)
	unitCost := proj.WeightedAverageCost
	if !unitCost.IsPositive() {
		unitCost = item.Cost
	}
	fields := alertFields{
		typ:       cls.Type,
		priority:  priority,
		onHand:    proj.OnHand,
		urgency:   inventory.Urgency(proj.OnHand, item.Policy.ReorderPoint, e.criticalCats[item.Category]),
		suggested: suggested,
		cost:      suggested.Mul(unitCost),
		delivery:  now.AddDate(0, 0, item.Policy.LeadTimeDays),
	}

	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		open, err := e.deps.Alerts.GetOpenByItem(ctx, tenantID, itemID)
		if err != nil {
			return nil, outcomeNone, err
		}
		if open == nil {
			a, err := e.create(ctx, item, fields, now)
			if errors.Is(err, domain.ErrConflict) {
				continue
			}
			if err != nil {
				return nil, outcomeNone, err
			}
			return a, outcomeCreated, nil
		}
		if open.ObservedOnHand.LessThanOrEqual(fields.onHand) {
			return open, outcomeNone, nil
		}
		a, escalated, err := e.update(ctx, item, open, fields, now)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, outcomeNone, err
		}
		if escalated {
			return a, outcomeEscalated, nil
		}
		return a, outcomeUpdated, nil
	}
	return nil, outcomeNone, fmt.Errorf("evaluar %s: %w", itemID, domain.ErrConflict)
}

type alertFields struct {
	typ       entity.AlertType
	priority  entity.AlertPriority
	onHand    decimal.Decimal
	urgency   int
	suggested decimal.Decimal
	cost      decimal.Decimal
	delivery  time.Time
}

func (f alertFields) apply(a *entity.Alert) {
	a.Type = f.typ
	a.Priority = f.priority
	a.ObservedOnHand = f.onHand
	a.UrgencyScore = f.urgency
	a.SuggestedQuantity = f.suggested
	a.EstimatedCost = f.cost
	a.ExpectedDeliveryDate = f.delivery
}

func (e *Evaluator) supplierDue(priority entity.AlertPriority) bool {
	return e.cfg.SupplierNotifyOn != "" && priority.Rank() >= e.cfg.SupplierNotifyOn.Rank()
}

func (e *Evaluator) create(ctx context.Context, item *entity.Item, f alertFields, now time.Time) (*entity.Alert, error) {
	a := &entity.Alert{
		TenantID:     item.TenantID,
		AlertID:      uuid.New().String(),
		ItemID:       item.ItemID,
		State:        entity.AlertActive,
		ReorderPoint: item.Policy.ReorderPoint,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}
	f.apply(a)
	notifySupplier := item.PreferredSupplier != "" && e.supplierDue(a.Priority)
	a.SupplierNotified = notifySupplier
	if err := e.deps.Alerts.Create(ctx, a); err != nil {
		return nil, err
	}
	e.log.Info().Str("tenant_id", a.TenantID).Str("item_id", a.ItemID).Str("alert_id", a.AlertID).
		Str("type", string(a.Type)).Str("priority", string(a.Priority)).Msg("alerta creada")

	e.emit(ctx, item, a, entity.StageInitial, e.cfg.OperatorRole, now)
	if notifySupplier {
		e.emit(ctx, item, a, entity.StageSupplier, supplierRole(item.PreferredSupplier), now)
	}
	return a, nil
}

func (e *Evaluator) update(ctx context.Context, item *entity.Item, open *entity.Alert, f alertFields, now time.Time) (*entity.Alert, bool, error) {
	a := open.Clone()
	f.apply(a)
	a.UpdatedAt = now
	today := clock.UTCDay(now)
	escalate := a.Priority == entity.PriorityCritical && a.State == entity.AlertActive && !a.EscalatedOn(today)
	if escalate {
		a.EscalationDays = append(a.EscalationDays, today)
	}
	notifySupplier := item.PreferredSupplier != "" && !a.SupplierNotified && e.supplierDue(a.Priority)
	if notifySupplier {
		a.SupplierNotified = true
	}
	if err := e.deps.Alerts.Update(ctx, a, open.State, open.Version); err != nil {
		return nil, false, err
	}
	if escalate {
		e.log.Warn().Str("tenant_id", a.TenantID).Str("item_id", a.ItemID).Str("alert_id", a.AlertID).
			Str("on_hand", a.ObservedOnHand.String()).Msg("alerta escalada a crítica")
		e.emit(ctx, item, a, entity.StageEscalation, e.cfg.OperatorRole, now)
	}
	if notifySupplier {
		e.emit(ctx, item, a, entity.StageSupplier, supplierRole(item.PreferredSupplier), now)
	}
	return a, escalate, nil
}

func supplierRole(handle string) string {
	return "supplier:" + handle
}

// emit entrega la notificación al despachador. Un fallo aquí no revierte la alerta.
func (e *Evaluator) emit(ctx context.Context, item *entity.Item, a *entity.Alert, stage entity.NotificationStage, role string, now time.Time) {
	recipients, err := e.deps.Directory.Resolve(ctx, a.TenantID, role)
	if err != nil {
		e.log.Error().Err(err).Str("role", role).Str("alert_id", a.AlertID).Msg("no se pudo resolver destinatarios")
		return
	}
	if len(recipients) == 0 {
		e.log.Warn().Str("role", role).Str("alert_id", a.AlertID).Msg("rol sin destinatarios")
		return
	}
	subject, body := render(item, a, stage)
	req := entity.NotificationRequest{
		TenantID:   a.TenantID,
		AlertID:    a.AlertID,
		ItemID:     a.ItemID,
		Stage:      stage,
		Day:        clock.UTCDay(now),
		Recipients: recipients,
		Template:   templateName(stage),
		Subject:    subject,
		Body:       body,
	}
	if err := e.deps.Sink.Submit(ctx, req); err != nil {
		e.log.Error().Err(err).Str("alert_id", a.AlertID).Str("stage", string(stage)).Msg("no se pudo encolar la notificación")
	}
}
