// Package notification entrega las notificaciones de alertas con a lo sumo una entrega por
// (alerta, etapa, destinatario), reintentos con backoff y agrupación por destinatario.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/ports"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/repository"
	"github.com/jhoicas/hotel-inventory-engine/pkg/clock"
	"github.com/jhoicas/hotel-inventory-engine/pkg/logger"
)

// Config parámetros del despachador.
type Config struct {
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	CoalesceWindow time.Duration // espera antes del primer intento de una tarea
	FanInWindow    time.Duration // tareas del mismo destinatario dentro de la ventana van en un envío
	PollInterval   time.Duration
	SendTimeout    time.Duration
	StaleAfter     time.Duration // SENDING sin resultado pasado este tiempo se da por fallido
	InitialWait    time.Duration // ESCALATION sin ningún aviso inicial registrado sale pasado este tiempo
	BatchSize      int
	RatePerSecond  float64 // 0 = sin límite
}

func (c *Config) defaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 6
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 30 * time.Second
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = time.Hour
	}
	if c.FanInWindow <= 0 {
		c.FanInWindow = 30 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 30 * time.Second
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 10 * c.SendTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 200
	}
	if c.InitialWait <= 0 {
		c.InitialWait = c.BackoffCap
	}
}

// Deps dependencias del despachador.
type Deps struct {
	Tasks     repository.NotificationTaskRepository
	Alerts    repository.AlertRepository
	Transport ports.Transport
	Clock     clock.Clock
}

// Report resumen de una pasada.
type Report struct {
	Calls     int
	Delivered int
	Retrying  int
	Failed    int
	Held      int
	Reaped    int
}

// Dispatcher cola persistente de notificaciones.
type Dispatcher struct {
	deps    Deps
	cfg     Config
	limiter *rate.Limiter
	log     *logger.Logger

	runMu    sync.Mutex
	mu       sync.Mutex
	deferred []*entity.NotificationTask
}

// NewDispatcher construye el despachador.
func NewDispatcher(deps Deps, cfg Config, log *logger.Logger) *Dispatcher {
	cfg.defaults()
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &Dispatcher{deps: deps, cfg: cfg, limiter: lim, log: log.Component("dispatcher")}
}

// Submit reserva una tarea por destinatario. La clave compuesta hace que repetir la misma
// solicitud no cree tareas nuevas. Si el almacén falla, la tarea queda en memoria y se
// reintenta en la próxima pasada.
func (d *Dispatcher) Submit(ctx context.Context, req entity.NotificationRequest) error {
	if req.AlertID == "" || req.Stage == "" {
		return fmt.Errorf("%w: alerta y etapa son obligatorias", domain.ErrInvalidInput)
	}
	now := d.deps.Clock.Now().UTC()
	for _, r := range req.Recipients {
		t := &entity.NotificationTask{
			Key:           entity.TaskKey(req.AlertID, req.Stage, req.Day, r.ID),
			TenantID:      req.TenantID,
			AlertID:       req.AlertID,
			ItemID:        req.ItemID,
			Stage:         req.Stage,
			Day:           req.Day,
			Recipient:     r,
			Template:      req.Template,
			Subject:       req.Subject,
			Body:          req.Body,
			State:         entity.TaskPending,
			NextAttemptAt: now.Add(d.cfg.CoalesceWindow),
			CreatedAt:     now,
			UpdatedAt:     now,
			Version:       1,
		}
		d.reserve(ctx, t)
	}
	return nil
}

func (d *Dispatcher) reserve(ctx context.Context, t *entity.NotificationTask) bool {
	created, err := d.deps.Tasks.Reserve(ctx, t)
	if err != nil {
		d.log.Warn().Err(err).Str("task", t.Key).Msg("no se pudo reservar la tarea, queda diferida")
		d.mu.Lock()
		d.deferred = append(d.deferred, t)
		d.mu.Unlock()
		return false
	}
	if !created {
		d.log.Debug().Str("task", t.Key).Msg("tarea ya reservada")
	}
	return true
}

func (d *Dispatcher) flushDeferred(ctx context.Context) {
	d.mu.Lock()
	pending := d.deferred
	d.deferred = nil
	d.mu.Unlock()
	for _, t := range pending {
		d.reserve(ctx, t)
	}
}

func (d *Dispatcher) isDeferred(alertID string, stage entity.NotificationStage, recipientID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.deferred {
		if t.AlertID == alertID && t.Stage == stage && t.Recipient.ID == recipientID {
			return true
		}
	}
	return false
}

// Deferred tareas a la espera de poder reservarse.
func (d *Dispatcher) Deferred() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.deferred)
}

// Run procesa la cola cada PollInterval hasta que ctx termine.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.RunOnce(ctx); err != nil && ctx.Err() == nil {
				d.log.Error().Err(err).Msg("fallo en la pasada del despachador")
			}
		}
	}
}

// RunOnce una pasada: descarta envíos huérfanos, agrupa las tareas vencidas y las entrega.
// Las tareas nuevas de un destinatario esperan a que cierre su ventana de agrupación.
func (d *Dispatcher) RunOnce(ctx context.Context) (Report, error) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	var rep Report
	d.flushDeferred(ctx)
	now := d.deps.Clock.Now().UTC()

	reaped, err := d.reapStale(ctx, now)
	if err != nil {
		return rep, err
	}
	rep.Reaped = reaped

	due, err := d.deps.Tasks.ListDue(ctx, now, d.cfg.BatchSize)
	if err != nil {
		return rep, fmt.Errorf("tareas vencidas: %w", err)
	}
	if len(due) == 0 {
		return rep, nil
	}
	ready, deps, held, err := d.gate(ctx, due, now)
	if err != nil {
		return rep, err
	}
	ready, waiting := holdOpenWindows(ready, now, d.cfg.FanInWindow)
	rep.Held = held + waiting

	outcomes := make(map[string]entity.TaskState)
	for _, b := range plan(ready, d.cfg.FanInWindow, d.deps.Transport.MultiRecipient()) {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Held += release(b, deps, outcomes)
		if len(b.tasks) == 0 {
			continue
		}
		d.deliver(ctx, b, &rep, outcomes)
	}
	return rep, nil
}

// reapStale marca FAILED las tareas que quedaron en SENDING: el resultado del envío es
// desconocido y reintentar podría duplicar la entrega.
func (d *Dispatcher) reapStale(ctx context.Context, now time.Time) (int, error) {
	stale, err := d.deps.Tasks.ListStale(ctx, now.Add(-d.cfg.StaleAfter))
	if err != nil {
		return 0, fmt.Errorf("tareas huérfanas: %w", err)
	}
	n := 0
	for _, t := range stale {
		next := t.Clone()
		next.State = entity.TaskFailed
		next.LastError = "resultado del envío desconocido"
		next.UpdatedAt = now
		if err := d.deps.Tasks.Update(ctx, next, t.Version); err != nil {
			continue
		}
		n++
		d.operatorLog(next)
	}
	return n, nil
}

// gate retiene las ESCALATION cuya INITIAL al mismo destinatario no terminó o aún no se
// reservó. Si la INITIAL también está vencida, la ESCALATION queda condicionada a su
// resultado en esta pasada.
func (d *Dispatcher) gate(ctx context.Context, due []*entity.NotificationTask, now time.Time) ([]*entity.NotificationTask, map[string]string, int, error) {
	dueKeys := make(map[string]bool, len(due))
	for _, t := range due {
		dueKeys[t.Key] = true
	}
	byAlert := make(map[string][]*entity.NotificationTask)
	deps := make(map[string]string)
	var out []*entity.NotificationTask
	held := 0
	for _, t := range due {
		if t.Stage != entity.StageEscalation {
			out = append(out, t)
			continue
		}
		siblings, ok := byAlert[t.AlertID]
		if !ok {
			var err error
			siblings, err = d.deps.Tasks.ListByAlert(ctx, t.TenantID, t.AlertID)
			if err != nil {
				return nil, nil, 0, fmt.Errorf("tareas de la alerta %s: %w", t.AlertID, err)
			}
			byAlert[t.AlertID] = siblings
		}
		initial := initialFor(siblings, t.Recipient.ID)
		switch {
		case initial == nil:
			wait, err := d.initialPending(ctx, t, siblings, now)
			if err != nil {
				return nil, nil, 0, err
			}
			if wait {
				held++
				d.log.Debug().Str("task", t.Key).Msg("escalamiento retenido: el aviso inicial no está registrado")
				continue
			}
		case initial.State.Terminal():
		case dueKeys[initial.Key]:
			deps[t.Key] = initial.Key
		default:
			held++
			d.log.Debug().Str("task", t.Key).Msg("escalamiento retenido hasta terminar el aviso inicial")
			continue
		}
		out = append(out, t)
	}
	return out, deps, held, nil
}

// initialPending indica si la INITIAL al destinatario todavía puede llegar: sigue diferida en
// memoria o la alerta no tiene ningún aviso inicial. Un destinatario agregado después del aviso
// inicial no lo espera. Pasado InitialWait sin aviso alguno, la ESCALATION sale sola.
func (d *Dispatcher) initialPending(ctx context.Context, t *entity.NotificationTask, siblings []*entity.NotificationTask, now time.Time) (bool, error) {
	if d.isDeferred(t.AlertID, entity.StageInitial, t.Recipient.ID) {
		return true, nil
	}
	for _, s := range siblings {
		if s.Stage == entity.StageInitial {
			return false, nil
		}
	}
	a, err := d.deps.Alerts.Get(ctx, t.TenantID, t.AlertID)
	if err != nil {
		return false, fmt.Errorf("alerta %s: %w", t.AlertID, err)
	}
	if a != nil {
		for _, e := range a.NotificationLog {
			if e.Stage == entity.StageInitial {
				return false, nil
			}
		}
	}
	if now.Sub(t.CreatedAt) >= d.cfg.InitialWait {
		d.log.Warn().Str("task", t.Key).Dur("waited", now.Sub(t.CreatedAt)).Msg("escalamiento sin aviso inicial, se envía igual")
		return false, nil
	}
	return true, nil
}

func initialFor(siblings []*entity.NotificationTask, recipientID string) *entity.NotificationTask {
	for _, s := range siblings {
		if s.Stage == entity.StageInitial && s.Recipient.ID == recipientID {
			return s
		}
	}
	return nil
}

// release quita del lote las tareas cuya INITIAL no está en el lote ni terminó en esta pasada.
func release(b *batch, deps map[string]string, outcomes map[string]entity.TaskState) int {
	inBatch := make(map[string]bool, len(b.tasks))
	for _, t := range b.tasks {
		inBatch[t.Key] = true
	}
	kept := b.tasks[:0]
	held := 0
	for _, t := range b.tasks {
		if dep, ok := deps[t.Key]; ok && !inBatch[dep] && !outcomes[dep].Terminal() {
			held++
			continue
		}
		kept = append(kept, t)
	}
	b.tasks = kept
	return held
}

func (d *Dispatcher) deliver(ctx context.Context, b *batch, rep *Report, outcomes map[string]entity.TaskState) {
	now := d.deps.Clock.Now().UTC()
	claimed := b.tasks[:0]
	for _, t := range b.tasks {
		next := t.Clone()
		next.State = entity.TaskSending
		next.Attempts++
		next.UpdatedAt = now
		if err := d.deps.Tasks.Update(ctx, next, t.Version); err != nil {
			d.log.Debug().Err(err).Str("task", t.Key).Msg("tarea tomada por otro despachador")
			continue
		}
		claimed = append(claimed, next)
	}
	if len(claimed) == 0 {
		return
	}
	b.tasks = claimed
	msg := b.message()

	if err := d.limiter.Wait(ctx); err != nil {
		// las tareas quedan en SENDING y se descartan como huérfanas
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	messageID, err := d.deps.Transport.Send(sendCtx, msg)
	cancel()
	rep.Calls++
	if ctx.Err() != nil {
		return
	}

	done := d.deps.Clock.Now().UTC()
	for _, t := range b.tasks {
		next := t.Clone()
		next.UpdatedAt = done
		switch {
		case err == nil:
			next.State = entity.TaskDelivered
			next.TransportMessageID = messageID
			next.DeliveredAt = &done
			next.LastError = ""
		case errors.Is(err, domain.ErrTransportTerminal) || next.Attempts >= d.cfg.MaxAttempts:
			next.State = entity.TaskFailed
			next.LastError = err.Error()
		default:
			next.State = entity.TaskRetrying
			next.LastError = err.Error()
			next.NextAttemptAt = done.Add(d.backoff(next.Attempts))
		}
		if uerr := d.deps.Tasks.Update(ctx, next, t.Version); uerr != nil {
			d.log.Error().Err(uerr).Str("task", t.Key).Str("state", string(next.State)).Msg("no se pudo registrar el resultado del envío")
			continue
		}
		outcomes[next.Key] = next.State
		switch next.State {
		case entity.TaskDelivered:
			rep.Delivered++
			d.recordDelivery(ctx, next)
		case entity.TaskRetrying:
			rep.Retrying++
			d.log.Warn().Err(err).Str("task", t.Key).Int("attempts", next.Attempts).
				Time("next_attempt_at", next.NextAttemptAt).Msg("envío fallido, se reintentará")
		case entity.TaskFailed:
			rep.Failed++
			d.operatorLog(next)
		}
	}
}

func (d *Dispatcher) recordDelivery(ctx context.Context, t *entity.NotificationTask) {
	entry := entity.NotificationLogEntry{
		Recipient:          t.Recipient.ID,
		Stage:              t.Stage,
		Day:                t.Day,
		DeliveredAt:        *t.DeliveredAt,
		TransportMessageID: t.TransportMessageID,
	}
	if err := d.deps.Alerts.AppendNotification(ctx, t.TenantID, t.AlertID, entry); err != nil {
		d.log.Warn().Err(err).Str("alert_id", t.AlertID).Msg("no se pudo anotar la entrega en la alerta")
	}
}

func (d *Dispatcher) operatorLog(t *entity.NotificationTask) {
	d.log.Error().Str("tenant_id", t.TenantID).Str("alert_id", t.AlertID).Str("stage", string(t.Stage)).
		Str("recipient", t.Recipient.ID).Int("attempts", t.Attempts).Str("cause", t.LastError).
		Msg("notificación fallida")
}

// backoff base·2^(n−1) acotado por el tope.
func (d *Dispatcher) backoff(attempts int) time.Duration {
	delay := d.cfg.BackoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= d.cfg.BackoffCap {
			return d.cfg.BackoffCap
		}
	}
	if delay > d.cfg.BackoffCap {
		return d.cfg.BackoffCap
	}
	return delay
}

// FailedTasks registro de fallos para el operador.
func (d *Dispatcher) FailedTasks(ctx context.Context, tenantID string, limit int) ([]*entity.NotificationTask, error) {
	return d.deps.Tasks.ListFailed(ctx, tenantID, limit)
}

// Tasks tareas de una alerta.
func (d *Dispatcher) Tasks(ctx context.Context, tenantID, alertID string) ([]*entity.NotificationTask, error) {
	return d.deps.Tasks.ListByAlert(ctx, tenantID, alertID)
}
