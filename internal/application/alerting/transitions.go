package alerting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/repository"
)

// SystemActor actor de las transiciones automáticas.
const SystemActor = "system"

// transition aplica mutate sobre la alerta con escritura condicional y reintentos acotados.
// mutate devuelve (false, nil) cuando la alerta ya está en el estado pedido.
func (e *Evaluator) transition(ctx context.Context, tenantID, alertID string, mutate func(a *entity.Alert) (bool, error)) (*entity.Alert, error) {
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		cur, err := e.deps.Alerts.Get(ctx, tenantID, alertID)
		if err != nil {
			return nil, err
		}
		if cur == nil {
			return nil, fmt.Errorf("alerta %s: %w", alertID, domain.ErrNotFound)
		}
		next := cur.Clone()
		changed, err := mutate(next)
		if err != nil {
			return nil, err
		}
		if !changed {
			return cur, nil
		}
		next.UpdatedAt = e.deps.Clock.Now().UTC()
		err = e.deps.Alerts.Update(ctx, next, cur.State, cur.Version)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		e.log.Info().Str("tenant_id", tenantID).Str("alert_id", alertID).Str("from", string(cur.State)).
			Str("to", string(next.State)).Msg("transición de alerta")
		return next, nil
	}
	return nil, fmt.Errorf("transición de %s: %w", alertID, domain.ErrConflict)
}

// Acknowledge ACTIVE -> ACKNOWLEDGED. Repetirla sobre una alerta ya reconocida no es error.
func (e *Evaluator) Acknowledge(ctx context.Context, tenantID, alertID, actorID string) (*entity.Alert, error) {
	return e.transition(ctx, tenantID, alertID, func(a *entity.Alert) (bool, error) {
		switch a.State {
		case entity.AlertAcknowledged:
			return false, nil
		case entity.AlertActive:
			now := e.deps.Clock.Now().UTC()
			a.State = entity.AlertAcknowledged
			a.AckBy = actorID
			a.AckAt = &now
			return true, nil
		}
		return false, fmt.Errorf("ack %s en %s: %w", a.AlertID, a.State, domain.ErrAlertNotOpen)
	})
}

// Resolve ACTIVE|ACKNOWLEDGED -> RESOLVED.
func (e *Evaluator) Resolve(ctx context.Context, tenantID, alertID, actorID string) (*entity.Alert, error) {
	return e.transition(ctx, tenantID, alertID, func(a *entity.Alert) (bool, error) {
		if !a.State.IsOpen() {
			return false, fmt.Errorf("resolve %s en %s: %w", a.AlertID, a.State, domain.ErrAlertNotOpen)
		}
		now := e.deps.Clock.Now().UTC()
		a.State = entity.AlertResolved
		a.ResolvedBy = actorID
		a.ResolvedAt = &now
		return true, nil
	})
}

// Dismiss ACTIVE|ACKNOWLEDGED -> DISMISSED; el motivo es obligatorio.
func (e *Evaluator) Dismiss(ctx context.Context, tenantID, alertID, actorID, reason string) (*entity.Alert, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: el motivo es obligatorio", domain.ErrInvalidInput)
	}
	return e.transition(ctx, tenantID, alertID, func(a *entity.Alert) (bool, error) {
		if !a.State.IsOpen() {
			return false, fmt.Errorf("dismiss %s en %s: %w", a.AlertID, a.State, domain.ErrAlertNotOpen)
		}
		now := e.deps.Clock.Now().UTC()
		a.State = entity.AlertDismissed
		a.DismissedBy = actorID
		a.DismissedAt = &now
		a.DismissReason = reason
		return true, nil
	})
}

// AutoResolve resuelve la alerta abierta del artículo si la hay. No emite notificaciones.
func (e *Evaluator) AutoResolve(ctx context.Context, tenantID, itemID string) (*entity.Alert, error) {
	unlock, err := e.deps.Locker.Lock(ctx, lockKey(tenantID, itemID))
	if err != nil {
		return nil, err
	}
	defer unlock()
	open, err := e.deps.Alerts.GetOpenByItem(ctx, tenantID, itemID)
	if err != nil || open == nil {
		return nil, err
	}
	a, err := e.Resolve(ctx, tenantID, open.AlertID, SystemActor)
	if errors.Is(err, domain.ErrAlertNotOpen) {
		return nil, nil
	}
	return a, err
}

// List alertas del tenant según filtro.
func (e *Evaluator) List(ctx context.Context, tenantID string, f repository.AlertFilter) ([]*entity.Alert, error) {
	return e.deps.Alerts.List(ctx, tenantID, f)
}
