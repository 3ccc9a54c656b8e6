package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/dto"
	"github.com/jhoicas/hotel-inventory-engine/internal/application/ledger"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/repository"
)

// Append registra un movimiento.
func (e *Engine) Append(ctx context.Context, entry *entity.LedgerEntry) (*ledger.AppendResult, error) {
	return e.Ledger.Append(ctx, entry)
}

// GetProjection saldo actual del artículo.
func (e *Engine) GetProjection(ctx context.Context, tenantID, itemID string) (*entity.StockProjection, error) {
	return e.Ledger.GetProjection(ctx, tenantID, itemID)
}

// History movimientos del artículo en (from, to].
func (e *Engine) History(ctx context.Context, tenantID, itemID string, from, to time.Time) ([]*entity.LedgerEntry, error) {
	return e.Ledger.History(ctx, tenantID, itemID, from, to)
}

// Refold reconstruye la proyección desde el libro.
func (e *Engine) Refold(ctx context.Context, tenantID, itemID string) (*entity.StockProjection, error) {
	return e.Ledger.Refold(ctx, tenantID, itemID)
}

// SaveItem alta o modificación de un artículo.
func (e *Engine) SaveItem(ctx context.Context, item *entity.Item) error {
	return e.Ledger.SaveItem(ctx, item)
}

// UpdatePolicy cambia la política de reposición y deja registro.
func (e *Engine) UpdatePolicy(ctx context.Context, tenantID, itemID string, p entity.ReorderPolicy, actorID string) (*entity.Item, error) {
	return e.Ledger.UpdatePolicy(ctx, tenantID, itemID, p, actorID)
}

// ListAlerts alertas según filtro.
func (e *Engine) ListAlerts(ctx context.Context, tenantID string, f repository.AlertFilter) ([]*entity.Alert, error) {
	return e.Evaluator.List(ctx, tenantID, f)
}

// AckAlert ACTIVE -> ACKNOWLEDGED.
func (e *Engine) AckAlert(ctx context.Context, tenantID, alertID, actorID string) (*entity.Alert, error) {
	return e.Evaluator.Acknowledge(ctx, tenantID, alertID, actorID)
}

// ResolveAlert cierre manual.
func (e *Engine) ResolveAlert(ctx context.Context, tenantID, alertID, actorID string) (*entity.Alert, error) {
	return e.Evaluator.Resolve(ctx, tenantID, alertID, actorID)
}

// DismissAlert descarte con motivo.
func (e *Engine) DismissAlert(ctx context.Context, tenantID, alertID, actorID, reason string) (*entity.Alert, error) {
	return e.Evaluator.Dismiss(ctx, tenantID, alertID, actorID, reason)
}

// Evaluate corre el evaluador del tenant con semántica de instancia única.
func (e *Engine) Evaluate(ctx context.Context, tenantID string) error {
	return e.Scheduler.RunNow(ctx, tenantID, JobEvaluate, "")
}

// Snapshot foto bajo demanda.
func (e *Engine) Snapshot(ctx context.Context, tenantID string, trigger entity.SnapshotTrigger) (*entity.Snapshot, error) {
	if trigger == "" {
		trigger = entity.TriggerManual
	}
	return e.Snapshots.Snapshot(ctx, tenantID, trigger)
}

// Forecast pronóstico del artículo.
func (e *Engine) Forecast(ctx context.Context, tenantID, itemID string, horizonDays int, confidence float64) (*entity.Forecast, error) {
	if horizonDays <= 0 || horizonDays > 365 {
		return nil, fmt.Errorf("%w: horizonte fuera de rango", domain.ErrInvalidInput)
	}
	return e.Forecaster.Forecast(ctx, tenantID, itemID, horizonDays, confidence)
}

// DetectAnomalies consumos fuera de lo normal hoy.
func (e *Engine) DetectAnomalies(ctx context.Context, tenantID string) ([]entity.Anomaly, error) {
	return e.Forecaster.DetectAnomalies(ctx, tenantID)
}

// FailedNotifications registro de fallos de entrega.
func (e *Engine) FailedNotifications(ctx context.Context, tenantID string, limit int) ([]*entity.NotificationTask, error) {
	return e.Dispatcher.FailedTasks(ctx, tenantID, limit)
}

// Summary tablero del operador.
func (e *Engine) Summary(ctx context.Context, tenantID string) (*dto.DashboardSummaryDTO, error) {
	return e.Dashboard.GetSummary(ctx, tenantID)
}

// LatestSnapshot última foto del tenant; nil si no hay.
func (e *Engine) LatestSnapshot(ctx context.Context, tenantID string) (*entity.Snapshot, error) {
	return e.Snapshots.Latest(ctx, tenantID)
}

// ListSnapshots fotos tomadas en [from, to].
func (e *Engine) ListSnapshots(ctx context.Context, tenantID string, from, to time.Time) ([]*entity.Snapshot, error) {
	return e.Snapshots.List(ctx, tenantID, from, to)
}

// HasTenant indica si la instancia atiende al tenant. Sin lista configurada atiende a todos.
func (e *Engine) HasTenant(tenantID string) bool {
	return len(e.tenants) == 0 || e.tenants[tenantID]
}
