// Package analytics arma el tablero del operador a partir de alertas, fotos y pronósticos.
package analytics

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/dto"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/repository"
	"github.com/jhoicas/hotel-inventory-engine/pkg/clock"
)

const (
	dashboardTopRisks     = 5  // artículos en el widget de riesgo de quiebre
	dashboardRiskHorizon  = 14 // días del pronóstico usado para el riesgo
	dashboardFailedSample = 100
)

// AlertLister alertas del tenant.
type AlertLister interface {
	List(ctx context.Context, tenantID string, f repository.AlertFilter) ([]*entity.Alert, error)
}

// SnapshotReader última foto del tenant.
type SnapshotReader interface {
	Latest(ctx context.Context, tenantID string) (*entity.Snapshot, error)
}

// ForecastReader riesgo de quiebre y anomalías.
type ForecastReader interface {
	StockoutRisks(ctx context.Context, tenantID string, horizonDays, limit int) ([]*entity.Forecast, error)
	DetectAnomalies(ctx context.Context, tenantID string) ([]entity.Anomaly, error)
}

// FailureLog registro de notificaciones fallidas.
type FailureLog interface {
	FailedTasks(ctx context.Context, tenantID string, limit int) ([]*entity.NotificationTask, error)
}

// DashboardUseCase genera el resumen del tablero.
type DashboardUseCase struct {
	alerts    AlertLister
	snapshots SnapshotReader
	forecasts ForecastReader
	failures  FailureLog
	clock     clock.Clock
}

// NewDashboardUseCase construye el caso de uso.
func NewDashboardUseCase(alerts AlertLister, snapshots SnapshotReader, forecasts ForecastReader, failures FailureLog, clk clock.Clock) *DashboardUseCase {
	if clk == nil {
		clk = clock.System{}
	}
	return &DashboardUseCase{alerts: alerts, snapshots: snapshots, forecasts: forecasts, failures: failures, clock: clk}
}

// GetSummary construye el DashboardSummaryDTO del tenant. Las cuatro lecturas van en paralelo.
func (uc *DashboardUseCase) GetSummary(ctx context.Context, tenantID string) (*dto.DashboardSummaryDTO, error) {
	var (
		open      []*entity.Alert
		latest    *entity.Snapshot
		risks     []*entity.Forecast
		anomalies []entity.Anomaly
		failed    []*entity.NotificationTask
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		open, err = uc.alerts.List(gctx, tenantID, repository.AlertFilter{OpenOnly: true})
		if err != nil {
			return fmt.Errorf("dashboard: alertas abiertas: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		latest, err = uc.snapshots.Latest(gctx, tenantID)
		if err != nil {
			return fmt.Errorf("dashboard: última foto: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		risks, err = uc.forecasts.StockoutRisks(gctx, tenantID, dashboardRiskHorizon, dashboardTopRisks)
		if err != nil {
			return fmt.Errorf("dashboard: riesgo de quiebre: %w", err)
		}
		anomalies, err = uc.forecasts.DetectAnomalies(gctx, tenantID)
		if err != nil {
			return fmt.Errorf("dashboard: anomalías: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		failed, err = uc.failures.FailedTasks(gctx, tenantID, dashboardFailedSample)
		if err != nil {
			return fmt.Errorf("dashboard: notificaciones fallidas: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &dto.DashboardSummaryDTO{
		OpenAlerts:          len(open),
		AlertsByType:        make(map[string]int),
		AlertsByPriority:    make(map[string]int),
		FailedNotifications: len(failed),
		Anomalies:           len(anomalies),
		StockoutRisks:       make([]dto.StockoutRiskDTO, 0, len(risks)),
		DateLabel:           monthLabel(uc.clock.Now()),
	}
	for _, a := range open {
		out.AlertsByType[string(a.Type)]++
		out.AlertsByPriority[string(a.Priority)]++
	}
	if latest != nil {
		out.LastSnapshotAt = latest.TakenAt.Format(time.RFC3339)
		out.TotalValue = latest.Aggregates.TotalValue.Round(2)
		out.LowStockCount = latest.Aggregates.LowStockCount
		out.OutOfStockCount = latest.Aggregates.OutOfStockCount
		out.AvgConsumptionRate = latest.Aggregates.AvgConsumptionRate
	}
	for _, f := range risks {
		r := dto.StockoutRiskDTO{
			ItemID:                 f.ItemID,
			OnHand:                 f.OnHand,
			SuggestedOrderQuantity: f.SuggestedOrderQuantity,
			ConfidenceScore:        f.ConfidenceScore,
		}
		if f.DaysOfStock != nil {
			r.DaysOfStock = *f.DaysOfStock
		}
		if f.PredictedStockoutDate != nil {
			r.PredictedStockoutDate = f.PredictedStockoutDate.Format("2006-01-02")
		}
		out.StockoutRisks = append(out.StockoutRisks, r)
	}
	return out, nil
}

// monthLabel devuelve una etiqueta legible del mes, ej: "Octubre 2026".
func monthLabel(t time.Time) string {
	months := [...]string{
		"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
		"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
	}
	return fmt.Sprintf("%s %d", months[t.Month()-1], t.Year())
}
