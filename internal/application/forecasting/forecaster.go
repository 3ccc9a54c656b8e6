package forecasting

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/forecast"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/inventory"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/repository"
	"github.com/jhoicas/hotel-inventory-engine/pkg/clock"
	"github.com/jhoicas/hotel-inventory-engine/pkg/logger"
)

// ProjectionReader lectura de saldo al día (ledger.Service).
type ProjectionReader interface {
	GetProjection(ctx context.Context, tenantID, itemID string) (*entity.StockProjection, error)
}

// PolicyHistory política vigente en el tiempo (ledger.Service).
type PolicyHistory interface {
	PolicyAt(ctx context.Context, tenantID, itemID string, t time.Time) (entity.ReorderPolicy, error)
	PolicyChangesBetween(ctx context.Context, tenantID, itemID string, from, to time.Time) (int, error)
}

// Config ventanas y parámetros de reposición.
type Config struct {
	AnalysisWindowDays    int
	ConsumptionWindowDays int
	SafetyDays            int
	SafetyStockDays       int
}

// Forecaster pronósticos de demanda, estadísticos para el evaluador y detección de anomalías.
type Forecaster struct {
	items       repository.ItemRepository
	ledger      repository.LedgerRepository
	projections ProjectionReader
	policies    PolicyHistory
	clock       clock.Clock
	cfg         Config
	log         *logger.Logger
}

// NewForecaster construye el caso de uso.
func NewForecaster(items repository.ItemRepository, ledger repository.LedgerRepository, projections ProjectionReader,
	policies PolicyHistory, clk clock.Clock, cfg Config, log *logger.Logger) *Forecaster {
	if cfg.AnalysisWindowDays <= 0 {
		cfg.AnalysisWindowDays = 90
	}
	if cfg.ConsumptionWindowDays <= 0 {
		cfg.ConsumptionWindowDays = 30
	}
	return &Forecaster{items: items, ledger: ledger, projections: projections, policies: policies,
		clock: clk, cfg: cfg, log: log.Component("forecaster")}
}

// DemandStats consumo promedio y cobertura para el evaluador.
type DemandStats struct {
	AvgDaily    float64
	SampleDays  int
	DaysOfStock *float64
}

func (f *Forecaster) series(ctx context.Context, tenantID, itemID string, days int, now time.Time) ([]forecast.DailyPoint, error) {
	from := now.AddDate(0, 0, -days)
	entries, err := f.ledger.ListByTime(ctx, tenantID, itemID, from, now)
	if err != nil {
		return nil, fmt.Errorf("consumo de %s: %w", itemID, err)
	}
	return forecast.DailySeries(entries, from, now), nil
}

// DemandStats promedio diario en la ventana de análisis. Sin consumo devuelve ceros.
func (f *Forecaster) DemandStats(ctx context.Context, tenantID, itemID string, onHand decimal.Decimal) (DemandStats, error) {
	s, err := f.series(ctx, tenantID, itemID, f.cfg.AnalysisWindowDays, f.clock.Now())
	if err != nil {
		return DemandStats{}, err
	}
	avg := forecast.Mean(forecast.Values(s))
	return DemandStats{
		AvgDaily:    avg,
		SampleDays:  len(s),
		DaysOfStock: forecast.DaysOfStock(onHand.InexactFloat64(), avg),
	}, nil
}

// Forecast proyecta el saldo del artículo para horizonDays días con el nivel de confianza dado.
func (f *Forecaster) Forecast(ctx context.Context, tenantID, itemID string, horizonDays int, confidence float64) (*entity.Forecast, error) {
	item, err := f.items.Get(ctx, tenantID, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownItem, itemID)
	}
	proj, err := f.projections.GetProjection(ctx, tenantID, itemID)
	if err != nil {
		return nil, err
	}
	now := f.clock.Now()
	s, err := f.series(ctx, tenantID, itemID, f.cfg.AnalysisWindowDays, now)
	if err != nil {
		return nil, err
	}
	p, err := forecast.Project(forecast.Inputs{
		OnHand:      proj.OnHand.InexactFloat64(),
		Series:      s,
		Now:         now,
		HorizonDays: horizonDays,
		Confidence:  confidence,
	})
	if err != nil {
		return nil, err
	}

	windowStart := now.AddDate(0, 0, -f.cfg.AnalysisWindowDays)
	policy, err := f.policies.PolicyAt(ctx, tenantID, itemID, windowStart)
	if err != nil {
		return nil, err
	}
	changes, err := f.policies.PolicyChangesBetween(ctx, tenantID, itemID, windowStart, now)
	if err != nil {
		return nil, err
	}

	out := &entity.Forecast{
		TenantID:               tenantID,
		ItemID:                 itemID,
		GeneratedAt:            now.UTC(),
		HorizonDays:            horizonDays,
		ConfidenceLevel:        confidence,
		SampleDays:             len(s),
		OnHand:                 proj.OnHand,
		AvgDailyConsumption:    p.AvgDaily,
		SeasonalMultiplier:     p.Multiplier,
		ProjectedDailyDemand:   p.Demand,
		Trend:                  p.Trend,
		DemandLower:            p.DemandLower,
		DemandUpper:            p.DemandUpper,
		Points:                 p.Points,
		DaysOfStock:            p.DaysOfStock,
		PredictedStockoutDate:  p.Stockout,
		SuggestedOrderQuantity: inventory.SuggestedQuantity(proj.OnHand, p.Demand, item.Policy, f.cfg.SafetyDays, f.cfg.SafetyStockDays),
		ConfidenceScore:        p.Score,
		Policy:                 policy,
		PolicyChanges:          changes,
	}
	f.log.Debug().Str("tenant_id", tenantID).Str("item_id", itemID).Float64("demand", p.Demand).
		Str("trend", string(p.Trend)).Int("score", p.Score).Msg("pronóstico generado")
	return out, nil
}

// DetectAnomalies compara el consumo de hoy con la media móvil de la ventana de consumo.
func (f *Forecaster) DetectAnomalies(ctx context.Context, tenantID string) ([]entity.Anomaly, error) {
	items, err := f.items.ListActive(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	now := f.clock.Now()
	var out []entity.Anomaly
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		s, err := f.series(ctx, tenantID, it.ItemID, f.cfg.ConsumptionWindowDays, now)
		if err != nil {
			return out, err
		}
		if len(s) < 2 {
			continue
		}
		values := forecast.Values(s)
		today := values[len(values)-1]
		z, mean, std, ok := forecast.ZScore(values[:len(values)-1], today)
		if !ok {
			continue
		}
		sev, found := forecast.Severity(z)
		if !found {
			continue
		}
		out = append(out, entity.Anomaly{
			TenantID: tenantID,
			ItemID:   it.ItemID,
			Day:      s[len(s)-1].Day,
			Observed: today,
			Mean:     mean,
			StdDev:   std,
			ZScore:   z,
			Severity: sev,
			Spike:    today > mean,
		})
		runtime.Gosched()
	}
	return out, nil
}

// StockoutRisks pronósticos de los artículos con menor cobertura. Omite artículos sin historial.
func (f *Forecaster) StockoutRisks(ctx context.Context, tenantID string, horizonDays, limit int) ([]*entity.Forecast, error) {
	items, err := f.items.ListActive(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var out []*entity.Forecast
	for _, it := range items {
		fc, err := f.Forecast(ctx, tenantID, it.ItemID, horizonDays, 0.95)
		if errors.Is(err, domain.ErrInsufficientHistory) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if fc.DaysOfStock != nil {
			out = append(out, fc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return *out[i].DaysOfStock < *out[j].DaysOfStock })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
