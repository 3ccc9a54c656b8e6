package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
)

// Inputs datos para proyectar un artículo.
type Inputs struct {
	OnHand      float64
	Series      []DailyPoint
	Now         time.Time
	HorizonDays int
	Confidence  float64
}

// Projection resultado numérico del pronóstico.
type Projection struct {
	AvgDaily    float64
	Multiplier  float64
	Demand      float64
	Variance    float64
	Trend       entity.Trend
	Points      []entity.ForecastPoint
	DemandLower float64
	DemandUpper float64
	DaysOfStock *float64
	Stockout    *time.Time
	Score       int
}

// Project proyecta el saldo día a día: onHand − demanda·d, con demanda = promedio · índice estacional
// y bandas t·σ·√d. Todos los valores se acotan a [0, ∞).
func Project(in Inputs) (Projection, error) {
	if in.HorizonDays <= 0 {
		return Projection{}, fmt.Errorf("%w: horizonDays debe ser positivo", domain.ErrInvalidInput)
	}
	if len(in.Series) < 2 {
		return Projection{}, fmt.Errorf("%w: %d días con datos", domain.ErrInsufficientHistory, len(in.Series))
	}
	xs := Values(in.Series)
	n := len(xs)
	df := n - 1
	if df > 30 {
		df = 30
	}
	t, err := TValue(in.Confidence, df)
	if err != nil {
		return Projection{}, err
	}

	avg := Mean(xs)
	mult := Multiplier(SeasonalIndex(in.Series), in.Now.UTC().Month())
	demand := avg * mult
	variance := Variance(xs)

	p := Projection{
		AvgDaily:   avg,
		Multiplier: mult,
		Demand:     demand,
		Variance:   variance,
		Trend:      ClassifyTrend(xs),
		Score:      ConfidenceScore(n, xs),
	}

	start := dayOf(in.Now)
	for d := 1; d <= in.HorizonDays; d++ {
		used := demand * float64(d)
		margin := Margin(t, variance, d)
		p.Points = append(p.Points, entity.ForecastPoint{
			Day:             start.AddDate(0, 0, d),
			ProjectedOnHand: clip(in.OnHand - used),
			Lower:           clip(in.OnHand - (used + margin)),
			Upper:           clip(in.OnHand - clip(used-margin)),
		})
	}
	total := demand * float64(in.HorizonDays)
	margin := Margin(t, variance, in.HorizonDays)
	p.DemandLower = clip(total - margin)
	p.DemandUpper = total + margin

	if demand > 0 {
		days := clip(in.OnHand) / demand
		p.DaysOfStock = &days
		at := in.Now.Add(time.Duration(days * float64(24*time.Hour)))
		p.Stockout = &at
	}
	return p, nil
}

// DaysOfStock saldo / consumo diario; nil si no hay consumo.
func DaysOfStock(onHand, avgDaily float64) *float64 {
	if avgDaily <= 0 {
		return nil
	}
	v := clip(onHand) / avgDaily
	return &v
}

func clip(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
