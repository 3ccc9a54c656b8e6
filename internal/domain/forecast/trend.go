package forecast

import (
	"time"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
)

const (
	trendThreshold    = 0.1
	volatilityCV      = 0.3
	minSeasonalPoints = 12
)

// ClassifyTrend compara el primer y el último tercio de la serie:
// Δ/primero > 0.1 creciente, < −0.1 decreciente, cv > 0.3 volátil, si no estable.
func ClassifyTrend(xs []float64) entity.Trend {
	if len(xs) < 3 {
		return entity.TrendStable
	}
	third := len(xs) / 3
	first := Mean(xs[:third])
	second := Mean(xs[len(xs)-third:])
	if first > 0 {
		delta := (second - first) / first
		if delta > trendThreshold {
			return entity.TrendIncreasing
		}
		if delta < -trendThreshold {
			return entity.TrendDecreasing
		}
	} else if second > 0 {
		return entity.TrendIncreasing
	}
	if m := Mean(xs); m > 0 && StdDev(xs)/m > volatilityCV {
		return entity.TrendVolatile
	}
	return entity.TrendStable
}

// SeasonalIndex promedio del mes / promedio general por mes del año.
// Meses con menos de 12 puntos no tienen índice (multiplicador 1.0).
func SeasonalIndex(points []DailyPoint) map[time.Month]float64 {
	overall := Mean(Values(points))
	if overall == 0 {
		return nil
	}
	byMonth := make(map[time.Month][]float64)
	for _, p := range points {
		byMonth[p.Day.Month()] = append(byMonth[p.Day.Month()], p.Quantity)
	}
	out := make(map[time.Month]float64)
	for m, xs := range byMonth {
		if len(xs) < minSeasonalPoints {
			continue
		}
		out[m] = Mean(xs) / overall
	}
	return out
}

// Multiplier índice estacional del mes o 1.0.
func Multiplier(index map[time.Month]float64, m time.Month) float64 {
	if v, ok := index[m]; ok {
		return v
	}
	return 1.0
}
