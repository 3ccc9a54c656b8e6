// Package forecast contiene la matemática de demanda: series diarias, tendencia, estacionalidad,
// intervalos de confianza y anomalías. No conoce repositorios ni relojes.
package forecast

import (
	"math"
	"time"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
)

// DailyPoint consumo total (positivo) de un día UTC.
type DailyPoint struct {
	Day      time.Time
	Quantity float64
}

// DailySeries agrupa las entradas CONSUMPTION por día UTC entre el primer día con consumo
// (acotado por from) y to. Los días sin consumo valen 0, salvo el día de to: está en curso
// y sólo entra en la serie si ya tiene consumo.
func DailySeries(entries []*entity.LedgerEntry, from, to time.Time) []DailyPoint {
	start := dayOf(from)
	end := dayOf(to)
	totals := make(map[time.Time]float64)
	var first time.Time
	for _, e := range entries {
		if e.Type != entity.EntryConsumption {
			continue
		}
		day := dayOf(e.Timestamp)
		if day.Before(start) || day.After(end) {
			continue
		}
		totals[day] += -e.Quantity.InexactFloat64()
		if first.IsZero() || day.Before(first) {
			first = day
		}
	}
	if first.IsZero() {
		return nil
	}
	if totals[end] == 0 {
		end = end.AddDate(0, 0, -1)
	}
	var out []DailyPoint
	for day := first; !day.After(end); day = day.AddDate(0, 0, 1) {
		out = append(out, DailyPoint{Day: day, Quantity: totals[day]})
	}
	return out
}

func dayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Values extrae las cantidades.
func Values(points []DailyPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Quantity
	}
	return out
}

// Mean promedio aritmético; 0 para series vacías.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Variance varianza muestral (n−1); 0 con menos de dos puntos.
func Variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return ss / float64(len(xs)-1)
}

// StdDev desviación estándar muestral.
func StdDev(xs []float64) float64 {
	return math.Sqrt(Variance(xs))
}
