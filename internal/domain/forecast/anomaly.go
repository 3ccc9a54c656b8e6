package forecast

import (
	"math"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
)

// MinAnomalyHistory días previos requeridos para evaluar anomalías.
const MinAnomalyHistory = 7

// Severity clasifica |z|: ≥2 MEDIUM, ≥2.5 HIGH, ≥3 CRITICAL.
func Severity(z float64) (entity.AnomalySeverity, bool) {
	a := math.Abs(z)
	switch {
	case a >= 3:
		return entity.AnomalyCritical, true
	case a >= 2.5:
		return entity.AnomalyHigh, true
	case a >= 2:
		return entity.AnomalyMedium, true
	}
	return "", false
}

// ZScore del valor de hoy contra la media móvil previa. Sin dispersión no hay z (0, false).
func ZScore(history []float64, today float64) (z, mean, std float64, ok bool) {
	if len(history) < MinAnomalyHistory {
		return 0, 0, 0, false
	}
	mean = Mean(history)
	std = StdDev(history)
	if std == 0 {
		return 0, mean, 0, false
	}
	return (today - mean) / std, mean, std, true
}
