package forecast

import (
	"fmt"
	"math"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
)

// Tabla t de Student de dos colas para df 1..30 (se usa el df tabulado inmediato inferior).
var tDegrees = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 15, 20, 25, 30}

var tTable = map[float64][]float64{
	0.90: {6.314, 2.920, 2.353, 2.132, 2.015, 1.943, 1.895, 1.860, 1.833, 1.812, 1.753, 1.725, 1.708, 1.697},
	0.95: {12.706, 4.303, 3.182, 2.776, 2.571, 2.447, 2.365, 2.306, 2.262, 2.228, 2.131, 2.086, 2.060, 2.042},
	0.99: {63.657, 9.925, 5.841, 4.604, 4.032, 3.707, 3.499, 3.355, 3.250, 3.169, 2.947, 2.845, 2.787, 2.750},
}

// TValue valor crítico para el nivel de confianza y los grados de libertad (df se acota a 30).
func TValue(confidence float64, df int) (float64, error) {
	row, ok := tTable[confidence]
	if !ok {
		return 0, fmt.Errorf("%w: nivel de confianza %.2f no soportado", domain.ErrInvalidInput, confidence)
	}
	if df < 1 {
		return 0, fmt.Errorf("%w: se requieren al menos dos días de datos", domain.ErrInsufficientHistory)
	}
	if df > 30 {
		df = 30
	}
	idx := 0
	for i, g := range tDegrees {
		if g <= df {
			idx = i
		}
	}
	return row[idx], nil
}

// Margin margen del intervalo para n días: t · √(σ²/n) · n.
func Margin(t, variance float64, n int) float64 {
	if n <= 0 {
		return 0
	}
	return t * math.Sqrt(variance/float64(n)) * float64(n)
}

// ConfidenceCeiling techo del puntaje según los días de datos.
func ConfidenceCeiling(sampleDays int) int {
	switch {
	case sampleDays >= 30:
		return 85
	case sampleDays >= 14:
		return 75
	case sampleDays >= 7:
		return 65
	default:
		return 60
	}
}

// ConfidenceScore aplica una penalización por volatilidad (cv) bajo el techo.
func ConfidenceScore(sampleDays int, xs []float64) int {
	ceiling := float64(ConfidenceCeiling(sampleDays))
	cv := 0.0
	if m := Mean(xs); m > 0 {
		cv = StdDev(xs) / m
	}
	if cv > 1 {
		cv = 1
	}
	return int(math.Round(ceiling * (1 - cv*0.5)))
}
