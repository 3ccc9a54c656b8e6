package inventory

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
)

// Thresholds factores de clasificación sobre el punto de reorden.
type Thresholds struct {
	CriticalFactor decimal.Decimal // default 0.25
	LowFactor      decimal.Decimal // default 1.5
}

// DefaultThresholds valores por defecto.
func DefaultThresholds() Thresholds {
	return Thresholds{CriticalFactor: decimal.RequireFromString("0.25"), LowFactor: decimal.RequireFromString("1.5")}
}

var half = decimal.RequireFromString("0.5")

// Classification resultado de clasificar un saldo.
type Classification struct {
	Alert    bool
	Type     entity.AlertType
	Priority entity.AlertPriority
}

// Classify decide tipo y prioridad de alerta para un saldo dado:
//
//	onHand <= 0 o onHand <= ⌊rp·critical⌋  -> CRITICAL_STOCK / CRITICAL
//	onHand <= rp                            -> REORDER_NEEDED / HIGH si onHand <= ⌊rp·0.5⌋, si no MEDIUM
//	onHand <= rp·low                        -> LOW_STOCK / LOW
func Classify(onHand, reorderPoint decimal.Decimal, th Thresholds) Classification {
	if onHand.LessThanOrEqual(decimal.Zero) || onHand.LessThanOrEqual(reorderPoint.Mul(th.CriticalFactor).Floor()) {
		return Classification{Alert: true, Type: entity.AlertCriticalStock, Priority: entity.PriorityCritical}
	}
	if onHand.LessThanOrEqual(reorderPoint) {
		p := entity.PriorityMedium
		if onHand.LessThanOrEqual(reorderPoint.Mul(half).Floor()) {
			p = entity.PriorityHigh
		}
		return Classification{Alert: true, Type: entity.AlertReorderNeeded, Priority: p}
	}
	if onHand.LessThanOrEqual(reorderPoint.Mul(th.LowFactor)) {
		return Classification{Alert: true, Type: entity.AlertLowStock, Priority: entity.PriorityLow}
	}
	return Classification{}
}

// Urgency puntaje 0–100: ⌈(rp − onHand)/rp·100⌉ más 10 para categorías críticas, acotado.
func Urgency(onHand, reorderPoint decimal.Decimal, criticalCategory bool) int {
	var score int
	if reorderPoint.IsPositive() {
		ratio := reorderPoint.Sub(onHand).Div(reorderPoint).Mul(decimal.NewFromInt(100)).Ceil()
		score = int(ratio.IntPart())
	} else if !onHand.IsPositive() {
		score = 100
	}
	if criticalCategory {
		score += 10
	}
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

// SuggestedQuantity max(⌈target − onHand⌉, reorderQuantity) con
// target = avgDaily·(leadTime + safetyDays) + avgDaily·safetyStockDays.
func SuggestedQuantity(onHand decimal.Decimal, avgDaily float64, policy entity.ReorderPolicy, safetyDays, safetyStockDays int) decimal.Decimal {
	target := avgDaily*float64(policy.LeadTimeDays+safetyDays) + avgDaily*float64(safetyStockDays)
	need := decimal.NewFromFloat(math.Ceil(target - onHand.InexactFloat64()))
	if need.LessThan(policy.ReorderQuantity) {
		return policy.ReorderQuantity
	}
	return need
}
