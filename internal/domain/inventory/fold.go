package inventory

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
)

// Apply aplica una entrada sobre la proyección y devuelve una nueva. No valida saldo negativo;
// eso es responsabilidad de quien escribe (ver WouldGoNegative).
func Apply(p *entity.StockProjection, e *entity.LedgerEntry) *entity.StockProjection {
	next := p.Clone()
	if e.Quantity.IsPositive() && e.UnitCost.IsPositive() {
		next.WeightedAverageCost = CostCalculator(p.OnHand, p.WeightedAverageCost, e.Quantity, e.UnitCost)
	}
	next.OnHand = p.OnHand.Add(e.Quantity)
	next.LastSeq = e.Seq
	next.LastUpdated = e.Timestamp
	return next
}

// Fold reconstruye la proyección desde cero. Las entradas deben venir ordenadas por seq.
func Fold(tenantID, itemID string, entries []*entity.LedgerEntry) *entity.StockProjection {
	return FoldFrom(entity.EmptyProjection(tenantID, itemID), entries)
}

// FoldFrom continúa el fold a partir de una proyección existente (ignora seq ya aplicados).
func FoldFrom(p *entity.StockProjection, entries []*entity.LedgerEntry) *entity.StockProjection {
	cur := p
	for _, e := range entries {
		if e.Seq <= cur.LastSeq {
			continue
		}
		cur = Apply(cur, e)
	}
	return cur
}

// WouldGoNegative indica si la entrada deja el saldo bajo cero sin permiso explícito.
func WouldGoNegative(p *entity.StockProjection, e *entity.LedgerEntry) bool {
	if e.AllowNegative() || !e.Quantity.IsNegative() {
		return false
	}
	return p.OnHand.Add(e.Quantity).LessThan(decimal.Zero)
}
