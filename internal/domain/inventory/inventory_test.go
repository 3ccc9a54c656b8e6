package inventory

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// ─────────────────────────────────────────────────────────────────────────────
// Costo promedio ponderado
// ─────────────────────────────────────────────────────────────────────────────

func TestCostCalculator(t *testing.T) {
	// 10 a 2.00 + 10 a 4.00 = 3.00
	assert.True(t, d("3").Equal(CostCalculator(d("10"), d("2"), d("10"), d("4"))))
	// sin saldo previo toma el costo de la entrada
	assert.True(t, d("5").Equal(CostCalculator(d("0"), d("2"), d("4"), d("5"))))
	// saldo negativo no pondera
	assert.True(t, d("5").Equal(CostCalculator(d("-3"), d("2"), d("4"), d("5"))))
}

// ─────────────────────────────────────────────────────────────────────────────
// Fold
// ─────────────────────────────────────────────────────────────────────────────

func ledger() []*entity.LedgerEntry {
	ts := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	return []*entity.LedgerEntry{
		{Seq: 1, Type: entity.EntryRestock, Quantity: d("20"), UnitCost: d("2"), Timestamp: ts},
		{Seq: 2, Type: entity.EntryConsumption, Quantity: d("-5"), Timestamp: ts.Add(time.Hour)},
		{Seq: 3, Type: entity.EntryRestock, Quantity: d("15"), UnitCost: d("4"), Timestamp: ts.Add(2 * time.Hour)},
		{Seq: 4, Type: entity.EntryTransfer, Quantity: d("0"), Timestamp: ts.Add(3 * time.Hour)},
		{Seq: 5, Type: entity.EntryAdjustment, Quantity: d("-2"), Timestamp: ts.Add(4 * time.Hour)},
	}
}

func TestFold(t *testing.T) {
	p := Fold("h1", "towel", ledger())

	assert.True(t, d("28").Equal(p.OnHand))
	assert.Equal(t, int64(5), p.LastSeq)
	// (15*2 + 15*4) / 30 = 3
	assert.True(t, d("3").Equal(p.WeightedAverageCost))
}

func TestFoldFrom_MatchesFullReplay(t *testing.T) {
	all := ledger()
	prefix := Fold("h1", "towel", all[:2])
	resumed := FoldFrom(prefix, all)
	full := Fold("h1", "towel", all)

	assert.True(t, full.OnHand.Equal(resumed.OnHand))
	assert.True(t, full.WeightedAverageCost.Equal(resumed.WeightedAverageCost))
	assert.Equal(t, full.LastSeq, resumed.LastSeq)
}

func TestWouldGoNegative(t *testing.T) {
	p := &entity.StockProjection{OnHand: d("3")}
	out := &entity.LedgerEntry{Type: entity.EntryConsumption, Quantity: d("-4")}
	assert.True(t, WouldGoNegative(p, out))

	out.Metadata = map[string]string{entity.MetaAllowNegative: "true"}
	assert.False(t, WouldGoNegative(p, out))

	assert.False(t, WouldGoNegative(p, &entity.LedgerEntry{Type: entity.EntryConsumption, Quantity: d("-3")}))
}

// ─────────────────────────────────────────────────────────────────────────────
// Clasificación
// ─────────────────────────────────────────────────────────────────────────────

func TestClassify(t *testing.T) {
	th := DefaultThresholds()
	rp := d("10")

	cases := []struct {
		onHand   string
		alert    bool
		typ      entity.AlertType
		priority entity.AlertPriority
	}{
		{"16", false, "", ""},
		{"15", true, entity.AlertLowStock, entity.PriorityLow},
		{"11", true, entity.AlertLowStock, entity.PriorityLow},
		{"10", true, entity.AlertReorderNeeded, entity.PriorityMedium},
		{"9", true, entity.AlertReorderNeeded, entity.PriorityMedium},
		{"5", true, entity.AlertReorderNeeded, entity.PriorityHigh},
		{"3", true, entity.AlertReorderNeeded, entity.PriorityHigh}, // ⌈rp·0.25⌉
		{"2", true, entity.AlertCriticalStock, entity.PriorityCritical},
		{"0", true, entity.AlertCriticalStock, entity.PriorityCritical},
		{"-1", true, entity.AlertCriticalStock, entity.PriorityCritical},
	}
	for _, c := range cases {
		got := Classify(d(c.onHand), rp, th)
		assert.Equal(t, c.alert, got.Alert, "onHand=%s", c.onHand)
		assert.Equal(t, c.typ, got.Type, "onHand=%s", c.onHand)
		assert.Equal(t, c.priority, got.Priority, "onHand=%s", c.onHand)
	}
}

func TestClassify_ZeroReorderPoint(t *testing.T) {
	got := Classify(d("4"), d("0"), DefaultThresholds())
	assert.False(t, got.Alert)
}

func TestUrgency(t *testing.T) {
	assert.Equal(t, 10, Urgency(d("9"), d("10"), false))
	assert.Equal(t, 80, Urgency(d("2"), d("10"), false))
	assert.Equal(t, 90, Urgency(d("2"), d("10"), true))
	assert.Equal(t, 100, Urgency(d("0"), d("10"), true))
	assert.Equal(t, 0, Urgency(d("14"), d("10"), false))
	assert.Equal(t, 100, Urgency(d("0"), d("0"), false))
}

func TestSuggestedQuantity(t *testing.T) {
	policy := entity.ReorderPolicy{ReorderPoint: d("10"), ReorderQuantity: d("20"), MaxStock: d("50"), LeadTimeDays: 4}

	// poco consumo: manda reorderQuantity
	assert.True(t, d("20").Equal(SuggestedQuantity(d("9"), 0.1, policy, 3, 3)))

	// 5/día: target = 5·(4+3) + 5·3 = 50; 50 − 2 = 48
	assert.True(t, d("48").Equal(SuggestedQuantity(d("2"), 5, policy, 3, 3)))
}
