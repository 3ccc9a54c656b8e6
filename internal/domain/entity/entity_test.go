package entity

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
)

// ─────────────────────────────────────────────────────────────────────────────
// LedgerEntry.Validate
// ─────────────────────────────────────────────────────────────────────────────

func entry(typ EntryType, qty int64) *LedgerEntry {
	return &LedgerEntry{TenantID: "h1", ItemID: "towel", Type: typ, Quantity: decimal.NewFromInt(qty), ActorID: "u1"}
}

func TestLedgerEntry_SignRules(t *testing.T) {
	assert.NoError(t, entry(EntryRestock, 5).Validate())
	assert.NoError(t, entry(EntryConsumption, -1).Validate())
	assert.NoError(t, entry(EntryDamageCharge, -2).Validate())
	assert.NoError(t, entry(EntryAdjustment, -3).Validate())
	assert.NoError(t, entry(EntryAdjustment, 3).Validate())

	for _, e := range []*LedgerEntry{
		entry(EntryRestock, 0),
		entry(EntryRestock, -1),
		entry(EntryConsumption, 1),
		entry(EntryDamageCharge, 0),
		entry(EntryAdjustment, 0),
		entry(EntryTransfer, 1),
		entry("THEFT", -1),
	} {
		err := e.Validate()
		assert.True(t, errors.Is(err, domain.ErrInvalidInput), "tipo %s cantidad %s", e.Type, e.Quantity)
	}
}

func TestLedgerEntry_TransferNeedsLocations(t *testing.T) {
	e := entry(EntryTransfer, 0)
	assert.ErrorIs(t, e.Validate(), domain.ErrInvalidInput)

	e.Location = Location{From: "central", To: "piso-3"}
	assert.NoError(t, e.Validate())
}

func TestLedgerEntry_Metadata(t *testing.T) {
	e := entry(EntryAdjustment, -4)
	assert.Equal(t, "", e.IdempotencyKey())
	assert.False(t, e.AllowNegative())

	e.Metadata = map[string]string{MetaIdempotencyKey: "k1", MetaAllowNegative: "true"}
	assert.Equal(t, "k1", e.IdempotencyKey())
	assert.True(t, e.AllowNegative())
}

// ─────────────────────────────────────────────────────────────────────────────
// ReorderPolicy.Validate
// ─────────────────────────────────────────────────────────────────────────────

func TestReorderPolicy_Validate(t *testing.T) {
	ok := ReorderPolicy{ReorderPoint: decimal.NewFromInt(10), ReorderQuantity: decimal.NewFromInt(20), MaxStock: decimal.NewFromInt(50), AutoReorderEnabled: true}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.ReorderPoint = decimal.NewFromInt(60)
	assert.ErrorIs(t, bad.Validate(), domain.ErrInvalidInput)

	bad = ok
	bad.ReorderQuantity = decimal.Zero
	assert.ErrorIs(t, bad.Validate(), domain.ErrInvalidInput)

	bad.AutoReorderEnabled = false
	assert.NoError(t, bad.Validate())
}

// ─────────────────────────────────────────────────────────────────────────────
// Claves de tareas y estados
// ─────────────────────────────────────────────────────────────────────────────

func TestTaskKey(t *testing.T) {
	assert.Equal(t, "notif-task/a1/INITIAL/r1", TaskKey("a1", StageInitial, "2026-10-15", "r1"))
	assert.Equal(t, "notif-task/a1/ESCALATION/2026-10-15/r1", TaskKey("a1", StageEscalation, "2026-10-15", "r1"))
}

func TestAlertHelpers(t *testing.T) {
	assert.True(t, AlertAcknowledged.IsOpen())
	assert.False(t, AlertDismissed.IsOpen())
	assert.Greater(t, PriorityCritical.Rank(), PriorityHigh.Rank())

	a := &Alert{EscalationDays: []string{"2026-10-15"}}
	assert.True(t, a.EscalatedOn("2026-10-15"))
	c := a.Clone()
	c.EscalationDays[0] = "x"
	assert.Equal(t, "2026-10-15", a.EscalationDays[0])
}
