package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotTrigger origen de la foto de inventario.
type SnapshotTrigger string

const (
	TriggerScheduled SnapshotTrigger = "SCHEDULED"
	TriggerManual    SnapshotTrigger = "MANUAL"
	TriggerThreshold SnapshotTrigger = "THRESHOLD"
)

// Valid indica si el disparador es conocido.
func (t SnapshotTrigger) Valid() bool {
	return t == TriggerScheduled || t == TriggerManual || t == TriggerThreshold
}

// SnapshotLine estado de un artículo en la foto.
type SnapshotLine struct {
	ItemID             string          `json:"itemId"`
	Category           string          `json:"category"`
	OnHand             decimal.Decimal `json:"onHand"`
	LastSeq            int64           `json:"lastSeq"`
	ReorderPoint       decimal.Decimal `json:"reorderPoint"`
	ConsumptionRate30d float64         `json:"consumptionRate30d"`
	UnitValue          decimal.Decimal `json:"unitValue"`
	TotalValue         decimal.Decimal `json:"totalValue"`
	DaysOfStock        *float64        `json:"daysOfStock,omitempty"` // nil sin consumo
}

// SnapshotAggregates totales del tenant.
type SnapshotAggregates struct {
	TotalItems         int             `json:"totalItems"`
	TotalValue         decimal.Decimal `json:"totalValue"`
	LowStockCount      int             `json:"lowStockCount"`
	OutOfStockCount    int             `json:"outOfStockCount"`
	AvgConsumptionRate float64         `json:"avgConsumptionRate"`
}

// Snapshot foto inmutable del inventario de un tenant en T.
type Snapshot struct {
	TenantID   string             `json:"tenantId"`
	SnapshotID string             `json:"snapshotId"`
	TakenAt    time.Time          `json:"takenAt"`
	Trigger    SnapshotTrigger    `json:"trigger"`
	Lines      []SnapshotLine     `json:"lines"`
	Aggregates SnapshotAggregates `json:"aggregates"`
}

// Line busca la línea de un artículo.
func (s *Snapshot) Line(itemID string) (SnapshotLine, bool) {
	for _, l := range s.Lines {
		if l.ItemID == itemID {
			return l, true
		}
	}
	return SnapshotLine{}, false
}
