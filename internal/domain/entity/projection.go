package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockProjection vista derivada del libro. Siempre debe poder reconstruirse haciendo fold de las entradas.
type StockProjection struct {
	TenantID            string          `json:"tenantId"`
	ItemID              string          `json:"itemId"`
	OnHand              decimal.Decimal `json:"onHand"`
	LastSeq             int64           `json:"lastSeq"`
	WeightedAverageCost decimal.Decimal `json:"weightedAverageCost"`
	LastUpdated         time.Time       `json:"lastUpdated"`
}

// EmptyProjection proyección de un artículo sin movimientos.
func EmptyProjection(tenantID, itemID string) *StockProjection {
	return &StockProjection{TenantID: tenantID, ItemID: itemID, OnHand: decimal.Zero, WeightedAverageCost: decimal.Zero}
}

// Clone copia la proyección.
func (p *StockProjection) Clone() *StockProjection {
	c := *p
	return &c
}
