package dto

import "github.com/shopspring/decimal"

// AppendEntryRequest body para POST /api/items/:id/entries.
type AppendEntryRequest struct {
	Type           string            `json:"type"`
	Quantity       decimal.Decimal   `json:"quantity"`
	UnitCost       *decimal.Decimal  `json:"unit_cost,omitempty"`
	Timestamp      string            `json:"timestamp,omitempty"` // RFC3339; por defecto ahora
	ReferenceType  string            `json:"reference_type,omitempty"`
	ReferenceID    string            `json:"reference_id,omitempty"`
	LocationFrom   string            `json:"location_from,omitempty"`
	LocationTo     string            `json:"location_to,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	AllowNegative  bool              `json:"allow_negative,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// AppendEntryResponse resultado de un asiento.
type AppendEntryResponse struct {
	Seq                 int64           `json:"seq"`
	OnHand              decimal.Decimal `json:"on_hand"`
	WeightedAverageCost decimal.Decimal `json:"weighted_average_cost"`
	Duplicate           bool            `json:"duplicate,omitempty"`
}

// UpsertItemRequest body para PUT /api/items/:id.
type UpsertItemRequest struct {
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	UnitMeasure       string          `json:"unit_measure"`
	Cost              decimal.Decimal `json:"cost"`
	PreferredSupplier string          `json:"preferred_supplier,omitempty"`
	Active            *bool           `json:"active,omitempty"`
	Policy            PolicyDTO       `json:"policy"`
}

// PolicyDTO política de reposición.
type PolicyDTO struct {
	ReorderPoint       decimal.Decimal `json:"reorder_point"`
	ReorderQuantity    decimal.Decimal `json:"reorder_quantity"`
	MaxStock           decimal.Decimal `json:"max_stock"`
	LeadTimeDays       int             `json:"lead_time_days"`
	AutoReorderEnabled bool            `json:"auto_reorder_enabled"`
}
