package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
)

// EntryType tipo de movimiento del libro de inventario.
type EntryType string

const (
	EntryRestock      EntryType = "RESTOCK"
	EntryConsumption  EntryType = "CONSUMPTION"
	EntryTransfer     EntryType = "TRANSFER"
	EntryAdjustment   EntryType = "ADJUSTMENT"
	EntryDamageCharge EntryType = "DAMAGE_CHARGE"
)

// Claves reservadas de metadata.
const (
	MetaIdempotencyKey = "idempotencyKey"
	MetaAllowNegative  = "allowNegative"
)

// Valid indica si el tipo es conocido.
func (t EntryType) Valid() bool {
	switch t {
	case EntryRestock, EntryConsumption, EntryTransfer, EntryAdjustment, EntryDamageCharge:
		return true
	}
	return false
}

// Reference documento de origen (orden de compra, habitación, reporte de daño).
type Reference struct {
	Kind        string `json:"kind,omitempty"`
	ID          string `json:"id,omitempty"`
	Description string `json:"description,omitempty"`
}

// Location ubicación origen/destino (bodega central, piso 3, carro de camarera).
type Location struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// LedgerEntry entrada inmutable del libro. Quantity es firmada: RESTOCK > 0, CONSUMPTION/DAMAGE_CHARGE < 0,
// TRANSFER = 0 (solo cambia ubicación), ADJUSTMENT cualquier signo.
type LedgerEntry struct {
	TenantID  string            `json:"tenantId"`
	ItemID    string            `json:"itemId"`
	Seq       int64             `json:"seq"`
	Timestamp time.Time         `json:"timestamp"`
	Type      EntryType         `json:"type"`
	Quantity  decimal.Decimal   `json:"quantity"`
	UnitCost  decimal.Decimal   `json:"unitCost"`
	ActorID   string            `json:"actorId"`
	Reference Reference         `json:"reference"`
	Location  Location          `json:"location"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// IdempotencyKey clave de idempotencia opcional del llamador.
func (e *LedgerEntry) IdempotencyKey() string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[MetaIdempotencyKey]
}

// AllowNegative permite dejar el saldo en negativo (conteos físicos, correcciones).
func (e *LedgerEntry) AllowNegative() bool {
	return e.Metadata != nil && e.Metadata[MetaAllowNegative] == "true"
}

// Validate verifica tipo, identificadores y la regla de signo por tipo.
func (e *LedgerEntry) Validate() error {
	if e.TenantID == "" || e.ItemID == "" {
		return fmt.Errorf("%w: tenantId e itemId son obligatorios", domain.ErrInvalidInput)
	}
	if !e.Type.Valid() {
		return fmt.Errorf("%w: tipo de entrada %q", domain.ErrInvalidInput, e.Type)
	}
	if e.ActorID == "" {
		return fmt.Errorf("%w: actorId es obligatorio", domain.ErrInvalidInput)
	}
	switch e.Type {
	case EntryRestock:
		if !e.Quantity.IsPositive() {
			return fmt.Errorf("%w: RESTOCK requiere cantidad positiva", domain.ErrInvalidInput)
		}
		if e.UnitCost.IsNegative() {
			return fmt.Errorf("%w: costo unitario negativo", domain.ErrInvalidInput)
		}
	case EntryConsumption, EntryDamageCharge:
		if !e.Quantity.IsNegative() {
			return fmt.Errorf("%w: %s requiere cantidad negativa", domain.ErrInvalidInput, e.Type)
		}
	case EntryTransfer:
		if !e.Quantity.IsZero() {
			return fmt.Errorf("%w: TRANSFER no cambia el saldo", domain.ErrInvalidInput)
		}
		if e.Location.From == "" || e.Location.To == "" {
			return fmt.Errorf("%w: TRANSFER requiere origen y destino", domain.ErrInvalidInput)
		}
	case EntryAdjustment:
		if e.Quantity.IsZero() {
			return fmt.Errorf("%w: ajuste en cero", domain.ErrInvalidInput)
		}
	}
	return nil
}
