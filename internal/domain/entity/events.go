package entity

import "time"

// ThresholdEvent cruce del punto de reorden detectado en la escritura del libro.
type ThresholdEvent struct {
	TenantID  string    `json:"tenantId"`
	ItemID    string    `json:"itemId"`
	Seq       int64     `json:"seq"`
	Direction string    `json:"direction"` // "down" | "up"
	Origin    string    `json:"origin"`    // id del proceso que publicó
	At        time.Time `json:"at"`
}

const (
	CrossedDown = "down"
	CrossedUp   = "up"
)
