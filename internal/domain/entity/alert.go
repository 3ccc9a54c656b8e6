package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertType clasificación de la alerta de reposición.
type AlertType string

const (
	AlertLowStock      AlertType = "LOW_STOCK"
	AlertReorderNeeded AlertType = "REORDER_NEEDED"
	AlertCriticalStock AlertType = "CRITICAL_STOCK"
)

// AlertPriority prioridad de la alerta.
type AlertPriority string

const (
	PriorityLow      AlertPriority = "LOW"
	PriorityMedium   AlertPriority = "MEDIUM"
	PriorityHigh     AlertPriority = "HIGH"
	PriorityCritical AlertPriority = "CRITICAL"
)

// Rank orden numérico de la prioridad (0 = desconocida).
func (p AlertPriority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	}
	return 0
}

// AlertState estado del ciclo de vida.
type AlertState string

const (
	AlertActive       AlertState = "ACTIVE"
	AlertAcknowledged AlertState = "ACKNOWLEDGED"
	AlertResolved     AlertState = "RESOLVED"
	AlertDismissed    AlertState = "DISMISSED"
)

// IsOpen ACTIVE o ACKNOWLEDGED.
func (s AlertState) IsOpen() bool {
	return s == AlertActive || s == AlertAcknowledged
}

// NotificationStage etapa de notificación de una alerta.
type NotificationStage string

const (
	StageInitial    NotificationStage = "INITIAL"
	StageEscalation NotificationStage = "ESCALATION"
	StageSupplier   NotificationStage = "SUPPLIER"
)

// Rank orden de entrega dentro de una alerta.
func (s NotificationStage) Rank() int {
	switch s {
	case StageInitial:
		return 0
	case StageEscalation:
		return 1
	default:
		return 2
	}
}

// NotificationLogEntry entrega confirmada por el transporte.
type NotificationLogEntry struct {
	Recipient          string            `json:"recipient"`
	Stage              NotificationStage `json:"stage"`
	Day                string            `json:"day,omitempty"`
	DeliveredAt        time.Time         `json:"deliveredAt"`
	TransportMessageID string            `json:"transportMessageId"`
}

// Alert alerta de reposición. A lo sumo una abierta por (tenant, item).
type Alert struct {
	TenantID             string                 `json:"tenantId"`
	AlertID              string                 `json:"alertId"`
	ItemID               string                 `json:"itemId"`
	Type                 AlertType              `json:"type"`
	Priority             AlertPriority          `json:"priority"`
	State                AlertState             `json:"state"`
	ObservedOnHand       decimal.Decimal        `json:"observedOnHand"`
	ReorderPoint         decimal.Decimal        `json:"reorderPoint"`
	SuggestedQuantity    decimal.Decimal        `json:"suggestedQuantity"`
	EstimatedCost        decimal.Decimal        `json:"estimatedCost"`
	UrgencyScore         int                    `json:"urgencyScore"`
	ExpectedDeliveryDate time.Time              `json:"expectedDeliveryDate"`
	NotificationLog      []NotificationLogEntry `json:"notificationLog"`
	EscalationDays       []string               `json:"escalationDays"` // días UTC con ESCALATION emitida
	SupplierNotified     bool                   `json:"supplierNotified"`
	AckBy                string                 `json:"ackBy,omitempty"`
	AckAt                *time.Time             `json:"ackAt,omitempty"`
	ResolvedBy           string                 `json:"resolvedBy,omitempty"`
	ResolvedAt           *time.Time             `json:"resolvedAt,omitempty"`
	DismissedBy          string                 `json:"dismissedBy,omitempty"`
	DismissedAt          *time.Time             `json:"dismissedAt,omitempty"`
	DismissReason        string                 `json:"dismissReason,omitempty"`
	CreatedAt            time.Time              `json:"createdAt"`
	UpdatedAt            time.Time              `json:"updatedAt"`
	Version              int64                  `json:"version"`
}

// EscalatedOn indica si ya se emitió ESCALATION en el día UTC indicado.
func (a *Alert) EscalatedOn(day string) bool {
	for _, d := range a.EscalationDays {
		if d == day {
			return true
		}
	}
	return false
}

// Clone copia profunda para actualizaciones optimistas.
func (a *Alert) Clone() *Alert {
	c := *a
	c.NotificationLog = append([]NotificationLogEntry(nil), a.NotificationLog...)
	c.EscalationDays = append([]string(nil), a.EscalationDays...)
	return &c
}
