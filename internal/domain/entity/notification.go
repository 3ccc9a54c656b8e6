package entity

import (
	"strings"
	"time"
)

// Recipient destinatario resuelto por el directorio.
type Recipient struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// NotificationRequest lo que el evaluador entrega al despachador: una etapa de una alerta
// para un conjunto de destinatarios.
type NotificationRequest struct {
	TenantID   string            `json:"tenantId"`
	AlertID    string            `json:"alertId"`
	ItemID     string            `json:"itemId"`
	Stage      NotificationStage `json:"stage"`
	Day        string            `json:"day,omitempty"` // día UTC; sólo distingue ESCALATION
	Recipients []Recipient       `json:"recipients"`
	Template   string            `json:"template,omitempty"`
	Subject    string            `json:"subject"`
	Body       string            `json:"body"`
}

// TaskState estado de una tarea de notificación.
type TaskState string

const (
	TaskPending   TaskState = "PENDING"
	TaskSending   TaskState = "SENDING"
	TaskRetrying  TaskState = "RETRYING"
	TaskDelivered TaskState = "DELIVERED"
	TaskFailed    TaskState = "FAILED"
)

// Terminal DELIVERED o FAILED.
func (s TaskState) Terminal() bool {
	return s == TaskDelivered || s == TaskFailed
}

// NotificationTask una entrega a un destinatario. La clave compuesta es el token de idempotencia.
type NotificationTask struct {
	Key                string            `json:"key"`
	TenantID           string            `json:"tenantId"`
	AlertID            string            `json:"alertId"`
	ItemID             string            `json:"itemId"`
	Stage              NotificationStage `json:"stage"`
	Day                string            `json:"day,omitempty"`
	Recipient          Recipient         `json:"recipient"`
	Template           string            `json:"template,omitempty"`
	Subject            string            `json:"subject"`
	Body               string            `json:"body"`
	State              TaskState         `json:"state"`
	Attempts           int               `json:"attempts"`
	NextAttemptAt      time.Time         `json:"nextAttemptAt"`
	LastError          string            `json:"lastError,omitempty"`
	TransportMessageID string            `json:"transportMessageId,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
	DeliveredAt        *time.Time        `json:"deliveredAt,omitempty"`
	Version            int64             `json:"version"`
}

// TaskKey clave compuesta notif-task/{alertId}/{stage}/{recipient}; ESCALATION incluye el día UTC.
func TaskKey(alertID string, stage NotificationStage, day, recipientID string) string {
	parts := []string{"notif-task", alertID, string(stage)}
	if stage == StageEscalation && day != "" {
		parts = append(parts, day)
	}
	parts = append(parts, recipientID)
	return strings.Join(parts, "/")
}

// Clone copia la tarea.
func (t *NotificationTask) Clone() *NotificationTask {
	c := *t
	return &c
}
