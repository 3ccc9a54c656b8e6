package mail

import (
	"context"

	"github.com/google/uuid"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/ports"
	"github.com/jhoicas/hotel-inventory-engine/pkg/logger"
)

var _ ports.Transport = (*LogTransport)(nil)

// LogTransport escribe cada mensaje en el log en vez de enviarlo. Se usa cuando no hay SMTP configurado.
type LogTransport struct {
	log *logger.Logger
}

func NewLogTransport(log *logger.Logger) *LogTransport {
	return &LogTransport{log: log.Component("mail-log")}
}

func (t *LogTransport) MultiRecipient() bool { return true }

func (t *LogTransport) Send(_ context.Context, msg ports.Message) (string, error) {
	to := make([]string, 0, len(msg.Recipients))
	for _, r := range msg.Recipients {
		to = append(to, r.Address)
	}
	id := uuid.NewString()
	t.log.Info().
		Strs("to", to).
		Str("subject", msg.Subject).
		Str("idempotency_key", msg.IdempotencyKey).
		Str("message_id", id).
		Msg("notificación (transporte de log)")
	return id, nil
}
