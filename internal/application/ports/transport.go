package ports

import (
	"context"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
)

// Message una llamada al transporte.
type Message struct {
	Recipients     []entity.Recipient
	Subject        string
	Body           string
	IdempotencyKey string
}

// Transport puerto de salida de notificaciones (SMTP, log...).
// Los errores deben envolver domain.ErrTransportRetryable o domain.ErrTransportTerminal;
// cualquier otro error se trata como reintentable.
type Transport interface {
	Send(ctx context.Context, msg Message) (messageID string, err error)
	// MultiRecipient indica si una llamada puede llevar varios destinatarios.
	MultiRecipient() bool
}
