// Package mail transportes de notificación: SMTP con gomail y un transporte de log para desarrollo.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/ports"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/pkg/config"
)

var _ ports.Transport = (*SMTPTransport)(nil)

// sender lo cumple *gomail.Dialer.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPTransport envía un correo por llamada con todos los destinatarios del lote.
type SMTPTransport struct {
	dialer sender
	from   string
	domain string
}

func NewSMTPTransport(cfg config.SMTPConfig) *SMTPTransport {
	return newSMTPTransport(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From)
}

func newSMTPTransport(d sender, from string) *SMTPTransport {
	host := "localhost"
	if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
		host = from[i+1:]
	}
	return &SMTPTransport{dialer: d, from: from, domain: host}
}

func (t *SMTPTransport) MultiRecipient() bool { return true }

// Send el Message-ID se deriva de la clave de idempotencia: un reenvío accidental del mismo lote
// lleva el mismo identificador y el servidor puede descartarlo.
func (t *SMTPTransport) Send(ctx context.Context, msg ports.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTransportRetryable, err)
	}
	if len(msg.Recipients) == 0 {
		return "", fmt.Errorf("%w: mensaje sin destinatarios", domain.ErrTransportTerminal)
	}
	to := make([]string, 0, len(msg.Recipients))
	for _, r := range msg.Recipients {
		to = append(to, r.Address)
	}
	messageID := fmt.Sprintf("<%s@%s>", msg.IdempotencyKey, t.domain)

	m := gomail.NewMessage()
	m.SetHeader("From", t.from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", messageID)
	m.SetBody("text/plain", msg.Body)

	if err := t.dialer.DialAndSend(m); err != nil {
		return "", classify(err)
	}
	return messageID, nil
}

// respuesta SMTP "550 5.1.1 ..." al inicio o tras ": "
var smtpCode = regexp.MustCompile(`(?:^|: )([45]\d\d)[ -]`)

// classify sólo un 5xx es definitivo; 4xx, red y timeouts se reintentan.
func classify(err error) error {
	code := 0
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		code = tpErr.Code
	} else if m := smtpCode.FindStringSubmatch(err.Error()); m != nil {
		code, _ = strconv.Atoi(m[1])
	}
	if code >= 500 && code < 600 {
		return fmt.Errorf("%w: smtp %d: %v", domain.ErrTransportTerminal, code, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrTransportRetryable, err)
}
