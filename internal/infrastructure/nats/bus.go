// Package nats bus de cruces de umbral entre instancias del motor sobre JetStream.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/ports"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/pkg/config"
	"github.com/jhoicas/hotel-inventory-engine/pkg/logger"
)

var _ ports.TriggerBus = (*Bus)(nil)

const subjectPrefix = "inventory.threshold"

// Handler recibe cada cruce publicado. Un error provoca Nak y redelivery.
type Handler func(ctx context.Context, evt entity.ThresholdEvent) error

// Bus publica y consume cruces de umbral en el stream configurado.
type Bus struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	stream  string
	durable string
	log     *logger.Logger
}

// Connect abre la conexión y asegura el stream.
func Connect(ctx context.Context, cfg config.NATSConfig, log *logger.Logger) (*Bus, error) {
	l := log.Component("nats")
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.ClientID),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			l.Info().Str("url", nc.ConnectedUrl()).Msg("reconectado a NATS")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			l.Warn().Err(err).Msg("desconectado de NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("conectar NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("crear contexto JetStream: %w", err)
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       cfg.Stream,
		Subjects:   []string{subjectPrefix + ".>"},
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     24 * time.Hour,
		Storage:    jetstream.FileStorage,
		Duplicates: 2 * time.Minute,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("asegurar stream %s: %w", cfg.Stream, err)
	}
	return &Bus{nc: nc, js: js, stream: cfg.Stream, durable: cfg.Durable, log: l}, nil
}

// Subject inventory.threshold.{tenant}.{direction}.
func Subject(evt entity.ThresholdEvent) string {
	return strings.Join([]string{subjectPrefix, token(evt.TenantID), evt.Direction}, ".")
}

// token los tokens de subject no admiten '.', '*', '>' ni espacios.
func token(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ':
			return '_'
		}
		return r
	}, s)
}

// msgID deduplicación de JetStream: el mismo cruce publicado dos veces se guarda una.
func msgID(evt entity.ThresholdEvent) string {
	return fmt.Sprintf("%s/%s/%d/%s", evt.TenantID, evt.ItemID, evt.Seq, evt.Direction)
}

func (b *Bus) PublishThreshold(ctx context.Context, evt entity.ThresholdEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if _, err := b.js.Publish(ctx, Subject(evt), data, jetstream.WithMsgID(msgID(evt))); err != nil {
		return fmt.Errorf("publicar cruce %s: %w", msgID(evt), err)
	}
	return nil
}

// Subscribe consume con un consumidor durable propio de la instancia: cada instancia ve todos
// los cruces y descarta los suyos. Bloquea hasta que ctx termine.
func (b *Bus) Subscribe(ctx context.Context, instanceID string, h Handler) error {
	consumer, err := b.js.CreateOrUpdateConsumer(ctx, b.stream, jetstream.ConsumerConfig{
		Durable:           token(b.durable + "-" + instanceID),
		FilterSubject:     subjectPrefix + ".>",
		AckPolicy:         jetstream.AckExplicitPolicy,
		AckWait:           30 * time.Second,
		MaxDeliver:        3,
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		InactiveThreshold: time.Hour,
	})
	if err != nil {
		return fmt.Errorf("crear consumidor: %w", err)
	}
	msgs, err := consumer.Messages()
	if err != nil {
		return fmt.Errorf("iterador de mensajes: %w", err)
	}
	go func() {
		<-ctx.Done()
		msgs.Stop()
	}()

	b.log.Info().Str("instance_id", instanceID).Msg("suscrito a cruces de umbral")
	for {
		msg, err := msgs.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.log.Warn().Err(err).Msg("error leyendo mensaje")
			time.Sleep(time.Second)
			continue
		}
		b.handle(ctx, msg, h)
	}
}

func (b *Bus) handle(ctx context.Context, msg jetstream.Msg, h Handler) {
	var evt entity.ThresholdEvent
	if err := json.Unmarshal(msg.Data(), &evt); err != nil {
		b.log.Error().Err(err).Str("subject", msg.Subject()).Msg("cruce ilegible, se descarta")
		_ = msg.Term()
		return
	}
	if err := h(ctx, evt); err != nil {
		b.log.Warn().Err(err).Str("tenant_id", evt.TenantID).Str("item_id", evt.ItemID).Msg("error procesando cruce")
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

// Close drena la conexión.
func (b *Bus) Close() {
	if err := b.nc.Drain(); err != nil {
		b.log.Warn().Err(err).Msg("error drenando NATS")
	}
}
