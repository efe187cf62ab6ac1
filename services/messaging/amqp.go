package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// OutboundTextKey routes outbound texts to the channel adapter.
	OutboundTextKey = "outbound.text"
	producer        = "turnero"
)

// Envelope wraps every published event.
type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// Meta describes an event.
type Meta struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Producer string    `json:"producer"`
	Time     time.Time `json:"time"`
}

// OutboundText asks the channel adapter to deliver a text.
type OutboundText struct {
	TenantID string `json:"tenantId"`
	Phone    string `json:"phone"`
	Text     string `json:"text"`
}

// Publisher hands outbound texts to a topic exchange. Each publish opens its
// own channel so concurrent senders never share one.
type Publisher struct {
	conn     *amqp.Connection
	exchange string
	logger   *zap.Logger
}

// NewPublisher dials url and declares exchange as a durable topic exchange.
func NewPublisher(url, exchange string, logger *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{conn: conn, exchange: exchange, logger: logger}, nil
}

func (p *Publisher) Send(ctx context.Context, tenantID, phone, text string) error {
	return p.Publish(ctx, OutboundTextKey, OutboundText{TenantID: tenantID, Phone: phone, Text: text})
}

// Publish sends data under key and waits for the broker to confirm it.
func (p *Publisher) Publish(ctx context.Context, key string, data any) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("confirm mode: %w", err)
	}

	msg := newEnvelope(key, data, time.Now())
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.Meta.ID,
		Timestamp:    msg.Meta.Time,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	if !acked {
		return fmt.Errorf("publish %s: broker nacked message %s", key, msg.Meta.ID)
	}
	p.logger.Debug("published", zap.String("key", key), zap.String("exchange", p.exchange), zap.String("id", msg.Meta.ID))
	return nil
}

func (p *Publisher) Close() error {
	return p.conn.Close()
}

func newEnvelope(key string, data any, now time.Time) Envelope {
	return Envelope{
		Meta: Meta{ID: uuid.NewString(), Type: key, Producer: producer, Time: now.UTC()},
		Data: data,
	}
}
