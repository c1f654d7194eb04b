package rabbit

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/show-reservations/internal/domain"
)

// Exchange is the topic exchange reservation events are published to.
const Exchange = "shows.events"

type Publisher struct {
	ch *amqp.Channel
}

func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	err = ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil)
	if err != nil {
		return nil, err
	}
	return &Publisher{ch: ch}, nil
}

func (p *Publisher) Publish(ctx context.Context, key string, msg amqp.Publishing) error {
	return p.ch.PublishWithContext(ctx, Exchange, key, false, false, msg)
}

// PublishEvent sends an outbox event with its event type as routing key.
func (p *Publisher) PublishEvent(ctx context.Context, ev domain.OutboxEvent) error {
	return p.Publish(ctx, ev.EventType, amqp.Publishing{
		MessageId:    ev.DedupeKey,
		Type:         ev.EventType,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.CreatedAt,
		Body:         ev.Payload,
	})
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}
