package outbox

import (
	"context"
	"time"

	"github.com/robertarktes/show-reservations/internal/domain"
	"github.com/robertarktes/show-reservations/internal/observability"
)

// Sink delivers one event to the broker. adapters/rabbit.Publisher implements it.
type Sink interface {
	PublishEvent(ctx context.Context, ev domain.OutboxEvent) error
}

// Publisher relays committed outbox events to a Sink.
type Publisher struct {
	source   domain.OutboxSource
	sink     Sink
	logger   observability.Logger
	interval time.Duration
	batch    int
	attempts int
	backoff  time.Duration
}

func NewPublisher(source domain.OutboxSource, sink Sink, logger observability.Logger, interval time.Duration) *Publisher {
	return &Publisher{
		source:   source,
		sink:     sink,
		logger:   logger,
		interval: interval,
		batch:    50,
		attempts: 3,
		backoff:  200 * time.Millisecond,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.RelayOnce(ctx)
			if err != nil {
				p.logger.WithError(err).WithField("relayed", n).Error("outbox relay stopped early")
				continue
			}
			if n > 0 {
				p.logger.WithField("relayed", n).Debug("outbox relayed")
			}
		}
	}
}

// RelayOnce publishes one batch. Events that fail every attempt stay NEW and
// are picked up by the next pass.
func (p *Publisher) RelayOnce(ctx context.Context) (int, error) {
	var oldest time.Time
	n, err := p.source.RelayOutbox(ctx, p.batch, func(ev domain.OutboxEvent) error {
		if err := p.publish(ctx, ev); err != nil {
			return err
		}
		if oldest.IsZero() || ev.CreatedAt.Before(oldest) {
			oldest = ev.CreatedAt
		}
		return nil
	})
	if !oldest.IsZero() {
		observability.OutboxLag.Set(time.Since(oldest).Seconds())
	}
	return n, err
}

func (p *Publisher) publish(ctx context.Context, ev domain.OutboxEvent) error {
	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err = p.sink.PublishEvent(ctx, ev); err == nil {
			return nil
		}
		if attempt == p.attempts {
			break
		}
		observability.RabbitPublishRetries.Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff * time.Duration(attempt)):
		}
	}
	return err
}
