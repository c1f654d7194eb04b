// Package audit projects reservation events from the broker into the audit
// log and per-reservation timelines.
package audit

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	mongoadapter "github.com/robertarktes/show-reservations/internal/adapters/mongo"
	"github.com/robertarktes/show-reservations/internal/observability"
	"github.com/robertarktes/show-reservations/internal/reservation"
)

// Log is implemented by adapters/mongo.AuditLogger.
type Log interface {
	LogEvent(ctx context.Context, id, action string, userID uuid.UUID, data map[string]interface{}) error
}

// TimelineStore is implemented by adapters/mongo.Timeline.
type TimelineStore interface {
	Record(ctx context.Context, reservationID, userID, postID uuid.UUID, eventID string, entry mongoadapter.TimelineEntry) error
}

var errMalformed = errors.New("malformed event")

type Projector struct {
	log      Log
	timeline TimelineStore
	logger   observability.Logger
}

func NewProjector(log Log, timeline TimelineStore, logger observability.Logger) *Projector {
	return &Projector{log: log, timeline: timeline, logger: logger}
}

// Handle applies one message. messageID deduplicates redeliveries.
func (p *Projector) Handle(ctx context.Context, messageID, eventType string, body []byte) error {
	var ev reservation.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return errors.Mark(errors.Wrapf(err, "decode %s", eventType), errMalformed)
	}
	if ev.ReservationID == uuid.Nil {
		return errors.Mark(errors.Newf("%s without reservation id", eventType), errMalformed)
	}
	if messageID == "" {
		messageID = eventType + ":" + ev.ReservationID.String() + ":" + string(ev.Status)
	}

	data := map[string]interface{}{
		"reservation_id":   ev.ReservationID.String(),
		"actor_id":         ev.ActorID.String(),
		"post_id":          ev.PostID.String(),
		"schedule_id":      ev.ScheduleID.String(),
		"ticket_option_id": ev.TicketOptionID.String(),
		"seat_codes":       ev.SeatCodes,
		"quantity":         ev.Quantity,
		"from":             string(ev.From),
		"status":           string(ev.Status),
		"occurred_at":      ev.OccurredAt,
	}
	if err := p.log.LogEvent(ctx, messageID, eventType, ev.UserID, data); err != nil {
		return errors.Wrap(err, "write audit log")
	}
	entry := mongoadapter.TimelineEntry{
		Event:   eventType,
		From:    string(ev.From),
		To:      string(ev.Status),
		ActorID: ev.ActorID.String(),
		At:      ev.OccurredAt,
	}
	if err := p.timeline.Record(ctx, ev.ReservationID, ev.UserID, ev.PostID, messageID, entry); err != nil {
		return errors.Wrap(err, "record timeline")
	}
	return nil
}

// Run consumes deliveries until ctx ends or the channel closes. Malformed
// messages are dropped; storage failures are requeued.
func (p *Projector) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				p.logger.Warn("delivery channel closed")
				return
			}
			eventType := d.Type
			if eventType == "" {
				eventType = d.RoutingKey
			}
			err := p.Handle(ctx, d.MessageId, eventType, d.Body)
			switch {
			case err == nil:
				d.Ack(false)
			case errors.Is(err, errMalformed):
				p.logger.WithError(err).WithField("message_id", d.MessageId).Error("dropping malformed event")
				d.Nack(false, false)
			default:
				p.logger.WithError(err).WithField("message_id", d.MessageId).Error("audit projection failed")
				d.Nack(false, true)
			}
		}
	}
}
