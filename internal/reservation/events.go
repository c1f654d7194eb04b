package reservation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/show-reservations/internal/domain"
)

// Event is the payload of every reservation.* outbox message.
type Event struct {
	ReservationID  uuid.UUID                `json:"reservation_id"`
	UserID         uuid.UUID                `json:"user_id"`
	ActorID        uuid.UUID                `json:"actor_id"`
	PostID         uuid.UUID                `json:"post_id"`
	ScheduleID     uuid.UUID                `json:"schedule_id"`
	TicketOptionID uuid.UUID                `json:"ticket_option_id"`
	SeatCodes      []string                 `json:"seat_codes,omitempty"`
	Quantity       int                      `json:"quantity"`
	From           domain.ReservationStatus `json:"from,omitempty"`
	Status         domain.ReservationStatus `json:"status"`
	OccurredAt     time.Time                `json:"occurred_at"`
}

func newOutboxEvent(eventType string, actor uuid.UUID, res domain.Reservation, from domain.ReservationStatus, at time.Time) (domain.OutboxEvent, error) {
	payload, err := json.Marshal(Event{
		ReservationID:  res.ID,
		UserID:         res.UserID,
		ActorID:        actor,
		PostID:         res.PostID,
		ScheduleID:     res.ScheduleID,
		TicketOptionID: res.TicketOptionID,
		SeatCodes:      res.SeatCodes,
		Quantity:       res.Quantity,
		From:           from,
		Status:         res.Status,
		OccurredAt:     at,
	})
	if err != nil {
		return domain.OutboxEvent{}, err
	}
	id := uuid.New()
	return domain.OutboxEvent{
		ID:            id,
		AggregateType: "reservation",
		AggregateID:   res.ID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     at,
		DedupeKey:     id.String(),
	}, nil
}
