package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReservationRequest is a validated create-reservation input. Checks that need
// the schedule (seating mode, window) happen in QuantityFor and the lifecycle.
type ReservationRequest struct {
	ScheduleID     uuid.UUID
	TicketOptionID uuid.UUID
	SeatCodes      []string
	Quantity       int
}

func NewReservationRequest(scheduleID, ticketOptionID uuid.UUID, seatCodes []string, quantity int) (ReservationRequest, error) {
	if scheduleID == uuid.Nil {
		return ReservationRequest{}, Validationf("schedule id is required")
	}
	if ticketOptionID == uuid.Nil {
		return ReservationRequest{}, Validationf("ticket option id is required")
	}
	if quantity < 0 {
		return ReservationRequest{}, Validationf("quantity must not be negative")
	}
	codes, err := NormalizeSeatCodes(seatCodes)
	if err != nil {
		return ReservationRequest{}, err
	}
	if len(codes) > 0 && quantity != 0 && quantity != len(codes) {
		return ReservationRequest{}, Validationf("quantity %d does not match %d requested seats", quantity, len(codes))
	}
	return ReservationRequest{ScheduleID: scheduleID, TicketOptionID: ticketOptionID, SeatCodes: codes, Quantity: quantity}, nil
}

// QuantityFor checks the request against the schedule's seating mode and
// returns the number of tickets it consumes.
func (r ReservationRequest) QuantityFor(mode SeatingMode) (int, error) {
	switch mode {
	case SeatingSeated:
		if len(r.SeatCodes) == 0 {
			return 0, Validationf("seated schedule requires at least one seat")
		}
		return len(r.SeatCodes), nil
	case SeatingGeneral:
		if len(r.SeatCodes) > 0 {
			return 0, Validationf("general admission schedule does not take seat codes")
		}
		if r.Quantity == 0 {
			return 1, nil
		}
		return r.Quantity, nil
	}
	return 0, Validationf("unknown seating mode %q", mode)
}

func NewReservation(userID uuid.UUID, sched PerformanceSchedule, optionID uuid.UUID, seats []string, quantity int, now time.Time) Reservation {
	return Reservation{
		ID:             uuid.New(),
		UserID:         userID,
		PostID:         sched.PostID,
		ScheduleID:     sched.ID,
		TicketOptionID: optionID,
		SeatCodes:      append([]string{}, seats...),
		Quantity:       quantity,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
