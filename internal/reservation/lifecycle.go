package reservation

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/show-reservations/internal/domain"
	"github.com/robertarktes/show-reservations/internal/observability"
)

// Lifecycle creates reservations and applies status transitions. Every call is
// one unit of work: inventory, reservation row, refund row and outbox event
// commit together.
type Lifecycle struct {
	store    domain.Store
	seats    *SeatAllocator
	capacity *CapacityTracker
	logger   observability.Logger
	now      func() time.Time
}

func NewLifecycle(store domain.Store, seats *SeatAllocator, capacity *CapacityTracker, logger observability.Logger) *Lifecycle {
	return &Lifecycle{
		store:    store,
		seats:    seats,
		capacity: capacity,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Outcome is the state after a transition. Refund is set for refund actions.
type Outcome struct {
	Reservation domain.Reservation
	Refund      *domain.Refund
}

// Create validates req, claims its inventory and records a PENDING reservation.
func (l *Lifecycle) Create(ctx context.Context, p domain.Principal, req domain.ReservationRequest) (domain.Reservation, error) {
	now := l.now()
	var res domain.Reservation
	err := l.store.WithTx(ctx, func(tx domain.Tx) error {
		sched, err := tx.GetSchedule(ctx, req.ScheduleID)
		if err != nil {
			return err
		}
		post, err := tx.GetPost(ctx, sched.PostID)
		if err != nil {
			return err
		}
		option, err := tx.GetTicketOption(ctx, req.TicketOptionID)
		if err != nil {
			return err
		}
		if option.PostID != post.ID {
			return domain.Validationf("ticket option %s does not belong to this performance", option.ID)
		}
		if post.Status != domain.PostPublished {
			return domain.Validationf("performance is not open for reservations")
		}
		switch post.Window(sched, now) {
		case domain.WindowNotOpen:
			return domain.Validationf("booking window has not opened yet")
		case domain.WindowClosed:
			return domain.Validationf("booking window is closed")
		}
		qty, err := req.QuantityFor(sched.SeatingMode)
		if err != nil {
			return err
		}
		if post.MaxTicketsPerUser > 0 {
			held, err := tx.CountActiveTickets(ctx, p.UserID, post.ID)
			if err != nil {
				return err
			}
			if held+qty > post.MaxTicketsPerUser {
				return domain.Validationf("limit of %d tickets per user reached", post.MaxTicketsPerUser)
			}
		}

		if sched.SeatingMode == domain.SeatingSeated {
			err = l.seats.Claim(ctx, tx, sched.ID, req.SeatCodes)
		} else {
			err = l.capacity.Reserve(ctx, tx, option.ID, qty)
		}
		if err != nil {
			return err
		}

		res = domain.NewReservation(p.UserID, sched, option.ID, req.SeatCodes, qty, now)
		if err := tx.InsertReservation(ctx, res); err != nil {
			return errors.Wrap(err, "insert reservation")
		}
		ev, err := newOutboxEvent("reservation.created", p.UserID, res, "", now)
		if err != nil {
			return err
		}
		return tx.InsertOutbox(ctx, ev)
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	if res.Seated() {
		l.seats.Invalidate(ctx, res.ScheduleID)
	}
	observability.ReservationTransitions.WithLabelValues(string(res.Status)).Inc()
	l.logger.WithFields(map[string]interface{}{
		"reservation_id": res.ID,
		"user_id":        res.UserID,
		"schedule_id":    res.ScheduleID,
		"quantity":       res.Quantity,
	}).Info("reservation created")
	return res, nil
}

// Cancel withdraws a pending reservation on behalf of its holder.
func (l *Lifecycle) Cancel(ctx context.Context, p domain.Principal, id uuid.UUID) (domain.Reservation, error) {
	out, err := l.Transition(ctx, p, id, domain.ActionCancel)
	return out.Reservation, err
}

// Decide approves or rejects a pending reservation on behalf of the organizer.
func (l *Lifecycle) Decide(ctx context.Context, p domain.Principal, id uuid.UUID, decision domain.ReservationStatus) (domain.Reservation, error) {
	action, err := domain.DecisionAction(decision)
	if err != nil {
		return domain.Reservation{}, err
	}
	out, err := l.Transition(ctx, p, id, action)
	return out.Reservation, err
}

// Transition applies action to reservation id. Failures are checked in order:
// ErrNotFound, ErrForbidden, ErrInvalidStateTransition.
func (l *Lifecycle) Transition(ctx context.Context, p domain.Principal, id uuid.UUID, action domain.Action) (Outcome, error) {
	now := l.now()
	var (
		out  Outcome
		step domain.Step
	)
	err := l.store.WithTx(ctx, func(tx domain.Tx) error {
		res, err := tx.LockReservation(ctx, id)
		if err != nil {
			return err
		}
		if err := l.authorize(ctx, tx, p, res, action); err != nil {
			return err
		}
		step, err = domain.Transition(res.Status, action)
		if err != nil {
			return err
		}

		if step.ReleasesInventory {
			if res.Seated() {
				err = l.seats.Release(ctx, tx, res.ScheduleID, res.SeatCodes)
			} else {
				err = l.capacity.Release(ctx, tx, res.TicketOptionID, res.Quantity)
			}
			if err != nil {
				return err
			}
		}

		if err := tx.UpdateReservationStatus(ctx, res.ID, step.To, now); err != nil {
			return errors.Wrap(err, "update reservation status")
		}
		res.Status = step.To
		res.UpdatedAt = now
		out.Reservation = res

		if refundStatus, ok := domain.RefundStatusAfter(action); ok {
			refund, err := l.nextRefund(ctx, tx, res.ID, refundStatus, now)
			if err != nil {
				return err
			}
			if err := tx.UpsertRefund(ctx, refund); err != nil {
				return errors.Wrap(err, "save refund")
			}
			out.Refund = &refund
		}

		ev, err := newOutboxEvent(step.Event, p.UserID, res, step.From, now)
		if err != nil {
			return err
		}
		return tx.InsertOutbox(ctx, ev)
	})
	if err != nil {
		return Outcome{}, err
	}

	if step.ReleasesInventory && out.Reservation.Seated() {
		l.seats.Invalidate(ctx, out.Reservation.ScheduleID)
	}
	observability.ReservationTransitions.WithLabelValues(string(step.To)).Inc()
	l.logger.WithFields(map[string]interface{}{
		"reservation_id": id,
		"actor_id":       p.UserID,
		"action":         action,
		"from":           step.From,
		"to":             step.To,
	}).Info("reservation transitioned")
	return out, nil
}

func (l *Lifecycle) authorize(ctx context.Context, tx domain.Tx, p domain.Principal, res domain.Reservation, action domain.Action) error {
	switch action.Actor() {
	case domain.ActorHolder:
		if res.UserID != p.UserID {
			return domain.Forbiddenf("reservation %s belongs to another user", res.ID)
		}
	case domain.ActorOrganizer:
		owner, err := tx.GetPostOwner(ctx, res.PostID)
		if err != nil {
			return err
		}
		if owner != p.UserID {
			return domain.Forbiddenf("only the organizer of this performance can %s", action)
		}
	}
	return nil
}

func (l *Lifecycle) nextRefund(ctx context.Context, tx domain.Tx, reservationID uuid.UUID, status domain.RefundStatus, now time.Time) (domain.Refund, error) {
	if status == domain.RefundRequested {
		return domain.Refund{ReservationID: reservationID, Status: status, RequestedAt: now}, nil
	}
	refund, err := tx.GetRefund(ctx, reservationID)
	if err != nil {
		return domain.Refund{}, errors.Wrap(err, "load refund request")
	}
	refund.Status = status
	refund.DecidedAt = &now
	return refund, nil
}
