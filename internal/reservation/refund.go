package reservation

import (
	"context"

	"github.com/google/uuid"
	"github.com/robertarktes/show-reservations/internal/domain"
)

// RefundWorkflow drives the REFUND_REQUESTED branch of the lifecycle.
type RefundWorkflow struct {
	store     domain.Store
	lifecycle *Lifecycle
}

func NewRefundWorkflow(store domain.Store, lifecycle *Lifecycle) *RefundWorkflow {
	return &RefundWorkflow{store: store, lifecycle: lifecycle}
}

// RequestRefund moves an APPROVED reservation to REFUND_REQUESTED. Its
// inventory stays claimed until the organizer decides.
func (w *RefundWorkflow) RequestRefund(ctx context.Context, p domain.Principal, reservationID uuid.UUID) (domain.Reservation, domain.Refund, error) {
	out, err := w.lifecycle.Transition(ctx, p, reservationID, domain.ActionRequestRefund)
	if err != nil {
		return domain.Reservation{}, domain.Refund{}, err
	}
	return out.Reservation, *out.Refund, nil
}

// DecideRefund approves (releasing inventory) or rejects (back to APPROVED) a
// pending refund request.
func (w *RefundWorkflow) DecideRefund(ctx context.Context, p domain.Principal, reservationID uuid.UUID, approve bool) (domain.Reservation, domain.Refund, error) {
	out, err := w.lifecycle.Transition(ctx, p, reservationID, domain.RefundDecisionAction(approve))
	if err != nil {
		return domain.Reservation{}, domain.Refund{}, err
	}
	return out.Reservation, *out.Refund, nil
}

// ListRefundRequests returns the outstanding refund requests on the caller's posts.
func (w *RefundWorkflow) ListRefundRequests(ctx context.Context, p domain.Principal) ([]ReservationView, error) {
	var views []ReservationView
	err := w.store.WithTx(ctx, func(tx domain.Tx) error {
		list, err := tx.ListReservationsByOrganizer(ctx, p.UserID, domain.StatusRefundRequested)
		if err != nil {
			return err
		}
		views = make([]ReservationView, 0, len(list))
		for _, r := range list {
			v, err := viewOf(ctx, tx, r, domain.ActorOrganizer)
			if err != nil {
				return err
			}
			views = append(views, v)
		}
		return nil
	})
	return views, err
}
