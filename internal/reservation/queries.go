package reservation

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/show-reservations/internal/domain"
)

// ReservationView is a reservation as seen by one party, with the actions
// that party may take next.
type ReservationView struct {
	domain.Reservation
	Refund         *domain.Refund
	AllowedActions []domain.Action
}

// Summary is one row of a user's reservation overview.
type Summary struct {
	ReservationID uuid.UUID
	PostID        uuid.UUID
	PostTitle     string
	ScheduleID    uuid.UUID
	ScheduleStart time.Time
	OptionName    string
	SeatCodes     []string
	Quantity      int
	Status        domain.ReservationStatus
	CreatedAt     time.Time
}

// Queries serves the read side of reservations.
type Queries struct {
	store domain.Store
}

func NewQueries(store domain.Store) *Queries {
	return &Queries{store: store}
}

func (q *Queries) ListMine(ctx context.Context, p domain.Principal) ([]domain.Reservation, error) {
	var list []domain.Reservation
	err := q.store.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		list, err = tx.ListReservationsByUser(ctx, p.UserID)
		return err
	})
	sortNewestFirst(list)
	return list, err
}

// OverviewMine joins the caller's reservations with post, schedule and option
// details. Posts deleted since booking keep an empty title.
func (q *Queries) OverviewMine(ctx context.Context, p domain.Principal) ([]Summary, error) {
	var out []Summary
	err := q.store.WithTx(ctx, func(tx domain.Tx) error {
		list, err := tx.ListReservationsByUser(ctx, p.UserID)
		if err != nil {
			return err
		}
		sortNewestFirst(list)

		titles := map[uuid.UUID]string{}
		starts := map[uuid.UUID]time.Time{}
		options := map[uuid.UUID]string{}
		out = make([]Summary, 0, len(list))
		for _, r := range list {
			if _, ok := titles[r.PostID]; !ok {
				post, err := tx.GetPost(ctx, r.PostID)
				if err != nil && !errors.Is(err, domain.ErrNotFound) {
					return err
				}
				titles[r.PostID] = post.Title
			}
			if _, ok := starts[r.ScheduleID]; !ok {
				sched, err := tx.GetSchedule(ctx, r.ScheduleID)
				if err != nil {
					return err
				}
				starts[r.ScheduleID] = sched.StartTime
			}
			if _, ok := options[r.TicketOptionID]; !ok {
				opt, err := tx.GetTicketOption(ctx, r.TicketOptionID)
				if err != nil {
					return err
				}
				options[r.TicketOptionID] = opt.Name
			}
			out = append(out, Summary{
				ReservationID: r.ID,
				PostID:        r.PostID,
				PostTitle:     titles[r.PostID],
				ScheduleID:    r.ScheduleID,
				ScheduleStart: starts[r.ScheduleID],
				OptionName:    options[r.TicketOptionID],
				SeatCodes:     r.SeatCodes,
				Quantity:      r.Quantity,
				Status:        r.Status,
				CreatedAt:     r.CreatedAt,
			})
		}
		return nil
	})
	return out, err
}

func (q *Queries) ListForMyPerformances(ctx context.Context, p domain.Principal) ([]domain.Reservation, error) {
	var list []domain.Reservation
	err := q.store.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		list, err = tx.ListReservationsByOrganizer(ctx, p.UserID)
		return err
	})
	sortNewestFirst(list)
	return list, err
}

func (q *Queries) ListForPerformance(ctx context.Context, p domain.Principal, postID uuid.UUID) ([]domain.Reservation, error) {
	var list []domain.Reservation
	err := q.store.WithTx(ctx, func(tx domain.Tx) error {
		owner, err := tx.GetPostOwner(ctx, postID)
		if err != nil {
			return err
		}
		if owner != p.UserID {
			return domain.Forbiddenf("performance %s belongs to another organizer", postID)
		}
		list, err = tx.ListReservationsByPost(ctx, postID)
		return err
	})
	sortNewestFirst(list)
	return list, err
}

// Detail is the holder's view of one of their reservations.
func (q *Queries) Detail(ctx context.Context, p domain.Principal, id uuid.UUID) (ReservationView, error) {
	var view ReservationView
	err := q.store.WithTx(ctx, func(tx domain.Tx) error {
		res, err := tx.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		if res.UserID != p.UserID {
			return domain.Forbiddenf("reservation %s belongs to another user", id)
		}
		view, err = viewOf(ctx, tx, res, domain.ActorHolder)
		return err
	})
	return view, err
}

// AdminDetail is the organizer's view of a reservation on one of their posts.
func (q *Queries) AdminDetail(ctx context.Context, p domain.Principal, id uuid.UUID) (ReservationView, error) {
	var view ReservationView
	err := q.store.WithTx(ctx, func(tx domain.Tx) error {
		res, err := tx.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		owner, err := tx.GetPostOwner(ctx, res.PostID)
		if err != nil {
			return err
		}
		if owner != p.UserID {
			return domain.Forbiddenf("reservation %s is not on your performance", id)
		}
		view, err = viewOf(ctx, tx, res, domain.ActorOrganizer)
		return err
	})
	return view, err
}

func viewOf(ctx context.Context, tx domain.Tx, res domain.Reservation, actor domain.Actor) (ReservationView, error) {
	view := ReservationView{Reservation: res, AllowedActions: domain.AllowedActions(res.Status, actor)}
	refund, err := tx.GetRefund(ctx, res.ID)
	switch {
	case err == nil:
		view.Refund = &refund
	case !errors.Is(err, domain.ErrNotFound):
		return ReservationView{}, err
	}
	return view, nil
}

func sortNewestFirst(list []domain.Reservation) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
}
