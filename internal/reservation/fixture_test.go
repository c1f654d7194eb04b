package reservation_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/show-reservations/internal/adapters/memory"
	"github.com/robertarktes/show-reservations/internal/catalog"
	"github.com/robertarktes/show-reservations/internal/domain"
	"github.com/robertarktes/show-reservations/internal/observability"
	"github.com/robertarktes/show-reservations/internal/reservation"
	"github.com/sirupsen/logrus"
)

type fixture struct {
	store        *memory.Store
	seats        *reservation.SeatAllocator
	capacity     *reservation.CapacityTracker
	lifecycle    *reservation.Lifecycle
	refunds      *reservation.RefundWorkflow
	queries      *reservation.Queries
	availability *reservation.AvailabilityChecker

	organizer domain.Principal
	alice     domain.Principal
	bob       domain.Principal

	postID    uuid.UUID
	seatedID  uuid.UUID
	generalID uuid.UUID
	optionID  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, func(*domain.PostInput) {})
}

// newFixtureWith provisions one post with a seated schedule (A1, A2, A10) and a
// general admission schedule sharing a single option of capacity 10.
func newFixtureWith(t *testing.T, edit func(*domain.PostInput)) *fixture {
	t.Helper()
	logger := observability.NewLoggerTo(io.Discard, logrus.PanicLevel)
	store := memory.NewStore()
	seats := reservation.NewSeatAllocator(store, nil, logger)
	capacity := reservation.NewCapacityTracker(store)
	lifecycle := reservation.NewLifecycle(store, seats, capacity, logger)

	f := &fixture{
		store:        store,
		seats:        seats,
		capacity:     capacity,
		lifecycle:    lifecycle,
		refunds:      reservation.NewRefundWorkflow(store, lifecycle),
		queries:      reservation.NewQueries(store),
		availability: reservation.NewAvailabilityChecker(store),
		organizer:    domain.Principal{UserID: uuid.New(), Role: domain.RoleAdmin},
		alice:        domain.Principal{UserID: uuid.New(), Role: domain.RoleUser},
		bob:          domain.Principal{UserID: uuid.New(), Role: domain.RoleUser},
	}

	now := time.Now().UTC()
	in := domain.PostInput{
		Title:           "Hamlet",
		Location:        "Main Hall",
		ProfileImageURL: "images/hamlet.png",
		Schedules: []domain.ScheduleInput{
			{StartTime: now.Add(48 * time.Hour), SeatingMode: domain.SeatingSeated, SeatCodes: []string{"A1", "A2", "A10"}},
			{StartTime: now.Add(72 * time.Hour), SeatingMode: domain.SeatingGeneral},
		},
		TicketOptions: []domain.TicketOptionInput{{Name: "R", Price: 50000, Capacity: 10}},
	}
	edit(&in)

	ctx := context.Background()
	postID, err := catalog.NewService(store, logger).CreatePost(ctx, f.organizer, in)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	f.postID = postID

	err = store.WithTx(ctx, func(tx domain.Tx) error {
		scheds, err := tx.ListSchedules(ctx, postID)
		if err != nil {
			return err
		}
		for _, s := range scheds {
			if s.SeatingMode == domain.SeatingSeated {
				f.seatedID = s.ID
			} else {
				f.generalID = s.ID
			}
		}
		opts, err := tx.ListTicketOptions(ctx, postID)
		if err != nil {
			return err
		}
		if len(opts) > 0 {
			f.optionID = opts[0].ID
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) reserveSeats(t *testing.T, p domain.Principal, codes ...string) (domain.Reservation, error) {
	t.Helper()
	req, err := domain.NewReservationRequest(f.seatedID, f.optionID, codes, 0)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	return f.lifecycle.Create(context.Background(), p, req)
}

func (f *fixture) reserveUnits(t *testing.T, p domain.Principal, qty int) (domain.Reservation, error) {
	t.Helper()
	req, err := domain.NewReservationRequest(f.generalID, f.optionID, nil, qty)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	return f.lifecycle.Create(context.Background(), p, req)
}

func (f *fixture) seatStatus(t *testing.T, code string) domain.SeatStatus {
	t.Helper()
	seats, err := f.seats.ListSeats(context.Background(), f.seatedID)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range seats {
		if s.SeatCode == code {
			return s.Status
		}
	}
	t.Fatalf("seat %s not found", code)
	return ""
}

func (f *fixture) sold(t *testing.T) int {
	t.Helper()
	var sold int
	err := f.store.WithTx(context.Background(), func(tx domain.Tx) error {
		o, err := tx.GetTicketOption(context.Background(), f.optionID)
		sold = o.Sold
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	return sold
}

func (f *fixture) status(t *testing.T, id uuid.UUID) domain.ReservationStatus {
	t.Helper()
	var st domain.ReservationStatus
	err := f.store.WithTx(context.Background(), func(tx domain.Tx) error {
		r, err := tx.GetReservation(context.Background(), id)
		st = r.Status
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	return st
}
