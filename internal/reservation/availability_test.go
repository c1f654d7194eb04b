package reservation_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/show-reservations/internal/domain"
	"github.com/robertarktes/show-reservations/internal/reservation"
)

func TestAvailability_Reasons(t *testing.T) {
	now := time.Now().UTC()
	later := now.Add(24 * time.Hour)
	earlier := now.Add(-24 * time.Hour)

	tests := []struct {
		name  string
		edit  func(*domain.PostInput)
		setup func(*testing.T, *fixture)
		want  reservation.Availability
	}{
		{
			name: "open",
			want: reservation.Availability{CanBook: true},
		},
		{
			name: "unpublished",
			edit: func(in *domain.PostInput) { in.Status = domain.PostUnpublished },
			want: reservation.Availability{Reason: reservation.ReasonPostUnpublished},
		},
		{
			name: "no schedules",
			edit: func(in *domain.PostInput) { in.Schedules = nil },
			want: reservation.Availability{Reason: reservation.ReasonNoSchedules},
		},
		{
			name: "window not open",
			edit: func(in *domain.PostInput) { in.ReservationStartAt = &later },
			want: reservation.Availability{Reason: reservation.ReasonWindowNotOpen},
		},
		{
			name: "window closed",
			edit: func(in *domain.PostInput) {
				start := earlier.Add(-time.Hour)
				in.ReservationStartAt = &start
				in.ReservationEndAt = &earlier
			},
			want: reservation.Availability{Reason: reservation.ReasonWindowClosed},
		},
		{
			name: "sold out",
			setup: func(t *testing.T, f *fixture) {
				f.store.SetSold(f.optionID, 10)
				for _, code := range []string{"A1", "A2", "A10"} {
					f.store.SetSeatStatus(f.seatedID, code, domain.SeatUnavailable)
				}
			},
			want: reservation.Availability{Reason: reservation.ReasonSoldOut},
		},
		{
			name: "seats left while general is sold out",
			setup: func(t *testing.T, f *fixture) {
				f.store.SetSold(f.optionID, 10)
			},
			want: reservation.Availability{CanBook: true},
		},
		{
			name: "user limit reached",
			edit: func(in *domain.PostInput) { in.MaxTicketsPerUser = 1 },
			setup: func(t *testing.T, f *fixture) {
				if _, err := f.reserveSeats(t, f.alice, "A1"); err != nil {
					t.Fatal(err)
				}
			},
			want: reservation.Availability{Reason: reservation.ReasonUserLimitReached},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edit := tt.edit
			if edit == nil {
				edit = func(*domain.PostInput) {}
			}
			f := newFixtureWith(t, edit)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			got, err := f.availability.CheckAvailability(context.Background(), f.alice, f.postID)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestAvailability_UnknownPost(t *testing.T) {
	f := newFixture(t)
	_, err := f.availability.CheckAvailability(context.Background(), f.alice, uuid.New())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAvailability_DoesNotMutate(t *testing.T) {
	f := newFixture(t)
	before := len(f.store.Outbox())
	for i := 0; i < 3; i++ {
		if _, err := f.availability.CheckAvailability(context.Background(), f.bob, f.postID); err != nil {
			t.Fatal(err)
		}
	}
	if after := len(f.store.Outbox()); after != before {
		t.Fatalf("expected no outbox writes, got %d new", after-before)
	}
	if sold := f.sold(t); sold != 0 {
		t.Fatalf("expected sold 0, got %d", sold)
	}
}
