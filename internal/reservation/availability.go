package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/show-reservations/internal/domain"
	"golang.org/x/sync/errgroup"
)

type Reason string

const (
	ReasonPostUnpublished  Reason = "POST_UNPUBLISHED"
	ReasonWindowNotOpen    Reason = "WINDOW_NOT_OPEN"
	ReasonWindowClosed     Reason = "WINDOW_CLOSED"
	ReasonNoSchedules      Reason = "NO_SCHEDULES"
	ReasonSoldOut          Reason = "SOLD_OUT"
	ReasonUserLimitReached Reason = "USER_LIMIT_REACHED"
)

type Availability struct {
	CanBook bool
	Reason  Reason
}

// AvailabilityChecker answers whether a user could book a post right now. It
// only reads.
type AvailabilityChecker struct {
	store domain.Store
	now   func() time.Time
}

func NewAvailabilityChecker(store domain.Store) *AvailabilityChecker {
	return &AvailabilityChecker{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// CheckAvailability reports the first blocking reason in this order: post
// unpublished, no schedules, window, per-user limit, inventory.
func (c *AvailabilityChecker) CheckAvailability(ctx context.Context, p domain.Principal, postID uuid.UUID) (Availability, error) {
	now := c.now()
	var (
		post      domain.PerformancePost
		schedules []domain.PerformanceSchedule
		options   []domain.TicketOption
		held      int
	)
	err := c.store.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		if post, err = tx.GetPost(ctx, postID); err != nil {
			return err
		}
		if schedules, err = tx.ListSchedules(ctx, postID); err != nil {
			return err
		}
		if options, err = tx.ListTicketOptions(ctx, postID); err != nil {
			return err
		}
		if post.MaxTicketsPerUser > 0 {
			held, err = tx.CountActiveTickets(ctx, p.UserID, postID)
		}
		return err
	})
	if err != nil {
		return Availability{}, err
	}

	if post.Status != domain.PostPublished {
		return blocked(ReasonPostUnpublished), nil
	}
	if len(schedules) == 0 {
		return blocked(ReasonNoSchedules), nil
	}

	var open []domain.PerformanceSchedule
	notOpen := false
	for _, s := range schedules {
		switch post.Window(s, now) {
		case domain.WindowOpen:
			open = append(open, s)
		case domain.WindowNotOpen:
			notOpen = true
		}
	}
	if len(open) == 0 {
		if notOpen {
			return blocked(ReasonWindowNotOpen), nil
		}
		return blocked(ReasonWindowClosed), nil
	}
	if post.MaxTicketsPerUser > 0 && held >= post.MaxTicketsPerUser {
		return blocked(ReasonUserLimitReached), nil
	}

	claimable, err := c.anyClaimable(ctx, open, options)
	if err != nil {
		return Availability{}, err
	}
	if !claimable {
		return blocked(ReasonSoldOut), nil
	}
	return Availability{CanBook: true}, nil
}

// anyClaimable counts free seats of each seated schedule concurrently.
// General admission schedules draw on the post's ticket options.
func (c *AvailabilityChecker) anyClaimable(ctx context.Context, schedules []domain.PerformanceSchedule, options []domain.TicketOption) (bool, error) {
	free := make([]int, len(schedules))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range schedules {
		if s.SeatingMode != domain.SeatingSeated {
			for _, o := range options {
				free[i] += o.Remaining()
			}
			continue
		}
		g.Go(func() error {
			return c.store.WithTx(gctx, func(tx domain.Tx) error {
				n, err := tx.CountSeats(gctx, s.ID, domain.SeatAvailable)
				free[i] = n
				return err
			})
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}
	for _, n := range free {
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

func blocked(r Reason) Availability {
	return Availability{CanBook: false, Reason: r}
}
