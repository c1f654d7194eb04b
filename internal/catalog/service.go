// Package catalog manages performance posts with their schedules, seat maps
// and ticket options.
package catalog

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/show-reservations/internal/domain"
	"github.com/robertarktes/show-reservations/internal/observability"
)

// PostSummary is one entry of an organizer's overview.
type PostSummary struct {
	ID              uuid.UUID
	Title           string
	Location        string
	ProfileImageURL string
	Status          domain.PostStatus
	ScheduleCount   int
	FirstStart      *time.Time
	CreatedAt       time.Time
}

type PostDetail struct {
	domain.PerformancePost
	Schedules     []domain.PerformanceSchedule
	TicketOptions []domain.TicketOption
}

type ScheduleView struct {
	domain.PerformanceSchedule
	BookingStatus  domain.BookingStatus
	AvailableSeats int
}

type Service struct {
	store  domain.Store
	logger observability.Logger
	now    func() time.Time
}

func NewService(store domain.Store, logger observability.Logger) *Service {
	return &Service{store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// CreatePost provisions a post with its schedules, seat maps and ticket
// options in one unit of work.
func (s *Service) CreatePost(ctx context.Context, p domain.Principal, in domain.PostInput) (uuid.UUID, error) {
	if !p.IsOrganizer() {
		return uuid.Nil, domain.Forbiddenf("only organizers can create performances")
	}
	agg, err := domain.NewPost(p.UserID, in, s.now())
	if err != nil {
		return uuid.Nil, err
	}
	err = s.store.WithTx(ctx, func(tx domain.Tx) error {
		if err := tx.InsertPost(ctx, agg.Post); err != nil {
			return errors.Wrap(err, "insert post")
		}
		for _, sched := range agg.Schedules {
			if err := tx.InsertSchedule(ctx, sched); err != nil {
				return errors.Wrap(err, "insert schedule")
			}
		}
		if len(agg.Seats) > 0 {
			if err := tx.InsertSeats(ctx, agg.Seats); err != nil {
				return errors.Wrap(err, "insert seats")
			}
		}
		for _, o := range agg.Options {
			if err := tx.InsertTicketOption(ctx, o); err != nil {
				return errors.Wrap(err, "insert ticket option")
			}
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.logger.WithFields(map[string]interface{}{
		"post_id":   agg.Post.ID,
		"organizer": p.UserID,
		"schedules": len(agg.Schedules),
		"seats":     len(agg.Seats),
	}).Info("performance created")
	return agg.Post.ID, nil
}

// Overview lists the caller's posts, newest first.
func (s *Service) Overview(ctx context.Context, p domain.Principal) ([]PostSummary, error) {
	var out []PostSummary
	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		posts, err := tx.ListPostsByOrganizer(ctx, p.UserID)
		if err != nil {
			return err
		}
		sort.SliceStable(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
		out = make([]PostSummary, 0, len(posts))
		for _, post := range posts {
			scheds, err := tx.ListSchedules(ctx, post.ID)
			if err != nil {
				return err
			}
			sum := PostSummary{
				ID:              post.ID,
				Title:           post.Title,
				Location:        post.Location,
				ProfileImageURL: post.ProfileImageURL,
				Status:          post.Status,
				ScheduleCount:   len(scheds),
				CreatedAt:       post.CreatedAt,
			}
			for _, sc := range scheds {
				if sum.FirstStart == nil || sc.StartTime.Before(*sum.FirstStart) {
					start := sc.StartTime
					sum.FirstStart = &start
				}
			}
			out = append(out, sum)
		}
		return nil
	})
	return out, err
}

func (s *Service) GetPost(ctx context.Context, postID uuid.UUID) (PostDetail, error) {
	var d PostDetail
	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		post, err := tx.GetPost(ctx, postID)
		if err != nil {
			return err
		}
		d.PerformancePost = post
		if d.Schedules, err = tx.ListSchedules(ctx, postID); err != nil {
			return err
		}
		sortSchedules(d.Schedules)
		d.TicketOptions, err = tx.ListTicketOptions(ctx, postID)
		return err
	})
	return d, err
}

// UpdatePost replaces the editable fields and appends new detail images.
func (s *Service) UpdatePost(ctx context.Context, p domain.Principal, postID uuid.UUID, upd domain.PostUpdate) (uuid.UUID, error) {
	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		post, err := s.owned(ctx, tx, p, postID)
		if err != nil {
			return err
		}
		post, err = upd.Apply(post, s.now())
		if err != nil {
			return err
		}
		return tx.UpdatePost(ctx, post)
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.logger.WithField("post_id", postID).Info("performance updated")
	return postID, nil
}

// DeletePost soft-deletes the post. Existing reservations stay manageable.
func (s *Service) DeletePost(ctx context.Context, p domain.Principal, postID uuid.UUID) error {
	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		if _, err := s.owned(ctx, tx, p, postID); err != nil {
			return err
		}
		return tx.DeletePost(ctx, postID, s.now())
	})
	if err != nil {
		return err
	}
	s.logger.WithField("post_id", postID).Info("performance deleted")
	return nil
}

// ListSchedules returns the post's schedules by start time with their booking status.
func (s *Service) ListSchedules(ctx context.Context, postID uuid.UUID) ([]ScheduleView, error) {
	now := s.now()
	var out []ScheduleView
	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		post, err := tx.GetPost(ctx, postID)
		if err != nil {
			return err
		}
		scheds, err := tx.ListSchedules(ctx, postID)
		if err != nil {
			return err
		}
		options, err := tx.ListTicketOptions(ctx, postID)
		if err != nil {
			return err
		}
		sortSchedules(scheds)
		out = make([]ScheduleView, 0, len(scheds))
		for _, sc := range scheds {
			v := ScheduleView{PerformanceSchedule: sc}
			if sc.SeatingMode == domain.SeatingSeated {
				if v.AvailableSeats, err = tx.CountSeats(ctx, sc.ID, domain.SeatAvailable); err != nil {
					return err
				}
			}
			v.BookingStatus = domain.ScheduleBookingStatus(post, sc, now, v.AvailableSeats, options)
			out = append(out, v)
		}
		return nil
	})
	return out, err
}

func (s *Service) ListTicketOptions(ctx context.Context, postID uuid.UUID) ([]domain.TicketOption, error) {
	var out []domain.TicketOption
	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		if _, err := tx.GetPost(ctx, postID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListTicketOptions(ctx, postID)
		return err
	})
	return out, err
}

func (s *Service) owned(ctx context.Context, tx domain.Tx, p domain.Principal, postID uuid.UUID) (domain.PerformancePost, error) {
	post, err := tx.GetPost(ctx, postID)
	if err != nil {
		return domain.PerformancePost{}, err
	}
	if !post.OwnedBy(p.UserID) {
		return domain.PerformancePost{}, domain.Forbiddenf("performance %s belongs to another organizer", postID)
	}
	return post, nil
}

func sortSchedules(s []domain.PerformanceSchedule) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].StartTime.Before(s[j].StartTime) })
}
