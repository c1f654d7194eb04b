package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/show-reservations/internal/domain"
)

type tx struct {
	state    *state
	failures map[string]error
}

func (t *tx) fail(method string) error {
	return t.failures[method]
}

func (t *tx) GetPost(ctx context.Context, id uuid.UUID) (domain.PerformancePost, error) {
	if err := t.fail("GetPost"); err != nil {
		return domain.PerformancePost{}, err
	}
	p, ok := t.state.posts[id]
	if _, gone := t.state.deleted[id]; !ok || gone {
		return domain.PerformancePost{}, domain.NotFoundf("performance %s not found", id)
	}
	return p, nil
}

func (t *tx) GetPostOwner(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	p, ok := t.state.posts[id]
	if !ok {
		return uuid.Nil, domain.NotFoundf("performance %s not found", id)
	}
	return p.OrganizerID, nil
}

func (t *tx) ListPostsByOrganizer(ctx context.Context, organizerID uuid.UUID) ([]domain.PerformancePost, error) {
	out := []domain.PerformancePost{}
	for id, p := range t.state.posts {
		if _, gone := t.state.deleted[id]; gone || p.OrganizerID != organizerID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (t *tx) InsertPost(ctx context.Context, post domain.PerformancePost) error {
	if err := t.fail("InsertPost"); err != nil {
		return err
	}
	t.state.posts[post.ID] = post
	return nil
}

func (t *tx) UpdatePost(ctx context.Context, post domain.PerformancePost) error {
	if _, ok := t.state.posts[post.ID]; !ok {
		return domain.NotFoundf("performance %s not found", post.ID)
	}
	t.state.posts[post.ID] = post
	return nil
}

func (t *tx) DeletePost(ctx context.Context, id uuid.UUID, at time.Time) error {
	if _, ok := t.state.posts[id]; !ok {
		return domain.NotFoundf("performance %s not found", id)
	}
	t.state.deleted[id] = at
	return nil
}

func (t *tx) GetSchedule(ctx context.Context, id uuid.UUID) (domain.PerformanceSchedule, error) {
	s, ok := t.state.schedules[id]
	if !ok {
		return domain.PerformanceSchedule{}, domain.NotFoundf("schedule %s not found", id)
	}
	return s, nil
}

func (t *tx) ListSchedules(ctx context.Context, postID uuid.UUID) ([]domain.PerformanceSchedule, error) {
	out := []domain.PerformanceSchedule{}
	for _, s := range t.state.schedules {
		if s.PostID == postID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (t *tx) InsertSchedule(ctx context.Context, sched domain.PerformanceSchedule) error {
	t.state.schedules[sched.ID] = sched
	return nil
}

func (t *tx) GetTicketOption(ctx context.Context, id uuid.UUID) (domain.TicketOption, error) {
	o, ok := t.state.options[id]
	if !ok {
		return domain.TicketOption{}, domain.NotFoundf("ticket option %s not found", id)
	}
	return o, nil
}

func (t *tx) ListTicketOptions(ctx context.Context, postID uuid.UUID) ([]domain.TicketOption, error) {
	out := []domain.TicketOption{}
	for _, o := range t.state.options {
		if o.PostID == postID {
			out = append(out, o)
		}
	}
	// Same order as the SQL store: price descending, then name.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			return out[i].Price > out[j].Price
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (t *tx) InsertTicketOption(ctx context.Context, opt domain.TicketOption) error {
	t.state.options[opt.ID] = opt
	return nil
}

func (t *tx) InsertSeats(ctx context.Context, seats []domain.ScheduleSeat) error {
	for _, s := range seats {
		m := t.state.seats[s.ScheduleID]
		if m == nil {
			m = map[string]domain.SeatStatus{}
			t.state.seats[s.ScheduleID] = m
		}
		if _, dup := m[s.SeatCode]; dup {
			return domain.Validationf("seat %s already exists on schedule %s", s.SeatCode, s.ScheduleID)
		}
		m[s.SeatCode] = s.Status
	}
	return nil
}

func (t *tx) ListSeats(ctx context.Context, scheduleID uuid.UUID) ([]domain.ScheduleSeat, error) {
	m := t.state.seats[scheduleID]
	out := make([]domain.ScheduleSeat, 0, len(m))
	for code, st := range m {
		out = append(out, domain.ScheduleSeat{ScheduleID: scheduleID, SeatCode: code, Status: st})
	}
	return out, nil
}

func (t *tx) LockSeats(ctx context.Context, scheduleID uuid.UUID, codes []string) ([]domain.ScheduleSeat, error) {
	if err := t.fail("LockSeats"); err != nil {
		return nil, err
	}
	m := t.state.seats[scheduleID]
	out := []domain.ScheduleSeat{}
	for _, c := range codes {
		if st, ok := m[c]; ok {
			out = append(out, domain.ScheduleSeat{ScheduleID: scheduleID, SeatCode: c, Status: st})
		}
	}
	return out, nil
}

func (t *tx) UpdateSeatStatus(ctx context.Context, scheduleID uuid.UUID, codes []string, from, to domain.SeatStatus) (int64, error) {
	if err := t.fail("UpdateSeatStatus"); err != nil {
		return 0, err
	}
	m := t.state.seats[scheduleID]
	var n int64
	for _, c := range codes {
		if st, ok := m[c]; ok && st == from {
			m[c] = to
			n++
		}
	}
	return n, nil
}

func (t *tx) CountSeats(ctx context.Context, scheduleID uuid.UUID, status domain.SeatStatus) (int, error) {
	n := 0
	for _, st := range t.state.seats[scheduleID] {
		if st == status {
			n++
		}
	}
	return n, nil
}

func (t *tx) IncrementSold(ctx context.Context, optionID uuid.UUID, qty int) (bool, error) {
	if err := t.fail("IncrementSold"); err != nil {
		return false, err
	}
	o, ok := t.state.options[optionID]
	if !ok {
		return false, domain.NotFoundf("ticket option %s not found", optionID)
	}
	if o.Sold+qty > o.Capacity {
		return false, nil
	}
	o.Sold += qty
	t.state.options[optionID] = o
	return true, nil
}

func (t *tx) DecrementSold(ctx context.Context, optionID uuid.UUID, qty int) error {
	o, ok := t.state.options[optionID]
	if !ok {
		return domain.NotFoundf("ticket option %s not found", optionID)
	}
	o.Sold -= qty
	if o.Sold < 0 {
		o.Sold = 0
	}
	t.state.options[optionID] = o
	return nil
}

func (t *tx) InsertReservation(ctx context.Context, r domain.Reservation) error {
	if err := t.fail("InsertReservation"); err != nil {
		return err
	}
	t.state.reservations[r.ID] = r
	return nil
}

func (t *tx) GetReservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	r, ok := t.state.reservations[id]
	if !ok {
		return domain.Reservation{}, domain.NotFoundf("reservation %s not found", id)
	}
	return r, nil
}

func (t *tx) LockReservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	return t.GetReservation(ctx, id)
}

func (t *tx) UpdateReservationStatus(ctx context.Context, id uuid.UUID, status domain.ReservationStatus, at time.Time) error {
	if err := t.fail("UpdateReservationStatus"); err != nil {
		return err
	}
	r, ok := t.state.reservations[id]
	if !ok {
		return domain.NotFoundf("reservation %s not found", id)
	}
	r.Status = status
	r.UpdatedAt = at
	t.state.reservations[id] = r
	return nil
}

func (t *tx) ListReservationsByUser(ctx context.Context, userID uuid.UUID) ([]domain.Reservation, error) {
	return t.filterReservations(func(r domain.Reservation) bool { return r.UserID == userID }), nil
}

func (t *tx) ListReservationsByPost(ctx context.Context, postID uuid.UUID) ([]domain.Reservation, error) {
	return t.filterReservations(func(r domain.Reservation) bool { return r.PostID == postID }), nil
}

func (t *tx) ListReservationsByOrganizer(ctx context.Context, organizerID uuid.UUID, statuses ...domain.ReservationStatus) ([]domain.Reservation, error) {
	return t.filterReservations(func(r domain.Reservation) bool {
		if t.state.posts[r.PostID].OrganizerID != organizerID {
			return false
		}
		if len(statuses) == 0 {
			return true
		}
		for _, s := range statuses {
			if r.Status == s {
				return true
			}
		}
		return false
	}), nil
}

func (t *tx) CountActiveTickets(ctx context.Context, userID, postID uuid.UUID) (int, error) {
	n := 0
	for _, r := range t.state.reservations {
		if r.UserID == userID && r.PostID == postID && r.Status.IsActive() {
			n += r.Quantity
		}
	}
	return n, nil
}

func (t *tx) UpsertRefund(ctx context.Context, refund domain.Refund) error {
	if err := t.fail("UpsertRefund"); err != nil {
		return err
	}
	t.state.refunds[refund.ReservationID] = refund
	return nil
}

func (t *tx) GetRefund(ctx context.Context, reservationID uuid.UUID) (domain.Refund, error) {
	r, ok := t.state.refunds[reservationID]
	if !ok {
		return domain.Refund{}, domain.NotFoundf("no refund for reservation %s", reservationID)
	}
	return r, nil
}

func (t *tx) InsertOutbox(ctx context.Context, event domain.OutboxEvent) error {
	if err := t.fail("InsertOutbox"); err != nil {
		return err
	}
	t.state.outbox = append(t.state.outbox, event)
	return nil
}

func (t *tx) filterReservations(keep func(domain.Reservation) bool) []domain.Reservation {
	out := []domain.Reservation{}
	for _, r := range t.state.reservations {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
