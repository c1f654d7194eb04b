// Package memory is a domain.Store kept in process memory. Units of work run
// one at a time against a copy of the state that replaces it on commit.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/show-reservations/internal/domain"
)

type state struct {
	posts        map[uuid.UUID]domain.PerformancePost
	deleted      map[uuid.UUID]time.Time
	schedules    map[uuid.UUID]domain.PerformanceSchedule
	seats        map[uuid.UUID]map[string]domain.SeatStatus
	options      map[uuid.UUID]domain.TicketOption
	reservations map[uuid.UUID]domain.Reservation
	refunds      map[uuid.UUID]domain.Refund
	outbox       []domain.OutboxEvent
}

func newState() *state {
	return &state{
		posts:        map[uuid.UUID]domain.PerformancePost{},
		deleted:      map[uuid.UUID]time.Time{},
		schedules:    map[uuid.UUID]domain.PerformanceSchedule{},
		seats:        map[uuid.UUID]map[string]domain.SeatStatus{},
		options:      map[uuid.UUID]domain.TicketOption{},
		reservations: map[uuid.UUID]domain.Reservation{},
		refunds:      map[uuid.UUID]domain.Refund{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.posts {
		c.posts[k] = v
	}
	for k, v := range s.deleted {
		c.deleted[k] = v
	}
	for k, v := range s.schedules {
		c.schedules[k] = v
	}
	for k, m := range s.seats {
		inner := make(map[string]domain.SeatStatus, len(m))
		for code, st := range m {
			inner[code] = st
		}
		c.seats[k] = inner
	}
	for k, v := range s.options {
		c.options[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.refunds {
		c.refunds[k] = v
	}
	c.outbox = append([]domain.OutboxEvent(nil), s.outbox...)
	return c
}

// Store implements domain.Store, domain.DriftReader and domain.OutboxSource.
type Store struct {
	mu       sync.Mutex
	data     *state
	failures map[string]error
}

func NewStore() *Store {
	return &Store{data: newState(), failures: map[string]error{}}
}

// FailOn makes every later call to the named Tx method return err, so tests
// can break a unit of work halfway. A nil err clears it.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

func (s *Store) WithTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&tx{state: work, failures: s.failures}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) InventoryDrift(ctx context.Context) (domain.DriftReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report domain.DriftReport
	held := map[domain.SeatRef]int{}
	for _, r := range s.data.reservations {
		if !r.Status.IsActive() {
			continue
		}
		for _, code := range r.SeatCodes {
			ref := domain.SeatRef{ScheduleID: r.ScheduleID, SeatCode: code}
			held[ref]++
			if s.data.seats[r.ScheduleID][code] != domain.SeatReserved && held[ref] == 1 {
				report.UnheldSeats = append(report.UnheldSeats, ref)
			}
		}
	}
	for ref, n := range held {
		if n > 1 {
			report.DoubleBooked = append(report.DoubleBooked, ref)
		}
	}
	for schedID, m := range s.data.seats {
		for code, st := range m {
			ref := domain.SeatRef{ScheduleID: schedID, SeatCode: code}
			if st == domain.SeatReserved && held[ref] == 0 {
				report.OrphanedSeats = append(report.OrphanedSeats, ref)
			}
		}
	}
	for id, o := range s.data.options {
		if o.Sold > o.Capacity {
			report.OversoldOptions = append(report.OversoldOptions, id)
		}
	}
	sortRefs(report.UnheldSeats)
	sortRefs(report.DoubleBooked)
	sortRefs(report.OrphanedSeats)
	return report, nil
}

func (s *Store) RelayOutbox(ctx context.Context, limit int, fn func(domain.OutboxEvent) error) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sent := 0
	for i := range s.data.outbox {
		if sent >= limit {
			break
		}
		ev := &s.data.outbox[i]
		if ev.PublishedAt != nil {
			continue
		}
		if err := fn(*ev); err != nil {
			return sent, err
		}
		now := time.Now().UTC()
		ev.PublishedAt = &now
		sent++
	}
	return sent, nil
}

// Outbox returns a copy of every recorded event in insertion order.
func (s *Store) Outbox() []domain.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OutboxEvent(nil), s.data.outbox...)
}

// SetSeatStatus overwrites one seat outside any unit of work. Tests use it to
// mark seats UNAVAILABLE or to plant drift.
func (s *Store) SetSeatStatus(scheduleID uuid.UUID, code string, status domain.SeatStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.seats[scheduleID] == nil {
		s.data.seats[scheduleID] = map[string]domain.SeatStatus{}
	}
	s.data.seats[scheduleID][code] = status
}

// SetSold overwrites an option's sold counter outside any unit of work.
func (s *Store) SetSold(optionID uuid.UUID, sold int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.data.options[optionID]; ok {
		o.Sold = sold
		s.data.options[optionID] = o
	}
}

func sortRefs(refs []domain.SeatRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].ScheduleID != refs[j].ScheduleID {
			return refs[i].ScheduleID.String() < refs[j].ScheduleID.String()
		}
		return domain.LessSeatCode(refs[i].SeatCode, refs[j].SeatCode)
	})
}
