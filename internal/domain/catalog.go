package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxNewDetailImages caps how many detail images one update may append.
const MaxNewDetailImages = 4

type ScheduleInput struct {
	StartTime   time.Time
	SeatingMode SeatingMode
	SeatCodes   []string
}

type TicketOptionInput struct {
	Name     string
	Price    int64
	Capacity int
}

type PostInput struct {
	Title              string
	Location           string
	Description        string
	ProfileImageURL    string
	DetailImageURLs    []string
	Status             PostStatus
	ReservationStartAt *time.Time
	ReservationEndAt   *time.Time
	MaxTicketsPerUser  int
	Schedules          []ScheduleInput
	TicketOptions      []TicketOptionInput
}

type PostUpdate struct {
	Title              string
	Location           string
	Description        string
	Status             PostStatus
	ReservationStartAt *time.Time
	ReservationEndAt   *time.Time
	MaxTicketsPerUser  int
	NewDetailImageURLs []string
}

// NewPostAggregate is a post with everything provisioned alongside it.
type NewPostAggregate struct {
	Post      PerformancePost
	Schedules []PerformanceSchedule
	Seats     []ScheduleSeat
	Options   []TicketOption
}

// NewPost validates in and builds the aggregate owned by organizer.
func NewPost(organizer uuid.UUID, in PostInput, now time.Time) (NewPostAggregate, error) {
	if strings.TrimSpace(in.Title) == "" {
		return NewPostAggregate{}, Validationf("title is required")
	}
	if strings.TrimSpace(in.ProfileImageURL) == "" {
		return NewPostAggregate{}, Validationf("profile image is required")
	}
	if err := validateWindow(in.ReservationStartAt, in.ReservationEndAt, in.MaxTicketsPerUser); err != nil {
		return NewPostAggregate{}, err
	}
	status := in.Status
	if status == "" {
		status = PostPublished
	}
	if status != PostPublished && status != PostUnpublished {
		return NewPostAggregate{}, Validationf("unknown post status %q", status)
	}

	post := PerformancePost{
		ID:                 uuid.New(),
		OrganizerID:        organizer,
		Title:              strings.TrimSpace(in.Title),
		Location:           strings.TrimSpace(in.Location),
		Description:        in.Description,
		ProfileImageURL:    in.ProfileImageURL,
		DetailImageURLs:    append([]string{}, in.DetailImageURLs...),
		Status:             status,
		ReservationStartAt: in.ReservationStartAt,
		ReservationEndAt:   in.ReservationEndAt,
		MaxTicketsPerUser:  in.MaxTicketsPerUser,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	agg := NewPostAggregate{Post: post}

	for i, s := range in.Schedules {
		sched := PerformanceSchedule{ID: uuid.New(), PostID: post.ID, StartTime: s.StartTime, SeatingMode: s.SeatingMode}
		if s.StartTime.IsZero() {
			return NewPostAggregate{}, Validationf("schedule %d: start time is required", i)
		}
		switch s.SeatingMode {
		case SeatingSeated:
			codes, err := NormalizeSeatCodes(s.SeatCodes)
			if err != nil {
				return NewPostAggregate{}, Validationf("schedule %d: %v", i, err)
			}
			if len(codes) == 0 {
				return NewPostAggregate{}, Validationf("schedule %d: seated schedule needs a seat map", i)
			}
			for _, c := range codes {
				agg.Seats = append(agg.Seats, ScheduleSeat{ScheduleID: sched.ID, SeatCode: c, Status: SeatAvailable})
			}
		case SeatingGeneral:
			if len(s.SeatCodes) > 0 {
				return NewPostAggregate{}, Validationf("schedule %d: general admission schedule cannot have seats", i)
			}
		default:
			return NewPostAggregate{}, Validationf("schedule %d: unknown seating mode %q", i, s.SeatingMode)
		}
		agg.Schedules = append(agg.Schedules, sched)
	}

	for i, o := range in.TicketOptions {
		if strings.TrimSpace(o.Name) == "" {
			return NewPostAggregate{}, Validationf("ticket option %d: name is required", i)
		}
		if o.Price < 0 || o.Capacity < 0 {
			return NewPostAggregate{}, Validationf("ticket option %d: price and capacity must not be negative", i)
		}
		agg.Options = append(agg.Options, TicketOption{ID: uuid.New(), PostID: post.ID, Name: strings.TrimSpace(o.Name), Price: o.Price, Capacity: o.Capacity})
	}
	return agg, nil
}

// Apply returns post with upd merged in. Detail images are append-only.
func (upd PostUpdate) Apply(post PerformancePost, now time.Time) (PerformancePost, error) {
	if len(upd.NewDetailImageURLs) > MaxNewDetailImages {
		return post, Validationf("at most %d new detail images per update, got %d", MaxNewDetailImages, len(upd.NewDetailImageURLs))
	}
	if strings.TrimSpace(upd.Title) == "" {
		return post, Validationf("title is required")
	}
	if err := validateWindow(upd.ReservationStartAt, upd.ReservationEndAt, upd.MaxTicketsPerUser); err != nil {
		return post, err
	}
	if upd.Status != "" {
		if upd.Status != PostPublished && upd.Status != PostUnpublished {
			return post, Validationf("unknown post status %q", upd.Status)
		}
		post.Status = upd.Status
	}
	post.Title = strings.TrimSpace(upd.Title)
	post.Location = strings.TrimSpace(upd.Location)
	post.Description = upd.Description
	post.ReservationStartAt = upd.ReservationStartAt
	post.ReservationEndAt = upd.ReservationEndAt
	post.MaxTicketsPerUser = upd.MaxTicketsPerUser
	post.DetailImageURLs = append(append([]string{}, post.DetailImageURLs...), upd.NewDetailImageURLs...)
	post.UpdatedAt = now
	return post, nil
}

func validateWindow(start, end *time.Time, maxPerUser int) error {
	if start != nil && end != nil && !end.After(*start) {
		return Validationf("reservation window must end after it starts")
	}
	if maxPerUser < 0 {
		return Validationf("max tickets per user must not be negative")
	}
	return nil
}

type WindowState string

const (
	WindowOpen    WindowState = "OPEN"
	WindowNotOpen WindowState = "NOT_OPEN"
	WindowClosed  WindowState = "CLOSED"
)

// Window reports whether sched accepts reservations at now. The post bounds
// apply to every schedule and a schedule stops selling once it starts.
func (p PerformancePost) Window(sched PerformanceSchedule, now time.Time) WindowState {
	if p.ReservationStartAt != nil && now.Before(*p.ReservationStartAt) {
		return WindowNotOpen
	}
	if p.ReservationEndAt != nil && !now.Before(*p.ReservationEndAt) {
		return WindowClosed
	}
	if !now.Before(sched.StartTime) {
		return WindowClosed
	}
	return WindowOpen
}

type BookingStatus string

const (
	BookingOpen    BookingStatus = "OPEN"
	BookingSoldOut BookingStatus = "SOLD_OUT"
	BookingClosed  BookingStatus = "CLOSED"
)

// ScheduleBookingStatus combines the window with remaining inventory.
// availableSeats is only consulted for seated schedules.
func ScheduleBookingStatus(post PerformancePost, sched PerformanceSchedule, now time.Time, availableSeats int, options []TicketOption) BookingStatus {
	if post.Status != PostPublished || post.Window(sched, now) != WindowOpen {
		return BookingClosed
	}
	if sched.SeatingMode == SeatingSeated {
		if availableSeats > 0 {
			return BookingOpen
		}
		return BookingSoldOut
	}
	for _, o := range options {
		if o.Remaining() > 0 {
			return BookingOpen
		}
	}
	return BookingSoldOut
}

// NormalizeSeatCodes trims codes and rejects blanks and duplicates. The result
// is in seat order.
func NormalizeSeatCodes(codes []string) ([]string, error) {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			return nil, Validationf("seat code must not be blank")
		}
		if _, dup := seen[c]; dup {
			return nil, Validationf("seat %s requested twice", c)
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	SortSeatCodes(out)
	return out, nil
}

// SortSeatCodes orders codes by row prefix, then numerically by seat number,
// so A2 sorts before A10.
func SortSeatCodes(codes []string) {
	sort.Slice(codes, func(i, j int) bool { return LessSeatCode(codes[i], codes[j]) })
}

func LessSeatCode(a, b string) bool {
	ar, an := splitSeatCode(a)
	br, bn := splitSeatCode(b)
	if ar != br {
		return ar < br
	}
	if an != bn {
		return an < bn
	}
	return a < b
}

func splitSeatCode(code string) (string, int) {
	i := len(code)
	for i > 0 && code[i-1] >= '0' && code[i-1] <= '9' {
		i--
	}
	n, err := strconv.Atoi(code[i:])
	if err != nil {
		return code, -1
	}
	return code[:i], n
}
