package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/robertarktes/show-reservations/internal/catalog"
	"github.com/robertarktes/show-reservations/internal/domain"
	"github.com/robertarktes/show-reservations/internal/reservation"
)

var validate = validator.New()

// decode reads a JSON body into dst and runs its validate tags.
func decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.Validationf("malformed request body: %v", err)
	}
	if err := validate.Struct(dst); err != nil {
		return domain.Validationf("%v", err)
	}
	return nil
}

type scheduleRequest struct {
	StartTime   time.Time `json:"start_time"`
	SeatingMode string    `json:"seating_mode" validate:"required,oneof=SEATED GENERAL"`
	SeatCodes   []string  `json:"seat_codes" validate:"dive,required"`
}

type ticketOptionRequest struct {
	Name     string `json:"name" validate:"required"`
	Price    int64  `json:"price" validate:"gte=0"`
	Capacity int    `json:"capacity" validate:"gte=0"`
}

type createPostRequest struct {
	Title              string                `json:"title" validate:"required"`
	Location           string                `json:"location"`
	Description        string                `json:"description"`
	ProfileImageURL    string                `json:"profile_image_url" validate:"required"`
	DetailImageURLs    []string              `json:"detail_image_urls" validate:"dive,required"`
	Status             string                `json:"status" validate:"omitempty,oneof=PUBLISHED UNPUBLISHED"`
	ReservationStartAt *time.Time            `json:"reservation_start_at"`
	ReservationEndAt   *time.Time            `json:"reservation_end_at"`
	MaxTicketsPerUser  int                   `json:"max_tickets_per_user" validate:"gte=0"`
	Schedules          []scheduleRequest     `json:"schedules" validate:"dive"`
	TicketOptions      []ticketOptionRequest `json:"ticket_options" validate:"dive"`
}

func (req createPostRequest) input() domain.PostInput {
	in := domain.PostInput{
		Title:              req.Title,
		Location:           req.Location,
		Description:        req.Description,
		ProfileImageURL:    req.ProfileImageURL,
		DetailImageURLs:    req.DetailImageURLs,
		Status:             domain.PostStatus(req.Status),
		ReservationStartAt: req.ReservationStartAt,
		ReservationEndAt:   req.ReservationEndAt,
		MaxTicketsPerUser:  req.MaxTicketsPerUser,
	}
	for _, s := range req.Schedules {
		in.Schedules = append(in.Schedules, domain.ScheduleInput{StartTime: s.StartTime, SeatingMode: domain.SeatingMode(s.SeatingMode), SeatCodes: s.SeatCodes})
	}
	for _, o := range req.TicketOptions {
		in.TicketOptions = append(in.TicketOptions, domain.TicketOptionInput{Name: o.Name, Price: o.Price, Capacity: o.Capacity})
	}
	return in
}

type updatePostRequest struct {
	Title              string     `json:"title" validate:"required"`
	Location           string     `json:"location"`
	Description        string     `json:"description"`
	Status             string     `json:"status" validate:"omitempty,oneof=PUBLISHED UNPUBLISHED"`
	ReservationStartAt *time.Time `json:"reservation_start_at"`
	ReservationEndAt   *time.Time `json:"reservation_end_at"`
	MaxTicketsPerUser  int        `json:"max_tickets_per_user" validate:"gte=0"`
	NewDetailImageURLs []string   `json:"new_detail_image_urls" validate:"dive,required"`
}

func (req updatePostRequest) update() domain.PostUpdate {
	return domain.PostUpdate{
		Title:              req.Title,
		Location:           req.Location,
		Description:        req.Description,
		Status:             domain.PostStatus(req.Status),
		ReservationStartAt: req.ReservationStartAt,
		ReservationEndAt:   req.ReservationEndAt,
		MaxTicketsPerUser:  req.MaxTicketsPerUser,
		NewDetailImageURLs: req.NewDetailImageURLs,
	}
}

type createReservationRequest struct {
	ScheduleID     uuid.UUID `json:"schedule_id"`
	TicketOptionID uuid.UUID `json:"ticket_option_id"`
	SeatCodes      []string  `json:"seat_codes" validate:"dive,required"`
	Quantity       int       `json:"quantity" validate:"gte=0"`
}

type decideStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=APPROVED REJECTED"`
}

type decideRefundRequest struct {
	Approve *bool `json:"approve" validate:"required"`
}

type postResponse struct {
	ID                 uuid.UUID              `json:"id"`
	OrganizerID        uuid.UUID              `json:"organizer_id"`
	Title              string                 `json:"title"`
	Location           string                 `json:"location"`
	Description        string                 `json:"description"`
	ProfileImageURL    string                 `json:"profile_image_url"`
	DetailImageURLs    []string               `json:"detail_image_urls"`
	Status             domain.PostStatus      `json:"status"`
	ReservationStartAt *time.Time             `json:"reservation_start_at,omitempty"`
	ReservationEndAt   *time.Time             `json:"reservation_end_at,omitempty"`
	MaxTicketsPerUser  int                    `json:"max_tickets_per_user"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
	Schedules          []scheduleResponse     `json:"schedules,omitempty"`
	TicketOptions      []ticketOptionResponse `json:"ticket_options,omitempty"`
}

func postDetailJSON(d catalog.PostDetail) postResponse {
	p := d.PerformancePost
	out := postResponse{
		ID:                 p.ID,
		OrganizerID:        p.OrganizerID,
		Title:              p.Title,
		Location:           p.Location,
		Description:        p.Description,
		ProfileImageURL:    p.ProfileImageURL,
		DetailImageURLs:    nonNil(p.DetailImageURLs),
		Status:             p.Status,
		ReservationStartAt: p.ReservationStartAt,
		ReservationEndAt:   p.ReservationEndAt,
		MaxTicketsPerUser:  p.MaxTicketsPerUser,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
	for _, s := range d.Schedules {
		out.Schedules = append(out.Schedules, scheduleResponse{ID: s.ID, PostID: s.PostID, StartTime: s.StartTime, SeatingMode: s.SeatingMode})
	}
	for _, o := range d.TicketOptions {
		out.TicketOptions = append(out.TicketOptions, ticketOptionJSON(o))
	}
	return out
}

type postSummaryResponse struct {
	ID              uuid.UUID         `json:"id"`
	Title           string            `json:"title"`
	Location        string            `json:"location"`
	ProfileImageURL string            `json:"profile_image_url"`
	Status          domain.PostStatus `json:"status"`
	ScheduleCount   int               `json:"schedule_count"`
	FirstStart      *time.Time        `json:"first_start,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

type scheduleResponse struct {
	ID             uuid.UUID            `json:"id"`
	PostID         uuid.UUID            `json:"post_id"`
	StartTime      time.Time            `json:"start_time"`
	SeatingMode    domain.SeatingMode   `json:"seating_mode"`
	BookingStatus  domain.BookingStatus `json:"booking_status,omitempty"`
	AvailableSeats *int                 `json:"available_seats,omitempty"`
}

func scheduleViewJSON(v catalog.ScheduleView) scheduleResponse {
	out := scheduleResponse{ID: v.ID, PostID: v.PostID, StartTime: v.StartTime, SeatingMode: v.SeatingMode, BookingStatus: v.BookingStatus}
	if v.SeatingMode == domain.SeatingSeated {
		n := v.AvailableSeats
		out.AvailableSeats = &n
	}
	return out
}

type ticketOptionResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Capacity  int       `json:"capacity"`
	Sold      int       `json:"sold"`
	Remaining int       `json:"remaining"`
}

func ticketOptionJSON(o domain.TicketOption) ticketOptionResponse {
	return ticketOptionResponse{ID: o.ID, Name: o.Name, Price: o.Price, Capacity: o.Capacity, Sold: o.Sold, Remaining: o.Remaining()}
}

type seatResponse struct {
	SeatCode string            `json:"seat_code"`
	Status   domain.SeatStatus `json:"status"`
}

type availabilityResponse struct {
	CanBook bool               `json:"can_book"`
	Reason  reservation.Reason `json:"reason,omitempty"`
}

type refundResponse struct {
	Status      domain.RefundStatus `json:"status"`
	RequestedAt time.Time           `json:"requested_at"`
	DecidedAt   *time.Time          `json:"decided_at,omitempty"`
}

func refundJSON(r *domain.Refund) *refundResponse {
	if r == nil {
		return nil
	}
	return &refundResponse{Status: r.Status, RequestedAt: r.RequestedAt, DecidedAt: r.DecidedAt}
}

type reservationResponse struct {
	ID             uuid.UUID                `json:"id"`
	UserID         uuid.UUID                `json:"user_id"`
	PostID         uuid.UUID                `json:"post_id"`
	ScheduleID     uuid.UUID                `json:"schedule_id"`
	TicketOptionID uuid.UUID                `json:"ticket_option_id"`
	SeatCodes      []string                 `json:"seat_codes"`
	Quantity       int                      `json:"quantity"`
	Status         domain.ReservationStatus `json:"status"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

func reservationJSON(r domain.Reservation) reservationResponse {
	return reservationResponse{
		ID:             r.ID,
		UserID:         r.UserID,
		PostID:         r.PostID,
		ScheduleID:     r.ScheduleID,
		TicketOptionID: r.TicketOptionID,
		SeatCodes:      nonNil(r.SeatCodes),
		Quantity:       r.Quantity,
		Status:         r.Status,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func reservationsJSON(list []domain.Reservation) []reservationResponse {
	out := make([]reservationResponse, 0, len(list))
	for _, r := range list {
		out = append(out, reservationJSON(r))
	}
	return out
}

type viewResponse struct {
	reservationResponse
	Refund         *refundResponse `json:"refund,omitempty"`
	AllowedActions []domain.Action `json:"allowed_actions"`
}

func viewJSON(v reservation.ReservationView) viewResponse {
	out := viewResponse{reservationResponse: reservationJSON(v.Reservation), Refund: refundJSON(v.Refund), AllowedActions: v.AllowedActions}
	if out.AllowedActions == nil {
		out.AllowedActions = []domain.Action{}
	}
	return out
}

type summaryResponse struct {
	ReservationID uuid.UUID                `json:"reservation_id"`
	PostID        uuid.UUID                `json:"post_id"`
	PostTitle     string                   `json:"post_title"`
	ScheduleID    uuid.UUID                `json:"schedule_id"`
	ScheduleStart time.Time                `json:"schedule_start"`
	OptionName    string                   `json:"option_name"`
	SeatCodes     []string                 `json:"seat_codes"`
	Quantity      int                      `json:"quantity"`
	Status        domain.ReservationStatus `json:"status"`
	CreatedAt     time.Time                `json:"created_at"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
