package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "ROLE_USER"
	RoleAdmin Role = "ROLE_ADMIN"
)

// Principal is the caller identity resolved at the boundary.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

func (p Principal) IsOrganizer() bool {
	return p.Role == RoleAdmin
}

type PostStatus string

const (
	PostPublished   PostStatus = "PUBLISHED"
	PostUnpublished PostStatus = "UNPUBLISHED"
)

type SeatingMode string

const (
	SeatingSeated  SeatingMode = "SEATED"
	SeatingGeneral SeatingMode = "GENERAL"
)

type SeatStatus string

const (
	SeatAvailable   SeatStatus = "AVAILABLE"
	SeatReserved    SeatStatus = "RESERVED"
	SeatUnavailable SeatStatus = "UNAVAILABLE"
)

type PerformancePost struct {
	ID                 uuid.UUID
	OrganizerID        uuid.UUID
	Title              string
	Location           string
	Description        string
	ProfileImageURL    string
	DetailImageURLs    []string
	Status             PostStatus
	ReservationStartAt *time.Time
	ReservationEndAt   *time.Time
	MaxTicketsPerUser  int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (p PerformancePost) OwnedBy(userID uuid.UUID) bool {
	return p.OrganizerID == userID
}

type PerformanceSchedule struct {
	ID          uuid.UUID
	PostID      uuid.UUID
	StartTime   time.Time
	SeatingMode SeatingMode
}

type ScheduleSeat struct {
	ScheduleID uuid.UUID
	SeatCode   string
	Status     SeatStatus
}

type TicketOption struct {
	ID       uuid.UUID
	PostID   uuid.UUID
	Name     string
	Price    int64
	Capacity int
	Sold     int
}

func (o TicketOption) Remaining() int {
	if o.Sold >= o.Capacity {
		return 0
	}
	return o.Capacity - o.Sold
}

type Reservation struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	PostID         uuid.UUID
	ScheduleID     uuid.UUID
	TicketOptionID uuid.UUID
	SeatCodes      []string
	Quantity       int
	Status         ReservationStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Seated reports whether the reservation holds seats rather than capacity units.
func (r Reservation) Seated() bool {
	return len(r.SeatCodes) > 0
}

type RefundStatus string

const (
	RefundRequested RefundStatus = "REQUESTED"
	RefundApproved  RefundStatus = "APPROVED"
	RefundRejected  RefundStatus = "REJECTED"
)

type Refund struct {
	ReservationID uuid.UUID
	Status        RefundStatus
	RequestedAt   time.Time
	DecidedAt     *time.Time
}

// OutboxEvent is written in the same transaction as the state change it describes.
type OutboxEvent struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
	DedupeKey     string
}

type SeatRef struct {
	ScheduleID uuid.UUID
	SeatCode   string
}

// DriftReport lists rows that break the inventory invariants.
type DriftReport struct {
	OrphanedSeats   []SeatRef
	UnheldSeats     []SeatRef
	DoubleBooked    []SeatRef
	OversoldOptions []uuid.UUID
}

func (d DriftReport) Clean() bool {
	return len(d.OrphanedSeats) == 0 && len(d.UnheldSeats) == 0 &&
		len(d.DoubleBooked) == 0 && len(d.OversoldOptions) == 0
}
