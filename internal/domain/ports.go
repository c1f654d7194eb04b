package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store runs units of work. fn's changes commit together or not at all.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the view of the store inside one unit of work.
type Tx interface {
	CatalogRepository
	SeatRepository
	CapacityRepository
	ReservationRepository
	InsertOutbox(ctx context.Context, event OutboxEvent) error
}

type CatalogRepository interface {
	// GetPost returns ErrNotFound for missing and soft-deleted posts.
	GetPost(ctx context.Context, id uuid.UUID) (PerformancePost, error)
	// GetPostOwner ignores soft deletion so reservations stay manageable.
	GetPostOwner(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	ListPostsByOrganizer(ctx context.Context, organizerID uuid.UUID) ([]PerformancePost, error)
	InsertPost(ctx context.Context, post PerformancePost) error
	UpdatePost(ctx context.Context, post PerformancePost) error
	DeletePost(ctx context.Context, id uuid.UUID, at time.Time) error

	GetSchedule(ctx context.Context, id uuid.UUID) (PerformanceSchedule, error)
	ListSchedules(ctx context.Context, postID uuid.UUID) ([]PerformanceSchedule, error)
	InsertSchedule(ctx context.Context, sched PerformanceSchedule) error

	GetTicketOption(ctx context.Context, id uuid.UUID) (TicketOption, error)
	ListTicketOptions(ctx context.Context, postID uuid.UUID) ([]TicketOption, error)
	InsertTicketOption(ctx context.Context, opt TicketOption) error
}

type SeatRepository interface {
	InsertSeats(ctx context.Context, seats []ScheduleSeat) error
	ListSeats(ctx context.Context, scheduleID uuid.UUID) ([]ScheduleSeat, error)
	// LockSeats returns the existing rows among codes, locked until the unit of work ends.
	LockSeats(ctx context.Context, scheduleID uuid.UUID, codes []string) ([]ScheduleSeat, error)
	// UpdateSeatStatus moves the listed seats currently in from to to and
	// returns how many rows changed.
	UpdateSeatStatus(ctx context.Context, scheduleID uuid.UUID, codes []string, from, to SeatStatus) (int64, error)
	CountSeats(ctx context.Context, scheduleID uuid.UUID, status SeatStatus) (int, error)
}

type CapacityRepository interface {
	// IncrementSold adds qty only if sold stays within capacity and reports
	// whether it did.
	IncrementSold(ctx context.Context, optionID uuid.UUID, qty int) (bool, error)
	// DecrementSold subtracts qty, flooring at zero.
	DecrementSold(ctx context.Context, optionID uuid.UUID, qty int) error
}

type ReservationRepository interface {
	InsertReservation(ctx context.Context, r Reservation) error
	GetReservation(ctx context.Context, id uuid.UUID) (Reservation, error)
	// LockReservation is GetReservation holding the row until the unit of work ends.
	LockReservation(ctx context.Context, id uuid.UUID) (Reservation, error)
	UpdateReservationStatus(ctx context.Context, id uuid.UUID, status ReservationStatus, at time.Time) error
	ListReservationsByUser(ctx context.Context, userID uuid.UUID) ([]Reservation, error)
	ListReservationsByPost(ctx context.Context, postID uuid.UUID) ([]Reservation, error)
	// ListReservationsByOrganizer returns reservations on the organizer's posts,
	// restricted to statuses when any are given.
	ListReservationsByOrganizer(ctx context.Context, organizerID uuid.UUID, statuses ...ReservationStatus) ([]Reservation, error)
	// CountActiveTickets sums quantities of the user's active reservations on a post.
	CountActiveTickets(ctx context.Context, userID, postID uuid.UUID) (int, error)

	UpsertRefund(ctx context.Context, refund Refund) error
	GetRefund(ctx context.Context, reservationID uuid.UUID) (Refund, error)
}

// DriftReader inspects the store for inventory invariant violations.
type DriftReader interface {
	InventoryDrift(ctx context.Context) (DriftReport, error)
}

// OutboxSource hands unpublished outbox events to fn and marks the ones fn
// accepted as published.
type OutboxSource interface {
	RelayOutbox(ctx context.Context, limit int, fn func(OutboxEvent) error) (int, error)
}
