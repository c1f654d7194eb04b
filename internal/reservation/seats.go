// Package reservation implements seat and capacity allocation, the reservation
// lifecycle, refunds, and booking availability on top of a domain.Store.
package reservation

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/show-reservations/internal/domain"
	"github.com/robertarktes/show-reservations/internal/observability"
)

// SeatCache is a read-through cache of schedule seat maps. Every invalidation
// bumps a per-schedule version; on a miss GetSeats reports the current version
// and SetSeats drops the write when the version has moved since.
type SeatCache interface {
	GetSeats(ctx context.Context, scheduleID uuid.UUID) (seats []domain.ScheduleSeat, version int64, hit bool, err error)
	SetSeats(ctx context.Context, scheduleID uuid.UUID, version int64, seats []domain.ScheduleSeat) error
	InvalidateSeats(ctx context.Context, scheduleID uuid.UUID) error
}

type noCache struct{}

func (noCache) GetSeats(context.Context, uuid.UUID) ([]domain.ScheduleSeat, int64, bool, error) {
	return nil, 0, false, nil
}
func (noCache) SetSeats(context.Context, uuid.UUID, int64, []domain.ScheduleSeat) error { return nil }
func (noCache) InvalidateSeats(context.Context, uuid.UUID) error                        { return nil }

// SeatAllocator owns seat status transitions for seated schedules.
type SeatAllocator struct {
	store  domain.Store
	cache  SeatCache
	logger observability.Logger
}

// NewSeatAllocator builds an allocator. cache may be nil.
func NewSeatAllocator(store domain.Store, cache SeatCache, logger observability.Logger) *SeatAllocator {
	if cache == nil {
		cache = noCache{}
	}
	return &SeatAllocator{store: store, cache: cache, logger: logger}
}

// ListSeats returns the schedule's seats in seat order. The version is read
// before the store so a claim committed in between keeps the stale map out of
// the cache.
func (a *SeatAllocator) ListSeats(ctx context.Context, scheduleID uuid.UUID) ([]domain.ScheduleSeat, error) {
	cached, version, hit, cacheErr := a.cache.GetSeats(ctx, scheduleID)
	if cacheErr != nil {
		a.logger.WithError(cacheErr).Warn("seat cache read failed")
	} else if hit {
		return cached, nil
	}

	var seats []domain.ScheduleSeat
	err := a.store.WithTx(ctx, func(tx domain.Tx) error {
		if _, err := tx.GetSchedule(ctx, scheduleID); err != nil {
			return err
		}
		var err error
		seats, err = tx.ListSeats(ctx, scheduleID)
		return err
	})
	if err != nil {
		return nil, err
	}
	sortSeats(seats)
	if cacheErr == nil {
		if err := a.cache.SetSeats(ctx, scheduleID, version, seats); err != nil {
			a.logger.WithError(err).Warn("seat cache write failed")
		}
	}
	return seats, nil
}

// ClaimSeats claims codes in its own unit of work.
func (a *SeatAllocator) ClaimSeats(ctx context.Context, scheduleID uuid.UUID, codes []string) error {
	err := a.store.WithTx(ctx, func(tx domain.Tx) error {
		return a.Claim(ctx, tx, scheduleID, codes)
	})
	if err == nil {
		a.Invalidate(ctx, scheduleID)
	}
	return err
}

// ReleaseSeats releases codes in its own unit of work.
func (a *SeatAllocator) ReleaseSeats(ctx context.Context, scheduleID uuid.UUID, codes []string) error {
	err := a.store.WithTx(ctx, func(tx domain.Tx) error {
		return a.Release(ctx, tx, scheduleID, codes)
	})
	if err == nil {
		a.Invalidate(ctx, scheduleID)
	}
	return err
}

// Claim moves every seat in codes from AVAILABLE to RESERVED inside tx, or
// none of them. Unknown and non-available seats fail with ErrCapacityExceeded.
func (a *SeatAllocator) Claim(ctx context.Context, tx domain.Tx, scheduleID uuid.UUID, codes []string) error {
	codes, err := domain.NormalizeSeatCodes(codes)
	if err != nil {
		return err
	}
	if len(codes) == 0 {
		return domain.Validationf("no seats requested")
	}

	locked, err := tx.LockSeats(ctx, scheduleID, codes)
	if err != nil {
		return errors.Wrapf(err, "lock seats on schedule %s", scheduleID)
	}
	status := make(map[string]domain.SeatStatus, len(locked))
	for _, s := range locked {
		status[s.SeatCode] = s.Status
	}
	for _, c := range codes {
		st, ok := status[c]
		if !ok {
			observability.InventoryConflicts.WithLabelValues("seat").Inc()
			return domain.CapacityExceededf("seat %s does not exist on this schedule", c)
		}
		if st != domain.SeatAvailable {
			observability.InventoryConflicts.WithLabelValues("seat").Inc()
			return domain.CapacityExceededf("seat %s is %s", c, st)
		}
	}

	n, err := tx.UpdateSeatStatus(ctx, scheduleID, codes, domain.SeatAvailable, domain.SeatReserved)
	if err != nil {
		return errors.Wrapf(err, "reserve seats on schedule %s", scheduleID)
	}
	if n != int64(len(codes)) {
		observability.InventoryConflicts.WithLabelValues("seat").Inc()
		return domain.CapacityExceededf("only %d of %d seats could be reserved", n, len(codes))
	}
	return nil
}

// Release moves RESERVED seats back to AVAILABLE. Seats in any other state are
// left alone, so releasing twice is harmless.
func (a *SeatAllocator) Release(ctx context.Context, tx domain.Tx, scheduleID uuid.UUID, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	if _, err := tx.UpdateSeatStatus(ctx, scheduleID, codes, domain.SeatReserved, domain.SeatAvailable); err != nil {
		return errors.Wrapf(err, "release seats on schedule %s", scheduleID)
	}
	return nil
}

// Invalidate drops the cached seat map. Call it after the unit of work commits.
func (a *SeatAllocator) Invalidate(ctx context.Context, scheduleID uuid.UUID) {
	if err := a.cache.InvalidateSeats(ctx, scheduleID); err != nil {
		a.logger.WithError(err).WithField("schedule_id", scheduleID).Warn("seat cache invalidation failed")
	}
}

func sortSeats(seats []domain.ScheduleSeat) {
	codes := make([]string, len(seats))
	byCode := make(map[string]domain.ScheduleSeat, len(seats))
	for i, s := range seats {
		codes[i] = s.SeatCode
		byCode[s.SeatCode] = s
	}
	domain.SortSeatCodes(codes)
	for i, c := range codes {
		seats[i] = byCode[c]
	}
}
