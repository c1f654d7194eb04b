package reservation

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/show-reservations/internal/domain"
	"github.com/robertarktes/show-reservations/internal/observability"
)

// CapacityTracker keeps general admission sold counters within capacity.
type CapacityTracker struct {
	store domain.Store
}

func NewCapacityTracker(store domain.Store) *CapacityTracker {
	return &CapacityTracker{store: store}
}

func (c *CapacityTracker) ReserveUnits(ctx context.Context, optionID uuid.UUID, qty int) error {
	return c.store.WithTx(ctx, func(tx domain.Tx) error {
		return c.Reserve(ctx, tx, optionID, qty)
	})
}

func (c *CapacityTracker) ReleaseUnits(ctx context.Context, optionID uuid.UUID, qty int) error {
	return c.store.WithTx(ctx, func(tx domain.Tx) error {
		return c.Release(ctx, tx, optionID, qty)
	})
}

// Reserve adds qty to the option's sold counter in one conditional update.
func (c *CapacityTracker) Reserve(ctx context.Context, tx domain.Tx, optionID uuid.UUID, qty int) error {
	if qty <= 0 {
		return domain.Validationf("quantity must be positive, got %d", qty)
	}
	ok, err := tx.IncrementSold(ctx, optionID, qty)
	if err != nil {
		return errors.Wrapf(err, "reserve %d units of option %s", qty, optionID)
	}
	if !ok {
		observability.InventoryConflicts.WithLabelValues("capacity").Inc()
		return domain.CapacityExceededf("ticket option %s has fewer than %d tickets left", optionID, qty)
	}
	return nil
}

// Release returns qty units, never taking sold below zero.
func (c *CapacityTracker) Release(ctx context.Context, tx domain.Tx, optionID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if err := tx.DecrementSold(ctx, optionID, qty); err != nil {
		return errors.Wrapf(err, "release %d units of option %s", qty, optionID)
	}
	return nil
}
