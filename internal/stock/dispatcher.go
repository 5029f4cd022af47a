// Package stock owns inventory quantity movements. All decrements and
// increments route through the dispatcher so the non-negativity check
// and the cross-location fulfillment routing live in one place.
package stock

import (
	"context"
	"fmt"

	"lokapos/backend/internal/domain"
	"lokapos/backend/internal/store"
)

type Dispatcher struct {
	repo store.Repository
}

func New(repo store.Repository) *Dispatcher {
	return &Dispatcher{repo: repo}
}

// Decrement subtracts qty at the given location. The repository rejects
// the call with a stock shortage if qty exceeds the on-hand count.
func (d *Dispatcher) Decrement(ctx context.Context, sku string, locationID string, qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: decrement quantity must be positive", store.ErrInvalidSettlement)
	}
	return d.repo.DecrementStock(ctx, sku, locationID, qty)
}

// Increment adds qty back, used for replenishment and for compensating
// a partially applied sale.
func (d *Dispatcher) Increment(ctx context.Context, sku string, locationID string, qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: increment quantity must be positive", store.ErrInvalidSettlement)
	}
	return d.repo.IncrementStock(ctx, sku, locationID, qty)
}

// DecrementLines debits every line at locationID. On a failed line it
// restores the lines already debited before returning the failure. A
// restore that itself fails is escalated as a compensation failure so
// an operator can correct the understated stock.
func (d *Dispatcher) DecrementLines(ctx context.Context, locationID string, lines []domain.SaleLine) error {
	for i, line := range lines {
		if err := d.Decrement(ctx, line.SKU, locationID, line.Qty); err != nil {
			for j := i - 1; j >= 0; j-- {
				if restoreErr := d.Increment(ctx, lines[j].SKU, locationID, lines[j].Qty); restoreErr != nil {
					return fmt.Errorf("%w: restoring %d x %s at %s after failed decrement: %v (original: %w)",
						store.ErrCompensationFailed, lines[j].Qty, lines[j].SKU, locationID, restoreErr, err)
				}
			}
			return err
		}
	}
	return nil
}

// IncrementLines credits every line back at locationID.
func (d *Dispatcher) IncrementLines(ctx context.Context, locationID string, lines []domain.SaleLine) error {
	for _, line := range lines {
		if err := d.Increment(ctx, line.SKU, locationID, line.Qty); err != nil {
			return err
		}
	}
	return nil
}
