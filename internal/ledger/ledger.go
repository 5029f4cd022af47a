// Package ledger is the single write path for customer store-credit
// balances. Atomicity of the check-and-update lives in the repository;
// this layer validates amounts and keeps everyone else off the balance.
package ledger

import (
	"context"
	"fmt"

	"lokapos/backend/internal/money"
	"lokapos/backend/internal/store"
)

type Ledger struct {
	repo store.Repository
}

func New(repo store.Repository) *Ledger {
	return &Ledger{repo: repo}
}

// Available returns the customer's current credit balance.
func (l *Ledger) Available(ctx context.Context, customerID string) (money.Money, error) {
	customer, err := l.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		return money.Zero(), err
	}
	return customer.CreditBalance, nil
}

// Debit lowers the balance by amount, failing with a credit shortage if
// the balance cannot cover it. Returns the new balance.
func (l *Ledger) Debit(ctx context.Context, customerID string, amount money.Money) (money.Money, error) {
	if amount.IsNegative() {
		return money.Zero(), fmt.Errorf("%w: debit amount must not be negative", store.ErrInvalidSettlement)
	}
	if amount.IsZero() {
		return l.Available(ctx, customerID)
	}
	return l.repo.DebitCustomerCredit(ctx, customerID, amount)
}

// Credit raises the balance by amount. Returns the new balance.
func (l *Ledger) Credit(ctx context.Context, customerID string, amount money.Money) (money.Money, error) {
	if amount.IsNegative() {
		return money.Zero(), fmt.Errorf("%w: credit amount must not be negative", store.ErrInvalidSettlement)
	}
	if amount.IsZero() {
		return l.Available(ctx, customerID)
	}
	return l.repo.CreditCustomerCredit(ctx, customerID, amount)
}
