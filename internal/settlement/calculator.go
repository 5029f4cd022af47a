// Package settlement turns a cart total, credit intent, and tendered
// amounts into a validated payment plan. It is pure: no storage, no
// clock, no side effects, so every branch is unit testable.
package settlement

import (
	"fmt"

	"lokapos/backend/internal/domain"
	"lokapos/backend/internal/money"
	"lokapos/backend/internal/store"
)

// ErrOverpaymentWithFullCredit rejects cash or mixed tenders on a sale
// already covered in full by store credit.
var ErrOverpaymentWithFullCredit = fmt.Errorf("%w: tender not allowed when credit covers the total", store.ErrInvalidSettlement)

// CartTotal sums resolved line subtotals.
func CartTotal(lines []domain.SaleLine) money.Money {
	total := money.Zero()
	for _, line := range lines {
		total = total.Add(line.Subtotal)
	}
	return total
}

// Calculate produces the settlement plan for a request given the gross
// cart total and a read-only snapshot of the customer's available
// credit. The authoritative credit check still happens at debit time.
func Calculate(req domain.SettlementRequest, gross money.Money, availableCredit money.Money) (domain.SettlementPlan, error) {
	var plan domain.SettlementPlan

	if gross.IsNegative() {
		return plan, fmt.Errorf("%w: negative cart total", store.ErrInvalidSettlement)
	}
	if req.CashTendered.IsNegative() || req.OtherTendered.IsNegative() {
		return plan, fmt.Errorf("%w: tendered amounts must not be negative", store.ErrInvalidSettlement)
	}

	creditApplied, err := creditToApply(req, gross, availableCredit)
	if err != nil {
		return plan, err
	}
	netDue := gross.Sub(creditApplied)

	plan = domain.SettlementPlan{
		GrossTotal:    gross,
		CreditApplied: creditApplied,
		NetDue:        netDue,
		TenderedCash:  req.CashTendered,
		TenderedOther: req.OtherTendered,
		ChangeDue:     money.Zero(),
		CreditTopUp:   money.Zero(),
		Overpayment:   money.Zero(),
	}

	switch {
	case req.Method == domain.MethodCredit:
		if !req.CashTendered.IsZero() || !req.OtherTendered.IsZero() {
			return plan, ErrOverpaymentWithFullCredit
		}
		if netDue.IsPositive() {
			return plan, &store.CreditShortage{
				CustomerID: req.CustomerID,
				Available:  availableCredit,
				Requested:  gross,
			}
		}

	case req.Method == domain.MethodCash:
		if !req.OtherTendered.IsZero() {
			return plan, fmt.Errorf("%w: cash settlement must not carry a second tender", store.ErrInvalidSettlement)
		}
		if netDue.IsZero() {
			if !req.CashTendered.IsZero() {
				return plan, ErrOverpaymentWithFullCredit
			}
			break
		}
		if !req.CashTendered.Covers(netDue) {
			return plan, fmt.Errorf("%w: cash tendered %s does not cover %s", store.ErrInvalidSettlement, req.CashTendered, netDue)
		}
		if change := req.CashTendered.Sub(netDue); change.IsPositive() {
			plan.ChangeDue = change
		}

	case domain.NonCashMethods[req.Method]:
		if !req.CashTendered.IsZero() {
			return plan, fmt.Errorf("%w: %s settlement must not carry cash", store.ErrInvalidSettlement, req.Method)
		}
		if req.OtherReference == "" {
			return plan, fmt.Errorf("%w: %s settlement requires a payment reference", store.ErrInvalidSettlement, req.Method)
		}
		if !req.OtherTendered.Covers(netDue) {
			return plan, fmt.Errorf("%w: %s tendered %s does not cover %s", store.ErrInvalidSettlement, req.Method, req.OtherTendered, netDue)
		}
		// Excess on a non-cash rail is captured, never returned as
		// change: the money has already moved on the external rail.
		if over := req.OtherTendered.Sub(netDue); over.IsPositive() {
			plan.Overpayment = over
		}

	case req.Method == domain.MethodMixed:
		if !domain.NonCashMethods[req.OtherMethod] {
			return plan, fmt.Errorf("%w: mixed settlement requires a non-cash other_method", store.ErrInvalidSettlement)
		}
		if req.CashTendered.IsZero() || req.OtherTendered.IsZero() {
			return plan, fmt.Errorf("%w: mixed settlement requires both cash and %s amounts", store.ErrInvalidSettlement, req.OtherMethod)
		}
		if netDue.IsZero() {
			return plan, ErrOverpaymentWithFullCredit
		}
		combined := req.CashTendered.Add(req.OtherTendered)
		if !combined.Covers(netDue) {
			return plan, fmt.Errorf("%w: tendered %s does not cover %s", store.ErrInvalidSettlement, combined, netDue)
		}
		otherApplied := money.Min(req.OtherTendered, netDue)
		cashDue := netDue.Sub(otherApplied)
		if change := req.CashTendered.Sub(cashDue); change.IsPositive() {
			plan.ChangeDue = change
		}
		if over := req.OtherTendered.Sub(otherApplied); over.IsPositive() {
			plan.Overpayment = over
		}

	default:
		return plan, fmt.Errorf("%w: unknown payment method %q", store.ErrInvalidSettlement, req.Method)
	}

	if req.TopUpChange && plan.ChangeDue.IsPositive() {
		if req.CustomerID == "" {
			return plan, fmt.Errorf("%w: change top-up requires a customer", store.ErrInvalidSettlement)
		}
		plan.CreditTopUp = plan.ChangeDue
		plan.ChangeDue = money.Zero()
	}

	return plan, nil
}

func creditToApply(req domain.SettlementRequest, gross, available money.Money) (money.Money, error) {
	if !req.UseCredit && req.Method != domain.MethodCredit {
		return money.Zero(), nil
	}
	if req.CustomerID == "" {
		return money.Zero(), fmt.Errorf("%w: credit requires a customer", store.ErrInvalidSettlement)
	}
	if req.CreditRequested == nil {
		return money.Min(available, gross), nil
	}
	requested := *req.CreditRequested
	if requested.IsNegative() {
		return money.Zero(), fmt.Errorf("%w: requested credit must not be negative", store.ErrInvalidSettlement)
	}
	if requested.Cmp(available) > 0 {
		return money.Zero(), &store.CreditShortage{
			CustomerID: req.CustomerID,
			Available:  available,
			Requested:  requested,
		}
	}
	return money.Min(requested, gross), nil
}
