package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lokapos/backend/internal/domain"
	"lokapos/backend/internal/money"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidSettlement  = errors.New("invalid settlement")
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrDrawerAlreadyOpen  = errors.New("drawer session already open")
	ErrDrawerClosed       = errors.New("drawer session closed")
	ErrDrawerNotFound     = errors.New("drawer session not found")
	ErrCompensationFailed = errors.New("compensation failed")
	ErrForbidden          = errors.New("forbidden")
)

// StockShortage carries the on-hand count so callers can report what the
// fulfilling location can actually cover.
type StockShortage struct {
	SKU        string
	LocationID string
	OnHand     int64
	Requested  int64
}

func (e *StockShortage) Error() string {
	return fmt.Sprintf("insufficient stock for %s at %s: on hand %d, requested %d",
		e.SKU, e.LocationID, e.OnHand, e.Requested)
}

func (e *StockShortage) Unwrap() error { return ErrInsufficientStock }

// CreditShortage carries the available balance at the moment the debit
// was rejected.
type CreditShortage struct {
	CustomerID string
	Available  money.Money
	Requested  money.Money
}

func (e *CreditShortage) Error() string {
	return fmt.Sprintf("insufficient credit for customer %s: available %s, requested %s",
		e.CustomerID, e.Available, e.Requested)
}

func (e *CreditShortage) Unwrap() error { return ErrInsufficientCredit }

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductsBySKUs(ctx context.Context, skus []string) (map[string]domain.Product, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomerByID(ctx context.Context, customerID string) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	// DebitCustomerCredit atomically checks and lowers the balance,
	// returning the new balance. A shortage is reported as
	// *CreditShortage without touching the row.
	DebitCustomerCredit(ctx context.Context, customerID string, amount money.Money) (money.Money, error)
	CreditCustomerCredit(ctx context.Context, customerID string, amount money.Money) (money.Money, error)

	GetStockEntry(ctx context.Context, sku string, locationID string) (*domain.StockEntry, error)
	SetStock(ctx context.Context, entry domain.StockEntry) error
	// DecrementStock atomically checks and subtracts qty for the
	// (sku, locationID) pair; a shortage is reported as *StockShortage
	// and leaves the entry unchanged.
	DecrementStock(ctx context.Context, sku string, locationID string, qty int64) error
	IncrementStock(ctx context.Context, sku string, locationID string, qty int64) error
	ListLowStock(ctx context.Context, locationID string) ([]domain.StockEntry, error)

	// CreateSale persists the sale and folds its tender contributions
	// into the referenced drawer session as one atomic unit. When the
	// sale's idempotency key already names a stored sale, the stored
	// sale is returned with replayed=true and nothing is written; the
	// caller owns undoing any side effects it applied for the losing
	// request.
	CreateSale(ctx context.Context, sale domain.Sale) (created *domain.Sale, replayed bool, err error)
	FindSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	FindSaleByIdempotency(ctx context.Context, key string) (*domain.Sale, error)

	OpenDrawerSession(ctx context.Context, session domain.DrawerSession) (*domain.DrawerSession, error)
	GetDrawerSession(ctx context.Context, sessionID string) (*domain.DrawerSession, error)
	GetActiveDrawerSession(ctx context.Context, cashierUsername string) (*domain.DrawerSession, error)
	CloseDrawerSession(ctx context.Context, sessionID string, countedCash money.Money, notes string, closedAt time.Time) (*domain.DrawerSession, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, locationID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
