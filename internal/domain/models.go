package domain

import (
	"time"

	"lokapos/backend/internal/money"
)

type Product struct {
	SKU       string      `json:"sku"`
	Name      string      `json:"name"`
	Category  string      `json:"category"`
	UnitPrice money.Money `json:"unit_price"`
	Active    bool        `json:"active"`
}

type ProductCreateRequest struct {
	SKU        string      `json:"sku"`
	Name       string      `json:"name"`
	Category   string      `json:"category"`
	UnitPrice  money.Money `json:"unit_price"`
	LocationID string      `json:"location_id"`
	InitStock  int64       `json:"initial_stock"`
}

type ProductUpdateRequest struct {
	Name      *string      `json:"name,omitempty"`
	Category  *string      `json:"category,omitempty"`
	UnitPrice *money.Money `json:"unit_price,omitempty"`
	Active    *bool        `json:"active,omitempty"`
}

type Customer struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	CreditBalance money.Money `json:"credit_balance"`
	CreatedAt     time.Time   `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name          string       `json:"name"`
	OpeningCredit *money.Money `json:"opening_credit,omitempty"`
}

type CreditAdjustRequest struct {
	Amount money.Money `json:"amount"`
	Reason string      `json:"reason"`
}

type CreditAdjustResponse struct {
	CustomerID string      `json:"customer_id"`
	NewBalance money.Money `json:"new_balance"`
}

type StockEntry struct {
	SKU              string `json:"sku"`
	LocationID       string `json:"location_id"`
	QtyOnHand        int64  `json:"qty_on_hand"`
	ReorderThreshold int64  `json:"reorder_threshold"`
}

type StockSetRequest struct {
	SKU              string `json:"sku"`
	LocationID       string `json:"location_id"`
	Qty              int64  `json:"qty"`
	ReorderThreshold int64  `json:"reorder_threshold"`
}

type CartItem struct {
	SKU string `json:"sku"`
	Qty int64  `json:"qty"`
}

// SettlementRequest is the full payload a terminal submits when a sale is
// tendered. FulfillingLocationID is set when stock ships from another
// location than the one the sale is rung up at.
type SettlementRequest struct {
	LocationID           string       `json:"location_id"`
	FulfillingLocationID string       `json:"fulfilling_location_id,omitempty"`
	IdempotencyKey       string       `json:"idempotency_key"`
	BuyerName            string       `json:"buyer_name,omitempty"`
	CustomerID           string       `json:"customer_id,omitempty"`
	UseCredit            bool         `json:"use_credit"`
	CreditRequested      *money.Money `json:"credit_requested,omitempty"`
	Method               string       `json:"method"`
	OtherMethod          string       `json:"other_method,omitempty"`
	CashTendered         money.Money  `json:"cash_tendered"`
	OtherTendered        money.Money  `json:"other_tendered"`
	OtherReference       string       `json:"other_reference,omitempty"`
	TopUpChange          bool         `json:"top_up_change"`
	Items                []CartItem   `json:"items"`
}

// SettlementPlan is the arithmetic outcome of a settlement before any
// state is touched. All amounts are non-negative.
type SettlementPlan struct {
	GrossTotal    money.Money `json:"gross_total"`
	CreditApplied money.Money `json:"credit_applied"`
	NetDue        money.Money `json:"net_due"`
	TenderedCash  money.Money `json:"tendered_cash"`
	TenderedOther money.Money `json:"tendered_other"`
	ChangeDue     money.Money `json:"change_due"`
	CreditTopUp   money.Money `json:"credit_top_up"`
	Overpayment   money.Money `json:"overpayment"`
}

type SaleLine struct {
	SKU       string      `json:"sku"`
	Qty       int64       `json:"qty"`
	UnitPrice money.Money `json:"unit_price"`
	Subtotal  money.Money `json:"subtotal"`
}

type Sale struct {
	ID                   string      `json:"id"`
	LocationID           string      `json:"location_id"`
	FulfillingLocationID string      `json:"fulfilling_location_id"`
	DrawerSessionID      string      `json:"drawer_session_id"`
	IdempotencyKey       string      `json:"idempotency_key"`
	BuyerName            string      `json:"buyer_name,omitempty"`
	CustomerID           string      `json:"customer_id,omitempty"`
	CashierUsername      string      `json:"cashier_username"`
	Method               string      `json:"method"`
	OtherMethod          string      `json:"other_method,omitempty"`
	OtherReference       string      `json:"other_reference,omitempty"`
	GrossTotal           money.Money `json:"gross_total"`
	CreditApplied        money.Money `json:"credit_applied"`
	NetDue               money.Money `json:"net_due"`
	TenderedCash         money.Money `json:"tendered_cash"`
	TenderedOther        money.Money `json:"tendered_other"`
	ChangeDue            money.Money `json:"change_due"`
	CreditTopUp          money.Money `json:"credit_top_up"`
	Overpayment          money.Money `json:"overpayment"`
	Status               string      `json:"status"`
	CreatedAt            time.Time   `json:"created_at"`
	Items                []SaleLine  `json:"items"`
}

// DrawerContributions reports how a completed sale moves the drawer
// session totals, keyed by tender rail. Cash contributes net of change.
func (s Sale) DrawerContributions() map[string]money.Money {
	contrib := make(map[string]money.Money, 3)
	cash := s.TenderedCash.Sub(s.ChangeDue)
	if !cash.IsZero() {
		contrib[TenderCash] = cash
	}
	if !s.TenderedOther.IsZero() {
		rail := s.OtherMethod
		if rail == "" {
			rail = s.Method
		}
		contrib[rail] = s.TenderedOther
	}
	if !s.CreditApplied.IsZero() {
		contrib[TenderStoreCredit] = s.CreditApplied
	}
	return contrib
}

type SettlementResponse struct {
	Sale      Sale           `json:"sale"`
	Plan      SettlementPlan `json:"plan"`
	Duplicate bool           `json:"duplicate"`
}

type DrawerSession struct {
	ID              string                 `json:"id"`
	LocationID      string                 `json:"location_id"`
	CashierUsername string                 `json:"cashier_username"`
	OpeningFloat    money.Money            `json:"opening_float"`
	TotalsByMethod  map[string]money.Money `json:"totals_by_method"`
	SaleCount       int64                  `json:"sale_count"`
	Status          string                 `json:"status"`
	OpenedAt        time.Time              `json:"opened_at"`
	ClosedAt        *time.Time             `json:"closed_at,omitempty"`
	CountedClose    *money.Money           `json:"counted_close,omitempty"`
	ExpectedClose   *money.Money           `json:"expected_close,omitempty"`
	Variance        *money.Money           `json:"variance,omitempty"`
	Notes           string                 `json:"notes,omitempty"`
}

type DrawerOpenRequest struct {
	LocationID   string      `json:"location_id"`
	OpeningFloat money.Money `json:"opening_float"`
}

type DrawerCloseRequest struct {
	CountedCash money.Money `json:"counted_cash"`
	Notes       string      `json:"notes"`
}

type DrawerResponse struct {
	Session DrawerSession `json:"session"`
}

// RemoteSaleEvent is published when a sale is fulfilled from a location
// other than the selling one, so the fulfilling side can pick stock.
type RemoteSaleEvent struct {
	SaleID               string     `json:"sale_id"`
	LocationID           string     `json:"location_id"`
	FulfillingLocationID string     `json:"fulfilling_location_id"`
	Items                []SaleLine `json:"items"`
	CreatedAt            time.Time  `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	LocationID    string    `json:"location_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	MethodCash     = "cash"
	MethodCredit   = "credit"
	MethodCardDeb  = "card_debit"
	MethodCardCred = "card_credit"
	MethodQR       = "qr"
	MethodTransfer = "transfer"
	MethodMixed    = "mixed"
)

// Tender rails used as keys in drawer session totals.
const (
	TenderCash        = "cash"
	TenderStoreCredit = "store_credit"
)

const (
	SaleStatusCompleted = "completed"
	SaleStatusCancelled = "cancelled"
)

const (
	DrawerStatusOpen   = "open"
	DrawerStatusClosed = "closed"
)

// NonCashMethods are the rails accepted standalone or as the non-cash leg
// of a mixed tender.
var NonCashMethods = map[string]bool{
	MethodCardDeb:  true,
	MethodCardCred: true,
	MethodQR:       true,
	MethodTransfer: true,
}
