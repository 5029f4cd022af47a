package service

import (
	"context"
	"errors"
	"testing"

	"lokapos/backend/internal/domain"
	"lokapos/backend/internal/money"
	"lokapos/backend/internal/store"
	"lokapos/backend/internal/store/memory"
)

type captureNotifier struct {
	events []domain.RemoteSaleEvent
	fail   bool
}

func (n *captureNotifier) PublishRemoteSale(_ context.Context, event domain.RemoteSaleEvent) error {
	if n.fail {
		return errors.New("publisher down")
	}
	n.events = append(n.events, event)
	return nil
}

func cashierCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "cashier", Role: "cashier"})
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func newTestService(t *testing.T) (*Service, *memory.Store, *captureNotifier) {
	t.Helper()
	repo := memory.NewEmpty()
	ctx := context.Background()

	products := []domain.Product{
		{SKU: "SKU-A", Name: "Item A", Category: "grocery", UnitPrice: money.MustParse("25.00"), Active: true},
		{SKU: "SKU-B", Name: "Item B", Category: "grocery", UnitPrice: money.MustParse("10.00"), Active: true},
	}
	for _, p := range products {
		if _, err := repo.CreateProduct(ctx, p); err != nil {
			t.Fatalf("seed product: %v", err)
		}
		for _, loc := range []string{"loc-pusat", "loc-cabang"} {
			entry := domain.StockEntry{SKU: p.SKU, LocationID: loc, QtyOnHand: 20, ReorderThreshold: 5}
			if loc == "loc-cabang" {
				entry.QtyOnHand = 5
			}
			if err := repo.SetStock(ctx, entry); err != nil {
				t.Fatalf("seed stock: %v", err)
			}
		}
	}
	if _, err := repo.CreateCustomer(ctx, domain.Customer{ID: "cus-1", Name: "Ibu Sari", CreditBalance: money.MustParse("30.00")}); err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	notifier := &captureNotifier{}
	svc := New(repo, notifier, "loc-pusat")
	return svc, repo, notifier
}

func openDrawer(t *testing.T, svc *Service, float string) domain.DrawerSession {
	t.Helper()
	resp, err := svc.OpenDrawer(cashierCtx(), domain.DrawerOpenRequest{OpeningFloat: money.MustParse(float)})
	if err != nil {
		t.Fatalf("open drawer: %v", err)
	}
	return resp.Session
}

func TestSettleCreditThenCash(t *testing.T) {
	svc, repo, _ := newTestService(t)
	openDrawer(t, svc, "100.00")

	// 4 x 25.00 = 100.00 gross, 30.00 credit, 70.00 cash.
	resp, err := svc.Settle(cashierCtx(), domain.SettlementRequest{
		IdempotencyKey: "idem-a",
		CustomerID:     "cus-1",
		UseCredit:      true,
		Method:         domain.MethodCash,
		CashTendered:   money.MustParse("70.00"),
		Items:          []domain.CartItem{{SKU: "SKU-A", Qty: 4}},
	})
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if !resp.Plan.CreditApplied.Equal(money.MustParse("30.00")) || !resp.Plan.NetDue.Equal(money.MustParse("70.00")) {
		t.Fatalf("unexpected plan: %+v", resp.Plan)
	}
	if !resp.Plan.ChangeDue.IsZero() {
		t.Fatalf("expected no change, got %s", resp.Plan.ChangeDue)
	}

	customer, _ := repo.GetCustomerByID(context.Background(), "cus-1")
	if !customer.CreditBalance.IsZero() {
		t.Fatalf("expected credit drained, got %s", customer.CreditBalance)
	}
	entry, _ := repo.GetStockEntry(context.Background(), "SKU-A", "loc-pusat")
	if entry.QtyOnHand != 16 {
		t.Fatalf("expected stock 16, got %d", entry.QtyOnHand)
	}

	status, err := svc.GetDrawerStatus(cashierCtx())
	if err != nil {
		t.Fatalf("drawer status: %v", err)
	}
	if !status.Session.TotalsByMethod[domain.TenderCash].Equal(money.MustParse("70.00")) {
		t.Fatalf("expected drawer cash 70.00, got %s", status.Session.TotalsByMethod[domain.TenderCash])
	}
	if !status.Session.TotalsByMethod[domain.TenderStoreCredit].Equal(money.MustParse("30.00")) {
		t.Fatalf("expected drawer credit 30.00, got %s", status.Session.TotalsByMethod[domain.TenderStoreCredit])
	}
}

func TestSettleRequiresOpenDrawer(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Settle(cashierCtx(), domain.SettlementRequest{
		Method:       domain.MethodCash,
		CashTendered: money.MustParse("25.00"),
		Items:        []domain.CartItem{{SKU: "SKU-A", Qty: 1}},
	})
	if !errors.Is(err, store.ErrDrawerNotFound) {
		t.Fatalf("expected drawer-not-found, got %v", err)
	}
}

func TestSettleDuplicateIdempotencyKey(t *testing.T) {
	svc, repo, _ := newTestService(t)
	openDrawer(t, svc, "0.00")

	req := domain.SettlementRequest{
		IdempotencyKey: "idem-dup",
		Method:         domain.MethodCash,
		CashTendered:   money.MustParse("25.00"),
		Items:          []domain.CartItem{{SKU: "SKU-A", Qty: 1}},
	}
	first, err := svc.Settle(cashierCtx(), req)
	if err != nil {
		t.Fatalf("first settle: %v", err)
	}
	second, err := svc.Settle(cashierCtx(), req)
	if err != nil {
		t.Fatalf("replayed settle: %v", err)
	}
	if !second.Duplicate || second.Sale.ID != first.Sale.ID {
		t.Fatalf("expected duplicate replay of %s, got %+v", first.Sale.ID, second)
	}

	// The replay must not have decremented stock again.
	entry, _ := repo.GetStockEntry(context.Background(), "SKU-A", "loc-pusat")
	if entry.QtyOnHand != 19 {
		t.Fatalf("expected stock 19 after replay, got %d", entry.QtyOnHand)
	}
}

// blindIdemRepo hides stored idempotency keys from lookups, the way a
// concurrent settle that committed between the pre-check and the insert
// looks to the loser.
type blindIdemRepo struct {
	store.Repository
}

func (r blindIdemRepo) FindSaleByIdempotency(context.Context, string) (*domain.Sale, error) {
	return nil, store.ErrNotFound
}

func TestSettleRacedReplayCompensatesSideEffects(t *testing.T) {
	repo := memory.NewEmpty()
	ctx := context.Background()
	if _, err := repo.CreateProduct(ctx, domain.Product{SKU: "SKU-A", Name: "Item A", Category: "grocery", UnitPrice: money.MustParse("25.00"), Active: true}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if err := repo.SetStock(ctx, domain.StockEntry{SKU: "SKU-A", LocationID: "loc-pusat", QtyOnHand: 10, ReorderThreshold: 2}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	if _, err := repo.CreateCustomer(ctx, domain.Customer{ID: "cus-1", Name: "Ibu Sari", CreditBalance: money.MustParse("100.00")}); err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	svc := New(blindIdemRepo{Repository: repo}, nil, "loc-pusat")
	if _, err := svc.OpenDrawer(cashierCtx(), domain.DrawerOpenRequest{OpeningFloat: money.Zero()}); err != nil {
		t.Fatalf("open drawer: %v", err)
	}

	req := domain.SettlementRequest{
		IdempotencyKey: "idem-race",
		CustomerID:     "cus-1",
		UseCredit:      true,
		Method:         domain.MethodCredit,
		Items:          []domain.CartItem{{SKU: "SKU-A", Qty: 1}},
	}
	first, err := svc.Settle(cashierCtx(), req)
	if err != nil {
		t.Fatalf("first settle: %v", err)
	}
	if first.Duplicate {
		t.Fatalf("first settle flagged duplicate")
	}

	// The blinded lookup lets the second settle go past the pre-check:
	// it debits and decrements before persistence reports the replay.
	second, err := svc.Settle(cashierCtx(), req)
	if err != nil {
		t.Fatalf("raced settle: %v", err)
	}
	if !second.Duplicate || second.Sale.ID != first.Sale.ID {
		t.Fatalf("expected duplicate replay of %s, got %+v", first.Sale.ID, second)
	}

	entry, _ := repo.GetStockEntry(ctx, "SKU-A", "loc-pusat")
	if entry.QtyOnHand != 9 {
		t.Fatalf("raced decrement not compensated: stock %d", entry.QtyOnHand)
	}
	customer, _ := repo.GetCustomerByID(ctx, "cus-1")
	if !customer.CreditBalance.Equal(money.MustParse("75.00")) {
		t.Fatalf("raced debit not compensated: balance %s", customer.CreditBalance)
	}
	status, _ := svc.GetDrawerStatus(cashierCtx())
	if status.Session.SaleCount != 1 {
		t.Fatalf("drawer folded twice: count %d", status.Session.SaleCount)
	}
	if !status.Session.TotalsByMethod[domain.TenderStoreCredit].Equal(money.MustParse("25.00")) {
		t.Fatalf("unexpected drawer credit total %s", status.Session.TotalsByMethod[domain.TenderStoreCredit])
	}
}

// failingIdemRepo simulates storage being unreachable for the
// idempotency lookup.
type failingIdemRepo struct {
	store.Repository
}

func (r failingIdemRepo) FindSaleByIdempotency(context.Context, string) (*domain.Sale, error) {
	return nil, errors.New("connection refused")
}

func TestSettleAbortsWhenIdempotencyLookupFails(t *testing.T) {
	repo := memory.NewEmpty()
	ctx := context.Background()
	if _, err := repo.CreateProduct(ctx, domain.Product{SKU: "SKU-A", Name: "Item A", Category: "grocery", UnitPrice: money.MustParse("25.00"), Active: true}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if err := repo.SetStock(ctx, domain.StockEntry{SKU: "SKU-A", LocationID: "loc-pusat", QtyOnHand: 10, ReorderThreshold: 2}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	svc := New(failingIdemRepo{Repository: repo}, nil, "loc-pusat")
	if _, err := svc.OpenDrawer(cashierCtx(), domain.DrawerOpenRequest{OpeningFloat: money.Zero()}); err != nil {
		t.Fatalf("open drawer: %v", err)
	}

	_, err := svc.Settle(cashierCtx(), domain.SettlementRequest{
		IdempotencyKey: "idem-down",
		Method:         domain.MethodCash,
		CashTendered:   money.MustParse("25.00"),
		Items:          []domain.CartItem{{SKU: "SKU-A", Qty: 1}},
	})
	if err == nil {
		t.Fatalf("expected settle to abort on lookup failure")
	}

	// Nothing may have moved before the abort.
	entry, _ := repo.GetStockEntry(ctx, "SKU-A", "loc-pusat")
	if entry.QtyOnHand != 10 {
		t.Fatalf("stock moved on aborted settle: %d", entry.QtyOnHand)
	}
	status, _ := svc.GetDrawerStatus(cashierCtx())
	if status.Session.SaleCount != 0 {
		t.Fatalf("aborted settle reached the drawer: count %d", status.Session.SaleCount)
	}
}

func TestSettleRemoteSaleNotifiesFulfillingLocation(t *testing.T) {
	svc, repo, notifier := newTestService(t)
	openDrawer(t, svc, "0.00")

	resp, err := svc.Settle(cashierCtx(), domain.SettlementRequest{
		LocationID:           "loc-pusat",
		FulfillingLocationID: "loc-cabang",
		BuyerName:            "Pak Budi",
		Method:               domain.MethodCash,
		CashTendered:         money.MustParse("50.00"),
		Items:                []domain.CartItem{{SKU: "SKU-A", Qty: 2}},
	})
	if err != nil {
		t.Fatalf("remote settle failed: %v", err)
	}

	// Stock moves at the fulfilling location, not the selling one.
	remote, _ := repo.GetStockEntry(context.Background(), "SKU-A", "loc-cabang")
	if remote.QtyOnHand != 3 {
		t.Fatalf("expected fulfilling stock 3, got %d", remote.QtyOnHand)
	}
	local, _ := repo.GetStockEntry(context.Background(), "SKU-A", "loc-pusat")
	if local.QtyOnHand != 20 {
		t.Fatalf("selling location stock moved to %d", local.QtyOnHand)
	}

	if len(notifier.events) != 1 {
		t.Fatalf("expected one remote-sale event, got %d", len(notifier.events))
	}
	if notifier.events[0].FulfillingLocationID != "loc-cabang" || notifier.events[0].SaleID != resp.Sale.ID {
		t.Fatalf("unexpected event %+v", notifier.events[0])
	}
}

func TestSettleRemoteShortageRollsEverythingBack(t *testing.T) {
	svc, repo, notifier := newTestService(t)
	openDrawer(t, svc, "0.00")

	// loc-cabang has 5 on hand and 7 are requested. The credit debit
	// has already happened by then and must be compensated.
	_, err := svc.Settle(cashierCtx(), domain.SettlementRequest{
		FulfillingLocationID: "loc-cabang",
		CustomerID:           "cus-1",
		UseCredit:            true,
		Method:               domain.MethodCash,
		CashTendered:         money.MustParse("145.00"),
		Items:                []domain.CartItem{{SKU: "SKU-A", Qty: 7}},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	ctx := context.Background()
	customer, _ := repo.GetCustomerByID(ctx, "cus-1")
	if !customer.CreditBalance.Equal(money.MustParse("30.00")) {
		t.Fatalf("credit not restored, balance %s", customer.CreditBalance)
	}
	remote, _ := repo.GetStockEntry(ctx, "SKU-A", "loc-cabang")
	if remote.QtyOnHand != 5 {
		t.Fatalf("fulfilling stock changed to %d", remote.QtyOnHand)
	}
	status, _ := svc.GetDrawerStatus(cashierCtx())
	if status.Session.SaleCount != 0 {
		t.Fatalf("failed settle reached the drawer: count %d", status.Session.SaleCount)
	}
	if len(notifier.events) != 0 {
		t.Fatalf("failed settle emitted %d events", len(notifier.events))
	}
}

func TestSettlePartialMultiLineShortageRestoresEarlierLines(t *testing.T) {
	svc, repo, _ := newTestService(t)
	openDrawer(t, svc, "0.00")

	// SKU-A succeeds, SKU-B fails (20 on hand, 25 asked); the SKU-A
	// decrement must be compensated.
	_, err := svc.Settle(cashierCtx(), domain.SettlementRequest{
		Method:       domain.MethodCash,
		CashTendered: money.MustParse("500.00"),
		Items: []domain.CartItem{
			{SKU: "SKU-A", Qty: 2},
			{SKU: "SKU-B", Qty: 25},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	entry, _ := repo.GetStockEntry(context.Background(), "SKU-A", "loc-pusat")
	if entry.QtyOnHand != 20 {
		t.Fatalf("first line not restored: stock %d", entry.QtyOnHand)
	}
}

func TestSettleChangeTopUpDepositsToCustomer(t *testing.T) {
	svc, repo, _ := newTestService(t)
	openDrawer(t, svc, "0.00")

	resp, err := svc.Settle(cashierCtx(), domain.SettlementRequest{
		CustomerID:   "cus-1",
		Method:       domain.MethodCash,
		CashTendered: money.MustParse("30.00"),
		TopUpChange:  true,
		Items:        []domain.CartItem{{SKU: "SKU-A", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if !resp.Plan.CreditTopUp.Equal(money.MustParse("5.00")) || !resp.Plan.ChangeDue.IsZero() {
		t.Fatalf("unexpected plan %+v", resp.Plan)
	}
	customer, _ := repo.GetCustomerByID(context.Background(), "cus-1")
	if !customer.CreditBalance.Equal(money.MustParse("35.00")) {
		t.Fatalf("expected balance 35.00 after top-up, got %s", customer.CreditBalance)
	}
}

func TestSettleNotifierFailureDoesNotRollBack(t *testing.T) {
	svc, repo, notifier := newTestService(t)
	notifier.fail = true
	openDrawer(t, svc, "0.00")

	resp, err := svc.Settle(cashierCtx(), domain.SettlementRequest{
		FulfillingLocationID: "loc-cabang",
		Method:               domain.MethodCash,
		CashTendered:         money.MustParse("25.00"),
		Items:                []domain.CartItem{{SKU: "SKU-A", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("settle must survive a notifier failure: %v", err)
	}
	if _, err := repo.FindSaleByID(context.Background(), resp.Sale.ID); err != nil {
		t.Fatalf("sale not persisted: %v", err)
	}
}

func TestDrawerCloseVariance(t *testing.T) {
	svc, _, _ := newTestService(t)
	session := openDrawer(t, svc, "100.00")

	// Two exact cash sales of 10.00 each.
	for i := 0; i < 2; i++ {
		_, err := svc.Settle(cashierCtx(), domain.SettlementRequest{
			Method:       domain.MethodCash,
			CashTendered: money.MustParse("10.00"),
			Items:        []domain.CartItem{{SKU: "SKU-B", Qty: 1}},
		})
		if err != nil {
			t.Fatalf("settle %d failed: %v", i, err)
		}
	}

	closed, err := svc.CloseDrawer(cashierCtx(), session.ID, domain.DrawerCloseRequest{CountedCash: money.MustParse("115.00")})
	if err != nil {
		t.Fatalf("close drawer: %v", err)
	}
	if !closed.Session.ExpectedClose.Equal(money.MustParse("120.00")) {
		t.Fatalf("expected close 120.00, got %s", *closed.Session.ExpectedClose)
	}
	if !closed.Session.Variance.Equal(money.MustParse("-5.00")) {
		t.Fatalf("expected variance -5.00, got %s", *closed.Session.Variance)
	}
}

func TestAdjustCreditRequiresAdmin(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.AdjustCredit(cashierCtx(), "cus-1", domain.CreditAdjustRequest{Amount: money.MustParse("10.00")}); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected forbidden for cashier adjustment, got %v", err)
	}

	resp, err := svc.AdjustCredit(adminCtx(), "cus-1", domain.CreditAdjustRequest{Amount: money.MustParse("-10.00"), Reason: "correction"})
	if err != nil {
		t.Fatalf("admin adjustment failed: %v", err)
	}
	if !resp.NewBalance.Equal(money.MustParse("20.00")) {
		t.Fatalf("expected balance 20.00, got %s", resp.NewBalance)
	}
}

func TestCreateProductWithInitialStock(t *testing.T) {
	svc, repo, _ := newTestService(t)

	created, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		SKU:       "sku-c",
		Name:      "Item C",
		Category:  "snack",
		UnitPrice: money.MustParse("4.25"),
		InitStock: 12,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if created.SKU != "SKU-C" {
		t.Fatalf("sku not normalized: %s", created.SKU)
	}
	entry, err := repo.GetStockEntry(context.Background(), "SKU-C", "loc-pusat")
	if err != nil || entry.QtyOnHand != 12 {
		t.Fatalf("expected initial stock 12, got %+v (%v)", entry, err)
	}
}

func TestSettleMergesDuplicateCartLines(t *testing.T) {
	svc, repo, _ := newTestService(t)
	openDrawer(t, svc, "0.00")

	resp, err := svc.Settle(cashierCtx(), domain.SettlementRequest{
		Method:       domain.MethodCash,
		CashTendered: money.MustParse("75.00"),
		Items: []domain.CartItem{
			{SKU: "sku-a", Qty: 1},
			{SKU: "SKU-A", Qty: 2},
		},
	})
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if len(resp.Sale.Items) != 1 || resp.Sale.Items[0].Qty != 3 {
		t.Fatalf("expected one merged line of 3, got %+v", resp.Sale.Items)
	}
	entry, _ := repo.GetStockEntry(context.Background(), "SKU-A", "loc-pusat")
	if entry.QtyOnHand != 17 {
		t.Fatalf("expected stock 17, got %d", entry.QtyOnHand)
	}
}
