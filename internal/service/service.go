package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"lokapos/backend/internal/domain"
	"lokapos/backend/internal/ledger"
	"lokapos/backend/internal/money"
	"lokapos/backend/internal/notify"
	"lokapos/backend/internal/settlement"
	"lokapos/backend/internal/stock"
	"lokapos/backend/internal/store"
	"lokapos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo              store.Repository
	credits           *ledger.Ledger
	stock             *stock.Dispatcher
	notifier          notify.Notifier
	defaultLocationID string
}

func New(repo store.Repository, notifier notify.Notifier, defaultLocationID string) *Service {
	if defaultLocationID == "" {
		defaultLocationID = "loc-pusat"
	}
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}

	return &Service{
		repo:              repo,
		credits:           ledger.New(repo),
		stock:             stock.New(repo),
		notifier:          notifier,
		defaultLocationID: defaultLocationID,
	}
}

// Settle is the primary entry point: it validates the request, computes
// the payment plan, and applies the credit debit, stock decrement,
// optional top-up, and sale + drawer persistence as one logical unit.
// On any failure after the first mutation the already-applied steps are
// compensated in reverse so a partial sale is never observable.
func (s *Service) Settle(ctx context.Context, req domain.SettlementRequest) (domain.SettlementResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.SettlementResponse{}, fmt.Errorf("%w: authenticated cashier required", store.ErrForbidden)
	}

	if req.LocationID == "" {
		req.LocationID = s.defaultLocationID
	}
	if req.FulfillingLocationID == "" {
		req.FulfillingLocationID = req.LocationID
	}

	items, err := normalizeItems(req.Items)
	if err != nil {
		return domain.SettlementResponse{}, err
	}
	req.Items = items

	session, err := s.repo.GetActiveDrawerSession(ctx, actor.Username)
	if err != nil {
		return domain.SettlementResponse{}, fmt.Errorf("no open drawer session for %s: %w", actor.Username, err)
	}

	if req.IdempotencyKey != "" {
		existing, err := s.repo.FindSaleByIdempotency(ctx, req.IdempotencyKey)
		switch {
		case err == nil:
			return domain.SettlementResponse{Sale: *existing, Plan: planFromSale(*existing), Duplicate: true}, nil
		case !errors.Is(err, store.ErrNotFound):
			// A storage failure is not "no duplicate"; settling here
			// could double-apply the sale once storage recovers.
			return domain.SettlementResponse{}, fmt.Errorf("idempotency lookup for %s: %w", req.IdempotencyKey, err)
		}
	}

	lines, err := s.resolveLines(ctx, req.Items)
	if err != nil {
		return domain.SettlementResponse{}, err
	}
	gross := settlement.CartTotal(lines)

	availableCredit := money.Zero()
	if req.CustomerID != "" {
		availableCredit, err = s.credits.Available(ctx, req.CustomerID)
		if err != nil {
			return domain.SettlementResponse{}, fmt.Errorf("customer %s: %w", req.CustomerID, err)
		}
	}

	plan, err := settlement.Calculate(req, gross, availableCredit)
	if err != nil {
		return domain.SettlementResponse{}, err
	}

	// The calculator saw a snapshot; the debit below is the
	// authoritative credit check under concurrency.
	if plan.CreditApplied.IsPositive() {
		if _, err := s.credits.Debit(ctx, req.CustomerID, plan.CreditApplied); err != nil {
			return domain.SettlementResponse{}, err
		}
	}

	if err := s.stock.DecrementLines(ctx, req.FulfillingLocationID, lines); err != nil {
		s.compensateCredit(ctx, req.CustomerID, plan.CreditApplied, "stock decrement failed")
		return domain.SettlementResponse{}, err
	}

	if plan.CreditTopUp.IsPositive() {
		if _, err := s.credits.Credit(ctx, req.CustomerID, plan.CreditTopUp); err != nil {
			s.compensateStock(ctx, req.FulfillingLocationID, lines, "credit top-up failed")
			s.compensateCredit(ctx, req.CustomerID, plan.CreditApplied, "credit top-up failed")
			return domain.SettlementResponse{}, err
		}
	}

	sale := domain.Sale{
		ID:                   xid.New("sale"),
		LocationID:           req.LocationID,
		FulfillingLocationID: req.FulfillingLocationID,
		DrawerSessionID:      session.ID,
		IdempotencyKey:       req.IdempotencyKey,
		BuyerName:            strings.TrimSpace(req.BuyerName),
		CustomerID:           req.CustomerID,
		CashierUsername:      actor.Username,
		Method:               req.Method,
		OtherMethod:          req.OtherMethod,
		OtherReference:       req.OtherReference,
		GrossTotal:           plan.GrossTotal,
		CreditApplied:        plan.CreditApplied,
		NetDue:               plan.NetDue,
		TenderedCash:         plan.TenderedCash,
		TenderedOther:        plan.TenderedOther,
		ChangeDue:            plan.ChangeDue,
		CreditTopUp:          plan.CreditTopUp,
		Overpayment:          plan.Overpayment,
		Status:               domain.SaleStatusCompleted,
		CreatedAt:            time.Now().UTC(),
		Items:                lines,
	}

	created, replayed, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		s.compensateTopUp(ctx, req.CustomerID, plan.CreditTopUp, "sale persistence failed")
		s.compensateStock(ctx, req.FulfillingLocationID, lines, "sale persistence failed")
		s.compensateCredit(ctx, req.CustomerID, plan.CreditApplied, "sale persistence failed")
		return domain.SettlementResponse{}, err
	}
	if replayed {
		// A concurrent settle with the same key committed between the
		// pre-check and here. This request's debit, decrement, and
		// top-up belong to no sale; undo them and answer with the
		// winner's stored sale.
		s.compensateTopUp(ctx, req.CustomerID, plan.CreditTopUp, "idempotent replay")
		s.compensateStock(ctx, req.FulfillingLocationID, lines, "idempotent replay")
		s.compensateCredit(ctx, req.CustomerID, plan.CreditApplied, "idempotent replay")
		return domain.SettlementResponse{Sale: *created, Plan: planFromSale(*created), Duplicate: true}, nil
	}

	if created.FulfillingLocationID != created.LocationID {
		event := domain.RemoteSaleEvent{
			SaleID:               created.ID,
			LocationID:           created.LocationID,
			FulfillingLocationID: created.FulfillingLocationID,
			Items:                created.Items,
			CreatedAt:            created.CreatedAt,
		}
		if err := s.notifier.PublishRemoteSale(ctx, event); err != nil {
			log.Printf("[settle] WARN: remote sale notification failed sale=%s location=%s: %v",
				created.ID, created.FulfillingLocationID, err)
		}
	}

	s.logAudit(ctx, created.LocationID, "sale_settle", "sale", created.ID,
		fmt.Sprintf("gross=%s,credit=%s,cash=%s,method=%s", created.GrossTotal, created.CreditApplied, created.TenderedCash, created.Method))

	return domain.SettlementResponse{Sale: *created, Plan: plan, Duplicate: false}, nil
}

// compensateCredit re-credits a debit that belongs to an aborted sale.
// A compensation failure is escalated in the log and never retried
// silently, because it leaves the customer's balance understated.
func (s *Service) compensateCredit(ctx context.Context, customerID string, amount money.Money, cause string) {
	if customerID == "" || !amount.IsPositive() {
		return
	}
	if _, err := s.credits.Credit(ctx, customerID, amount); err != nil {
		log.Printf("[settle] ERROR: %v: re-crediting %s to customer %s after %s: %v",
			store.ErrCompensationFailed, amount, customerID, cause, err)
	}
}

func (s *Service) compensateStock(ctx context.Context, locationID string, lines []domain.SaleLine, cause string) {
	if err := s.stock.IncrementLines(ctx, locationID, lines); err != nil {
		log.Printf("[settle] ERROR: %v: restoring stock at %s after %s: %v",
			store.ErrCompensationFailed, locationID, cause, err)
	}
}

func (s *Service) compensateTopUp(ctx context.Context, customerID string, amount money.Money, cause string) {
	if customerID == "" || !amount.IsPositive() {
		return
	}
	if _, err := s.credits.Debit(ctx, customerID, amount); err != nil {
		log.Printf("[settle] ERROR: %v: reclaiming top-up %s from customer %s after %s: %v",
			store.ErrCompensationFailed, amount, customerID, cause, err)
	}
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.FindSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) OpenDrawer(ctx context.Context, req domain.DrawerOpenRequest) (domain.DrawerResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.DrawerResponse{}, fmt.Errorf("%w: authenticated cashier required", store.ErrForbidden)
	}
	if req.OpeningFloat.IsNegative() {
		return domain.DrawerResponse{}, fmt.Errorf("%w: opening float must not be negative", store.ErrInvalidSettlement)
	}
	if req.LocationID == "" {
		req.LocationID = s.defaultLocationID
	}

	session := domain.DrawerSession{
		ID:              xid.New("drw"),
		LocationID:      req.LocationID,
		CashierUsername: actor.Username,
		OpeningFloat:    req.OpeningFloat,
		TotalsByMethod:  map[string]money.Money{},
		Status:          domain.DrawerStatusOpen,
		OpenedAt:        time.Now().UTC(),
	}
	opened, err := s.repo.OpenDrawerSession(ctx, session)
	if err != nil {
		return domain.DrawerResponse{}, err
	}

	s.logAudit(ctx, opened.LocationID, "drawer_open", "drawer_session", opened.ID,
		fmt.Sprintf("float=%s", opened.OpeningFloat))
	return domain.DrawerResponse{Session: *opened}, nil
}

func (s *Service) CloseDrawer(ctx context.Context, sessionID string, req domain.DrawerCloseRequest) (domain.DrawerResponse, error) {
	if _, ok := ActorFromContext(ctx); !ok {
		return domain.DrawerResponse{}, fmt.Errorf("%w: authenticated cashier required", store.ErrForbidden)
	}
	if req.CountedCash.IsNegative() {
		return domain.DrawerResponse{}, fmt.Errorf("%w: counted cash must not be negative", store.ErrInvalidSettlement)
	}

	closed, err := s.repo.CloseDrawerSession(ctx, sessionID, req.CountedCash, strings.TrimSpace(req.Notes), time.Now().UTC())
	if err != nil {
		return domain.DrawerResponse{}, err
	}

	s.logAudit(ctx, closed.LocationID, "drawer_close", "drawer_session", closed.ID,
		fmt.Sprintf("counted=%s,expected=%s,variance=%s", *closed.CountedClose, *closed.ExpectedClose, *closed.Variance))
	return domain.DrawerResponse{Session: *closed}, nil
}

// GetDrawerStatus returns the caller's open session with its running
// totals, for the terminal status strip.
func (s *Service) GetDrawerStatus(ctx context.Context) (domain.DrawerResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.DrawerResponse{}, fmt.Errorf("%w: authenticated cashier required", store.ErrForbidden)
	}
	session, err := s.repo.GetActiveDrawerSession(ctx, actor.Username)
	if err != nil {
		return domain.DrawerResponse{}, err
	}
	return domain.DrawerResponse{Session: *session}, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("%w: admin role required", store.ErrForbidden)
	}

	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.LocationID == "" {
		req.LocationID = s.defaultLocationID
	}

	if req.SKU == "" || req.Name == "" || req.Category == "" {
		return domain.Product{}, fmt.Errorf("%w: sku, name, and category are required", store.ErrInvalidSettlement)
	}
	if !req.UnitPrice.IsPositive() || req.InitStock < 0 {
		return domain.Product{}, fmt.Errorf("%w: price must be positive and initial stock non-negative", store.ErrInvalidSettlement)
	}

	product := domain.Product{
		SKU:       req.SKU,
		Name:      req.Name,
		Category:  req.Category,
		UnitPrice: req.UnitPrice,
		Active:    true,
	}
	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	if req.InitStock > 0 {
		if err := s.stock.Increment(ctx, created.SKU, req.LocationID, req.InitStock); err != nil {
			return domain.Product{}, err
		}
	}

	s.logAudit(ctx, req.LocationID, "product_create", "product", created.SKU,
		fmt.Sprintf("name=%s,price=%s,stock=%d", created.Name, created.UnitPrice, req.InitStock))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, sku string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("%w: admin role required", store.ErrForbidden)
	}

	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return domain.Product{}, fmt.Errorf("%w: sku is required", store.ErrInvalidSettlement)
	}

	existing, err := s.repo.GetProductBySKU(ctx, sku)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: name must not be empty", store.ErrInvalidSettlement)
		}
		updated.Name = name
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.UnitPrice != nil {
		if !req.UnitPrice.IsPositive() {
			return domain.Product{}, fmt.Errorf("%w: price must be positive", store.ErrInvalidSettlement)
		}
		updated.UnitPrice = *req.UnitPrice
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, "", "product_update", "product", saved.SKU, fmt.Sprintf("price=%s,active=%t", saved.UnitPrice, saved.Active))
	return *saved, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, fmt.Errorf("%w: customer name is required", store.ErrInvalidSettlement)
	}
	opening := money.Zero()
	if req.OpeningCredit != nil {
		if req.OpeningCredit.IsNegative() {
			return domain.Customer{}, fmt.Errorf("%w: opening credit must not be negative", store.ErrInvalidSettlement)
		}
		opening = *req.OpeningCredit
	}

	customer := domain.Customer{
		ID:            xid.New("cus"),
		Name:          name,
		CreditBalance: opening,
		CreatedAt:     time.Now().UTC(),
	}
	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}
	s.logAudit(ctx, "", "customer_create", "customer", created.ID, fmt.Sprintf("name=%s,credit=%s", created.Name, created.CreditBalance))
	return *created, nil
}

func (s *Service) GetCustomer(ctx context.Context, customerID string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

// AdjustCredit applies a signed manual balance correction. Positive
// amounts deposit, negative amounts withdraw through the same atomic
// debit path sales use.
func (s *Service) AdjustCredit(ctx context.Context, customerID string, req domain.CreditAdjustRequest) (domain.CreditAdjustResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.CreditAdjustResponse{}, fmt.Errorf("%w: admin role required", store.ErrForbidden)
	}
	if req.Amount.IsZero() {
		return domain.CreditAdjustResponse{}, fmt.Errorf("%w: adjustment amount must not be zero", store.ErrInvalidSettlement)
	}

	var (
		balance money.Money
		err     error
	)
	if req.Amount.IsNegative() {
		balance, err = s.credits.Debit(ctx, customerID, req.Amount.Neg())
	} else {
		balance, err = s.credits.Credit(ctx, customerID, req.Amount)
	}
	if err != nil {
		return domain.CreditAdjustResponse{}, err
	}

	s.logAudit(ctx, "", "credit_adjust", "customer", customerID,
		fmt.Sprintf("amount=%s,reason=%s,balance=%s", req.Amount, strings.TrimSpace(req.Reason), balance))
	return domain.CreditAdjustResponse{CustomerID: customerID, NewBalance: balance}, nil
}

func (s *Service) GetStock(ctx context.Context, sku string, locationID string) (domain.StockEntry, error) {
	if locationID == "" {
		locationID = s.defaultLocationID
	}
	entry, err := s.repo.GetStockEntry(ctx, strings.ToUpper(strings.TrimSpace(sku)), locationID)
	if err != nil {
		return domain.StockEntry{}, err
	}
	return *entry, nil
}

func (s *Service) SetStock(ctx context.Context, req domain.StockSetRequest) (domain.StockEntry, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.StockEntry{}, fmt.Errorf("%w: admin role required", store.ErrForbidden)
	}

	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	if req.LocationID == "" {
		req.LocationID = s.defaultLocationID
	}
	if req.SKU == "" || req.Qty < 0 || req.ReorderThreshold < 0 {
		return domain.StockEntry{}, fmt.Errorf("%w: sku required, qty and threshold non-negative", store.ErrInvalidSettlement)
	}
	if _, err := s.repo.GetProductBySKU(ctx, req.SKU); err != nil {
		return domain.StockEntry{}, err
	}

	entry := domain.StockEntry{
		SKU:              req.SKU,
		LocationID:       req.LocationID,
		QtyOnHand:        req.Qty,
		ReorderThreshold: req.ReorderThreshold,
	}
	if err := s.repo.SetStock(ctx, entry); err != nil {
		return domain.StockEntry{}, err
	}
	s.logAudit(ctx, req.LocationID, "stock_set", "stock", req.SKU, fmt.Sprintf("qty=%d,threshold=%d", req.Qty, req.ReorderThreshold))
	return entry, nil
}

// ReplenishStock adds received quantity on top of the current count.
func (s *Service) ReplenishStock(ctx context.Context, sku string, locationID string, qty int64) (domain.StockEntry, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.StockEntry{}, fmt.Errorf("%w: admin role required", store.ErrForbidden)
	}
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if locationID == "" {
		locationID = s.defaultLocationID
	}
	if err := s.stock.Increment(ctx, sku, locationID, qty); err != nil {
		return domain.StockEntry{}, err
	}
	entry, err := s.repo.GetStockEntry(ctx, sku, locationID)
	if err != nil {
		return domain.StockEntry{}, err
	}
	s.logAudit(ctx, locationID, "stock_replenish", "stock", sku, fmt.Sprintf("qty=%d,on_hand=%d", qty, entry.QtyOnHand))
	return *entry, nil
}

func (s *Service) ListLowStock(ctx context.Context, locationID string) ([]domain.StockEntry, error) {
	if locationID == "" {
		locationID = s.defaultLocationID
	}
	return s.repo.ListLowStock(ctx, locationID)
}

func (s *Service) ListAuditLogs(ctx context.Context, locationID string, date string, limit int) ([]domain.AuditLog, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return nil, fmt.Errorf("%w: admin role required", store.ErrForbidden)
	}

	day := time.Now().UTC()
	if date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrInvalidSettlement)
		}
		day = parsed
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, locationID, from, to, limit)
}

func (s *Service) resolveLines(ctx context.Context, items []domain.CartItem) ([]domain.SaleLine, error) {
	skus := make([]string, 0, len(items))
	for _, item := range items {
		skus = append(skus, item.SKU)
	}
	products, err := s.repo.GetProductsBySKUs(ctx, skus)
	if err != nil {
		return nil, err
	}

	lines := make([]domain.SaleLine, 0, len(items))
	for _, item := range items {
		product, ok := products[item.SKU]
		if !ok {
			return nil, fmt.Errorf("product %s: %w", item.SKU, store.ErrNotFound)
		}
		if !product.Active {
			return nil, fmt.Errorf("%w: product %s is inactive", store.ErrInvalidSettlement, item.SKU)
		}
		// Price is snapshotted here; later catalog edits do not move
		// an already-settled sale.
		lines = append(lines, domain.SaleLine{
			SKU:       item.SKU,
			Qty:       item.Qty,
			UnitPrice: product.UnitPrice,
			Subtotal:  product.UnitPrice.MulInt(item.Qty),
		})
	}
	return lines, nil
}

func (s *Service) logAudit(ctx context.Context, locationID string, action string, entityType string, entityID string, detail string) {
	if locationID == "" {
		locationID = s.defaultLocationID
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		LocationID:    locationID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func normalizeItems(items []domain.CartItem) ([]domain.CartItem, error) {
	merged := map[string]int64{}
	order := make([]string, 0, len(items))
	for _, item := range items {
		sku := strings.ToUpper(strings.TrimSpace(item.SKU))
		if sku == "" || item.Qty <= 0 {
			return nil, fmt.Errorf("%w: every line needs a sku and a positive quantity", store.ErrInvalidSettlement)
		}
		if _, seen := merged[sku]; !seen {
			order = append(order, sku)
		}
		merged[sku] += item.Qty
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", store.ErrInvalidSettlement)
	}

	out := make([]domain.CartItem, 0, len(order))
	for _, sku := range order {
		out = append(out, domain.CartItem{SKU: sku, Qty: merged[sku]})
	}
	return out, nil
}

func planFromSale(sale domain.Sale) domain.SettlementPlan {
	return domain.SettlementPlan{
		GrossTotal:    sale.GrossTotal,
		CreditApplied: sale.CreditApplied,
		NetDue:        sale.NetDue,
		TenderedCash:  sale.TenderedCash,
		TenderedOther: sale.TenderedOther,
		ChangeDue:     sale.ChangeDue,
		CreditTopUp:   sale.CreditTopUp,
		Overpayment:   sale.Overpayment,
	}
}
