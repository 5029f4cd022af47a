package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"lokapos/backend/internal/domain"
	"lokapos/backend/internal/money"
	"lokapos/backend/internal/store"
)

type Store struct {
	mu                    sync.RWMutex
	products              map[string]domain.Product
	customers             map[string]domain.Customer
	stock                 map[string]domain.StockEntry
	salesByID             map[string]*domain.Sale
	salesByIdem           map[string]*domain.Sale
	drawersByID           map[string]domain.DrawerSession
	activeDrawerByCashier map[string]string
	auditLogs             []domain.AuditLog
	usersByUsername       map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	products := []domain.Product{
		{SKU: "SKU-BERAS-01", Name: "Beras Premium 5kg", Category: "grocery", UnitPrice: money.MustParse("78.50"), Active: true},
		{SKU: "SKU-MINYAK-01", Name: "Minyak Goreng 2L", Category: "grocery", UnitPrice: money.MustParse("36.00"), Active: true},
		{SKU: "SKU-KOPI-01", Name: "Kopi Bubuk 250g", Category: "beverage", UnitPrice: money.MustParse("24.75"), Active: true},
		{SKU: "SKU-TEH-01", Name: "Teh Celup 50s", Category: "beverage", UnitPrice: money.MustParse("12.25"), Active: true},
		{SKU: "SKU-SUSU-01", Name: "Susu UHT 1L", Category: "dairy", UnitPrice: money.MustParse("18.90"), Active: true},
		{SKU: "SKU-ROTI-01", Name: "Roti Tawar", Category: "bakery", UnitPrice: money.MustParse("17.80"), Active: true},
		{SKU: "SKU-SABUN-01", Name: "Sabun Mandi", Category: "household", UnitPrice: money.MustParse("7.40"), Active: true},
		{SKU: "SKU-DETERJEN-01", Name: "Deterjen Bubuk 1kg", Category: "household", UnitPrice: money.MustParse("21.30"), Active: true},
	}

	productMap := make(map[string]domain.Product, len(products))
	stock := make(map[string]domain.StockEntry)
	for _, p := range products {
		productMap[p.SKU] = p
		for _, loc := range []string{"loc-pusat", "loc-cabang"} {
			qty := int64(40)
			if loc == "loc-cabang" {
				qty = 15
			}
			stock[stockKey(p.SKU, loc)] = domain.StockEntry{
				SKU:              p.SKU,
				LocationID:       loc,
				QtyOnHand:        qty,
				ReorderThreshold: 10,
			}
		}
	}

	now := time.Now().UTC()
	customers := map[string]domain.Customer{
		"cus-ibu-sari": {ID: "cus-ibu-sari", Name: "Ibu Sari", CreditBalance: money.MustParse("150.00"), CreatedAt: now},
		"cus-pak-budi": {ID: "cus-pak-budi", Name: "Pak Budi", CreditBalance: money.MustParse("30.00"), CreatedAt: now},
	}

	return &Store{
		products:              productMap,
		customers:             customers,
		stock:                 stock,
		salesByID:             map[string]*domain.Sale{},
		salesByIdem:           map[string]*domain.Sale{},
		drawersByID:           map[string]domain.DrawerSession{},
		activeDrawerByCashier: map[string]string{},
		usersByUsername:       seedUsers(),
	}
}

// NewEmpty returns a store with no seed data, used by tests that want
// full control over fixtures.
func NewEmpty() *Store {
	return &Store{
		products:              map[string]domain.Product{},
		customers:             map[string]domain.Customer{},
		stock:                 map[string]domain.StockEntry{},
		salesByID:             map[string]*domain.Sale{},
		salesByIdem:           map[string]*domain.Sale{},
		drawersByID:           map[string]domain.DrawerSession{},
		activeDrawerByCashier: map[string]string{},
		usersByUsername:       map[string]domain.UserAccount{},
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.SKU]; exists {
		return nil, fmt.Errorf("product %s already exists", product.SKU)
	}
	s.products[product.SKU] = product
	created := product
	return &created, nil
}

func (s *Store) GetProductBySKU(_ context.Context, sku string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[sku]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := p
	return &found, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[product.SKU]; !ok {
		return nil, store.ErrNotFound
	}
	s.products[product.SKU] = product
	updated := product
	return &updated, nil
}

func (s *Store) GetProductsBySKUs(_ context.Context, skus []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.Product, len(skus))
	for _, sku := range skus {
		if p, ok := s.products[sku]; ok {
			out[sku] = p
		}
	}
	return out, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[customer.ID]; exists {
		return nil, fmt.Errorf("customer %s already exists", customer.ID)
	}
	s.customers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(_ context.Context, customerID string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[customerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := c
	return &found, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DebitCustomerCredit(_ context.Context, customerID string, amount money.Money) (money.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[customerID]
	if !ok {
		return money.Zero(), store.ErrNotFound
	}
	if amount.Cmp(c.CreditBalance) > 0 {
		return money.Zero(), &store.CreditShortage{
			CustomerID: customerID,
			Available:  c.CreditBalance,
			Requested:  amount,
		}
	}
	c.CreditBalance = c.CreditBalance.Sub(amount)
	s.customers[customerID] = c
	return c.CreditBalance, nil
}

func (s *Store) CreditCustomerCredit(_ context.Context, customerID string, amount money.Money) (money.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[customerID]
	if !ok {
		return money.Zero(), store.ErrNotFound
	}
	c.CreditBalance = c.CreditBalance.Add(amount)
	s.customers[customerID] = c
	return c.CreditBalance, nil
}

func (s *Store) GetStockEntry(_ context.Context, sku string, locationID string) (*domain.StockEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.stock[stockKey(sku, locationID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := entry
	return &found, nil
}

func (s *Store) SetStock(_ context.Context, entry domain.StockEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.QtyOnHand < 0 {
		return fmt.Errorf("stock for %s at %s must not be negative", entry.SKU, entry.LocationID)
	}
	s.stock[stockKey(entry.SKU, entry.LocationID)] = entry
	return nil
}

func (s *Store) DecrementStock(_ context.Context, sku string, locationID string, qty int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stockKey(sku, locationID)
	entry, ok := s.stock[key]
	if !ok || entry.QtyOnHand < qty {
		onHand := int64(0)
		if ok {
			onHand = entry.QtyOnHand
		}
		return &store.StockShortage{SKU: sku, LocationID: locationID, OnHand: onHand, Requested: qty}
	}
	entry.QtyOnHand -= qty
	s.stock[key] = entry
	return nil
}

func (s *Store) IncrementStock(_ context.Context, sku string, locationID string, qty int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stockKey(sku, locationID)
	entry, ok := s.stock[key]
	if !ok {
		entry = domain.StockEntry{SKU: sku, LocationID: locationID}
	}
	entry.QtyOnHand += qty
	s.stock[key] = entry
	return nil
}

func (s *Store) ListLowStock(_ context.Context, locationID string) ([]domain.StockEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.StockEntry
	for _, entry := range s.stock {
		if entry.LocationID == locationID && entry.QtyOnHand <= entry.ReorderThreshold {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

// CreateSale persists the sale and folds its tender contributions into
// the referenced drawer session under one lock, so a sale and its
// drawer accumulation are never observable apart.
func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.IdempotencyKey != "" {
		if existing, ok := s.salesByIdem[sale.IdempotencyKey]; ok {
			return cloneSale(existing), true, nil
		}
	}

	session, ok := s.drawersByID[sale.DrawerSessionID]
	if !ok {
		return nil, false, store.ErrDrawerNotFound
	}
	if session.Status != domain.DrawerStatusOpen {
		return nil, false, store.ErrDrawerClosed
	}

	for rail, amount := range sale.DrawerContributions() {
		session.TotalsByMethod[rail] = session.TotalsByMethod[rail].Add(amount)
	}
	session.SaleCount++
	s.drawersByID[session.ID] = session

	stored := cloneSale(&sale)
	s.salesByID[stored.ID] = stored
	if stored.IdempotencyKey != "" {
		s.salesByIdem[stored.IdempotencyKey] = stored
	}
	return cloneSale(stored), false, nil
}

func (s *Store) FindSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) FindSaleByIdempotency(_ context.Context, key string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByIdem[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) OpenDrawerSession(_ context.Context, session domain.DrawerSession) (*domain.DrawerSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, active := s.activeDrawerByCashier[session.CashierUsername]; active {
		return nil, store.ErrDrawerAlreadyOpen
	}
	if session.TotalsByMethod == nil {
		session.TotalsByMethod = map[string]money.Money{}
	}
	session.Status = domain.DrawerStatusOpen
	s.drawersByID[session.ID] = cloneDrawer(session)
	s.activeDrawerByCashier[session.CashierUsername] = session.ID
	opened := cloneDrawer(session)
	return &opened, nil
}

func (s *Store) GetDrawerSession(_ context.Context, sessionID string) (*domain.DrawerSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.drawersByID[sessionID]
	if !ok {
		return nil, store.ErrDrawerNotFound
	}
	found := cloneDrawer(session)
	return &found, nil
}

func (s *Store) GetActiveDrawerSession(_ context.Context, cashierUsername string) (*domain.DrawerSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessionID, ok := s.activeDrawerByCashier[cashierUsername]
	if !ok {
		return nil, store.ErrDrawerNotFound
	}
	session := cloneDrawer(s.drawersByID[sessionID])
	return &session, nil
}

func (s *Store) CloseDrawerSession(_ context.Context, sessionID string, countedCash money.Money, notes string, closedAt time.Time) (*domain.DrawerSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.drawersByID[sessionID]
	if !ok {
		return nil, store.ErrDrawerNotFound
	}
	if session.Status != domain.DrawerStatusOpen {
		return nil, store.ErrDrawerClosed
	}

	expected := session.OpeningFloat.Add(session.TotalsByMethod[domain.TenderCash])
	variance := countedCash.Sub(expected)

	session.Status = domain.DrawerStatusClosed
	session.ClosedAt = &closedAt
	session.CountedClose = &countedCash
	session.ExpectedClose = &expected
	session.Variance = &variance
	session.Notes = notes
	s.drawersByID[sessionID] = session
	delete(s.activeDrawerByCashier, session.CashierUsername)

	closed := cloneDrawer(session)
	return &closed, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, locationID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.AuditLog
	for i := len(s.auditLogs) - 1; i >= 0 && len(out) < limit; i-- {
		entry := s.auditLogs[i]
		if locationID != "" && entry.LocationID != locationID {
			continue
		}
		if entry.CreatedAt.Before(from) || entry.CreatedAt.After(to) {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if _, exists := s.usersByUsername[username]; exists {
		return fmt.Errorf("user %s already exists", username)
	}
	user.Username = username
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[strings.ToLower(username)]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[user.Username] = user
	return nil
}

func stockKey(sku string, locationID string) string {
	return sku + "|" + locationID
}

func cloneSale(src *domain.Sale) *domain.Sale {
	out := *src
	out.Items = append([]domain.SaleLine(nil), src.Items...)
	return &out
}

func cloneDrawer(src domain.DrawerSession) domain.DrawerSession {
	out := src
	out.TotalsByMethod = make(map[string]money.Money, len(src.TotalsByMethod))
	for k, v := range src.TotalsByMethod {
		out.TotalsByMethod[k] = v
	}
	return out
}
