package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"lokapos/backend/internal/domain"
	"lokapos/backend/internal/money"
	"lokapos/backend/internal/store"
	"lokapos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, name, category, unit_price, active
		FROM products
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.SKU, &p.Name, &p.Category, &p.UnitPrice, &p.Active); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.SKU == "" || product.Name == "" || !product.UnitPrice.IsPositive() {
		return nil, store.ErrInvalidSettlement
	}

	product.Active = true
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (sku, name, category, unit_price, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now(),now())
	`, product.SKU, product.Name, product.Category, product.UnitPrice, product.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidSettlement
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	var product domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT sku, name, category, unit_price, active
		FROM products
		WHERE sku = $1
	`, sku).Scan(&product.SKU, &product.Name, &product.Category, &product.UnitPrice, &product.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.SKU == "" || product.Name == "" || !product.UnitPrice.IsPositive() {
		return nil, store.ErrInvalidSettlement
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, unit_price = $4, active = $5, updated_at = now()
		WHERE sku = $1
	`, product.SKU, product.Name, product.Category, product.UnitPrice, product.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := product
	return &updated, nil
}

func (s *Store) GetProductsBySKUs(ctx context.Context, skus []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(skus))
	if len(skus) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, name, category, unit_price, active
		FROM products
		WHERE sku = ANY($1)
	`, skus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.SKU, &p.Name, &p.Category, &p.UnitPrice, &p.Active); err != nil {
			return nil, err
		}
		result[p.SKU] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" || customer.CreditBalance.IsNegative() {
		return nil, store.ErrInvalidSettlement
	}
	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, credit_balance, created_at, updated_at)
		VALUES ($1,$2,$3,$4,now())
	`, customer.ID, customer.Name, customer.CreditBalance, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidSettlement
		}
		return nil, err
	}
	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, customerID string) (*domain.Customer, error) {
	var customer domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, credit_balance, created_at
		FROM customers
		WHERE id = $1
	`, customerID).Scan(&customer.ID, &customer.Name, &customer.CreditBalance, &customer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	customer.CreatedAt = customer.CreatedAt.UTC()
	return &customer, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, credit_balance, created_at
		FROM customers
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var customer domain.Customer
		if err := rows.Scan(&customer.ID, &customer.Name, &customer.CreditBalance, &customer.CreatedAt); err != nil {
			return nil, err
		}
		customer.CreatedAt = customer.CreatedAt.UTC()
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) DebitCustomerCredit(ctx context.Context, customerID string, amount money.Money) (money.Money, error) {
	if amount.IsNegative() {
		return money.Zero(), store.ErrInvalidSettlement
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return money.Zero(), err
	}
	defer func() { _ = tx.Rollback() }()

	var balance money.Money
	err = tx.QueryRowContext(ctx, `
		SELECT credit_balance
		FROM customers
		WHERE id = $1
		FOR UPDATE
	`, customerID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return money.Zero(), store.ErrNotFound
		}
		return money.Zero(), err
	}

	if balance.Cmp(amount) < 0 {
		return money.Zero(), &store.CreditShortage{
			CustomerID: customerID,
			Available:  balance,
			Requested:  amount,
		}
	}

	next := balance.Sub(amount)
	_, err = tx.ExecContext(ctx, `
		UPDATE customers
		SET credit_balance = $2, updated_at = now()
		WHERE id = $1
	`, customerID, next)
	if err != nil {
		return money.Zero(), err
	}

	if err := tx.Commit(); err != nil {
		return money.Zero(), err
	}
	return next, nil
}

func (s *Store) CreditCustomerCredit(ctx context.Context, customerID string, amount money.Money) (money.Money, error) {
	if amount.IsNegative() {
		return money.Zero(), store.ErrInvalidSettlement
	}

	var next money.Money
	err := s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET credit_balance = credit_balance + $2, updated_at = now()
		WHERE id = $1
		RETURNING credit_balance
	`, customerID, amount).Scan(&next)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return money.Zero(), store.ErrNotFound
		}
		return money.Zero(), err
	}
	return next, nil
}

func (s *Store) GetStockEntry(ctx context.Context, sku string, locationID string) (*domain.StockEntry, error) {
	var entry domain.StockEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT sku, location_id, qty_on_hand, reorder_threshold
		FROM stock_entries
		WHERE sku = $1 AND location_id = $2
	`, sku, locationID).Scan(&entry.SKU, &entry.LocationID, &entry.QtyOnHand, &entry.ReorderThreshold)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (s *Store) SetStock(ctx context.Context, entry domain.StockEntry) error {
	if entry.SKU == "" || entry.LocationID == "" || entry.QtyOnHand < 0 || entry.ReorderThreshold < 0 {
		return store.ErrInvalidSettlement
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_entries (sku, location_id, qty_on_hand, reorder_threshold, updated_at)
		VALUES ($1,$2,$3,$4,now())
		ON CONFLICT (sku, location_id)
		DO UPDATE SET qty_on_hand = EXCLUDED.qty_on_hand, reorder_threshold = EXCLUDED.reorder_threshold, updated_at = now()
	`, entry.SKU, entry.LocationID, entry.QtyOnHand, entry.ReorderThreshold)
	return err
}

func (s *Store) DecrementStock(ctx context.Context, sku string, locationID string, qty int64) error {
	if qty < 1 {
		return store.ErrInvalidSettlement
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var onHand int64
	err = tx.QueryRowContext(ctx, `
		SELECT qty_on_hand
		FROM stock_entries
		WHERE sku = $1 AND location_id = $2
		FOR UPDATE
	`, sku, locationID).Scan(&onHand)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &store.StockShortage{SKU: sku, LocationID: locationID, OnHand: 0, Requested: qty}
		}
		return err
	}
	if onHand < qty {
		return &store.StockShortage{SKU: sku, LocationID: locationID, OnHand: onHand, Requested: qty}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE stock_entries
		SET qty_on_hand = qty_on_hand - $3, updated_at = now()
		WHERE sku = $1 AND location_id = $2
	`, sku, locationID, qty)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) IncrementStock(ctx context.Context, sku string, locationID string, qty int64) error {
	if qty < 1 {
		return store.ErrInvalidSettlement
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_entries (sku, location_id, qty_on_hand, reorder_threshold, updated_at)
		VALUES ($1,$2,$3,0,now())
		ON CONFLICT (sku, location_id)
		DO UPDATE SET qty_on_hand = stock_entries.qty_on_hand + EXCLUDED.qty_on_hand, updated_at = now()
	`, sku, locationID, qty)
	return err
}

func (s *Store) ListLowStock(ctx context.Context, locationID string) ([]domain.StockEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, location_id, qty_on_hand, reorder_threshold
		FROM stock_entries
		WHERE ($1 = '' OR location_id = $1)
			AND qty_on_hand <= reorder_threshold
		ORDER BY location_id, sku
	`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.StockEntry, 0, 32)
	for rows.Next() {
		var entry domain.StockEntry
		if err := rows.Scan(&entry.SKU, &entry.LocationID, &entry.QtyOnHand, &entry.ReorderThreshold); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// CreateSale inserts the sale and folds its tender contributions into the
// open drawer session inside one transaction. The idempotency key is
// optional; an empty key is stored as NULL so the partial unique index on
// sales(idempotency_key) never collides on keyless sales. A replayed key
// returns the stored sale with replayed=true and rolls back, so the
// drawer is never folded twice.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, bool, error) {
	if len(sale.Items) == 0 {
		return nil, false, store.ErrInvalidSettlement
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.Status == "" {
		sale.Status = domain.SaleStatusCompleted
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var drawerStatus string
	var totalsRaw []byte
	var saleCount int64
	err = pgTx.QueryRowContext(ctx, `
		SELECT status, totals_by_method, sale_count
		FROM drawer_sessions
		WHERE id = $1
		FOR UPDATE
	`, sale.DrawerSessionID).Scan(&drawerStatus, &totalsRaw, &saleCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, store.ErrDrawerNotFound
		}
		return nil, false, err
	}
	if drawerStatus != domain.DrawerStatusOpen {
		return nil, false, store.ErrDrawerClosed
	}

	totals := make(map[string]money.Money, 4)
	if len(totalsRaw) > 0 {
		if err := json.Unmarshal(totalsRaw, &totals); err != nil {
			return nil, false, err
		}
	}
	for rail, amount := range sale.DrawerContributions() {
		totals[rail] = totals[rail].Add(amount)
	}
	totalsJSON, err := json.Marshal(totals)
	if err != nil {
		return nil, false, err
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (
			id, location_id, fulfilling_location_id, drawer_session_id, idempotency_key,
			buyer_name, customer_id, cashier_username, method, other_method, other_reference,
			gross_total, credit_applied, net_due, tendered_cash, tendered_other,
			change_due, credit_top_up, overpayment, status, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`, sale.ID, sale.LocationID, sale.FulfillingLocationID, sale.DrawerSessionID, nullIfEmpty(sale.IdempotencyKey),
		nullIfEmpty(sale.BuyerName), nullIfEmpty(sale.CustomerID), sale.CashierUsername, sale.Method,
		nullIfEmpty(sale.OtherMethod), nullIfEmpty(sale.OtherReference),
		sale.GrossTotal, sale.CreditApplied, sale.NetDue, sale.TenderedCash, sale.TenderedOther,
		sale.ChangeDue, sale.CreditTopUp, sale.Overpayment, sale.Status, sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) && sale.IdempotencyKey != "" {
			existing, lookupErr := s.FindSaleByIdempotency(ctx, sale.IdempotencyKey)
			if lookupErr == nil {
				return existing, true, nil
			}
		}
		return nil, false, err
	}

	for _, item := range sale.Items {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, sku, qty, unit_price, subtotal)
			VALUES ($1,$2,$3,$4,$5)
		`, sale.ID, item.SKU, item.Qty, item.UnitPrice, item.Subtotal)
		if err != nil {
			return nil, false, err
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE drawer_sessions
		SET totals_by_method = $2, sale_count = $3, updated_at = now()
		WHERE id = $1
	`, sale.DrawerSessionID, totalsJSON, saleCount+1)
	if err != nil {
		return nil, false, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, false, err
	}

	return &sale, false, nil
}

func (s *Store) FindSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	return s.findSale(ctx, "id", id)
}

func (s *Store) FindSaleByIdempotency(ctx context.Context, key string) (*domain.Sale, error) {
	return s.findSale(ctx, "idempotency_key", key)
}

func (s *Store) findSale(ctx context.Context, column string, value string) (*domain.Sale, error) {
	if column != "id" && column != "idempotency_key" {
		return nil, errors.New("unsupported lookup column")
	}

	var sale domain.Sale
	var buyerName sql.NullString
	var customerID sql.NullString
	var otherMethod sql.NullString
	var otherReference sql.NullString

	query := `
		SELECT id, location_id, fulfilling_location_id, drawer_session_id, idempotency_key,
			buyer_name, customer_id, cashier_username, method, other_method, other_reference,
			gross_total, credit_applied, net_due, tendered_cash, tendered_other,
			change_due, credit_top_up, overpayment, status, created_at
		FROM sales
		WHERE ` + column + ` = $1
	`

	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&sale.ID,
		&sale.LocationID,
		&sale.FulfillingLocationID,
		&sale.DrawerSessionID,
		&sale.IdempotencyKey,
		&buyerName,
		&customerID,
		&sale.CashierUsername,
		&sale.Method,
		&otherMethod,
		&otherReference,
		&sale.GrossTotal,
		&sale.CreditApplied,
		&sale.NetDue,
		&sale.TenderedCash,
		&sale.TenderedOther,
		&sale.ChangeDue,
		&sale.CreditTopUp,
		&sale.Overpayment,
		&sale.Status,
		&sale.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if buyerName.Valid {
		sale.BuyerName = buyerName.String
	}
	if customerID.Valid {
		sale.CustomerID = customerID.String
	}
	if otherMethod.Valid {
		sale.OtherMethod = otherMethod.String
	}
	if otherReference.Valid {
		sale.OtherReference = otherReference.String
	}
	sale.CreatedAt = sale.CreatedAt.UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, qty, unit_price, subtotal
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id ASC
	`, sale.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleLine, 0, 8)
	for rows.Next() {
		var item domain.SaleLine
		if err := rows.Scan(&item.SKU, &item.Qty, &item.UnitPrice, &item.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sale.Items = items

	return &sale, nil
}

// OpenDrawerSession relies on a partial unique index over
// (cashier_username) WHERE status = 'open' to enforce one open session
// per cashier.
func (s *Store) OpenDrawerSession(ctx context.Context, session domain.DrawerSession) (*domain.DrawerSession, error) {
	if strings.TrimSpace(session.CashierUsername) == "" || strings.TrimSpace(session.LocationID) == "" {
		return nil, store.ErrInvalidSettlement
	}
	if session.OpeningFloat.IsNegative() {
		return nil, store.ErrInvalidSettlement
	}
	if session.ID == "" {
		session.ID = xid.New("drw")
	}
	if session.OpenedAt.IsZero() {
		session.OpenedAt = time.Now().UTC()
	}
	session.Status = domain.DrawerStatusOpen
	if session.TotalsByMethod == nil {
		session.TotalsByMethod = make(map[string]money.Money)
	}

	totalsJSON, err := json.Marshal(session.TotalsByMethod)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO drawer_sessions (
			id, location_id, cashier_username, opening_float, totals_by_method,
			sale_count, status, opened_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
	`, session.ID, session.LocationID, session.CashierUsername, session.OpeningFloat,
		totalsJSON, session.SaleCount, session.Status, session.OpenedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDrawerAlreadyOpen
		}
		return nil, err
	}
	saved := session
	return &saved, nil
}

func (s *Store) GetDrawerSession(ctx context.Context, sessionID string) (*domain.DrawerSession, error) {
	return s.findDrawerSession(ctx, `id = $1`, sessionID)
}

func (s *Store) GetActiveDrawerSession(ctx context.Context, cashierUsername string) (*domain.DrawerSession, error) {
	session, err := s.findDrawerSession(ctx, `cashier_username = $1 AND status = 'open'`, cashierUsername)
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.ErrDrawerNotFound
	}
	return session, err
}

func (s *Store) findDrawerSession(ctx context.Context, where string, value string) (*domain.DrawerSession, error) {
	var session domain.DrawerSession
	var totalsRaw []byte
	var closedAt sql.NullTime
	var counted, expected, variance sql.NullString
	var notes sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, location_id, cashier_username, opening_float, totals_by_method,
			sale_count, status, opened_at, closed_at, counted_close, expected_close,
			variance, notes
		FROM drawer_sessions
		WHERE `+where+`
		ORDER BY opened_at DESC
		LIMIT 1
	`, value).Scan(
		&session.ID,
		&session.LocationID,
		&session.CashierUsername,
		&session.OpeningFloat,
		&totalsRaw,
		&session.SaleCount,
		&session.Status,
		&session.OpenedAt,
		&closedAt,
		&counted,
		&expected,
		&variance,
		&notes,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	session.OpenedAt = session.OpenedAt.UTC()
	if len(totalsRaw) > 0 {
		if err := json.Unmarshal(totalsRaw, &session.TotalsByMethod); err != nil {
			return nil, err
		}
	}
	if session.TotalsByMethod == nil {
		session.TotalsByMethod = make(map[string]money.Money)
	}
	if closedAt.Valid {
		at := closedAt.Time.UTC()
		session.ClosedAt = &at
	}
	if counted.Valid {
		amount, err := money.Parse(counted.String)
		if err != nil {
			return nil, err
		}
		session.CountedClose = &amount
	}
	if expected.Valid {
		amount, err := money.Parse(expected.String)
		if err != nil {
			return nil, err
		}
		session.ExpectedClose = &amount
	}
	if variance.Valid {
		amount, err := money.Parse(variance.String)
		if err != nil {
			return nil, err
		}
		session.Variance = &amount
	}
	if notes.Valid {
		session.Notes = notes.String
	}
	return &session, nil
}

func (s *Store) CloseDrawerSession(ctx context.Context, sessionID string, countedCash money.Money, notes string, closedAt time.Time) (*domain.DrawerSession, error) {
	if countedCash.IsNegative() {
		return nil, store.ErrInvalidSettlement
	}
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var session domain.DrawerSession
	var totalsRaw []byte
	err = pgTx.QueryRowContext(ctx, `
		SELECT id, location_id, cashier_username, opening_float, totals_by_method,
			sale_count, status, opened_at
		FROM drawer_sessions
		WHERE id = $1
		FOR UPDATE
	`, sessionID).Scan(
		&session.ID,
		&session.LocationID,
		&session.CashierUsername,
		&session.OpeningFloat,
		&totalsRaw,
		&session.SaleCount,
		&session.Status,
		&session.OpenedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrDrawerNotFound
		}
		return nil, err
	}
	if session.Status != domain.DrawerStatusOpen {
		return nil, store.ErrDrawerClosed
	}
	if len(totalsRaw) > 0 {
		if err := json.Unmarshal(totalsRaw, &session.TotalsByMethod); err != nil {
			return nil, err
		}
	}
	if session.TotalsByMethod == nil {
		session.TotalsByMethod = make(map[string]money.Money)
	}

	expected := session.OpeningFloat.Add(session.TotalsByMethod[domain.TenderCash])
	variance := countedCash.Sub(expected)

	_, err = pgTx.ExecContext(ctx, `
		UPDATE drawer_sessions
		SET status = $2, counted_close = $3, expected_close = $4, variance = $5,
			notes = $6, closed_at = $7, updated_at = now()
		WHERE id = $1
	`, sessionID, domain.DrawerStatusClosed, countedCash, expected, variance, notes, closedAt)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	session.OpenedAt = session.OpenedAt.UTC()
	session.Status = domain.DrawerStatusClosed
	session.CountedClose = &countedCash
	session.ExpectedClose = &expected
	session.Variance = &variance
	session.Notes = notes
	at := closedAt.UTC()
	session.ClosedAt = &at
	return &session, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, location_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.LocationID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, locationID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, location_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE ($1 = '' OR location_id = $1)
			AND created_at >= $2
			AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, locationID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.LocationID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidSettlement
	}
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidSettlement
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidSettlement
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
