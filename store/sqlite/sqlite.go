/*
Package sqlite provides a SQLite-backed implementation of the loyalty store.

PURPOSE:
  Persists the order ledger, the customer directory and the order id
  counter. The server uses it; tests of the engine use the in-memory
  store in loyalty/store.

INTERFACES IMPLEMENTED:
  loyalty.Store:    Whole-collection load/save
  loyalty.TxStore:  Atomic multi-collection writes (rename)
  orders.Store:     Adds the persisted order id counter
  menu.Store:       Menu items
  purchases.Store:  Purchase log and inventory counts

WHOLE-COLLECTION SEMANTICS:
  Save replaces the collection: DELETE then INSERT inside one database
  transaction. Row order is kept in a seq column so Load returns the
  collection in the order it was saved (the ledger order matters for
  "last name wins" and "first max wins").

KEY TABLES:
  orders:     One row per order; line items as JSON
  customers:  One row per directory entry; phone is unique
  counters:   Named integer counters (last_order_number)
  menu_items: One row per menu item; variants as JSON
  purchases:  One row per purchase
  inventory:  One row per product; name is unique

MONEY:
  Decimal columns are TEXT holding the decimal string, never REAL.
  Unparseable values read back as zero.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, so ":memory:"
  databases are shared by every call.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/pos.db", sqlite.WithFirstOrderNumber(orders.FirstOrderNumber))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  dir := loyalty.NewDirectory(store, cal, logger, m)

SEE ALSO:
  - loyalty/store.go: Interface definitions
  - loyalty/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/streetmagic/pos-engine/loyalty"
	"github.com/streetmagic/pos-engine/menu"
	"github.com/streetmagic/pos-engine/purchases"
)

const counterLastOrder = "last_order_number"

// Store implements the loyalty storage interfaces using SQLite.
type Store struct {
	db        *sql.DB
	mu        sync.RWMutex
	orderBase int
}

// Option configures a Store.
type Option func(*Store)

// WithFirstOrderNumber sets the counter value the first generated order
// number continues from.
func WithFirstOrderNumber(n int) Option {
	return func(s *Store) { s.orderBase = n }
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		seq INTEGER PRIMARY KEY,
		id TEXT NOT NULL DEFAULT '',
		order_type TEXT NOT NULL DEFAULT '',
		table_no TEXT NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL DEFAULT '',
		customer_phone TEXT NOT NULL DEFAULT '',
		items_json TEXT NOT NULL DEFAULT '[]',
		subtotal TEXT NOT NULL DEFAULT '0',
		discount TEXT NOT NULL DEFAULT '0',
		total TEXT NOT NULL DEFAULT '0',
		placed_at TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_orders_id ON orders(id);
	CREATE INDEX IF NOT EXISTS idx_orders_phone ON orders(customer_phone);

	CREATE TABLE IF NOT EXISTS customers (
		seq INTEGER PRIMARY KEY,
		phone TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		total_orders INTEGER NOT NULL DEFAULT 0,
		total_amount TEXT NOT NULL DEFAULT '0',
		redeemed INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS counters (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS menu_items (
		seq INTEGER PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		subcategory TEXT NOT NULL DEFAULT '',
		variants_json TEXT NOT NULL DEFAULT '[]',
		price TEXT NOT NULL DEFAULT '0'
	);

	CREATE TABLE IF NOT EXISTS purchases (
		seq INTEGER PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		item TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		qty INTEGER NOT NULL DEFAULT 0,
		unit_price TEXT NOT NULL DEFAULT '0',
		purchased_at TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS inventory (
		seq INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		units INTEGER NOT NULL DEFAULT 0
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ORDERS
// =============================================================================

// LoadOrders returns the ledger in saved order.
func (s *Store) LoadOrders(ctx context.Context) ([]loyalty.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return loadOrders(ctx, s.db)
}

// SaveOrders replaces the ledger.
func (s *Store) SaveOrders(ctx context.Context, orders []loyalty.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(q querier) error { return saveOrders(ctx, q, orders) })
}

func loadOrders(ctx context.Context, q querier) ([]loyalty.Order, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_type, table_no, customer_name, customer_phone,
		       items_json, subtotal, discount, total, placed_at
		FROM orders ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []loyalty.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func scanOrder(rows *sql.Rows) (loyalty.Order, error) {
	var (
		o         loyalty.Order
		orderType string
		itemsJSON string
		subtotal  string
		discount  string
		total     string
		placedAt  string
	)

	err := rows.Scan(
		&o.ID, &orderType, &o.Table, &o.CustomerName, &o.CustomerPhone,
		&itemsJSON, &subtotal, &discount, &total, &placedAt,
	)
	if err != nil {
		return o, fmt.Errorf("failed to scan order: %w", err)
	}

	o.Type = loyalty.OrderType(orderType)
	o.Subtotal = loyalty.ParseAmount(subtotal)
	o.Discount = loyalty.ParseAmount(discount)
	o.Total = loyalty.ParseAmount(total)
	o.PlacedAt = parseTime(placedAt)
	if err := json.Unmarshal([]byte(itemsJSON), &o.Items); err != nil {
		return o, fmt.Errorf("failed to decode items of order %q: %w", o.ID, err)
	}
	if o.Items == nil {
		o.Items = []loyalty.LineItem{}
	}
	return o, nil
}

func saveOrders(ctx context.Context, q querier, orders []loyalty.Order) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM orders"); err != nil {
		return fmt.Errorf("failed to clear orders: %w", err)
	}

	query := `
		INSERT INTO orders
		(seq, id, order_type, table_no, customer_name, customer_phone,
		 items_json, subtotal, discount, total, placed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, o := range orders {
		items := o.Items
		if items == nil {
			items = []loyalty.LineItem{}
		}
		itemsJSON, err := json.Marshal(items)
		if err != nil {
			return fmt.Errorf("failed to encode items of order %q: %w", o.ID, err)
		}
		_, err = q.ExecContext(ctx, query,
			i,
			string(o.ID),
			string(o.Type),
			o.Table,
			o.CustomerName,
			o.CustomerPhone,
			string(itemsJSON),
			o.Subtotal.String(),
			o.Discount.String(),
			o.Total.String(),
			formatTime(o.PlacedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert order %q: %w", o.ID, err)
		}
	}
	return nil
}

// =============================================================================
// CUSTOMERS
// =============================================================================

// LoadCustomers returns the directory in saved order.
func (s *Store) LoadCustomers(ctx context.Context) ([]loyalty.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return loadCustomers(ctx, s.db)
}

// SaveCustomers replaces the directory.
func (s *Store) SaveCustomers(ctx context.Context, customers []loyalty.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(q querier) error { return saveCustomers(ctx, q, customers) })
}

func loadCustomers(ctx context.Context, q querier) ([]loyalty.Customer, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT phone, name, total_orders, total_amount, redeemed
		FROM customers ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	customers := []loyalty.Customer{}
	for rows.Next() {
		var (
			c      loyalty.Customer
			amount string
		)
		if err := rows.Scan(&c.Phone, &c.Name, &c.TotalOrders, &amount, &c.Redeemed); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		c.TotalAmount = loyalty.ParseAmount(amount)
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func saveCustomers(ctx context.Context, q querier, customers []loyalty.Customer) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM customers"); err != nil {
		return fmt.Errorf("failed to clear customers: %w", err)
	}

	query := `
		INSERT INTO customers (seq, phone, name, total_orders, total_amount, redeemed)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for i, c := range customers {
		_, err := q.ExecContext(ctx, query,
			i, c.Phone, c.Name, c.TotalOrders, c.TotalAmount.String(), c.Redeemed)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: %s", loyalty.ErrCustomerExists, c.Phone)
			}
			return fmt.Errorf("failed to insert customer %q: %w", c.Phone, err)
		}
	}
	return nil
}

// =============================================================================
// ORDER ID COUNTER
// =============================================================================

// nextOrderNumber increments the persisted order counter and returns it.
// A fresh database continues from base.
func nextOrderNumber(ctx context.Context, q querier, base int) (int, error) {
	var current int
	err := q.QueryRowContext(ctx, "SELECT value FROM counters WHERE name = ?", counterLastOrder).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		current = base
	case err != nil:
		return 0, fmt.Errorf("failed to read order counter: %w", err)
	}
	next := current + 1
	_, err = q.ExecContext(ctx, `
		INSERT INTO counters (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, counterLastOrder, next)
	if err != nil {
		return 0, fmt.Errorf("failed to advance order counter: %w", err)
	}
	return next, nil
}

// =============================================================================
// MENU
// =============================================================================

// LoadMenu returns the menu in saved order.
func (s *Store) LoadMenu(ctx context.Context) ([]menu.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return loadMenu(ctx, s.db)
}

// UpdateMenu applies fn to the menu and saves the result in one transaction.
func (s *Store) UpdateMenu(ctx context.Context, fn func([]menu.Item) ([]menu.Item, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(q querier) error {
		items, err := loadMenu(ctx, q)
		if err != nil {
			return err
		}
		next, err := fn(items)
		if err != nil {
			return err
		}
		return saveMenu(ctx, q, next)
	})
}

func loadMenu(ctx context.Context, q querier) ([]menu.Item, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, category, subcategory, variants_json, price
		FROM menu_items ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query menu: %w", err)
	}
	defer rows.Close()

	items := []menu.Item{}
	for rows.Next() {
		var (
			it           menu.Item
			variantsJSON string
			price        string
		)
		if err := rows.Scan(&it.ID, &it.Name, &it.Category, &it.Subcategory, &variantsJSON, &price); err != nil {
			return nil, fmt.Errorf("failed to scan menu item: %w", err)
		}
		if err := json.Unmarshal([]byte(variantsJSON), &it.Variants); err != nil {
			return nil, fmt.Errorf("failed to decode variants of %q: %w", it.ID, err)
		}
		if it.Variants == nil {
			it.Variants = []menu.Variant{}
		}
		it.Price = loyalty.ParseAmount(price)
		items = append(items, it)
	}
	return items, rows.Err()
}

func saveMenu(ctx context.Context, q querier, items []menu.Item) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM menu_items"); err != nil {
		return fmt.Errorf("failed to clear menu: %w", err)
	}

	query := `
		INSERT INTO menu_items (seq, id, name, category, subcategory, variants_json, price)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for i, it := range items {
		variants := it.Variants
		if variants == nil {
			variants = []menu.Variant{}
		}
		variantsJSON, err := json.Marshal(variants)
		if err != nil {
			return fmt.Errorf("failed to encode variants of %q: %w", it.ID, err)
		}
		_, err = q.ExecContext(ctx, query,
			i, it.ID, it.Name, it.Category, it.Subcategory, string(variantsJSON), it.Price.String())
		if err != nil {
			return fmt.Errorf("failed to insert menu item %q: %w", it.ID, err)
		}
	}
	return nil
}

// =============================================================================
// PURCHASES AND INVENTORY
// =============================================================================

// LoadStock returns the purchase log and inventory.
func (s *Store) LoadStock(ctx context.Context) (purchases.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return loadStock(ctx, s.db)
}

// UpdateStock applies fn to the stock and saves the result in one
// transaction.
func (s *Store) UpdateStock(ctx context.Context, fn func(purchases.Stock) (purchases.Stock, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(q querier) error {
		st, err := loadStock(ctx, q)
		if err != nil {
			return err
		}
		next, err := fn(st)
		if err != nil {
			return err
		}
		return saveStock(ctx, q, next)
	})
}

func loadStock(ctx context.Context, q querier) (purchases.Stock, error) {
	st := purchases.Stock{Products: []purchases.Product{}, Purchases: []purchases.Purchase{}}

	rows, err := q.QueryContext(ctx, "SELECT name, units FROM inventory ORDER BY seq")
	if err != nil {
		return st, fmt.Errorf("failed to query inventory: %w", err)
	}
	for rows.Next() {
		var p purchases.Product
		if err := rows.Scan(&p.Name, &p.Units); err != nil {
			rows.Close()
			return st, fmt.Errorf("failed to scan product: %w", err)
		}
		st.Products = append(st.Products, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return st, err
	}

	rows, err = q.QueryContext(ctx, `
		SELECT id, item, category, qty, unit_price, purchased_at
		FROM purchases ORDER BY seq
	`)
	if err != nil {
		return st, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			p           purchases.Purchase
			price, date string
		)
		if err := rows.Scan(&p.ID, &p.Item, &p.Category, &p.Quantity, &price, &date); err != nil {
			return st, fmt.Errorf("failed to scan purchase: %w", err)
		}
		p.UnitPrice = loyalty.ParseAmount(price)
		p.Date = parseTime(date)
		st.Purchases = append(st.Purchases, p)
	}
	return st, rows.Err()
}

func saveStock(ctx context.Context, q querier, st purchases.Stock) error {
	for _, table := range []string{"inventory", "purchases"} {
		if _, err := q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for i, p := range st.Products {
		_, err := q.ExecContext(ctx,
			"INSERT INTO inventory (seq, name, units) VALUES (?, ?, ?)", i, p.Name, p.Units)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: %s", purchases.ErrProductExists, p.Name)
			}
			return fmt.Errorf("failed to insert product %q: %w", p.Name, err)
		}
	}

	query := `
		INSERT INTO purchases (seq, id, item, category, qty, unit_price, purchased_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for i, p := range st.Purchases {
		_, err := q.ExecContext(ctx, query,
			i, p.ID, p.Item, p.Category, p.Quantity, p.UnitPrice.String(), formatTime(p.Date))
		if err != nil {
			return fmt.Errorf("failed to insert purchase %q: %w", p.ID, err)
		}
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (loyalty.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store loyalty.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(q querier) error {
		return fn(&txStore{tx: q, orderBase: s.orderBase})
	})
}

// inTx runs fn in a database transaction. Callers hold s.mu.
func (s *Store) inTx(ctx context.Context, fn func(querier) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore reads and writes through the open transaction.
type txStore struct {
	tx        querier
	orderBase int
}

func (ts *txStore) LoadOrders(ctx context.Context) ([]loyalty.Order, error) {
	return loadOrders(ctx, ts.tx)
}

func (ts *txStore) SaveOrders(ctx context.Context, orders []loyalty.Order) error {
	return saveOrders(ctx, ts.tx, orders)
}

// NextOrderNumber advances the counter in the same transaction, so a
// rolled-back write gives its number back.
func (ts *txStore) NextOrderNumber(ctx context.Context) (int, error) {
	return nextOrderNumber(ctx, ts.tx, ts.orderBase)
}

func (ts *txStore) LoadCustomers(ctx context.Context) ([]loyalty.Customer, error) {
	return loadCustomers(ctx, ts.tx)
}

func (ts *txStore) SaveCustomers(ctx context.Context, customers []loyalty.Customer) error {
	return saveCustomers(ctx, ts.tx, customers)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears orders, customers and the order counter. Menu and stock
// are kept.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(q querier) error {
		for _, table := range []string{"orders", "customers", "counters"} {
			if _, err := q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

// parseTime accepts RFC 3339 and bare dates; anything else is the zero time.
func parseTime(v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t
	}
	if t, err := time.Parse(loyalty.DateKeyLayout, v); err == nil {
		return t
	}
	return time.Time{}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
