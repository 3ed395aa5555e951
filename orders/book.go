/*
Package orders manages the order ledger that the loyalty engine reads.

PURPOSE:
  Checkout and the order history screen write the ledger: new sales,
  edits to items/customer/date, and deletions. The loyalty engine never
  creates or deletes orders; it only reads them (and rewrites identity on
  a customer rename). This package is that writing collaborator, plus the
  read-side listing and sales reports.

ORDER IDS:
  Orders are numbered ORD-<n> from a persisted counter that starts after
  4812. EnsureIDs backfills ids for orders written by older clients.

SEE ALSO:
  - query.go: Filter/search/sort/paginate for the history screen
  - report.go: Sales summary and trend series
  - loyalty/directory.go: Re-aggregates customers from this ledger
*/
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/streetmagic/pos-engine/loyalty"
	"github.com/streetmagic/pos-engine/metrics"
)

// FirstOrderNumber is the counter value before the first generated id.
const FirstOrderNumber = 4812

// IDPrefix marks generated order ids.
const IDPrefix = "ORD-"

var (
	// ErrOrderNotFound is returned when no order has the id.
	ErrOrderNotFound = errors.New("order not found")

	// ErrEmptyOrder is returned when creating an order with no items.
	ErrEmptyOrder = errors.New("order has no items")
)

// Store is the ledger persistence. The view WithTx hands out must also
// implement Counter, so an order number is only consumed when the write
// that uses it commits.
type Store interface {
	loyalty.TxStore

	// Reset clears the ledger, the directory and the order counter.
	Reset(ctx context.Context) error
}

// Counter allocates order numbers inside a transaction.
type Counter interface {
	// NextOrderNumber increments the persisted counter and returns it.
	NextOrderNumber(ctx context.Context) (int, error)
}

// ErrNoCounter is returned when a store's transaction view cannot
// allocate order numbers.
var ErrNoCounter = errors.New("store transaction has no order counter")

// Book writes the order ledger.
type Book struct {
	Store Store
	Now   func() time.Time

	log     *zap.Logger
	metrics *metrics.Metrics
	mu      sync.Mutex
}

// NewBook creates a Book. Nil logger and metrics are allowed.
func NewBook(store Store, log *zap.Logger, m *metrics.Metrics) *Book {
	if log == nil {
		log = zap.NewNop()
	}
	return &Book{
		Store:   store,
		Now:     time.Now,
		log:     log.Named("orders"),
		metrics: m,
	}
}

// FormatID renders an order number as an id.
func FormatID(n int) loyalty.OrderID {
	return loyalty.OrderID(fmt.Sprintf("%s%d", IDPrefix, n))
}

// Draft is a new order from checkout.
type Draft struct {
	Type          loyalty.OrderType
	Table         string
	CustomerName  string
	CustomerPhone string
	Items         []loyalty.LineItem
	Discount      decimal.Decimal
	// Total overrides the computed total when set.
	Total    *decimal.Decimal
	PlacedAt time.Time
}

// Create appends a new order and returns it.
func (b *Book) Create(ctx context.Context, d Draft) (loyalty.Order, error) {
	items := normalizeItems(d.Items)
	if len(items) == 0 {
		return loyalty.Order{}, ErrEmptyOrder
	}

	o := loyalty.Order{
		Type:          d.Type,
		Table:         strings.TrimSpace(d.Table),
		CustomerName:  strings.TrimSpace(d.CustomerName),
		CustomerPhone: strings.TrimSpace(d.CustomerPhone),
		Items:         items,
		Discount:      nonNegative(d.Discount),
		PlacedAt:      d.PlacedAt,
	}
	if o.Type == "" {
		o.Type = loyalty.OrderDineIn
	}
	if o.PlacedAt.IsZero() {
		o.PlacedAt = b.Now()
	}
	o.Subtotal = o.ItemsSubtotal()
	if d.Total != nil {
		o.Total = nonNegative(*d.Total)
	} else {
		o.Total = nonNegative(o.Subtotal.Sub(o.Discount))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.Store.WithTx(ctx, func(s loyalty.Store) error {
		id, err := nextID(ctx, s)
		if err != nil {
			return err
		}
		ledger, err := s.LoadOrders(ctx)
		if err != nil {
			return err
		}
		o.ID = id
		return s.SaveOrders(ctx, append(ledger, o))
	})
	if err != nil {
		return loyalty.Order{}, err
	}
	b.metrics.ObserveOrder("create")
	b.log.Info("order created",
		zap.String("id", string(o.ID)),
		zap.String("total", o.Total.StringFixed(2)),
		zap.Bool("has_customer", o.Phone() != ""))
	return o, nil
}

// Edit is a partial order edit. Nil fields are left unchanged.
type Edit struct {
	Items         []loyalty.LineItem
	CustomerName  *string
	CustomerPhone *string
	PlacedAt      *time.Time
}

// Update applies e to the order with id. Changing items recomputes
// subtotal and total, keeping the stored discount.
func (b *Book) Update(ctx context.Context, id loyalty.OrderID, e Edit) (loyalty.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var updated loyalty.Order
	err := b.Store.WithTx(ctx, func(s loyalty.Store) error {
		ledger, err := s.LoadOrders(ctx)
		if err != nil {
			return err
		}
		i := indexOf(ledger, id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
		}

		o := ledger[i]
		if e.Items != nil {
			o.Items = normalizeItems(e.Items)
			o.Subtotal = o.ItemsSubtotal()
			o.Total = nonNegative(o.Subtotal.Sub(o.Discount))
		}
		if e.CustomerName != nil {
			o.CustomerName = strings.TrimSpace(*e.CustomerName)
		}
		if e.CustomerPhone != nil {
			o.CustomerPhone = strings.TrimSpace(*e.CustomerPhone)
		}
		if e.PlacedAt != nil && !e.PlacedAt.IsZero() {
			o.PlacedAt = *e.PlacedAt
		}
		ledger[i] = o
		updated = o
		return s.SaveOrders(ctx, ledger)
	})
	if err != nil {
		return loyalty.Order{}, err
	}
	b.metrics.ObserveOrder("edit")
	b.log.Info("order edited", zap.String("id", string(id)))
	return updated, nil
}

// Delete removes the order with id.
func (b *Book) Delete(ctx context.Context, id loyalty.OrderID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.Store.WithTx(ctx, func(s loyalty.Store) error {
		ledger, err := s.LoadOrders(ctx)
		if err != nil {
			return err
		}
		i := indexOf(ledger, id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
		}
		return s.SaveOrders(ctx, append(ledger[:i], ledger[i+1:]...))
	})
	if err != nil {
		return err
	}
	b.metrics.ObserveOrder("delete")
	b.log.Info("order deleted", zap.String("id", string(id)))
	return nil
}

// Get returns the order with id.
func (b *Book) Get(ctx context.Context, id loyalty.OrderID) (loyalty.Order, error) {
	ledger, err := b.Store.LoadOrders(ctx)
	if err != nil {
		return loyalty.Order{}, err
	}
	i := indexOf(ledger, id)
	if i < 0 {
		return loyalty.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return ledger[i], nil
}

// All returns the whole ledger.
func (b *Book) All(ctx context.Context) ([]loyalty.Order, error) {
	return b.Store.LoadOrders(ctx)
}

// EnsureIDs gives every order without an ORD- id a fresh one and returns
// how many were assigned. Numbers and ledger are written in one
// transaction; nothing is written when all ids are valid.
func (b *Book) EnsureIDs(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	assigned := 0
	err := b.Store.WithTx(ctx, func(s loyalty.Store) error {
		ledger, err := s.LoadOrders(ctx)
		if err != nil {
			return err
		}
		for i := range ledger {
			if strings.HasPrefix(string(ledger[i].ID), IDPrefix) {
				continue
			}
			id, err := nextID(ctx, s)
			if err != nil {
				return err
			}
			ledger[i].ID = id
			assigned++
		}
		if assigned == 0 {
			return nil
		}
		return s.SaveOrders(ctx, ledger)
	})
	if err != nil {
		return 0, err
	}
	if assigned > 0 {
		b.log.Info("order ids backfilled", zap.Int("count", assigned))
	}
	return assigned, nil
}

func nextID(ctx context.Context, s loyalty.Store) (loyalty.OrderID, error) {
	c, ok := s.(Counter)
	if !ok {
		return "", ErrNoCounter
	}
	n, err := c.NextOrderNumber(ctx)
	if err != nil {
		return "", fmt.Errorf("allocate order id: %w", err)
	}
	return FormatID(n), nil
}

// IsNotFound reports whether err is ErrOrderNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound)
}

func indexOf(ledger []loyalty.Order, id loyalty.OrderID) int {
	for i, o := range ledger {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// normalizeItems trims names, forces quantity >= 1 and price >= 0.
func normalizeItems(items []loyalty.LineItem) []loyalty.LineItem {
	out := make([]loyalty.LineItem, 0, len(items))
	for _, it := range items {
		it.Name = strings.TrimSpace(it.Name)
		if it.Quantity <= 0 {
			it.Quantity = 1
		}
		it.UnitPrice = nonNegative(it.UnitPrice)
		out = append(out, it)
	}
	return out
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
