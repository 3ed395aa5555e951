package purchases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/streetmagic/pos-engine/loyalty"
	"github.com/streetmagic/pos-engine/metrics"
)

// Store persists the purchase log and the inventory together.
type Store interface {
	LoadStock(ctx context.Context) (Stock, error)

	// UpdateStock loads the stock, applies fn and saves the result
	// atomically. Nothing is saved when fn fails.
	UpdateStock(ctx context.Context, fn func(Stock) (Stock, error)) error
}

// Entry is a purchase as the client submits it.
type Entry struct {
	Item      string
	Category  string
	Quantity  int
	UnitPrice decimal.Decimal
	// Date defaults to now when zero.
	Date time.Time
}

// Register records purchases and keeps the inventory in step.
type Register struct {
	Store    Store
	Calendar loyalty.Calendar
	Now      func() time.Time

	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewRegister creates a Register. Nil logger and metrics are allowed.
func NewRegister(store Store, cal loyalty.Calendar, log *zap.Logger, m *metrics.Metrics) *Register {
	if log == nil {
		log = zap.NewNop()
	}
	return &Register{
		Store:    store,
		Calendar: cal,
		Now:      time.Now,
		log:      log.Named("purchases"),
		metrics:  m,
	}
}

func (r *Register) purchaseFrom(e Entry) (Purchase, error) {
	p := Purchase{
		Item:      strings.TrimSpace(e.Item),
		Category:  strings.TrimSpace(e.Category),
		Quantity:  e.Quantity,
		UnitPrice: e.UnitPrice,
		Date:      e.Date,
	}
	if p.Item == "" || p.Quantity < 1 || p.UnitPrice.IsNegative() {
		return Purchase{}, ErrInvalidPurchase
	}
	if p.Date.IsZero() {
		p.Date = r.Now()
	}
	return p, nil
}

// =============================================================================
// PURCHASE LOG
// =============================================================================

// Record logs a purchase and adds its quantity to the product.
func (r *Register) Record(ctx context.Context, e Entry) (Purchase, error) {
	p, err := r.purchaseFrom(e)
	if err != nil {
		return Purchase{}, err
	}
	p.ID = uuid.NewString()

	err = r.Store.UpdateStock(ctx, func(st Stock) (Stock, error) {
		st.Purchases = append(st.Purchases, p)
		st.adjust(p.Item, p.Quantity)
		return st, nil
	})
	if err != nil {
		return Purchase{}, err
	}
	r.metrics.ObserveCatalog("purchase", "create")
	r.log.Info("purchase recorded",
		zap.String("id", p.ID),
		zap.String("item", p.Item),
		zap.Int("qty", p.Quantity))
	return p, nil
}

// Edit replaces a purchase. The old quantity comes off the old product
// before the new quantity goes onto the new one.
func (r *Register) Edit(ctx context.Context, id string, e Entry) (Purchase, error) {
	p, err := r.purchaseFrom(e)
	if err != nil {
		return Purchase{}, err
	}
	p.ID = id

	err = r.Store.UpdateStock(ctx, func(st Stock) (Stock, error) {
		i := st.purchase(id)
		if i < 0 {
			return st, fmt.Errorf("%w: %s", ErrPurchaseNotFound, id)
		}
		old := st.Purchases[i]
		if e.Date.IsZero() {
			p.Date = old.Date
		}
		st.adjust(old.Item, -old.Quantity)
		st.adjust(p.Item, p.Quantity)
		st.Purchases[i] = p
		return st, nil
	})
	if err != nil {
		return Purchase{}, err
	}
	r.metrics.ObserveCatalog("purchase", "edit")
	return p, nil
}

// Delete removes a purchase and takes its quantity off the product.
func (r *Register) Delete(ctx context.Context, id string) error {
	err := r.Store.UpdateStock(ctx, func(st Stock) (Stock, error) {
		i := st.purchase(id)
		if i < 0 {
			return st, fmt.Errorf("%w: %s", ErrPurchaseNotFound, id)
		}
		old := st.Purchases[i]
		st.adjust(old.Item, -old.Quantity)
		st.Purchases = append(st.Purchases[:i], st.Purchases[i+1:]...)
		return st, nil
	})
	if err != nil {
		return err
	}
	r.metrics.ObserveCatalog("purchase", "delete")
	r.log.Info("purchase deleted", zap.String("id", id))
	return nil
}

// List returns the purchases matching f in log order.
func (r *Register) List(ctx context.Context, f Filter) ([]Purchase, error) {
	st, err := r.Store.LoadStock(ctx)
	if err != nil {
		return nil, err
	}
	return Select(st.Purchases, r.Calendar, f), nil
}

// Months lists the months that have purchases, most recent first.
func (r *Register) Months(ctx context.Context) ([]string, error) {
	st, err := r.Store.LoadStock(ctx)
	if err != nil {
		return nil, err
	}
	return Months(st.Purchases, r.Calendar), nil
}

// Summary returns the spend and stock dashboard as of now.
func (r *Register) Summary(ctx context.Context, now time.Time) (Summary, error) {
	st, err := r.Store.LoadStock(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(st, r.Calendar, now), nil
}

// Report groups the purchases matching f by category and item.
func (r *Register) Report(ctx context.Context, f Filter) (Report, error) {
	st, err := r.Store.LoadStock(ctx)
	if err != nil {
		return Report{}, err
	}
	return BuildReport(Select(st.Purchases, r.Calendar, f)), nil
}

// =============================================================================
// INVENTORY
// =============================================================================

// Products returns the inventory in creation order.
func (r *Register) Products(ctx context.Context) ([]Product, error) {
	st, err := r.Store.LoadStock(ctx)
	if err != nil {
		return nil, err
	}
	return st.Products, nil
}

// AddProduct adds an empty product. Adding an existing name returns it
// unchanged.
func (r *Register) AddProduct(ctx context.Context, name string) (Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Product{}, ErrInvalidProduct
	}

	var out Product
	err := r.Store.UpdateStock(ctx, func(st Stock) (Stock, error) {
		if i := st.product(name); i >= 0 {
			out = st.Products[i]
			return st, nil
		}
		out = Product{Name: name}
		st.Products = append(st.Products, out)
		return st, nil
	})
	if err != nil {
		return Product{}, err
	}
	r.metrics.ObserveCatalog("product", "create")
	return out, nil
}

// RenameProduct renames a product and every purchase of it.
func (r *Register) RenameProduct(ctx context.Context, oldName, newName string) (Product, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return Product{}, ErrInvalidProduct
	}

	var out Product
	err := r.Store.UpdateStock(ctx, func(st Stock) (Stock, error) {
		i := st.product(oldName)
		if i < 0 {
			return st, fmt.Errorf("%w: %s", ErrProductNotFound, oldName)
		}
		if newName == oldName {
			out = st.Products[i]
			return st, nil
		}
		if st.product(newName) >= 0 {
			return st, fmt.Errorf("%w: %s", ErrProductExists, newName)
		}
		st.Products[i].Name = newName
		for j := range st.Purchases {
			if st.Purchases[j].Item == oldName {
				st.Purchases[j].Item = newName
			}
		}
		out = st.Products[i]
		return st, nil
	})
	if err != nil {
		return Product{}, err
	}
	r.metrics.ObserveCatalog("product", "rename")
	r.log.Info("product renamed", zap.String("from", oldName), zap.String("to", newName))
	return out, nil
}

// ResetInventory zeroes every count. The purchase log is kept.
func (r *Register) ResetInventory(ctx context.Context) error {
	err := r.Store.UpdateStock(ctx, func(st Stock) (Stock, error) {
		for i := range st.Products {
			st.Products[i].Units = 0
		}
		return st, nil
	})
	if err != nil {
		return err
	}
	r.metrics.ObserveCatalog("product", "reset")
	r.log.Info("inventory reset")
	return nil
}
