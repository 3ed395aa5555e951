package menu

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/streetmagic/pos-engine/loyalty"
	"github.com/streetmagic/pos-engine/metrics"
)

// Store persists the menu as one collection.
type Store interface {
	LoadMenu(ctx context.Context) ([]Item, error)

	// UpdateMenu loads the menu, applies fn and saves the result
	// atomically. Nothing is saved when fn fails.
	UpdateMenu(ctx context.Context, fn func([]Item) ([]Item, error)) error
}

// Catalog is the menu service.
type Catalog struct {
	Store Store

	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewCatalog creates a Catalog. Nil logger and metrics are allowed.
func NewCatalog(store Store, log *zap.Logger, m *metrics.Metrics) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{Store: store, log: log.Named("menu"), metrics: m}
}

// List returns the items in category/subcategory; empty filters match all.
func (c *Catalog) List(ctx context.Context, category, subcategory string) ([]Item, error) {
	items, err := c.Store.LoadMenu(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(items, category, subcategory), nil
}

// Categories returns the category tree.
func (c *Catalog) Categories(ctx context.Context) ([]Category, error) {
	items, err := c.Store.LoadMenu(ctx)
	if err != nil {
		return nil, err
	}
	return Categories(items), nil
}

// Get returns the item with id.
func (c *Catalog) Get(ctx context.Context, id string) (Item, error) {
	items, err := c.Store.LoadMenu(ctx)
	if err != nil {
		return Item{}, err
	}
	for _, it := range items {
		if it.ID == id {
			return it, nil
		}
	}
	return Item{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
}

// Add appends a new item with a fresh id.
func (c *Catalog) Add(ctx context.Context, it Item) (Item, error) {
	it, err := normalize(it)
	if err != nil {
		return Item{}, err
	}
	it.ID = uuid.NewString()

	err = c.Store.UpdateMenu(ctx, func(items []Item) ([]Item, error) {
		return append(items, it), nil
	})
	if err != nil {
		return Item{}, err
	}
	c.metrics.ObserveCatalog("menu", "create")
	c.log.Info("menu item added", zap.String("id", it.ID), zap.String("name", it.Name))
	return it, nil
}

// Update replaces the item with id, keeping its position. Moving an item
// to another category or subcategory is an update.
func (c *Catalog) Update(ctx context.Context, id string, it Item) (Item, error) {
	it, err := normalize(it)
	if err != nil {
		return Item{}, err
	}
	it.ID = id

	err = c.Store.UpdateMenu(ctx, func(items []Item) ([]Item, error) {
		for i := range items {
			if items[i].ID == id {
				items[i] = it
				return items, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	})
	if err != nil {
		return Item{}, err
	}
	c.metrics.ObserveCatalog("menu", "edit")
	return it, nil
}

// Delete removes the item with id.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	err := c.Store.UpdateMenu(ctx, func(items []Item) ([]Item, error) {
		for i := range items {
			if items[i].ID == id {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	})
	if err != nil {
		return err
	}
	c.metrics.ObserveCatalog("menu", "delete")
	c.log.Info("menu item deleted", zap.String("id", id))
	return nil
}

// Clear removes every item.
func (c *Catalog) Clear(ctx context.Context) error {
	err := c.Store.UpdateMenu(ctx, func([]Item) ([]Item, error) { return []Item{}, nil })
	if err != nil {
		return err
	}
	c.metrics.ObserveCatalog("menu", "clear")
	c.log.Info("menu cleared")
	return nil
}

// PriceItems fills missing prices and categories from the menu. When the
// menu cannot be read the items are returned as they came.
func (c *Catalog) PriceItems(ctx context.Context, lines []loyalty.LineItem) []loyalty.LineItem {
	items, err := c.Store.LoadMenu(ctx)
	if err != nil {
		c.log.Warn("menu unavailable for pricing", zap.Error(err))
		return lines
	}
	out := make([]loyalty.LineItem, len(lines))
	for i, li := range lines {
		out[i] = PriceLine(items, li)
	}
	return out
}
