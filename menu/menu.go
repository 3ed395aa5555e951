/*
menu.go - Menu items, categories and checkout pricing

PURPOSE:
  The menu the cashier sells from. Items live under a category and a
  subcategory and carry either a single price or a list of variants
  (half/full, 1 pc/2 pc, ...). Checkout uses the menu to fill in the
  price and category of line items the client sent without one.

RULES:
  - Name, category and subcategory are required (trimmed)
  - Price is the base price, or the first variant's price when no base
    price is given
  - Variants with an empty label are dropped
  - Item names are matched case-insensitively when pricing

SEE ALSO:
  - catalog.go: Store-backed CRUD
  - api/menu.go: HTTP handlers
*/
package menu

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/streetmagic/pos-engine/loyalty"
)

var (
	// ErrItemNotFound is returned when no menu item has the id.
	ErrItemNotFound = errors.New("menu item not found")

	// ErrInvalidItem is returned when a required field is missing.
	ErrInvalidItem = errors.New("menu item needs a name, category and subcategory")
)

// Variant is one sellable size or portion of an item.
type Variant struct {
	Label string          `json:"qty"`
	Price decimal.Decimal `json:"price"`
}

// Item is one dish or drink on the menu.
type Item struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory"`
	Variants    []Variant       `json:"variants"`
	Price       decimal.Decimal `json:"price"`
}

// Category groups subcategories in first-appearance order.
type Category struct {
	Name          string   `json:"name"`
	Subcategories []string `json:"subcategories"`
}

// normalize trims fields, drops blank variants and derives the price.
func normalize(it Item) (Item, error) {
	it.Name = strings.TrimSpace(it.Name)
	it.Category = strings.TrimSpace(it.Category)
	it.Subcategory = strings.TrimSpace(it.Subcategory)
	if it.Name == "" || it.Category == "" || it.Subcategory == "" {
		return Item{}, ErrInvalidItem
	}

	variants := make([]Variant, 0, len(it.Variants))
	for _, v := range it.Variants {
		v.Label = strings.TrimSpace(v.Label)
		if v.Label == "" {
			continue
		}
		if v.Price.IsNegative() {
			v.Price = decimal.Zero
		}
		variants = append(variants, v)
	}
	it.Variants = variants

	if it.Price.IsNegative() {
		it.Price = decimal.Zero
	}
	if it.Price.IsZero() && len(variants) > 0 {
		it.Price = variants[0].Price
	}
	return it, nil
}

// Categories lists categories and their subcategories in the order they
// first appear.
func Categories(items []Item) []Category {
	out := []Category{}
	index := make(map[string]int)
	seen := make(map[string]bool)
	for _, it := range items {
		i, ok := index[it.Category]
		if !ok {
			i = len(out)
			index[it.Category] = i
			out = append(out, Category{Name: it.Category, Subcategories: []string{}})
		}
		key := it.Category + "\x00" + it.Subcategory
		if !seen[key] {
			seen[key] = true
			out[i].Subcategories = append(out[i].Subcategories, it.Subcategory)
		}
	}
	return out
}

// Filter returns the items in category (and subcategory when not empty).
// An empty category returns everything.
func Filter(items []Item, category, subcategory string) []Item {
	out := []Item{}
	for _, it := range items {
		if category != "" && it.Category != category {
			continue
		}
		if subcategory != "" && it.Subcategory != subcategory {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Lookup finds the menu item called name, ignoring case.
func Lookup(items []Item, name string) (Item, bool) {
	name = strings.TrimSpace(name)
	for _, it := range items {
		if strings.EqualFold(it.Name, name) {
			return it, true
		}
	}
	return Item{}, false
}

// PriceLine fills the unit price and category of li from the menu.
// A price already on the line wins; a known variant label picks that
// variant's price. Unknown items are returned unchanged.
func PriceLine(items []Item, li loyalty.LineItem) loyalty.LineItem {
	it, ok := Lookup(items, li.Name)
	if !ok {
		return li
	}
	if li.Category == "" {
		li.Category = it.Category
	}
	if !li.UnitPrice.IsZero() {
		return li
	}
	li.UnitPrice = it.Price
	for _, v := range it.Variants {
		if li.Variant != "" && strings.EqualFold(v.Label, strings.TrimSpace(li.Variant)) {
			li.UnitPrice = v.Price
			break
		}
	}
	return li
}
