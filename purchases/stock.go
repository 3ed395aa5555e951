/*
stock.go - Purchase log and inventory counts

PURPOSE:
  Records what the restaurant buys (vegetables, gas, packaging) and keeps
  a running unit count per product. The purchase log and the product list
  are saved together as one Stock value.

RULES:
  - Recording a purchase adds its quantity to the product, creating the
    product when it is new
  - Editing or deleting a purchase takes the old quantity back off its
    product first; counts never go below zero
  - Renaming a product rewrites every purchase of it and fails when the
    new name is taken
  - Resetting inventory zeroes the counts and keeps the log

REPORTING:
  Spend totals (all time, today, this month, last month) use the same
  loyalty.Calendar as the sales reports. The products report groups
  purchases by category ("Uncategorized" when blank), then by item.

SEE ALSO:
  - register.go: Store-backed operations
  - api/purchases.go: HTTP handlers
*/
package purchases

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/streetmagic/pos-engine/loyalty"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrPurchaseNotFound is returned when no purchase has the id.
	ErrPurchaseNotFound = errors.New("purchase not found")

	// ErrInvalidPurchase is returned for a purchase without an item, with a
	// quantity below one or a negative price.
	ErrInvalidPurchase = errors.New("purchase needs an item, a quantity and a price")

	// ErrProductNotFound is returned when renaming an unknown product.
	ErrProductNotFound = errors.New("product not found")

	// ErrProductExists is returned when a rename targets a taken name.
	ErrProductExists = errors.New("product already exists")

	// ErrInvalidProduct is returned for a blank product name.
	ErrInvalidProduct = errors.New("product name is required")
)

// UncategorizedLabel groups purchases without a category.
const UncategorizedLabel = "Uncategorized"

// =============================================================================
// TYPES
// =============================================================================

// Purchase is one line of the purchase log.
type Purchase struct {
	ID        string          `json:"id"`
	Item      string          `json:"item"`
	Category  string          `json:"category,omitempty"`
	Quantity  int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"price"`
	Date      time.Time       `json:"date"`
}

// Amount is quantity * unit price.
func (p Purchase) Amount() decimal.Decimal {
	return p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// Product is an inventory line.
type Product struct {
	Name  string `json:"name"`
	Units int    `json:"units"`
}

// Stock is the whole persisted state: products in creation order and the
// purchase log in entry order.
type Stock struct {
	Products  []Product
	Purchases []Purchase
}

// Clone returns a deep copy.
func (s Stock) Clone() Stock {
	return Stock{
		Products:  append([]Product{}, s.Products...),
		Purchases: append([]Purchase{}, s.Purchases...),
	}
}

func (s Stock) product(name string) int {
	for i, p := range s.Products {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func (s Stock) purchase(id string) int {
	for i, p := range s.Purchases {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// adjust adds delta units to product name. A positive delta creates a
// missing product; counts are floored at zero.
func (s *Stock) adjust(name string, delta int) {
	i := s.product(name)
	if i < 0 {
		if delta <= 0 {
			return
		}
		s.Products = append(s.Products, Product{Name: name})
		i = len(s.Products) - 1
	}
	s.Products[i].Units += delta
	if s.Products[i].Units < 0 {
		s.Products[i].Units = 0
	}
}

// =============================================================================
// FILTERING
// =============================================================================

// Filter narrows the purchase log. Empty fields match everything.
type Filter struct {
	Date     string // YYYY-MM-DD calendar day
	Month    string // YYYY-MM
	Item     string // case-insensitive substring
	Category string // case-insensitive substring
}

// Select returns the purchases matching f in log order.
func Select(purchases []Purchase, cal loyalty.Calendar, f Filter) []Purchase {
	item := strings.ToLower(strings.TrimSpace(f.Item))
	category := strings.ToLower(strings.TrimSpace(f.Category))
	out := []Purchase{}
	for _, p := range purchases {
		day := cal.DateKey(p.Date)
		if f.Date != "" && day != f.Date {
			continue
		}
		if f.Month != "" && !strings.HasPrefix(day, f.Month+"-") {
			continue
		}
		if item != "" && !strings.Contains(strings.ToLower(p.Item), item) {
			continue
		}
		if category != "" && !strings.Contains(strings.ToLower(p.Category), category) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Months lists the YYYY-MM months that have purchases, most recent first.
func Months(purchases []Purchase, cal loyalty.Calendar) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, p := range purchases {
		day := cal.DateKey(p.Date)
		if len(day) < 7 || seen[day[:7]] {
			continue
		}
		seen[day[:7]] = true
		out = append(out, day[:7])
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

// =============================================================================
// REPORTS
// =============================================================================

// Summary is the purchases dashboard.
type Summary struct {
	Total     decimal.Decimal `json:"total"`
	Today     decimal.Decimal `json:"today"`
	ThisMonth decimal.Decimal `json:"thisMonth"`
	LastMonth decimal.Decimal `json:"lastMonth"`
	Products  int             `json:"products"`
	Units     int             `json:"units"`
}

// Summarize computes spend and stock figures as of now.
func Summarize(st Stock, cal loyalty.Calendar, now time.Time) Summary {
	local := cal.In(now)
	today := cal.Today(now)
	lastYear, lastMonth := loyalty.PreviousMonth(local.Year(), local.Month())

	s := Summary{
		Total:     decimal.Zero,
		Today:     decimal.Zero,
		ThisMonth: decimal.Zero,
		LastMonth: decimal.Zero,
		Products:  len(st.Products),
	}
	for _, p := range st.Products {
		s.Units += p.Units
	}
	for _, p := range st.Purchases {
		amount := p.Amount()
		s.Total = s.Total.Add(amount)
		if cal.DateKey(p.Date) == today {
			s.Today = s.Today.Add(amount)
		}
		if cal.InMonth(p.Date, local.Year(), local.Month()) {
			s.ThisMonth = s.ThisMonth.Add(amount)
		}
		if cal.InMonth(p.Date, lastYear, lastMonth) {
			s.LastMonth = s.LastMonth.Add(amount)
		}
	}
	return s
}

// ProductTotal is the bought quantity and spend for one item.
type ProductTotal struct {
	Item     string          `json:"item"`
	Quantity int             `json:"qty"`
	Amount   decimal.Decimal `json:"amount"`
}

// CategoryTotal groups product totals under one category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Items    []ProductTotal  `json:"items"`
	Quantity int             `json:"qty"`
	Amount   decimal.Decimal `json:"amount"`
}

// Report is the products table: purchases grouped by category and item.
type Report struct {
	Categories []CategoryTotal `json:"categories"`
	Total      decimal.Decimal `json:"total"`
	From       *time.Time      `json:"from,omitempty"`
	To         *time.Time      `json:"to,omitempty"`
}

// ProductTotals sums quantity and spend per item, in first-appearance order.
func ProductTotals(purchases []Purchase) []ProductTotal {
	out := []ProductTotal{}
	index := make(map[string]int)
	for _, p := range purchases {
		i, ok := index[p.Item]
		if !ok {
			i = len(out)
			index[p.Item] = i
			out = append(out, ProductTotal{Item: p.Item, Amount: decimal.Zero})
		}
		out[i].Quantity += p.Quantity
		out[i].Amount = out[i].Amount.Add(p.Amount())
	}
	return out
}

// BuildReport groups purchases by category then item, with the date span.
func BuildReport(purchases []Purchase) Report {
	r := Report{Categories: []CategoryTotal{}, Total: decimal.Zero}

	grouped := make(map[string][]Purchase)
	var order []string
	for _, p := range purchases {
		cat := strings.TrimSpace(p.Category)
		if cat == "" {
			cat = UncategorizedLabel
		}
		if _, ok := grouped[cat]; !ok {
			order = append(order, cat)
		}
		grouped[cat] = append(grouped[cat], p)

		if p.Date.IsZero() {
			continue
		}
		if r.From == nil || p.Date.Before(*r.From) {
			d := p.Date
			r.From = &d
		}
		if r.To == nil || p.Date.After(*r.To) {
			d := p.Date
			r.To = &d
		}
	}

	for _, cat := range order {
		ct := CategoryTotal{Category: cat, Items: ProductTotals(grouped[cat]), Amount: decimal.Zero}
		for _, it := range ct.Items {
			ct.Quantity += it.Quantity
			ct.Amount = ct.Amount.Add(it.Amount)
		}
		r.Total = r.Total.Add(ct.Amount)
		r.Categories = append(r.Categories, ct)
	}
	return r
}
