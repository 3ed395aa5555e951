/*
window.go - Calendar-windowed queries over the ledger

TIMEZONE POLICY:
  All day and month comparisons go through a Calendar, which converts
  each order's timestamp into a single configured location before
  extracting the calendar day. The server picks the location once at
  startup (default: the process's local wall clock). Nothing else in the
  package compares dates.

TIE-BREAKING:
  Best customer and best seller both use "first max wins": on equal
  totals the candidate seen first while scanning is kept. Callers must not
  assume alphabetical or numeric ordering.
*/
package loyalty

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateKeyLayout is the YYYY-MM-DD form of a calendar day.
const DateKeyLayout = "2006-01-02"

// Calendar applies one timezone to every windowed query.
type Calendar struct {
	Location *time.Location
}

// NewCalendar returns a Calendar for loc. A nil loc means time.Local.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.Local
	}
	return Calendar{Location: loc}
}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// Zone returns the calendar's location.
func (c Calendar) Zone() *time.Location { return c.loc() }

// In converts t to the calendar's location.
func (c Calendar) In(t time.Time) time.Time {
	return t.In(c.loc())
}

// DateKey returns the calendar day of t as YYYY-MM-DD, or "" for a zero time.
func (c Calendar) DateKey(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(c.loc()).Format(DateKeyLayout)
}

// Today returns the date key for now.
func (c Calendar) Today(now time.Time) string {
	return c.DateKey(now)
}

// InMonth reports whether t falls in year/month.
func (c Calendar) InMonth(t time.Time, year int, month time.Month) bool {
	if t.IsZero() {
		return false
	}
	lt := t.In(c.loc())
	return lt.Year() == year && lt.Month() == month
}

// MonthWindow returns orders placed in year/month, in ledger order.
func (c Calendar) MonthWindow(orders []Order, year int, month time.Month) []Order {
	out := []Order{}
	for _, o := range orders {
		if c.InMonth(o.PlacedAt, year, month) {
			out = append(out, o)
		}
	}
	return out
}

// DayWindow returns orders placed on dateKey, in ledger order.
func (c Calendar) DayWindow(orders []Order, dateKey string) []Order {
	out := []Order{}
	for _, o := range orders {
		if c.DateKey(o.PlacedAt) == dateKey {
			out = append(out, o)
		}
	}
	return out
}

// PreviousMonth returns the year and month before year/month.
func PreviousMonth(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}

// =============================================================================
// BEST CUSTOMER
// =============================================================================

// BestCustomer is the top spender within a window.
type BestCustomer struct {
	Name   string          `json:"name"`
	Phone  string          `json:"phone"`
	Amount decimal.Decimal `json:"amount"`
}

// BestCustomerInWindow sums totals per phone over window and returns the
// largest. Orders without a phone are ignored. ok is false for an empty
// window.
func BestCustomerInWindow(window []Order) (best BestCustomer, ok bool) {
	type spend struct {
		name   string
		amount decimal.Decimal
	}
	totals := make(map[string]*spend)
	var order []string
	for _, o := range window {
		phone := o.Phone()
		if phone == "" {
			continue
		}
		s, seen := totals[phone]
		if !seen {
			s = &spend{amount: decimal.Zero}
			totals[phone] = s
			order = append(order, phone)
		}
		s.amount = s.amount.Add(o.Total)
		s.name = displayName(o.CustomerName)
	}

	for _, phone := range order {
		s := totals[phone]
		if !ok || s.amount.GreaterThan(best.Amount) {
			best = BestCustomer{Name: s.name, Phone: phone, Amount: s.amount}
			ok = true
		}
	}
	return best, ok
}

// =============================================================================
// SOLD ITEMS
// =============================================================================

// UnnamedItem replaces an empty item name in sold-item tallies.
const UnnamedItem = "Unnamed Item"

// ItemQuantity is a sold item and its summed quantity.
type ItemQuantity struct {
	Name     string `json:"name"`
	Quantity int    `json:"qty"`
}

// SoldItemsOn sums quantities per item name over orders placed on dateKey.
// The result is in first-seen order.
func (c Calendar) SoldItemsOn(orders []Order, dateKey string) []ItemQuantity {
	index := make(map[string]int)
	out := []ItemQuantity{}
	for _, o := range c.DayWindow(orders, dateKey) {
		for _, it := range o.Items {
			name := strings.TrimSpace(it.Name)
			if name == "" {
				name = UnnamedItem
			}
			qty := it.Quantity
			if qty <= 0 {
				qty = 1
			}
			if i, ok := index[name]; ok {
				out[i].Quantity += qty
				continue
			}
			index[name] = len(out)
			out = append(out, ItemQuantity{Name: name, Quantity: qty})
		}
	}
	return out
}

// BestSellerOn returns the item with the largest summed quantity on
// dateKey. ok is false when nothing sold.
func (c Calendar) BestSellerOn(orders []Order, dateKey string) (best ItemQuantity, ok bool) {
	for _, iq := range c.SoldItemsOn(orders, dateKey) {
		if !ok || iq.Quantity > best.Quantity {
			best, ok = iq, true
		}
	}
	return best, ok
}
