/*
Package loyalty derives customer records and reward eligibility from the
order ledger.

PURPOSE:
  Every screen of the POS reads the same two collections: the order ledger
  (written by checkout and order edits) and the customer directory (one
  record per phone number). This package keeps the directory consistent
  with the ledger and answers loyalty questions over it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Order: A sale transaction with line items, total and optional identity
  - LineItem: One menu item on an order
  - Customer: Aggregate record keyed by phone number
  - Lenient numeric parsing: bad numbers become safe defaults, never errors

DATA FLOW:
  Ledger -> Reconcile -> Directory (persisted) -> Classify / queries
  Directory rename -> RenameCustomer -> Ledger

DESIGN PRINCIPLES:
  1. Pure functions: Reconcile, rewards math and queries take slices in
     and return values out. No package-level state.
  2. Precision: Money uses decimal.Decimal.
  3. Recompute, don't trust: Aggregates are rebuilt from the ledger on
     every reconciliation.
  4. Redemption is the only writer of Customer.Redeemed.

SEE ALSO:
  - reconcile.go: Ledger -> directory aggregation
  - rewards.go: Reward accounting and tiers
  - directory.go: Load/mutate/save service around a Store
*/
package loyalty

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ORDER LEDGER
// =============================================================================

type OrderID string

// OrderType is how the order was served.
type OrderType string

const (
	OrderDineIn   OrderType = "dine-in"
	OrderTakeaway OrderType = "takeaway"
	OrderDelivery OrderType = "delivery"
)

// LineItem is one menu item on an order.
type LineItem struct {
	Name      string          `json:"name"`
	Variant   string          `json:"variant,omitempty"`
	Category  string          `json:"category,omitempty"`
	Quantity  int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"price"`
}

// LineTotal returns quantity * unit price.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Order is a single sale transaction.
//
// The engine never creates or deletes orders. It reads them and, on a
// customer rename, rewrites CustomerName/CustomerPhone in place.
type Order struct {
	ID            OrderID         `json:"id"`
	Type          OrderType       `json:"type,omitempty"`
	Table         string          `json:"table,omitempty"`
	CustomerName  string          `json:"customerName"`
	CustomerPhone string          `json:"customerMobile"`
	Items         []LineItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	PlacedAt      time.Time       `json:"date"`
}

// Phone returns the trimmed customer phone used as the directory key.
func (o Order) Phone() string { return strings.TrimSpace(o.CustomerPhone) }

// ItemsSubtotal sums quantity * unit price over all items.
func (o Order) ItemsSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// =============================================================================
// CUSTOMER DIRECTORY
// =============================================================================

// Customer is the derived per-phone record.
//
// INVARIANTS:
//   - Phone is unique within a directory.
//   - TotalOrders/TotalAmount are recomputed from the ledger on Reconcile.
//   - Redeemed is never decreased by reconciliation.
type Customer struct {
	Phone       string          `json:"phone"`
	Name        string          `json:"name"`
	TotalOrders int             `json:"totalOrders"`
	TotalAmount decimal.Decimal `json:"amount"`
	Redeemed    int             `json:"redeemed"`
}

// PlaceholderPhone is the literal the old UI stored for a missing phone.
const PlaceholderPhone = "undefined"

// UnknownName is used when an order carries no customer name.
const UnknownName = "Unknown"

// hasIdentity reports whether a phone can key a directory entry.
func hasIdentity(phone string) bool {
	return phone != "" && phone != PlaceholderPhone
}

// =============================================================================
// LENIENT NUMERIC PARSING
// =============================================================================
// Stored data comes from forms that never validated numbers. Bad input is
// coerced to a safe default rather than rejected.

// ParseAmount converts a loosely typed value to a decimal.
// Strings, numbers and json.Number are accepted; anything else is zero.
func ParseAmount(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(x)
	case float32:
		return ParseAmount(float64(x))
	case int:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case json.Number:
		return ParseAmount(string(x))
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// ParseQuantity converts a loosely typed value to a positive count.
// Missing, malformed or non-positive values return def.
func ParseQuantity(v any, def int) int {
	var n int
	switch x := v.(type) {
	case int:
		if x > math.MaxInt32 {
			return def
		}
		n = x
	case int64:
		if x > math.MaxInt32 {
			return def
		}
		n = int(x)
	case float64:
		// NaN, infinities and anything past MaxInt32 have no sane count.
		if math.IsNaN(x) || x < 1 || x > math.MaxInt32 {
			return def
		}
		n = int(x)
	case json.Number:
		return ParseQuantity(string(x), def)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if ferr != nil {
				return def
			}
			return ParseQuantity(f, def)
		}
		n = parsed
	default:
		return def
	}
	if n <= 0 {
		return def
	}
	return n
}
