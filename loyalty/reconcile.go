/*
reconcile.go - Ledger to directory aggregation

PURPOSE:
  Rebuilds each customer's order count and spend from the order ledger
  and merges the result into the existing directory.

ALGORITHM:
  1. Group orders by trimmed phone, skipping orders with no phone
  2. Count orders and sum totals per phone; the name of the last order
     seen for a phone wins (ledger order, not time order)
  3. Overwrite name/count/amount on existing entries, keep Redeemed
  4. Append entries for phones seen for the first time, Redeemed = 0
  5. Drop entries whose phone is empty or "undefined"

GUARANTEES:
  - Idempotent: Reconcile(o, Reconcile(o, d)) == Reconcile(o, d)
  - Conservation: per-phone count and sum match the ledger exactly
  - Redeemed is carried over untouched

Directory entries that no longer have any order keep their last
aggregates. Reconciliation only overwrites phones present in the ledger.
*/
package loyalty

import (
	"strings"

	"github.com/shopspring/decimal"
)

type aggregate struct {
	name   string
	orders int
	amount decimal.Decimal
}

// Reconcile returns a new directory derived from orders and merged into
// directory. Neither input slice is modified.
func Reconcile(orders []Order, directory []Customer) []Customer {
	agg := make(map[string]*aggregate)
	var seen []string // first-appearance order of phones

	for _, o := range orders {
		phone := o.Phone()
		if phone == "" {
			continue
		}
		a, ok := agg[phone]
		if !ok {
			a = &aggregate{amount: decimal.Zero}
			agg[phone] = a
			seen = append(seen, phone)
		}
		a.orders++
		a.amount = a.amount.Add(o.Total)
		a.name = displayName(o.CustomerName)
	}

	result := make([]Customer, 0, len(directory)+len(seen))
	index := make(map[string]int, len(directory))
	for _, c := range directory {
		if _, dup := index[c.Phone]; dup {
			continue
		}
		index[c.Phone] = len(result)
		result = append(result, c)
	}

	for _, phone := range seen {
		a := agg[phone]
		if i, ok := index[phone]; ok {
			result[i].Name = a.name
			result[i].TotalOrders = a.orders
			result[i].TotalAmount = a.amount
			if result[i].Redeemed < 0 {
				result[i].Redeemed = 0
			}
			continue
		}
		index[phone] = len(result)
		result = append(result, Customer{
			Phone:       phone,
			Name:        a.name,
			TotalOrders: a.orders,
			TotalAmount: a.amount,
		})
	}

	return purge(result)
}

// purge drops entries that have no usable phone.
func purge(directory []Customer) []Customer {
	out := directory[:0]
	for _, c := range directory {
		if hasIdentity(c.Phone) {
			out = append(out, c)
		}
	}
	return out
}

func displayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return UnknownName
	}
	return name
}

// Find returns the index of the entry with phone, or -1.
func Find(directory []Customer, phone string) int {
	for i, c := range directory {
		if c.Phone == phone {
			return i
		}
	}
	return -1
}
