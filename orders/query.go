package orders

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/streetmagic/pos-engine/loyalty"
)

// SortMode orders the history listing.
type SortMode string

const (
	SortNewest SortMode = "newest"
	SortOldest SortMode = "oldest"
	SortHigh   SortMode = "high"
	SortLow    SortMode = "low"
)

// DefaultPageSize is used when a query has no page size.
const DefaultPageSize = 10

// Query selects a page of the order history.
type Query struct {
	Date     string // YYYY-MM-DD, empty for all days
	Search   string
	Sort     SortMode
	Page     int
	PageSize int
}

// Page is one page of results plus totals over the whole filtered set.
type Page struct {
	Orders     []loyalty.Order `json:"orders"`
	Count      int             `json:"count"`
	Revenue    decimal.Decimal `json:"revenue"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	TotalPages int             `json:"totalPages"`
}

// Filter applies the date filter, search and sort of q. Pagination is
// not applied.
func Filter(ledger []loyalty.Order, cal loyalty.Calendar, q Query) []loyalty.Order {
	list := make([]loyalty.Order, 0, len(ledger))
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	for _, o := range ledger {
		if q.Date != "" && cal.DateKey(o.PlacedAt) != q.Date {
			continue
		}
		if needle != "" && !matches(o, cal, needle) {
			continue
		}
		list = append(list, o)
	}

	switch q.Sort {
	case SortOldest:
		sort.SliceStable(list, func(i, j int) bool { return list[i].PlacedAt.Before(list[j].PlacedAt) })
	case SortHigh:
		sort.SliceStable(list, func(i, j int) bool { return list[i].Total.GreaterThan(list[j].Total) })
	case SortLow:
		sort.SliceStable(list, func(i, j int) bool { return list[i].Total.LessThan(list[j].Total) })
	default:
		sort.SliceStable(list, func(i, j int) bool { return list[i].PlacedAt.After(list[j].PlacedAt) })
	}
	return list
}

func matches(o loyalty.Order, cal loyalty.Calendar, needle string) bool {
	if strings.Contains(strings.ToLower(string(o.ID)), needle) ||
		strings.Contains(cal.DateKey(o.PlacedAt), needle) ||
		strings.Contains(o.Total.String(), needle) ||
		strings.Contains(strings.ToLower(o.CustomerName), needle) ||
		strings.Contains(strings.ToLower(o.CustomerPhone), needle) {
		return true
	}
	for _, it := range o.Items {
		if strings.Contains(strings.ToLower(it.Name), needle) {
			return true
		}
	}
	return false
}

// Run filters, sorts and paginates. A page past the end is clamped to the
// last page; there is always at least one page.
func Run(ledger []loyalty.Order, cal loyalty.Calendar, q Query) Page {
	list := Filter(ledger, cal, q)

	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	pages := (len(list) + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	revenue := decimal.Zero
	for _, o := range list {
		revenue = revenue.Add(o.Total)
	}

	start := (page - 1) * size
	end := start + size
	if end > len(list) {
		end = len(list)
	}
	return Page{
		Orders:     list[start:end],
		Count:      len(list),
		Revenue:    revenue,
		Page:       page,
		PageSize:   size,
		TotalPages: pages,
	}
}
