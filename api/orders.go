/*
orders.go - Order ledger and report handlers

ENDPOINTS:
  Orders:
    GET    /api/orders                 History (date, q, sort, page, page_size)
    POST   /api/orders                 Checkout; unpriced items are priced from the menu
    GET    /api/orders/sold?date=      Sold items and best seller for a day
    GET    /api/orders/{id}            Single order
    PUT    /api/orders/{id}            Edit items / customer / date
    DELETE /api/orders/{id}            Delete

  Reports:
    GET    /api/reports/summary        Today / month / last month figures
    GET    /api/reports/items          Item sales (from, to, category)
    GET    /api/reports/trend?days=7   Daily sales series

Every ledger write is followed by a directory sync so the customers
screen never shows aggregates older than the ledger.
*/
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/streetmagic/pos-engine/loyalty"
	"github.com/streetmagic/pos-engine/orders"
)

// DefaultTrendDays is the trend window when days= is missing.
const DefaultTrendDays = 7

// =============================================================================
// ORDER HANDLERS
// =============================================================================

// ListOrders returns one page of the order history.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.Book.All(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to load orders", err)
		return
	}

	q := r.URL.Query()
	page := orders.Run(ledger, h.Calendar, orders.Query{
		Date:     strings.TrimSpace(q.Get("date")),
		Search:   q.Get("q"),
		Sort:     orders.SortMode(q.Get("sort")),
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "page_size", orders.DefaultPageSize),
	})
	writeJSON(w, http.StatusOK, page)
}

// CreateOrder records a checkout.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	draft, err := req.toDraft(h.Calendar)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	draft.Items = h.priceItems(r, draft.Items)

	o, err := h.Book.Create(r.Context(), draft)
	if err != nil {
		h.writeDomainError(w, "Failed to create order", err)
		return
	}
	h.syncAfterWrite(r)
	writeJSON(w, http.StatusCreated, o)
}

// GetOrder returns one order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Book.Get(r.Context(), orderIDParam(r))
	if err != nil {
		h.writeDomainError(w, "Order not found", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// UpdateOrder edits an order.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req UpdateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	edit, err := req.toEdit(h.Calendar)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	if edit.Items != nil {
		edit.Items = h.priceItems(r, edit.Items)
	}

	o, err := h.Book.Update(r.Context(), orderIDParam(r), edit)
	if err != nil {
		h.writeDomainError(w, "Failed to update order", err)
		return
	}
	h.syncAfterWrite(r)
	writeJSON(w, http.StatusOK, o)
}

// DeleteOrder removes an order.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.Book.Delete(r.Context(), orderIDParam(r)); err != nil {
		h.writeDomainError(w, "Failed to delete order", err)
		return
	}
	h.syncAfterWrite(r)
	w.WriteHeader(http.StatusNoContent)
}

// SoldItems lists item quantities sold on a day, default today.
func (h *Handler) SoldItems(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.Book.All(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to load orders", err)
		return
	}

	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		date = h.Calendar.Today(h.Now())
	}
	resp := SoldItemsResponse{Date: date, Items: h.Calendar.SoldItemsOn(ledger, date)}
	if best, ok := h.Calendar.BestSellerOn(ledger, date); ok {
		resp.BestSeller = &best
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// SalesSummary returns the headline report.
func (h *Handler) SalesSummary(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.Book.All(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to load orders", err)
		return
	}
	writeJSON(w, http.StatusOK, orders.Summarize(ledger, h.Calendar, h.Now()))
}

// ItemSales returns per-item sales in a date range.
func (h *Handler) ItemSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseDate(q.Get("from"), h.Calendar)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date", err)
		return
	}
	to, err := parseDate(q.Get("to"), h.Calendar)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date", err)
		return
	}
	// A bare day as upper bound includes the whole day.
	if raw := strings.TrimSpace(q.Get("to")); len(raw) == len(loyalty.DateKeyLayout) {
		to = to.AddDate(0, 0, 1).Add(-1)
	}

	ledger, err := h.Book.All(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to load orders", err)
		return
	}
	writeJSON(w, http.StatusOK, orders.ItemSales(ledger, h.Calendar, from, to, strings.TrimSpace(q.Get("category"))))
}

// SalesTrend returns the daily series for the trend chart.
func (h *Handler) SalesTrend(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.Book.All(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to load orders", err)
		return
	}

	days := queryInt(r, "days", DefaultTrendDays)
	points := orders.Trend(ledger, h.Calendar, h.Now(), days)
	sales := decimal.Zero
	for _, p := range points {
		sales = sales.Add(p.Sales)
	}
	writeJSON(w, http.StatusOK, TrendResponse{Days: days, Points: points, Sales: sales})
}

// priceItems fills missing prices and categories from the menu.
func (h *Handler) priceItems(r *http.Request, items []loyalty.LineItem) []loyalty.LineItem {
	if h.Menu == nil {
		return items
	}
	return h.Menu.PriceItems(r.Context(), items)
}

func orderIDParam(r *http.Request) loyalty.OrderID {
	return loyalty.OrderID(chi.URLParam(r, "id"))
}
