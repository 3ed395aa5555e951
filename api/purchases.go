/*
purchases.go - Purchase log and inventory handlers

ENDPOINTS:
  Purchases:
    GET    /api/purchases              Log (date, month, item, category) with total
    POST   /api/purchases              Record; adds to inventory
    GET    /api/purchases/summary      Total / today / month / last month spend
    GET    /api/purchases/products     Grouped by category and item (same filters)
    PUT    /api/purchases/{id}         Edit; moves quantity between products
    DELETE /api/purchases/{id}         Delete; takes quantity off the product

  Inventory:
    GET    /api/inventory              Products and unit counts
    POST   /api/inventory              Add an empty product
    PUT    /api/inventory/{name}       Rename product and its purchases
    POST   /api/inventory/reset        Zero every count
*/
package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/streetmagic/pos-engine/purchases"
)

// =============================================================================
// PURCHASE HANDLERS
// =============================================================================

// ListPurchases returns the filtered log and its total.
func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	list, err := h.Purchases.List(r.Context(), purchaseFilter(r))
	if err != nil {
		h.writeDomainError(w, "Failed to load purchases", err)
		return
	}
	months, err := h.Purchases.Months(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to load purchases", err)
		return
	}

	total := decimal.Zero
	for _, p := range list {
		total = total.Add(p.Amount())
	}
	writeJSON(w, http.StatusOK, PurchaseListResponse{Purchases: list, Count: len(list), Total: total, Months: months})
}

// CreatePurchase records a purchase.
func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.decodePurchase(w, r)
	if !ok {
		return
	}
	p, err := h.Purchases.Record(r.Context(), entry)
	if err != nil {
		h.writeDomainError(w, "Failed to record purchase", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// UpdatePurchase replaces a purchase.
func (h *Handler) UpdatePurchase(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.decodePurchase(w, r)
	if !ok {
		return
	}
	p, err := h.Purchases.Edit(r.Context(), chi.URLParam(r, "id"), entry)
	if err != nil {
		h.writeDomainError(w, "Failed to update purchase", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeletePurchase removes a purchase.
func (h *Handler) DeletePurchase(w http.ResponseWriter, r *http.Request) {
	if err := h.Purchases.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, "Failed to delete purchase", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PurchaseSummary returns the spend dashboard.
func (h *Handler) PurchaseSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Purchases.Summary(r.Context(), h.Now())
	if err != nil {
		h.writeDomainError(w, "Failed to load purchases", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// PurchaseProducts returns purchases grouped by category and item.
func (h *Handler) PurchaseProducts(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Purchases.Report(r.Context(), purchaseFilter(r))
	if err != nil {
		h.writeDomainError(w, "Failed to load purchases", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// =============================================================================
// INVENTORY HANDLERS
// =============================================================================

// ListInventory returns every product and its count.
func (h *Handler) ListInventory(w http.ResponseWriter, r *http.Request) {
	products, err := h.Purchases.Products(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to load inventory", err)
		return
	}
	writeJSON(w, http.StatusOK, InventoryResponse{Products: products, Count: len(products)})
}

// CreateProduct adds an empty product.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	p, err := h.Purchases.AddProduct(r.Context(), req.Name)
	if err != nil {
		h.writeDomainError(w, "Failed to add product", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// RenameProduct renames a product and its purchases.
func (h *Handler) RenameProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	name := chi.URLParam(r, "name")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	p, err := h.Purchases.RenameProduct(r.Context(), name, req.Name)
	if err != nil {
		h.writeDomainError(w, "Failed to rename product", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ResetInventory zeroes every count.
func (h *Handler) ResetInventory(w http.ResponseWriter, r *http.Request) {
	if err := h.Purchases.ResetInventory(r.Context()); err != nil {
		h.writeDomainError(w, "Failed to reset inventory", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) decodePurchase(w http.ResponseWriter, r *http.Request) (purchases.Entry, bool) {
	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return purchases.Entry{}, false
	}
	entry, err := req.toEntry(h.Calendar)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return purchases.Entry{}, false
	}
	return entry, true
}

func purchaseFilter(r *http.Request) purchases.Filter {
	q := r.URL.Query()
	return purchases.Filter{
		Date:     strings.TrimSpace(q.Get("date")),
		Month:    strings.TrimSpace(q.Get("month")),
		Item:     q.Get("item"),
		Category: q.Get("category"),
	}
}
