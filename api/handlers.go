/*
handlers.go - HTTP API handlers for the POS loyalty engine

PURPOSE:
  Exposes the customer directory, the order ledger and the sales reports
  via REST API. Handles HTTP request/response and JSON serialization, and
  delegates to loyalty.Directory, orders.Book, menu.Catalog and
  purchases.Register.

ENDPOINTS:
  Customers:
    GET    /api/customers                 List (q=, invalid=true); syncs first
    POST   /api/customers                 Manual add
    GET    /api/customers/insights        New/repeat split, histogram, best spenders
    POST   /api/customers/sync            Reconcile now
    GET    /api/customers/{phone}         Single entry with reward fields
    PUT    /api/customers/{phone}         Edit / rename
    DELETE /api/customers/{phone}         Delete entry (ledger untouched)
    POST   /api/customers/{phone}/redeem  Redeem one reward

  Orders and reports: see orders.go
  Menu: see menu.go
  Purchases and inventory: see purchases.go
  Demo scenarios: see scenarios.go

REQUEST FLOW:
  1. Parse HTTP request
  2. Call the directory or the book
  3. Serialize response
  4. Map domain errors to status codes

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input, missing phone, empty order, incomplete menu item
         or purchase
  - 404: Unknown customer, order, menu item, purchase or product
  - 409: Phone already used (add, rename), product name taken
  - 422: No reward left to redeem
  - 500: Internal errors

SECURITY NOTE:
  No authentication. The server is meant for the restaurant's LAN.

SEE ALSO:
  - dto.go: Request/response data structures
  - orders.go: Order and report handlers
  - menu.go: Menu handlers
  - purchases.go: Purchase and inventory handlers
  - scenarios.go: Demo data loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/streetmagic/pos-engine/loyalty"
	"github.com/streetmagic/pos-engine/menu"
	"github.com/streetmagic/pos-engine/orders"
	"github.com/streetmagic/pos-engine/purchases"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Directory *loyalty.Directory
	Book      *orders.Book
	Menu      *menu.Catalog
	Purchases *purchases.Register
	Calendar  loyalty.Calendar
	Now       func() time.Time

	log *zap.Logger

	scenarioMu      sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over the directory, the order book, the
// menu and the purchase register.
func NewHandler(dir *loyalty.Directory, book *orders.Book, catalog *menu.Catalog, register *purchases.Register, cal loyalty.Calendar, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Directory: dir,
		Book:      book,
		Menu:      catalog,
		Purchases: register,
		Calendar:  cal,
		Now:       time.Now,
		log:       log.Named("api"),
	}
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers reconciles the directory and returns matching entries.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Directory.Sync(r.Context()); err != nil {
		h.writeDomainError(w, "Failed to reconcile customers", err)
		return
	}

	q := r.URL.Query()
	invalidOnly, _ := strconv.ParseBool(q.Get("invalid"))
	views, err := h.Directory.List(r.Context(), q.Get("q"), invalidOnly)
	if err != nil {
		h.writeDomainError(w, "Failed to list customers", err)
		return
	}

	writeJSON(w, http.StatusOK, CustomerListResponse{Customers: views, Count: len(views)})
}

// GetCustomer returns one entry with its reward fields.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.Directory.Get(r.Context(), phoneParam(r))
	if err != nil {
		h.writeDomainError(w, "Customer not found", err)
		return
	}
	writeJSON(w, http.StatusOK, loyalty.View(c))
}

// CreateCustomer adds a manual entry.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	c, err := h.Directory.Add(r.Context(), req.toCustomer())
	if err != nil {
		h.writeDomainError(w, "Failed to add customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, loyalty.View(c))
}

// UpdateCustomer edits an entry. A new name or phone is propagated to
// every order of the customer.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req UpdateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	c, err := h.Directory.Update(r.Context(), phoneParam(r), req.toUpdate())
	if err != nil {
		h.writeDomainError(w, "Failed to update customer", err)
		return
	}
	writeJSON(w, http.StatusOK, loyalty.View(c))
}

// DeleteCustomer removes an entry.
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.Directory.Delete(r.Context(), phoneParam(r)); err != nil {
		h.writeDomainError(w, "Failed to delete customer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RedeemReward consumes one reward.
func (h *Handler) RedeemReward(w http.ResponseWriter, r *http.Request) {
	c, err := h.Directory.Redeem(r.Context(), phoneParam(r))
	if err != nil {
		h.writeDomainError(w, "Redemption refused", err)
		return
	}
	writeJSON(w, http.StatusOK, loyalty.View(c))
}

// SyncCustomers reconciles the directory now.
func (h *Handler) SyncCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Directory.Sync(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to reconcile customers", err)
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{Customers: len(customers)})
}

// CustomerInsights returns the dashboard figures.
func (h *Handler) CustomerInsights(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Directory.Sync(r.Context()); err != nil {
		h.writeDomainError(w, "Failed to reconcile customers", err)
		return
	}
	ins, err := h.Directory.Insights(r.Context(), h.Now())
	if err != nil {
		h.writeDomainError(w, "Failed to compute insights", err)
		return
	}
	writeJSON(w, http.StatusOK, ins)
}

// =============================================================================
// HELPERS
// =============================================================================

func phoneParam(r *http.Request) string {
	raw := chi.URLParam(r, "phone")
	if p, err := url.PathUnescape(raw); err == nil {
		return p
	}
	return raw
}

// syncAfterWrite keeps the directory in step with the ledger after an
// order write. A failure is logged; the order write already succeeded.
func (h *Handler) syncAfterWrite(r *http.Request) {
	if _, err := h.Directory.Sync(r.Context()); err != nil {
		h.log.Warn("directory sync after order write failed", zap.Error(err))
	}
}

// writeDomainError maps engine errors to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	var (
		redemption *loyalty.RedemptionError
		rename     *loyalty.RenameError
	)
	switch {
	case errors.As(err, &redemption):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: message,
			Code:  "no_rewards_available",
			Details: map[string]int{
				"totalOrders": redemption.TotalOrders,
				"earned":      redemption.Earned,
				"redeemed":    redemption.Redeemed,
			},
		})
	case errors.As(err, &rename):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: message,
			Code:  "duplicate_phone",
			Details: map[string]any{
				"phone":        rename.NewPhone,
				"existingName": rename.ExistingName,
				"totalOrders":  rename.ExistingOrder,
			},
		})
	case errors.Is(err, loyalty.ErrCustomerExists):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: message, Code: "customer_exists", Details: err.Error()})
	case errors.Is(err, purchases.ErrProductExists):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: message, Code: "product_exists", Details: err.Error()})
	case errors.Is(err, loyalty.ErrMissingIdentity), errors.Is(err, orders.ErrEmptyOrder),
		errors.Is(err, menu.ErrInvalidItem), errors.Is(err, purchases.ErrInvalidPurchase),
		errors.Is(err, purchases.ErrInvalidProduct):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: "invalid_input", Details: err.Error()})
	case loyalty.IsNotFound(err), orders.IsNotFound(err), errors.Is(err, menu.ErrItemNotFound),
		errors.Is(err, purchases.ErrPurchaseNotFound), errors.Is(err, purchases.ErrProductNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: message, Code: "not_found", Details: err.Error()})
	default:
		h.log.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(r *http.Request, key string, def int) int {
	return loyalty.ParseQuantity(strings.TrimSpace(r.URL.Query().Get(key)), def)
}
