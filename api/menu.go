/*
menu.go - Menu handlers

ENDPOINTS:
    GET    /api/menu                   Items (category=, subcategory=)
    POST   /api/menu                   Add item
    DELETE /api/menu                   Clear the menu
    GET    /api/menu/categories        Category tree
    GET    /api/menu/{id}              Single item
    PUT    /api/menu/{id}              Replace item (also moves it)
    DELETE /api/menu/{id}              Delete item

Checkout reads the same menu through Handler.priceItems.
*/
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ListMenu returns the menu, optionally narrowed to a category.
func (h *Handler) ListMenu(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.Menu.List(r.Context(), strings.TrimSpace(q.Get("category")), strings.TrimSpace(q.Get("subcategory")))
	if err != nil {
		h.writeDomainError(w, "Failed to load menu", err)
		return
	}
	writeJSON(w, http.StatusOK, MenuListResponse{Items: items, Count: len(items)})
}

// MenuCategories returns categories with their subcategories.
func (h *Handler) MenuCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Menu.Categories(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to load menu", err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

// GetMenuItem returns one item.
func (h *Handler) GetMenuItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.Menu.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Menu item not found", err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// CreateMenuItem adds an item.
func (h *Handler) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	var req MenuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	it, err := h.Menu.Add(r.Context(), req.toItem())
	if err != nil {
		h.writeDomainError(w, "Failed to add menu item", err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

// UpdateMenuItem replaces an item.
func (h *Handler) UpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	var req MenuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	it, err := h.Menu.Update(r.Context(), chi.URLParam(r, "id"), req.toItem())
	if err != nil {
		h.writeDomainError(w, "Failed to update menu item", err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// DeleteMenuItem removes an item.
func (h *Handler) DeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	if err := h.Menu.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, "Failed to delete menu item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearMenu removes every item.
func (h *Handler) ClearMenu(w http.ResponseWriter, r *http.Request) {
	if err := h.Menu.Clear(r.Context()); err != nil {
		h.writeDomainError(w, "Failed to clear menu", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
