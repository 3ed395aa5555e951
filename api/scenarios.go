/*
scenarios.go - Demo data loaders for demonstrations and manual testing

PURPOSE:
	Populates the ledger with realistic orders so the customers, rewards
	and reports screens have something to show. Each scenario goes through
	orders.Book (so ids come from the counter) and ends with a directory
	sync.

AVAILABLE SCENARIOS:
	loyal-regular:  One regular past two rewards, one already redeemed
	new-and-repeat: First-timers, repeat guests and anonymous walk-ins
	wrong-numbers:  Mistyped phones the cashier should fix
	monthly-best:   Spend spread over this month and last month

USAGE VIA API:
	POST /api/scenarios/load
	{"scenario_id": "loyal-regular"}

NOTE:
	Loading a scenario wipes the ledger and the directory. Only use in
	development/demo environments.

SEE ALSO:
  - handlers.go: Customer handlers
  - orders/book.go: Order creation
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/streetmagic/pos-engine/loyalty"
	"github.com/streetmagic/pos-engine/orders"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "loyal-regular",
		Name:        "Loyal Regular",
		Description: "23 orders from one guest: two rewards earned, one redeemed",
	},
	{
		ID:          "new-and-repeat",
		Name:        "New and Repeat",
		Description: "First-time guests, repeat guests and walk-ins without a phone",
	},
	{
		ID:          "wrong-numbers",
		Name:        "Wrong Numbers",
		Description: "Orders keyed by mistyped phone numbers",
	},
	{
		ID:          "monthly-best",
		Name:        "Best Customer",
		Description: "Spend across this month and last month with a clear top spender",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	current := h.currentScenario
	h.scenarioMu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario wipes the data and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	loader, ok := h.scenarioLoaders()[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("no scenario %q", req.ScenarioID))
		return
	}

	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	ctx := r.Context()
	h.currentScenario = ""
	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset data", err)
		return
	}
	if err := loader(ctx, h.Now()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}
	if _, err := h.Directory.Sync(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reconcile customers", err)
		return
	}
	if req.ScenarioID == "loyal-regular" {
		if _, err := h.Directory.Redeem(ctx, regularPhone); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to redeem", err)
			return
		}
	}

	h.currentScenario = req.ScenarioID
	h.log.Info("scenario loaded", zap.String("scenario", req.ScenarioID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetData clears the ledger, the directory and the order counter.
func (h *Handler) ResetData(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset data", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) reset(ctx context.Context) error {
	return h.Book.Store.Reset(ctx)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

const regularPhone = "9876543210"

type scenarioLoader func(ctx context.Context, now time.Time) error

func (h *Handler) scenarioLoaders() map[string]scenarioLoader {
	return map[string]scenarioLoader{
		"loyal-regular":  h.loadLoyalRegular,
		"new-and-repeat": h.loadNewAndRepeat,
		"wrong-numbers":  h.loadWrongNumbers,
		"monthly-best":   h.loadMonthlyBest,
	}
}

func (h *Handler) demoOrder(ctx context.Context, name, phone string, placed time.Time, items ...loyalty.LineItem) error {
	_, err := h.Book.Create(ctx, orders.Draft{
		CustomerName:  name,
		CustomerPhone: phone,
		Items:         items,
		PlacedAt:      placed,
	})
	return err
}

func menuItem(name string, qty int, price int64) loyalty.LineItem {
	return loyalty.LineItem{Name: name, Quantity: qty, UnitPrice: decimal.NewFromInt(price)}
}

func (h *Handler) loadLoyalRegular(ctx context.Context, now time.Time) error {
	for i := 0; i < 23; i++ {
		placed := now.AddDate(0, 0, -i*2)
		if err := h.demoOrder(ctx, "Asha Patil", regularPhone, placed,
			menuItem("Masala Dosa", 1, 120), menuItem("Filter Coffee", 1, 40)); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadNewAndRepeat(ctx context.Context, now time.Time) error {
	guests := []struct {
		name   string
		phone  string
		visits int
	}{
		{"Ravi Kumar", "9000000001", 1},
		{"Meera Iyer", "9000000002", 1},
		{"Karan Shah", "9000000003", 4},
		{"Fatima Sheikh", "9000000004", 12},
	}
	for _, g := range guests {
		for v := 0; v < g.visits; v++ {
			if err := h.demoOrder(ctx, g.name, g.phone, now.AddDate(0, 0, -v),
				menuItem("Veg Thali", 1, 180)); err != nil {
				return err
			}
		}
	}
	for i := 0; i < 3; i++ {
		if err := h.demoOrder(ctx, "", "", now.Add(-time.Duration(i)*time.Hour),
			menuItem("Samosa", 2, 20), menuItem("Chai", 2, 15)); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadWrongNumbers(ctx context.Context, now time.Time) error {
	phones := []struct{ name, phone string }{
		{"Anil", "98765"},
		{"Sunita", "98765432101"},
		{"Joseph", "+919812345678"},
		{"Priya", "9812345678"},
	}
	for i, p := range phones {
		if err := h.demoOrder(ctx, p.name, p.phone, now.Add(-time.Duration(i)*time.Hour),
			menuItem("Pav Bhaji", 1, 110)); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadMonthlyBest(ctx context.Context, now time.Time) error {
	local := h.Calendar.In(now)
	lastMonth := local.AddDate(0, 0, -local.Day())
	spends := []struct {
		name, phone string
		placed      time.Time
		plates      int
	}{
		{"Vikram", "9000000010", local, 6},
		{"Vikram", "9000000010", local, 2},
		{"Leela", "9000000011", local, 5},
		{"Leela", "9000000011", lastMonth, 20},
		{"Omar", "9000000012", lastMonth, 3},
	}
	for _, s := range spends {
		if err := h.demoOrder(ctx, s.name, s.phone, s.placed,
			menuItem("Biryani", s.plates, 220)); err != nil {
			return err
		}
	}
	return nil
}
