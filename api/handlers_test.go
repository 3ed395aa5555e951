/*
handlers_test.go - HTTP tests for the customer, order and report handlers

Tests for:
- Checkout -> customers screen aggregation
- Redemption (200, then 422 when nothing is left)
- Rename propagation and the 409 on a taken phone
- Order history paging and sold items
- Report endpoints and /metrics
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetmagic/pos-engine/loyalty"
	"github.com/streetmagic/pos-engine/menu"
	"github.com/streetmagic/pos-engine/metrics"
	"github.com/streetmagic/pos-engine/orders"
	"github.com/streetmagic/pos-engine/purchases"
	"github.com/streetmagic/pos-engine/store/sqlite"
)

var testNow = time.Date(2025, 10, 14, 12, 0, 0, 0, time.UTC)

type testServer struct {
	router http.Handler
	store  *sqlite.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:", sqlite.WithFirstOrderNumber(orders.FirstOrderNumber))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	cal := loyalty.NewCalendar(time.UTC)
	dir := loyalty.NewDirectory(store, cal, nil, m)
	book := orders.NewBook(store, nil, m)
	book.Now = func() time.Time { return testNow }

	catalog := menu.NewCatalog(store, nil, m)
	register := purchases.NewRegister(store, cal, nil, m)
	register.Now = func() time.Time { return testNow }

	h := NewHandler(dir, book, catalog, register, cal, nil)
	h.Now = func() time.Time { return testNow }

	return &testServer{
		router: NewRouter(h, RouterOptions{Gatherer: reg, Database: store}),
		store:  store,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (ts *testServer) checkout(t *testing.T, name, phone string, price any) loyalty.Order {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/orders", map[string]any{
		"customerName":   name,
		"customerMobile": phone,
		"items":          []map[string]any{{"name": "Thali", "qty": "1", "price": price}},
		"date":           testNow.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[loyalty.Order](t, rec)
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func TestCheckoutAggregatesIntoDirectory(t *testing.T) {
	ts := newTestServer(t)

	// GIVEN: ten checkouts for one phone, prices sent as strings and numbers
	for i := 0; i < 10; i++ {
		var price any = 100
		if i%2 == 0 {
			price = "100"
		}
		ts.checkout(t, "Asha", "9876543210", price)
	}

	// WHEN: the customers screen loads
	rec := ts.do(t, http.MethodGet, "/api/customers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[CustomerListResponse](t, rec)

	// THEN: one entry with one reward waiting
	require.Equal(t, 1, resp.Count)
	c := resp.Customers[0]
	assert.Equal(t, "9876543210", c.Phone)
	assert.Equal(t, 10, c.TotalOrders)
	assert.Equal(t, "1000", c.TotalAmount.String())
	assert.Equal(t, 1, c.RewardsRemaining)
	assert.Equal(t, loyalty.VisitRepeat, c.Visit)
}

func TestRedeemThenNothingLeft(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 10; i++ {
		ts.checkout(t, "Asha", "9876543210", 50)
	}

	rec := ts.do(t, http.MethodPost, "/api/customers/9876543210/redeem", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[loyalty.CustomerView](t, rec)
	assert.Equal(t, 1, view.Redeemed)
	assert.Equal(t, 0, view.RewardsRemaining)

	rec = ts.do(t, http.MethodPost, "/api/customers/9876543210/redeem", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "no_rewards_available", errResp.Code)

	// Redemption survives the next aggregation
	rec = ts.do(t, http.MethodGet, "/api/customers", nil)
	resp := decode[CustomerListResponse](t, rec)
	assert.Equal(t, 1, resp.Customers[0].Redeemed)
}

func TestRedeemUnknownPhone(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/customers/0000000000/redeem", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRenamePropagatesToOrders(t *testing.T) {
	ts := newTestServer(t)
	first := ts.checkout(t, "Ravi", "9000000001", 80)
	ts.checkout(t, "Ravi", "9000000001", 80)
	ts.do(t, http.MethodPost, "/api/customers/sync", nil)

	rec := ts.do(t, http.MethodPut, "/api/customers/9000000001", map[string]any{
		"phone": "9000000009",
		"name":  "Ravi K",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/orders/"+string(first.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	o := decode[loyalty.Order](t, rec)
	assert.Equal(t, "9000000009", o.CustomerPhone)
	assert.Equal(t, "Ravi K", o.CustomerName)

	rec = ts.do(t, http.MethodGet, "/api/customers/9000000009", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[loyalty.CustomerView](t, rec).TotalOrders)

	rec = ts.do(t, http.MethodGet, "/api/customers/9000000001", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRenameOntoTakenPhoneConflicts(t *testing.T) {
	ts := newTestServer(t)
	ts.checkout(t, "Ravi", "9000000001", 80)
	ts.checkout(t, "Meera", "9000000002", 80)
	ts.do(t, http.MethodPost, "/api/customers/sync", nil)

	rec := ts.do(t, http.MethodPut, "/api/customers/9000000001", map[string]any{"phone": "9000000002"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_phone", decode[ErrorResponse](t, rec).Code)

	// Ledger untouched
	ledger, err := ts.store.LoadOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "9000000001", ledger[0].CustomerPhone)
}

func TestCreateAndDeleteCustomer(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/customers", map[string]any{"phone": "9123456789", "name": "Walk-in", "totalOrders": "3"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 3, decode[loyalty.CustomerView](t, rec).TotalOrders)

	rec = ts.do(t, http.MethodPost, "/api/customers", map[string]any{"phone": "9123456789"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/customers", map[string]any{"phone": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/customers/9123456789", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/customers/9123456789", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListCustomersInvalidFilter(t *testing.T) {
	ts := newTestServer(t)
	ts.checkout(t, "Good", "9876543210", 10)
	ts.checkout(t, "Typo", "98765", 10)

	rec := ts.do(t, http.MethodGet, "/api/customers?invalid=true", nil)
	resp := decode[CustomerListResponse](t, rec)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "98765", resp.Customers[0].Phone)
	assert.True(t, resp.Customers[0].InvalidPhone)

	rec = ts.do(t, http.MethodGet, "/api/customers?q=good", nil)
	resp = decode[CustomerListResponse](t, rec)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "Good", resp.Customers[0].Name)
}

func TestCustomerInsights(t *testing.T) {
	ts := newTestServer(t)
	ts.checkout(t, "Once", "9000000001", 500)
	ts.checkout(t, "Twice", "9000000002", 100)
	ts.checkout(t, "Twice", "9000000002", 100)

	rec := ts.do(t, http.MethodGet, "/api/customers/insights", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ins := decode[loyalty.Insights](t, rec)

	assert.Equal(t, 2, ins.Customers)
	assert.Equal(t, 1, ins.Visits.New)
	assert.Equal(t, 1, ins.Visits.Repeat)
	require.NotNil(t, ins.BestThisMonth)
	assert.Equal(t, "9000000001", ins.BestThisMonth.Phone)
}

// =============================================================================
// ORDERS
// =============================================================================

func TestOrderLifecycle(t *testing.T) {
	ts := newTestServer(t)

	o := ts.checkout(t, "", "", 40)
	assert.Equal(t, loyalty.OrderID("ORD-4813"), o.ID)

	rec := ts.do(t, http.MethodPut, "/api/orders/"+string(o.ID), map[string]any{
		"items": []map[string]any{{"name": "Thali", "qty": 3, "price": "40"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "120", decode[loyalty.Order](t, rec).Total.String())

	rec = ts.do(t, http.MethodPut, "/api/orders/"+string(o.ID), map[string]any{"date": "14/10/2025"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/orders/"+string(o.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/orders/"+string(o.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateOrderWithoutItems(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/orders", map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOrdersPaginates(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 12; i++ {
		ts.checkout(t, "", "", 10+i)
	}

	rec := ts.do(t, http.MethodGet, "/api/orders?sort=high&page=2&page_size=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[orders.Page](t, rec)

	assert.Equal(t, 12, page.Count)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Orders, 5)
	assert.Equal(t, "16", page.Orders[0].Total.String())
}

func TestSoldItems(t *testing.T) {
	ts := newTestServer(t)
	ts.checkout(t, "", "", 10)
	ts.checkout(t, "", "", 10)

	rec := ts.do(t, http.MethodGet, "/api/orders/sold", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SoldItemsResponse](t, rec)

	assert.Equal(t, "2025-10-14", resp.Date)
	require.NotNil(t, resp.BestSeller)
	assert.Equal(t, "Thali", resp.BestSeller.Name)
	assert.Equal(t, 2, resp.BestSeller.Quantity)

	rec = ts.do(t, http.MethodGet, "/api/orders/sold?date=2020-01-01", nil)
	resp = decode[SoldItemsResponse](t, rec)
	assert.Empty(t, resp.Items)
	assert.Nil(t, resp.BestSeller)
}

// =============================================================================
// REPORTS / OPS
// =============================================================================

func TestReports(t *testing.T) {
	ts := newTestServer(t)
	ts.checkout(t, "", "", 100)
	ts.checkout(t, "", "", 50)

	rec := ts.do(t, http.MethodGet, "/api/reports/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[orders.Summary](t, rec)
	assert.Equal(t, "150", summary.TodayTotal.String())
	assert.Equal(t, 2, summary.TodayCount)

	rec = ts.do(t, http.MethodGet, "/api/reports/trend?days=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	trend := decode[TrendResponse](t, rec)
	require.Len(t, trend.Points, 3)
	assert.Equal(t, "2025-10-14", trend.Points[2].Date)
	assert.Equal(t, "150", trend.Sales.String())

	rec = ts.do(t, http.MethodGet, "/api/reports/items?from=2025-10-14&to=2025-10-14", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[orders.RangeReport](t, rec)
	assert.Equal(t, 2, items.Transactions)

	rec = ts.do(t, http.MethodGet, "/api/reports/items?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.checkout(t, "Asha", "9876543210", 10)

	rec := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pos_orders_total{action="create"} 1`)
	assert.Contains(t, rec.Body.String(), "pos_reconciliations_total")
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestLoadScenario_LoyalRegular(t *testing.T) {
	ts := newTestServer(t)
	ts.checkout(t, "Stale", "9111111111", 10)

	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "loyal-regular"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/customers", nil)
	resp := decode[CustomerListResponse](t, rec)
	require.Equal(t, 1, resp.Count)
	c := resp.Customers[0]
	assert.Equal(t, 23, c.TotalOrders)
	assert.Equal(t, 2, c.RewardsEarned)
	assert.Equal(t, 1, c.Redeemed)
	assert.Equal(t, 1, c.RewardsRemaining)

	rec = ts.do(t, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "loyal-regular", decode[ScenarioDTO](t, rec).ID)
}

func TestLoadScenario_Unknown(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetData(t *testing.T) {
	ts := newTestServer(t)
	ts.checkout(t, "Asha", "9876543210", 10)

	rec := ts.do(t, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	ledger, err := ts.store.LoadOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ledger)

	// The order counter starts over as well
	o := ts.checkout(t, "Asha", "9876543210", 10)
	assert.Equal(t, loyalty.OrderID("ORD-4813"), o.ID)
}

func TestHealthzPingsDatabase(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, ts.store.Close())
	rec = ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Database unavailable", decode[ErrorResponse](t, rec).Error)
}
