package orders_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetmagic/pos-engine/loyalty"
	"github.com/streetmagic/pos-engine/loyalty/store"
	"github.com/streetmagic/pos-engine/metrics"
	"github.com/streetmagic/pos-engine/orders"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var (
	utc  = loyalty.NewCalendar(time.UTC)
	noon = time.Date(2025, 10, 14, 12, 0, 0, 0, time.UTC)
)

func rupees(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func line(name string, qty int, price int64) loyalty.LineItem {
	return loyalty.LineItem{Name: name, Quantity: qty, UnitPrice: rupees(price)}
}

func newTestBook(t *testing.T) (*orders.Book, *store.Memory) {
	t.Helper()
	mem := store.NewMemory(orders.FirstOrderNumber)
	b := orders.NewBook(mem, nil, nil)
	b.Now = func() time.Time { return noon }
	return b, mem
}

// =============================================================================
// CREATE
// =============================================================================

func TestBook_CreateAssignsSequentialIDs(t *testing.T) {
	ctx := context.Background()
	b, mem := newTestBook(t)

	first, err := b.Create(ctx, orders.Draft{Items: []loyalty.LineItem{line("Vada Pav", 2, 30)}})
	require.NoError(t, err)
	second, err := b.Create(ctx, orders.Draft{Items: []loyalty.LineItem{line("Chai", 1, 15)}})
	require.NoError(t, err)

	assert.Equal(t, loyalty.OrderID("ORD-4813"), first.ID)
	assert.Equal(t, loyalty.OrderID("ORD-4814"), second.ID)

	ledger, err := mem.LoadOrders(ctx)
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	assert.Equal(t, first.ID, ledger[0].ID)
}

func TestBook_CreateComputesTotals(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBook(t)

	// GIVEN: 2 x 30 + 1 x 50 with a 20 discount
	o, err := b.Create(ctx, orders.Draft{
		CustomerName:  " Asha ",
		CustomerPhone: " 9876543210 ",
		Items:         []loyalty.LineItem{line("Vada Pav", 2, 30), line("Lassi", 1, 50)},
		Discount:      rupees(20),
	})
	require.NoError(t, err)

	// THEN: subtotal 110, total 90, defaults filled in
	assert.True(t, o.Subtotal.Equal(rupees(110)))
	assert.True(t, o.Total.Equal(rupees(90)))
	assert.Equal(t, loyalty.OrderDineIn, o.Type)
	assert.Equal(t, noon, o.PlacedAt)
	assert.Equal(t, "Asha", o.CustomerName)
	assert.Equal(t, "9876543210", o.CustomerPhone)
}

func TestBook_CreateClampsTotalAndItems(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBook(t)

	o, err := b.Create(ctx, orders.Draft{
		Items:    []loyalty.LineItem{{Name: "Samosa", Quantity: 0, UnitPrice: rupees(-5)}},
		Discount: rupees(100),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, o.Items[0].Quantity)
	assert.True(t, o.Items[0].UnitPrice.IsZero())
	assert.True(t, o.Total.IsZero())
}

func TestBook_CreateTotalOverride(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBook(t)
	total := rupees(99)

	o, err := b.Create(ctx, orders.Draft{Items: []loyalty.LineItem{line("Thali", 1, 120)}, Total: &total})
	require.NoError(t, err)
	assert.True(t, o.Total.Equal(total))
}

func TestBook_CreateRejectsEmptyOrder(t *testing.T) {
	b, mem := newTestBook(t)

	_, err := b.Create(context.Background(), orders.Draft{})
	assert.ErrorIs(t, err, orders.ErrEmptyOrder)

	ledger, _ := mem.LoadOrders(context.Background())
	assert.Empty(t, ledger)
}

func TestBook_CreateRecordsMetrics(t *testing.T) {
	mem := store.NewMemory(orders.FirstOrderNumber)
	m := metrics.New(prometheus.NewRegistry())
	b := orders.NewBook(mem, nil, m)

	_, err := b.Create(context.Background(), orders.Draft{Items: []loyalty.LineItem{line("Chai", 1, 15)}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersRecorded.WithLabelValues("create")))
}

// =============================================================================
// EDIT / DELETE
// =============================================================================

func TestBook_UpdateItemsRecomputesWithStoredDiscount(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBook(t)
	o, err := b.Create(ctx, orders.Draft{Items: []loyalty.LineItem{line("Chai", 1, 15)}, Discount: rupees(5)})
	require.NoError(t, err)

	// WHEN: items replaced
	updated, err := b.Update(ctx, o.ID, orders.Edit{Items: []loyalty.LineItem{line("Chai", 4, 15)}})
	require.NoError(t, err)

	// THEN: 60 - 5
	assert.True(t, updated.Subtotal.Equal(rupees(60)))
	assert.True(t, updated.Total.Equal(rupees(55)))

	got, err := b.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestBook_UpdateCustomerAndDate(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBook(t)
	o, err := b.Create(ctx, orders.Draft{Items: []loyalty.LineItem{line("Chai", 1, 15)}})
	require.NoError(t, err)

	name, phone := "Ravi", "9000000001"
	when := noon.AddDate(0, 0, -1)
	updated, err := b.Update(ctx, o.ID, orders.Edit{CustomerName: &name, CustomerPhone: &phone, PlacedAt: &when})
	require.NoError(t, err)

	assert.Equal(t, "Ravi", updated.CustomerName)
	assert.Equal(t, "9000000001", updated.CustomerPhone)
	assert.Equal(t, when, updated.PlacedAt)
	assert.True(t, updated.Total.Equal(o.Total))
}

func TestBook_UpdateAndDeleteUnknownID(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBook(t)

	_, err := b.Update(ctx, "ORD-1", orders.Edit{})
	assert.True(t, orders.IsNotFound(err))

	err = b.Delete(ctx, "ORD-1")
	assert.True(t, orders.IsNotFound(err))

	_, err = b.Get(ctx, "ORD-1")
	assert.True(t, orders.IsNotFound(err))
}

func TestBook_Delete(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBook(t)
	keep, err := b.Create(ctx, orders.Draft{Items: []loyalty.LineItem{line("Chai", 1, 15)}})
	require.NoError(t, err)
	drop, err := b.Create(ctx, orders.Draft{Items: []loyalty.LineItem{line("Lassi", 1, 50)}})
	require.NoError(t, err)

	require.NoError(t, b.Delete(ctx, drop.ID))

	all, err := b.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, keep.ID, all[0].ID)
}

// =============================================================================
// ID BACKFILL
// =============================================================================

func TestBook_EnsureIDsBackfillsLegacyOrders(t *testing.T) {
	ctx := context.Background()
	b, mem := newTestBook(t)

	// GIVEN: one legacy order without an id, one already numbered
	require.NoError(t, mem.SaveOrders(ctx, []loyalty.Order{
		{ID: "", Total: rupees(10), PlacedAt: noon},
		{ID: "ORD-100", Total: rupees(20), PlacedAt: noon},
		{ID: "1699999999", Total: rupees(30), PlacedAt: noon},
	}))

	n, err := b.EnsureIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ledger, _ := mem.LoadOrders(ctx)
	assert.Equal(t, loyalty.OrderID("ORD-4813"), ledger[0].ID)
	assert.Equal(t, loyalty.OrderID("ORD-100"), ledger[1].ID)
	assert.Equal(t, loyalty.OrderID("ORD-4814"), ledger[2].ID)

	// Second pass is a no-op
	n, err = b.EnsureIDs(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// failingSaves hands out transaction views whose ledger writes fail.
type failingSaves struct{ *store.Memory }

var errDiskFull = errors.New("disk full")

func (f failingSaves) WithTx(ctx context.Context, fn func(loyalty.Store) error) error {
	return f.Memory.WithTx(ctx, func(s loyalty.Store) error { return fn(failingView{s}) })
}

type failingView struct{ loyalty.Store }

func (v failingView) NextOrderNumber(ctx context.Context) (int, error) {
	return v.Store.(orders.Counter).NextOrderNumber(ctx)
}

func (v failingView) SaveOrders(context.Context, []loyalty.Order) error { return errDiskFull }

func TestBook_FailedWritesDoNotConsumeNumbers(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory(orders.FirstOrderNumber)
	require.NoError(t, mem.SaveOrders(ctx, []loyalty.Order{{ID: "", Total: rupees(10), PlacedAt: noon}}))

	// GIVEN: a book whose ledger writes fail
	broken := orders.NewBook(failingSaves{mem}, nil, nil)

	// WHEN: backfill and checkout both fail
	_, err := broken.EnsureIDs(ctx)
	require.ErrorIs(t, err, errDiskFull)
	_, err = broken.Create(ctx, orders.Draft{Items: []loyalty.LineItem{line("Chai", 1, 15)}})
	require.ErrorIs(t, err, errDiskFull)

	// THEN: the next successful writes start from the first number
	b := orders.NewBook(mem, nil, nil)
	n, err := b.EnsureIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	o, err := b.Create(ctx, orders.Draft{Items: []loyalty.LineItem{line("Chai", 1, 15)}})
	require.NoError(t, err)
	assert.Equal(t, loyalty.OrderID("ORD-4814"), o.ID)

	ledger, _ := mem.LoadOrders(ctx)
	assert.Equal(t, loyalty.OrderID("ORD-4813"), ledger[0].ID)
}

func TestBook_StoreWithoutCounter(t *testing.T) {
	mem := store.NewMemory(orders.FirstOrderNumber)
	b := orders.NewBook(noCounter{mem}, nil, nil)

	_, err := b.Create(context.Background(), orders.Draft{Items: []loyalty.LineItem{line("Chai", 1, 15)}})
	assert.ErrorIs(t, err, orders.ErrNoCounter)
}

// noCounter hides the counter from transaction views.
type noCounter struct{ *store.Memory }

func (n noCounter) WithTx(ctx context.Context, fn func(loyalty.Store) error) error {
	return n.Memory.WithTx(ctx, func(s loyalty.Store) error { return fn(plainView{s}) })
}

type plainView struct{ loyalty.Store }
