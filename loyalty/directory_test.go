package loyalty_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetmagic/pos-engine/loyalty"
	"github.com/streetmagic/pos-engine/loyalty/store"
	"github.com/streetmagic/pos-engine/metrics"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestDirectory(t *testing.T, orders []loyalty.Order) (*loyalty.Directory, *store.Memory) {
	t.Helper()
	mem := store.NewMemory(4812)
	require.NoError(t, mem.SaveOrders(context.Background(), orders))
	return loyalty.NewDirectory(mem, utc, nil, nil), mem
}

// =============================================================================
// SYNC
// =============================================================================

func TestDirectory_SyncPersists(t *testing.T) {
	ctx := context.Background()
	dir, mem := newTestDirectory(t, repeatOrders("9876543210", "Asha", 11, 100))

	synced, err := dir.Sync(ctx)
	require.NoError(t, err)
	require.Len(t, synced, 1)

	stored, err := mem.LoadCustomers(ctx)
	require.NoError(t, err)
	assert.Equal(t, synced, stored)
}

func TestDirectory_SyncRecordsMetrics(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory(0)
	require.NoError(t, mem.SaveOrders(ctx, repeatOrders("A", "a", 2, 1)))
	m := metrics.New(prometheus.NewRegistry())
	dir := loyalty.NewDirectory(mem, utc, nil, m)

	_, err := dir.Sync(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reconciliations.WithLabelValues(metrics.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DirectorySize))
}

// =============================================================================
// REDEEM
// =============================================================================

func TestDirectory_RedeemPersistsImmediately(t *testing.T) {
	ctx := context.Background()
	dir, mem := newTestDirectory(t, repeatOrders("9876543210", "Asha", 10, 100))
	_, err := dir.Sync(ctx)
	require.NoError(t, err)

	c, err := dir.Redeem(ctx, "9876543210")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Redeemed)

	stored, _ := mem.LoadCustomers(ctx)
	assert.Equal(t, 1, byPhone(t, stored, "9876543210").Redeemed)

	// Second redemption has nothing left
	_, err = dir.Redeem(ctx, "9876543210")
	assert.True(t, errors.Is(err, loyalty.ErrNoRewardsAvailable))
	stored, _ = mem.LoadCustomers(ctx)
	assert.Equal(t, 1, byPhone(t, stored, "9876543210").Redeemed, "refused redemption writes nothing")
}

func TestDirectory_RedeemUnknownPhone(t *testing.T) {
	dir, _ := newTestDirectory(t, nil)
	_, err := dir.Redeem(context.Background(), "000")
	assert.True(t, loyalty.IsNotFound(err))
}

// =============================================================================
// RENAME
// =============================================================================

func TestDirectory_RenamePropagatesToLedger(t *testing.T) {
	// GIVEN: 111 has three orders, 222 has none
	ctx := context.Background()
	dir, mem := newTestDirectory(t, repeatOrders("111", "Old", 3, 100))
	_, err := dir.Sync(ctx)
	require.NoError(t, err)

	// WHEN: Renaming 111 -> 222 then reconciling
	_, err = dir.Rename(ctx, "111", "222", "New")
	require.NoError(t, err)
	directory, err := dir.Sync(ctx)
	require.NoError(t, err)

	// THEN: One record under 222, nothing under 111
	require.Len(t, directory, 1)
	assert.Equal(t, "222", directory[0].Phone)
	assert.Equal(t, "New", directory[0].Name)
	assert.Equal(t, 3, directory[0].TotalOrders)

	orders, _ := mem.LoadOrders(ctx)
	for _, o := range orders {
		assert.Equal(t, "222", o.CustomerPhone)
	}
}

func TestDirectory_RenamePreservesRedeemed(t *testing.T) {
	ctx := context.Background()
	dir, _ := newTestDirectory(t, repeatOrders("111", "Old", 20, 100))
	_, err := dir.Sync(ctx)
	require.NoError(t, err)
	_, err = dir.Redeem(ctx, "111")
	require.NoError(t, err)

	c, err := dir.Rename(ctx, "111", "222", "New")
	require.NoError(t, err)

	assert.Equal(t, 1, c.Redeemed)
	assert.Equal(t, 1, loyalty.RewardsRemaining(c))
}

func TestDirectory_RenameOntoExistingPhoneRejected(t *testing.T) {
	// GIVEN: 111 has three orders and 222 has five of its own
	ctx := context.Background()
	orders := append(repeatOrders("111", "Old", 3, 100), repeatOrders("222", "Other", 5, 100)...)
	dir, mem := newTestDirectory(t, orders)
	_, err := dir.Sync(ctx)
	require.NoError(t, err)

	// WHEN: Renaming 111 -> 222
	_, err = dir.Rename(ctx, "111", "222", "Merged")

	// THEN: Refused, nothing changed
	require.Error(t, err)
	assert.True(t, errors.Is(err, loyalty.ErrDuplicatePhoneOnRename))
	var renErr *loyalty.RenameError
	require.ErrorAs(t, err, &renErr)
	assert.Equal(t, 5, renErr.ExistingOrder)

	stored, _ := mem.LoadOrders(ctx)
	assert.Equal(t, orders, stored)
	directory, _ := mem.LoadCustomers(ctx)
	assert.Equal(t, 3, byPhone(t, directory, "111").TotalOrders)
	assert.Equal(t, 5, byPhone(t, directory, "222").TotalOrders)
}

func TestDirectory_RenameOntoUnsyncedLedgerPhoneRejected(t *testing.T) {
	// GIVEN: 111 is in the directory; 222 only has orders written after the last sync
	ctx := context.Background()
	dir, mem := newTestDirectory(t, repeatOrders("111", "Old", 3, 100))
	_, err := dir.Sync(ctx)
	require.NoError(t, err)

	ledger, _ := mem.LoadOrders(ctx)
	ledger = append(ledger, repeatOrders("222", "Other", 5, 100)...)
	require.NoError(t, mem.SaveOrders(ctx, ledger))

	// WHEN: Renaming 111 -> 222
	_, err = dir.Rename(ctx, "111", "222", "Merged")

	// THEN: Refused with the ledger's view of 222, nothing changed
	require.Error(t, err)
	assert.True(t, errors.Is(err, loyalty.ErrDuplicatePhoneOnRename))
	var renErr *loyalty.RenameError
	require.ErrorAs(t, err, &renErr)
	assert.Equal(t, 5, renErr.ExistingOrder)
	assert.Equal(t, "Other", renErr.ExistingName)

	stored, _ := mem.LoadOrders(ctx)
	assert.Equal(t, ledger, stored)

	// AND: the next sync keeps the two histories apart
	directory, err := dir.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, byPhone(t, directory, "111").TotalOrders)
	assert.Equal(t, 5, byPhone(t, directory, "222").TotalOrders)
}

func TestDirectory_NameOnlyChangePropagates(t *testing.T) {
	ctx := context.Background()
	dir, mem := newTestDirectory(t, repeatOrders("9876543210", "asha", 2, 10))
	_, err := dir.Sync(ctx)
	require.NoError(t, err)

	name := "Asha Kumari"
	_, err = dir.Update(ctx, "9876543210", loyalty.CustomerUpdate{Name: &name})
	require.NoError(t, err)

	directory, err := dir.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Asha Kumari", directory[0].Name, "reconciliation keeps the new name")

	orders, _ := mem.LoadOrders(ctx)
	assert.Equal(t, "Asha Kumari", orders[1].CustomerName)
}

func TestDirectory_RenameRejectsBlankPhone(t *testing.T) {
	ctx := context.Background()
	dir, _ := newTestDirectory(t, repeatOrders("111", "Old", 1, 10))
	_, err := dir.Sync(ctx)
	require.NoError(t, err)

	_, err = dir.Rename(ctx, "111", "  ", "x")
	assert.True(t, errors.Is(err, loyalty.ErrMissingIdentity))
}

// =============================================================================
// ADD / DELETE / LIST
// =============================================================================

func TestDirectory_AddAndDelete(t *testing.T) {
	ctx := context.Background()
	dir, _ := newTestDirectory(t, nil)

	c, err := dir.Add(ctx, loyalty.Customer{Phone: " 9000000000 ", Name: "Manual", TotalOrders: 4, Redeemed: 9})
	require.NoError(t, err)
	assert.Equal(t, "9000000000", c.Phone)
	assert.Equal(t, 0, c.Redeemed, "manual adds start with no redemptions")

	_, err = dir.Add(ctx, loyalty.Customer{Phone: "9000000000"})
	assert.True(t, errors.Is(err, loyalty.ErrCustomerExists))

	_, err = dir.Add(ctx, loyalty.Customer{Phone: "undefined"})
	assert.True(t, errors.Is(err, loyalty.ErrMissingIdentity))

	require.NoError(t, dir.Delete(ctx, "9000000000"))
	_, err = dir.Get(ctx, "9000000000")
	assert.True(t, loyalty.IsNotFound(err))
	assert.True(t, loyalty.IsNotFound(dir.Delete(ctx, "9000000000")))
}

func TestDirectory_DeleteDoesNotTouchLedger(t *testing.T) {
	ctx := context.Background()
	dir, mem := newTestDirectory(t, repeatOrders("9876543210", "Asha", 2, 10))
	_, err := dir.Sync(ctx)
	require.NoError(t, err)

	require.NoError(t, dir.Delete(ctx, "9876543210"))

	orders, _ := mem.LoadOrders(ctx)
	assert.Len(t, orders, 2)
	directory, err := dir.Sync(ctx)
	require.NoError(t, err)
	assert.Len(t, directory, 1, "next sync recreates the entry from the ledger")
}

func TestDirectory_ListViews(t *testing.T) {
	ctx := context.Background()
	orders := append(repeatOrders("9876543210", "Asha", 12, 10), repeatOrders("12345", "Short", 1, 10)...)
	dir, _ := newTestDirectory(t, orders)
	_, err := dir.Sync(ctx)
	require.NoError(t, err)

	views, err := dir.List(ctx, "", false)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "9876543210", views[0].Phone)
	assert.Equal(t, 1, views[0].RewardsRemaining)
	assert.Equal(t, loyalty.TierBronze, views[0].Tier)
	assert.Equal(t, 8, views[0].NextRewardIn)
	assert.Equal(t, loyalty.VisitNew, views[1].Visit)

	wrong, err := dir.List(ctx, "", true)
	require.NoError(t, err)
	require.Len(t, wrong, 1)
	assert.True(t, wrong[0].InvalidPhone)
}

func TestDirectory_Insights(t *testing.T) {
	ctx := context.Background()
	lastMonth := time.Date(2025, time.September, 2, 10, 0, 0, 0, time.UTC)
	orders := []loyalty.Order{
		order("1", "A", "Anil", 500),
		order("2", "B", "Bina", 300),
		order("3", "B", "Bina", 100),
		at(order("4", "C", "Chan", 5000), lastMonth),
	}
	dir, _ := newTestDirectory(t, orders)
	_, err := dir.Sync(ctx)
	require.NoError(t, err)

	ins, err := dir.Insights(ctx, day1)
	require.NoError(t, err)

	assert.Equal(t, 3, ins.Customers)
	assert.Equal(t, loyalty.VisitCounts{New: 2, Repeat: 1}, ins.Visits)
	assert.Equal(t, 3, ins.WrongNumbers)
	require.NotNil(t, ins.BestThisMonth)
	assert.Equal(t, "A", ins.BestThisMonth.Phone)
	require.NotNil(t, ins.BestToday)
	assert.Equal(t, "A", ins.BestToday.Phone)
}
