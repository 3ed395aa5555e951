package api

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetmagic/pos-engine/loyalty"
	"github.com/streetmagic/pos-engine/loyalty/store"
	"github.com/streetmagic/pos-engine/orders"
)

func newSchedulerFixture(t *testing.T) (*SyncScheduler, *store.Memory) {
	t.Helper()
	mem := store.NewMemory(orders.FirstOrderNumber)
	dir := loyalty.NewDirectory(mem, loyalty.NewCalendar(time.UTC), nil, nil)
	return NewSyncScheduler(dir, nil), mem
}

func TestSyncScheduler_RunNowReconciles(t *testing.T) {
	s, mem := newSchedulerFixture(t)
	ctx := context.Background()

	// GIVEN: orders written behind the directory's back
	require.NoError(t, mem.SaveOrders(ctx, []loyalty.Order{
		{ID: "ORD-1", CustomerName: "Asha", CustomerPhone: "9876543210", Total: decimal.NewFromInt(100), PlacedAt: testNow},
		{ID: "ORD-2", CustomerName: "Asha", CustomerPhone: "9876543210", Total: decimal.NewFromInt(50), PlacedAt: testNow},
	}))

	// WHEN: a scheduled run fires
	require.NoError(t, s.RunNow(ctx))

	// THEN: the directory caught up and the run was recorded
	customers, err := mem.LoadCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, 2, customers[0].TotalOrders)
	assert.True(t, decimal.NewFromInt(150).Equal(customers[0].TotalAmount))

	last, lastErr := s.LastRun()
	assert.False(t, last.IsZero())
	assert.NoError(t, lastErr)
	assert.Equal(t, last.Add(s.Interval), s.NextRunTime())
}

func TestSyncScheduler_Disabled(t *testing.T) {
	s, _ := newSchedulerFixture(t)
	s.Enabled = false

	s.Start()
	defer s.Stop()

	last, _ := s.LastRun()
	assert.True(t, last.IsZero())
}

func TestSyncScheduler_StartStop(t *testing.T) {
	s, mem := newSchedulerFixture(t)
	ctx := context.Background()
	require.NoError(t, mem.SaveOrders(ctx, []loyalty.Order{
		{ID: "ORD-1", CustomerName: "Ravi", CustomerPhone: "9000000001", Total: decimal.NewFromInt(80), PlacedAt: testNow},
	}))
	s.Interval = time.Hour

	s.Start()
	s.Start() // second start is a no-op

	require.Eventually(t, func() bool {
		last, _ := s.LastRun()
		return !last.IsZero()
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	s.Stop()

	customers, err := mem.LoadCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "Ravi", customers[0].Name)
}
