// Package store provides in-memory Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/streetmagic/pos-engine/loyalty"
	"github.com/streetmagic/pos-engine/menu"
	"github.com/streetmagic/pos-engine/purchases"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	orders    []loyalty.Order
	customers []loyalty.Customer
	lastOrder int
	base      int
	menu      []menu.Item
	stock     purchases.Stock
}

// NewMemory returns an empty store whose order numbers continue after base.
func NewMemory(base int) *Memory {
	return &Memory{lastOrder: base, base: base}
}

func (m *Memory) LoadOrders(_ context.Context) ([]loyalty.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneOrders(m.orders), nil
}

func (m *Memory) SaveOrders(_ context.Context, orders []loyalty.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = cloneOrders(orders)
	return nil
}

func (m *Memory) LoadCustomers(_ context.Context) ([]loyalty.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]loyalty.Customer{}, m.customers...), nil
}

func (m *Memory) SaveCustomers(_ context.Context, customers []loyalty.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers = append([]loyalty.Customer{}, customers...)
	return nil
}

// Reset clears orders, customers and the order counter. Menu and stock
// are kept.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders, m.customers = nil, nil
	m.lastOrder = m.base
	return nil
}

func (m *Memory) LoadMenu(_ context.Context) ([]menu.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneMenu(m.menu), nil
}

func (m *Memory) UpdateMenu(_ context.Context, fn func([]menu.Item) ([]menu.Item, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := fn(cloneMenu(m.menu))
	if err != nil {
		return err
	}
	m.menu = cloneMenu(next)
	return nil
}

func (m *Memory) LoadStock(_ context.Context) (purchases.Stock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stock.Clone(), nil
}

func (m *Memory) UpdateStock(_ context.Context, fn func(purchases.Stock) (purchases.Stock, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := fn(m.stock.Clone())
	if err != nil {
		return err
	}
	m.stock = next.Clone()
	return nil
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(loyalty.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := memorySnapshot{
		orders:    cloneOrders(m.orders),
		customers: append([]loyalty.Customer{}, m.customers...),
		lastOrder: m.lastOrder,
	}

	if err := fn(&txMemoryView{parent: m}); err != nil {
		m.orders = snap.orders
		m.customers = snap.customers
		m.lastOrder = snap.lastOrder
		return err
	}
	return nil
}

type memorySnapshot struct {
	orders    []loyalty.Order
	customers []loyalty.Customer
	lastOrder int
}

// txMemoryView writes straight to the parent; the parent lock is held by WithTx.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) LoadOrders(_ context.Context) ([]loyalty.Order, error) {
	return cloneOrders(tv.parent.orders), nil
}

func (tv *txMemoryView) SaveOrders(_ context.Context, orders []loyalty.Order) error {
	tv.parent.orders = cloneOrders(orders)
	return nil
}

func (tv *txMemoryView) LoadCustomers(_ context.Context) ([]loyalty.Customer, error) {
	return append([]loyalty.Customer{}, tv.parent.customers...), nil
}

func (tv *txMemoryView) SaveCustomers(_ context.Context, customers []loyalty.Customer) error {
	tv.parent.customers = append([]loyalty.Customer{}, customers...)
	return nil
}

// NextOrderNumber advances the counter inside the transaction.
func (tv *txMemoryView) NextOrderNumber(_ context.Context) (int, error) {
	tv.parent.lastOrder++
	return tv.parent.lastOrder, nil
}

func cloneOrders(orders []loyalty.Order) []loyalty.Order {
	out := make([]loyalty.Order, len(orders))
	for i, o := range orders {
		o.Items = append([]loyalty.LineItem(nil), o.Items...)
		out[i] = o
	}
	return out
}

func cloneMenu(items []menu.Item) []menu.Item {
	out := make([]menu.Item, len(items))
	for i, it := range items {
		it.Variants = append([]menu.Variant(nil), it.Variants...)
		out[i] = it
	}
	return out
}
