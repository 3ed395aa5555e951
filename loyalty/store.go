/*
store.go - Persistence interface for the ledger and directory

CONTRACT:
  Both collections are loaded whole and saved whole. There is no partial
  read or write and no schema version. This keeps the engine compatible
  with other writers (checkout, order edits) that replace the ledger
  wholesale.

ATOMICITY:
  Rename touches both collections. TxStore.WithTx runs fn against a
  transactional view; returning an error rolls back both writes, so a
  failed rename never leaves the ledger renamed with a stale directory.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite, used by the server
  - loyalty/store/memory.go: In-memory, used by tests
*/
package loyalty

import "context"

// Store loads and saves whole collections.
type Store interface {
	LoadOrders(ctx context.Context) ([]Order, error)
	SaveOrders(ctx context.Context, orders []Order) error

	LoadCustomers(ctx context.Context) ([]Customer, error)
	SaveCustomers(ctx context.Context, customers []Customer) error
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, all writes made through the view are discarded.
	WithTx(ctx context.Context, fn func(Store) error) error
}
