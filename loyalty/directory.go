/*
directory.go - Customer directory service

PURPOSE:
  Owns the load -> mutate -> save cycle around the pure engine functions.
  The host application injects the store; the engine keeps no global
  collections.

CONCURRENCY:
  One Directory serialises its own read-modify-write cycles with a mutex,
  and every write runs inside TxStore.WithTx. Writers that bypass the
  Directory (checkout appending orders) are tolerated because the
  directory is always recomputed from the ledger on Sync. Two Directory
  instances over the same database are NOT coordinated beyond the
  store's own transaction isolation.

OPERATIONS:
  Sync:    Reconcile directory from ledger and persist
  Redeem:  Consume one reward, persist immediately
  Update:  Edit name/phone/totals; identity changes propagate to the
           ledger before the old key is replaced
  Add:     Manual entry
  Delete:  Remove entry (ledger untouched)
*/
package loyalty

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/streetmagic/pos-engine/metrics"
)

// Directory is the stateful boundary around the customer directory.
type Directory struct {
	Store    TxStore
	Calendar Calendar

	log     *zap.Logger
	metrics *metrics.Metrics
	mu      sync.Mutex
}

// NewDirectory creates a Directory. A nil logger disables logging and a
// nil metrics disables instrumentation.
func NewDirectory(store TxStore, cal Calendar, log *zap.Logger, m *metrics.Metrics) *Directory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{
		Store:    store,
		Calendar: cal,
		log:      log.Named("directory"),
		metrics:  m,
	}
}

// CustomerView is a customer with derived loyalty fields for display.
type CustomerView struct {
	Customer
	RewardsEarned    int   `json:"rewardsEarned"`
	RewardsRemaining int   `json:"rewardsRemaining"`
	NextRewardIn     int   `json:"nextRewardIn"`
	Tier             Tier  `json:"tier,omitempty"`
	Visit            Visit `json:"visit"`
	InvalidPhone     bool  `json:"invalidPhone"`
}

// View derives display fields for c.
func View(c Customer) CustomerView {
	return CustomerView{
		Customer:         c,
		RewardsEarned:    RewardsEarned(c),
		RewardsRemaining: RewardsRemaining(c),
		NextRewardIn:     OrdersToNextReward(c),
		Tier:             TierFor(c.TotalOrders),
		Visit:            Classify(c),
		InvalidPhone:     IsInvalidPhone(c),
	}
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// Sync reconciles the directory against the ledger and persists it.
func (d *Directory) Sync(ctx context.Context) ([]Customer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var result []Customer
	err := d.Store.WithTx(ctx, func(s Store) error {
		orders, err := s.LoadOrders(ctx)
		if err != nil {
			return fmt.Errorf("load orders: %w", err)
		}
		directory, err := s.LoadCustomers(ctx)
		if err != nil {
			return fmt.Errorf("load customers: %w", err)
		}
		result = Reconcile(orders, directory)
		if err := s.SaveCustomers(ctx, result); err != nil {
			return fmt.Errorf("save customers: %w", err)
		}
		d.log.Debug("directory reconciled",
			zap.Int("orders", len(orders)),
			zap.Int("before", len(directory)),
			zap.Int("after", len(result)))
		return nil
	})
	if err != nil {
		d.metrics.ObserveReconcile(metrics.OutcomeError, 0)
		d.log.Error("reconciliation failed", zap.Error(err))
		return nil, err
	}
	d.metrics.ObserveReconcile(metrics.OutcomeOK, len(result))
	return result, nil
}

// =============================================================================
// READS
// =============================================================================

// List returns customers matching query, sorted by total orders descending.
// With invalidOnly, only customers with a malformed phone are returned.
func (d *Directory) List(ctx context.Context, query string, invalidOnly bool) ([]CustomerView, error) {
	directory, err := d.Store.LoadCustomers(ctx)
	if err != nil {
		return nil, err
	}
	if invalidOnly {
		directory = WrongNumbers(directory)
	}
	matched := Search(directory, query)
	views := make([]CustomerView, len(matched))
	for i, c := range matched {
		views[i] = View(c)
	}
	return views, nil
}

// Get returns the entry for phone.
func (d *Directory) Get(ctx context.Context, phone string) (Customer, error) {
	directory, err := d.Store.LoadCustomers(ctx)
	if err != nil {
		return Customer{}, err
	}
	i := Find(directory, phone)
	if i < 0 {
		return Customer{}, fmt.Errorf("%w: %s", ErrCustomerNotFound, phone)
	}
	return directory[i], nil
}

// Insights summarises the directory for the customers dashboard.
type Insights struct {
	Customers     int           `json:"customers"`
	Visits        VisitCounts   `json:"visits"`
	WrongNumbers  int           `json:"wrongNumbers"`
	Histogram     []VisitBucket `json:"histogram"`
	BestThisMonth *BestCustomer `json:"bestThisMonth,omitempty"`
	BestToday     *BestCustomer `json:"bestToday,omitempty"`
}

// Insights computes dashboard figures as of now.
func (d *Directory) Insights(ctx context.Context, now time.Time) (Insights, error) {
	orders, err := d.Store.LoadOrders(ctx)
	if err != nil {
		return Insights{}, err
	}
	directory, err := d.Store.LoadCustomers(ctx)
	if err != nil {
		return Insights{}, err
	}

	local := d.Calendar.In(now)
	ins := Insights{
		Customers:    len(directory),
		Visits:       CountVisits(directory),
		WrongNumbers: len(WrongNumbers(directory)),
		Histogram:    VisitFrequencyHistogram(directory),
	}
	if best, ok := BestCustomerInWindow(d.Calendar.MonthWindow(orders, local.Year(), local.Month())); ok {
		ins.BestThisMonth = &best
	}
	if best, ok := BestCustomerInWindow(d.Calendar.DayWindow(orders, d.Calendar.Today(now))); ok {
		ins.BestToday = &best
	}
	return ins, nil
}

// =============================================================================
// WRITES
// =============================================================================

// Redeem consumes one reward for phone and persists the directory.
func (d *Directory) Redeem(ctx context.Context, phone string) (Customer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var updated Customer
	err := d.Store.WithTx(ctx, func(s Store) error {
		directory, err := s.LoadCustomers(ctx)
		if err != nil {
			return err
		}
		i := Find(directory, phone)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrCustomerNotFound, phone)
		}
		c, err := RedeemOne(directory[i])
		if err != nil {
			return err
		}
		directory[i] = c
		updated = c
		return s.SaveCustomers(ctx, directory)
	})
	switch {
	case err == nil:
		d.metrics.ObserveRedeem(metrics.OutcomeOK)
		d.log.Info("reward redeemed",
			zap.String("phone", phone),
			zap.Int("redeemed", updated.Redeemed),
			zap.Int("remaining", RewardsRemaining(updated)))
	case IsClientError(err) || IsNotFound(err):
		d.metrics.ObserveRedeem(metrics.OutcomeRejected)
		d.log.Info("redemption refused", zap.String("phone", phone), zap.Error(err))
	default:
		d.metrics.ObserveRedeem(metrics.OutcomeError)
		d.log.Error("redemption failed", zap.String("phone", phone), zap.Error(err))
	}
	return updated, err
}

// Add inserts a manual entry. Redeemed always starts at zero.
func (d *Directory) Add(ctx context.Context, c Customer) (Customer, error) {
	c.Phone = strings.TrimSpace(c.Phone)
	if !hasIdentity(c.Phone) {
		return Customer{}, ErrMissingIdentity
	}
	c.Name = displayName(c.Name)
	c.Redeemed = 0
	if c.TotalOrders < 0 {
		c.TotalOrders = 0
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.Store.WithTx(ctx, func(s Store) error {
		directory, err := s.LoadCustomers(ctx)
		if err != nil {
			return err
		}
		if Find(directory, c.Phone) >= 0 {
			return fmt.Errorf("%w: %s", ErrCustomerExists, c.Phone)
		}
		return s.SaveCustomers(ctx, append(directory, c))
	})
	if err != nil {
		return Customer{}, err
	}
	d.log.Info("customer added", zap.String("phone", c.Phone))
	return c, nil
}

// CustomerUpdate is a partial edit. Nil fields are left unchanged.
type CustomerUpdate struct {
	Name        *string
	Phone       *string
	TotalOrders *int
	TotalAmount *decimal.Decimal
}

// Update edits the entry for phone. A changed name or phone is first
// written to every ledger order carrying the old phone, then the entry is
// replaced in place with Redeemed preserved. Renaming onto a phone that
// another entry or any ledger order already uses fails with a *RenameError
// and changes nothing.
func (d *Directory) Update(ctx context.Context, phone string, upd CustomerUpdate) (Customer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var (
		updated Customer
		renamed int
		rename  bool
	)
	err := d.Store.WithTx(ctx, func(s Store) error {
		directory, err := s.LoadCustomers(ctx)
		if err != nil {
			return err
		}
		i := Find(directory, phone)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrCustomerNotFound, phone)
		}

		c := directory[i]
		newPhone, newName := c.Phone, c.Name
		if upd.Phone != nil {
			newPhone = strings.TrimSpace(*upd.Phone)
			if !hasIdentity(newPhone) {
				return ErrMissingIdentity
			}
		}
		if upd.Name != nil {
			newName = displayName(*upd.Name)
		}

		rename = newPhone != c.Phone || newName != c.Name
		if rename {
			orders, err := s.LoadOrders(ctx)
			if err != nil {
				return err
			}
			if newPhone != c.Phone {
				if err := checkPhoneFree(directory, orders, c.Phone, newPhone); err != nil {
					return err
				}
			}
			var changed []Order
			changed, renamed = RenameCustomer(c.Phone, newPhone, newName, orders)
			if renamed > 0 {
				if err := s.SaveOrders(ctx, changed); err != nil {
					return fmt.Errorf("propagate rename: %w", err)
				}
			}
		}

		c.Phone, c.Name = newPhone, newName
		if upd.TotalOrders != nil && *upd.TotalOrders >= 0 {
			c.TotalOrders = *upd.TotalOrders
		}
		if upd.TotalAmount != nil {
			c.TotalAmount = *upd.TotalAmount
		}
		directory[i] = c
		updated = c
		return s.SaveCustomers(ctx, directory)
	})

	if rename || err != nil {
		outcome := metrics.OutcomeOK
		switch {
		case err == nil:
		case IsClientError(err) || IsNotFound(err):
			outcome = metrics.OutcomeRejected
		default:
			outcome = metrics.OutcomeError
		}
		d.metrics.ObserveRename(outcome, renamed)
	}
	if err != nil {
		d.log.Info("customer update refused", zap.String("phone", phone), zap.Error(err))
		return Customer{}, err
	}
	if rename {
		d.log.Info("customer renamed",
			zap.String("old_phone", phone),
			zap.String("new_phone", updated.Phone),
			zap.Int("orders_rewritten", renamed))
	}
	return updated, nil
}

// checkPhoneFree fails with a *RenameError when newPhone already has a
// directory entry or any ledger order. Orders written since the last Sync
// count, so a rename can never fold two histories into one record.
func checkPhoneFree(directory []Customer, orders []Order, oldPhone, newPhone string) error {
	if j := Find(directory, newPhone); j >= 0 {
		return &RenameError{
			OldPhone:      oldPhone,
			NewPhone:      newPhone,
			ExistingName:  directory[j].Name,
			ExistingOrder: directory[j].TotalOrders,
		}
	}
	var (
		count int
		name  string
	)
	for _, o := range orders {
		if o.Phone() == newPhone {
			count++
			name = displayName(o.CustomerName)
		}
	}
	if count == 0 {
		return nil
	}
	return &RenameError{
		OldPhone:      oldPhone,
		NewPhone:      newPhone,
		ExistingName:  name,
		ExistingOrder: count,
	}
}

// Rename changes phone and name for the entry currently keyed by oldPhone.
func (d *Directory) Rename(ctx context.Context, oldPhone, newPhone, newName string) (Customer, error) {
	return d.Update(ctx, oldPhone, CustomerUpdate{Phone: &newPhone, Name: &newName})
}

// Delete removes the entry for phone. Orders are not touched, so the
// next Sync recreates the entry if the ledger still has orders for it.
func (d *Directory) Delete(ctx context.Context, phone string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.Store.WithTx(ctx, func(s Store) error {
		directory, err := s.LoadCustomers(ctx)
		if err != nil {
			return err
		}
		i := Find(directory, phone)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrCustomerNotFound, phone)
		}
		return s.SaveCustomers(ctx, append(directory[:i], directory[i+1:]...))
	})
	if err != nil {
		return err
	}
	d.log.Info("customer deleted", zap.String("phone", phone))
	return nil
}
