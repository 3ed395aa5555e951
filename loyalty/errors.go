/*
errors.go - Error types for the loyalty engine

ERROR CATEGORIES:
  1. Redemption errors - No reward left to redeem
  2. Identity errors - Rename collisions, unknown phones
  3. Store errors - Wrapped from the Store implementation

Only Redeem and Rename can fail on business rules. Reconciliation and the
query functions are total: missing data yields empty results.

USAGE:
  if errors.Is(err, loyalty.ErrNoRewardsAvailable) {
      // tell the cashier there is nothing to redeem
  }
*/
package loyalty

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoRewardsAvailable is returned when a redemption is attempted with
	// zero remaining rewards.
	ErrNoRewardsAvailable = errors.New("no rewards available")

	// ErrDuplicatePhoneOnRename is returned when a rename targets a phone
	// that already has its own directory entry.
	ErrDuplicatePhoneOnRename = errors.New("phone already belongs to another customer")

	// ErrCustomerNotFound is returned when no directory entry has the phone.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrMissingIdentity is returned when a manual add or rename has an
	// empty or placeholder phone.
	ErrMissingIdentity = errors.New("customer phone is required")

	// ErrCustomerExists is returned by Add when the phone is already present.
	ErrCustomerExists = errors.New("customer already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RedemptionError describes a refused redemption.
type RedemptionError struct {
	Phone       string
	TotalOrders int
	Earned      int
	Redeemed    int
}

func (e *RedemptionError) Error() string {
	return fmt.Sprintf("no rewards available for %s: earned %d, redeemed %d (orders %d)",
		e.Phone, e.Earned, e.Redeemed, e.TotalOrders)
}

func (e *RedemptionError) Unwrap() error {
	return ErrNoRewardsAvailable
}

// RenameError describes a refused rename.
type RenameError struct {
	OldPhone      string
	NewPhone      string
	ExistingName  string
	ExistingOrder int
}

func (e *RenameError) Error() string {
	return fmt.Sprintf("cannot rename %s to %s: already used by %q with %d orders",
		e.OldPhone, e.NewPhone, e.ExistingName, e.ExistingOrder)
}

func (e *RenameError) Unwrap() error {
	return ErrDuplicatePhoneOnRename
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is a refused user action.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNoRewardsAvailable) ||
		errors.Is(err, ErrDuplicatePhoneOnRename) ||
		errors.Is(err, ErrMissingIdentity) ||
		errors.Is(err, ErrCustomerExists)
}

// IsNotFound returns true if the error indicates a missing customer.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound)
}
