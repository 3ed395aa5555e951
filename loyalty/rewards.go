/*
rewards.go - Reward accounting and loyalty tiers

RULES:
  earned    = floor(totalOrders / 10)
  remaining = max(0, earned - redeemed)

  One reward is one free meal. Redeeming consumes exactly one reward and
  fails when none remain. Redeemed only grows.

TIERS (cosmetic, not stored):
  Gold   >= 50 orders
  Silver >= 20 orders
  Bronze >= 10 orders
*/
package loyalty

// OrdersPerReward is the number of orders that earn one reward.
const OrdersPerReward = 10

// RewardsEarned returns the lifetime rewards earned by c.
func RewardsEarned(c Customer) int {
	if c.TotalOrders < OrdersPerReward {
		return 0
	}
	return c.TotalOrders / OrdersPerReward
}

// RewardsRemaining returns rewards earned but not yet redeemed. Never negative.
func RewardsRemaining(c Customer) int {
	remaining := RewardsEarned(c) - c.Redeemed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// OrdersToNextReward returns how many more orders earn the next reward.
func OrdersToNextReward(c Customer) int {
	if c.TotalOrders < 0 {
		return OrdersPerReward
	}
	return OrdersPerReward - c.TotalOrders%OrdersPerReward
}

// RedeemOne consumes one reward and returns the updated customer.
// The input is not modified; on failure it is returned unchanged along
// with a *RedemptionError.
func RedeemOne(c Customer) (Customer, error) {
	if RewardsRemaining(c) == 0 {
		return c, &RedemptionError{
			Phone:       c.Phone,
			TotalOrders: c.TotalOrders,
			Earned:      RewardsEarned(c),
			Redeemed:    c.Redeemed,
		}
	}
	c.Redeemed++
	return c, nil
}

// =============================================================================
// TIERS
// =============================================================================

type Tier string

const (
	TierNone   Tier = ""
	TierBronze Tier = "bronze"
	TierSilver Tier = "silver"
	TierGold   Tier = "gold"
)

// TierFor maps an order count to its tier.
func TierFor(totalOrders int) Tier {
	switch {
	case totalOrders >= 50:
		return TierGold
	case totalOrders >= 20:
		return TierSilver
	case totalOrders >= 10:
		return TierBronze
	default:
		return TierNone
	}
}
