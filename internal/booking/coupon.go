package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

// Coupon rejection reasons.
const (
	CouponNotFound  = "coupon not found"
	CouponInactive  = "coupon inactive"
	CouponNotYet    = "coupon not yet valid"
	CouponExpired   = "coupon expired"
	CouponExhausted = "coupon usage limit reached"
)

// ApplyCoupon returns the discount c grants on subtotal at now, or zero and a reason.
// The discount never exceeds subtotal.
func ApplyCoupon(c *Coupon, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, string) {
	switch {
	case c == nil:
		return decimal.Zero, CouponNotFound
	case !c.Active:
		return decimal.Zero, CouponInactive
	case !c.ValidFrom.IsZero() && now.Before(c.ValidFrom):
		return decimal.Zero, CouponNotYet
	case !c.ValidTo.IsZero() && now.After(c.ValidTo):
		return decimal.Zero, CouponExpired
	case c.MaxUses != nil && c.UsedCount >= *c.MaxUses:
		return decimal.Zero, CouponExhausted
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		discount = subtotal.Mul(c.Value).Div(hundred)
	case DiscountFixed:
		discount = c.Value
	default:
		return decimal.Zero, "coupon has unknown discount type " + string(c.DiscountType)
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount.Round(2), ""
}
