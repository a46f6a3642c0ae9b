package discount

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/coupons-api/internal/domain/cart"
	"github.com/xenking/coupons-api/internal/domain/coupon"
)

// CartWise discounts the cart total once it reaches the coupon threshold.
// The discount is cart-level, so no line item carries any of it.
var CartWise = newStrategy(rules[coupon.CartWiseDetails]{
	applicable: func(d coupon.CartWiseDetails, c cart.Cart) bool {
		return cart.Total(c).GreaterThanOrEqual(d.Threshold)
	},
	discount: func(d coupon.CartWiseDetails, c cart.Cart) decimal.Decimal {
		return applyRate(cart.Total(c), d.Discount, d.DiscountType)
	},
})
