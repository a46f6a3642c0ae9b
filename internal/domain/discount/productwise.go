package discount

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/coupons-api/internal/domain/cart"
	"github.com/xenking/coupons-api/internal/domain/coupon"
)

// ProductWise discounts the line total of one product. A fixed discount is
// taken once per line, not per unit.
var ProductWise = newStrategy(rules[coupon.ProductWiseDetails]{
	applicable: func(d coupon.ProductWiseDetails, c cart.Cart) bool {
		i := cart.Find(c, d.ProductID)
		return i >= 0 && c.Items[i].Quantity > 0
	},
	discount: func(d coupon.ProductWiseDetails, c cart.Cart) decimal.Decimal {
		item := c.Items[cart.Find(c, d.ProductID)]
		return applyRate(item.LineTotal(), d.Discount, d.DiscountType)
	},
	attribute: func(d coupon.ProductWiseDetails, items []cart.Item, discount decimal.Decimal) {
		if i := cart.Find(cart.Cart{Items: items}, d.ProductID); i >= 0 {
			items[i].TotalDiscount = discount
		}
	},
})
