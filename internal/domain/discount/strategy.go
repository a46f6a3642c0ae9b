// Package discount implements the per-type discount strategies and the engine
// that dispatches to them.
package discount

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupons-api/internal/domain/cart"
	"github.com/xenking/coupons-api/internal/domain/coupon"
)

// Strategy is the set of pure functions implementing one coupon type.
//
// CalculateDiscount returns zero whenever IsApplicable is false. ApplyToCart
// returns coupon.ErrNotApplicable when the discount is zero and never mutates
// the input cart.
type Strategy struct {
	IsApplicable      func(details coupon.Details, c cart.Cart) (bool, error)
	CalculateDiscount func(details coupon.Details, c cart.Cart) (decimal.Decimal, error)
	ApplyToCart       func(details coupon.Details, c cart.Cart) (cart.Updated, error)
}

// rules is the typed form of a strategy before its details are erased.
type rules[D coupon.Details] struct {
	applicable func(details D, c cart.Cart) bool
	discount   func(details D, c cart.Cart) decimal.Decimal
	// attribute writes per-line discounts onto items, a clone of the cart
	// whose discount totals are zero. Discount is the rounded cart discount.
	attribute func(details D, items []cart.Item, discount decimal.Decimal)
}

func newStrategy[D coupon.Details](r rules[D]) Strategy {
	narrow := func(details coupon.Details) (D, error) {
		v, ok := details.(D)
		if !ok {
			return v, errors.Wrapf(coupon.ErrDetailsMismatch, "got %T", details)
		}
		return v, nil
	}
	discount := func(v D, c cart.Cart) decimal.Decimal {
		if !r.applicable(v, c) {
			return decimal.Zero
		}
		return cart.RoundMoney(r.discount(v, c))
	}

	return Strategy{
		IsApplicable: func(details coupon.Details, c cart.Cart) (bool, error) {
			v, err := narrow(details)
			if err != nil {
				return false, err
			}
			return r.applicable(v, c), nil
		},
		CalculateDiscount: func(details coupon.Details, c cart.Cart) (decimal.Decimal, error) {
			v, err := narrow(details)
			if err != nil {
				return decimal.Zero, err
			}
			return discount(v, c), nil
		},
		ApplyToCart: func(details coupon.Details, c cart.Cart) (cart.Updated, error) {
			v, err := narrow(details)
			if err != nil {
				return cart.Updated{}, err
			}
			amount := discount(v, c)
			if !amount.IsPositive() {
				return cart.Updated{}, coupon.ErrNotApplicable
			}
			items := cart.Clone(c).Items
			if r.attribute != nil {
				r.attribute(v, items, amount)
			}
			return cart.Build(items, amount), nil
		},
	}
}

// applyRate computes a percentage or fixed discount on base, capped at base.
func applyRate(base, value decimal.Decimal, t coupon.DiscountType) decimal.Decimal {
	amount := value
	if t != coupon.DiscountFixed {
		amount = cart.PercentageOf(base, value)
	}
	return decimal.Min(amount, base)
}
