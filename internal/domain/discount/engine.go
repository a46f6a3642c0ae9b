package discount

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/coupons-api/internal/domain/cart"
	"github.com/xenking/coupons-api/internal/domain/coupon"
)

// Applicable is one entry of the applicable coupons listing.
type Applicable struct {
	CouponID string
	Type     coupon.Type
	Discount decimal.Decimal
}

// Engine dispatches discount operations to the strategy of a coupon's type.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	strategies map[coupon.Type]Strategy
}

// NewEngine returns an engine with the cart-wise, product-wise and bxgy
// strategies registered.
func NewEngine() *Engine {
	return &Engine{
		strategies: map[coupon.Type]Strategy{
			coupon.TypeCartWise:    CartWise,
			coupon.TypeProductWise: ProductWise,
			coupon.TypeBxGy:        BxGy,
		},
	}
}

func (e *Engine) strategy(c *coupon.Coupon) (Strategy, error) {
	s, ok := e.strategies[c.Type]
	if !ok {
		return Strategy{}, errors.Wrapf(coupon.ErrUnknownType, "coupon %s: type %q", c.ID, c.Type)
	}
	if got := coupon.DetailsType(c.Details); got != c.Type {
		return Strategy{}, errors.Wrapf(coupon.ErrDetailsMismatch, "coupon %s: %q details on %q coupon", c.ID, got, c.Type)
	}
	return s, nil
}

// IsApplicable reports whether c can discount the cart.
func (e *Engine) IsApplicable(c *coupon.Coupon, ct cart.Cart) (bool, error) {
	s, err := e.strategy(c)
	if err != nil {
		return false, err
	}
	return s.IsApplicable(c.Details, ct)
}

// CalculateDiscount returns the rounded discount c gives the cart, zero when
// it is not applicable.
func (e *Engine) CalculateDiscount(c *coupon.Coupon, ct cart.Cart) (decimal.Decimal, error) {
	s, err := e.strategy(c)
	if err != nil {
		return decimal.Zero, err
	}
	return s.CalculateDiscount(c.Details, ct)
}

// ApplyToCart returns the cart with c applied. The input cart is not modified.
func (e *Engine) ApplyToCart(c *coupon.Coupon, ct cart.Cart) (cart.Updated, error) {
	s, err := e.strategy(c)
	if err != nil {
		return cart.Updated{}, err
	}
	return s.ApplyToCart(c.Details, ct)
}

// Apply checks that c is active and applicable before applying it.
func (e *Engine) Apply(c *coupon.Coupon, ct cart.Cart) (cart.Updated, error) {
	if !c.IsActive {
		return cart.Updated{}, errors.Wrapf(coupon.ErrInactive, "coupon %s", c.ID)
	}
	ok, err := e.IsApplicable(c, ct)
	if err != nil {
		return cart.Updated{}, err
	}
	if !ok {
		return cart.Updated{}, errors.Wrapf(coupon.ErrNotApplicable, "coupon %s", c.ID)
	}
	updated, err := e.ApplyToCart(c, ct)
	if err != nil {
		return cart.Updated{}, errors.Wrapf(err, "coupon %s", c.ID)
	}
	return updated, nil
}

// ListApplicable evaluates every active coupon against the cart and returns
// those with a positive discount, largest discount first. Ties keep catalog
// order. A coupon whose evaluation fails is logged and skipped.
func (e *Engine) ListApplicable(ctx context.Context, coupons []coupon.Coupon, ct cart.Cart) []Applicable {
	lg := zctx.From(ctx)

	result := make([]Applicable, 0, len(coupons))
	for i := range coupons {
		c := &coupons[i]
		if !c.IsActive {
			continue
		}
		amount, err := e.evaluate(c, ct)
		if err != nil {
			lg.Warn("Skip coupon",
				zap.String("coupon_id", c.ID),
				zap.String("coupon_type", string(c.Type)),
				zap.Error(err),
			)
			continue
		}
		if !amount.IsPositive() {
			continue
		}
		result = append(result, Applicable{CouponID: c.ID, Type: c.Type, Discount: amount})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Discount.GreaterThan(result[j].Discount)
	})
	return result
}

func (e *Engine) evaluate(c *coupon.Coupon, ct cart.Cart) (decimal.Decimal, error) {
	ok, err := e.IsApplicable(c, ct)
	if err != nil || !ok {
		return decimal.Zero, err
	}
	return e.CalculateDiscount(c, ct)
}
