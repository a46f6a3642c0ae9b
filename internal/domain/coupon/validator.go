package coupon

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/coupons-api/internal/domain/cart"
)

// Result is the outcome of validating coupon or cart input.
type Result struct {
	IsValid bool
	Errors  []string
}

// Err returns a *ValidationError with the given message when the result is
// invalid, and nil otherwise.
func (r Result) Err(message string) error {
	if r.IsValid {
		return nil
	}
	return &ValidationError{Message: message, Errors: r.Errors}
}

func result(errs []string) Result {
	return Result{IsValid: len(errs) == 0, Errors: errs}
}

// ValidateCoupon checks that details match the schema of coupon type t.
// It never mutates its input.
func ValidateCoupon(t Type, details Details) Result {
	if !t.Valid() {
		return result([]string{"type must be one of: cart-wise, product-wise, bxgy"})
	}
	if details == nil {
		return result([]string{"details must be an object"})
	}
	if DetailsType(details) != t {
		return result([]string{fmt.Sprintf("details must match the %q schema", t)})
	}

	var errs []string
	switch v := details.(type) {
	case CartWiseDetails:
		if !v.Threshold.IsPositive() {
			errs = append(errs, "threshold must be a positive number")
		}
		errs = appendDiscountErrors(errs, v.Discount, v.DiscountType)
	case ProductWiseDetails:
		if v.ProductID <= 0 {
			errs = append(errs, "product_id must be a positive number")
		}
		errs = appendDiscountErrors(errs, v.Discount, v.DiscountType)
	case BxGyDetails:
		errs = appendProductsErrors(errs, "buy_products", v.BuyProducts)
		errs = appendProductsErrors(errs, "get_products", v.GetProducts)
		if v.RepetitionLimit != nil && *v.RepetitionLimit <= 0 {
			errs = append(errs, "repetition_limit must be a positive number")
		}
	}
	return result(errs)
}

func appendDiscountErrors(errs []string, discount decimal.Decimal, dt DiscountType) []string {
	if !discount.IsPositive() {
		errs = append(errs, "discount must be a positive number")
	}
	if !dt.Valid() {
		errs = append(errs, `discountType must be "percentage" or "fixed"`)
	}
	return errs
}

func appendProductsErrors(errs []string, field string, products []ProductQuantity) []string {
	if len(products) == 0 {
		return append(errs, field+" must be a non-empty array")
	}
	for i, p := range products {
		if p.ProductID <= 0 {
			errs = append(errs, fmt.Sprintf("%s[%d].product_id must be a positive number", field, i))
		}
		if p.Quantity <= 0 {
			errs = append(errs, fmt.Sprintf("%s[%d].quantity must be a positive number", field, i))
		}
	}
	return errs
}

// ValidateCart checks that the cart has items and every item has a positive
// product id and quantity and a non-negative price.
func ValidateCart(c cart.Cart) Result {
	if len(c.Items) == 0 {
		return result([]string{"cart.items cannot be empty"})
	}

	var errs []string
	for i, item := range c.Items {
		if item.ProductID <= 0 {
			errs = append(errs, fmt.Sprintf("cart.items[%d].product_id must be a positive number", i))
		}
		if item.Quantity <= 0 {
			errs = append(errs, fmt.Sprintf("cart.items[%d].quantity must be a positive number", i))
		}
		if item.Price.IsNegative() {
			errs = append(errs, fmt.Sprintf("cart.items[%d].price must be a non-negative number", i))
		}
	}
	return result(errs)
}
