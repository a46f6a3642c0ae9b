package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/coupons-api/internal/domain/cart"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func limit(n int64) *int64 {
	return &n
}

func TestValidateCoupon(t *testing.T) {
	tests := []struct {
		name     string
		typ      Type
		details  Details
		wantErrs []string
	}{
		{
			name: "valid cart-wise percentage",
			typ:  TypeCartWise,
			details: CartWiseDetails{
				Threshold:    d("100"),
				Discount:     d("10"),
				DiscountType: DiscountPercentage,
			},
		},
		{
			name:    "valid cart-wise without discount type",
			typ:     TypeCartWise,
			details: CartWiseDetails{Threshold: d("100"), Discount: d("10")},
		},
		{
			name:    "cart-wise zero threshold and negative discount",
			typ:     TypeCartWise,
			details: CartWiseDetails{Threshold: d("0"), Discount: d("-5")},
			wantErrs: []string{
				"threshold must be a positive number",
				"discount must be a positive number",
			},
		},
		{
			name:     "cart-wise unknown discount type",
			typ:      TypeCartWise,
			details:  CartWiseDetails{Threshold: d("1"), Discount: d("1"), DiscountType: "bogus"},
			wantErrs: []string{`discountType must be "percentage" or "fixed"`},
		},
		{
			name:    "valid product-wise fixed",
			typ:     TypeProductWise,
			details: ProductWiseDetails{ProductID: 1, Discount: d("5"), DiscountType: DiscountFixed},
		},
		{
			name:     "product-wise missing product",
			typ:      TypeProductWise,
			details:  ProductWiseDetails{Discount: d("5")},
			wantErrs: []string{"product_id must be a positive number"},
		},
		{
			name: "valid bxgy without repetition limit",
			typ:  TypeBxGy,
			details: BxGyDetails{
				BuyProducts: []ProductQuantity{{ProductID: 1, Quantity: 3}},
				GetProducts: []ProductQuantity{{ProductID: 3, Quantity: 1}},
			},
		},
		{
			name: "bxgy empty sets and bad entries",
			typ:  TypeBxGy,
			details: BxGyDetails{
				GetProducts:     []ProductQuantity{{ProductID: 0, Quantity: 1}, {ProductID: 2, Quantity: 0}},
				RepetitionLimit: limit(0),
			},
			wantErrs: []string{
				"buy_products must be a non-empty array",
				"get_products[0].product_id must be a positive number",
				"get_products[1].quantity must be a positive number",
				"repetition_limit must be a positive number",
			},
		},
		{
			name:     "unknown type",
			typ:      Type("percent-off"),
			details:  CartWiseDetails{Threshold: d("1"), Discount: d("1")},
			wantErrs: []string{"type must be one of: cart-wise, product-wise, bxgy"},
		},
		{
			name:     "missing details",
			typ:      TypeBxGy,
			wantErrs: []string{"details must be an object"},
		},
		{
			name:     "details of another type",
			typ:      TypeBxGy,
			details:  CartWiseDetails{Threshold: d("1"), Discount: d("1")},
			wantErrs: []string{`details must match the "bxgy" schema`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateCoupon(tt.typ, tt.details)

			assert.Equal(t, len(tt.wantErrs) == 0, got.IsValid)
			assert.Equal(t, tt.wantErrs, got.Errors)
		})
	}
}

func TestValidateCart(t *testing.T) {
	tests := []struct {
		name     string
		items    []cart.Item
		wantErrs []string
	}{
		{
			name:  "valid",
			items: []cart.Item{{ProductID: 1, Quantity: 2, Price: d("10")}, {ProductID: 2, Quantity: 1, Price: d("0")}},
		},
		{
			name:     "empty",
			wantErrs: []string{"cart.items cannot be empty"},
		},
		{
			name: "bad fields",
			items: []cart.Item{
				{ProductID: 1, Quantity: 1, Price: d("1")},
				{ProductID: 0, Quantity: 0, Price: d("-1")},
			},
			wantErrs: []string{
				"cart.items[1].product_id must be a positive number",
				"cart.items[1].quantity must be a positive number",
				"cart.items[1].price must be a non-negative number",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateCart(cart.Cart{Items: tt.items})

			assert.Equal(t, len(tt.wantErrs) == 0, got.IsValid)
			assert.Equal(t, tt.wantErrs, got.Errors)
		})
	}
}

func TestResultErr(t *testing.T) {
	require.NoError(t, Result{IsValid: true}.Err("Invalid coupon data"))

	err := Result{Errors: []string{"threshold must be a positive number"}}.Err("Invalid coupon data")

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "Invalid coupon data", vErr.Message)
	assert.Equal(t, []string{"threshold must be a positive number"}, vErr.Errors)
	assert.Contains(t, err.Error(), "threshold must be a positive number")
}

func TestValidateCouponDoesNotMutate(t *testing.T) {
	details := BxGyDetails{
		BuyProducts: []ProductQuantity{{ProductID: 1, Quantity: 0}},
		GetProducts: []ProductQuantity{{ProductID: 2, Quantity: 1}},
	}

	ValidateCoupon(TypeBxGy, details)

	assert.Equal(t, int64(0), details.BuyProducts[0].Quantity)
	assert.Len(t, details.BuyProducts, 1)
}
