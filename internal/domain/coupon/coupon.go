package coupon

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Type enumerates the supported coupon variants.
type Type string

const (
	// TypeCartWise discounts the whole cart once its total reaches a threshold.
	TypeCartWise Type = "cart-wise"
	// TypeProductWise discounts the line total of a single product.
	TypeProductWise Type = "product-wise"
	// TypeBxGy gives units of the "get" products away for every bundle of
	// "buy" products in the cart.
	TypeBxGy Type = "bxgy"
)

// Types lists every supported coupon type in a stable order.
var Types = []Type{TypeCartWise, TypeProductWise, TypeBxGy}

// Valid reports whether t is a supported coupon type.
func (t Type) Valid() bool {
	switch t {
	case TypeCartWise, TypeProductWise, TypeBxGy:
		return true
	default:
		return false
	}
}

// DiscountType selects how a cart-wise or product-wise discount is computed.
type DiscountType string

const (
	// DiscountPercentage takes a percentage of the discounted amount.
	// An empty DiscountType behaves the same way.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes a flat amount, capped at the discounted amount.
	DiscountFixed DiscountType = "fixed"
)

// Valid reports whether t is empty or a known discount type.
func (t DiscountType) Valid() bool {
	switch t {
	case "", DiscountPercentage, DiscountFixed:
		return true
	default:
		return false
	}
}

// Details is the type-specific part of a coupon. Exactly one concrete type
// exists per coupon Type.
type Details interface {
	couponType() Type
}

// CartWiseDetails parameterise a TypeCartWise coupon.
type CartWiseDetails struct {
	Threshold    decimal.Decimal
	Discount     decimal.Decimal
	DiscountType DiscountType
}

func (CartWiseDetails) couponType() Type { return TypeCartWise }

// ProductWiseDetails parameterise a TypeProductWise coupon.
type ProductWiseDetails struct {
	ProductID    int64
	Discount     decimal.Decimal
	DiscountType DiscountType
}

func (ProductWiseDetails) couponType() Type { return TypeProductWise }

// ProductQuantity pairs a product with a unit count.
type ProductQuantity struct {
	ProductID int64
	Quantity  int64
}

// BxGyDetails parameterise a TypeBxGy coupon.
type BxGyDetails struct {
	BuyProducts []ProductQuantity
	GetProducts []ProductQuantity
	// RepetitionLimit caps the number of bundles; nil means unlimited.
	RepetitionLimit *int64
}

func (BxGyDetails) couponType() Type { return TypeBxGy }

// DetailsType returns the coupon type a Details value belongs to, or "" for nil.
func DetailsType(d Details) Type {
	if d == nil {
		return ""
	}
	return d.couponType()
}

// Coupon is a stored coupon definition.
type Coupon struct {
	ID        string
	Type      Type
	Details   Details
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Draft is the input for creating a coupon.
type Draft struct {
	Type     Type
	Details  *RawDetails
	IsActive *bool
}

// Patch is the input for updating a coupon. Nil fields keep their current
// value; a non-nil Details replaces the stored details wholesale.
type Patch struct {
	Type     *Type
	Details  *RawDetails
	IsActive *bool
}

// RawDetails carries every detail field any coupon type knows about. It is
// what request decoding produces before the coupon type is known; Resolve
// narrows it to the concrete Details of a type.
type RawDetails struct {
	Threshold       decimal.Decimal
	Discount        decimal.Decimal
	DiscountType    DiscountType
	ProductID       int64
	BuyProducts     []ProductQuantity
	GetProducts     []ProductQuantity
	RepetitionLimit *int64
}

// Resolve returns the Details for coupon type t, or nil for an unknown type.
func (r RawDetails) Resolve(t Type) Details {
	switch t {
	case TypeCartWise:
		return CartWiseDetails{
			Threshold:    r.Threshold,
			Discount:     r.Discount,
			DiscountType: r.DiscountType,
		}
	case TypeProductWise:
		return ProductWiseDetails{
			ProductID:    r.ProductID,
			Discount:     r.Discount,
			DiscountType: r.DiscountType,
		}
	case TypeBxGy:
		return BxGyDetails{
			BuyProducts:     r.BuyProducts,
			GetProducts:     r.GetProducts,
			RepetitionLimit: r.RepetitionLimit,
		}
	default:
		return nil
	}
}

// Filter narrows a coupon listing. Nil fields do not filter.
type Filter struct {
	Type   *Type
	Active *bool
}

// Match reports whether c passes the filter.
func (f Filter) Match(c *Coupon) bool {
	if f.Type != nil && c.Type != *f.Type {
		return false
	}
	if f.Active != nil && c.IsActive != *f.Active {
		return false
	}
	return true
}

// Repository stores coupon definitions. Implementations list coupons in
// creation order and assign IDs on Create.
type Repository interface {
	List(ctx context.Context, filter Filter) ([]Coupon, error)
	// Get returns ErrNotFound when no coupon has the given id.
	Get(ctx context.Context, id string) (*Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	// Update returns ErrNotFound when no coupon has the given id.
	Update(ctx context.Context, c *Coupon) error
	// Delete returns ErrNotFound when no coupon has the given id.
	Delete(ctx context.Context, id string) error
}
