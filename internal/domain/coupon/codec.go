package coupon

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Field problems found while decoding are collected as messages rather than
// aborting the decode, so a client sees every bad field at once. Only JSON
// syntax errors are returned as errors.

// EncodeDetails writes details as a JSON object.
func EncodeDetails(e *jx.Encoder, details Details) {
	e.ObjStart()
	switch v := details.(type) {
	case CartWiseDetails:
		e.FieldStart("threshold")
		EncodeDecimal(e, v.Threshold)
		e.FieldStart("discount")
		EncodeDecimal(e, v.Discount)
		if v.DiscountType != "" {
			e.FieldStart("discountType")
			e.Str(string(v.DiscountType))
		}
	case ProductWiseDetails:
		e.FieldStart("product_id")
		e.Int64(v.ProductID)
		e.FieldStart("discount")
		EncodeDecimal(e, v.Discount)
		if v.DiscountType != "" {
			e.FieldStart("discountType")
			e.Str(string(v.DiscountType))
		}
	case BxGyDetails:
		e.FieldStart("buy_products")
		encodeProducts(e, v.BuyProducts)
		e.FieldStart("get_products")
		encodeProducts(e, v.GetProducts)
		if v.RepetitionLimit != nil {
			e.FieldStart("repetition_limit")
			e.Int64(*v.RepetitionLimit)
		}
	}
	e.ObjEnd()
}

func encodeProducts(e *jx.Encoder, products []ProductQuantity) {
	e.ArrStart()
	for _, p := range products {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Int64(p.ProductID)
		e.FieldStart("quantity")
		e.Int64(p.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
}

// EncodeDecimal writes v as a bare JSON number.
func EncodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.String()))
}

// MarshalDetails encodes details for storage.
func MarshalDetails(details Details) []byte {
	var e jx.Encoder
	EncodeDetails(&e, details)
	return e.Bytes()
}

// UnmarshalDetails decodes stored details of coupon type t.
func UnmarshalDetails(t Type, data []byte) (Details, error) {
	raw, problems, err := DecodeRawDetails(jx.DecodeBytes(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode details")
	}
	if len(problems) > 0 {
		return nil, errors.Errorf("decode details: %s", problems[0])
	}
	details := raw.Resolve(t)
	if details == nil {
		return nil, errors.Wrapf(ErrUnknownType, "type %q", t)
	}
	return details, nil
}

// DecodeRawDetails reads a details object without knowing the coupon type.
func DecodeRawDetails(d *jx.Decoder) (RawDetails, []string, error) {
	var (
		raw      RawDetails
		problems []string
	)
	if d.Next() != jx.Object {
		return raw, []string{"details must be an object"}, d.Skip()
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "threshold":
			return DecodeDecimal(d, &raw.Threshold, &problems, "threshold must be a positive number")
		case "discount":
			return DecodeDecimal(d, &raw.Discount, &problems, "discount must be a positive number")
		case "discountType":
			if d.Next() != jx.String {
				problems = append(problems, `discountType must be "percentage" or "fixed"`)
				return d.Skip()
			}
			s, err := d.Str()
			if err != nil {
				return err
			}
			raw.DiscountType = DiscountType(s)
			return nil
		case "product_id":
			return DecodeInt(d, &raw.ProductID, &problems, "product_id must be a positive number")
		case "buy_products":
			return decodeProducts(d, "buy_products", &raw.BuyProducts, &problems)
		case "get_products":
			return decodeProducts(d, "get_products", &raw.GetProducts, &problems)
		case "repetition_limit":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var limit int64
			if err := DecodeInt(d, &limit, &problems, "repetition_limit must be a positive number"); err != nil {
				return err
			}
			raw.RepetitionLimit = &limit
			return nil
		default:
			return d.Skip()
		}
	})
	return raw, problems, err
}

func decodeProducts(d *jx.Decoder, field string, dst *[]ProductQuantity, problems *[]string) error {
	if d.Next() != jx.Array {
		*problems = append(*problems, field+" must be a non-empty array")
		return d.Skip()
	}
	i := 0
	return d.Arr(func(d *jx.Decoder) error {
		idx := i
		i++
		if d.Next() != jx.Object {
			*problems = append(*problems, fmt.Sprintf("%s[%d] must be an object", field, idx))
			return d.Skip()
		}
		var p ProductQuantity
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "product_id":
				return DecodeInt(d, &p.ProductID, problems,
					fmt.Sprintf("%s[%d].product_id must be a positive number", field, idx))
			case "quantity":
				return DecodeInt(d, &p.Quantity, problems,
					fmt.Sprintf("%s[%d].quantity must be a positive number", field, idx))
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		*dst = append(*dst, p)
		return nil
	})
}

// DecodeDecimal reads a JSON number into dst, recording msg when the value
// is not a number.
func DecodeDecimal(d *jx.Decoder, dst *decimal.Decimal, problems *[]string, msg string) error {
	if d.Next() != jx.Number {
		*problems = append(*problems, msg)
		return d.Skip()
	}
	n, err := d.Num()
	if err != nil {
		return err
	}
	v, err := decimal.NewFromString(n.String())
	if err != nil {
		*problems = append(*problems, msg)
		return nil
	}
	*dst = v
	return nil
}

// DecodeInt reads an integral JSON number into dst, recording msg when the
// value is not an integer or does not fit in an int64.
func DecodeInt(d *jx.Decoder, dst *int64, problems *[]string, msg string) error {
	if d.Next() != jx.Number {
		*problems = append(*problems, msg)
		return d.Skip()
	}
	n, err := d.Num()
	if err != nil {
		return err
	}
	v, err := decimal.NewFromString(n.String())
	if err != nil || !v.IsInteger() || !v.BigInt().IsInt64() {
		*problems = append(*problems, msg)
		return nil
	}
	*dst = v.IntPart()
	return nil
}

type couponFields struct {
	typ      *Type
	details  *RawDetails
	isActive *bool
}

func decodeCouponFields(d *jx.Decoder, problems *[]string, extra func(d *jx.Decoder, key string) (bool, error)) (couponFields, error) {
	var f couponFields
	if d.Next() != jx.Object {
		*problems = append(*problems, "coupon must be an object")
		return f, d.Skip()
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "type":
			if d.Next() != jx.String {
				*problems = append(*problems, "type must be one of: cart-wise, product-wise, bxgy")
				return d.Skip()
			}
			s, err := d.Str()
			if err != nil {
				return err
			}
			t := Type(s)
			f.typ = &t
			return nil
		case "details":
			raw, detailProblems, err := DecodeRawDetails(d)
			if err != nil {
				return err
			}
			if len(detailProblems) > 0 {
				*problems = append(*problems, detailProblems...)
				return nil
			}
			f.details = &raw
			return nil
		case "isActive":
			if d.Next() != jx.Bool {
				*problems = append(*problems, "isActive must be a boolean")
				return d.Skip()
			}
			v, err := d.Bool()
			if err != nil {
				return err
			}
			f.isActive = &v
			return nil
		default:
			if extra != nil {
				if ok, err := extra(d, key); ok || err != nil {
					return err
				}
			}
			return d.Skip()
		}
	})
	return f, err
}

// DecodeDraft reads a coupon creation payload.
func DecodeDraft(d *jx.Decoder) (Draft, []string, error) {
	var problems []string
	f, err := decodeCouponFields(d, &problems, nil)
	if err != nil {
		return Draft{}, nil, err
	}
	draft := Draft{Details: f.details, IsActive: f.isActive}
	if f.typ != nil {
		draft.Type = *f.typ
	}
	return draft, problems, nil
}

// DecodePatch reads a coupon update payload.
func DecodePatch(d *jx.Decoder) (Patch, []string, error) {
	var problems []string
	f, err := decodeCouponFields(d, &problems, nil)
	if err != nil {
		return Patch{}, nil, err
	}
	return Patch{Type: f.typ, Details: f.details, IsActive: f.isActive}, problems, nil
}

// EncodeCoupon writes the full coupon representation.
func EncodeCoupon(e *jx.Encoder, c *Coupon) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("type")
	e.Str(string(c.Type))
	e.FieldStart("details")
	EncodeDetails(e, c.Details)
	e.FieldStart("isActive")
	e.Bool(c.IsActive)
	e.FieldStart("createdAt")
	e.Str(c.CreatedAt.UTC().Format(time.RFC3339Nano))
	e.FieldStart("updatedAt")
	e.Str(c.UpdatedAt.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()
}

// DecodeCoupon reads the representation written by EncodeCoupon.
func DecodeCoupon(d *jx.Decoder) (*Coupon, error) {
	var (
		problems []string
		c        Coupon
	)
	f, err := decodeCouponFields(d, &problems, func(d *jx.Decoder, key string) (bool, error) {
		switch key {
		case "id":
			s, err := d.Str()
			c.ID = s
			return true, err
		case "createdAt", "updatedAt":
			s, err := d.Str()
			if err != nil {
				return true, err
			}
			ts, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return true, errors.Wrapf(err, "parse %s", key)
			}
			if key == "createdAt" {
				c.CreatedAt = ts
			} else {
				c.UpdatedAt = ts
			}
			return true, nil
		default:
			return false, nil
		}
	})
	if err != nil {
		return nil, err
	}
	if len(problems) > 0 {
		return nil, errors.Errorf("decode coupon: %s", problems[0])
	}
	if f.typ == nil || f.details == nil {
		return nil, errors.New("decode coupon: type and details are required")
	}
	c.Type = *f.typ
	c.Details = f.details.Resolve(c.Type)
	if c.Details == nil {
		return nil, errors.Wrapf(ErrUnknownType, "type %q", c.Type)
	}
	if f.isActive != nil {
		c.IsActive = *f.isActive
	}
	return &c, nil
}
