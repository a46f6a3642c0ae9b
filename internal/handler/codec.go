package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupons-api/internal/domain/cart"
	"github.com/xenking/coupons-api/internal/domain/coupon"
)

// readBody returns a decoder over the request body. An empty body reads as {}.
func readBody(w http.ResponseWriter, r *http.Request) (*jx.Decoder, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &coupon.ValidationError{
				Message: "Invalid request body",
				Errors:  []string{fmt.Sprintf("body must not exceed %d bytes", tooLarge.Limit)},
			}
		}
		return nil, errors.Wrap(err, "read body")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	return jx.DecodeBytes(data), nil
}

func invalidJSON(err error) error {
	return &coupon.ValidationError{
		Message: "Invalid JSON in request body",
		Errors:  []string{err.Error()},
	}
}

// readCart decodes a {"cart":{"items":[...]}} body. Wrongly typed fields are
// reported as validation errors; range checks are left to the service.
func readCart(w http.ResponseWriter, r *http.Request) (cart.Cart, error) {
	d, err := readBody(w, r)
	if err != nil {
		return cart.Cart{}, err
	}

	var (
		ct       cart.Cart
		found    bool
		problems []string
	)
	if d.Next() != jx.Object {
		if err := d.Skip(); err != nil {
			return ct, invalidJSON(err)
		}
		return ct, &coupon.ValidationError{Message: "Cart is required in request body"}
	}
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "cart" {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		found = true
		return decodeCart(d, &ct, &problems)
	}); err != nil {
		return cart.Cart{}, invalidJSON(err)
	}

	if !found {
		return ct, &coupon.ValidationError{Message: "Cart is required in request body"}
	}
	if len(problems) > 0 {
		return ct, &coupon.ValidationError{Message: "Invalid cart data", Errors: problems}
	}
	return ct, nil
}

func decodeCart(d *jx.Decoder, ct *cart.Cart, problems *[]string) error {
	if d.Next() != jx.Object {
		*problems = append(*problems, "cart must be an object")
		return d.Skip()
	}
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "items" {
			return d.Skip()
		}
		if d.Next() != jx.Array {
			*problems = append(*problems, "cart.items must be an array")
			return d.Skip()
		}
		i := 0
		return d.Arr(func(d *jx.Decoder) error {
			idx := i
			i++
			item, ok, err := decodeItem(d, idx, problems)
			if err != nil || !ok {
				return err
			}
			ct.Items = append(ct.Items, item)
			return nil
		})
	})
}

func decodeItem(d *jx.Decoder, idx int, problems *[]string) (cart.Item, bool, error) {
	var item cart.Item
	if d.Next() != jx.Object {
		*problems = append(*problems, fmt.Sprintf("cart.items[%d] must be an object", idx))
		return item, false, d.Skip()
	}

	priceMsg := fmt.Sprintf("cart.items[%d].price must be a non-negative number", idx)
	hasPrice := false
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			return coupon.DecodeInt(d, &item.ProductID, problems,
				fmt.Sprintf("cart.items[%d].product_id must be a positive number", idx))
		case "quantity":
			return coupon.DecodeInt(d, &item.Quantity, problems,
				fmt.Sprintf("cart.items[%d].quantity must be a positive number", idx))
		case "price":
			hasPrice = true
			return coupon.DecodeDecimal(d, &item.Price, problems, priceMsg)
		default:
			return d.Skip()
		}
	}); err != nil {
		return item, false, err
	}
	if !hasPrice {
		*problems = append(*problems, priceMsg)
	}
	item.TotalDiscount = decimal.Zero
	return item, true, nil
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
