package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/coupons-api/internal/domain/cart"
	"github.com/xenking/coupons-api/internal/domain/coupon"
)

func (h *Handler) applicableCoupons(w http.ResponseWriter, r *http.Request) {
	ct, err := readCart(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	applicable, err := h.svc.ApplicableCoupons(r.Context(), ct)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("applicable_coupons")
		e.ArrStart()
		for _, a := range applicable {
			e.ObjStart()
			e.FieldStart("coupon_id")
			e.Str(a.CouponID)
			e.FieldStart("type")
			e.Str(string(a.Type))
			e.FieldStart("discount")
			coupon.EncodeDecimal(e, a.Discount)
			e.ObjEnd()
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	ct, err := readCart(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.svc.ApplyCoupon(r.Context(), chi.URLParam(r, "id"), ct)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("updated_cart")
		encodeUpdated(e, updated)
		e.ObjEnd()
	})
}

func encodeUpdated(e *jx.Encoder, u *cart.Updated) {
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range u.Items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Int64(item.ProductID)
		e.FieldStart("quantity")
		e.Int64(item.Quantity)
		e.FieldStart("price")
		coupon.EncodeDecimal(e, item.Price)
		e.FieldStart("total_discount")
		coupon.EncodeDecimal(e, item.TotalDiscount)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("total_price")
	coupon.EncodeDecimal(e, u.TotalPrice)
	e.FieldStart("total_discount")
	coupon.EncodeDecimal(e, u.TotalDiscount)
	e.FieldStart("final_price")
	coupon.EncodeDecimal(e, u.FinalPrice)
	e.ObjEnd()
}
