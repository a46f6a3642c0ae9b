package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/coupons-api/internal/domain/coupon"
)

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	coupons, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(true)
		e.FieldStart("count")
		e.Int(len(coupons))
		e.FieldStart("data")
		e.ArrStart()
		for i := range coupons {
			coupon.EncodeCoupon(e, &coupons[i])
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

// parseFilter reads the optional type and isActive query parameters.
func parseFilter(r *http.Request) (coupon.Filter, error) {
	var (
		filter   coupon.Filter
		problems []string
	)
	q := r.URL.Query()
	if v := q.Get("type"); v != "" {
		t := coupon.Type(v)
		if t.Valid() {
			filter.Type = &t
		} else {
			problems = append(problems, "type must be one of: cart-wise, product-wise, bxgy")
		}
	}
	if v := q.Get("isActive"); v != "" {
		active, err := strconv.ParseBool(v)
		if err == nil {
			filter.Active = &active
		} else {
			problems = append(problems, "isActive must be true or false")
		}
	}
	if len(problems) > 0 {
		return filter, &coupon.ValidationError{Message: "Invalid query parameters", Errors: problems}
	}
	return filter, nil
}

func (h *Handler) getCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeCoupon(w, http.StatusOK, "", c)
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	d, err := readBody(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	draft, problems, err := coupon.DecodeDraft(d)
	if err != nil {
		h.fail(w, r, invalidJSON(err))
		return
	}
	if len(problems) > 0 {
		h.fail(w, r, &coupon.ValidationError{Message: "Invalid coupon data", Errors: problems})
		return
	}

	c, err := h.svc.Create(r.Context(), draft)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeCoupon(w, http.StatusCreated, "Coupon created successfully", c)
}

func (h *Handler) updateCoupon(w http.ResponseWriter, r *http.Request) {
	d, err := readBody(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	patch, problems, err := coupon.DecodePatch(d)
	if err != nil {
		h.fail(w, r, invalidJSON(err))
		return
	}
	if len(problems) > 0 {
		h.fail(w, r, &coupon.ValidationError{Message: "Invalid coupon data", Errors: problems})
		return
	}

	c, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeCoupon(w, http.StatusOK, "Coupon updated successfully", c)
}

func (h *Handler) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(true)
		e.FieldStart("message")
		e.Str("Coupon deleted successfully")
		e.ObjEnd()
	})
}

func writeCoupon(w http.ResponseWriter, status int, message string, c *coupon.Coupon) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(true)
		if message != "" {
			e.FieldStart("message")
			e.Str(message)
		}
		e.FieldStart("data")
		coupon.EncodeCoupon(e, c)
		e.ObjEnd()
	})
}
