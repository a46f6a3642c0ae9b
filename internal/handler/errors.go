package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/coupons-api/internal/domain/coupon"
)

// fail maps err onto the error response. Unexpected errors are logged and
// hidden behind a generic 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *coupon.ValidationError
		notFound   *coupon.NotFoundError
	)
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Message, validation.Errors)
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error(), nil)
	case coupon.IsBusinessError(err):
		writeError(w, http.StatusBadRequest, businessMessage(err), nil)
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}

func businessMessage(err error) string {
	switch {
	case errors.Is(err, coupon.ErrInactive):
		return "Coupon is not active"
	case errors.Is(err, coupon.ErrNotApplicable):
		return "Coupon is not applicable to this cart"
	default:
		return "Coupon cannot be applied: " + err.Error()
	}
}

func writeError(w http.ResponseWriter, status int, message string, details []string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("error")
		e.ObjStart()
		e.FieldStart("message")
		e.Str(message)
		if len(details) > 0 {
			e.FieldStart("errors")
			e.ArrStart()
			for _, d := range details {
				e.Str(d)
			}
			e.ArrEnd()
		}
		e.ObjEnd()
		e.ObjEnd()
	})
}
