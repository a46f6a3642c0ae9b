// Package handler exposes the coupon service over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/coupons-api/internal/service"
	"github.com/xenking/coupons-api/pkg/health"
	"github.com/xenking/coupons-api/pkg/httpmiddleware"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the coupon CRUD and discount endpoints.
type Handler struct {
	svc *service.Service
}

// New returns a Handler backed by svc.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Router builds the HTTP routes. The API middlewares run inside the router so
// they can see the matched route pattern; probes bypass them.
func (h *Handler) Router(hc *health.Health, middlewares ...httpmiddleware.Middleware) http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	if hc != nil {
		r.Get("/livez", hc.LiveEndpoint)
		r.Get("/readyz", hc.ReadyEndpoint)
	}

	r.Group(func(r chi.Router) {
		for _, m := range middlewares {
			r.Use(m)
		}

		r.Route("/coupons", func(r chi.Router) {
			r.Get("/", h.listCoupons)
			r.Post("/", h.createCoupon)
			r.Get("/{id}", h.getCoupon)
			r.Put("/{id}", h.updateCoupon)
			r.Delete("/{id}", h.deleteCoupon)
		})
		r.Post("/applicable-coupons", h.applicableCoupons)
		r.Post("/apply-coupon/{id}", h.applyCoupon)
	})
	return r
}
