// Package memory provides an in-process coupon store for development and
// tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/xenking/coupons-api/internal/domain/coupon"
)

// CouponRepository keeps coupons in a map and lists them in insertion order.
type CouponRepository struct {
	mu    sync.RWMutex
	byID  map[string]coupon.Coupon
	order []string
}

var _ coupon.Repository = (*CouponRepository)(nil)

// NewCouponRepository returns an empty repository.
func NewCouponRepository() *CouponRepository {
	return &CouponRepository{byID: make(map[string]coupon.Coupon)}
}

func (r *CouponRepository) List(_ context.Context, filter coupon.Filter) ([]coupon.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]coupon.Coupon, 0, len(r.order))
	for _, id := range r.order {
		c := r.byID[id]
		if filter.Match(&c) {
			out = append(out, clone(c))
		}
	}
	return out, nil
}

func (r *CouponRepository) Get(_ context.Context, id string) (*coupon.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[id]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	c = clone(c)
	return &c, nil
}

func (r *CouponRepository) Create(_ context.Context, c *coupon.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c.ID = uuid.NewString()
	r.byID[c.ID] = clone(*c)
	r.order = append(r.order, c.ID)
	return nil
}

func (r *CouponRepository) Update(_ context.Context, c *coupon.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[c.ID]; !ok {
		return coupon.ErrNotFound
	}
	r.byID[c.ID] = clone(*c)
	return nil
}

func (r *CouponRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return coupon.ErrNotFound
	}
	delete(r.byID, id)
	r.order = slices.DeleteFunc(r.order, func(v string) bool { return v == id })
	return nil
}

// Ping always succeeds; it lets the store take part in readiness checks.
func (r *CouponRepository) Ping(context.Context) error {
	return nil
}

// clone copies the slices inside BxGy details so callers cannot alias stored
// state.
func clone(c coupon.Coupon) coupon.Coupon {
	if d, ok := c.Details.(coupon.BxGyDetails); ok {
		d.BuyProducts = slices.Clone(d.BuyProducts)
		d.GetProducts = slices.Clone(d.GetProducts)
		if d.RepetitionLimit != nil {
			limit := *d.RepetitionLimit
			d.RepetitionLimit = &limit
		}
		c.Details = d
	}
	return c
}
