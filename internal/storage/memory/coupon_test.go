package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/coupons-api/internal/domain/coupon"
)

func newCoupon(t coupon.Type, active bool) *coupon.Coupon {
	c := &coupon.Coupon{Type: t, IsActive: active}
	switch t {
	case coupon.TypeCartWise:
		c.Details = coupon.CartWiseDetails{Threshold: decimal.NewFromInt(100), Discount: decimal.NewFromInt(10)}
	case coupon.TypeProductWise:
		c.Details = coupon.ProductWiseDetails{ProductID: 1, Discount: decimal.NewFromInt(20)}
	case coupon.TypeBxGy:
		c.Details = coupon.BxGyDetails{
			BuyProducts: []coupon.ProductQuantity{{ProductID: 1, Quantity: 2}},
			GetProducts: []coupon.ProductQuantity{{ProductID: 2, Quantity: 1}},
		}
	}
	return c
}

func TestCouponRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewCouponRepository()

	c := newCoupon(coupon.TypeCartWise, true)
	require.NoError(t, repo.Create(ctx, c))
	require.NotEmpty(t, c.ID)

	got, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Details, got.Details)

	got.IsActive = false
	require.NoError(t, repo.Update(ctx, got))

	got, err = repo.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	require.NoError(t, repo.Delete(ctx, c.ID))
	_, err = repo.Get(ctx, c.ID)
	require.ErrorIs(t, err, coupon.ErrNotFound)

	require.ErrorIs(t, repo.Delete(ctx, c.ID), coupon.ErrNotFound)
	require.ErrorIs(t, repo.Update(ctx, c), coupon.ErrNotFound)
}

func TestCouponRepository_ListOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	repo := NewCouponRepository()

	var ids []string
	for _, c := range []*coupon.Coupon{
		newCoupon(coupon.TypeBxGy, true),
		newCoupon(coupon.TypeCartWise, false),
		newCoupon(coupon.TypeCartWise, true),
		newCoupon(coupon.TypeProductWise, true),
	} {
		require.NoError(t, repo.Create(ctx, c))
		ids = append(ids, c.ID)
	}
	require.NoError(t, repo.Delete(ctx, ids[3]))

	all, err := repo.List(ctx, coupon.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, c := range all {
		assert.Equal(t, ids[i], c.ID)
	}

	cartWise := coupon.TypeCartWise
	active := true
	filtered, err := repo.List(ctx, coupon.Filter{Type: &cartWise, Active: &active})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, ids[2], filtered[0].ID)
}

func TestCouponRepository_NoAliasing(t *testing.T) {
	ctx := context.Background()
	repo := NewCouponRepository()

	c := newCoupon(coupon.TypeBxGy, true)
	require.NoError(t, repo.Create(ctx, c))

	c.Details.(coupon.BxGyDetails).BuyProducts[0].Quantity = 99

	got, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Details.(coupon.BxGyDetails).BuyProducts[0].Quantity)
}
