package discount

import (
	"context"
	"testing"

	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/coupons-api/internal/domain/coupon"
)

func catalog() []coupon.Coupon {
	return []coupon.Coupon{
		{
			ID:       "cart-10",
			Type:     coupon.TypeCartWise,
			Details:  coupon.CartWiseDetails{Threshold: d("100"), Discount: d("10")},
			IsActive: true,
		},
		{
			ID:       "product-1",
			Type:     coupon.TypeProductWise,
			Details:  coupon.ProductWiseDetails{ProductID: 1, Discount: d("20")},
			IsActive: true,
		},
		{
			ID:   "b2g1",
			Type: coupon.TypeBxGy,
			Details: coupon.BxGyDetails{
				BuyProducts:     []coupon.ProductQuantity{{ProductID: 1, Quantity: 3}, {ProductID: 2, Quantity: 3}},
				GetProducts:     []coupon.ProductQuantity{{ProductID: 3, Quantity: 1}},
				RepetitionLimit: limit(2),
			},
			IsActive: true,
		},
		{
			ID:       "inactive",
			Type:     coupon.TypeCartWise,
			Details:  coupon.CartWiseDetails{Threshold: d("1"), Discount: d("90")},
			IsActive: false,
		},
		{
			ID:       "product-9",
			Type:     coupon.TypeProductWise,
			Details:  coupon.ProductWiseDetails{ProductID: 9, Discount: d("20")},
			IsActive: true,
		},
		{
			ID:       "broken",
			Type:     coupon.TypeBxGy,
			Details:  coupon.CartWiseDetails{Threshold: d("1"), Discount: d("99")},
			IsActive: true,
		},
		{
			ID:       "unknown",
			Type:     coupon.Type("mystery"),
			IsActive: true,
		},
		{
			ID:       "product-2-fixed",
			Type:     coupon.TypeProductWise,
			Details:  coupon.ProductWiseDetails{ProductID: 2, Discount: d("44"), DiscountType: coupon.DiscountFixed},
			IsActive: true,
		},
	}
}

func TestEngine_ListApplicable(t *testing.T) {
	e := NewEngine()
	c := items(line(1, 6, "50"), line(2, 3, "30"), line(3, 2, "25"))

	got := e.ListApplicable(context.Background(), catalog(), c)

	ids := make([]string, len(got))
	for i, a := range got {
		ids[i] = a.CouponID
	}
	// cart-10 and product-2-fixed both give 44; catalog order breaks the tie.
	assert.Equal(t, []string{"product-1", "cart-10", "product-2-fixed", "b2g1"}, ids)
	assert.True(t, got[0].Discount.Equal(d("60")))
	assert.True(t, got[1].Discount.Equal(d("44")))
	assert.Equal(t, coupon.TypeBxGy, got[3].Type)
	assert.True(t, got[3].Discount.Equal(d("25")))

	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Discount.GreaterThanOrEqual(got[i].Discount))
	}
}

func TestEngine_ListApplicableLogsSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	ctx := zctx.Base(context.Background(), zap.New(core))
	c := items(line(1, 6, "50"), line(2, 3, "30"), line(3, 2, "25"))

	got := NewEngine().ListApplicable(ctx, catalog(), c)
	require.Len(t, got, 4)

	skipped := logs.FilterMessage("Skip coupon").All()
	require.Len(t, skipped, 2)

	ids := make([]string, len(skipped))
	for i, entry := range skipped {
		assert.Equal(t, zapcore.WarnLevel, entry.Level)
		ids[i] = entry.ContextMap()["coupon_id"].(string)
	}
	assert.Equal(t, []string{"broken", "unknown"}, ids)
	assert.Equal(t, "mystery", skipped[1].ContextMap()["coupon_type"])
}

func TestEngine_ListApplicableEmpty(t *testing.T) {
	got := NewEngine().ListApplicable(context.Background(), nil, items(line(1, 1, "1")))
	assert.Empty(t, got)
}

func TestEngine_Apply(t *testing.T) {
	e := NewEngine()
	coupons := catalog()
	c := items(line(1, 6, "50"), line(2, 3, "30"), line(3, 2, "25"))

	t.Run("applicable", func(t *testing.T) {
		u, err := e.Apply(&coupons[2], c)
		require.NoError(t, err)
		assert.True(t, u.TotalDiscount.Equal(d("25")))
		assert.True(t, u.FinalPrice.Equal(d("415")))
	})
	t.Run("inactive", func(t *testing.T) {
		_, err := e.Apply(&coupons[3], c)
		require.ErrorIs(t, err, coupon.ErrInactive)
		assert.True(t, coupon.IsBusinessError(err))
	})
	t.Run("not applicable", func(t *testing.T) {
		_, err := e.Apply(&coupons[4], c)
		require.ErrorIs(t, err, coupon.ErrNotApplicable)
		assert.True(t, coupon.IsBusinessError(err))
	})
	t.Run("details mismatch", func(t *testing.T) {
		_, err := e.Apply(&coupons[5], c)
		require.ErrorIs(t, err, coupon.ErrDetailsMismatch)
		assert.True(t, coupon.IsBusinessError(err))
	})
	t.Run("unknown type", func(t *testing.T) {
		_, err := e.Apply(&coupons[6], c)
		require.ErrorIs(t, err, coupon.ErrUnknownType)
		assert.True(t, coupon.IsBusinessError(err))
	})
}

func TestEngine_CalculateDiscountIsPure(t *testing.T) {
	e := NewEngine()
	coupons := catalog()
	c := items(line(1, 6, "50"), line(2, 3, "30"), line(3, 2, "25"))

	for i := range coupons[:3] {
		first, err := e.CalculateDiscount(&coupons[i], c)
		require.NoError(t, err)
		second, err := e.CalculateDiscount(&coupons[i], c)
		require.NoError(t, err)
		assert.True(t, first.Equal(second), coupons[i].ID)
	}
}
