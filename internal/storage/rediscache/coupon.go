// Package rediscache adds a Redis read-through cache in front of a coupon
// repository.
package rediscache

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/coupons-api/internal/domain/coupon"
)

// DefaultTTL is the base lifetime of a cached coupon.
const DefaultTTL = 15 * time.Minute

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository caches Get results of the wrapped repository. Writes go
// to the wrapped repository first and then drop the cached entry. Redis
// failures are logged and fall through to the wrapped repository.
type CouponRepository struct {
	next    coupon.Repository
	client  redis.UniversalClient
	baseTTL time.Duration
}

// New wraps next. A non-positive ttl selects DefaultTTL.
func New(next coupon.Repository, client redis.UniversalClient, ttl time.Duration) *CouponRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CouponRepository{next: next, client: client, baseTTL: ttl}
}

func (r *CouponRepository) List(ctx context.Context, filter coupon.Filter) ([]coupon.Coupon, error) {
	return r.next.List(ctx, filter)
}

func (r *CouponRepository) Get(ctx context.Context, id string) (*coupon.Coupon, error) {
	lg := zctx.From(ctx)

	data, err := r.client.Get(ctx, cacheKey(id)).Bytes()
	switch {
	case err == nil:
		c, err := coupon.DecodeCoupon(jx.DecodeBytes(data))
		if err == nil {
			return c, nil
		}
		lg.Warn("Drop undecodable cache entry", zap.String("coupon_id", id), zap.Error(err))
		r.invalidate(ctx, id)
	case !errors.Is(err, redis.Nil):
		lg.Warn("Cache read failed", zap.String("coupon_id", id), zap.Error(err))
	}

	c, err := r.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Details == nil {
		return c, nil
	}

	var e jx.Encoder
	coupon.EncodeCoupon(&e, c)
	if err := r.client.Set(ctx, cacheKey(id), e.Bytes(), r.ttl()).Err(); err != nil {
		lg.Warn("Cache write failed", zap.String("coupon_id", id), zap.Error(err))
	}
	return c, nil
}

func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	return r.next.Create(ctx, c)
}

func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	if err := r.next.Update(ctx, c); err != nil {
		return err
	}
	r.invalidate(ctx, c.ID)
	return nil
}

func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	if err := r.next.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// Ping checks Redis connectivity.
func (r *CouponRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *CouponRepository) invalidate(ctx context.Context, id string) {
	if err := r.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		zctx.From(ctx).Warn("Cache invalidation failed", zap.String("coupon_id", id), zap.Error(err))
	}
}

// ttl spreads expiry over up to a fifth of the base TTL.
func (r *CouponRepository) ttl() time.Duration {
	return r.baseTTL + rand.N(r.baseTTL/5+1)
}

func cacheKey(id string) string {
	return "coupon:" + id
}
