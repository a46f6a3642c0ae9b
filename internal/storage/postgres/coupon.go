package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/coupons-api/internal/domain/coupon"
)

var _ coupon.Repository = (*CouponRepository)(nil)

const couponColumns = `id::text, type, details, is_active, created_at, updated_at`

// CouponRepository implements coupon.Repository backed by PostgreSQL.
// Details are kept as JSONB in the shared coupon codec format.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// List returns coupons matching filter in creation order.
func (r *CouponRepository) List(ctx context.Context, filter coupon.Filter) ([]coupon.Coupon, error) {
	var typ *string
	if filter.Type != nil {
		s := string(*filter.Type)
		typ = &s
	}

	rows, err := r.pool.Query(ctx, `SELECT `+couponColumns+` FROM coupons
		WHERE ($1::text IS NULL OR type = $1)
		  AND ($2::boolean IS NULL OR is_active = $2)
		ORDER BY seq`, typ, filter.Active)
	if err != nil {
		return nil, errors.Wrap(err, "query coupons")
	}
	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, errors.Wrap(err, "collect coupons")
	}
	return coupons, nil
}

// Get returns coupon.ErrNotFound for unknown or malformed ids.
func (r *CouponRepository) Get(ctx context.Context, id string) (*coupon.Coupon, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, coupon.ErrNotFound
	}

	rows, err := r.pool.Query(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1::uuid`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "query coupon %s", id)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrapf(err, "collect coupon %s", id)
	}
	return &c, nil
}

// Create assigns a new UUID to c and inserts it.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `INSERT INTO coupons (id, type, details, is_active, created_at, updated_at)
		VALUES ($1::uuid, $2, $3::jsonb, $4, $5, $6)`,
		id, string(c.Type), string(coupon.MarshalDetails(c.Details)), c.IsActive, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "insert coupon")
	}
	c.ID = id
	return nil
}

func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	if _, err := uuid.Parse(c.ID); err != nil {
		return coupon.ErrNotFound
	}

	tag, err := r.pool.Exec(ctx, `UPDATE coupons
		SET type = $2, details = $3::jsonb, is_active = $4, updated_at = $5
		WHERE id = $1::uuid`,
		c.ID, string(c.Type), string(coupon.MarshalDetails(c.Details)), c.IsActive, c.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "update coupon %s", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return coupon.ErrNotFound
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM coupons WHERE id = $1::uuid`, id)
	if err != nil {
		return errors.Wrapf(err, "delete coupon %s", id)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Ping checks database connectivity.
func (r *CouponRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c       coupon.Coupon
		typ     string
		details []byte
	)
	if err := row.Scan(&c.ID, &typ, &details, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return c, err
	}
	c.Type = coupon.Type(typ)

	// Undecodable details stay nil; the engine reports them as a mismatch.
	if d, err := coupon.UnmarshalDetails(c.Type, details); err == nil {
		c.Details = d
	}
	return c, nil
}
