// Package service implements the coupon use cases on top of a repository and
// the discount engine.
package service

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/coupons-api/internal/domain/cart"
	"github.com/xenking/coupons-api/internal/domain/coupon"
	"github.com/xenking/coupons-api/internal/domain/discount"
	"github.com/xenking/coupons-api/internal/events"
)

// Publisher delivers coupon lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// Service coordinates coupon storage, validation and discount evaluation.
type Service struct {
	repo      coupon.Repository
	engine    *discount.Engine
	publisher Publisher
	meter     metric.MeterProvider
	now       func() time.Time

	applicableRequests metric.Int64Counter
	applied            metric.Int64Counter
	rejected           metric.Int64Counter
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the lifecycle event publisher. Events are dropped by
// default.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMeterProvider sets the provider for service counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meter = mp }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service.
func New(repo coupon.Repository, engine *discount.Engine, opts ...Option) (*Service, error) {
	s := &Service{
		repo:      repo,
		engine:    engine,
		publisher: events.Nop{},
		meter:     noop.NewMeterProvider(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	meter := s.meter.Meter("github.com/xenking/coupons-api/internal/service")
	var err error
	if s.applicableRequests, err = meter.Int64Counter("coupons.applicable.requests",
		metric.WithDescription("Applicable coupon lookups"),
	); err != nil {
		return nil, errors.Wrap(err, "applicable requests counter")
	}
	if s.applied, err = meter.Int64Counter("coupons.applied",
		metric.WithDescription("Coupons applied to a cart"),
	); err != nil {
		return nil, errors.Wrap(err, "applied counter")
	}
	if s.rejected, err = meter.Int64Counter("coupons.apply.rejected",
		metric.WithDescription("Coupon applications rejected by business rules"),
	); err != nil {
		return nil, errors.Wrap(err, "rejected counter")
	}
	return s, nil
}

// List returns the coupons matching filter in creation order.
func (s *Service) List(ctx context.Context, filter coupon.Filter) ([]coupon.Coupon, error) {
	coupons, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return coupons, nil
}

// Get returns a *coupon.NotFoundError for an unknown id.
func (s *Service) Get(ctx context.Context, id string) (*coupon.Coupon, error) {
	c, err := s.repo.Get(ctx, id)
	if errors.Is(err, coupon.ErrNotFound) {
		return nil, &coupon.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get coupon %s", id)
	}
	return c, nil
}

// Create validates and stores a new coupon. IsActive defaults to true.
func (s *Service) Create(ctx context.Context, draft coupon.Draft) (*coupon.Coupon, error) {
	var details coupon.Details
	if draft.Details != nil {
		details = draft.Details.Resolve(draft.Type)
	}
	if err := coupon.ValidateCoupon(draft.Type, details).Err("Invalid coupon data"); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c := &coupon.Coupon{
		Type:      draft.Type,
		Details:   details,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if draft.IsActive != nil {
		c.IsActive = *draft.IsActive
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create coupon")
	}

	s.publish(ctx, events.KindCreated, c)
	return c, nil
}

// Update merges patch into the stored coupon. Details are replaced as a
// whole; the merged coupon must validate against its (possibly new) type.
func (s *Service) Update(ctx context.Context, id string, patch coupon.Patch) (*coupon.Coupon, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Type != nil {
		c.Type = *patch.Type
	}
	if patch.Details != nil {
		c.Details = patch.Details.Resolve(c.Type)
	}
	if patch.IsActive != nil {
		c.IsActive = *patch.IsActive
	}
	if err := coupon.ValidateCoupon(c.Type, c.Details).Err("Invalid coupon data"); err != nil {
		return nil, err
	}

	c.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, c); err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			return nil, &coupon.NotFoundError{ID: id}
		}
		return nil, errors.Wrapf(err, "update coupon %s", id)
	}

	s.publish(ctx, events.KindUpdated, c)
	return c, nil
}

// Delete removes a coupon.
func (s *Service) Delete(ctx context.Context, id string) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			return &coupon.NotFoundError{ID: id}
		}
		return errors.Wrapf(err, "delete coupon %s", id)
	}

	s.publish(ctx, events.KindDeleted, c)
	return nil
}

// ApplicableCoupons lists the active coupons that discount the cart, largest
// discount first.
func (s *Service) ApplicableCoupons(ctx context.Context, ct cart.Cart) ([]discount.Applicable, error) {
	if err := coupon.ValidateCart(ct).Err("Invalid cart data"); err != nil {
		return nil, err
	}
	s.applicableRequests.Add(ctx, 1)

	active := true
	coupons, err := s.repo.List(ctx, coupon.Filter{Active: &active})
	if err != nil {
		return nil, errors.Wrap(err, "list active coupons")
	}
	return s.engine.ListApplicable(ctx, coupons, ct), nil
}

// ApplyCoupon applies coupon id to the cart.
func (s *Service) ApplyCoupon(ctx context.Context, id string, ct cart.Cart) (*cart.Updated, error) {
	if err := coupon.ValidateCart(ct).Err("Invalid cart data"); err != nil {
		return nil, err
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	typeAttr := metric.WithAttributes(attribute.String("type", string(c.Type)))
	updated, err := s.engine.Apply(c, ct)
	if err != nil {
		if coupon.IsBusinessError(err) {
			s.rejected.Add(ctx, 1, typeAttr)
		}
		return nil, err
	}
	s.applied.Add(ctx, 1, typeAttr)
	return &updated, nil
}

func (s *Service) publish(ctx context.Context, kind events.Kind, c *coupon.Coupon) {
	e := events.Event{Kind: kind, Coupon: *c, At: s.now().UTC()}
	if err := s.publisher.Publish(ctx, e); err != nil {
		zctx.From(ctx).Warn("Publish coupon event",
			zap.String("kind", string(kind)),
			zap.String("coupon_id", c.ID),
			zap.Error(err),
		)
	}
}
