package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupons-api/internal/app"
	"github.com/xenking/coupons-api/internal/domain/coupon"
	"github.com/xenking/coupons-api/internal/domain/discount"
	"github.com/xenking/coupons-api/internal/service"
)

func main() {
	var cfg app.StorageConfig

	flag.StringVar(&cfg.Driver, "driver", app.DriverPostgres, "coupon store: postgres or mongo")
	flag.StringVar(&cfg.DatabaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&cfg.MongoURI, "mongo-uri", "", "MongoDB connection URI (or MONGODB_URI env)")
	flag.StringVar(&cfg.MongoDatabase, "mongo-database", "coupons", "MongoDB database name")
	flag.Parse()

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.MongoURI == "" {
		cfg.MongoURI = os.Getenv("MONGODB_URI")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, cfg app.StorageConfig) error {
	slog.Info("connecting to coupon store", slog.String("driver", cfg.Driver))

	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer closeStore()

	svc, err := service.New(store, discount.NewEngine())
	if err != nil {
		return errors.Wrap(err, "create service")
	}

	n, err := seed(ctx, svc)
	if err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	slog.Info("coupons seeded", slog.Int("created", n))
	return nil
}

// sampleCoupons are created on an empty store: 10% off carts over 100, 20%
// off product 1, and one product 3 free per 6 units of products 1 and 2.
func sampleCoupons() []coupon.Draft {
	limit := int64(2)
	return []coupon.Draft{
		{
			Type: coupon.TypeCartWise,
			Details: &coupon.RawDetails{
				Threshold:    decimal.NewFromInt(100),
				Discount:     decimal.NewFromInt(10),
				DiscountType: coupon.DiscountPercentage,
			},
		},
		{
			Type: coupon.TypeProductWise,
			Details: &coupon.RawDetails{
				ProductID:    1,
				Discount:     decimal.NewFromInt(20),
				DiscountType: coupon.DiscountPercentage,
			},
		},
		{
			Type: coupon.TypeBxGy,
			Details: &coupon.RawDetails{
				BuyProducts: []coupon.ProductQuantity{
					{ProductID: 1, Quantity: 3},
					{ProductID: 2, Quantity: 3},
				},
				GetProducts: []coupon.ProductQuantity{
					{ProductID: 3, Quantity: 1},
				},
				RepetitionLimit: &limit,
			},
		},
	}
}

// seed creates the sample coupons unless the store already has coupons.
func seed(ctx context.Context, svc *service.Service) (int, error) {
	existing, err := svc.List(ctx, coupon.Filter{})
	if err != nil {
		return 0, errors.Wrap(err, "list coupons")
	}
	if len(existing) > 0 {
		slog.Info("store already has coupons, skipping seed", slog.Int("count", len(existing)))
		return 0, nil
	}

	created := 0
	for _, draft := range sampleCoupons() {
		c, err := svc.Create(ctx, draft)
		if err != nil {
			return created, errors.Wrapf(err, "create %s coupon", draft.Type)
		}
		slog.Info("coupon created", slog.String("id", c.ID), slog.String("type", string(c.Type)))
		created++
	}
	return created, nil
}
