// Package mongo implements coupon storage on MongoDB.
package mongo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/coupons-api/internal/domain/coupon"
)

// Connect opens a client for uri, verifies it with a ping and returns the
// named database.
func Connect(ctx context.Context, uri, database string) (*mongo.Database, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "ping")
	}
	return client.Database(database), nil
}

type couponDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Type      string             `bson:"type"`
	Details   bson.D             `bson:"details"`
	IsActive  bool               `bson:"isActive"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository on the "coupons"
// collection. Coupon ids are ObjectID hex strings.
type CouponRepository struct {
	collection *mongo.Collection
}

// NewCouponRepository returns a repository over db.
func NewCouponRepository(db *mongo.Database) *CouponRepository {
	return &CouponRepository{collection: db.Collection("coupons")}
}

// EnsureIndexes creates the listing indexes.
func (r *CouponRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "type", Value: 1}}},
		{Keys: bson.D{{Key: "isActive", Value: 1}}},
		{Keys: bson.D{{Key: "type", Value: 1}, {Key: "isActive", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return errors.Wrap(err, "create indexes")
	}
	return nil
}

// List returns coupons matching filter in creation order.
func (r *CouponRepository) List(ctx context.Context, filter coupon.Filter) ([]coupon.Coupon, error) {
	query := bson.D{}
	if filter.Type != nil {
		query = append(query, bson.E{Key: "type", Value: string(*filter.Type)})
	}
	if filter.Active != nil {
		query = append(query, bson.E{Key: "isActive", Value: *filter.Active})
	}

	cur, err := r.collection.Find(ctx, query,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "find coupons")
	}
	var docs []couponDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode coupons")
	}

	coupons := make([]coupon.Coupon, len(docs))
	for i, doc := range docs {
		coupons[i] = fromDocument(doc)
	}
	return coupons, nil
}

// Get returns coupon.ErrNotFound for unknown or malformed ids.
func (r *CouponRepository) Get(ctx context.Context, id string) (*coupon.Coupon, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, coupon.ErrNotFound
	}

	var doc couponDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find coupon %s", id)
	}
	c := fromDocument(doc)
	return &c, nil
}

func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	doc, err := toDocument(c)
	if err != nil {
		return err
	}
	doc.ID = primitive.NewObjectID()
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return errors.Wrap(err, "insert coupon")
	}
	c.ID = doc.ID.Hex()
	return nil
}

func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	oid, err := primitive.ObjectIDFromHex(c.ID)
	if err != nil {
		return coupon.ErrNotFound
	}
	doc, err := toDocument(c)
	if err != nil {
		return err
	}

	res, err := r.collection.UpdateByID(ctx, oid, bson.M{"$set": bson.M{
		"type":      doc.Type,
		"details":   doc.Details,
		"isActive":  doc.IsActive,
		"updatedAt": doc.UpdatedAt,
	}})
	if err != nil {
		return errors.Wrapf(err, "update coupon %s", c.ID)
	}
	if res.MatchedCount == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return coupon.ErrNotFound
	}
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return errors.Wrapf(err, "delete coupon %s", id)
	}
	if res.DeletedCount == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Ping checks server connectivity.
func (r *CouponRepository) Ping(ctx context.Context) error {
	return r.collection.Database().Client().Ping(ctx, nil)
}

// Details go through the shared JSON codec and are stored as an embedded
// document.
func toDocument(c *coupon.Coupon) (couponDocument, error) {
	var details bson.D
	if err := bson.UnmarshalExtJSON(coupon.MarshalDetails(c.Details), false, &details); err != nil {
		return couponDocument{}, errors.Wrap(err, "convert details")
	}
	return couponDocument{
		Type:      string(c.Type),
		Details:   details,
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}, nil
}

func fromDocument(doc couponDocument) coupon.Coupon {
	c := coupon.Coupon{
		ID:        doc.ID.Hex(),
		Type:      coupon.Type(doc.Type),
		IsActive:  doc.IsActive,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	// Undecodable details leave Details nil for the engine to reject.
	data, err := bson.MarshalExtJSON(doc.Details, false, false)
	if err != nil {
		return c
	}
	if details, err := coupon.UnmarshalDetails(c.Type, data); err == nil {
		c.Details = details
	}
	return c
}
