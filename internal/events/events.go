// Package events publishes coupon lifecycle events.
package events

import (
	"context"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/coupons-api/internal/domain/coupon"
)

// Kind names a lifecycle transition.
type Kind string

const (
	KindCreated Kind = "coupon.created"
	KindUpdated Kind = "coupon.updated"
	KindDeleted Kind = "coupon.deleted"
)

// Event is a coupon lifecycle change. Coupon holds the state after the
// change, or the last known state for deletions.
type Event struct {
	Kind   Kind
	Coupon coupon.Coupon
	At     time.Time
}

// Encode returns the JSON payload of e.
func Encode(e Event) []byte {
	var w jx.Encoder
	w.ObjStart()
	w.FieldStart("kind")
	w.Str(string(e.Kind))
	w.FieldStart("at")
	w.Str(e.At.UTC().Format(time.RFC3339Nano))
	w.FieldStart("coupon")
	coupon.EncodeCoupon(&w, &e.Coupon)
	w.ObjEnd()
	return w.Bytes()
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
