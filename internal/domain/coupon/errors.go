package coupon

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned by repositories when a coupon id is unknown.
	ErrNotFound = errors.New("coupon not found")
	// ErrInactive is returned when applying a deactivated coupon.
	ErrInactive = errors.New("coupon is not active")
	// ErrNotApplicable is returned when a coupon yields no discount for a cart.
	ErrNotApplicable = errors.New("coupon is not applicable to this cart")
	// ErrUnknownType signals a coupon whose type has no discount strategy.
	// Validation rules this out, so seeing it means a stored record is corrupt.
	ErrUnknownType = errors.New("unknown coupon type")
	// ErrDetailsMismatch signals details that do not belong to the coupon type.
	ErrDetailsMismatch = errors.New("coupon details do not match coupon type")
)

// NotFoundError reports a lookup of an unknown coupon id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("coupon with ID %s not found", e.ID)
}

// Unwrap lets errors.Is match ErrNotFound.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ValidationError carries field-level messages for malformed coupon or cart
// input.
type ValidationError struct {
	Message string
	Errors  []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Errors, "; ")
}

// IsBusinessError reports whether err is one of the business rule violations
// surfaced to clients as a bad request.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrInactive) ||
		errors.Is(err, ErrNotApplicable) ||
		errors.Is(err, ErrUnknownType) ||
		errors.Is(err, ErrDetailsMismatch)
}
