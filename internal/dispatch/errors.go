package dispatch

import (
	"errors"

	"github.com/chrisdamba/foodispatch/internal/repositories"
)

var (
	ErrMissingCoordinates = errors.New("order is missing pickup or delivery coordinates")
	ErrOrderNotWaiting    = errors.New("order is not waiting for a delivery partner")
	ErrActiveOfferExists  = errors.New("order already has an active offer")
	ErrOfferUnavailable   = errors.New("offer no longer available")
	ErrOfferNotFound      = errors.New("offer not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrCourierNotFound    = errors.New("delivery partner not found")
	ErrPartnerUnavailable = errors.New("delivery partner is not available")
	ErrNotAssigned        = errors.New("order has no assigned delivery partner")
	ErrInvalidStatus      = errors.New("invalid operational status")
)

// permanent errors describe state, not infrastructure; retrying the commit cannot fix them.
var permanent = []error{
	ErrMissingCoordinates,
	ErrOrderNotWaiting,
	ErrActiveOfferExists,
	ErrOfferUnavailable,
	ErrOfferNotFound,
	ErrOrderNotFound,
	ErrCourierNotFound,
	ErrPartnerUnavailable,
	ErrNotAssigned,
	ErrInvalidStatus,
	repositories.ErrNotFound,
	repositories.ErrDuplicate,
	repositories.ErrVersionConflict,
	repositories.ErrConditionFailed,
}

// IsPermanent reports whether err comes from order or offer state rather than from the
// store or the candidate search, so repeating the call would fail the same way.
func IsPermanent(err error) bool {
	for _, target := range permanent {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
