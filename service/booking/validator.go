package bookingsvc

import (
	"context"
	"time"

	"github.com/photsathonspd1-create/bann-mae-villa-sub000/model"
)

type Reader interface {
	FindActiveByResource(ctx context.Context, resourceID string, asOf time.Time) ([]model.Booking, error)
}

// Validator decides whether a candidate range can be committed for a villa.
// It must be given a Reader that holds the villa's lock.
type Validator struct{}

// Validate returns the conflict, or nil when the range is free. excludeID
// skips the booking being rescheduled so it never collides with itself.
func (Validator) Validate(ctx context.Context, r Reader, resourceID string, candidate model.Interval, excludeID string, asOf time.Time) (*ConflictError, error) {
	active, err := r.FindActiveByResource(ctx, resourceID, asOf)
	if err != nil {
		return nil, err
	}
	if b := FindConflict(active, candidate, excludeID); b != nil {
		return &ConflictError{BookingID: b.ID, Range: b.Interval()}, nil
	}
	return nil, nil
}

// FindConflict returns the first booking in active that overlaps candidate.
func FindConflict(active []model.Booking, candidate model.Interval, excludeID string) *model.Booking {
	for i := range active {
		if excludeID != "" && active[i].ID == excludeID {
			continue
		}
		if model.Overlaps(candidate, active[i].Interval()) {
			return &active[i]
		}
	}
	return nil
}
