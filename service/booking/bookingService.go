package bookingsvc

import (
	"context"
	"errors"
	"time"

	"github.com/photsathonspd1-create/bann-mae-villa-sub000/model"
	bookingrepo "github.com/photsathonspd1-create/bann-mae-villa-sub000/repository/booking"
	"github.com/photsathonspd1-create/bann-mae-villa-sub000/util/clock"
	"github.com/photsathonspd1-create/bann-mae-villa-sub000/util/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("villa/service/booking")

type Service interface {
	// Create books [start, end] for a villa with status BOOKED.
	Create(ctx context.Context, resourceID string, start, end time.Time, notes *string) (*model.Booking, error)

	// Hold reserves the range as PENDING until the hold TTL runs out.
	Hold(ctx context.Context, resourceID string, start, end time.Time, notes *string) (*model.Booking, error)

	// Reschedule moves a booking; a nil date keeps the current one.
	Reschedule(ctx context.Context, id string, start, end *time.Time) (*model.Booking, error)

	// ChangeStatus sets BOOKED or CANCELLED. changed is false when the
	// booking already had that status and nothing was written.
	ChangeStatus(ctx context.Context, id string, status model.BookingStatus) (b *model.Booking, changed bool, err error)
	EditNotes(ctx context.Context, id string, notes *string) (*model.Booking, error)

	// Remove deletes the booking permanently.
	Remove(ctx context.Context, id string) error

	Get(ctx context.Context, id string) (*model.Booking, error)
	ListByResource(ctx context.Context, resourceID string) ([]model.Booking, error)
}

type Options struct {
	OperationTimeout time.Duration
	HoldTTL          time.Duration
	Clock            clock.Clock
}

// ----- Service implementation -----

type service struct {
	store   bookingrepo.Store
	v       Validator
	clock   clock.Clock
	timeout time.Duration
	holdTTL time.Duration
}

func New(store bookingrepo.Store, opt Options) Service {
	if opt.Clock == nil {
		opt.Clock = clock.Real{}
	}
	if opt.HoldTTL <= 0 {
		opt.HoldTTL = 15 * time.Minute
	}
	return &service{
		store:   store,
		clock:   opt.Clock,
		timeout: opt.OperationTimeout,
		holdTTL: opt.HoldTTL,
	}
}

func (s *service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attrs...))
	cancel := func() {}
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
	}
	return ctx, func(errp *error) {
		cancel()
		result := "ok"
		if errp != nil && *errp != nil {
			result = string(Code(*errp))
			span.RecordError(*errp)
			span.SetStatus(codes.Error, result)
		}
		metrics.IncBookingOp(op, result)
		span.End()
	}
}

// fail maps repository and context errors onto the coded taxonomy. Once the
// operation's context is done every failure is reported as a timeout; the
// store has already discarded any uncommitted write.
func fail(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if Code(err) != "" {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), ctx.Err() != nil:
		return wrapErr(ErrTimeout, err)
	case errors.Is(err, bookingrepo.ErrNotFound):
		return wrapErr(ErrNotFound, err)
	case errors.Is(err, bookingrepo.ErrOverlap):
		return &ConflictError{}
	}
	return wrapErr(ErrStorage, err)
}

func (s *service) Create(ctx context.Context, resourceID string, start, end time.Time, notes *string) (*model.Booking, error) {
	return s.create(ctx, "booking.Create", resourceID, start, end, notes, model.BookingBooked)
}

func (s *service) Hold(ctx context.Context, resourceID string, start, end time.Time, notes *string) (*model.Booking, error) {
	return s.create(ctx, "booking.Hold", resourceID, start, end, notes, model.BookingPending)
}

func (s *service) create(ctx context.Context, op, resourceID string, start, end time.Time, notes *string, status model.BookingStatus) (out *model.Booking, err error) {
	ctx, done := s.begin(ctx, op, attribute.String("villa.id", resourceID))
	defer done(&err)

	if resourceID == "" {
		return nil, makeErr(ErrBadInput)
	}
	iv := model.NewInterval(start, end)
	if !iv.Valid() {
		return nil, makeErr(ErrInvalidRange)
	}

	b := &model.Booking{
		ResourceID: resourceID,
		StartDate:  iv.Start,
		EndDate:    iv.End,
		Status:     status,
		Notes:      notes,
	}
	err = s.store.WithResourceLock(ctx, resourceID, func(ctx context.Context, r bookingrepo.Repo) error {
		now := s.clock.Now()
		conflict, err := s.v.Validate(ctx, r, resourceID, iv, "", now)
		if err != nil {
			return err
		}
		if conflict != nil {
			return conflict
		}
		if status == model.BookingPending {
			until := now.Add(s.holdTTL)
			b.HeldUntil = &until
		}
		return r.Create(ctx, b)
	})
	if err != nil {
		return nil, fail(ctx, err)
	}
	return b, nil
}

func (s *service) Reschedule(ctx context.Context, id string, start, end *time.Time) (out *model.Booking, err error) {
	ctx, done := s.begin(ctx, "booking.Reschedule", attribute.String("booking.id", id))
	defer done(&err)

	if start != nil && end != nil && !model.NewInterval(*start, *end).Valid() {
		return nil, makeErr(ErrInvalidRange)
	}

	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fail(ctx, err)
	}
	if start == nil && end == nil {
		return cur, nil
	}

	err = s.store.WithResourceLock(ctx, cur.ResourceID, func(ctx context.Context, r bookingrepo.Repo) error {
		cur, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		iv := cur.Interval()
		if start != nil {
			iv.Start = *start
		}
		if end != nil {
			iv.End = *end
		}
		iv = model.NewInterval(iv.Start, iv.End)
		if !iv.Valid() {
			return makeErr(ErrInvalidRange)
		}

		// cancelled bookings and lapsed holds do not claim their dates
		if now := s.clock.Now(); cur.ActiveAt(now) {
			conflict, err := s.v.Validate(ctx, r, cur.ResourceID, iv, id, now)
			if err != nil {
				return err
			}
			if conflict != nil {
				return conflict
			}
		}

		out, err = r.Update(ctx, id, model.BookingPatch{StartDate: &iv.Start, EndDate: &iv.End})
		return err
	})
	if err != nil {
		return nil, fail(ctx, err)
	}
	return out, nil
}

func (s *service) ChangeStatus(ctx context.Context, id string, status model.BookingStatus) (out *model.Booking, changed bool, err error) {
	ctx, done := s.begin(ctx, "booking.ChangeStatus",
		attribute.String("booking.id", id), attribute.String("booking.status", string(status)))
	defer done(&err)

	// PENDING is only entered through Hold
	if status != model.BookingBooked && status != model.BookingCancelled {
		return nil, false, makeErr(ErrInvalidStatus)
	}

	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, false, fail(ctx, err)
	}

	err = s.store.WithResourceLock(ctx, cur.ResourceID, func(ctx context.Context, r bookingrepo.Repo) error {
		cur, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		if cur.Status == status {
			out = cur
			return nil
		}

		var noHold *time.Time
		patch := model.BookingPatch{Status: &status, HeldUntil: &noHold}

		if status == model.BookingBooked {
			now := s.clock.Now()
			// a live hold was validated when it was placed
			if !cur.ActiveAt(now) {
				conflict, err := s.v.Validate(ctx, r, cur.ResourceID, cur.Interval(), id, now)
				if err != nil {
					return err
				}
				if conflict != nil {
					return conflict
				}
			}
		}

		if out, err = r.Update(ctx, id, patch); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, fail(ctx, err)
	}
	return out, changed, nil
}

func (s *service) EditNotes(ctx context.Context, id string, notes *string) (out *model.Booking, err error) {
	ctx, done := s.begin(ctx, "booking.EditNotes", attribute.String("booking.id", id))
	defer done(&err)

	out, err = s.store.Update(ctx, id, model.BookingPatch{Notes: &notes})
	if err != nil {
		return nil, fail(ctx, err)
	}
	return out, nil
}

func (s *service) Remove(ctx context.Context, id string) (err error) {
	ctx, done := s.begin(ctx, "booking.Remove", attribute.String("booking.id", id))
	defer done(&err)

	return fail(ctx, s.store.Delete(ctx, id))
}

func (s *service) Get(ctx context.Context, id string) (*model.Booking, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fail(ctx, err)
	}
	return b, nil
}

func (s *service) ListByResource(ctx context.Context, resourceID string) ([]model.Booking, error) {
	out, err := s.store.ListByResource(ctx, resourceID)
	if err != nil {
		return nil, fail(ctx, err)
	}
	return out, nil
}
