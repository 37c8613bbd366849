package availabilitysvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/photsathonspd1-create/bann-mae-villa-sub000/model"
	cacherepo "github.com/photsathonspd1-create/bann-mae-villa-sub000/repository/cache"
	"github.com/photsathonspd1-create/bann-mae-villa-sub000/util/clock"
	"github.com/photsathonspd1-create/bann-mae-villa-sub000/util/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("villa/service/availability")

type Reader interface {
	FindActiveByResource(ctx context.Context, resourceID string, asOf time.Time) ([]model.Booking, error)
}

// Service answers calendar questions for the public site. Reads are not
// serialised against writers; results are advisory.
type Service interface {
	// BlockedDays lists every day in [from, to] covered by an active booking,
	// ascending and without duplicates.
	BlockedDays(ctx context.Context, resourceID string, from, to time.Time) ([]time.Time, error)
	IsAvailable(ctx context.Context, resourceID string, date time.Time) (bool, error)
	// Invalidate drops cached intervals after a booking mutation.
	Invalidate(ctx context.Context, resourceID string)
}

// DefaultMaxWindowDays bounds a BlockedDays query when Options leaves it unset.
const DefaultMaxWindowDays = 366

type Options struct {
	Clock    clock.Clock
	Location *time.Location
	Cache    cacherepo.Intervals
	Log      *slog.Logger
	// MaxWindowDays is the longest [from, to] BlockedDays accepts, counted
	// inclusively.
	MaxWindowDays int
}

type service struct {
	r         Reader
	clock     clock.Clock
	loc       *time.Location
	cache     cacherepo.Intervals
	log       *slog.Logger
	maxWindow int
}

func New(r Reader, opt Options) Service {
	if opt.Clock == nil {
		opt.Clock = clock.Real{}
	}
	if opt.Location == nil {
		opt.Location = time.UTC
	}
	if opt.Cache == nil {
		opt.Cache = cacherepo.Nop{}
	}
	if opt.Log == nil {
		opt.Log = slog.Default()
	}
	if opt.MaxWindowDays <= 0 {
		opt.MaxWindowDays = DefaultMaxWindowDays
	}
	return &service{r: r, clock: opt.Clock, loc: opt.Location, cache: opt.Cache, log: opt.Log, maxWindow: opt.MaxWindowDays}
}

// today is the current calendar day in the villa's zone, as a UTC date.
func (s *service) today() time.Time {
	y, m, d := s.clock.Now().In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *service) BlockedDays(ctx context.Context, resourceID string, from, to time.Time) (days []time.Time, err error) {
	ctx, span := tracer.Start(ctx, "availability.BlockedDays", trace.WithAttributes(attribute.String("villa.id", resourceID)))
	defer endSpan(span, &err)

	if resourceID == "" {
		return nil, makeErr(ErrBadInput)
	}
	window := model.NewInterval(from, to)
	if window.End.Before(window.Start) {
		return nil, makeErr(ErrInvalidRange)
	}
	// Sub saturates for far-apart dates, which still lands above the cap
	if d := window.End.Sub(window.Start); d >= time.Duration(s.maxWindow)*24*time.Hour {
		return nil, wrapErr(ErrInvalidRange, fmt.Errorf("window longer than %d days", s.maxWindow))
	}

	ivs, err := s.intervals(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]time.Time)
	for _, iv := range ivs {
		clipped, ok := iv.Clip(window)
		if !ok {
			continue
		}
		for _, d := range clipped.Days() {
			seen[d.Unix()] = d
		}
	}
	days = make([]time.Time, 0, len(seen))
	for _, d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

func (s *service) IsAvailable(ctx context.Context, resourceID string, date time.Time) (ok bool, err error) {
	ctx, span := tracer.Start(ctx, "availability.IsAvailable", trace.WithAttributes(attribute.String("villa.id", resourceID)))
	defer endSpan(span, &err)

	if resourceID == "" {
		return false, makeErr(ErrBadInput)
	}
	day := model.Day(date)
	if day.Before(s.today()) {
		return false, nil
	}

	ivs, err := s.intervals(ctx, resourceID)
	if err != nil {
		return false, err
	}
	for _, iv := range ivs {
		if iv.Contains(day) {
			return false, nil
		}
	}
	return true, nil
}

func (s *service) Invalidate(ctx context.Context, resourceID string) {
	if err := s.cache.Invalidate(ctx, resourceID); err != nil {
		s.log.Warn("availability cache invalidate failed", "villa_id", resourceID, "err", err)
	}
}

// intervals serves active intervals from cache, falling back to the store.
func (s *service) intervals(ctx context.Context, resourceID string) ([]model.Interval, error) {
	ivs, err := s.cache.Get(ctx, resourceID)
	switch {
	case err == nil:
		metrics.IncCache("hit")
		return ivs, nil
	case errors.Is(err, cacherepo.ErrMiss):
		metrics.IncCache("miss")
	default:
		metrics.IncCache("error")
		s.log.Warn("availability cache read failed", "villa_id", resourceID, "err", err)
	}

	active, err := s.r.FindActiveByResource(ctx, resourceID, s.clock.Now())
	if err != nil {
		if ctx.Err() != nil {
			return nil, wrapErr(ErrTimeout, err)
		}
		return nil, wrapErr(ErrStorage, err)
	}
	ivs = make([]model.Interval, 0, len(active))
	for _, b := range active {
		ivs = append(ivs, b.Interval())
	}
	if err := s.cache.Set(ctx, resourceID, ivs); err != nil {
		s.log.Warn("availability cache write failed", "villa_id", resourceID, "err", err)
	}
	return ivs, nil
}

func endSpan(span trace.Span, errp *error) {
	if *errp != nil {
		span.RecordError(*errp)
		span.SetStatus(codes.Error, string(Code(*errp)))
	}
	span.End()
}
