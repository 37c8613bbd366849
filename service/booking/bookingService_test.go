package bookingsvc_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/photsathonspd1-create/bann-mae-villa-sub000/model"
	bookingrepo "github.com/photsathonspd1-create/bann-mae-villa-sub000/repository/booking"
	bookingsvc "github.com/photsathonspd1-create/bann-mae-villa-sub000/service/booking"
	"github.com/photsathonspd1-create/bann-mae-villa-sub000/util/clock"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := model.ParseDate(s)
	require.NoError(t, err)
	return d
}

func ptr[T any](v T) *T { return &v }

func newSvc(t *testing.T) (bookingsvc.Service, *bookingrepo.Memory, *clock.Fixed) {
	t.Helper()
	c := clock.NewFixed(t0)
	store := bookingrepo.NewMemory(c)
	svc := bookingsvc.New(store, bookingsvc.Options{Clock: c, HoldTTL: 15 * time.Minute})
	return svc, store, c
}

func TestLifecycle_Scenarios(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newSvc(t)

	// 1. first booking succeeds
	a, err := svc.Create(ctx, "V1", day(t, "2024-06-01"), day(t, "2024-06-05"), nil)
	require.NoError(t, err)
	require.Equal(t, model.BookingBooked, a.Status)
	require.NotEmpty(t, a.ID)

	// 2. overlapping booking is rejected and names A
	_, err = svc.Create(ctx, "V1", day(t, "2024-06-04"), day(t, "2024-06-08"), nil)
	require.Equal(t, bookingsvc.ErrConflict, bookingsvc.Code(err))
	ce, ok := bookingsvc.AsConflict(err)
	require.True(t, ok)
	require.Equal(t, a.ID, ce.BookingID)
	require.Equal(t, a.Interval(), ce.Range)

	// 3. another villa is independent
	c, err := svc.Create(ctx, "V2", day(t, "2024-06-01"), day(t, "2024-06-05"), nil)
	require.NoError(t, err)

	// 4. cancelled bookings no longer block
	_, _, err = svc.ChangeStatus(ctx, a.ID, model.BookingCancelled)
	require.NoError(t, err)
	b, err := svc.Create(ctx, "V1", day(t, "2024-06-04"), day(t, "2024-06-08"), nil)
	require.NoError(t, err)
	require.Equal(t, model.BookingBooked, b.Status)

	// 5. inverted range leaves the booking untouched
	_, err = svc.Reschedule(ctx, c.ID, ptr(day(t, "2024-06-10")), ptr(day(t, "2024-06-03")))
	require.Equal(t, bookingsvc.ErrInvalidRange, bookingsvc.Code(err))
	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, day(t, "2024-06-01"), got.StartDate)
	require.Equal(t, day(t, "2024-06-05"), got.EndDate)
}

func TestCreate_InclusiveBoundary(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newSvc(t)

	_, err := svc.Create(ctx, "V1", day(t, "2024-01-01"), day(t, "2024-01-05"), nil)
	require.NoError(t, err)

	_, err = svc.Create(ctx, "V1", day(t, "2024-01-05"), day(t, "2024-01-10"), nil)
	require.Equal(t, bookingsvc.ErrConflict, bookingsvc.Code(err), "checkout day collides with checkin day")

	_, err = svc.Create(ctx, "V1", day(t, "2024-01-06"), day(t, "2024-01-10"), nil)
	require.NoError(t, err)
}

func TestCreate_InvalidInput(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newSvc(t)

	_, err := svc.Create(ctx, "V1", day(t, "2024-06-05"), day(t, "2024-06-05"), nil)
	require.Equal(t, bookingsvc.ErrInvalidRange, bookingsvc.Code(err), "zero-length stay")

	_, err = svc.Create(ctx, "V1", day(t, "2024-06-05"), day(t, "2024-06-01"), nil)
	require.Equal(t, bookingsvc.ErrInvalidRange, bookingsvc.Code(err))

	_, err = svc.Create(ctx, "", day(t, "2024-06-01"), day(t, "2024-06-05"), nil)
	require.Equal(t, bookingsvc.ErrBadInput, bookingsvc.Code(err))

	all, err := store.ListByResource(ctx, "V1")
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestCreate_KeepsNotes(t *testing.T) {
	svc, _, _ := newSvc(t)
	b, err := svc.Create(context.Background(), "V1", day(t, "2024-06-01"), day(t, "2024-06-03"), ptr("family of 6"))
	require.NoError(t, err)
	require.Equal(t, "family of 6", *b.Notes)
}

func TestReschedule_SameDatesSucceeds(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newSvc(t)

	a, err := svc.Create(ctx, "V1", day(t, "2024-06-01"), day(t, "2024-06-05"), nil)
	require.NoError(t, err)

	got, err := svc.Reschedule(ctx, a.ID, ptr(a.StartDate), ptr(a.EndDate))
	require.NoError(t, err)
	require.Equal(t, a.Interval(), got.Interval())
	require.Equal(t, model.BookingBooked, got.Status)
}

func TestReschedule_PartialAndConflict(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newSvc(t)

	a, err := svc.Create(ctx, "V1", day(t, "2024-06-01"), day(t, "2024-06-05"), nil)
	require.NoError(t, err)
	b, err := svc.Create(ctx, "V1", day(t, "2024-06-10"), day(t, "2024-06-12"), nil)
	require.NoError(t, err)

	// only the end moves; start resolved from the record
	got, err := svc.Reschedule(ctx, a.ID, nil, ptr(day(t, "2024-06-08")))
	require.NoError(t, err)
	require.Equal(t, day(t, "2024-06-01"), got.StartDate)
	require.Equal(t, day(t, "2024-06-08"), got.EndDate)

	_, err = svc.Reschedule(ctx, a.ID, nil, ptr(day(t, "2024-06-10")))
	ce, ok := bookingsvc.AsConflict(err)
	require.True(t, ok)
	require.Equal(t, b.ID, ce.BookingID)

	unchanged, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, day(t, "2024-06-08"), unchanged.EndDate)

	// resolved range becomes inverted
	_, err = svc.Reschedule(ctx, a.ID, ptr(day(t, "2024-06-09")), nil)
	require.Equal(t, bookingsvc.ErrInvalidRange, bookingsvc.Code(err))

	_, err = svc.Reschedule(ctx, "missing", ptr(day(t, "2024-07-01")), nil)
	require.Equal(t, bookingsvc.ErrNotFound, bookingsvc.Code(err))
}

func TestReschedule_CancelledBookingSkipsValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newSvc(t)

	a, err := svc.Create(ctx, "V1", day(t, "2024-06-01"), day(t, "2024-06-05"), nil)
	require.NoError(t, err)
	b, err := svc.Create(ctx, "V1", day(t, "2024-06-10"), day(t, "2024-06-12"), nil)
	require.NoError(t, err)
	_, _, err = svc.ChangeStatus(ctx, b.ID, model.BookingCancelled)
	require.NoError(t, err)

	got, err := svc.Reschedule(ctx, b.ID, ptr(day(t, "2024-06-02")), ptr(day(t, "2024-06-04")))
	require.NoError(t, err)
	require.Equal(t, model.BookingCancelled, got.Status)

	// reviving it now collides with A
	_, _, err = svc.ChangeStatus(ctx, b.ID, model.BookingBooked)
	ce, ok := bookingsvc.AsConflict(err)
	require.True(t, ok)
	require.Equal(t, a.ID, ce.BookingID)
}

func TestChangeStatus_CancelIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, store, c := newSvc(t)

	a, err := svc.Create(ctx, "V1", day(t, "2024-06-01"), day(t, "2024-06-05"), nil)
	require.NoError(t, err)

	first, changed, err := svc.ChangeStatus(ctx, a.ID, model.BookingCancelled)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, model.BookingCancelled, first.Status)

	c.Advance(time.Hour)
	second, changed, err := svc.ChangeStatus(ctx, a.ID, model.BookingCancelled)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, first, second)

	stored, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, first.UpdatedAt, stored.UpdatedAt, "no write on repeated cancel")
}

func TestChangeStatus_ConcurrentCancelChangesOnce(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newSvc(t)

	a, err := svc.Create(ctx, "V1", day(t, "2024-06-01"), day(t, "2024-06-05"), nil)
	require.NoError(t, err)

	const n = 16
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		mu      sync.Mutex
		changes int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			b, changed, err := svc.ChangeStatus(ctx, a.ID, model.BookingCancelled)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				t.Errorf("cancel: %v", err)
				return
			}
			if b.Status != model.BookingCancelled {
				t.Errorf("status %s", b.Status)
			}
			if changed {
				changes++
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, 1, changes)
}

func TestChangeStatus_RebookRevalidates(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newSvc(t)

	a, err := svc.Create(ctx, "V1", day(t, "2024-06-01"), day(t, "2024-06-05"), nil)
	require.NoError(t, err)
	_, _, err = svc.ChangeStatus(ctx, a.ID, model.BookingCancelled)
	require.NoError(t, err)

	// free again: rebooking works
	got, _, err := svc.ChangeStatus(ctx, a.ID, model.BookingBooked)
	require.NoError(t, err)
	require.Equal(t, model.BookingBooked, got.Status)

	_, _, err = svc.ChangeStatus(ctx, a.ID, model.BookingCancelled)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "V1", day(t, "2024-06-05"), day(t, "2024-06-07"), nil)
	require.NoError(t, err)

	_, _, err = svc.ChangeStatus(ctx, a.ID, model.BookingBooked)
	require.Equal(t, bookingsvc.ErrConflict, bookingsvc.Code(err))
}

func TestChangeStatus_RejectsPendingAndUnknown(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newSvc(t)

	a, err := svc.Create(ctx, "V1", day(t, "2024-06-01"), day(t, "2024-06-05"), nil)
	require.NoError(t, err)

	_, _, err = svc.ChangeStatus(ctx, a.ID, model.BookingPending)
	require.Equal(t, bookingsvc.ErrInvalidStatus, bookingsvc.Code(err))
	_, _, err = svc.ChangeStatus(ctx, a.ID, model.BookingStatus("CHECKED_IN"))
	require.Equal(t, bookingsvc.ErrInvalidStatus, bookingsvc.Code(err))
	_, _, err = svc.ChangeStatus(ctx, "missing", model.BookingCancelled)
	require.Equal(t, bookingsvc.ErrNotFound, bookingsvc.Code(err))
}

func TestHold_BlocksUntilExpiry(t *testing.T) {
	ctx := context.Background()
	svc, _, c := newSvc(t)

	h, err := svc.Hold(ctx, "V1", day(t, "2024-06-01"), day(t, "2024-06-05"), nil)
	require.NoError(t, err)
	require.Equal(t, model.BookingPending, h.Status)
	require.NotNil(t, h.HeldUntil)
	require.Equal(t, t0.Add(15*time.Minute), *h.HeldUntil)

	_, err = svc.Create(ctx, "V1", day(t, "2024-06-03"), day(t, "2024-06-04"), nil)
	require.Equal(t, bookingsvc.ErrConflict, bookingsvc.Code(err))

	c.Advance(15 * time.Minute)
	_, err = svc.Create(ctx, "V1", day(t, "2024-06-03"), day(t, "2024-06-04"), nil)
	require.NoError(t, err)

	// the lapsed hold cannot be confirmed over the new booking
	_, _, err = svc.ChangeStatus(ctx, h.ID, model.BookingBooked)
	require.Equal(t, bookingsvc.ErrConflict, bookingsvc.Code(err))
}

func TestHold_ConfirmLiveHold(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newSvc(t)

	h, err := svc.Hold(ctx, "V1", day(t, "2024-06-01"), day(t, "2024-06-05"), nil)
	require.NoError(t, err)

	got, _, err := svc.ChangeStatus(ctx, h.ID, model.BookingBooked)
	require.NoError(t, err)
	require.Equal(t, model.BookingBooked, got.Status)
	require.Nil(t, got.HeldUntil)
}

func TestEditNotesAndRemove(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newSvc(t)

	a, err := svc.Create(ctx, "V1", day(t, "2024-06-01"), day(t, "2024-06-05"), nil)
	require.NoError(t, err)

	got, err := svc.EditNotes(ctx, a.ID, ptr("airport pickup"))
	require.NoError(t, err)
	require.Equal(t, "airport pickup", *got.Notes)

	got, err = svc.EditNotes(ctx, a.ID, nil)
	require.NoError(t, err)
	require.Nil(t, got.Notes)

	require.NoError(t, svc.Remove(ctx, a.ID))
	require.Equal(t, bookingsvc.ErrNotFound, bookingsvc.Code(svc.Remove(ctx, a.ID)))

	_, err = svc.Get(ctx, a.ID)
	require.Equal(t, bookingsvc.ErrNotFound, bookingsvc.Code(err))

	// the range is free again after a hard delete
	_, err = svc.Create(ctx, "V1", day(t, "2024-06-01"), day(t, "2024-06-05"), nil)
	require.NoError(t, err)
}

func TestCreate_ConcurrentOverlapOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newSvc(t)

	const n = 24
	base := day(t, "2024-06-01")
	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			s := base.AddDate(0, 0, i%3)
			_, err := svc.Create(ctx, "V1", s, s.AddDate(0, 0, 4), nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case bookingsvc.Code(err) == bookingsvc.ErrConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	require.Equal(t, 1, ok)
	require.Equal(t, n-1, conflicts)

	active, err := store.FindActiveByResource(ctx, "V1", t0)
	require.NoError(t, err)
	require.Len(t, active, 1)
}

func TestInvariant_RandomOperations(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newSvc(t)
	rnd := rand.New(rand.NewSource(42))
	base := day(t, "2024-06-01")
	villas := []string{"V1", "V2"}

	var ids []string
	for i := 0; i < 400; i++ {
		villa := villas[rnd.Intn(len(villas))]
		s := base.AddDate(0, 0, rnd.Intn(60))
		e := s.AddDate(0, 0, 1+rnd.Intn(6))

		switch op := rnd.Intn(5); {
		case op <= 1 || len(ids) == 0:
			if b, err := svc.Create(ctx, villa, s, e, nil); err == nil {
				ids = append(ids, b.ID)
			}
		case op == 2:
			_, _ = svc.Reschedule(ctx, ids[rnd.Intn(len(ids))], &s, &e)
		case op == 3:
			st := model.BookingCancelled
			if rnd.Intn(2) == 0 {
				st = model.BookingBooked
			}
			_, _, _ = svc.ChangeStatus(ctx, ids[rnd.Intn(len(ids))], st)
		default:
			_ = svc.Remove(ctx, ids[rnd.Intn(len(ids))])
		}

		for _, v := range villas {
			all, err := store.ListByResource(ctx, v)
			require.NoError(t, err)
			for x := 0; x < len(all); x++ {
				for y := x + 1; y < len(all); y++ {
					if all[x].Status != model.BookingBooked || all[y].Status != model.BookingBooked {
						continue
					}
					require.False(t, model.Overlaps(all[x].Interval(), all[y].Interval()),
						fmt.Sprintf("step %d: %s %s overlaps %s %s", i, all[x].ID, all[x].Interval(), all[y].ID, all[y].Interval()))
				}
			}
		}
	}
}

// --- error mapping with a failing store ---

type storeMock struct {
	bookingrepo.Store
	getFn    func(ctx context.Context, id string) (*model.Booking, error)
	lockFn   func(ctx context.Context, resourceID string, fn func(ctx context.Context, r bookingrepo.Repo) error) error
	deleteFn func(ctx context.Context, id string) error
}

func (m *storeMock) Get(ctx context.Context, id string) (*model.Booking, error) {
	return m.getFn(ctx, id)
}

func (m *storeMock) WithResourceLock(ctx context.Context, resourceID string, fn func(ctx context.Context, r bookingrepo.Repo) error) error {
	return m.lockFn(ctx, resourceID, fn)
}

func (m *storeMock) Delete(ctx context.Context, id string) error { return m.deleteFn(ctx, id) }

func TestErrors_StorageFailure(t *testing.T) {
	dbErr := errors.New("connection reset")
	m := &storeMock{
		lockFn: func(ctx context.Context, resourceID string, fn func(ctx context.Context, r bookingrepo.Repo) error) error {
			return dbErr
		},
		deleteFn: func(ctx context.Context, id string) error { return dbErr },
	}
	svc := bookingsvc.New(m, bookingsvc.Options{Clock: clock.NewFixed(t0)})

	_, err := svc.Create(context.Background(), "V1", day(t, "2024-06-01"), day(t, "2024-06-05"), nil)
	require.Equal(t, bookingsvc.ErrStorage, bookingsvc.Code(err))
	require.ErrorIs(t, err, dbErr)

	err = svc.Remove(context.Background(), "x")
	require.Equal(t, bookingsvc.ErrStorage, bookingsvc.Code(err))
}

func TestErrors_StorageOverlapIsConflict(t *testing.T) {
	m := &storeMock{
		lockFn: func(ctx context.Context, resourceID string, fn func(ctx context.Context, r bookingrepo.Repo) error) error {
			return fmt.Errorf("%w: bookings_no_overlap", bookingrepo.ErrOverlap)
		},
	}
	svc := bookingsvc.New(m, bookingsvc.Options{Clock: clock.NewFixed(t0)})

	_, err := svc.Create(context.Background(), "V1", day(t, "2024-06-01"), day(t, "2024-06-05"), nil)
	require.Equal(t, bookingsvc.ErrConflict, bookingsvc.Code(err))
}

func TestErrors_TimeoutLeavesNoWrite(t *testing.T) {
	c := clock.NewFixed(t0)
	store := bookingrepo.NewMemory(c)
	slow := &storeMock{
		Store: store,
		lockFn: func(ctx context.Context, resourceID string, fn func(ctx context.Context, r bookingrepo.Repo) error) error {
			return store.WithResourceLock(ctx, resourceID, func(ctx context.Context, r bookingrepo.Repo) error {
				if err := fn(ctx, r); err != nil {
					return err
				}
				<-ctx.Done()
				return nil
			})
		},
	}
	svc := bookingsvc.New(slow, bookingsvc.Options{Clock: c, OperationTimeout: 20 * time.Millisecond})

	_, err := svc.Create(context.Background(), "V1", day(t, "2024-06-01"), day(t, "2024-06-05"), nil)
	require.Equal(t, bookingsvc.ErrTimeout, bookingsvc.Code(err))

	all, err := store.ListByResource(context.Background(), "V1")
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestCleaner_ReleaseExpired(t *testing.T) {
	ctx := context.Background()
	svc, store, c := newSvc(t)

	h, err := svc.Hold(ctx, "V1", day(t, "2024-06-01"), day(t, "2024-06-05"), nil)
	require.NoError(t, err)

	cl := bookingsvc.NewCleaner(store, c, nil)
	n, err := cl.ReleaseExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	c.Advance(16 * time.Minute)
	n, err = cl.ReleaseExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	got, err := svc.Get(ctx, h.ID)
	require.NoError(t, err)
	require.Equal(t, model.BookingCancelled, got.Status)
}
