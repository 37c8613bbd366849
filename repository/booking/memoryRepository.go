package bookingrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/photsathonspd1-create/bann-mae-villa-sub000/model"
	"github.com/photsathonspd1-create/bann-mae-villa-sub000/util/clock"

	"github.com/google/uuid"
)

// Memory is a process-local Store. Each villa owns a one-slot semaphore so
// that waiting for the lock can be abandoned when the context ends.
type Memory struct {
	mu    sync.RWMutex
	byID  map[string]*model.Booking
	clock clock.Clock

	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

func NewMemory(c clock.Clock) *Memory {
	if c == nil {
		c = clock.Real{}
	}
	return &Memory{
		byID:  make(map[string]*model.Booking),
		clock: c,
		locks: make(map[string]chan struct{}),
	}
}

func clone(b *model.Booking) *model.Booking {
	out := *b
	if b.HeldUntil != nil {
		t := *b.HeldUntil
		out.HeldUntil = &t
	}
	if b.Notes != nil {
		n := *b.Notes
		out.Notes = &n
	}
	return &out
}

func sortBookings(out []model.Booking) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
}

func (m *Memory) resourceLock(resourceID string) chan struct{} {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[resourceID]
	if !ok {
		l = make(chan struct{}, 1)
		m.locks[resourceID] = l
	}
	return l
}

func (m *Memory) Create(ctx context.Context, b *model.Booking) error {
	return m.WithResourceLock(ctx, b.ResourceID, func(ctx context.Context, r Repo) error {
		return r.Create(ctx, b)
	})
}

func (m *Memory) Get(ctx context.Context, id string) (*model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(b), nil
}

func (m *Memory) FindActiveByResource(ctx context.Context, resourceID string, asOf time.Time) ([]model.Booking, error) {
	return m.list(ctx, resourceID, func(b *model.Booking) bool { return b.ActiveAt(asOf) })
}

func (m *Memory) ListByResource(ctx context.Context, resourceID string) ([]model.Booking, error) {
	return m.list(ctx, resourceID, func(*model.Booking) bool { return true })
}

func (m *Memory) list(ctx context.Context, resourceID string, keep func(*model.Booking) bool) ([]model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Booking
	for _, b := range m.byID {
		if b.ResourceID == resourceID && keep(b) {
			out = append(out, *clone(b))
		}
	}
	sortBookings(out)
	return out, nil
}

func (m *Memory) Update(ctx context.Context, id string, p model.BookingPatch) (*model.Booking, error) {
	cur, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var out *model.Booking
	err = m.WithResourceLock(ctx, cur.ResourceID, func(ctx context.Context, r Repo) error {
		b, err := r.Update(ctx, id, p)
		out = b
		return err
	})
	return out, err
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	cur, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	return m.WithResourceLock(ctx, cur.ResourceID, func(ctx context.Context, r Repo) error {
		return r.Delete(ctx, id)
	})
}

func (m *Memory) CancelExpiredHolds(ctx context.Context, asOf time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	var n int64
	for _, b := range m.byID {
		if b.Status != model.BookingPending || b.HeldUntil == nil || b.HeldUntil.After(asOf) {
			continue
		}
		b.Status = model.BookingCancelled
		b.HeldUntil = nil
		b.UpdatedAt = now
		n++
	}
	return n, nil
}

func (m *Memory) WithResourceLock(ctx context.Context, resourceID string, fn func(ctx context.Context, r Repo) error) error {
	l := m.resourceLock(resourceID)
	select {
	case l <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l }()

	tx := &memTx{m: m, staged: make(map[string]*model.Booking)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	// a deadline that fired inside fn discards every staged write
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, b := range tx.staged {
		if b == nil {
			delete(m.byID, id)
			continue
		}
		m.byID[id] = b
	}
	return nil
}

// memTx reads through to the store and buffers writes until commit.
// A nil entry in staged marks a delete.
type memTx struct {
	m      *Memory
	staged map[string]*model.Booking
}

func (t *memTx) lookup(id string) (*model.Booking, bool) {
	if b, ok := t.staged[id]; ok {
		return b, b != nil
	}
	t.m.mu.RLock()
	defer t.m.mu.RUnlock()
	b, ok := t.m.byID[id]
	return b, ok
}

func (t *memTx) Create(ctx context.Context, b *model.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := t.m.clock.Now()
	b.StartDate = model.Day(b.StartDate)
	b.EndDate = model.Day(b.EndDate)
	b.CreatedAt = now
	b.UpdatedAt = now
	t.staged[b.ID] = clone(b)
	return nil
}

func (t *memTx) Get(ctx context.Context, id string) (*model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, ok := t.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	return clone(b), nil
}

func (t *memTx) FindActiveByResource(ctx context.Context, resourceID string, asOf time.Time) ([]model.Booking, error) {
	return t.list(ctx, resourceID, func(b *model.Booking) bool { return b.ActiveAt(asOf) })
}

func (t *memTx) ListByResource(ctx context.Context, resourceID string) ([]model.Booking, error) {
	return t.list(ctx, resourceID, func(*model.Booking) bool { return true })
}

func (t *memTx) list(ctx context.Context, resourceID string, keep func(*model.Booking) bool) ([]model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(t.staged))
	var out []model.Booking
	for id, b := range t.staged {
		seen[id] = true
		if b != nil && b.ResourceID == resourceID && keep(b) {
			out = append(out, *clone(b))
		}
	}
	t.m.mu.RLock()
	for id, b := range t.m.byID {
		if seen[id] {
			continue
		}
		if b.ResourceID == resourceID && keep(b) {
			out = append(out, *clone(b))
		}
	}
	t.m.mu.RUnlock()
	sortBookings(out)
	return out, nil
}

func (t *memTx) Update(ctx context.Context, id string, p model.BookingPatch) (*model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cur, ok := t.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	b := clone(cur)
	p.Apply(b)
	b.UpdatedAt = t.m.clock.Now()
	t.staged[id] = b
	return clone(b), nil
}

func (t *memTx) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := t.lookup(id); !ok {
		return ErrNotFound
	}
	t.staged[id] = nil
	return nil
}
