// repository/booking/bookingRepository.go
package bookingrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/photsathonspd1-create/bann-mae-villa-sub000/model"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("booking not found")
	// ErrOverlap is raised by the storage engine itself (exclusion constraint).
	ErrOverlap = errors.New("booking range overlapped")
)

type Repo interface {
	Create(ctx context.Context, b *model.Booking) error
	Get(ctx context.Context, id string) (*model.Booking, error)
	// FindActiveByResource returns BOOKED bookings and holds still live at asOf.
	FindActiveByResource(ctx context.Context, resourceID string, asOf time.Time) ([]model.Booking, error)
	ListByResource(ctx context.Context, resourceID string) ([]model.Booking, error)
	Update(ctx context.Context, id string, p model.BookingPatch) (*model.Booking, error)
	Delete(ctx context.Context, id string) error
}

type Store interface {
	Repo

	// WithResourceLock gives fn exclusive ownership of the resource's booking
	// set. Writes made through the Repo passed to fn commit together when fn
	// returns nil and are discarded otherwise.
	WithResourceLock(ctx context.Context, resourceID string, fn func(ctx context.Context, r Repo) error) error

	CancelExpiredHolds(ctx context.Context, asOf time.Time) (int64, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repo struct {
	pool *pgxpool.Pool
	q    querier
}

func New(pool *pgxpool.Pool) Store { return &repo{pool: pool, q: pool} }

const cols = `id, resource_id, start_date, end_date, status, held_until, notes, created_at, updated_at`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var (
		b      model.Booking
		id     uuid.UUID
		status string
	)
	if err := row.Scan(&id, &b.ResourceID, &b.StartDate, &b.EndDate, &status,
		&b.HeldUntil, &b.Notes, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.ID = id.String()
	b.Status = model.BookingStatus(status)
	b.StartDate = model.Day(b.StartDate)
	b.EndDate = model.Day(b.EndDate)
	return &b, nil
}

func collect(rows pgx.Rows) ([]model.Booking, error) {
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.ExclusionViolation:
			return fmt.Errorf("%w: %s", ErrOverlap, pgErr.ConstraintName)
		}
	}
	return err
}

// parseID rejects ids that can never match a row before they reach the driver.
func parseID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, ErrNotFound
	}
	return u, nil
}

func (r *repo) Create(ctx context.Context, b *model.Booking) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	id, err := uuid.Parse(b.ID)
	if err != nil {
		return fmt.Errorf("booking id: %w", err)
	}
	const q = `
		INSERT INTO bookings (id, resource_id, start_date, end_date, status, held_until, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`
	err = r.q.QueryRow(ctx, q,
		id, b.ResourceID, model.Day(b.StartDate), model.Day(b.EndDate), string(b.Status), b.HeldUntil, b.Notes,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	return mapErr(err)
}

func (r *repo) Get(ctx context.Context, id string) (*model.Booking, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + cols + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(r.q.QueryRow(ctx, q, uid))
	if err != nil {
		return nil, mapErr(err)
	}
	return b, nil
}

func (r *repo) FindActiveByResource(ctx context.Context, resourceID string, asOf time.Time) ([]model.Booking, error) {
	q := `
		SELECT ` + cols + `
		FROM bookings
		WHERE resource_id = $1
		AND (status = 'BOOKED' OR (status = 'PENDING' AND held_until > $2))
		ORDER BY start_date, id`
	rows, err := r.q.Query(ctx, q, resourceID, asOf)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repo) ListByResource(ctx context.Context, resourceID string) ([]model.Booking, error) {
	q := `
		SELECT ` + cols + `
		FROM bookings
		WHERE resource_id = $1
		ORDER BY start_date, id`
	rows, err := r.q.Query(ctx, q, resourceID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repo) Update(ctx context.Context, id string, p model.BookingPatch) (*model.Booking, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	var status *string
	if p.Status != nil {
		s := string(*p.Status)
		status = &s
	}
	var start, end *time.Time
	if p.StartDate != nil {
		v := model.Day(*p.StartDate)
		start = &v
	}
	if p.EndDate != nil {
		v := model.Day(*p.EndDate)
		end = &v
	}
	var heldUntil *time.Time
	if p.HeldUntil != nil {
		heldUntil = *p.HeldUntil
	}
	var notes *string
	if p.Notes != nil {
		notes = *p.Notes
	}

	q := `
		UPDATE bookings
		SET start_date = COALESCE($2, start_date),
			end_date   = COALESCE($3, end_date),
			status     = COALESCE($4, status),
			held_until = CASE WHEN $5 THEN $6 ELSE held_until END,
			notes      = CASE WHEN $7 THEN $8 ELSE notes END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + cols
	b, err := scanBooking(r.q.QueryRow(ctx, q, uid, start, end, status,
		p.HeldUntil != nil, heldUntil, p.Notes != nil, notes))
	if err != nil {
		return nil, mapErr(err)
	}
	return b, nil
}

func (r *repo) Delete(ctx context.Context, id string) error {
	uid, err := parseID(id)
	if err != nil {
		return err
	}
	const q = `DELETE FROM bookings WHERE id = $1`
	tag, err := r.q.Exec(ctx, q, uid)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) CancelExpiredHolds(ctx context.Context, asOf time.Time) (int64, error) {
	const q = `
		UPDATE bookings
		SET status = 'CANCELLED',
			held_until = NULL,
			updated_at = NOW()
		WHERE status = 'PENDING'
		AND held_until <= $1`
	tag, err := r.q.Exec(ctx, q, asOf)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// WithResourceLock serialises writers of one villa with a transaction-scoped
// advisory lock; the lock is released on commit or rollback.
func (r *repo) WithResourceLock(ctx context.Context, resourceID string, fn func(ctx context.Context, r Repo) error) (err error) {
	if r.pool == nil {
		return errors.New("nested resource lock")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	const lock = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`
	if _, err = tx.Exec(ctx, lock, resourceID); err != nil {
		return err
	}
	if err = fn(ctx, &repo{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
