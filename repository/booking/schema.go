package bookingrepo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The exclusion constraint backs up the advisory lock: even a writer that
// bypasses WithResourceLock cannot commit two overlapping BOOKED rows.
const schema = `
CREATE EXTENSION IF NOT EXISTS btree_gist;

CREATE TABLE IF NOT EXISTS bookings (
	id          UUID PRIMARY KEY,
	resource_id TEXT        NOT NULL,
	start_date  DATE        NOT NULL,
	end_date    DATE        NOT NULL,
	status      TEXT        NOT NULL DEFAULT 'BOOKED',
	held_until  TIMESTAMPTZ NULL,
	notes       TEXT        NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT bookings_range_chk CHECK (start_date < end_date),
	CONSTRAINT bookings_status_chk CHECK (status IN ('PENDING', 'BOOKED', 'CANCELLED'))
);

CREATE INDEX IF NOT EXISTS bookings_resource_dates_idx
	ON bookings (resource_id, start_date, end_date);

DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'bookings_no_overlap') THEN
		ALTER TABLE bookings
			ADD CONSTRAINT bookings_no_overlap
			EXCLUDE USING gist (
				resource_id WITH =,
				daterange(start_date, end_date, '[]') WITH &&
			) WHERE (status = 'BOOKED');
	END IF;
END$$;
`

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
