package bookingsvc

import (
	"context"
	"log/slog"
	"time"

	bookingrepo "github.com/photsathonspd1-create/bann-mae-villa-sub000/repository/booking"
	"github.com/photsathonspd1-create/bann-mae-villa-sub000/util/clock"
	"github.com/photsathonspd1-create/bann-mae-villa-sub000/util/metrics"
)

type Cleaner interface {
	// ReleaseExpired cancels holds whose deadline has passed.
	ReleaseExpired(ctx context.Context) (int64, error)
	// Run sweeps every interval until ctx is cancelled.
	Run(ctx context.Context, interval time.Duration)
}

type cleaner struct {
	r     bookingrepo.Store
	clock clock.Clock
	log   *slog.Logger
}

func NewCleaner(r bookingrepo.Store, c clock.Clock, log *slog.Logger) Cleaner {
	if c == nil {
		c = clock.Real{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &cleaner{r: r, clock: c, log: log}
}

func (c *cleaner) ReleaseExpired(ctx context.Context) (int64, error) {
	n, err := c.r.CancelExpiredHolds(ctx, c.clock.Now())
	if err != nil {
		return 0, fail(ctx, err)
	}
	metrics.AddHoldsReleased(n)
	return n, nil
}

func (c *cleaner) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.ReleaseExpired(ctx)
			if err != nil {
				c.log.Error("release expired holds", "err", err)
				continue
			}
			if n > 0 {
				c.log.Info("released expired holds", "count", n)
			}
		}
	}
}
