package cacherepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/photsathonspd1-create/bann-mae-villa-sub000/config"
	"github.com/photsathonspd1-create/bann-mae-villa-sub000/model"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when no intervals are cached for a villa.
var ErrMiss = errors.New("cache miss")

func NewRedisClient(cfg config.Redis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// Intervals caches the active intervals of each villa.
type Intervals interface {
	Get(ctx context.Context, resourceID string) ([]model.Interval, error)
	Set(ctx context.Context, resourceID string, ivs []model.Interval) error
	Invalidate(ctx context.Context, resourceID string) error
}

type redisIntervals struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func New(rdb redis.Cmdable, ttl time.Duration) Intervals {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisIntervals{rdb: rdb, ttl: ttl}
}

func key(resourceID string) string { return "villa:active:" + resourceID }

type wireInterval struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (c *redisIntervals) Get(ctx context.Context, resourceID string) ([]model.Interval, error) {
	raw, err := c.rdb.Get(ctx, key(resourceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	var w []wireInterval
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode cached intervals: %w", err)
	}
	out := make([]model.Interval, 0, len(w))
	for _, x := range w {
		s, err := model.ParseDate(x.Start)
		if err != nil {
			return nil, err
		}
		e, err := model.ParseDate(x.End)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Interval{Start: s, End: e})
	}
	return out, nil
}

func (c *redisIntervals) Set(ctx context.Context, resourceID string, ivs []model.Interval) error {
	w := make([]wireInterval, 0, len(ivs))
	for _, iv := range ivs {
		w = append(w, wireInterval{Start: model.FormatDate(iv.Start), End: model.FormatDate(iv.End)})
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key(resourceID), raw, c.ttl).Err()
}

func (c *redisIntervals) Invalidate(ctx context.Context, resourceID string) error {
	return c.rdb.Del(ctx, key(resourceID)).Err()
}

// Nop never caches; used when REDIS_ADDR is empty.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]model.Interval, error) { return nil, ErrMiss }
func (Nop) Set(context.Context, string, []model.Interval) error   { return nil }
func (Nop) Invalidate(context.Context, string) error              { return nil }
