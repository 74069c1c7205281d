// Package cache provides the Redis-backed plans cache.
package cache

import (
	"context"
	"log/slog"
	"time"

	"meter/config"
	"meter/internal/domain/lifecycle"
	"meter/internal/domain/service"
	"meter/internal/errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

const plansKey = "meter:billing:plans:v1"

// Params defines the dependencies of the plans cache.
type Params struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

// NewPlanCache returns a Redis cache, or a no-op cache when redis.url is empty.
func NewPlanCache(params Params) (service.PlanCache, error) {
	if params.Config.Redis.URL == "" {
		params.Logger.Info("Redis URL not set, plans cache disabled")

		return noopPlanCache{}, nil
	}

	opt, err := redis.ParseURL(params.Config.Redis.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)
	cache := newRedisPlanCache(client, params.Config.Billing.PlansCacheTTL)

	params.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			ctx, cancel := context.WithTimeout(startCtx, lifecycle.DefaultTimeout)
			defer cancel()

			// The cache is optional; an unreachable Redis only degrades reads.
			if err := client.Ping(ctx).Err(); err != nil {
				params.Logger.Warn("Redis ping failed, plans will be read from Postgres",
					slog.String("error", err.Error()),
				)
			}

			return nil
		},
		OnStop: func(_ context.Context) error {
			return client.Close()
		},
	})

	return cache, nil
}

type redisPlanCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func newRedisPlanCache(client redis.UniversalClient, ttl time.Duration) *redisPlanCache {
	return &redisPlanCache{client: client, ttl: ttl}
}

func (c *redisPlanCache) Get(ctx context.Context) ([]byte, error) {
	payload, err := c.client.Get(ctx, plansKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, service.ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get plans")
	}

	return payload, nil
}

func (c *redisPlanCache) Set(ctx context.Context, payload []byte) error {
	if err := c.client.Set(ctx, plansKey, payload, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set plans")
	}

	return nil
}

func (c *redisPlanCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, plansKey).Err(); err != nil {
		return errors.Wrap(err, "redis delete plans")
	}

	return nil
}

type noopPlanCache struct{}

func (noopPlanCache) Get(context.Context) ([]byte, error) { return nil, service.ErrCacheMiss }

func (noopPlanCache) Set(context.Context, []byte) error { return nil }

func (noopPlanCache) Invalidate(context.Context) error { return nil }
