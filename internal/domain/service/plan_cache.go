package service

import (
	"context"

	"meter/internal/errors"
)

// ErrCacheMiss is returned by PlanCache.Get when nothing is cached.
var ErrCacheMiss = errors.New("cache miss")

// PlanCache caches the serialized plans listing.
type PlanCache interface {
	Get(ctx context.Context) ([]byte, error)
	Set(ctx context.Context, payload []byte) error
	Invalidate(ctx context.Context) error
}
