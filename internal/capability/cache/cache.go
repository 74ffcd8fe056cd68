// Package cache is the Cache capability: short-lived, tenant-scoped
// key/value storage used to memoize materialization reads and session
// lookups without round-tripping to the row store.
package cache

import (
	"context"
	"time"

	"github.com/cityos/runtime/internal/runtimeerr"
)

// Cache is the capability surface every cache backend implements.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

func wrap(op string, err error) error {
	return runtimeerr.NewCapabilityError("cache", op, err)
}
