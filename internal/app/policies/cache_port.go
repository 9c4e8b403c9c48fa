package policies

import "context"

// Cache is the keyed store of fetched results that owns all rendered data.
// Invalidate marks every key under prefix stale so the next read refetches;
// it never overwrites values, which keeps a single write path even while
// concurrent updates arrive from other devices.
type Cache interface {
	Read(ctx context.Context, key string) (any, bool)
	Write(ctx context.Context, key string, value any)
	Invalidate(ctx context.Context, keyPrefix string)
}
