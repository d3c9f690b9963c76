package ports

import "context"

// KeyValueStore is the host's shared durable state area. Get returns
// domain.ErrKeyNotFound for absent keys; Remove ignores absent keys.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Remove(ctx context.Context, keys ...string) error
	Keys(ctx context.Context) ([]string, error)
}
