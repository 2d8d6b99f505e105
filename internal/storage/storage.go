// Package storage provides the durable key-value store shared by the voice
// memory and the narration cache.
package storage

import "context"

// Store is a durable key-value store. Writes to a single key are atomic;
// concurrent writers to the same key converge on the last write.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	// Keys lists stored keys that start with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
