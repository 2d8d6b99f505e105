package storage

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// Memory is a process-local store. It is used in tests and as the hot layer
// in front of a durable store.
type Memory struct {
	items *cache.Cache
}

// NewMemory returns a store whose entries expire after ttl; ttl <= 0 keeps
// entries until removed.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		return &Memory{items: cache.New(cache.NoExpiration, 0)}
	}
	return &Memory{items: cache.New(ttl, 2*ttl)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	v, ok := m.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	data := v.([]byte)
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data := make([]byte, len(value))
	copy(data, value)
	m.items.SetDefault(key, data)
	return nil
}

func (m *Memory) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.items.Delete(key)
	return nil
}

func (m *Memory) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	for k := range m.items.Items() {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
