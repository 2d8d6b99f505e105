package storage

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Layered reads through a fast in-memory layer to a durable backing store.
// The durable store is the source of truth; the hot layer is best effort.
type Layered struct {
	hot     *Memory
	backing Store
}

// NewLayered wraps backing with hot.
func NewLayered(hot *Memory, backing Store) *Layered {
	return &Layered{hot: hot, backing: backing}
}

func (l *Layered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, err := l.hot.Get(ctx, key); err == nil && ok {
		return v, true, nil
	}
	v, ok, err := l.backing.Get(ctx, key)
	if err != nil || !ok {
		return v, ok, err
	}
	if err := l.hot.Set(ctx, key, v); err != nil {
		logrus.WithError(err).WithField("key", key).Debug("Failed to warm hot layer")
	}
	return v, true, nil
}

func (l *Layered) Set(ctx context.Context, key string, value []byte) error {
	if err := l.backing.Set(ctx, key, value); err != nil {
		return err
	}
	return l.hot.Set(ctx, key, value)
}

func (l *Layered) Remove(ctx context.Context, key string) error {
	if err := l.backing.Remove(ctx, key); err != nil {
		return err
	}
	return l.hot.Remove(ctx, key)
}

func (l *Layered) Keys(ctx context.Context, prefix string) ([]string, error) {
	return l.backing.Keys(ctx, prefix)
}
