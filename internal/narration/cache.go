package narration

import (
	"context"
	"crypto/md5"
	"fmt"
	"strconv"
	"strings"

	"koescroll/internal/storage"

	"github.com/sirupsen/logrus"
)

const cachePrefix = "narration:"

// CacheStats summarizes what the narration cache holds.
type CacheStats struct {
	Entries int
	Bytes   int64
}

// Cache keeps synthesized clips keyed by what was said, by whom and how.
// Only primary provider audio is stored here.
type Cache struct {
	store storage.Store
}

// NewCache returns a cache persisted in store.
func NewCache(store storage.Store) *Cache {
	return &Cache{store: store}
}

// CacheKey derives the key for a line. Whitespace differences in text do
// not produce different keys.
func CacheKey(text, voiceID string, stability, style float64) string {
	normalized := strings.Join(strings.Fields(text), " ")
	raw := strings.Join([]string{
		normalized,
		voiceID,
		strconv.FormatFloat(stability, 'g', -1, 64),
		strconv.FormatFloat(style, 'g', -1, 64),
	}, "|")
	return fmt.Sprintf("%s%x", cachePrefix, md5.Sum([]byte(raw)))
}

func (c *Cache) Key(text, voiceID string, stability, style float64) string {
	return CacheKey(text, voiceID, stability, style)
}

// Get returns the clip for key. Storage failures are logged and reported as
// a miss so narration can carry on by synthesizing.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Narration cache read failed")
		return nil, false
	}
	return data, ok
}

func (c *Cache) Put(ctx context.Context, key string, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := c.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("failed to cache narration: %w", err)
	}
	return nil
}

// Remove drops a single clip, typically one that failed to decode.
func (c *Cache) Remove(ctx context.Context, key string) error {
	return c.store.Remove(ctx, key)
}

// Clear removes every cached clip and leaves other data in the store alone.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	keys, err := c.store.Keys(ctx, cachePrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list narration cache: %w", err)
	}
	removed := 0
	for _, k := range keys {
		if err := c.store.Remove(ctx, k); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", k, err)
		}
		removed++
	}
	return removed, nil
}

func (c *Cache) Stats(ctx context.Context) (CacheStats, error) {
	keys, err := c.store.Keys(ctx, cachePrefix)
	if err != nil {
		return CacheStats{}, fmt.Errorf("failed to list narration cache: %w", err)
	}
	var stats CacheStats
	for _, k := range keys {
		data, ok, err := c.store.Get(ctx, k)
		if err != nil {
			return stats, err
		}
		if ok {
			stats.Entries++
			stats.Bytes += int64(len(data))
		}
	}
	return stats, nil
}
