package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const snapshotKeyPrefix = "catalog:snapshot"

// Cache wraps Redis based snapshot caching. Concurrent cold loads collapse
// into a single repository query through the singleflight group.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Fetch returns the cached snapshot for the given revision, loading and
// storing it when absent.
func (c *Cache) Fetch(ctx context.Context, revision int64, loader func(context.Context) (Snapshot, error)) (Snapshot, error) {
	if loader == nil {
		return Snapshot{}, errors.New("catalog: cache loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}

	key := fmt.Sprintf("%s:%d", snapshotKeyPrefix, revision)
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var snap Snapshot
		if err := json.Unmarshal(raw, &snap); err == nil {
			return snap, nil
		}
		// Corrupt entry: fall through and rebuild.
	} else if !errors.Is(err, redis.Nil) {
		return Snapshot{}, fmt.Errorf("catalog: cache get: %w", err)
	}

	result := c.group.DoChan(key, func() (interface{}, error) {
		snap, err := loader(ctx)
		if err != nil {
			return Snapshot{}, err
		}
		encoded, err := json.Marshal(snap)
		if err != nil {
			return Snapshot{}, err
		}
		if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			return Snapshot{}, fmt.Errorf("catalog: cache set: %w", err)
		}
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-result:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot), nil
	}
}
