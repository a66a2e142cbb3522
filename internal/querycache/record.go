package querycache

import (
	"context"
	"fmt"
	"time"

	"github.com/karlseguin/ccache/v3"

	"propdesk/internal/model"
)

// recordCache memoizes single-entity lookups. Keys embed the per-kind
// invalidation generation, so bumping the generation orphans every cached
// record of that kind without walking the cache.
type recordCache struct {
	lru *ccache.Cache[any]
	ttl time.Duration
}

func newRecordCache(ttl time.Duration) *recordCache {
	return &recordCache{
		lru: ccache.New(ccache.Configure[any]().MaxSize(512)),
		ttl: ttl,
	}
}

func recordKey(kind model.Kind, gen uint64, id string) string {
	return fmt.Sprintf("%s:%d:%s", kind, gen, id)
}

// GetRecord returns the entity with the given id, serving it from the
// record cache when a fresh copy exists. Errors are never cached.
func (c *Cache) GetRecord(ctx context.Context, kind model.Kind, id string) (any, error) {
	c.mu.Lock()
	gen := c.gen[kind]
	c.mu.Unlock()

	key := recordKey(kind, gen, id)
	if item := c.records.lru.Get(key); item != nil && !item.Expired() {
		return item.Value(), nil
	}
	v, err := c.fetchRecord(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	c.records.lru.Set(key, v, c.records.ttl)
	return v, nil
}

// DropRecord removes one entity from the record cache, used after a
// delete so the vanished id cannot be served from memory.
func (c *Cache) DropRecord(kind model.Kind, id string) {
	c.mu.Lock()
	gen := c.gen[kind]
	c.mu.Unlock()
	c.records.lru.Delete(recordKey(kind, gen, id))
}
