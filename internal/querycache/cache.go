// Package querycache implements the process-wide keyed cache between the
// view layer and the remote gateway. Each slot is identified by a resource
// kind plus a normalized filter set and holds the last fetched payload,
// subscriber callbacks and in-flight request state.
package querycache

import (
	"context"
	"sync"
	"time"

	"propdesk/internal/config"
	"propdesk/internal/model"
	"propdesk/internal/obs"
)

// Status of a cache entry.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Snapshot is the externally visible state of one cache entry.
type Snapshot struct {
	Status    Status
	Data      any
	Err       error
	FetchedAt time.Time
}

// Callback receives a snapshot whenever the subscribed entry changes.
type Callback func(Snapshot)

// FetchFunc loads a collection payload for a kind and filter set.
type FetchFunc func(ctx context.Context, kind model.Kind, filters map[string]string) (any, error)

// FetchRecordFunc loads a single entity by id.
type FetchRecordFunc func(ctx context.Context, kind model.Kind, id string) (any, error)

type entry struct {
	key     string
	kind    model.Kind
	filters map[string]string

	status    Status
	data      any
	err       error
	fetchedAt time.Time

	// appliedSeq is the sequence of the newest completion applied to this
	// entry. Completions carrying an older sequence are discarded, so a
	// slow early request can never overwrite a newer payload.
	appliedSeq uint64
	inflight   int

	subs    map[int]Callback
	nextSub int
	evict   *time.Timer
}

// Cache is the shared query cache. It is created once at process start
// and injected into every binding; all methods are safe for concurrent use.
type Cache struct {
	cfg         config.Config
	fetch       FetchFunc
	fetchRecord FetchRecordFunc

	mu      sync.Mutex
	entries map[string]*entry
	gen     map[model.Kind]uint64
	seq     Sequencer
	cancel  context.CancelFunc
	closed  bool

	records *recordCache
}

// New constructs a Cache over the given fetch functions.
func New(cfg config.Config, fetch FetchFunc, fetchRecord FetchRecordFunc) *Cache {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Second
	}
	if cfg.EvictAfter <= 0 {
		cfg.EvictAfter = 5 * time.Minute
	}
	return &Cache{
		cfg:         cfg,
		fetch:       fetch,
		fetchRecord: fetchRecord,
		entries:     make(map[string]*entry),
		gen:         make(map[model.Kind]uint64),
		records:     newRecordCache(cfg.StaleAfter),
	}
}

// Start launches the per-kind background refreshers.
func (c *Cache) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	for kind, policy := range c.cfg.Views {
		if policy.RefreshEvery <= 0 {
			continue
		}
		go c.refresher(ctx, kind, policy.RefreshEvery)
	}
}

// Close stops background refreshers and pending eviction timers.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	for _, e := range c.entries {
		if e.evict != nil {
			e.evict.Stop()
		}
	}
}

// refresher force-refreshes every subscribed entry of one kind on a fixed
// interval, the background half of stale-while-revalidate.
func (c *Cache) refresher(ctx context.Context, kind model.Kind, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.mu.Lock()
			for _, e := range c.entries {
				if e.kind == kind && len(e.subs) > 0 {
					c.startFetch(e, true)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Subscribe attaches a callback to the entry for (kind, filters) and
// returns the unsubscribe function. The current snapshot, if any, is
// delivered synchronously before Subscribe returns; a fetch is issued only
// when the entry is missing or stale, and concurrent subscriptions to the
// same key share a single in-flight request.
func (c *Cache) Subscribe(kind model.Kind, filters map[string]string, cb Callback) func() {
	nf := Normalize(filters)
	key := KeyFor(kind, nf)

	c.mu.Lock()
	e := c.entries[key]
	if e == nil {
		e = &entry{key: key, kind: kind, filters: nf, status: StatusPending, subs: make(map[int]Callback)}
		c.entries[key] = e
	}
	if e.evict != nil {
		e.evict.Stop()
		e.evict = nil
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = cb

	if e.data == nil && e.err == nil {
		c.startFetch(e, false)
	} else if time.Since(e.fetchedAt) > c.cfg.StaleAfter {
		c.startFetch(e, false)
	}
	snap, deliver := e.snapshotLocked()
	c.mu.Unlock()

	if deliver {
		cb(snap)
	}
	return func() { c.unsubscribe(key, id) }
}

func (e *entry) snapshotLocked() (Snapshot, bool) {
	if e.data == nil && e.err == nil {
		return Snapshot{}, false
	}
	return Snapshot{Status: e.status, Data: e.data, Err: e.err, FetchedAt: e.fetchedAt}, true
}

func (c *Cache) unsubscribe(key string, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key]
	if e == nil {
		return
	}
	delete(e.subs, id)
	if len(e.subs) == 0 {
		c.scheduleEvict(e)
	}
}

// scheduleEvict arms the grace-period timer. A resubscription before it
// fires cancels the eviction. Requires c.mu held.
func (c *Cache) scheduleEvict(e *entry) {
	if c.closed || e.evict != nil {
		return
	}
	key := e.key
	e.evict = time.AfterFunc(c.cfg.EvictAfter, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		cur := c.entries[key]
		if cur == nil || len(cur.subs) > 0 || cur.inflight > 0 {
			return
		}
		delete(c.entries, key)
		obs.Logger.Info("cache_evict", "key", key)
	})
}

// Snapshot returns the current state of the entry for (kind, filters).
func (c *Cache) Snapshot(kind model.Kind, filters map[string]string) (Snapshot, bool) {
	key := KeyFor(kind, Normalize(filters))
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key]
	if e == nil {
		return Snapshot{}, false
	}
	return Snapshot{Status: e.status, Data: e.data, Err: e.err, FetchedAt: e.fetchedAt}, true
}

// Invalidate marks every entry of the kind obsolete after a mutation.
// Subscribed entries refetch immediately; idle ones refetch on their next
// subscription. The record cache generation is bumped so stale single
// entities stop being served.
func (c *Cache) Invalidate(kind model.Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen[kind]++
	n := 0
	for _, e := range c.entries {
		if e.kind != kind {
			continue
		}
		if len(e.subs) > 0 {
			c.startFetch(e, true)
		} else {
			e.fetchedAt = time.Time{}
		}
		n++
	}
	obs.Logger.Info("cache_invalidate", "kind", string(kind), "entries", n)
}

// Refetch forces a refresh of one existing entry regardless of staleness.
func (c *Cache) Refetch(kind model.Kind, filters map[string]string) {
	key := KeyFor(kind, Normalize(filters))
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.entries[key]; e != nil {
		c.startFetch(e, true)
	}
}

// NotifyFocus refreshes stale subscribed entries of every kind whose view
// policy enables refetch-on-focus.
func (c *Cache) NotifyFocus() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		policy, ok := c.cfg.Views[e.kind]
		if !ok || !policy.RefetchOnFocus {
			continue
		}
		if len(e.subs) > 0 && time.Since(e.fetchedAt) > c.cfg.StaleAfter {
			c.startFetch(e, false)
		}
	}
}

// startFetch issues a fetch for the entry unless one is already in flight
// and force is false. Requires c.mu held.
func (c *Cache) startFetch(e *entry, force bool) {
	if c.closed {
		return
	}
	if e.inflight > 0 && !force {
		return
	}
	e.inflight++
	seq := c.seq.Next()
	filters := make(map[string]string, len(e.filters))
	for k, v := range e.filters {
		filters[k] = v
	}
	go c.runFetch(e.key, e.kind, filters, seq)
}

func (c *Cache) runFetch(key string, kind model.Kind, filters map[string]string, seq uint64) {
	data, err := c.fetch(context.Background(), kind, filters)

	c.mu.Lock()
	e := c.entries[key]
	if e == nil {
		c.mu.Unlock()
		return
	}
	e.inflight--
	if seq <= e.appliedSeq {
		// A newer completion already landed; this one is obsolete.
		obs.Logger.Info("cache_fetch_discarded", "key", key, "seq", seq, "applied_seq", e.appliedSeq)
		c.mu.Unlock()
		return
	}
	e.appliedSeq = seq
	if err != nil {
		e.err = err
		if e.data == nil {
			e.status = StatusError
		}
		obs.Logger.Warn("cache_fetch_failed", "key", key, "error", err, "has_payload", e.data != nil)
	} else {
		e.data = data
		e.err = nil
		e.status = StatusSuccess
		e.fetchedAt = time.Now()
	}
	snap := Snapshot{Status: e.status, Data: e.data, Err: e.err, FetchedAt: e.fetchedAt}
	cbs := make([]Callback, 0, len(e.subs))
	for _, cb := range e.subs {
		cbs = append(cbs, cb)
	}
	if len(e.subs) == 0 && e.evict == nil {
		// All subscribers left while the fetch was in flight: keep the
		// result but restart the grace clock.
		c.scheduleEvict(e)
	}
	c.mu.Unlock()

	for _, cb := range cbs {
		cb(snap)
	}
}
