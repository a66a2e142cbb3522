package querycache

import (
	"context"
	"sync"
	"testing"
	"time"

	"propdesk/internal/config"
	"propdesk/internal/model"
	"propdesk/internal/obs"
)

type fetchResult struct {
	data any
	err  error
}

// blockingFetcher records every fetch call and holds it until released,
// so tests control completion order precisely.
type blockingFetcher struct {
	mu    sync.Mutex
	calls []chan fetchResult
}

func (f *blockingFetcher) fetch(ctx context.Context, kind model.Kind, filters map[string]string) (any, error) {
	ch := make(chan fetchResult)
	f.mu.Lock()
	f.calls = append(f.calls, ch)
	f.mu.Unlock()
	r := <-ch
	return r.data, r.err
}

func (f *blockingFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *blockingFetcher) release(t *testing.T, i int, data any, err error) {
	t.Helper()
	waitFor(t, func() bool { return f.count() > i })
	f.mu.Lock()
	ch := f.calls[i]
	f.mu.Unlock()
	ch <- fetchResult{data: data, err: err}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within 2s")
}

func newTestCache(t *testing.T, f *blockingFetcher, stale, evict time.Duration) *Cache {
	t.Helper()
	obs.InitLogger()
	cfg := config.Config{
		StaleAfter: stale,
		EvictAfter: evict,
		Views:      map[model.Kind]config.ViewPolicy{},
	}
	c := New(cfg, f.fetch, func(ctx context.Context, kind model.Kind, id string) (any, error) {
		return nil, nil
	})
	t.Cleanup(c.Close)
	return c
}

// collector gathers delivered snapshots.
type collector struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (c *collector) cb(s Snapshot) {
	c.mu.Lock()
	c.snaps = append(c.snaps, s)
	c.mu.Unlock()
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snaps)
}

func (c *collector) last() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.snaps) == 0 {
		return Snapshot{}, false
	}
	return c.snaps[len(c.snaps)-1], true
}

func TestConcurrentSubscriptionsShareOneFetch(t *testing.T) {
	f := &blockingFetcher{}
	c := newTestCache(t, f, time.Minute, time.Minute)

	var a, b collector
	cancelA := c.Subscribe(model.KindProperties, map[string]string{"bhk": "2", "minPrice": ""}, a.cb)
	defer cancelA()
	cancelB := c.Subscribe(model.KindProperties, map[string]string{"bhk": "2"}, b.cb)
	defer cancelB()

	f.release(t, 0, []model.Property{{ID: "p1"}}, nil)

	waitFor(t, func() bool {
		sa, okA := a.last()
		sb, okB := b.last()
		return okA && okB && sa.Status == StatusSuccess && sb.Status == StatusSuccess
	})
	if got := f.count(); got != 1 {
		t.Fatalf("expected a single network call, got %d", got)
	}
}

func TestStaleCompletionDiscarded(t *testing.T) {
	f := &blockingFetcher{}
	c := newTestCache(t, f, time.Minute, time.Minute)

	var col collector
	cancel := c.Subscribe(model.KindProperties, nil, col.cb)
	defer cancel()

	// Request A is in flight; a mutation forces request B for the same key.
	waitFor(t, func() bool { return f.count() == 1 })
	c.Invalidate(model.KindProperties)

	// B (newer) completes first, then A (older) limps in.
	f.release(t, 1, []model.Property{{ID: "new"}}, nil)
	waitFor(t, func() bool {
		s, ok := col.last()
		if !ok || s.Status != StatusSuccess {
			return false
		}
		props := s.Data.([]model.Property)
		return len(props) == 1 && props[0].ID == "new"
	})
	f.release(t, 0, []model.Property{{ID: "old"}}, nil)

	time.Sleep(20 * time.Millisecond)
	snap, ok := c.Snapshot(model.KindProperties, nil)
	if !ok {
		t.Fatalf("entry missing")
	}
	props := snap.Data.([]model.Property)
	if len(props) != 1 || props[0].ID != "new" {
		t.Fatalf("stale completion overwrote newer payload: %+v", props)
	}
}

func TestInvalidateRefetchesSubscribedEntries(t *testing.T) {
	f := &blockingFetcher{}
	c := newTestCache(t, f, time.Minute, time.Minute)

	var col collector
	cancel := c.Subscribe(model.KindProperties, nil, col.cb)
	defer cancel()
	f.release(t, 0, []model.Property{{ID: "p1"}, {ID: "p2"}}, nil)
	waitFor(t, func() bool { s, ok := col.last(); return ok && s.Status == StatusSuccess })

	c.Invalidate(model.KindProperties)
	f.release(t, 1, []model.Property{{ID: "p2"}}, nil)

	waitFor(t, func() bool {
		s, ok := col.last()
		if !ok {
			return false
		}
		props, _ := s.Data.([]model.Property)
		return len(props) == 1 && props[0].ID == "p2"
	})
}

func TestFailedRefreshKeepsLastGoodPayload(t *testing.T) {
	f := &blockingFetcher{}
	c := newTestCache(t, f, time.Minute, time.Minute)

	var col collector
	cancel := c.Subscribe(model.KindClients, map[string]string{"page": "1"}, col.cb)
	defer cancel()
	f.release(t, 0, model.ClientPage{Clients: []model.Client{{ID: "c1"}}}, nil)
	waitFor(t, func() bool { s, ok := col.last(); return ok && s.Status == StatusSuccess })

	c.Refetch(model.KindClients, map[string]string{"page": "1"})
	f.release(t, 1, nil, context.DeadlineExceeded)

	waitFor(t, func() bool {
		s, ok := col.last()
		return ok && s.Err != nil
	})
	s, _ := col.last()
	if s.Status != StatusSuccess {
		t.Fatalf("status degraded to %s despite cached payload", s.Status)
	}
	page := s.Data.(model.ClientPage)
	if len(page.Clients) != 1 || page.Clients[0].ID != "c1" {
		t.Fatalf("last good payload lost: %+v", page)
	}
}

func TestFirstFetchFailureYieldsErrorState(t *testing.T) {
	f := &blockingFetcher{}
	c := newTestCache(t, f, time.Minute, time.Minute)

	var col collector
	cancel := c.Subscribe(model.KindProperties, nil, col.cb)
	defer cancel()
	f.release(t, 0, nil, context.DeadlineExceeded)

	waitFor(t, func() bool {
		s, ok := col.last()
		return ok && s.Status == StatusError && s.Err != nil
	})
}

func TestEvictionAfterGracePeriod(t *testing.T) {
	f := &blockingFetcher{}
	c := newTestCache(t, f, time.Minute, 30*time.Millisecond)

	var col collector
	cancel := c.Subscribe(model.KindProperties, nil, col.cb)
	f.release(t, 0, []model.Property{{ID: "p1"}}, nil)
	waitFor(t, func() bool { s, ok := col.last(); return ok && s.Status == StatusSuccess })
	cancel()

	waitFor(t, func() bool {
		_, ok := c.Snapshot(model.KindProperties, nil)
		return !ok
	})
}

func TestResubscribeWithinGraceCancelsEviction(t *testing.T) {
	f := &blockingFetcher{}
	c := newTestCache(t, f, time.Minute, 50*time.Millisecond)

	var col collector
	cancel := c.Subscribe(model.KindProperties, nil, col.cb)
	f.release(t, 0, []model.Property{{ID: "p1"}}, nil)
	waitFor(t, func() bool { s, ok := col.last(); return ok && s.Status == StatusSuccess })
	cancel()

	var col2 collector
	cancel2 := c.Subscribe(model.KindProperties, nil, col2.cb)
	defer cancel2()

	time.Sleep(120 * time.Millisecond)
	if _, ok := c.Snapshot(model.KindProperties, nil); !ok {
		t.Fatalf("entry evicted despite active subscriber")
	}
	if got := f.count(); got != 1 {
		t.Fatalf("fresh entry must be served from cache, got %d fetches", got)
	}
}

func TestStaleEntryServedThenRevalidated(t *testing.T) {
	f := &blockingFetcher{}
	c := newTestCache(t, f, time.Millisecond, time.Minute)

	var col collector
	cancel := c.Subscribe(model.KindProperties, nil, col.cb)
	defer cancel()
	f.release(t, 0, []model.Property{{ID: "v1"}}, nil)
	waitFor(t, func() bool { s, ok := col.last(); return ok && s.Status == StatusSuccess })

	time.Sleep(5 * time.Millisecond)

	// A late subscriber gets the stale payload immediately while a
	// background refresh is issued.
	var late collector
	cancelLate := c.Subscribe(model.KindProperties, nil, late.cb)
	defer cancelLate()

	s, ok := late.last()
	if !ok || s.Status != StatusSuccess {
		t.Fatalf("stale payload not served synchronously: %+v", s)
	}
	if props := s.Data.([]model.Property); props[0].ID != "v1" {
		t.Fatalf("unexpected payload: %+v", props)
	}

	f.release(t, 1, []model.Property{{ID: "v2"}}, nil)
	waitFor(t, func() bool {
		s, ok := late.last()
		if !ok {
			return false
		}
		props, _ := s.Data.([]model.Property)
		return len(props) == 1 && props[0].ID == "v2"
	})
}

func TestUnsubscribedFetchStillCached(t *testing.T) {
	f := &blockingFetcher{}
	c := newTestCache(t, f, time.Minute, time.Minute)

	var col collector
	cancel := c.Subscribe(model.KindProperties, nil, col.cb)
	waitFor(t, func() bool { return f.count() == 1 })
	cancel()

	f.release(t, 0, []model.Property{{ID: "p1"}}, nil)
	waitFor(t, func() bool {
		s, ok := c.Snapshot(model.KindProperties, nil)
		return ok && s.Status == StatusSuccess
	})
	if n := col.count(); n != 0 {
		t.Fatalf("no callback may fire after unsubscribe, got %d", n)
	}
}

func TestRecordCacheMemoizesAndInvalidates(t *testing.T) {
	obs.InitLogger()
	var mu sync.Mutex
	calls := 0
	cfg := config.Config{StaleAfter: time.Minute, EvictAfter: time.Minute, Views: map[model.Kind]config.ViewPolicy{}}
	c := New(cfg,
		func(ctx context.Context, kind model.Kind, filters map[string]string) (any, error) { return nil, nil },
		func(ctx context.Context, kind model.Kind, id string) (any, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			return model.Property{ID: id}, nil
		})
	defer c.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := c.GetRecord(ctx, model.KindProperties, "p1"); err != nil {
			t.Fatalf("get record: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected memoized lookup, got %d calls", calls)
	}

	c.Invalidate(model.KindProperties)
	if _, err := c.GetRecord(ctx, model.KindProperties, "p1"); err != nil {
		t.Fatalf("get record: %v", err)
	}
	if calls != 2 {
		t.Fatalf("invalidate must bust record cache, got %d calls", calls)
	}

	c.DropRecord(model.KindProperties, "p1")
	if _, err := c.GetRecord(ctx, model.KindProperties, "p1"); err != nil {
		t.Fatalf("get record: %v", err)
	}
	if calls != 3 {
		t.Fatalf("drop must remove the record, got %d calls", calls)
	}
}

func TestBackgroundRefresherTicks(t *testing.T) {
	f := &blockingFetcher{}
	obs.InitLogger()
	cfg := config.Config{
		StaleAfter: time.Minute,
		EvictAfter: time.Minute,
		Views: map[model.Kind]config.ViewPolicy{
			model.KindProperties: {RefreshEvery: 20 * time.Millisecond},
		},
	}
	c := New(cfg, f.fetch, func(ctx context.Context, kind model.Kind, id string) (any, error) { return nil, nil })
	defer c.Close()
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()
	c.Start(ctx)

	var col collector
	cancel := c.Subscribe(model.KindProperties, nil, col.cb)
	defer cancel()
	f.release(t, 0, []model.Property{{ID: "p1"}}, nil)

	// The interval refresher must force another fetch on its own.
	waitFor(t, func() bool { return f.count() >= 2 })
	f.release(t, 1, []model.Property{{ID: "p1"}}, nil)
}

func TestNotifyFocusRespectsPolicy(t *testing.T) {
	f := &blockingFetcher{}
	obs.InitLogger()
	cfg := config.Config{
		StaleAfter: time.Millisecond,
		EvictAfter: time.Minute,
		Views: map[model.Kind]config.ViewPolicy{
			model.KindClients:    {RefetchOnFocus: true},
			model.KindProperties: {RefetchOnFocus: false},
		},
	}
	c := New(cfg, f.fetch, func(ctx context.Context, kind model.Kind, id string) (any, error) { return nil, nil })
	defer c.Close()

	// Sequential subscriptions keep the fetch call order deterministic.
	var props, clients collector
	cancelP := c.Subscribe(model.KindProperties, nil, props.cb)
	defer cancelP()
	f.release(t, 0, []model.Property{}, nil)
	waitFor(t, func() bool { s, ok := props.last(); return ok && s.Status == StatusSuccess })

	cancelC := c.Subscribe(model.KindClients, nil, clients.cb)
	defer cancelC()
	f.release(t, 1, model.ClientPage{}, nil)
	waitFor(t, func() bool { s, ok := clients.last(); return ok && s.Status == StatusSuccess })

	time.Sleep(5 * time.Millisecond)
	c.NotifyFocus()

	// Only the clients entry refetches.
	waitFor(t, func() bool { return f.count() == 3 })
	time.Sleep(20 * time.Millisecond)
	if got := f.count(); got != 3 {
		t.Fatalf("focus refetched a kind with focus disabled: %d calls", got)
	}
	f.release(t, 2, model.ClientPage{}, nil)
}
