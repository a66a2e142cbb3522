// Package view binds presentation surfaces to the query cache and the
// filter pipeline. A binding re-renders whenever its cache entry changes
// or its filter state is edited; free-text search is debounced the way the
// original interface debounced keystrokes.
package view

import (
	"strconv"
	"sync"
	"time"

	"propdesk/internal/filter"
	"propdesk/internal/model"
	"propdesk/internal/querycache"
)

// PropertyUpdate is handed to the render callback of a property binding.
// Total counts the entries passing the view's structural gate before user
// filters are applied, for "showing X of Y" displays.
type PropertyUpdate struct {
	Visible []model.Property
	Total   int
	Status  querycache.Status
	Err     error
}

// RenderProperties receives each recomputed property view.
type RenderProperties func(PropertyUpdate)

// PropertyBinding ties one listing view to the shared cache. Property
// views fetch the full collection and filter purely in memory, so filter
// edits never cost a round trip.
type PropertyBinding struct {
	cache  *querycache.Cache
	view   filter.View
	render RenderProperties
	delay  time.Duration

	mu       sync.Mutex
	state    model.FilterState
	pending  string
	debounce *time.Timer
	snap     querycache.Snapshot
	cancel   func()
	closed   bool
}

// NewPropertyBinding subscribes a render callback to the given view.
func NewPropertyBinding(c *querycache.Cache, v filter.View, debounce time.Duration, render RenderProperties) *PropertyBinding {
	b := &PropertyBinding{cache: c, view: v, render: render, delay: debounce}
	b.cancel = c.Subscribe(model.KindProperties, nil, b.onSnapshot)
	return b
}

func (b *PropertyBinding) onSnapshot(snap querycache.Snapshot) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.snap = snap
	upd := b.computeLocked()
	b.mu.Unlock()
	b.render(upd)
}

func (b *PropertyBinding) computeLocked() PropertyUpdate {
	props, _ := b.snap.Data.([]model.Property)
	gated := filter.Gate(props, b.view)
	return PropertyUpdate{
		Visible: filter.Apply(gated, b.state),
		Total:   len(gated),
		Status:  b.snap.Status,
		Err:     b.snap.Err,
	}
}

// SetFilters replaces the whole filter state and re-renders immediately.
// Interactive keystrokes should go through SetSearch instead.
func (b *PropertyBinding) SetFilters(fs model.FilterState) {
	b.mu.Lock()
	b.state = fs
	b.pending = fs.SearchText
	upd := b.computeLocked()
	b.mu.Unlock()
	b.render(upd)
}

// SetSearch updates the free-text filter after the debounce window; rapid
// keystrokes collapse into one recomputation.
func (b *PropertyBinding) SetSearch(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = s
	if b.debounce != nil {
		b.debounce.Stop()
	}
	b.debounce = time.AfterFunc(b.delay, b.applySearch)
}

func (b *PropertyBinding) applySearch() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.state.SearchText = b.pending
	upd := b.computeLocked()
	b.mu.Unlock()
	b.render(upd)
}

// ClearFilters resets the filter state and re-renders.
func (b *PropertyBinding) ClearFilters() {
	b.mu.Lock()
	if b.debounce != nil {
		b.debounce.Stop()
	}
	b.state = model.FilterState{}
	b.pending = ""
	upd := b.computeLocked()
	b.mu.Unlock()
	b.render(upd)
}

// Refresh forces a refetch of the underlying collection.
func (b *PropertyBinding) Refresh() {
	b.cache.Refetch(model.KindProperties, nil)
}

// Close releases the cache subscription. No callbacks fire afterwards.
func (b *PropertyBinding) Close() {
	b.mu.Lock()
	b.closed = true
	if b.debounce != nil {
		b.debounce.Stop()
	}
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ClientUpdate is handed to the render callback of a roster binding.
type ClientUpdate struct {
	Visible    []model.Client
	Pagination *model.Pagination
	Status     querycache.Status
	Err        error
}

// RenderClients receives each recomputed roster view.
type RenderClients func(ClientUpdate)

// ClientBinding ties the roster view to the shared cache. Search and
// requirement are pushed to the server (they shrink the payload), while
// the live keystroke value is also applied in memory so feedback does not
// wait out the debounce window.
type ClientBinding struct {
	cache  *querycache.Cache
	render RenderClients
	delay  time.Duration

	mu          sync.Mutex
	page        int
	limit       int
	search      string
	liveSearch  string
	requirement string
	debounce    *time.Timer
	snap        querycache.Snapshot
	cancel      func()
	closed      bool
}

// NewClientBinding subscribes a render callback to the roster.
func NewClientBinding(c *querycache.Cache, pageSize int, debounce time.Duration, render RenderClients) *ClientBinding {
	if pageSize <= 0 {
		pageSize = 100
	}
	b := &ClientBinding{cache: c, render: render, delay: debounce, page: 1, limit: pageSize}
	b.resubscribe()
	return b
}

func (b *ClientBinding) filters() map[string]string {
	return map[string]string{
		"page":        strconv.Itoa(b.page),
		"limit":       strconv.Itoa(b.limit),
		"search":      b.search,
		"requirement": b.requirement,
	}
}

// resubscribe swaps the cache subscription for the current server params.
// Must not be called with b.mu held: Subscribe delivers the first snapshot
// synchronously through onSnapshot.
func (b *ClientBinding) resubscribe() {
	b.mu.Lock()
	old := b.cancel
	f := b.filters()
	b.mu.Unlock()
	if old != nil {
		old()
	}
	cancel := b.cache.Subscribe(model.KindClients, f, b.onSnapshot)
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
}

func (b *ClientBinding) onSnapshot(snap querycache.Snapshot) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.snap = snap
	upd := b.computeLocked()
	b.mu.Unlock()
	b.render(upd)
}

func (b *ClientBinding) computeLocked() ClientUpdate {
	page, _ := b.snap.Data.(model.ClientPage)
	return ClientUpdate{
		Visible:    filter.ApplyClients(page.Clients, b.requirement, b.liveSearch),
		Pagination: page.Pagination,
		Status:     b.snap.Status,
		Err:        b.snap.Err,
	}
}

// SetRequirement filters by requirement and resets to the first page.
func (b *ClientBinding) SetRequirement(r string) {
	b.mu.Lock()
	b.requirement = r
	b.page = 1
	b.mu.Unlock()
	b.resubscribe()
}

// SetPage moves to another roster page.
func (b *ClientBinding) SetPage(p int) {
	if p < 1 {
		p = 1
	}
	b.mu.Lock()
	b.page = p
	b.mu.Unlock()
	b.resubscribe()
}

// SetSearch applies the keystroke in memory immediately and commits it to
// the server query after the debounce window.
func (b *ClientBinding) SetSearch(s string) {
	b.mu.Lock()
	b.liveSearch = s
	if b.debounce != nil {
		b.debounce.Stop()
	}
	b.debounce = time.AfterFunc(b.delay, func() { b.commitSearch(s) })
	upd := b.computeLocked()
	b.mu.Unlock()
	b.render(upd)
}

func (b *ClientBinding) commitSearch(s string) {
	b.mu.Lock()
	if b.closed || b.search == s {
		b.mu.Unlock()
		return
	}
	b.search = s
	b.page = 1
	b.mu.Unlock()
	b.resubscribe()
}

// Refresh forces a refetch of the current roster page.
func (b *ClientBinding) Refresh() {
	b.mu.Lock()
	f := b.filters()
	b.mu.Unlock()
	b.cache.Refetch(model.KindClients, f)
}

// Close releases the cache subscription.
func (b *ClientBinding) Close() {
	b.mu.Lock()
	b.closed = true
	if b.debounce != nil {
		b.debounce.Stop()
	}
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
