// Package viewcache tracks which client views may be served from cache.
// Entries expire a fixed time after their last access and the number of
// tracked entries is bounded; the least recently accessed entry is evicted
// first.
package viewcache

import (
	"container/list"
	"sync"
	"time"
)

// Defaults used when no option overrides them.
const (
	DefaultTTL        = 30 * time.Minute
	DefaultMaxEntries = 10
)

type entry struct {
	key          string
	lastAccessed time.Time
}

// Stats is a snapshot of the invalidator state.
type Stats struct {
	Entries         int                      `json:"entries"`
	MaxEntries      int                      `json:"maxEntries"`
	TTL             time.Duration            `json:"ttl"`
	ExpiredRemoved  int                      `json:"expiredRemoved"`
	PendingRemounts int                      `json:"pendingRemounts"`
	Expiries        map[string]time.Duration `json:"expiries"`
}

// Option customises an Invalidator.
type Option func(*Invalidator)

// WithTTL sets the idle lifetime of an entry.
func WithTTL(ttl time.Duration) Option {
	return func(i *Invalidator) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithMaxEntries sets the LRU bound.
func WithMaxEntries(n int) Option {
	return func(i *Invalidator) {
		if n > 0 {
			i.maxEntries = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(i *Invalidator) {
		if now != nil {
			i.now = now
		}
	}
}

// Invalidator is safe for concurrent use.
type Invalidator struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	order    *list.List
	entries  map[string]*list.Element
	remounts map[string]struct{}
}

// New constructs an Invalidator.
func New(opts ...Option) *Invalidator {
	i := &Invalidator{
		ttl:        DefaultTTL,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
		remounts:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Add starts tracking key, or refreshes it when already tracked. Expired
// entries are dropped first; if the cache is still full the least recently
// accessed entry makes room.
func (i *Invalidator) Add(key string) {
	if key == "" {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	i.cleanExpiredLocked(now)

	if el, ok := i.entries[key]; ok {
		el.Value.(*entry).lastAccessed = now
		i.order.MoveToFront(el)
		return
	}
	if i.order.Len() >= i.maxEntries {
		i.evictOldestLocked()
	}
	i.entries[key] = i.order.PushFront(&entry{key: key, lastAccessed: now})
}

// Touch records an access to key. Unknown keys are ignored.
func (i *Invalidator) Touch(key string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if el, ok := i.entries[key]; ok {
		el.Value.(*entry).lastAccessed = i.now()
		i.order.MoveToFront(el)
	}
}

// IsValid reports whether key is tracked and accessed within the TTL. An
// expired entry is removed.
func (i *Invalidator) IsValid(key string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	el, ok := i.entries[key]
	if !ok {
		return false
	}
	if i.now().Sub(el.Value.(*entry).lastAccessed) < i.ttl {
		return true
	}
	i.removeLocked(el)
	return false
}

// Remove stops tracking key.
func (i *Invalidator) Remove(key string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if el, ok := i.entries[key]; ok {
		i.removeLocked(el)
	}
}

// EvictOldest drops the least recently accessed entry and returns its key.
func (i *Invalidator) EvictOldest() (string, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.evictOldestLocked()
}

// ClearAll drops every entry and pending remount request.
func (i *Invalidator) ClearAll() {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.order.Init()
	i.entries = make(map[string]*list.Element)
	i.remounts = make(map[string]struct{})
}

// Len returns the number of tracked entries, expired ones included.
func (i *Invalidator) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.order.Len()
}

// RequestRemount flags key so its view is rebuilt on next display.
func (i *Invalidator) RequestRemount(key string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.remounts[key] = struct{}{}
}

// NeedsRemount reports whether key was flagged by RequestRemount.
func (i *Invalidator) NeedsRemount(key string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.remounts[key]
	return ok
}

// MarkRemounted clears the remount flag of key.
func (i *Invalidator) MarkRemounted(key string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.remounts, key)
}

// CleanExpired removes every expired entry and returns how many were dropped.
func (i *Invalidator) CleanExpired() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.cleanExpiredLocked(i.now())
}

// Stats cleans expired entries and reports the remaining state.
func (i *Invalidator) Stats() Stats {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	removed := i.cleanExpiredLocked(now)
	expiries := make(map[string]time.Duration, len(i.entries))
	for key, el := range i.entries {
		expiries[key] = i.ttl - now.Sub(el.Value.(*entry).lastAccessed)
	}
	return Stats{
		Entries:         i.order.Len(),
		MaxEntries:      i.maxEntries,
		TTL:             i.ttl,
		ExpiredRemoved:  removed,
		PendingRemounts: len(i.remounts),
		Expiries:        expiries,
	}
}

func (i *Invalidator) cleanExpiredLocked(now time.Time) int {
	removed := 0
	// the list is ordered by access time, so expired entries sit at the back
	for el := i.order.Back(); el != nil; {
		prev := el.Prev()
		if now.Sub(el.Value.(*entry).lastAccessed) < i.ttl {
			break
		}
		i.removeLocked(el)
		removed++
		el = prev
	}
	return removed
}

func (i *Invalidator) evictOldestLocked() (string, bool) {
	el := i.order.Back()
	if el == nil {
		return "", false
	}
	i.removeLocked(el)
	return el.Value.(*entry).key, true
}

func (i *Invalidator) removeLocked(el *list.Element) {
	delete(i.entries, el.Value.(*entry).key)
	i.order.Remove(el)
}
