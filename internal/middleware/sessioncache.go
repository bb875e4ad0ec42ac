package middleware

import (
	"sync"
	"time"
)

// SessionCache memoizes session probe results for a short TTL so repeated
// admin navigation does not re-verify the same token on every request.
// Entries are expired lazily when read; there is no background sweep. The
// cache is bounded: when full, the insert path first drops expired entries
// and then the oldest live one.
type SessionCache struct {
	ttl time.Duration
	max int
	now func() time.Time

	mu      sync.Mutex
	entries map[string]sessionEntry
}

type sessionEntry struct {
	userID  uint64
	valid   bool
	addedAt time.Time
}

func NewSessionCache(ttl time.Duration, max int) *SessionCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	if max < 1 {
		max = 1
	}
	return &SessionCache{ttl: ttl, max: max, now: time.Now, entries: make(map[string]sessionEntry)}
}

// Get returns the cached probe result for a key. An entry older than the
// TTL is evicted and reported as a miss.
func (sc *SessionCache) Get(key string) (userID uint64, valid bool, hit bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	e, ok := sc.entries[key]
	if !ok {
		return 0, false, false
	}
	if sc.now().Sub(e.addedAt) > sc.ttl {
		delete(sc.entries, key)
		return 0, false, false
	}
	return e.userID, e.valid, true
}

// Set stores a probe result, evicting as needed to stay within the bound.
func (sc *SessionCache) Set(key string, userID uint64, valid bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if _, ok := sc.entries[key]; !ok && len(sc.entries) >= sc.max {
		sc.evictLocked()
	}
	sc.entries[key] = sessionEntry{userID: userID, valid: valid, addedAt: sc.now()}
}

// evictLocked drops expired entries, then the oldest live entry if the
// cache is still full.
func (sc *SessionCache) evictLocked() {
	now := sc.now()
	for k, e := range sc.entries {
		if now.Sub(e.addedAt) > sc.ttl {
			delete(sc.entries, k)
		}
	}
	if len(sc.entries) < sc.max {
		return
	}
	var oldestKey string
	var oldest time.Time
	for k, e := range sc.entries {
		if oldestKey == "" || e.addedAt.Before(oldest) {
			oldestKey = k
			oldest = e.addedAt
		}
	}
	if oldestKey != "" {
		delete(sc.entries, oldestKey)
	}
}

// Len reports the current entry count.
func (sc *SessionCache) Len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.entries)
}
