package application

import (
	"sync"
	"time"
)

const (
	defaultAttemptWindow   = 24 * time.Hour
	defaultAttemptCapacity = 100_000
)

type attemptEntry struct {
	count     int
	expiresAt time.Time
}

// AttemptCache counts transfer submissions per key inside a time window.
// The window starts at the first attempt; once it expires the count resets.
// Size is bounded: expired entries are evicted first, then the entry that
// expires soonest.
type AttemptCache struct {
	mu       sync.Mutex
	entries  map[string]attemptEntry
	window   time.Duration
	capacity int
	clock    Clock
}

// NewAttemptCache constructs a cache. Non-positive values fall back to defaults.
func NewAttemptCache(window time.Duration, capacity int, clock Clock) *AttemptCache {
	if window <= 0 {
		window = defaultAttemptWindow
	}
	if capacity <= 0 {
		capacity = defaultAttemptCapacity
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &AttemptCache{
		entries:  make(map[string]attemptEntry),
		window:   window,
		capacity: capacity,
		clock:    clock,
	}
}

// Record registers one attempt for key and returns the count in the current window.
func (c *AttemptCache) Record(key string) int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || !now.Before(entry.expiresAt) {
		if !ok {
			c.makeRoom(now)
		}
		entry = attemptEntry{expiresAt: now.Add(c.window)}
	}
	entry.count++
	c.entries[key] = entry
	return entry.count
}

// Attempts returns the attempt count for key in the current window.
func (c *AttemptCache) Attempts(key string) int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return 0
	}
	if !now.Before(entry.expiresAt) {
		delete(c.entries, key)
		return 0
	}
	return entry.count
}

// Len returns the number of tracked keys, expired ones included.
func (c *AttemptCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *AttemptCache) makeRoom(now time.Time) {
	if len(c.entries) < c.capacity {
		return
	}
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	if len(c.entries) < c.capacity {
		return
	}
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey = key
			oldest = entry.expiresAt
		}
	}
	delete(c.entries, oldestKey)
}
