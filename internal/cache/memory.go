package cache

import (
	"context"
	"sync"
	"time"

	"github.com/trimclip/booking-service/internal/availability"
)

// MemoryCache mirrors RedisCache semantics in-process. Used when no Redis is
// configured (single-instance dev) and by tests.
type MemoryCache struct {
	ttl time.Duration

	mu       sync.Mutex
	entries  map[string]memoryEntry
	byBarber map[string]map[string]struct{} // barberID -> set members
}

type memoryEntry struct {
	days      []availability.Day
	expiresAt time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MemoryCache{
		ttl:      ttl,
		entries:  map[string]memoryEntry{},
		byBarber: map[string]map[string]struct{}{},
	}
}

func (c *MemoryCache) Get(_ context.Context, barberID string, start, end time.Time, duration time.Duration) ([]availability.Day, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := entryKey(barberID, start, end, duration)
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		delete(c.byBarber[barberID], member(start, end, duration))
		return nil, false, nil
	}
	return e.days, true, nil
}

func (c *MemoryCache) Set(_ context.Context, barberID string, start, end time.Time, duration time.Duration, days []availability.Day) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[entryKey(barberID, start, end, duration)] = memoryEntry{
		days:      days,
		expiresAt: time.Now().Add(c.ttl),
	}
	if c.byBarber[barberID] == nil {
		c.byBarber[barberID] = map[string]struct{}{}
	}
	c.byBarber[barberID][member(start, end, duration)] = struct{}{}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, barberID string, from, to time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for m := range c.byBarber[barberID] {
		if !memberOverlaps(m, from, to) {
			continue
		}
		delete(c.entries, "avail:"+barberID+":"+m)
		delete(c.byBarber[barberID], m)
	}
	return nil
}
