package contentcache

import "github.com/oriys/folio/internal/kvstore"

// Stats is a snapshot of the per-process counters.
type Stats struct {
	Hits         int64                `json:"hits"`
	Misses       int64                `json:"misses"`
	HitRate      float64              `json:"hitRate"`
	Availability kvstore.Availability `json:"backendAvailability"`
}

// Stats returns the current counters. HitRate is 0 before the first lookup.
func (c *Cache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{
		Hits:         hits,
		Misses:       misses,
		HitRate:      rate,
		Availability: c.store.Availability(),
	}
}

// ResetStats zeroes both counters.
func (c *Cache) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
}
