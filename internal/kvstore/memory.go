package kvstore

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. It serves single-instance deployments
// without Redis and tests. Availability can be forced with SetAvailability to
// simulate an outage.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
	state   Availability
	closed  bool
	stop    chan struct{}
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e *memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemoryStore creates an in-memory store with periodic eviction. It starts
// Connected.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*memEntry),
		state:   Connected,
		stop:    make(chan struct{}),
	}
	go s.evictLoop(30 * time.Second)
	return s
}

// SetAvailability forces the reported availability. Anything other than
// Connected turns every operation into a no-op.
func (s *MemoryStore) SetAvailability(a Availability) {
	s.mu.Lock()
	s.state = a
	s.mu.Unlock()
}

func (s *MemoryStore) Connect(context.Context) error {
	return nil
}

func (s *MemoryStore) Availability() Availability {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// usable must be called with s.mu held.
func (s *MemoryStore) usable() bool {
	return !s.closed && s.state == Connected
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.usable() {
		return nil, false
	}
	entry, ok := s.entries[key]
	if !ok || entry.expired(time.Now()) {
		return nil, false
	}
	// Return a copy to prevent mutation
	cp := make([]byte, len(entry.value))
	copy(cp, entry.value)
	return cp, true
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.usable() {
		return false
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	s.entries[key] = &memEntry{value: cp, expiresAt: expiresAt}
	return true
}

func (s *MemoryStore) Delete(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.usable() {
		return false
	}
	delete(s.entries, key)
	return true
}

func (s *MemoryStore) DeletePattern(_ context.Context, pattern string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.usable() {
		return false
	}
	var matched []string
	for key := range s.entries {
		if MatchPattern(pattern, key) {
			matched = append(matched, key)
		}
	}
	for _, key := range matched {
		delete(s.entries, key)
	}
	return true
}

func (s *MemoryStore) Exists(_ context.Context, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.usable() {
		return false
	}
	entry, ok := s.entries[key]
	return ok && !entry.expired(time.Now())
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.usable() {
		return false
	}
	entry, ok := s.entries[key]
	if !ok || entry.expired(time.Now()) {
		return false
	}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	} else {
		delete(s.entries, key)
	}
	return true
}

func (s *MemoryStore) Increment(_ context.Context, key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.usable() {
		return 0
	}
	var n int64
	entry, ok := s.entries[key]
	if ok && !entry.expired(time.Now()) {
		v, err := strconv.ParseInt(string(entry.value), 10, 64)
		if err != nil {
			return 0
		}
		n = v
	} else {
		entry = &memEntry{}
		s.entries[key] = entry
	}
	n++
	entry.value = []byte(strconv.FormatInt(n, 10))
	return n
}

func (s *MemoryStore) Flush(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.usable() {
		return false
	}
	s.entries = make(map[string]*memEntry)
	return true
}

// TTL returns the remaining lifetime of key, or 0 when it has no expiry or is
// missing.
func (s *MemoryStore) TTL(_ context.Context, key string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	if !ok || entry.expiresAt.IsZero() {
		return 0
	}
	return time.Until(entry.expiresAt)
}

// Len returns the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	n := 0
	for _, e := range s.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.entries = nil
	close(s.stop)
	return nil
}

func (s *MemoryStore) evictLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
		s.mu.Lock()
		now := time.Now()
		for key, entry := range s.entries {
			if entry.expired(now) {
				delete(s.entries, key)
			}
		}
		s.mu.Unlock()
	}
}
