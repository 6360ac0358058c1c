package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/emberalert/risk-service/internal/models"
	"github.com/emberalert/risk-service/internal/observability"
)

// MemoryStore implements Store with a map plus an LRU list. Entries expire
// by TTL and, when maxEntries is exceeded, the least-recently-used entry is
// evicted. A single mutex guards all map and list mutations; access
// promotes the entry to most-recently-used.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	lru        *list.List // front = most recently used
	maxEntries int        // 0 = unbounded
}

type memoryEntry struct {
	key       string
	value     models.RiskAssessment
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory store. maxEntries <= 0 disables the
// capacity bound.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: maxEntries,
	}
}

// Get returns the live entry for key, promoting it to most-recently-used.
// Expired entries are removed on access and reported as a miss. Never
// blocks on I/O.
func (s *MemoryStore) Get(ctx context.Context, key string) (models.RiskAssessment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return models.RiskAssessment{}, false, nil
	}
	entry := el.Value.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		s.removeLocked(el)
		observability.CacheEvictionsTotal.WithLabelValues("expired").Inc()
		return models.RiskAssessment{}, false, nil
	}
	s.lru.MoveToFront(el)
	return entry.value, true, nil
}

// Set stores value under key with the given TTL, replacing any existing
// entry. When the capacity bound is exceeded the least-recently-used entry
// is evicted.
func (s *MemoryStore) Set(ctx context.Context, key string, value models.RiskAssessment, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := time.Now().Add(ttl)
	if el, ok := s.entries[key]; ok {
		el.Value = &memoryEntry{key: key, value: value, expiresAt: expiresAt}
		s.lru.MoveToFront(el)
		return nil
	}
	el := s.lru.PushFront(&memoryEntry{key: key, value: value, expiresAt: expiresAt})
	s.entries[key] = el

	if s.maxEntries > 0 && s.lru.Len() > s.maxEntries {
		if oldest := s.lru.Back(); oldest != nil {
			s.removeLocked(oldest)
			observability.CacheEvictionsTotal.WithLabelValues("capacity").Inc()
		}
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.entries[key]; ok {
		s.removeLocked(el)
	}
	return nil
}

// Sweep removes all expired entries and returns how many were removed.
// Called periodically by the scheduler; Get also removes expired entries
// lazily, so sweeping is hygiene, not correctness.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for el := s.lru.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*memoryEntry).expiresAt) {
			s.removeLocked(el)
			observability.CacheEvictionsTotal.WithLabelValues("expired").Inc()
			removed++
		}
		el = prev
	}
	return removed
}

// Len returns the number of stored entries, including not-yet-swept expired ones.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// removeLocked unlinks el from the list and map. Caller holds s.mu.
func (s *MemoryStore) removeLocked(el *list.Element) {
	entry := el.Value.(*memoryEntry)
	s.lru.Remove(el)
	delete(s.entries, entry.key)
}
