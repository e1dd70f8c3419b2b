package quota

import (
	"context"
	"sync"
)

type counterKey struct {
	owner string
	day   string
}

// MemoryStore keeps counters in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	counts map[counterKey]int
	day    string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: make(map[counterKey]int)}
}

// Increment implements Store. Counters from earlier days are dropped the
// first time a new day is seen.
func (m *MemoryStore) Increment(_ context.Context, owner, day string, limit int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if day > m.day {
		m.pruneLocked(day)
		m.day = day
	}

	key := counterKey{owner: owner, day: day}
	count := m.counts[key]
	if count >= limit {
		return count, false, nil
	}
	count++
	m.counts[key] = count
	return count, true, nil
}

// Prune implements Store.
func (m *MemoryStore) Prune(_ context.Context, before string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked(before)
	return nil
}

func (m *MemoryStore) pruneLocked(before string) {
	for k := range m.counts {
		if k.day < before {
			delete(m.counts, k)
		}
	}
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
