package medium

import (
	"sort"
	"sync"
)

// MemoryMedium is an in-process Medium used in tests and as the
// degraded fallback when no bolt file can be opened. An optional quota
// simulates a full storage medium: writes that would push the total
// stored bytes past the quota fail, mirroring browser local-storage
// behavior.
type MemoryMedium struct {
	mu    sync.RWMutex
	data  map[string]string
	quota int // max total value bytes; 0 means unlimited
}

// NewMemory returns an unbounded in-memory medium.
func NewMemory() *MemoryMedium {
	return &MemoryMedium{data: make(map[string]string)}
}

// NewMemoryWithQuota returns a medium that rejects writes once total
// stored value bytes would exceed quota.
func NewMemoryWithQuota(quota int) *MemoryMedium {
	return &MemoryMedium{data: make(map[string]string), quota: quota}
}

// ReadKey returns the stored value for key.
func (m *MemoryMedium) ReadKey(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

// WriteKey stores value under key, honoring the quota if set.
func (m *MemoryMedium) WriteKey(key, value string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.quota > 0 {
		total := len(value)
		for k, v := range m.data {
			if k == key {
				continue
			}
			total += len(v)
		}
		if total > m.quota {
			return false
		}
	}

	m.data[key] = value
	return true
}

// DeleteKey removes key.
func (m *MemoryMedium) DeleteKey(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return true
}

// Keys returns all keys with the given prefix in lexicographic order.
func (m *MemoryMedium) Keys(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored keys.
func (m *MemoryMedium) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
