// Package cache implements the offline-tolerant local view of an
// owner's birthdays. All operations are best-effort: storage failures
// degrade to "no cache" and are logged, never surfaced to callers.
package cache

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/candleworks/candle/internal/medium"
	"github.com/candleworks/candle/internal/types"
)

// DefaultTTL is the cache freshness window when none is configured.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "cache/"

// Store is the local cache, one entry per owner, persisted through a
// key-value Medium. Reads always go to the medium so a failed write
// simply leaves the previous view in place.
type Store struct {
	medium medium.Medium
	ttl    time.Duration
	now    func() time.Time
}

// New creates a cache store over the given medium.
func New(m medium.Medium, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{medium: m, ttl: ttl, now: time.Now}
}

// TTL returns the configured freshness window.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

func ownerKey(ownerID string) string {
	return keyPrefix + ownerID
}

// Get returns the cached entry for ownerID. A missing or corrupt blob
// yields an empty entry, which reports stale. Get never fails.
func (s *Store) Get(ownerID string) types.CacheEntry {
	raw, ok := s.medium.ReadKey(ownerKey(ownerID))
	if !ok {
		return types.CacheEntry{}
	}

	var entry types.CacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		// Corrupt blob is treated as absent.
		slog.Warn("discarding corrupt cache entry", "owner_id", ownerID, "error", err)
		return types.CacheEntry{}
	}

	return entry
}

// IsStale reports whether the owner's entry is older than the TTL.
func (s *Store) IsStale(ownerID string) bool {
	return s.Get(ownerID).StaleAfter(s.now(), s.ttl)
}

// Put replaces the cached records for ownerID and resets the freshness
// timestamp. On a full medium it evicts entries older than twice the
// TTL for any owner and retries once; if the retry also fails the write
// is dropped and the previous view survives.
func (s *Store) Put(ownerID string, records []types.BirthdayRecord) {
	entry := types.CacheEntry{Records: records, CachedAt: s.now()}

	data, err := json.Marshal(entry)
	if err != nil {
		slog.Warn("cache entry not serializable", "owner_id", ownerID, "error", err)
		return
	}

	if s.medium.WriteKey(ownerKey(ownerID), string(data)) {
		return
	}

	evicted := s.evictExpired()
	slog.Warn("cache write failed, evicted expired entries and retrying",
		"owner_id", ownerID, "evicted", evicted)

	if !s.medium.WriteKey(ownerKey(ownerID), string(data)) {
		slog.Warn("cache write failed after eviction, dropping", "owner_id", ownerID)
	}
}

// evictExpired removes cache entries older than 2×TTL across all
// owners, returning the number of evicted entries.
func (s *Store) evictExpired() int {
	cutoff := s.now().Add(-2 * s.ttl)
	evicted := 0

	for _, key := range s.medium.Keys(keyPrefix) {
		raw, ok := s.medium.ReadKey(key)
		if !ok {
			continue
		}

		var entry types.CacheEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			// Corrupt entries are reclaimable too.
			if s.medium.DeleteKey(key) {
				evicted++
			}
			continue
		}

		if entry.CachedAt.Before(cutoff) {
			if s.medium.DeleteKey(key) {
				evicted++
			}
		}
	}

	return evicted
}

// ApplyOptimistic inserts or replaces a record, matched by id, at the
// front of the owner's list and persists immediately. New records are
// flagged optimistic until the remote store confirms them.
func (s *Store) ApplyOptimistic(ownerID string, record types.BirthdayRecord) {
	entry := s.Get(ownerID)

	replaced := false
	for i, existing := range entry.Records {
		if existing.ID == record.ID {
			entry.Records[i] = record
			replaced = true
			break
		}
	}

	if !replaced {
		record.Optimistic = true
		entry.Records = append([]types.BirthdayRecord{record}, entry.Records...)
	} else {
		// Move the updated record to the front: insertion order is
		// most-recent-mutation-first.
		for i, existing := range entry.Records {
			if existing.ID == record.ID && i > 0 {
				entry.Records = append(entry.Records[:i], entry.Records[i+1:]...)
				entry.Records = append([]types.BirthdayRecord{record}, entry.Records...)
				break
			}
		}
	}

	s.persist(ownerID, entry)
}

// RemoveOptimistic removes a record immediately and returns it so a
// caller can roll back if the remote delete later fails. Returns nil
// when the record is not cached.
func (s *Store) RemoveOptimistic(ownerID, id string) *types.BirthdayRecord {
	entry := s.Get(ownerID)

	for i, existing := range entry.Records {
		if existing.ID == id {
			removed := existing
			entry.Records = append(entry.Records[:i], entry.Records[i+1:]...)
			s.persist(ownerID, entry)
			return &removed
		}
	}

	return nil
}

// Reconcile replaces a temporary id with the server-assigned one in
// place, clearing the optimistic flag. Calling it again with the same
// arguments is a no-op.
func (s *Store) Reconcile(ownerID, temporaryID, realID string) {
	entry := s.Get(ownerID)

	changed := false
	for i, existing := range entry.Records {
		if existing.ID == temporaryID {
			entry.Records[i].ID = realID
			entry.Records[i].Optimistic = false
			changed = true
		}
	}

	if changed {
		s.persist(ownerID, entry)
	}
}

// Clear drops the owner's cache entry. Administrative action only.
func (s *Store) Clear(ownerID string) {
	s.medium.DeleteKey(ownerKey(ownerID))
}

// persist writes an entry back, refreshing CachedAt: optimistic
// mutations are authoritative local writes.
func (s *Store) persist(ownerID string, entry types.CacheEntry) {
	entry.CachedAt = s.now()

	data, err := json.Marshal(entry)
	if err != nil {
		slog.Warn("cache entry not serializable", "owner_id", ownerID, "error", err)
		return
	}

	if !s.medium.WriteKey(ownerKey(ownerID), string(data)) {
		slog.Warn("cache persist failed", "owner_id", ownerID)
	}
}
