// Package syncq implements the durable per-owner mutation queue and
// its replay algorithm. Queue operations never return errors to
// callers; storage failures are logged and reported through
// best-effort results, because losing a birthday mutation is worse
// than retrying one.
package syncq

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/candleworks/candle/internal/medium"
	"github.com/candleworks/candle/internal/types"
)

const keyPrefix = "queue/"

// Queue is the durable FIFO of pending mutations, partitioned by
// owner. Each owner's queue is stored as one JSON blob on the medium.
type Queue struct {
	medium medium.Medium
	now    func() time.Time
}

// New creates a queue over the given medium.
func New(m medium.Medium) *Queue {
	return &Queue{medium: m, now: time.Now}
}

func ownerKey(ownerID string) string {
	return keyPrefix + ownerID
}

// load reads an owner's queue. A missing or corrupt blob yields an
// empty queue.
func (q *Queue) load(ownerID string) []types.SyncQueueItem {
	raw, ok := q.medium.ReadKey(ownerKey(ownerID))
	if !ok {
		return nil
	}

	var items []types.SyncQueueItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		slog.Warn("discarding corrupt sync queue", "owner_id", ownerID, "error", err)
		return nil
	}

	return items
}

// store persists an owner's queue. An empty queue deletes the key.
func (q *Queue) store(ownerID string, items []types.SyncQueueItem) {
	if len(items) == 0 {
		q.medium.DeleteKey(ownerKey(ownerID))
		return
	}

	data, err := json.Marshal(items)
	if err != nil {
		slog.Warn("sync queue not serializable", "owner_id", ownerID, "error", err)
		return
	}

	if !q.medium.WriteKey(ownerKey(ownerID), string(data)) {
		slog.Warn("sync queue persist failed", "owner_id", ownerID)
	}
}

// Enqueue appends an operation to the tail of the owner's queue,
// persists immediately, and returns the generated queue item id.
func (q *Queue) Enqueue(ownerID string, op types.Operation) string {
	item := types.SyncQueueItem{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		Op:         op,
		EnqueuedAt: q.now(),
	}

	items := append(q.load(ownerID), item)
	q.store(ownerID, items)

	return item.ID
}

// List returns a read-only snapshot of the owner's queue in FIFO order.
func (q *Queue) List(ownerID string) []types.SyncQueueItem {
	items := q.load(ownerID)
	out := make([]types.SyncQueueItem, len(items))
	copy(out, items)
	return out
}

// Remove deletes a single queue item, typically after successful
// replay.
func (q *Queue) Remove(ownerID, itemID string) {
	items := q.load(ownerID)
	for i, item := range items {
		if item.ID == itemID {
			q.store(ownerID, append(items[:i], items[i+1:]...))
			return
		}
	}
}

// Owners returns the ids of all owners with a non-empty queue.
func (q *Queue) Owners() []string {
	keys := q.medium.Keys(keyPrefix)
	owners := make([]string, 0, len(keys))
	for _, key := range keys {
		owners = append(owners, strings.TrimPrefix(key, keyPrefix))
	}
	return owners
}
