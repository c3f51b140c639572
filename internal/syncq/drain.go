package syncq

import (
	"context"
	"log/slog"

	"github.com/candleworks/candle/internal/types"
)

// ApplyFunc performs the actual remote write for one operation. For
// creates it returns the server-assigned id; for updates and deletes
// the returned id is empty.
type ApplyFunc func(ctx context.Context, op types.Operation) (realID string, err error)

// Reconciler patches the local cache once a create resolves to a real
// id. Satisfied by cache.Store.
type Reconciler interface {
	Reconcile(ownerID, temporaryID, realID string)
}

// OnlineChecker is the connectivity probe consulted before draining.
// Satisfied by connectivity probes.
type OnlineChecker interface {
	IsOnline() bool
}

// Drain replays the owner's queue in FIFO order through apply.
//
// When the device is offline the drain is skipped entirely; no partial
// draining. A per-item failure increments that item's retry count and
// replay continues with the next item, since operations target
// different records. When a create succeeds, the cache is reconciled
// and any later queued operations still referencing the temporary id
// are retargeted to the real id before they replay.
//
// Drain never returns an error; all remote failures are captured in
// the summary.
func (q *Queue) Drain(ctx context.Context, ownerID string, online OnlineChecker, rec Reconciler, apply ApplyFunc) types.DrainSummary {
	if online != nil && !online.IsOnline() {
		slog.Info("drain skipped, device offline", "owner_id", ownerID)
		return types.DrainSummary{Skipped: true, Remaining: len(q.load(ownerID))}
	}

	snapshot := q.load(ownerID)
	if len(snapshot) == 0 {
		return types.DrainSummary{}
	}

	slog.Info("draining sync queue", "owner_id", ownerID, "pending", len(snapshot))

	summary := types.DrainSummary{}
	// Temporary ids resolved during this drain, applied to later items.
	resolved := make(map[string]string)

	for _, item := range snapshot {
		op := item.Op
		if newID, ok := resolved[op.TargetID()]; ok {
			op = op.Retarget(newID)
		}

		realID, err := apply(ctx, op)
		if err != nil {
			slog.Warn("queue item replay failed",
				"owner_id", ownerID,
				"item_id", item.ID,
				"kind", op.Kind,
				"retry_count", item.RetryCount+1,
				"error", err)
			q.recordFailure(ownerID, item.ID, op)
			summary.Failed++
			continue
		}

		if op.Kind == types.OpCreate && realID != "" {
			tempID := op.Create.OptimisticID
			resolved[tempID] = realID
			if rec != nil {
				rec.Reconcile(ownerID, tempID, realID)
			}
			q.retargetPending(ownerID, tempID, realID)
		}

		q.Remove(ownerID, item.ID)
		summary.Synced++
	}

	summary.Remaining = len(q.load(ownerID))
	slog.Info("drain complete",
		"owner_id", ownerID,
		"synced", summary.Synced,
		"failed", summary.Failed,
		"remaining", summary.Remaining)

	return summary
}

// recordFailure bumps the retry counter on a failed item and persists
// the (possibly retargeted) operation. Retries are unbounded here:
// birthday data loss is unacceptable, so dead-lettering is left to the
// caller's discretion.
func (q *Queue) recordFailure(ownerID, itemID string, op types.Operation) {
	items := q.load(ownerID)
	for i := range items {
		if items[i].ID == itemID {
			items[i].RetryCount++
			items[i].Op = op
			q.store(ownerID, items)
			return
		}
	}
}

// retargetPending rewrites queued operations still pointing at a
// resolved temporary id. Keeps the Update-after-Create ordering
// invariant intact across drains.
func (q *Queue) retargetPending(ownerID, tempID, realID string) {
	items := q.load(ownerID)
	changed := false
	for i := range items {
		if items[i].Op.Kind != types.OpCreate && items[i].Op.TargetID() == tempID {
			items[i].Op = items[i].Op.Retarget(realID)
			changed = true
		}
	}
	if changed {
		q.store(ownerID, items)
	}
}
