package syncq

import (
	"context"
	"errors"
	"testing"

	"github.com/candleworks/candle/internal/cache"
	"github.com/candleworks/candle/internal/medium"
	"github.com/candleworks/candle/internal/types"
)

type stubProbe struct {
	online bool
}

func (p stubProbe) IsOnline() bool { return p.online }

// scriptedApply replays operations against an in-memory "server",
// failing on demand per target id.
type scriptedApply struct {
	applied []types.Operation
	failIDs map[string]bool
	nextID  int
	records map[string]types.RecordPayload
}

func newScriptedApply() *scriptedApply {
	return &scriptedApply{
		failIDs: make(map[string]bool),
		records: make(map[string]types.RecordPayload),
	}
}

func (a *scriptedApply) apply(_ context.Context, op types.Operation) (string, error) {
	if a.failIDs[op.TargetID()] {
		return "", errors.New("remote unavailable")
	}
	a.applied = append(a.applied, op)

	switch op.Kind {
	case types.OpCreate:
		a.nextID++
		id := "srv_" + string(rune('0'+a.nextID))
		a.records[id] = op.Create.Payload
		return id, nil
	case types.OpUpdate:
		a.records[op.Update.TargetID] = op.Update.Payload
	case types.OpDelete:
		delete(a.records, op.Delete.TargetID)
	}
	return "", nil
}

func TestEnqueueListFIFO(t *testing.T) {
	q := New(medium.NewMemory())

	id1 := q.Enqueue("alice", types.NewCreate("tmp_1", types.RecordPayload{Name: "Sam"}))
	id2 := q.Enqueue("alice", types.NewDelete("srv_9"))

	if id1 == "" || id2 == "" || id1 == id2 {
		t.Fatalf("queue item ids must be unique and non-empty: %q %q", id1, id2)
	}

	items := q.List("alice")
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != id1 || items[1].ID != id2 {
		t.Error("list order must match enqueue order")
	}
	if items[0].Op.Kind != types.OpCreate || items[1].Op.Kind != types.OpDelete {
		t.Error("operations out of order")
	}
}

func TestRemove(t *testing.T) {
	q := New(medium.NewMemory())
	id1 := q.Enqueue("alice", types.NewDelete("a"))
	id2 := q.Enqueue("alice", types.NewDelete("b"))

	q.Remove("alice", id1)

	items := q.List("alice")
	if len(items) != 1 || items[0].ID != id2 {
		t.Errorf("expected only second item to remain, got %+v", items)
	}
}

func TestOwners(t *testing.T) {
	q := New(medium.NewMemory())
	q.Enqueue("alice", types.NewDelete("a"))
	q.Enqueue("bob", types.NewDelete("b"))

	owners := q.Owners()
	if len(owners) != 2 || owners[0] != "alice" || owners[1] != "bob" {
		t.Errorf("Owners() = %v", owners)
	}
}

func TestDrainOfflineSkips(t *testing.T) {
	q := New(medium.NewMemory())
	q.Enqueue("alice", types.NewDelete("a"))

	apply := newScriptedApply()
	summary := q.Drain(context.Background(), "alice", stubProbe{online: false}, nil, apply.apply)

	if !summary.Skipped {
		t.Error("offline drain must report skipped")
	}
	if len(apply.applied) != 0 {
		t.Error("offline drain must not touch the remote")
	}
	if got := len(q.List("alice")); got != 1 {
		t.Errorf("offline drain must leave the queue unmodified, length = %d", got)
	}
}

func TestDrainFIFOReplayWithReconciliation(t *testing.T) {
	m := medium.NewMemory()
	q := New(m)
	c := cache.New(m, cache.DefaultTTL)

	c.ApplyOptimistic("alice", types.BirthdayRecord{
		ID: "tmp_1", OwnerID: "alice", Name: "Sam", Date: "1990-03-10",
	})
	q.Enqueue("alice", types.NewCreate("tmp_1", types.RecordPayload{Name: "Sam", Date: "1990-03-10"}))
	q.Enqueue("alice", types.NewUpdate("tmp_1", types.RecordPayload{Name: "X", Date: "1990-03-10"}))

	apply := newScriptedApply()
	summary := q.Drain(context.Background(), "alice", stubProbe{online: true}, c, apply.apply)

	if summary.Synced != 2 || summary.Failed != 0 || summary.Remaining != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	// The update must have replayed against the server id, after the
	// create resolved it.
	if len(apply.applied) != 2 {
		t.Fatalf("expected 2 applied ops, got %d", len(apply.applied))
	}
	if apply.applied[0].Kind != types.OpCreate {
		t.Error("create must replay first")
	}
	upd := apply.applied[1]
	if upd.Kind != types.OpUpdate || upd.Update.TargetID != "srv_1" {
		t.Errorf("update replayed against %q, want srv_1", upd.TargetID())
	}
	if got := apply.records["srv_1"].Name; got != "X" {
		t.Errorf("final remote name = %q, want X", got)
	}

	// And the cache must hold the real id with the optimistic flag
	// cleared.
	entry := c.Get("alice")
	if entry.Records[0].ID != "srv_1" || entry.Records[0].Optimistic {
		t.Errorf("cache not reconciled: %+v", entry.Records[0])
	}
}

func TestDrainContinuesPastFailures(t *testing.T) {
	q := New(medium.NewMemory())
	q.Enqueue("alice", types.NewDelete("bad"))
	q.Enqueue("alice", types.NewDelete("good"))

	apply := newScriptedApply()
	apply.failIDs["bad"] = true

	summary := q.Drain(context.Background(), "alice", stubProbe{online: true}, nil, apply.apply)

	if summary.Synced != 1 || summary.Failed != 1 || summary.Remaining != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	items := q.List("alice")
	if len(items) != 1 || items[0].Op.TargetID() != "bad" {
		t.Fatalf("failed item should remain queued, got %+v", items)
	}
	if items[0].RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", items[0].RetryCount)
	}

	// A second drain keeps retrying; birthday retries are unbounded.
	q.Drain(context.Background(), "alice", stubProbe{online: true}, nil, apply.apply)
	items = q.List("alice")
	if len(items) != 1 || items[0].RetryCount != 2 {
		t.Errorf("after second drain, items = %+v", items)
	}
}

func TestDrainRetargetsPendingAfterPartialFailure(t *testing.T) {
	q := New(medium.NewMemory())
	q.Enqueue("alice", types.NewCreate("tmp_1", types.RecordPayload{Name: "Sam"}))
	q.Enqueue("alice", types.NewUpdate("tmp_1", types.RecordPayload{Name: "X"}))

	// First drain: the create succeeds, the update fails. The queued
	// update must be rewritten to the real id for the next drain.
	apply := newScriptedApply()
	apply.failIDs["srv_1"] = true

	summary := q.Drain(context.Background(), "alice", stubProbe{online: true}, nil, apply.apply)
	if summary.Synced != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	items := q.List("alice")
	if len(items) != 1 || items[0].Op.Update.TargetID != "srv_1" {
		t.Fatalf("pending update not retargeted: %+v", items)
	}

	// Second drain succeeds.
	delete(apply.failIDs, "srv_1")
	summary = q.Drain(context.Background(), "alice", stubProbe{online: true}, nil, apply.apply)
	if summary.Synced != 1 || summary.Remaining != 0 {
		t.Fatalf("second drain summary = %+v", summary)
	}
	if got := apply.records["srv_1"].Name; got != "X" {
		t.Errorf("final remote name = %q, want X", got)
	}
}

func TestCorruptQueueBlobTreatedAsEmpty(t *testing.T) {
	m := medium.NewMemory()
	m.WriteKey("queue/alice", "][")

	q := New(m)
	if items := q.List("alice"); len(items) != 0 {
		t.Errorf("corrupt queue should read as empty, got %+v", items)
	}
}
