package types

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestStaleAfter(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ttl := 24 * time.Hour

	tests := []struct {
		name     string
		cachedAt time.Time
		want     bool
	}{
		{"zero cachedAt is stale", time.Time{}, true},
		{"25h old is stale", now.Add(-25 * time.Hour), true},
		{"1h old is fresh", now.Add(-1 * time.Hour), false},
		{"exactly ttl is fresh", now.Add(-ttl), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := CacheEntry{CachedAt: tt.cachedAt}
			if got := e.StaleAfter(now, ttl); got != tt.want {
				t.Errorf("StaleAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTemporary(t *testing.T) {
	if !(BirthdayRecord{ID: "tmp_01HXYZ"}).IsTemporary() {
		t.Error("expected tmp_ prefixed id to be temporary")
	}
	if (BirthdayRecord{ID: "01HXYZ"}).IsTemporary() {
		t.Error("expected server id not to be temporary")
	}
}

func TestOperationTargetID(t *testing.T) {
	payload := RecordPayload{Name: "Sam", Date: "2025-03-10"}

	if got := NewCreate("tmp_1", payload).TargetID(); got != "tmp_1" {
		t.Errorf("create TargetID = %q, want tmp_1", got)
	}
	if got := NewUpdate("abc", payload).TargetID(); got != "abc" {
		t.Errorf("update TargetID = %q, want abc", got)
	}
	if got := NewDelete("abc").TargetID(); got != "abc" {
		t.Errorf("delete TargetID = %q, want abc", got)
	}
}

func TestOperationRetarget(t *testing.T) {
	payload := RecordPayload{Name: "Sam", Date: "2025-03-10"}

	update := NewUpdate("tmp_1", payload)
	retargeted := update.Retarget("srv_42")
	if retargeted.Update.TargetID != "srv_42" {
		t.Errorf("retargeted update points at %q, want srv_42", retargeted.Update.TargetID)
	}
	if update.Update.TargetID != "tmp_1" {
		t.Error("Retarget mutated the original operation")
	}

	del := NewDelete("tmp_1").Retarget("srv_42")
	if del.Delete.TargetID != "srv_42" {
		t.Errorf("retargeted delete points at %q, want srv_42", del.Delete.TargetID)
	}

	// Creates keep their optimistic id.
	create := NewCreate("tmp_1", payload).Retarget("srv_42")
	if create.Create.OptimisticID != "tmp_1" {
		t.Error("Retarget must not touch a create's optimistic id")
	}
}

func TestOperationJSONCarriesOnlyItsVariant(t *testing.T) {
	data, err := json.Marshal(NewDelete("abc"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"kind":"delete"`) {
		t.Errorf("missing kind tag: %s", s)
	}
	if strings.Contains(s, "create") || strings.Contains(s, "update") {
		t.Errorf("delete operation serialized unused variants: %s", s)
	}
}

func TestListResponseMarshalJSON(t *testing.T) {
	data, err := json.Marshal(ListResponse{})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"records":[]}` {
		t.Errorf("nil records should marshal as [], got %s", data)
	}
}
