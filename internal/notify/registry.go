package notify

import (
	"encoding/json"
	"log/slog"

	"github.com/candleworks/candle/internal/medium"
	"github.com/candleworks/candle/internal/types"
)

const handleKeyPrefix = "handles/"

// HandleRegistry persists the delivery handles returned by the
// collaborator, per birthday, so a later edit or delete can cancel
// exactly the previously scheduled instances.
type HandleRegistry struct {
	medium medium.Medium
}

// NewHandleRegistry creates a registry over the given medium.
func NewHandleRegistry(m medium.Medium) *HandleRegistry {
	return &HandleRegistry{medium: m}
}

func handleKey(ownerID, birthdayID string) string {
	return handleKeyPrefix + ownerID + "/" + birthdayID
}

// Get returns the stored handles for a birthday, empty when none.
func (r *HandleRegistry) Get(ownerID, birthdayID string) []types.DeliveryHandle {
	raw, ok := r.medium.ReadKey(handleKey(ownerID, birthdayID))
	if !ok {
		return nil
	}

	var handles []types.DeliveryHandle
	if err := json.Unmarshal([]byte(raw), &handles); err != nil {
		slog.Warn("discarding corrupt handle set",
			"owner_id", ownerID, "birthday_id", birthdayID, "error", err)
		return nil
	}

	return handles
}

// Put replaces the stored handles for a birthday. An empty set deletes
// the key.
func (r *HandleRegistry) Put(ownerID, birthdayID string, handles []types.DeliveryHandle) {
	key := handleKey(ownerID, birthdayID)

	if len(handles) == 0 {
		r.medium.DeleteKey(key)
		return
	}

	data, err := json.Marshal(handles)
	if err != nil {
		slog.Warn("handle set not serializable",
			"owner_id", ownerID, "birthday_id", birthdayID, "error", err)
		return
	}

	if !r.medium.WriteKey(key, string(data)) {
		slog.Warn("handle set persist failed",
			"owner_id", ownerID, "birthday_id", birthdayID)
	}
}

// Rekey moves handles from a temporary birthday id to its reconciled
// server id.
func (r *HandleRegistry) Rekey(ownerID, oldID, newID string) {
	handles := r.Get(ownerID, oldID)
	if len(handles) == 0 {
		return
	}
	r.Put(ownerID, newID, handles)
	r.medium.DeleteKey(handleKey(ownerID, oldID))
}
