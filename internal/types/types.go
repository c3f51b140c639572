package types

import (
	"encoding/json"
	"strings"
	"time"
)

// TempIDPrefix marks locally generated record identifiers that have not
// yet been confirmed by the remote datastore.
const TempIDPrefix = "tmp_"

// BirthdayRecord represents a single stored birthday.
type BirthdayRecord struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Name       string    `json:"name"`
	Date       string    `json:"date"` // ISO date; only month and day drive recurrence
	Relation   string    `json:"relation,omitempty"`
	Avatar     string    `json:"avatar,omitempty"`
	Optimistic bool      `json:"optimistic,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsTemporary reports whether the record still carries a locally
// generated identifier.
func (r BirthdayRecord) IsTemporary() bool {
	return strings.HasPrefix(r.ID, TempIDPrefix)
}

// RecordPayload is the input type for create and update operations
// (without generated fields).
type RecordPayload struct {
	Name     string `json:"name"`
	Date     string `json:"date"`
	Relation string `json:"relation,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// CacheEntry holds the cached records for one owner plus freshness data.
type CacheEntry struct {
	Records  []BirthdayRecord `json:"records"`
	CachedAt time.Time        `json:"cached_at"`
}

// StaleAfter reports whether the entry is older than ttl at the given
// instant. A zero CachedAt is always stale.
func (e CacheEntry) StaleAfter(now time.Time, ttl time.Duration) bool {
	if e.CachedAt.IsZero() {
		return true
	}
	return now.Sub(e.CachedAt) > ttl
}

// OpKind identifies the variant of a queued mutation.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// CreateOp carries the payload for a queued create, keyed by the
// optimistic id assigned at enqueue time.
type CreateOp struct {
	OptimisticID string        `json:"optimistic_id"`
	Payload      RecordPayload `json:"payload"`
}

// UpdateOp carries the payload for a queued update.
type UpdateOp struct {
	TargetID string        `json:"target_id"`
	Payload  RecordPayload `json:"payload"`
}

// DeleteOp identifies the record a queued delete targets.
type DeleteOp struct {
	TargetID string `json:"target_id"`
}

// Operation is a tagged union over the three mutation variants. Exactly
// one of Create, Update, or Delete is set, matching Kind.
type Operation struct {
	Kind   OpKind    `json:"kind"`
	Create *CreateOp `json:"create,omitempty"`
	Update *UpdateOp `json:"update,omitempty"`
	Delete *DeleteOp `json:"delete,omitempty"`
}

// NewCreate builds a create operation.
func NewCreate(optimisticID string, payload RecordPayload) Operation {
	return Operation{Kind: OpCreate, Create: &CreateOp{OptimisticID: optimisticID, Payload: payload}}
}

// NewUpdate builds an update operation.
func NewUpdate(targetID string, payload RecordPayload) Operation {
	return Operation{Kind: OpUpdate, Update: &UpdateOp{TargetID: targetID, Payload: payload}}
}

// NewDelete builds a delete operation.
func NewDelete(targetID string) Operation {
	return Operation{Kind: OpDelete, Delete: &DeleteOp{TargetID: targetID}}
}

// TargetID returns the record id the operation refers to: the
// optimistic id for creates, the target id otherwise.
func (o Operation) TargetID() string {
	switch o.Kind {
	case OpCreate:
		if o.Create != nil {
			return o.Create.OptimisticID
		}
	case OpUpdate:
		if o.Update != nil {
			return o.Update.TargetID
		}
	case OpDelete:
		if o.Delete != nil {
			return o.Delete.TargetID
		}
	}
	return ""
}

// Retarget returns a copy of the operation pointing at newID. Used when
// a drained create resolves a temporary id that later queued operations
// still reference.
func (o Operation) Retarget(newID string) Operation {
	switch o.Kind {
	case OpUpdate:
		if o.Update != nil {
			u := *o.Update
			u.TargetID = newID
			o.Update = &u
		}
	case OpDelete:
		if o.Delete != nil {
			d := *o.Delete
			d.TargetID = newID
			o.Delete = &d
		}
	}
	return o
}

// SyncQueueItem is one durable pending mutation.
type SyncQueueItem struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Op         Operation `json:"op"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	RetryCount int       `json:"retry_count"`
}

// DrainSummary reports the outcome of replaying an owner's queue.
type DrainSummary struct {
	Skipped   bool `json:"skipped"` // device offline, nothing attempted
	Synced    int  `json:"synced"`
	Failed    int  `json:"failed"`
	Remaining int  `json:"remaining"`
}

// ReminderOffset identifies one of the fixed reminder offsets.
type ReminderOffset string

const (
	OffsetWeekBefore ReminderOffset = "week_before"
	OffsetDayBefore  ReminderOffset = "day_before"
	OffsetDayOf      ReminderOffset = "day_of"
)

// Days returns the calendar-day distance of the offset from the
// birthday occurrence.
func (o ReminderOffset) Days() int {
	switch o {
	case OffsetWeekBefore:
		return 7
	case OffsetDayBefore:
		return 1
	default:
		return 0
	}
}

// ReminderCandidate is a concrete delivery instant computed for one
// offset of one birthday occurrence.
type ReminderCandidate struct {
	Offset ReminderOffset `json:"offset"`
	FireAt time.Time      `json:"fire_at"`
}

// DeliveryHandle is the opaque token a notification collaborator
// returns for a scheduled delivery, retained for later cancellation.
type DeliveryHandle struct {
	Offset        ReminderOffset `json:"offset"`
	CorrelationID string         `json:"correlation_id"`
	Token         string         `json:"token"`
}

// OffsetFailure records a per-offset scheduling failure. Scheduling
// failures are cosmetic; the birthday itself is already saved.
type OffsetFailure struct {
	Offset ReminderOffset `json:"offset"`
	Reason string         `json:"reason"`
}

// ScheduleResult reports the outcome of (re)scheduling reminders for a
// single birthday.
type ScheduleResult struct {
	Scheduled int              `json:"scheduled"`
	Skipped   int              `json:"skipped"`
	Cancelled int              `json:"cancelled"`
	Handles   []DeliveryHandle `json:"handles"`
	Failures  []OffsetFailure  `json:"failures,omitempty"`
}

// --- HTTP API contract types ---

// ListResponse is the server response for listing an owner's birthdays.
type ListResponse struct {
	Records []BirthdayRecord `json:"records"`
}

// CreateResponse is the server response for a created birthday.
type CreateResponse struct {
	ID string `json:"id"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	BirthdayCount int64  `json:"birthday_count"`
	SchemaVersion int    `json:"schema_version"`
}

// MarshalJSON ensures a nil Records slice marshals as [] not null.
func (l ListResponse) MarshalJSON() ([]byte, error) {
	if l.Records == nil {
		l.Records = []BirthdayRecord{}
	}
	type Alias ListResponse
	return json.Marshal(Alias(l))
}
