// Package remote talks to the birthday datastore over HTTP. The client
// is deliberately thin: retry and queueing policy live with the caller.
package remote

import (
	"context"
	"errors"

	"github.com/candleworks/candle/internal/types"
)

// ErrNotFound is returned when the datastore has no record with the
// requested id.
var ErrNotFound = errors.New("record not found")

// Datastore is the remote authority for birthday records.
type Datastore interface {
	// ListRecords returns every record the owner has.
	ListRecords(ctx context.Context, ownerID string) ([]types.BirthdayRecord, error)

	// CreateRecord stores a new record and returns its server-assigned id.
	CreateRecord(ctx context.Context, ownerID string, payload types.RecordPayload) (string, error)

	// UpdateRecord replaces the payload fields of an existing record.
	UpdateRecord(ctx context.Context, ownerID, recordID string, payload types.RecordPayload) error

	// DeleteRecord removes a record.
	DeleteRecord(ctx context.Context, ownerID, recordID string) error
}
