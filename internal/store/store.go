package store

import (
	"context"
	"io"

	"github.com/candleworks/candle/internal/types"
)

// Store defines the interface contract for server-side birthday storage.
type Store interface {
	ListRecords(ctx context.Context, ownerID string) ([]types.BirthdayRecord, error)
	GetRecord(ctx context.Context, ownerID, id string) (*types.BirthdayRecord, error)
	CreateRecord(ctx context.Context, ownerID string, payload types.RecordPayload) (*types.BirthdayRecord, error)
	UpdateRecord(ctx context.Context, ownerID, id string, payload types.RecordPayload) (*types.BirthdayRecord, error)
	DeleteRecord(ctx context.Context, ownerID, id string) error
	ChangesSince(ctx context.Context, ownerID string, afterSeq int64, limit int) ([]ChangeLogEntry, error)
	LatestSequence(ctx context.Context) (int64, error)
	GetStats(ctx context.Context) (*Stats, error)
	GetSnapshot(ctx context.Context) (io.ReadCloser, error)
	Close() error
}

// Stats holds aggregate store statistics for the health endpoint.
type Stats struct {
	BirthdayCount int64 `json:"birthday_count"`
	SchemaVersion int   `json:"schema_version"`
}
