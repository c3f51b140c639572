package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/candleworks/candle/internal/types"
)

// ChangeLogEntry is one recorded mutation of an owner's birthday set.
// The change feed lets clients audit what the server applied, including
// queued mutations replayed long after they were made.
type ChangeLogEntry struct {
	Sequence  int64           `json:"sequence"`
	OwnerID   string          `json:"owner_id"`
	RecordID  string          `json:"record_id"`
	Operation string          `json:"operation"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// appendChange logs a mutation inside the transaction that performed
// it, so the change feed never disagrees with the table.
func appendChange(ctx context.Context, tx *sql.Tx, ownerID, recordID, operation string, payload *types.RecordPayload, at time.Time) error {
	var payloadArg any
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal change payload: %w", err)
		}
		payloadArg = string(data)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO change_log (owner_id, record_id, operation, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, ownerID, recordID, operation, payloadArg, at.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append change log: %w", err)
	}
	return nil
}

// ChangesSince returns the owner's changes with sequence > afterSeq, up
// to limit, oldest first.
func (s *SQLiteStore) ChangesSince(ctx context.Context, ownerID string, afterSeq int64, limit int) ([]ChangeLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, owner_id, record_id, operation, payload, created_at
		FROM change_log
		WHERE owner_id = ? AND sequence > ?
		ORDER BY sequence ASC
		LIMIT ?
	`, ownerID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("query change log: %w", err)
	}
	defer rows.Close()

	entries := make([]ChangeLogEntry, 0)
	for rows.Next() {
		var e ChangeLogEntry
		var payload sql.NullString
		var createdAt string

		if err := rows.Scan(&e.Sequence, &e.OwnerID, &e.RecordID, &e.Operation,
			&payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan change log entry: %w", err)
		}

		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		var parseErr error
		if e.CreatedAt, parseErr = time.Parse(time.RFC3339Nano, createdAt); parseErr != nil {
			slog.Warn("change_log: failed to parse created_at", "value", createdAt, "error", parseErr)
		}

		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LatestSequence returns the highest sequence number in the change log.
// Returns 0 if the change log is empty.
func (s *SQLiteStore) LatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM change_log`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get latest sequence: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
