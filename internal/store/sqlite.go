package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/candleworks/candle/internal/types"
)

// SQLiteStore is the SQLite-backed birthday database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable pragmas for performance and safety
	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	// Run goose migrations
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const recordColumns = `id, owner_id, name, date, relation, avatar, created_at, updated_at`

// ListRecords returns the owner's records, most recently updated first.
func (s *SQLiteStore) ListRecords(ctx context.Context, ownerID string) ([]types.BirthdayRecord, error) {
	if ownerID == "" {
		return nil, ErrInvalidOwner
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM birthdays
		WHERE owner_id = ? AND deleted_at IS NULL
		ORDER BY updated_at DESC, id DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := make([]types.BirthdayRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, *record)
	}

	return records, rows.Err()
}

// GetRecord retrieves a single record scoped to its owner.
func (s *SQLiteStore) GetRecord(ctx context.Context, ownerID, id string) (*types.BirthdayRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM birthdays
		WHERE id = ? AND owner_id = ? AND deleted_at IS NULL
	`, id, ownerID)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan row: %w", err)
	}

	return record, nil
}

// CreateRecord stores a new record with a server-assigned ULID and logs
// the change.
func (s *SQLiteStore) CreateRecord(ctx context.Context, ownerID string, payload types.RecordPayload) (*types.BirthdayRecord, error) {
	if ownerID == "" {
		return nil, ErrInvalidOwner
	}

	now := time.Now().UTC()
	record := types.BirthdayRecord{
		ID:        ulid.Make().String(),
		OwnerID:   ownerID,
		Name:      payload.Name,
		Date:      payload.Date,
		Relation:  payload.Relation,
		Avatar:    payload.Avatar,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO birthdays (id, owner_id, name, date, relation, avatar, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.OwnerID, record.Name, record.Date, record.Relation, record.Avatar,
		record.CreatedAt.Format(time.RFC3339Nano), record.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}

	if err := appendChange(ctx, tx, ownerID, record.ID, "create", &payload, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return &record, nil
}

// UpdateRecord replaces the payload fields of an existing record and
// logs the change.
func (s *SQLiteStore) UpdateRecord(ctx context.Context, ownerID, id string, payload types.RecordPayload) (*types.BirthdayRecord, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE birthdays
		SET name = ?, date = ?, relation = ?, avatar = ?, updated_at = ?
		WHERE id = ? AND owner_id = ? AND deleted_at IS NULL
	`, payload.Name, payload.Date, payload.Relation, payload.Avatar,
		now.Format(time.RFC3339Nano), id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	if err := appendChange(ctx, tx, ownerID, id, "update", &payload, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.GetRecord(ctx, ownerID, id)
}

// DeleteRecord soft-deletes a record and logs the change. Soft deletion
// keeps the row available for the change feed.
func (s *SQLiteStore) DeleteRecord(ctx context.Context, ownerID, id string) error {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE birthdays
		SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND owner_id = ? AND deleted_at IS NULL
	`, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano), id, ownerID)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if err := appendChange(ctx, tx, ownerID, id, "delete", nil, now); err != nil {
		return err
	}

	return tx.Commit()
}

// GetStats returns aggregate store statistics.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM birthdays WHERE deleted_at IS NULL").Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}

	version, err := SchemaVersion(s.db)
	if err != nil {
		return nil, err
	}

	return &Stats{BirthdayCount: count, SchemaVersion: version}, nil
}

// GetSnapshot returns a reader over the database file for backup.
// Callers must close the reader.
func (s *SQLiteStore) GetSnapshot(ctx context.Context) (io.ReadCloser, error) {
	// Flush WAL so the main file is self-contained.
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return nil, fmt.Errorf("checkpoint wal: %w", err)
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open database file: %w", err)
	}
	return f, nil
}

// scanRecord scans a row into a BirthdayRecord, parsing timestamps.
func scanRecord(scanner interface{ Scan(...any) error }) (*types.BirthdayRecord, error) {
	var record types.BirthdayRecord
	var createdAt, updatedAt string

	err := scanner.Scan(
		&record.ID,
		&record.OwnerID,
		&record.Name,
		&record.Date,
		&record.Relation,
		&record.Avatar,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		record.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		record.UpdatedAt = t
	}

	return &record, nil
}
