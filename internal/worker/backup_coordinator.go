package worker

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/candleworks/candle/internal/backup"
)

// SnapshotSource produces a consistent point-in-time copy of a database.
// *store.SQLiteStore satisfies this interface directly; the bolt cache
// is adapted in the cmd wiring.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context) (io.ReadCloser, error)
}

// BackupCoordinator periodically snapshots a database and uploads the
// snapshot to S3-compatible storage.
type BackupCoordinator struct {
	source   SnapshotSource
	uploader backup.Uploader
	name     string
	interval time.Duration
}

// NewBackupCoordinator creates a coordinator that backs up the given
// source under name on the given interval. The name becomes part of
// the S3 object key.
func NewBackupCoordinator(source SnapshotSource, uploader backup.Uploader, name string, interval time.Duration) *BackupCoordinator {
	return &BackupCoordinator{
		source:   source,
		uploader: uploader,
		name:     name,
		interval: interval,
	}
}

// Run starts the coordinator loop.
func (c *BackupCoordinator) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "backup-coordinator",
		"action", "worker_started",
		"name", c.name,
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Back up immediately on start
	c.backupOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "backup-coordinator",
				"action", "worker_stopped",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			c.backupOnce(ctx)
		}
	}
}

// backupOnce takes one snapshot and uploads it.
// Failures are logged as warnings but are NOT fatal; the next cycle retries.
func (c *BackupCoordinator) backupOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	path, err := c.writeSnapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return // graceful shutdown, not an error
		}
		slog.Warn("snapshot generation failed",
			"component", "worker",
			"worker", "backup-coordinator",
			"action", "snapshot_failed",
			"name", c.name,
			"error", err,
		)
		return
	}
	defer os.Remove(path)

	if err := c.uploader.Upload(ctx, c.name, path); err != nil {
		slog.Warn("backup upload failed",
			"component", "worker",
			"worker", "backup-coordinator",
			"action", "backup_upload_failed",
			"name", c.name,
			"error", err,
		)
		return
	}

	slog.Info("backup uploaded",
		"component", "worker",
		"worker", "backup-coordinator",
		"action", "backup_uploaded",
		"name", c.name,
	)
}

// writeSnapshot streams the source snapshot into a temp file and
// returns its path. The caller removes the file when done.
func (c *BackupCoordinator) writeSnapshot(ctx context.Context) (string, error) {
	rc, err := c.source.GetSnapshot(ctx)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", filepath.Clean(c.name)+"-backup-*.db")
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
