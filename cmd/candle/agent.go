package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/candleworks/candle/internal/backup"
	"github.com/candleworks/candle/internal/medium"
	"github.com/candleworks/candle/internal/worker"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the background sync agent",
	Long:  "Run the agent that periodically drains the sync queue, drains immediately when connectivity returns, and backs up the local cache when backup is configured.",
	Args:  cobra.NoArgs,
	RunE:  runAgent,
}

func runAgent(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	env, err := newClientEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	var wg sync.WaitGroup

	drainer := worker.NewDrainCoordinator(env.service, env.probe,
		time.Duration(env.cfg.Worker.DrainInterval))
	startWorker(ctx, &wg, "drain", drainer.Run)

	if env.cfg.Backup.Enabled {
		uploader, err := backup.NewUploader(env.cfg.Backup)
		if err != nil {
			return err
		}
		coordinator := worker.NewBackupCoordinator(&boltSnapshotSource{bolt: env.bolt},
			uploader, "agent", time.Duration(env.cfg.Worker.BackupInterval))
		startWorker(ctx, &wg, "backup", coordinator.Run)
	}

	<-ctx.Done()
	slog.Info("shutdown initiated")
	wg.Wait()
	slog.Info("shutdown complete")
	return nil
}

// boltSnapshotSource adapts the bolt cache to the backup coordinator's
// snapshot interface by copying the database to a temp file.
type boltSnapshotSource struct {
	bolt *medium.BoltMedium
}

func (s *boltSnapshotSource) GetSnapshot(ctx context.Context) (io.ReadCloser, error) {
	tmp, err := os.CreateTemp("", "cache-snapshot-*.db")
	if err != nil {
		return nil, err
	}
	tmp.Close()

	if err := s.bolt.Snapshot(tmp.Name()); err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}

	f, err := os.Open(tmp.Name())
	if err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}
	return &removeOnClose{File: f, path: tmp.Name()}, nil
}

// removeOnClose deletes the backing temp file once the reader is closed.
type removeOnClose struct {
	*os.File
	path string
}

func (r *removeOnClose) Close() error {
	err := r.File.Close()
	os.Remove(r.path)
	return err
}
