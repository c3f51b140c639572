package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/candleworks/candle/internal/backup"
)

var backupShowURL bool

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload a cache snapshot to S3",
	Long:  "Take a consistent snapshot of the local cache and upload it to the configured S3 bucket.",
	Args:  cobra.NoArgs,
	RunE:  runBackup,
}

func init() {
	backupCmd.Flags().BoolVar(&backupShowURL, "url", false,
		"Print a pre-signed download URL for the uploaded backup")
}

func runBackup(cmd *cobra.Command, args []string) error {
	env, err := newClientEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	if !env.cfg.Backup.Enabled {
		return errors.New("backup is not enabled; set CANDLE_BACKUP_ENABLED and S3 settings")
	}

	uploader, err := backup.NewUploader(env.cfg.Backup)
	if err != nil {
		return err
	}

	source := &boltSnapshotSource{bolt: env.bolt}
	rc, err := source.GetSnapshot(cmd.Context())
	if err != nil {
		return fmt.Errorf("snapshot cache: %w", err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "candle-backup-*.db")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := uploader.Upload(cmd.Context(), "agent", tmp.Name()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Backup uploaded.")

	if backupShowURL {
		u, expiry, err := uploader.PresignedURL(cmd.Context(), "agent")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n(valid until %s)\n", u, expiry.Format("2006-01-02 15:04 MST"))
	}
	return nil
}
