package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/candleworks/candle/internal/types"
)

var syncAllOwners bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay queued changes against the server",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncAllOwners, "all", false,
		"Sync every owner with queued changes, not just the current one")
}

func runSync(cmd *cobra.Command, args []string) error {
	env, err := newClientEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	summaries := map[string]types.DrainSummary{}
	if syncAllOwners {
		summaries = env.service.SyncAll(cmd.Context())
	} else {
		owner := resolveOwner()
		summaries[owner] = env.service.Sync(cmd.Context(), owner)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), summaries)
	}

	for owner, summary := range summaries {
		if summary.Skipped {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: offline, %d change(s) still queued\n",
				owner, summary.Remaining)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: synced %d, failed %d, remaining %d\n",
			owner, summary.Synced, summary.Failed, summary.Remaining)
	}
	return nil
}
