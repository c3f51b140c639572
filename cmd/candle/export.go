package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/candleworks/candle/internal/export"
)

var (
	exportOut   string
	exportAlarm string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export birthdays as an iCalendar feed",
	Long:  "Export the owner's birthdays as an ICS document suitable for calendar subscriptions.",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "",
		"Write to file instead of stdout")
	exportCmd.Flags().StringVar(&exportAlarm, "alarm", "",
		"RFC 5545 alarm trigger added to each event (e.g. -PT9H)")
}

func runExport(cmd *cobra.Command, args []string) error {
	env, err := newClientEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	records, stale := env.service.List(cmd.Context(), resolveOwner())

	gen := export.NewGenerator()
	gen.AlarmTrigger = exportAlarm

	data, err := gen.Generate(records)
	if err != nil {
		return err
	}

	if exportOut == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(exportOut, data, 0644); err != nil {
		return fmt.Errorf("write calendar: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d birthday(s) to %s\n", len(records), exportOut)
	if stale {
		fmt.Fprintln(cmd.ErrOrStderr(), "Note: exported from cached data; server unreachable.")
	}
	return nil
}
