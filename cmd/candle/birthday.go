package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/candleworks/candle/internal/client"
	"github.com/candleworks/candle/internal/schedule"
	"github.com/candleworks/candle/internal/types"
)

var (
	addRelation string
	addAvatar   string
)

var birthdayCmd = &cobra.Command{
	Use:   "birthday",
	Short: "Manage birthdays",
	Long:  "Add, list, and remove birthdays. Changes made while offline are queued and synced later.",
}

var birthdayAddCmd = &cobra.Command{
	Use:   "add <name> <date>",
	Short: "Add a birthday",
	Long: "Add a birthday. The date is an ISO date (1990-03-10) or month-day only (--03-10) " +
		"when the year is unknown. Flags must be given before the name.",
	Args:  cobra.ExactArgs(2),
	RunE:  runBirthdayAdd,
}

var birthdayListCmd = &cobra.Command{
	Use:   "list",
	Short: "List birthdays",
	Args:  cobra.NoArgs,
	RunE:  runBirthdayList,
}

var birthdayRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a birthday",
	Args:  cobra.ExactArgs(1),
	RunE:  runBirthdayRemove,
}

func init() {
	birthdayAddCmd.Flags().StringVar(&addRelation, "relation", "",
		"Relation to the person (friend, family, ...)")
	birthdayAddCmd.Flags().StringVar(&addAvatar, "avatar", "",
		"Avatar reference")
	// Month-day dates start with two dashes (--12-01) and must reach
	// the command as positionals, so flag parsing stops at the name.
	birthdayAddCmd.Flags().SetInterspersed(false)

	birthdayCmd.AddCommand(birthdayAddCmd)
	birthdayCmd.AddCommand(birthdayListCmd)
	birthdayCmd.AddCommand(birthdayRemoveCmd)
}

func runBirthdayAdd(cmd *cobra.Command, args []string) error {
	env, err := newClientEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	payload := types.RecordPayload{
		Name:     args[0],
		Date:     args[1],
		Relation: addRelation,
		Avatar:   addAvatar,
	}

	record, err := env.service.Add(cmd.Context(), resolveOwner(), payload)
	if err != nil {
		var vf *client.ValidationFailure
		if errors.As(err, &vf) {
			for _, fieldErr := range vf.Fields {
				fmt.Fprintf(cmd.ErrOrStderr(), "invalid %s: %s\n", fieldErr.Field, fieldErr.Message)
			}
		}
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), record)
	}

	if record.Optimistic {
		fmt.Fprintf(cmd.OutOrStdout(), "Added %q (%s) offline, queued for sync\n", record.Name, record.ID)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Added %q (%s)\n", record.Name, record.ID)
	}
	return nil
}

func runBirthdayList(cmd *cobra.Command, args []string) error {
	env, err := newClientEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	owner := resolveOwner()
	records, stale := env.service.List(cmd.Context(), owner)
	pending := env.service.Pending(owner)

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"records": records,
			"stale":   stale,
			"pending": len(pending),
		})
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No birthdays found.")
		return nil
	}

	// Sort by how soon the next birthday falls.
	now := time.Now()
	planner := schedule.NewPlanner()
	next := make(map[string]time.Time, len(records))
	for _, r := range records {
		if month, day, err := schedule.ParseDate(r.Date); err == nil {
			next[r.ID] = planner.NextOccurrence(now, month, day)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return next[records[i].ID].Before(next[records[j].ID])
	})

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "ID\tNAME\tDATE\tNEXT\tAGE\tRELATION\tSTATUS")
	for _, r := range records {
		relation := r.Relation
		if relation == "" {
			relation = "-"
		}
		status := "synced"
		if r.Optimistic {
			status = "pending sync"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Name, r.Date, formatNext(next[r.ID]), formatAge(r.Date, next[r.ID]), relation, status)
	}
	w.Flush()

	if stale {
		fmt.Fprintln(cmd.ErrOrStderr(), "Note: showing cached data; server unreachable.")
	}
	if len(pending) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d queued change(s) awaiting sync.\n", len(pending))
	}
	return nil
}

func runBirthdayRemove(cmd *cobra.Command, args []string) error {
	env, err := newClientEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.service.Delete(cmd.Context(), resolveOwner(), args[0]); err != nil {
		return err
	}

	if !jsonOutput {
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
	}
	return nil
}

// formatNext renders the next occurrence date, or "-" when the
// record's date could not be parsed.
func formatNext(next time.Time) string {
	if next.IsZero() {
		return "-"
	}
	return next.Format("2006-01-02")
}

// formatAge renders the age the person turns at the next occurrence.
// Unknown birth years (month-day only dates) render as "-".
func formatAge(date string, next time.Time) string {
	born, err := time.Parse("2006-01-02", date)
	if err != nil || next.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%d", next.Year()-born.Year())
}

// printJSON marshals v to indented JSON and writes it to w.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
