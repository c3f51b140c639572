package notify

import (
	"context"
	"log/slog"

	"github.com/candleworks/candle/internal/schedule"
	"github.com/candleworks/candle/internal/types"
)

// Dispatcher turns a birthday record into scheduled deliveries:
// previously stored handles are cancelled first, then the planner's
// surviving candidates are handed to the collaborator and the returned
// handles persisted.
type Dispatcher struct {
	planner  *schedule.Planner
	notifier Notifier
	registry *HandleRegistry
	messages *Messages
}

// NewDispatcher wires a dispatcher from its collaborators.
func NewDispatcher(planner *schedule.Planner, notifier Notifier, registry *HandleRegistry, messages *Messages) *Dispatcher {
	return &Dispatcher{
		planner:  planner,
		notifier: notifier,
		registry: registry,
		messages: messages,
	}
}

// Reschedule cancels any previously scheduled reminders for the record
// and schedules a fresh set. An individual cancel failure does not
// abort scheduling: a duplicate reminder is less harmful than silently
// losing all reminders. Never returns an error; failures are reported
// per offset in the result.
func (d *Dispatcher) Reschedule(ctx context.Context, record types.BirthdayRecord) types.ScheduleResult {
	result := types.ScheduleResult{}
	result.Cancelled = d.CancelAll(ctx, record.OwnerID, record.ID)

	candidates, skipped, err := d.planner.Plan(record.Date)
	if err != nil {
		slog.Warn("reminder planning failed",
			"birthday_id", record.ID, "date", record.Date, "error", err)
		result.Failures = append(result.Failures, types.OffsetFailure{
			Offset: types.OffsetDayOf, Reason: err.Error(),
		})
		return result
	}
	result.Skipped = skipped

	for _, candidate := range candidates {
		message, err := d.messages.Render(candidate.Offset, record.Name, record.Date)
		if err != nil {
			result.Failures = append(result.Failures, types.OffsetFailure{
				Offset: candidate.Offset, Reason: err.Error(),
			})
			continue
		}

		correlationID := record.ID + ":" + string(candidate.Offset)
		token, err := d.notifier.ScheduleAt(ctx, candidate.FireAt, message, correlationID)
		if err != nil {
			slog.Warn("reminder scheduling failed",
				"birthday_id", record.ID,
				"offset", candidate.Offset,
				"error", err)
			result.Failures = append(result.Failures, types.OffsetFailure{
				Offset: candidate.Offset, Reason: err.Error(),
			})
			continue
		}

		result.Handles = append(result.Handles, types.DeliveryHandle{
			Offset:        candidate.Offset,
			CorrelationID: correlationID,
			Token:         token,
		})
		result.Scheduled++
	}

	d.registry.Put(record.OwnerID, record.ID, result.Handles)

	slog.Info("reminders rescheduled",
		"birthday_id", record.ID,
		"scheduled", result.Scheduled,
		"skipped", result.Skipped,
		"failed", len(result.Failures))

	return result
}

// CancelAll revokes every stored handle for a birthday and clears the
// registry entry. Individual cancel failures are logged and tolerated.
// Returns the number of successful cancellations.
func (d *Dispatcher) CancelAll(ctx context.Context, ownerID, birthdayID string) int {
	handles := d.registry.Get(ownerID, birthdayID)
	cancelled := 0

	for _, handle := range handles {
		if err := d.notifier.Cancel(ctx, handle.Token); err != nil {
			slog.Warn("reminder cancel failed, proceeding",
				"birthday_id", birthdayID,
				"offset", handle.Offset,
				"token", handle.Token,
				"error", err)
			continue
		}
		cancelled++
	}

	d.registry.Put(ownerID, birthdayID, nil)
	return cancelled
}

// Rekey moves stored handles from a temporary id to the reconciled
// server id so future edits cancel the right instances.
func (d *Dispatcher) Rekey(ownerID, oldID, newID string) {
	d.registry.Rekey(ownerID, oldID, newID)
}
