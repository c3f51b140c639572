// Package notify schedules and cancels reminder deliveries through an
// external push collaborator. Delivery is best-effort: unlike the
// birthday sync queue, notification calls retry a bounded number of
// times and failures are reported per offset, never escalated into a
// failed save.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrNotConfigured is returned when no push gateway is configured.
var ErrNotConfigured = errors.New("notification delivery not configured")

// Notifier is the narrow contract to the external push-delivery
// collaborator.
type Notifier interface {
	// ScheduleAt asks the collaborator to deliver message at fireAt.
	// The correlation id ties the delivery to one birthday offset so a
	// later edit can cancel exactly this instance. Returns an opaque
	// delivery token.
	ScheduleAt(ctx context.Context, fireAt time.Time, message, correlationID string) (string, error)

	// Cancel revokes a previously scheduled delivery by token.
	Cancel(ctx context.Context, token string) error
}

// LogNotifier is the fallback Notifier used when no gateway is
// configured. Schedules are logged and assigned local tokens; cancels
// are logged no-ops. Keeps the rest of the pipeline exercisable in
// local-only mode.
type LogNotifier struct{}

// ScheduleAt logs the would-be delivery and returns a local token.
func (LogNotifier) ScheduleAt(_ context.Context, fireAt time.Time, message, correlationID string) (string, error) {
	token := "local_" + ulid.Make().String()
	slog.Info("reminder scheduled locally",
		"fire_at", fireAt,
		"message", message,
		"correlation_id", correlationID,
		"token", token)
	return token, nil
}

// Cancel logs the cancellation.
func (LogNotifier) Cancel(_ context.Context, token string) error {
	slog.Info("reminder cancelled locally", "token", token)
	return nil
}
