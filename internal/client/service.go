// Package client orchestrates the offline-first birthday workflow:
// optimistic cache writes, remote synchronization through the durable
// queue, and reminder scheduling.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/candleworks/candle/internal/cache"
	"github.com/candleworks/candle/internal/remote"
	"github.com/candleworks/candle/internal/syncq"
	"github.com/candleworks/candle/internal/types"
	"github.com/candleworks/candle/internal/validation"
)

// ValidationFailure carries the field errors of a rejected payload.
type ValidationFailure struct {
	Fields []validation.ValidationError
}

func (e *ValidationFailure) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " " + f.Message
	}
	return "invalid payload: " + strings.Join(parts, "; ")
}

// ReminderScheduler is the reminder side of the workflow. Satisfied by
// notify.Dispatcher; nil disables reminders entirely.
type ReminderScheduler interface {
	Reschedule(ctx context.Context, record types.BirthdayRecord) types.ScheduleResult
	CancelAll(ctx context.Context, ownerID, birthdayID string) int
	Rekey(ownerID, oldID, newID string)
}

// Probe reports remote reachability, satisfied by connectivity probes.
type Probe interface {
	IsOnline() bool
}

// Service is the façade the CLI and agent drive. Mutations land in the
// cache immediately; the remote write happens inline when online and
// is queued otherwise. Reads never fail: worst case is stale data.
type Service struct {
	cache     *cache.Store
	queue     *syncq.Queue
	datastore remote.Datastore
	probe     Probe
	reminders ReminderScheduler
	now       func() time.Time
}

// NewService wires the workflow from its collaborators. reminders may
// be nil when no notification gateway is configured.
func NewService(c *cache.Store, q *syncq.Queue, ds remote.Datastore, probe Probe, reminders ReminderScheduler) *Service {
	return &Service{
		cache:     c,
		queue:     q,
		datastore: ds,
		probe:     probe,
		reminders: reminders,
		now:       time.Now,
	}
}

// Add stores a new birthday. The record is visible locally before any
// network round trip; when the remote create cannot happen inline the
// operation is queued and the record keeps its temporary id until a
// drain reconciles it.
func (s *Service) Add(ctx context.Context, ownerID string, payload types.RecordPayload) (types.BirthdayRecord, error) {
	if errs := validation.ValidateRecordPayload(payload); len(errs) > 0 {
		return types.BirthdayRecord{}, &ValidationFailure{Fields: errs}
	}

	now := s.now()
	record := types.BirthdayRecord{
		ID:        types.TempIDPrefix + ulid.Make().String(),
		OwnerID:   ownerID,
		Name:      payload.Name,
		Date:      payload.Date,
		Relation:  payload.Relation,
		Avatar:    payload.Avatar,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.cache.ApplyOptimistic(ownerID, record)

	if s.online() {
		realID, err := s.datastore.CreateRecord(ctx, ownerID, payload)
		if err == nil {
			s.cache.Reconcile(ownerID, record.ID, realID)
			record.ID = realID
			record.Optimistic = false
			s.reschedule(ctx, record)
			return record, nil
		}
		slog.Warn("inline create failed, queueing",
			"owner_id", ownerID, "temp_id", record.ID, "error", err)
	}

	s.queue.Enqueue(ownerID, types.NewCreate(record.ID, payload))
	record.Optimistic = true
	s.reschedule(ctx, record)
	return record, nil
}

// Update edits an existing birthday. Updates targeting a still
// temporary id are always queued: the remote store has never heard of
// that id, and the queued create resolves it during the next drain.
func (s *Service) Update(ctx context.Context, ownerID, recordID string, payload types.RecordPayload) (types.BirthdayRecord, error) {
	if errs := validation.ValidateRecordPayload(payload); len(errs) > 0 {
		return types.BirthdayRecord{}, &ValidationFailure{Fields: errs}
	}

	existing := s.find(ownerID, recordID)
	if existing == nil {
		return types.BirthdayRecord{}, fmt.Errorf("update %s: %w", recordID, remote.ErrNotFound)
	}

	record := *existing
	record.Name = payload.Name
	record.Date = payload.Date
	record.Relation = payload.Relation
	record.Avatar = payload.Avatar
	record.UpdatedAt = s.now()
	s.cache.ApplyOptimistic(ownerID, record)

	if !record.IsTemporary() && s.online() {
		err := s.datastore.UpdateRecord(ctx, ownerID, recordID, payload)
		if err == nil {
			s.reschedule(ctx, record)
			return record, nil
		}
		if errors.Is(err, remote.ErrNotFound) {
			// The server dropped the record; put the cache back in line.
			s.cache.RemoveOptimistic(ownerID, recordID)
			s.cancelReminders(ctx, ownerID, recordID)
			return types.BirthdayRecord{}, err
		}
		slog.Warn("inline update failed, queueing",
			"owner_id", ownerID, "record_id", recordID, "error", err)
	}

	s.queue.Enqueue(ownerID, types.NewUpdate(recordID, payload))
	s.reschedule(ctx, record)
	return record, nil
}

// Delete removes a birthday. The local copy disappears immediately and
// its reminders are cancelled; the remote delete is queued when it
// cannot happen inline. A remote 404 counts as success.
func (s *Service) Delete(ctx context.Context, ownerID, recordID string) error {
	removed := s.cache.RemoveOptimistic(ownerID, recordID)
	if removed == nil {
		return fmt.Errorf("delete %s: %w", recordID, remote.ErrNotFound)
	}
	s.cancelReminders(ctx, ownerID, recordID)

	if !removed.IsTemporary() && s.online() {
		err := s.datastore.DeleteRecord(ctx, ownerID, recordID)
		if err == nil || errors.Is(err, remote.ErrNotFound) {
			return nil
		}
		slog.Warn("inline delete failed, queueing",
			"owner_id", ownerID, "record_id", recordID, "error", err)
	}

	s.queue.Enqueue(ownerID, types.NewDelete(recordID))
	return nil
}

// List returns the owner's birthdays from the local cache, refreshing
// from the remote store first when the cache is stale and the device is
// online. The stale flag tells the caller the data could not be
// refreshed. List never returns an error: offline reads are the point.
func (s *Service) List(ctx context.Context, ownerID string) (records []types.BirthdayRecord, stale bool) {
	if s.cache.IsStale(ownerID) && s.online() {
		if err := s.Refresh(ctx, ownerID); err != nil {
			slog.Warn("cache refresh failed, serving stale data",
				"owner_id", ownerID, "error", err)
		}
	}

	entry := s.cache.Get(ownerID)
	return entry.Records, entry.StaleAfter(s.now(), s.cache.TTL())
}

// Refresh replaces the cached view with the remote store's, keeping
// locally created records that have not synced yet so an unlucky
// refresh cannot swallow an offline add.
func (s *Service) Refresh(ctx context.Context, ownerID string) error {
	fetched, err := s.datastore.ListRecords(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", ownerID, err)
	}

	var merged []types.BirthdayRecord
	for _, record := range s.cache.Get(ownerID).Records {
		if record.IsTemporary() {
			merged = append(merged, record)
		}
	}
	merged = append(merged, fetched...)

	s.cache.Put(ownerID, merged)
	return nil
}

// Sync drains the owner's pending queue against the remote store.
// Resolved temporary ids are patched through to the cache and the
// reminder registry.
func (s *Service) Sync(ctx context.Context, ownerID string) types.DrainSummary {
	apply := func(ctx context.Context, op types.Operation) (string, error) {
		return s.applyFor(ctx, ownerID, op)
	}
	return s.queue.Drain(ctx, ownerID, s.probe, s.reconciler(), apply)
}

// SyncAll drains every owner with pending work, in owner order.
func (s *Service) SyncAll(ctx context.Context) map[string]types.DrainSummary {
	summaries := make(map[string]types.DrainSummary)
	for _, ownerID := range s.queue.Owners() {
		summaries[ownerID] = s.Sync(ctx, ownerID)
	}
	return summaries
}

// Pending returns the owner's queued mutations, oldest first.
func (s *Service) Pending(ownerID string) []types.SyncQueueItem {
	return s.queue.List(ownerID)
}

// applyFor performs one queued operation against the remote store.
func (s *Service) applyFor(ctx context.Context, ownerID string, op types.Operation) (string, error) {
	switch op.Kind {
	case types.OpCreate:
		return s.datastore.CreateRecord(ctx, ownerID, op.Create.Payload)
	case types.OpUpdate:
		return "", s.datastore.UpdateRecord(ctx, ownerID, op.Update.TargetID, op.Update.Payload)
	case types.OpDelete:
		err := s.datastore.DeleteRecord(ctx, ownerID, op.Delete.TargetID)
		if errors.Is(err, remote.ErrNotFound) {
			// Already gone remotely; the intent is satisfied.
			return "", nil
		}
		return "", err
	default:
		return "", fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

func (s *Service) online() bool {
	return s.probe == nil || s.probe.IsOnline()
}

func (s *Service) find(ownerID, recordID string) *types.BirthdayRecord {
	for _, record := range s.cache.Get(ownerID).Records {
		if record.ID == recordID {
			return &record
		}
	}
	return nil
}

func (s *Service) reschedule(ctx context.Context, record types.BirthdayRecord) {
	if s.reminders != nil {
		s.reminders.Reschedule(ctx, record)
	}
}

func (s *Service) cancelReminders(ctx context.Context, ownerID, recordID string) {
	if s.reminders != nil {
		s.reminders.CancelAll(ctx, ownerID, recordID)
	}
}

// reconciler bridges drain resolutions to both the cache and the
// reminder registry.
func (s *Service) reconciler() syncq.Reconciler {
	return reconcileFanout{s}
}

type reconcileFanout struct {
	s *Service
}

func (r reconcileFanout) Reconcile(ownerID, temporaryID, realID string) {
	r.s.cache.Reconcile(ownerID, temporaryID, realID)
	if r.s.reminders != nil {
		r.s.reminders.Rekey(ownerID, temporaryID, realID)
	}
}
