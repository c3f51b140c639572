// Package schedule converts a birthday's calendar date into concrete
// future reminder instants. The planner is pure date math; delivery is
// handled by the notify package.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/candleworks/candle/internal/types"
)

// DefaultMinLead is the minimum lead time before a reminder may fire.
// Candidates closer than this to "now" are discarded, which guards
// against a misleadingly-immediate "7-day advance" notification when a
// user adds a birthday that is today or tomorrow.
const DefaultMinLead = 60 * time.Second

// ErrUnparseableDate is returned when a birthday date string matches no
// supported format.
var ErrUnparseableDate = errors.New("unparseable birthday date")

// birthday date formats: full ISO date, or month-day only (vCard
// truncated form) when the year is unknown.
var dateFormats = []string{"2006-01-02", "--01-02"}

// TimeOfDay is a fixed wall-clock delivery time.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "15:04" into a TimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Planner computes reminder candidates for birthdays.
type Planner struct {
	clock   Clock
	minLead time.Duration
	// delivery time of day per offset; distinct per offset so the
	// day-before nudge can land in the evening while the day-of
	// greeting lands in the morning.
	times map[types.ReminderOffset]TimeOfDay
	// loc overrides the local timezone when set.
	loc *time.Location
}

// Option configures a Planner.
type Option func(*Planner)

// WithClock replaces the planner's clock.
func WithClock(c Clock) Option {
	return func(p *Planner) { p.clock = c }
}

// WithMinLead overrides the minimum lead time.
func WithMinLead(d time.Duration) Option {
	return func(p *Planner) { p.minLead = d }
}

// WithTimeOfDay sets the delivery time for one offset.
func WithTimeOfDay(offset types.ReminderOffset, tod TimeOfDay) Option {
	return func(p *Planner) { p.times[offset] = tod }
}

// WithLocation overrides the scheduling timezone. Without it, instants
// are computed in the clock's local zone.
func WithLocation(loc *time.Location) Option {
	return func(p *Planner) { p.loc = loc }
}

// NewPlanner creates a planner with sensible delivery times: morning
// for the week-ahead and day-of reminders, evening for the eve nudge.
func NewPlanner(opts ...Option) *Planner {
	p := &Planner{
		clock:   RealClock{},
		minLead: DefaultMinLead,
		times: map[types.ReminderOffset]TimeOfDay{
			types.OffsetWeekBefore: {Hour: 9},
			types.OffsetDayBefore:  {Hour: 18},
			types.OffsetDayOf:      {Hour: 9},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseDate extracts the month and day from a birthday date string.
func ParseDate(value string) (time.Month, int, error) {
	for _, f := range dateFormats {
		if t, err := time.Parse(f, value); err == nil {
			return t.Month(), t.Day(), nil
		}
	}
	return 0, 0, fmt.Errorf("%w: %q", ErrUnparseableDate, value)
}

// NextOccurrence returns the nearest future date matching the
// birthday's month and day, relative to now. A birthday strictly
// before today rolls forward to next year; today counts as this year.
//
// Feb-29 birthdays normalize to Mar-1 in non-leap years; this is the
// documented rule, matching time.Date's overflow behavior.
func (p *Planner) NextOccurrence(now time.Time, month time.Month, day int) time.Time {
	loc := p.location(now)

	candidate := time.Date(now.Year(), month, day, 0, 0, 0, 0, loc)
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	if candidate.Before(todayStart) {
		candidate = time.Date(now.Year()+1, month, day, 0, 0, 0, 0, loc)
	}

	return candidate
}

// Plan computes the surviving reminder candidates for a birthday date
// string, in week-before, day-before, day-of order, plus the count of
// discarded candidates.
func (p *Planner) Plan(date string) ([]types.ReminderCandidate, int, error) {
	month, day, err := ParseDate(date)
	if err != nil {
		return nil, 0, err
	}

	now := p.clock.Now()
	occurrence := p.NextOccurrence(now, month, day)
	loc := p.location(now)
	horizon := now.Add(p.minLead)

	offsets := []types.ReminderOffset{
		types.OffsetWeekBefore,
		types.OffsetDayBefore,
		types.OffsetDayOf,
	}

	var kept []types.ReminderCandidate
	skipped := 0

	for _, offset := range offsets {
		tod := p.times[offset]
		// Calendar-day subtraction via date normalization, so a DST
		// transition does not shift the delivery time of day.
		fireAt := time.Date(
			occurrence.Year(), occurrence.Month(), occurrence.Day()-offset.Days(),
			tod.Hour, tod.Minute, 0, 0, loc)

		if !fireAt.After(horizon) {
			skipped++
			continue
		}

		kept = append(kept, types.ReminderCandidate{Offset: offset, FireAt: fireAt})
	}

	return kept, skipped, nil
}

func (p *Planner) location(now time.Time) *time.Location {
	if p.loc != nil {
		return p.loc
	}
	return now.Location()
}
