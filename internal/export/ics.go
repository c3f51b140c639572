// Package export renders birthday records as an iCalendar feed that
// calendar clients can subscribe to.
package export

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/emersion/go-ical"

	"github.com/candleworks/candle/internal/schedule"
	"github.com/candleworks/candle/internal/types"
)

const (
	icalVersion = "2.0"
	icalProdID  = "-//Candle//Birthday Feed//EN"
	icalCalName = "Birthdays"
	icalScale   = "GREGORIAN"
	icalMethod  = "PUBLISH"
	icalDomain  = "candleworks.dev"

	propVersion     = "VERSION"
	propProdID      = "PRODID"
	propCalName     = "X-WR-CALNAME"
	propCalScale    = "CALSCALE"
	propMethod      = "METHOD"
	propRefresh     = "REFRESH-INTERVAL"
	propUID         = "UID"
	propSummary     = "SUMMARY"
	propDTStart     = "DTSTART"
	propDTStamp     = "DTSTAMP"
	propAction      = "ACTION"
	propDescription = "DESCRIPTION"
	propTrigger     = "TRIGGER"

	refreshInterval = time.Hour
)

// stubCalendar is a minimal valid VCALENDAR, returned when there are no
// events so subscribed clients do not flag the feed as broken.
const stubCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + icalProdID + "\r\nEND:VCALENDAR\r\n"

// Generator renders birthday records as an ICS document. Events are
// emitted for the previous, current, and next year so calendar clients
// can scroll without an immediate re-sync.
type Generator struct {
	clock schedule.Clock

	// AlarmTrigger is an RFC 5545 trigger (for example "-PT9H") added
	// as a DISPLAY alarm on each event. Empty disables alarms.
	AlarmTrigger string
}

// NewGenerator returns a Generator using the real clock.
func NewGenerator() *Generator {
	return &Generator{clock: schedule.RealClock{}}
}

// Generate renders the records as an iCalendar document.
// Records whose date cannot be parsed are skipped.
func (g *Generator) Generate(records []types.BirthdayRecord) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(propVersion, icalVersion)
	cal.Props.SetText(propProdID, icalProdID)
	cal.Props.SetText(propCalName, icalCalName)
	cal.Props.SetText(propCalScale, icalScale)
	cal.Props.SetText(propMethod, icalMethod)

	refreshProp := ical.NewProp(propRefresh)
	refreshProp.SetDuration(refreshInterval)
	cal.Props.Set(refreshProp)

	now := g.clock.Now()
	dtStampProp := ical.NewProp(propDTStamp)
	dtStampProp.SetDateTime(now.UTC())

	for _, record := range records {
		for _, event := range g.events(record, now) {
			event.Props.Set(dtStampProp)
			cal.Children = append(cal.Children, event.Component)
		}
	}

	if len(cal.Children) == 0 {
		return []byte(stubCalendar), nil
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

// events builds the per-year all-day events for one record.
func (g *Generator) events(record types.BirthdayRecord, now time.Time) []*ical.Event {
	month, day, err := schedule.ParseDate(record.Date)
	if err != nil {
		return nil
	}
	birthYear, yearKnown := parseYear(record.Date)

	loc := now.Location()
	uidBase := stableUID(record)

	var events []*ical.Event
	for _, year := range []int{now.Year() - 1, now.Year(), now.Year() + 1} {
		if yearKnown && year < birthYear {
			continue // not born yet
		}

		event := ical.NewEvent()
		event.Props.SetText(propUID, fmt.Sprintf("%s-%d@%s", uidBase, year, icalDomain))

		summary := fmt.Sprintf("%s's birthday", record.Name)
		if yearKnown {
			summary = fmt.Sprintf("%s's birthday (%d)", record.Name, year-birthYear)
		}
		event.Props.SetText(propSummary, summary)

		// time.Date normalizes Feb 29 to Mar 1 in non-leap years,
		// matching how reminders are planned.
		eventDate := time.Date(year, month, day, 0, 0, 0, 0, loc)
		dtStartProp := ical.NewProp(propDTStart)
		dtStartProp.SetDate(eventDate)
		event.Props.Set(dtStartProp)

		if g.AlarmTrigger != "" {
			addAlarm(event, g.AlarmTrigger, summary)
		}

		events = append(events, event)
	}
	return events
}

// addAlarm appends a DISPLAY alarm to the event. The trigger value is
// set raw to avoid an incorrect VALUE=TEXT parameter.
func addAlarm(event *ical.Event, trigger, description string) {
	alarm := ical.NewComponent("VALARM")
	alarm.Props.SetText(propAction, "DISPLAY")
	alarm.Props.SetText(propDescription, description)

	triggerProp := ical.NewProp(propTrigger)
	triggerProp.Value = trigger
	alarm.Props.Set(triggerProp)

	event.Children = append(event.Children, alarm)
}

// stableUID derives a deterministic event UID base so refreshes do not
// duplicate events in subscribed clients.
func stableUID(record types.BirthdayRecord) string {
	hash := sha256.Sum256([]byte(record.OwnerID + "/" + record.ID + "/" + record.Date))
	return fmt.Sprintf("%x", hash[:8])
}

// parseYear extracts the birth year when the record carries a full
// date. Month-day only dates ("--01-02") have no year.
func parseYear(date string) (int, bool) {
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0, false
	}
	return parsed.Year(), true
}
