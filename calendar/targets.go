package calendar

import (
	"context"

	"github.com/teranos/inout/record"
)

// EventsTarget writes events into one calendar.
type EventsTarget struct {
	client     *Client
	calendarID string
}

func (t *EventsTarget) Name() string { return "calendar " + t.calendarID }
func (t *EventsTarget) Noun() string { return "events" }

// Exists reports whether the calendar is on the user's calendar list.
// "primary" names the user's primary calendar.
func (t *EventsTarget) Exists(ctx context.Context) (bool, error) {
	entries, err := t.client.listCalendars(ctx)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Id == t.calendarID || (t.calendarID == "primary" && e.Primary) {
			return true, nil
		}
	}
	return false, nil
}

// Probe lists every event of the calendar. Events carry their id, so
// ignored conflicts report which events they collided with.
func (t *EventsTarget) Probe(ctx context.Context, _ []string) ([]record.Record, error) {
	return t.client.ListRecords(ctx, t.calendarID, Filter{})
}

func (t *EventsTarget) Insert(ctx context.Context, rec record.Record) error {
	return t.client.InsertRecord(ctx, t.calendarID, rec)
}

// CalendarsTarget creates calendars, checking the calendar list for ones
// that already match the new calendar's fields.
type CalendarsTarget struct {
	client *Client
}

func (t *CalendarsTarget) Name() string { return "calendar list" }
func (t *CalendarsTarget) Noun() string { return "calendars" }

// Exists is always true: every account has a calendar list.
func (t *CalendarsTarget) Exists(context.Context) (bool, error) { return true, nil }

func (t *CalendarsTarget) Probe(ctx context.Context, _ []string) ([]record.Record, error) {
	entries, err := t.client.listCalendars(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]record.Record, 0, len(entries))
	for _, e := range entries {
		rec, err := record.FromValue(e)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (t *CalendarsTarget) Insert(ctx context.Context, rec record.Record) error {
	return t.client.insertCalendar(ctx, rec)
}
