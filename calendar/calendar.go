// Package calendar reads and writes Google Calendar events.
//
// Calendars play the role of tables and events the role of rows. Events
// are exchanged as records shaped like the API's JSON representation
// (summary, start.dateTime, ...), so conflict keys may use dotted paths.
package calendar

import (
	"context"
	"encoding/json"
	"net"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teranos/inout/errors"
	"github.com/teranos/inout/logger"
	"github.com/teranos/inout/record"
)

// pageSize is the largest page events.list accepts.
const pageSize = 250

// Config describes how to authenticate and pace calls.
type Config struct {
	CredentialsFile string
	TokenFile       string

	// RequestsPerSecond paces inserts; zero or less means unpaced.
	RequestsPerSecond float64
	Timeout           time.Duration
	BlockPrivateIP    bool
}

// CollectionDescriptor describes one calendar of the user's calendar list.
type CollectionDescriptor struct {
	ID          string `json:"id" yaml:"id"`
	Summary     string `json:"summary" yaml:"summary"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	TimeZone    string `json:"time_zone,omitempty" yaml:"time_zone,omitempty"`
	AccessRole  string `json:"access_role,omitempty" yaml:"access_role,omitempty"`
	Primary     bool   `json:"primary,omitempty" yaml:"primary,omitempty"`
}

// Filter narrows an event listing.
type Filter struct {
	Query        string // free text, matched by the API against summary, description, location...
	TimeMin      time.Time
	TimeMax      time.Time
	SingleEvents bool // expand recurring events into instances
	MaxResults   int  // zero: no limit
}

// Client is an authenticated Calendar API client.
type Client struct {
	svc     *gcal.Service
	limiter *rate.Limiter
	log     *zap.SugaredLogger
}

// New builds a client. Without opts the cached OAuth token is used; tests
// pass option.WithHTTPClient and option.WithEndpoint instead.
func New(ctx context.Context, cfg Config, log *zap.SugaredLogger, opts ...option.ClientOption) (*Client, error) {
	log = logger.ComponentLogger(log, "calendar")

	if len(opts) == 0 {
		httpClient, err := HTTPClient(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		opts = []option.ClientOption{option.WithHTTPClient(httpClient)}
	}

	log.Infow("Initialising client")
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.WrapConnection(err, "create calendar service")
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{svc: svc, limiter: rate.NewLimiter(limit, 1), log: log}, nil
}

// ListCollections returns the user's calendar list.
func (c *Client) ListCollections(ctx context.Context) ([]CollectionDescriptor, error) {
	entries, err := c.listCalendars(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CollectionDescriptor, len(entries))
	for i, e := range entries {
		out[i] = CollectionDescriptor{
			ID:          e.Id,
			Summary:     e.Summary,
			Description: e.Description,
			TimeZone:    e.TimeZone,
			AccessRole:  e.AccessRole,
			Primary:     e.Primary,
		}
	}
	return out, nil
}

func (c *Client) listCalendars(ctx context.Context) ([]*gcal.CalendarListEntry, error) {
	c.log.Infow("Getting list of calendars available")
	var entries []*gcal.CalendarListEntry
	call := c.svc.CalendarList.List().Context(ctx)
	err := call.Pages(ctx, func(page *gcal.CalendarList) error {
		entries = append(entries, page.Items...)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(apiError(err), "list calendars")
	}
	c.log.Debugw("Got calendars", logger.FieldCount, len(entries))
	return entries, nil
}

// ListRecords returns the events of calendarID matching f.
func (c *Client) ListRecords(ctx context.Context, calendarID string, f Filter) ([]record.Record, error) {
	call := c.svc.Events.List(calendarID).Context(ctx).SingleEvents(f.SingleEvents)
	if f.Query != "" {
		call = call.Q(f.Query)
	}
	if !f.TimeMin.IsZero() {
		call = call.TimeMin(f.TimeMin.Format(time.RFC3339))
	}
	if !f.TimeMax.IsZero() {
		call = call.TimeMax(f.TimeMax.Format(time.RFC3339))
	}
	if f.SingleEvents {
		call = call.OrderBy("startTime")
	}
	size := pageSize
	if f.MaxResults > 0 && f.MaxResults < size {
		size = f.MaxResults
	}
	call = call.MaxResults(int64(size))

	var out []record.Record
	errStop := errors.New("enough events")
	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, ev := range page.Items {
			rec, err := record.FromValue(ev)
			if err != nil {
				return err
			}
			out = append(out, rec)
			if f.MaxResults > 0 && len(out) >= f.MaxResults {
				return errStop
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, errors.Wrapf(apiError(err), "list events of %s", calendarID)
	}
	c.log.Debugw("Listed events", logger.FieldCalendar, calendarID, logger.FieldCount, len(out))
	return out, nil
}

// Query lists events as a table whose columns are the union of the
// events' top-level fields.
func (c *Client) Query(ctx context.Context, calendarID string, f Filter) (*record.Table, error) {
	rows, err := c.ListRecords(ctx, calendarID, f)
	if err != nil {
		return nil, err
	}
	return record.NewTable(rows), nil
}

// InsertRecord creates one event.
func (c *Client) InsertRecord(ctx context.Context, calendarID string, rec record.Record) error {
	ev := &gcal.Event{}
	if err := fromRecord(rec, ev); err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "wait for rate limiter")
	}
	if _, err := c.svc.Events.Insert(calendarID, ev).Context(ctx).Do(); err != nil {
		return apiError(err)
	}
	return nil
}

// insertCalendar creates a secondary calendar.
func (c *Client) insertCalendar(ctx context.Context, rec record.Record) error {
	cal := &gcal.Calendar{}
	if err := fromRecord(rec, cal); err != nil {
		return err
	}
	if cal.Summary == "" {
		return errors.NewInvalidRequestError("calendar needs a summary")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "wait for rate limiter")
	}
	created, err := c.svc.Calendars.Insert(cal).Context(ctx).Do()
	if err != nil {
		return apiError(err)
	}
	c.log.Infow("Created calendar", logger.FieldCalendar, created.Id)
	return nil
}

// Events returns the write target for the events of calendarID.
func (c *Client) Events(calendarID string) *EventsTarget {
	return &EventsTarget{client: c, calendarID: calendarID}
}

// Calendars returns the write target for the calendar list.
func (c *Client) Calendars() *CalendarsTarget {
	return &CalendarsTarget{client: c}
}

// fromRecord fills an API object from a record through its JSON form.
func fromRecord(rec record.Record, v any) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(errors.NewInvalidRequestError("%v", err), "encode record")
	}
	if err := json.Unmarshal(b, v); err != nil {
		return errors.Wrap(errors.NewInvalidRequestError("%v", err), "record does not fit the calendar schema")
	}
	return nil
}

// apiError keeps the HTTP status of API errors and marks transport and
// token failures as connection errors.
func apiError(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return errors.NewBackendError("calendar", gerr.Code, err)
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return errors.WithHint(errors.WrapConnection(err, "calendar auth"), "run `inout calendar auth`")
	}
	var uerr *url.Error
	var nerr net.Error
	if errors.As(err, &uerr) || errors.As(err, &nerr) {
		return errors.WrapConnection(err, "calendar")
	}
	return errors.WithStack(err)
}
