package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/api/option"

	"github.com/teranos/inout/errors"
	"github.com/teranos/inout/policy"
	"github.com/teranos/inout/record"
	"github.com/teranos/inout/resolve"
	"github.com/teranos/inout/write"
)

// fakeAPI is an in-memory Calendar API.
type fakeAPI struct {
	mu        sync.Mutex
	calendars []map[string]any
	events    map[string][]map[string]any
	inserts   int
	lastQuery map[string]string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		calendars: []map[string]any{
			{"id": "me@example.com", "summary": "me@example.com", "primary": true, "accessRole": "owner"},
			{"id": "team@group.calendar.google.com", "summary": "Team", "accessRole": "writer"},
		},
		events: map[string][]map[string]any{},
	}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "/users/me/calendarList") && r.Method == http.MethodGet:
		writeJSON(w, map[string]any{"items": f.calendars})

	case strings.HasSuffix(path, "/events"):
		id := path[strings.Index(path, "/calendars/")+len("/calendars/") : len(path)-len("/events")]
		if r.Method == http.MethodGet {
			f.listEvents(w, r, id)
			return
		}
		var ev map[string]any
		_ = json.NewDecoder(r.Body).Decode(&ev)
		if ev["summary"] == "forbidden" {
			w.WriteHeader(http.StatusForbidden)
			writeJSON(w, map[string]any{"error": map[string]any{"code": 403, "message": "Forbidden"}})
			return
		}
		f.inserts++
		ev["id"] = fmt.Sprintf("evt-%d", f.inserts)
		f.events[id] = append(f.events[id], ev)
		writeJSON(w, ev)

	case strings.HasSuffix(path, "/calendars") && r.Method == http.MethodPost:
		var cal map[string]any
		_ = json.NewDecoder(r.Body).Decode(&cal)
		cal["id"] = fmt.Sprintf("cal-%d@group.calendar.google.com", len(f.calendars))
		f.calendars = append(f.calendars, cal)
		writeJSON(w, cal)

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAPI) listEvents(w http.ResponseWriter, r *http.Request, id string) {
	q := r.URL.Query()
	f.lastQuery = map[string]string{}
	for k := range q {
		f.lastQuery[k] = q.Get(k)
	}

	items := f.events[id]
	if text := q.Get("q"); text != "" {
		var matched []map[string]any
		for _, ev := range items {
			if strings.Contains(fmt.Sprint(ev["summary"]), text) {
				matched = append(matched, ev)
			}
		}
		items = matched
	}

	offset, _ := strconv.Atoi(q.Get("pageToken"))
	// Small pages so listings exercise paging.
	size, _ := strconv.Atoi(q.Get("maxResults"))
	if size == 0 || size > 5 {
		size = 5
	}
	end := offset + size
	resp := map[string]any{}
	if end < len(items) {
		resp["nextPageToken"] = strconv.Itoa(end)
	} else {
		end = len(items)
	}
	resp["items"] = items[offset:end]
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{}, zaptest.NewLogger(t).Sugar(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	require.NoError(t, err)
	return c
}

func event(summary, start string) record.Record {
	return record.Record{
		"summary": summary,
		"start":   map[string]any{"dateTime": start, "timeZone": "UTC"},
		"end":     map[string]any{"dateTime": start, "timeZone": "UTC"},
	}
}

func TestListCollections(t *testing.T) {
	c := newTestClient(t, newFakeAPI())

	cals, err := c.ListCollections(context.Background())
	require.NoError(t, err)
	require.Len(t, cals, 2)
	assert.Equal(t, "me@example.com", cals[0].ID)
	assert.True(t, cals[0].Primary)
	assert.Equal(t, "Team", cals[1].Summary)
	assert.Equal(t, "writer", cals[1].AccessRole)
}

func TestListRecordsPagesAndLimits(t *testing.T) {
	api := newFakeAPI()
	for i := 0; i < 7; i++ {
		api.events["team@group.calendar.google.com"] = append(api.events["team@group.calendar.google.com"],
			map[string]any{"id": fmt.Sprintf("e%d", i), "summary": fmt.Sprintf("meeting %d", i)})
	}
	c := newTestClient(t, api)
	ctx := context.Background()

	all, err := c.ListRecords(ctx, "team@group.calendar.google.com", Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 7)

	limited, err := c.ListRecords(ctx, "team@group.calendar.google.com", Filter{MaxResults: 3})
	require.NoError(t, err)
	require.Len(t, limited, 3)
	assert.Equal(t, "e0", limited[0]["id"])

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	filtered, err := c.ListRecords(ctx, "team@group.calendar.google.com", Filter{
		Query:        "meeting 4",
		TimeMin:      from,
		SingleEvents: true,
	})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "meeting 4", filtered[0]["summary"])
	assert.Equal(t, "2024-05-01T00:00:00Z", api.lastQuery["timeMin"])
	assert.Equal(t, "true", api.lastQuery["singleEvents"])
	assert.Equal(t, "startTime", api.lastQuery["orderBy"])
}

func TestQueryAsTable(t *testing.T) {
	api := newFakeAPI()
	api.events["primary"] = []map[string]any{{"id": "e1", "summary": "standup"}}
	c := newTestClient(t, api)

	table, err := c.Query(context.Background(), "primary", Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
	assert.Contains(t, table.Columns, "summary")
}

func TestInsertRecordKeepsAPIStatus(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(t, api)
	ctx := context.Background()

	require.NoError(t, c.InsertRecord(ctx, "primary", event("standup", "2024-05-01T09:00:00Z")))
	require.Len(t, api.events["primary"], 1)
	assert.Equal(t, "standup", api.events["primary"][0]["summary"])

	err := c.InsertRecord(ctx, "primary", event("forbidden", "2024-05-01T09:00:00Z"))
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, errors.StatusCode(err))

	var be *errors.BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "calendar", be.Backend)
}

func TestInsertRecordRejectsMalformedEvent(t *testing.T) {
	c := newTestClient(t, newFakeAPI())

	err := c.InsertRecord(context.Background(), "primary", record.Record{"start": "tomorrow"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, errors.StatusCode(err))
}

func TestEventsTargetExists(t *testing.T) {
	c := newTestClient(t, newFakeAPI())
	ctx := context.Background()

	for id, want := range map[string]bool{
		"primary":                        true,
		"me@example.com":                 true,
		"team@group.calendar.google.com": true,
		"nope@group.calendar.google.com": false,
	} {
		got, err := c.Events(id).Exists(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got, id)
	}
}

func TestWriteEventsIgnoringConflicts(t *testing.T) {
	api := newFakeAPI()
	api.events["team@group.calendar.google.com"] = []map[string]any{
		{"id": "existing-1", "summary": "Testing3"},
	}
	c := newTestClient(t, api)

	res, err := write.New(nil).Write(context.Background(), c.Events("team@group.calendar.google.com"), write.Request{
		Records: []record.Record{
			event("Testing", "2023-08-12T17:00:00Z"),
			event("Testing3", "2023-08-12T17:00:00Z"),
			event("Testing4", "2023-08-12T18:00:00Z"),
		},
		AssetPolicy: policy.Append,
		DataPolicy:  policy.Ignore,
		ConflictKey: resolve.Key{"summary"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Len(t, api.events["team@group.calendar.google.com"], 3)

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	var envelope struct {
		Data map[string][]resolve.Conflict `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope))
	ignored := envelope.Data["ignored_events_due_to_conflict"]
	require.Len(t, ignored, 1)
	assert.Equal(t, 1, ignored[0].Index)
	assert.Equal(t, []string{"existing-1"}, ignored[0].ExistingIDs)
}

func TestWriteEventsMissingCalendar(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(t, api)

	res, err := write.New(nil).Write(context.Background(), c.Events("nope@group.calendar.google.com"), write.Request{
		Records:     []record.Record{event("Testing", "2023-08-12T17:00:00Z")},
		AssetPolicy: policy.Append,
		DataPolicy:  policy.Append,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Zero(t, api.inserts)

	_, err = write.New(nil).Write(context.Background(), c.Events("nope@group.calendar.google.com"), write.Request{
		Records:         []record.Record{event("Testing", "2023-08-12T17:00:00Z")},
		AssetPolicy:     policy.Append,
		DataPolicy:      policy.Append,
		CreateIfMissing: true,
	})
	assert.True(t, errors.IsUnsupported(err), "calendars cannot be created as write targets")
}

func TestWriteEventsPartialFailure(t *testing.T) {
	c := newTestClient(t, newFakeAPI())

	res, err := write.New(nil).Write(context.Background(), c.Events("primary"), write.Request{
		Records: []record.Record{
			event("standup", "2024-05-01T09:00:00Z"),
			event("forbidden", "2024-05-01T10:00:00Z"),
		},
		AssetPolicy: policy.Append,
		DataPolicy:  policy.Append,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusMultiStatus, res.StatusCode)
	require.Len(t, res.Data.Reasons, 1)
	assert.Equal(t, http.StatusForbidden, res.Data.Reasons[0].StatusCode)
	assert.Equal(t, 1, res.Data.Reasons[0].Index)
}

func TestCreateCalendarWithConflictCheck(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(t, api)
	o := write.New(nil)
	ctx := context.Background()
	req := write.Request{
		Records:     []record.Record{{"summary": "Team"}},
		AssetPolicy: policy.Append,
		DataPolicy:  policy.Fail,
	}

	res, err := o.Write(ctx, c.Calendars(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Len(t, api.calendars, 2)

	req.Records = []record.Record{{"summary": "Holidays", "timeZone": "Europe/London"}}
	res, err = o.Write(ctx, c.Calendars(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	require.Len(t, api.calendars, 3)
	assert.Equal(t, "Europe/London", api.calendars[2]["timeZone"])

	res, err = o.Write(ctx, c.Calendars(), write.Request{
		Records:     []record.Record{{"description": "no summary"}},
		AssetPolicy: policy.Append,
		DataPolicy:  policy.Append,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestInsertsArePaced(t *testing.T) {
	api := newFakeAPI()
	srv := httptest.NewServer(api)
	defer srv.Close()

	c, err := New(context.Background(), Config{RequestsPerSecond: 20}, nil,
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, c.InsertRecord(context.Background(), "primary", event("e", "2024-05-01T09:00:00Z")))
	}
	assert.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
}
