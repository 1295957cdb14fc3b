package record

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	event := Record{
		"summary": "Standup",
		"start":   map[string]any{"dateTime": "2023-08-12T17:00:00", "timeZone": "UTC"},
		"a.b":     "literal dotted key",
	}

	v, ok := event.Lookup("summary")
	require.True(t, ok)
	assert.Equal(t, "Standup", v)

	v, ok = event.Lookup("start.timeZone")
	require.True(t, ok)
	assert.Equal(t, "UTC", v)

	v, ok = event.Lookup("a.b")
	require.True(t, ok)
	assert.Equal(t, "literal dotted key", v)

	_, ok = event.Lookup("start.date")
	assert.False(t, ok)
	_, ok = event.Lookup("summary.length")
	assert.False(t, ok)
	_, ok = event.Lookup("location")
	assert.False(t, ok)
}

func TestLookupNilValueIsPresent(t *testing.T) {
	v, ok := Record{"deleted_at": nil}.Lookup("deleted_at")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestProject(t *testing.T) {
	r := Record{"id": 1, "name": "ada", "start": map[string]any{"date": "2024-01-01"}}
	assert.Equal(t, Record{"name": "ada", "start.date": "2024-01-01"}, r.Project([]string{"name", "start.date", "missing"}))
}

func TestColumns(t *testing.T) {
	rows := []Record{
		{"b": 1, "a": 2},
		{"c": 3, "a": 4},
	}
	assert.Equal(t, []string{"a", "b", "c"}, Columns(rows))
	assert.Empty(t, Columns(nil))
}

func TestCanonical(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	id := uuid.MustParse("0b7e7dee-87fa-4f0b-8a38-1f4c2f6c9e8e")

	equal := [][2]any{
		{int(5), int64(5)},
		{int32(5), float64(5)},
		{uint8(5), json.Number("5")},
		{ts, ts.UTC()},
		{[]byte("x"), "x"},
		{id, id.String()},
		{map[string]any{"b": 1, "a": 2}, map[string]any{"a": 2, "b": 1}},
	}
	for _, pair := range equal {
		assert.Equal(t, Canonical(pair[0]), Canonical(pair[1]), "%#v vs %#v", pair[0], pair[1])
	}

	different := [][2]any{
		{"5", 5},
		{true, "true"},
		{nil, ""},
		{1.5, 1},
	}
	for _, pair := range different {
		assert.NotEqual(t, Canonical(pair[0]), Canonical(pair[1]), "%#v vs %#v", pair[0], pair[1])
	}
}

func TestInferSchema(t *testing.T) {
	local := time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local)
	rows := []Record{
		{"id": 1, "score": 1, "active": true, "name": "a", "seen": local, "at": local.UTC(), "meta": map[string]any{"k": 1}, "empty": nil},
		{"id": 2, "score": 2.5, "active": false, "name": 7, "seen": local},
	}

	schema := InferSchema(rows)
	kinds := make(map[string]Kind)
	for _, c := range schema {
		kinds[c.Name] = c.Kind
	}

	assert.Equal(t, Integer, kinds["id"])
	assert.Equal(t, Float, kinds["score"])
	assert.Equal(t, Boolean, kinds["active"])
	assert.Equal(t, Text, kinds["name"])
	assert.Equal(t, Timestamp, kinds["seen"])
	assert.Equal(t, TimestampTZ, kinds["at"])
	assert.Equal(t, Text, kinds["meta"])
	assert.Equal(t, Text, kinds["empty"])
	assert.Equal(t, Columns(rows), schema.Names())
}

func TestTableValues(t *testing.T) {
	table := NewTable([]Record{{"a": 1, "b": "x"}, {"a": 2}})
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, [][]string{{"n:1", "s:x"}, {"n:2", ""}}, table.Values(Canonical))

	var empty *Table
	assert.Equal(t, 0, empty.Len())
}

func TestLoad(t *testing.T) {
	t.Run("json array", func(t *testing.T) {
		rows, err := Load(strings.NewReader(`[{"id": 1, "score": 2.5, "tags": [1, "a"]}]`), FormatJSON)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, int64(1), rows[0]["id"])
		assert.Equal(t, 2.5, rows[0]["score"])
		assert.Equal(t, []any{int64(1), "a"}, rows[0]["tags"])
	})

	t.Run("json lines", func(t *testing.T) {
		rows, err := Load(strings.NewReader("{\"summary\":\"a\"}\n\n{\"summary\":\"b\"}\n"), FormatJSONL)
		require.NoError(t, err)
		assert.Equal(t, []Record{{"summary": "a"}, {"summary": "b"}}, rows)
	})

	t.Run("yaml", func(t *testing.T) {
		rows, err := Load(strings.NewReader("- summary: Testing\n  start:\n    timeZone: UTC\n"), FormatYAML)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		v, ok := rows[0].Lookup("start.timeZone")
		require.True(t, ok)
		assert.Equal(t, "UTC", v)
	})

	t.Run("csv", func(t *testing.T) {
		rows, err := Load(strings.NewReader("id,name,score,ok,note\n1,ada,2.5,true,\n"), FormatCSV)
		require.NoError(t, err)
		assert.Equal(t, []Record{{"id": int64(1), "name": "ada", "score": 2.5, "ok": true, "note": nil}}, rows)
	})

	t.Run("csv non-finite numbers stay text", func(t *testing.T) {
		rows, err := Load(strings.NewReader("a,b,c,d\nNaN,Inf,-Infinity,1e3\n"), FormatCSV)
		require.NoError(t, err)
		assert.Equal(t, []Record{{"a": "NaN", "b": "Inf", "c": "-Infinity", "d": 1000.0}}, rows)

		_, err = json.Marshal(rows)
		assert.NoError(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := Load(strings.NewReader(`{"not": "a list"}`), FormatJSON)
		assert.Error(t, err)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := Load(strings.NewReader(""), Format("xml"))
		assert.Error(t, err)
	})
}

func TestFormatFromPath(t *testing.T) {
	for path, want := range map[string]Format{
		"events.json":  FormatJSON,
		"rows.NDJSON":  FormatJSONL,
		"people.yml":   FormatYAML,
		"dump/out.csv": FormatCSV,
	} {
		got, err := FormatFromPath(path)
		require.NoError(t, err)
		assert.Equal(t, want, got, path)
	}

	_, err := FormatFromPath("rows.parquet")
	assert.Error(t, err)
}
