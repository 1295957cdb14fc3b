// Package record is the tabular in-memory representation every adapter
// reads into and writes from.
package record

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teranos/inout/errors"
)

// Record maps a field name to its value: one row or one event.
// Values are scalars for tabular backends; calendar events also carry
// nested maps and lists.
type Record map[string]any

// IDField is the conventional identifier field. Probe rows that carry it
// let conflicts report which existing record they collided with.
const IDField = "id"

// FromValue converts any JSON-encodable value into a record through its
// JSON form.
func FromValue(v any) (Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode value")
	}
	rec := Record{}
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, errors.Wrap(err, "decode value as record")
	}
	return rec, nil
}

// Lookup resolves a field path. An exact key wins; otherwise dotted paths
// walk nested maps ("start.dateTime").
func (r Record) Lookup(path string) (any, bool) {
	if v, ok := r[path]; ok {
		return v, true
	}
	if !strings.Contains(path, ".") {
		return nil, false
	}

	var cur any = map[string]any(r)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Project returns a new record holding only the given field paths.
// Missing paths are skipped.
func (r Record) Project(paths []string) Record {
	out := make(Record, len(paths))
	for _, p := range paths {
		if v, ok := r.Lookup(p); ok {
			out[p] = v
		}
	}
	return out
}

// Fields returns the record's top-level field names, sorted.
func (r Record) Fields() []string {
	fields := make([]string, 0, len(r))
	for k := range r {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// Columns returns the union of top-level fields across records in
// first-seen order. Fields within one record are taken in sorted order.
func Columns(records []Record) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range records {
		for _, f := range r.Fields() {
			if !seen[f] {
				seen[f] = true
				cols = append(cols, f)
			}
		}
	}
	return cols
}

// Canonical renders a value so that values decoded by different drivers
// compare equal when they denote the same datum: integral numbers compare
// equal across int and float types, times compare in UTC, and nested values
// compare by canonical JSON.
func Canonical(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		return "b:" + strconv.FormatBool(x)
	case string:
		return "s:" + x
	case []byte:
		return "s:" + string(x)
	case int:
		return "n:" + strconv.FormatInt(int64(x), 10)
	case int8:
		return "n:" + strconv.FormatInt(int64(x), 10)
	case int16:
		return "n:" + strconv.FormatInt(int64(x), 10)
	case int32:
		return "n:" + strconv.FormatInt(int64(x), 10)
	case int64:
		return "n:" + strconv.FormatInt(x, 10)
	case uint:
		return "n:" + strconv.FormatUint(uint64(x), 10)
	case uint8:
		return "n:" + strconv.FormatUint(uint64(x), 10)
	case uint16:
		return "n:" + strconv.FormatUint(uint64(x), 10)
	case uint32:
		return "n:" + strconv.FormatUint(uint64(x), 10)
	case uint64:
		return "n:" + strconv.FormatUint(x, 10)
	case float32:
		return canonicalFloat(float64(x))
	case float64:
		return canonicalFloat(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return "n:" + strconv.FormatInt(i, 10)
		}
		if f, err := x.Float64(); err == nil {
			return canonicalFloat(f)
		}
		return "s:" + x.String()
	case time.Time:
		return "t:" + x.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil {
			return "null"
		}
		return "t:" + x.UTC().Format(time.RFC3339Nano)
	case interface{ String() string }:
		return "s:" + x.String()
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "?:" + strconv.Quote(err.Error())
	}
	return "j:" + string(data)
}

func canonicalFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return "n:" + strconv.FormatInt(int64(f), 10)
	}
	return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Record:
		return m, true
	}
	return nil, false
}
