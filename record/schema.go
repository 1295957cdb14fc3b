package record

import (
	"encoding/json"
	"time"
)

// Kind is the generic scalar kind of a column. Adapters map kinds onto
// their native column types.
type Kind uint8

const (
	Text Kind = iota
	Integer
	Float
	Boolean
	Timestamp
	TimestampTZ
)

func (k Kind) String() string {
	switch k {
	case Integer:
		return "integer"
	case Float:
		return "float"
	case Boolean:
		return "boolean"
	case Timestamp:
		return "timestamp"
	case TimestampTZ:
		return "timestamptz"
	}
	return "text"
}

// Column is one named, typed column.
type Column struct {
	Name string
	Kind Kind
}

// Schema is an ordered column list.
type Schema []Column

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// InferSchema derives a schema from the records' values. Integers widen to
// Float when mixed with floats; any other mix, nested values and all-nil
// columns are Text. A time.Time in time.Local is a wall-clock Timestamp,
// any other location is TimestampTZ.
func InferSchema(records []Record) Schema {
	cols := Columns(records)
	schema := make(Schema, 0, len(cols))
	for _, name := range cols {
		schema = append(schema, Column{Name: name, Kind: inferColumn(records, name)})
	}
	return schema
}

func inferColumn(records []Record, name string) Kind {
	var kind Kind
	seen := false
	for _, r := range records {
		v, ok := r[name]
		if !ok || v == nil {
			continue
		}
		k, scalar := KindOf(v)
		if !scalar {
			return Text
		}
		if !seen {
			kind, seen = k, true
			continue
		}
		if k == kind {
			continue
		}
		if (k == Integer && kind == Float) || (k == Float && kind == Integer) {
			kind = Float
			continue
		}
		if (k == Timestamp && kind == TimestampTZ) || (k == TimestampTZ && kind == Timestamp) {
			kind = TimestampTZ
			continue
		}
		return Text
	}
	return kind
}

// KindOf classifies a single value. The second result is false for nested
// values that have no scalar kind.
func KindOf(v any) (Kind, bool) {
	switch x := v.(type) {
	case string, []byte:
		return Text, true
	case bool:
		return Boolean, true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Integer, true
	case float32, float64:
		return Float, true
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return Integer, true
		}
		return Float, true
	case time.Time:
		if x.Location() == time.Local {
			return Timestamp, true
		}
		return TimestampTZ, true
	case map[string]any, Record, []any:
		return Text, false
	}
	return Text, true
}
