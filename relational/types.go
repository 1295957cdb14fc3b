package relational

import "github.com/teranos/inout/record"

// columnType maps an inferred kind to the dialect's column type.
func columnType(d Dialect, k record.Kind) string {
	switch k {
	case record.Integer:
		if d == SQLite {
			return "INTEGER"
		}
		return "BIGINT"
	case record.Float:
		if d == SQLite {
			return "REAL"
		}
		return "DOUBLE PRECISION"
	case record.Boolean:
		return "BOOLEAN"
	case record.Timestamp:
		return "TIMESTAMP"
	case record.TimestampTZ:
		return "TIMESTAMPTZ"
	}
	return "TEXT"
}
