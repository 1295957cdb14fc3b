package write

import (
	"context"

	"github.com/teranos/inout/record"
)

// Target is a named collection an adapter can write into: a table, a
// keyspace table, a calendar, or the calendar list itself.
type Target interface {
	// Name identifies the target in messages and logs.
	Name() string

	// Noun names the target's records in result keys ("rows", "events").
	Noun() string

	// Exists reports whether the target collection exists.
	Exists(ctx context.Context) (bool, error)

	// Probe returns the existing records, carrying at least fields and,
	// where the backend has one, record.IDField.
	Probe(ctx context.Context, fields []string) ([]record.Record, error)

	// Insert writes a single record.
	Insert(ctx context.Context, rec record.Record) error
}

// Creator is implemented by targets that can be created on demand and
// removed again when the write that created them aborts.
type Creator interface {
	Create(ctx context.Context, schema record.Schema) error
	Drop(ctx context.Context) error
}
