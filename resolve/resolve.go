// Package resolve partitions incoming records against the data already held
// by a write target.
//
// A record conflicts when its conflict-key tuple equals the tuple of any
// existing (probed) row. What happens to conflicting records depends on the
// data-level policy:
//
//	append   conflicts are not checked at all
//	ignore   conflicting records are dropped and reported
//	fail     any conflict aborts the whole write
//	replace  not implemented; always ErrUnsupportedPolicy
package resolve

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/teranos/inout/errors"
	"github.com/teranos/inout/policy"
	"github.com/teranos/inout/record"
)

// Key is the ordered list of field paths whose values identify a record
// for conflict purposes.
type Key []string

// Decision is the overall outcome of a resolution.
type Decision uint8

const (
	// DecisionProceed means every incoming record may be written.
	DecisionProceed Decision = iota

	// DecisionPartial means some records were dropped as conflicts.
	DecisionPartial

	// DecisionAbort means nothing may be written.
	DecisionAbort
)

func (d Decision) String() string {
	switch d {
	case DecisionPartial:
		return "partial"
	case DecisionAbort:
		return "abort"
	}
	return "proceed"
}

// Entry is an incoming record with its position in the input.
type Entry struct {
	Index  int           `json:"index"`
	Record record.Record `json:"record"`
}

// Conflict is an incoming record that collides with existing data.
type Conflict struct {
	Index  int           `json:"index"`
	Record record.Record `json:"record"`

	// ExistingIDs lists the ids of the probed rows it collides with, when
	// the probe carried an id field.
	ExistingIDs []string `json:"existing_ids,omitempty"`
}

// Resolution is the partition of the incoming records.
type Resolution struct {
	Decision  Decision
	Write     []Entry
	Conflicts []Conflict
}

// Validate rejects policies no backend implements, before any I/O happens.
func Validate(p policy.Policy) error {
	if !p.Valid() {
		return errors.NewInvalidRequestError("invalid data conflict policy %d", uint8(p))
	}
	if !p.Implemented() {
		return errors.WithHint(
			errors.NewUnsupportedError("on_data_conflict=%s is not implemented", p),
			"use append, ignore or fail",
		)
	}
	return nil
}

// DefaultKey is the key a record is matched on when the caller names none:
// every field of that record.
func DefaultKey(r record.Record) Key {
	return Key(r.Fields())
}

// ProbeFields lists the fields a probe must return so that every incoming
// record can be matched under key. An empty key means each record's own
// fields, so the union across records is needed.
func ProbeFields(incoming []record.Record, key Key) []string {
	if len(key) > 0 {
		return []string(key)
	}
	return record.Columns(incoming)
}

// Resolve partitions incoming against probe under key and policy p.
// Input order is preserved in both partitions.
func Resolve(probe []record.Record, incoming []record.Record, key Key, p policy.Policy) (Resolution, error) {
	if err := Validate(p); err != nil {
		return Resolution{}, err
	}

	if p == policy.Append {
		entries := make([]Entry, len(incoming))
		for i, r := range incoming {
			entries[i] = Entry{Index: i, Record: r}
		}
		return Resolution{Decision: DecisionProceed, Write: entries}, nil
	}

	// An empty key matches each record on its own fields; only a key the
	// caller named can be missing from a record.
	keys := make([]Key, len(incoming))
	tuples := make([]string, len(incoming))
	for i, r := range incoming {
		keys[i] = key
		if len(key) == 0 {
			keys[i] = DefaultKey(r)
		}
		tuple, err := keys[i].Tuple(r)
		if err != nil {
			return Resolution{}, errors.WithStack(&MissingKeyError{Index: i, Err: err})
		}
		tuples[i] = tuple
	}

	sets := make(map[string]*KeySet)
	var res Resolution
	for i, r := range incoming {
		id := keys[i].String()
		existing, ok := sets[id]
		if !ok {
			existing = NewKeySet(probe, keys[i])
			sets[id] = existing
		}
		ids, hit := existing.Match(tuples[i])
		if !hit {
			res.Write = append(res.Write, Entry{Index: i, Record: r})
			continue
		}
		res.Conflicts = append(res.Conflicts, Conflict{Index: i, Record: r, ExistingIDs: ids})
	}

	switch {
	case len(res.Conflicts) == 0:
		res.Decision = DecisionProceed
	case p == policy.Fail:
		res.Decision = DecisionAbort
		res.Write = nil
	default:
		res.Decision = DecisionPartial
	}
	return res, nil
}

// Tuple computes the canonical key tuple of r. A field missing from r is
// ErrMissingKeyField; it is never coerced or skipped.
//
// Each part is quoted, so distinct value lists never share a tuple whatever
// bytes the values hold.
func (k Key) Tuple(r record.Record) (string, error) {
	parts := make([]string, len(k))
	for i, field := range k {
		v, ok := r.Lookup(field)
		if !ok {
			return "", errors.Wrapf(errors.ErrMissingKeyField, "field %q", field)
		}
		parts[i] = strconv.Quote(record.Canonical(v))
	}
	return strings.Join(parts, ","), nil
}

// String renders the key as its quoted field names.
func (k Key) String() string {
	parts := make([]string, len(k))
	for i, field := range k {
		parts[i] = strconv.Quote(field)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// MissingKeyError names the incoming record that lacks a key field.
// It matches errors.ErrMissingKeyField under errors.Is.
type MissingKeyError struct {
	Index int
	Err   error
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *MissingKeyError) Unwrap() error { return e.Err }
