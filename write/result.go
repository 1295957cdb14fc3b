package write

import (
	"encoding/json"

	"github.com/teranos/inout/errors"
	"github.com/teranos/inout/record"
	"github.com/teranos/inout/resolve"
)

// Result is the uniform outcome envelope of every write.
type Result struct {
	StatusCode int    `json:"status_code"`
	Msg        string `json:"msg"`
	Data       *Data  `json:"data,omitempty"`
}

// Failure is one record whose insert failed.
type Failure struct {
	Index      int           `json:"index"`
	StatusCode int           `json:"status_code"`
	Msg        string        `json:"msg"`
	Record     record.Record `json:"data"`
}

// Data is the optional detail attached to a Result.
type Data struct {
	// Noun names the records for the ignored_<noun>_due_to_conflict key.
	Noun string `json:"-"`

	// Reasons holds per-record insert failures.
	Reasons []Failure `json:"reasons,omitempty"`

	// Ignored holds records dropped by on_data_conflict=ignore.
	Ignored []resolve.Conflict `json:"-"`

	// ConflictKey, NumConflicts and Conflicts describe an aborted write
	// under on_data_conflict=fail. Conflicts is a preview.
	ConflictKey  []string           `json:"conflict_key,omitempty"`
	NumConflicts int                `json:"num_conflicts,omitempty"`
	Conflicts    []resolve.Conflict `json:"conflicts,omitempty"`

	// InvalidIndex points at the record that failed validation.
	InvalidIndex *int `json:"invalid_index,omitempty"`
}

// IgnoredKey is the JSON key ignored conflicts are reported under.
func (d *Data) IgnoredKey() string {
	noun := d.Noun
	if noun == "" {
		noun = "records"
	}
	return "ignored_" + noun + "_due_to_conflict"
}

// MarshalJSON adds the noun-specific ignored key to the plain fields.
func (d *Data) MarshalJSON() ([]byte, error) {
	type plain Data
	base, err := json.Marshal((*plain)(d))
	if err != nil {
		return nil, err
	}
	if len(d.Ignored) == 0 {
		return base, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	ignored, err := json.Marshal(d.Ignored)
	if err != nil {
		return nil, err
	}
	fields[d.IgnoredKey()] = ignored
	return json.Marshal(fields)
}

// Succeeded reports a 2xx status.
func (r Result) Succeeded() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ResultFromError renders a terminal error as an envelope, for callers that
// report everything as envelopes (the CLI does).
func ResultFromError(err error) Result {
	msg := err.Error()
	if hints := errors.FlattenHints(err); hints != "" {
		msg += ". " + hints
	}
	return Result{StatusCode: errors.StatusCode(err), Msg: msg}
}
