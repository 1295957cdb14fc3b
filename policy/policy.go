// Package policy defines the conflict-resolution policies applied when
// writing into a target that may already hold data.
//
// The same four policies apply at two granularities: asset level (the target
// itself already exists) and data level (a record collides with an existing
// one on the conflict key).
package policy

import (
	"strings"

	"github.com/teranos/inout/errors"
)

// Policy is a closed enumeration; the zero value is not a valid policy.
type Policy uint8

const (
	_ Policy = iota

	// Append skips conflict checks and writes everything.
	Append

	// Ignore drops colliding items and reports them without failing.
	Ignore

	// Fail aborts the whole write on any collision.
	Fail

	// Replace is declared but not implemented by any backend.
	Replace
)

var names = map[Policy]string{
	Append:  "append",
	Ignore:  "ignore",
	Fail:    "fail",
	Replace: "replace",
}

// All lists every policy in declaration order.
func All() []Policy {
	return []Policy{Append, Ignore, Fail, Replace}
}

// Parse converts a policy name (case-insensitive) into a Policy.
func Parse(s string) (Policy, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	all := All()
	valid := make([]string, len(all))
	for i, p := range all {
		if names[p] == name {
			return p, nil
		}
		valid[i] = names[p]
	}
	return 0, errors.WithHint(
		errors.NewInvalidRequestError("unknown conflict policy %q", s),
		"use one of: "+strings.Join(valid, ", "),
	)
}

// MustParse is Parse for constants; it panics on unknown names.
func MustParse(s string) Policy {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Policy) String() string {
	if n, ok := names[p]; ok {
		return n
	}
	return "invalid"
}

// Valid reports whether p is one of the four declared policies.
func (p Policy) Valid() bool {
	_, ok := names[p]
	return ok
}

// Implemented reports whether any backend can act on p.
func (p Policy) Implemented() bool {
	return p.Valid() && p != Replace
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, errors.Newf("invalid policy %d", uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Set implements pflag.Value so policies can be bound to cobra flags.
func (p *Policy) Set(s string) error {
	return p.UnmarshalText([]byte(s))
}

// Type implements pflag.Value.
func (p *Policy) Type() string { return "policy" }
