package resolve

import (
	"fmt"

	"github.com/teranos/inout/record"
)

// KeySet indexes existing rows by key tuple.
type KeySet struct {
	ids map[string][]string
}

// NewKeySet indexes probe rows under key. Rows that lack a key field cannot
// collide with anything and are skipped.
func NewKeySet(probe []record.Record, key Key) *KeySet {
	ks := &KeySet{ids: make(map[string][]string, len(probe))}
	for _, row := range probe {
		tuple, err := key.Tuple(row)
		if err != nil {
			continue
		}
		ids := ks.ids[tuple]
		if id, ok := row[record.IDField]; ok && id != nil {
			ids = append(ids, fmt.Sprint(id))
		}
		ks.ids[tuple] = ids
	}
	return ks
}

// Len returns the number of distinct tuples.
func (ks *KeySet) Len() int { return len(ks.ids) }

// Match reports whether tuple exists and returns the ids recorded for it.
func (ks *KeySet) Match(tuple string) ([]string, bool) {
	ids, ok := ks.ids[tuple]
	return ids, ok
}

// Contains reports whether r's tuple under key exists in the set.
func (ks *KeySet) Contains(r record.Record, key Key) bool {
	tuple, err := key.Tuple(r)
	if err != nil {
		return false
	}
	_, ok := ks.ids[tuple]
	return ok
}
