package types

import (
	"fmt"
	"reflect"
)

// Record is a tuple-like value with a designated key position. The key
// position is 1-indexed (default 1, see Options.KeyPos); the remainder
// of the tuple is opaque payload, never interpreted by the table.
type Record []interface{}

// Key extracts the key value at the given 1-indexed position. Panics
// if pos falls outside the record, mirroring a malformed record being
// a programmer error rather than a recoverable condition (the table
// server validates pos against every record it accepts, see
// ValidateKeyPos).
func (r Record) Key(pos int) interface{} {
	return r[pos-1]
}

// Equal reports whether two records hold the same values, used by the
// bag table type for delete-by-object.
func (r Record) Equal(other Record) bool {
	return reflect.DeepEqual(r, other)
}

// Clone returns a shallow copy, so replication fan-out never lets two
// goroutines observe the same backing array.
func (r Record) Clone() Record {
	c := make(Record, len(r))
	copy(c, r)
	return c
}

// ValidateKeyPos reports whether pos is a valid 1-indexed key position
// for r.
func ValidateKeyPos(r Record, pos int) error {
	if pos < 1 || pos > len(r) {
		return fmt.Errorf("crit: key position %d out of range for record of arity %d", pos, len(r))
	}
	return nil
}

// KeyLess gives a deterministic total order over arbitrary key values.
// Keys of the same comparable Go kind order naturally; keys of
// differing kinds fall back to a lexicographic comparison of their
// string representation so that ordered_set dumps are always
// reproducibly sorted regardless of what the caller stores as a key.
func KeyLess(a, b interface{}) bool {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return av < bv
		}
	case int:
		if bv, ok := b.(int); ok {
			return av < bv
		}
	case int64:
		if bv, ok := b.(int64); ok {
			return av < bv
		}
	case uint64:
		if bv, ok := b.(uint64); ok {
			return av < bv
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return av < bv
		}
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

// KeyEqual reports whether two key values are the same, using the
// same fallback strategy as KeyLess so Less/Equal stay consistent.
func KeyEqual(a, b interface{}) bool {
	return !KeyLess(a, b) && !KeyLess(b, a)
}
