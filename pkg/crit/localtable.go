package crit

import (
	"sort"

	"github.com/critdb/crit/pkg/crit/types"
)

// localTable is the in-process storage a table server owns exclusively
// (spec.md §3 "a table server owns its local contents exclusively").
// There are two concrete implementations, one per types.TableType;
// both are driven only from the owning server's single goroutine, so
// neither needs internal locking.
type localTable interface {
	apply(op types.WriteOp) error
	dump() []types.Record
	lookup(key interface{}) []types.Record
	size() int
}

func newLocalTable(opts types.Options) localTable {
	switch opts.Type {
	case types.Bag:
		return &bagTable{keypos: opts.KeyPos}
	default:
		return &orderedSetTable{keypos: opts.KeyPos}
	}
}

// validateRecords rejects any record too short for keypos before a
// table touches it, so a malformed record returns types.ValidateKeyPos's
// error instead of panicking inside Record.Key.
func validateRecords(records []types.Record, keypos int) error {
	for _, r := range records {
		if err := types.ValidateKeyPos(r, keypos); err != nil {
			return err
		}
	}
	return nil
}

// orderedSetTable keeps at most one record per key, sorted ascending
// by key for dumps (spec.md §3 Table/ordered_set).
type orderedSetTable struct {
	keypos  int
	records []types.Record
}

func (t *orderedSetTable) indexOf(key interface{}) int {
	return sort.Search(len(t.records), func(i int) bool {
		return !types.KeyLess(t.records[i].Key(t.keypos), key)
	})
}

func (t *orderedSetTable) insert(r types.Record) {
	key := r.Key(t.keypos)
	i := t.indexOf(key)
	if i < len(t.records) && types.KeyEqual(t.records[i].Key(t.keypos), key) {
		t.records[i] = r
		return
	}
	t.records = append(t.records, nil)
	copy(t.records[i+1:], t.records[i:])
	t.records[i] = r
}

func (t *orderedSetTable) delete(key interface{}) {
	i := t.indexOf(key)
	if i < len(t.records) && types.KeyEqual(t.records[i].Key(t.keypos), key) {
		t.records = append(t.records[:i], t.records[i+1:]...)
	}
}

func (t *orderedSetTable) apply(op types.WriteOp) error {
	switch op.Kind {
	case types.OpInsert, types.OpInsertMany:
		if err := validateRecords(op.Records, t.keypos); err != nil {
			return err
		}
		for _, r := range op.Records {
			t.insert(r)
		}
	case types.OpDelete:
		for _, k := range op.Keys {
			t.delete(k)
		}
	case types.OpDeleteMany:
		for _, k := range op.Keys {
			t.delete(k)
		}
	case types.OpDeleteObject, types.OpDeleteObjects:
		if err := validateRecords(op.Records, t.keypos); err != nil {
			return err
		}
		for _, r := range op.Records {
			i := t.indexOf(r.Key(t.keypos))
			if i < len(t.records) && t.records[i].Equal(r) {
				t.records = append(t.records[:i], t.records[i+1:]...)
			}
		}
	default:
		return errUnknownOperation(op.Kind)
	}
	return nil
}

func (t *orderedSetTable) dump() []types.Record {
	out := make([]types.Record, len(t.records))
	for i, r := range t.records {
		out[i] = r.Clone()
	}
	return out
}

func (t *orderedSetTable) lookup(key interface{}) []types.Record {
	i := t.indexOf(key)
	if i < len(t.records) && types.KeyEqual(t.records[i].Key(t.keypos), key) {
		return []types.Record{t.records[i].Clone()}
	}
	return nil
}

func (t *orderedSetTable) size() int { return len(t.records) }

// bagTable allows any number of records per key; deletion by key
// removes every record under that key, deletion by object removes
// records equal by full value (spec.md §3 Table/bag).
type bagTable struct {
	keypos  int
	records []types.Record
}

func (t *bagTable) apply(op types.WriteOp) error {
	switch op.Kind {
	case types.OpInsert, types.OpInsertMany:
		if err := validateRecords(op.Records, t.keypos); err != nil {
			return err
		}
		t.records = append(t.records, op.Records...)
	case types.OpDelete, types.OpDeleteMany:
		for _, k := range op.Keys {
			t.deleteByKey(k)
		}
	case types.OpDeleteObject, types.OpDeleteObjects:
		if err := validateRecords(op.Records, t.keypos); err != nil {
			return err
		}
		for _, r := range op.Records {
			t.deleteByValue(r)
		}
	default:
		return errUnknownOperation(op.Kind)
	}
	return nil
}

func (t *bagTable) deleteByKey(key interface{}) {
	kept := t.records[:0]
	for _, r := range t.records {
		if !types.KeyEqual(r.Key(t.keypos), key) {
			kept = append(kept, r)
		}
	}
	t.records = kept
}

func (t *bagTable) deleteByValue(v types.Record) {
	kept := t.records[:0]
	for _, r := range t.records {
		if !r.Equal(v) {
			kept = append(kept, r)
		}
	}
	t.records = kept
}

func (t *bagTable) dump() []types.Record {
	out := make([]types.Record, len(t.records))
	for i, r := range t.records {
		out[i] = r.Clone()
	}
	return out
}

func (t *bagTable) lookup(key interface{}) []types.Record {
	var out []types.Record
	for _, r := range t.records {
		if types.KeyEqual(r.Key(t.keypos), key) {
			out = append(out, r.Clone())
		}
	}
	return out
}

func (t *bagTable) size() int { return len(t.records) }
