package join

import "github.com/critdb/crit/pkg/crit/types"

// ResolveSorted implements spec.md §4.4.2's apply_resolver_for_sorted:
// a parallel walk of two dumps already sorted ascending by the key at
// keypos, producing the dataset each side installs after the join.
// resolve is only consulted for keys present on both sides with
// differing values; it must be a pure, order-independent function of
// its two arguments (spec.md's open question (c) treats
// non-deterministic resolvers as a user bug, not something this
// function can detect). A nil resolve reproduces spec.md §8 scenario
// 3's documented "classic swap" consequence of joining without a
// conflict handler: each side simply adopts the other's conflicting
// record instead of converging on one value.
func ResolveSorted(left, right []types.Record, keypos int, resolve types.ConflictHandler) (mergedLeft, mergedRight []types.Record) {
	i, j := 0, 0
	for i < len(left) && j < len(right) {
		l, r := left[i], right[j]
		lk, rk := l.Key(keypos), r.Key(keypos)

		switch {
		case types.KeyEqual(lk, rk):
			switch {
			case l.Equal(r):
				mergedLeft = append(mergedLeft, l)
				mergedRight = append(mergedRight, r)
			case resolve != nil:
				merged := resolve(l, r)
				mergedLeft = append(mergedLeft, merged)
				mergedRight = append(mergedRight, merged)
			default:
				mergedLeft = append(mergedLeft, r)
				mergedRight = append(mergedRight, l)
			}
			i++
			j++
		case types.KeyLess(lk, rk):
			mergedLeft = append(mergedLeft, l)
			mergedRight = append(mergedRight, l)
			i++
		default:
			mergedLeft = append(mergedLeft, r)
			mergedRight = append(mergedRight, r)
			j++
		}
	}
	for ; i < len(left); i++ {
		mergedLeft = append(mergedLeft, left[i])
		mergedRight = append(mergedRight, left[i])
	}
	for ; j < len(right); j++ {
		mergedLeft = append(mergedLeft, right[j])
		mergedRight = append(mergedRight, right[j])
	}
	return mergedLeft, mergedRight
}

// mergeBagDumps combines two bag dumps by full-value union, spec.md
// §4.4 step 9: "Bags never resolve" — there is no per-key conflict
// concept for a bag, so joining just needs every distinct record from
// both sides.
func mergeBagDumps(left, right []types.Record) []types.Record {
	merged := append([]types.Record(nil), left...)
	for _, r := range right {
		if !containsEqual(merged, r) {
			merged = append(merged, r)
		}
	}
	return merged
}

func containsEqual(records []types.Record, target types.Record) bool {
	for _, r := range records {
		if r.Equal(target) {
			return true
		}
	}
	return false
}
