// Package bitset provides bit-indexed flags over arbitrary-precision
// integers, as used by the table server's destination-alias bookkeeping
// (which aliases are active vs. disabled) where the number of aliases
// minted over a long-lived segment can exceed a machine word. See
// spec.md §4.1.
package bitset

import "math/big"

// SetFlags ORs in the bits named by indices into n, returning the
// updated value. Setting an already-set bit is a no-op. There is no
// upper bound on an index (see spec.md §8 R3, tested to 10^6).
func SetFlags(indices []int, n *big.Int) *big.Int {
	result := new(big.Int).Set(n)
	for _, i := range indices {
		result.SetBit(result, i, 1)
	}
	return result
}

// UnsetFlagMask returns a mask that, when AND-applied via ApplyMask,
// clears bit i and leaves every other bit untouched.
func UnsetFlagMask(i int) *big.Int {
	bit := new(big.Int).Lsh(big.NewInt(1), uint(i))
	mask := new(big.Int).Not(bit)
	return mask
}

// ApplyMask returns mask & n.
func ApplyMask(mask, n *big.Int) *big.Int {
	return new(big.Int).And(mask, n)
}

// IsSet reports whether bit i is set in n.
func IsSet(n *big.Int, i int) bool {
	return n.Bit(i) == 1
}

// Zero is the empty flag set, provided so callers don't need to spell
// big.NewInt(0) at every call site.
func Zero() *big.Int {
	return big.NewInt(0)
}
