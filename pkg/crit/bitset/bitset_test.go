package bitset

import (
	"math/big"
	"testing"
)

func TestApplyMaskUndoesSetFlags(t *testing.T) {
	for _, i := range []int{0, 1, 3, 63, 64, 1_000_000} {
		n := SetFlags([]int{i}, Zero())
		cleared := ApplyMask(UnsetFlagMask(i), n)
		if cleared.Sign() != 0 {
			t.Fatalf("index %d: expected zero after clearing, got %s", i, cleared.String())
		}
	}
}

func TestSetFlagsIdempotent(t *testing.T) {
	once := SetFlags([]int{5}, Zero())
	twice := SetFlags([]int{5}, once)
	if once.Cmp(twice) != 0 {
		t.Fatalf("setting an already-set flag changed the value: %s != %s", once, twice)
	}
}

func TestSetFlagsMultipleIndices(t *testing.T) {
	n := SetFlags([]int{1, 2, 3}, Zero())
	cleared := ApplyMask(UnsetFlagMask(1), n)
	want := SetFlags([]int{2, 3}, Zero())
	if cleared.Cmp(want) != 0 {
		t.Fatalf("got %s, want %s", cleared, want)
	}
}

func TestIsSet(t *testing.T) {
	n := SetFlags([]int{2, 4}, Zero())
	for i, want := range map[int]bool{0: false, 2: true, 3: false, 4: true} {
		if got := IsSet(n, i); got != want {
			t.Errorf("IsSet(%d) = %v, want %v", i, got, want)
		}
	}
}

func TestLargeIndexSupported(t *testing.T) {
	const idx = 150_000
	n := SetFlags([]int{idx}, Zero())
	if !IsSet(n, idx) {
		t.Fatalf("expected bit %d to be set", idx)
	}
	other := big.NewInt(0)
	if n.Cmp(other) == 0 {
		t.Fatalf("expected non-zero result")
	}
}
