// Package shuffle produces reproducible pseudo-random permutations for
// question ordering. The permutation is a pure function of the seed string
// (the attempt id), so a resumed attempt always sees the same order and
// nothing needs to be persisted.
package shuffle

// FNV-1a 64-bit, followed by an LCG driving Fisher-Yates. Integer arithmetic
// only: the sequence must be bit-identical across platforms and releases.
const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211

	lcgMultiplier = 6364136223846793005
	lcgIncrement  = 1442695040888963407
)

// Seed hashes s to a nonzero 64-bit state.
func Seed(s string) uint64 {
	h := uint64(fnvOffset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime64
	}
	if h == 0 {
		h = fnvOffset64
	}
	return h
}

type lcg struct {
	state uint64
}

func (g *lcg) next() uint64 {
	g.state = g.state*lcgMultiplier + lcgIncrement
	return g.state
}

// intn returns a value in [0, n). n must be positive. Uses the high bits,
// which are the well-mixed ones for an LCG.
func (g *lcg) intn(n int) int {
	return int((g.next() >> 33) % uint64(n))
}

// Permutation returns the order in which n items should be displayed for the
// given seed: element i of the result is the original index shown at
// position i.
func Permutation(n int, seed uint64) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	g := &lcg{state: seed}
	for i := n - 1; i > 0; i-- {
		j := g.intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// Apply reorders items according to Permutation(len(items), Seed(seed)).
// The input slice is not modified.
func Apply[T any](items []T, seed string) []T {
	perm := Permutation(len(items), Seed(seed))
	out := make([]T, len(items))
	for pos, idx := range perm {
		out[pos] = items[idx]
	}
	return out
}
