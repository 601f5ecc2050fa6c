package dedup

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimHashEmptySet(t *testing.T) {
	assert.Equal(t, uint64(0), SimHash(nil))
	assert.Equal(t, uint64(0), SimHash(map[string]struct{}{}))
}

func TestSimHashIdenticalSetsHaveZeroDistance(t *testing.T) {
	shingles := Shingles([]string{"markets", "rally", "on", "rate", "cut", "hopes"}, 5, 8)

	a := SimHash(shingles)
	b := SimHash(shingles)

	assert.Equal(t, 0, HammingDistance(a, b))
}

func TestSimHashUnrelatedSetsHaveLargeDistance(t *testing.T) {
	// Two disjoint shingle populations should land near 32 bits apart on
	// average. The bound is statistical, so assert a generous window.
	a := make(map[string]struct{})
	b := make(map[string]struct{})

	for i := 0; i < 200; i++ {
		a[fmt.Sprintf("alpha shingle number %d", i)] = struct{}{}
		b[fmt.Sprintf("omega different shingle %d", i)] = struct{}{}
	}

	distance := HammingDistance(SimHash(a), SimHash(b))

	assert.Greater(t, distance, 10)
	assert.Less(t, distance, 54)
}

func TestSimHashSmallEditSmallDistance(t *testing.T) {
	tokens := []string{"central", "bank", "holds", "rates", "steady", "in", "surprise", "decision", "today"}
	edited := []string{"central", "bank", "holds", "rates", "steady", "in", "surprise", "move", "today"}

	a := SimHash(Shingles(tokens, 5, 8))
	b := SimHash(Shingles(edited, 5, 8))

	unrelated := SimHash(Shingles([]string{"football", "team", "wins", "cup", "final", "after", "penalties"}, 5, 8))

	assert.Less(t, HammingDistance(a, b), HammingDistance(a, unrelated))
}

func TestHammingDistance(t *testing.T) {
	assert.Equal(t, 0, HammingDistance(0xDEADBEEF, 0xDEADBEEF))
	assert.Equal(t, 64, HammingDistance(0, ^uint64(0)))
	assert.Equal(t, 1, HammingDistance(0, 1))
}
