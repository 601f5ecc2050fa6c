// Package dedup provides the approximate-similarity primitives used by
// the clusterer: word shingles, 64-bit SimHash fingerprints, and a
// MinHash/LSH signature scheme with banding.
package dedup

import "strings"

// Default shingle window sizes.
const (
	DefaultMinShingleSize = 5
	DefaultMaxShingleSize = 8
)

const shingleSeparator = " "

// Shingles returns the set of overlapping word n-grams of tokens: for
// each window size in [minSize..maxSize], every contiguous token window
// of that size joined by a single space. Duplicate windows collapse.
//
// Fewer than minSize tokens yields an empty set. maxSize is coerced to
// at least minSize.
func Shingles(tokens []string, minSize, maxSize int) map[string]struct{} {
	if minSize <= 0 {
		minSize = DefaultMinShingleSize
	}

	if maxSize < minSize {
		maxSize = minSize
	}

	out := make(map[string]struct{})
	if len(tokens) < minSize {
		return out
	}

	for size := minSize; size <= maxSize; size++ {
		for i := 0; i+size <= len(tokens); i++ {
			out[strings.Join(tokens[i:i+size], shingleSeparator)] = struct{}{}
		}
	}

	return out
}

// Jaccard returns intersection size over union size of two shingle sets.
// Two empty sets have similarity 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}

	intersection := 0

	for s := range small {
		if _, ok := large[s]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}
