package dedup

import (
	"crypto/sha256"
	"encoding/binary"
	"math/bits"
)

const simhashBits = 64

// NearDuplicateMaxHamming is the Hamming distance at or under which two
// fingerprints are treated as near-duplicate candidates.
const NearDuplicateMaxHamming = 3

// SimHash reduces a shingle set to a 64-bit fingerprint. For each
// shingle a stable 64-bit hash votes per bit position; bit i of the
// fingerprint is set iff the vote is positive. An empty set yields 0.
func SimHash(shingles map[string]struct{}) uint64 {
	if len(shingles) == 0 {
		return 0
	}

	var votes [simhashBits]int

	for s := range shingles {
		h := stableHash64(s)
		for bit := 0; bit < simhashBits; bit++ {
			if h&(1<<uint(bit)) != 0 {
				votes[bit]++
			} else {
				votes[bit]--
			}
		}
	}

	var fingerprint uint64

	for bit := 0; bit < simhashBits; bit++ {
		if votes[bit] > 0 {
			fingerprint |= 1 << uint(bit)
		}
	}

	return fingerprint
}

// HammingDistance counts differing bits between two fingerprints.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// stableHash64 is the first 8 bytes of the SHA-256 digest of the UTF-8
// bytes. Stable across processes and platforms, unlike maphash.
func stableHash64(s string) uint64 {
	sum := sha256.Sum256([]byte(s))
	return binary.BigEndian.Uint64(sum[:8])
}
