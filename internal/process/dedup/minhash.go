package dedup

import (
	"errors"
	"hash/fnv"
	"math"
	"math/rand"
	"strconv"
	"strings"
)

// Default MinHash parameters: 64 hash functions over 16 bands gives
// 4 rows per band.
const (
	DefaultNumHashes = 64
	DefaultBands     = 16
	DefaultSeed      = 1
)

// JaccardMatchThreshold confirms a match when other heuristics are
// ambiguous.
const JaccardMatchThreshold = 0.75

// minhashPrime is a fixed prime modulus larger than any 32-bit shingle
// hash. Coefficient a stays below 2^32 so that a*h+b fits in uint64 for
// every 32-bit shingle hash h.
const minhashPrime uint64 = 4294967311

// maxCoeffA bounds the multiplicative coefficient; see minhashPrime.
const maxCoeffA = uint64(1) << 32

// signatureSentinel fills signatures of empty shingle sets.
const signatureSentinel = uint64(math.MaxUint64)

// ErrBandMismatch is returned when numHashes is not evenly divisible by
// bands.
var ErrBandMismatch = errors.New("number of hashes must be evenly divisible by bands")

// MinHasher computes fixed-size MinHash signatures and LSH bucket keys.
// Coefficients are generated deterministically from the seed so that
// signatures are reproducible across runs and instances.
type MinHasher struct {
	numHashes   int
	bands       int
	rowsPerBand int
	coeffA      []uint64
	coeffB      []uint64
}

// NewMinHasher validates the banding parameters and generates the
// random hash coefficients.
func NewMinHasher(numHashes, bands int, seed int64) (*MinHasher, error) {
	if numHashes <= 0 || bands <= 0 || numHashes%bands != 0 {
		return nil, ErrBandMismatch
	}

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic coefficients, not security material

	coeffA := make([]uint64, numHashes)
	coeffB := make([]uint64, numHashes)

	for i := 0; i < numHashes; i++ {
		coeffA[i] = uint64(rng.Int63n(int64(maxCoeffA-1))) + 1
		coeffB[i] = uint64(rng.Int63n(int64(minhashPrime)))
	}

	return &MinHasher{
		numHashes:   numHashes,
		bands:       bands,
		rowsPerBand: numHashes / bands,
		coeffA:      coeffA,
		coeffB:      coeffB,
	}, nil
}

// Signature computes the MinHash signature of a shingle set: for each
// hash function, the minimum of (a*h+b) mod prime over all shingles.
// An empty set yields a signature of all sentinels.
func (m *MinHasher) Signature(shingles map[string]struct{}) []uint64 {
	signature := make([]uint64, m.numHashes)
	for i := range signature {
		signature[i] = signatureSentinel
	}

	for s := range shingles {
		h := uint64(fnv32(s))

		for i := 0; i < m.numHashes; i++ {
			v := (m.coeffA[i]*h + m.coeffB[i]) % minhashPrime
			if v < signature[i] {
				signature[i] = v
			}
		}
	}

	return signature
}

// BucketKeys partitions a signature into contiguous band slices and
// returns one key per band. Two items sharing any bucket key are LSH
// candidates.
func (m *MinHasher) BucketKeys(signature []uint64) []string {
	keys := make([]string, m.bands)

	for band := 0; band < m.bands; band++ {
		var sb strings.Builder

		sb.WriteString(strconv.Itoa(band))
		sb.WriteByte(':')

		for row := 0; row < m.rowsPerBand; row++ {
			if row > 0 {
				sb.WriteByte('-')
			}

			sb.WriteString(strconv.FormatUint(signature[band*m.rowsPerBand+row], 10))
		}

		keys[band] = sb.String()
	}

	return keys
}

func fnv32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))

	return h.Sum32()
}
