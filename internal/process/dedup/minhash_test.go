package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMinHasherValidation(t *testing.T) {
	tests := []struct {
		name      string
		numHashes int
		bands     int
		wantErr   bool
	}{
		{name: "defaults", numHashes: 64, bands: 16, wantErr: false},
		{name: "not divisible", numHashes: 64, bands: 15, wantErr: true},
		{name: "zero hashes", numHashes: 0, bands: 16, wantErr: true},
		{name: "zero bands", numHashes: 64, bands: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMinHasher(tt.numHashes, tt.bands, DefaultSeed)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBandMismatch)
				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestSignatureDeterministic(t *testing.T) {
	shingles := Shingles([]string{"one", "two", "three", "four", "five", "six"}, 5, 8)

	first, err := NewMinHasher(DefaultNumHashes, DefaultBands, DefaultSeed)
	require.NoError(t, err)

	second, err := NewMinHasher(DefaultNumHashes, DefaultBands, DefaultSeed)
	require.NoError(t, err)

	assert.Equal(t, first.Signature(shingles), second.Signature(shingles))
}

func TestCoefficientsStayWithinUint64Product(t *testing.T) {
	hasher, err := NewMinHasher(DefaultNumHashes, DefaultBands, DefaultSeed)
	require.NoError(t, err)

	// With a below 2^32 and h a 32-bit hash, a*h+b cannot wrap uint64,
	// so the residue mod the prime is exact.
	for i, a := range hasher.coeffA {
		assert.GreaterOrEqual(t, a, uint64(1), "coefficient %d", i)
		assert.Less(t, a, maxCoeffA, "coefficient %d", i)
		assert.Less(t, hasher.coeffB[i], minhashPrime, "offset %d", i)
	}
}

func TestSignatureEmptySetIsSentinel(t *testing.T) {
	hasher, err := NewMinHasher(DefaultNumHashes, DefaultBands, DefaultSeed)
	require.NoError(t, err)

	signature := hasher.Signature(nil)

	require.Len(t, signature, DefaultNumHashes)

	for _, v := range signature {
		assert.Equal(t, signatureSentinel, v)
	}
}

func TestBucketKeysShapeAndSharing(t *testing.T) {
	hasher, err := NewMinHasher(DefaultNumHashes, DefaultBands, DefaultSeed)
	require.NoError(t, err)

	shingles := Shingles([]string{"a", "b", "c", "d", "e", "f", "g"}, 5, 8)

	keys := hasher.BucketKeys(hasher.Signature(shingles))

	require.Len(t, keys, DefaultBands)
	assert.Equal(t, "0:", keys[0][:2])

	// Identical sets share every bucket key.
	again := hasher.BucketKeys(hasher.Signature(shingles))
	assert.Equal(t, keys, again)
}

func TestSimilarSetsShareSomeBucketKey(t *testing.T) {
	hasher, err := NewMinHasher(DefaultNumHashes, DefaultBands, DefaultSeed)
	require.NoError(t, err)

	base := []string{"regulator", "approves", "merger", "between", "two", "large", "telecom", "operators", "today"}
	nearDup := []string{"regulator", "approves", "merger", "between", "two", "large", "telecom", "operators", "now"}

	keysA := hasher.BucketKeys(hasher.Signature(Shingles(base, 5, 8)))
	keysB := hasher.BucketKeys(hasher.Signature(Shingles(nearDup, 5, 8)))

	seen := make(map[string]struct{}, len(keysA))
	for _, k := range keysA {
		seen[k] = struct{}{}
	}

	shared := 0

	for _, k := range keysB {
		if _, ok := seen[k]; ok {
			shared++
		}
	}

	assert.Greater(t, shared, 0)
}
