package msgset

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRanges(t *testing.T) {
	tests := []struct {
		name     string
		input    []uint64
		expected string
	}{
		{
			name:     "empty input",
			input:    nil,
			expected: "",
		},
		{
			name:     "single value",
			input:    []uint64{42},
			expected: "42",
		},
		{
			name:     "mixed runs and singles",
			input:    []uint64{1, 2, 3, 5, 6, 7, 10},
			expected: "1:3,5:7,10",
		},
		{
			name:     "run of two still uses range form",
			input:    []uint64{4, 5},
			expected: "4:5",
		},
		{
			name:     "unsorted input with duplicates",
			input:    []uint64{7, 3, 7, 1, 2, 2},
			expected: "1:3,7",
		},
		{
			name:     "single long run",
			input:    []uint64{10, 11, 12, 13, 14, 15},
			expected: "10:15",
		},
		{
			name:     "all isolated",
			input:    []uint64{2, 4, 6, 8},
			expected: "2,4,6,8",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, EncodeRanges(tc.input))
		})
	}
}

func TestDecodeRanges(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []uint64
		wantErr  error
	}{
		{
			name:     "empty string round-trips to empty set",
			input:    "",
			expected: nil,
		},
		{
			name:     "single value",
			input:    "42",
			expected: []uint64{42},
		},
		{
			name:     "ranges and singles",
			input:    "1:3,5:7,10",
			expected: []uint64{1, 2, 3, 5, 6, 7, 10},
		},
		{
			name:     "overlapping tokens deduplicate",
			input:    "1:5,3:8",
			expected: []uint64{1, 2, 3, 4, 5, 6, 7, 8},
		},
		{
			name:    "inverted range",
			input:   "7:3",
			wantErr: ErrMalformedRange,
		},
		{
			name:    "non-numeric token",
			input:   "1,abc,5",
			wantErr: ErrMalformedToken,
		},
		{
			name:    "non-numeric range bound",
			input:   "1:x",
			wantErr: ErrMalformedRange,
		},
		{
			name:    "empty token",
			input:   "1,,5",
			wantErr: ErrMalformedToken,
		},
		{
			name:    "zero identifier",
			input:   "0",
			wantErr: ErrMalformedToken,
		},
		{
			name:    "leading zero",
			input:   "007",
			wantErr: ErrMalformedToken,
		},
		{
			name:    "whitespace is rejected",
			input:   "1, 2",
			wantErr: ErrMalformedToken,
		},
		{
			name:    "negative number",
			input:   "-5",
			wantErr: ErrMalformedToken,
		},
		{
			name:    "star is not local syntax",
			input:   "4:*",
			wantErr: ErrMalformedRange,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeRanges(tc.input)
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.wantErr), "got %v, want %v", err, tc.wantErr)
				// A single malformed token fails the whole decode.
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	// Fixed seed keeps failures reproducible.
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		n := rng.Intn(400)
		ids := make([]uint64, 0, n)
		for j := 0; j < n; j++ {
			// Small value range to force dense runs alongside sparse tails.
			ids = append(ids, uint64(rng.Intn(1000)+1))
		}

		encoded := EncodeRanges(ids)
		decoded, err := DecodeRanges(encoded)
		require.NoError(t, err, "decode of %q", encoded)
		assert.Equal(t, normalize(ids), decoded)
	}
}

func TestEncodeNeverLongerThanNaive(t *testing.T) {
	// With at least one run of 3+, range form beats the naive join.
	ids := []uint64{1, 2, 3, 4, 5, 100, 101, 102, 500}
	naiveLen := 0
	for _, id := range ids {
		if naiveLen > 0 {
			naiveLen++ // comma
		}
		naiveLen += len(EncodeRanges([]uint64{id}))
	}
	assert.LessOrEqual(t, len(EncodeRanges(ids)), naiveLen)
}
