package imapsource

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migadu/msgset/msgset"
)

func chunk(t *testing.T, ids ...uint64) *msgset.Set {
	t.Helper()
	s, err := msgset.New("INBOX", msgset.ModeUID, ids)
	require.NoError(t, err)
	return s
}

func TestBatchReportAggregation(t *testing.T) {
	boom := errors.New("boom")
	r := &BatchReport{Command: "move", Scope: "INBOX", Destination: "Archive"}
	r.add(chunk(t, 1, 2, 3), time.Second, nil)
	r.add(chunk(t, 4, 5), time.Second, boom)
	r.add(chunk(t, 6), time.Second, nil)

	assert.Equal(t, 2, r.Succeeded())
	assert.Len(t, r.Failed(), 1)
	assert.False(t, r.Ok())

	err := r.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 chunks failed")
}

func TestBatchReportAllSucceeded(t *testing.T) {
	r := &BatchReport{Command: "copy", Scope: "INBOX"}
	r.add(chunk(t, 1), time.Second, nil)

	assert.True(t, r.Ok())
	assert.NoError(t, r.Err())

	failed, err := r.FailedSet()
	require.NoError(t, err)
	assert.Nil(t, failed)
}

func TestBatchReportFailedSet(t *testing.T) {
	boom := errors.New("boom")
	r := &BatchReport{Command: "move", Scope: "INBOX"}
	r.add(chunk(t, 1, 2), time.Second, boom)
	r.add(chunk(t, 3, 4), time.Second, nil)
	r.add(chunk(t, 10, 11), time.Second, boom)

	failed, err := r.FailedSet()
	require.NoError(t, err)
	require.NotNil(t, failed)
	assert.Equal(t, []uint64{1, 2, 10, 11}, failed.Members())
	assert.Equal(t, "1:2,10:11", failed.CompactString())
}

func TestAdaptiveSizer(t *testing.T) {
	a := newAdaptiveSizer(100)

	// Fast chunks grow the size, capped at the growth limit.
	assert.Equal(t, 200, a.adjust(100*time.Millisecond))
	assert.Equal(t, 400, a.adjust(100*time.Millisecond))
	for i := 0; i < 10; i++ {
		a.adjust(100 * time.Millisecond)
	}
	assert.Equal(t, 800, a.size, "capped at initial*8")

	// A slow chunk halves the next one.
	assert.Equal(t, 400, a.adjust(10*time.Second))

	// Moderate latency leaves the size alone.
	assert.Equal(t, 400, a.adjust(2*time.Second))

	// Shrinking floors at the minimum.
	for i := 0; i < 10; i++ {
		a.adjust(10 * time.Second)
	}
	assert.Equal(t, minChunk, a.size)
}

func TestAdaptiveSizerSmallInitial(t *testing.T) {
	a := newAdaptiveSizer(4)
	// The floor never exceeds the configured size.
	for i := 0; i < 10; i++ {
		a.adjust(10 * time.Second)
	}
	assert.Equal(t, 4, a.size)
}

func TestToNumSet(t *testing.T) {
	uidChunk := chunk(t, 1, 2, 3, 7, 10, 11)
	numSet, err := toNumSet(uidChunk)
	require.NoError(t, err)
	assert.Equal(t, "1:3,7,10:11", numSet.String())

	seqSet, err := msgset.New("INBOX", msgset.ModeSeq, []uint64{4, 5, 9})
	require.NoError(t, err)
	numSet, err = toNumSet(seqSet)
	require.NoError(t, err)
	assert.Equal(t, "4:5,9", numSet.String())
}

func TestToNumSetOverflow(t *testing.T) {
	big, err := msgset.New("INBOX", msgset.ModeUID, []uint64{1 << 40})
	require.NoError(t, err)

	_, err = toNumSet(big)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds the UID range")
}

func TestRuns(t *testing.T) {
	tests := []struct {
		name     string
		input    []uint64
		expected [][2]uint64
	}{
		{name: "empty", input: nil, expected: nil},
		{name: "single", input: []uint64{5}, expected: [][2]uint64{{5, 5}}},
		{
			name:     "mixed",
			input:    []uint64{1, 2, 3, 5, 6, 10},
			expected: [][2]uint64{{1, 3}, {5, 6}, {10, 10}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, runs(tc.input))
		})
	}
}
