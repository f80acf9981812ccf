package msgset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	s := mustSet(t, "INBOX", ModeUID, 1, 2, 3, 10, 11, 50)

	rec, err := s.ToRecord()
	require.NoError(t, err)
	assert.Equal(t, RecordVersion, rec.FormatVersion)
	assert.Equal(t, "INBOX", rec.Scope)
	assert.Equal(t, "uid", rec.Mode)
	assert.Equal(t, []uint64{1, 2, 3, 10, 11, 50}, rec.Members)
	assert.NotEmpty(t, rec.Checksum)

	loaded, err := FromRecord(rec)
	require.NoError(t, err)
	assert.True(t, s.Equal(loaded))
	// Derived caches are recomputed, not persisted.
	assert.Equal(t, "1:3,10:11,50", loaded.CompactString())
}

func TestRecordEmptySet(t *testing.T) {
	s := mustSet(t, "Archive", ModeSeq)

	rec, err := s.ToRecord()
	require.NoError(t, err)

	loaded, err := FromRecord(rec)
	require.NoError(t, err)
	assert.True(t, loaded.IsEmpty())
	assert.Equal(t, "Archive", loaded.Scope())
	assert.Equal(t, ModeSeq, loaded.Mode())
}

func TestRecordAllSentinelNotPersistable(t *testing.T) {
	_, err := All("INBOX", ModeUID).ToRecord()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnresolvedAll))
}

func TestFromRecordValidation(t *testing.T) {
	valid, err := mustSet(t, "INBOX", ModeUID, 1, 2, 3).ToRecord()
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(r *Record)
		wantErr error
	}{
		{
			name:    "version mismatch",
			mutate:  func(r *Record) { r.FormatVersion = RecordVersion + 1 },
			wantErr: ErrUnsupportedVersion,
		},
		{
			name:    "unknown mode",
			mutate:  func(r *Record) { r.Mode = "ordinal" },
			wantErr: ErrMalformedRecord,
		},
		{
			name:    "zero member is never trusted",
			mutate:  func(r *Record) { r.Members = []uint64{0, 2, 3}; r.Checksum = "" },
			wantErr: ErrMalformedRecord,
		},
		{
			name:    "tampered members fail the checksum",
			mutate:  func(r *Record) { r.Members = []uint64{1, 2} },
			wantErr: ErrChecksumMismatch,
		},
		{
			name:    "corrupted checksum",
			mutate:  func(r *Record) { r.Checksum = "deadbeef" },
			wantErr: ErrChecksumMismatch,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := valid
			rec.Members = append([]uint64(nil), valid.Members...)
			tc.mutate(&rec)

			_, err := FromRecord(rec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.wantErr), "got %v, want %v", err, tc.wantErr)
		})
	}
}

func TestFromRecordWithoutChecksum(t *testing.T) {
	// Records written by older tooling may lack a checksum; members are
	// still revalidated.
	rec := Record{
		FormatVersion: RecordVersion,
		Scope:         "INBOX",
		Mode:          "uid",
		Members:       []uint64{5, 1, 3},
	}
	loaded, err := FromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3, 5}, loaded.Members())
}
