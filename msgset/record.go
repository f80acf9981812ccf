package msgset

import (
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

// RecordVersion is the current persistence format version. Bump on any
// incompatible change to Record.
const RecordVersion = 1

// Record is the structured persistence form of a Set, suitable for caching
// across process runs. The on-disk or on-wire encoding of the record is the
// store's concern; this package only defines the fields and their
// validation. Compact-string and count caches are never persisted and are
// recomputed after load.
type Record struct {
	FormatVersion int      `json:"format_version"`
	Scope         string   `json:"scope"`
	Mode          string   `json:"mode"`
	Members       []uint64 `json:"members"`
	// Checksum is the hex BLAKE3 digest of the canonical compact encoding
	// of Members, guarding against corrupted or truncated records.
	Checksum string `json:"checksum"`
}

// ToRecord produces the persistence record for the set. The all sentinel
// has no concrete membership and cannot be persisted.
func (s *Set) ToRecord() (Record, error) {
	if s.all {
		return Record{}, fmt.Errorf("%w: cannot persist", ErrUnresolvedAll)
	}
	return Record{
		FormatVersion: RecordVersion,
		Scope:         s.scope,
		Mode:          s.mode.String(),
		Members:       s.Members(),
		Checksum:      membersChecksum(s.members),
	}, nil
}

// FromRecord rebuilds a Set from a persisted record. Persisted data is
// never trusted: the version must match, every member is revalidated and
// the checksum, when present, must verify.
func FromRecord(r Record) (*Set, error) {
	if r.FormatVersion != RecordVersion {
		return nil, fmt.Errorf("%w: got %d, want %d",
			ErrUnsupportedVersion, r.FormatVersion, RecordVersion)
	}
	mode, err := ParseMode(r.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	set, err := New(r.Scope, mode, r.Members)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if r.Checksum != "" && r.Checksum != membersChecksum(set.members) {
		return nil, fmt.Errorf("%w: scope %s", ErrChecksumMismatch, r.Scope)
	}
	return set, nil
}

func membersChecksum(sorted []uint64) string {
	sum := blake3.Sum256([]byte(encodeSorted(sorted)))
	return hex.EncodeToString(sum[:])
}
