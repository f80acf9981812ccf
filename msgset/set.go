// Package msgset implements compact, immutable sets of message identifiers
// scoped to a single mailbox.
//
// A Set holds either message UIDs (stable across mailbox mutation) or message
// sequence numbers (positional, invalidated by expunge), never both. Sets are
// value objects: every operation returns a new instance, so any number of
// goroutines may share a Set without synchronization.
//
// The package provides:
//   - range compression to and from the IMAP sequence-set wire form
//     ("1:3,5:7,10") via EncodeRanges/DecodeRanges
//   - linear-time set algebra (Union, Intersect, Difference)
//   - bounded-size batching for throughput-limited remote calls (Batcher)
//   - a versioned persistence record with BLAKE3 integrity checking (Record)
//
// The distinguished "all messages" set (All) stands for every identifier
// currently in the mailbox. It is an opaque marker: only a collaborator with
// live mailbox knowledge can expand it, so local algebra, batching and
// persistence reject it with ErrUnresolvedAll.
package msgset

import (
	"fmt"
	"slices"
	"sync"
)

// Mode selects the addressing scheme of a Set.
type Mode uint8

const (
	// ModeUID addresses messages by UID, stable across mailbox mutation.
	ModeUID Mode = iota
	// ModeSeq addresses messages by sequence number. Sequence numbers are
	// positional and invalidated by any expunge, so they must never be
	// combined with UID sets.
	ModeSeq
)

func (m Mode) String() string {
	switch m {
	case ModeUID:
		return "uid"
	case ModeSeq:
		return "seq"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode parses the stable string form used in records and configuration.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "uid":
		return ModeUID, nil
	case "seq":
		return ModeSeq, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

// Set is an immutable set of message identifiers valid within one mailbox.
// The zero value is not usable; construct sets with New, NewRange, All,
// Decode or FromRecord.
type Set struct {
	scope string
	mode  Mode
	all   bool

	// Ascending, deduplicated, every value >= 1. Nil for the all sentinel.
	members []uint64

	compactOnce sync.Once
	compact     string
}

// New builds a Set from an explicit identifier list. The list may be
// unordered and contain duplicates; it is sorted and deduplicated. Any value
// of zero fails with ErrInvalidIdentifier. An empty list yields a valid
// empty set.
func New(scope string, mode Mode, ids []uint64) (*Set, error) {
	for _, id := range ids {
		if id == 0 {
			return nil, fmt.Errorf("%w: identifier must be >= 1", ErrInvalidIdentifier)
		}
	}
	return newSorted(scope, mode, normalize(ids)), nil
}

// NewRange builds a Set covering the inclusive range [lo, hi].
func NewRange(scope string, mode Mode, lo, hi uint64) (*Set, error) {
	if lo == 0 {
		return nil, fmt.Errorf("%w: identifier must be >= 1", ErrInvalidIdentifier)
	}
	if lo > hi {
		return nil, fmt.Errorf("%w: %d > %d", ErrInvalidRange, lo, hi)
	}
	members := make([]uint64, 0, hi-lo+1)
	for v := lo; ; v++ {
		members = append(members, v)
		if v == hi {
			break
		}
	}
	return newSorted(scope, mode, members), nil
}

// All returns the sentinel set standing for every identifier currently in
// the mailbox. It is never expanded locally; a collaborator with live
// mailbox knowledge resolves it at use time.
func All(scope string, mode Mode) *Set {
	return &Set{scope: scope, mode: mode, all: true}
}

// Decode parses compact range notation into a Set, combining DecodeRanges
// with New. The sentinel form "1:*" decodes to All.
func Decode(scope string, mode Mode, compact string) (*Set, error) {
	if compact == allCompact {
		return All(scope, mode), nil
	}
	ids, err := DecodeRanges(compact)
	if err != nil {
		return nil, err
	}
	return newSorted(scope, mode, ids), nil
}

// newSorted wraps an already ascending, deduplicated, validated slice.
// The slice is retained without copying; callers must not alias it.
func newSorted(scope string, mode Mode, sorted []uint64) *Set {
	return &Set{scope: scope, mode: mode, members: sorted}
}

// Scope names the mailbox this set is valid within. Sets from different
// scopes are never combinable.
func (s *Set) Scope() string { return s.scope }

// Mode reports the addressing scheme.
func (s *Set) Mode() Mode { return s.mode }

// IsAll reports whether this is the unresolved full-mailbox sentinel.
func (s *Set) IsAll() bool { return s.all }

// Count returns the cardinality. For the all sentinel the cardinality is
// unknown until a collaborator resolves it, so known is false and n is zero.
func (s *Set) Count() (n uint64, known bool) {
	if s.all {
		return 0, false
	}
	return uint64(len(s.members)), true
}

// IsEmpty reports whether the set has no members. It is never true for the
// all sentinel.
func (s *Set) IsEmpty() bool {
	return !s.all && len(s.members) == 0
}

// Members returns a copy of the ascending member list. It returns nil for
// the all sentinel and for an empty set.
func (s *Set) Members() []uint64 {
	if s.all || len(s.members) == 0 {
		return nil
	}
	out := make([]uint64, len(s.members))
	copy(out, s.members)
	return out
}

// allCompact is the wire form of the full-mailbox sentinel.
const allCompact = "1:*"

// CompactString returns the compact range notation for the set, computed
// once and cached. Instances are immutable so the cache is never
// invalidated. The all sentinel renders as "1:*"; an empty set renders as
// the empty string.
func (s *Set) CompactString() string {
	if s.all {
		return allCompact
	}
	s.compactOnce.Do(func() {
		s.compact = encodeSorted(s.members)
	})
	return s.compact
}

// Contains reports membership by binary search. The all sentinel contains
// every identifier by definition.
func (s *Set) Contains(id uint64) bool {
	if s.all {
		return true
	}
	_, found := slices.BinarySearch(s.members, id)
	return found
}

// Equal reports whether two sets have the same scope, mode and members.
func (s *Set) Equal(o *Set) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.scope == o.scope && s.mode == o.mode && s.all == o.all &&
		slices.Equal(s.members, o.members)
}

// String implements fmt.Stringer for logging.
func (s *Set) String() string {
	return fmt.Sprintf("%s/%s{%s}", s.scope, s.mode, s.CompactString())
}
