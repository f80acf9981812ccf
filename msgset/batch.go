package msgset

import "fmt"

// Batcher slices a Set into bounded, non-overlapping chunks for
// throughput-limited remote calls. Chunks are handed out in ascending order
// and cover the set exactly once; an empty set yields zero chunks.
//
// A Batcher is single-pass and not safe for concurrent use. Callers fanning
// chunks out to workers should either serialize Next or pre-materialize the
// remaining chunks with Chunks and distribute the slice. The chunk size may
// be adjusted between calls with SetSize; adaptive sizing policy (for
// example shrinking after a slow remote call) belongs to the caller, the
// Batcher only honors the size requested for the next chunk.
type Batcher struct {
	set  *Set
	size int
	pos  int
}

// NewBatcher creates a Batcher over set. size must be >= 1. The all
// sentinel cannot be batched; resolve it first.
func NewBatcher(set *Set, size int) (*Batcher, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, size)
	}
	if set.IsAll() {
		return nil, fmt.Errorf("%w: resolve before batching", ErrUnresolvedAll)
	}
	return &Batcher{set: set, size: size}, nil
}

// Next returns the next chunk, carrying the scope and mode of the source
// set. ok is false when the set is exhausted.
func (b *Batcher) Next() (chunk *Set, ok bool) {
	if b.pos >= len(b.set.members) {
		return nil, false
	}
	end := b.pos + b.size
	if end > len(b.set.members) {
		end = len(b.set.members)
	}
	// Chunks share the source's backing array; sets are immutable so this
	// is safe.
	chunk = newSorted(b.set.scope, b.set.mode, b.set.members[b.pos:end])
	b.pos = end
	return chunk, true
}

// SetSize changes the size used for subsequent chunks.
func (b *Batcher) SetSize(size int) error {
	if size <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, size)
	}
	b.size = size
	return nil
}

// Size returns the size that will be used for the next chunk.
func (b *Batcher) Size() int { return b.size }

// Remaining returns the number of members not yet handed out.
func (b *Batcher) Remaining() int { return len(b.set.members) - b.pos }

// Chunks drains the Batcher, returning all remaining chunks at the current
// size. Useful to distribute disjoint chunks across concurrent workers
// without sharing a cursor.
func (b *Batcher) Chunks() []*Set {
	var out []*Set
	for {
		chunk, ok := b.Next()
		if !ok {
			return out
		}
		out = append(out, chunk)
	}
}
