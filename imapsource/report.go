package imapsource

import (
	"fmt"
	"time"

	"github.com/migadu/msgset/msgset"
	"github.com/migadu/msgset/pkg/metrics"
)

// ChunkResult is the outcome of one batched command chunk.
type ChunkResult struct {
	Chunk    *msgset.Set
	Duration time.Duration
	Err      error
}

// BatchReport aggregates per-chunk outcomes of a batched command. The set
// engine hands out chunks but never aggregates results; that is this
// collaborator's job.
type BatchReport struct {
	Command     string
	Scope       string
	Destination string
	Results     []ChunkResult
}

func (r *BatchReport) add(chunk *msgset.Set, d time.Duration, err error) {
	r.Results = append(r.Results, ChunkResult{Chunk: chunk, Duration: d, Err: err})
}

// Succeeded counts chunks that completed without error.
func (r *BatchReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the chunks that failed, for caller-driven reprocessing.
func (r *BatchReport) Failed() []ChunkResult {
	var out []ChunkResult
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// FailedSet folds the failed chunks back into one set so the caller can
// retry them as a unit.
func (r *BatchReport) FailedSet() (*msgset.Set, error) {
	var acc *msgset.Set
	for _, res := range r.Failed() {
		if acc == nil {
			acc = res.Chunk
			continue
		}
		merged, err := msgset.Union(acc, res.Chunk)
		if err != nil {
			return nil, err
		}
		acc = merged
	}
	return acc, nil
}

// Ok reports whether every chunk succeeded.
func (r *BatchReport) Ok() bool {
	return r.Succeeded() == len(r.Results)
}

// Err summarizes failures, or returns nil when everything succeeded.
func (r *BatchReport) Err() error {
	failed := len(r.Results) - r.Succeeded()
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%s: %d of %d chunks failed in %q", r.Command, failed, len(r.Results), r.Scope)
}

// Adaptive chunk sizing: policy over the Batcher's SetSize knob. The
// engine's iterator stays deterministic; latency heuristics live here.
const (
	slowChunk = 5 * time.Second
	fastChunk = 500 * time.Millisecond
	minChunk  = 10
	growLimit = 8 // max growth factor over the configured size
)

type adaptiveSizer struct {
	size int
	min  int
	max  int
}

func newAdaptiveSizer(initial int) *adaptiveSizer {
	if initial < 1 {
		initial = 1
	}
	min := minChunk
	if initial < min {
		min = initial
	}
	return &adaptiveSizer{size: initial, min: min, max: initial * growLimit}
}

// adjust returns the size to use for the next chunk given the duration of
// the last one.
func (a *adaptiveSizer) adjust(d time.Duration) int {
	switch {
	case d > slowChunk && a.size > a.min:
		a.size /= 2
		if a.size < a.min {
			a.size = a.min
		}
		metrics.IMAPBatchResizesTotal.WithLabelValues("shrink").Inc()
	case d < fastChunk && a.size < a.max:
		a.size *= 2
		if a.size > a.max {
			a.size = a.max
		}
		metrics.IMAPBatchResizesTotal.WithLabelValues("grow").Inc()
	}
	return a.size
}
