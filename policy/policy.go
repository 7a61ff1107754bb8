// Package policy decides how captured output lines reach the archive.
package policy

import (
	"context"
	"sync"

	"github.com/pithecene-io/scriptrun/types"
)

// Policy controls buffering and persistence of archived output lines.
//
// No policy drops lines. Archive failures never fail a step; the caller
// logs and counts them.
type Policy interface {
	// IngestLine accepts one output line. Lines must be persisted in
	// ingestion order.
	IngestLine(ctx context.Context, line *types.OutputLine) error

	// Flush persists anything buffered. Called once the pipeline drained.
	Flush(ctx context.Context) error

	// Close releases policy resources and closes the sink.
	Close() error

	// Stats returns a consistent snapshot of policy counters.
	Stats() Stats
}

// Stats holds policy counters.
type Stats struct {
	// TotalLines is the number of lines received.
	TotalLines int64
	// LinesPersisted is the number of lines written to the sink.
	LinesPersisted int64
	// BufferSize is the estimated size in bytes of buffered lines.
	BufferSize int64
	// FlushCount is the number of flush operations.
	FlushCount int64
	// Errors is the number of failed sink writes.
	Errors int64
}

// statsRecorder guards Stats for policies.
//
// StrictPolicy uses the locking methods. StreamingPolicy uses the Locked
// methods while holding its own mutex so buffer state and counters move
// together.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func (r *statsRecorder) incTotalLines() {
	r.mu.Lock()
	r.stats.TotalLines++
	r.mu.Unlock()
}

func (r *statsRecorder) incLinesPersisted(n int64) {
	r.mu.Lock()
	r.stats.LinesPersisted += n
	r.mu.Unlock()
}

func (r *statsRecorder) incErrors() {
	r.mu.Lock()
	r.stats.Errors++
	r.mu.Unlock()
}

func (r *statsRecorder) incFlush() {
	r.mu.Lock()
	r.stats.FlushCount++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// --- Locked methods for StreamingPolicy ---

func (r *statsRecorder) incTotalLinesLocked() { r.stats.TotalLines++ }
func (r *statsRecorder) incLinesPersistedLocked(n int64) { r.stats.LinesPersisted += n }
func (r *statsRecorder) incErrorsLocked() { r.stats.Errors++ }
func (r *statsRecorder) incFlushLocked() { r.stats.FlushCount++ }
func (r *statsRecorder) setBufferSizeLocked(bytes int64) { r.stats.BufferSize = bytes }
func (r *statsRecorder) snapshotLocked() Stats { return r.stats }
