package policy

import (
	"context"
	"sync"

	"github.com/pithecene-io/scriptrun/types"
)

// Sink abstracts archive persistence for policies.
type Sink interface {
	// WriteLines persists a batch of lines, preserving order.
	WriteLines(ctx context.Context, lines []*types.OutputLine) error

	// WriteResult persists the terminal step result.
	WriteResult(ctx context.Context, result *types.StepResult) error

	// Close releases any resources held by the sink.
	Close() error
}

// StubSink is a test sink that keeps writes in memory.
type StubSink struct {
	mu sync.Mutex

	// LinesWritten is the total count of lines written.
	LinesWritten int64
	// LineBatches is the number of WriteLines calls.
	LineBatches int64
	// Closed indicates whether Close was called.
	Closed bool

	// WrittenLines stores all written lines for inspection.
	WrittenLines []*types.OutputLine
	// Result is the last result written.
	Result *types.StepResult

	// ErrorOnWrite, if non-nil, is returned by WriteLines and WriteResult.
	ErrorOnWrite error
}

// NewStubSink creates a new stub sink for testing.
func NewStubSink() *StubSink {
	return &StubSink{}
}

// WriteLines records the lines.
func (s *StubSink) WriteLines(_ context.Context, lines []*types.OutputLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}
	s.LineBatches++
	s.LinesWritten += int64(len(lines))
	s.WrittenLines = append(s.WrittenLines, lines...)
	return nil
}

// WriteResult records the result.
func (s *StubSink) WriteResult(_ context.Context, result *types.StepResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}
	s.Result = result
	return nil
}

// SetError sets the error returned by subsequent writes.
func (s *StubSink) SetError(err error) {
	s.mu.Lock()
	s.ErrorOnWrite = err
	s.mu.Unlock()
}

// Close marks the sink as closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Closed = true
	return nil
}

// Stats returns a snapshot of sink statistics.
func (s *StubSink) Stats() StubSinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StubSinkStats{
		LinesWritten: s.LinesWritten,
		LineBatches:  s.LineBatches,
		Closed:       s.Closed,
	}
}

// StubSinkStats is a snapshot of StubSink statistics.
type StubSinkStats struct {
	LinesWritten int64
	LineBatches  int64
	Closed       bool
}
