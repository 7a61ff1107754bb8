package lode

import (
	"context"

	"github.com/pithecene-io/scriptrun/metrics"
	"github.com/pithecene-io/scriptrun/policy"
	"github.com/pithecene-io/scriptrun/types"
)

// InstrumentedSink counts archive writes on a metrics collector. Each
// call, not each record, counts once.
type InstrumentedSink struct {
	inner     policy.Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps inner.
func NewInstrumentedSink(inner policy.Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// WriteLines delegates and records the outcome.
func (s *InstrumentedSink) WriteLines(ctx context.Context, lines []*types.OutputLine) error {
	return s.record(s.inner.WriteLines(ctx, lines))
}

// WriteResult delegates and records the outcome.
func (s *InstrumentedSink) WriteResult(ctx context.Context, result *types.StepResult) error {
	return s.record(s.inner.WriteResult(ctx, result))
}

// PutFile delegates to the inner sink when it stores sidecar files.
func (s *InstrumentedSink) PutFile(ctx context.Context, filename, contentType string, data []byte) error {
	fw, ok := s.inner.(FileWriter)
	if !ok {
		return nil
	}
	return s.record(fw.PutFile(ctx, filename, contentType, data))
}

func (s *InstrumentedSink) record(err error) error {
	if err != nil {
		s.collector.IncLodeWriteFailure()
	} else {
		s.collector.IncLodeWriteSuccess()
	}
	return err
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

var (
	_ policy.Sink = (*InstrumentedSink)(nil)
	_ FileWriter  = (*InstrumentedSink)(nil)
)
