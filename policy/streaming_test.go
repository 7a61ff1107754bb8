package policy_test

import (
	"errors"
	"testing"
	"time"

	"github.com/pithecene-io/scriptrun/policy"
)

func mustNewStreamingPolicy(t *testing.T, sink policy.Sink, config policy.StreamingConfig) *policy.StreamingPolicy {
	t.Helper()
	pol, err := policy.NewStreamingPolicy(sink, config)
	if err != nil {
		t.Fatalf("NewStreamingPolicy failed: %v", err)
	}
	t.Cleanup(func() { _ = pol.Close() })
	return pol
}

func TestStreamingPolicy_InvalidConfig(t *testing.T) {
	_, err := policy.NewStreamingPolicy(policy.NewStubSink(), policy.StreamingConfig{})
	if !errors.Is(err, policy.ErrStreamingInvalidConfig) {
		t.Errorf("expected ErrStreamingInvalidConfig, got %v", err)
	}
}

func TestStreamingPolicy_CountTrigger_FlushesAtThreshold(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{FlushCount: 3})

	for i := 1; i <= 2; i++ {
		if err := pol.IngestLine(t.Context(), line(i, "x")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if sink.Stats().LinesWritten != 0 {
		t.Errorf("expected 0 lines written below threshold, got %d", sink.Stats().LinesWritten)
	}

	if err := pol.IngestLine(t.Context(), line(3, "x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sink.Stats().LinesWritten != 3 {
		t.Errorf("expected 3 lines written at threshold, got %d", sink.Stats().LinesWritten)
	}
	if got := pol.FlushTriggerStats()[policy.FlushTriggerCount]; got != 1 {
		t.Errorf("count-trigger flushes = %d, want 1", got)
	}
}

func TestStreamingPolicy_OrderingPreserved(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{FlushCount: 100})

	for i := 1; i <= 5; i++ {
		_ = pol.IngestLine(t.Context(), line(i, "x"))
	}
	if err := pol.Flush(t.Context()); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	if len(sink.WrittenLines) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(sink.WrittenLines))
	}
	for i, l := range sink.WrittenLines {
		if l.Number != i+1 {
			t.Errorf("line %d: expected number %d, got %d", i, i+1, l.Number)
		}
	}
}

func TestStreamingPolicy_FlushFailure_PreservesBuffer(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{FlushCount: 100})

	for i := 1; i <= 3; i++ {
		_ = pol.IngestLine(t.Context(), line(i, "x"))
	}

	sink.SetError(errors.New("write failed"))
	if err := pol.Flush(t.Context()); err == nil {
		t.Fatal("expected flush to fail")
	}

	stats := pol.Stats()
	if stats.BufferSize == 0 {
		t.Error("buffer should not be cleared on flush failure")
	}
	if stats.Errors != 1 {
		t.Errorf("expected Errors=1, got %d", stats.Errors)
	}

	// Lines ingested after the failure go behind the restored batch.
	_ = pol.IngestLine(t.Context(), line(4, "x"))

	sink.SetError(nil)
	if err := pol.Flush(t.Context()); err != nil {
		t.Fatalf("retry flush failed: %v", err)
	}
	if sink.Stats().LinesWritten != 4 {
		t.Errorf("expected 4 lines written after retry, got %d", sink.Stats().LinesWritten)
	}
	for i, l := range sink.WrittenLines {
		if l.Number != i+1 {
			t.Errorf("line %d: expected number %d, got %d", i, i+1, l.Number)
		}
	}
	if pol.Stats().BufferSize != 0 {
		t.Errorf("BufferSize = %d after successful flush", pol.Stats().BufferSize)
	}
}

func TestStreamingPolicy_EmptyFlush_NoWriteCalls(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{FlushCount: 10})

	if err := pol.Flush(t.Context()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sink.Stats().LineBatches != 0 {
		t.Errorf("expected 0 batches, got %d", sink.Stats().LineBatches)
	}
}

func TestStreamingPolicy_BufferSize_TracksText(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{FlushCount: 100})

	_ = pol.IngestLine(t.Context(), line(1, "short"))
	small := pol.Stats().BufferSize
	_ = pol.IngestLine(t.Context(), line(2, "a considerably longer line of output"))
	if grown := pol.Stats().BufferSize; grown <= small {
		t.Errorf("BufferSize did not grow: %d -> %d", small, grown)
	}
}

func TestStreamingPolicy_IntervalTrigger(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{FlushInterval: 20 * time.Millisecond})

	_ = pol.IngestLine(t.Context(), line(1, "x"))

	deadline := time.Now().Add(2 * time.Second)
	for sink.Stats().LinesWritten == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if sink.Stats().LinesWritten != 1 {
		t.Fatalf("interval flush did not write the line")
	}
	if pol.FlushTriggerStats()[policy.FlushTriggerInterval] == 0 {
		t.Error("interval trigger not recorded")
	}
}

func TestStreamingPolicy_CloseFlushesAndClosesSink(t *testing.T) {
	sink := policy.NewStubSink()
	pol, err := policy.NewStreamingPolicy(sink, policy.StreamingConfig{FlushCount: 100})
	if err != nil {
		t.Fatal(err)
	}
	_ = pol.IngestLine(t.Context(), line(1, "x"))

	if err := pol.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	stats := sink.Stats()
	if stats.LinesWritten != 1 || !stats.Closed {
		t.Errorf("sink stats after close = %+v", stats)
	}
	// A second close must not panic on the stop channel.
	_ = pol.Close()
}
