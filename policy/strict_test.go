package policy_test

import (
	"errors"
	"testing"

	"github.com/pithecene-io/scriptrun/policy"
	"github.com/pithecene-io/scriptrun/types"
)

func line(n int, text string) *types.OutputLine {
	return &types.OutputLine{Stream: types.StreamStdout, Number: n, Text: text}
}

func TestStrictPolicy_IngestLine_ImmediateWrite(t *testing.T) {
	sink := policy.NewStubSink()
	pol := policy.NewStrictPolicy(sink)

	if err := pol.IngestLine(t.Context(), line(1, "hello")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sinkStats := sink.Stats()
	if sinkStats.LinesWritten != 1 {
		t.Errorf("expected 1 line written immediately, got %d", sinkStats.LinesWritten)
	}
	if sinkStats.LineBatches != 1 {
		t.Errorf("expected 1 batch, got %d", sinkStats.LineBatches)
	}

	stats := pol.Stats()
	if stats.TotalLines != 1 || stats.LinesPersisted != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestStrictPolicy_PreservesOrder(t *testing.T) {
	sink := policy.NewStubSink()
	pol := policy.NewStrictPolicy(sink)

	for i := 1; i <= 5; i++ {
		if err := pol.IngestLine(t.Context(), line(i, "x")); err != nil {
			t.Fatal(err)
		}
	}
	for i, l := range sink.WrittenLines {
		if l.Number != i+1 {
			t.Errorf("line %d has number %d", i, l.Number)
		}
	}
}

func TestStrictPolicy_SinkError(t *testing.T) {
	sink := policy.NewStubSink()
	sink.ErrorOnWrite = errors.New("disk full")
	pol := policy.NewStrictPolicy(sink)

	if err := pol.IngestLine(t.Context(), line(1, "x")); err == nil {
		t.Fatal("expected sink error")
	}
	stats := pol.Stats()
	if stats.Errors != 1 || stats.LinesPersisted != 0 || stats.TotalLines != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestStrictPolicy_FlushAndClose(t *testing.T) {
	sink := policy.NewStubSink()
	pol := policy.NewStrictPolicy(sink)

	if err := pol.Flush(t.Context()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if pol.Stats().FlushCount != 1 {
		t.Errorf("FlushCount = %d, want 1", pol.Stats().FlushCount)
	}
	if err := pol.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !sink.Stats().Closed {
		t.Error("sink not closed")
	}
}
