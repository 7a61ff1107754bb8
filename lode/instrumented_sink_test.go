package lode

import (
	"context"
	"errors"
	"testing"

	"github.com/pithecene-io/scriptrun/metrics"
	"github.com/pithecene-io/scriptrun/policy"
	"github.com/pithecene-io/scriptrun/types"
)

func TestInstrumentedSink_CountsOutcomes(t *testing.T) {
	inner := policy.NewStubSink()
	mc := metrics.NewCollector("bash", "strict", "fs", "b-1")
	sink := NewInstrumentedSink(inner, mc)

	if err := sink.WriteLines(t.Context(), []*types.OutputLine{{Text: "a"}}); err != nil {
		t.Fatal(err)
	}
	if err := sink.WriteResult(t.Context(), &types.StepResult{}); err != nil {
		t.Fatal(err)
	}
	inner.SetError(errors.New("boom"))
	if err := sink.WriteLines(t.Context(), []*types.OutputLine{{Text: "b"}}); err == nil {
		t.Fatal("expected error")
	}

	s := mc.Snapshot()
	if s.LodeWriteSuccess != 2 || s.LodeWriteFailure != 1 {
		t.Errorf("success=%d failure=%d, want 2/1", s.LodeWriteSuccess, s.LodeWriteFailure)
	}
	if err := sink.Close(); err != nil || !inner.Stats().Closed {
		t.Error("close not delegated")
	}
}

func TestInstrumentedSink_PutFile(t *testing.T) {
	mc := metrics.NewCollector("bash", "strict", "fs", "b-1")

	// A sink that cannot store files is a silent no-op.
	if err := NewInstrumentedSink(policy.NewStubSink(), mc).PutFile(t.Context(), "f", "", nil); err != nil {
		t.Fatal(err)
	}
	if mc.Snapshot().LodeWriteSuccess != 0 {
		t.Error("no-op PutFile counted")
	}

	fw := &fileSink{StubSink: policy.NewStubSink(), files: NewStubFileWriter()}
	if err := NewInstrumentedSink(fw, mc).PutFile(t.Context(), "script.sh", "text/plain", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if len(fw.files.Files) != 1 || fw.files.Files[0].Filename != "script.sh" {
		t.Errorf("files = %+v", fw.files.Files)
	}
	if mc.Snapshot().LodeWriteSuccess != 1 {
		t.Error("PutFile not counted")
	}
}

type fileSink struct {
	*policy.StubSink
	files *StubFileWriter
}

func (f *fileSink) PutFile(ctx context.Context, name, ct string, data []byte) error {
	return f.files.PutFile(ctx, name, ct, data)
}
