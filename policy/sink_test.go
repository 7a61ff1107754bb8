package policy_test

import (
	"errors"
	"testing"

	"github.com/pithecene-io/scriptrun/policy"
	"github.com/pithecene-io/scriptrun/types"
)

func TestStubSink_RecordsWrites(t *testing.T) {
	sink := policy.NewStubSink()

	if err := sink.WriteLines(t.Context(), []*types.OutputLine{line(1, "a"), line(2, "b")}); err != nil {
		t.Fatal(err)
	}
	res := &types.StepResult{BuildID: "b-1", Status: types.StepStatusSuccess}
	if err := sink.WriteResult(t.Context(), res); err != nil {
		t.Fatal(err)
	}

	stats := sink.Stats()
	if stats.LinesWritten != 2 || stats.LineBatches != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if sink.Result != res {
		t.Error("result not recorded")
	}
}

func TestStubSink_ErrorOnWrite(t *testing.T) {
	sink := policy.NewStubSink()
	sink.SetError(errors.New("boom"))

	if err := sink.WriteLines(t.Context(), []*types.OutputLine{line(1, "a")}); err == nil {
		t.Error("expected WriteLines error")
	}
	if err := sink.WriteResult(t.Context(), &types.StepResult{}); err == nil {
		t.Error("expected WriteResult error")
	}
	if sink.Stats().LinesWritten != 0 {
		t.Error("failed write was counted")
	}
}
