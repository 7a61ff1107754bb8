package runtime

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/scriptrun/metrics"
	"github.com/pithecene-io/scriptrun/types"
)

func sampleResult() *types.StepResult {
	return &types.StepResult{
		ContractVersion: types.ContractVersion,
		BuildID:         "b-1",
		Shell:           "bash",
		Status:          types.StepStatusFailure,
		Message:         "boom",
		ErrorType:       types.ErrorTypeUser,
		ErrorCode:       types.ErrCodeUserScriptCommandInvalid,
		ExitCode:        2,
		Data: map[string]types.Output{
			"dist": {Type: types.OutputTypeArtifact, Value: "dist/*.tgz", Matches: []string{"dist/a.tgz"}},
		},
		StartedAt: time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC),
		Duration:  time.Second,
		Metrics:   &metrics.Snapshot{StepsFailed: 1, BuildID: "b-1"},
	}
}

func TestResultFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	if err := WriteResultFile(sampleResult(), path); err != nil {
		t.Fatalf("WriteResultFile: %v", err)
	}

	got, err := ReadResultFile(path)
	if err != nil {
		t.Fatalf("ReadResultFile: %v", err)
	}
	if got.Status != types.StepStatusFailure || got.ExitCode != 2 || got.ErrorType != types.ErrorTypeUser {
		t.Errorf("result = %+v", got)
	}
	if m := got.Data["dist"].Matches; len(m) != 1 || m[0] != "dist/a.tgz" {
		t.Errorf("matches = %v", m)
	}
	if got.Metrics == nil || got.Metrics.StepsFailed != 1 {
		t.Errorf("metrics = %+v", got.Metrics)
	}
	if !got.StartedAt.Equal(sampleResult().StartedAt) {
		t.Errorf("StartedAt = %v", got.StartedAt)
	}
}

func TestWriteResultFile_EmptyPath(t *testing.T) {
	if err := WriteResultFile(sampleResult(), ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestWriteResultTo_Indented(t *testing.T) {
	var buf bytes.Buffer
	if err := writeResultTo(sampleResult(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "\n  \"build_id\": \"b-1\"") || !strings.HasSuffix(out, "}\n") {
		t.Errorf("output not indented JSON:\n%s", out)
	}
}

func TestReadResultFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadResultFile(path); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := ReadResultFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
