package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/scriptrun/types"
)

func TestLogger_StepFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&types.StepMeta{BuildID: "b-1", TaskID: "t-9"}, &buf, zapcore.DebugLevel)
	l.Info("spawned", map[string]any{"shell": "bash"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if entry["message"] != "spawned" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v", entry["level"])
	}
	if entry["build_id"] != "b-1" || entry["task_id"] != "t-9" {
		t.Errorf("missing step fields: %v", entry)
	}
	fields, _ := entry["fields"].(map[string]any)
	if fields["shell"] != "bash" {
		t.Errorf("fields = %v", entry["fields"])
	}
}

func TestLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(nil, &buf, zapcore.WarnLevel)
	l.Debug("hidden", nil)
	l.Warn("shown", nil)

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("unexpected output %q", out)
	}
	if strings.Contains(out, "build_id") {
		t.Error("nil meta should not add step fields")
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("")
	if err != nil || lvl != zapcore.InfoLevel {
		t.Errorf("ParseLevel(\"\") = %v, %v", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
