package cmd

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/scriptrun/runtime"
	"github.com/pithecene-io/scriptrun/types"
)

// runApp runs args against a single command and returns the action error
// without exiting the process.
func runApp(t *testing.T, cmd *cli.Command, args ...string) error {
	t.Helper()
	app := &cli.App{
		Name:           "scriptrun",
		Commands:       []*cli.Command{cmd},
		ExitErrHandler: func(*cli.Context, error) {},
	}
	return app.Run(append([]string{"scriptrun", cmd.Name}, args...))
}

func exitCode(err error) int {
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}

func TestInspect_ResultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	result := &types.StepResult{
		ContractVersion: types.ContractVersion,
		BuildID:         "b-1",
		Status:          types.StepStatusSuccess,
		Message:         "LINUX script execution succeeded",
		StartedAt:       time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC),
	}
	if err := runtime.WriteResultFile(result, path); err != nil {
		t.Fatal(err)
	}

	if err := runApp(t, InspectCommand(), "--format", "json", path); err != nil {
		t.Errorf("inspect failed: %v", err)
	}
}

func TestInspect_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no source", nil, "result-file or --build-id required"},
		{"no archive", []string{"--build-id", "b-1"}, "no archive"},
		{"bad format", []string{"--format", "xml", "x.json"}, "json, table, or yaml"},
		{"missing file", []string{filepath.Join(t.TempDir(), "none.json")}, "none.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SCRIPTRUN_BUILD_ID", "")
			err := runApp(t, InspectCommand(), tt.args...)
			if code := exitCode(err); code != exitError {
				t.Errorf("exit code = %d, want %d (%v)", code, exitError, err)
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestInspect_NoResultInArchive(t *testing.T) {
	err := runApp(t, InspectCommand(), "--storage-path", t.TempDir(), "--build-id", "b-404")
	if err == nil {
		t.Fatal("expected error")
	}
	// An empty archive may fail as not found or as unreadable.
	if code := exitCode(err); code != exitFailure && code != exitError {
		t.Errorf("exit code = %d (%v)", code, err)
	}
}

func TestVersionAndParse_RejectTUI(t *testing.T) {
	for _, cmd := range []*cli.Command{VersionCommand("abc"), ParseCommand()} {
		err := runApp(t, cmd, "--tui")
		if err == nil || !strings.Contains(err.Error(), "--tui is not supported") {
			t.Errorf("%s: error = %v", cmd.Name, err)
		}
	}
}
