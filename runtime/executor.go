package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pithecene-io/scriptrun/shell"
)

// waitDelay bounds how long Wait keeps copying output after the child
// exits while a grandchild still holds the pipes open.
const waitDelay = 10 * time.Second

// ExecutorResult is the exit status of the child.
type ExecutorResult struct {
	ExitCode int
}

// Executor abstracts the child process lifecycle for testing.
type Executor interface {
	Start(ctx context.Context) error
	Wait() (*ExecutorResult, error)
	Kill() error
}

// ExecutorFactory creates an Executor writing child output to stdout and
// stderr. Used for test injection.
type ExecutorFactory func(cmd *shell.Command, stdout, stderr io.Writer) Executor

// ExecutorManager runs a shell.Command as a child process.
type ExecutorManager struct {
	command *shell.Command
	stdout  io.Writer
	stderr  io.Writer
	cmd     *exec.Cmd
}

// NewExecutorManager creates an executor. Output is copied into stdout and
// stderr by exec.Cmd as it arrives.
func NewExecutorManager(command *shell.Command, stdout, stderr io.Writer) *ExecutorManager {
	return &ExecutorManager{command: command, stdout: stdout, stderr: stderr}
}

var _ Executor = (*ExecutorManager)(nil)

// Start launches the child. The inherited environment is extended with
// the command's Env; later entries win.
func (m *ExecutorManager) Start(ctx context.Context) error {
	m.cmd = exec.CommandContext(ctx, m.command.Path, m.command.Args...)
	m.cmd.Dir = m.command.Dir
	m.cmd.Env = deduplicateEnv(append(os.Environ(), m.command.Env...))
	m.cmd.Stdout = m.stdout
	m.cmd.Stderr = m.stderr
	m.cmd.WaitDelay = waitDelay

	if err := m.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", m.command.Path, err)
	}
	return nil
}

// Wait waits for the child and its output copying to finish.
func (m *ExecutorManager) Wait() (*ExecutorResult, error) {
	if m.cmd == nil {
		return nil, errors.New("executor not started")
	}

	err := m.cmd.Wait()
	if err == nil {
		return &ExecutorResult{ExitCode: 0}, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExecutorResult{ExitCode: exitErr.ExitCode()}, nil
	}
	return nil, fmt.Errorf("executor wait failed: %w", err)
}

// Kill terminates the child.
func (m *ExecutorManager) Kill() error {
	if m.cmd != nil && m.cmd.Process != nil {
		return m.cmd.Process.Kill()
	}
	return nil
}

// deduplicateEnv keeps the last occurrence of each key so appended step
// variables win over inherited ones.
func deduplicateEnv(env []string) []string {
	seen := make(map[string]int, len(env))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		seen[key] = i
	}
	result := make([]string, 0, len(seen))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		if seen[key] == i {
			result = append(result, entry)
		}
	}
	return result
}
