package shell

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/pithecene-io/scriptrun/iox"
	"github.com/pithecene-io/scriptrun/scratch"
	"github.com/pithecene-io/scriptrun/stream"
	"github.com/pithecene-io/scriptrun/types"
)

const (
	envWorkspace  = "WORKSPACE"
	envScriptFile = "DEVOPS_BUILD_SCRIPT_FILE"

	scriptPrefix = "devops_script"
)

// ReservedParams are step input names never exported as variables.
var ReservedParams = []string{
	"script", "shell", "charsetType", "manualCommand",
	"pipelineBuildId", "pipelineTaskId", "pipelineStartUserId",
	"projectName", "taskName", "bkWorkspace", "stepId",
}

// Request is everything a builder needs to produce a Command.
type Request struct {
	Script    string
	Workspace string
	// TempDir receives the wrapper file. Defaults to Workspace.
	TempDir string
	Vars    map[string]string
	Scratch *scratch.Set
	Charset types.Charset
	// ContinueOnError turns off errexit in shells that support it.
	ContinueOnError bool
	OS              types.OSType
}

// Command is a ready-to-spawn child process.
type Command struct {
	Path string
	Args []string
	Dir  string
	// Env is appended to the inherited environment.
	Env []string
	// ScriptFile is the generated wrapper, removed by Cleanup.
	ScriptFile string
}

// String renders the command line for logs.
func (c *Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// Cleanup removes the wrapper file.
func (c *Command) Cleanup() error {
	if c == nil || c.ScriptFile == "" {
		return nil
	}
	return iox.RemoveIfExists(c.ScriptFile)
}

// Builder produces a Command for one shell family.
type Builder interface {
	Build(req *Request) (*Command, error)
}

// BuilderFor returns the builder for t.
func BuilderFor(t Type) (Builder, error) {
	switch t {
	case Bash:
		return posixBuilder{interpreter: string(t), lang: syntax.LangBash}, nil
	case Sh:
		return posixBuilder{interpreter: string(t), lang: syntax.LangPOSIX}, nil
	case WinBash:
		return winBashBuilder{gitBash: DefaultGitBashPath}, nil
	case Python:
		return pythonBuilder{}, nil
	case Pwsh, PowerShell:
		return pwshBuilder{desktop: t == PowerShell}, nil
	case Cmd:
		return cmdBuilder{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedShell, t)
	}
}

// Build resolves the builder for t and builds req.
func Build(t Type, req *Request) (*Command, error) {
	b, err := BuilderFor(t)
	if err != nil {
		return nil, err
	}
	return b.Build(req)
}

// createScript creates an empty wrapper file with the given extension.
func createScript(req *Request, ext string) (string, error) {
	dir := req.TempDir
	if dir == "" {
		dir = req.Workspace
	}
	f, err := os.CreateTemp(dir, scriptPrefix+"*"+ext)
	if err != nil {
		return "", fmt.Errorf("create script file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return "", err
	}
	if abs, err := filepath.Abs(name); err == nil {
		name = abs
	}
	return name, nil
}

// writeScript writes content to path encoded with cs.
func writeScript(path, content string, cs types.Charset, mode os.FileMode) error {
	data, err := stream.Encoder(cs).Bytes([]byte(content))
	if err != nil {
		return fmt.Errorf("encode script: %w", err)
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("write script file: %w", err)
	}
	return os.Chmod(path, mode)
}

// exportable returns runtime variables sorted by name, dropping reserved
// step inputs and anything skip rejects.
func exportable(vars map[string]string, skip func(k, v string) bool) [][2]string {
	out := make([][2]string, 0, len(vars))
	for _, k := range slices.Sorted(maps.Keys(vars)) {
		v := vars[k]
		if slices.Contains(ReservedParams, k) || skip(k, v) {
			continue
		}
		out = append(out, [2]string{k, v})
	}
	return out
}

func baseEnv(req *Request, scriptFile string) []string {
	return []string{
		envWorkspace + "=" + req.Workspace,
		envScriptFile + "=" + scriptFile,
	}
}
