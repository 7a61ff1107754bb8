package shell

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pithecene-io/scriptrun/scratch"
	"github.com/pithecene-io/scriptrun/types"
)

func newRequest(t *testing.T, script string) *Request {
	t.Helper()
	dir := t.TempDir()
	return &Request{
		Script:    script,
		Workspace: dir,
		Vars: map[string]string{
			"FOO":          "it's here",
			"a.b":          "dotted",
			"x-y":          "dashed",
			"script":       "reserved",
			"variables.v1": "namespaced",
		},
		Scratch: scratch.NewWithSuffix(dir, "b-1", "abcd1234"),
		Charset: types.CharsetUTF8,
		OS:      types.OSLinux,
	}
}

func readScript(t *testing.T, cmd *Command) string {
	t.Helper()
	t.Cleanup(func() { _ = cmd.Cleanup() })
	data, err := os.ReadFile(cmd.ScriptFile)
	if err != nil {
		t.Fatalf("read wrapper: %v", err)
	}
	return string(data)
}

func TestBash_Wrapper(t *testing.T) {
	req := newRequest(t, "#!/bin/bash\necho hi\r\necho bye")
	cmd, err := Build(Bash, req)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	content := readScript(t, cmd)

	if !strings.HasPrefix(content, "#!/bin/bash\n") {
		t.Errorf("shebang not first line:\n%s", content)
	}
	for _, want := range []string{
		"export WORKSPACE=",
		"export DEVOPS_BUILD_SCRIPT_FILE=",
		"export FOO='its here'",
		"set -e\n",
		"setEnv(){",
		"format_multiple_lines() {",
		req.Scratch.EnvFile(),
		req.Scratch.MultiLineFile(),
		"echo hi\necho bye\n",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("wrapper missing %q:\n%s", want, content)
		}
	}
	for _, unwanted := range []string{"a.b", "x-y", "reserved", "\r"} {
		if strings.Contains(content, unwanted) {
			t.Errorf("wrapper should not contain %q", unwanted)
		}
	}
	if strings.Count(content, "#!/bin/bash") != 1 {
		t.Error("shebang duplicated")
	}

	if cmd.Path != "bash" || len(cmd.Args) != 1 || cmd.Args[0] != cmd.ScriptFile {
		t.Errorf("command = %s", cmd)
	}
	if cmd.Dir != req.Workspace {
		t.Errorf("Dir = %q, want %q", cmd.Dir, req.Workspace)
	}
	info, err := os.Stat(cmd.ScriptFile)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Errorf("wrapper not executable: %v", info.Mode())
	}
}

func TestBash_ContinueOnError(t *testing.T) {
	req := newRequest(t, "false")
	req.ContinueOnError = true
	cmd, err := Build(Sh, req)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	content := readScript(t, cmd)
	if !strings.Contains(content, "set +e\n") || strings.Contains(content, "set -e\n") {
		t.Errorf("expected set +e only:\n%s", content)
	}
	if cmd.Path != "sh" {
		t.Errorf("Path = %q, want sh", cmd.Path)
	}
}

func TestSh_WrapperIsPOSIX(t *testing.T) {
	req := newRequest(t, "echo hi")
	cmd, err := Build(Sh, req)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	content := readScript(t, cmd)

	for _, want := range []string{"setEnv(){", "format_multiple_lines() {", "case \"$1\" in", "awk '{"} {
		if !strings.Contains(content, want) {
			t.Errorf("wrapper missing %q:\n%s", want, content)
		}
	}
	for _, bashism := range []string{"[[", "local ", "${content//", "$'"} {
		if strings.Contains(content, bashism) {
			t.Errorf("sh wrapper contains bash-only %q:\n%s", bashism, content)
		}
	}
}

func TestWinBash_FallsBackToPath(t *testing.T) {
	req := newRequest(t, "echo hi")
	cmd, err := winBashBuilder{gitBash: filepath.Join(t.TempDir(), "missing.exe")}.Build(req)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	_ = readScript(t, cmd)
	if cmd.Path != "bash" {
		t.Errorf("Path = %q, want bash", cmd.Path)
	}
	want := []string{"--login", "-i", "--", filepath.ToSlash(cmd.ScriptFile)}
	if strings.Join(cmd.Args, " ") != strings.Join(want, " ") {
		t.Errorf("Args = %v, want %v", cmd.Args, want)
	}
}

func TestPython_Wrapper(t *testing.T) {
	req := newRequest(t, "print('hi')")
	req.Vars["QUOTED"] = "say \"hi\"\n"
	cmd, err := Build(Python, req)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	content := readScript(t, cmd)

	if !strings.HasPrefix(content, "import os\n") {
		t.Errorf("missing import os:\n%s", content)
	}
	for _, want := range []string{
		"os.environ['WORKSPACE']=",
		"os.environ['FOO']=\"it's here\"",
		`os.environ['QUOTED']="say \"hi\"\n"`,
		"def setEnv(key, value):",
		"def format_multiple_lines(content):",
		"print('hi')",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("wrapper missing %q:\n%s", want, content)
		}
	}
	if strings.Contains(content, "a.b") {
		t.Error("dotted key exported")
	}
	if cmd.Path != "python3" || filepath.Ext(cmd.ScriptFile) != ".py" {
		t.Errorf("command = %s", cmd)
	}
}

func TestPwsh_Wrapper(t *testing.T) {
	req := newRequest(t, "Write-Host hi\nWrite-Host bye")
	req.Vars["MULTI"] = "a\nb"
	cmd, err := Build(Pwsh, req)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	content := readScript(t, cmd)

	for _, want := range []string{
		"Set-Item -Path Env:\\WORKSPACE -Value '",
		"Set-Item -Path Env:\\FOO -Value 'it''s here'",
		"[Console]::OutputEncoding = [System.Text.Encoding]::UTF8",
		"function setEnv($key, $value)",
		"function setGateValue($key, $value)",
		"Write-Host hi\r\nWrite-Host bye\r\nexit",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("wrapper missing %q:\n%s", want, content)
		}
	}
	for _, unwanted := range []string{"namespaced", "MULTI"} {
		if strings.Contains(content, unwanted) {
			t.Errorf("wrapper should not contain %q", unwanted)
		}
	}
	if cmd.Path != "pwsh" {
		t.Errorf("Path = %q, want pwsh", cmd.Path)
	}
}

func TestPowerShell_Invocation(t *testing.T) {
	req := newRequest(t, "Write-Host hi")
	req.Charset = types.CharsetGBK
	cmd, err := Build(PowerShell, req)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	content := readScript(t, cmd)
	if strings.Contains(content, "OutputEncoding") {
		t.Error("GBK wrapper should not force UTF-8 console")
	}
	want := "powershell -ExecutionPolicy Bypass -File " + cmd.ScriptFile
	if cmd.String() != want {
		t.Errorf("command = %q, want %q", cmd.String(), want)
	}
}

func TestCmd_Wrapper(t *testing.T) {
	req := newRequest(t, "echo hi\necho ::set-output name=a::b")
	cmd, err := Build(Cmd, req)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	content := readScript(t, cmd)
	for _, want := range []string{
		"chcp 65001",
		"set \"FOO=it's here\"",
		"echo hi\r\necho ::set-output name=a::b\r\n",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("wrapper missing %q:\n%s", want, content)
		}
	}
	if cmd.Path != "cmd.exe" || cmd.Args[0] != "/c" || filepath.Ext(cmd.ScriptFile) != ".bat" {
		t.Errorf("command = %s", cmd)
	}
}

func TestBuild_GBKEncodesWrapper(t *testing.T) {
	req := newRequest(t, "echo 中文")
	req.Charset = types.CharsetGBK
	cmd, err := Build(Bash, req)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	content := readScript(t, cmd)
	if strings.Contains(content, "中文") {
		t.Error("GBK wrapper should not contain UTF-8 bytes for the script text")
	}
	if !strings.Contains(content, "\xd6\xd0\xce\xc4") {
		t.Errorf("expected GBK bytes for script text")
	}
}

func TestBuilderFor_Unknown(t *testing.T) {
	if _, err := BuilderFor(Auto); !errors.Is(err, ErrUnsupportedShell) {
		t.Fatalf("expected ErrUnsupportedShell, got %v", err)
	}
}

func TestCommand_CleanupNil(t *testing.T) {
	var c *Command
	if err := c.Cleanup(); err != nil {
		t.Fatalf("nil Cleanup: %v", err)
	}
}
