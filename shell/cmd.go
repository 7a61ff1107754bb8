package shell

import (
	"fmt"
	"os"
	"strings"

	"github.com/pithecene-io/scriptrun/types"
)

type cmdBuilder struct{}

// Build writes a batch file. Batch has no functions, so only variables
// are exported; markers still work through echo.
func (cmdBuilder) Build(req *Request) (*Command, error) {
	path, err := createScript(req, ".bat")
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("@echo off\r\n")
	if req.Charset == types.CharsetUTF8 {
		b.WriteString("chcp 65001 >nul\r\n")
	}
	fmt.Fprintf(&b, "set \"%s=%s\"\r\n", envWorkspace, req.Workspace)
	fmt.Fprintf(&b, "set \"%s=%s\"\r\n", envScriptFile, path)
	for _, kv := range exportable(req.Vars, func(k, v string) bool {
		return skipNamespaced(k, v) || strings.ContainsAny(k, "\"=")
	}) {
		fmt.Fprintf(&b, "set \"%s=%s\"\r\n", kv[0], strings.ReplaceAll(kv[1], `"`, ""))
	}
	b.WriteString("@echo on\r\n")
	b.WriteString(toCRLF(req.Script))
	b.WriteString("\r\n")

	if err := writeScript(path, b.String(), req.Charset, 0o755); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return &Command{
		Path:       "cmd.exe",
		Args:       []string{"/c", path},
		Dir:        req.Workspace,
		Env:        baseEnv(req, path),
		ScriptFile: path,
	}, nil
}
