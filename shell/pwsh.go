package shell

import (
	"fmt"
	"os"
	"strings"

	"github.com/pithecene-io/scriptrun/types"
)

// pwshSkippedPrefixes are namespaced variables that PowerShell wrappers
// never export.
var pwshSkippedPrefixes = []string{
	"variables.", "settings.", "envs.", "ci.", "job.", "jobs.", "steps.",
}

const pwshSetEnv = "function setEnv($key, $value)\r\n{\r\n" +
	"    Set-Item -Path Env:\\$key -Value $value\r\n" +
	"    \"$key=$value\" | Out-File -Append -Encoding utf8 %s\r\n}\r\n"

const pwshSetGateValue = "function setGateValue($key, $value)\r\n{\r\n" +
	"    \"$key=$value\" | Out-File -Append -Encoding utf8 %s\r\n}\r\n"

func pwshQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func skipNamespaced(k, v string) bool {
	for _, p := range pwshSkippedPrefixes {
		if strings.HasPrefix(k, p) {
			return true
		}
	}
	return strings.ContainsAny(v, "\r\n")
}

type pwshBuilder struct {
	desktop bool
}

func (p pwshBuilder) Build(req *Request) (*Command, error) {
	path, err := createScript(req, ".ps1")
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Set-Item -Path Env:\\%s -Value %s\r\n", envWorkspace, pwshQuote(req.Workspace))
	fmt.Fprintf(&b, "Set-Item -Path Env:\\%s -Value %s\r\n", envScriptFile, pwshQuote(path))
	for _, kv := range exportable(req.Vars, skipNamespaced) {
		fmt.Fprintf(&b, "Set-Item -Path Env:\\%s -Value %s\r\n", kv[0], pwshQuote(kv[1]))
	}
	b.WriteString("\r\n")
	if req.Charset == types.CharsetUTF8 {
		b.WriteString("[Console]::OutputEncoding = [System.Text.Encoding]::UTF8\r\n")
	}
	if req.Scratch != nil {
		fmt.Fprintf(&b, pwshSetEnv, pwshQuote(req.Scratch.EnvFile()))
		fmt.Fprintf(&b, pwshSetGateValue, pwshQuote(req.Scratch.GatewayFile()))
	}
	b.WriteString(toCRLF(req.Script))
	b.WriteString("\r\nexit\r\n")

	if err := writeScript(path, b.String(), req.Charset, 0o755); err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	cmd := &Command{
		Path:       "pwsh",
		Args:       []string{path},
		Dir:        req.Workspace,
		Env:        baseEnv(req, path),
		ScriptFile: path,
	}
	if p.desktop {
		cmd.Path = "powershell"
		cmd.Args = []string{"-ExecutionPolicy", "Bypass", "-File", path}
	}
	return cmd, nil
}

func toCRLF(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\n", "\r\n")
}
