package shell

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const pythonSetEnv = `def setEnv(key, value):
    os.environ[key] = value
    with open("%s", 'a+') as f:
        print("{0}={1}".format(key, value), file=f)

`

const pythonFormatMultipleLines = `def format_multiple_lines(content):
    out = content.replace('%%', '%%25').replace('\n', '%%0A').replace('\r', '%%0D')
    with open("%s", 'a+') as f:
        print(out, file=f)
    return out

`

var pyEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

type pythonBuilder struct{}

func (pythonBuilder) Build(req *Request) (*Command, error) {
	path, err := createScript(req, ".py")
	if err != nil {
		return nil, err
	}
	slashed := filepath.ToSlash(path)

	var b strings.Builder
	b.WriteString("import os\n")
	fmt.Fprintf(&b, "os.environ['%s']=\"%s\"\n", envWorkspace, pyEscaper.Replace(filepath.ToSlash(req.Workspace)))
	fmt.Fprintf(&b, "os.environ['%s']=\"%s\"\n", envScriptFile, pyEscaper.Replace(slashed))
	for _, kv := range exportable(req.Vars, func(k, _ string) bool {
		return strings.ContainsAny(k, ".-'")
	}) {
		fmt.Fprintf(&b, "os.environ['%s']=\"%s\"\n", kv[0], pyEscaper.Replace(kv[1]))
	}
	b.WriteByte('\n')
	if req.Scratch != nil {
		fmt.Fprintf(&b, pythonSetEnv, pyEscaper.Replace(filepath.ToSlash(req.Scratch.EnvFile())))
		fmt.Fprintf(&b, pythonFormatMultipleLines, pyEscaper.Replace(filepath.ToSlash(req.Scratch.MultiLineFile())))
	}
	b.WriteString(req.Script)
	b.WriteByte('\n')

	if err := writeScript(path, b.String(), req.Charset, 0o755); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return &Command{
		Path:       "python3",
		Args:       []string{slashed},
		Dir:        req.Workspace,
		Env:        baseEnv(req, path),
		ScriptFile: path,
	}, nil
}
