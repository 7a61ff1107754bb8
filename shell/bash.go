package shell

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// DefaultGitBashPath is where Git for Windows installs bash.
const DefaultGitBashPath = `C:\Program Files\Git\bin\bash.exe`

const bashSetEnv = `setEnv(){
    local key=$1
    local val=$2
    if [[ -z "$@" ]]; then
        return 0
    fi
    if ! echo "$key" | grep -qE "^[a-zA-Z_][a-zA-Z0-9_]*$"; then
        echo "[$key] is invalid" >&2
        return 1
    fi
    echo $key=$val >> %s
    export $key="$val"
}
`

const bashFormatMultipleLines = `format_multiple_lines() {
    local content=$1
    content="${content//'%%'/'%%25'}"
    content="${content//$'\n'/'%%0A'}"
    content="${content//$'\r'/'%%0D'}"
    /bin/echo "$content"|sed 's/\\n/%%0A/g'|sed 's/\\r/%%0D/g' >> %s
}
`

// POSIX sh has no [[ ]], local or ${var//a/b}; its helpers validate with
// case and escape with awk.
const posixSetEnv = `setEnv(){
    if [ -z "$*" ]; then
        return 0
    fi
    case "$1" in
        ''|[!a-zA-Z_]*|*[!a-zA-Z0-9_]*)
            echo "[$1] is invalid" >&2
            return 1
            ;;
    esac
    printf '%%s=%%s\n' "$1" "$2" >> %s
    export "$1=$2"
}
`

const posixFormatMultipleLines = `format_multiple_lines() {
    printf '%%s\n' "$1" | awk '{
        gsub(/%%/, "%%25")
        gsub(/\r/, "%%0D")
        gsub(/\\n/, "%%0A")
        gsub(/\\r/, "%%0D")
        if (NR > 1) printf "%%s", "%%0A"
        printf "%%s", $0
    } END { print "" }' >> %s
}
`

// bashWrapper renders the wrapper shared by bash, sh and Git Bash. lang
// selects the quoting and helper dialect.
func bashWrapper(req *Request, scriptFile string, lang syntax.LangVariant) (string, error) {
	var b strings.Builder
	script := req.Script
	if first, rest, ok := strings.Cut(script, "\n"); strings.HasPrefix(script, "#!/") {
		b.WriteString(strings.TrimRight(first, "\r"))
		b.WriteByte('\n')
		script = rest
		if !ok {
			script = ""
		}
	}

	export := func(k, v string) error {
		q, err := syntax.Quote(v, lang)
		if err != nil {
			return fmt.Errorf("quote %s: %w", k, err)
		}
		fmt.Fprintf(&b, "export %s=%s\n", k, q)
		return nil
	}
	if err := export(envWorkspace, filepath.ToSlash(req.Workspace)); err != nil {
		return "", err
	}
	if err := export(envScriptFile, filepath.ToSlash(scriptFile)); err != nil {
		return "", err
	}
	vars := exportable(req.Vars, func(k, _ string) bool {
		return strings.ContainsAny(k, ".-") || !ValidKey(k)
	})
	for _, kv := range vars {
		v := strings.NewReplacer("'", "", "\n", "").Replace(kv[1])
		if err := export(kv[0], v); err != nil {
			return "", err
		}
	}

	if req.ContinueOnError {
		b.WriteString("set +e\n")
	} else {
		b.WriteString("set -e\n")
	}
	if req.Scratch != nil {
		setEnv, formatLines := bashSetEnv, bashFormatMultipleLines
		if lang == syntax.LangPOSIX {
			setEnv, formatLines = posixSetEnv, posixFormatMultipleLines
		}
		fmt.Fprintf(&b, setEnv, quoted(filepath.ToSlash(req.Scratch.EnvFile())))
		fmt.Fprintf(&b, formatLines, quoted(filepath.ToSlash(req.Scratch.MultiLineFile())))
	}
	b.WriteString(strings.ReplaceAll(script, "\r\n", "\n"))
	b.WriteByte('\n')
	return b.String(), nil
}

func quoted(s string) string {
	q, err := syntax.Quote(s, syntax.LangBash)
	if err != nil {
		return s
	}
	return q
}

type posixBuilder struct {
	interpreter string
	lang        syntax.LangVariant
}

func (p posixBuilder) Build(req *Request) (*Command, error) {
	path, err := createScript(req, ".sh")
	if err != nil {
		return nil, err
	}
	content, err := bashWrapper(req, path, p.lang)
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	if err := writeScript(path, content, req.Charset, 0o755); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return &Command{
		Path:       p.interpreter,
		Args:       []string{path},
		Dir:        req.Workspace,
		Env:        baseEnv(req, path),
		ScriptFile: path,
	}, nil
}

type winBashBuilder struct {
	gitBash string
}

// Build runs the wrapper through Git Bash when installed, otherwise
// through whatever bash is on PATH.
func (w winBashBuilder) Build(req *Request) (*Command, error) {
	path, err := createScript(req, ".sh")
	if err != nil {
		return nil, err
	}
	content, err := bashWrapper(req, path, syntax.LangBash)
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	if err := writeScript(path, content, req.Charset, 0o755); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	interpreter := "bash"
	if _, err := os.Stat(w.gitBash); err == nil {
		interpreter = w.gitBash
	}
	return &Command{
		Path:       interpreter,
		Args:       []string{"--login", "-i", "--", filepath.ToSlash(path)},
		Dir:        req.Workspace,
		Env:        baseEnv(req, path),
		ScriptFile: path,
	}, nil
}
