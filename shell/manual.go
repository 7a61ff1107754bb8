package shell

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	msh "mvdan.cc/sh/v3/shell"

	"github.com/pithecene-io/scriptrun/types"
)

// ErrManualCommand is returned when a manual start command lacks the
// ./random_name.<ext> placeholder or cannot be split.
var ErrManualCommand = errors.New("invalid manual start command")

var placeholder = regexp.MustCompile(`(\./random_name\.[a-zA-Z0-9]*)`)

// BuildManual writes the script verbatim to a file named after the
// placeholder's extension and substitutes its path into startCommand,
// e.g. "node ./random_name.js".
func BuildManual(startCommand string, req *Request) (*Command, error) {
	loc := placeholder.FindStringIndex(startCommand)
	if loc == nil {
		return nil, fmt.Errorf("%w: Please check whether your input meets the required format: %s", ErrManualCommand, startCommand)
	}
	ext := filepath.Ext(startCommand[loc[0]:loc[1]])

	path, err := createScript(req, ext)
	if err != nil {
		return nil, err
	}
	if err := writeScript(path, req.Script, types.CharsetUTF8, 0o755); err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	line := startCommand[:loc[0]] + filepath.ToSlash(path) + startCommand[loc[1]:]
	fields, err := msh.Fields(strings.TrimSpace(line), nil)
	if err != nil || len(fields) == 0 {
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: %s", ErrManualCommand, startCommand)
	}
	return &Command{
		Path:       fields[0],
		Args:       fields[1:],
		Dir:        req.Workspace,
		Env:        baseEnv(req, path),
		ScriptFile: path,
	}, nil
}
