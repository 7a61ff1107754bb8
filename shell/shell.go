// Package shell resolves the interpreter for a step and writes the wrapper
// script that runs the user's script inside it.
//
// Every wrapper exports WORKSPACE, DEVOPS_BUILD_SCRIPT_FILE and the
// step's runtime variables, and defines helpers that let the script set
// environment outputs (setEnv) and multi-line markers
// (format_multiple_lines) through the step's scratch files.
package shell

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pithecene-io/scriptrun/types"
)

// Type is an interpreter family.
type Type string

const (
	Bash       Type = "bash"
	Cmd        Type = "cmd"
	Pwsh       Type = "pwsh"
	PowerShell Type = "powershell"
	Python     Type = "python"
	Sh         Type = "sh"
	WinBash    Type = "win_bash"
	Auto       Type = "auto"
)

var (
	// ErrUnsupportedShell is returned for an unknown shell name.
	ErrUnsupportedShell = errors.New("unsupported shell")
	// ErrUnsupportedOS is returned when the shell cannot run on the host OS.
	ErrUnsupportedOS = errors.New("shell not supported on this system")
)

var identifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Default returns the shell used when none is configured.
func Default(os types.OSType) Type {
	if os == types.OSWindows {
		return Cmd
	}
	return Bash
}

// Resolve maps a configured shell name to a Type for the host OS.
// Blank and "auto" pick the OS default; bash on Windows runs through
// Git Bash.
func Resolve(name string, os types.OSType) (Type, error) {
	t := Type(strings.TrimSpace(name))
	switch t {
	case "", Auto:
		return Default(os), nil
	case Bash:
		if os == types.OSWindows {
			return WinBash, nil
		}
		return Bash, nil
	case Cmd, Pwsh, PowerShell, Python, Sh, WinBash:
		return t, nil
	default:
		return "", fmt.Errorf("%w: The current system(%s) not support %s yet", ErrUnsupportedShell, os, name)
	}
}

// CheckOS rejects batch and Windows PowerShell off Windows, and sh on
// Windows.
func CheckOS(t Type, os types.OSType) error {
	windows := os == types.OSWindows
	if (!windows && (t == Cmd || t == PowerShell)) || (windows && t == Sh) {
		return fmt.Errorf("%w: The current system(%s) does not support: %s", ErrUnsupportedOS, os, t)
	}
	return nil
}

// ValidKey reports whether key is usable as an environment variable name.
func ValidKey(key string) bool {
	return identifier.MatchString(key)
}
