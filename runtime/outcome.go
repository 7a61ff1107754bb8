package runtime

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/scriptrun/types"
)

// TroubleshootingGuide is appended to script failure messages.
const TroubleshootingGuide = `
====== Script Execution Failed, Troubleshooting Guide ======

When the script exit code is non-zero, it indicates that the execution has failed. You can analyze it from the following paths:
  1. Troubleshoot based on error logs.
  2. Manually execute the script locally. If it also fails locally, it is likely to be a script logic issue.
If it succeeds locally, troubleshoot the build environment (such as environment dependencies or code changes, etc.).
`

// ErrorKind attributes a step failure.
type ErrorKind int

const (
	// ErrorKindUser is a mistake in the step's input or markers.
	ErrorKindUser ErrorKind = iota + 1
	// ErrorKindScript is a script that failed to start or exited non-zero.
	ErrorKindScript
	// ErrorKindPlugin is anything unexpected.
	ErrorKindPlugin
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindUser:
		return "user"
	case ErrorKindScript:
		return "script"
	case ErrorKindPlugin:
		return "plugin"
	default:
		return "unknown"
	}
}

// StepError is a classified step failure.
type StepError struct {
	Kind ErrorKind
	Code int
	Err  error
}

func (e *StepError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// UserError classifies err as a user failure.
func UserError(err error) *StepError {
	return &StepError{Kind: ErrorKindUser, Code: types.ErrCodeUserScriptCommandInvalid, Err: err}
}

// ScriptError classifies err as a script failure.
func ScriptError(err error) *StepError {
	return &StepError{Kind: ErrorKindScript, Code: types.ErrCodeUserScriptCommandInvalid, Err: err}
}

// PluginError classifies err as an unexpected failure.
func PluginError(err error) *StepError {
	return &StepError{Kind: ErrorKindPlugin, Code: types.ErrCodeUserTaskOperateFail, Err: err}
}

// ExitError builds the failure for a non-zero exit code. tail is the
// retained stderr.
func ExitError(prefix string, exitCode int, tail string) *StepError {
	return ScriptError(fmt.Errorf("%s Script command execution failed with exit code(%d) \nError message tracking:\n%s",
		prefix, exitCode, tail))
}

// IsUserError reports whether err is attributed to the user, scripts
// included.
func IsUserError(err error) bool {
	var se *StepError
	return errors.As(err, &se) && se.Kind != ErrorKindPlugin
}

// IsPluginError reports whether err is unexpected. Unclassified errors
// count as plugin errors.
func IsPluginError(err error) bool {
	return err != nil && !IsUserError(err)
}

// Outcome maps the terminal error of a step onto the result fields.
// A nil err is success.
func Outcome(err error, osType types.OSType) (types.StepStatus, types.ErrorType, int, string) {
	if err == nil {
		return types.StepStatusSuccess, types.ErrorTypeNone, 0, fmt.Sprintf("%s script executed successfully", osType)
	}
	var se *StepError
	if !errors.As(err, &se) || se.Kind == ErrorKindPlugin {
		return types.StepStatusError, types.ErrorTypePlugin, types.ErrCodeUserTaskOperateFail, "Unknown Error: " + err.Error()
	}
	msg := se.Error()
	if se.Kind == ErrorKindScript {
		msg += "\n" + TroubleshootingGuide
	}
	return types.StepStatusFailure, types.ErrorTypeUser, se.Code, msg
}
