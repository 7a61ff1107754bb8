// Package types defines core domain types for the scriptrun step.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
	goruntime "runtime"
	"strings"
)

// StepMeta identifies one step invocation inside a build.
type StepMeta struct {
	// BuildID scopes scratch file names. Required.
	BuildID string
	// TaskID and TaskName identify the step element in the pipeline.
	TaskID   string
	TaskName string
	// ProjectID and UserID are forwarded to the quality service.
	ProjectID string
	UserID    string
	// StepID is an optional user-facing step alias.
	StepID string
}

// Validate checks the identity fields every step needs.
func (m *StepMeta) Validate() error {
	if strings.TrimSpace(m.BuildID) == "" {
		return errors.New("build_id must be non-empty")
	}
	if strings.ContainsAny(m.BuildID, `/\`) {
		return fmt.Errorf("build_id must not contain path separators: %q", m.BuildID)
	}
	return nil
}

// Stream identifies which child output stream a line came from.
type Stream string

const (
	// StreamStdout is the child's standard output.
	StreamStdout Stream = "stdout"
	// StreamStderr is the child's standard error.
	StreamStderr Stream = "stderr"
)

// Charset selects how raw child output bytes are decoded.
type Charset string

const (
	CharsetUTF8    Charset = "UTF_8"
	CharsetGBK     Charset = "GBK"
	CharsetDefault Charset = "DEFAULT"
)

// ParseCharset maps a user-supplied charset name to a Charset.
// Blank selects CharsetDefault.
func ParseCharset(s string) (Charset, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case "", "DEFAULT":
		return CharsetDefault, nil
	case "UTF_8", "UTF8":
		return CharsetUTF8, nil
	case "GBK":
		return CharsetGBK, nil
	default:
		return "", fmt.Errorf("unsupported charset: %s", s)
	}
}

// OSType is the host operating system family.
type OSType string

const (
	OSWindows OSType = "WINDOWS"
	OSLinux   OSType = "LINUX"
	OSMacOS   OSType = "MAC_OS"
	OSOther   OSType = "OTHER"
)

// DetectOS returns the OSType of the running process.
func DetectOS() OSType {
	return OSFromGOOS(goruntime.GOOS)
}

// OSFromGOOS maps a GOOS value to an OSType.
func OSFromGOOS(goos string) OSType {
	switch goos {
	case "windows":
		return OSWindows
	case "linux":
		return OSLinux
	case "darwin":
		return OSMacOS
	default:
		return OSOther
	}
}

// OutputLine is one decoded line of child output.
type OutputLine struct {
	Stream Stream `json:"stream"`
	Number int    `json:"number"`
	Text   string `json:"text"`
}
