// Package cmd provides the commands of the scriptrun binary.
package cmd

import (
	"os"

	"github.com/urfave/cli/v2"
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored table output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables the Bubble Tea view. Only inspect supports it.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Interactive view (inspect only)",
	}
)

// ReadOnlyFlags returns the shared flags for read-only commands. --tui
// is included everywhere so unsupported commands can reject it with a
// clear message.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{FormatFlag, NoColorFlag, TUIFlag}
}

// rejectTUI fails commands that have no interactive view.
func rejectTUI(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for "+c.Command.Name, 1)
	}
	return nil
}

// isStderrTTY reports whether stderr is a terminal.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
