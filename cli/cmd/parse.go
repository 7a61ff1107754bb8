package cmd

import (
	"bufio"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/scriptrun/cli/render"
	"github.com/pithecene-io/scriptrun/marker"
)

// markerRow is one recognised marker line.
type markerRow struct {
	Line   int    `json:"line"`
	Kind   string `json:"kind"`
	Record string `json:"record"`
}

// ParseCommand returns the parse command, a debugging aid that shows how
// script output lines are read as markers.
func ParseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Show the markers recognised in script output",
		ArgsUsage: "[file]",
		Flags:     ReadOnlyFlags(),
		Action:    parseAction,
	}
}

func parseAction(c *cli.Context) error {
	if err := rejectTUI(c); err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}

	in := io.Reader(os.Stdin)
	if path := c.Args().First(); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return cli.Exit(err.Error(), exitError)
		}
		defer f.Close()
		in = f
	}

	rows, err := scanMarkers(in)
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}
	return r.Render(rows)
}

// scanMarkers returns the marker lines of in, numbered from 1.
func scanMarkers(in io.Reader) ([]markerRow, error) {
	rows := []markerRow{}
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		n++
		m, ok := marker.Parse(sc.Text())
		if !ok {
			continue
		}
		rows = append(rows, markerRow{Line: n, Kind: m.Kind.String(), Record: m.Record()})
	}
	return rows, sc.Err()
}
