package pipeline

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"

	"github.com/pithecene-io/scriptrun/types"
)

// LineSink receives every drained output line in order per stream.
// Implementations must be safe for concurrent use across streams.
type LineSink interface {
	WriteLine(stream types.Stream, text string)
}

// ConsoleSink prints stdout lines to one writer and stderr lines to
// another. Stderr is red when colour is enabled.
type ConsoleSink struct {
	mu     sync.Mutex
	stdout io.Writer
	stderr io.Writer
	red    *color.Color
}

// NewConsoleSink returns a sink on the process's own stdout and stderr.
// Colour follows fatih/color's terminal detection.
func NewConsoleSink() *ConsoleSink {
	return NewConsoleSinkWithWriters(os.Stdout, os.Stderr, !color.NoColor)
}

// NewConsoleSinkWithWriters returns a sink on the given writers.
func NewConsoleSinkWithWriters(stdout, stderr io.Writer, colour bool) *ConsoleSink {
	red := color.New(color.FgRed)
	if colour {
		red.EnableColor()
	} else {
		red.DisableColor()
	}
	return &ConsoleSink{stdout: stdout, stderr: stderr, red: red}
}

// WriteLine implements LineSink.
func (s *ConsoleSink) WriteLine(stream types.Stream, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stream == types.StreamStderr {
		_, _ = s.red.Fprintln(s.stderr, text)
		return
	}
	_, _ = fmt.Fprintln(s.stdout, text)
}

// DiscardSink drops every line.
type DiscardSink struct{}

// WriteLine implements LineSink.
func (DiscardSink) WriteLine(types.Stream, string) {}
