// Package pipeline drains child output through two queue stages per stream.
//
// The first stage (F) is one order-preserving drainer per stream: it
// prefixes, redacts and prints each line, feeds the stderr error tail, then
// forwards the line to the second stage. The second stage (S) parses marker
// lines and persists them to scratch files. Slow persistence therefore
// never delays console output, and neither stage ever blocks the child,
// whose output is buffered by unbounded queues.
//
// A Context is created per step and released by Close once the child has
// exited and its splitters are flushed.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pithecene-io/scriptrun/log"
	"github.com/pithecene-io/scriptrun/marker"
	"github.com/pithecene-io/scriptrun/metrics"
	"github.com/pithecene-io/scriptrun/pool"
	"github.com/pithecene-io/scriptrun/redact"
	"github.com/pithecene-io/scriptrun/types"
)

const (
	DefaultAdjustInterval = time.Second
	DefaultBacklogFactor  = 100
	DefaultDrainPoll      = 50 * time.Millisecond
	DefaultDrainTimeout   = 5 * time.Minute

	popWait   = 100 * time.Millisecond
	exitGrace = time.Second
)

// ErrDrainTimeout is returned by Close when the queues did not empty in time.
var ErrDrainTimeout = errors.New("output pipeline did not drain before timeout")

// MarkerStore persists recognised markers.
type MarkerStore interface {
	Record(m marker.Marker) error
}

// Archiver receives every line after marker processing.
type Archiver interface {
	IngestLine(ctx context.Context, line *types.OutputLine) error
}

// Config configures one pipeline.
type Config struct {
	// Prefix is prepended to every displayed line.
	Prefix string
	// Redactor masks secrets in displayed and archived text.
	Redactor *redact.Redactor
	// Sink receives displayed lines. Defaults to DiscardSink.
	Sink LineSink
	// Store persists markers. Nil disables marker persistence.
	Store MarkerStore
	// Archive receives lines after marker processing. Optional.
	Archive Archiver
	// Capture keeps the full decoded stdout for the step result.
	Capture bool

	ErrorTailSize  int
	AdjustInterval time.Duration
	BacklogFactor  int
	DrainPoll      time.Duration
	DrainTimeout   time.Duration

	Metrics *metrics.Collector
	Logger  *log.Logger
}

func (c *Config) applyDefaults() {
	if c.Sink == nil {
		c.Sink = DiscardSink{}
	}
	if c.AdjustInterval <= 0 {
		c.AdjustInterval = DefaultAdjustInterval
	}
	if c.BacklogFactor <= 0 {
		c.BacklogFactor = DefaultBacklogFactor
	}
	if c.DrainPoll <= 0 {
		c.DrainPoll = DefaultDrainPoll
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = DefaultDrainTimeout
	}
	if c.Logger == nil {
		c.Logger = log.Nop()
	}
}

// entry is an S-stage item: the raw line plus its displayed form.
type entry struct {
	line    types.OutputLine
	display string
}

type lane struct {
	stream types.Stream
	f      *Queue[types.OutputLine]
	s      *Queue[entry]
}

// Context is the pipeline state of one step.
type Context struct {
	cfg  Config
	pool *pool.Pool

	out lane
	err lane

	tail *ErrorTail

	captureMu sync.Mutex
	capture   strings.Builder

	closed atomic.Bool
	done   chan struct{}
	tasks  sync.WaitGroup
}

// New creates a pipeline bound to p. Call Start before output arrives
// and Close after the child exits.
func New(p *pool.Pool, cfg Config) *Context {
	cfg.applyDefaults()
	return &Context{
		cfg:  cfg,
		pool: p,
		out:  lane{stream: types.StreamStdout, f: NewQueue[types.OutputLine](), s: NewQueue[entry]()},
		err:  lane{stream: types.StreamStderr, f: NewQueue[types.OutputLine](), s: NewQueue[entry]()},
		tail: NewErrorTail(cfg.ErrorTailSize),
		done: make(chan struct{}),
	}
}

// Emit enqueues a line from a splitter. It never blocks.
func (c *Context) Emit(line types.OutputLine) {
	if line.Stream == types.StreamStderr {
		c.err.f.Push(line)
		return
	}
	c.out.f.Push(line)
}

// Start submits the four stage tasks and the adjuster to the pool.
// When the pool is saturated a task runs on its own goroutine instead, so
// output is never left undrained.
func (c *Context) Start() {
	c.submit(c.drainTask(c.out))
	c.submit(c.processTask(c.out))
	c.submit(c.drainTask(c.err))
	c.submit(c.processTask(c.err))
	c.submit(c.adjustTask())
}

// Close waits until every queue is empty and no line is in flight, then
// stops the stage tasks. It polls every DrainPoll for at most DrainTimeout.
// On timeout the remaining lines are abandoned and ErrDrainTimeout is
// returned. Close is idempotent.
func (c *Context) Close(ctx context.Context) error {
	if c.closed.Load() {
		return nil
	}

	drained := c.waitDrained(ctx)
	if c.closed.CompareAndSwap(false, true) {
		close(c.done)
	}

	exited := make(chan struct{})
	go func() {
		c.tasks.Wait()
		close(exited)
	}()
	select {
	case <-exited:
	case <-time.After(exitGrace):
		c.cfg.Logger.Debug("pipeline tasks still running after close", nil)
	}

	if !drained {
		c.cfg.Metrics.IncDrainTimeout()
		c.cfg.Logger.Warn("output pipeline drain timed out", map[string]any{
			"timeout": c.cfg.DrainTimeout.String(),
			"pending": c.pending(),
		})
		return ErrDrainTimeout
	}
	c.cfg.Logger.Debug("output pipeline drained", nil)
	return nil
}

// ErrorTail returns the retained stderr tail.
func (c *Context) ErrorTail() string {
	return c.tail.String()
}

// Captured returns the decoded stdout text when capture is enabled.
func (c *Context) Captured() string {
	c.captureMu.Lock()
	defer c.captureMu.Unlock()
	return c.capture.String()
}

func (c *Context) waitDrained(ctx context.Context) bool {
	deadline := time.NewTimer(c.cfg.DrainTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(c.cfg.DrainPoll)
	defer tick.Stop()

	for {
		if c.pending() == 0 {
			return true
		}
		c.cfg.Logger.Debug("waiting for output pipeline", map[string]any{
			"out_f": c.out.f.Pending(), "out_s": c.out.s.Pending(),
			"err_f": c.err.f.Pending(), "err_s": c.err.s.Pending(),
		})
		select {
		case <-tick.C:
		case <-deadline.C:
			return c.pending() == 0
		case <-ctx.Done():
			return c.pending() == 0
		}
	}
}

func (c *Context) pending() int {
	return c.out.f.Pending() + c.out.s.Pending() + c.err.f.Pending() + c.err.s.Pending()
}

func (c *Context) submit(task pool.Task) {
	c.tasks.Add(1)
	wrapped := func(ctx context.Context) {
		defer c.tasks.Done()
		task(ctx)
	}
	if c.pool != nil {
		err := c.pool.Submit(wrapped)
		if err == nil {
			return
		}
		c.cfg.Metrics.IncPoolRejection()
		c.cfg.Logger.Warn("pool rejected pipeline task, running detached", map[string]any{"error": err.Error()})
	}
	go wrapped(context.Background())
}

func (c *Context) stopped(ctx context.Context) bool {
	return c.closed.Load() || ctx.Err() != nil
}

// drainTask is the F stage for one stream. There is exactly one per
// stream, which keeps display order identical to output order.
func (c *Context) drainTask(l lane) pool.Task {
	return func(ctx context.Context) {
		for !c.stopped(ctx) {
			line, ok := l.f.Pop(ctx, c.done, popWait)
			if !ok {
				continue
			}
			display := c.cfg.Redactor.Line(c.cfg.Prefix + line.Text)
			c.cfg.Sink.WriteLine(l.stream, display)
			c.cfg.Metrics.IncLine(string(l.stream))

			if l.stream == types.StreamStderr {
				c.tail.AppendLine(display)
			} else if c.cfg.Capture {
				c.captureMu.Lock()
				c.capture.WriteString(line.Text)
				c.capture.WriteByte('\n')
				c.captureMu.Unlock()
			}

			l.s.Push(entry{line: line, display: display})
			l.f.Done()
		}
	}
}

// processTask is the S stage for one stream. The adjuster may run extra
// copies against the same queue when it backs up.
func (c *Context) processTask(l lane) pool.Task {
	return func(ctx context.Context) {
		for !c.stopped(ctx) {
			e, ok := l.s.Pop(ctx, c.done, popWait)
			if !ok {
				continue
			}
			c.process(ctx, e)
			l.s.Done()
		}
	}
}

func (c *Context) process(ctx context.Context, e entry) {
	if c.cfg.Store != nil {
		if m, ok := marker.Parse(e.line.Text); ok {
			c.cfg.Metrics.IncMarker(m.Kind.String())
			if err := c.cfg.Store.Record(m); err != nil {
				c.cfg.Metrics.IncScratchWriteFailure()
				c.cfg.Logger.Warn("failed to persist marker", map[string]any{
					"kind":  m.Kind.String(),
					"error": err.Error(),
				})
			}
		}
	}
	if c.cfg.Archive != nil {
		archived := e.line
		archived.Text = c.cfg.Redactor.Line(e.line.Text)
		if err := c.cfg.Archive.IngestLine(ctx, &archived); err != nil {
			c.cfg.Logger.Debug("archive ingest failed", map[string]any{"error": err.Error()})
		}
	}
}

// adjustTask periodically adds process tasks for a backed-up S queue.
func (c *Context) adjustTask() pool.Task {
	return func(ctx context.Context) {
		tick := time.NewTicker(c.cfg.AdjustInterval)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
			if c.stopped(ctx) {
				return
			}
			c.adjust(c.out)
			c.adjust(c.err)
		}
	}
}

func (c *Context) adjust(l lane) {
	if c.pool == nil {
		return
	}
	size := c.pool.Size()
	if l.s.Len() <= c.cfg.BacklogFactor*size || size >= c.pool.Max() {
		return
	}
	c.cfg.Logger.Debug("increasing process workers", map[string]any{
		"stream":  string(l.stream),
		"backlog": l.s.Len(),
		"pool":    size,
	})
	c.tasks.Add(1)
	task := c.processTask(l)
	if err := c.pool.Submit(func(ctx context.Context) {
		defer c.tasks.Done()
		task(ctx)
	}); err != nil {
		c.tasks.Done()
		c.cfg.Metrics.IncPoolRejection()
		return
	}
	c.cfg.Metrics.IncPoolExpansion()
}
