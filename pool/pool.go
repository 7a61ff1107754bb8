// Package pool provides an elastic goroutine pool with direct handoff.
//
// Submit hands a task to an idle worker, starts a new worker while the pool
// is below Max, and otherwise rejects the task. There is no task queue: a
// rejected task is the caller's to retry or drop. Workers above Min exit
// after KeepAlive without work.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pithecene-io/scriptrun/log"
)

const (
	DefaultMin             = 5
	DefaultMax             = 100
	DefaultKeepAlive       = time.Second
	DefaultShutdownTimeout = 60 * time.Second
)

var (
	// ErrSaturated is returned when no worker is idle and the pool is at Max.
	ErrSaturated = errors.New("pool saturated")
	// ErrClosed is returned by Submit after Shutdown.
	ErrClosed = errors.New("pool closed")
	// ErrInvalidConfig is returned for inconsistent sizing.
	ErrInvalidConfig = errors.New("invalid pool config")
)

// Task is a unit of work. ctx is cancelled when the pool shuts down.
type Task func(ctx context.Context)

// Config sizes the pool.
type Config struct {
	Min             int
	Max             int
	KeepAlive       time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the standard sizing.
func DefaultConfig() Config {
	return Config{
		Min:             DefaultMin,
		Max:             DefaultMax,
		KeepAlive:       DefaultKeepAlive,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// Pool is an elastic worker pool. Safe for concurrent use.
type Pool struct {
	cfg    Config
	logger *log.Logger

	handoff chan Task
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	size   int
	closed bool

	spawned  atomic.Int64
	rejected atomic.Int64
}

// New creates a pool and starts Min workers.
func New(cfg Config, logger *log.Logger) (*Pool, error) {
	if cfg.Min < 0 || cfg.Max <= 0 || cfg.Min > cfg.Max {
		return nil, fmt.Errorf("%w: min=%d max=%d", ErrInvalidConfig, cfg.Min, cfg.Max)
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if logger == nil {
		logger = log.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:     cfg,
		logger:  logger,
		handoff: make(chan Task),
		ctx:     ctx,
		cancel:  cancel,
	}

	p.mu.Lock()
	for range cfg.Min {
		p.startLocked(nil, true)
	}
	p.mu.Unlock()
	return p, nil
}

// Submit runs task on the pool or returns ErrSaturated / ErrClosed.
// It never blocks.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.mu.Unlock()

	select {
	case p.handoff <- task:
		return nil
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.size >= p.cfg.Max {
		p.rejected.Add(1)
		return ErrSaturated
	}
	p.startLocked(task, false)
	return nil
}

// Size returns the current number of workers.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// Max returns the configured upper bound.
func (p *Pool) Max() int {
	return p.cfg.Max
}

// Spawned returns how many workers were started beyond the initial Min.
func (p *Pool) Spawned() int64 {
	return p.spawned.Load()
}

// Rejected returns how many submissions failed with ErrSaturated.
func (p *Pool) Rejected() int64 {
	return p.rejected.Load()
}

// Shutdown cancels running tasks and waits for workers to exit, bounded by
// ctx and Config.ShutdownTimeout. A timeout is logged and returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(p.cfg.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		p.logger.Warn("pool did not terminate in time", map[string]any{
			"timeout": p.cfg.ShutdownTimeout.String(),
			"workers": p.Size(),
		})
		return fmt.Errorf("pool shutdown: timed out after %s", p.cfg.ShutdownTimeout)
	case <-ctx.Done():
		p.logger.Warn("pool shutdown interrupted", map[string]any{"error": ctx.Err().Error()})
		return ctx.Err()
	}
}

func (p *Pool) startLocked(first Task, core bool) {
	p.size++
	if !core {
		p.spawned.Add(1)
	}
	p.wg.Add(1)
	go p.worker(first, core)
}

func (p *Pool) worker(first Task, core bool) {
	defer p.wg.Done()

	if first != nil {
		p.run(first)
	}

	idle := time.NewTimer(p.cfg.KeepAlive)
	defer idle.Stop()

	for {
		if !core {
			resetTimer(idle, p.cfg.KeepAlive)
		}
		var expired <-chan time.Time
		if !core {
			expired = idle.C
		}

		select {
		case task := <-p.handoff:
			p.run(task)
		case <-expired:
			p.mu.Lock()
			p.size--
			p.mu.Unlock()
			return
		case <-p.ctx.Done():
			p.mu.Lock()
			p.size--
			p.mu.Unlock()
			return
		}
	}
}

func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pool task panicked", map[string]any{"panic": fmt.Sprint(r)})
		}
	}()
	task(p.ctx)
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
