// Package runtime executes one script step: it spawns the wrapper,
// drives the output pipeline, aggregates outputs and classifies the outcome.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"strings"
	"time"

	"github.com/pithecene-io/scriptrun/adapter"
	"github.com/pithecene-io/scriptrun/aggregate"
	"github.com/pithecene-io/scriptrun/lode"
	"github.com/pithecene-io/scriptrun/log"
	"github.com/pithecene-io/scriptrun/metrics"
	"github.com/pithecene-io/scriptrun/pipeline"
	"github.com/pithecene-io/scriptrun/policy"
	"github.com/pithecene-io/scriptrun/pool"
	"github.com/pithecene-io/scriptrun/quality"
	"github.com/pithecene-io/scriptrun/redact"
	"github.com/pithecene-io/scriptrun/scratch"
	"github.com/pithecene-io/scriptrun/shell"
	"github.com/pithecene-io/scriptrun/stream"
	"github.com/pithecene-io/scriptrun/types"
)

const (
	// flushTimeout bounds the final archive flush and result write.
	flushTimeout = 30 * time.Second
	// publishTimeout bounds completion event delivery, retries included.
	publishTimeout = time.Minute

	sidecarScript = "script.txt"
)

// ErrEmptyScript is returned for a blank script.
var ErrEmptyScript = errors.New("script content cannot be empty")

// StepConfig configures a single step.
type StepConfig struct {
	// Meta is the step identity. BuildID is required.
	Meta *types.StepMeta

	Script string
	// Shell is the user's shell name; blank picks the OS default.
	Shell string
	// ManualCommand replaces the shell wrapper with a start command
	// containing ./random_name.<ext>.
	ManualCommand string
	Charset       types.Charset
	Workspace     string
	// TempDir receives the wrapper script. Defaults to Workspace.
	TempDir string
	// Vars are exported to the script.
	Vars            map[string]string
	ContinueOnError bool
	OS              types.OSType

	// Prefix is prepended to displayed lines and the exit code message.
	Prefix   string
	Redactor *redact.Redactor
	// Console receives displayed lines. Defaults to discarding them.
	Console pipeline.LineSink

	CaptureOutput      bool
	ErrorTailSize      int
	AdjustInterval     time.Duration
	BacklogFactor      int
	DrainTimeout       time.Duration
	FailOnDrainTimeout bool

	// Policy archives output lines. Optional.
	Policy policy.Policy
	// Archive stores the result record and the script sidecar. Optional.
	Archive policy.Sink
	// StoragePath is reported in the result and the completion event.
	StoragePath string
	// Quality reports gate values. Without it the gateway file is only
	// discarded.
	Quality *quality.Reporter
	// Publisher announces completion. Optional.
	Publisher adapter.Adapter

	// ExecutorFactory overrides child creation (for testing).
	ExecutorFactory ExecutorFactory
	// Collector may be nil; all Collector methods are nil-safe.
	Collector *metrics.Collector
}

// StepRunner executes steps on a shared pool.
type StepRunner struct {
	pool   *pool.Pool
	logger *log.Logger
}

// NewStepRunner creates a runner. The pool is shared across steps and
// owned by the caller.
func NewStepRunner(p *pool.Pool, logger *log.Logger) *StepRunner {
	if logger == nil {
		logger = log.Nop()
	}
	return &StepRunner{pool: p, logger: logger}
}

// Execute runs one step to completion and returns its single terminal
// result. It never returns nil.
//
// Execution flow:
//  1. Validate the script, resolve the shell and check it against the OS
//  2. Clean the scratch files and write the wrapper
//  3. Start the pipeline and the child, wait for exit and drain
//  4. Aggregate outputs and report the quality gate
//  5. Remove scratch files and the wrapper
//  6. Flush the archive, write the result, publish the completion event
func (r *StepRunner) Execute(ctx context.Context, cfg *StepConfig) *types.StepResult {
	start := time.Now()
	logger := r.logger.With(cfg.Meta)
	if cfg.OS == "" {
		cfg.OS = types.DetectOS()
	}
	cfg.Collector.IncStepStarted()

	result := &types.StepResult{
		ContractVersion: types.ContractVersion,
		BuildID:         cfg.Meta.BuildID,
		TaskID:          cfg.Meta.TaskID,
		Data:            map[string]types.Output{},
		StartedAt:       start,
		StoragePath:     cfg.StoragePath,
	}

	err := r.execute(ctx, cfg, logger, result)
	result.Status, result.ErrorType, result.ErrorCode, result.Message = Outcome(err, cfg.OS)
	result.Duration = time.Since(start)

	switch result.Status {
	case types.StepStatusSuccess:
		cfg.Collector.IncStepSucceeded()
		logger.Info("step succeeded", map[string]any{"duration": result.Duration.String(), "outputs": len(result.Data)})
	case types.StepStatusFailure:
		cfg.Collector.IncStepFailed()
		logger.Warn("step failed", map[string]any{"error": err.Error(), "exit_code": result.ExitCode})
	default:
		cfg.Collector.IncStepErrored()
		logger.Error("step errored", map[string]any{"error": err.Error()})
	}

	r.finish(ctx, cfg, logger, result)

	snapshot := cfg.Collector.Snapshot()
	result.Metrics = &snapshot
	return result
}

// execute drives the step from validation through cleanup. The returned
// error decides the outcome.
func (r *StepRunner) execute(ctx context.Context, cfg *StepConfig, logger *log.Logger, result *types.StepResult) error {
	if err := cfg.Meta.Validate(); err != nil {
		return UserError(err)
	}
	if strings.TrimSpace(cfg.Script) == "" {
		return UserError(ErrEmptyScript)
	}

	t, err := shell.Resolve(cfg.Shell, cfg.OS)
	if err != nil {
		return UserError(err)
	}
	result.Shell = string(t)
	if err := shell.CheckOS(t, cfg.OS); err != nil {
		return UserError(err)
	}

	set := scratch.New(cfg.Workspace, cfg.Meta.BuildID)
	if err := set.Clean(); err != nil {
		return PluginError(err)
	}

	var command *shell.Command
	defer func() {
		if err := set.Remove(); err != nil {
			logger.Warn("failed to remove scratch files", map[string]any{"error": err.Error()})
		}
		if err := command.Cleanup(); err != nil {
			logger.Warn("failed to remove wrapper script", map[string]any{"error": err.Error()})
		}
	}()

	req := &shell.Request{
		Script:          cfg.Script,
		Workspace:       cfg.Workspace,
		TempDir:         cfg.TempDir,
		Vars:            cfg.Vars,
		Scratch:         set,
		Charset:         cfg.Charset,
		ContinueOnError: cfg.ContinueOnError,
		OS:              cfg.OS,
	}
	if cfg.ManualCommand != "" {
		command, err = shell.BuildManual(cfg.ManualCommand, req)
		if errors.Is(err, shell.ErrManualCommand) {
			return UserError(err)
		}
	} else {
		command, err = shell.Build(t, req)
	}
	if err != nil {
		return PluginError(fmt.Errorf("write wrapper script: %w", err))
	}

	runErr := r.run(ctx, cfg, logger, command, set, result)

	// Outputs are collected even after a failed script; a malformed
	// output replaces the script's own error.
	data, err := aggregate.Collect(set, cfg.Charset, cfg.Workspace)
	if err != nil {
		runErr = UserError(err)
	} else {
		maps.Copy(result.Data, data)
	}

	reporter := cfg.Quality
	if reporter == nil {
		reporter = quality.NewReporter(nil, logger, cfg.Collector)
	}
	reporter.Report(ctx, cfg.Workspace, quality.Identity{
		ProjectID: cfg.Meta.ProjectID,
		UserID:    cfg.Meta.UserID,
		TaskID:    cfg.Meta.TaskID,
		TaskName:  cfg.Meta.TaskName,
	})
	return runErr
}

// run spawns the child with the pipeline attached and waits for it to
// exit and drain.
func (r *StepRunner) run(ctx context.Context, cfg *StepConfig, logger *log.Logger, command *shell.Command, set *scratch.Set, result *types.StepResult) error {
	pcfg := pipeline.Config{
		Prefix:         cfg.Prefix,
		Redactor:       cfg.Redactor,
		Sink:           cfg.Console,
		Store:          set,
		Capture:        cfg.CaptureOutput,
		ErrorTailSize:  cfg.ErrorTailSize,
		AdjustInterval: cfg.AdjustInterval,
		BacklogFactor:  cfg.BacklogFactor,
		DrainTimeout:   cfg.DrainTimeout,
		Metrics:        cfg.Collector,
		Logger:         logger,
	}
	if cfg.Policy != nil {
		pcfg.Archive = cfg.Policy
	}
	pctx := pipeline.New(r.pool, pcfg)
	stdout := stream.NewSplitter(types.StreamStdout, cfg.Charset, pctx.Emit)
	stderr := stream.NewSplitter(types.StreamStderr, cfg.Charset, pctx.Emit)
	pctx.Start()

	factory := cfg.ExecutorFactory
	if factory == nil {
		factory = func(c *shell.Command, out, errw io.Writer) Executor {
			return NewExecutorManager(c, out, errw)
		}
	}
	executor := factory(command, stdout, stderr)

	logger.Info("starting script", map[string]any{
		"shell":   result.Shell,
		"command": command.String(),
	})
	if err := executor.Start(ctx); err != nil {
		cfg.Collector.IncSpawnFailure()
		r.release(ctx, logger, pctx, stdout, stderr)
		return ScriptError(err)
	}
	cfg.Collector.IncSpawnSuccess()

	exit, waitErr := executor.Wait()
	drainErr := r.release(ctx, logger, pctx, stdout, stderr)
	result.Drained = drainErr == nil
	if cfg.CaptureOutput {
		result.Output = pctx.Captured()
	}

	if waitErr != nil {
		return ScriptError(waitErr)
	}
	if drainErr != nil && cfg.FailOnDrainTimeout {
		return PluginError(drainErr)
	}
	result.ExitCode = exit.ExitCode
	logger.Debug("script exited", map[string]any{"exit_code": exit.ExitCode})
	if exit.ExitCode != 0 {
		return ExitError(cfg.Prefix, exit.ExitCode, pctx.ErrorTail())
	}
	return nil
}

// release flushes the splitters and waits for the pipeline to drain.
// Cancellation of ctx does not cut the drain short.
func (r *StepRunner) release(ctx context.Context, logger *log.Logger, pctx *pipeline.Context, splitters ...*stream.Splitter) error {
	for _, s := range splitters {
		if err := s.Close(); err != nil {
			logger.Debug("splitter close failed", map[string]any{"error": err.Error()})
		}
	}
	return pctx.Close(context.WithoutCancel(ctx))
}

// finish flushes the archive, writes the result record and script
// sidecar, and publishes the completion event. Every step is best-effort.
func (r *StepRunner) finish(ctx context.Context, cfg *StepConfig, logger *log.Logger, result *types.StepResult) {
	ctx = context.WithoutCancel(ctx)

	if cfg.Policy != nil {
		flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
		if err := cfg.Policy.Flush(flushCtx); err != nil {
			logger.Warn("archive flush failed (best effort)", map[string]any{"error": err.Error()})
		}
		cancel()
		ps := cfg.Policy.Stats()
		cfg.Collector.AbsorbPolicyStats(ps.TotalLines, ps.LinesPersisted, flushTriggers(cfg.Policy))
	}

	if cfg.Archive != nil {
		writeCtx, cancel := context.WithTimeout(ctx, flushTimeout)
		if err := cfg.Archive.WriteResult(writeCtx, result); err != nil {
			logger.Warn("result archive failed (best effort)", map[string]any{"error": err.Error()})
		}
		if fw, ok := cfg.Archive.(lode.FileWriter); ok {
			script := []byte(cfg.Redactor.Line(cfg.Script))
			if err := fw.PutFile(writeCtx, sidecarScript, "text/plain", script); err != nil {
				logger.Warn("script sidecar failed (best effort)", map[string]any{"error": err.Error()})
			}
		}
		cancel()
	}

	if cfg.Publisher != nil {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		event := adapter.NewStepCompletedEvent(result, cfg.Meta.ProjectID, time.Now())
		if err := cfg.Publisher.Publish(pubCtx, event); err != nil {
			cfg.Collector.IncAdapterPublishFailure()
			logger.Warn("completion event not delivered", map[string]any{"error": err.Error()})
		}
		cancel()
	}
}

func flushTriggers(p policy.Policy) map[string]int64 {
	sp, ok := p.(*policy.StreamingPolicy)
	if !ok {
		return nil
	}
	out := make(map[string]int64)
	for k, v := range sp.FlushTriggerStats() {
		out[string(k)] = v
	}
	return out
}
