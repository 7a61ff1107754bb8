package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/scriptrun/cli/config"
	"github.com/pithecene-io/scriptrun/cli/render"
	"github.com/pithecene-io/scriptrun/lode"
	"github.com/pithecene-io/scriptrun/log"
	"github.com/pithecene-io/scriptrun/metrics"
	"github.com/pithecene-io/scriptrun/pipeline"
	"github.com/pithecene-io/scriptrun/pool"
	"github.com/pithecene-io/scriptrun/redact"
	"github.com/pithecene-io/scriptrun/runtime"
	"github.com/pithecene-io/scriptrun/types"
)

// Exit codes of `scriptrun run`.
const (
	exitSuccess = 0
	// exitFailure is a user-attributable step failure.
	exitFailure = 1
	// exitError is a plugin error or an unusable invocation.
	exitError = 2
)

// RunCommand returns the run command, the only command that executes
// a script.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run one script step",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to scriptrun.yaml",
				EnvVars: []string{"SCRIPTRUN_CONFIG"},
			},
			// Script source
			&cli.StringFlag{
				Name:  "script",
				Usage: "Inline script text",
			},
			&cli.StringFlag{
				Name:      "script-file",
				Usage:     "Path to the script",
				TakesFile: true,
			},
			&cli.StringFlag{
				Name:  "input",
				Usage: "Task parameter JSON (script, shell, charsetType, manualCommand), or @file",
			},
			&cli.StringFlag{
				Name:  "shell",
				Usage: "bash, sh, python, pwsh, powershell, cmd, win_bash or auto",
			},
			&cli.StringFlag{
				Name:  "charset",
				Usage: "Output charset: UTF_8, GBK or DEFAULT",
			},
			&cli.StringFlag{
				Name:  "manual-command",
				Usage: "Start command containing ./random_name.<ext>",
			},
			&cli.StringFlag{
				Name:  "workspace",
				Usage: "Working directory of the step (default: current directory)",
			},
			// Step identity
			&cli.StringFlag{
				Name:    "build-id",
				Usage:   "Build ID (required)",
				EnvVars: []string{"SCRIPTRUN_BUILD_ID"},
			},
			&cli.StringFlag{Name: "task-id", Usage: "Task ID", EnvVars: []string{"SCRIPTRUN_TASK_ID"}},
			&cli.StringFlag{Name: "task-name", Usage: "Task name", EnvVars: []string{"SCRIPTRUN_TASK_NAME"}},
			&cli.StringFlag{Name: "project-id", Usage: "Project ID", EnvVars: []string{"SCRIPTRUN_PROJECT_ID"}},
			&cli.StringFlag{Name: "user-id", Usage: "User ID", EnvVars: []string{"SCRIPTRUN_USER_ID"}},
			&cli.StringFlag{Name: "step-id", Usage: "Step alias"},
			// Variables
			&cli.StringSliceFlag{
				Name:  "var",
				Usage: "Runtime variable KEY=VALUE (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:      "env-file",
				Usage:     "dotenv file of runtime variables (repeatable)",
				TakesFile: true,
			},
			&cli.StringSliceFlag{
				Name:  "secret",
				Usage: "Variable whose value is masked in output (repeatable)",
			},
			&cli.StringFlag{
				Name:  "prefix",
				Usage: "Prefix for displayed lines",
			},
			&cli.BoolFlag{
				Name:  "continue-on-error",
				Usage: "Do not stop the script at the first failing command (bash, sh)",
			},
			&cli.BoolFlag{
				Name:  "capture-output",
				Usage: "Keep stdout in the result",
			},
			// Archive
			&cli.StringFlag{
				Name:  "storage-path",
				Usage: "Archive path (fs: directory, s3: bucket/prefix)",
			},
			&cli.StringFlag{
				Name:  "policy",
				Usage: "Archive policy: strict, streaming or noop",
			},
			// Result
			&cli.StringFlag{
				Name:      "output-file",
				Usage:     "Write the result JSON to this path (- for stderr)",
				TakesFile: true,
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Suppress the result summary",
			},
			FormatFlag,
			NoColorFlag,
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "info",
				EnvVars: []string{"SCRIPTRUN_LOG_LEVEL"},
			},
		},
		Action: runAction,
	}
}

// stepPlan is everything resolved from config and flags before the step
// starts.
type stepPlan struct {
	cfg           *config.Config
	meta          *types.StepMeta
	script        string
	manualCommand string
	charset       types.Charset
	workspace     string
	vars          map[string]string
	outputFile    string
}

func runAction(c *cli.Context) error {
	plan, err := planStep(c)
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}

	level, err := log.ParseLevel(c.String("log-level"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid log level: %v", err), exitError)
	}
	logger := log.NewLoggerWithWriter(nil, os.Stderr, level)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := executePlan(ctx, plan, logger, pipeline.NewConsoleSink())
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}

	if plan.outputFile != "" {
		if err := runtime.WriteResultFile(result, plan.outputFile); err != nil {
			logger.Error("failed to write result file", map[string]any{"error": err.Error()})
		}
	}
	if !c.Bool("quiet") {
		printResult(c, result)
	}
	return cli.Exit("", exitCodeFor(result))
}

// planStep loads the config file and applies flags over it.
func planStep(c *cli.Context) (*stepPlan, error) {
	if _, err := render.ParseFormat(c.String("format")); err != nil {
		return nil, err
	}
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	var in *atomInput
	if raw := c.String("input"); raw != "" {
		parsed, err := parseInput(raw)
		if err != nil {
			return nil, err
		}
		in = &parsed
	}

	// Precedence: flag, then input document, then config file.
	overlay := func(flag string, fromInput func(*atomInput) string, current *string) {
		switch {
		case c.IsSet(flag):
			*current = c.String(flag)
		case in != nil && fromInput(in) != "":
			*current = fromInput(in)
		}
	}
	overlay("shell", func(a *atomInput) string { return a.Shell }, &cfg.Shell)
	overlay("charset", func(a *atomInput) string { return a.CharsetType }, &cfg.Charset)
	manual := ""
	overlay("manual-command", func(a *atomInput) string { return a.ManualCommand }, &manual)
	if c.IsSet("prefix") {
		cfg.Prefix = c.String("prefix")
	}
	if c.IsSet("storage-path") {
		cfg.Storage.Path = c.String("storage-path")
	}
	if c.IsSet("policy") {
		cfg.Policy.Name = c.String("policy")
	}
	if c.Bool("continue-on-error") {
		cfg.Runtime.ContinueOnError = true
	}
	if c.Bool("capture-output") {
		cfg.Runtime.CaptureOutput = true
	}
	cfg.Secrets = append(cfg.Secrets, c.StringSlice("secret")...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	script, err := pickScript(c.String("script"), c.String("script-file"), in)
	if err != nil {
		return nil, err
	}
	charset, err := types.ParseCharset(cfg.Charset)
	if err != nil {
		return nil, err
	}
	vars, err := loadVars(c.StringSlice("env-file"), c.StringSlice("var"))
	if err != nil {
		return nil, err
	}
	workspace := c.String("workspace")
	if workspace == "" {
		if workspace, err = os.Getwd(); err != nil {
			return nil, err
		}
	}

	return &stepPlan{
		cfg: cfg,
		meta: &types.StepMeta{
			BuildID:   c.String("build-id"),
			TaskID:    c.String("task-id"),
			TaskName:  c.String("task-name"),
			ProjectID: c.String("project-id"),
			UserID:    c.String("user-id"),
			StepID:    c.String("step-id"),
		},
		script:        script,
		manualCommand: manual,
		charset:       charset,
		workspace:     workspace,
		vars:          vars,
		outputFile:    c.String("output-file"),
	}, nil
}

// executePlan wires the pool, archive, quality reporter and adapter and
// runs the step. Errors are setup failures; step outcomes are in the
// result.
func executePlan(ctx context.Context, plan *stepPlan, logger *log.Logger, console pipeline.LineSink) (*types.StepResult, error) {
	cfg := plan.cfg
	rt := cfg.Runtime

	pcfg := pool.DefaultConfig()
	if rt.PoolMin > 0 {
		pcfg.Min = rt.PoolMin
	}
	if rt.PoolMax > 0 {
		pcfg.Max = rt.PoolMax
	}
	pcfg.Min = min(pcfg.Min, pcfg.Max)
	pcfg.KeepAlive = rt.KeepAlive.Duration
	pcfg.ShutdownTimeout = rt.ShutdownTimeout.Duration
	p, err := pool.New(pcfg, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := p.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("pool shutdown incomplete", map[string]any{"error": err.Error()})
		}
	}()

	startTime := time.Now()
	collector := metrics.NewCollector(
		strings.ToLower(cfg.Shell),
		policyName(cfg.Storage, cfg.Policy),
		backendName(cfg.Storage),
		plan.meta.BuildID,
	)

	arch, err := buildArchive(ctx, cfg.Storage, cfg.Policy, lode.Config{
		Project: plan.meta.ProjectID,
		Day:     lode.DeriveDay(startTime),
		BuildID: plan.meta.BuildID,
		TaskID:  plan.meta.TaskID,
		StepID:  plan.meta.StepID,
	}, collector, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := arch.Close(); err != nil {
			logger.Warn("archive close failed", map[string]any{"error": err.Error()})
		}
	}()

	publisher, err := buildAdapter(cfg.Adapter)
	if err != nil {
		return nil, err
	}
	if publisher != nil {
		defer func() { _ = publisher.Close() }()
	}

	reporter, err := buildQuality(cfg.Quality, logger, collector)
	if err != nil {
		return nil, err
	}

	step := &runtime.StepConfig{
		Meta:               plan.meta,
		Script:             plan.script,
		Shell:              strings.ToLower(cfg.Shell),
		ManualCommand:      plan.manualCommand,
		Charset:            plan.charset,
		Workspace:          plan.workspace,
		Vars:               plan.vars,
		ContinueOnError:    rt.ContinueOnError,
		Prefix:             cfg.Prefix,
		Redactor:           redact.FromEnv(secretLookup(plan.vars, cfg.Secrets), cfg.Secrets),
		Console:            console,
		CaptureOutput:      rt.CaptureOutput,
		ErrorTailSize:      rt.ErrorTail,
		AdjustInterval:     rt.AdjustInterval.Duration,
		BacklogFactor:      rt.BacklogFactor,
		DrainTimeout:       rt.DrainTimeout.Duration,
		FailOnDrainTimeout: rt.FailOnDrainTimeout,
		Policy:             arch.policy,
		Archive:            arch.sink,
		StoragePath:        arch.path,
		Quality:            reporter,
		Publisher:          publisher,
		Collector:          collector,
	}
	return runtime.NewStepRunner(p, logger).Execute(ctx, step), nil
}

func exitCodeFor(result *types.StepResult) int {
	switch result.Status {
	case types.StepStatusSuccess:
		return exitSuccess
	case types.StepStatusFailure:
		return exitFailure
	default:
		return exitError
	}
}

// printResult renders the result on stderr so it never mixes with the
// script's own stdout.
func printResult(c *cli.Context, result *types.StepResult) {
	format, _ := render.ParseFormat(c.String("format"))
	if format == "" {
		format = render.FormatTable
	}
	r := render.NewRendererWithWriter(format, c.Bool("no-color") || !isStderrTTY(), os.Stderr)
	fmt.Fprintln(os.Stderr)
	if err := r.Render(result); err != nil {
		fmt.Fprintf(os.Stderr, "failed to render result: %v\n", err)
	}
}
