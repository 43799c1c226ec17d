package action

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"time"

	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
	"git.home.luguber.info/inful/cubepio/internal/logfields"
	"git.home.luguber.info/inful/cubepio/internal/metrics"
	"git.home.luguber.info/inful/cubepio/internal/projectconfig"
)

// Func implements one action. A nil return is success.
type Func func(ctx context.Context, env *Env) error

// Env is what an action sees of the world.
type Env struct {
	Location string
	Args     []string
	// Defaults are the tool-wide settings; the project file is layered on top by Settings.
	Defaults projectconfig.File
	Runner   ToolRunner

	emit func(slog.Level, string)
}

// Log appends an informational line to the action output.
func (e *Env) Log(format string, args ...any) {
	e.emit(slog.LevelInfo, fmt.Sprintf(format, args...))
}

// Warn appends a line presentation layers should highlight.
func (e *Env) Warn(format string, args ...any) {
	e.emit(slog.LevelWarn, fmt.Sprintf(format, args...))
}

// toolLine forwards raw tool output.
func (e *Env) toolLine(line string) {
	e.emit(slog.LevelInfo, line)
}

// Settings returns the tool defaults merged with the project's cubepio.toml.
func (e *Env) Settings() (projectconfig.File, error) {
	file, _, err := projectconfig.Load(e.Location)
	if err != nil {
		return projectconfig.File{}, ferrors.WrapError(err, ferrors.CategoryConfig, "cannot read project config").Build()
	}
	return projectconfig.Merge(e.Defaults, file), nil
}

// run executes a tool and forwards its output to the action log.
func (e *Env) run(ctx context.Context, cmd Command) error {
	e.Log("$ %s", cmd)
	return e.Runner.Run(ctx, cmd, e.toolLine)
}

// Executor maps action names to implementations.
type Executor struct {
	actions  map[string]Func
	defaults projectconfig.File
	runner   ToolRunner
	recorder metrics.Recorder
	buffer   int
}

// Option configures an Executor.
type Option func(*Executor)

// WithRunner replaces the ExecRunner.
func WithRunner(r ToolRunner) Option {
	return func(e *Executor) {
		if r != nil {
			e.runner = r
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(e *Executor) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithAction registers or replaces an action.
func WithAction(name string, fn Func) Option {
	return func(e *Executor) { e.actions[name] = fn }
}

// WithBuffer sets the message channel capacity.
func WithBuffer(n int) Option {
	return func(e *Executor) {
		if n >= 0 {
			e.buffer = n
		}
	}
}

// NewExecutor returns an executor with the built-in actions registered.
// defaults supplies tool commands and project defaults for every project.
func NewExecutor(defaults projectconfig.File, opts ...Option) *Executor {
	e := &Executor{
		actions:  builtins(),
		defaults: defaults,
		runner:   ExecRunner{},
		recorder: metrics.NoopRecorder{},
		buffer:   64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Has reports whether name is a registered action.
func (e *Executor) Has(name string) bool {
	_, ok := e.actions[name]
	return ok
}

// Names lists the registered actions in lexical order.
func (e *Executor) Names() []string {
	names := make([]string, 0, len(e.actions))
	for n := range e.actions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Execute starts the action and returns its message stream. The stream must be
// drained by the caller.
func (e *Executor) Execute(ctx context.Context, req Request) (<-chan Message, error) {
	fn, ok := e.actions[req.Action]
	if !ok {
		return nil, ErrUnknownAction.WithContext("action", req.Action)
	}

	out := make(chan Message, e.buffer)
	env := &Env{
		Location: req.Location,
		Args:     append([]string(nil), req.Args...),
		Defaults: e.defaults,
		Runner:   e.runner,
		emit:     func(level slog.Level, s string) { out <- lineMsg(level, s) },
	}

	go func() {
		defer close(out)
		start := time.Now()
		err, panicked := e.invoke(ctx, fn, env)
		elapsed := time.Since(start)

		result := metrics.ResultSuccess
		switch {
		case panicked:
			result = metrics.ResultPanic
		case err != nil:
			result = metrics.ResultFailed
		}
		e.recorder.ObserveActionDuration(req.Action, elapsed)
		e.recorder.IncActionResult(req.Action, result)

		if err != nil {
			out <- lineMsg(slog.LevelError, fmt.Sprintf("%s failed: %s", req.Action, describe(err)))
		}
		slog.Debug("Action finished",
			logfields.Action(req.Action),
			logfields.Location(req.Location),
			logfields.Success(err == nil),
			logfields.DurationMS(float64(elapsed.Milliseconds())))
		out <- doneMsg(err)
	}()

	return out, nil
}

func (e *Executor) invoke(ctx context.Context, fn Func, env *Env) (err error, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Action panicked",
				logfields.Location(env.Location),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err = ferrors.InternalError(fmt.Sprintf("action panicked: %v", r)).Build()
			panicked = true
		}
	}()
	return fn(ctx, env), false
}

// describe renders err for the project log without the classification prefix.
func describe(err error) string {
	c, ok := ferrors.AsClassified(err)
	if !ok {
		return err.Error()
	}
	if cause := c.Unwrap(); cause != nil {
		return c.Message() + ": " + cause.Error()
	}
	return c.Message()
}
