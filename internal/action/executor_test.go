package action

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
	"git.home.luguber.info/inful/cubepio/internal/projectconfig"
	"git.home.luguber.info/inful/cubepio/internal/testutil"
)

// fakeRunner replays scripted output per tool name.
type fakeRunner struct {
	mu      sync.Mutex
	output  map[string][]string
	fail    map[string]error
	onRun   func(Command)
	calls   []Command
	started []Command
	paths   map[string]string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{output: map[string][]string{}, fail: map[string]error{}, paths: map[string]string{}}
}

func (f *fakeRunner) Run(_ context.Context, c Command, onLine func(string)) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	lines, err, hook := f.output[c.Name], f.fail[c.Name], f.onRun
	f.mu.Unlock()
	if hook != nil {
		hook(c)
	}
	for _, l := range lines {
		onLine(l)
	}
	return err
}

func (f *fakeRunner) Start(_ context.Context, c Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, c)
	return nil
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.paths[name]; ok {
		return p, nil
	}
	return "", errors.New("not found")
}

func (f *fakeRunner) Calls() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.calls...)
}

var testDefaults = projectconfig.File{
	App: projectconfig.App{PlatformIOCmd: "platformio", CubeMXCmd: "cubemx"},
}

// collect drains an action stream and returns its lines and terminal message.
func collect(t *testing.T, ch <-chan Message) ([]string, Message) {
	t.Helper()
	var lines []string
	var term Message
	terminals := 0
	timeout := time.After(5 * time.Second)
	for {
		select {
		case m, ok := <-ch:
			if !ok {
				require.Equal(t, 1, terminals, "exactly one terminal message")
				return lines, term
			}
			if m.Done {
				terminals++
				term = m
				continue
			}
			require.Zero(t, terminals, "line after terminal message")
			lines = append(lines, m.Line)
		case <-timeout:
			t.Fatal("timed out waiting for action stream")
		}
	}
}

func newProject(t *testing.T) string {
	t.Helper()
	return testutil.ProjectDir(t, "board", nil)
}

func TestExecute_UnknownActionIsSynchronous(t *testing.T) {
	e := NewExecutor(testDefaults, WithRunner(newFakeRunner()))
	ch, err := e.Execute(t.Context(), Request{Location: t.TempDir(), Action: "fly"})
	require.Nil(t, ch)
	require.ErrorIs(t, err, ErrUnknownAction)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
}

func TestExecute_NamesAndHas(t *testing.T) {
	e := NewExecutor(testDefaults)
	require.True(t, e.Has(GenerateCode))
	require.False(t, e.Has("fly"))
	require.Equal(t, []string{Build, Clean, GenerateCode, Patch, PIOInit, SaveConfig, StartEditor, ValidateEnvironment}, e.Names())
}

func TestExecute_LinesPrecedeTerminal(t *testing.T) {
	e := NewExecutor(testDefaults, WithBuffer(0), WithAction("echo", func(_ context.Context, env *Env) error {
		for i := range 5 {
			env.Log("line %d", i)
		}
		return nil
	}))
	ch, err := e.Execute(t.Context(), Request{Location: t.TempDir(), Action: "echo"})
	require.NoError(t, err)
	lines, term := collect(t, ch)
	require.Equal(t, []string{"line 0", "line 1", "line 2", "line 3", "line 4"}, lines)
	require.True(t, term.Success)
	require.NoError(t, term.Err)
}

func TestExecute_FailureIsLoggedBeforeTerminal(t *testing.T) {
	e := NewExecutor(testDefaults, WithAction("broken", func(context.Context, *Env) error {
		return ferrors.ActionError("nothing to do").Build()
	}))
	ch, err := e.Execute(t.Context(), Request{Location: t.TempDir(), Action: "broken"})
	require.NoError(t, err)
	lines, term := collect(t, ch)
	require.Equal(t, []string{"broken failed: nothing to do"}, lines)
	require.False(t, term.Success)
	require.Error(t, term.Err)
}

func TestExecute_DiagnosticCarriesCauseAndLevel(t *testing.T) {
	e := NewExecutor(testDefaults, WithAction("flash", func(_ context.Context, env *Env) error {
		env.Log("connecting")
		env.Warn("no probe serial configured")
		return ferrors.WrapError(errors.New("exit status 2"), ferrors.CategoryTool, "st-flash failed").Build()
	}))
	ch, err := e.Execute(t.Context(), Request{Location: t.TempDir(), Action: "flash"})
	require.NoError(t, err)

	var msgs []Message
	for m := range ch {
		msgs = append(msgs, m)
	}
	require.Len(t, msgs, 4)
	require.Equal(t, Message{Line: "connecting", Level: slog.LevelInfo}, msgs[0])
	require.Equal(t, slog.LevelWarn, msgs[1].Level)
	require.Equal(t, "flash failed: st-flash failed: exit status 2", msgs[2].Line)
	require.Equal(t, slog.LevelError, msgs[2].Level)
	require.True(t, msgs[3].Done)
	require.False(t, msgs[3].Success)
}

func TestExecute_PanicIsCaptured(t *testing.T) {
	e := NewExecutor(testDefaults, WithAction("boom", func(context.Context, *Env) error {
		panic("kaboom")
	}))
	ch, err := e.Execute(t.Context(), Request{Location: t.TempDir(), Action: "boom"})
	require.NoError(t, err)
	lines, term := collect(t, ch)
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "kaboom")
	require.False(t, term.Success)
	require.True(t, ferrors.HasCategory(term.Err, ferrors.CategoryInternal))
}
