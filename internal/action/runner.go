package action

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
	"git.home.luguber.info/inful/cubepio/internal/logfields"
)

// Command is one external tool invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// ToolRunner abstracts how external tools are executed so tests can swap in a
// fake.
type ToolRunner interface {
	// Run executes cmd to completion, passing each stdout/stderr line to onLine.
	Run(ctx context.Context, cmd Command, onLine func(string)) error
	// Start launches cmd without waiting for it.
	Start(ctx context.Context, cmd Command) error
	// LookPath resolves a command name like exec.LookPath.
	LookPath(name string) (string, error)
}

// ExecRunner runs tools through os/exec.
type ExecRunner struct{}

const maxLineBytes = 1 << 20

// Run implements ToolRunner. Output of both streams is merged in arrival order.
func (ExecRunner) Run(ctx context.Context, c Command, onLine func(string)) error {
	// #nosec G204 -- tool commands come from the user's configuration
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	slog.Debug("Running tool", logfields.Tool(c.Name), slog.String("command", c.String()), slog.String("dir", c.Dir))
	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		_ = pr.Close()
		return ferrors.WrapError(err, ferrors.CategoryTool, "failed to start tool").
			WithContext("command", c.Name).
			Build()
	}

	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		_ = pw.Close()
		waitErr <- err
	}()

	readErr := readLines(pr, maxLineBytes, onLine)
	if readErr != nil {
		// Drain so the process is not blocked on a full pipe.
		_, _ = io.Copy(io.Discard, pr)
	}

	if err := <-waitErr; err != nil {
		return ferrors.WrapError(err, ferrors.CategoryTool, "tool exited with error").
			WithContext("command", c.Name).
			Build()
	}
	if readErr != nil {
		return ferrors.WrapError(readErr, ferrors.CategoryTool, "cannot read tool output").
			WithContext("command", c.Name).
			Build()
	}
	return nil
}

// readLines passes each line of r to onLine without its line ending. Lines
// longer than limit are split into limit-sized pieces.
func readLines(r io.Reader, limit int, onLine func(string)) error {
	emit := func(s string) {
		for len(s) > limit {
			onLine(s[:limit])
			s = s[limit:]
		}
		onLine(s)
	}
	br := bufio.NewReaderSize(r, 64*1024)
	var line []byte
	for {
		chunk, err := br.ReadSlice('\n')
		line = append(line, chunk...)
		switch {
		case err == nil:
			emit(trimEOL(line))
			line = line[:0]
		case errors.Is(err, bufio.ErrBufferFull):
			// Keep a non-empty tail so a following newline never yields an empty line.
			for len(line) > limit {
				onLine(string(line[:limit]))
				line = append(line[:0], line[limit:]...)
			}
		case errors.Is(err, io.EOF):
			if len(line) > 0 {
				emit(trimEOL(line))
			}
			return nil
		default:
			return err
		}
	}
}

func trimEOL(b []byte) string {
	s := strings.TrimSuffix(string(b), "\n")
	return strings.TrimSuffix(s, "\r")
}

// Start implements ToolRunner. The process outlives ctx.
func (ExecRunner) Start(_ context.Context, c Command) error {
	// #nosec G204 -- editor command is supplied by the user
	cmd := exec.Command(c.Name, c.Args...)
	cmd.Dir = c.Dir
	if err := cmd.Start(); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryTool, "failed to start process").
			WithContext("command", c.Name).
			Build()
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// LookPath implements ToolRunner.
func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
