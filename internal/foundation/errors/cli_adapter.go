package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Exit codes returned by the cubepio CLI.
const (
	ExitOK       = 0
	ExitGeneral  = 1
	ExitUsage    = 2
	ExitNotFound = 3
	ExitConflict = 4
	ExitConfig   = 7
	ExitExternal = 8
	ExitInternal = 10
	ExitAction   = 11
	ExitRuntime  = 12
)

// CLIErrorAdapter turns an error returned by a command into a stderr message,
// an optional log record and a process exit code.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	stderr  io.Writer
	exit    func(int)
}

// NewCLIErrorAdapter returns an adapter writing to os.Stderr. A nil logger
// means slog.Default().
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger, stderr: os.Stderr, exit: os.Exit}
}

// ExitCodeFor maps err to a process exit code. Unclassified errors give ExitGeneral.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	c, ok := AsClassified(err)
	if !ok {
		return ExitGeneral
	}
	switch c.Category() {
	case CategoryValidation:
		return ExitUsage
	case CategoryNotFound:
		return ExitNotFound
	case CategoryAlreadyExists, CategoryBusy:
		return ExitConflict
	case CategoryConfig:
		return ExitConfig
	case CategoryNetwork, CategoryGit:
		return ExitExternal
	case CategoryAction, CategoryTool, CategoryProbe, CategoryFileSystem:
		return ExitAction
	case CategoryStore, CategoryDaemon, CategoryRuntime:
		return ExitRuntime
	case CategoryInternal:
		return ExitInternal
	default:
		return ExitGeneral
	}
}

// FormatError renders err for the terminal. Outside verbose mode only the
// message is shown, and internal errors are reduced to a hint.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	c, ok := AsClassified(err)
	switch {
	case !ok:
		return fmt.Sprintf("Error: %v", err)
	case a.verbose:
		return "Error: " + c.Error()
	case c.Category() == CategoryInternal:
		return "Internal error occurred (use -v for details)"
	default:
		return "Error: " + c.Message()
	}
}

// HandleError reports err and exits. It returns without exiting when err is nil.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	if a.shouldLog(err) {
		a.logError(err)
	}
	fmt.Fprintln(a.stderr, a.FormatError(err))
	a.exit(a.ExitCodeFor(err))
}

func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}
	c, ok := AsClassified(err)
	return !ok || c.Severity() == SeverityFatal
}

func (a *CLIErrorAdapter) logError(err error) {
	c, ok := AsClassified(err)
	if !ok {
		a.logger.Error("Unclassified error", "error", err)
		return
	}
	attrs := c.LogAttrs()
	if c.CanRetry() {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	a.logger.LogAttrs(context.Background(), levelFor(c.Severity()), c.Message(), attrs...)
}

func levelFor(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
