package errors

import "maps"

// ErrorCategory groups errors for exit codes and log routing.
type ErrorCategory string

const (
	// Input and configuration.
	CategoryConfig        ErrorCategory = "config"
	CategoryValidation    ErrorCategory = "validation"
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryAlreadyExists ErrorCategory = "already_exists"

	// A project already runs an action.
	CategoryBusy ErrorCategory = "busy"

	// External systems.
	CategoryNetwork ErrorCategory = "network"
	CategoryGit     ErrorCategory = "git"

	// Actions, tools and stage probing.
	CategoryAction     ErrorCategory = "action"
	CategoryTool       ErrorCategory = "tool"
	CategoryProbe      ErrorCategory = "probe"
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryStore      ErrorCategory = "store"

	CategoryRuntime  ErrorCategory = "runtime"
	CategoryDaemon   ErrorCategory = "daemon"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity maps onto the slog level used when the error is logged.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"
	SeverityError   ErrorSeverity = "error"
	SeverityWarning ErrorSeverity = "warning"
	SeverityInfo    ErrorSeverity = "info"
)

// RetryStrategy tells a caller whether repeating the operation can help.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never"
	RetryImmediate  RetryStrategy = "immediate"
	RetryBackoff    RetryStrategy = "backoff"
	RetryUserAction RetryStrategy = "user" // e.g. wait for the running action
)

// ErrorContext holds the key/value details attached to a ClassifiedError.
type ErrorContext map[string]any

// With returns a new context holding c plus key=value. c is not modified.
func (c ErrorContext) With(key string, value any) ErrorContext {
	out := make(ErrorContext, len(c)+1)
	maps.Copy(out, c)
	out[key] = value
	return out
}

// Lookup returns the value of key when it is a string.
func (c ErrorContext) Lookup(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}
