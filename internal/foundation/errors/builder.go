package errors

// ErrorBuilder assembles a ClassifiedError. The category constructors below
// pick the severity and retry defaults for their category.
type ErrorBuilder struct {
	err ClassifiedError
}

// NewError starts a builder for a non-retryable error of the given category.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{err: ClassifiedError{
		category: category,
		severity: SeverityError,
		retry:    RetryNever,
		message:  message,
	}}
}

// WrapError is NewError with cause attached.
func WrapError(cause error, category ErrorCategory, message string) *ErrorBuilder {
	b := NewError(category, message)
	b.err.cause = cause
	return b
}

func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.err.severity = severity
	return b
}

func (b *ErrorBuilder) WithRetry(strategy RetryStrategy) *ErrorBuilder {
	b.err.retry = strategy
	return b
}

func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.err.context = b.err.context.With(key, value)
	return b
}

func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.err.cause = err
	return b
}

// Build returns the error. The builder may keep being used afterwards.
func (b *ErrorBuilder) Build() *ClassifiedError {
	out := b.err
	return &out
}

func ConfigError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).WithSeverity(SeverityFatal)
}

func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message).WithSeverity(SeverityFatal)
}

// NotFoundError is for unknown projects, stale indexes and handles, and missing files.
func NotFoundError(message string) *ErrorBuilder {
	return NewError(CategoryNotFound, message)
}

func AlreadyExistsError(message string) *ErrorBuilder {
	return NewError(CategoryAlreadyExists, message)
}

// BusyError clears once the running action finishes.
func BusyError(message string) *ErrorBuilder {
	return NewError(CategoryBusy, message).WithRetry(RetryUserAction)
}

func NetworkError(message string) *ErrorBuilder {
	return NewError(CategoryNetwork, message).WithRetry(RetryBackoff)
}

func GitError(message string) *ErrorBuilder {
	return NewError(CategoryGit, message)
}

func ActionError(message string) *ErrorBuilder {
	return NewError(CategoryAction, message)
}

func ToolError(message string) *ErrorBuilder {
	return NewError(CategoryTool, message)
}

// ProbeError is a warning: a failed probe leaves the previous stage in place.
func ProbeError(message string) *ErrorBuilder {
	return NewError(CategoryProbe, message).WithSeverity(SeverityWarning)
}

func FileSystemError(message string) *ErrorBuilder {
	return NewError(CategoryFileSystem, message).WithRetry(RetryBackoff)
}

func StoreError(message string) *ErrorBuilder {
	return NewError(CategoryStore, message)
}

func RuntimeError(message string) *ErrorBuilder {
	return NewError(CategoryRuntime, message).WithSeverity(SeverityFatal)
}

func DaemonError(message string) *ErrorBuilder {
	return NewError(CategoryDaemon, message).WithSeverity(SeverityFatal)
}

func InternalError(message string) *ErrorBuilder {
	return NewError(CategoryInternal, message).WithSeverity(SeverityFatal)
}
