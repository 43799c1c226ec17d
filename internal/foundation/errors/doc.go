// Package errors classifies cubepio errors by category so the CLI can pick
// an exit code and log level, and so callers can test for conditions such as
// "project busy" or "unknown index" without string matching.
//
// Sentinels are built once and decorated per call site:
//
//	var ErrBusy = errors.BusyError("action already running").Build()
//	return ErrBusy.WithContext("action", name)
//
// errors.Is matches on category and message, so the decorated copy still
// compares equal to the sentinel.
package errors
