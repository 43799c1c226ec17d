package errors

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"validation", ValidationError("bad index").Build(), ExitUsage},
		{"unknown project", NotFoundError("no project at index").Build(), ExitNotFound},
		{"busy", BusyError("action running").Build(), ExitConflict},
		{"duplicate", AlreadyExistsError("registered").Build(), ExitConflict},
		{"config", ConfigError("bad config").Build(), ExitConfig},
		{"nats", NetworkError("no servers").Build(), ExitExternal},
		{"tool wrapped by fmt", fmt.Errorf("run: %w", ToolError("platformio failed").Build()), ExitAction},
		{"store", StoreError("locked").Build(), ExitRuntime},
		{"internal", InternalError("bug").Build(), ExitInternal},
		{"unclassified", errors.New("unknown error"), ExitGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		err     error
		want    string
	}{
		{"nil", false, nil, ""},
		{"internal hides details", false, InternalError("internal issue").Build(), "Internal error occurred (use -v for details)"},
		{"message only", false, AlreadyExistsError("project already registered").Build(), "Error: project already registered"},
		{"verbose shows category", true, StoreError("database locked").Build(), "Error: [store] database locked"},
		{"unclassified", false, errors.New("boom"), "Error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, NewCLIErrorAdapter(tt.verbose, slog.Default()).FormatError(tt.err))
		})
	}
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var logs, stderr bytes.Buffer
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil)))
	adapter.stderr = &stderr
	code := -1
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(nil)
	require.Equal(t, -1, code)

	adapter.HandleError(NotFoundError("no project at index 4").Build())
	require.Equal(t, ExitNotFound, code)
	require.Equal(t, "Error: no project at index 4\n", stderr.String())
	require.Empty(t, logs.String(), "non-fatal errors are not logged outside verbose mode")

	stderr.Reset()
	adapter.HandleError(ConfigError("bad version").WithContext("path", "cubepio.yaml").Build())
	require.Equal(t, ExitConfig, code)
	require.Contains(t, logs.String(), "category=config")
	require.Contains(t, logs.String(), "path=cubepio.yaml")
}
