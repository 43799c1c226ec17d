package action

import (
	"log/slog"

	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
)

// Message is one item of an action's output stream.
type Message struct {
	// Line is a log line; empty on the terminal message.
	Line string
	// Level grades the line: tool output and progress are Info, notices
	// Warn, and the failure diagnostic Error.
	Level slog.Level
	// Done marks the terminal message.
	Done    bool
	Success bool
	// Err describes the failure when Done && !Success.
	Err error
}

// Request names an action to run on a project directory.
type Request struct {
	Location string
	Action   string
	Args     []string
}

// ErrUnknownAction is returned by Execute for names without a registered action.
var ErrUnknownAction = ferrors.NotFoundError("unknown action").Build()

func lineMsg(level slog.Level, s string) Message { return Message{Line: s, Level: level} }

func doneMsg(err error) Message {
	return Message{Done: true, Success: err == nil, Err: err}
}
