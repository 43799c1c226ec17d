package events

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/cubepio/internal/stage"
)

// ProjectEvent is implemented by every notification.
type ProjectEvent interface {
	ProjectID() uuid.UUID
	Kind() string
}

// Header is embedded in every event.
type Header struct {
	Project uuid.UUID `json:"project_id"`
	At      time.Time `json:"at"`
}

// ProjectID implements ProjectEvent.
func (h Header) ProjectID() uuid.UUID { return h.Project }

// NewHeader stamps an event for project id with the current time.
func NewHeader(id uuid.UUID) Header {
	return Header{Project: id, At: time.Now().UTC()}
}

// Kind names, stable for persistence and remote subjects.
const (
	KindProjectAdded   = "project_added"
	KindProjectRemoved = "project_removed"
	KindNameResolved   = "name_resolved"
	KindActionStarted  = "action_started"
	KindLogAppended    = "log_appended"
	KindActionResult   = "action_result"
	KindStageChanged   = "stage_changed"
)

// ProjectAdded is emitted when a location is accepted by the registry.
type ProjectAdded struct {
	Header
	Location    string `json:"location"`
	Index       int    `json:"index"`
	FromStartup bool   `json:"from_startup"`
}

func (ProjectAdded) Kind() string { return KindProjectAdded }

// ProjectRemoved is the last event of a project.
type ProjectRemoved struct {
	Header
	Location string `json:"location"`
	Index    int    `json:"index"`
}

func (ProjectRemoved) Kind() string { return KindProjectRemoved }

// NameResolved ends the loading phase.
type NameResolved struct {
	Header
	DisplayName string `json:"display_name"`
	Invalid     bool   `json:"invalid"`
}

func (NameResolved) Kind() string { return KindNameResolved }

// ActionStarted is emitted when Run accepted an action.
type ActionStarted struct {
	Header
	Action string   `json:"action"`
	Args   []string `json:"args,omitempty"`
}

func (ActionStarted) Kind() string { return KindActionStarted }

// LogAppended carries one line appended to the project log. Seq is the
// zero-based position of the line in the log; Level lets presentation layers
// style notices and failure diagnostics.
type LogAppended struct {
	Header
	Seq   int        `json:"seq"`
	Line  string     `json:"line"`
	Level slog.Level `json:"level"`
}

func (LogAppended) Kind() string { return KindLogAppended }

// ActionResult is the terminal notification of an action.
type ActionResult struct {
	Header
	Action   string        `json:"action"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

func (ActionResult) Kind() string { return KindActionResult }

// StageChanged reports a freshly computed stage report. Report is zeroed when
// Invalid is set. NeedsRemovalConfirmation marks the transition of a
// previously valid project into the invalid state, as opposed to an ordinary
// stage update.
type StageChanged struct {
	Header
	Report                   stage.Report `json:"report"`
	Current                  stage.Stage  `json:"current"`
	Invalid                  bool         `json:"invalid"`
	NeedsRemovalConfirmation bool         `json:"needs_removal_confirmation"`
}

func (StageChanged) Kind() string { return KindStageChanged }
