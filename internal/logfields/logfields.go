package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyProjectID  = "project_id"
	KeyLocation   = "location"
	KeyIndex      = "index"
	KeyAction     = "action"
	KeyStage      = "stage"
	KeyState      = "state"
	KeySuccess    = "success"
	KeyDurationMS = "duration_ms"
	KeyScheduleID = "schedule_id"
	KeyTool       = "tool"
	KeyWorker     = "worker"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func ProjectID(id string) slog.Attr   { return slog.String(KeyProjectID, id) }
func Location(path string) slog.Attr  { return slog.String(KeyLocation, path) }
func Index(i int) slog.Attr           { return slog.Int(KeyIndex, i) }
func Action(name string) slog.Attr    { return slog.String(KeyAction, name) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func State(s string) slog.Attr        { return slog.String(KeyState, s) }
func Success(ok bool) slog.Attr       { return slog.Bool(KeySuccess, ok) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func ScheduleID(id string) slog.Attr  { return slog.String(KeyScheduleID, id) }
func Tool(cmd string) slog.Attr       { return slog.String(KeyTool, cmd) }
func Worker(name string) slog.Attr    { return slog.String(KeyWorker, name) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
