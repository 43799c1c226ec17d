package metrics

import "time"

// ResultLabel enumerates action outcomes for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
	ResultPanic   ResultLabel = "panic"
)

// ProbeOutcome enumerates probe outcomes for counters.
type ProbeOutcome string

const (
	ProbeValid    ProbeOutcome = "valid"
	ProbeInvalid  ProbeOutcome = "invalid"
	ProbeCanceled ProbeOutcome = "canceled"
	ProbeStale    ProbeOutcome = "stale"
)

// Recorder defines observability hooks for actions, probes and the registry.
type Recorder interface {
	ObserveActionDuration(action string, d time.Duration)
	IncActionResult(action string, result ResultLabel)
	ObserveProbeDuration(d time.Duration)
	IncProbeOutcome(outcome ProbeOutcome)
	SetProjects(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveActionDuration(string, time.Duration) {}
func (NoopRecorder) IncActionResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveProbeDuration(time.Duration)          {}
func (NoopRecorder) IncProbeOutcome(ProbeOutcome)                {}
func (NoopRecorder) SetProjects(int)                             {}
