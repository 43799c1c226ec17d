package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testRecorder struct {
	actionDurations map[string]int
	actionResults   map[string]map[ResultLabel]int
	probes          map[ProbeOutcome]int
	projects        int
}

func newTestRecorder() *testRecorder {
	return &testRecorder{
		actionDurations: map[string]int{},
		actionResults:   map[string]map[ResultLabel]int{},
		probes:          map[ProbeOutcome]int{},
	}
}

func (t *testRecorder) ObserveActionDuration(action string, _ time.Duration) {
	t.actionDurations[action]++
}

func (t *testRecorder) IncActionResult(action string, result ResultLabel) {
	m, ok := t.actionResults[action]
	if !ok {
		m = map[ResultLabel]int{}
		t.actionResults[action] = m
	}
	m[result]++
}
func (t *testRecorder) ObserveProbeDuration(time.Duration)   {}
func (t *testRecorder) IncProbeOutcome(outcome ProbeOutcome) { t.probes[outcome]++ }
func (t *testRecorder) SetProjects(n int)                    { t.projects = n }

func TestRecorderInterfaceSatisfied(t *testing.T) {
	var _ Recorder = NoopRecorder{}
	var _ Recorder = (*PrometheusRecorder)(nil)

	var r Recorder = newTestRecorder()
	r.ObserveActionDuration("clean", time.Second)
	r.IncActionResult("clean", ResultSuccess)
	r.IncProbeOutcome(ProbeValid)
	r.SetProjects(4)

	tr := r.(*testRecorder)
	require.Equal(t, 1, tr.actionDurations["clean"])
	require.Equal(t, 1, tr.actionResults["clean"][ResultSuccess])
	require.Equal(t, 1, tr.probes[ProbeValid])
	require.Equal(t, 4, tr.projects)
}
