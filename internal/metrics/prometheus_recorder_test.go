package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveActionDuration("build", 1500*time.Millisecond)
	pr.IncActionResult("build", ResultSuccess)
	pr.IncActionResult("build", ResultFailed)
	pr.ObserveProbeDuration(3 * time.Millisecond)
	pr.IncProbeOutcome(ProbeInvalid)
	pr.SetProjects(2)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"cubepio_action_duration_seconds",
		"cubepio_action_results_total",
		"cubepio_probe_duration_seconds",
		"cubepio_probe_outcomes_total",
		"cubepio_projects",
	} {
		require.True(t, names[want], want)
	}
}

func TestServeMux(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).SetProjects(3)

	var down error
	mux := NewServeMux(reg, func() error { return down })

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "cubepio_projects 3"))

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	down = errors.New("stopping")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "stopping")
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveActionDuration("build", time.Second)
	pr.IncActionResult("build", ResultPanic)
	pr.SetProjects(1)
}
