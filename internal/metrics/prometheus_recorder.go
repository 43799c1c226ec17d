package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "cubepio"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	actionDuration *prom.HistogramVec
	actionResults  *prom.CounterVec
	probeDuration  prom.Histogram
	probeOutcomes  *prom.CounterVec
	projects       prom.Gauge
}

// NewPrometheusRecorder constructs the collectors and registers them on reg
// (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		actionDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Duration of project actions",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"action"}),
		actionResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "action_results_total",
			Help:      "Action results by outcome",
		}, []string{"action", "result"}),
		probeDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Duration of stage probes",
			Buckets:   prom.DefBuckets,
		}),
		probeOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "probe_outcomes_total",
			Help:      "Stage probe outcomes",
		}, []string{"outcome"}),
		projects: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "projects",
			Help:      "Number of registered projects",
		}),
	}
	reg.MustRegister(pr.actionDuration, pr.actionResults, pr.probeDuration, pr.probeOutcomes, pr.projects)
	return pr
}

func (p *PrometheusRecorder) ObserveActionDuration(action string, d time.Duration) {
	if p == nil {
		return
	}
	p.actionDuration.WithLabelValues(action).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncActionResult(action string, result ResultLabel) {
	if p == nil {
		return
	}
	p.actionResults.WithLabelValues(action, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveProbeDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.probeDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncProbeOutcome(outcome ProbeOutcome) {
	if p == nil {
		return
	}
	p.probeOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) SetProjects(n int) {
	if p == nil {
		return
	}
	p.projects.Set(float64(n))
}
