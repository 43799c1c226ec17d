// Package metrics provides the observability hooks of cubepio.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	exec := action.NewExecutor(runner, action.WithRecorder(metrics.NoopRecorder{}))
//
// PrometheusRecorder registers its collectors on a caller-supplied registry,
// and NewServeMux exposes it together with /healthz on daemon.metrics_addr.
package metrics
