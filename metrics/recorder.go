// Package metrics provides the observability hooks of a build. Components receive a Recorder and default to
// NoopRecorder, so metrics collection needs no nil checks. PrometheusRecorder forwards to Prometheus collectors.
package metrics

import "time"

// PassResultLabel enumerates pass result categories for counters.
type PassResultLabel string

const (
	// PassSucceeded labels a pass which produced an artifact.
	PassSucceeded PassResultLabel = "succeeded"
	// PassFailed labels a pass which reported diagnostics.
	PassFailed PassResultLabel = "failed"
	// PassUnexpected labels a pass which faulted outside normal compilation.
	PassUnexpected PassResultLabel = "unexpected"
)

// BuildOutcomeLabel enumerates build outcomes for counters.
type BuildOutcomeLabel string

const (
	// BuildComplete labels a build whose artifact holds every unit.
	BuildComplete BuildOutcomeLabel = "complete"
	// BuildPartial labels a build whose artifact holds only part of the units.
	BuildPartial BuildOutcomeLabel = "partial"
	// BuildFailed labels a build which produced no artifact.
	BuildFailed BuildOutcomeLabel = "failed"
)

// Recorder defines the observability hooks of a build.
type Recorder interface {
	ObservePassDuration(result PassResultLabel, d time.Duration)
	IncPassResult(result PassResultLabel)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome BuildOutcomeLabel)
	AddDroppedUnits(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObservePassDuration(PassResultLabel, time.Duration) {}
func (NoopRecorder) IncPassResult(PassResultLabel)                      {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)                 {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)                  {}
func (NoopRecorder) AddDroppedUnits(int)                                {}
