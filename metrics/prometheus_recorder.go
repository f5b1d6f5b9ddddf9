package metrics

import (
	"time"

	"github.com/pkg/errors"
	prom "github.com/prometheus/client_golang/prometheus"
)

// namespace prefixes every metric name.
const namespace = "stencil"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry      *prom.Registry
	passDuration  *prom.HistogramVec
	passResults   *prom.CounterVec
	buildDuration prom.Histogram
	buildOutcome  *prom.CounterVec
	droppedUnits  prom.Counter
}

// NewPrometheusRecorder constructs the build metrics and registers them with reg, or with a new registry if reg is
// nil.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		registry: reg,
		passDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Duration of individual compilation passes",
			Buckets:   prom.DefBuckets,
		}, []string{"result"}),
		passResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "pass_results_total",
			Help:      "Compilation pass counts by result",
		}, []string{"result"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build counts by outcome",
		}, []string{"outcome"}),
		droppedUnits: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_units_total",
			Help:      "Translation units dropped from builds after failing to compile",
		}),
	}
	reg.MustRegister(pr.passDuration, pr.passResults, pr.buildDuration, pr.buildOutcome, pr.droppedUnits)
	return pr
}

// Registry returns the registry the metrics are registered with.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.registry
}

func (p *PrometheusRecorder) ObservePassDuration(result PassResultLabel, d time.Duration) {
	if p == nil {
		return
	}
	p.passDuration.WithLabelValues(string(result)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPassResult(result PassResultLabel) {
	if p == nil {
		return
	}
	p.passResults.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) AddDroppedUnits(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.droppedUnits.Add(float64(n))
}

// WriteToTextfile writes the current value of every metric to path in the Prometheus text format, for collection
// by a node exporter textfile collector.
func (p *PrometheusRecorder) WriteToTextfile(path string) error {
	return errors.WithStack(prom.WriteToTextfile(path, p.registry))
}
