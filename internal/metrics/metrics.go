// Package metrics records per-stage durations and outcomes of pipeline runs
// in a private Prometheus registry and writes them in the node exporter
// textfile format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/splatpipe/splatpipe/internal/event"
)

const namespace = "splatpipe"

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder holds the pipeline collectors.
type Recorder struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	stageOutcomes *prometheus.CounterVec
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	lastSuccess   prometheus.Gauge
	vertices      prometheus.Gauge
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage, including polling waits.",
			Buckets:   []float64{0.1, 1, 5, 15, 60, 300, 900, 1800, 3600},
		}, []string{"stage"}),
		stageOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_outcomes_total",
			Help:      "Completed and failed stages.",
		}, []string{"stage", "outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of complete pipeline runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last completed run.",
		}),
		vertices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transcoded_vertices",
			Help:      "Vertex count of the last transcoded point cloud.",
		}),
	}
	r.registry.MustRegister(r.stageDuration, r.stageOutcomes, r.runs, r.runDuration, r.lastSuccess, r.vertices)
	return r
}

// Registry returns the registry holding the collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Attach subscribes the recorder to pipeline events on bus and returns the
// subscription IDs.
func (r *Recorder) Attach(bus *event.Bus) []string {
	return []string{
		bus.Subscribe(event.TypeStageCompleted, func(e event.Event) {
			done := e.(event.StageCompletedEvent)
			r.stageDuration.WithLabelValues(done.Stage).Observe(done.Duration.Seconds())
			r.stageOutcomes.WithLabelValues(done.Stage, OutcomeSuccess).Inc()
		}),
		bus.Subscribe(event.TypePipelineFailed, func(e event.Event) {
			failed := e.(event.PipelineFailedEvent)
			r.stageOutcomes.WithLabelValues(failed.Stage, OutcomeFailure).Inc()
			r.runs.WithLabelValues(OutcomeFailure).Inc()
		}),
		bus.Subscribe(event.TypePipelineCompleted, func(e event.Event) {
			done := e.(event.PipelineCompletedEvent)
			r.runs.WithLabelValues(OutcomeSuccess).Inc()
			r.runDuration.Observe(done.Duration.Seconds())
			r.lastSuccess.Set(float64(done.Timestamp().Unix()))
		}),
	}
}

// SetVertices records the vertex count of the last transcoded asset.
func (r *Recorder) SetVertices(n int) {
	r.vertices.Set(float64(n))
}

// WriteTextfile writes the current values to path, atomically replacing it.
// An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
