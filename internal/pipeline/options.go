package pipeline

import (
	"github.com/google/uuid"

	"github.com/splatpipe/splatpipe/internal/logging"
	"github.com/splatpipe/splatpipe/internal/metrics"
	"github.com/splatpipe/splatpipe/internal/timeutil"
)

// PipelineOption configures a Pipeline.
type PipelineOption func(*pipelineConfig)

// pipelineConfig holds optional settings for the Pipeline.
type pipelineConfig struct {
	logger   *logging.Logger
	clock    timeutil.Clock
	recorder *metrics.Recorder
	newRunID func() string
}

// WithLogger sets the logger. Run and stage context is added per run.
func WithLogger(l *logging.Logger) PipelineOption {
	return func(c *pipelineConfig) {
		c.logger = l
	}
}

// WithClock sets the clock used for polling waits and stage durations.
func WithClock(clock timeutil.Clock) PipelineOption {
	return func(c *pipelineConfig) {
		c.clock = clock
	}
}

// WithMetrics attaches a metrics recorder to the pipeline's bus. The
// textfile named by metrics.textfile is rewritten after every run.
func WithMetrics(r *metrics.Recorder) PipelineOption {
	return func(c *pipelineConfig) {
		c.recorder = r
	}
}

// WithRunIDs overrides how run IDs are generated.
func WithRunIDs(fn func() string) PipelineOption {
	return func(c *pipelineConfig) {
		c.newRunID = fn
	}
}

func (c *pipelineConfig) defaults() {
	if c.logger == nil {
		c.logger = logging.NopLogger()
	}
	if c.clock == nil {
		c.clock = timeutil.RealClock{}
	}
	if c.newRunID == nil {
		c.newRunID = uuid.NewString
	}
}
