package event

import "time"

// Event type names
const (
	TypePipelineStarted   = "pipeline.started"
	TypeStageStarted      = "stage.started"
	TypeStageCompleted    = "stage.completed"
	TypePipelineFailed    = "pipeline.failed"
	TypePipelineCompleted = "pipeline.completed"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns the "category.action" identifier of the event.
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent carries the fields shared by every pipeline event.
type baseEvent struct {
	eventType string
	timestamp time.Time
	RunID     string
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType, runID string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
		RunID:     runID,
	}
}

// PipelineStartedEvent is emitted once per run before the first stage.
type PipelineStartedEvent struct {
	baseEvent
	Stages []string
}

// NewPipelineStartedEvent creates a PipelineStartedEvent.
func NewPipelineStartedEvent(runID string, stages []string) PipelineStartedEvent {
	return PipelineStartedEvent{
		baseEvent: newBaseEvent(TypePipelineStarted, runID),
		Stages:    stages,
	}
}

// StageStartedEvent is emitted when a stage begins.
type StageStartedEvent struct {
	baseEvent
	Stage string
	Index int // zero-based position in the run
	Input string
}

// NewStageStartedEvent creates a StageStartedEvent. input is the path handed
// to the stage, empty for the first.
func NewStageStartedEvent(runID, stage string, index int, input string) StageStartedEvent {
	return StageStartedEvent{
		baseEvent: newBaseEvent(TypeStageStarted, runID),
		Stage:     stage,
		Index:     index,
		Input:     input,
	}
}

// StageCompletedEvent is emitted when a stage finishes successfully.
type StageCompletedEvent struct {
	baseEvent
	Stage     string
	Index     int
	Output    string // path handed to the next stage
	Namespace string // "local" or "foreign"
	Duration  time.Duration
}

// NewStageCompletedEvent creates a StageCompletedEvent.
func NewStageCompletedEvent(runID, stage string, index int, output, namespace string, d time.Duration) StageCompletedEvent {
	return StageCompletedEvent{
		baseEvent: newBaseEvent(TypeStageCompleted, runID),
		Stage:     stage,
		Index:     index,
		Output:    output,
		Namespace: namespace,
		Duration:  d,
	}
}

// PipelineFailedEvent is emitted when a stage fails and the run ends.
type PipelineFailedEvent struct {
	baseEvent
	Stage    string
	Err      error
	Duration time.Duration
}

// NewPipelineFailedEvent creates a PipelineFailedEvent.
func NewPipelineFailedEvent(runID, stage string, err error, d time.Duration) PipelineFailedEvent {
	return PipelineFailedEvent{
		baseEvent: newBaseEvent(TypePipelineFailed, runID),
		Stage:     stage,
		Err:       err,
		Duration:  d,
	}
}

// PipelineCompletedEvent is emitted after the completion marker is written.
type PipelineCompletedEvent struct {
	baseEvent
	Asset    string // transcoded point cloud
	Signal   string // completion marker
	Duration time.Duration
}

// NewPipelineCompletedEvent creates a PipelineCompletedEvent.
func NewPipelineCompletedEvent(runID, asset, signal string, d time.Duration) PipelineCompletedEvent {
	return PipelineCompletedEvent{
		baseEvent: newBaseEvent(TypePipelineCompleted, runID),
		Asset:     asset,
		Signal:    signal,
		Duration:  d,
	}
}
