// Package event provides the synchronous event bus the pipeline publishes
// stage transitions on.
//
// The orchestrator publishes; the CLI narrator, the metrics recorder and
// tests subscribe. Neither side knows about the other.
//
// # Event Types
//
//   - [PipelineStartedEvent] ("pipeline.started"): a run begins
//   - [StageStartedEvent] ("stage.started"): a stage begins
//   - [StageCompletedEvent] ("stage.completed"): a stage hands its file on
//   - [PipelineFailedEvent] ("pipeline.failed"): a stage failed, the run ends
//   - [PipelineCompletedEvent] ("pipeline.completed"): the marker was written
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers run synchronously on the
// publishing goroutine and a panicking handler does not stop delivery to the
// others.
//
// # Usage
//
//	bus := event.NewBus(logger)
//	bus.Subscribe(event.TypeStageCompleted, func(e event.Event) {
//	    done := e.(event.StageCompletedEvent)
//	    fmt.Printf("%s finished in %s\n", done.Stage, done.Duration)
//	})
//	bus.Publish(event.NewStageStartedEvent(runID, "relocate", 1, path))
package event
