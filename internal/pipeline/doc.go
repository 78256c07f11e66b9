// Package pipeline drives one captured image through reconstruction and into
// the renderer's asset folder.
//
// A run is a fixed sequence of stages connected by file handoffs:
//
//	await-input → relocate → reconstruct → await-output → bridge-back → transcode → signal
//
// Each stage receives the [StageFile] produced by the previous one and
// returns the file it hands on. The first failure ends the run in
// [PhaseFailed]; the error is wrapped in an *errors.StageError naming the
// stage. Nothing is rolled back: partial files stay where they are and the
// next run overwrites them.
//
// Stage transitions are published on the [event.Bus] passed in
// [PipelineConfig]; the CLI narrates them and the metrics recorder counts
// them.
//
// # Usage
//
//	p, _ := pipeline.NewPipeline(pipeline.PipelineConfig{
//	    Bus:    bus,
//	    Config: cfg,
//	    Runner: runner.New(runner.NewExecBuilder(), env, logger),
//	}, pipeline.WithLogger(logger))
//	res, err := p.Run(ctx)
//
// A Pipeline runs one pass at a time; callers must not call Run
// concurrently on the same asset folders.
package pipeline
