package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/splatpipe/splatpipe/internal/bridge"
	"github.com/splatpipe/splatpipe/internal/config"
	apperrors "github.com/splatpipe/splatpipe/internal/errors"
	"github.com/splatpipe/splatpipe/internal/event"
	"github.com/splatpipe/splatpipe/internal/logging"
	"github.com/splatpipe/splatpipe/internal/poll"
	"github.com/splatpipe/splatpipe/internal/runner"
)

// PipelineConfig holds required dependencies for creating a Pipeline.
type PipelineConfig struct {
	Bus    *event.Bus     // Receives stage transitions
	Config *config.Config // Validated configuration
	Runner *runner.Runner // Runs reconstruction and foreign helper commands
}

// Pipeline runs the stage sequence one pass at a time.
type Pipeline struct {
	mu     sync.RWMutex
	cfg    PipelineConfig
	phase  Phase
	pcfg   pipelineConfig
	bridge *bridge.Bridge
	poller *poll.Poller

	// per-run state, only touched by the goroutine inside Run
	runLog   *logging.Logger
	vertices int
}

// NewPipeline creates a Pipeline with the given configuration and options.
func NewPipeline(cfg PipelineConfig, opts ...PipelineOption) (*Pipeline, error) {
	if cfg.Bus == nil {
		return nil, errors.New("pipeline: Bus is required")
	}
	if cfg.Config == nil {
		return nil, errors.New("pipeline: Config is required")
	}
	if cfg.Runner == nil {
		return nil, errors.New("pipeline: Runner is required")
	}

	pc := &pipelineConfig{}
	for _, opt := range opts {
		opt(pc)
	}
	pc.defaults()

	if pc.recorder != nil {
		pc.recorder.Attach(cfg.Bus)
	}

	c := cfg.Config
	return &Pipeline{
		cfg:    cfg,
		pcfg:   *pc,
		bridge: bridge.New(cfg.Runner, pc.logger),
		poller: poll.New(poll.Options{
			Interval:     c.Poll.Interval,
			Timeout:      c.Poll.Timeout,
			SettleChecks: c.Poll.SettleChecks,
			WatchEvents:  c.Poll.WatchEvents,
			Clock:        pc.clock,
			Logger:       pc.logger,
		}),
		runLog: pc.logger,
	}, nil
}

// Phase returns the current phase. It is empty before the first run.
func (p *Pipeline) Phase() Phase {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.phase
}

func (p *Pipeline) setPhase(phase Phase) {
	p.mu.Lock()
	p.phase = phase
	p.mu.Unlock()
}

// Stages returns the stages of a run in order.
func (p *Pipeline) Stages() []Stage {
	return []Stage{
		{Name: PhaseAwaitInput, Execute: p.awaitInput},
		{Name: PhaseRelocate, Execute: p.relocate},
		{Name: PhaseReconstruct, Execute: p.reconstruct},
		{Name: PhaseAwaitOutput, Execute: p.awaitOutput},
		{Name: PhaseBridgeBack, Execute: p.bridgeBack},
		{Name: PhaseTranscode, Execute: p.transcode},
		{Name: PhaseSignal, Execute: p.signal},
	}
}

// Run executes one full pass. On failure the returned error is an
// *errors.StageError naming the stage, and the Result reports PhaseFailed.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	return p.runStages(ctx, p.Stages())
}

func (p *Pipeline) runStages(ctx context.Context, stages []Stage) (Result, error) {
	clock := p.pcfg.clock
	runID := p.pcfg.newRunID()
	p.runLog = p.pcfg.logger.WithRun(runID)
	p.vertices = 0
	defer func() { p.runLog = p.pcfg.logger }()

	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name.String()
	}

	res := Result{RunID: runID}
	start := clock.Now()
	p.cfg.Bus.Publish(event.NewPipelineStartedEvent(runID, names))
	p.runLog.Info("run started", "stages", names)

	var file StageFile
	for i, stage := range stages {
		p.setPhase(stage.Name)
		log := p.runLog.WithStage(stage.Name.String())
		p.cfg.Bus.Publish(event.NewStageStartedEvent(runID, stage.Name.String(), i, file.Path))
		log.Info("stage started", "input", file.Path)

		stageStart := clock.Now()
		out, err := stage.Execute(ctx, file)
		if err != nil {
			res.Phase, res.Stage = PhaseFailed, stage.Name
			res.Duration = clock.Since(start)
			p.setPhase(PhaseFailed)

			wrapped := apperrors.NewStageError(stage.Name.String(), err)
			p.cfg.Bus.Publish(event.NewPipelineFailedEvent(runID, stage.Name.String(), err, res.Duration))
			log.Error("stage failed",
				"error", err.Error(),
				"exit_code", apperrors.ExitCode(err),
				"severity", apperrors.SeverityOf(err).String(),
			)
			p.writeMetrics()
			return res, wrapped
		}

		d := clock.Since(stageStart)
		p.cfg.Bus.Publish(event.NewStageCompletedEvent(runID, stage.Name.String(), i, out.Path, string(out.Namespace), d))
		log.Info("stage completed", "output", out.Path, "namespace", string(out.Namespace), "duration", d.String())

		switch stage.Name {
		case PhaseAwaitInput:
			res.Input = out.Path
		case PhaseTranscode:
			res.Asset = out.Path
		case PhaseSignal:
			res.Signal = out.Path
		}
		file = out
	}

	res.Phase = PhaseDone
	res.Vertices = p.vertices
	res.Duration = clock.Since(start)
	p.setPhase(PhaseDone)
	p.cfg.Bus.Publish(event.NewPipelineCompletedEvent(runID, res.Asset, res.Signal, res.Duration))
	p.runLog.Info("run completed", "asset", res.Asset, "signal", res.Signal, "duration", res.Duration.String())
	p.writeMetrics()
	return res, nil
}

func (p *Pipeline) writeMetrics() {
	if p.pcfg.recorder == nil {
		return
	}
	if err := p.pcfg.recorder.WriteTextfile(p.cfg.Config.Metrics.Textfile); err != nil {
		p.runLog.Warn("failed to write metrics", "error", err.Error())
	}
}

// Watch runs passes back to back until ctx is canceled. A failed pass is
// reported to onResult and the next pass starts fresh. Configuration errors
// end the loop since every later pass would fail the same way.
func (p *Pipeline) Watch(ctx context.Context, onResult func(Result, error)) error {
	for {
		res, err := p.Run(ctx)
		if onResult != nil {
			onResult(res, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var cfgErr *apperrors.ConfigurationError
		if errors.As(err, &cfgErr) {
			return err
		}
	}
}
