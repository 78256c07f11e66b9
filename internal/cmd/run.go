package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/splatpipe/splatpipe/internal/event"
	"github.com/splatpipe/splatpipe/internal/logging"
	"github.com/splatpipe/splatpipe/internal/metrics"
	"github.com/splatpipe/splatpipe/internal/pipeline"
	"github.com/splatpipe/splatpipe/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once, or continuously with --watch",
	Long: `Run waits for an image in input.watch_dir, moves it to the reconstruction
input folder, runs the reconstruction command, waits for its .ply output,
brings the output back to the asset folder, converts it for the renderer and
writes the reload marker.

With --watch, runs repeat until interrupted. A failed run is reported and the
next run waits for a new image.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

// newBuilder is replaced in tests.
var newBuilder = func() runner.Builder { return runner.NewExecBuilder() }

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolP("watch", "w", false, "keep running passes until interrupted")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Close()

	bus := event.NewBus(logger)
	newNarrator(cmd.ErrOrStderr()).attach(bus)

	env := runner.Environment{WSL: cfg.Foreign.IsWSL(), Distro: cfg.Foreign.Distro}
	p, err := pipeline.NewPipeline(pipeline.PipelineConfig{
		Bus:    bus,
		Config: cfg,
		Runner: runner.New(newBuilder(), env, logger),
	},
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics.NewRecorder()),
	)
	if err != nil {
		return err
	}

	watch, _ := cmd.Flags().GetBool("watch")
	if !watch {
		_, err := p.Run(cmd.Context())
		return err
	}

	logger.Info("watching for images", "dir", cfg.Input.WatchDir, "interval", cfg.Poll.Interval.String())
	return p.Watch(cmd.Context(), func(res pipeline.Result, err error) {
		if err != nil && cmd.Context().Err() == nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "waiting for the next image")
			logRunFailure(logger, res, err)
		}
	})
}

func logRunFailure(logger *logging.Logger, res pipeline.Result, err error) {
	logger.WithRun(res.RunID).Warn("run failed, continuing", "stage", res.Stage.String(), "error", err.Error())
}
