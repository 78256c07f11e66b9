package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/splatpipe/splatpipe/internal/errors"
	"github.com/splatpipe/splatpipe/internal/event"
	"github.com/splatpipe/splatpipe/internal/ply"
	"github.com/splatpipe/splatpipe/internal/runner"
	"github.com/splatpipe/splatpipe/internal/testutil"
)

// executeCommand runs the root command with args and returns its combined
// output. Flag values left over from earlier executions are reset first.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	resetCommand(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// resetCommand clears flag values, command contexts and viper state left by
// earlier executions.
func resetCommand(t *testing.T) {
	t.Helper()
	resetFlags(rootCmd)
	resetContexts(rootCmd)
	viper.Reset()
	bindFlags()
	envFileErr = nil
	t.Cleanup(viper.Reset)
}

// resetContexts drops the context cobra stored on each command during an
// earlier execution, so the next ExecuteContext reaches the subcommand.
func resetContexts(c *cobra.Command) {
	c.SetContext(nil) //nolint:staticcheck // nil lets cobra inherit the new parent context
	for _, sub := range c.Commands() {
		resetContexts(sub)
	}
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// -----------------------------------------------------------------------------
// Command tree
// -----------------------------------------------------------------------------

func TestRootCommand_Subcommands(t *testing.T) {
	want := []string{"config", "convert", "inspect", "run", "wslpath"}
	for _, name := range want {
		t.Run(name, func(t *testing.T) {
			cmd, _, err := rootCmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, cmd.Name())
		})
	}
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "env-file", "log-level", "log-dir"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "missing --%s", name)
	}
}

// -----------------------------------------------------------------------------
// convert
// -----------------------------------------------------------------------------

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	in := testutil.WritePLY(t, dir, "sample.ply", testutil.SplatPLY(3))
	out := filepath.Join(dir, "converted", "output.ply")

	got, err := executeCommand(t, "convert", in, out)
	require.NoError(t, err)

	assert.Contains(t, got, "vertices: 3")
	assert.Contains(t, got, "68 -> 248 bytes")
	assert.Contains(t, got, "added:    45 fields")

	cloud, err := ply.ReadCloudFile(out)
	require.NoError(t, err)
	assert.Equal(t, 248, cloud.Schema.Stride())
}

func TestConvert_StrideMismatch(t *testing.T) {
	dir := t.TempDir()
	in := testutil.WritePLY(t, dir, "sample.ply", testutil.SplatPLY(1))
	out := filepath.Join(dir, "output.ply")

	_, err := executeCommand(t, "convert", "--stride", "200", in, out)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrStrideMismatch))
	assert.Equal(t, apperrors.ExitSchema, apperrors.ExitCode(err))
	assert.NoFileExists(t, out)
}

func TestConvert_RequiresTwoArgs(t *testing.T) {
	_, err := executeCommand(t, "convert", "only.ply")
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------
// inspect
// -----------------------------------------------------------------------------

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	in := testutil.WritePLY(t, dir, "sample.ply", testutil.SplatPLY(2))

	got, err := executeCommand(t, "inspect", "-n", "1", in)
	require.NoError(t, err)

	assert.Contains(t, got, "binary_little_endian 1.0")
	assert.Contains(t, got, "element vertex: 2 records, 17 properties, 68 bytes")
	assert.Contains(t, got, "Convertible: yes (68 -> 248 bytes per vertex)")
	assert.Contains(t, got, "vertex 0: x=0.25")
	assert.NotContains(t, got, "vertex 1:")
}

func TestInspect_AlreadyConverted(t *testing.T) {
	dir := t.TempDir()
	in := testutil.WritePLY(t, dir, "sample.ply", testutil.SplatPLY(1))
	out := filepath.Join(dir, "output.ply")
	_, err := ply.MigrateFile(in, out, ply.DefaultMigration())
	require.NoError(t, err)

	got, err := executeCommand(t, "inspect", out)
	require.NoError(t, err)
	assert.Contains(t, got, "Convertible: no")
}

func TestInspect_MissingFile(t *testing.T) {
	_, err := executeCommand(t, "inspect", filepath.Join(t.TempDir(), "missing.ply"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ExitIO, apperrors.ExitCode(err))
}

// -----------------------------------------------------------------------------
// wslpath
// -----------------------------------------------------------------------------

func TestWSLPath(t *testing.T) {
	got, err := executeCommand(t, "wslpath", `C:\models\TRELLIS`, `D:\My Files\shot.png`)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(got), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "/mnt/c/models/TRELLIS", lines[0])
	assert.Contains(t, lines[1], "/mnt/d/My Files/shot.png")
}

func TestWSLPath_ToLocal(t *testing.T) {
	builder := swapBuilder(t)
	builder.SetNextCommand(&runner.MockCommand{Stdout: []byte("C:\\models\\out\\sample.ply\r\n")})

	got, err := executeCommand(t, "wslpath", "--to-local", "--distro", "Ubuntu", "/mnt/c/models/out/sample.ply")
	require.NoError(t, err)
	assert.Equal(t, `C:\models\out\sample.ply`, strings.TrimSpace(got))

	cmd := builder.LastCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "wsl.exe", cmd.Name)
	assert.Contains(t, cmd.Args, "Ubuntu")
	assert.Contains(t, cmd.Args, "wslpath")
}

// -----------------------------------------------------------------------------
// config
// -----------------------------------------------------------------------------

func TestConfigPath(t *testing.T) {
	got, err := executeCommand(t, "config", "path")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(got), filepath.Join("splatpipe", "config.yaml")), got)
}

func TestConfigShow(t *testing.T) {
	t.Setenv("SPLATPIPE_INPUT_TARGET_NAME", "capture.png")

	got, err := executeCommand(t, "config", "show")
	require.NoError(t, err)

	assert.Contains(t, got, "target_name: capture.png")
	assert.Contains(t, got, "anchor: f_dc_2")
	assert.Contains(t, got, "input.watch_dir: is required")
}

func TestConfigInit(t *testing.T) {
	got, err := executeCommand(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, got, "Created config file")
}

func TestConfigInit_ExistingFile(t *testing.T) {
	home := t.TempDir()
	testutil.WriteFile(t, filepath.Join(home, "splatpipe"), "config.yaml", []byte("poll:\n  interval: 1s\n"))

	t.Setenv("XDG_CONFIG_HOME", home)
	resetCommand(t)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetErr(nil); rootCmd.SetArgs(nil) })

	rootCmd.SetArgs([]string{"config", "init"})
	err := rootCmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	rootCmd.SetArgs([]string{"config", "init", "--force"})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.Contains(t, string(testutil.ReadFile(t, filepath.Join(home, "splatpipe", "config.yaml"))), "# splatpipe configuration")
}

// -----------------------------------------------------------------------------
// run
// -----------------------------------------------------------------------------

func swapBuilder(t *testing.T) *runner.MockBuilder {
	t.Helper()
	b := runner.NewMockBuilder()
	prev := newBuilder
	newBuilder = func() runner.Builder { return b }
	t.Cleanup(func() { newBuilder = prev })
	return b
}

func setLocalEnv(t *testing.T, root string) (watch, out, splats, unity string) {
	t.Helper()
	watch = filepath.Join(root, "screenshots")
	out = filepath.Join(root, "trellis", "outputs")
	splats = filepath.Join(root, "unity", "Assets", "Splats")
	unity = filepath.Join(root, "unity", "Assets")
	for key, value := range map[string]string{
		"SPLATPIPE_INPUT_WATCH_DIR":           watch,
		"SPLATPIPE_INPUT_TARGET_NAME":         "input.png",
		"SPLATPIPE_RECONSTRUCTION_INPUT_DIR":  filepath.Join(root, "trellis", "assets"),
		"SPLATPIPE_RECONSTRUCTION_SCRIPT":     "run.py",
		"SPLATPIPE_FOREIGN_MODE":              "local",
		"SPLATPIPE_FOREIGN_OUTPUT_DIR":        out,
		"SPLATPIPE_ASSETS_RECONSTRUCTION_DIR": splats,
		"SPLATPIPE_ASSETS_RENDER_DIR":         unity,
		"SPLATPIPE_POLL_INTERVAL":             "10ms",
		"SPLATPIPE_LOGGING_LEVEL":             "error",
	} {
		t.Setenv(key, value)
	}
	return watch, out, splats, unity
}

func TestRun_Once(t *testing.T) {
	watch, out, splats, unity := setLocalEnv(t, t.TempDir())
	testutil.WriteFile(t, watch, "shot.png", []byte("\x89PNG"))

	builder := swapBuilder(t)
	builder.CommandFactory = func(string, []string) *runner.MockCommand {
		return &runner.MockCommand{
			OnRun: func() { testutil.WritePLY(t, out, "sample.ply", testutil.SplatPLY(2)) },
		}
	}

	got, err := executeCommand(t, "run")
	require.NoError(t, err)

	assert.Contains(t, got, "[1/7] await-input")
	assert.Contains(t, got, "done "+filepath.Join(splats, "output.ply"))
	assert.Equal(t, "reload", string(testutil.ReadFile(t, filepath.Join(unity, "reload.trigger"))))
	assert.FileExists(t, filepath.Join(splats, "output.ply"))
}

func TestRun_ReconstructionFailure(t *testing.T) {
	watch, _, _, _ := setLocalEnv(t, t.TempDir())
	testutil.WriteFile(t, watch, "shot.png", []byte("\x89PNG"))

	builder := swapBuilder(t)
	builder.CommandFactory = func(string, []string) *runner.MockCommand {
		return &runner.MockCommand{Lines: []string{"CUDA out of memory"}, ExitCode: 1}
	}

	got, err := executeCommand(t, "run")
	require.Error(t, err)
	assert.Equal(t, apperrors.ExitProcess, apperrors.ExitCode(err))
	assert.Contains(t, got, "failed reconstruct")
}

func TestRun_InvalidConfig(t *testing.T) {
	setLocalEnv(t, t.TempDir())
	t.Setenv("SPLATPIPE_INPUT_WATCH_DIR", "")
	swapBuilder(t)

	_, err := executeCommand(t, "run")
	require.Error(t, err)
	assert.Equal(t, apperrors.ExitConfiguration, apperrors.ExitCode(err))
}

func TestRun_MissingEnvFile(t *testing.T) {
	setLocalEnv(t, t.TempDir())
	swapBuilder(t)

	_, err := executeCommand(t, "run", "--env-file", filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)

	var cfgErr *apperrors.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "env_file", cfgErr.Key)
}

func TestRun_WatchStopsOnCancel(t *testing.T) {
	watch, out, splats, _ := setLocalEnv(t, t.TempDir())

	// An earlier execution stores its context on runCmd; the watch run
	// below must still see its own.
	_, err := executeCommand(t, "run", "--env-file", filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)

	testutil.WriteFile(t, watch, "shot.png", []byte("\x89PNG"))

	builder := swapBuilder(t)
	builder.CommandFactory = func(string, []string) *runner.MockCommand {
		return &runner.MockCommand{
			OnRun: func() { testutil.WritePLY(t, out, "sample.ply", testutil.SplatPLY(1)) },
		}
	}

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	resetCommand(t)
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"run", "--watch"})
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetErr(nil); rootCmd.SetArgs(nil) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rootCmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(splats, "output.ply"))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

// -----------------------------------------------------------------------------
// narrator
// -----------------------------------------------------------------------------

func TestNarrator_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	n := newNarrator(&buf)
	assert.False(t, n.styled)

	bus := event.NewBus(nil)
	n.attach(bus)

	bus.Publish(event.NewPipelineStartedEvent("run-1", []string{"relocate", "transcode"}))
	bus.Publish(event.NewStageStartedEvent("run-1", "transcode", 1, "/in/sample.ply"))
	bus.Publish(event.NewStageCompletedEvent("run-1", "transcode", 1, "/out/output.ply", "local", 1500*time.Millisecond))

	want := "run run-1\n[2/2] transcode\n  ok 1.5s /out/output.ply\n"
	assert.Equal(t, want, buf.String())
}

func TestNarrator_TruncatesToWidth(t *testing.T) {
	var buf bytes.Buffer
	n := &narrator{out: &buf, width: 20}

	n.println("done /very/long/path/to/the/asset/output.ply in 2s")
	n.println("short")

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, 20, len(lines[0]))
	assert.True(t, strings.HasSuffix(lines[0], "..."))
	assert.Equal(t, "short", lines[1])
}
