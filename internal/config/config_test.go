package config

import (
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/splatpipe/splatpipe/internal/errors"

	"github.com/spf13/viper"
)

// validConfig returns a default Config with every required value set.
func validConfig() *Config {
	cfg := Default()
	cfg.Input.WatchDir = `C:\VR\Screenshots`
	cfg.Input.TargetName = "input.png"
	cfg.Reconstruction.InputDir = `C:\models\TRELLIS\assets`
	cfg.Reconstruction.Script = "run_pipeline.py"
	cfg.Foreign.OutputDir = "/mnt/c/models/TRELLIS/outputs"
	cfg.Assets.ReconstructionDir = `C:\Unity\Project\Assets\Splats`
	cfg.Assets.RenderDir = `C:\Unity\Project\Assets`
	return cfg
}

// resetViper isolates a test from global viper state and the process environment.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	for _, legacy := range LegacyEnv {
		t.Setenv(legacy, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Foreign.Mode != ModeWSL {
		t.Errorf("Foreign.Mode = %q, want %q", cfg.Foreign.Mode, ModeWSL)
	}
	if cfg.Transcode.OutputName != "output.ply" {
		t.Errorf("Transcode.OutputName = %q, want %q", cfg.Transcode.OutputName, "output.ply")
	}
	if cfg.Transcode.Anchor != "f_dc_2" {
		t.Errorf("Transcode.Anchor = %q, want %q", cfg.Transcode.Anchor, "f_dc_2")
	}
	if cfg.Transcode.ExpectedStride != 0 {
		t.Errorf("Transcode.ExpectedStride = %d, want 0 (derived)", cfg.Transcode.ExpectedStride)
	}
	if cfg.Signal.Name != "reload.trigger" || cfg.Signal.Content != "reload" {
		t.Errorf("Signal = %+v, want reload.trigger/reload", cfg.Signal)
	}
	if cfg.Poll.Interval != 5*time.Second {
		t.Errorf("Poll.Interval = %v, want 5s", cfg.Poll.Interval)
	}
	if cfg.Poll.Timeout != 0 {
		t.Errorf("Poll.Timeout = %v, want 0 (indefinite)", cfg.Poll.Timeout)
	}
	if cfg.Input.WatchDir != "" {
		t.Errorf("Input.WatchDir = %q, paths should have no default", cfg.Input.WatchDir)
	}
}

func TestConfig_Paths(t *testing.T) {
	cfg := validConfig()
	cfg.Reconstruction.InputDir = "/data/trellis/assets"
	cfg.Assets.ReconstructionDir = "/data/unity/splats"
	cfg.Assets.RenderDir = "/data/unity"

	if got, want := cfg.TargetPath(), filepath.Join("/data/trellis/assets", "input.png"); got != want {
		t.Errorf("TargetPath() = %q, want %q", got, want)
	}
	if got, want := cfg.TranscodedPath(), filepath.Join("/data/unity/splats", "output.ply"); got != want {
		t.Errorf("TranscodedPath() = %q, want %q", got, want)
	}
	if got, want := cfg.SignalPath(), filepath.Join("/data/unity", "reload.trigger"); got != want {
		t.Errorf("SignalPath() = %q, want %q", got, want)
	}
}

func TestForeignConfig_IsWSL(t *testing.T) {
	if !(&ForeignConfig{Mode: ModeWSL}).IsWSL() {
		t.Error("IsWSL() = false for wsl mode")
	}
	if (&ForeignConfig{Mode: ModeLocal}).IsWSL() {
		t.Error("IsWSL() = true for local mode")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	resetViper(t)
	SetDefaults()

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail without required paths")
	}

	var cfgErr *apperrors.ConfigurationError
	if !apperrors.As(err, &cfgErr) {
		t.Fatalf("Load() error = %T, want *ConfigurationError", err)
	}
	if cfgErr.Key != "input.watch_dir" {
		t.Errorf("Key = %q, want %q", cfgErr.Key, "input.watch_dir")
	}
	if apperrors.ExitCode(err) != apperrors.ExitConfiguration {
		t.Errorf("ExitCode() = %d, want %d", apperrors.ExitCode(err), apperrors.ExitConfiguration)
	}

	var verrs ValidationErrors
	if !apperrors.As(err, &verrs) {
		t.Fatal("Load() error should wrap ValidationErrors")
	}
	if len(verrs) < 5 {
		t.Errorf("got %d validation errors, want every missing path reported", len(verrs))
	}
}

func TestLoad_LegacyEnv(t *testing.T) {
	resetViper(t)
	SetDefaults()
	BindEnv()

	t.Setenv("PIPE_INPUT_FOLDER", `C:\VR\Screenshots`)
	t.Setenv("PIPE_NEW_INPUT_NAME", "input.png")
	t.Setenv("PIPE_WSL_ENV", "trellis")
	t.Setenv("PIPE_WSL_SCRIPT", "example.py")
	t.Setenv("PIPE_OUTPUT_FOLDER_WSL", "/mnt/c/models/TRELLIS/outputs")
	t.Setenv("PIPE_TRELLIS_ASSETS_FOLDER", `C:\models\TRELLIS\assets`)
	t.Setenv("PIPE_UNITY_ASSETS_FOLDER", `C:\Unity\Assets`)
	t.Setenv("PIPE_CONDA_PROFILE", "~/miniconda3/etc/profile.d/conda.sh")
	t.Setenv("PIPE_POLL_INTERVAL_SEC", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Input.WatchDir != `C:\VR\Screenshots` {
		t.Errorf("Input.WatchDir = %q", cfg.Input.WatchDir)
	}
	if cfg.Reconstruction.CondaEnv != "trellis" {
		t.Errorf("Reconstruction.CondaEnv = %q, want %q", cfg.Reconstruction.CondaEnv, "trellis")
	}
	if cfg.Reconstruction.Script != "example.py" {
		t.Errorf("Reconstruction.Script = %q, want %q", cfg.Reconstruction.Script, "example.py")
	}
	if cfg.Assets.ReconstructionDir != `C:\Unity\Assets` || cfg.Assets.RenderDir != `C:\Unity\Assets` {
		t.Errorf("Assets = %+v, want both set from PIPE_UNITY_ASSETS_FOLDER", cfg.Assets)
	}
	if cfg.Poll.Interval != 2*time.Second {
		t.Errorf("Poll.Interval = %v, want 2s", cfg.Poll.Interval)
	}
	if cfg.Transcode.OutputName != "output.ply" {
		t.Errorf("Transcode.OutputName = %q, want default", cfg.Transcode.OutputName)
	}
}

func TestLoad_PrefixedEnvWins(t *testing.T) {
	resetViper(t)
	SetDefaults()
	BindEnv()

	t.Setenv("PIPE_INPUT_FOLDER", "/legacy")
	t.Setenv("SPLATPIPE_INPUT_WATCH_DIR", "/prefixed")

	if got := viper.GetString("input.watch_dir"); got != "/prefixed" {
		t.Errorf("input.watch_dir = %q, want %q", got, "/prefixed")
	}
}

func TestLoad_DecodesDurationsAndCommand(t *testing.T) {
	resetViper(t)
	SetDefaults()
	for key, value := range map[string]any{
		"input.watch_dir":           "/in",
		"input.target_name":         "input.png",
		"reconstruction.input_dir":  "/trellis/assets",
		"reconstruction.command":    "python run.py --image {input}",
		"foreign.mode":              ModeLocal,
		"foreign.output_dir":        "/trellis/out",
		"assets.reconstruction_dir": "/unity/splats",
		"assets.render_dir":         "/unity",
		"poll.interval":             "250ms",
		"poll.timeout":              "10m",
	} {
		viper.Set(key, value)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Poll.Interval != 250*time.Millisecond {
		t.Errorf("Poll.Interval = %v, want 250ms", cfg.Poll.Interval)
	}
	if cfg.Poll.Timeout != 10*time.Minute {
		t.Errorf("Poll.Timeout = %v, want 10m", cfg.Poll.Timeout)
	}
	want := []string{"python", "run.py", "--image", "{input}"}
	if len(cfg.Reconstruction.Command) != len(want) {
		t.Fatalf("Command = %q, want %q", cfg.Reconstruction.Command, want)
	}
	for i := range want {
		if cfg.Reconstruction.Command[i] != want[i] {
			t.Errorf("Command[%d] = %q, want %q", i, cfg.Reconstruction.Command[i], want[i])
		}
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
		if got, want := ConfigDir(), filepath.Join("/tmp/xdg", "splatpipe"); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})

	t.Run("home fallback", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", "/home/tester")
		if got, want := ConfigDir(), filepath.Join("/home/tester", ".config", "splatpipe"); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got, want := ConfigFile(), filepath.Join("/tmp/xdg", "splatpipe", "config.yaml"); got != want {
		t.Errorf("ConfigFile() = %q, want %q", got, want)
	}
}

func TestGet_SkipsValidation(t *testing.T) {
	resetViper(t)
	SetDefaults()

	cfg, err := Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if cfg.Signal.Name != "reload.trigger" {
		t.Errorf("Signal.Name = %q, want default", cfg.Signal.Name)
	}
	if errs := cfg.Validate(); len(errs) == 0 {
		t.Error("Get() config should still be missing required paths")
	}
}
