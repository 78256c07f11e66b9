package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/splatpipe/splatpipe/internal/errors"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the complete splatpipe configuration.
// It is built once at startup and passed explicitly to every component.
type Config struct {
	Input          InputConfig          `mapstructure:"input" yaml:"input"`
	Reconstruction ReconstructionConfig `mapstructure:"reconstruction" yaml:"reconstruction"`
	Foreign        ForeignConfig        `mapstructure:"foreign" yaml:"foreign"`
	Assets         AssetsConfig         `mapstructure:"assets" yaml:"assets"`
	Transcode      TranscodeConfig      `mapstructure:"transcode" yaml:"transcode"`
	Signal         SignalConfig         `mapstructure:"signal" yaml:"signal"`
	Poll           PollConfig           `mapstructure:"poll" yaml:"poll"`
	Logging        LoggingConfig        `mapstructure:"logging" yaml:"logging"`
	Metrics        MetricsConfig        `mapstructure:"metrics" yaml:"metrics"`
}

// InputConfig controls where captured images arrive and how they are handed on
type InputConfig struct {
	// WatchDir is the local directory polled for new images
	WatchDir string `mapstructure:"watch_dir" yaml:"watch_dir"`
	// TargetName is the fixed file name the image is given in the reconstruction input directory
	TargetName string `mapstructure:"target_name" yaml:"target_name"`
	// MaxDimension downsizes larger images to fit this bound (0 = copy unchanged)
	MaxDimension int `mapstructure:"max_dimension" yaml:"max_dimension"`
}

// ReconstructionConfig describes how the external reconstruction tool is invoked
type ReconstructionConfig struct {
	// InputDir is the local directory the reconstruction tool reads its input image from
	InputDir string `mapstructure:"input_dir" yaml:"input_dir"`
	// Workdir is the directory the tool runs in, in the foreign namespace
	Workdir string `mapstructure:"workdir" yaml:"workdir"`
	// CondaProfile is the shell profile sourced before activating the environment
	CondaProfile string `mapstructure:"conda_profile" yaml:"conda_profile"`
	// CondaEnv is the conda environment to activate
	CondaEnv string `mapstructure:"conda_env" yaml:"conda_env"`
	// Script is substituted for the {script} placeholder in Command
	Script string `mapstructure:"script" yaml:"script"`
	// Activation overrides the activation snippet built from Workdir, CondaProfile and CondaEnv.
	// Placeholders: {workdir}, {conda_profile}, {conda_env}
	Activation string `mapstructure:"activation" yaml:"activation"`
	// Command is the argv of the reconstruction invocation.
	// Placeholders: {input}, {output_dir}, {script}
	Command []string `mapstructure:"command" yaml:"command"`
}

// ForeignConfig describes the isolated execution environment
type ForeignConfig struct {
	// Mode is "wsl" to cross into a WSL distribution or "local" to run everything on the host
	Mode string `mapstructure:"mode" yaml:"mode"`
	// Distro selects a WSL distribution (empty = default distribution)
	Distro string `mapstructure:"distro" yaml:"distro"`
	// OutputDir is the directory, in the foreign namespace, where reconstruction output appears
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
}

// AssetsConfig holds the local asset directories
type AssetsConfig struct {
	// ReconstructionDir receives the bridged reconstruction output and the transcoded asset
	ReconstructionDir string `mapstructure:"reconstruction_dir" yaml:"reconstruction_dir"`
	// RenderDir is the rendering engine's asset directory that receives the completion marker
	RenderDir string `mapstructure:"render_dir" yaml:"render_dir"`
}

// TranscodeConfig controls the point cloud schema migration
type TranscodeConfig struct {
	// OutputName is the file name of the transcoded asset inside Assets.ReconstructionDir
	OutputName string `mapstructure:"output_name" yaml:"output_name"`
	// Anchor is the vertex property the new fields are inserted after
	Anchor string `mapstructure:"anchor" yaml:"anchor"`
	// ExpectedStride is the per-vertex byte size the output must have
	// (0 = derive from the Gaussian splat reference layout)
	ExpectedStride int `mapstructure:"expected_stride" yaml:"expected_stride"`
}

// SignalConfig describes the completion marker
type SignalConfig struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Content string `mapstructure:"content" yaml:"content"`
}

// PollConfig controls the directory polls
type PollConfig struct {
	// Interval is the delay between directory checks
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	// Timeout bounds each wait (0 = wait indefinitely)
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// SettleChecks requires a local match to keep the same non-zero size for this many checks
	SettleChecks int `mapstructure:"settle_checks" yaml:"settle_checks"`
	// WatchEvents re-checks local directories early on filesystem events
	WatchEvents bool `mapstructure:"watch_events" yaml:"watch_events"`
}

// LoggingConfig controls structured log output
type LoggingConfig struct {
	// Dir is the directory for splatpipe.log (empty = stderr)
	Dir        string `mapstructure:"dir" yaml:"dir"`
	Level      string `mapstructure:"level" yaml:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// MetricsConfig controls the Prometheus textfile export
type MetricsConfig struct {
	// Textfile is where stage metrics are written after each run (empty = disabled)
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// Foreign execution modes
const (
	ModeWSL   = "wsl"
	ModeLocal = "local"
)

// Default returns a Config with the default values.
// Paths have no defaults and must be configured.
func Default() *Config {
	return &Config{
		Input: InputConfig{
			MaxDimension: 0,
		},
		Reconstruction: ReconstructionConfig{
			Command: []string{"python", "{script}"},
		},
		Foreign: ForeignConfig{
			Mode: ModeWSL,
		},
		Transcode: TranscodeConfig{
			OutputName:     "output.ply",
			Anchor:         "f_dc_2",
			ExpectedStride: 0, // Derived from the reference layout
		},
		Signal: SignalConfig{
			Name:    "reload.trigger",
			Content: "reload",
		},
		Poll: PollConfig{
			Interval:     5 * time.Second,
			Timeout:      0, // Wait indefinitely
			SettleChecks: 0,
			WatchEvents:  false,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Input defaults
	viper.SetDefault("input.watch_dir", defaults.Input.WatchDir)
	viper.SetDefault("input.target_name", defaults.Input.TargetName)
	viper.SetDefault("input.max_dimension", defaults.Input.MaxDimension)

	// Reconstruction defaults
	viper.SetDefault("reconstruction.input_dir", defaults.Reconstruction.InputDir)
	viper.SetDefault("reconstruction.workdir", defaults.Reconstruction.Workdir)
	viper.SetDefault("reconstruction.conda_profile", defaults.Reconstruction.CondaProfile)
	viper.SetDefault("reconstruction.conda_env", defaults.Reconstruction.CondaEnv)
	viper.SetDefault("reconstruction.script", defaults.Reconstruction.Script)
	viper.SetDefault("reconstruction.activation", defaults.Reconstruction.Activation)
	viper.SetDefault("reconstruction.command", defaults.Reconstruction.Command)

	// Foreign environment defaults
	viper.SetDefault("foreign.mode", defaults.Foreign.Mode)
	viper.SetDefault("foreign.distro", defaults.Foreign.Distro)
	viper.SetDefault("foreign.output_dir", defaults.Foreign.OutputDir)

	// Asset defaults
	viper.SetDefault("assets.reconstruction_dir", defaults.Assets.ReconstructionDir)
	viper.SetDefault("assets.render_dir", defaults.Assets.RenderDir)

	// Transcode defaults
	viper.SetDefault("transcode.output_name", defaults.Transcode.OutputName)
	viper.SetDefault("transcode.anchor", defaults.Transcode.Anchor)
	viper.SetDefault("transcode.expected_stride", defaults.Transcode.ExpectedStride)

	// Signal defaults
	viper.SetDefault("signal.name", defaults.Signal.Name)
	viper.SetDefault("signal.content", defaults.Signal.Content)

	// Poll defaults
	viper.SetDefault("poll.interval", defaults.Poll.Interval)
	viper.SetDefault("poll.timeout", defaults.Poll.Timeout)
	viper.SetDefault("poll.settle_checks", defaults.Poll.SettleChecks)
	viper.SetDefault("poll.watch_events", defaults.Poll.WatchEvents)

	// Logging defaults
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Metrics defaults
	viper.SetDefault("metrics.textfile", defaults.Metrics.Textfile)
}

// LegacyEnv maps the PIPE_* environment variables used by earlier deployments
// to configuration keys.
var LegacyEnv = map[string]string{
	"input.watch_dir":              "PIPE_INPUT_FOLDER",
	"input.target_name":            "PIPE_NEW_INPUT_NAME",
	"reconstruction.conda_env":     "PIPE_WSL_ENV",
	"reconstruction.script":        "PIPE_WSL_SCRIPT",
	"reconstruction.conda_profile": "PIPE_CONDA_PROFILE",
	"reconstruction.input_dir":     "PIPE_TRELLIS_ASSETS_FOLDER",
	"foreign.output_dir":           "PIPE_OUTPUT_FOLDER_WSL",
	"assets.reconstruction_dir":    "PIPE_UNITY_ASSETS_FOLDER",
	"assets.render_dir":            "PIPE_UNITY_ASSETS_FOLDER",
	"transcode.output_name":        "PIPE_CONVERTER_OUTPUT_NAME",
	"poll.interval":                "PIPE_POLL_INTERVAL_SEC",
}

// BindEnv binds every configuration key to SPLATPIPE_<KEY> and, where one
// exists, to its legacy PIPE_* name. The prefixed name takes precedence.
func BindEnv() {
	viper.SetEnvPrefix("SPLATPIPE")
	// e.g., SPLATPIPE_POLL_INTERVAL for poll.interval
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	for key, legacy := range LegacyEnv {
		prefixed := "SPLATPIPE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = viper.BindEnv(key, prefixed, legacy)
	}
}

// Get decodes the current viper configuration without validating it.
func Get() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, apperrors.NewConfigurationError("failed to decode configuration", err)
	}
	return &cfg, nil
}

// Load reads the configuration from viper into a Config struct and validates it.
// Every failure is returned as a *errors.ConfigurationError.
func Load() (*Config, error) {
	cfg, err := Get()
	if err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, apperrors.NewConfigurationError("invalid configuration", ValidationErrors(errs)).
			WithKey(errs[0].Field)
	}

	return cfg, nil
}

// decodeHook extends viper's default hooks so that bare numbers decode as
// seconds (PIPE_POLL_INTERVAL_SEC=5) and string commands split into argv.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		secondsHook,
		mapstructure.StringToTimeDurationHookFunc(),
		fieldsHook,
	)
}

func secondsHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	s := strings.TrimSpace(data.(string))
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return data, nil
}

func fieldsHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice || to.Elem().Kind() != reflect.String {
		return data, nil
	}
	return strings.Fields(data.(string)), nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "splatpipe")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".splatpipe"
	}
	return filepath.Join(home, ".config", "splatpipe")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// IsWSL reports whether the foreign environment is a WSL distribution
func (c *ForeignConfig) IsWSL() bool {
	return c.Mode == ModeWSL
}

// TargetPath returns where Relocate writes the input image
func (c *Config) TargetPath() string {
	return filepath.Join(c.Reconstruction.InputDir, c.Input.TargetName)
}

// TranscodedPath returns where Transcode writes the migrated asset
func (c *Config) TranscodedPath() string {
	return filepath.Join(c.Assets.ReconstructionDir, c.Transcode.OutputName)
}

// SignalPath returns the completion marker location
func (c *Config) SignalPath() string {
	return filepath.Join(c.Assets.RenderDir, c.Signal.Name)
}
