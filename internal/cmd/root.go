package cmd

import (
	"context"
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/splatpipe/splatpipe/internal/config"
	apperrors "github.com/splatpipe/splatpipe/internal/errors"
	"github.com/splatpipe/splatpipe/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "splatpipe",
	Short: "Turn captured screenshots into Gaussian splat assets",
	Long: `splatpipe watches a folder for captured images, runs TRELLIS
reconstruction on each one inside WSL, converts the resulting point cloud
into the 248-byte Gaussian splat layout and signals the Unity project to
reload it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. ctx is canceled on SIGINT/SIGTERM.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/splatpipe/config.yaml)")
	rootCmd.PersistentFlags().String("env-file", "", "dotenv file to load before reading the environment (default .env if present)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-dir", "", "directory for splatpipe.log (default stderr)")
	bindFlags()
}

// bindFlags connects the global flags to their viper keys.
func bindFlags() {
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("env_file", rootCmd.PersistentFlags().Lookup("env-file"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.dir", rootCmd.PersistentFlags().Lookup("log-dir"))
}

func initConfig() {
	// The environment must be complete before viper binds to it
	loadEnvFile(viper.GetString("env_file"))

	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	config.BindEnv()

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// loadEnvFile loads a dotenv file without overriding variables already set.
// An explicit path must exist; the implicit .env may be absent.
func loadEnvFile(path string) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			envFileErr = err
		}
		return
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		envFileErr = err
	}
}

// envFileErr is reported by commands that need configuration.
var envFileErr error

// loadConfig returns the validated configuration and a logger built from it.
func loadConfig() (*config.Config, *logging.Logger, error) {
	if envFileErr != nil {
		return nil, nil, envFileError(envFileErr)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func envFileError(err error) error {
	return apperrors.NewConfigurationError("failed to load env file", err).WithKey("env_file")
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return nil, apperrors.NewIOError("open", cfg.Logging.Dir, err)
	}
	return logger, nil
}
