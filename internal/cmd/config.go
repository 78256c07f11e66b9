package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/splatpipe/splatpipe/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or create splatpipe configuration",
	Long: `View or create splatpipe configuration.

Without arguments, displays the current configuration.
Settings come from the config file, SPLATPIPE_* environment variables and
the PIPE_* variables of earlier deployments, in increasing precedence
for the prefixed names.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a config file at ~/.config/splatpipe/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().Bool("force", false, "overwrite an existing config file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Get()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# Config file: %s\n", used)
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults and environment)")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	fmt.Fprint(out, string(data))

	if errs := cfg.Validate(); len(errs) > 0 {
		fmt.Fprintf(out, "\n# %s\n", strings.ReplaceAll(strings.TrimSpace(config.ValidationErrors(errs).Error()), "\n", "\n# "))
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()
	force, _ := cmd.Flags().GetBool("force")

	if _, err := os.Stat(configFile); err == nil && !force {
		return fmt.Errorf("config file already exists at %s\nUse --force to overwrite it", configFile)
	}

	if err := os.MkdirAll(config.ConfigDir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	content := configHeader + string(data)
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	fmt.Fprintln(cmd.OutOrStdout(), "Fill in the empty paths before running the pipeline.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintln(cmd.OutOrStdout(), used)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), config.ConfigFile())
	return nil
}

const configHeader = `# splatpipe configuration
#
# Required: input.watch_dir, input.target_name, reconstruction.input_dir,
# foreign.output_dir, assets.reconstruction_dir, assets.render_dir and,
# when reconstruction.command uses {script}, reconstruction.script.
#
# reconstruction.command is an argv list; {input}, {output_dir} and {script}
# are substituted per argument. reconstruction.activation is a shell snippet
# run first; {workdir}, {conda_profile} and {conda_env} are substituted
# shell-quoted. When empty it is built from those three values.
#
# Durations accept Go syntax (5s, 250ms) or bare seconds.

`
