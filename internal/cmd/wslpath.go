package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/splatpipe/splatpipe/internal/bridge"
	"github.com/splatpipe/splatpipe/internal/logging"
	"github.com/splatpipe/splatpipe/internal/runner"
)

var wslpathCmd = &cobra.Command{
	Use:   "wslpath <path>...",
	Short: "Translate paths between Windows and WSL",
	Long: `Without flags, prints the WSL mount path of each Windows path
(C:\data -> /mnt/c/data), quoted when it contains whitespace.

With --to-local, asks WSL (wslpath -w) for the Windows path of each WSL path.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWSLPath,
}

func init() {
	rootCmd.AddCommand(wslpathCmd)
	wslpathCmd.Flags().Bool("to-local", false, "translate WSL paths to Windows paths")
	wslpathCmd.Flags().String("distro", "", "WSL distribution for --to-local (default distribution if empty)")
}

func runWSLPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	toLocal, _ := cmd.Flags().GetBool("to-local")
	if !toLocal {
		for _, p := range args {
			fmt.Fprintln(out, bridge.ToForeignPath(p))
		}
		return nil
	}

	distro, _ := cmd.Flags().GetString("distro")
	env := runner.Environment{WSL: true, Distro: distro}
	b := bridge.New(runner.New(newBuilder(), env, logging.NopLogger()), nil)
	for _, p := range args {
		local, err := b.ToLocalPath(cmd.Context(), p)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, local)
	}
	return nil
}
