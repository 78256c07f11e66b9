package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/splatpipe/splatpipe/internal/ply"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.ply>",
	Short: "Show the header of a point cloud and whether it can be converted",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().IntP("vertices", "n", 0, "print the values of the first N vertices")
}

func runInspect(cmd *cobra.Command, args []string) error {
	h, err := ply.ReadHeaderFile(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File:   %s\n", args[0])
	fmt.Fprintf(out, "Format: %s %s\n", h.Format, h.Version)
	for _, c := range h.Comments {
		fmt.Fprintf(out, "  %s\n", c)
	}
	for _, e := range h.Elements {
		printElement(out, e)
	}

	fmt.Fprintln(out)
	plan, err := ply.DefaultMigration().Plan(h)
	if err != nil {
		fmt.Fprintf(out, "Convertible: no (%v)\n", err)
	} else {
		fmt.Fprintf(out, "Convertible: yes (%d -> %d bytes per vertex)\n", plan.InputStride(), plan.OutputStride())
	}

	n, _ := cmd.Flags().GetInt("vertices")
	if n <= 0 {
		return nil
	}
	cloud, err := ply.ReadCloudFile(args[0])
	if err != nil {
		return err
	}
	for i := 0; i < min(n, cloud.Len()); i++ {
		fmt.Fprintf(out, "vertex %d:", i)
		for _, f := range cloud.Schema.Fields {
			v, _ := cloud.Value(i, f.Name)
			fmt.Fprintf(out, " %s=%g", f.Name, v)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func printElement(out io.Writer, e ply.Element) {
	stride := "variable"
	if s, err := e.Schema(); err == nil {
		stride = fmt.Sprintf("%d bytes", s.Stride())
	}
	fmt.Fprintf(out, "element %s: %d records, %d properties, %s\n", e.Name, e.Count, len(e.Properties), stride)
	for _, p := range e.Properties {
		if p.IsList {
			fmt.Fprintf(out, "  %-16s list %s %s\n", p.Name, p.CountType, p.Type)
			continue
		}
		fmt.Fprintf(out, "  %-16s %s\n", p.Name, p.Type)
	}
}
