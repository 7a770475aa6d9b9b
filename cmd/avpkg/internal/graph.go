package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/997R8V10/aviation-calc-util/internal/build"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the build order of the root package",
	Long: `Graph validates the recipe graph below the root package and prints the
packages in build order, dependencies first, followed by the tools the
build requires on the target profile.`,
	Args: cobra.NoArgs,
	RunE: runGraph,
}

func init() {
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	set, err := loadSet()
	if err != nil {
		return err
	}
	p, err := profile()
	if err != nil {
		return err
	}
	plan, err := build.Graph(set, rootPkg, p)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, d := range plan.Order {
		fmt.Fprintln(out, d.Module())
	}
	for _, t := range plan.Tools {
		fmt.Fprintf(out, "tool %s (%s)\n", t.Module(), t.Binary)
	}
	return nil
}
