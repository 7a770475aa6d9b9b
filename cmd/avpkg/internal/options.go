package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/997R8V10/aviation-calc-util/internal/build"
	"github.com/997R8V10/aviation-calc-util/internal/options"
)

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "Print the resolved options of every package",
	Long: `Options resolves the option sets of the root package and everything it
requires on the target profile and prints one pkg:option=value per line.`,
	Args: cobra.NoArgs,
	RunE: runOptions,
}

func init() {
	rootCmd.AddCommand(optionsCmd)
}

func runOptions(cmd *cobra.Command, args []string) error {
	set, err := loadSet()
	if err != nil {
		return err
	}
	p, err := profile()
	if err != nil {
		return err
	}
	choices, overrides, err := parseAssignments()
	if err != nil {
		return err
	}
	if _, err := build.Graph(set, rootPkg, p); err != nil {
		return err
	}
	b, err := options.Resolve(set, rootPkg, choices, overrides, p)
	if err != nil {
		return &build.Error{Phase: build.PhasePropagate, Package: rootPkg, Err: err}
	}
	fmt.Fprint(cmd.OutOrStdout(), b.String())
	return nil
}
