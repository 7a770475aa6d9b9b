package internal

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/997R8V10/aviation-calc-util/internal/build"
	"github.com/997R8V10/aviation-calc-util/internal/env"
	"github.com/997R8V10/aviation-calc-util/x/cmake"
)

var (
	workspaceDir string
	keepWorkdirs bool
	buildOutput  string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the root package and its dependencies",
	Long: `Build validates the recipe graph, resolves options and builds every
package in dependency order. Each package is collected into its own
install layout below the workspace; unchanged packages are served from
the build cache.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&workspaceDir, "workspace", "", "Workspace directory (default: $"+env.HomeEnv+" or the user cache dir)")
	buildCmd.Flags().BoolVar(&keepWorkdirs, "keep", false, "Keep per-attempt working directories")
	buildCmd.Flags().StringVar(&buildOutput, "output", "", "Copy the root package layout to a directory or .zip file")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	set, err := loadSet()
	if err != nil {
		return err
	}
	p, err := profile()
	if err != nil {
		return err
	}
	bc, err := buildConfig()
	if err != nil {
		return err
	}
	choices, overrides, err := parseAssignments()
	if err != nil {
		return err
	}
	ws, err := env.Open(workspaceDir)
	if err != nil {
		return fmt.Errorf("failed to open workspace: %w", err)
	}

	// Resolve output path to absolute before build.
	output := buildOutput
	if output != "" {
		if output, err = filepath.Abs(output); err != nil {
			return fmt.Errorf("failed to resolve output path: %w", err)
		}
	}

	// CMake progress goes to stderr only in verbose mode; its diagnostics always do.
	var progress io.Writer = io.Discard
	if verbose {
		progress = cmd.ErrOrStderr()
	}
	b := &build.Builder{
		Workspace:   ws,
		Profile:     p,
		BuildConfig: bc,
		Runner:      cmake.ExecRunner{Stdout: progress, Stderr: cmd.ErrOrStderr()},
		Logger:      newLogger(cmd.ErrOrStderr()),
		Keep:        keepWorkdirs,
	}
	results, err := b.Build(cmd.Context(), set, rootPkg, choices, overrides)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, r := range results {
		state := "built"
		if r.Cached {
			state = "cached"
		}
		fmt.Fprintf(out, "%s\t%s\t%s\n", r.Package, state, r.Dir)
	}

	if output != "" && len(results) > 0 {
		main := results[len(results)-1]
		if err := outputResult(main.Dir, output); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}
