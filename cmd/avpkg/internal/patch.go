package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/997R8V10/aviation-calc-util/internal/build"
	"github.com/997R8V10/aviation-calc-util/internal/patch"
)

var (
	patchPackage string
	patchDir     string
)

var patchCmd = &cobra.Command{
	Use:   "patch",
	Short: "Apply a package's replacements and patches to a source tree",
	Long: `Patch applies the text replacements and patch sets a recipe declares to
an already extracted source tree. Applying twice is a no-op: patches
found already applied are reported and left alone.`,
	Args: cobra.NoArgs,
	RunE: runPatch,
}

func init() {
	patchCmd.Flags().StringVar(&patchPackage, "package", "", "Package whose recipe declares the patches (default: the root package)")
	patchCmd.Flags().StringVar(&patchDir, "dir", "", "Source tree to patch")
	patchCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(patchCmd)
}

func runPatch(cmd *cobra.Command, args []string) error {
	set, err := loadSet()
	if err != nil {
		return err
	}
	p, err := profile()
	if err != nil {
		return err
	}
	name := patchPackage
	if name == "" {
		name = rootPkg
	}
	d, ok := set.Lookup(name)
	if !ok {
		return fmt.Errorf("no recipe named %s", name)
	}

	out := cmd.OutOrStdout()
	for _, r := range d.Replacements {
		changed, err := patch.ReplaceInFile(patchDir, r)
		if err != nil {
			return &build.Error{Phase: build.PhasePatch, Package: d.Name, Err: err}
		}
		state := "unchanged"
		if changed {
			state = "replaced"
		}
		fmt.Fprintf(out, "%s\t%s\n", state, r.File)
	}

	results, err := patch.New(p, newLogger(cmd.ErrOrStderr())).Apply(patchDir, d.Patches)
	for _, r := range results {
		fmt.Fprintf(out, "%s\t%s\n", r.Status, r.Description)
	}
	if err != nil {
		return &build.Error{Phase: build.PhasePatch, Package: d.Name, Err: err}
	}
	return nil
}
