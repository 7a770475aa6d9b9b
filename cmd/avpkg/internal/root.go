package internal

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/997R8V10/aviation-calc-util/internal/logging"
	"github.com/997R8V10/aviation-calc-util/internal/options"
	"github.com/997R8V10/aviation-calc-util/recipe"
	"github.com/997R8V10/aviation-calc-util/recipes"
)

// Flags shared by every command.
var (
	recipesDir  string
	rootPkg     string
	assignments []string
	targetOS    string
	targetArch  string
	buildType   string
	multiConfig bool
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "avpkg",
	Short: "avpkg builds aviationcalc and its native dependencies",
	Long: `avpkg evaluates package recipes: it resolves and propagates build options,
patches vendored build scripts, drives CMake and assembles a portable install
layout for every package of the recipe set.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&recipesDir, "recipes", "", "Recipe directory (default: the shipped recipes)")
	flags.StringVar(&rootPkg, "root", recipes.Root, "Package to build")
	flags.StringArrayVarP(&assignments, "option", "o", nil, "Option assignment opt=value or pkg:opt=value (repeatable)")
	flags.StringVar(&targetOS, "os", "", "Target operating system (default: host)")
	flags.StringVar(&targetArch, "arch", "", "Target architecture (default: host)")
	flags.StringVar(&buildType, "build-type", string(recipe.Release), "Build type: Debug or Release")
	flags.BoolVar(&multiConfig, "multi-config", false, "The CMake generator is multi-configuration")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		log.SetFlags(0)
		log.SetPrefix("avpkg: ")
		log.Fatal(err)
	}
}

func loadSet() (*recipe.Set, error) {
	if recipesDir == "" {
		return recipes.Load()
	}
	set, err := recipe.LoadSet(os.DirFS(recipesDir))
	if err != nil {
		return nil, fmt.Errorf("load recipes from %s: %w", recipesDir, err)
	}
	return set, nil
}

func profile() (recipe.Profile, error) {
	host := recipe.HostProfile()
	goos, arch := host.OS, host.Arch
	if targetOS != "" {
		goos = recipe.OS(targetOS)
	}
	if targetArch != "" {
		arch = targetArch
	}
	switch goos {
	case recipe.Linux, recipe.Darwin, recipe.Windows:
	default:
		return recipe.Profile{}, fmt.Errorf("unsupported os %q", goos)
	}
	return recipe.ProfileFor(goos, arch), nil
}

func buildConfig() (recipe.BuildConfig, error) {
	bt, err := recipe.ParseBuildType(buildType)
	if err != nil {
		return recipe.BuildConfig{}, err
	}
	return recipe.BuildConfig{BuildType: bt, MultiConfig: multiConfig}, nil
}

func parseAssignments() (map[string]string, []recipe.Override, error) {
	choices, overrides, err := options.ParseAssignments(assignments)
	if err != nil {
		return nil, nil, fmt.Errorf("option: %w", err)
	}
	return choices, overrides, nil
}

func newLogger(w io.Writer) hclog.Logger {
	return logging.New("avpkg", logging.Level(verbose), w)
}
