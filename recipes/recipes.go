// Package recipes ships the recipes of aviationcalc and its dependencies.
package recipes

import (
	"embed"
	"io/fs"

	"github.com/997R8V10/aviation-calc-util/recipe"
)

const (
	// Root is the package the shipped set is built for.
	Root = "aviationcalc"
	// Consumer links against Root to check its layout is usable.
	Consumer = "aviationcalc-test"
)

//go:embed aviationcalc aviationcalc-test eccodes strawberryperl
var files embed.FS

// FS returns the recipe directories.
func FS() fs.FS {
	return files
}

// Load parses the shipped recipe set.
func Load() (*recipe.Set, error) {
	return recipe.LoadSet(files)
}
