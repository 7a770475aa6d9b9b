package patch

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/997R8V10/aviation-calc-util/recipe"
)

// ReplaceInFile replaces every occurrence of r.Search in r.File under root
// with r.Replace. It reports false without writing when a non-empty
// r.Replace is already present, and fails with ErrNoMatch when neither text is found.
func ReplaceInFile(root string, r recipe.Replacement) (bool, error) {
	name := filepath.Join(root, filepath.FromSlash(r.File))
	fi, err := os.Stat(name)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return false, err
	}
	search, replace := []byte(r.Search), []byte(r.Replace)
	if len(replace) > 0 && bytes.Contains(data, replace) {
		return false, nil
	}
	if !bytes.Contains(data, search) {
		return false, fmt.Errorf("%w: %q in %s", ErrNoMatch, r.Search, r.File)
	}
	if err := writeFileAtomic(name, bytes.ReplaceAll(data, search, replace), fi.Mode().Perm()); err != nil {
		return false, err
	}
	return true, nil
}
