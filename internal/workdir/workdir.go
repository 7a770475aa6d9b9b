// Package workdir creates the isolated working directory of one build
// attempt.
//
// Attempts live in <base>/<package>/<uuid>. A lock file next to them
// keeps two builds of the same package from running at once.
package workdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/997R8V10/aviation-calc-util/mod/module"
)

// ErrBusy reports a package that another process is already building.
var ErrBusy = errors.New("package is being built by another process")

const lockName = ".lock"

// Dir is one attempt directory.
type Dir struct {
	ID   string
	Root string

	// Src receives the source copy, Build the toolchain output and
	// Generators the generated toolchain files.
	Src        string
	Build      string
	Generators string

	// Keep leaves the attempt on disk after Close.
	Keep bool

	lock *os.File
}

// New locks pkg under base and creates a fresh attempt directory for it.
func New(base string, pkg module.Version) (*Dir, error) {
	elem, err := pkg.Dir()
	if err != nil {
		return nil, err
	}
	pkgDir := filepath.Join(base, elem)
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		return nil, err
	}

	lock, err := os.OpenFile(filepath.Join(pkgDir, lockName), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	if err := lockFile(lock); err != nil {
		lock.Close()
		if errors.Is(err, ErrBusy) {
			return nil, fmt.Errorf("%s: %w", pkg, ErrBusy)
		}
		return nil, err
	}

	id := uuid.NewString()
	root := filepath.Join(pkgDir, id)
	d := &Dir{
		ID:         id,
		Root:       root,
		Src:        filepath.Join(root, "src"),
		Build:      filepath.Join(root, "build"),
		Generators: filepath.Join(root, "generators"),
		lock:       lock,
	}
	for _, dir := range []string{d.Src, d.Build, d.Generators} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			d.Close()
			return nil, err
		}
	}
	return d, nil
}

// Close removes the attempt unless Keep is set and releases the lock.
func (d *Dir) Close() error {
	if d.lock == nil {
		return nil
	}
	var err error
	if !d.Keep {
		err = os.RemoveAll(d.Root)
	}
	err = errors.Join(err, unlockFile(d.lock), d.lock.Close())
	d.lock = nil
	return err
}
