// Package env locates the avpkg workspace.
package env

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the workspace location.
const HomeEnv = "AVPKG_HOME"

// WorkDir returns the workspace root: $AVPKG_HOME if set, otherwise
// <user cache dir>/.avpkg.
func WorkDir() (string, error) {
	if home := os.Getenv(HomeEnv); home != "" {
		return filepath.Abs(home)
	}
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userCacheDir, ".avpkg"), nil
}

// Workspace is the on-disk layout below a workspace root.
type Workspace struct {
	Root string
}

// Open returns the workspace at root, or at WorkDir when root is empty.
func Open(root string) (Workspace, error) {
	if root == "" {
		dir, err := WorkDir()
		if err != nil {
			return Workspace{}, err
		}
		root = dir
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Workspace{}, err
	}
	return Workspace{Root: abs}, nil
}

// Packages holds collected package layouts.
func (w Workspace) Packages() (string, error) { return w.dir("pkgs") }

// Sources holds pristine extracted sources.
func (w Workspace) Sources() (string, error) { return w.dir("src") }

// Downloads holds downloaded archives.
func (w Workspace) Downloads() (string, error) { return w.dir("downloads") }

// Builds holds per-attempt working directories.
func (w Workspace) Builds() (string, error) { return w.dir("builds") }

func (w Workspace) dir(name string) (string, error) {
	dir := filepath.Join(w.Root, name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}
