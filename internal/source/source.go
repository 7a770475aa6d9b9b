// Package source prepares the sources of a package for one build attempt.
//
// A pristine tree is materialized once per name@version in the workspace
// and never modified afterwards. Every attempt works on its own copy, so
// patching and building never touch the cache.
package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-hclog"

	"github.com/997R8V10/aviation-calc-util/recipe"
)

const (
	// completeMarker marks a fully materialized pristine tree.
	completeMarker = ".avpkg-complete"
	// pinSuffix names the checksum recorded next to an unpinned archive.
	pinSuffix = ".sha256"
)

// ErrNoSource reports a package without any source to build from.
var ErrNoSource = errors.New("package has no source")

// Fetcher materializes pristine sources.
type Fetcher struct {
	// Sources is the pristine tree cache.
	Sources string
	// Downloads caches fetched archives.
	Downloads string

	Client *http.Client
	Git    Git
	Logger hclog.Logger
}

func (f *Fetcher) logger() hclog.Logger {
	if f.Logger == nil {
		return hclog.NewNullLogger()
	}
	return f.Logger
}

// Pristine returns the directory of d's pristine tree, fetching it on
// first use.
func (f *Fetcher) Pristine(ctx context.Context, d *recipe.Descriptor) (string, error) {
	elem, err := d.Module().Dir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(f.Sources, elem)
	if _, err := os.Stat(filepath.Join(dir, completeMarker)); err == nil {
		f.logger().Debug("pristine source cached", "package", d.Name, "dir", dir)
		return dir, nil
	}

	if err := os.MkdirAll(f.Sources, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.MkdirTemp(f.Sources, "."+elem+".tmp-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmp)

	if err := f.fetch(ctx, d, tmp); err != nil {
		return "", fmt.Errorf("fetch %s: %w", d.Module(), err)
	}
	if err := os.WriteFile(filepath.Join(tmp, completeMarker), nil, 0o644); err != nil {
		return "", err
	}
	if err := os.RemoveAll(dir); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, dir); err != nil {
		return "", err
	}
	return dir, nil
}

func (f *Fetcher) fetch(ctx context.Context, d *recipe.Descriptor, dir string) error {
	src := d.Source
	switch {
	case src == nil:
		return ErrNoSource
	case src.URL != "":
		name, err := archiveName(src.URL)
		if err != nil {
			return err
		}
		archive := filepath.Join(f.Downloads, name)
		client := f.Client
		if client == nil {
			client = http.DefaultClient
		}
		// An unpinned source is held to the checksum recorded on its
		// first download.
		want, pin := src.SHA256, archive+pinSuffix
		if want == "" {
			if data, err := os.ReadFile(pin); err == nil {
				want = strings.TrimSpace(string(data))
			}
		}
		f.logger().Info("downloading", "package", d.Name, "url", src.URL)
		got, err := download(ctx, client, src.URL, want, archive)
		if err != nil {
			return err
		}
		if want == "" {
			f.logger().Warn("source has no sha256, recording first download", "package", d.Name, "sha256", got)
			if err := os.WriteFile(pin, []byte(got+"\n"), 0o644); err != nil {
				return err
			}
		}
		return extract(archive, dir)
	case src.Git != "":
		f.logger().Info("cloning", "package", d.Name, "git", src.Git, "ref", src.Ref)
		return f.Git.Sync(ctx, src.Git, src.Ref, dir)
	case src.Local:
		return exportFiles(d, dir)
	}
	return ErrNoSource
}

// archiveName derives the download cache file name from the URL path.
func archiveName(url string) (string, error) {
	rest, _, _ := strings.Cut(url, "?")
	name := path.Base(rest)
	if name == "" || name == "/" || name == "." {
		return "", fmt.Errorf("cannot name archive for %s", url)
	}
	return name, nil
}

// exportFiles copies the files of d's recipe directory selected by
// d.Exports into dir. A matched directory is copied whole.
func exportFiles(d *recipe.Descriptor, dir string) error {
	if d.Files == nil {
		return fmt.Errorf("%s: local source without recipe files", d.Name)
	}
	for _, pattern := range d.Exports {
		matches, err := doublestar.Glob(d.Files, pattern)
		if err != nil {
			return fmt.Errorf("export %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("export %q matched no file", pattern)
		}
		for _, m := range matches {
			err := fs.WalkDir(d.Files, m, func(p string, e fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				target := filepath.Join(dir, filepath.FromSlash(p))
				if e.IsDir() {
					return os.MkdirAll(target, 0o755)
				}
				return copyFromFS(d.Files, p, target)
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFromFS(fsys fs.FS, name, target string) error {
	in, err := fsys.Open(name)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return writeMember(target, in, 0o644)
}

// Checkout copies d's pristine tree into dst and returns the vendored
// root inside it.
func (f *Fetcher) Checkout(ctx context.Context, d *recipe.Descriptor, dst string) (string, error) {
	pristine, err := f.Pristine(ctx, d)
	if err != nil {
		return "", err
	}
	if err := CopyTree(pristine, dst); err != nil {
		return "", err
	}
	root := dst
	if d.Source != nil && d.Source.Subdir != "" {
		root = filepath.Join(dst, filepath.FromSlash(d.Source.Subdir))
	}
	if fi, err := os.Stat(root); err != nil || !fi.IsDir() {
		return "", fmt.Errorf("%s: source root %s not found", d.Module(), root)
	}
	return root, nil
}

// CopyTree copies the regular files, directories and symlinks of src into
// dst, skipping VCS metadata and the completion marker.
func CopyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		if rel == completeMarker || (e.IsDir() && e.Name() == ".git") {
			if e.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)
		switch {
		case e.IsDir():
			return os.MkdirAll(target, 0o755)
		case e.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(p)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case e.Type().IsRegular():
			fi, err := e.Info()
			if err != nil {
				return err
			}
			in, err := os.Open(p)
			if err != nil {
				return err
			}
			defer in.Close()
			return writeMember(target, in, fi.Mode())
		}
		return nil
	})
}
