// Package collect assembles the install layout of a package from its build
// trees.
//
// Rules are folded in order into a destination plan, so a later rule wins
// a destination an earlier one also claimed. The plan is then copied into
// a staging directory that replaces the destination in one rename.
package collect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/997R8V10/aviation-calc-util/recipe"
)

var (
	ErrNoMatch     = errors.New("required artifact rule matched no file")
	ErrUnknownRoot = errors.New("unknown artifact root")
)

// Request describes one collection.
type Request struct {
	// Roots maps the root names rules refer to onto directories.
	Roots   map[string]string
	Rules   []recipe.ArtifactRule
	Options recipe.OptionSet
	Profile recipe.Profile
	// Dest is replaced by the collected layout.
	Dest string
}

// Collector copies artifacts.
type Collector struct {
	Logger hclog.Logger
	// Concurrency bounds parallel copies. Zero means GOMAXPROCS.
	Concurrency int
}

func (c *Collector) logger() hclog.Logger {
	if c.Logger == nil {
		return hclog.NewNullLogger()
	}
	return c.Logger
}

// Plan folds req.Rules into a map from slash destination path to source
// file.
func (c *Collector) Plan(req Request) (map[string]string, error) {
	plan := make(map[string]string)
	for i, rule := range req.Rules {
		if !req.Profile.Applies(rule.Platforms) || !rule.When.Holds(req.Options) {
			continue
		}
		root, ok := req.Roots[rule.From]
		if !ok {
			return nil, fmt.Errorf("rule #%d %q: %w %q", i+1, rule.Pattern, ErrUnknownRoot, rule.From)
		}
		if rule.Subdir != "" {
			root = filepath.Join(root, filepath.FromSlash(rule.Subdir))
		}
		matches, err := c.match(root, rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule #%d %q: %w", i+1, rule.Pattern, err)
		}
		if len(matches) == 0 && rule.Required {
			return nil, fmt.Errorf("rule #%d %q in %s: %w", i+1, rule.Pattern, rule.From, ErrNoMatch)
		}
		for _, m := range matches {
			rel := m.rel
			if rule.StripPath {
				rel = path.Base(rel)
			}
			plan[path.Join(rule.To, rel)] = m.src
		}
	}
	return plan, nil
}

type match struct {
	rel string // slash path below the rule root
	src string
}

// match walks root in lexical order and returns the regular files the
// pattern selects. Symlinks are followed.
func (c *Collector) match(root, pattern string) ([]match, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	byBase := !strings.Contains(pattern, "/")

	var out []match
	visited := make(map[string]bool)
	var walk func(dir, rel string) error
	walk = func(dir, rel string) error {
		resolved, err := filepath.EvalSymlinks(dir)
		if err != nil {
			return err
		}
		if visited[resolved] {
			return nil
		}
		visited[resolved] = true

		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			p := filepath.Join(dir, e.Name())
			r := path.Join(rel, e.Name())
			fi, err := os.Stat(p)
			if err != nil {
				if e.Type()&fs.ModeSymlink != 0 && errors.Is(err, fs.ErrNotExist) {
					c.logger().Warn("skipping dangling symlink", "path", p)
					continue
				}
				return err
			}
			if fi.IsDir() {
				if err := walk(p, r); err != nil {
					return err
				}
				continue
			}
			if !fi.Mode().IsRegular() {
				continue
			}
			name := r
			if byBase {
				name = e.Name()
			}
			if ok, _ := doublestar.Match(pattern, name); ok {
				out = append(out, match{rel: r, src: p})
			}
		}
		return nil
	}
	if err := walk(root, ""); err != nil {
		return nil, err
	}
	return out, nil
}

// Collect plans req, copies the result into a staging directory next to
// req.Dest and swaps it into place.
func (c *Collector) Collect(ctx context.Context, req Request) (*Manifest, error) {
	plan, err := c.Plan(req)
	if err != nil {
		return nil, err
	}

	parent := filepath.Dir(req.Dest)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, err
	}
	stage, err := os.MkdirTemp(parent, "."+filepath.Base(req.Dest)+".stage-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(stage)

	limit := c.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, dst := range slices.Sorted(maps.Keys(plan)) {
		src := plan[dst]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return copyFile(filepath.Join(stage, filepath.FromSlash(dst)), src)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	files := slices.Sorted(maps.Keys(plan))
	if req.Profile.VersionedSharedObjects {
		extra, err := normalizeSharedObjects(stage, files)
		if err != nil {
			return nil, err
		}
		for _, f := range extra {
			if !slices.Contains(files, f) {
				files = append(files, f)
			}
		}
		slices.Sort(files)
	}

	m, err := newManifest(stage, files)
	if err != nil {
		return nil, err
	}
	// MkdirTemp creates the stage owner-only.
	if err := os.Chmod(stage, 0o755); err != nil {
		return nil, err
	}
	if err := swap(stage, req.Dest); err != nil {
		return nil, err
	}
	c.logger().Debug("collected", "dest", req.Dest, "files", len(m.Files), "digest", m.Digest)
	return m, nil
}

// normMode maps any executable mode to 0755 and everything else to 0644.
func normMode(m fs.FileMode) fs.FileMode {
	if m&0o111 != 0 {
		return 0o755
	}
	return 0o644
}

func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, normMode(fi.Mode()))
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// The umask may have narrowed the mode OpenFile used.
	return os.Chmod(dst, normMode(fi.Mode()))
}

// swap replaces dest with stage. The old tree is moved aside first so
// dest is never a mix of both.
func swap(stage, dest string) error {
	old := ""
	if _, err := os.Lstat(dest); err == nil {
		old = dest + ".old"
		if err := os.RemoveAll(old); err != nil {
			return err
		}
		if err := os.Rename(dest, old); err != nil {
			return err
		}
	}
	if err := os.Rename(stage, dest); err != nil {
		if old != "" {
			os.Rename(old, dest)
		}
		return err
	}
	if old != "" {
		return os.RemoveAll(old)
	}
	return nil
}
