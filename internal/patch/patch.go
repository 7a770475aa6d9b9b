// Package patch applies platform-conditioned unified diffs to a vendored
// source tree.
//
// Every set is applied all-or-nothing: new file contents are computed in
// memory and staged in temp files only when every hunk found its place,
// and targets are replaced only once every file is staged. A rename that
// fails midway can still leave earlier files of the set replaced. Applied sets are
// recorded in a ledger at the tree root, and a set whose changes are
// already present is detected, so running the engine twice never applies
// a hunk twice.
package patch

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/sourcegraph/go-diff/diff"

	"github.com/997R8V10/aviation-calc-util/recipe"
)

var (
	ErrHunkFailed       = errors.New("hunk failed")
	ErrPartiallyApplied = errors.New("patch partially applied")
	ErrTargetMismatch   = errors.New("patch target does not match diff header")
	ErrNoMatch          = errors.New("search text not found")
)

const devNull = "/dev/null"

// Status is the outcome of one patch set.
type Status int

const (
	Applied Status = iota + 1
	AlreadyApplied
	Skipped
)

func (s Status) String() string {
	switch s {
	case Applied:
		return "applied"
	case AlreadyApplied:
		return "already-applied"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// Result reports what happened to one patch set.
type Result struct {
	Description string
	Files       []string
	Status      Status
}

// Engine applies patch sets for one platform.
type Engine struct {
	Profile recipe.Profile
	Logger  hclog.Logger
}

// New returns an engine for p.
func New(p recipe.Profile, logger hclog.Logger) *Engine {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Engine{Profile: p, Logger: logger}
}

// Apply applies sets to the tree at root in order. Each set sees the tree
// as left by the sets before it. Apply stops at the first failing set;
// sets before it stay applied and recorded.
func (e *Engine) Apply(root string, sets []recipe.PatchSet) ([]Result, error) {
	logger := e.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	led, err := loadLedger(root)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(sets))
	for i, set := range sets {
		name := setName(i, set)
		if !e.Profile.Applies(set.Platforms) {
			logger.Debug("patch skipped", "patch", name, "os", e.Profile.OS)
			results = append(results, Result{Description: name, Status: Skipped})
			continue
		}
		id := setID(set)
		if files, ok := led.Applied[id]; ok {
			logger.Debug("patch already recorded", "patch", name)
			results = append(results, Result{Description: name, Files: files, Status: AlreadyApplied})
			continue
		}

		res, err := e.applySet(root, set)
		if err != nil {
			return results, fmt.Errorf("patch %s: %w", name, err)
		}
		res.Description = name
		led.Applied[id] = res.Files
		if err := led.save(root); err != nil {
			return results, err
		}
		logger.Info("patch "+res.Status.String(), "patch", name, "files", strings.Join(res.Files, ","))
		results = append(results, res)
	}
	return results, nil
}

func setName(i int, set recipe.PatchSet) string {
	switch {
	case set.Description != "":
		return set.Description
	case set.File != "":
		return set.File
	}
	return fmt.Sprintf("#%d", i+1)
}

// headerTime matches the tab-separated timestamp some diff tools append to
// file headers.
var headerTime = regexp.MustCompile(`(?m)^((?:---|\+\+\+) [^\t\n]*)\t[^\n]*$`)

// Parse parses a unified diff with one or more files.
func Parse(data string) ([]*diff.FileDiff, error) {
	clean := headerTime.ReplaceAllString(data, "$1")
	fds, err := diff.ParseMultiFileDiff([]byte(clean))
	if err != nil {
		return nil, err
	}
	if len(fds) == 0 {
		return nil, errors.New("no file diffs found")
	}
	return fds, nil
}

// fileTarget returns the slash path a file diff applies to.
func fileTarget(fd *diff.FileDiff) string {
	orig, name := fd.OrigName, fd.NewName
	gitStyle := (orig == devNull || strings.HasPrefix(orig, "a/")) &&
		(name == devNull || strings.HasPrefix(name, "b/"))
	if gitStyle {
		orig = strings.TrimPrefix(orig, "a/")
		name = strings.TrimPrefix(name, "b/")
	}
	if name == devNull {
		return orig
	}
	return name
}

type fileState struct {
	text    text
	exists  bool
	mode    os.FileMode
	changed bool
}

func (e *Engine) applySet(root string, set recipe.PatchSet) (Result, error) {
	fds, err := Parse(set.Diff)
	if err != nil {
		return Result{}, err
	}
	if set.Target != "" {
		if len(fds) != 1 || fileTarget(fds[0]) != path.Clean(set.Target) {
			return Result{}, fmt.Errorf("%w: %s", ErrTargetMismatch, set.Target)
		}
	}

	state := make(map[string]*fileState)
	var order []string
	var forward, reverse int
	for _, fd := range fds {
		target := fileTarget(fd)
		st, ok := state[target]
		if !ok {
			st, err = readState(root, target)
			if err != nil {
				return Result{}, err
			}
			state[target] = st
			order = append(order, target)
		}
		f, r, err := applyFile(st, fd, target, set)
		if err != nil {
			return Result{}, err
		}
		forward += f
		reverse += r
	}

	res := Result{Files: order}
	switch {
	case forward > 0 && reverse > 0:
		return Result{}, fmt.Errorf("%w: %d hunks apply, %d are already present", ErrPartiallyApplied, forward, reverse)
	case forward == 0 && reverse > 0:
		res.Status = AlreadyApplied
		return res, nil
	}

	if err := commit(root, order, state); err != nil {
		return Result{}, err
	}
	res.Status = Applied
	return res, nil
}

// applyFile applies the hunks of fd to st in memory. It returns how many
// hunks applied forward and how many were found already applied.
func applyFile(st *fileState, fd *diff.FileDiff, target string, set recipe.PatchSet) (forward, reverse int, err error) {
	switch {
	case fd.OrigName == devNull && !st.exists:
		st.text = created(fd)
		st.exists, st.changed = true, true
		return 1, 0, nil
	case fd.OrigName == devNull:
		if bytes.Equal(st.text.bytes(), created(fd).bytes()) {
			return 0, 1, nil
		}
		return 0, 0, fmt.Errorf("%w: %s: file to create already exists", ErrHunkFailed, target)
	case !st.exists && fd.NewName == devNull:
		return 0, 1, nil
	case !st.exists:
		return 0, 0, fmt.Errorf("%w: %s: %v", ErrHunkFailed, target, os.ErrNotExist)
	}

	lines := st.text.lines
	crlf := st.text.crlf()
	window := set.Window()
	delta, floor := 0, 0
	for i, dh := range fd.Hunks {
		h := parseHunk(dh)
		r := h.reverse()
		matched := false
		// Both directions are tried at one fuzz level before the next, so
		// an applied hunk matches in reverse before it can match forward
		// with fuzzed context.
		for fuzz := 0; fuzz <= set.Fuzz && !matched; fuzz++ {
			if pos, ok := h.locate(lines, h.start+delta, floor, window, fuzz); ok {
				lines = h.apply(lines, pos, crlf)
				floor = pos + h.oldLen() + h.delta()
				delta = pos - h.start + h.delta()
				forward++
				matched = true
			} else if pos, ok := r.locate(lines, r.start, floor, window, fuzz); ok {
				floor = pos + r.oldLen()
				reverse++
				matched = true
			}
		}
		if !matched {
			return 0, 0, fmt.Errorf("%w: %s: hunk #%d at line %d", ErrHunkFailed, target, i+1, dh.OrigStartLine)
		}
	}

	if fd.NewName == devNull && forward > 0 {
		st.exists = false
		st.changed = true
		return forward, reverse, nil
	}
	if forward > 0 {
		st.text.lines = lines
		st.changed = true
	}
	return forward, reverse, nil
}

func created(fd *diff.FileDiff) text {
	var lines []string
	for _, h := range fd.Hunks {
		for _, l := range parseHunk(h).lines {
			if l.kind == lineAdded {
				lines = append(lines, l.text)
			}
		}
	}
	return text{lines: lines, eol: true}
}

func readState(root, target string) (*fileState, error) {
	p := filepath.Join(root, filepath.FromSlash(target))
	fi, err := os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return &fileState{mode: 0o644}, nil
	}
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	return &fileState{text: splitText(data), exists: true, mode: fi.Mode().Perm()}, nil
}

// commit writes the changed files of a set. Every new content is staged
// in a temp file before the first target is replaced.
func commit(root string, order []string, state map[string]*fileState) error {
	type staged struct{ tmp, name string }
	var (
		writes  []staged
		removes []string
	)
	cleanup := func() {
		for _, w := range writes {
			os.Remove(w.tmp)
		}
	}
	for _, target := range order {
		st := state[target]
		if !st.changed {
			continue
		}
		name := filepath.Join(root, filepath.FromSlash(target))
		if !st.exists {
			removes = append(removes, name)
			continue
		}
		tmp, err := stageFile(name, st.text.bytes(), st.mode)
		if err != nil {
			cleanup()
			return err
		}
		writes = append(writes, staged{tmp: tmp, name: name})
	}
	for _, w := range writes {
		if err := os.Rename(w.tmp, w.name); err != nil {
			cleanup()
			return err
		}
	}
	for _, name := range removes {
		if err := os.Remove(name); err != nil {
			return err
		}
	}
	return nil
}

// writeFileAtomic writes data to a temp file next to name and renames it
// into place.
func writeFileAtomic(name string, data []byte, mode os.FileMode) error {
	tmp, err := stageFile(name, data, mode)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, name); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// stageFile writes data with mode to a temp file next to name and returns
// its path.
func stageFile(name string, data []byte, mode os.FileMode) (string, error) {
	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(name)+".*")
	if err != nil {
		return "", err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Chmod(tmp, mode); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return tmp, nil
}
