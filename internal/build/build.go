// Package build drives a recipe set: it validates the dependency graph,
// resolves options and builds every package in dependency order, reusing
// layouts the build cache already holds.
package build

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/997R8V10/aviation-calc-util/internal/collect"
	"github.com/997R8V10/aviation-calc-util/internal/env"
	"github.com/997R8V10/aviation-calc-util/internal/options"
	"github.com/997R8V10/aviation-calc-util/internal/patch"
	"github.com/997R8V10/aviation-calc-util/internal/source"
	"github.com/997R8V10/aviation-calc-util/internal/toolchain"
	"github.com/997R8V10/aviation-calc-util/internal/workdir"
	"github.com/997R8V10/aviation-calc-util/mod/module"
	"github.com/997R8V10/aviation-calc-util/recipe"
	"github.com/997R8V10/aviation-calc-util/x/cmake"
)

// Phase names the step a package failed in.
type Phase string

const (
	PhaseValidate  Phase = "validate"
	PhasePropagate Phase = "propagate"
	PhaseSource    Phase = "source"
	PhasePatch     Phase = "patch"
	PhaseBuild     Phase = "build"
	PhaseCollect   Phase = "collect"
)

// Error attributes a failure to one phase of one package.
type Error struct {
	Phase   Phase
	Package string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Phase, e.Package, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Roots an artifact rule can collect from.
const (
	RootSource     = "source"
	RootCheckout   = "checkout"
	RootBuild      = "build"
	RootGenerators = "generators"
)

// Builder builds recipe sets into a workspace.
type Builder struct {
	Workspace   env.Workspace
	Profile     recipe.Profile
	BuildConfig recipe.BuildConfig

	// Runner executes cmake. Nil means cmake.ExecRunner.
	Runner cmake.Runner
	// Tools locates tool requirements. Nil means PathLocator.
	Tools ToolLocator
	// Client downloads source archives. Nil means http.DefaultClient.
	Client *http.Client
	Logger hclog.Logger

	// Keep leaves attempt directories on disk.
	Keep bool
}

// Result describes one package of a recipe set after Build.
type Result struct {
	Package   module.Version
	Options   recipe.OptionSet
	Signature string
	// Dir is the collected layout.
	Dir      string
	Manifest *collect.Manifest
	// Cached reports that the layout was reused without building.
	Cached  bool
	Patches []patch.Result
}

func (b *Builder) logger() hclog.Logger {
	if b.Logger == nil {
		return hclog.NewNullLogger()
	}
	return b.Logger
}

func (b *Builder) tools() ToolLocator {
	if b.Tools == nil {
		return PathLocator{}
	}
	return b.Tools
}

// Signature identifies a build of a package with opts under b's profile
// and build configuration. Build extends it with the signatures of the
// package's dependencies.
func (b *Builder) Signature(d *recipe.Descriptor, opts recipe.OptionSet) string {
	bt := b.BuildConfig.BuildType
	if d.Toolchain.BuildType != "" {
		bt = d.Toolchain.BuildType
	}
	if bt == "" {
		bt = recipe.Release
	}
	return fmt.Sprintf("%s-%s|%s", b.Profile, bt, opts.Signature())
}

// withDependencies extends sig with the signatures of deps, so a package
// is only reused when everything it was built against is unchanged.
func withDependencies(sig string, deps []string, sigs map[string]string) string {
	for _, dep := range deps {
		sig += "|" + dep + "=" + signatureHash(sigs[dep])
	}
	return sig
}

// Plan validates the graph below root without building anything.
func (b *Builder) Plan(set *recipe.Set, root string) (*Plan, error) {
	plan, err := constructBuildList(set, root, b.Profile)
	if err != nil {
		return nil, err
	}
	if err := locateTools(plan, b.tools()); err != nil {
		return nil, err
	}
	return plan, nil
}

// Build builds root and everything it requires. choices are the root's
// own option values and overrides are qualified assignments. Nothing is
// built if validation or propagation fails, and the first failing package
// stops the whole set.
func (b *Builder) Build(ctx context.Context, set *recipe.Set, root string, choices map[string]string, overrides []recipe.Override) ([]Result, error) {
	plan, err := b.Plan(set, root)
	if err != nil {
		return nil, err
	}
	bindings, err := options.Resolve(set, root, choices, overrides, b.Profile)
	if err != nil {
		return nil, &Error{Phase: PhasePropagate, Package: root, Err: err}
	}

	fetcher, err := b.fetcher()
	if err != nil {
		return nil, &Error{Phase: PhaseSource, Package: root, Err: err}
	}

	dirs := make(map[string]string)
	sigs := make(map[string]string)
	results := make([]Result, 0, len(plan.Order))
	for _, d := range plan.Order {
		opts, _ := bindings.Of(d.Name)
		deps := dependencies(set, d, b.Profile)
		sig := withDependencies(b.Signature(d, opts), deps, sigs)
		r, err := b.build(ctx, fetcher, d, opts, sig, deps, dirs)
		if err != nil {
			return nil, err
		}
		dirs[d.Name] = r.Dir
		sigs[d.Name] = r.Signature
		results = append(results, *r)
	}
	return results, nil
}

func (b *Builder) fetcher() (*source.Fetcher, error) {
	sources, err := b.Workspace.Sources()
	if err != nil {
		return nil, err
	}
	downloads, err := b.Workspace.Downloads()
	if err != nil {
		return nil, err
	}
	return &source.Fetcher{
		Sources:   sources,
		Downloads: downloads,
		Client:    b.Client,
		Logger:    b.logger().Named("source"),
	}, nil
}

// build produces the layout of one package with signature sig. deps are
// the names of the packages it requires, already present in dirs.
func (b *Builder) build(ctx context.Context, fetcher *source.Fetcher, d *recipe.Descriptor, opts recipe.OptionSet, sig string, deps []string, dirs map[string]string) (*Result, error) {
	logger := b.logger().With("package", d.Name)
	fail := func(phase Phase, err error) (*Result, error) {
		return nil, &Error{Phase: phase, Package: d.Name, Err: err}
	}

	dest, err := b.installDir(d.Module(), sig)
	if err != nil {
		return fail(PhaseSource, err)
	}
	res := &Result{Package: d.Module(), Options: opts, Signature: sig, Dir: dest}

	builds, err := b.Workspace.Builds()
	if err != nil {
		return fail(PhaseSource, err)
	}
	wd, err := workdir.New(builds, d.Module())
	if err != nil {
		return fail(PhaseSource, err)
	}
	wd.Keep = b.Keep
	defer func() {
		if err := wd.Close(); err != nil {
			logger.Warn("cannot remove attempt directory", "dir", wd.Root, "error", err)
		}
	}()

	// Checked after taking the lock, another process may have built it.
	cache, err := b.loadCache(d.Name)
	if err != nil {
		return fail(PhaseSource, err)
	}
	if d.Policy() == recipe.PolicyMissing {
		if m, ok := b.cached(cache, d, sig, dest); ok {
			logger.Info("up to date", "dir", dest)
			res.Manifest = m
			res.Cached = true
			return res, nil
		}
	}
	if b.Keep {
		logger.Info("attempt directory kept", "dir", wd.Root)
	}

	logger.Info("fetching source")
	root, err := fetcher.Checkout(ctx, d, wd.Src)
	if err != nil {
		return fail(PhaseSource, err)
	}

	for _, r := range d.Replacements {
		changed, err := patch.ReplaceInFile(root, r)
		if err != nil {
			return fail(PhasePatch, err)
		}
		logger.Debug("replacement", "file", r.File, "changed", changed)
	}
	engine := patch.New(b.Profile, logger.Named("patch"))
	if res.Patches, err = engine.Apply(root, d.Patches); err != nil {
		return fail(PhasePatch, err)
	}

	collector := &collect.Collector{Logger: logger.Named("collect")}
	if len(d.Imports) > 0 {
		imports := filepath.Join(wd.Root, "imports")
		_, err := collector.Collect(ctx, collect.Request{
			Roots:   dirs,
			Rules:   d.Imports,
			Options: opts,
			Profile: b.Profile,
			Dest:    imports,
		})
		if err != nil {
			return fail(PhaseCollect, fmt.Errorf("imports: %w", err))
		}
		if err := source.CopyTree(imports, wd.Build); err != nil {
			return fail(PhaseCollect, fmt.Errorf("imports: %w", err))
		}
	}

	if err := writePaths(wd.Generators, deps, dirs); err != nil {
		return fail(PhaseBuild, err)
	}
	cfg := toolchain.FromDescriptor(d, opts, b.Profile, b.BuildConfig)
	cfg.SourceDir = root
	cfg.BuildDir = wd.Build
	cfg.InstallDir = dest
	cfg.GeneratorsDir = wd.Generators
	for _, dep := range deps {
		cfg.PrefixPaths = append(cfg.PrefixPaths, dirs[dep])
	}
	ctl := &toolchain.Controller{Runner: b.Runner, Logger: logger.Named("toolchain")}
	if err := ctl.Run(ctx, cfg); err != nil {
		return fail(PhaseBuild, err)
	}

	m, err := collector.Collect(ctx, collect.Request{
		Roots: map[string]string{
			RootSource:     root,
			RootCheckout:   wd.Src,
			RootBuild:      wd.Build,
			RootGenerators: wd.Generators,
		},
		Rules:   d.Artifacts,
		Options: opts,
		Profile: b.Profile,
		Dest:    dest,
	})
	if err != nil {
		return fail(PhaseCollect, err)
	}
	if err := writeDiscovery(dest, newBuildInfo(d, opts, sig, m)); err != nil {
		return fail(PhaseCollect, err)
	}
	res.Manifest = m

	cache.set(d.Version, sig, &buildEntry{
		Signature: sig,
		Dir:       dest,
		Files:     m.Files,
		Digest:    m.Digest,
		BuildTime: time.Now(),
	})
	if err := b.saveCache(d.Name, cache); err != nil {
		return fail(PhaseCollect, err)
	}
	logger.Info("packaged", "dir", dest, "files", len(m.Files), "digest", m.Digest)
	return res, nil
}

// cached returns the manifest of a cached build of d with signature sig
// whose layout is still intact.
func (b *Builder) cached(cache *buildCache, d *recipe.Descriptor, sig, dest string) (*collect.Manifest, bool) {
	entry, ok := cache.get(d.Version, sig)
	if !ok || entry.Dir != dest {
		return nil, false
	}
	m := entry.manifest()
	if err := m.Verify(dest); err != nil {
		b.logger().Warn("cached layout damaged, rebuilding", "package", d.Name, "error", err)
		return nil, false
	}
	if _, err := os.Stat(filepath.Join(dest, FindModule(d.Name))); err != nil {
		return nil, false
	}
	if info, err := readBuildInfo(dest); err != nil || info.Signature != sig {
		return nil, false
	}
	return m, true
}
