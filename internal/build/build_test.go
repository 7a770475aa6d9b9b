package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/997R8V10/aviation-calc-util/internal/collect"
	"github.com/997R8V10/aviation-calc-util/internal/env"
	"github.com/997R8V10/aviation-calc-util/internal/options"
	"github.com/997R8V10/aviation-calc-util/internal/patch"
	"github.com/997R8V10/aviation-calc-util/internal/toolchain"
	"github.com/997R8V10/aviation-calc-util/recipe"
)

var (
	linux   = recipe.ProfileFor(recipe.Linux, "amd64")
	windows = recipe.ProfileFor(recipe.Windows, "amd64")
)

func req(name, version string) recipe.Requirement {
	return recipe.Requirement{Name: name, Version: version}
}

// pkg returns a descriptor exporting one header and producing one static
// library when its target is built.
func pkg(name, version, shared string, deps ...recipe.Requirement) *recipe.Descriptor {
	return &recipe.Descriptor{
		Name:     name,
		Version:  version,
		Options:  []recipe.OptionSpec{{Name: "shared", Type: "bool", Default: shared}},
		Requires: deps,
		Source:   &recipe.Source{Local: true},
		Exports:  []string{"include/*"},
		Files: fstest.MapFS{
			"include/" + name + ".h": {Data: []byte("int " + name + "(void);\n")},
		},
		Toolchain: recipe.ToolchainSpec{Target: name},
		Artifacts: []recipe.ArtifactRule{
			{Pattern: "*.h", From: RootSource, Subdir: "include", To: "include"},
			{Pattern: "*.a", From: RootBuild, To: "lib", StripPath: true},
		},
		Libs: []string{name},
	}
}

func newSet(t *testing.T, descs ...*recipe.Descriptor) *recipe.Set {
	t.Helper()
	set, err := recipe.NewSet(descs...)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	return set
}

func newMock(targets ...string) *mockCMake {
	m := &mockCMake{outputs: make(map[string]map[string]string)}
	for _, t := range targets {
		m.outputs[t] = map[string]string{"out/lib" + t + ".a": "archive " + t}
	}
	return m
}

func newBuilder(t *testing.T, m *mockCMake) *Builder {
	t.Helper()
	return &Builder{
		Workspace:   env.Workspace{Root: t.TempDir()},
		Profile:     linux,
		BuildConfig: recipe.BuildConfig{BuildType: recipe.Release},
		Runner:      m,
		Tools:       mockLocator{},
	}
}

// appSet is app -> leaf. app builds shared by default, leaf static.
func appSet(t *testing.T) (*recipe.Set, *recipe.Descriptor, *recipe.Descriptor) {
	app := pkg("app", "1.0", "true", req("leaf", "2.0"))
	leaf := pkg("leaf", "2.0", "false")
	return newSet(t, app, leaf), app, leaf
}

func names(results []Result) string {
	var s []string
	for _, r := range results {
		s = append(s, r.Package.Name)
	}
	return strings.Join(s, " ")
}

func TestConstructBuildList(t *testing.T) {
	tests := []struct {
		name  string
		descs []*recipe.Descriptor
		root  string
		want  string
	}{
		{
			name:  "single package",
			descs: []*recipe.Descriptor{pkg("a", "1", "false")},
			root:  "a",
			want:  "a",
		},
		{
			name: "deps before dependents in requirement order",
			descs: []*recipe.Descriptor{
				pkg("app", "1", "false", req("b", "1"), req("a", "1")),
				pkg("a", "1", "false", req("c", "1")),
				pkg("b", "1", "false", req("c", "1"), req("d", "1")),
				pkg("c", "1", "false"),
				pkg("d", "1", "false"),
			},
			root: "app",
			want: "c d b a app",
		},
		{
			name: "unreachable packages are left out",
			descs: []*recipe.Descriptor{
				pkg("app", "1", "false", req("a", "1")),
				pkg("a", "1", "false"),
				pkg("other", "1", "false"),
			},
			root: "app",
			want: "a app",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := constructBuildList(newSet(t, tt.descs...), tt.root, linux)
			if err != nil {
				t.Fatalf("constructBuildList: %v", err)
			}
			if got := strings.Join(plan.Names(), " "); got != tt.want {
				t.Errorf("order = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConstructBuildList_Cycle(t *testing.T) {
	set := newSet(t,
		pkg("a", "1", "false", req("b", "1")),
		pkg("b", "1", "false", req("c", "1")),
		pkg("c", "1", "false", req("a", "1")),
	)
	_, err := constructBuildList(set, "a", linux)
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("err = %v, want ErrCycle", err)
	}
	if !strings.Contains(err.Error(), "a -> b -> c -> a") {
		t.Errorf("err = %v, want the cycle path", err)
	}
	var be *Error
	if !errors.As(err, &be) || be.Phase != PhaseValidate {
		t.Errorf("err = %#v, want validate phase", err)
	}
}

func TestConstructBuildList_Unpinned(t *testing.T) {
	tests := []struct {
		name  string
		descs []*recipe.Descriptor
	}{
		{"missing recipe", []*recipe.Descriptor{pkg("app", "1", "false", req("leaf", "2"))}},
		{"version mismatch", []*recipe.Descriptor{pkg("app", "1", "false", req("leaf", "2")), pkg("leaf", "3", "false")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := constructBuildList(newSet(t, tt.descs...), "app", linux)
			if !errors.Is(err, ErrUnpinned) {
				t.Fatalf("err = %v, want ErrUnpinned", err)
			}
		})
	}

	if _, err := constructBuildList(newSet(t, pkg("a", "1", "false")), "nope", linux); !errors.Is(err, ErrUnpinned) {
		t.Errorf("unknown root: err = %v, want ErrUnpinned", err)
	}
}

func TestConstructBuildList_InvalidDescriptor(t *testing.T) {
	bad := pkg("leaf", "2", "false")
	bad.Options[0].Type = "int"
	_, err := constructBuildList(newSet(t, pkg("app", "1", "false", req("leaf", "2")), bad), "app", linux)
	var be *Error
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if be.Phase != PhaseValidate || be.Package != "leaf" {
		t.Errorf("phase %s package %s, want validate leaf", be.Phase, be.Package)
	}
}

func TestPlan_Tools(t *testing.T) {
	perl := recipe.Requirement{Name: "strawberryperl", Version: "5.28.1.1", Tool: true, Binary: "perl", Platforms: []recipe.OS{recipe.Windows}}
	app := pkg("app", "1", "false", perl)
	tool := &recipe.Descriptor{Name: "strawberryperl", Version: "5.28.1.1"}
	set := newSet(t, app, tool)

	tests := []struct {
		name    string
		profile recipe.Profile
		tools   mockLocator
		wantErr error
		want    int
	}{
		{"inactive on linux", linux, mockLocator{}, nil, 0},
		{"found on windows", windows, mockLocator{"perl": `C:\Strawberry\perl\bin\perl.exe`}, nil, 1},
		{"missing on windows", windows, mockLocator{}, ErrMissingTool, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Builder{Profile: tt.profile, Tools: tt.tools}
			plan, err := b.Plan(set, "app")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if len(plan.Tools) != tt.want {
				t.Errorf("tools = %v, want %d", plan.Tools, tt.want)
			}
			if got := strings.Join(plan.Names(), " "); got != "app" {
				t.Errorf("order = %q, tools are never built", got)
			}
		})
	}

	tool.Version = "5.30"
	b := &Builder{Profile: windows, Tools: mockLocator{"perl": "perl"}}
	if _, err := b.Plan(set, "app"); !errors.Is(err, ErrUnpinned) {
		t.Errorf("tool version mismatch: err = %v, want ErrUnpinned", err)
	}
}

func TestBuild_WithDeps(t *testing.T) {
	set, _, _ := appSet(t)
	m := newMock("app", "leaf")
	b := newBuilder(t, m)

	results, err := b.Build(context.Background(), set, "app", nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := names(results); got != "leaf app" {
		t.Fatalf("results = %q, want %q", got, "leaf app")
	}

	leaf := results[0]
	if !leaf.Options["shared"].Bool() {
		t.Errorf("leaf shared = false, want the value propagated from app")
	}
	if want := "linux-amd64-Release|shared=true"; leaf.Signature != want {
		t.Errorf("signature = %q, want %q", leaf.Signature, want)
	}
	if want := "leaf@2.0-" + signatureHash(leaf.Signature); filepath.Base(leaf.Dir) != want {
		t.Errorf("dir = %s, want base %s", leaf.Dir, want)
	}
	if got := strings.Join(leaf.Manifest.Paths(), " "); got != "include/leaf.h lib/libleaf.a" {
		t.Errorf("layout = %q", got)
	}

	info, err := readBuildInfo(leaf.Dir)
	if err != nil {
		t.Fatalf("readBuildInfo: %v", err)
	}
	if info.Digest != leaf.Manifest.Digest || info.Signature != leaf.Signature {
		t.Errorf("build info = %+v", info)
	}
	if len(info.Libs) != 1 || info.Libs[0] != "leaf" || len(info.IncludeDirs) != 1 || len(info.LibDirs) != 1 || info.BinDirs != nil {
		t.Errorf("build info dirs = %+v", info)
	}
	if _, err := os.Stat(filepath.Join(leaf.Dir, FindModule("leaf"))); err != nil {
		t.Errorf("find module: %v", err)
	}

	if len(m.paths) != 2 {
		t.Fatalf("configure saw %d paths files, want 2", len(m.paths))
	}
	if strings.Contains(m.paths[0], "set(") {
		t.Errorf("leaf paths file = %q, want no dependencies", m.paths[0])
	}
	if want := "set(leaf_ROOT " + quote(filepath.ToSlash(leaf.Dir)) + ")"; !strings.Contains(m.paths[1], want) {
		t.Errorf("app paths file = %q, want %q", m.paths[1], want)
	}

	builds, _ := b.Workspace.Builds()
	entries, err := os.ReadDir(filepath.Join(builds, "leaf@2.0"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != ".lock" {
		t.Errorf("attempt directories left behind: %v", entries)
	}
}

func TestBuild_CacheHit(t *testing.T) {
	set, _, _ := appSet(t)
	m := newMock("app", "leaf")
	b := newBuilder(t, m)
	ctx := context.Background()

	first, err := b.Build(ctx, set, "app", nil, nil)
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}
	second, err := b.Build(ctx, set, "app", nil, nil)
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if len(m.builds) != 2 || m.configures != 2 {
		t.Errorf("builds = %v configures = %d, want nothing rebuilt", m.builds, m.configures)
	}
	for i, r := range second {
		if !r.Cached {
			t.Errorf("%s not reused", r.Package)
		}
		if r.Dir != first[i].Dir || r.Manifest.Digest != first[i].Manifest.Digest {
			t.Errorf("%s: cached result differs from the build", r.Package)
		}
	}
}

func TestBuild_CacheDifferentOptions(t *testing.T) {
	set, _, _ := appSet(t)
	m := newMock("app", "leaf")
	b := newBuilder(t, m)
	ctx := context.Background()

	first, err := b.Build(ctx, set, "app", nil, nil)
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}
	second, err := b.Build(ctx, set, "app", map[string]string{"shared": "false"}, nil)
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if got := strings.Join(m.builds, " "); got != "leaf app leaf app" {
		t.Errorf("builds = %q", got)
	}
	for i, r := range second {
		if r.Cached || r.Dir == first[i].Dir {
			t.Errorf("%s: different options reused %s", r.Package, r.Dir)
		}
	}

	cache, err := b.loadCache("leaf")
	if err != nil {
		t.Fatal(err)
	}
	if len(cache.Cache) != 2 {
		t.Errorf("cache holds %d entries, want 2", len(cache.Cache))
	}
}

func TestBuild_CacheDamaged(t *testing.T) {
	set, _, _ := appSet(t)
	m := newMock("app", "leaf")
	b := newBuilder(t, m)
	ctx := context.Background()

	first, err := b.Build(ctx, set, "app", nil, nil)
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}
	lib := filepath.Join(first[0].Dir, "lib", "libleaf.a")
	if err := os.WriteFile(lib, []byte("truncated"), 0o644); err != nil {
		t.Fatal(err)
	}

	second, err := b.Build(ctx, set, "app", nil, nil)
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if got := strings.Join(m.builds, " "); got != "leaf app leaf" {
		t.Errorf("builds = %q, want only leaf rebuilt", got)
	}
	if second[0].Cached || !second[1].Cached {
		t.Errorf("cached = %v %v", second[0].Cached, second[1].Cached)
	}
	if data, _ := os.ReadFile(lib); string(data) != "archive leaf" {
		t.Errorf("lib = %q after rebuild", data)
	}
}

func TestBuild_CacheDependencyChanged(t *testing.T) {
	set, app, leaf := appSet(t)
	leaf.Options = append(leaf.Options, recipe.OptionSpec{Name: "enable_memfs", Type: "bool", Default: "false"})
	leaf.Artifacts[1].When = &recipe.Condition{Option: "enable_memfs", Equals: "false"}
	app.Imports = []recipe.ArtifactRule{{Pattern: "*.a", From: "leaf", Subdir: "lib", To: "bin"}}
	app.Artifacts = append(app.Artifacts, recipe.ArtifactRule{Pattern: "*.a", From: RootBuild, Subdir: "bin", To: "bin"})
	m := newMock("app", "leaf")
	b := newBuilder(t, m)
	ctx := context.Background()

	first, err := b.Build(ctx, set, "app", nil, nil)
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}
	if !strings.Contains(strings.Join(first[1].Manifest.Paths(), " "), "bin/libleaf.a") {
		t.Fatalf("app layout = %v, want the imported leaf archive", first[1].Manifest.Paths())
	}
	if want := "|leaf=" + signatureHash(first[0].Signature); !strings.HasSuffix(first[1].Signature, want) {
		t.Errorf("app signature = %q, want suffix %q", first[1].Signature, want)
	}

	overrides := []recipe.Override{{Package: "leaf", Option: "enable_memfs", Value: "true"}}
	second, err := b.Build(ctx, set, "app", nil, overrides)
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if got := strings.Join(m.builds, " "); got != "leaf app leaf app" {
		t.Errorf("builds = %q, want app rebuilt against the new leaf", got)
	}
	if second[1].Cached || second[1].Dir == first[1].Dir {
		t.Errorf("app reused %s built against the old leaf", second[1].Dir)
	}
	for _, p := range second[1].Manifest.Paths() {
		if strings.HasPrefix(p, "bin/") {
			t.Errorf("app layout still bundles %s", p)
		}
	}

	third, err := b.Build(ctx, set, "app", nil, overrides)
	if err != nil {
		t.Fatalf("third Build: %v", err)
	}
	if !third[0].Cached || !third[1].Cached {
		t.Errorf("identical build not reused: cached = %v %v", third[0].Cached, third[1].Cached)
	}
}

func TestBuild_PolicyAlways(t *testing.T) {
	set, _, leaf := appSet(t)
	leaf.BuildPolicy = recipe.PolicyAlways
	m := newMock("app", "leaf")
	b := newBuilder(t, m)
	ctx := context.Background()

	for range 2 {
		if _, err := b.Build(ctx, set, "app", nil, nil); err != nil {
			t.Fatalf("Build: %v", err)
		}
	}
	if got := strings.Join(m.builds, " "); got != "leaf app leaf" {
		t.Errorf("builds = %q", got)
	}
}

func TestBuild_Imports(t *testing.T) {
	set, app, _ := appSet(t)
	app.Imports = []recipe.ArtifactRule{{Pattern: "*.a", From: "leaf", Subdir: "lib", To: "deps"}}
	m := newMock("app", "leaf")
	m.onBuild = func(buildDir, target string) error {
		if target != "app" {
			return nil
		}
		_, err := os.Stat(filepath.Join(buildDir, "deps", "libleaf.a"))
		return err
	}
	b := newBuilder(t, m)

	if _, err := b.Build(context.Background(), set, "app", nil, nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
}

func TestBuild_Patches(t *testing.T) {
	set, _, leaf := appSet(t)
	leaf.Replacements = []recipe.Replacement{{File: "include/leaf.h", Search: "int leaf", Replace: "extern int leaf"}}
	leaf.Patches = []recipe.PatchSet{{
		Description: "leaf takes an argument",
		Diff: `--- a/include/leaf.h
+++ b/include/leaf.h
@@ -1,1 +1,1 @@
-extern int leaf(void);
+extern int leaf(int);
`,
	}}
	b := newBuilder(t, newMock("app", "leaf"))

	results, err := b.Build(context.Background(), set, "app", nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(results[0].Patches) != 1 || results[0].Patches[0].Status != patch.Applied {
		t.Errorf("patches = %+v", results[0].Patches)
	}
	data, err := os.ReadFile(filepath.Join(results[0].Dir, "include", "leaf.h"))
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != "extern int leaf(int);\n" {
		t.Errorf("header = %q", got)
	}
}

func TestBuild_Errors(t *testing.T) {
	badPatch := recipe.PatchSet{Diff: "--- a/include/leaf.h\n+++ b/include/leaf.h\n@@ -1,1 +1,1 @@\n-int other(void);\n+int other(int);\n"}

	tests := []struct {
		name      string
		mutate    func(app, leaf *recipe.Descriptor, m *mockCMake)
		choices   map[string]string
		wantPhase Phase
		wantPkg   string
		wantErr   error
		wantBuilt string
	}{
		{
			name:      "unknown option",
			choices:   map[string]string{"nope": "true"},
			wantPhase: PhasePropagate,
			wantPkg:   "app",
			wantErr:   options.ErrUnknownOption,
		},
		{
			name:      "patch does not apply",
			mutate:    func(_, leaf *recipe.Descriptor, _ *mockCMake) { leaf.Patches = []recipe.PatchSet{badPatch} },
			wantPhase: PhasePatch,
			wantPkg:   "leaf",
			wantErr:   patch.ErrHunkFailed,
		},
		{
			name: "replacement does not match",
			mutate: func(_, leaf *recipe.Descriptor, _ *mockCMake) {
				leaf.Replacements = []recipe.Replacement{{File: "include/leaf.h", Search: "project(", Replace: "x"}}
			},
			wantPhase: PhasePatch,
			wantPkg:   "leaf",
			wantErr:   patch.ErrNoMatch,
		},
		{
			name:      "dependency build fails",
			mutate:    func(_, _ *recipe.Descriptor, m *mockCMake) { m.failTarget = "leaf" },
			wantPhase: PhaseBuild,
			wantPkg:   "leaf",
			wantBuilt: "leaf",
		},
		{
			name: "required artifact missing",
			mutate: func(app, _ *recipe.Descriptor, _ *mockCMake) {
				app.Artifacts = append(app.Artifacts, recipe.ArtifactRule{Pattern: "*.dll", From: RootBuild, To: "bin", Required: true})
			},
			wantPhase: PhaseCollect,
			wantPkg:   "app",
			wantErr:   collect.ErrNoMatch,
			wantBuilt: "leaf app",
		},
		{
			name:      "no source",
			mutate:    func(_, leaf *recipe.Descriptor, _ *mockCMake) { leaf.Source = nil },
			wantPhase: PhaseSource,
			wantPkg:   "leaf",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, app, leaf := appSet(t)
			m := newMock("app", "leaf")
			if tt.mutate != nil {
				tt.mutate(app, leaf, m)
			}
			b := newBuilder(t, m)

			_, err := b.Build(context.Background(), set, "app", tt.choices, nil)
			var be *Error
			if !errors.As(err, &be) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if be.Phase != tt.wantPhase || be.Package != tt.wantPkg {
				t.Errorf("failed in %s of %s, want %s of %s", be.Phase, be.Package, tt.wantPhase, tt.wantPkg)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if got := strings.Join(m.builds, " "); got != tt.wantBuilt {
				t.Errorf("builds = %q, want %q", got, tt.wantBuilt)
			}
		})
	}
}

func TestBuild_ErrorDoesNotCache(t *testing.T) {
	set, _, _ := appSet(t)
	m := newMock("app", "leaf")
	m.failTarget = "app"
	b := newBuilder(t, m)

	_, err := b.Build(context.Background(), set, "app", nil, nil)
	var pe *toolchain.PhaseError
	if !errors.As(err, &pe) || pe.Phase != toolchain.PhaseBuild {
		t.Fatalf("err = %v, want a toolchain build error", err)
	}

	appCache, err := b.loadCache("app")
	if err != nil {
		t.Fatal(err)
	}
	if len(appCache.Cache) != 0 {
		t.Errorf("failed build was cached: %v", appCache.Cache)
	}
	leafCache, err := b.loadCache("leaf")
	if err != nil {
		t.Fatal(err)
	}
	if len(leafCache.Cache) != 1 {
		t.Errorf("leaf cache = %v, want its successful build", leafCache.Cache)
	}
}

func TestBuild_ValidationBuildsNothing(t *testing.T) {
	set := newSet(t,
		pkg("app", "1", "false", req("leaf", "1")),
		pkg("leaf", "1", "false", req("app", "1")),
	)
	m := newMock("app", "leaf")
	b := newBuilder(t, m)

	if _, err := b.Build(context.Background(), set, "app", nil, nil); !errors.Is(err, ErrCycle) {
		t.Fatalf("err = %v, want ErrCycle", err)
	}
	if m.configures != 0 || len(m.builds) != 0 {
		t.Errorf("built despite a cycle: %v", m.builds)
	}
}

func TestBuild_MultiConfig(t *testing.T) {
	set, _, _ := appSet(t)
	m := newMock("app", "leaf")
	var sawConfig bool
	b := newBuilder(t, m)
	b.BuildConfig = recipe.BuildConfig{BuildType: recipe.Debug, MultiConfig: true}
	b.Runner = runnerFunc(func(ctx context.Context, dir string, env []string, name string, args ...string) error {
		if args[0] == "--build" {
			for i, a := range args {
				if a == "--config" && args[i+1] == "Debug" {
					sawConfig = true
				}
			}
		}
		return m.Run(ctx, dir, env, name, args...)
	})

	results, err := b.Build(context.Background(), set, "app", nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !sawConfig {
		t.Error("build did not receive --config Debug")
	}
	if !strings.HasPrefix(results[0].Signature, "linux-amd64-Debug|") {
		t.Errorf("signature = %q", results[0].Signature)
	}
}

type runnerFunc func(ctx context.Context, dir string, env []string, name string, args ...string) error

func (f runnerFunc) Run(ctx context.Context, dir string, env []string, name string, args ...string) error {
	return f(ctx, dir, env, name, args...)
}

func TestSignature(t *testing.T) {
	b := &Builder{Profile: windows, BuildConfig: recipe.BuildConfig{BuildType: recipe.Debug}}
	opts := recipe.OptionSet{"shared": recipe.Bool(false), "compression": recipe.Enum("zlib")}

	d := &recipe.Descriptor{Name: "eccodes"}
	if got, want := b.Signature(d, opts), "windows-amd64-Debug|compression=zlib-shared=false"; got != want {
		t.Errorf("Signature = %q, want %q", got, want)
	}
	d.Toolchain.BuildType = recipe.Release
	if got, want := b.Signature(d, opts), "windows-amd64-Release|compression=zlib-shared=false"; got != want {
		t.Errorf("pinned Signature = %q, want %q", got, want)
	}
}
