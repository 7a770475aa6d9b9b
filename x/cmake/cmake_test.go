package cmake

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
)

type call struct {
	dir  string
	env  []string
	name string
	args []string
}

type fakeRunner struct {
	calls []call
	err   error
}

func (f *fakeRunner) Run(_ context.Context, dir string, env []string, name string, args ...string) error {
	f.calls = append(f.calls, call{dir: dir, env: env, name: name, args: args})
	return f.err
}

func TestUseSetsEnv(t *testing.T) {
	root := t.TempDir()
	includeDir := filepath.Join(root, "include")
	libDir := filepath.Join(root, "lib")
	pkgconfigDir := filepath.Join(libDir, "pkgconfig")
	for _, d := range []string{includeDir, libDir, pkgconfigDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}

	for _, key := range []string{
		"PKG_CONFIG_PATH", "CMAKE_PREFIX_PATH", "CMAKE_INCLUDE_PATH",
		"CMAKE_LIBRARY_PATH", "INCLUDE", "LIB", "CPPFLAGS", "LDFLAGS",
	} {
		t.Setenv(key, "")
	}

	c := New("", "", "")
	c.Use(root)

	for key, want := range map[string]string{
		"PKG_CONFIG_PATH":    pkgconfigDir,
		"CMAKE_PREFIX_PATH":  root,
		"CMAKE_INCLUDE_PATH": includeDir,
		"CMAKE_LIBRARY_PATH": libDir,
	} {
		if got := c.Getenv(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
		if got := os.Getenv(key); got != "" {
			t.Errorf("process %s = %q, want it untouched", key, got)
		}
	}

	if runtime.GOOS == "windows" {
		if got := c.Getenv("INCLUDE"); got != includeDir {
			t.Errorf("INCLUDE = %q, want %q", got, includeDir)
		}
		if got := c.Getenv("LIB"); got != libDir {
			t.Errorf("LIB = %q, want %q", got, libDir)
		}
	} else {
		if got := c.Getenv("CPPFLAGS"); strings.TrimSpace(got) != "-I"+includeDir {
			t.Errorf("CPPFLAGS = %q, want %q", got, "-I"+includeDir)
		}
		if got := c.Getenv("LDFLAGS"); strings.TrimSpace(got) != "-L"+libDir {
			t.Errorf("LDFLAGS = %q, want %q", got, "-L"+libDir)
		}
	}
}

func TestUsePartialDirs(t *testing.T) {
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, "include"), 0o755)

	for _, key := range []string{
		"PKG_CONFIG_PATH", "CMAKE_LIBRARY_PATH",
	} {
		t.Setenv(key, "")
	}

	c := New("", "", "")
	c.Use(root)

	if got := c.Getenv("PKG_CONFIG_PATH"); got != "" {
		t.Errorf("PKG_CONFIG_PATH = %q, want empty", got)
	}
	if got := c.Getenv("CMAKE_LIBRARY_PATH"); got != "" {
		t.Errorf("CMAKE_LIBRARY_PATH = %q, want empty", got)
	}
}

func TestUseTwoRoots(t *testing.T) {
	t.Setenv("CMAKE_PREFIX_PATH", "/sys")
	c := New("", "", "")
	c.Use("/a")
	c.Use("/b")

	sep := string(os.PathListSeparator)
	want := "/b" + sep + "/a" + sep + "/sys"
	if got := c.Getenv("CMAKE_PREFIX_PATH"); got != want {
		t.Errorf("CMAKE_PREFIX_PATH = %q, want %q", got, want)
	}
	if !slices.Contains(c.Environ(), "CMAKE_PREFIX_PATH="+want) {
		t.Errorf("Environ missing CMAKE_PREFIX_PATH=%s", want)
	}
}

func TestDefinesArgs(t *testing.T) {
	c := New("", "", "")
	c.Define("FOO", "BAR")
	c.DefineBool("ENABLE", true)
	c.DefineBool("DISABLE", false)

	args := definesArgs(c.defines)
	want := []string{"-DDISABLE:BOOL=OFF", "-DENABLE:BOOL=ON", "-DFOO:STRING=BAR"}
	if !slices.Equal(args, want) {
		t.Errorf("definesArgs = %v, want %v", args, want)
	}
	if args := definesArgs(nil); args != nil {
		t.Errorf("definesArgs on empty = %v, want nil", args)
	}
}

func TestBuildTypeThreading(t *testing.T) {
	tests := []struct {
		name          string
		multi         bool
		wantConfigure []string
		wantBuild     []string
	}{
		{
			name:          "single config",
			wantConfigure: []string{"-S", "src", "-B", "build", "-G", "Ninja", "-DCMAKE_BUILD_TYPE:STRING=Release", "-DFOO:STRING=1"},
			wantBuild:     []string{"--build", "build", "--target", "eccodes"},
		},
		{
			name:          "multi config",
			multi:         true,
			wantConfigure: []string{"-S", "src", "-B", "build", "-G", "Ninja", "-DFOO:STRING=1"},
			wantBuild:     []string{"--build", "build", "--config", "Release", "--target", "eccodes"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New("src", "build", "")
			c.Generator("Ninja")
			c.BuildType("Release")
			c.MultiConfig(tt.multi)
			c.Target("eccodes")
			c.Define("FOO", "1")
			if tt.multi {
				// A stray definition must not leak into a multi-config configure.
				c.Define("CMAKE_BUILD_TYPE", "Debug")
			}

			if got := c.ConfigureArgs(); !slices.Equal(got, tt.wantConfigure) {
				t.Errorf("ConfigureArgs = %v, want %v", got, tt.wantConfigure)
			}
			if got := c.BuildArgs(); !slices.Equal(got, tt.wantBuild) {
				t.Errorf("BuildArgs = %v, want %v", got, tt.wantBuild)
			}
		})
	}
}

func TestConfigureUsesRunner(t *testing.T) {
	tmp := t.TempDir()
	buildDir := filepath.Join(tmp, "build")
	r := &fakeRunner{}

	c := New("src", buildDir, filepath.Join(tmp, "inst"))
	c.Runner(r)
	c.Toolchain("tc.cmake")
	c.Use("/deps/eccodes")

	if err := c.Configure(context.Background(), "--fresh"); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if _, err := os.Stat(buildDir); err != nil {
		t.Fatalf("build dir not created: %v", err)
	}
	if len(r.calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(r.calls))
	}

	cfg := r.calls[0]
	if cfg.name != "cmake" || cfg.dir != buildDir {
		t.Errorf("configure ran %s in %s", cfg.name, cfg.dir)
	}
	for _, want := range []string{
		"-DCMAKE_TOOLCHAIN_FILE:FILEPATH=tc.cmake",
		"-DCMAKE_INSTALL_PREFIX:STRING=" + filepath.Join(tmp, "inst"),
		"--fresh",
	} {
		if !slices.Contains(cfg.args, want) {
			t.Errorf("configure args %v missing %q", cfg.args, want)
		}
	}
	if cfg.args[len(cfg.args)-1] != "--fresh" {
		t.Errorf("extra args not last: %v", cfg.args)
	}
	found := false
	for _, kv := range cfg.env {
		if strings.HasPrefix(kv, "CMAKE_PREFIX_PATH=/deps/eccodes") {
			found = true
		}
	}
	if !found {
		t.Errorf("configure env has no CMAKE_PREFIX_PATH for /deps/eccodes")
	}
}

func TestRunnerError(t *testing.T) {
	boom := errors.New("exit status 1")
	c := New("src", t.TempDir(), "")
	c.Runner(&fakeRunner{err: boom})
	if err := c.Build(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Build error = %v, want %v", err, boom)
	}
}

func TestConfigureBuildE2E(t *testing.T) {
	if _, err := exec.LookPath("cmake"); err != nil {
		t.Skip("cmake not found in PATH")
	}
	if _, err := exec.LookPath("make"); err != nil {
		t.Skip("make not found in PATH")
	}

	tmp := t.TempDir()
	installDir := filepath.Join(tmp, "install")
	buildDir := filepath.Join(tmp, "build")

	src, err := filepath.Abs(filepath.Join("testdata", "project"))
	if err != nil {
		t.Fatal(err)
	}
	c := New(src, buildDir, installDir)
	c.BuildType("Release")
	c.Generator("Unix Makefiles")

	toolchain := filepath.Join(tmp, "toolchain.cmake")
	os.WriteFile(toolchain, []byte("# dummy toolchain"), 0o644)
	c.Toolchain(toolchain)

	c.Define("FOO", "BAR")
	c.DefineBool("ENABLE", true)
	c.DefineBool("DISABLE", false)

	ctx := context.Background()
	if err := c.Configure(ctx); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := c.Build(ctx); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := os.Stat(filepath.Join(buildDir, "libdummy.a")); err != nil {
		t.Errorf("missing %s", filepath.Join(buildDir, "libdummy.a"))
	}

	data, err := os.ReadFile(filepath.Join(buildDir, "CMakeCache.txt"))
	if err != nil {
		t.Fatalf("read CMakeCache.txt: %v", err)
	}
	cache := string(data)
	for _, want := range []string{
		"FOO:STRING=BAR",
		"ENABLE:BOOL=ON",
		"DISABLE:BOOL=OFF",
		"CMAKE_BUILD_TYPE:STRING=Release",
		"CMAKE_INSTALL_PREFIX",
		"CMAKE_TOOLCHAIN_FILE",
	} {
		if !strings.Contains(cache, want) {
			t.Errorf("cache missing %q", want)
		}
	}
}
