package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// mockCMake stands in for the cmake executable. Build invocations write
// the files listed in outputs for their --target into the build dir.
type mockCMake struct {
	configures int
	builds     []string

	// outputs maps a target to the files its build produces, relative to
	// the build dir.
	outputs map[string]map[string]string
	// failTarget makes the build of that target exit non-zero.
	failTarget string
	// onBuild runs before the outputs are written.
	onBuild func(buildDir, target string) error

	// paths collects the dependency paths file each configure saw.
	paths []string
}

func (m *mockCMake) Run(_ context.Context, dir string, _ []string, name string, args ...string) error {
	if name != "cmake" || len(args) < 2 {
		return fmt.Errorf("unexpected command %s %v", name, args)
	}
	if args[0] != "--build" {
		m.configures++
		for _, a := range args {
			if tc, ok := strings.CutPrefix(a, "-DCMAKE_TOOLCHAIN_FILE:FILEPATH="); ok {
				data, _ := os.ReadFile(filepath.Join(filepath.Dir(tc), PathsFile))
				m.paths = append(m.paths, string(data))
			}
		}
		return nil
	}

	buildDir := args[1]
	target := ""
	for i, a := range args {
		if a == "--target" && i+1 < len(args) {
			target = args[i+1]
		}
	}
	m.builds = append(m.builds, target)
	if target == m.failTarget {
		return errors.New("exit status 2")
	}
	if m.onBuild != nil {
		if err := m.onBuild(buildDir, target); err != nil {
			return err
		}
	}
	for rel, content := range m.outputs[target] {
		name := filepath.Join(buildDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(name, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// mockLocator finds the binaries it lists.
type mockLocator map[string]string

func (m mockLocator) LookPath(binary string) (string, error) {
	if p, ok := m[binary]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%s: executable file not found in $PATH", binary)
}
