package toolchain

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/997R8V10/aviation-calc-util/x/cmake"
)

// FileName is the toolchain file written into the generators directory.
const FileName = "avpkg_toolchain.cmake"

// Adapter translates a Config into one flag vocabulary.
type Adapter interface {
	Apply(cfg Config, c *cmake.CMake) error
}

// AdapterFor returns the adapter registered under name.
func AdapterFor(name string) (Adapter, error) {
	switch name {
	case AdapterCommandLine:
		return CommandLine{}, nil
	case AdapterToolchainFile, "":
		return ToolchainFile{}, nil
	}
	return nil, fmt.Errorf("unknown toolchain adapter %q", name)
}

// CommandLine passes every definition as a -D argument.
type CommandLine struct{}

func (CommandLine) Apply(cfg Config, c *cmake.CMake) error {
	for _, d := range cfg.Definitions() {
		if d.Type == "BOOL" {
			c.DefineBool(d.Name, d.Value == "ON")
			continue
		}
		c.Define(d.Name, d.Value)
	}
	return nil
}

// ToolchainFile writes the definitions to a toolchain file in the
// generators directory and points CMake at it.
type ToolchainFile struct{}

func (ToolchainFile) Apply(cfg Config, c *cmake.CMake) error {
	if cfg.GeneratorsDir == "" {
		return fmt.Errorf("toolchain file for %s: no generators directory", cfg.Package)
	}
	if err := os.MkdirAll(cfg.GeneratorsDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(cfg.GeneratorsDir, FileName)
	if err := os.WriteFile(path, RenderToolchainFile(cfg), 0o644); err != nil {
		return err
	}
	c.Toolchain(path)
	return nil
}

// RenderToolchainFile returns the toolchain file contents for cfg.
func RenderToolchainFile(cfg Config) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Generated by avpkg for %s. Do not edit.\n", cfg.Package)
	fmt.Fprintf(&sb, "set(AVPKG_BUILD_TYPE %s)\n", quote(string(cfg.BuildType)))
	for _, d := range cfg.Definitions() {
		fmt.Fprintf(&sb, "set(%s %s CACHE %s \"\" FORCE)\n", d.Name, quote(d.Value), d.Type)
	}
	for _, p := range cfg.PrefixPaths {
		fmt.Fprintf(&sb, "list(PREPEND CMAKE_PREFIX_PATH %s)\n", quote(filepath.ToSlash(p)))
	}
	if cfg.GeneratorsDir != "" {
		sb.WriteString("list(PREPEND CMAKE_MODULE_PATH \"${CMAKE_CURRENT_LIST_DIR}\")\n")
		sb.WriteString("include(\"${CMAKE_CURRENT_LIST_DIR}/avpkg_paths.cmake\" OPTIONAL)\n")
	}
	return []byte(sb.String())
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
