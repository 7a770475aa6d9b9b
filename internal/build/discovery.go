package build

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/997R8V10/aviation-calc-util/internal/collect"
	"github.com/997R8V10/aviation-calc-util/recipe"
)

const (
	// BuildInfoFile describes a collected package to any consumer.
	BuildInfoFile = "avpkg-buildinfo.json"
	// PathsFile points a dependent's CMake at its dependencies. It is
	// written to the generators directory before configure.
	PathsFile = "avpkg_paths.cmake"
)

// BuildInfo is the contents of BuildInfoFile.
type BuildInfo struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Signature   string            `json:"signature"`
	Options     map[string]string `json:"options"`
	Libs        []string          `json:"libs"`
	IncludeDirs []string          `json:"include_dirs"`
	LibDirs     []string          `json:"lib_dirs"`
	BinDirs     []string          `json:"bin_dirs"`
	Digest      string            `json:"digest"`
}

func newBuildInfo(d *recipe.Descriptor, opts recipe.OptionSet, signature string, m *collect.Manifest) BuildInfo {
	info := BuildInfo{
		Name:      d.Name,
		Version:   d.Version,
		Signature: signature,
		Options:   make(map[string]string, len(opts)),
		Libs:      libsFor(d, opts),
		Digest:    m.Digest,
	}
	for k, v := range opts {
		info.Options[k] = v.String()
	}
	tops := make(map[string]bool)
	for _, p := range m.Paths() {
		top, _, _ := strings.Cut(p, "/")
		tops[top] = true
	}
	if tops["include"] {
		info.IncludeDirs = []string{"include"}
	}
	if tops["lib"] {
		info.LibDirs = []string{"lib"}
	}
	if tops["bin"] {
		info.BinDirs = []string{"bin"}
	}
	return info
}

// libsFor returns the link names of d. A lib named "<base>_<option>" is
// only linked when the boolean option "enable_<option>" is on.
func libsFor(d *recipe.Descriptor, opts recipe.OptionSet) []string {
	var libs []string
	for _, lib := range d.Libs {
		if _, suffix, ok := strings.Cut(lib, "_"); ok {
			if v, declared := opts["enable_"+suffix]; declared && !v.Bool() {
				continue
			}
		}
		libs = append(libs, lib)
	}
	return libs
}

func readBuildInfo(dir string) (*BuildInfo, error) {
	data, err := os.ReadFile(filepath.Join(dir, BuildInfoFile))
	if err != nil {
		return nil, err
	}
	var info BuildInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%s: %w", BuildInfoFile, err)
	}
	return &info, nil
}

// FindModule returns the name of the find module generated for pkg.
func FindModule(pkg string) string {
	return "Find" + pkg + ".cmake"
}

var findTemplate = template.Must(template.New("find").Parse(`# Generated by avpkg for {{.Name}} {{.Version}}. Do not edit.
get_filename_component(_avpkg_{{.Name}}_root "${CMAKE_CURRENT_LIST_DIR}" ABSOLUTE)
set({{.Name}}_FOUND TRUE)
set({{.Name}}_VERSION "{{.Version}}")
set({{.Name}}_INCLUDE_DIRS{{range .IncludeDirs}} "${_avpkg_{{$.Name}}_root}/{{.}}"{{end}})
set({{.Name}}_LIBRARIES)
{{- range .Libs}}
find_library(_avpkg_{{$.Name}}_{{.}} NAMES {{.}} PATHS{{range $.LibDirs}} "${_avpkg_{{$.Name}}_root}/{{.}}"{{end}} NO_DEFAULT_PATH)
list(APPEND {{$.Name}}_LIBRARIES "${_avpkg_{{$.Name}}_{{.}}}")
{{- end}}
if(NOT TARGET {{.Name}}::{{.Name}})
  add_library({{.Name}}::{{.Name}} INTERFACE IMPORTED)
  set_target_properties({{.Name}}::{{.Name}} PROPERTIES
    INTERFACE_INCLUDE_DIRECTORIES "${ {{- .Name}}_INCLUDE_DIRS}"
    INTERFACE_LINK_LIBRARIES "${ {{- .Name}}_LIBRARIES}")
endif()
`))

// writeDiscovery writes BuildInfoFile and the find module into dir.
func writeDiscovery(dir string, info BuildInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, BuildInfoFile), append(data, '\n'), 0o644); err != nil {
		return err
	}

	var sb strings.Builder
	if err := findTemplate.Execute(&sb, info); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, FindModule(info.Name)), []byte(sb.String()), 0o644)
}

// renderPaths returns the contents of PathsFile for the dependency
// layouts in dirs, keyed by package name.
func renderPaths(names []string, dirs map[string]string) []byte {
	var sb strings.Builder
	sb.WriteString("# Generated by avpkg. Do not edit.\n")
	for _, name := range names {
		dir := path.Clean(filepath.ToSlash(dirs[name]))
		fmt.Fprintf(&sb, "set(%s_ROOT %s)\n", name, quote(dir))
		fmt.Fprintf(&sb, "list(PREPEND CMAKE_PREFIX_PATH %s)\n", quote(dir))
		fmt.Fprintf(&sb, "list(PREPEND CMAKE_MODULE_PATH %s)\n", quote(dir))
	}
	return []byte(sb.String())
}

var cmakeEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quote(s string) string {
	return `"` + cmakeEscaper.Replace(s) + `"`
}

func writePaths(generators string, names []string, dirs map[string]string) error {
	if err := os.MkdirAll(generators, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(generators, PathsFile), renderPaths(names, dirs), 0o644)
}
