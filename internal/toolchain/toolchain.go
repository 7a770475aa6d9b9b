// Package toolchain drives the external native toolchain for one package.
//
// A Config is derived once from a descriptor and its resolved options.
// An Adapter translates it into the flag vocabulary of one generation of
// the CMake integration, and the Controller runs the configure and build
// phases.
package toolchain

import (
	"maps"
	"slices"

	"github.com/997R8V10/aviation-calc-util/recipe"
)

// Adapter names.
const (
	AdapterCommandLine   = "command-line"
	AdapterToolchainFile = "toolchain-file"
)

// Flag is the toolchain definition derived from one option.
type Flag struct {
	Name  string
	Value string
	Bool  bool
}

// Config is everything the toolchain needs to build one package.
type Config struct {
	Package string

	SourceDir     string
	BuildDir      string
	InstallDir    string
	GeneratorsDir string

	Adapter     string
	Generator   string
	BuildType   recipe.BuildType
	MultiConfig bool
	Target      string

	// Flags holds one definition per mapped option, in declaration order.
	Flags []Flag
	// Variables are cache variables set independently of options.
	Variables map[string]string
	// PrefixPaths are the install roots of dependencies.
	PrefixPaths []string
}

var implicitFlags = map[string]string{
	"shared": "BUILD_SHARED_LIBS",
	"fPIC":   "CMAKE_POSITION_INDEPENDENT_CODE",
}

// FromDescriptor derives the toolchain configuration of d built with opts
// on p. Directories are left for the caller to fill in.
func FromDescriptor(d *recipe.Descriptor, opts recipe.OptionSet, p recipe.Profile, bc recipe.BuildConfig) Config {
	spec := d.Toolchain
	cfg := Config{
		Package:     d.Name,
		Adapter:     spec.Adapter,
		Generator:   spec.Generator,
		BuildType:   bc.BuildType,
		MultiConfig: bc.MultiConfig,
		Target:      spec.Target,
		Variables:   make(map[string]string),
	}
	if cfg.Adapter == "" {
		cfg.Adapter = AdapterToolchainFile
	}
	if spec.BuildType != "" {
		cfg.BuildType = spec.BuildType
	}
	if cfg.BuildType == "" {
		cfg.BuildType = recipe.Release
	}

	maps.Copy(cfg.Variables, spec.Variables)
	maps.Copy(cfg.Variables, spec.PlatformVariables[p.OS])

	for _, o := range d.OptionsFor(p) {
		v, ok := opts[o.Name]
		if !ok {
			continue
		}
		name := flagName(spec.Flags, o.Name, p)
		if name == "" {
			continue
		}
		f := Flag{Name: name, Value: v.String()}
		if v.Kind() == recipe.KindBool {
			f.Bool = true
			f.Value = onOff(v.Bool())
		}
		cfg.Flags = append(cfg.Flags, f)
		delete(cfg.Variables, name)
	}
	return cfg
}

func flagName(mappings []recipe.FlagMapping, option string, p recipe.Profile) string {
	for _, m := range mappings {
		if m.Option == option && p.Applies(m.Platforms) {
			return m.Define
		}
	}
	return implicitFlags[option]
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

// Definition is one cache entry as the adapters emit it.
type Definition struct {
	Name  string
	Type  string
	Value string
}

// Definitions returns every cache entry of c sorted by name. Flags win
// over variables of the same name.
func (c Config) Definitions() []Definition {
	defs := make(map[string]Definition, len(c.Variables)+len(c.Flags))
	for k, v := range c.Variables {
		defs[k] = Definition{Name: k, Type: "STRING", Value: v}
	}
	for _, f := range c.Flags {
		typ := "STRING"
		if f.Bool {
			typ = "BOOL"
		}
		defs[f.Name] = Definition{Name: f.Name, Type: typ, Value: f.Value}
	}
	out := make([]Definition, 0, len(defs))
	for _, k := range slices.Sorted(maps.Keys(defs)) {
		out = append(out, defs[k])
	}
	return out
}
