package recipe

import (
	"io/fs"
	"strconv"

	"github.com/997R8V10/aviation-calc-util/mod/module"
)

// BuildPolicy controls whether a package is rebuilt when a matching build
// already exists.
type BuildPolicy string

const (
	// PolicyAlways rebuilds the package on every invocation.
	PolicyAlways BuildPolicy = "always"
	// PolicyMissing builds the package only if no build with the same
	// option signature exists.
	PolicyMissing BuildPolicy = "missing"
)

// LinkedOptions are propagated from a package to every dependency that
// declares an option of the same name.
var LinkedOptions = []string{"shared", "fPIC"}

// Descriptor is the static declaration of a package: its identity, its
// options, its requirement edges and the steps that turn its sources into
// an installable layout.
type Descriptor struct {
	Name        string      `yaml:"name" validate:"required"`
	Version     string      `yaml:"version" validate:"required"`
	License     string      `yaml:"license"`
	URL         string      `yaml:"url"`
	Description string      `yaml:"description"`
	BuildPolicy BuildPolicy `yaml:"build_policy" validate:"omitempty,oneof=always missing"`

	Options   []OptionSpec  `yaml:"options" validate:"dive"`
	Requires  []Requirement `yaml:"requires" validate:"dive"`
	Overrides []Override    `yaml:"overrides" validate:"dive"`

	Source       *Source        `yaml:"source"`
	Exports      []string       `yaml:"exports"`
	Replacements []Replacement  `yaml:"replacements" validate:"dive"`
	Patches      []PatchSet     `yaml:"patches" validate:"dive"`
	Toolchain    ToolchainSpec  `yaml:"toolchain"`
	Artifacts    []ArtifactRule `yaml:"artifacts" validate:"dive"`
	Imports      []ArtifactRule `yaml:"imports" validate:"dive"`
	Libs         []string       `yaml:"libs"`

	// Files is the recipe directory the descriptor was loaded from.
	// Patch files and exported sources are read from it.
	Files fs.FS `yaml:"-"`
}

// Module returns the identity of d.
func (d *Descriptor) Module() module.Version {
	return module.Version{Name: d.Name, Version: d.Version}
}

// Policy returns the build policy, defaulting to PolicyMissing.
func (d *Descriptor) Policy() BuildPolicy {
	if d.BuildPolicy == "" {
		return PolicyMissing
	}
	return d.BuildPolicy
}

// IsTool reports whether d only describes a build-time tool.
func (d *Descriptor) IsTool() bool {
	return d.Source == nil && len(d.Artifacts) == 0 && d.Toolchain.Target == "" && len(d.Exports) == 0
}

// OptionsFor returns the options that exist on p.
func (d *Descriptor) OptionsFor(p Profile) []OptionSpec {
	var opts []OptionSpec
	for _, o := range d.Options {
		if p.Applies(o.Platforms) {
			opts = append(opts, o)
		}
	}
	return opts
}

// Option looks up an option that exists on p.
func (d *Descriptor) Option(p Profile, name string) (OptionSpec, bool) {
	for _, o := range d.OptionsFor(p) {
		if o.Name == name {
			return o, true
		}
	}
	return OptionSpec{}, false
}

// Defaults returns the default values of every option that exists on p.
func (d *Descriptor) Defaults(p Profile) (OptionSet, error) {
	set := make(OptionSet)
	for _, o := range d.OptionsFor(p) {
		v, err := o.DefaultValue()
		if err != nil {
			return nil, err
		}
		set[o.Name] = v
	}
	return set, nil
}

// RequiresFor returns the requirement edges active on p, in declaration
// order.
func (d *Descriptor) RequiresFor(p Profile) []Requirement {
	var reqs []Requirement
	for _, r := range d.Requires {
		if p.Applies(r.Platforms) {
			reqs = append(reqs, r)
		}
	}
	return reqs
}

// Requirement is a dependency edge pinned to an exact version.
type Requirement struct {
	Name      string `yaml:"name" validate:"required"`
	Version   string `yaml:"version" validate:"required"`
	Platforms []OS   `yaml:"platforms" validate:"dive,oneof=linux darwin windows"`

	// Tool marks a build-time tool. Tools are located, not built, and no
	// option propagates through them.
	Tool   bool   `yaml:"tool"`
	Binary string `yaml:"binary" validate:"required_if=Tool true"`
}

// Module returns the pinned identity the edge points at.
func (r Requirement) Module() module.Version {
	return module.Version{Name: r.Name, Version: r.Version}
}

// Override sets option Option of package Package, regardless of
// propagation.
type Override struct {
	Package string `yaml:"package" validate:"required"`
	Option  string `yaml:"option" validate:"required"`
	Value   string `yaml:"value" validate:"required"`
}

// Source tells where the pristine sources of a package come from. Exactly
// one of URL, Git or Local is set.
type Source struct {
	URL    string `yaml:"url" validate:"omitempty,url"`
	SHA256 string `yaml:"sha256" validate:"omitempty,hexadecimal,len=64"`
	Git    string `yaml:"git"`
	Ref    string `yaml:"ref" validate:"required_with=Git"`
	Local  bool   `yaml:"local"`

	// Subdir is the vendored root inside the fetched tree.
	Subdir string `yaml:"subdir"`
}

// Replacement replaces one literal occurrence of Search in File.
type Replacement struct {
	File    string `yaml:"file" validate:"required"`
	Search  string `yaml:"search" validate:"required"`
	Replace string `yaml:"replace"`
}

// PatchSet is one unified diff applied to the vendored root.
type PatchSet struct {
	// File is the diff file inside the recipe directory. The loader reads
	// it into Diff.
	File string `yaml:"file" validate:"required_without=Diff"`
	Diff string `yaml:"diff"`

	// Target is the patched file relative to the vendored root. If empty
	// it is taken from the diff header.
	Target string `yaml:"target"`

	// Fuzz is the number of mismatched context lines a hunk tolerates.
	Fuzz int `yaml:"fuzz" validate:"gte=0"`
	// MaxOffset bounds how far from its recorded line a hunk is searched.
	MaxOffset int `yaml:"max_offset" validate:"gte=0"`

	Platforms   []OS   `yaml:"platforms" validate:"dive,oneof=linux darwin windows"`
	Description string `yaml:"description"`
}

// DefaultMaxOffset is the hunk search window used when a PatchSet leaves
// MaxOffset unset.
const DefaultMaxOffset = 100

// Window returns the effective search window of p.
func (p PatchSet) Window() int {
	if p.MaxOffset == 0 {
		return DefaultMaxOffset
	}
	return p.MaxOffset
}

// ToolchainSpec describes how the package drives CMake.
type ToolchainSpec struct {
	// Adapter selects the flag vocabulary: "command-line" or
	// "toolchain-file". The default is "toolchain-file".
	Adapter   string    `yaml:"adapter" validate:"omitempty,oneof=command-line toolchain-file"`
	Generator string    `yaml:"generator"`
	Target    string    `yaml:"target"`
	BuildType BuildType `yaml:"build_type" validate:"omitempty,oneof=Debug Release"`

	Variables         map[string]string        `yaml:"variables"`
	PlatformVariables map[OS]map[string]string `yaml:"platform_variables"`
	Flags             []FlagMapping            `yaml:"flags" validate:"dive"`
}

// FlagMapping maps one option to one toolchain flag.
type FlagMapping struct {
	Option    string `yaml:"option" validate:"required"`
	Define    string `yaml:"define" validate:"required"`
	Platforms []OS   `yaml:"platforms" validate:"dive,oneof=linux darwin windows"`
}

// ArtifactRule copies the files matching Pattern under one root into the
// destination layout.
type ArtifactRule struct {
	Pattern string `yaml:"pattern" validate:"required"`
	// From names the root to search: "source", "checkout", "build",
	// "generators", or a dependency name for imports.
	From   string `yaml:"from" validate:"required"`
	Subdir string `yaml:"subdir"`
	To     string `yaml:"to" validate:"required"`

	// StripPath discards the directory structure below the root.
	StripPath bool `yaml:"strip_path"`
	// Required makes a rule that matches no file an error.
	Required bool `yaml:"required"`

	When      *Condition `yaml:"when"`
	Platforms []OS       `yaml:"platforms" validate:"dive,oneof=linux darwin windows"`
}

// Condition is a predicate over the resolved options of a package.
type Condition struct {
	Option string `yaml:"option" validate:"required"`
	Equals string `yaml:"equals" validate:"required"`
}

// Holds reports whether c is satisfied by opts. A condition on an option
// that does not exist never holds.
func (c *Condition) Holds(opts OptionSet) bool {
	if c == nil {
		return true
	}
	v, ok := opts[c.Option]
	if !ok {
		return false
	}
	if v.Kind() == KindBool {
		want, err := strconv.ParseBool(c.Equals)
		return err == nil && v.Bool() == want
	}
	return v.String() == c.Equals
}
