package recipe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"slices"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DescriptorFile is the name of the recipe file inside a recipe directory.
const DescriptorFile = "recipe.yaml"

var validate = validator.New()

// Parse decodes a recipe file and validates it. Unknown fields are errors.
func Parse(data []byte) (*Descriptor, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var d Descriptor
	if err := dec.Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty recipe")
		}
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks d against its schema and the cross-field rules the
// schema tags cannot express.
func (d *Descriptor) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("recipe %s: %w", d.Name, err)
	}

	seen := make(map[string]bool)
	for _, o := range d.Options {
		// The same name may be declared once per disjoint platform list,
		// but a plain duplicate is a mistake.
		key := o.Name + fmt.Sprint(o.Platforms)
		if seen[key] {
			return fmt.Errorf("recipe %s: duplicate option %s", d.Name, o.Name)
		}
		seen[key] = true
		if _, err := o.DefaultValue(); err != nil {
			return fmt.Errorf("recipe %s: default: %w", d.Name, err)
		}
	}

	if s := d.Source; s != nil {
		n := 0
		for _, set := range []bool{s.URL != "", s.Git != "", s.Local} {
			if set {
				n++
			}
		}
		if n != 1 {
			return fmt.Errorf("recipe %s: source needs exactly one of url, git or local", d.Name)
		}
	}

	for _, f := range d.Toolchain.Flags {
		if !d.declares(f.Option) {
			return fmt.Errorf("recipe %s: flag %s maps undeclared option %s", d.Name, f.Define, f.Option)
		}
	}
	for _, r := range slices.Concat(d.Artifacts, d.Imports) {
		if r.When != nil && !d.declares(r.When.Option) {
			return fmt.Errorf("recipe %s: rule %s depends on undeclared option %s", d.Name, r.Pattern, r.When.Option)
		}
	}
	return nil
}

func (d *Descriptor) declares(name string) bool {
	return slices.ContainsFunc(d.Options, func(o OptionSpec) bool { return o.Name == name })
}

// Load reads the recipe in directory dir of fsys, including the diff files
// its patch sets reference.
func Load(fsys fs.FS, dir string) (*Descriptor, error) {
	data, err := fs.ReadFile(fsys, path.Join(dir, DescriptorFile))
	if err != nil {
		return nil, err
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path.Join(dir, DescriptorFile), err)
	}
	files, err := fs.Sub(fsys, dir)
	if err != nil {
		return nil, err
	}
	d.Files = files

	for i := range d.Patches {
		p := &d.Patches[i]
		if p.Diff != "" {
			continue
		}
		diff, err := fs.ReadFile(files, p.File)
		if err != nil {
			return nil, fmt.Errorf("recipe %s: patch: %w", d.Name, err)
		}
		p.Diff = string(diff)
	}
	return d, nil
}
