// Package options resolves the effective options of every package in a
// requirement graph.
//
// Resolution is top-down only. A linked option set on the root (see
// recipe.LinkedOptions) flows to every package below it that declares an
// option of the same name, unless a qualified override targets that
// package. Non-linked options keep their defaults unless overridden.
package options

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/997R8V10/aviation-calc-util/recipe"
)

var (
	ErrUnknownPackage     = errors.New("unknown package")
	ErrUnknownOption      = errors.New("unknown option")
	ErrInvalidValue       = errors.New("invalid option value")
	ErrIncompatibleDomain = errors.New("linked option has incompatible domain")
)

// Key addresses one option of one package.
type Key struct {
	Package string
	Option  string
}

func (k Key) String() string {
	return k.Package + ":" + k.Option
}

// Bindings holds the resolved options of every package reachable from a
// root. It is read-only once returned by Resolve.
type Bindings struct {
	root  string
	order []string
	sets  map[string]recipe.OptionSet
}

// Root returns the package the bindings were resolved from.
func (b *Bindings) Root() string { return b.root }

// Packages returns the resolved packages in breadth-first order, root first.
func (b *Bindings) Packages() []string { return slices.Clone(b.order) }

// Of returns a copy of the options resolved for pkg.
func (b *Bindings) Of(pkg string) (recipe.OptionSet, bool) {
	set, ok := b.sets[pkg]
	if !ok {
		return nil, false
	}
	return set.Clone(), true
}

// Get returns the value bound to (pkg, option).
func (b *Bindings) Get(pkg, option string) (recipe.Value, bool) {
	v, ok := b.sets[pkg][option]
	return v, ok
}

// String renders the bindings one "pkg:option=value" per line, packages in
// resolution order and options sorted.
func (b *Bindings) String() string {
	var sb strings.Builder
	for _, pkg := range b.order {
		set := b.sets[pkg]
		for _, name := range slices.Sorted(maps.Keys(set)) {
			fmt.Fprintf(&sb, "%s:%s=%s\n", pkg, name, set[name])
		}
	}
	return sb.String()
}

// Graph is the view of a recipe set the resolver needs.
type Graph interface {
	Lookup(name string) (*recipe.Descriptor, bool)
}

// Resolve computes the option bindings of root and every package it
// transitively requires on profile p.
//
// choices are the root's own option values. overrides are qualified
// assignments. Overrides declared by the root descriptor are applied
// first, then the explicit overrides, so the latter win. Every input is
// validated before any value is assigned.
func Resolve(g Graph, root string, choices map[string]string, overrides []recipe.Override, p recipe.Profile) (*Bindings, error) {
	rootDesc, ok := g.Lookup(root)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPackage, root)
	}

	reach, err := reachable(g, rootDesc, p)
	if err != nil {
		return nil, err
	}
	if err := checkLinkedDomains(reach, p); err != nil {
		return nil, err
	}

	table := make(map[Key]recipe.Value)
	for name, raw := range choices {
		if err := bind(table, reach, Key{Package: root, Option: name}, raw, p); err != nil {
			return nil, err
		}
	}
	for _, o := range slices.Concat(rootDesc.Overrides, overrides) {
		if err := bind(table, reach, Key{Package: o.Package, Option: o.Option}, o.Value, p); err != nil {
			return nil, err
		}
	}

	b := &Bindings{root: root, sets: make(map[string]recipe.OptionSet)}

	type item struct {
		desc   *recipe.Descriptor
		linked recipe.OptionSet
	}
	queue := []item{{desc: rootDesc, linked: recipe.OptionSet{}}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		d := it.desc
		if _, done := b.sets[d.Name]; done {
			continue
		}

		set, err := d.Defaults(p)
		if err != nil {
			return nil, err
		}
		linked := it.linked.Clone()
		for name := range set {
			if v, ok := linked[name]; ok {
				set[name] = v
			}
			if v, ok := table[Key{Package: d.Name, Option: name}]; ok {
				set[name] = v
			}
			if slices.Contains(recipe.LinkedOptions, name) {
				linked[name] = set[name]
			}
		}
		b.sets[d.Name] = set
		b.order = append(b.order, d.Name)

		for _, r := range d.RequiresFor(p) {
			if r.Tool {
				continue
			}
			dep := reach[r.Name]
			if _, done := b.sets[dep.Name]; !done {
				queue = append(queue, item{desc: dep, linked: linked})
			}
		}
	}
	return b, nil
}

// reachable collects every non-tool package reachable from root on p.
func reachable(g Graph, root *recipe.Descriptor, p recipe.Profile) (map[string]*recipe.Descriptor, error) {
	reach := map[string]*recipe.Descriptor{root.Name: root}
	stack := []*recipe.Descriptor{root}
	for len(stack) > 0 {
		d := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, r := range d.RequiresFor(p) {
			if r.Tool {
				continue
			}
			if _, ok := reach[r.Name]; ok {
				continue
			}
			dep, ok := g.Lookup(r.Name)
			if !ok {
				return nil, fmt.Errorf("%w: %s (required by %s)", ErrUnknownPackage, r.Name, d.Name)
			}
			reach[r.Name] = dep
			stack = append(stack, dep)
		}
	}
	return reach, nil
}

func checkLinkedDomains(reach map[string]*recipe.Descriptor, p recipe.Profile) error {
	for _, name := range slices.Sorted(maps.Keys(reach)) {
		for _, linked := range recipe.LinkedOptions {
			o, ok := reach[name].Option(p, linked)
			if ok && o.Kind() != recipe.KindBool {
				return fmt.Errorf("%w: %s:%s is %s, want bool", ErrIncompatibleDomain, name, linked, o.Type)
			}
		}
	}
	return nil
}

func bind(table map[Key]recipe.Value, reach map[string]*recipe.Descriptor, k Key, raw string, p recipe.Profile) error {
	d, ok := reach[k.Package]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPackage, k)
	}
	o, ok := d.Option(p, k.Option)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOption, k)
	}
	v, err := o.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidValue, k, err)
	}
	table[k] = v
	return nil
}

// ParseAssignments splits "option=value" and "package:option=value" pairs
// into unqualified choices and qualified overrides.
func ParseAssignments(args []string) (choices map[string]string, overrides []recipe.Override, err error) {
	choices = make(map[string]string)
	for _, arg := range args {
		lhs, value, ok := strings.Cut(arg, "=")
		if !ok || lhs == "" || value == "" {
			return nil, nil, fmt.Errorf("invalid option assignment %q: want [package:]option=value", arg)
		}
		if pkg, opt, qualified := strings.Cut(lhs, ":"); qualified {
			if pkg == "" || opt == "" {
				return nil, nil, fmt.Errorf("invalid option assignment %q: want package:option=value", arg)
			}
			overrides = append(overrides, recipe.Override{Package: pkg, Option: opt, Value: value})
			continue
		}
		choices[lhs] = value
	}
	return choices, overrides, nil
}
