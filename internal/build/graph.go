package build

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/997R8V10/aviation-calc-util/recipe"
)

var (
	ErrCycle       = errors.New("dependency cycle")
	ErrUnpinned    = errors.New("requirement does not match any recipe")
	ErrMissingTool = errors.New("required tool not found")
)

// ToolLocator finds the executables of build-time tools.
type ToolLocator interface {
	LookPath(binary string) (string, error)
}

// PathLocator searches PATH.
type PathLocator struct{}

func (PathLocator) LookPath(binary string) (string, error) {
	return exec.LookPath(binary)
}

// Plan is a validated recipe set rooted at one package.
type Plan struct {
	// Order lists the packages to build, dependencies before dependents.
	Order []*recipe.Descriptor
	// Tools are the tool requirements active on the profile, located
	// but not built.
	Tools []recipe.Requirement
}

// Names returns the package names of p.Order.
func (p *Plan) Names() []string {
	names := make([]string, len(p.Order))
	for i, d := range p.Order {
		names[i] = d.Name
	}
	return names
}

// Graph validates the graph below root on p and returns its build order.
// Tools are listed but not located.
func Graph(set *recipe.Set, root string, p recipe.Profile) (*Plan, error) {
	return constructBuildList(set, root, p)
}

// constructBuildList validates the graph below root and returns it in
// build order. Requirements are visited in declaration order, so siblings
// keep the order their dependent lists them in.
func constructBuildList(set *recipe.Set, root string, p recipe.Profile) (*Plan, error) {
	rootDesc, ok := set.Lookup(root)
	if !ok {
		return nil, &Error{Phase: PhaseValidate, Package: root, Err: fmt.Errorf("%w: no recipe named %s", ErrUnpinned, root)}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)
	plan := &Plan{}
	toolSeen := make(map[string]bool)
	var path []string

	var visit func(d *recipe.Descriptor) error
	visit = func(d *recipe.Descriptor) error {
		switch state[d.Name] {
		case visiting:
			i := 0
			for path[i] != d.Name {
				i++
			}
			cycle := append(path[i:], d.Name)
			return &Error{Phase: PhaseValidate, Package: d.Name, Err: fmt.Errorf("%w: %s", ErrCycle, strings.Join(cycle, " -> "))}
		case done:
			return nil
		}
		if err := d.Validate(); err != nil {
			return &Error{Phase: PhaseValidate, Package: d.Name, Err: err}
		}
		state[d.Name] = visiting
		path = append(path, d.Name)

		for _, r := range d.RequiresFor(p) {
			dep, ok := set.Lookup(r.Name)
			if r.Tool {
				if ok && dep.Version != r.Version {
					return &Error{Phase: PhaseValidate, Package: d.Name, Err: fmt.Errorf("%w: %s (have %s)", ErrUnpinned, r.Module(), dep.Version)}
				}
				if !toolSeen[r.Name] {
					toolSeen[r.Name] = true
					plan.Tools = append(plan.Tools, r)
				}
				continue
			}
			if !ok {
				return &Error{Phase: PhaseValidate, Package: d.Name, Err: fmt.Errorf("%w: %s", ErrUnpinned, r.Module())}
			}
			if dep.Version != r.Version {
				return &Error{Phase: PhaseValidate, Package: d.Name, Err: fmt.Errorf("%w: %s (have %s)", ErrUnpinned, r.Module(), dep.Version)}
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		state[d.Name] = done
		if !d.IsTool() {
			plan.Order = append(plan.Order, d)
		}
		return nil
	}
	if err := visit(rootDesc); err != nil {
		return nil, err
	}
	return plan, nil
}

// locateTools checks that every tool of plan exists.
func locateTools(plan *Plan, tools ToolLocator) error {
	for _, t := range plan.Tools {
		if _, err := tools.LookPath(t.Binary); err != nil {
			return &Error{Phase: PhaseValidate, Package: t.Name, Err: fmt.Errorf("%w: %s (%s): %v", ErrMissingTool, t.Binary, t.Module(), err)}
		}
	}
	return nil
}

// dependencies returns the packages d transitively requires on p, in
// build order.
func dependencies(set *recipe.Set, d *recipe.Descriptor, p recipe.Profile) []string {
	seen := make(map[string]bool)
	var deps []string
	var walk func(d *recipe.Descriptor)
	walk = func(d *recipe.Descriptor) {
		for _, r := range d.RequiresFor(p) {
			if r.Tool || seen[r.Name] {
				continue
			}
			seen[r.Name] = true
			if dep, ok := set.Lookup(r.Name); ok {
				walk(dep)
			}
			deps = append(deps, r.Name)
		}
	}
	walk(d)
	return deps
}
