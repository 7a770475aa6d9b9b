package recipe

import (
	"fmt"
	"io/fs"
	"path"
	"slices"
	"sort"
)

// Set is a group of descriptors that reference each other by name.
type Set struct {
	pkgs map[string]*Descriptor
}

// NewSet returns a Set of descs. Names must be unique.
func NewSet(descs ...*Descriptor) (*Set, error) {
	s := &Set{pkgs: make(map[string]*Descriptor, len(descs))}
	for _, d := range descs {
		if _, ok := s.pkgs[d.Name]; ok {
			return nil, fmt.Errorf("duplicate recipe %s", d.Name)
		}
		s.pkgs[d.Name] = d
	}
	return s, nil
}

// LoadSet loads every "<dir>/recipe.yaml" found at the top level of fsys.
func LoadSet(fsys fs.FS) (*Set, error) {
	matches, err := fs.Glob(fsys, path.Join("*", DescriptorFile))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no %s found", DescriptorFile)
	}
	sort.Strings(matches)

	descs := make([]*Descriptor, 0, len(matches))
	for _, m := range matches {
		d, err := Load(fsys, path.Dir(m))
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}
	return NewSet(descs...)
}

// Lookup returns the descriptor called name.
func (s *Set) Lookup(name string) (*Descriptor, bool) {
	d, ok := s.pkgs[name]
	return d, ok
}

// Names returns the sorted package names of s.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.pkgs))
	for n := range s.pkgs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
