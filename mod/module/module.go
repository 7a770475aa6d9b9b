// Package module defines the module.Version type along with support code.
package module

import (
	"fmt"

	"golang.org/x/mod/module"
)

// A Version (for clients, a module.Version) identifies one pinned package:
// its recipe name and its exact version.
type Version struct {
	Name    string // Package name, e.g. "eccodes"
	Version string // Exact version string, e.g. "2.22.1.p3"
}

// String returns "name/version", the form recipes use to reference a package.
func (v Version) String() string {
	return v.Name + "/" + v.Version
}

// EscapePath returns the escaped form of the given package name or version as
// a single valid file system path element. Upper-case letters are escaped
// as "!" followed by the lower-case letter. It fails if elem is not a valid
// path element.
func EscapePath(elem string) (escaped string, err error) {
	escaped, err = module.EscapeVersion(elem)
	if err != nil {
		return "", fmt.Errorf("invalid path element %q: %w", elem, err)
	}
	return escaped, nil
}

// Dir returns the "<name>@<version>" directory element of v, escaped.
func (v Version) Dir() (string, error) {
	name, err := EscapePath(v.Name)
	if err != nil {
		return "", err
	}
	ver, err := EscapePath(v.Version)
	if err != nil {
		return "", err
	}
	return name + "@" + ver, nil
}
