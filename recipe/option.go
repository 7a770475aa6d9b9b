package recipe

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Kind is the domain of an option.
type Kind int

const (
	KindBool Kind = iota + 1
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindEnum:
		return "enum"
	}
	return "invalid"
}

// Value is a typed option value: either a boolean or one member of an enum.
// The zero Value is invalid.
type Value struct {
	kind Kind
	b    bool
	s    string
}

// Bool returns a boolean Value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Enum returns an enum Value.
func Enum(s string) Value {
	return Value{kind: KindEnum, s: s}
}

// Kind returns the domain of v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a value.
func (v Value) IsValid() bool { return v.kind != 0 }

// Bool returns the boolean held by v. It is false for enum values.
func (v Value) Bool() bool { return v.kind == KindBool && v.b }

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindEnum:
		return v.s
	}
	return "<invalid>"
}

// OptionSpec declares one option of a package.
type OptionSpec struct {
	Name    string   `yaml:"name" validate:"required"`
	Type    string   `yaml:"type" validate:"required,oneof=bool enum"`
	Values  []string `yaml:"values" validate:"required_if=Type enum"`
	Default string   `yaml:"default" validate:"required"`

	// Platforms restricts the option to the listed operating systems.
	Platforms []OS `yaml:"platforms" validate:"dive,oneof=linux darwin windows"`
}

// Kind returns the option's domain.
func (o OptionSpec) Kind() Kind {
	switch o.Type {
	case "bool":
		return KindBool
	case "enum":
		return KindEnum
	}
	return 0
}

// Parse converts s to a Value of this option's domain.
func (o OptionSpec) Parse(s string) (Value, error) {
	switch o.Kind() {
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, fmt.Errorf("option %s: %q is not a boolean", o.Name, s)
		}
		return Bool(b), nil
	case KindEnum:
		if !slices.Contains(o.Values, s) {
			return Value{}, fmt.Errorf("option %s: %q is not one of [%s]", o.Name, s, strings.Join(o.Values, " "))
		}
		return Enum(s), nil
	}
	return Value{}, fmt.Errorf("option %s: invalid type %q", o.Name, o.Type)
}

// Accepts reports whether v belongs to this option's domain.
func (o OptionSpec) Accepts(v Value) bool {
	switch o.Kind() {
	case KindBool:
		return v.kind == KindBool
	case KindEnum:
		return v.kind == KindEnum && slices.Contains(o.Values, v.s)
	}
	return false
}

// DefaultValue returns the parsed default.
func (o OptionSpec) DefaultValue() (Value, error) {
	return o.Parse(o.Default)
}

// OptionSet maps option names to values.
type OptionSet map[string]Value

// Clone returns a copy of s.
func (s OptionSet) Clone() OptionSet {
	return maps.Clone(s)
}

// Signature returns a deterministic description of s. Keys are sorted and
// each "name=value" pair is joined with "-".
func (s OptionSet) Signature() string {
	keys := slices.Sorted(maps.Keys(s))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+s[k].String())
	}
	return strings.Join(parts, "-")
}
