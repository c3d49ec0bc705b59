// Package interfaces provides the declarative wrapper engine that turns typed
// parameters into a command-line invocation of an external binary and
// locates the files the binary writes.
package interfaces

import (
	"errors"
	"fmt"
)

// Kind is the value type of a parameter.
type Kind int

const (
	File      Kind = iota // path to a file, formatted with %s
	String                // free text
	Int                   // integer, formatted with %d
	Float                 // float, formatted with %g or %f
	Bool                  // flag: bare argstr when true, nothing when false
	IntList               // variable-length integers joined by Sep
	IntTuple              // fixed-length integers, one verb per element
	FileTuple             // fixed-length paths, one verb per element
	Enum                  // one of Values
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case IntList:
		return "int-list"
	case IntTuple:
		return "int-tuple"
	case FileTuple:
		return "file-tuple"
	case Enum:
		return "enum"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ErrUnknownParam is returned when an input name is not declared by a Spec.
var ErrUnknownParam = errors.New("unknown parameter")

// Param declares one input of a wrapped command.
type Param struct {
	Name   string
	Kind   Kind
	Argstr string // e.g. "-mask %s"; tokens are split on whitespace into argv elements

	// Position places the argument: >0 leading (ascending), <0 trailing
	// (ascending, so -5 precedes -1), 0 unpositioned (sorted by name).
	Position int

	Mandatory bool
	Exists    bool // input file must exist before the run

	Default    any
	UseDefault bool // emit Default when no value is set

	// Derived output names: NameTemplate % basename(NameSource), plus the
	// source extension when KeepExtension is set.
	NameTemplate  string
	NameSource    string
	KeepExtension bool

	Sep      string   // list separator for IntList
	MinLen   int      // list/tuple lower bound, 0 means unchecked
	MaxLen   int      // list/tuple upper bound, 0 means unchecked
	Values   []string // allowed values for Enum
	Xor      []string // mutually exclusive with these params
	Requires []string // only valid when these params are set

	Desc string
}

// OutputField declares a file the command produces.
type OutputField struct {
	Name     string
	From     string // input param holding the path
	Exists   bool   // must exist after a successful run
	Optional bool   // omitted when the input param is unset
	Desc     string
}

// Spec is the full declaration of a wrapped command.
type Spec struct {
	Name    string // registry name, e.g. "DWIDenoise"
	Command string // binary, e.g. "dwidenoise"
	Desc    string
	Params  []Param
	Outputs []OutputField
}

// Param returns the declared parameter with the given name.
func (s *Spec) Param(name string) (*Param, bool) {
	for i := range s.Params {
		if s.Params[i].Name == name {
			return &s.Params[i], true
		}
	}
	return nil, false
}

// Output returns the declared output with the given name.
func (s *Spec) Output(name string) (*OutputField, bool) {
	for i := range s.Outputs {
		if s.Outputs[i].Name == name {
			return &s.Outputs[i], true
		}
	}
	return nil, false
}

// With returns a copy of s whose params are extended by extra.
// Used to mix shared base params into a command's own declaration.
func (s Spec) With(extra ...Param) *Spec {
	params := make([]Param, 0, len(s.Params)+len(extra))
	params = append(params, s.Params...)
	params = append(params, extra...)
	s.Params = params
	return &s
}
