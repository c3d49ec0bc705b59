package interfaces

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Inputs maps parameter names to values.
type Inputs map[string]any

// Interface is a Spec bound to a set of input values.
type Interface struct {
	Spec   *Spec
	inputs Inputs
}

// New creates an Interface with no inputs set.
func New(spec *Spec) *Interface {
	return &Interface{Spec: spec, inputs: make(Inputs)}
}

// Clone returns an independent copy sharing the same Spec.
func (i *Interface) Clone() *Interface {
	c := New(i.Spec)
	for k, v := range i.inputs {
		c.inputs[k] = v
	}
	return c
}

// Set type-checks and stores an input value.
func (i *Interface) Set(name string, value any) error {
	p, ok := i.Spec.Param(name)
	if !ok {
		return fmt.Errorf("%s: %w: %s", i.Spec.Name, ErrUnknownParam, name)
	}
	v, err := coerce(p, value)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", i.Spec.Name, name, err)
	}
	i.inputs[name] = v
	return nil
}

// Parse converts text to the parameter's kind and stores it.
func (i *Interface) Parse(name, text string) error {
	p, ok := i.Spec.Param(name)
	if !ok {
		return fmt.Errorf("%s: %w: %s", i.Spec.Name, ErrUnknownParam, name)
	}
	v, err := parseText(p, text)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", i.Spec.Name, name, err)
	}
	i.inputs[name] = v
	return nil
}

// IsSet reports whether name was explicitly set. A false Bool counts as unset.
func (i *Interface) IsSet(name string) bool {
	v, ok := i.inputs[name]
	if !ok {
		return false
	}
	if b, isBool := v.(bool); isBool {
		return b
	}
	return true
}

// Get returns the effective value of an input: the explicit value, the
// default when UseDefault is set, or a derived filename.
func (i *Interface) Get(name string) (any, bool) {
	p, ok := i.Spec.Param(name)
	if !ok {
		return nil, false
	}
	return i.value(p)
}

// Inputs returns a copy of the explicitly set inputs.
func (i *Interface) Inputs() Inputs {
	out := make(Inputs, len(i.inputs))
	for k, v := range i.inputs {
		out[k] = v
	}
	return out
}

// SetNames returns the names of explicitly set inputs, sorted.
func (i *Interface) SetNames() []string {
	names := make([]string, 0, len(i.inputs))
	for k := range i.inputs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (i *Interface) value(p *Param) (any, bool) {
	if v, ok := i.inputs[p.Name]; ok {
		return v, true
	}
	if p.NameTemplate != "" {
		if name, ok := i.derive(p); ok {
			return name, true
		}
	}
	if p.UseDefault && p.Default != nil {
		v, err := coerce(p, p.Default)
		if err == nil {
			return v, true
		}
	}
	return nil, false
}

func coerce(p *Param, value any) (any, error) {
	switch p.Kind {
	case File, String, Enum:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("want string for %s, got %T", p.Kind, value)
		}
		return s, nil
	case Int:
		switch v := value.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		}
		return nil, fmt.Errorf("want int, got %T", value)
	case Float:
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		}
		return nil, fmt.Errorf("want float, got %T", value)
	case Bool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("want bool, got %T", value)
		}
		return b, nil
	case IntList, IntTuple:
		switch v := value.(type) {
		case []int:
			return append([]int(nil), v...), nil
		case int:
			return []int{v}, nil
		}
		return nil, fmt.Errorf("want []int, got %T", value)
	case FileTuple:
		v, ok := value.([]string)
		if !ok {
			return nil, fmt.Errorf("want []string, got %T", value)
		}
		return append([]string(nil), v...), nil
	}
	return nil, fmt.Errorf("unsupported kind %s", p.Kind)
}

func parseText(p *Param, text string) (any, error) {
	switch p.Kind {
	case File, String, Enum:
		return text, nil
	case Int:
		n, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("invalid int %q", text)
		}
		return n, nil
	case Float:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q", text)
		}
		return f, nil
	case Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("invalid bool %q", text)
		}
		return b, nil
	case IntList, IntTuple:
		var out []int
		for _, part := range strings.Split(text, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return nil, fmt.Errorf("invalid int %q in list", part)
			}
			out = append(out, n)
		}
		return out, nil
	case FileTuple:
		parts := strings.Split(text, ",")
		for j := range parts {
			parts[j] = strings.TrimSpace(parts[j])
		}
		return parts, nil
	}
	return nil, fmt.Errorf("unsupported kind %s", p.Kind)
}
