package interfaces

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
)

// Validate checks the inputs against the Spec: mandatory params, xor groups,
// enum membership, list bounds and input file existence. All problems are
// reported together.
func (i *Interface) Validate() error {
	var errs []error
	for idx := range i.Spec.Params {
		p := &i.Spec.Params[idx]
		v, present := i.value(p)

		satisfied := present
		if p.Kind == Bool {
			satisfied = i.IsSet(p.Name)
		}
		if p.Mandatory && !satisfied {
			switch {
			case len(p.Xor) == 0:
				errs = append(errs, fmt.Errorf("missing mandatory input %s", p.Name))
			case !i.anySet(p.Xor) && firstOf(p.Name, p.Xor):
				group := append([]string{p.Name}, p.Xor...)
				slices.Sort(group)
				errs = append(errs, fmt.Errorf("one of %s is required", strings.Join(group, ", ")))
			}
		}

		if i.IsSet(p.Name) {
			for _, req := range p.Requires {
				if !i.IsSet(req) {
					errs = append(errs, fmt.Errorf("input %s requires %s", p.Name, req))
				}
			}
			for _, other := range p.Xor {
				// report each pair once
				if i.IsSet(other) && p.Name < other {
					errs = append(errs, fmt.Errorf("inputs %s and %s are mutually exclusive", p.Name, other))
				}
			}
		}

		if !present {
			continue
		}
		if err := checkValue(p, v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
		}
		if p.Exists && i.IsSet(p.Name) {
			for _, path := range paths(v) {
				if _, err := os.Stat(path); err != nil {
					errs = append(errs, fmt.Errorf("%s: input file %s does not exist", p.Name, path))
				}
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s: %w", i.Spec.Name, errors.Join(errs...))
	}
	return nil
}

// mandatory xor groups are satisfied by any member
func (i *Interface) anySet(names []string) bool {
	for _, n := range names {
		if i.IsSet(n) {
			return true
		}
	}
	return false
}

func firstOf(name string, others []string) bool {
	for _, o := range others {
		if o < name {
			return false
		}
	}
	return true
}

func checkValue(p *Param, v any) error {
	switch p.Kind {
	case Enum:
		if !slices.Contains(p.Values, v.(string)) {
			return fmt.Errorf("%q is not one of %s", v, strings.Join(p.Values, ", "))
		}
	case IntList, IntTuple:
		if err := checkLen(p, len(v.([]int))); err != nil {
			return err
		}
	case FileTuple:
		if err := checkLen(p, len(v.([]string))); err != nil {
			return err
		}
	}
	return nil
}

func checkLen(p *Param, n int) error {
	if p.MinLen > 0 && n < p.MinLen {
		return fmt.Errorf("needs at least %d values, got %d", p.MinLen, n)
	}
	if p.MaxLen > 0 && n > p.MaxLen {
		return fmt.Errorf("accepts at most %d values, got %d", p.MaxLen, n)
	}
	return nil
}

func paths(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	}
	return nil
}
