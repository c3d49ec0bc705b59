package interfaces

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// Outputs resolves declared outputs to absolute paths under dir.
// Optional outputs whose source input is unset are omitted.
func (i *Interface) Outputs(dir string) (map[string]string, error) {
	out := make(map[string]string, len(i.Spec.Outputs))
	for _, o := range i.Spec.Outputs {
		p, ok := i.Spec.Param(o.From)
		if !ok {
			return nil, fmt.Errorf("%s: output %s reads undeclared input %s", i.Spec.Name, o.Name, o.From)
		}
		v, ok := i.value(p)
		if !ok {
			if o.Optional {
				continue
			}
			return nil, fmt.Errorf("%s: output %s has no value (input %s unset)", i.Spec.Name, o.Name, o.From)
		}
		path, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s: output %s is not a path", i.Spec.Name, o.Name)
		}
		out[o.Name] = absUnder(dir, path)
	}
	return out, nil
}

// CheckOutputs verifies that every output declared with Exists is on disk.
func (i *Interface) CheckOutputs(dir string) error {
	outs, err := i.Outputs(dir)
	if err != nil {
		return err
	}
	var missing []string
	for _, o := range i.Spec.Outputs {
		path, ok := outs[o.Name]
		if !ok || !o.Exists {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, path)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%s did not produce: %v", i.Spec.Command, missing)
	}
	return nil
}

func absUnder(dir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if dir == "" {
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return filepath.Join(dir, path)
}
