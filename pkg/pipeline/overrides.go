package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"trampolino/pkg/engine"
)

// Override sets one node input from the command line:
// "node.param=value" or "workflow.node.param=value".
type Override struct {
	Workflow string // empty matches any workflow with the node
	Node     string
	Param    string
	Value    string
}

func (o Override) String() string {
	key := o.Node + "." + o.Param
	if o.Workflow != "" {
		key = o.Workflow + "." + key
	}
	return key + "=" + o.Value
}

// ParseOverride parses a single --set value.
func ParseOverride(s string) (Override, error) {
	idx := strings.Index(s, "=")
	if idx <= 0 {
		return Override{}, fmt.Errorf("invalid --set %q: want node.param=value", s)
	}
	key, value := s[:idx], s[idx+1:]
	parts := strings.Split(key, ".")
	for _, p := range parts {
		if p == "" {
			return Override{}, fmt.Errorf("invalid --set %q: empty name in %q", s, key)
		}
	}
	switch len(parts) {
	case 2:
		return Override{Node: parts[0], Param: parts[1], Value: value}, nil
	case 3:
		return Override{Workflow: parts[0], Node: parts[1], Param: parts[2], Value: value}, nil
	}
	return Override{}, fmt.Errorf("invalid --set %q: want node.param=value or workflow.node.param=value", s)
}

// ParseOverrides parses every --set value. A later value for the same key
// replaces an earlier one.
func ParseOverrides(values []string) ([]Override, error) {
	seen := make(map[string]int)
	var out []Override
	for _, v := range values {
		o, err := ParseOverride(v)
		if err != nil {
			return nil, err
		}
		key := o.Workflow + "." + o.Node + "." + o.Param
		if i, ok := seen[key]; ok {
			out[i] = o
			continue
		}
		seen[key] = len(out)
		out = append(out, o)
	}
	return out, nil
}

// CheckOverrides rejects overrides that name no node of the given stages.
// It runs before anything executes, so a typo costs nothing.
func CheckOverrides(overrides []Override, stages []Stage) error {
	known := make(map[string]bool)
	for _, st := range stages {
		for _, n := range st.Nodes() {
			known[st.Name()+"."+n] = true
			known["."+n] = true
		}
	}
	var bad []string
	for _, o := range overrides {
		if !known[o.Workflow+"."+o.Node] {
			bad = append(bad, o.String())
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return fmt.Errorf("--set names no node of the requested commands: %s", strings.Join(bad, ", "))
	}
	return nil
}

// applyOverrides records matching overrides on wf's nodes. Overrides for
// nodes that this particular build left out are skipped.
func applyOverrides(wf *engine.Workflow, overrides []Override) error {
	for _, o := range overrides {
		if o.Workflow != "" && o.Workflow != wf.Name {
			continue
		}
		node, ok := wf.Node(o.Node)
		if !ok {
			continue
		}
		if err := node.Override(o.Param, o.Value); err != nil {
			return fmt.Errorf("--set %s: %w", o, err)
		}
	}
	return nil
}
