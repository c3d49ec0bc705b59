package interfaces

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

type placedArg struct {
	name string
	pos  int
	args []string
}

// Args builds the argv (without the binary) for the current inputs.
//
// Leading positional params come first in ascending position, then
// unpositioned params sorted by name, then trailing params in ascending
// (negative) position.
func (i *Interface) Args() ([]string, error) {
	var head, middle, tail []placedArg
	for idx := range i.Spec.Params {
		p := &i.Spec.Params[idx]
		if p.Argstr == "" {
			continue
		}
		v, ok := i.value(p)
		if !ok {
			continue
		}
		args, err := formatArg(p, v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", i.Spec.Name, p.Name, err)
		}
		if len(args) == 0 {
			continue
		}
		pa := placedArg{name: p.Name, pos: p.Position, args: args}
		switch {
		case p.Position > 0:
			head = append(head, pa)
		case p.Position < 0:
			tail = append(tail, pa)
		default:
			middle = append(middle, pa)
		}
	}
	sort.SliceStable(head, func(a, b int) bool { return head[a].pos < head[b].pos })
	sort.SliceStable(middle, func(a, b int) bool { return middle[a].name < middle[b].name })
	sort.SliceStable(tail, func(a, b int) bool { return tail[a].pos < tail[b].pos })

	var out []string
	for _, group := range [][]placedArg{head, middle, tail} {
		for _, pa := range group {
			out = append(out, pa.args...)
		}
	}
	return out, nil
}

// Cmdline returns the full command line for display.
func (i *Interface) Cmdline() (string, error) {
	args, err := i.Args()
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, i.Spec.Command)
	for _, a := range args {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " "), nil
}

// Command builds an exec.Cmd that runs in dir. When binDir is set the binary
// is resolved inside it instead of on PATH.
func (i *Interface) Command(ctx context.Context, dir, binDir string) (*exec.Cmd, error) {
	args, err := i.Args()
	if err != nil {
		return nil, err
	}
	bin := i.Spec.Command
	if binDir != "" {
		bin = filepath.Join(binDir, bin)
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	return cmd, nil
}

func formatArg(p *Param, v any) ([]string, error) {
	tokens := strings.Fields(p.Argstr)

	var vals []any
	switch p.Kind {
	case Bool:
		if !v.(bool) {
			return nil, nil
		}
		return tokens, nil
	case IntList:
		ints := v.([]int)
		if p.Sep != "" {
			strs := make([]string, len(ints))
			for j, n := range ints {
				strs[j] = strconv.Itoa(n)
			}
			vals = []any{strings.Join(strs, p.Sep)}
		} else {
			for _, n := range ints {
				vals = append(vals, n)
			}
		}
	case IntTuple:
		for _, n := range v.([]int) {
			vals = append(vals, n)
		}
	case FileTuple:
		for _, s := range v.([]string) {
			vals = append(vals, s)
		}
	default:
		vals = []any{v}
	}

	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		n := countVerbs(tok)
		if n == 0 {
			out = append(out, tok)
			continue
		}
		if n > len(vals) {
			return nil, fmt.Errorf("argstr %q needs more values than %d", p.Argstr, len(vals))
		}
		out = append(out, fmt.Sprintf(tok, vals[:n]...))
		vals = vals[n:]
	}
	if len(vals) > 0 {
		return nil, fmt.Errorf("argstr %q has %d unused values", p.Argstr, len(vals))
	}
	return out, nil
}

// countVerbs counts formatting verbs in a token, ignoring %%.
func countVerbs(tok string) int {
	n := 0
	for j := 0; j < len(tok); j++ {
		if tok[j] != '%' {
			continue
		}
		if j+1 < len(tok) && tok[j+1] == '%' {
			j++
			continue
		}
		n++
	}
	return n
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`*?;&|<>()") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
