package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"trampolino/pkg/interfaces"
	_ "trampolino/pkg/interfaces/mrtrix3" // registers the MRtrix3 wrappers
)

// cmdlineInfo is the --json output of cmdline.
type cmdlineInfo struct {
	Name    string   `json:"name"`
	Cmdline string   `json:"cmdline"`
	Inputs  []string `json:"inputs"`
}

type toolInfo struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
}

func listCommand() (*cobra.Command, func([]string) (step, error)) {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the wrapped tools",
	}
	return cmd, func(args []string) (step, error) {
		if len(args) > 0 {
			return step{}, errNoArgs
		}
		return step{info: (*app).list}, nil
	}
}

func (a *app) list() error {
	var tools []toolInfo
	for _, name := range interfaces.Names() {
		s, _ := interfaces.Lookup(name)
		tools = append(tools, toolInfo{Name: s.Name, Command: s.Command, Description: s.Desc})
	}
	if a.opts.json {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(tools)
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCOMMAND\tDESCRIPTION")
	for _, t := range tools {
		fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, t.Command, t.Description)
	}
	return w.Flush()
}

func cmdlineCommand() (*cobra.Command, func([]string) (step, error)) {
	cmd := &cobra.Command{
		Use:   "cmdline NAME [key=value]...",
		Short: "Print the command line of one tool",
		Long: `cmdline builds the command line a tool would run with the given inputs,
without checking that input files exist. NAME is a wrapper name from list or
the binary name.

  trampolino cmdline tckgen in_file=wm.mif seed_image=mask.mif select=1000`,
	}
	return cmd, func(args []string) (step, error) {
		if len(args) == 0 {
			return step{}, fmt.Errorf("NAME required")
		}
		spec, ok := interfaces.Lookup(args[0])
		if !ok {
			return step{}, fmt.Errorf("unknown tool %q (see list)", args[0])
		}
		iface := interfaces.New(spec)
		for _, kv := range args[1:] {
			key, value, ok := strings.Cut(kv, "=")
			if !ok || key == "" {
				return step{}, fmt.Errorf("invalid input %q: want key=value", kv)
			}
			if err := iface.Parse(key, value); err != nil {
				return step{}, err
			}
		}
		line, err := iface.Cmdline()
		if err != nil {
			return step{}, err
		}
		info := cmdlineInfo{Name: spec.Name, Cmdline: line, Inputs: iface.SetNames()}
		return step{info: func(a *app) error {
			if a.opts.json {
				return json.NewEncoder(a.out).Encode(info)
			}
			_, err := fmt.Fprintln(a.out, line)
			return err
		}}, nil
	}
}
