// Package cli implements the trampolino command line: global flags that
// seed a Session, followed by commands that run left to right against it.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"trampolino/pkg/engine"
	"trampolino/pkg/envelope"
	"trampolino/pkg/lock"
	"trampolino/pkg/pipeline"
	"trampolino/pkg/settings"
	"trampolino/pkg/workspace"
)

var version = "0.1.0"

// globalOptions are the flags accepted before the first command.
type globalOptions struct {
	inFile, bvec, bval, anat, odf, seed string

	results string
	workDir string
	binDir  string
	nprocs  int
	dryRun  bool
	useLock bool
	sets    []string
	verbose bool
	json    bool
}

// app carries what a single invocation needs.
type app struct {
	out, errOut io.Writer
	opts        globalOptions

	// runner replaces the process runner, for tests.
	runner engine.Runner
}

// NewRootCommand builds the root command. Commands are not attached as
// cobra subcommands: they chain, so the root splits its arguments itself.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	return newApp(out, errOut).rootCommand()
}

func newApp(out, errOut io.Writer) *app {
	return &app{out: out, errOut: errOut}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "trampolino [global flags] COMMAND [flags] [COMMAND [flags]]...",
		Short: "Chained MRtrix3 diffusion MRI workflows",
		Long: `trampolino runs diffusion MRI workflows built from MRtrix3 and FSL tools.
Commands chain left to right and share their results:

  recon        estimate fibre orientation distributions from DWI data
  track        streamline tractography on the FOD
  filter       SIFT filtering of the tractogram
  connectome   connectivity matrix from the tractogram and a parcellation
  list         list the wrapped tools
  cmdline      print the command line of one tool: cmdline NAME key=value...

Example:
  trampolino -i dwi.mif -v bvecs -b bvals -r derivatives recon track filter`,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return a.run(cmd.Context(), args)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	f := root.Flags()
	f.SetInterspersed(false)
	f.StringVarP(&a.opts.inFile, "in_file", "i", "", "input DWI image")
	f.StringVarP(&a.opts.bvec, "bvec", "v", "", "FSL bvecs file")
	f.StringVarP(&a.opts.bval, "bval", "b", "", "FSL bvals file")
	f.StringVarP(&a.opts.anat, "anat", "a", "", "anatomical (T1) image, enables ACT")
	f.StringVarP(&a.opts.odf, "odf", "o", "", "FOD image, skips recon")
	f.StringVarP(&a.opts.seed, "seed", "s", "", "tracking seed image")
	f.StringVarP(&a.opts.results, "results", "r", "", "results base directory (default from settings)")
	f.StringVarP(&a.opts.workDir, "workdir", "w", "", "node working directory root (default from settings)")
	f.StringVar(&a.opts.binDir, "bindir", "", "MRtrix3 binary directory (default PATH)")
	f.IntVarP(&a.opts.nprocs, "nprocs", "n", 0, "nodes to run at once (default from settings)")
	f.BoolVar(&a.opts.dryRun, "dry-run", false, "print commands and predicted outputs without running anything")
	f.BoolVar(&a.opts.useLock, "lock", false, "wait for other runs writing the same results directory")
	f.StringArrayVar(&a.opts.sets, "set", nil, "override a node input: node.param=value (repeatable)")
	f.BoolVar(&a.opts.verbose, "verbose", false, "debug logging, including tool output")
	f.BoolVar(&a.opts.json, "json", false, "print a JSON report instead of progress")
	return root
}

// Execute runs the command line and returns the first error.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCommand(os.Stdout, os.Stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// step is one parsed command of the chain.
type step struct {
	name  string
	stage pipeline.Stage
	tweak func(*pipeline.Options)
	info  func(a *app) error
}

// split cuts args into per-command segments and parses each command's
// flags. A command name only starts a new segment where it is not the
// value of the previous flag. Every command is checked before anything runs.
func (a *app) split(args []string) ([]step, error) {
	var steps []step
	for i := 0; i < len(args); {
		name := args[i]
		factory, ok := commands[name]
		if !ok {
			return nil, fmt.Errorf("unknown command %q (want one of %s)", name, strings.Join(commandNames(), ", "))
		}
		cmd, prepare := factory()
		// A runnable command gets the flag usage in its help.
		cmd.Run = func(*cobra.Command, []string) {}
		cmd.SetOut(a.out)
		cmd.SetErr(a.errOut)
		cmd.InitDefaultHelpFlag()

		j := i + 1
		for j < len(args) {
			if _, isCmd := commands[args[j]]; isCmd {
				break
			}
			if takesValue(cmd.Flags(), args[j]) {
				j++
			}
			j++
		}
		if j > len(args) {
			j = len(args)
		}
		if err := cmd.ParseFlags(args[i+1 : j]); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if help, _ := cmd.Flags().GetBool("help"); help {
			steps = append(steps, step{name: name, info: func(*app) error { return cmd.Help() }})
		} else {
			st, err := prepare(cmd.Flags().Args())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			st.name = name
			steps = append(steps, st)
		}
		i = j
	}
	return steps, nil
}

// takesValue reports whether arg is a flag of fs whose value is the next
// argument: "--tck x.tck" or "-t x.tck", but not "--tck=x.tck" or a bool.
func takesValue(fs *pflag.FlagSet, arg string) bool {
	var f *pflag.Flag
	switch {
	case strings.HasPrefix(arg, "--"):
		if strings.Contains(arg, "=") {
			return false
		}
		f = fs.Lookup(arg[2:])
	case strings.HasPrefix(arg, "-") && len(arg) == 2:
		f = fs.ShorthandLookup(arg[1:])
	}
	return f != nil && f.NoOptDefVal == ""
}

func (a *app) run(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	steps, err := a.split(args)
	if err != nil {
		return err
	}

	cfg, found, err := settings.LoadWithFallback()
	if err != nil {
		settings.PrintSetupInstructions(a.errOut)
		return fmt.Errorf("settings: %w", err)
	}
	a.applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	log, err := newLogger(a.errOut, cfg.LogLevel, a.opts.verbose)
	if err != nil {
		return err
	}
	if !found {
		log.WithField("path", settings.GetConfigPath()).Debug("no settings file, using defaults")
	}

	var stages []pipeline.Stage
	for _, st := range steps {
		if st.stage != nil {
			stages = append(stages, st.stage)
		}
	}
	overrides, err := pipeline.ParseOverrides(a.opts.sets)
	if err != nil {
		return err
	}
	if err := pipeline.CheckOverrides(overrides, stages); err != nil {
		return err
	}

	if len(stages) == 0 {
		for _, st := range steps {
			if err := st.info(a); err != nil {
				return err
			}
		}
		return nil
	}

	session := a.session(cfg)
	if err := session.Absolutize(); err != nil {
		return err
	}

	progressOut := a.out
	if a.opts.json {
		progressOut = nil
	}
	lockOut := a.out
	if a.opts.json {
		lockOut = a.errOut
	}
	fl, err := lock.Acquire(session.ResultsDir, a.opts.useLock, lock.Options{Out: lockOut})
	if err != nil {
		return err
	}
	defer fl.Release()

	ws, err := workspace.New(cfg.WorkDir)
	if err != nil {
		return fmt.Errorf("workspace: %w", err)
	}
	eng := &engine.Engine{
		Workspace: ws,
		Runner:    a.runner,
		Log:       log,
		Out:       progressOut,
		BinDir:    cfg.BinDir,
		NProcs:    cfg.NProcs,
		DryRun:    a.opts.dryRun,
	}
	base := pipeline.OptionsFromSettings(cfg)
	base.DryRun = a.opts.dryRun
	base.Overrides = overrides
	base.Log = log
	p := &pipeline.Pipeline{Engine: eng, Session: session}

	if !a.opts.json {
		printBanner(a.out, ws.JobID, session, steps, cfg, a.opts, base)
	}
	start := time.Now()
	c := engine.NewContext(ctx, session.Inputs())

	var runErr error
	for _, st := range steps {
		if st.stage == nil {
			if runErr = st.info(a); runErr != nil {
				break
			}
			continue
		}
		p.Options = base
		if st.tweak != nil {
			st.tweak(&p.Options)
		}
		if runErr = p.Run(c, st.stage); runErr != nil {
			break
		}
	}
	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}

	if a.opts.json {
		if err := writeReport(a.out, ws.JobID, session, p.Results(), runErr); err != nil {
			return errors.Join(runErr, err)
		}
	} else {
		printRunSummary(a.out, ws, session, start, runErr)
	}
	log.WithField("job", ws.JobID).WithField("status", reportStatus(p.Results(), runErr)).Debug("run finished")
	return runErr
}

// applyFlags lets command-line flags win over settings and environment.
func (a *app) applyFlags(cfg *settings.Settings) {
	if a.opts.results != "" {
		cfg.ResultsDir = a.opts.results
	}
	if a.opts.workDir != "" {
		cfg.WorkDir = a.opts.workDir
	}
	if a.opts.binDir != "" {
		cfg.BinDir = a.opts.binDir
	}
	if a.opts.nprocs != 0 {
		cfg.NProcs = a.opts.nprocs
	}
}

func (a *app) session(cfg *settings.Settings) *pipeline.Session {
	return &pipeline.Session{
		InFile:     a.opts.inFile,
		BVec:       a.opts.bvec,
		BVal:       a.opts.bval,
		Anat:       a.opts.anat,
		ODF:        a.opts.odf,
		Seed:       a.opts.seed,
		LUT:        cfg.Labels,
		ResultsDir: cfg.ResultsDir,
	}
}

func reportStatus(results []*engine.Result, err error) envelope.Status {
	if err != nil {
		return envelope.StatusFailure
	}
	for _, r := range results {
		if r.Summary.Status != envelope.StatusSuccess {
			return r.Summary.Status
		}
	}
	return envelope.StatusSuccess
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
