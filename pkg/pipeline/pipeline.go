package pipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"trampolino/pkg/engine"
	"trampolino/pkg/interfaces"
	"trampolino/pkg/settings"
)

// DefaultShellTolerance groups b-values closer than this into one shell.
const DefaultShellTolerance = 100.0

// Stage is one chainable command. Build turns the session into a
// workflow; Apply copies the sunk results back into the session.
type Stage interface {
	Name() string
	Nodes() []string // every node name Build may create
	Build(s *Session, o *Options) (*engine.Workflow, error)
	Apply(s *Session, res *engine.Result)
}

// Options configures how stages build their workflows.
type Options struct {
	Container  string
	Preprocess settings.PreprocessDefaults
	Track      settings.TrackDefaults
	NThreads   int // -nthreads on every MRtrix3 node, 0 leaves it unset
	DryRun     bool
	Overrides  []Override

	// ResponseAlgorithm forces the dwi2response algorithm instead of
	// choosing it from the gradient shells.
	ResponseAlgorithm string
	ShellTolerance    float64
	Log               *logrus.Logger
}

// OptionsFromSettings carries the configured defaults into Options.
func OptionsFromSettings(cfg *settings.Settings) Options {
	return Options{
		Container:      cfg.Container,
		Preprocess:     cfg.Preprocess,
		Track:          cfg.Track,
		NThreads:       cfg.NThreads,
		ShellTolerance: DefaultShellTolerance,
	}
}

func (o *Options) logger() logrus.FieldLogger {
	if o.Log != nil {
		return o.Log
	}
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func (o *Options) container() string {
	if o.Container == "" {
		return "tramp"
	}
	return o.Container
}

func (o *Options) newWorkflow(name string, s *Session) *engine.Workflow {
	wf := engine.NewWorkflow(name)
	wf.Sink = engine.NewDataSink(s.ResultsDir, o.container())
	return wf
}

// threads sets -nthreads on every node that accepts it.
func (o *Options) threads(wf *engine.Workflow) {
	if o.NThreads <= 0 {
		return
	}
	for _, n := range wf.Nodes() {
		if _, ok := n.Iface.Spec.Param("nthreads"); ok {
			n.Set("nthreads", o.NThreads)
		}
	}
}

// Pipeline runs stages in order against one Session.
type Pipeline struct {
	Engine  *engine.Engine
	Session *Session
	Options Options

	results []*engine.Result
}

// Run builds and executes each stage, feeding the session forward. It
// stops at the first failing stage.
func (p *Pipeline) Run(c *engine.Context, stages ...Stage) error {
	log := p.Options.logger()
	for _, st := range stages {
		for k, v := range p.Session.Inputs() {
			c.SetInput(k, v)
		}
		wf, err := st.Build(p.Session, &p.Options)
		if err != nil {
			return fmt.Errorf("%s: %w", st.Name(), err)
		}
		p.Options.threads(wf)
		if err := applyOverrides(wf, p.Options.Overrides); err != nil {
			return fmt.Errorf("%s: %w", st.Name(), err)
		}
		log.WithFields(logrus.Fields{"stage": st.Name(), "nodes": len(wf.Nodes())}).Debug("built workflow")

		res, err := p.Engine.Run(c, wf)
		if res != nil {
			p.results = append(p.results, res)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", st.Name(), err)
		}
		st.Apply(p.Session, res)
	}
	return nil
}

// Results returns the result of every stage that ran, in order.
func (p *Pipeline) Results() []*engine.Result {
	return p.results
}

// gradFSL is the -fslgrad value for the session.
func gradFSL(s *Session) []string {
	return []string{s.BVec, s.BVal}
}

// add creates a workflow node and adds it to wf.
func add(wf *engine.Workflow, name string, spec *interfaces.Spec) *engine.Node {
	n := engine.NewNode(name, spec)
	if err := wf.Add(n); err != nil {
		// stage builders use fixed, distinct names
		panic(err)
	}
	return n
}

// wire applies a list of connections, stopping at the first error.
func wire(wf *engine.Workflow, edges ...engine.Edge) error {
	for _, e := range edges {
		if err := wf.Connect(e.Src, e.SrcOutput, e.Dst, e.DstInput); err != nil {
			return err
		}
	}
	return nil
}

// sinkAll routes outputs into the workflow's DataSink.
func sinkAll(wf *engine.Workflow, sinks ...engine.SinkEdge) error {
	for _, s := range sinks {
		if err := wf.ConnectSink(s.Src, s.SrcOutput, s.Key); err != nil {
			return err
		}
	}
	return nil
}
