package engine

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"trampolino/pkg/envelope"
	"trampolino/pkg/workspace"
)

// Engine executes workflows inside a workspace.
type Engine struct {
	Workspace *workspace.Workspace
	Runner    Runner
	Log       *logrus.Logger
	Out       io.Writer // progress display, nil for none
	BinDir    string    // resolve binaries here instead of PATH
	NProcs    int       // nodes running at once
	DryRun    bool      // print argv and predicted outputs only
}

// Result is the outcome of one workflow run.
type Result struct {
	Summary *envelope.Summary
	Sunk    map[string]string // sink key -> destination path
}

// Envelope returns the node envelope with the given name.
func (r *Result) Envelope(node string) (*envelope.Envelope, bool) {
	for _, env := range r.Summary.Nodes {
		if env.Node == node {
			return env, true
		}
	}
	return nil, false
}

func (e *Engine) logger() *logrus.Logger {
	if e.Log != nil {
		return e.Log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (e *Engine) runner() Runner {
	if e.Runner != nil {
		return e.Runner
	}
	return ExecRunner{}
}

// Run executes every node of wf in dependency order. Independent nodes run
// concurrently up to NProcs. The first failing node cancels the rest; nodes
// that never started are reported as cancelled. Sinks are filled only when
// every node succeeded.
func (e *Engine) Run(c *Context, wf *Workflow) (*Result, error) {
	if e.Workspace == nil {
		return nil, errors.New("engine: no workspace")
	}
	log := e.logger().WithFields(logrus.Fields{"workflow": wf.Name, "job": e.Workspace.JobID})
	start := time.Now()

	progress := NewProgress(e.Out, wf.Name, e.Workspace.JobID, len(wf.order))
	sinkRoot := ""
	if wf.Sink != nil {
		sinkRoot = wf.Sink.Root()
	}
	progress.PrintHeader(sinkRoot)

	nprocs := e.NProcs
	if nprocs < 1 {
		nprocs = 1
	}
	g, gctx := errgroup.WithContext(c.Ctx())
	g.SetLimit(nprocs)

	var mu sync.Mutex
	results := make(map[string]*envelope.Envelope, len(wf.order))
	done := make(chan string, len(wf.order))

	pending := make(map[string]int, len(wf.order))
	var ready []string
	for _, name := range wf.TopoOrder() {
		pending[name] = wf.upstreamCount(name)
		if pending[name] == 0 {
			ready = append(ready, name)
		}
	}

	launched, finished := 0, 0
	failed := false
	for finished < launched || (len(ready) > 0 && !failed) {
		for len(ready) > 0 && !failed && gctx.Err() == nil {
			node := wf.nodes[ready[0]]
			ready = ready[1:]
			launched++
			g.Go(func() error {
				env, err := e.runNode(gctx, c, wf, node, progress, log)
				mu.Lock()
				results[node.Name] = env
				mu.Unlock()
				c.SetResult(wf.Name, node.Name, env)
				done <- node.Name
				return err
			})
		}
		if finished == launched {
			break
		}
		name := <-done
		finished++

		mu.Lock()
		env := results[name]
		mu.Unlock()
		if !env.OK() {
			failed = true
			continue
		}
		for _, edge := range wf.downstream(name) {
			if err := e.propagate(wf, edge, env); err != nil {
				bad := envelope.New(edge.Dst).Failure(envelope.CodeValidation, err.Error()).Build()
				mu.Lock()
				results[edge.Dst] = bad
				mu.Unlock()
				c.SetResult(wf.Name, edge.Dst, bad)
				progress.NodeDone(bad)
				failed = true
				break
			}
			pending[edge.Dst]--
			if pending[edge.Dst] == 0 {
				ready = append(ready, edge.Dst)
			}
		}
	}
	runErr := g.Wait()

	nodes := make([]*envelope.Envelope, 0, len(wf.order))
	for _, name := range wf.TopoOrder() {
		env, ok := results[name]
		if !ok {
			env = envelope.New(name).
				WithTool(wf.nodes[name].Iface.Spec.Command).
				Failure(envelope.CodeCancelled, "not run: an upstream node failed or the run was cancelled").
				Build()
			results[name] = env
			c.SetResult(wf.Name, name, env)
		}
		nodes = append(nodes, env)
	}
	summary := envelope.Summarize(wf.Name, nodes, time.Since(start))
	res := &Result{Summary: summary, Sunk: map[string]string{}}

	if runErr == nil {
		for _, env := range nodes {
			if !env.OK() {
				runErr = fmt.Errorf("node %s failed: %s", env.Node, env.Error.Message)
				break
			}
		}
	}
	if runErr == nil && c.Ctx().Err() != nil {
		runErr = c.Ctx().Err()
	}
	if runErr == nil {
		runErr = e.sink(wf, results, res)
	}
	if runErr != nil {
		summary.Status = envelope.StatusFailure
	}

	progress.PrintSummary(summary)
	log.WithField("status", summary.Status).WithField("duration", FormatDuration(time.Since(start))).Info("workflow finished")
	return res, runErr
}

// propagate hands an upstream output to the downstream node's input.
func (e *Engine) propagate(wf *Workflow, edge Edge, env *envelope.Envelope) error {
	path, ok := env.Outputs[edge.SrcOutput]
	if !ok {
		return fmt.Errorf("%s produced no %s for %s.%s", edge.Src, edge.SrcOutput, edge.Dst, edge.DstInput)
	}
	dst := wf.nodes[edge.Dst]
	if err := dst.Iface.Set(edge.DstInput, path); err != nil {
		return fmt.Errorf("connect %s.%s -> %s.%s: %w", edge.Src, edge.SrcOutput, edge.Dst, edge.DstInput, err)
	}
	return nil
}

func (e *Engine) sink(wf *Workflow, results map[string]*envelope.Envelope, res *Result) error {
	if wf.Sink == nil || len(wf.sinks) == 0 {
		return nil
	}
	edges := append([]SinkEdge(nil), wf.sinks...)
	sort.SliceStable(edges, func(a, b int) bool { return edges[a].Key < edges[b].Key })
	for _, s := range edges {
		env := results[s.Src]
		src, ok := env.Outputs[s.SrcOutput]
		if !ok {
			return fmt.Errorf("datasink %s: %s produced no %s", s.Key, s.Src, s.SrcOutput)
		}
		var dst string
		var err error
		if e.DryRun {
			dst, err = wf.Sink.Destination(s.Key, src)
		} else {
			dst, err = wf.Sink.Put(s.Key, src)
		}
		if err != nil {
			return err
		}
		res.Sunk[s.Key] = dst
		e.logger().WithFields(logrus.Fields{"workflow": wf.Name, "key": s.Key, "path": dst}).Debug("sunk output")
	}
	return nil
}
