package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"trampolino/pkg/envelope"
	"trampolino/pkg/interfaces"
)

// runNode validates, executes and checks one node. The returned error is
// non-nil exactly when the envelope reports a failure.
func (e *Engine) runNode(ctx context.Context, c *Context, wf *Workflow, node *Node, progress *Progress, log *logrus.Entry) (*envelope.Envelope, error) {
	spec := node.Iface.Spec
	log = log.WithFields(logrus.Fields{"node": node.Name, "tool": spec.Command})
	start := time.Now()
	b := envelope.New(node.Name).WithTool(spec.Command)

	fail := func(code string, err error) (*envelope.Envelope, error) {
		env := b.Failure(code, err.Error()).WithTiming(start, time.Now()).Build()
		if werr := e.Workspace.WriteError(wf.Name, node.Name, err.Error()); werr != nil {
			log.WithError(werr).Warn("could not record node error")
		}
		progress.NodeDone(env)
		log.WithError(err).WithField("code", code).Error("node failed")
		return env, fmt.Errorf("%s: %w", node.Name, err)
	}

	if err := ctx.Err(); err != nil {
		return fail(envelope.CodeCancelled, err)
	}

	if err := e.applyOverrides(c, node); err != nil {
		return fail(envelope.CodeValidation, err)
	}

	dir, err := e.Workspace.NodeDir(wf.Name, node.Name)
	if err != nil {
		return fail(envelope.CodeExec, err)
	}
	b.WithResult("dir", dir)

	cmdline, err := node.Iface.Cmdline()
	if err != nil {
		return fail(envelope.CodeValidation, err)
	}
	b.WithCmdline(cmdline)
	progress.NodeStart(node.Name, spec.Command)
	log.WithField("cmdline", cmdline).Debug("prepared command")

	if e.DryRun {
		outputs, err := node.Iface.Outputs(dir)
		if err != nil {
			return fail(envelope.CodeValidation, err)
		}
		env := b.Skipped("dry run").WithOutputs(outputs).WithTiming(start, time.Now()).Build()
		progress.NodeDone(env)
		return env, nil
	}

	if err := node.Iface.Validate(); err != nil {
		return fail(envelope.CodeValidation, err)
	}

	cmd, err := node.Iface.Command(ctx, dir, e.BinDir)
	if err != nil {
		return fail(envelope.CodeValidation, err)
	}
	logFile, logPath, err := e.Workspace.OpenLog(wf.Name, node.Name)
	if err != nil {
		return fail(envelope.CodeExec, err)
	}
	defer logFile.Close()
	b.WithOutputRef(logPath)
	fmt.Fprintf(logFile, "$ %s\n(cwd %s)\n\n", cmdline, dir)

	var out io.Writer = logFile
	if e.logger().IsLevelEnabled(logrus.DebugLevel) {
		dbg := log.WriterLevel(logrus.DebugLevel)
		defer dbg.Close()
		out = io.MultiWriter(logFile, dbg)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := e.runner().Run(ctx, cmd); err != nil {
		if ctx.Err() != nil {
			return fail(envelope.CodeCancelled, errors.Join(ctx.Err(), err))
		}
		return fail(envelope.CodeExec, fmt.Errorf("%s: %w (see %s)", spec.Command, err, logPath))
	}

	if err := node.Iface.CheckOutputs(dir); err != nil {
		return fail(envelope.CodeMissingOutput, err)
	}
	outputs, err := node.Iface.Outputs(dir)
	if err != nil {
		return fail(envelope.CodeMissingOutput, err)
	}

	env := b.Success().WithOutputs(outputs).WithTiming(start, time.Now()).Build()
	if _, err := e.Workspace.WriteOutput(wf.Name, node.Name, env); err != nil {
		log.WithError(err).Warn("could not write node result")
	}
	progress.NodeDone(env)
	log.WithField("duration", FormatDuration(time.Since(start))).Info("node finished")
	return env, nil
}

// applyOverrides parses node overrides after resolving ${...} references.
func (e *Engine) applyOverrides(c *Context, node *Node) error {
	names := make([]string, 0, len(node.Overrides))
	for k := range node.Overrides {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		text := c.Resolve(node.Overrides[name])
		if Unresolved(text) {
			return fmt.Errorf("override %s=%s has an unresolved reference", name, text)
		}
		if err := node.Iface.Parse(name, text); err != nil {
			return err
		}
		if err := absInput(node.Iface, name); err != nil {
			return err
		}
	}
	return nil
}

// absInput rewrites a relative input path against the process working
// directory, since the tool itself runs inside its node directory.
func absInput(iface *interfaces.Interface, name string) error {
	p, _ := iface.Spec.Param(name)
	if !p.Exists {
		return nil
	}
	v, _ := iface.Get(name)
	switch t := v.(type) {
	case string:
		abs, err := filepath.Abs(t)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return iface.Set(name, abs)
	case []string:
		out := make([]string, len(t))
		for i, path := range t {
			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			out[i] = abs
		}
		return iface.Set(name, out)
	}
	return nil
}
