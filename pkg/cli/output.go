package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"trampolino/pkg/colors"
	"trampolino/pkg/engine"
	"trampolino/pkg/envelope"
	"trampolino/pkg/pipeline"
	"trampolino/pkg/settings"
	"trampolino/pkg/workspace"
)

// newLogger returns a text logger on w. verbose forces debug level.
func newLogger(w io.Writer, level string, verbose bool) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.TimeOnly})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
		return log, nil
	}
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(lvl)
	return log, nil
}

// printBanner displays the run configuration at startup
func printBanner(out io.Writer, jobID string, s *pipeline.Session, steps []step, cfg *settings.Settings, opts globalOptions, base pipeline.Options) {
	fmt.Fprintf(out, "\n%s%s╔════════════════════════════════════════════════════════════════╗%s\n", colors.Bold, colors.Cyan, colors.Reset)
	fmt.Fprintf(out, "%s%s║  trampolino %s%s\n", colors.Bold, colors.Cyan, version, colors.Reset)
	fmt.Fprintf(out, "%s%s╚════════════════════════════════════════════════════════════════╝%s\n\n", colors.Bold, colors.Cyan, colors.Reset)

	names := make([]string, len(steps))
	for i, st := range steps {
		names[i] = st.name
	}
	fmt.Fprintf(out, "  %s%sCommands:%s      %s%s%s\n", colors.Bold, colors.Green, colors.Reset, colors.Yellow, strings.Join(names, " → "), colors.Reset)
	fmt.Fprintf(out, "  %s%sJob:%s           %s\n", colors.Bold, colors.Green, colors.Reset, jobID)

	for _, field := range []struct{ label, value string }{
		{"Input:", s.InFile},
		{"Anatomy:", s.Anat},
		{"ODF:", s.ODF},
		{"Seed:", s.Seed},
	} {
		if field.value != "" {
			fmt.Fprintf(out, "  %s%s%-14s%s %s%s%s\n", colors.Bold, colors.Green, field.label, colors.Reset, colors.Magenta, field.value, colors.Reset)
		}
	}
	fmt.Fprintf(out, "  %s%sResults:%s       %s\n", colors.Bold, colors.Green, colors.Reset, filepath.Join(s.ResultsDir, cfg.Container))

	var enabled []string
	if opts.dryRun {
		enabled = append(enabled, colors.Paint(colors.Green, "--dry-run"))
	}
	if opts.useLock {
		enabled = append(enabled, colors.Paint(colors.Green, "--lock"))
	}
	for _, name := range stepOptions(steps, base) {
		enabled = append(enabled, colors.Paint(colors.Green, name))
	}
	if len(enabled) > 0 {
		fmt.Fprintf(out, "  %s%sOptions:%s       %s\n", colors.Bold, colors.Green, colors.Reset, strings.Join(enabled, ", "))
	}
	if len(opts.sets) > 0 {
		var sets []string
		for _, kv := range opts.sets {
			sets = append(sets, colors.Paint(colors.Yellow, kv))
		}
		fmt.Fprintf(out, "  %s%sOverrides:%s     %s\n", colors.Bold, colors.Green, colors.Reset, strings.Join(sets, ", "))
	}
	fmt.Fprintf(out, "\n%s%s────────────────────────────────────────────────────────────────%s\n\n", colors.Dim, colors.Cyan, colors.Reset)
}

// stepOptions names the options the chained steps run with once their own
// flags are applied.
func stepOptions(steps []step, base pipeline.Options) []string {
	var names []string
	for _, st := range steps {
		if st.stage == nil {
			continue
		}
		o := base
		if st.tweak != nil {
			st.tweak(&o)
		}
		var own []string
		switch st.stage.(type) {
		case pipeline.Recon:
			if o.Preprocess.Denoise {
				own = append(own, "denoise")
			}
			if o.Preprocess.Degibbs {
				own = append(own, "degibbs")
			}
			if o.Preprocess.BiasCorrect != "" {
				own = append(own, "bias="+o.Preprocess.BiasCorrect)
			}
			if o.ResponseAlgorithm != "" {
				own = append(own, "response="+o.ResponseAlgorithm)
			}
		case pipeline.Track:
			if o.Track.Algorithm != "" {
				own = append(own, "algorithm="+o.Track.Algorithm)
			}
			if o.Track.Select > 0 {
				own = append(own, fmt.Sprintf("select=%d", o.Track.Select))
			}
		}
		names = append(names, own...)
	}
	return names
}

// printRunSummary displays the run summary
func printRunSummary(out io.Writer, ws *workspace.Workspace, s *pipeline.Session, start time.Time, runErr error) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s%s══════════════════════════════════════════%s\n", colors.Bold, colors.Cyan, colors.Reset)
	fmt.Fprintf(out, "%s%s  Run Summary%s\n", colors.Bold, colors.Cyan, colors.Reset)
	fmt.Fprintf(out, "%s%s══════════════════════════════════════════%s\n", colors.Bold, colors.Cyan, colors.Reset)
	fmt.Fprintf(out, "  %sStarted:%s      %s\n", colors.Dim, colors.Reset, start.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "  %sDuration:%s     %s%s%s\n", colors.Dim, colors.Reset, colors.Yellow, engine.FormatDuration(time.Since(start)), colors.Reset)
	fmt.Fprintf(out, "  %sJob dir:%s      %s\n", colors.Dim, colors.Reset, ws.JobDir)
	for _, field := range []struct{ label, value string }{
		{"FOD:", s.ODF},
		{"Mask:", s.Mask},
		{"Tracks:", s.TCK},
		{"5TT:", s.FiveTT},
		{"Connectome:", s.Connectome},
	} {
		if field.value != "" {
			fmt.Fprintf(out, "  %s%-13s%s %s\n", colors.Dim, field.label, colors.Reset, field.value)
		}
	}
	if runErr == nil {
		fmt.Fprintf(out, "  %sResult:%s       %sok%s\n", colors.Dim, colors.Reset, colors.Green, colors.Reset)
	} else {
		fmt.Fprintf(out, "  %sResult:%s       %sfailed%s\n", colors.Dim, colors.Reset, colors.Red, colors.Reset)
	}
	fmt.Fprintf(out, "%s%s══════════════════════════════════════════%s\n", colors.Bold, colors.Cyan, colors.Reset)
}

// Report is the --json output of a run.
type Report struct {
	JobID     string              `json:"job_id"`
	Status    envelope.Status     `json:"status"`
	Session   *pipeline.Session   `json:"session"`
	Workflows []*envelope.Summary `json:"workflows"`
	Sunk      map[string]string   `json:"sunk,omitempty"`
	Error     string              `json:"error,omitempty"`
}

func writeReport(out io.Writer, jobID string, s *pipeline.Session, results []*engine.Result, runErr error) error {
	r := Report{
		JobID:     jobID,
		Status:    reportStatus(results, runErr),
		Session:   s,
		Workflows: []*envelope.Summary{},
	}
	for _, res := range results {
		r.Workflows = append(r.Workflows, res.Summary)
		for k, v := range res.Sunk {
			if r.Sunk == nil {
				r.Sunk = make(map[string]string)
			}
			r.Sunk[res.Summary.Workflow+"."+k] = v
		}
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
