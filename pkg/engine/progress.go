package engine

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"trampolino/pkg/colors"
	"trampolino/pkg/envelope"
)

// Box drawing characters (rounded)
const (
	boxTopLeft     = "╭"
	boxTopRight    = "╮"
	boxBottomLeft  = "╰"
	boxBottomRight = "╯"
	boxHorizontal  = "─"
	boxVertical    = "│"
)

// Status icons
const (
	iconRunning = "●"
	iconSuccess = "✓"
	iconFailure = "✗"
	iconSkipped = "◌"
)

// Progress prints node lifecycle lines for one workflow run. Nodes report
// from several goroutines, so every write holds mu.
type Progress struct {
	mu        sync.Mutex
	out       io.Writer
	workflow  string
	jobID     string
	total     int
	started   int
	startTime time.Time
	width     int
}

// NewProgress returns a display writing to out. A nil out discards output.
func NewProgress(out io.Writer, workflow, jobID string, total int) *Progress {
	if out == nil {
		out = io.Discard
	}
	return &Progress{
		out:       out,
		workflow:  workflow,
		jobID:     jobID,
		total:     total,
		startTime: time.Now(),
		width:     72,
	}
}

func statusIcon(s envelope.Status) (string, string) {
	switch s {
	case envelope.StatusSuccess:
		return iconSuccess, colors.Green
	case envelope.StatusSkipped:
		return iconSkipped, colors.Dim
	default:
		return iconFailure, colors.Red
	}
}

// PrintHeader prints the workflow box.
func (p *Progress) PrintHeader(sinkDir string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w := p.width

	fmt.Fprintf(p.out, "%s%s%s%s%s\n",
		colors.Cyan, boxTopLeft, strings.Repeat(boxHorizontal, w-2), boxTopRight, colors.Reset)

	title := fmt.Sprintf("  trampolino · %s", p.workflow)
	fmt.Fprintf(p.out, "%s%s%s%s%s%s%s%s%s\n",
		colors.Cyan, boxVertical, colors.Reset,
		colors.Bold, title, colors.Reset, pad(w-2, title),
		colors.Cyan+boxVertical, colors.Reset)

	jobLine := fmt.Sprintf("  Job: %s", p.jobID)
	fmt.Fprintf(p.out, "%s%s%s%s%s%s\n",
		colors.Cyan, boxVertical, colors.Reset,
		colors.Paint(colors.Dim, jobLine), pad(w-2, jobLine),
		colors.Paint(colors.Cyan, boxVertical))

	fmt.Fprintf(p.out, "%s%s%s%s%s\n",
		colors.Cyan, boxBottomLeft, strings.Repeat(boxHorizontal, w-2), boxBottomRight, colors.Reset)

	if sinkDir != "" {
		fmt.Fprintf(p.out, "  %sResults:%s %s\n", colors.Dim, colors.Reset, sinkDir)
	}
	fmt.Fprintln(p.out)
}

// pad returns the spaces needed to fill width after s.
func pad(width int, s string) string {
	n := width - len([]rune(s))
	if n < 0 {
		n = 0
	}
	return strings.Repeat(" ", n)
}

// NodeStart announces a node as it begins.
func (p *Progress) NodeStart(node, tool string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started++
	fmt.Fprintf(p.out, "  %s%s%s  %s[%d/%d]%s %-14s %s%s%s\n",
		colors.Cyan, iconRunning, colors.Reset,
		colors.Dim, p.started, p.total, colors.Reset,
		node,
		colors.Magenta, tool, colors.Reset)
}

// NodeDone prints the outcome of a node.
func (p *Progress) NodeDone(env *envelope.Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	icon, clr := statusIcon(env.Status)
	dur := time.Duration(0)
	if env.Metrics != nil {
		dur = time.Duration(env.Metrics.DurationMs) * time.Millisecond
	}
	detail := FormatDuration(dur)
	switch {
	case env.Error != nil:
		detail = env.Error.Code
	case env.Status == envelope.StatusSkipped:
		if r, ok := env.Result["reason"].(string); ok {
			detail = "(" + r + ")"
		}
	}
	fmt.Fprintf(p.out, "  %s%s%s  %-20s %s%s%s\n",
		clr, icon, colors.Reset,
		env.Node,
		colors.Dim, detail, colors.Reset)
	if env.Status == envelope.StatusSkipped && env.Cmdline != "" {
		fmt.Fprintf(p.out, "       %s$ %s%s\n", colors.Dim, env.Cmdline, colors.Reset)
	}
}

// PrintFailure prints a failure message
func (p *Progress) PrintFailure(node string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "\n  %s%s%s  Node '%s' failed: %v\n",
		colors.Red, iconFailure, colors.Reset, node, err)
}

// PrintSummary prints the final summary
func (p *Progress) PrintSummary(s *envelope.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	successes, failures := 0, 0
	for _, n := range s.Nodes {
		switch n.Status {
		case envelope.StatusSuccess, envelope.StatusSkipped:
			successes++
		case envelope.StatusFailure:
			failures++
		}
	}

	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "  %s%s%s\n", colors.Cyan, strings.Repeat("─", p.width-4), colors.Reset)

	status := fmt.Sprintf("%s%d/%d complete%s", colors.Green, successes, len(s.Nodes), colors.Reset)
	if failures > 0 {
		status = fmt.Sprintf("%s%d failed%s", colors.Red, failures, colors.Reset)
	}
	fmt.Fprintf(p.out, "  %sElapsed:%s %s  %s·%s  %s\n\n",
		colors.Dim, colors.Reset, FormatDuration(time.Since(p.startTime)),
		colors.Dim, colors.Reset,
		status)
}

// FormatDuration formats a duration nicely
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", h, m)
}
