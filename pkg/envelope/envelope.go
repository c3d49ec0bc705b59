// Package envelope records the outcome of a single workflow node: status,
// produced files, the command that ran and how long it took.
package envelope

import "time"

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusPartial Status = "partial"
	StatusSkipped Status = "skipped"
)

// Error codes attached to failed nodes.
const (
	CodeValidation    = "VALIDATION_FAILED"
	CodeExec          = "EXEC_FAILED"
	CodeMissingOutput = "MISSING_OUTPUT"
	CodeCancelled     = "CANCELLED"
)

type Envelope struct {
	Node      string            `json:"node"`
	Status    Status            `json:"status"`
	Cmdline   string            `json:"cmdline,omitempty"`
	Outputs   map[string]string `json:"outputs,omitempty"`
	Result    map[string]any    `json:"result,omitempty"`
	OutputRef string            `json:"output_ref,omitempty"`
	Error     *ErrorInfo        `json:"error,omitempty"`
	Metrics   *Metrics          `json:"metrics,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Metrics struct {
	Tool       string    `json:"tool"`
	DurationMs int64     `json:"duration_ms"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

// OK reports whether the node finished without error. Skipped nodes count.
func (e *Envelope) OK() bool {
	return e.Status == StatusSuccess || e.Status == StatusSkipped
}

// Builder pattern
type Builder struct {
	env *Envelope
}

func New(node string) *Builder {
	return &Builder{env: &Envelope{Node: node, Result: make(map[string]any)}}
}

func (b *Builder) metrics() *Metrics {
	if b.env.Metrics == nil {
		b.env.Metrics = &Metrics{}
	}
	return b.env.Metrics
}

// WithTool records the binary the node ran.
func (b *Builder) WithTool(name string) *Builder {
	b.metrics().Tool = name
	return b
}

func (b *Builder) Success() *Builder {
	b.env.Status = StatusSuccess
	return b
}

func (b *Builder) Skipped(reason string) *Builder {
	b.env.Status = StatusSkipped
	b.env.Result["reason"] = reason
	return b
}

func (b *Builder) Failure(code, message string) *Builder {
	b.env.Status = StatusFailure
	b.env.Error = &ErrorInfo{Code: code, Message: message}
	return b
}

func (b *Builder) WithCmdline(line string) *Builder {
	b.env.Cmdline = line
	return b
}

func (b *Builder) WithOutputs(outputs map[string]string) *Builder {
	if len(outputs) == 0 {
		return b
	}
	b.env.Outputs = make(map[string]string, len(outputs))
	for k, v := range outputs {
		b.env.Outputs[k] = v
	}
	return b
}

func (b *Builder) WithResult(key string, value any) *Builder {
	b.env.Result[key] = value
	return b
}

// WithOutputRef points at the node's log file.
func (b *Builder) WithOutputRef(path string) *Builder {
	b.env.OutputRef = path
	return b
}

// WithTiming sets start, end and the derived duration.
func (b *Builder) WithTiming(start, end time.Time) *Builder {
	m := b.metrics()
	m.StartTime = start
	m.EndTime = end
	m.DurationMs = end.Sub(start).Milliseconds()
	return b
}

func (b *Builder) Build() *Envelope {
	return b.env
}

// Summary aggregates node envelopes into a workflow-level status.
type Summary struct {
	Workflow   string      `json:"workflow"`
	Status     Status      `json:"status"`
	Nodes      []*Envelope `json:"nodes"`
	DurationMs int64       `json:"duration_ms"`
}

// Summarize derives the workflow status: success when every node is OK,
// failure when none is, partial otherwise.
func Summarize(workflow string, nodes []*Envelope, duration time.Duration) *Summary {
	s := &Summary{Workflow: workflow, Nodes: nodes, DurationMs: duration.Milliseconds()}
	ok := 0
	for _, n := range nodes {
		if n.OK() {
			ok++
		}
	}
	switch {
	case ok == len(nodes):
		s.Status = StatusSuccess
	case ok == 0:
		s.Status = StatusFailure
	default:
		s.Status = StatusPartial
	}
	return s
}
