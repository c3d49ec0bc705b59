package engine

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"trampolino/pkg/envelope"
)

// Context carries cancellation, session inputs and node results across the
// workflows of one invocation.
type Context struct {
	mu          sync.RWMutex
	ctx         context.Context // signal-aware context for cancellation propagation
	Inputs      map[string]string
	NodeResults map[string]*envelope.Envelope // keyed by "workflow.node"
}

func NewContext(parentCtx context.Context, inputs map[string]string) *Context {
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	return &Context{
		ctx:         parentCtx,
		Inputs:      inputs,
		NodeResults: make(map[string]*envelope.Envelope),
	}
}

// Ctx returns the context.Context for cancellation propagation
func (c *Context) Ctx() context.Context {
	return c.ctx
}

// SetInput stores a session value.
func (c *Context) SetInput(name, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Inputs == nil {
		c.Inputs = make(map[string]string)
	}
	c.Inputs[name] = value
}

func (c *Context) SetResult(workflow, node string, env *envelope.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.NodeResults[workflow+"."+node] = env
}

// GetResult safely retrieves a node result with proper locking.
func (c *Context) GetResult(workflow, node string) (*envelope.Envelope, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	env, ok := c.NodeResults[workflow+"."+node]
	return env, ok
}

var varPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Resolve expands ${inputs.name} and ${workflow.node.field} references.
// field is an output name, "status" or "log". Unknown references are left
// in place.
func (c *Context) Resolve(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		ref := match[2 : len(match)-1] // Strip ${ and }
		parts := strings.Split(ref, ".")

		if parts[0] == "inputs" {
			if len(parts) == 2 {
				c.mu.RLock()
				v, ok := c.Inputs[parts[1]]
				c.mu.RUnlock()
				if ok {
					return v
				}
			}
			return match
		}
		if len(parts) != 3 {
			return match
		}
		env, ok := c.GetResult(parts[0], parts[1])
		if !ok {
			return match
		}
		switch parts[2] {
		case "status":
			return string(env.Status)
		case "log":
			return env.OutputRef
		}
		if v, ok := env.Outputs[parts[2]]; ok {
			return v
		}
		return match
	})
}

// Unresolved reports whether s still contains a ${...} reference.
func Unresolved(s string) bool {
	return varPattern.MatchString(s)
}
