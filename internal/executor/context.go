// Package executor is the command pipeline: parameter validation, per-user
// admission control, credential resolution (suspending when the user must be
// asked out-of-band) and uniform dispatch into feature handlers. Front-ends
// build a CommandContext per invocation and hand it to Execute.
package executor

import (
	"sync"

	"game-buddy/internal/auth"
	"game-buddy/internal/result"
)

// CommandContext identifies one command invocation: the invoking user, the
// parameter bag, and the credential pair once resolved. It is owned by the
// executor for the invocation's lifetime and discarded on completion.
type CommandContext struct {
	UserID  string
	Command string

	params map[string]any

	// Data is an opaque front-end payload (e.g. the originating Discord
	// interaction). The pipeline never inspects it; prompt senders and
	// delivery callbacks do.
	Data any

	// Credential is populated by the pipeline before the handler runs.
	Credential auth.Credential

	deliverOnce sync.Once
	deliver     func(result.CommandResult)
}

// NewContext builds a context for one invocation.
func NewContext(userID, command string) *CommandContext {
	return &CommandContext{
		UserID:  userID,
		Command: command,
		params:  make(map[string]any),
	}
}

// SetParam stores a named parameter. Values are strings, numbers (float64)
// or enum strings, mirroring what both front-ends can carry.
func (c *CommandContext) SetParam(name string, value any) {
	c.params[name] = value
}

// Param returns a raw parameter value.
func (c *CommandContext) Param(name string) (any, bool) {
	v, ok := c.params[name]
	return v, ok
}

// StringParam returns a string parameter, or "" when absent or mistyped.
func (c *CommandContext) StringParam(name string) string {
	if v, ok := c.params[name].(string); ok {
		return v
	}
	return ""
}

// NumberParam returns a numeric parameter, or 0 when absent or mistyped.
func (c *CommandContext) NumberParam(name string) float64 {
	switch v := c.params[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// OnDeliver registers the callback that receives the terminal result when the
// invocation completes asynchronously (after a pending authentication). The
// front-end sets this before calling Execute.
func (c *CommandContext) OnDeliver(fn func(result.CommandResult)) {
	c.deliver = fn
}

// Deliver hands the terminal result to the front-end. At most one delivery
// happens per invocation, whatever path produced it.
func (c *CommandContext) Deliver(r result.CommandResult) {
	c.deliverOnce.Do(func() {
		if c.deliver != nil {
			c.deliver(r)
		}
	})
}
