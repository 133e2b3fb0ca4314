package flow

import "fmt"

// MaxPathEntries caps the execution path at the most recent entries; the path
// exists only for loop detection, not business logic.
const MaxPathEntries = 50

// ExecutionContext is the per-conversation variable store plus the visited
// node path of the current flow run. Pure data: owned by exactly one
// conversation and mutated only by that conversation's node handlers.
type ExecutionContext struct {
	Variables map[string]any `json:"variables"`
	Path      []string       `json:"path"`
}

// NewExecutionContext returns an empty context.
func NewExecutionContext() ExecutionContext {
	return ExecutionContext{Variables: make(map[string]any), Path: []string{}}
}

// Set stores a variable.
func (c *ExecutionContext) Set(name string, value any) {
	if c.Variables == nil {
		c.Variables = make(map[string]any)
	}
	c.Variables[name] = value
}

// Get returns a variable's value, nil when missing.
func (c *ExecutionContext) Get(name string) any {
	if c.Variables == nil {
		return nil
	}
	return c.Variables[name]
}

// Lookup returns a variable and whether it exists.
func (c *ExecutionContext) Lookup(name string) (any, bool) {
	if c.Variables == nil {
		return nil, false
	}
	v, ok := c.Variables[name]
	return v, ok
}

// Delete removes a variable.
func (c *ExecutionContext) Delete(name string) {
	delete(c.Variables, name)
}

// AppendPath records a node visit, keeping only the most recent entries.
func (c *ExecutionContext) AppendPath(nodeID string) {
	c.Path = append(c.Path, nodeID)
	if len(c.Path) > MaxPathEntries {
		c.Path = c.Path[len(c.Path)-MaxPathEntries:]
	}
}

// VisitCount counts occurrences of a node id in the current path.
func (c *ExecutionContext) VisitCount(nodeID string) int {
	count := 0
	for _, id := range c.Path {
		if id == nodeID {
			count++
		}
	}
	return count
}

// ClearPath empties the execution path (new flow run).
func (c *ExecutionContext) ClearPath() {
	c.Path = c.Path[:0]
}

// ============================================================================
// Question attempt counters
// ============================================================================

func attemptKey(nodeID string) string {
	return fmt.Sprintf("__attempts_%s", nodeID)
}

// Attempts returns the invalid-reply counter for a question node.
func (c *ExecutionContext) Attempts(nodeID string) int {
	switch v := c.Get(attemptKey(nodeID)).(type) {
	case int:
		return v
	case float64: // JSON round-trip turns ints into float64
		return int(v)
	default:
		return 0
	}
}

// IncrementAttempts bumps and returns the counter.
func (c *ExecutionContext) IncrementAttempts(nodeID string) int {
	n := c.Attempts(nodeID) + 1
	c.Set(attemptKey(nodeID), n)
	return n
}

// ClearAttempts removes the counter after success or exhaustion.
func (c *ExecutionContext) ClearAttempts(nodeID string) {
	c.Delete(attemptKey(nodeID))
}
