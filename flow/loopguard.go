package flow

// MaxNodeVisits is the hard ceiling of executions of a single node within one
// flow run. Not configurable per flow.
const MaxNodeVisits = 10

// LoopGuard detects runaway cycles using the conversation's execution path.
type LoopGuard struct{}

// Visit records the arrival at a node and reports whether the ceiling was
// crossed: the visit is appended first, so the guard trips on the arrival
// that would be execution number MaxNodeVisits+1.
func (LoopGuard) Visit(ctx *ExecutionContext, nodeID string) (exceeded bool) {
	ctx.AppendPath(nodeID)
	return ctx.VisitCount(nodeID) > MaxNodeVisits
}
