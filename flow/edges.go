package flow

import "strings"

// Branch labels accepted on condition edges. Matching is case-insensitive;
// the Portuguese pair mirrors what the visual builder emits.
var (
	truthyLabels = map[string]bool{"true": true, "yes": true, "sim": true}
	falsyLabels  = map[string]bool{"false": true, "no": true, "não": true, "nao": true}
)

// FirstEdgeTarget returns the target of the first edge leaving nodeID.
// The second return is false when the node has no outgoing edges, which is a
// normal terminal condition at an end node and a dead end everywhere else.
func FirstEdgeTarget(f *Flow, nodeID string) (string, bool) {
	for _, e := range f.Edges {
		if e.Source == nodeID {
			return e.Target, true
		}
	}
	return "", false
}

// BranchTarget resolves a boolean-outcome branch: the first edge leaving
// nodeID whose label matches the outcome wins. A node with outgoing edges but
// no matching label is a structural failure, distinct from having no edges.
func BranchTarget(f *Flow, nodeID string, outcome bool) (string, error) {
	edges := f.EdgesFrom(nodeID)
	if len(edges) == 0 {
		return "", ErrDeadEnd().WithDetail("node_id", nodeID)
	}

	want := falsyLabels
	if outcome {
		want = truthyLabels
	}
	for _, e := range edges {
		if want[strings.ToLower(strings.TrimSpace(e.Label))] {
			return e.Target, nil
		}
	}

	return "", ErrNoBranchMatch().
		WithDetail("node_id", nodeID).
		WithDetail("outcome", outcome)
}
