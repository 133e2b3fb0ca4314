package nodeexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkayo32/pytake-flow/flow"
)

func TestRandomPicksWeightedPath(t *testing.T) {
	h := NewRandomHandler()

	// peso 0 en el camino B: siempre sale A
	node := flow.Node{ID: "rnd", Type: flow.NodeTypeRandom, Data: map[string]any{
		"paths": []any{
			map[string]any{"id": "a", "label": "variante_a", "weight": 1, "targetNodeId": "na"},
			map[string]any{"id": "b", "label": "variante_b", "weight": 0, "targetNodeId": "nb"},
		},
		"saveToVariable": "variante",
	}}
	exec := newTestExecution(
		node,
		flow.Node{ID: "na", Type: flow.NodeTypeMessage},
		flow.Node{ID: "nb", Type: flow.NodeTypeMessage},
	)

	for i := 0; i < 20; i++ {
		outcome, err := h.Execute(context.Background(), exec, node, nil)
		require.NoError(t, err)
		assert.Equal(t, flow.OutcomeJump, outcome.Kind)
		assert.Equal(t, "na", outcome.TargetNodeID)
	}
	assert.Equal(t, "variante_a", exec.Conversation.Context.Get("variante"))
}

func TestRandomFixedSeedIsReproducible(t *testing.T) {
	h := NewRandomHandler()

	node := flow.Node{ID: "rnd", Type: flow.NodeTypeRandom, Data: map[string]any{
		"paths": []any{
			map[string]any{"id": "a", "weight": 1, "targetNodeId": "na"},
			map[string]any{"id": "b", "weight": 1, "targetNodeId": "nb"},
		},
		"seed": 42,
	}}

	first := ""
	for i := 0; i < 5; i++ {
		exec := newTestExecution(
			node,
			flow.Node{ID: "na", Type: flow.NodeTypeMessage},
			flow.Node{ID: "nb", Type: flow.NodeTypeMessage},
		)
		outcome, err := h.Execute(context.Background(), exec, node, nil)
		require.NoError(t, err)
		if first == "" {
			first = outcome.TargetNodeID
		}
		assert.Equal(t, first, outcome.TargetNodeID)
	}
}

func TestRandomMissingTargetFails(t *testing.T) {
	h := NewRandomHandler()

	node := flow.Node{ID: "rnd", Type: flow.NodeTypeRandom, Data: map[string]any{
		"paths": []any{
			map[string]any{"id": "a", "weight": 1, "targetNodeId": "ghost"},
		},
	}}
	exec := newTestExecution(node)

	_, err := h.Execute(context.Background(), exec, node, nil)
	require.Error(t, err)
}

func TestRandomSavesPathIDWhenLabelEmpty(t *testing.T) {
	h := NewRandomHandler()

	node := flow.Node{ID: "rnd", Type: flow.NodeTypeRandom, Data: map[string]any{
		"paths": []any{
			map[string]any{"id": "a", "weight": 1, "targetNodeId": "na"},
		},
		"saveToVariable": "variante",
	}}
	exec := newTestExecution(node, flow.Node{ID: "na", Type: flow.NodeTypeMessage})

	_, err := h.Execute(context.Background(), exec, node, nil)
	require.NoError(t, err)
	assert.Equal(t, "a", exec.Conversation.Context.Get("variante"))
}
