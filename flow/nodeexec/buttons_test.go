package nodeexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkayo32/pytake-flow/flow"
)

func buttonsNode() flow.Node {
	return flow.Node{ID: "b1", Type: flow.NodeTypeButtons, Data: map[string]any{
		"text": "Como posso ajudar?",
		"buttons": []any{
			map[string]any{"id": "btn_vendas", "title": "Vendas"},
			map[string]any{"id": "btn_suporte", "title": "Suporte"},
		},
		"outputVariable": "escolha",
	}}
}

func TestButtonsSendAndSuspend(t *testing.T) {
	sender, manager, _ := newTestSender()
	h := NewButtonsHandler(sender)

	node := buttonsNode()
	exec := newTestExecution(node)

	outcome, err := h.Execute(context.Background(), exec, node, textInbound("oi"))
	require.NoError(t, err)

	assert.Equal(t, flow.OutcomeSuspend, outcome.Kind)
	assert.NotNil(t, exec.Conversation.AwaitingSince)
	require.Len(t, manager.sent, 1)
	require.NotNil(t, manager.sent[0].Content.Buttons)
	assert.Len(t, manager.sent[0].Content.Buttons.Buttons, 2)
}

func TestButtonsReplyIDMatchesLabeledEdge(t *testing.T) {
	sender, _, _ := newTestSender()
	h := NewButtonsHandler(sender)

	node := buttonsNode()
	exec := newTestExecution(
		node,
		flow.Node{ID: "nv", Type: flow.NodeTypeMessage},
		flow.Node{ID: "ns", Type: flow.NodeTypeMessage},
	)
	exec.Flow.Edges = []flow.Edge{
		{Source: "b1", Target: "nv", Label: "btn_vendas"},
		{Source: "b1", Target: "ns", Label: "btn_suporte"},
	}
	exec.Conversation.MarkAwaiting()

	reply := textInbound("Suporte")
	reply.Metadata = map[string]any{"reply_id": "btn_suporte"}

	outcome, err := h.Execute(context.Background(), exec, node, reply)
	require.NoError(t, err)

	assert.Equal(t, flow.OutcomeJump, outcome.Kind)
	assert.Equal(t, "ns", outcome.TargetNodeID)
	assert.Equal(t, "Suporte", exec.Conversation.Context.Get("escolha"))
	assert.Nil(t, exec.Conversation.AwaitingSince)
}

func TestButtonsFreeTextMatchesByTitle(t *testing.T) {
	sender, _, _ := newTestSender()
	h := NewButtonsHandler(sender)

	node := buttonsNode()
	exec := newTestExecution(node, flow.Node{ID: "nv", Type: flow.NodeTypeMessage})
	exec.Flow.Edges = []flow.Edge{
		{Source: "b1", Target: "nv", Label: "Vendas"},
	}
	exec.Conversation.MarkAwaiting()

	// el contato digitó el texto en vez de tocar el botón
	outcome, err := h.Execute(context.Background(), exec, node, textInbound("vendas"))
	require.NoError(t, err)

	assert.Equal(t, flow.OutcomeJump, outcome.Kind)
	assert.Equal(t, "nv", outcome.TargetNodeID)
}

func TestButtonsUnmatchedReplyFollowsFirstEdge(t *testing.T) {
	sender, _, _ := newTestSender()
	h := NewButtonsHandler(sender)

	node := buttonsNode()
	exec := newTestExecution(node, flow.Node{ID: "next", Type: flow.NodeTypeMessage})
	exec.Flow.Edges = []flow.Edge{
		{Source: "b1", Target: "next"},
	}
	exec.Conversation.MarkAwaiting()

	outcome, err := h.Execute(context.Background(), exec, node, textInbound("outra coisa"))
	require.NoError(t, err)
	assert.Equal(t, flow.OutcomeAdvance, outcome.Kind)
}
