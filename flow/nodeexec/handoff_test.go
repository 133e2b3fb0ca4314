package nodeexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkayo32/pytake-flow/flow"
	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

func TestHandoffQueuesConversation(t *testing.T) {
	sender, manager, _ := newTestSender()
	h := NewHandoffHandler(sender)

	node := flow.Node{ID: "h1", Type: flow.NodeTypeHandoff, Data: map[string]any{
		"transferMessage":     "Te passo para um atendente!",
		"sendTransferMessage": true,
		"queueId":             "vendas",
		"priority":            "high",
	}}
	exec := newTestExecution(node)

	outcome, err := h.Execute(context.Background(), exec, node, nil)
	require.NoError(t, err)

	assert.Equal(t, flow.OutcomeTerminate, outcome.Kind)
	conv := exec.Conversation
	assert.False(t, conv.IsBotActive)
	assert.Equal(t, flow.ConversationStatusQueued, conv.Status)
	assert.Equal(t, kernel.NewQueueID("vendas"), conv.QueueID)
	assert.Equal(t, flow.PriorityHigh, conv.Priority)

	require.Len(t, manager.sent, 1)
	assert.Equal(t, "Te passo para um atendente!", manager.sent[0].Content.Text)
}

func TestHandoffWithoutMessage(t *testing.T) {
	sender, manager, _ := newTestSender()
	h := NewHandoffHandler(sender)

	node := flow.Node{ID: "h1", Type: flow.NodeTypeHandoff, Data: map[string]any{}}
	exec := newTestExecution(node)

	outcome, err := h.Execute(context.Background(), exec, node, nil)
	require.NoError(t, err)

	assert.Equal(t, flow.OutcomeTerminate, outcome.Kind)
	assert.Equal(t, flow.PriorityMedium, exec.Conversation.Priority)
	assert.Empty(t, manager.sent)
}

func TestHandoffSendFailureStillQueues(t *testing.T) {
	sender, manager, _ := newTestSender()
	manager.sendErr = flow.ErrNodeExecutionFailed()
	h := NewHandoffHandler(sender)

	node := flow.Node{ID: "h1", Type: flow.NodeTypeHandoff, Data: map[string]any{
		"transferMessage":     "Aguarde",
		"sendTransferMessage": true,
	}}
	exec := newTestExecution(node)

	outcome, err := h.Execute(context.Background(), exec, node, nil)
	require.NoError(t, err)
	assert.Equal(t, flow.OutcomeTerminate, outcome.Kind)
	assert.False(t, exec.Conversation.IsBotActive)
}
