package nodeexec

import (
	"context"
	"testing"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkayo32/pytake-flow/flow"
)

func scriptNode(data map[string]any) flow.Node {
	return flow.Node{ID: "js", Type: flow.NodeTypeScript, Data: data}
}

func TestScriptReturnsLastExpression(t *testing.T) {
	h := NewScriptHandler()

	node := scriptNode(map[string]any{
		"code":           "variables.preco * 2",
		"outputVariable": "dobro",
	})
	exec := newTestExecution(node)
	exec.Conversation.Context.Set("preco", 21)

	outcome, err := h.Execute(context.Background(), exec, node, nil)
	require.NoError(t, err)
	assert.Equal(t, flow.OutcomeAdvance, outcome.Kind)
	assert.EqualValues(t, 42, exec.Conversation.Context.Get("dobro"))
}

func TestScriptSeesInboundMessage(t *testing.T) {
	h := NewScriptHandler()

	node := scriptNode(map[string]any{
		"code":           "message.toUpperCase()",
		"outputVariable": "gritado",
	})
	exec := newTestExecution(node)

	_, err := h.Execute(context.Background(), exec, node, textInbound("oi"))
	require.NoError(t, err)
	assert.Equal(t, "OI", exec.Conversation.Context.Get("gritado"))
}

func TestScriptDoesNotMutateContext(t *testing.T) {
	h := NewScriptHandler()

	node := scriptNode(map[string]any{
		"code": "variables.nome = 'hackeado'; true",
	})
	exec := newTestExecution(node)
	exec.Conversation.Context.Set("nome", "Ana")

	_, err := h.Execute(context.Background(), exec, node, nil)
	require.NoError(t, err)
	assert.Equal(t, "Ana", exec.Conversation.Context.Get("nome"))
}

func TestScriptTimeoutStops(t *testing.T) {
	h := NewScriptHandler()

	node := scriptNode(map[string]any{
		"code":          "while (true) {}",
		"timeout":       1,
		"errorHandling": map[string]any{"onError": "stop"},
	})
	exec := newTestExecution(node)

	_, err := h.Execute(context.Background(), exec, node, nil)
	require.Error(t, err)
	assert.True(t, errx.IsType(err, errx.TypeInternal))
}

func TestScriptErrorContinuesWithFallback(t *testing.T) {
	h := NewScriptHandler()

	node := scriptNode(map[string]any{
		"code":           "null.explode()",
		"outputVariable": "resultado",
		"errorHandling": map[string]any{
			"onError":       "continue",
			"fallbackValue": "padrão",
		},
	})
	exec := newTestExecution(node)

	outcome, err := h.Execute(context.Background(), exec, node, nil)
	require.NoError(t, err)
	assert.Equal(t, flow.OutcomeAdvance, outcome.Kind)
	assert.Equal(t, "padrão", exec.Conversation.Context.Get("resultado"))
}
