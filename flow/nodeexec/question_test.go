package nodeexec

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkayo32/pytake-flow/flow"
)

func questionNode(data map[string]any) flow.Node {
	return flow.Node{ID: "q1", Type: flow.NodeTypeQuestion, Data: data}
}

func TestQuestionAsksAndSuspends(t *testing.T) {
	sender, manager, _ := newTestSender()
	h := NewQuestionHandler(sender)

	node := questionNode(map[string]any{
		"text": "Qual seu nome?", "outputVariable": "nome",
	})
	exec := newTestExecution(node)

	outcome, err := h.Execute(context.Background(), exec, node, textInbound("oi"))
	require.NoError(t, err)

	assert.Equal(t, flow.OutcomeSuspend, outcome.Kind)
	assert.NotNil(t, exec.Conversation.AwaitingSince)
	require.Len(t, manager.sent, 1)
	assert.Equal(t, "Qual seu nome?", manager.sent[0].Content.Text)
}

func TestQuestionAcceptsValidAnswer(t *testing.T) {
	sender, _, _ := newTestSender()
	h := NewQuestionHandler(sender)

	node := questionNode(map[string]any{
		"text": "Qual seu email?", "responseType": "email", "outputVariable": "email",
	})
	exec := newTestExecution(node)
	exec.Conversation.MarkAwaiting()

	outcome, err := h.Execute(context.Background(), exec, node, textInbound("Ana@Example.COM"))
	require.NoError(t, err)

	assert.Equal(t, flow.OutcomeAdvance, outcome.Kind)
	assert.Equal(t, "ana@example.com", exec.Conversation.Context.Get("email"))
	assert.Nil(t, exec.Conversation.AwaitingSince)
}

func TestQuestionNumberAcceptsComma(t *testing.T) {
	sender, _, _ := newTestSender()
	h := NewQuestionHandler(sender)

	node := questionNode(map[string]any{
		"text": "Qual o valor?", "responseType": "number", "outputVariable": "valor",
	})
	exec := newTestExecution(node)
	exec.Conversation.MarkAwaiting()

	outcome, err := h.Execute(context.Background(), exec, node, textInbound("19,90"))
	require.NoError(t, err)

	assert.Equal(t, flow.OutcomeAdvance, outcome.Kind)
	assert.Equal(t, 19.90, exec.Conversation.Context.Get("valor"))
}

func TestQuestionInvalidAnswerRepeatsUntilExhausted(t *testing.T) {
	sender, manager, _ := newTestSender()
	h := NewQuestionHandler(sender)

	node := questionNode(map[string]any{
		"text":           "Qual seu email?",
		"responseType":   "email",
		"outputVariable": "email",
		"validation":     map[string]any{"maxAttempts": 2, "errorMessage": "Email inválido"},
	})
	exec := newTestExecution(node)
	exec.Conversation.MarkAwaiting()
	ctx := context.Background()

	// intento 1: mensaje de error + repregunta, suspende
	outcome, err := h.Execute(ctx, exec, node, textInbound("nada a ver"))
	require.NoError(t, err)
	assert.Equal(t, flow.OutcomeSuspend, outcome.Kind)
	assert.Equal(t, 1, exec.Conversation.Context.Attempts("q1"))
	require.Len(t, manager.sent, 2)
	assert.Equal(t, "Email inválido", manager.sent[0].Content.Text)
	assert.Equal(t, "Qual seu email?", manager.sent[1].Content.Text)

	// intento 2: se agotan los intentos, sale el aviso final y el flow
	// sigue sin la variable
	outcome, err = h.Execute(ctx, exec, node, textInbound("tampouco"))
	require.NoError(t, err)
	assert.Equal(t, flow.OutcomeAdvance, outcome.Kind)
	assert.Nil(t, exec.Conversation.Context.Get("email"))
	assert.Equal(t, 0, exec.Conversation.Context.Attempts("q1"))
	assert.Nil(t, exec.Conversation.AwaitingSince)
	require.Len(t, manager.sent, 3)
	assert.Equal(t, questionFinalNotice, manager.sent[2].Content.Text)
}

func TestQuestionOptionsRendersNumberedList(t *testing.T) {
	sender, manager, _ := newTestSender()
	h := NewQuestionHandler(sender)

	node := questionNode(map[string]any{
		"text":           "Escolha um setor:",
		"responseType":   "options",
		"options":        []any{"Vendas", "Suporte"},
		"outputVariable": "setor",
	})
	exec := newTestExecution(node)

	_, err := h.Execute(context.Background(), exec, node, nil)
	require.NoError(t, err)

	require.Len(t, manager.sent, 1)
	expected := fmt.Sprintf("Escolha um setor:\n1. %s\n2. %s", "Vendas", "Suporte")
	assert.Equal(t, expected, manager.sent[0].Content.Text)
}

func TestQuestionOptionsAcceptNumberOrText(t *testing.T) {
	sender, _, _ := newTestSender()
	h := NewQuestionHandler(sender)

	node := questionNode(map[string]any{
		"text":           "Escolha um setor:",
		"responseType":   "options",
		"options":        []any{"Vendas", "Suporte"},
		"outputVariable": "setor",
	})
	ctx := context.Background()

	exec := newTestExecution(node)
	exec.Conversation.MarkAwaiting()
	outcome, err := h.Execute(ctx, exec, node, textInbound("2"))
	require.NoError(t, err)
	assert.Equal(t, flow.OutcomeAdvance, outcome.Kind)
	assert.Equal(t, "Suporte", exec.Conversation.Context.Get("setor"))

	exec = newTestExecution(node)
	exec.Conversation.MarkAwaiting()
	outcome, err = h.Execute(ctx, exec, node, textInbound("vendas"))
	require.NoError(t, err)
	assert.Equal(t, flow.OutcomeAdvance, outcome.Kind)
	assert.Equal(t, "Vendas", exec.Conversation.Context.Get("setor"))
}
