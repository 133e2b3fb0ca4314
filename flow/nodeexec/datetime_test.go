package nodeexec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkayo32/pytake-flow/flow"
)

func newDatetimeHandlerAt(fixed time.Time) *DatetimeHandler {
	h := NewDatetimeHandler(flow.NewInterpolator())
	h.now = func() time.Time { return fixed }
	return h
}

func datetimeNode(data map[string]any) flow.Node {
	return flow.Node{ID: "dt", Type: flow.NodeTypeDatetime, Data: data}
}

func TestDatetimeGetCurrent(t *testing.T) {
	fixed := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	h := newDatetimeHandlerAt(fixed)

	node := datetimeNode(map[string]any{
		"operation":      "get_current",
		"outputFormat":   "DD/MM/YYYY HH:mm",
		"outputVariable": "agora",
	})
	exec := newTestExecution(node)

	outcome, err := h.Execute(context.Background(), exec, node, nil)
	require.NoError(t, err)
	assert.Equal(t, flow.OutcomeAdvance, outcome.Kind)
	assert.Equal(t, "15/03/2026 14:30", exec.Conversation.Context.Get("agora"))
}

func TestDatetimeFormatFromVariable(t *testing.T) {
	h := newDatetimeHandlerAt(time.Now())

	node := datetimeNode(map[string]any{
		"operation":      "format",
		"sourceVariable": "nascimento",
		"format":         "YYYY-MM-DD",
		"outputFormat":   "DD/MM/YYYY",
		"outputVariable": "nascimento_br",
	})
	exec := newTestExecution(node)
	exec.Conversation.Context.Set("nascimento", "1990-07-01")

	_, err := h.Execute(context.Background(), exec, node, nil)
	require.NoError(t, err)
	assert.Equal(t, "01/07/1990", exec.Conversation.Context.Get("nascimento_br"))
}

func TestDatetimeAdd(t *testing.T) {
	fixed := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)
	h := newDatetimeHandlerAt(fixed)

	node := datetimeNode(map[string]any{
		"operation":      "add",
		"addAmount":      2,
		"addUnit":        "days",
		"outputFormat":   "YYYY-MM-DD",
		"outputVariable": "prazo",
	})
	exec := newTestExecution(node)

	_, err := h.Execute(context.Background(), exec, node, nil)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-02", exec.Conversation.Context.Get("prazo"))
}

func TestDatetimeCompareBranches(t *testing.T) {
	fixed := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	h := newDatetimeHandlerAt(fixed)

	node := datetimeNode(map[string]any{
		"operation":      "compare",
		"compareWith":    "2030-01-01T00:00:00Z",
		"outputVariable": "antes_de_2030",
	})
	exec := newTestExecution(node)

	outcome, err := h.Execute(context.Background(), exec, node, nil)
	require.NoError(t, err)
	assert.Equal(t, flow.OutcomeBranch, outcome.Kind)
	assert.True(t, outcome.Branch)
	assert.Equal(t, true, exec.Conversation.Context.Get("antes_de_2030"))

	node = datetimeNode(map[string]any{
		"operation":      "compare",
		"compareWith":    "2020-01-01T00:00:00Z",
		"outputVariable": "antes_de_2020",
	})
	exec = newTestExecution(node)

	outcome, err = h.Execute(context.Background(), exec, node, nil)
	require.NoError(t, err)
	assert.False(t, outcome.Branch)
}

func TestDatetimeMalformedSourceFallsBackToNow(t *testing.T) {
	fixed := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	h := newDatetimeHandlerAt(fixed)

	node := datetimeNode(map[string]any{
		"operation":      "format",
		"sourceVariable": "data",
		"outputFormat":   "YYYY-MM-DD",
		"outputVariable": "formatada",
	})
	exec := newTestExecution(node)
	exec.Conversation.Context.Set("data", "isso não é uma data")

	_, err := h.Execute(context.Background(), exec, node, nil)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-15", exec.Conversation.Context.Get("formatada"))
}
