package nodeexec

import (
	"context"
	"fmt"
	"testing"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkayo32/pytake-flow/flow"
)

// fakeDBBackend registra la última consulta y puede fallar las primeras N.
type fakeDBBackend struct {
	calls     int
	failures  int
	rows      []map[string]any
	gotConn   string
	gotQuery  string
	gotParams []any
}

func (b *fakeDBBackend) Type() string { return "postgresql" }

func (b *fakeDBBackend) Query(ctx context.Context, connectionString, query string, params []any) ([]map[string]any, error) {
	b.calls++
	b.gotConn = connectionString
	b.gotQuery = query
	b.gotParams = params
	if b.calls <= b.failures {
		return nil, fmt.Errorf("connection refused")
	}
	return b.rows, nil
}

func databaseQueryNode(data map[string]any) flow.Node {
	base := map[string]any{
		"databaseType":     "postgresql",
		"connectionString": "postgres://app@{{tenant_db}}/pedidos",
		"query":            "SELECT * FROM pedidos WHERE status = $1",
		"resultVariable":   "pedidos",
	}
	for k, v := range data {
		base[k] = v
	}
	return flow.Node{ID: "db1", Type: flow.NodeTypeDatabaseQuery, Data: base}
}

func TestDatabaseQueryInterpolatesConnectionQueryAndParams(t *testing.T) {
	backend := &fakeDBBackend{rows: []map[string]any{{"id": 1}}}
	h := NewDatabaseQueryHandler(flow.NewInterpolator(), backend)

	node := databaseQueryNode(map[string]any{
		"query":      "SELECT * FROM {{tabela}} WHERE status = $1",
		"parameters": []any{"{{status}}"},
	})
	exec := newTestExecution(node)
	exec.Conversation.Context.Set("tenant_db", "db-acme.internal")
	exec.Conversation.Context.Set("tabela", "pedidos")
	exec.Conversation.Context.Set("status", "pago")

	outcome, err := h.Execute(context.Background(), exec, node, nil)
	require.NoError(t, err)

	assert.Equal(t, flow.OutcomeAdvance, outcome.Kind)
	assert.Equal(t, "postgres://app@db-acme.internal/pedidos", backend.gotConn)
	assert.Equal(t, "SELECT * FROM pedidos WHERE status = $1", backend.gotQuery)
	require.Len(t, backend.gotParams, 1)
	assert.Equal(t, "pago", backend.gotParams[0])
	assert.Equal(t, []map[string]any{{"id": 1}}, exec.Conversation.Context.Get("pedidos"))
}

func TestDatabaseQueryResultFormatFirst(t *testing.T) {
	backend := &fakeDBBackend{rows: []map[string]any{{"id": 1}, {"id": 2}}}
	h := NewDatabaseQueryHandler(flow.NewInterpolator(), backend)

	node := databaseQueryNode(map[string]any{"resultFormat": "first"})
	exec := newTestExecution(node)

	_, err := h.Execute(context.Background(), exec, node, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": 1}, exec.Conversation.Context.Get("pedidos"))
}

func TestDatabaseQueryRetriesUntilSuccess(t *testing.T) {
	backend := &fakeDBBackend{failures: 2, rows: []map[string]any{{"id": 7}}}
	h := NewDatabaseQueryHandler(flow.NewInterpolator(), backend)

	node := databaseQueryNode(map[string]any{
		"errorHandling": map[string]any{"onError": "stop", "maxRetries": 2, "retryDelay": 0},
	})
	exec := newTestExecution(node)

	outcome, err := h.Execute(context.Background(), exec, node, nil)
	require.NoError(t, err)

	assert.Equal(t, flow.OutcomeAdvance, outcome.Kind)
	assert.Equal(t, 3, backend.calls)
	assert.Equal(t, []map[string]any{{"id": 7}}, exec.Conversation.Context.Get("pedidos"))
}

func TestDatabaseQueryExhaustedRetriesStops(t *testing.T) {
	backend := &fakeDBBackend{failures: 10}
	h := NewDatabaseQueryHandler(flow.NewInterpolator(), backend)

	node := databaseQueryNode(map[string]any{
		"errorHandling": map[string]any{"onError": "stop", "maxRetries": 1, "retryDelay": 0},
	})
	exec := newTestExecution(node)

	_, err := h.Execute(context.Background(), exec, node, nil)
	require.Error(t, err)
	assert.True(t, errx.IsType(err, errx.TypeInternal))
	assert.Equal(t, 2, backend.calls)
}

func TestDatabaseQueryContinueStoresFallback(t *testing.T) {
	backend := &fakeDBBackend{failures: 10}
	h := NewDatabaseQueryHandler(flow.NewInterpolator(), backend)

	node := databaseQueryNode(map[string]any{
		"errorHandling": map[string]any{"onError": "continue", "fallbackValue": "sem dados"},
	})
	exec := newTestExecution(node)

	outcome, err := h.Execute(context.Background(), exec, node, nil)
	require.NoError(t, err)
	assert.Equal(t, flow.OutcomeAdvance, outcome.Kind)
	assert.Equal(t, "sem dados", exec.Conversation.Context.Get("pedidos"))
}
