package nodeexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkayo32/pytake-flow/flow"
)

func conditionNode(logicOp string, predicates ...map[string]any) flow.Node {
	conditions := make([]any, 0, len(predicates))
	for _, p := range predicates {
		conditions = append(conditions, p)
	}
	data := map[string]any{"conditions": conditions}
	if logicOp != "" {
		data["logicOperator"] = logicOp
	}
	return flow.Node{ID: "cond", Type: flow.NodeTypeCondition, Data: data}
}

func runCondition(t *testing.T, node flow.Node, vars map[string]any) bool {
	t.Helper()
	h := NewConditionHandler(flow.NewInterpolator())
	exec := newTestExecution(node)
	for k, v := range vars {
		exec.Conversation.Context.Set(k, v)
	}

	outcome, err := h.Execute(context.Background(), exec, node, nil)
	require.NoError(t, err)
	require.Equal(t, flow.OutcomeBranch, outcome.Kind)
	return outcome.Branch
}

func TestConditionOperators(t *testing.T) {
	vars := map[string]any{"idade": 20, "nome": "Maria Silva", "plano": "pro", "letra": "b"}

	cases := []struct {
		name     string
		variable string
		operator string
		value    string
		want     bool
	}{
		{"numeric gte", "idade", ">=", "18", true},
		{"numeric lt", "idade", "<", "18", false},
		{"numeric equal across formats", "idade", "==", "20.0", true},
		{"string equal case insensitive", "plano", "==", "PRO", true},
		{"not equal", "plano", "!=", "free", true},
		{"contains case insensitive", "nome", "contains", "silva", true},
		{"contains miss", "nome", "contains", "souza", false},
		{"lexicographic case insensitive", "letra", "<", "C", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			node := conditionNode("", map[string]any{
				"variable": tc.variable, "operator": tc.operator, "value": tc.value,
			})
			assert.Equal(t, tc.want, runCondition(t, node, vars))
		})
	}
}

func TestConditionUnsetVariableOnlySatisfiesNotEqual(t *testing.T) {
	node := conditionNode("", map[string]any{"variable": "fantasma", "operator": "==", "value": "x"})
	assert.False(t, runCondition(t, node, nil))

	node = conditionNode("", map[string]any{"variable": "fantasma", "operator": "!=", "value": "x"})
	assert.True(t, runCondition(t, node, nil))
}

func TestConditionLogicOperators(t *testing.T) {
	vars := map[string]any{"idade": 20, "plano": "free"}

	// AND: ambos predicados deben cumplirse
	node := conditionNode("AND",
		map[string]any{"variable": "idade", "operator": ">=", "value": "18"},
		map[string]any{"variable": "plano", "operator": "==", "value": "pro"},
	)
	assert.False(t, runCondition(t, node, vars))

	// OR: uno alcanza
	node = conditionNode("OR",
		map[string]any{"variable": "idade", "operator": ">=", "value": "18"},
		map[string]any{"variable": "plano", "operator": "==", "value": "pro"},
	)
	assert.True(t, runCondition(t, node, vars))
}

func TestConditionInterpolatedExpectedValue(t *testing.T) {
	node := conditionNode("", map[string]any{
		"variable": "resposta", "operator": "==", "value": "{{esperado}}",
	})
	vars := map[string]any{"resposta": "sim", "esperado": "sim"}
	assert.True(t, runCondition(t, node, vars))
}
