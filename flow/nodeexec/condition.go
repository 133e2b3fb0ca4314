package nodeexec

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xkayo32/pytake-flow/flow"
)

// ConditionHandler evalúa predicados sobre el contexto y ramifica.
type ConditionHandler struct {
	interpolator *flow.Interpolator
}

var _ flow.NodeHandler = (*ConditionHandler)(nil)

func NewConditionHandler(interpolator *flow.Interpolator) *ConditionHandler {
	return &ConditionHandler{interpolator: interpolator}
}

func (h *ConditionHandler) Execute(ctx context.Context, exec *flow.Execution, node flow.Node, inbound *flow.InboundMessage) (flow.Outcome, error) {
	cfg, err := flow.ExtractConditionConfig(node.Data)
	if err != nil {
		return flow.Outcome{}, err
	}

	vars := exec.Conversation.Context.Variables
	result := cfg.GetLogicOperator() == "AND"

	for _, p := range cfg.Conditions {
		met, err := h.evaluate(p, vars)
		if err != nil {
			return flow.Outcome{}, err
		}
		if cfg.GetLogicOperator() == "AND" {
			result = result && met
			if !result {
				break
			}
		} else {
			result = result || met
			if result {
				break
			}
		}
	}

	return flow.BranchTo(result), nil
}

// evaluate resolves one predicate. An unset variable only satisfies "!=".
func (h *ConditionHandler) evaluate(p flow.Predicate, vars map[string]any) (bool, error) {
	actualRaw, err := h.interpolator.Value("{{"+p.Variable+"}}", vars)
	if err != nil || actualRaw == nil {
		return p.Operator == "!=", nil
	}

	expected := h.interpolator.Text(p.Value, vars)
	actual := fmt.Sprintf("%v", actualRaw)

	switch p.Operator {
	case "==":
		return compareEqual(actual, expected), nil
	case "!=":
		return !compareEqual(actual, expected), nil
	case "contains":
		return strings.Contains(strings.ToLower(actual), strings.ToLower(expected)), nil
	case ">", "<", ">=", "<=":
		return compareOrdered(actual, expected, p.Operator)
	default:
		return false, flow.ErrInvalidFlowNode().WithDetail("reason", "unknown operator: "+p.Operator)
	}
}

// compareEqual matches numerically when both sides parse as numbers, so
// "18" == "18.0"; otherwise case-insensitive string equality.
func compareEqual(actual, expected string) bool {
	a, errA := strconv.ParseFloat(actual, 64)
	b, errB := strconv.ParseFloat(expected, 64)
	if errA == nil && errB == nil {
		return a == b
	}
	return strings.EqualFold(strings.TrimSpace(actual), strings.TrimSpace(expected))
}

func compareOrdered(actual, expected, op string) (bool, error) {
	a, errA := strconv.ParseFloat(actual, 64)
	b, errB := strconv.ParseFloat(expected, 64)
	if errA != nil || errB != nil {
		// comparación lexicográfica case-insensitive cuando no son números
		lowA, lowB := strings.ToLower(actual), strings.ToLower(expected)
		switch op {
		case ">":
			return lowA > lowB, nil
		case "<":
			return lowA < lowB, nil
		case ">=":
			return lowA >= lowB, nil
		default:
			return lowA <= lowB, nil
		}
	}

	switch op {
	case ">":
		return a > b, nil
	case "<":
		return a < b, nil
	case ">=":
		return a >= b, nil
	default:
		return a <= b, nil
	}
}

func (h *ConditionHandler) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeCondition
}

func (h *ConditionHandler) ValidateConfig(data map[string]any) error {
	_, err := flow.ExtractConditionConfig(data)
	return err
}
