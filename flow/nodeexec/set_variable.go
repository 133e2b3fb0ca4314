package nodeexec

import (
	"context"
	"strings"

	"github.com/xkayo32/pytake-flow/flow"
)

// SetVariableHandler escribe variables en el contexto de la conversación.
type SetVariableHandler struct {
	interpolator *flow.Interpolator
}

var _ flow.NodeHandler = (*SetVariableHandler)(nil)

func NewSetVariableHandler(interpolator *flow.Interpolator) *SetVariableHandler {
	return &SetVariableHandler{interpolator: interpolator}
}

func (h *SetVariableHandler) Execute(ctx context.Context, exec *flow.Execution, node flow.Node, inbound *flow.InboundMessage) (flow.Outcome, error) {
	cfg, err := flow.ExtractSetVariableConfig(node.Data)
	if err != nil {
		return flow.Outcome{}, err
	}

	for _, spec := range cfg.Variables {
		// re-leído por iteración: un spec puede referenciar lo que definió el
		// anterior y Set recrea el mapa cuando el contexto arranca vacío
		vars := exec.Conversation.Context.Variables

		switch spec.ValueType {
		case "static":
			if s, ok := spec.Value.(string); ok {
				resolved, err := h.interpolator.Value(s, vars)
				if err != nil {
					return flow.Outcome{}, flow.ErrNodeExecutionFailed().
						WithDetail("variable", spec.Name).
						WithDetail("reason", err.Error())
				}
				exec.Conversation.Context.Set(spec.Name, resolved)
			} else {
				exec.Conversation.Context.Set(spec.Name, spec.Value)
			}

		case "variable":
			exec.Conversation.Context.Set(spec.Name, exec.Conversation.Context.Get(spec.VariableSource))

		case "expression":
			// plantillas como "Olá {{nome}}" se resuelven token a token; una
			// expresión pura ("preco * quantidade") pasa entera al interpolador
			if strings.Contains(spec.Expression, "{{") {
				exec.Conversation.Context.Set(spec.Name, h.interpolator.Text(spec.Expression, vars))
				continue
			}
			resolved, err := h.interpolator.Value("{{"+spec.Expression+"}}", vars)
			if err != nil {
				return flow.Outcome{}, flow.ErrNodeExecutionFailed().
					WithDetail("variable", spec.Name).
					WithDetail("expression", spec.Expression).
					WithDetail("reason", err.Error())
			}
			exec.Conversation.Context.Set(spec.Name, resolved)
		}
	}

	return flow.Advance(), nil
}

func (h *SetVariableHandler) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeSetVariable
}

func (h *SetVariableHandler) ValidateConfig(data map[string]any) error {
	_, err := flow.ExtractSetVariableConfig(data)
	return err
}
