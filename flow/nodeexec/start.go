package nodeexec

import (
	"context"

	"github.com/xkayo32/pytake-flow/flow"
)

// StartHandler es el punto de entrada del grafo: no hace nada más que avanzar.
type StartHandler struct{}

var _ flow.NodeHandler = (*StartHandler)(nil)

func NewStartHandler() *StartHandler {
	return &StartHandler{}
}

func (h *StartHandler) Execute(ctx context.Context, exec *flow.Execution, node flow.Node, inbound *flow.InboundMessage) (flow.Outcome, error) {
	return flow.Advance(), nil
}

func (h *StartHandler) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeStart
}

func (h *StartHandler) ValidateConfig(data map[string]any) error {
	return nil
}
