package nodeexec

import (
	"context"

	"github.com/xkayo32/pytake-flow/flow"
	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

// JumpHandler mueve el puntero a otro nodo o a otro flow.
type JumpHandler struct{}

var _ flow.NodeHandler = (*JumpHandler)(nil)

func NewJumpHandler() *JumpHandler {
	return &JumpHandler{}
}

func (h *JumpHandler) Execute(ctx context.Context, exec *flow.Execution, node flow.Node, inbound *flow.InboundMessage) (flow.Outcome, error) {
	cfg, err := flow.ExtractJumpConfig(node.Data)
	if err != nil {
		return flow.Outcome{}, err
	}

	if cfg.JumpType == "flow" {
		return flow.JumpToFlow(kernel.NewFlowID(cfg.TargetFlowID), cfg.TargetNodeID), nil
	}

	if exec.Flow.GetNode(cfg.TargetNodeID) == nil {
		return flow.Outcome{}, flow.ErrNodeNotFound().
			WithDetail("node_id", cfg.TargetNodeID).
			WithDetail("flow_id", exec.Flow.ID.String())
	}
	return flow.JumpTo(cfg.TargetNodeID), nil
}

func (h *JumpHandler) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeJump
}

func (h *JumpHandler) ValidateConfig(data map[string]any) error {
	_, err := flow.ExtractJumpConfig(data)
	return err
}
