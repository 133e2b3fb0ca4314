package nodeexec

import (
	"context"

	"github.com/xkayo32/pytake-flow/flow"
)

// ListHandler envía una lista interactiva y espera la elección, con la misma
// resolución de aristas que los botones.
type ListHandler struct {
	sender *MessageSender
}

var _ flow.NodeHandler = (*ListHandler)(nil)

func NewListHandler(sender *MessageSender) *ListHandler {
	return &ListHandler{sender: sender}
}

func (h *ListHandler) Execute(ctx context.Context, exec *flow.Execution, node flow.Node, inbound *flow.InboundMessage) (flow.Outcome, error) {
	cfg, err := flow.ExtractListConfig(node.Data)
	if err != nil {
		return flow.Outcome{}, err
	}

	conv := exec.Conversation

	if conv.AwaitingSince == nil || inbound == nil {
		if err := h.sender.SendList(ctx, exec, node.ID, *cfg); err != nil {
			return flow.Outcome{}, err
		}
		conv.MarkAwaiting()
		return flow.Suspend(), nil
	}

	conv.ClearAwaiting()

	replyID := replyIdentifier(inbound)
	if cfg.OutputVariable != "" {
		conv.Context.Set(cfg.OutputVariable, inbound.Text)
	}

	if target, ok := matchReplyEdge(exec.Flow, node.ID, replyID, inbound.Text); ok {
		return flow.JumpTo(target), nil
	}
	return flow.Advance(), nil
}

func (h *ListHandler) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeList
}

func (h *ListHandler) ValidateConfig(data map[string]any) error {
	_, err := flow.ExtractListConfig(data)
	return err
}
