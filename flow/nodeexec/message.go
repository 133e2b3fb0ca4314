package nodeexec

import (
	"context"

	"github.com/xkayo32/pytake-flow/flow"
)

// MessageHandler envía un mensaje de texto o media y avanza.
type MessageHandler struct {
	sender *MessageSender
}

var _ flow.NodeHandler = (*MessageHandler)(nil)

func NewMessageHandler(sender *MessageSender) *MessageHandler {
	return &MessageHandler{sender: sender}
}

func (h *MessageHandler) Execute(ctx context.Context, exec *flow.Execution, node flow.Node, inbound *flow.InboundMessage) (flow.Outcome, error) {
	cfg, err := flow.ExtractMessageConfig(node.Data)
	if err != nil {
		return flow.Outcome{}, err
	}

	if cfg.MediaURL != "" {
		if err := h.sender.SendMedia(ctx, exec, node.ID, cfg.MediaType, cfg.MediaURL, cfg.Caption); err != nil {
			return flow.Outcome{}, err
		}
	} else {
		if err := h.sender.SendText(ctx, exec, node.ID, cfg.Text); err != nil {
			return flow.Outcome{}, err
		}
	}

	return flow.Advance(), nil
}

func (h *MessageHandler) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeMessage
}

func (h *MessageHandler) ValidateConfig(data map[string]any) error {
	_, err := flow.ExtractMessageConfig(data)
	return err
}
