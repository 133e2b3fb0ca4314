package nodeexec

import (
	"context"

	"github.com/Abraxas-365/craftable/logx"
	"github.com/xkayo32/pytake-flow/flow"
	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

// HandoffHandler transfiere la conversación a atención humana y apaga el bot.
type HandoffHandler struct {
	sender *MessageSender
}

var _ flow.NodeHandler = (*HandoffHandler)(nil)

func NewHandoffHandler(sender *MessageSender) *HandoffHandler {
	return &HandoffHandler{sender: sender}
}

func (h *HandoffHandler) Execute(ctx context.Context, exec *flow.Execution, node flow.Node, inbound *flow.InboundMessage) (flow.Outcome, error) {
	cfg, err := flow.ExtractHandoffConfig(node.Data)
	if err != nil {
		return flow.Outcome{}, err
	}

	if cfg.SendTransferMessage && cfg.TransferMessage != "" {
		if err := h.sender.SendText(ctx, exec, node.ID, cfg.TransferMessage); err != nil {
			logx.Error("failed to send transfer message: %v", err)
		}
	}

	exec.Conversation.HandOff(kernel.NewQueueID(cfg.QueueID), cfg.GetPriority())
	logx.Info("🤝 Conversation %s handed off to queue %s (priority %s)",
		exec.Conversation.ID.String(), cfg.QueueID, cfg.GetPriority())

	return flow.Terminate(), nil
}

func (h *HandoffHandler) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeHandoff
}

func (h *HandoffHandler) ValidateConfig(data map[string]any) error {
	_, err := flow.ExtractHandoffConfig(data)
	return err
}
