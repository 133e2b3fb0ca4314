package nodeexec

import (
	"context"

	"github.com/Abraxas-365/craftable/logx"
	"github.com/xkayo32/pytake-flow/flow"
)

// EndHandler cierra la ejecución del flow: despedida opcional, bot apagado.
type EndHandler struct {
	sender *MessageSender
}

var _ flow.NodeHandler = (*EndHandler)(nil)

func NewEndHandler(sender *MessageSender) *EndHandler {
	return &EndHandler{sender: sender}
}

func (h *EndHandler) Execute(ctx context.Context, exec *flow.Execution, node flow.Node, inbound *flow.InboundMessage) (flow.Outcome, error) {
	cfg, err := flow.ExtractEndConfig(node.Data)
	if err != nil {
		return flow.Outcome{}, err
	}

	if cfg.Text != "" {
		if err := h.sender.SendText(ctx, exec, node.ID, cfg.Text); err != nil {
			// la despedida no debe impedir el cierre
			logx.Error("failed to send farewell message: %v", err)
		}
	}

	exec.Conversation.Complete()
	return flow.Terminate(), nil
}

func (h *EndHandler) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeEnd
}

func (h *EndHandler) ValidateConfig(data map[string]any) error {
	_, err := flow.ExtractEndConfig(data)
	return err
}
