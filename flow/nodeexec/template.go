package nodeexec

import (
	"context"

	"github.com/xkayo32/pytake-flow/flow"
)

// TemplateHandler envía una plantilla aprobada de WhatsApp y avanza.
type TemplateHandler struct {
	sender *MessageSender
}

var _ flow.NodeHandler = (*TemplateHandler)(nil)

func NewTemplateHandler(sender *MessageSender) *TemplateHandler {
	return &TemplateHandler{sender: sender}
}

func (h *TemplateHandler) Execute(ctx context.Context, exec *flow.Execution, node flow.Node, inbound *flow.InboundMessage) (flow.Outcome, error) {
	cfg, err := flow.ExtractTemplateConfig(node.Data)
	if err != nil {
		return flow.Outcome{}, err
	}

	if err := h.sender.SendTemplate(ctx, exec, node.ID, *cfg); err != nil {
		return flow.Outcome{}, err
	}
	return flow.Advance(), nil
}

func (h *TemplateHandler) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeTemplate
}

func (h *TemplateHandler) ValidateConfig(data map[string]any) error {
	_, err := flow.ExtractTemplateConfig(data)
	return err
}
