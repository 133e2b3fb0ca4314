package nodeexec

import (
	"context"
	"strings"

	"github.com/xkayo32/pytake-flow/flow"
)

// ButtonsHandler envía botones de respuesta rápida y espera la elección. La
// arista cuyo label coincide con el id o título del botón elegido decide el
// próximo nodo; sin coincidencia se sigue la primera arista.
type ButtonsHandler struct {
	sender *MessageSender
}

var _ flow.NodeHandler = (*ButtonsHandler)(nil)

func NewButtonsHandler(sender *MessageSender) *ButtonsHandler {
	return &ButtonsHandler{sender: sender}
}

func (h *ButtonsHandler) Execute(ctx context.Context, exec *flow.Execution, node flow.Node, inbound *flow.InboundMessage) (flow.Outcome, error) {
	cfg, err := flow.ExtractButtonsConfig(node.Data)
	if err != nil {
		return flow.Outcome{}, err
	}

	conv := exec.Conversation

	if conv.AwaitingSince == nil || inbound == nil {
		if err := h.sender.SendButtons(ctx, exec, node.ID, *cfg); err != nil {
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

func (h *ButtonsHandler) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeButtons
}

func (h *ButtonsHandler) ValidateConfig(data map[string]any) error {
	_, err := flow.ExtractButtonsConfig(data)
	return err
}

// replyIdentifier extracts the structured reply id a channel attached to an
// interactive answer, "" for free-typed text.
func replyIdentifier(inbound *flow.InboundMessage) string {
	if inbound.Metadata == nil {
		return ""
	}
	if id, ok := inbound.Metadata["reply_id"].(string); ok {
		return id
	}
	return ""
}

// matchReplyEdge finds the outgoing edge labeled with the chosen option.
func matchReplyEdge(f *flow.Flow, nodeID, replyID, replyText string) (string, bool) {
	for _, e := range f.EdgesFrom(nodeID) {
		label := strings.TrimSpace(e.Label)
		if label == "" {
			continue
		}
		if label == replyID || strings.EqualFold(label, strings.TrimSpace(replyText)) {
			return e.Target, true
		}
	}
	return "", false
}
