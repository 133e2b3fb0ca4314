package nodeexec

import (
	"context"
	"time"

	"github.com/Abraxas-365/craftable/logx"
	"github.com/google/uuid"
	"github.com/xkayo32/pytake-flow/flow"
)

// DelayHandler pausa la ejecución. Esperas cortas duermen dentro del tick;
// las largas se agendan como continuación y el tick termina, así un restart
// del proceso no pierde la espera.
type DelayHandler struct {
	sender    *MessageSender
	scheduler flow.DelayScheduler
}

var _ flow.NodeHandler = (*DelayHandler)(nil)

func NewDelayHandler(sender *MessageSender, scheduler flow.DelayScheduler) *DelayHandler {
	return &DelayHandler{sender: sender, scheduler: scheduler}
}

func (h *DelayHandler) Execute(ctx context.Context, exec *flow.Execution, node flow.Node, inbound *flow.InboundMessage) (flow.Outcome, error) {
	cfg, err := flow.ExtractDelayConfig(node.Data)
	if err != nil {
		return flow.Outcome{}, err
	}

	if cfg.Message != "" {
		if err := h.sender.SendText(ctx, exec, node.ID, cfg.Message); err != nil {
			return flow.Outcome{}, err
		}
	}

	delay := time.Duration(cfg.GetDelaySeconds() * float64(time.Second))
	if delay <= 0 {
		return flow.Advance(), nil
	}

	if h.scheduler != nil && h.scheduler.ShouldUseAsync(delay) {
		resumeNodeID, ok := flow.FirstEdgeTarget(exec.Flow, node.ID)
		if !ok {
			return flow.Outcome{}, flow.ErrDeadEnd().WithDetail("node_id", node.ID)
		}

		continuation := &flow.Continuation{
			ID:             uuid.NewString(),
			TenantID:       exec.Conversation.TenantID,
			ConversationID: exec.Conversation.ID,
			FlowID:         exec.Flow.ID,
			ResumeNodeID:   resumeNodeID,
			ScheduledFor:   time.Now().Add(delay),
			CreatedAt:      time.Now(),
		}
		if err := h.scheduler.Schedule(ctx, continuation, delay); err != nil {
			return flow.Outcome{}, err
		}

		logx.Info("⏰ Delay of %s scheduled for conversation %s (resume at %s)",
			delay, exec.Conversation.ID.String(), resumeNodeID)
		return flow.Suspend(), nil
	}

	select {
	case <-time.After(delay):
		return flow.Advance(), nil
	case <-ctx.Done():
		return flow.Outcome{}, ctx.Err()
	}
}

func (h *DelayHandler) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeDelay
}

func (h *DelayHandler) ValidateConfig(data map[string]any) error {
	_, err := flow.ExtractDelayConfig(data)
	return err
}
