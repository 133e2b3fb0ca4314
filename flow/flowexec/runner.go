package flowexec

import (
	"context"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/logx"
	"github.com/xkayo32/pytake-flow/flow"
	"github.com/xkayo32/pytake-flow/flow/nodeexec"
)

// apología enviada antes de transferir una conversación rota a un humano
const errorApology = "Desculpe, tivemos um problema técnico. Vou te transferir para um de nossos atendentes. 🙏"

// Runner camina el grafo de un flow: ejecuta el nodo actual, resuelve la
// próxima arista según el Outcome y persiste la conversación una vez por tick.
// Un tick arranca con un mensaje entrante, una continuación agendada o un
// timeout de pregunta, y termina cuando un handler suspende o termina el run.
type Runner struct {
	handlers map[flow.NodeType]flow.NodeHandler
	flowRepo flow.FlowRepository
	convRepo flow.ConversationRepository
	sender   *nodeexec.MessageSender
	guard    flow.LoopGuard
}

func NewRunner(
	flowRepo flow.FlowRepository,
	convRepo flow.ConversationRepository,
	sender *nodeexec.MessageSender,
	handlers ...flow.NodeHandler,
) *Runner {
	r := &Runner{
		handlers: make(map[flow.NodeType]flow.NodeHandler),
		flowRepo: flowRepo,
		convRepo: convRepo,
		sender:   sender,
	}
	for _, h := range handlers {
		r.RegisterHandler(h)
	}
	return r
}

// RegisterHandler binds a handler to every node type it supports.
func (r *Runner) RegisterHandler(handler flow.NodeHandler) {
	for _, nodeType := range flow.AllNodeTypes {
		if handler.SupportsType(nodeType) {
			r.handlers[nodeType] = handler
			logx.Info("✅ Registered handler for node type: %s", nodeType)
		}
	}
}

// ValidateFlow checks the graph structure and every node config against its
// registered handler. Used by the CRUD surface before activating a flow.
func (r *Runner) ValidateFlow(ctx context.Context, f *flow.Flow) error {
	if err := f.Validate(); err != nil {
		return err
	}

	for _, node := range f.Nodes {
		handler, ok := r.handlers[node.Type]
		if !ok {
			return flow.ErrUnknownNodeType().
				WithDetail("node_id", node.ID).
				WithDetail("node_type", string(node.Type))
		}
		if err := handler.ValidateConfig(node.Data); err != nil {
			return errx.Wrap(err, "node config validation failed", errx.TypeValidation).
				WithDetail("node_id", node.ID)
		}
	}
	return nil
}

// Resume executes ticks de conversación: entra con el puntero guardado (o el
// nodo start si no hay) y corre nodos hasta suspender o terminar. El mensaje
// entrante solo lo consume el primer nodo del tick; los siguientes ejecutan
// sin entrada.
func (r *Runner) Resume(ctx context.Context, conv *flow.Conversation, f *flow.Flow, inbound *flow.InboundMessage) error {
	exec := &flow.Execution{Conversation: conv, Flow: f}

	currentID := conv.CurrentNode()
	if currentID == "" {
		start := f.StartNode()
		if start == nil {
			return flow.ErrInvalidFlowGraph().
				WithDetail("flow_id", f.ID.String()).
				WithDetail("reason", "flow has no start node")
		}
		currentID = start.ID
	}

	for {
		node := exec.Flow.GetNode(currentID)
		if node == nil {
			// puntero roto: el flow cambió bajo la conversación
			logx.Error("🛑 Node %s not found in flow %s, resetting conversation %s",
				currentID, exec.Flow.ID.String(), conv.ID.String())
			conv.Reset()
			return r.persist(ctx, conv, flow.ErrNodeNotFound().WithDetail("node_id", currentID))
		}

		if r.guard.Visit(&conv.Context, node.ID) {
			logx.Error("🔁 Loop detected at node %s in flow %s (conversation %s)",
				node.ID, exec.Flow.ID.String(), conv.ID.String())
			r.forceHandoff(ctx, exec, node.ID)
			return r.persist(ctx, conv, flow.ErrLoopDetected().
				WithDetail("node_id", node.ID).
				WithDetail("flow_id", exec.Flow.ID.String()))
		}

		handler, ok := r.handlers[node.Type]
		if !ok {
			r.forceHandoff(ctx, exec, node.ID)
			return r.persist(ctx, conv, flow.ErrUnknownNodeType().
				WithDetail("node_type", string(node.Type)))
		}

		conv.PointTo(node.ID)
		outcome, err := handler.Execute(ctx, exec, *node, inbound)
		inbound = nil
		if err != nil {
			logx.Error("❌ Node %s (%s) failed: %v", node.ID, node.Type, err)
			r.forceHandoff(ctx, exec, node.ID)
			return r.persist(ctx, conv, err)
		}

		nextID, done, err := r.applyOutcome(ctx, exec, *node, outcome)
		if err != nil {
			// falla estructural del grafo: se loguea y el tick para sin avanzar
			logx.Error("🛑 Structural failure after node %s: %v", node.ID, err)
			return r.persist(ctx, conv, err)
		}
		if done {
			return r.persist(ctx, conv, nil)
		}

		currentID = nextID
	}
}

// applyOutcome resolves the runner action for one handler outcome. done=true
// means the tick is over (suspend or terminate).
func (r *Runner) applyOutcome(ctx context.Context, exec *flow.Execution, node flow.Node, outcome flow.Outcome) (string, bool, error) {
	conv := exec.Conversation

	switch outcome.Kind {
	case flow.OutcomeAdvance:
		target, ok := flow.FirstEdgeTarget(exec.Flow, node.ID)
		if !ok {
			return "", false, flow.ErrDeadEnd().
				WithDetail("node_id", node.ID).
				WithDetail("flow_id", exec.Flow.ID.String())
		}
		return target, false, nil

	case flow.OutcomeBranch:
		target, err := flow.BranchTarget(exec.Flow, node.ID, outcome.Branch)
		if err != nil {
			return "", false, err
		}
		return target, false, nil

	case flow.OutcomeJump:
		if !outcome.TargetFlowID.IsEmpty() && outcome.TargetFlowID != exec.Flow.ID {
			return r.jumpToFlow(ctx, exec, outcome)
		}
		return outcome.TargetNodeID, false, nil

	case flow.OutcomeSuspend:
		conv.PointTo(node.ID)
		return "", true, nil

	case flow.OutcomeTerminate:
		return "", true, nil

	default:
		return "", false, flow.ErrNodeExecutionFailed().
			WithDetail("reason", "handler returned unknown outcome")
	}
}

// jumpToFlow switches the conversation to another flow mid-run. The execution
// context and path survive the jump; node ids are builder-generated UUIDs, so
// visit counts never collide across flows.
func (r *Runner) jumpToFlow(ctx context.Context, exec *flow.Execution, outcome flow.Outcome) (string, bool, error) {
	target, err := r.flowRepo.FindByID(ctx, outcome.TargetFlowID)
	if err != nil {
		return "", false, err
	}
	if !target.IsActive {
		return "", false, flow.ErrFlowNotFound().
			WithDetail("flow_id", outcome.TargetFlowID.String()).
			WithDetail("reason", "target flow is inactive")
	}

	exec.Flow = target
	exec.Conversation.ActiveFlowID = target.ID

	nodeID := outcome.TargetNodeID
	if nodeID == "" {
		start := target.StartNode()
		if start == nil {
			return "", false, flow.ErrInvalidFlowGraph().
				WithDetail("flow_id", target.ID.String()).
				WithDetail("reason", "flow has no start node")
		}
		nodeID = start.ID
	}

	logx.Info("🔀 Conversation %s jumped to flow %s (node %s)",
		exec.Conversation.ID.String(), target.ID.String(), nodeID)
	return nodeID, false, nil
}

// forceHandoff parks a broken conversation with a human, best effort: the
// apology may fail too and the handoff still happens.
func (r *Runner) forceHandoff(ctx context.Context, exec *flow.Execution, nodeID string) {
	if err := r.sender.SendText(ctx, exec, nodeID, errorApology); err != nil {
		logx.Error("failed to send error apology: %v", err)
	}
	exec.Conversation.HandOff("", flow.PriorityHigh)
}

// persist writes the conversation back once per tick. A persistence failure
// takes precedence over the tick error, otherwise the tick error flows up for
// logging.
func (r *Runner) persist(ctx context.Context, conv *flow.Conversation, tickErr error) error {
	if err := r.convRepo.Save(ctx, *conv); err != nil {
		logx.Error("❌ Failed to persist conversation %s: %v", conv.ID.String(), err)
		return err
	}
	return tickErr
}
