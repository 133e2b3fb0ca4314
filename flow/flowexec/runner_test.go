package flowexec

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkayo32/pytake-flow/channels"
	"github.com/xkayo32/pytake-flow/flow"
	"github.com/xkayo32/pytake-flow/flow/nodeexec"
	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

// ============================================================================
// Fakes
// ============================================================================

type fakeFlowRepo struct {
	flows map[kernel.FlowID]*flow.Flow
}

func newFakeFlowRepo(flows ...*flow.Flow) *fakeFlowRepo {
	r := &fakeFlowRepo{flows: make(map[kernel.FlowID]*flow.Flow)}
	for _, f := range flows {
		r.flows[f.ID] = f
	}
	return r
}

func (r *fakeFlowRepo) Save(ctx context.Context, f flow.Flow) error {
	r.flows[f.ID] = &f
	return nil
}

func (r *fakeFlowRepo) FindByID(ctx context.Context, id kernel.FlowID) (*flow.Flow, error) {
	f, ok := r.flows[id]
	if !ok {
		return nil, flow.ErrFlowNotFound().WithDetail("flow_id", id.String())
	}
	return f, nil
}

func (r *fakeFlowRepo) FindMainByChannel(ctx context.Context, tenantID kernel.TenantID, channelID kernel.ChannelID) (*flow.Flow, error) {
	return nil, flow.ErrFlowNotFound()
}

func (r *fakeFlowRepo) FindFallback(ctx context.Context, tenantID kernel.TenantID, chatbotID kernel.ChatbotID) (*flow.Flow, error) {
	return nil, flow.ErrFlowNotFound()
}

func (r *fakeFlowRepo) FindByChatbot(ctx context.Context, tenantID kernel.TenantID, chatbotID kernel.ChatbotID) ([]*flow.Flow, error) {
	return nil, nil
}

func (r *fakeFlowRepo) Delete(ctx context.Context, id kernel.FlowID, tenantID kernel.TenantID) error {
	delete(r.flows, id)
	return nil
}

func (r *fakeFlowRepo) List(ctx context.Context, req flow.FlowListRequest) (flow.FlowListResponse, error) {
	return flow.FlowListResponse{}, nil
}

type fakeConvRepo struct {
	saved []flow.Conversation
}

func (r *fakeConvRepo) Save(ctx context.Context, conv flow.Conversation) error {
	r.saved = append(r.saved, conv)
	return nil
}

func (r *fakeConvRepo) FindByID(ctx context.Context, id kernel.ConversationID) (*flow.Conversation, error) {
	return nil, flow.ErrConversationNotFound()
}

func (r *fakeConvRepo) FindByChannelAndContact(ctx context.Context, channelID kernel.ChannelID, contactID string) (*flow.Conversation, error) {
	return nil, flow.ErrConversationNotFound()
}

func (r *fakeConvRepo) FindAwaitingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*flow.Conversation, error) {
	return nil, nil
}

func (r *fakeConvRepo) Delete(ctx context.Context, id kernel.ConversationID) error {
	return nil
}

type fakeMsgRepo struct {
	outbound []flow.OutboundRecord
}

func (r *fakeMsgRepo) SaveInbound(ctx context.Context, tenantID kernel.TenantID, conversationID kernel.ConversationID, msg flow.InboundMessage) error {
	return nil
}

func (r *fakeMsgRepo) CreateOutboundRecord(ctx context.Context, rec flow.OutboundRecord) error {
	r.outbound = append(r.outbound, rec)
	return nil
}

func (r *fakeMsgRepo) CountOutboundByConversation(ctx context.Context, conversationID kernel.ConversationID) (int, error) {
	return len(r.outbound), nil
}

// fakeChannelManager records every message the engine tries to send.
type fakeChannelManager struct {
	sent []channels.OutgoingMessage
}

func (m *fakeChannelManager) RegisterChannel(ctx context.Context, channel channels.Channel) error {
	return nil
}

func (m *fakeChannelManager) SendMessage(ctx context.Context, tenantID kernel.TenantID, channelID kernel.ChannelID, msg channels.OutgoingMessage) (string, error) {
	m.sent = append(m.sent, msg)
	return "wamid.fake", nil
}

func (m *fakeChannelManager) GetAdapter(channelID kernel.ChannelID) (channels.ChannelAdapter, error) {
	return nil, nil
}

func (m *fakeChannelManager) ResolveInbound(ctx context.Context, phoneNumberID string, payload []byte, headers map[string]string) (*channels.Channel, *channels.IncomingMessage, error) {
	return nil, nil, nil
}

func (m *fakeChannelManager) lastText(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1].Content.Text
}

// ============================================================================
// Harness
// ============================================================================

type harness struct {
	runner   *Runner
	flowRepo *fakeFlowRepo
	convRepo *fakeConvRepo
	msgRepo  *fakeMsgRepo
	manager  *fakeChannelManager
}

func newHarness(t *testing.T, flows ...*flow.Flow) *harness {
	t.Helper()

	flowRepo := newFakeFlowRepo(flows...)
	convRepo := &fakeConvRepo{}
	msgRepo := &fakeMsgRepo{}
	manager := &fakeChannelManager{}

	interpolator := flow.NewInterpolator()
	sender := nodeexec.NewMessageSender(manager, msgRepo, interpolator)

	runner := NewRunner(
		flowRepo,
		convRepo,
		sender,
		nodeexec.NewStartHandler(),
		nodeexec.NewMessageHandler(sender),
		nodeexec.NewQuestionHandler(sender),
		nodeexec.NewConditionHandler(interpolator),
		nodeexec.NewJumpHandler(),
		nodeexec.NewEndHandler(sender),
	)

	return &harness{runner: runner, flowRepo: flowRepo, convRepo: convRepo, msgRepo: msgRepo, manager: manager}
}

func newConversation(flowID kernel.FlowID) *flow.Conversation {
	return &flow.Conversation{
		ID:           kernel.NewConversationID("c1"),
		TenantID:     kernel.NewTenantID("t1"),
		ChannelID:    kernel.NewChannelID("ch1"),
		ContactID:    "5511999990000",
		ActiveFlowID: flowID,
		Context:      flow.NewExecutionContext(),
		IsBotActive:  true,
		Status:       flow.ConversationStatusActive,
	}
}

func inbound(text string) *flow.InboundMessage {
	return &flow.InboundMessage{
		ID:        kernel.NewMessageID("m1"),
		ChannelID: kernel.NewChannelID("ch1"),
		From:      "5511999990000",
		Type:      "text",
		Text:      text,
		Timestamp: time.Now(),
	}
}

func linearFlow() *flow.Flow {
	return &flow.Flow{
		ID:       kernel.NewFlowID("f1"),
		TenantID: kernel.NewTenantID("t1"),
		Name:     "boas-vindas",
		Nodes: []flow.Node{
			{ID: "start", Type: flow.NodeTypeStart},
			{ID: "msg1", Type: flow.NodeTypeMessage, Data: map[string]any{"text": "Olá, bem-vindo!"}},
			{ID: "end", Type: flow.NodeTypeEnd, Data: map[string]any{}},
		},
		Edges: []flow.Edge{
			{Source: "start", Target: "msg1"},
			{Source: "msg1", Target: "end"},
		},
		IsActive: true,
	}
}

// ============================================================================
// Tests
// ============================================================================

func TestRunnerLinearRun(t *testing.T) {
	f := linearFlow()
	h := newHarness(t, f)
	conv := newConversation(f.ID)

	err := h.runner.Resume(context.Background(), conv, f, inbound("oi"))
	require.NoError(t, err)

	// welcome sent, run completed, pointer cleared
	require.Len(t, h.manager.sent, 1)
	assert.Equal(t, "Olá, bem-vindo!", h.manager.lastText(t))
	assert.Nil(t, conv.CurrentNodeID)
	assert.False(t, conv.IsBotActive)

	// persisted exactly once per tick
	require.Len(t, h.convRepo.saved, 1)
	assert.Len(t, h.msgRepo.outbound, 1)
}

func TestRunnerConditionBranch(t *testing.T) {
	f := &flow.Flow{
		ID:       kernel.NewFlowID("f1"),
		TenantID: kernel.NewTenantID("t1"),
		Name:     "triagem",
		Nodes: []flow.Node{
			{ID: "start", Type: flow.NodeTypeStart},
			{ID: "cond", Type: flow.NodeTypeCondition, Data: map[string]any{
				"conditions": []any{
					map[string]any{"variable": "idade", "operator": ">=", "value": "18"},
				},
			}},
			{ID: "adulto", Type: flow.NodeTypeMessage, Data: map[string]any{"text": "Conteúdo adulto"}},
			{ID: "menor", Type: flow.NodeTypeMessage, Data: map[string]any{"text": "Conteúdo livre"}},
			{ID: "end", Type: flow.NodeTypeEnd, Data: map[string]any{}},
		},
		Edges: []flow.Edge{
			{Source: "start", Target: "cond"},
			{Source: "cond", Target: "adulto", Label: "sim"},
			{Source: "cond", Target: "menor", Label: "não"},
			{Source: "adulto", Target: "end"},
			{Source: "menor", Target: "end"},
		},
		IsActive: true,
	}

	h := newHarness(t, f)
	conv := newConversation(f.ID)
	conv.Context.Set("idade", 20)

	require.NoError(t, h.runner.Resume(context.Background(), conv, f, inbound("oi")))
	assert.Equal(t, "Conteúdo adulto", h.manager.lastText(t))

	h = newHarness(t, f)
	conv = newConversation(f.ID)
	conv.Context.Set("idade", 15)

	require.NoError(t, h.runner.Resume(context.Background(), conv, f, inbound("oi")))
	assert.Equal(t, "Conteúdo livre", h.manager.lastText(t))
}

func TestRunnerQuestionAskAndAnswer(t *testing.T) {
	f := &flow.Flow{
		ID:       kernel.NewFlowID("f1"),
		TenantID: kernel.NewTenantID("t1"),
		Name:     "cadastro",
		Nodes: []flow.Node{
			{ID: "start", Type: flow.NodeTypeStart},
			{ID: "q1", Type: flow.NodeTypeQuestion, Data: map[string]any{
				"text":           "Qual seu email?",
				"responseType":   "email",
				"outputVariable": "email",
			}},
			{ID: "end", Type: flow.NodeTypeEnd, Data: map[string]any{"text": "Obrigado, {{email}}!"}},
		},
		Edges: []flow.Edge{
			{Source: "start", Target: "q1"},
			{Source: "q1", Target: "end"},
		},
		IsActive: true,
	}

	h := newHarness(t, f)
	conv := newConversation(f.ID)
	ctx := context.Background()

	// tick 1: the question is asked and the run suspends on the node
	require.NoError(t, h.runner.Resume(ctx, conv, f, inbound("oi")))
	assert.Equal(t, "Qual seu email?", h.manager.lastText(t))
	assert.Equal(t, "q1", conv.CurrentNode())
	assert.NotNil(t, conv.AwaitingSince)
	assert.True(t, conv.IsBotActive)

	// tick 2: invalid answer repeats the question
	require.NoError(t, h.runner.Resume(ctx, conv, f, inbound("isso não é um email")))
	assert.Equal(t, "Qual seu email?", h.manager.lastText(t))
	assert.Equal(t, "q1", conv.CurrentNode())
	assert.Equal(t, 1, conv.Context.Attempts("q1"))

	// tick 3: valid answer stores the variable and finishes the run
	require.NoError(t, h.runner.Resume(ctx, conv, f, inbound("Maria@Example.com")))
	assert.Equal(t, "maria@example.com", conv.Context.Get("email"))
	assert.Equal(t, 0, conv.Context.Attempts("q1"))
	assert.Equal(t, "Obrigado, maria@example.com!", h.manager.lastText(t))
	assert.Nil(t, conv.CurrentNodeID)
}

func TestRunnerLoopGuardForcesHandoff(t *testing.T) {
	// msg1 loops back onto itself
	f := &flow.Flow{
		ID:       kernel.NewFlowID("f1"),
		TenantID: kernel.NewTenantID("t1"),
		Name:     "loop",
		Nodes: []flow.Node{
			{ID: "start", Type: flow.NodeTypeStart},
			{ID: "msg1", Type: flow.NodeTypeMessage, Data: map[string]any{"text": "de novo"}},
		},
		Edges: []flow.Edge{
			{Source: "start", Target: "msg1"},
			{Source: "msg1", Target: "msg1"},
		},
		IsActive: true,
	}

	h := newHarness(t, f)
	conv := newConversation(f.ID)

	err := h.runner.Resume(context.Background(), conv, f, inbound("oi"))
	require.Error(t, err)
	assert.True(t, errx.IsType(err, errx.TypeBusiness))

	// the guard trips on the arrival after the ceiling
	require.Len(t, h.convRepo.saved, 1)
	assert.Equal(t, flow.MaxNodeVisits+1, conv.Context.VisitCount("msg1"))

	// broken conversation parked with a human at high priority
	assert.False(t, conv.IsBotActive)
	assert.Equal(t, flow.ConversationStatusQueued, conv.Status)
	assert.Equal(t, flow.PriorityHigh, conv.Priority)

	// apology was the last message out
	assert.Contains(t, h.manager.lastText(t), "transferir")
}

func TestRunnerHandlerErrorForcesHandoff(t *testing.T) {
	// message node with no text and no media fails config extraction
	f := &flow.Flow{
		ID:       kernel.NewFlowID("f1"),
		TenantID: kernel.NewTenantID("t1"),
		Name:     "quebrado",
		Nodes: []flow.Node{
			{ID: "start", Type: flow.NodeTypeStart},
			{ID: "msg1", Type: flow.NodeTypeMessage, Data: map[string]any{}},
		},
		Edges: []flow.Edge{
			{Source: "start", Target: "msg1"},
		},
		IsActive: true,
	}

	h := newHarness(t, f)
	conv := newConversation(f.ID)

	err := h.runner.Resume(context.Background(), conv, f, inbound("oi"))
	require.Error(t, err)

	assert.False(t, conv.IsBotActive)
	assert.Equal(t, flow.ConversationStatusQueued, conv.Status)
	assert.Equal(t, flow.PriorityHigh, conv.Priority)
	require.Len(t, h.convRepo.saved, 1)
}

func TestRunnerDeadEndIsStructuralNotHandoff(t *testing.T) {
	// msg1 advances but has no outgoing edge
	f := &flow.Flow{
		ID:       kernel.NewFlowID("f1"),
		TenantID: kernel.NewTenantID("t1"),
		Name:     "sem-saida",
		Nodes: []flow.Node{
			{ID: "start", Type: flow.NodeTypeStart},
			{ID: "msg1", Type: flow.NodeTypeMessage, Data: map[string]any{"text": "oi"}},
		},
		Edges: []flow.Edge{
			{Source: "start", Target: "msg1"},
		},
		IsActive: true,
	}

	h := newHarness(t, f)
	conv := newConversation(f.ID)

	err := h.runner.Resume(context.Background(), conv, f, inbound("oi"))
	require.Error(t, err)
	assert.True(t, errx.IsType(err, errx.TypeBusiness))

	// structural failures stop the tick without parking the conversation
	assert.True(t, conv.IsBotActive)
	assert.Equal(t, flow.ConversationStatusActive, conv.Status)
	assert.Equal(t, "msg1", conv.CurrentNode())
}

func TestRunnerBrokenPointerResets(t *testing.T) {
	f := linearFlow()
	h := newHarness(t, f)
	conv := newConversation(f.ID)
	conv.PointTo("ghost") // node removed from the flow after an edit

	err := h.runner.Resume(context.Background(), conv, f, inbound("oi"))
	require.Error(t, err)
	assert.True(t, errx.IsType(err, errx.TypeNotFound))

	assert.Nil(t, conv.CurrentNodeID)
	assert.True(t, conv.IsBotActive)
	require.Len(t, h.convRepo.saved, 1)
}

func TestRunnerCrossFlowJump(t *testing.T) {
	f2 := &flow.Flow{
		ID:       kernel.NewFlowID("f2"),
		TenantID: kernel.NewTenantID("t1"),
		Name:     "suporte",
		Nodes: []flow.Node{
			{ID: "start2", Type: flow.NodeTypeStart},
			{ID: "msg2", Type: flow.NodeTypeMessage, Data: map[string]any{"text": "Você está no suporte, {{nome}}"}},
			{ID: "end2", Type: flow.NodeTypeEnd, Data: map[string]any{}},
		},
		Edges: []flow.Edge{
			{Source: "start2", Target: "msg2"},
			{Source: "msg2", Target: "end2"},
		},
		IsActive: true,
	}

	f1 := &flow.Flow{
		ID:       kernel.NewFlowID("f1"),
		TenantID: kernel.NewTenantID("t1"),
		Name:     "principal",
		Nodes: []flow.Node{
			{ID: "start", Type: flow.NodeTypeStart},
			{ID: "jump1", Type: flow.NodeTypeJump, Data: map[string]any{
				"jumpType": "flow", "targetFlowId": "f2",
			}},
		},
		Edges: []flow.Edge{
			{Source: "start", Target: "jump1"},
		},
		IsActive: true,
	}

	h := newHarness(t, f1, f2)
	conv := newConversation(f1.ID)
	conv.Context.Set("nome", "Ana")

	require.NoError(t, h.runner.Resume(context.Background(), conv, f1, inbound("oi")))

	assert.Equal(t, f2.ID, conv.ActiveFlowID)
	// las variables y el path sobreviven al salto de flow
	assert.Equal(t, "Você está no suporte, Ana", h.manager.lastText(t))
	assert.Contains(t, conv.Context.Path, "jump1")
	assert.Contains(t, conv.Context.Path, "msg2")
	assert.Nil(t, conv.CurrentNodeID)
}

func TestRunnerCrossFlowJumpToInactiveFlowFails(t *testing.T) {
	f2 := linearFlow()
	f2.ID = kernel.NewFlowID("f2")
	f2.IsActive = false

	f1 := &flow.Flow{
		ID:       kernel.NewFlowID("f1"),
		TenantID: kernel.NewTenantID("t1"),
		Name:     "principal",
		Nodes: []flow.Node{
			{ID: "start", Type: flow.NodeTypeStart},
			{ID: "jump1", Type: flow.NodeTypeJump, Data: map[string]any{
				"jumpType": "flow", "targetFlowId": "f2",
			}},
		},
		Edges: []flow.Edge{
			{Source: "start", Target: "jump1"},
		},
		IsActive: true,
	}

	h := newHarness(t, f1, f2)
	conv := newConversation(f1.ID)

	err := h.runner.Resume(context.Background(), conv, f1, inbound("oi"))
	require.Error(t, err)
	assert.True(t, errx.IsType(err, errx.TypeNotFound))
}

func TestRunnerValidateFlow(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.runner.ValidateFlow(context.Background(), linearFlow()))

	// node config errors surface as validation errors with the node id
	f := linearFlow()
	f.Nodes[1].Data = map[string]any{}
	err := h.runner.ValidateFlow(context.Background(), f)
	require.Error(t, err)
	assert.True(t, errx.IsType(err, errx.TypeValidation))

	// node type without a registered handler
	f = linearFlow()
	f.Nodes[1].Type = flow.NodeTypeScript
	err = h.runner.ValidateFlow(context.Background(), f)
	require.Error(t, err)
}
