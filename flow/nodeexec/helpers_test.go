package nodeexec

import (
	"context"
	"time"

	"github.com/xkayo32/pytake-flow/channels"
	"github.com/xkayo32/pytake-flow/flow"
	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

// fakes compartidos por los tests de handlers

type fakeChannelManager struct {
	sent    []channels.OutgoingMessage
	sendErr error
}

func (m *fakeChannelManager) RegisterChannel(ctx context.Context, channel channels.Channel) error {
	return nil
}

func (m *fakeChannelManager) SendMessage(ctx context.Context, tenantID kernel.TenantID, channelID kernel.ChannelID, msg channels.OutgoingMessage) (string, error) {
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.sent = append(m.sent, msg)
	return "wamid.fake", nil
}

func (m *fakeChannelManager) GetAdapter(channelID kernel.ChannelID) (channels.ChannelAdapter, error) {
	return nil, nil
}

func (m *fakeChannelManager) ResolveInbound(ctx context.Context, phoneNumberID string, payload []byte, headers map[string]string) (*channels.Channel, *channels.IncomingMessage, error) {
	return nil, nil, nil
}

type fakeMessageRepo struct {
	outbound []flow.OutboundRecord
}

func (r *fakeMessageRepo) SaveInbound(ctx context.Context, tenantID kernel.TenantID, conversationID kernel.ConversationID, msg flow.InboundMessage) error {
	return nil
}

func (r *fakeMessageRepo) CreateOutboundRecord(ctx context.Context, rec flow.OutboundRecord) error {
	r.outbound = append(r.outbound, rec)
	return nil
}

func (r *fakeMessageRepo) CountOutboundByConversation(ctx context.Context, conversationID kernel.ConversationID) (int, error) {
	return len(r.outbound), nil
}

func newTestSender() (*MessageSender, *fakeChannelManager, *fakeMessageRepo) {
	manager := &fakeChannelManager{}
	msgRepo := &fakeMessageRepo{}
	return NewMessageSender(manager, msgRepo, flow.NewInterpolator()), manager, msgRepo
}

func newTestExecution(nodes ...flow.Node) *flow.Execution {
	f := &flow.Flow{
		ID:       kernel.NewFlowID("f1"),
		TenantID: kernel.NewTenantID("t1"),
		Name:     "test",
		Nodes:    nodes,
		IsActive: true,
	}
	conv := &flow.Conversation{
		ID:           kernel.NewConversationID("c1"),
		TenantID:     kernel.NewTenantID("t1"),
		ChannelID:    kernel.NewChannelID("ch1"),
		ContactID:    "5511999990000",
		ActiveFlowID: f.ID,
		Context:      flow.NewExecutionContext(),
		IsBotActive:  true,
		Status:       flow.ConversationStatusActive,
	}
	return &flow.Execution{Conversation: conv, Flow: f}
}

func textInbound(text string) *flow.InboundMessage {
	return &flow.InboundMessage{
		ID:        kernel.NewMessageID("m1"),
		ChannelID: kernel.NewChannelID("ch1"),
		From:      "5511999990000",
		Type:      "text",
		Text:      text,
		Timestamp: time.Now(),
	}
}
