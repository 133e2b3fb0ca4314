package msgprocessor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkayo32/pytake-flow/channels"
	"github.com/xkayo32/pytake-flow/flow"
	"github.com/xkayo32/pytake-flow/flow/nodeexec"
	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

type fakeConvRepo struct {
	awaiting []*flow.Conversation
	saved    []flow.Conversation
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
	return r.awaiting, nil
}

func (r *fakeConvRepo) Delete(ctx context.Context, id kernel.ConversationID) error { return nil }

type fakeLocker struct{}

func (l *fakeLocker) Acquire(ctx context.Context, id kernel.ConversationID) (func(), error) {
	return func() {}, nil
}

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

type fakeMsgRepo struct{}

func (r *fakeMsgRepo) SaveInbound(ctx context.Context, tenantID kernel.TenantID, conversationID kernel.ConversationID, msg flow.InboundMessage) error {
	return nil
}

func (r *fakeMsgRepo) CreateOutboundRecord(ctx context.Context, rec flow.OutboundRecord) error {
	return nil
}

func (r *fakeMsgRepo) CountOutboundByConversation(ctx context.Context, conversationID kernel.ConversationID) (int, error) {
	return 0, nil
}

func staleConversation() *flow.Conversation {
	awaiting := time.Now().Add(-2 * time.Hour)
	return &flow.Conversation{
		ID:            kernel.NewConversationID("c1"),
		TenantID:      kernel.NewTenantID("t1"),
		ChannelID:     kernel.NewChannelID("ch1"),
		ContactID:     "5511999990000",
		Context:       flow.NewExecutionContext(),
		IsBotActive:   true,
		Status:        flow.ConversationStatusActive,
		AwaitingSince: &awaiting,
	}
}

func TestSweepQuestionTimeoutsNotifiesAndHandsOff(t *testing.T) {
	convRepo := &fakeConvRepo{awaiting: []*flow.Conversation{staleConversation()}}
	manager := &fakeChannelManager{}
	sender := nodeexec.NewMessageSender(manager, &fakeMsgRepo{}, flow.NewInterpolator())

	p := NewProcessor(convRepo, nil, &fakeMsgRepo{}, &fakeLocker{}, nil, sender, time.Hour)

	require.NoError(t, p.SweepQuestionTimeouts(context.Background()))

	// el contato recibe el aviso antes de la transferencia
	require.Len(t, manager.sent, 1)
	assert.Equal(t, timeoutTransferNotice, manager.sent[0].Content.Text)

	require.Len(t, convRepo.saved, 1)
	saved := convRepo.saved[0]
	assert.False(t, saved.IsBotActive)
	assert.Equal(t, flow.ConversationStatusQueued, saved.Status)
	assert.Equal(t, flow.PriorityLow, saved.Priority)
}
