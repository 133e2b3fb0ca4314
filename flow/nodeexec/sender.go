package nodeexec

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xkayo32/pytake-flow/channels"
	"github.com/xkayo32/pytake-flow/flow"
	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

// MessageSender envía mensajes del engine por el canal de la conversación y
// deja el registro de salida. Los adapters degradan contenido interactivo
// cuando el canal no lo soporta, así que acá no hay ramas por modo.
type MessageSender struct {
	channelManager channels.ChannelManager
	messageRepo    flow.MessageRepository
	interpolator   *flow.Interpolator
}

func NewMessageSender(
	channelManager channels.ChannelManager,
	messageRepo flow.MessageRepository,
	interpolator *flow.Interpolator,
) *MessageSender {
	return &MessageSender{
		channelManager: channelManager,
		messageRepo:    messageRepo,
		interpolator:   interpolator,
	}
}

// SendText interpolates and sends a plain text message.
func (s *MessageSender) SendText(ctx context.Context, exec *flow.Execution, nodeID, text string) error {
	rendered := s.interpolator.Text(text, exec.Conversation.Context.Variables)
	return s.send(ctx, exec, nodeID, "text", rendered, channels.MessageContent{
		Type: "text",
		Text: rendered,
	})
}

// SendMedia sends a media message with an optional caption.
func (s *MessageSender) SendMedia(ctx context.Context, exec *flow.Execution, nodeID, mediaType, mediaURL, caption string) error {
	vars := exec.Conversation.Context.Variables
	rendered := s.interpolator.Text(caption, vars)
	return s.send(ctx, exec, nodeID, mediaType, rendered, channels.MessageContent{
		Type:     mediaType,
		MediaURL: s.interpolator.Text(mediaURL, vars),
		Caption:  rendered,
	})
}

// SendButtons sends an interactive reply-buttons message. The button list is
// capped at the channel limit before sending.
func (s *MessageSender) SendButtons(ctx context.Context, exec *flow.Execution, nodeID string, cfg flow.ButtonsConfig) error {
	vars := exec.Conversation.Context.Variables

	capped := cfg.CappedButtons()
	buttons := make([]channels.Button, 0, len(capped))
	for _, b := range capped {
		buttons = append(buttons, channels.Button{
			ID:    b.ID,
			Title: s.interpolator.Text(b.Title, vars),
		})
	}

	body := s.interpolator.Text(cfg.Text, vars)
	return s.send(ctx, exec, nodeID, "buttons", body, channels.MessageContent{
		Type: "buttons",
		Buttons: &channels.ButtonsSpec{
			Header:  s.interpolator.Text(cfg.Header, vars),
			Body:    body,
			Footer:  s.interpolator.Text(cfg.Footer, vars),
			Buttons: buttons,
		},
	})
}

// SendList sends an interactive list message.
func (s *MessageSender) SendList(ctx context.Context, exec *flow.Execution, nodeID string, cfg flow.ListConfig) error {
	vars := exec.Conversation.Context.Variables

	sections := make([]channels.ListSection, 0, len(cfg.Sections))
	for _, sec := range cfg.Sections {
		items := make([]channels.ListItem, 0, len(sec.Items))
		for _, item := range sec.Items {
			items = append(items, channels.ListItem{
				ID:          item.ID,
				Title:       s.interpolator.Text(item.Title, vars),
				Description: s.interpolator.Text(item.Description, vars),
			})
		}
		sections = append(sections, channels.ListSection{
			Title: s.interpolator.Text(sec.Title, vars),
			Items: items,
		})
	}

	body := s.interpolator.Text(cfg.Text, vars)
	return s.send(ctx, exec, nodeID, "list", body, channels.MessageContent{
		Type: "list",
		List: &channels.ListSpec{
			Body:       body,
			ButtonText: cfg.GetButtonText(),
			Sections:   sections,
		},
	})
}

// SendTemplate sends an approved WhatsApp template.
func (s *MessageSender) SendTemplate(ctx context.Context, exec *flow.Execution, nodeID string, cfg flow.TemplateConfig) error {
	vars := exec.Conversation.Context.Variables

	variables := make([]string, 0, len(cfg.Variables))
	for _, v := range cfg.Variables {
		variables = append(variables, s.interpolator.Text(v, vars))
	}

	return s.send(ctx, exec, nodeID, "template", cfg.TemplateName, channels.MessageContent{
		Type: "template",
		Template: &channels.TemplateSpec{
			Name:      cfg.TemplateName,
			Language:  cfg.GetLanguage(),
			Variables: variables,
		},
	})
}

func (s *MessageSender) send(ctx context.Context, exec *flow.Execution, nodeID, kind, body string, content channels.MessageContent) error {
	conv := exec.Conversation

	providerID, err := s.channelManager.SendMessage(ctx, conv.TenantID, conv.ChannelID, channels.OutgoingMessage{
		RecipientID: conv.ContactID,
		Content:     content,
	})
	if err != nil {
		return err
	}

	rec := flow.OutboundRecord{
		ID:             kernel.NewMessageID(uuid.NewString()),
		TenantID:       conv.TenantID,
		ConversationID: conv.ID,
		NodeID:         nodeID,
		Kind:           kind,
		Body:           body,
		ProviderMsgID:  providerID,
		CreatedAt:      time.Now(),
	}
	return s.messageRepo.CreateOutboundRecord(ctx, rec)
}
