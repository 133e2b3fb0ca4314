package webhooktrigger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Abraxas-365/craftable/logx"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/xkayo32/pytake-flow/channels"
	"github.com/xkayo32/pytake-flow/flow"
	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

// InboundProcessor is the engine entry point the webhook feeds.
type InboundProcessor interface {
	ProcessInbound(ctx context.Context, channel *channels.Channel, inbound flow.InboundMessage) error
}

// WebhookHandler recibe los webhooks de WhatsApp (Cloud API y bridge), resuelve
// el canal y dispara el engine en background. El webhook siempre responde 200
// rápido: Meta reintenta y desactiva webhooks lentos.
type WebhookHandler struct {
	channelManager channels.ChannelManager
	processor      InboundProcessor
	verifyToken    string
}

func NewWebhookHandler(channelManager channels.ChannelManager, processor InboundProcessor, verifyToken string) *WebhookHandler {
	return &WebhookHandler{
		channelManager: channelManager,
		processor:      processor,
		verifyToken:    verifyToken,
	}
}

// SetupRoutes registra las rutas de webhook
func (h *WebhookHandler) SetupRoutes(app *fiber.App) {
	app.Get("/webhook/whatsapp", h.VerifyWebhook)
	app.Post("/webhook/whatsapp", h.HandleCloudAPIWebhook)
	app.Post("/webhook/bridge/:sessionId", h.HandleBridgeWebhook)
}

// VerifyWebhook answers Meta's subscription handshake.
func (h *WebhookHandler) VerifyWebhook(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		logx.Info("✅ Webhook verified")
		return c.SendString(challenge)
	}

	logx.Error("❌ Webhook verification failed (mode=%s)", mode)
	return c.SendStatus(fiber.StatusForbidden)
}

// HandleCloudAPIWebhook processes a Cloud API event batch.
func (h *WebhookHandler) HandleCloudAPIWebhook(c *fiber.Ctx) error {
	payload := c.Body()

	phoneNumberID := extractPhoneNumberID(payload)
	if phoneNumberID == "" {
		// eventos sin metadata (ej. cambios de cuenta) se ignoran
		return c.SendStatus(fiber.StatusOK)
	}

	h.dispatch(c, phoneNumberID, payload)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "received"})
}

// HandleBridgeWebhook processes an event from a self-hosted bridge gateway.
func (h *WebhookHandler) HandleBridgeWebhook(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if sessionID == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	h.dispatch(c, sessionID, c.Body())
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "received"})
}

// dispatch resolves the channel, normalizes the message and hands it to the
// engine asynchronously.
func (h *WebhookHandler) dispatch(c *fiber.Ctx, identifier string, payload []byte) {
	headers := make(map[string]string)
	c.Request().Header.VisitAll(func(k, v []byte) {
		headers[string(k)] = string(v)
	})

	// copia: fiber recicla el buffer del body al responder
	body := make([]byte, len(payload))
	copy(body, payload)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		channel, incoming, err := h.channelManager.ResolveInbound(ctx, identifier, body, headers)
		if err != nil {
			logx.Error("❌ Failed to resolve inbound webhook (%s): %v", identifier, err)
			return
		}
		if incoming == nil {
			// status update u otro evento sin mensaje
			return
		}

		inbound := toInboundMessage(incoming)
		if err := h.processor.ProcessInbound(ctx, channel, inbound); err != nil {
			logx.Error("❌ Failed to process inbound message %s: %v", inbound.ID.String(), err)
		}
	}()
}

// toInboundMessage normalizes the channel message into the engine's shape.
func toInboundMessage(msg *channels.IncomingMessage) flow.InboundMessage {
	id := msg.MessageID
	if id == "" {
		id = uuid.New().String()
	}

	metadata := make(map[string]any)
	for k, v := range msg.Metadata {
		metadata[k] = v
	}
	if msg.SenderName != "" {
		metadata["sender_name"] = msg.SenderName
	}
	if msg.Content.MediaURL != "" {
		metadata["media_url"] = msg.Content.MediaURL
	}
	if msg.Content.Caption != "" {
		metadata["caption"] = msg.Content.Caption
	}
	if msg.Content.MimeType != "" {
		metadata["mime_type"] = msg.Content.MimeType
	}

	return flow.InboundMessage{
		ID:        kernel.NewMessageID(id),
		ChannelID: msg.ChannelID,
		From:      msg.SenderID,
		Type:      msg.Content.Type,
		Text:      msg.Content.Text,
		Timestamp: time.Unix(msg.Timestamp, 0),
		Metadata:  metadata,
	}
}

// extractPhoneNumberID pulls the receiving number's id out of a Cloud API
// envelope without fully parsing it.
func extractPhoneNumberID(payload []byte) string {
	var envelope struct {
		Entry []struct {
			Changes []struct {
				Value struct {
					Metadata struct {
						PhoneNumberID string `json:"phone_number_id"`
					} `json:"metadata"`
				} `json:"value"`
			} `json:"changes"`
		} `json:"entry"`
	}

	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ""
	}
	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			if id := change.Value.Metadata.PhoneNumberID; id != "" {
				return id
			}
		}
	}
	return ""
}
