package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Abraxas-365/craftable/logx"
	"github.com/xkayo32/pytake-flow/channels"
	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

// Adapter implements ChannelAdapter for a self-hosted WhatsApp bridge gateway
// that keeps the number's session alive. The bridge has no template support
// and no interactive messages, so buttons and lists are rendered as numbered
// text before sending.
type Adapter struct {
	config     channels.BridgeConfig
	httpClient *http.Client
}

func NewAdapter(config channels.BridgeConfig) *Adapter {
	return &Adapter{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *Adapter) GetMode() channels.ChannelMode {
	return channels.ChannelModeBridge
}

func (a *Adapter) SendMessage(ctx context.Context, msg channels.OutgoingMessage) (string, error) {
	body, err := a.buildSendRequest(msg)
	if err != nil {
		return "", err
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	url := strings.TrimRight(a.config.BaseURL, "/") + "/api/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-Key", a.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", channels.ErrProviderAPIError().WithCause(err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		logx.Error("❌ Bridge error - status: %d, body: %s", resp.StatusCode, string(respBody))
		return "", channels.ErrProviderAPIError().
			WithDetail("status", resp.StatusCode).
			WithDetail("response", string(respBody))
	}

	var parsed struct {
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(respBody, &parsed); err == nil {
		return parsed.MessageID, nil
	}
	return "", nil
}

func (a *Adapter) ValidateConfig(config any) error {
	bridgeConfig, ok := config.(channels.BridgeConfig)
	if !ok {
		return channels.ErrInvalidChannelConfig().WithDetail("reason", "invalid config type")
	}
	return bridgeConfig.Validate()
}

// ProcessWebhook parses an inbound event posted by the bridge. Events other
// than "message" yield (nil, nil).
func (a *Adapter) ProcessWebhook(
	ctx context.Context,
	payload []byte,
	headers map[string]string,
) (*channels.IncomingMessage, error) {
	if key := headers["X-API-Key"]; key != "" && key != a.config.APIKey {
		return nil, channels.ErrInvalidWebhookSignature()
	}

	var event bridgeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, channels.ErrWebhookProcessingFailed().WithDetail("reason", err.Error())
	}
	if event.Event != "message" || event.Message == nil {
		return nil, nil
	}

	return &channels.IncomingMessage{
		MessageID:  event.Message.ID,
		ChannelID:  kernel.NewChannelID(event.SessionID),
		SenderID:   event.Message.From,
		SenderName: event.Message.SenderName,
		Content: channels.MessageContent{
			Type:     event.Message.Type,
			Text:     event.Message.Text,
			MediaURL: event.Message.MediaURL,
		},
		Timestamp: event.Message.Timestamp,
		Metadata:  map[string]any{"bridge_session": event.SessionID},
	}, nil
}

func (a *Adapter) GetFeatures() channels.ChannelFeatures {
	return a.config.GetFeatures()
}

func (a *Adapter) TestConnection(ctx context.Context) error {
	url := strings.TrimRight(a.config.BaseURL, "/") + "/api/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", a.config.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return channels.ErrProviderAPIError().WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return channels.ErrProviderAuthFailed().WithDetail("status", resp.StatusCode)
	}
	return nil
}

// ============================================================================
// Payload Building
// ============================================================================

func (a *Adapter) buildSendRequest(msg channels.OutgoingMessage) (map[string]any, error) {
	body := map[string]any{
		"session_id": a.config.SessionID,
		"to":         msg.RecipientID,
	}

	switch msg.Content.Type {
	case "text":
		body["type"] = "text"
		body["text"] = msg.Content.Text

	case "image", "audio", "video", "document":
		body["type"] = msg.Content.Type
		body["media_url"] = msg.Content.MediaURL
		if msg.Content.Caption != "" {
			body["caption"] = msg.Content.Caption
		}

	case "buttons":
		if msg.Content.Buttons == nil {
			return nil, channels.ErrInvalidMessageFormat().WithDetail("reason", "buttons content missing")
		}
		body["type"] = "text"
		body["text"] = renderButtonsAsText(*msg.Content.Buttons)

	case "list":
		if msg.Content.List == nil {
			return nil, channels.ErrInvalidMessageFormat().WithDetail("reason", "list content missing")
		}
		body["type"] = "text"
		body["text"] = renderListAsText(*msg.Content.List)

	case "template":
		return nil, channels.ErrFeatureNotSupported().
			WithDetail("feature", "template").
			WithDetail("mode", string(channels.ChannelModeBridge))

	default:
		return nil, channels.ErrInvalidMessageFormat().
			WithDetail("content_type", msg.Content.Type)
	}

	return body, nil
}

func renderButtonsAsText(spec channels.ButtonsSpec) string {
	var sb strings.Builder
	if spec.Header != "" {
		sb.WriteString("*" + spec.Header + "*\n\n")
	}
	sb.WriteString(spec.Body)
	for i, b := range spec.Buttons {
		sb.WriteString(fmt.Sprintf("\n%d. %s", i+1, b.Title))
	}
	if spec.Footer != "" {
		sb.WriteString("\n\n_" + spec.Footer + "_")
	}
	return sb.String()
}

func renderListAsText(spec channels.ListSpec) string {
	var sb strings.Builder
	sb.WriteString(spec.Body)
	n := 0
	for _, section := range spec.Sections {
		if section.Title != "" {
			sb.WriteString("\n\n*" + section.Title + "*")
		}
		for _, item := range section.Items {
			n++
			sb.WriteString(fmt.Sprintf("\n%d. %s", n, item.Title))
			if item.Description != "" {
				sb.WriteString(" - " + item.Description)
			}
		}
	}
	return sb.String()
}

// ============================================================================
// Wire Structures
// ============================================================================

type bridgeEvent struct {
	Event     string         `json:"event"`
	SessionID string         `json:"session_id"`
	Message   *bridgeMessage `json:"message,omitempty"`
}

type bridgeMessage struct {
	ID         string `json:"id"`
	From       string `json:"from"`
	SenderName string `json:"sender_name,omitempty"`
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	MediaURL   string `json:"media_url,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}
