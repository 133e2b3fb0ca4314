package cloudapi

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
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

const (
	graphAPIBaseURL   = "https://graph.facebook.com"
	defaultAPIVersion = "v21.0"
)

// Adapter implements ChannelAdapter for the official Meta Cloud API.
type Adapter struct {
	config     channels.CloudAPIConfig
	httpClient *http.Client
	apiURL     string
}

// NewAdapter creates a Cloud API adapter bound to one phone number.
func NewAdapter(config channels.CloudAPIConfig) *Adapter {
	apiVersion := config.APIVersion
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}

	return &Adapter{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiURL:     fmt.Sprintf("%s/%s/%s", graphAPIBaseURL, apiVersion, config.PhoneNumberID),
	}
}

func (a *Adapter) GetMode() channels.ChannelMode {
	return channels.ChannelModeCloudAPI
}

// SendMessage sends a message and returns the provider message ID.
func (a *Adapter) SendMessage(ctx context.Context, msg channels.OutgoingMessage) (string, error) {
	payload, err := a.buildMessagePayload(msg)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/messages", a.apiURL)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+a.config.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", channels.ErrProviderAPIError().WithCause(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", channels.ErrProviderRateLimited().WithDetail("response", string(body))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		logx.Error("❌ Cloud API error - status: %d, body: %s", resp.StatusCode, string(body))
		return "", channels.ErrProviderAPIError().
			WithDetail("status", resp.StatusCode).
			WithDetail("response", string(body))
	}

	var apiResp sendResponse
	if err := json.Unmarshal(body, &apiResp); err == nil && len(apiResp.Messages) > 0 {
		return apiResp.Messages[0].ID, nil
	}
	return "", nil
}

// ValidateConfig validates the Cloud API configuration.
func (a *Adapter) ValidateConfig(config any) error {
	cloudConfig, ok := config.(channels.CloudAPIConfig)
	if !ok {
		return channels.ErrInvalidChannelConfig().WithDetail("reason", "invalid config type")
	}
	return cloudConfig.Validate()
}

// ProcessWebhook verifies and parses an inbound Cloud API webhook. Status
// updates and other non-message events yield (nil, nil).
func (a *Adapter) ProcessWebhook(
	ctx context.Context,
	payload []byte,
	headers map[string]string,
) (*channels.IncomingMessage, error) {
	if err := a.verifySignature(payload, headers); err != nil {
		return nil, err
	}

	var webhook webhookEnvelope
	if err := json.Unmarshal(payload, &webhook); err != nil {
		return nil, channels.ErrWebhookProcessingFailed().WithDetail("reason", err.Error())
	}

	return a.extractIncomingMessage(webhook), nil
}

func (a *Adapter) GetFeatures() channels.ChannelFeatures {
	return a.config.GetFeatures()
}

// TestConnection fetches the phone number info to validate credentials.
func (a *Adapter) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.config.AccessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return channels.ErrProviderAPIError().WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return channels.ErrProviderAuthFailed().
			WithDetail("status", resp.StatusCode).
			WithDetail("response", string(body))
	}
	return nil
}

// ============================================================================
// Payload Builders
// ============================================================================

func (a *Adapter) buildMessagePayload(msg channels.OutgoingMessage) (map[string]any, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                msg.RecipientID,
	}

	switch msg.Content.Type {
	case "text":
		payload["type"] = "text"
		payload["text"] = map[string]any{"body": msg.Content.Text}

	case "image", "audio", "video", "document":
		media := map[string]any{"link": msg.Content.MediaURL}
		if msg.Content.Caption != "" {
			media["caption"] = msg.Content.Caption
		}
		if msg.Content.Type == "document" && msg.Content.Filename != "" {
			media["filename"] = msg.Content.Filename
		}
		payload["type"] = msg.Content.Type
		payload[msg.Content.Type] = media

	case "buttons":
		if msg.Content.Buttons == nil {
			return nil, channels.ErrInvalidMessageFormat().WithDetail("reason", "buttons content missing")
		}
		payload["type"] = "interactive"
		payload["interactive"] = buildButtonsPayload(*msg.Content.Buttons)

	case "list":
		if msg.Content.List == nil {
			return nil, channels.ErrInvalidMessageFormat().WithDetail("reason", "list content missing")
		}
		payload["type"] = "interactive"
		payload["interactive"] = buildListPayload(*msg.Content.List)

	case "template":
		if msg.Content.Template == nil {
			return nil, channels.ErrInvalidMessageFormat().WithDetail("reason", "template content missing")
		}
		payload["type"] = "template"
		payload["template"] = buildTemplatePayload(*msg.Content.Template)

	default:
		return nil, channels.ErrInvalidMessageFormat().
			WithDetail("content_type", msg.Content.Type)
	}

	return payload, nil
}

func buildButtonsPayload(spec channels.ButtonsSpec) map[string]any {
	buttons := make([]map[string]any, 0, len(spec.Buttons))
	for _, b := range spec.Buttons {
		buttons = append(buttons, map[string]any{
			"type":  "reply",
			"reply": map[string]string{"id": b.ID, "title": b.Title},
		})
	}

	interactive := map[string]any{
		"type":   "button",
		"body":   map[string]string{"text": spec.Body},
		"action": map[string]any{"buttons": buttons},
	}
	if spec.Header != "" {
		interactive["header"] = map[string]string{"type": "text", "text": spec.Header}
	}
	if spec.Footer != "" {
		interactive["footer"] = map[string]string{"text": spec.Footer}
	}
	return interactive
}

func buildListPayload(spec channels.ListSpec) map[string]any {
	sections := make([]map[string]any, 0, len(spec.Sections))
	for _, s := range spec.Sections {
		rows := make([]map[string]any, 0, len(s.Items))
		for _, item := range s.Items {
			row := map[string]any{"id": item.ID, "title": item.Title}
			if item.Description != "" {
				row["description"] = item.Description
			}
			rows = append(rows, row)
		}
		section := map[string]any{"rows": rows}
		if s.Title != "" {
			section["title"] = s.Title
		}
		sections = append(sections, section)
	}

	return map[string]any{
		"type": "list",
		"body": map[string]string{"text": spec.Body},
		"action": map[string]any{
			"button":   spec.ButtonText,
			"sections": sections,
		},
	}
}

func buildTemplatePayload(spec channels.TemplateSpec) map[string]any {
	template := map[string]any{
		"name":     spec.Name,
		"language": map[string]string{"code": spec.Language},
	}

	if len(spec.Variables) > 0 {
		parameters := make([]map[string]any, 0, len(spec.Variables))
		for _, value := range spec.Variables {
			parameters = append(parameters, map[string]any{
				"type": "text",
				"text": value,
			})
		}
		template["components"] = []map[string]any{{
			"type":       "body",
			"parameters": parameters,
		}}
	}

	return template
}

// ============================================================================
// Webhook Parsing
// ============================================================================

func (a *Adapter) verifySignature(payload []byte, headers map[string]string) error {
	if a.config.AppSecret == "" {
		return nil // verificación deshabilitada sin app secret
	}

	signature := headers["X-Hub-Signature-256"]
	if signature == "" {
		signature = headers["x-hub-signature-256"]
	}
	if signature == "" {
		return channels.ErrInvalidWebhookSignature()
	}

	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(a.config.AppSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return channels.ErrInvalidWebhookSignature()
	}
	return nil
}

func (a *Adapter) extractIncomingMessage(webhook webhookEnvelope) *channels.IncomingMessage {
	for _, entry := range webhook.Entry {
		for _, change := range entry.Changes {
			if change.Value.MessagingProduct != "whatsapp" {
				continue
			}

			senderName := ""
			if len(change.Value.Contacts) > 0 {
				senderName = change.Value.Contacts[0].Profile.Name
			}

			for _, msg := range change.Value.Messages {
				text, metadata := extractContent(msg)
				return &channels.IncomingMessage{
					MessageID:  msg.ID,
					ChannelID:  kernel.NewChannelID(a.config.PhoneNumberID),
					SenderID:   msg.From,
					SenderName: senderName,
					Content: channels.MessageContent{
						Type: normalizeType(msg),
						Text: text,
					},
					Timestamp: msg.Timestamp,
					Metadata:  metadata,
				}
			}
		}
	}
	return nil
}

// extractContent pulls the reply text: interactive replies surface the chosen
// option title as text with the option id in metadata, so the flow engine
// treats a button tap like a typed answer.
func extractContent(msg webhookMessage) (string, map[string]any) {
	metadata := map[string]any{"whatsapp_message_id": msg.ID}

	if msg.Interactive != nil {
		switch {
		case msg.Interactive.ButtonReply != nil:
			metadata["reply_id"] = msg.Interactive.ButtonReply.ID
			return msg.Interactive.ButtonReply.Title, metadata
		case msg.Interactive.ListReply != nil:
			metadata["reply_id"] = msg.Interactive.ListReply.ID
			return msg.Interactive.ListReply.Title, metadata
		}
	}
	if msg.Button != nil {
		metadata["reply_id"] = msg.Button.Payload
		return msg.Button.Text, metadata
	}
	if msg.Text != nil {
		return msg.Text.Body, metadata
	}
	if msg.Image != nil {
		metadata["media_id"] = msg.Image.ID
		return msg.Image.Caption, metadata
	}
	if msg.Document != nil {
		metadata["media_id"] = msg.Document.ID
		return msg.Document.Caption, metadata
	}
	return "", metadata
}

func normalizeType(msg webhookMessage) string {
	if msg.Interactive != nil || msg.Button != nil {
		return "text"
	}
	return msg.Type
}

// ============================================================================
// Wire Structures
// ============================================================================

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type webhookEnvelope struct {
	Object string         `json:"object"`
	Entry  []webhookEntry `json:"entry"`
}

type webhookEntry struct {
	ID      string          `json:"id"`
	Changes []webhookChange `json:"changes"`
}

type webhookChange struct {
	Value webhookValue `json:"value"`
	Field string       `json:"field"`
}

type webhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         webhookMetadata  `json:"metadata"`
	Contacts         []webhookContact `json:"contacts"`
	Messages         []webhookMessage `json:"messages"`
	Statuses         []webhookStatus  `json:"statuses"`
}

type webhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type webhookContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type webhookMessage struct {
	ID          string              `json:"id"`
	From        string              `json:"from"`
	Timestamp   int64               `json:"timestamp,string"`
	Type        string              `json:"type"`
	Text        *webhookText        `json:"text,omitempty"`
	Image       *webhookMedia       `json:"image,omitempty"`
	Document    *webhookMedia       `json:"document,omitempty"`
	Audio       *webhookMedia       `json:"audio,omitempty"`
	Video       *webhookMedia       `json:"video,omitempty"`
	Interactive *webhookInteractive `json:"interactive,omitempty"`
	Button      *webhookButton      `json:"button,omitempty"`
}

type webhookText struct {
	Body string `json:"body"`
}

type webhookMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
	Caption  string `json:"caption,omitempty"`
}

type webhookInteractive struct {
	Type        string        `json:"type"`
	ButtonReply *webhookReply `json:"button_reply,omitempty"`
	ListReply   *webhookReply `json:"list_reply,omitempty"`
}

type webhookReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type webhookButton struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

type webhookStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   int64  `json:"timestamp,string"`
	RecipientID string `json:"recipient_id"`
}
