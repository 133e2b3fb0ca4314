package channels

import (
	"github.com/Abraxas-365/craftable/storex"
	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

// ============================================================================
// Message DTOs
// ============================================================================

// OutgoingMessage mensaje saliente a enviar por el canal
type OutgoingMessage struct {
	RecipientID string         `json:"recipient_id" validate:"required"`
	Content     MessageContent `json:"content" validate:"required"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// IncomingMessage mensaje entrante recibido del canal
type IncomingMessage struct {
	MessageID  string           `json:"message_id"`
	ChannelID  kernel.ChannelID `json:"channel_id"`
	SenderID   string           `json:"sender_id"`
	SenderName string           `json:"sender_name,omitempty"`
	Content    MessageContent   `json:"content"`
	Timestamp  int64            `json:"timestamp"`
	Metadata   map[string]any   `json:"metadata,omitempty"`
}

// MessageContent contenido del mensaje. Type decide qué campos aplican.
type MessageContent struct {
	Type     string       `json:"type"` // text, image, audio, video, document, buttons, list, template
	Text     string       `json:"text,omitempty"`
	MediaURL string       `json:"media_url,omitempty"`
	Caption  string       `json:"caption,omitempty"`
	MimeType string       `json:"mime_type,omitempty"`
	Filename string       `json:"filename,omitempty"`
	Buttons  *ButtonsSpec  `json:"buttons,omitempty"`
	List     *ListSpec     `json:"list,omitempty"`
	Template *TemplateSpec `json:"template,omitempty"`
}

// ButtonsSpec mensaje interactivo con botones de respuesta rápida
type ButtonsSpec struct {
	Header  string   `json:"header,omitempty"`
	Body    string   `json:"body"`
	Footer  string   `json:"footer,omitempty"`
	Buttons []Button `json:"buttons"`
}

type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ListSpec mensaje interactivo de lista con secciones
type ListSpec struct {
	Body       string        `json:"body"`
	ButtonText string        `json:"button_text"`
	Sections   []ListSection `json:"sections"`
}

type ListSection struct {
	Title string     `json:"title,omitempty"`
	Items []ListItem `json:"items"`
}

type ListItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// TemplateSpec plantilla aprobada de WhatsApp
type TemplateSpec struct {
	Name      string   `json:"name"`
	Language  string   `json:"language"`
	Variables []string `json:"variables,omitempty"`
}

// ============================================================================
// Request DTOs
// ============================================================================

type CreateChannelRequest struct {
	TenantID    kernel.TenantID  `json:"tenant_id" validate:"required"`
	ChatbotID   kernel.ChatbotID `json:"chatbot_id"`
	Name        string           `json:"name" validate:"required,min=2"`
	PhoneNumber string           `json:"phone_number" validate:"required"`
	Mode        ChannelMode      `json:"mode" validate:"required"`
	Config      map[string]any   `json:"config" validate:"required"`
}

type UpdateChannelRequest struct {
	Name     *string         `json:"name,omitempty"`
	Config   *map[string]any `json:"config,omitempty"`
	IsActive *bool           `json:"is_active,omitempty"`
}

type TestChannelRequest struct {
	ChannelID   kernel.ChannelID `json:"channel_id" validate:"required"`
	RecipientID string           `json:"recipient_id" validate:"required"`
	Message     string           `json:"message"`
}

// ============================================================================
// List DTOs
// ============================================================================

type ListChannelsRequest struct {
	storex.PaginationOptions

	TenantID kernel.TenantID `json:"tenant_id" validate:"required"`
	Mode     *ChannelMode    `json:"mode,omitempty"`
	IsActive *bool           `json:"is_active,omitempty"`
	Search   string          `json:"search,omitempty"`
}

type ChannelListResponse = storex.Paginated[Channel]

// ============================================================================
// Simple DTOs
// ============================================================================

type ChannelDetailsDTO struct {
	ID          kernel.ChannelID `json:"id"`
	Name        string           `json:"name"`
	PhoneNumber string           `json:"phone_number"`
	Mode        ChannelMode      `json:"mode"`
	IsActive    bool             `json:"is_active"`
}

func (c *Channel) ToDTO() ChannelDetailsDTO {
	return ChannelDetailsDTO{
		ID:          c.ID,
		Name:        c.Name,
		PhoneNumber: c.PhoneNumber,
		Mode:        c.Mode,
		IsActive:    c.IsActive,
	}
}
