package channels

import (
	"encoding/json"
	"time"

	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

// Channel es un número de WhatsApp conectado de un tenant. El modo determina
// qué adapter lo atiende: Cloud API oficial de Meta o un gateway bridge
// auto-hospedado.
type Channel struct {
	ID          kernel.ChannelID `db:"id" json:"id"`
	TenantID    kernel.TenantID  `db:"tenant_id" json:"tenant_id"`
	ChatbotID   kernel.ChatbotID `db:"chatbot_id" json:"chatbot_id"`
	Mode        ChannelMode      `db:"mode" json:"mode"`
	Name        string           `db:"name" json:"name"`
	PhoneNumber string           `db:"phone_number" json:"phone_number"`
	Config      map[string]any   `db:"config" json:"config"`
	IsActive    bool             `db:"is_active" json:"is_active"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

type ChannelMode string

const (
	ChannelModeCloudAPI ChannelMode = "CLOUD_API"
	ChannelModeBridge   ChannelMode = "BRIDGE"
)

func (c *Channel) IsValid() bool {
	return !c.ID.IsEmpty() && !c.TenantID.IsEmpty() &&
		(c.Mode == ChannelModeCloudAPI || c.Mode == ChannelModeBridge)
}

// GetConfigStruct decodifica Config al struct tipado del modo.
func (c *Channel) GetConfigStruct() (any, error) {
	raw, err := json.Marshal(c.Config)
	if err != nil {
		return nil, ErrInvalidChannelConfig().WithDetail("reason", err.Error())
	}

	switch c.Mode {
	case ChannelModeCloudAPI:
		var cfg CloudAPIConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, ErrInvalidChannelConfig().WithDetail("reason", err.Error())
		}
		return cfg, nil
	case ChannelModeBridge:
		var cfg BridgeConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, ErrInvalidChannelConfig().WithDetail("reason", err.Error())
		}
		return cfg, nil
	default:
		return nil, ErrInvalidChannelType().WithDetail("mode", string(c.Mode))
	}
}

// CloudAPIConfig credenciales de la API oficial de Meta
type CloudAPIConfig struct {
	PhoneNumberID     string `json:"phone_number_id"`
	BusinessAccountID string `json:"business_account_id,omitempty"`
	AccessToken       string `json:"access_token"`
	AppSecret         string `json:"app_secret,omitempty"`
	APIVersion        string `json:"api_version,omitempty"`
}

func (c CloudAPIConfig) Validate() error {
	if c.PhoneNumberID == "" {
		return ErrInvalidChannelConfig().WithDetail("reason", "phone_number_id is required")
	}
	if c.AccessToken == "" {
		return ErrInvalidChannelConfig().WithDetail("reason", "access_token is required")
	}
	return nil
}

func (c CloudAPIConfig) GetFeatures() ChannelFeatures {
	return ChannelFeatures{
		SupportsMedia:     true,
		SupportsButtons:   true,
		SupportsLists:     true,
		SupportsTemplates: true,
	}
}

// BridgeConfig apunta a un gateway auto-hospedado que mantiene la sesión del
// número. Sin soporte de plantillas; botones y listas se degradan a texto.
type BridgeConfig struct {
	BaseURL   string `json:"base_url"`
	APIKey    string `json:"api_key"`
	SessionID string `json:"session_id,omitempty"`
}

func (c BridgeConfig) Validate() error {
	if c.BaseURL == "" {
		return ErrInvalidChannelConfig().WithDetail("reason", "base_url is required")
	}
	if c.APIKey == "" {
		return ErrInvalidChannelConfig().WithDetail("reason", "api_key is required")
	}
	return nil
}

func (c BridgeConfig) GetFeatures() ChannelFeatures {
	return ChannelFeatures{
		SupportsMedia: true,
	}
}

// ChannelFeatures capacidades del canal; el runner degrada mensajes
// interactivos cuando el canal no los soporta.
type ChannelFeatures struct {
	SupportsMedia     bool `json:"supports_media"`
	SupportsButtons   bool `json:"supports_buttons"`
	SupportsLists     bool `json:"supports_lists"`
	SupportsTemplates bool `json:"supports_templates"`
}
