package channels

import (
	"context"

	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

// ============================================================================
// Repository Interfaces
// ============================================================================

// ChannelRepository define el contrato para persistencia de canales
type ChannelRepository interface {
	Save(ctx context.Context, channel Channel) error
	FindByID(ctx context.Context, id kernel.ChannelID, tenantID kernel.TenantID) (*Channel, error)
	FindByPhoneNumberID(ctx context.Context, phoneNumberID string) (*Channel, error)
	FindByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*Channel, error)
	FindActive(ctx context.Context, tenantID kernel.TenantID) ([]*Channel, error)
	List(ctx context.Context, req ListChannelsRequest) (ChannelListResponse, error)
	Delete(ctx context.Context, id kernel.ChannelID, tenantID kernel.TenantID) error
	ExistsByName(ctx context.Context, name string, tenantID kernel.TenantID) (bool, error)
}

// ============================================================================
// Adapter Interfaces
// ============================================================================

// ChannelAdapter interfaz para adaptadores de canal específicos
type ChannelAdapter interface {
	// GetMode retorna el modo de canal que maneja
	GetMode() ChannelMode

	// SendMessage envía un mensaje y retorna el ID del proveedor
	SendMessage(ctx context.Context, msg OutgoingMessage) (string, error)

	// ValidateConfig valida la configuración del canal
	ValidateConfig(config any) error

	// ProcessWebhook procesa webhooks entrantes del proveedor
	ProcessWebhook(ctx context.Context, payload []byte, headers map[string]string) (*IncomingMessage, error)

	// GetFeatures retorna las características soportadas
	GetFeatures() ChannelFeatures

	// TestConnection prueba la conexión con el proveedor
	TestConnection(ctx context.Context) error
}

// ============================================================================
// Manager Interfaces
// ============================================================================

// ChannelManager gestiona operaciones de alto nivel con canales
type ChannelManager interface {
	// RegisterChannel registra un canal y construye su adapter
	RegisterChannel(ctx context.Context, channel Channel) error

	// SendMessage envía un mensaje a través de un canal
	SendMessage(ctx context.Context, tenantID kernel.TenantID, channelID kernel.ChannelID, msg OutgoingMessage) (string, error)

	// GetAdapter obtiene el adapter de un canal registrado
	GetAdapter(channelID kernel.ChannelID) (ChannelAdapter, error)

	// ResolveInbound localiza el canal destinatario de un webhook por su
	// phone_number_id y lo procesa con el adapter correspondiente
	ResolveInbound(ctx context.Context, phoneNumberID string, payload []byte, headers map[string]string) (*Channel, *IncomingMessage, error)
}
