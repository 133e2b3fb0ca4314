package channelmanager

import (
	"context"
	"fmt"
	"sync"

	"github.com/Abraxas-365/craftable/logx"
	"github.com/xkayo32/pytake-flow/channels"
	"github.com/xkayo32/pytake-flow/channels/channeladapters/bridge"
	"github.com/xkayo32/pytake-flow/channels/channeladapters/cloudapi"
	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

// DefaultChannelManager implementación del ChannelManager. Cada canal tiene su
// adapter propio porque las credenciales viven en la config del canal.
type DefaultChannelManager struct {
	mu sync.RWMutex

	adapters map[kernel.ChannelID]channels.ChannelAdapter
	channels map[kernel.ChannelID]*channels.Channel

	channelRepo channels.ChannelRepository
}

// NewDefaultChannelManager crea una nueva instancia
func NewDefaultChannelManager(channelRepo channels.ChannelRepository) *DefaultChannelManager {
	return &DefaultChannelManager{
		adapters:    make(map[kernel.ChannelID]channels.ChannelAdapter),
		channels:    make(map[kernel.ChannelID]*channels.Channel),
		channelRepo: channelRepo,
	}
}

// RegisterChannel registra un canal en el manager y crea su adapter
func (cm *DefaultChannelManager) RegisterChannel(ctx context.Context, channel channels.Channel) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !channel.IsValid() {
		return channels.ErrInvalidChannelConfig().WithDetail("reason", "channel is not valid")
	}

	adapter, err := createAdapterForChannel(channel)
	if err != nil {
		logx.Error("❌ Failed to create adapter for channel %s: %v", channel.ID.String(), err)
		return fmt.Errorf("failed to create adapter: %w", err)
	}

	cm.channels[channel.ID] = &channel
	cm.adapters[channel.ID] = adapter

	logx.Info("✅ Channel registered: %s (mode: %s, id: %s)", channel.Name, channel.Mode, channel.ID.String())
	return nil
}

func createAdapterForChannel(channel channels.Channel) (channels.ChannelAdapter, error) {
	config, err := channel.GetConfigStruct()
	if err != nil {
		return nil, err
	}

	switch channel.Mode {
	case channels.ChannelModeCloudAPI:
		cloudConfig, ok := config.(channels.CloudAPIConfig)
		if !ok {
			return nil, channels.ErrInvalidChannelConfig().WithDetail("reason", "config is not a Cloud API config")
		}
		if err := cloudConfig.Validate(); err != nil {
			return nil, err
		}
		return cloudapi.NewAdapter(cloudConfig), nil

	case channels.ChannelModeBridge:
		bridgeConfig, ok := config.(channels.BridgeConfig)
		if !ok {
			return nil, channels.ErrInvalidChannelConfig().WithDetail("reason", "config is not a bridge config")
		}
		if err := bridgeConfig.Validate(); err != nil {
			return nil, err
		}
		return bridge.NewAdapter(bridgeConfig), nil

	default:
		return nil, channels.ErrInvalidChannelType().WithDetail("mode", string(channel.Mode))
	}
}

// SendMessage envía un mensaje a través de un canal
func (cm *DefaultChannelManager) SendMessage(
	ctx context.Context,
	tenantID kernel.TenantID,
	channelID kernel.ChannelID,
	msg channels.OutgoingMessage,
) (string, error) {
	channel, adapter, err := cm.getChannelAndAdapter(ctx, tenantID, channelID)
	if err != nil {
		return "", err
	}

	if !channel.IsActive {
		return "", channels.ErrChannelInactive().WithDetail("channel_id", channelID.String())
	}

	providerID, err := adapter.SendMessage(ctx, msg)
	if err != nil {
		logx.Error("❌ Failed to send message via %s: %v", channel.Name, err)
		return "", channels.ErrMessageSendFailed().
			WithDetail("channel_id", channelID.String()).
			WithCause(err)
	}

	return providerID, nil
}

// GetAdapter obtiene el adapter para un canal específico
func (cm *DefaultChannelManager) GetAdapter(channelID kernel.ChannelID) (channels.ChannelAdapter, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	adapter, exists := cm.adapters[channelID]
	if !exists {
		return nil, channels.ErrChannelNotFound().
			WithDetail("channel_id", channelID.String())
	}
	return adapter, nil
}

// ResolveInbound localiza el canal de un webhook por phone_number_id y deja
// que su adapter verifique y parsee el payload.
func (cm *DefaultChannelManager) ResolveInbound(
	ctx context.Context,
	phoneNumberID string,
	payload []byte,
	headers map[string]string,
) (*channels.Channel, *channels.IncomingMessage, error) {
	channel, err := cm.channelRepo.FindByPhoneNumberID(ctx, phoneNumberID)
	if err != nil {
		return nil, nil, err
	}

	cm.mu.RLock()
	_, registered := cm.adapters[channel.ID]
	cm.mu.RUnlock()

	if !registered {
		if err := cm.RegisterChannel(ctx, *channel); err != nil {
			return nil, nil, err
		}
	}

	adapter, err := cm.GetAdapter(channel.ID)
	if err != nil {
		return nil, nil, err
	}

	msg, err := adapter.ProcessWebhook(ctx, payload, headers)
	if err != nil {
		return nil, nil, err
	}
	if msg != nil {
		msg.ChannelID = channel.ID
	}
	return channel, msg, nil
}

// LoadChannels carga los canales activos de un tenant en memoria
func (cm *DefaultChannelManager) LoadChannels(ctx context.Context, tenantID kernel.TenantID) error {
	if cm.channelRepo == nil {
		logx.Info("⚠️ Channel repository not available, skipping channel loading")
		return nil
	}

	active, err := cm.channelRepo.FindActive(ctx, tenantID)
	if err != nil {
		return err
	}

	successCount := 0
	for _, ch := range active {
		if err := cm.RegisterChannel(ctx, *ch); err != nil {
			logx.Info("⚠️ Failed to register channel %s: %v", ch.ID.String(), err)
			continue
		}
		successCount++
	}

	logx.Info("✅ Loaded %d/%d channels for tenant %s", successCount, len(active), tenantID.String())
	return nil
}

// UnregisterChannel elimina un canal y su adapter del cache
func (cm *DefaultChannelManager) UnregisterChannel(channelID kernel.ChannelID) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	delete(cm.channels, channelID)
	delete(cm.adapters, channelID)
}

// ReloadChannel recarga un canal cuando cambia su config
func (cm *DefaultChannelManager) ReloadChannel(ctx context.Context, channelID kernel.ChannelID, tenantID kernel.TenantID) error {
	channel, err := cm.channelRepo.FindByID(ctx, channelID, tenantID)
	if err != nil {
		return err
	}

	cm.UnregisterChannel(channelID)
	return cm.RegisterChannel(ctx, *channel)
}

// getChannelAndAdapter resuelve canal y adapter, cargando de DB si hace falta
func (cm *DefaultChannelManager) getChannelAndAdapter(
	ctx context.Context,
	tenantID kernel.TenantID,
	channelID kernel.ChannelID,
) (*channels.Channel, channels.ChannelAdapter, error) {
	cm.mu.RLock()
	channel, channelExists := cm.channels[channelID]
	adapter, adapterExists := cm.adapters[channelID]
	cm.mu.RUnlock()

	if channelExists && adapterExists {
		return channel, adapter, nil
	}

	loaded, err := cm.channelRepo.FindByID(ctx, channelID, tenantID)
	if err != nil {
		return nil, nil, channels.ErrChannelNotFound().
			WithDetail("channel_id", channelID.String())
	}

	if err := cm.RegisterChannel(ctx, *loaded); err != nil {
		return nil, nil, err
	}

	cm.mu.RLock()
	channel = cm.channels[channelID]
	adapter = cm.adapters[channelID]
	cm.mu.RUnlock()

	return channel, adapter, nil
}
