package channels

import (
	"net/http"

	"github.com/Abraxas-365/craftable/errx"
)

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("CHANNEL")

// ============================================================================
// Error Codes
// ============================================================================

var (
	// Channel errors
	CodeChannelNotFound      = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Canal não encontrado")
	CodeChannelAlreadyExists = ErrRegistry.Register("ALREADY_EXISTS", errx.TypeConflict, http.StatusConflict, "Canal já existe")
	CodeInvalidChannelType   = ErrRegistry.Register("INVALID_TYPE", errx.TypeValidation, http.StatusBadRequest, "Modo de canal inválido")
	CodeInvalidChannelConfig = ErrRegistry.Register("INVALID_CONFIG", errx.TypeValidation, http.StatusBadRequest, "Configuração de canal inválida")
	CodeChannelInactive      = ErrRegistry.Register("CHANNEL_INACTIVE", errx.TypeBusiness, http.StatusForbidden, "Canal está inativo")

	// Message sending errors
	CodeMessageSendFailed    = ErrRegistry.Register("MESSAGE_SEND_FAILED", errx.TypeExternal, http.StatusBadGateway, "Envio de mensagem falhou")
	CodeInvalidRecipient     = ErrRegistry.Register("INVALID_RECIPIENT", errx.TypeValidation, http.StatusBadRequest, "Destinatário inválido")
	CodeInvalidMessageFormat = ErrRegistry.Register("INVALID_MESSAGE_FORMAT", errx.TypeValidation, http.StatusBadRequest, "Formato de mensagem inválido")

	// Provider errors
	CodeProviderAuthFailed = ErrRegistry.Register("PROVIDER_AUTH_FAILED", errx.TypeExternal, http.StatusUnauthorized, "Autenticação com provedor falhou")
	CodeProviderAPIError   = ErrRegistry.Register("PROVIDER_API_ERROR", errx.TypeExternal, http.StatusBadGateway, "Erro na API do provedor")
	CodeProviderRateLimit  = ErrRegistry.Register("PROVIDER_RATE_LIMITED", errx.TypeExternal, http.StatusTooManyRequests, "Provedor limitou a taxa de requisições")

	// Webhook errors
	CodeInvalidWebhookSignature = ErrRegistry.Register("INVALID_WEBHOOK_SIGNATURE", errx.TypeValidation, http.StatusUnauthorized, "Assinatura de webhook inválida")
	CodeWebhookProcessingFailed = ErrRegistry.Register("WEBHOOK_PROCESSING_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Processamento de webhook falhou")

	// Feature errors
	CodeFeatureNotSupported = ErrRegistry.Register("FEATURE_NOT_SUPPORTED", errx.TypeBusiness, http.StatusNotImplemented, "Recurso não suportado pelo canal")
)

// ============================================================================
// Error Constructor Functions
// ============================================================================

func ErrChannelNotFound() *errx.Error {
	return ErrRegistry.New(CodeChannelNotFound)
}

func ErrChannelAlreadyExists() *errx.Error {
	return ErrRegistry.New(CodeChannelAlreadyExists)
}

func ErrInvalidChannelType() *errx.Error {
	return ErrRegistry.New(CodeInvalidChannelType)
}

func ErrInvalidChannelConfig() *errx.Error {
	return ErrRegistry.New(CodeInvalidChannelConfig)
}

func ErrChannelInactive() *errx.Error {
	return ErrRegistry.New(CodeChannelInactive)
}

func ErrMessageSendFailed() *errx.Error {
	return ErrRegistry.New(CodeMessageSendFailed)
}

func ErrInvalidRecipient() *errx.Error {
	return ErrRegistry.New(CodeInvalidRecipient)
}

func ErrInvalidMessageFormat() *errx.Error {
	return ErrRegistry.New(CodeInvalidMessageFormat)
}

func ErrProviderAuthFailed() *errx.Error {
	return ErrRegistry.New(CodeProviderAuthFailed)
}

func ErrProviderAPIError() *errx.Error {
	return ErrRegistry.New(CodeProviderAPIError)
}

func ErrProviderRateLimited() *errx.Error {
	return ErrRegistry.New(CodeProviderRateLimit)
}

func ErrInvalidWebhookSignature() *errx.Error {
	return ErrRegistry.New(CodeInvalidWebhookSignature)
}

func ErrWebhookProcessingFailed() *errx.Error {
	return ErrRegistry.New(CodeWebhookProcessingFailed)
}

func ErrFeatureNotSupported() *errx.Error {
	return ErrRegistry.New(CodeFeatureNotSupported)
}
