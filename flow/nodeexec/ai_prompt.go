package nodeexec

import (
	"context"

	"github.com/Abraxas-365/craftable/logx"
	"github.com/xkayo32/pytake-flow/flow"
)

// AIPromptHandler invoca un proveedor de IA y guarda la respuesta en el
// contexto. Mismo contrato de error que api_call, pero con un único intento.
type AIPromptHandler struct {
	providers    map[string]flow.AIProvider
	interpolator *flow.Interpolator
}

var _ flow.NodeHandler = (*AIPromptHandler)(nil)

func NewAIPromptHandler(interpolator *flow.Interpolator, providers ...flow.AIProvider) *AIPromptHandler {
	registry := make(map[string]flow.AIProvider, len(providers))
	for _, p := range providers {
		registry[p.Name()] = p
	}
	return &AIPromptHandler{providers: registry, interpolator: interpolator}
}

func (h *AIPromptHandler) Execute(ctx context.Context, exec *flow.Execution, node flow.Node, inbound *flow.InboundMessage) (flow.Outcome, error) {
	cfg, err := flow.ExtractAIPromptConfig(node.Data)
	if err != nil {
		return flow.Outcome{}, err
	}

	provider, ok := h.providers[cfg.Provider]
	if !ok {
		return flow.Outcome{}, flow.ErrProviderNotFound().WithDetail("provider", cfg.Provider)
	}

	vars := exec.Conversation.Context.Variables
	req := flow.ChatRequest{
		Model:        cfg.Model,
		SystemPrompt: h.interpolator.Text(cfg.SystemPrompt, vars),
		Prompt:       h.interpolator.Text(cfg.Prompt, vars),
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
		APIKey:       cfg.APIKey,
		Endpoint:     cfg.Endpoint,
	}

	// un único intento, sin retries: el fallo va directo al errorHandling
	response, callErr := provider.Chat(ctx, req)
	if callErr != nil {
		if cfg.ErrorHandling.ShouldStop() {
			return flow.Outcome{}, flow.ErrExternalCallExhausted().
				WithDetail("node_id", node.ID).
				WithDetail("provider", cfg.Provider).
				WithCause(callErr)
		}

		logx.Error("ai_prompt failed, continuing with fallback: %v", callErr)
		exec.Conversation.Context.Set(cfg.ResponseVariable, cfg.ErrorHandling.FallbackValue)
		return flow.Advance(), nil
	}

	exec.Conversation.Context.Set(cfg.ResponseVariable, response)
	return flow.Advance(), nil
}

func (h *AIPromptHandler) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeAIPrompt
}

func (h *AIPromptHandler) ValidateConfig(data map[string]any) error {
	_, err := flow.ExtractAIPromptConfig(data)
	return err
}
