package aiproviders

import (
	"context"

	"github.com/Abraxas-365/craftable/ai/llm"
	"github.com/Abraxas-365/craftable/ai/providers/aiopenai"
	"github.com/Abraxas-365/craftable/ptrx"
	"github.com/xkayo32/pytake-flow/flow"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	defaultTemperature = float32(0.7)
	defaultMaxTokens   = 512
)

// OpenAIProvider resuelve nodos ai_prompt contra la API de OpenAI. El tenant
// puede traer su propia key en el nodo; si no, se usa la key global del server.
type OpenAIProvider struct {
	apiKey string
}

var _ flow.AIProvider = (*OpenAIProvider)(nil)

func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{apiKey: apiKey}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Chat(ctx context.Context, req flow.ChatRequest) (string, error) {
	apiKey := p.apiKey
	if req.APIKey != "" {
		apiKey = req.APIKey
	}
	client := llm.NewClient(aiopenai.NewOpenAIProvider(apiKey))

	messages := []llm.Message{}
	if req.SystemPrompt != "" {
		messages = append(messages, llm.NewSystemMessage(req.SystemPrompt))
	}
	messages = append(messages, llm.NewUserMessage(req.Prompt))

	model := req.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	response, err := client.Chat(ctx, messages,
		llm.WithModel(model),
		llm.WithTemperature(ptrx.Float32ValueOr(req.Temperature, defaultTemperature)),
		llm.WithMaxTokens(ptrx.IntValueOr(req.MaxTokens, defaultMaxTokens)),
	)
	if err != nil {
		return "", err
	}

	return response.Message.Content, nil
}
