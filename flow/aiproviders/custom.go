package aiproviders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xkayo32/pytake-flow/flow"
)

// CustomProvider habla con cualquier endpoint compatible con el formato
// chat/completions de OpenAI (Ollama, vLLM, gateways propios del tenant).
// El endpoint viene en la config del nodo, no del server.
type CustomProvider struct {
	httpClient *http.Client
}

var _ flow.AIProvider = (*CustomProvider)(nil)

func NewCustomProvider() *CustomProvider {
	return &CustomProvider{
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *CustomProvider) Name() string {
	return "custom"
}

type customChatRequest struct {
	Model       string              `json:"model"`
	Messages    []customChatMessage `json:"messages"`
	Temperature *float32            `json:"temperature,omitempty"`
	MaxTokens   *int                `json:"max_tokens,omitempty"`
}

type customChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type customChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *CustomProvider) Chat(ctx context.Context, req flow.ChatRequest) (string, error) {
	if req.Endpoint == "" {
		return "", fmt.Errorf("custom provider requires an endpoint")
	}

	messages := []customChatMessage{}
	if req.SystemPrompt != "" {
		messages = append(messages, customChatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, customChatMessage{Role: "user", Content: req.Prompt})

	body := customChatRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed customChatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("custom provider returned unparseable response (status %d)", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		if parsed.Error != nil {
			return "", fmt.Errorf("custom provider error: %s", parsed.Error.Message)
		}
		return "", fmt.Errorf("custom provider returned status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("custom provider response has no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}
