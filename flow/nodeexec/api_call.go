package nodeexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Abraxas-365/craftable/logx"
	"github.com/xkayo32/pytake-flow/flow"
)

// APICallHandler llama una API HTTP externa con retries y guarda la respuesta
// en el contexto. onError=stop corta el flow; onError=continue guarda el
// fallback y sigue.
type APICallHandler struct {
	httpClient   *http.Client
	interpolator *flow.Interpolator
}

var _ flow.NodeHandler = (*APICallHandler)(nil)

func NewAPICallHandler(interpolator *flow.Interpolator) *APICallHandler {
	return &APICallHandler{
		httpClient:   &http.Client{},
		interpolator: interpolator,
	}
}

func (h *APICallHandler) Execute(ctx context.Context, exec *flow.Execution, node flow.Node, inbound *flow.InboundMessage) (flow.Outcome, error) {
	cfg, err := flow.ExtractAPICallConfig(node.Data)
	if err != nil {
		return flow.Outcome{}, err
	}

	vars := exec.Conversation.Context.Variables

	result, callErr := h.callWithRetries(ctx, cfg, vars)
	if callErr != nil {
		if cfg.ErrorHandling.ShouldStop() {
			return flow.Outcome{}, flow.ErrExternalCallExhausted().
				WithDetail("node_id", node.ID).
				WithDetail("url", cfg.URL).
				WithCause(callErr)
		}

		logx.Error("api_call failed, continuing with fallback: %v", callErr)
		if cfg.ResponseVariable != "" {
			exec.Conversation.Context.Set(cfg.ResponseVariable, cfg.ErrorHandling.FallbackValue)
		}
		return flow.Advance(), nil
	}

	if cfg.ResponseVariable != "" {
		exec.Conversation.Context.Set(cfg.ResponseVariable, result)
	}
	return flow.Advance(), nil
}

func (h *APICallHandler) callWithRetries(ctx context.Context, cfg *flow.APICallConfig, vars map[string]any) (map[string]any, error) {
	maxRetries := cfg.ErrorHandling.GetMaxRetries()
	retryDelay := time.Duration(cfg.ErrorHandling.GetRetryDelaySeconds()) * time.Second

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := h.call(ctx, cfg, vars)
		if err == nil {
			return result, nil
		}
		lastErr = err
		logx.Error("api_call attempt %d/%d failed: %v", attempt+1, maxRetries+1, err)
	}
	return nil, lastErr
}

func (h *APICallHandler) call(ctx context.Context, cfg *flow.APICallConfig, vars map[string]any) (map[string]any, error) {
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.GetTimeoutSeconds())*time.Second)
	defer cancel()

	endpoint := h.interpolator.Text(cfg.URL, vars)
	if len(cfg.QueryParams) > 0 {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid url %q: %w", endpoint, err)
		}
		q := parsed.Query()
		for k, v := range h.interpolator.StringMap(cfg.QueryParams, vars) {
			q.Set(k, v)
		}
		parsed.RawQuery = q.Encode()
		endpoint = parsed.String()
	}

	var bodyReader io.Reader
	if len(cfg.Body) > 0 {
		bodyJSON, err := json.Marshal(h.interpolator.Map(cfg.Body, vars))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(bodyJSON)
	}

	req, err := http.NewRequestWithContext(callCtx, cfg.GetMethod(), endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range h.interpolator.StringMap(cfg.Headers, vars) {
		req.Header.Set(k, v)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("api returned status %d: %s", resp.StatusCode, string(respBody))
	}

	// el body se guarda parseado cuando es JSON, como string en otro caso
	var parsedBody any
	if err := json.Unmarshal(respBody, &parsedBody); err != nil {
		parsedBody = string(respBody)
	}

	return map[string]any{
		"status": resp.StatusCode,
		"body":   parsedBody,
	}, nil
}

func (h *APICallHandler) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeAPICall
}

func (h *APICallHandler) ValidateConfig(data map[string]any) error {
	_, err := flow.ExtractAPICallConfig(data)
	return err
}
