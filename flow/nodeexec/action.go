package nodeexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Abraxas-365/craftable/logx"
	"github.com/xkayo32/pytake-flow/flow"
)

// ActionHandler ejecuta efectos colaterales: webhook de notificación, guardar
// datos del contato, actualizar variables. Un efecto fallido se loguea y no
// corta el flow.
type ActionHandler struct {
	httpClient     *http.Client
	contactUpdater flow.ContactUpdater
	interpolator   *flow.Interpolator
}

var _ flow.NodeHandler = (*ActionHandler)(nil)

func NewActionHandler(interpolator *flow.Interpolator, contactUpdater flow.ContactUpdater) *ActionHandler {
	return &ActionHandler{
		httpClient:     &http.Client{Timeout: 15 * time.Second},
		contactUpdater: contactUpdater,
		interpolator:   interpolator,
	}
}

func (h *ActionHandler) Execute(ctx context.Context, exec *flow.Execution, node flow.Node, inbound *flow.InboundMessage) (flow.Outcome, error) {
	cfg, err := flow.ExtractActionConfig(node.Data)
	if err != nil {
		return flow.Outcome{}, err
	}

	for _, action := range cfg.Actions {
		switch action.Type {
		case "webhook":
			if err := h.fireWebhook(ctx, exec, action.Config); err != nil {
				logx.Error("action webhook failed: %v", err)
			}
		case "save_contact":
			if err := h.saveContact(ctx, exec, action.Config); err != nil {
				logx.Error("action save_contact failed: %v", err)
			}
		case "update_variable":
			h.updateVariable(exec, action.Config)
		}
	}

	return flow.Advance(), nil
}

func (h *ActionHandler) fireWebhook(ctx context.Context, exec *flow.Execution, config map[string]any) error {
	vars := exec.Conversation.Context.Variables

	rawURL, _ := config["url"].(string)
	if rawURL == "" {
		return fmt.Errorf("webhook action has no url")
	}
	endpoint := h.interpolator.Text(rawURL, vars)

	method := http.MethodPost
	if m, ok := config["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}

	payload := map[string]any{
		"conversation_id": exec.Conversation.ID.String(),
		"contact_id":      exec.Conversation.ContactID,
		"flow_id":         exec.Flow.ID.String(),
	}
	if body, ok := config["payload"].(map[string]any); ok {
		for k, v := range h.interpolator.Map(body, vars) {
			payload[k] = v
		}
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if headers, ok := config["headers"].(map[string]any); ok {
		for k, v := range headers {
			req.Header.Set(k, h.interpolator.Text(fmt.Sprintf("%v", v), vars))
		}
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (h *ActionHandler) saveContact(ctx context.Context, exec *flow.Execution, config map[string]any) error {
	if h.contactUpdater == nil {
		return fmt.Errorf("contact updater not configured")
	}

	vars := exec.Conversation.Context.Variables

	fields := map[string]any{}
	if f, ok := config["fields"].(map[string]any); ok {
		fields = h.interpolator.Map(f, vars)
	}
	custom := map[string]any{}
	if c, ok := config["customFields"].(map[string]any); ok {
		custom = h.interpolator.Map(c, vars)
	}

	return h.contactUpdater.UpdateContact(ctx, exec.Conversation.TenantID, exec.Conversation.ContactID, fields, custom)
}

func (h *ActionHandler) updateVariable(exec *flow.Execution, config map[string]any) {
	name, _ := config["name"].(string)
	if name == "" {
		return
	}

	value := config["value"]
	if s, ok := value.(string); ok {
		if resolved, err := h.interpolator.Value(s, exec.Conversation.Context.Variables); err == nil {
			value = resolved
		}
	}

	conv := exec.Conversation
	operation, _ := config["operation"].(string)

	switch operation {
	case "append":
		switch current := conv.Context.Get(name).(type) {
		case nil:
			conv.Context.Set(name, value)
		case string:
			conv.Context.Set(name, current+fmt.Sprintf("%v", value))
		case []any:
			conv.Context.Set(name, append(current, value))
		default:
			// un escalar existente se promueve a lista
			conv.Context.Set(name, []any{current, value})
		}

	case "increment":
		current, _ := asNumber(conv.Context.Get(name))
		delta, ok := asNumber(value)
		if !ok {
			delta = 1
		}
		conv.Context.Set(name, current+delta)

	default: // set
		conv.Context.Set(name, value)
	}
}

// asNumber coerces the numeric shapes a variable can arrive in (JSON
// round-trips, interpolated strings with decimal comma).
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(strings.ReplaceAll(n, ",", "."), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func (h *ActionHandler) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeAction
}

func (h *ActionHandler) ValidateConfig(data map[string]any) error {
	_, err := flow.ExtractActionConfig(data)
	return err
}
